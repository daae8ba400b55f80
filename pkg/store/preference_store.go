package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultPreferencePrefix = "signalreach:active_workspace"
	preferenceTTL           = 180 * 24 * time.Hour
)

// RedisPreferenceStore persists the last active workspace per user.
type RedisPreferenceStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisPreferenceStore wraps an existing client. Keys are
// "<prefix>:<userID>" and expire after 180 days of inactivity.
func NewRedisPreferenceStore(client redis.UniversalClient, prefix string) *RedisPreferenceStore {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultPreferencePrefix
	}
	return &RedisPreferenceStore{client: client, prefix: prefix}
}

func (s *RedisPreferenceStore) key(userID string) string {
	return s.prefix + ":" + userID
}

// ActiveWorkspace returns the remembered workspace id. A missing key is not an error.
func (s *RedisPreferenceStore) ActiveWorkspace(ctx context.Context, userID string) (string, bool, error) {
	val, err := s.client.Get(ctx, s.key(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, val != "", nil
}

// SetActiveWorkspace stores workspaceID and refreshes the expiry.
func (s *RedisPreferenceStore) SetActiveWorkspace(ctx context.Context, userID, workspaceID string) error {
	return s.client.Set(ctx, s.key(userID), workspaceID, preferenceTTL).Err()
}
