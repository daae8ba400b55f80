package store

import (
	"context"
	"errors"
	"time"

	"github.com/olash/SignalReach-sub000/pkg/domain"
)

// ErrNotFound is returned by writes that matched no row.
var ErrNotFound = errors.New("record not found")

const (
	defaultSignalLimit = 100
	maxSignalLimit     = 500
)

// Store defines persistence operations for workspaces and signals.
type Store interface {
	// workspaces
	CreateWorkspace(domain.Workspace) error
	UpdateWorkspace(domain.Workspace) error
	GetWorkspace(id string) (domain.Workspace, bool, error)
	ListWorkspacesByOwner(ownerID string) ([]domain.Workspace, error)
	ListKeywordWorkspaces() ([]domain.Workspace, error)
	MarkWorkspaceScraped(id string, at time.Time) error

	// signals
	InsertSignals(signals []domain.Signal) (int, error)
	ListSignals(workspaceID string, filter domain.SignalFilter) ([]domain.Signal, error)
	GetSignal(id string) (domain.Signal, bool, error)
	UpdateSignal(id string, update domain.SignalUpdate) error
	DeleteSignal(id string) error
}

// PreferenceStore remembers per-user UI choices across sessions.
type PreferenceStore interface {
	ActiveWorkspace(ctx context.Context, userID string) (string, bool, error)
	SetActiveWorkspace(ctx context.Context, userID, workspaceID string) error
}

func signalLimit(n int) int {
	if n <= 0 {
		return defaultSignalLimit
	}
	if n > maxSignalLimit {
		return maxSignalLimit
	}
	return n
}
