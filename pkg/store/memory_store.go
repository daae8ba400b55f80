package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/olash/SignalReach-sub000/pkg/domain"
)

// MemoryStore keeps workspaces and signals in-process. It mirrors the
// GormStore semantics, including dedup-key conflict skipping.
type MemoryStore struct {
	mu         sync.RWMutex
	workspaces map[string]domain.Workspace
	wsOrder    []string
	signals    map[string]domain.Signal
	dedup      map[string]string // dedup key -> signal ID, "" once deleted
	seq        map[string]int64  // signal ID -> insertion order
	next       int64
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		workspaces: make(map[string]domain.Workspace),
		signals:    make(map[string]domain.Signal),
		dedup:      make(map[string]string),
		seq:        make(map[string]int64),
	}
}

func (m *MemoryStore) CreateWorkspace(w domain.Workspace) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.workspaces[w.ID]; !exists {
		m.wsOrder = append(m.wsOrder, w.ID)
	}
	m.workspaces[w.ID] = w
	return nil
}

func (m *MemoryStore) UpdateWorkspace(w domain.Workspace) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.workspaces[w.ID]
	if !ok {
		return ErrNotFound
	}
	cur.Name = w.Name
	cur.Keywords = w.Keywords
	cur.Frequency = w.Frequency
	cur.UpdatedAt = time.Now().UTC()
	m.workspaces[w.ID] = cur
	return nil
}

func (m *MemoryStore) GetWorkspace(id string) (domain.Workspace, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.workspaces[id]
	return w, ok, nil
}

func (m *MemoryStore) ListWorkspacesByOwner(ownerID string) ([]domain.Workspace, error) {
	return m.listWorkspaces(func(w domain.Workspace) bool { return w.OwnerID == ownerID }), nil
}

func (m *MemoryStore) ListKeywordWorkspaces() ([]domain.Workspace, error) {
	return m.listWorkspaces(func(w domain.Workspace) bool { return w.Keywords != nil }), nil
}

func (m *MemoryStore) listWorkspaces(keep func(domain.Workspace) bool) []domain.Workspace {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Workspace, 0, len(m.wsOrder))
	for _, id := range m.wsOrder {
		if w := m.workspaces[id]; keep(w) {
			res = append(res, w)
		}
	}
	return res
}

func (m *MemoryStore) MarkWorkspaceScraped(id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workspaces[id]
	if !ok {
		return nil
	}
	at = at.UTC()
	w.LastScrapedAt = &at
	m.workspaces[id] = w
	return nil
}

func (m *MemoryStore) InsertSignals(signals []domain.Signal) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inserted := 0
	for _, sig := range prepareSignals(signals) {
		if sig.DedupKey != "" {
			if _, dup := m.dedup[sig.DedupKey]; dup {
				continue
			}
			m.dedup[sig.DedupKey] = sig.ID
		}
		m.next++
		m.seq[sig.ID] = m.next
		m.signals[sig.ID] = sig
		inserted++
	}
	return inserted, nil
}

func (m *MemoryStore) ListSignals(workspaceID string, filter domain.SignalFilter) ([]domain.Signal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	term := strings.ToLower(strings.TrimSpace(filter.Search))
	res := make([]domain.Signal, 0)
	for _, sig := range m.signals {
		if sig.WorkspaceID != workspaceID {
			continue
		}
		if filter.Status != "" && sig.Status != filter.Status {
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(sig.Content), term) && !strings.Contains(strings.ToLower(sig.Author), term) {
			continue
		}
		res = append(res, sig)
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].CreatedAt.After(res[j].CreatedAt)
		}
		return m.seq[res[i].ID] > m.seq[res[j].ID]
	})
	if limit := signalLimit(filter.Limit); len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (m *MemoryStore) GetSignal(id string) (domain.Signal, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sig, ok := m.signals[id]
	return sig, ok, nil
}

func (m *MemoryStore) UpdateSignal(id string, update domain.SignalUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sig, ok := m.signals[id]
	if !ok {
		return ErrNotFound
	}
	if update.Status != nil {
		sig.Status = *update.Status
	}
	if update.ReplyText != nil {
		sig.ReplyText = *update.ReplyText
	}
	sig.UpdatedAt = time.Now().UTC()
	m.signals[id] = sig
	return nil
}

func (m *MemoryStore) DeleteSignal(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sig, ok := m.signals[id]
	if !ok {
		return ErrNotFound
	}
	// the dedup key outlives the row so a rescrape cannot resurrect it
	if sig.DedupKey != "" {
		m.dedup[sig.DedupKey] = ""
	}
	delete(m.signals, id)
	delete(m.seq, id)
	return nil
}
