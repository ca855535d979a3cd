package dialogue

import (
	"context"
	"sync"

	"deskchat/internal/models"
)

// PendingStore holds at most one pending action per session. Implementations
// must treat "no pending action" as (nil, nil), not an error.
type PendingStore interface {
	Get(ctx context.Context, sessionID string) (*models.PendingAction, error)
	Put(ctx context.Context, sessionID string, pending *models.PendingAction) error
	Clear(ctx context.Context, sessionID string) error
}

// MemoryStore is an in-process PendingStore, used in tests and as the
// fallback when no redis is configured.
type MemoryStore struct {
	mu      sync.Mutex
	pending map[string]*models.PendingAction
}

// NewMemoryStore builds an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{pending: make(map[string]*models.PendingAction)}
}

func (m *MemoryStore) Get(_ context.Context, sessionID string) (*models.PendingAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pa, ok := m.pending[sessionID]
	if !ok {
		return nil, nil
	}
	clone := *pa
	clone.Slots = copyStringMap(pa.Slots)
	clone.Prompted = copyBoolMap(pa.Prompted)
	return &clone, nil
}

func (m *MemoryStore) Put(_ context.Context, sessionID string, pending *models.PendingAction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *pending
	clone.Slots = copyStringMap(pending.Slots)
	clone.Prompted = copyBoolMap(pending.Prompted)
	m.pending[sessionID] = &clone
	return nil
}

func (m *MemoryStore) Clear(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, sessionID)
	return nil
}

func copyStringMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyBoolMap(in map[string]bool) map[string]bool {
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
