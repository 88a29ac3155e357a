package checkpoint

import (
	"context"
	"sync"
	"time"

	"github.com/askdb/askdb/pkg/models"
)

type memoryEntry struct {
	state     *models.QueryContext
	expiresAt time.Time
}

// MemoryStore is an in-process checkpoint store for single-node deployments
// and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
}

// NewMemoryStore builds an in-memory store. A non-positive ttl falls back to
// DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
	}
}

// Save stores the state under the query ID, resetting its expiry.
func (s *MemoryStore) Save(_ context.Context, queryID string, state *models.QueryContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[queryID] = memoryEntry{
		state:     state,
		expiresAt: time.Now().Add(s.ttl),
	}

	return nil
}

// Load returns the stored state, or ErrNotFound if absent or expired.
func (s *MemoryStore) Load(_ context.Context, queryID string) (*models.QueryContext, error) {
	s.mu.RLock()
	entry, ok := s.entries[queryID]
	s.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		return nil, ErrNotFound
	}

	return entry.state, nil
}

// Delete removes the checkpoint. Deleting a missing checkpoint is a no-op.
func (s *MemoryStore) Delete(_ context.Context, queryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, queryID)

	return nil
}
