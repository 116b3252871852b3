package memory

import (
	"context"
	"sort"
	"sync"

	"partybid/internal/domain"
	"partybid/internal/storage"
)

// AccountStore is an in-memory implementation of storage.AccountStore.
type AccountStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PoolAccount // keyed by pool_id
}

// NewAccountStore creates a new in-memory account store.
func NewAccountStore() *AccountStore {
	return &AccountStore{
		data: make(map[string]*domain.PoolAccount),
	}
}

var _ storage.AccountStore = (*AccountStore)(nil)

// Upsert stores a snapshot unless a newer one is already stored.
func (s *AccountStore) Upsert(_ context.Context, a *domain.PoolAccount) error {
	if a == nil || a.PoolID == "" || !a.State.IsValid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, exists := s.data[a.PoolID]; exists && cur.EventCount > a.EventCount {
		return nil
	}

	snap := a.Clone()
	s.data[a.PoolID] = &snap
	return nil
}

// Get retrieves the snapshot of a pool. Returns ErrNotFound if not exists.
func (s *AccountStore) Get(_ context.Context, poolID string) (*domain.PoolAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, exists := s.data[poolID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	snap := a.Clone()
	return &snap, nil
}

// List retrieves all snapshots ordered by pool ID.
func (s *AccountStore) List(_ context.Context) ([]*domain.PoolAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.PoolAccount, 0, len(s.data))
	for _, a := range s.data {
		snap := a.Clone()
		result = append(result, &snap)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].PoolID < result[j].PoolID
	})
	return result, nil
}
