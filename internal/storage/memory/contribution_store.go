package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"partybid/internal/domain"
	"partybid/internal/storage"
)

// ContributionStore is an in-memory implementation of storage.ContributionStore.
type ContributionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Contribution // keyed by contribution id
}

// NewContributionStore creates a new in-memory contribution store.
func NewContributionStore() *ContributionStore {
	return &ContributionStore{
		data: make(map[string]*domain.Contribution),
	}
}

var _ storage.ContributionStore = (*ContributionStore)(nil)

// Upsert adds a contribution or updates the Refunded flag of an existing one.
func (s *ContributionStore) Upsert(_ context.Context, c *domain.Contribution) error {
	if c == nil || c.ID == "" || c.PoolID == "" || c.Amount == nil || c.Amount.IsZero() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, exists := s.data[c.ID]; exists {
		cur.Refunded = c.Refunded
		return nil
	}

	stored := c.Clone()
	s.data[c.ID] = &stored
	return nil
}

// GetByID retrieves a contribution. Returns ErrNotFound if not exists.
func (s *ContributionStore) GetByID(_ context.Context, id string) (*domain.Contribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	out := c.Clone()
	return &out, nil
}

// GetByPool retrieves all contributions of a pool, ordered by seq ASC.
func (s *ContributionStore) GetByPool(_ context.Context, poolID string) ([]*domain.Contribution, error) {
	return s.filter(func(c *domain.Contribution) bool {
		return c.PoolID == poolID
	}), nil
}

// GetByContributor retrieves one contributor's contributions, ordered by seq ASC.
func (s *ContributionStore) GetByContributor(_ context.Context, poolID string, contributor common.Address) ([]*domain.Contribution, error) {
	return s.filter(func(c *domain.Contribution) bool {
		return c.PoolID == poolID && c.Contributor == contributor
	}), nil
}

func (s *ContributionStore) filter(keep func(*domain.Contribution) bool) []*domain.Contribution {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Contribution
	for _, c := range s.data {
		if keep(c) {
			out := c.Clone()
			result = append(result, &out)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Seq < result[j].Seq
	})
	return result
}
