package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"partybid/internal/domain"
	"partybid/internal/storage"
)

type redemptionKey struct {
	poolID string
	seq    uint64
}

// RedemptionStore is an in-memory implementation of storage.RedemptionStore.
type RedemptionStore struct {
	mu   sync.RWMutex
	data map[redemptionKey]*domain.RedemptionRecord
}

// NewRedemptionStore creates a new in-memory redemption store.
func NewRedemptionStore() *RedemptionStore {
	return &RedemptionStore{
		data: make(map[redemptionKey]*domain.RedemptionRecord),
	}
}

var _ storage.RedemptionStore = (*RedemptionStore)(nil)

// InsertBulk adds multiple records atomically. Fails entire batch on any duplicate.
func (s *RedemptionStore) InsertBulk(_ context.Context, records []*domain.RedemptionRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[redemptionKey]struct{}, len(records))

	// First pass: validate and check for duplicates (existing + intra-batch)
	for _, r := range records {
		if r == nil || r.ID == "" || r.PoolID == "" || r.TokensBurned == nil || r.EthPaid == nil {
			return storage.ErrInvalidInput
		}
		k := redemptionKey{r.PoolID, r.Seq}
		if _, exists := s.data[k]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[k]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[k] = struct{}{}
	}

	// Second pass: insert all
	for _, r := range records {
		stored := r.Clone()
		s.data[redemptionKey{r.PoolID, r.Seq}] = &stored
	}

	return nil
}

// GetByPool retrieves all redemptions of a pool, ordered by seq ASC.
func (s *RedemptionStore) GetByPool(_ context.Context, poolID string) ([]*domain.RedemptionRecord, error) {
	return s.filter(func(r *domain.RedemptionRecord) bool {
		return r.PoolID == poolID
	}), nil
}

// GetByHolder retrieves one holder's redemptions, ordered by seq ASC.
func (s *RedemptionStore) GetByHolder(_ context.Context, poolID string, holder common.Address) ([]*domain.RedemptionRecord, error) {
	return s.filter(func(r *domain.RedemptionRecord) bool {
		return r.PoolID == poolID && r.Holder == holder
	}), nil
}

func (s *RedemptionStore) filter(keep func(*domain.RedemptionRecord) bool) []*domain.RedemptionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RedemptionRecord
	for _, r := range s.data {
		if keep(r) {
			out := r.Clone()
			result = append(result, &out)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Seq < result[j].Seq
	})
	return result
}
