package memory

import (
	"context"
	"sort"
	"sync"

	"partybid/internal/domain"
	"partybid/internal/storage"
)

// EventStore is an in-memory implementation of storage.EventStore.
type EventStore struct {
	mu   sync.RWMutex
	data map[string]map[uint64]*domain.Event // pool_id -> seq -> event
}

// NewEventStore creates a new in-memory event store.
func NewEventStore() *EventStore {
	return &EventStore{
		data: make(map[string]map[uint64]*domain.Event),
	}
}

var _ storage.EventStore = (*EventStore)(nil)

// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
func (s *EventStore) InsertBulk(_ context.Context, events []*domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	type key struct {
		poolID string
		seq    uint64
	}
	batchKeys := make(map[key]struct{}, len(events))

	for _, e := range events {
		if e == nil || e.ID == "" || e.PoolID == "" || e.Kind == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[e.PoolID][e.Seq]; exists {
			return storage.ErrDuplicateKey
		}
		k := key{e.PoolID, e.Seq}
		if _, exists := batchKeys[k]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[k] = struct{}{}
	}

	for _, e := range events {
		bySeq, ok := s.data[e.PoolID]
		if !ok {
			bySeq = make(map[uint64]*domain.Event)
			s.data[e.PoolID] = bySeq
		}
		stored := e.Clone()
		bySeq[e.Seq] = &stored
	}

	return nil
}

// GetByPool retrieves all events of a pool, ordered by seq ASC.
func (s *EventStore) GetByPool(ctx context.Context, poolID string) ([]*domain.Event, error) {
	return s.GetSince(ctx, poolID, 0)
}

// GetSince retrieves events with seq >= since, ordered by seq ASC.
func (s *EventStore) GetSince(_ context.Context, poolID string, since uint64) ([]*domain.Event, error) {
	return s.collect(poolID, since, func(*domain.Event) bool { return true }), nil
}

// GetByKind retrieves events of one kind, ordered by seq ASC.
func (s *EventStore) GetByKind(_ context.Context, poolID string, kind domain.EventKind) ([]*domain.Event, error) {
	return s.collect(poolID, 0, func(e *domain.Event) bool { return e.Kind == kind }), nil
}

func (s *EventStore) collect(poolID string, since uint64, keep func(*domain.Event) bool) []*domain.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Event
	for seq, e := range s.data[poolID] {
		if seq >= since && keep(e) {
			out := e.Clone()
			result = append(result, &out)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Seq < result[j].Seq
	})
	return result
}
