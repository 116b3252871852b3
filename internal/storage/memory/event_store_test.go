package memory

import (
	"context"
	"errors"
	"testing"

	"partybid/internal/domain"
	"partybid/internal/storage"
)

func event(seq uint64, kind domain.EventKind) *domain.Event {
	return &domain.Event{
		ID:     "e" + string(rune('0'+seq)),
		PoolID: "pool-1",
		Seq:    seq,
		Kind:   kind,
		Amount: domain.Ether(1),
		State:  domain.StateActive,
		Attrs:  map[string]string{"k": "v"},
	}
}

func TestEventStore_InsertAndQuery(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	err := store.InsertBulk(ctx, []*domain.Event{
		event(0, domain.EventContribution),
		event(1, domain.EventContribution),
		event(2, domain.EventBidPlaced),
	})
	if err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}
	if err := store.InsertBulk(ctx, []*domain.Event{event(3, domain.EventOutcomeObserved)}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	all, _ := store.GetByPool(ctx, "pool-1")
	if len(all) != 4 {
		t.Fatalf("Expected 4 events, got %d", len(all))
	}
	for i, e := range all {
		if e.Seq != uint64(i) {
			t.Errorf("position %d has seq %d", i, e.Seq)
		}
	}

	since, _ := store.GetSince(ctx, "pool-1", 2)
	if len(since) != 2 || since[0].Seq != 2 {
		t.Errorf("unexpected GetSince result: %v", since)
	}

	contribs, _ := store.GetByKind(ctx, "pool-1", domain.EventContribution)
	if len(contribs) != 2 {
		t.Errorf("Expected 2 contribution events, got %d", len(contribs))
	}

	all[0].Attrs["k"] = "changed"
	again, _ := store.GetByPool(ctx, "pool-1")
	if again[0].Attrs["k"] != "v" {
		t.Error("store returned shared attrs map")
	}
}

func TestEventStore_Duplicates(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()

	if err := store.InsertBulk(ctx, []*domain.Event{event(0, domain.EventContribution)}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	err := store.InsertBulk(ctx, []*domain.Event{event(1, domain.EventContribution), event(0, domain.EventContribution)})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	all, _ := store.GetByPool(ctx, "pool-1")
	if len(all) != 1 {
		t.Errorf("failed batch must not insert anything, got %d events", len(all))
	}

	if err := store.InsertBulk(ctx, []*domain.Event{{ID: "x", PoolID: "pool-1"}}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for missing kind, got %v", err)
	}
}
