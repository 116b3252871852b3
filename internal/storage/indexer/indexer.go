// Package indexer projects committed pool state into storage.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"partybid/internal/domain"
	"partybid/internal/eventlog"
	"partybid/internal/observability"
	"partybid/internal/pool"
	"partybid/internal/storage"
)

// Stores is the set of projections an Indexer writes.
type Stores struct {
	Accounts      storage.AccountStore
	Contributions storage.ContributionStore
	Redemptions   storage.RedemptionStore
	Events        storage.EventStore
}

func (s Stores) validate() error {
	if s.Accounts == nil || s.Contributions == nil || s.Redemptions == nil || s.Events == nil {
		return errors.New("all stores are required")
	}
	return nil
}

// Indexer is a pool.Observer writing every commit to Stores.
// Writes are ordered events, contributions, redemptions, account, so a
// stored account snapshot never points past rows that are missing.
type Indexer struct {
	stores   Stores
	database string
	logger   *zap.Logger
	metrics  *observability.Metrics
}

// New creates an Indexer. database labels DB metrics ("postgres", "memory").
func New(stores Stores, database string, logger *zap.Logger, metrics *observability.Metrics) (*Indexer, error) {
	if err := stores.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{stores: stores, database: database, logger: logger, metrics: metrics}, nil
}

var _ pool.Observer = (*Indexer)(nil)

// Apply writes one commit.
func (ix *Indexer) Apply(ctx context.Context, c pool.Commit) error {
	if len(c.Events) > 0 {
		events := make([]*domain.Event, len(c.Events))
		for i := range c.Events {
			events[i] = &c.Events[i]
		}
		if err := ix.track("insert_events", func() error {
			return ix.stores.Events.InsertBulk(ctx, events)
		}); err != nil {
			return err
		}
	}

	for i := range c.Contributions {
		contrib := &c.Contributions[i]
		if err := ix.track("upsert_contribution", func() error {
			return ix.stores.Contributions.Upsert(ctx, contrib)
		}); err != nil {
			return err
		}
	}

	if len(c.Redemptions) > 0 {
		records := make([]*domain.RedemptionRecord, len(c.Redemptions))
		for i := range c.Redemptions {
			records[i] = &c.Redemptions[i]
		}
		if err := ix.track("insert_redemptions", func() error {
			return ix.stores.Redemptions.InsertBulk(ctx, records)
		}); err != nil {
			return err
		}
	}

	account := c.Account
	return ix.track("upsert_account", func() error {
		return ix.stores.Accounts.Upsert(ctx, &account)
	})
}

// Sync brings the stores up to date with p's full history, writing only
// the events and redemptions the stores do not have yet. Used when an
// indexer is attached to a pool that already has history.
func (ix *Indexer) Sync(ctx context.Context, p *pool.Pool) error {
	stored, err := ix.stores.Events.GetByPool(ctx, p.ID())
	if err != nil {
		return fmt.Errorf("load stored events: %w", err)
	}
	storedRedemptions, err := ix.stores.Redemptions.GetByPool(ctx, p.ID())
	if err != nil {
		return fmt.Errorf("load stored redemptions: %w", err)
	}

	c := pool.Commit{
		Account:       p.Account(),
		Contributions: p.Contributions(),
	}
	if events := p.Events(); len(events) > len(stored) {
		c.Events = events[len(stored):]
	}
	if redemptions := p.Redemptions(); len(redemptions) > len(storedRedemptions) {
		c.Redemptions = redemptions[len(storedRedemptions):]
	}

	if err := ix.Apply(ctx, c); err != nil {
		return err
	}
	ix.logger.Info("indexer synced",
		zap.String("pool", p.ID()),
		zap.Int("events", len(c.Events)),
		zap.Int("redemptions", len(c.Redemptions)),
	)
	return nil
}

func (ix *Indexer) track(operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	if ix.metrics != nil {
		ix.metrics.RecordDBQuery(ix.database, operation, time.Since(start).Seconds(), err)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	return nil
}

// EventSink adapts an EventStore to an eventlog.Sink, for stores that only
// keep the event history (e.g. the ClickHouse analytics store).
func EventSink(store storage.EventStore) eventlog.SinkFunc {
	return func(ctx context.Context, events []domain.Event) error {
		batch := make([]*domain.Event, len(events))
		for i := range events {
			batch[i] = &events[i]
		}
		return store.InsertBulk(ctx, batch)
	}
}
