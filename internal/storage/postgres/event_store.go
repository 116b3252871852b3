package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"

	"partybid/internal/domain"
	"partybid/internal/storage"
)

// EventStore implements storage.EventStore using PostgreSQL.
type EventStore struct {
	pool *Pool
}

// NewEventStore creates a new EventStore.
func NewEventStore(pool *Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.EventStore = (*EventStore)(nil)

const eventColumns = `
	event_id, pool_id, seq, kind, actor, amount::text, state, attrs, timestamp_ms
`

// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
func (s *EventStore) InsertBulk(ctx context.Context, events []*domain.Event) error {
	if len(events) == 0 {
		return nil
	}
	for _, e := range events {
		if e == nil || e.ID == "" || e.PoolID == "" || e.Kind == "" {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO pool_events (
			event_id, pool_id, seq, kind, actor, amount, state, attrs, timestamp_ms
		) VALUES (
			$1, $2, $3, $4, $5, $6::text::numeric, $7, $8, $9
		)
	`

	for _, e := range events {
		attrs := e.Attrs
		if attrs == nil {
			attrs = map[string]string{}
		}
		_, err := tx.Exec(ctx, query,
			e.ID, e.PoolID, e.Seq, string(e.Kind), e.Actor.Hex(), wei(e.Amount), string(e.State), attrs, e.Timestamp,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert event in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByPool retrieves all events of a pool, ordered by seq ASC.
func (s *EventStore) GetByPool(ctx context.Context, poolID string) ([]*domain.Event, error) {
	return s.GetSince(ctx, poolID, 0)
}

// GetSince retrieves events with seq >= since, ordered by seq ASC.
func (s *EventStore) GetSince(ctx context.Context, poolID string, since uint64) ([]*domain.Event, error) {
	return s.query(ctx, `
		SELECT `+eventColumns+`
		FROM pool_events
		WHERE pool_id = $1 AND seq >= $2
		ORDER BY seq ASC
	`, poolID, since)
}

// GetByKind retrieves events of one kind, ordered by seq ASC.
func (s *EventStore) GetByKind(ctx context.Context, poolID string, kind domain.EventKind) ([]*domain.Event, error) {
	return s.query(ctx, `
		SELECT `+eventColumns+`
		FROM pool_events
		WHERE pool_id = $1 AND kind = $2
		ORDER BY seq ASC
	`, poolID, string(kind))
}

func (s *EventStore) query(ctx context.Context, query string, args ...any) ([]*domain.Event, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var result []*domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		result = append(result, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	return result, nil
}

func scanEvent(row pgx.Row) (*domain.Event, error) {
	var e domain.Event
	var kind, actor, amount, state string
	err := row.Scan(&e.ID, &e.PoolID, &e.Seq, &kind, &actor, &amount, &state, &e.Attrs, &e.Timestamp)
	if err != nil {
		return nil, err
	}
	e.Kind = domain.EventKind(kind)
	e.Actor = common.HexToAddress(actor)
	e.State = domain.PoolState(state)
	if e.Amount, err = parseWei("amount", amount); err != nil {
		return nil, err
	}
	if len(e.Attrs) == 0 {
		e.Attrs = nil
	}
	return &e, nil
}
