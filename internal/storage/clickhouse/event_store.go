package clickhouse

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"partybid/internal/domain"
	"partybid/internal/storage"
)

// EventStore implements storage.EventStore using ClickHouse.
// MergeTree does not enforce uniqueness, so duplicates are checked before insert.
type EventStore struct {
	conn *Conn
}

// NewEventStore creates a new EventStore.
func NewEventStore(conn *Conn) *EventStore {
	return &EventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.EventStore = (*EventStore)(nil)

const eventColumns = `pool_id, seq, event_id, kind, actor, amount, state, attrs, timestamp_ms`

// InsertBulk adds multiple events. Fails entire batch on duplicate.
func (s *EventStore) InsertBulk(ctx context.Context, events []*domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		poolID string
		seq    uint64
	}
	seen := make(map[key]struct{}, len(events))
	for _, e := range events {
		if e == nil || e.ID == "" || e.PoolID == "" || e.Kind == "" {
			return storage.ErrInvalidInput
		}
		k := key{e.PoolID, e.Seq}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Check for duplicates against existing rows
	for _, e := range events {
		exists, err := s.exists(ctx, e.PoolID, e.Seq)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO pool_events (`+eventColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, e := range events {
		attrs := e.Attrs
		if attrs == nil {
			attrs = map[string]string{}
		}
		err = batch.Append(
			e.PoolID, e.Seq, e.ID, string(e.Kind), e.Actor.Hex(),
			domain.CloneAmount(e.Amount).ToBig(), string(e.State), attrs, e.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByPool retrieves all events of a pool, ordered by seq ASC.
func (s *EventStore) GetByPool(ctx context.Context, poolID string) ([]*domain.Event, error) {
	return s.GetSince(ctx, poolID, 0)
}

// GetSince retrieves events with seq >= since, ordered by seq ASC.
func (s *EventStore) GetSince(ctx context.Context, poolID string, since uint64) ([]*domain.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM pool_events
		WHERE pool_id = ? AND seq >= ?
		ORDER BY seq ASC
	`

	rows, err := s.conn.Query(ctx, query, poolID, since)
	if err != nil {
		return nil, fmt.Errorf("query events since: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// GetByKind retrieves events of one kind, ordered by seq ASC.
func (s *EventStore) GetByKind(ctx context.Context, poolID string, kind domain.EventKind) ([]*domain.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM pool_events
		WHERE pool_id = ? AND kind = ?
		ORDER BY seq ASC
	`

	rows, err := s.conn.Query(ctx, query, poolID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("query events by kind: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// exists checks if an event with the given key exists.
func (s *EventStore) exists(ctx context.Context, poolID string, seq uint64) (bool, error) {
	query := `SELECT count(*) FROM pool_events WHERE pool_id = ? AND seq = ?`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, poolID, seq).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanEvents(rows chRows) ([]*domain.Event, error) {
	var events []*domain.Event

	for rows.Next() {
		var e domain.Event
		var kind, actor, state string
		var amount big.Int

		err := rows.Scan(&e.PoolID, &e.Seq, &e.ID, &kind, &actor, &amount, &state, &e.Attrs, &e.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}

		v, overflow := uint256.FromBig(&amount)
		if overflow {
			return nil, fmt.Errorf("event %s amount overflows uint256", e.ID)
		}
		e.Amount = v
		e.Kind = domain.EventKind(kind)
		e.Actor = common.HexToAddress(actor)
		e.State = domain.PoolState(state)
		if len(e.Attrs) == 0 {
			e.Attrs = nil
		}
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event rows: %w", err)
	}

	return events, nil
}
