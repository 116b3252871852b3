package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"

	"partybid/internal/domain"
	"partybid/internal/storage"
)

// RedemptionStore implements storage.RedemptionStore using PostgreSQL.
type RedemptionStore struct {
	pool *Pool
}

// NewRedemptionStore creates a new RedemptionStore.
func NewRedemptionStore(pool *Pool) *RedemptionStore {
	return &RedemptionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RedemptionStore = (*RedemptionStore)(nil)

const redemptionColumns = `
	redemption_id, pool_id, holder, tokens_burned::text, eth_paid::text, seq, timestamp_ms
`

// InsertBulk adds multiple records atomically. Fails entire batch on any duplicate.
func (s *RedemptionStore) InsertBulk(ctx context.Context, records []*domain.RedemptionRecord) error {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if r == nil || r.ID == "" || r.PoolID == "" || r.TokensBurned == nil || r.EthPaid == nil {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO redemptions (
			redemption_id, pool_id, holder, tokens_burned, eth_paid, seq, timestamp_ms
		) VALUES (
			$1, $2, $3, $4::text::numeric, $5::text::numeric, $6, $7
		)
	`

	for _, r := range records {
		_, err := tx.Exec(ctx, query,
			r.ID, r.PoolID, r.Holder.Hex(), wei(r.TokensBurned), wei(r.EthPaid), r.Seq, r.Timestamp,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert redemption in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByPool retrieves all redemptions of a pool, ordered by seq ASC.
func (s *RedemptionStore) GetByPool(ctx context.Context, poolID string) ([]*domain.RedemptionRecord, error) {
	return s.query(ctx, `
		SELECT `+redemptionColumns+`
		FROM redemptions
		WHERE pool_id = $1
		ORDER BY seq ASC
	`, poolID)
}

// GetByHolder retrieves one holder's redemptions, ordered by seq ASC.
func (s *RedemptionStore) GetByHolder(ctx context.Context, poolID string, holder common.Address) ([]*domain.RedemptionRecord, error) {
	return s.query(ctx, `
		SELECT `+redemptionColumns+`
		FROM redemptions
		WHERE pool_id = $1 AND holder = $2
		ORDER BY seq ASC
	`, poolID, holder.Hex())
}

func (s *RedemptionStore) query(ctx context.Context, query string, args ...any) ([]*domain.RedemptionRecord, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query redemptions: %w", err)
	}
	defer rows.Close()

	var result []*domain.RedemptionRecord
	for rows.Next() {
		r, err := scanRedemption(rows)
		if err != nil {
			return nil, fmt.Errorf("scan redemption: %w", err)
		}
		result = append(result, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate redemptions: %w", err)
	}

	return result, nil
}

func scanRedemption(row pgx.Row) (*domain.RedemptionRecord, error) {
	var r domain.RedemptionRecord
	var holder, burned, paid string
	err := row.Scan(&r.ID, &r.PoolID, &holder, &burned, &paid, &r.Seq, &r.Timestamp)
	if err != nil {
		return nil, err
	}
	r.Holder = common.HexToAddress(holder)
	if r.TokensBurned, err = parseWei("tokens_burned", burned); err != nil {
		return nil, err
	}
	if r.EthPaid, err = parseWei("eth_paid", paid); err != nil {
		return nil, err
	}
	return &r, nil
}
