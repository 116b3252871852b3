package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"

	"partybid/internal/domain"
	"partybid/internal/storage"
)

// ContributionStore implements storage.ContributionStore using PostgreSQL.
type ContributionStore struct {
	pool *Pool
}

// NewContributionStore creates a new ContributionStore.
func NewContributionStore(pool *Pool) *ContributionStore {
	return &ContributionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ContributionStore = (*ContributionStore)(nil)

const contributionColumns = `
	contribution_id, pool_id, contributor, amount::text, seq, excess, refunded, timestamp_ms
`

// Upsert adds a contribution or updates the refunded flag of an existing one.
// A different contribution at an occupied (pool_id, seq) returns ErrDuplicateKey.
func (s *ContributionStore) Upsert(ctx context.Context, c *domain.Contribution) error {
	if c == nil || c.ID == "" || c.PoolID == "" || c.Amount == nil || c.Amount.IsZero() {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO contributions (
			contribution_id, pool_id, contributor, amount, seq, excess, refunded, timestamp_ms
		) VALUES (
			$1, $2, $3, $4::text::numeric, $5, $6, $7, $8
		)
		ON CONFLICT (contribution_id) DO UPDATE SET refunded = EXCLUDED.refunded
	`

	_, err := s.pool.Exec(ctx, query,
		c.ID, c.PoolID, c.Contributor.Hex(), wei(c.Amount), c.Seq, c.Excess, c.Refunded, c.Timestamp,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("upsert contribution: %w", err)
	}
	return nil
}

// GetByID retrieves a contribution. Returns ErrNotFound if not exists.
func (s *ContributionStore) GetByID(ctx context.Context, id string) (*domain.Contribution, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+contributionColumns+` FROM contributions WHERE contribution_id = $1`, id)

	c, err := scanContribution(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get contribution: %w", err)
	}
	return c, nil
}

// GetByPool retrieves all contributions of a pool, ordered by seq ASC.
func (s *ContributionStore) GetByPool(ctx context.Context, poolID string) ([]*domain.Contribution, error) {
	return s.query(ctx, `
		SELECT `+contributionColumns+`
		FROM contributions
		WHERE pool_id = $1
		ORDER BY seq ASC
	`, poolID)
}

// GetByContributor retrieves one contributor's contributions, ordered by seq ASC.
func (s *ContributionStore) GetByContributor(ctx context.Context, poolID string, contributor common.Address) ([]*domain.Contribution, error) {
	return s.query(ctx, `
		SELECT `+contributionColumns+`
		FROM contributions
		WHERE pool_id = $1 AND contributor = $2
		ORDER BY seq ASC
	`, poolID, contributor.Hex())
}

func (s *ContributionStore) query(ctx context.Context, query string, args ...any) ([]*domain.Contribution, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query contributions: %w", err)
	}
	defer rows.Close()

	var result []*domain.Contribution
	for rows.Next() {
		c, err := scanContribution(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contribution: %w", err)
		}
		result = append(result, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contributions: %w", err)
	}

	return result, nil
}

func scanContribution(row pgx.Row) (*domain.Contribution, error) {
	var c domain.Contribution
	var contributor, amount string
	err := row.Scan(&c.ID, &c.PoolID, &contributor, &amount, &c.Seq, &c.Excess, &c.Refunded, &c.Timestamp)
	if err != nil {
		return nil, err
	}
	c.Contributor = common.HexToAddress(contributor)
	if c.Amount, err = parseWei("amount", amount); err != nil {
		return nil, err
	}
	return &c, nil
}
