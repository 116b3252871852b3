package storage

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"partybid/internal/domain"
)

// AccountStore keeps the latest committed snapshot of every pool.
type AccountStore interface {
	// Upsert stores a snapshot. A snapshot with a lower EventCount than the
	// stored one is ignored, so out-of-order writers cannot move a pool back.
	Upsert(ctx context.Context, a *domain.PoolAccount) error

	// Get retrieves the snapshot of a pool. Returns ErrNotFound if not exists.
	Get(ctx context.Context, poolID string) (*domain.PoolAccount, error)

	// List retrieves all snapshots ordered by pool ID.
	List(ctx context.Context) ([]*domain.PoolAccount, error)
}

// ContributionStore provides access to pool contributions.
type ContributionStore interface {
	// Upsert adds a contribution or, when the ID exists, updates its Refunded flag.
	// Every other field of a stored contribution is immutable.
	Upsert(ctx context.Context, c *domain.Contribution) error

	// GetByID retrieves a contribution. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.Contribution, error)

	// GetByPool retrieves all contributions of a pool, ordered by seq ASC.
	GetByPool(ctx context.Context, poolID string) ([]*domain.Contribution, error)

	// GetByContributor retrieves one contributor's contributions to a pool, ordered by seq ASC.
	GetByContributor(ctx context.Context, poolID string, contributor common.Address) ([]*domain.Contribution, error)
}

// RedemptionStore provides access to redemption records. Append-only.
type RedemptionStore interface {
	// InsertBulk adds multiple records atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, records []*domain.RedemptionRecord) error

	// GetByPool retrieves all redemptions of a pool, ordered by seq ASC.
	GetByPool(ctx context.Context, poolID string) ([]*domain.RedemptionRecord, error)

	// GetByHolder retrieves one holder's redemptions from a pool, ordered by seq ASC.
	GetByHolder(ctx context.Context, poolID string, holder common.Address) ([]*domain.RedemptionRecord, error)
}

// EventStore provides access to pool events. Append-only; (pool_id, seq) is unique.
type EventStore interface {
	// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, events []*domain.Event) error

	// GetByPool retrieves all events of a pool, ordered by seq ASC.
	GetByPool(ctx context.Context, poolID string) ([]*domain.Event, error)

	// GetSince retrieves events of a pool with seq >= since, ordered by seq ASC.
	GetSince(ctx context.Context, poolID string, since uint64) ([]*domain.Event, error)

	// GetByKind retrieves events of one kind, ordered by seq ASC.
	GetByKind(ctx context.Context, poolID string, kind domain.EventKind) ([]*domain.Event, error)
}
