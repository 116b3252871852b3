package clickhouse

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partybid/internal/domain"
	"partybid/internal/storage"
)

func TestEventStore_InsertAndQuery(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewEventStore(conn)

	alice := common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	huge := new(uint256.Int).SetAllOne()

	events := []*domain.Event{
		{ID: "e0", PoolID: "pool-1", Seq: 0, Kind: domain.EventContribution, Actor: alice, Amount: huge, State: domain.StateActive, Timestamp: 1},
		{ID: "e1", PoolID: "pool-1", Seq: 1, Kind: domain.EventBidPlaced, Amount: domain.Ether(1), State: domain.StateBidding,
			Attrs: map[string]string{"market": "zora"}, Timestamp: 2},
		{ID: "e2", PoolID: "pool-1", Seq: 2, Kind: domain.EventOutcomeObserved, State: domain.StateWon, Timestamp: 3},
	}
	require.NoError(t, store.InsertBulk(ctx, events))

	all, err := store.GetByPool(ctx, "pool-1")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].Amount.Eq(huge))
	assert.Equal(t, alice, all[0].Actor)
	assert.Equal(t, "zora", all[1].Attrs["market"])
	assert.True(t, all[2].Amount.IsZero())

	since, err := store.GetSince(ctx, "pool-1", 2)
	require.NoError(t, err)
	require.Len(t, since, 1)
	assert.Equal(t, domain.StateWon, since[0].State)

	bids, err := store.GetByKind(ctx, "pool-1", domain.EventBidPlaced)
	require.NoError(t, err)
	require.Len(t, bids, 1)
}

func TestEventStore_Duplicates(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewEventStore(conn)

	e := &domain.Event{ID: "e0", PoolID: "pool-1", Seq: 0, Kind: domain.EventContribution, Amount: domain.Ether(1), State: domain.StateActive}
	require.NoError(t, store.InsertBulk(ctx, []*domain.Event{e}))

	assert.ErrorIs(t, store.InsertBulk(ctx, []*domain.Event{e}), storage.ErrDuplicateKey)

	next := *e
	next.ID, next.Seq = "e1", 1
	assert.ErrorIs(t, store.InsertBulk(ctx, []*domain.Event{&next, &next}), storage.ErrDuplicateKey)

	all, err := store.GetByPool(ctx, "pool-1")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestParseDSN(t *testing.T) {
	opts, err := parseDSN("clickhouse://user:pw@db.local/analytics")
	require.NoError(t, err)
	assert.Equal(t, []string{"db.local:9000"}, opts.Addr)
	assert.Equal(t, "user", opts.Auth.Username)
	assert.Equal(t, "pw", opts.Auth.Password)
	assert.Equal(t, "analytics", opts.Auth.Database)

	_, err = parseDSN("postgres://localhost/x")
	assert.Error(t, err)
}

func TestMigrate_RequiresDatabase(t *testing.T) {
	_, err := Migrate(context.Background(), "clickhouse://localhost:9000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing database")
}
