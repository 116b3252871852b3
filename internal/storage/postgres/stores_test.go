package postgres

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

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

func TestAccountStore_UpsertGetList(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewAccountStore(pool)

	huge := new(uint256.Int).SetAllOne()
	a := &domain.PoolAccount{
		PoolID:                "pool-1",
		State:                 domain.StateFinalized,
		TotalContributed:      domain.Ether(60),
		TotalSpentOnBid:       domain.Ether(40),
		ClaimTokenTotalSupply: huge,
		Outcome:               domain.Won(domain.Ether(40)),
		RedeemableEthBalance:  domain.Ether(20),
		EthBalance:            domain.Ether(20),
		ContributionCount:     3,
		EventCount:            7,
		UpdatedAt:             1700000000000,
	}
	require.NoError(t, store.Upsert(ctx, a))

	got, err := store.Get(ctx, "pool-1")
	require.NoError(t, err)
	assert.True(t, got.Equal(*a), "round trip changed the snapshot: %+v", got)
	assert.True(t, got.ClaimTokenTotalSupply.Eq(huge))

	// Older snapshot is ignored.
	stale := a.Clone()
	stale.State = domain.StateWon
	stale.EventCount = 5
	require.NoError(t, store.Upsert(ctx, &stale))
	got, err = store.Get(ctx, "pool-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateFinalized, got.State)

	second := &domain.PoolAccount{PoolID: "pool-0", State: domain.StateActive, Outcome: domain.Pending()}
	require.NoError(t, store.Upsert(ctx, second))

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "pool-0", list[0].PoolID)
	assert.Equal(t, "pool-1", list[1].PoolID)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestContributionStore_UpsertAndQuery(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewContributionStore(pool)

	contribs := []*domain.Contribution{
		{ID: "c0", PoolID: "pool-1", Contributor: alice, Amount: domain.Ether(1), Seq: 0, Timestamp: 1},
		{ID: "c1", PoolID: "pool-1", Contributor: bob, Amount: domain.Ether(2), Seq: 1, Timestamp: 2},
		{ID: "c2", PoolID: "pool-1", Contributor: alice, Amount: domain.Ether(3), Seq: 2, Excess: true, Timestamp: 3},
	}
	for _, c := range contribs {
		require.NoError(t, store.Upsert(ctx, c))
	}

	all, err := store.GetByPool(ctx, "pool-1")
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, c := range all {
		assert.Equal(t, uint64(i), c.Seq)
	}

	mine, err := store.GetByContributor(ctx, "pool-1", alice)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.True(t, mine[1].Excess)
	assert.True(t, mine[1].Amount.Eq(domain.Ether(3)))

	refunded := *contribs[2]
	refunded.Refunded = true
	require.NoError(t, store.Upsert(ctx, &refunded))

	got, err := store.GetByID(ctx, "c2")
	require.NoError(t, err)
	assert.True(t, got.Refunded)

	clash := &domain.Contribution{ID: "other", PoolID: "pool-1", Contributor: bob, Amount: domain.Ether(1), Seq: 0}
	assert.ErrorIs(t, store.Upsert(ctx, clash), storage.ErrDuplicateKey)

	_, err = store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRedemptionStore_InsertBulkIsAtomic(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRedemptionStore(pool)

	r0 := &domain.RedemptionRecord{ID: "r0", PoolID: "pool-1", Holder: alice, TokensBurned: domain.Ether(10), EthPaid: domain.Ether(2), Seq: 0}
	r1 := &domain.RedemptionRecord{ID: "r1", PoolID: "pool-1", Holder: bob, TokensBurned: domain.Ether(20), EthPaid: domain.Ether(4), Seq: 1}
	require.NoError(t, store.InsertBulk(ctx, []*domain.RedemptionRecord{r0}))

	err := store.InsertBulk(ctx, []*domain.RedemptionRecord{r1, r0})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	all, err := store.GetByPool(ctx, "pool-1")
	require.NoError(t, err)
	require.Len(t, all, 1, "failed batch must roll back")

	require.NoError(t, store.InsertBulk(ctx, []*domain.RedemptionRecord{r1}))
	bobs, err := store.GetByHolder(ctx, "pool-1", bob)
	require.NoError(t, err)
	require.Len(t, bobs, 1)
	assert.True(t, bobs[0].EthPaid.Eq(domain.Ether(4)))
	assert.Equal(t, bob, bobs[0].Holder)
}

func TestEventStore_InsertAndQuery(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewEventStore(pool)

	events := []*domain.Event{
		{ID: "e0", PoolID: "pool-1", Seq: 0, Kind: domain.EventContribution, Actor: alice, Amount: domain.Ether(1), State: domain.StateActive},
		{ID: "e1", PoolID: "pool-1", Seq: 1, Kind: domain.EventBidPlaced, Amount: domain.Ether(1), State: domain.StateBidding,
			Attrs: map[string]string{"market": "zora"}},
		{ID: "e2", PoolID: "pool-1", Seq: 2, Kind: domain.EventOutcomeObserved, Amount: domain.Zero(), State: domain.StateLost},
	}
	require.NoError(t, store.InsertBulk(ctx, events))

	all, err := store.GetByPool(ctx, "pool-1")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, alice, all[0].Actor)
	assert.Equal(t, "zora", all[1].Attrs["market"])
	assert.Nil(t, all[0].Attrs)

	since, err := store.GetSince(ctx, "pool-1", 1)
	require.NoError(t, err)
	require.Len(t, since, 2)
	assert.Equal(t, uint64(1), since[0].Seq)

	bids, err := store.GetByKind(ctx, "pool-1", domain.EventBidPlaced)
	require.NoError(t, err)
	require.Len(t, bids, 1)
	assert.Equal(t, domain.StateBidding, bids[0].State)

	dup := *events[2]
	dup.ID = "e2-again"
	assert.ErrorIs(t, store.InsertBulk(ctx, []*domain.Event{&dup}), storage.ErrDuplicateKey)
}
