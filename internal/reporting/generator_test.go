package reporting

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partybid/internal/domain"
	"partybid/internal/storage/memory"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

func setupTestData(t *testing.T) *Generator {
	t.Helper()
	ctx := context.Background()

	accounts := memory.NewAccountStore()
	contributions := memory.NewContributionStore()
	redemptions := memory.NewRedemptionStore()

	// 1 + 3 ETH pooled, 0.5 ETH late and refunded; won at 2 ETH; bob redeemed half his tokens.
	contribs := []*domain.Contribution{
		{ID: "c0", PoolID: "pool-a", Contributor: alice, Amount: domain.Ether(1), Seq: 0},
		{ID: "c1", PoolID: "pool-a", Contributor: bob, Amount: domain.Ether(3), Seq: 1},
		{ID: "c2", PoolID: "pool-a", Contributor: alice, Amount: domain.NewAmount(5e17), Seq: 2, Excess: true, Refunded: true},
	}
	for _, c := range contribs {
		require.NoError(t, contributions.Upsert(ctx, c))
	}
	require.NoError(t, redemptions.InsertBulk(ctx, []*domain.RedemptionRecord{
		{ID: "r0", PoolID: "pool-a", Holder: bob, TokensBurned: domain.NewAmount(15e17), EthPaid: domain.NewAmount(75e16), Seq: 0},
	}))

	require.NoError(t, accounts.Upsert(ctx, &domain.PoolAccount{
		PoolID:                "pool-a",
		State:                 domain.StateFinalized,
		TotalContributed:      domain.Ether(4),
		TotalSpentOnBid:       domain.Ether(2),
		ClaimTokenTotalSupply: domain.NewAmount(25e17),
		Outcome:               domain.Won(domain.Ether(2)),
		RedeemableEthBalance:  domain.NewAmount(125e16),
		ExcessContributions:   domain.Zero(),
		EthBalance:            domain.NewAmount(125e16),
		TotalRedeemed:         domain.NewAmount(75e16),
		ContributionCount:     3,
		RedemptionCount:       1,
		UpdatedAt:             1700000000000,
	}))
	require.NoError(t, accounts.Upsert(ctx, &domain.PoolAccount{
		PoolID:           "pool-b",
		State:            domain.StateActive,
		TotalContributed: domain.Ether(1), // no contribution rows: integrity error
		Outcome:          domain.Pending(),
	}))

	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return NewGenerator(accounts, contributions, redemptions).WithClock(func() time.Time { return fixed })
}

func TestGenerator_Generate(t *testing.T) {
	r, err := setupTestData(t).Generate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, r.PoolCount)
	require.Len(t, r.Pools, 2)

	a := r.Pools[0]
	assert.Equal(t, "pool-a", a.PoolID)
	assert.Equal(t, "FINALIZED", a.State)
	assert.Equal(t, "4", a.TotalContributed.String())
	assert.Equal(t, "1.25", a.Redeemable.String())
	assert.Equal(t, "0.75", a.TotalRedeemed.String())
	assert.Equal(t, 2, a.Contributors)
	assert.Equal(t, 3, a.Contributions)
	assert.Equal(t, 1, a.Redemptions)

	require.Len(t, r.Contributors, 2)
	var aliceRow, bobRow ContributorRow
	for _, c := range r.Contributors {
		switch c.Contributor {
		case alice.Hex():
			aliceRow = c
		case bob.Hex():
			bobRow = c
		}
	}
	assert.Equal(t, "1", aliceRow.Contributed.String())
	assert.Equal(t, "0.5", aliceRow.Excess.String())
	assert.Equal(t, "0.5", aliceRow.Refunded.String())
	assert.Equal(t, "1.5", bobRow.TokensBurned.String())
	assert.Equal(t, "0.75", bobRow.Redeemed.String())

	require.Len(t, r.IntegrityErrors, 1)
	assert.Contains(t, r.IntegrityErrors[0], "pool-b: total_contributed")
}

func TestRenderMarkdown(t *testing.T) {
	r, err := setupTestData(t).Generate(context.Background())
	require.NoError(t, err)

	md := RenderMarkdown(r)
	assert.Contains(t, md, "Generated: 2026-01-02T03:04:05Z")
	assert.Contains(t, md, "| pool-a | FINALIZED | WON{2000000000000000000} | 4 | 2 | 1.25 |")
	assert.Contains(t, md, "| **Total** | | | 5 |")
	assert.Contains(t, md, "## Integrity")
	assert.Contains(t, md, "- pool-b:")

	empty := RenderMarkdown(&Report{})
	assert.Contains(t, empty, "No pools indexed.")
	assert.Contains(t, empty, "Stored rows agree with every account snapshot.")
}

func TestRenderCSV(t *testing.T) {
	r, err := setupTestData(t).Generate(context.Background())
	require.NoError(t, err)

	pools := strings.Split(strings.TrimSpace(RenderPoolsCSV(r.Pools)), "\n")
	require.Len(t, pools, 3)
	assert.True(t, strings.HasPrefix(pools[0], "pool_id,state,outcome,"))
	assert.Equal(t, "pool-a,FINALIZED,WON{2000000000000000000},4,2,1.25,0,1.25,0.75,2,3,1,1700000000000", pools[1])

	contributors := strings.Split(strings.TrimSpace(RenderContributorsCSV(r.Contributors)), "\n")
	require.Len(t, contributors, 3)
	assert.Equal(t, "pool_id,contributor,contributed,excess,refunded,tokens_burned,redeemed", contributors[0])
}

func TestEth(t *testing.T) {
	assert.Equal(t, "0", Eth(nil).String())
	assert.Equal(t, "0.000000000000000001", Eth(domain.NewAmount(1)).String())
	assert.Equal(t, "12.5", Eth(domain.NewAmount(125e17)).String())
}
