package fixtures

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"partybid/internal/domain"
	"partybid/internal/reporting"
	"partybid/internal/storage/indexer"
	"partybid/internal/storage/memory"
)

func TestLoad(t *testing.T) {
	ctx := context.Background()
	stores := indexer.Stores{
		Accounts:      memory.NewAccountStore(),
		Contributions: memory.NewContributionStore(),
		Redemptions:   memory.NewRedemptionStore(),
		Events:        memory.NewEventStore(),
	}

	pools, err := Load(ctx, stores, zaptest.NewLogger(t), nil)
	require.NoError(t, err)
	require.Len(t, pools, 2)

	won := pools[0]
	assert.Equal(t, domain.StateFinalized, won.State())
	acct := won.Account()
	assert.Equal(t, domain.OutcomeWon, acct.Outcome.Kind)
	assert.True(t, acct.TotalSpentOnBid.Eq(domain.Ether(4)))
	// 1 ETH left over plus 2 ETH deposited, Bob burns 1/5 of supply.
	redemptions := won.Redemptions()
	require.Len(t, redemptions, 1)
	assert.Equal(t, "600000000000000000", redemptions[0].EthPaid.Dec())

	lost := pools[1]
	assert.Equal(t, domain.StateFinalized, lost.State())
	assert.Equal(t, domain.OutcomeLost, lost.Account().Outcome.Kind)
	assert.True(t, lost.ExcessContributions().IsZero())

	stored, err := stores.Accounts.Get(ctx, LostPoolID)
	require.NoError(t, err)
	assert.Equal(t, lost.Account().EventCount, stored.EventCount)

	report, err := reporting.NewGenerator(stores.Accounts, stores.Contributions, stores.Redemptions).Generate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.PoolCount)
	assert.Empty(t, report.IntegrityErrors)
}
