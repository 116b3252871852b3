package keeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"partybid/internal/domain"
	"partybid/internal/market"
	"partybid/internal/market/stub"
	"partybid/internal/observability"
	"partybid/internal/pool"
)

var (
	admin      = common.HexToAddress("0x00000000000000000000000000000000000000ad")
	poolAddr   = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	marketAddr = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	alice      = common.HexToAddress("0x00000000000000000000000000000000000000a1")
)

type harness struct {
	keeper   *Keeper
	registry *pool.Registry
	market   *stub.Market
	metrics  *observability.Metrics
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics("test", reg)
	registry := pool.NewRegistry()

	k, err := New(Options{Registry: registry, Interval: 10 * time.Millisecond, Logger: zaptest.NewLogger(t), Metrics: metrics})
	require.NoError(t, err)
	k.now = func() time.Time { return time.Unix(1700000000, 0) }

	return &harness{keeper: k, registry: registry, market: stub.New(), metrics: metrics}
}

// addBiddingPool registers a pool that contributed 10 wei and bid 10 on auction id.
func (h *harness) addBiddingPool(t *testing.T, id string, auction uint64) (*pool.Pool, market.Target) {
	t.Helper()
	target := market.Target{AuctionID: uint256.NewInt(auction)}
	h.market.Open(marketAddr, market.KindZora, target, domain.NewAmount(1))

	logger := zaptest.NewLogger(t)
	gw, err := market.NewGateway(market.GatewayConfig{Kind: market.KindZora, Market: marketAddr, Target: target, Self: poolAddr}, h.market, logger)
	require.NoError(t, err)
	p, err := pool.New(pool.Config{ID: id, Admin: admin}, gw, market.NewPayer(h.market, poolAddr), nil, logger, h.metrics)
	require.NoError(t, err)
	require.NoError(t, h.registry.Add(p))

	ctx := context.Background()
	_, err = p.Contribute(ctx, alice, domain.NewAmount(10))
	require.NoError(t, err)
	require.NoError(t, p.Bid(ctx, domain.NewAmount(10)))
	return p, target
}

func TestNew_RequiresRegistry(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestPoll_DrivesPoolToFinalized(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p, target := h.addBiddingPool(t, "pool-1", 1)

	result, err := h.keeper.Poll(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, ResultPending, result)
	assert.Equal(t, domain.StateBidding, p.State())

	require.NoError(t, h.market.End(marketAddr, target))

	result, err = h.keeper.Poll(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, ResultResolved, result)
	assert.Equal(t, domain.StateWon, p.State())

	result, err = h.keeper.Poll(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, ResultFinalized, result)
	assert.Equal(t, domain.StateFinalized, p.State())

	result, err = h.keeper.Poll(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, ResultIdle, result)

	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.KeeperPolls.WithLabelValues(ResultPending)))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.KeeperPolls.WithLabelValues(ResultFinalized)))
}

func TestPoll_LostAuction(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p, target := h.addBiddingPool(t, "pool-1", 1)

	require.NoError(t, h.market.PlaceRivalBid(marketAddr, target, common.HexToAddress("0xdd"), domain.NewAmount(50)))
	require.NoError(t, h.market.End(marketAddr, target))

	_, err := h.keeper.Poll(ctx, p)
	require.NoError(t, err)
	_, err = h.keeper.Poll(ctx, p)
	require.NoError(t, err)

	account := p.Account()
	assert.Equal(t, domain.StateFinalized, account.State)
	assert.Equal(t, "10", account.RedeemableEthBalance.Dec())
}

func TestPollAll_CountsFailuresAndKeepsGoing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, _ = h.addBiddingPool(t, "pool-a", 1)
	good, target := h.addBiddingPool(t, "pool-b", 2)
	require.NoError(t, h.market.End(marketAddr, target))

	h.market.AuctionErr = errors.New("rpc down")
	assert.Equal(t, 2, h.keeper.PollAll(ctx))
	assert.Equal(t, 0.0, testutil.ToFloat64(h.metrics.LastSuccessfulPoll))
	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.KeeperPolls.WithLabelValues(ResultError)))

	h.market.AuctionErr = nil
	assert.Equal(t, 0, h.keeper.PollAll(ctx))
	assert.Equal(t, domain.StateWon, good.State())
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(h.metrics.LastSuccessfulPoll))
}

func TestRun_StopsOnCancel(t *testing.T) {
	h := newHarness(t)
	p, target := h.addBiddingPool(t, "pool-1", 1)
	require.NoError(t, h.market.End(marketAddr, target))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.keeper.Run(ctx) }()

	require.Eventually(t, func() bool {
		return p.State() == domain.StateFinalized
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("keeper did not stop")
	}
}
