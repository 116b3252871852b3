package market_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"partybid/internal/domain"
	"partybid/internal/market"
	"partybid/internal/market/stub"
)

var (
	marketAddr = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	poolAddr   = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	nftAddr    = common.HexToAddress("0x00000000000000000000000000000000000000cc")
	rival      = common.HexToAddress("0x00000000000000000000000000000000000000dd")
)

func setup(t *testing.T, kind market.Kind) (*market.Gateway, *stub.Market, market.Target) {
	t.Helper()
	target := market.Target{AuctionID: uint256.NewInt(1)}
	if kind == market.KindColdie {
		target = market.Target{NFTContract: nftAddr, TokenID: uint256.NewInt(42)}
	}
	m := stub.New()
	m.Open(marketAddr, kind, target, domain.NewAmount(10))

	gw, err := market.NewGateway(market.GatewayConfig{
		Kind:   kind,
		Market: marketAddr,
		Target: target,
		Self:   poolAddr,
	}, m, zaptest.NewLogger(t))
	require.NoError(t, err)
	return gw, m, target
}

func TestGateway_BidAndWin(t *testing.T) {
	for _, kind := range []market.Kind{market.KindZora, market.KindReserve, market.KindColdie} {
		t.Run(kind.String(), func(t *testing.T) {
			ctx := context.Background()
			gw, m, target := setup(t, kind)

			require.NoError(t, gw.Bid(ctx, domain.NewAmount(40)))

			out, err := gw.ObserveOutcome(ctx, domain.NewAmount(40))
			require.NoError(t, err)
			assert.Equal(t, domain.OutcomePending, out.Kind)

			require.NoError(t, m.End(marketAddr, target))

			out, err = gw.ObserveOutcome(ctx, domain.NewAmount(40))
			require.NoError(t, err)
			assert.Equal(t, domain.OutcomeWon, out.Kind)
			assert.Equal(t, uint64(40), out.Price.Uint64())

			txs := m.Submitted()
			require.Len(t, txs, 1)
			assert.Equal(t, uint64(40), txs[0].Value.Uint64())
			assert.Equal(t, poolAddr, txs[0].From)
		})
	}
}

func TestGateway_Lost(t *testing.T) {
	ctx := context.Background()
	gw, m, target := setup(t, market.KindZora)

	require.NoError(t, gw.Bid(ctx, domain.NewAmount(40)))
	require.NoError(t, m.PlaceRivalBid(marketAddr, target, rival, domain.NewAmount(50)))

	outbid, err := gw.Outbid(ctx)
	require.NoError(t, err)
	assert.True(t, outbid)

	require.NoError(t, m.End(marketAddr, target))

	outbid, err = gw.Outbid(ctx)
	require.NoError(t, err)
	assert.False(t, outbid, "ended auctions cannot be outbid")

	out, err := gw.ObserveOutcome(ctx, domain.NewAmount(40))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeLost, out.Kind)
}

func TestGateway_BidRejected(t *testing.T) {
	ctx := context.Background()
	gw, m, _ := setup(t, market.KindReserve)

	err := gw.Bid(ctx, domain.NewAmount(5)) // below reserve
	assert.ErrorIs(t, err, domain.ErrExternalCallFailed)

	m.FailNextSubmit(errors.New("reverted"))
	err = gw.Bid(ctx, domain.NewAmount(40))
	assert.ErrorIs(t, err, domain.ErrExternalCallFailed)
	assert.Empty(t, m.Submitted())
}

func TestGateway_ObserveOutcome_Malformed(t *testing.T) {
	ctx := context.Background()
	gw, m, target := setup(t, market.KindZora)

	require.NoError(t, gw.Bid(ctx, domain.NewAmount(40)))
	require.NoError(t, m.End(marketAddr, target))

	_, err := gw.ObserveOutcome(ctx, domain.NewAmount(30))
	assert.ErrorIs(t, err, domain.ErrExternalCallFailed, "price above cap")

	m.AuctionErr = errors.New("node down")
	_, err = gw.ObserveOutcome(ctx, domain.NewAmount(40))
	assert.ErrorIs(t, err, domain.ErrExternalCallFailed)
}

func TestGateway_Call(t *testing.T) {
	ctx := context.Background()
	gw, m, _ := setup(t, market.KindZora)
	other := common.HexToAddress("0x00000000000000000000000000000000000000ee")

	require.NoError(t, gw.Call(ctx, other, []byte{0x01, 0x02}, nil))
	txs := m.Submitted()
	require.Len(t, txs, 1)
	assert.Equal(t, other, txs[0].To)
	assert.True(t, txs[0].Value.IsZero())

	m.FailNextSubmit(errors.New("reverted"))
	assert.ErrorIs(t, gw.Call(ctx, other, nil, nil), domain.ErrExternalCallFailed)
}

func TestStub_CreateAuctionCalls(t *testing.T) {
	ctx := context.Background()
	m := stub.New()
	m.Open(marketAddr, market.KindColdie, market.Target{NFTContract: nftAddr, TokenID: uint256.NewInt(1)}, nil)

	data, err := market.Encode(market.ColdieCreateAuction{
		NFTContract:  nftAddr,
		TokenID:      uint256.NewInt(2),
		ReservePrice: uint256.NewInt(3),
		Length:       uint256.NewInt(6500),
	})
	require.NoError(t, err)
	require.NoError(t, m.Submit(ctx, market.Transaction{From: rival, To: marketAddr, Data: data}))

	a, err := m.Get(marketAddr, market.Target{NFTContract: nftAddr, TokenID: uint256.NewInt(2)})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), a.Reserve.Uint64())
	assert.False(t, a.Ended)
}
