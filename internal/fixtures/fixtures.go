// Package fixtures runs scripted pools against the simulated market so
// reports and dashboards can be produced without a live relay.
package fixtures

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"partybid/internal/domain"
	"partybid/internal/market"
	"partybid/internal/market/stub"
	"partybid/internal/observability"
	"partybid/internal/pool"
	"partybid/internal/storage/indexer"
)

// Fixed participants.
var (
	Admin  = common.HexToAddress("0x000000000000000000000000000000000000ad01")
	Alice  = common.HexToAddress("0x000000000000000000000000000000000000a11c")
	Bob    = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	Carol  = common.HexToAddress("0x000000000000000000000000000000000000ca01")
	Rival  = common.HexToAddress("0x000000000000000000000000000000000000f00d")
	Market = common.HexToAddress("0x000000000000000000000000000000000000ae01")
)

// Pool IDs created by Load.
const (
	WonPoolID  = "demo-won"
	LostPoolID = "demo-lost"
)

// Epoch is the clock every fixture pool starts from.
var Epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type script struct {
	id     string
	self   common.Address
	kind   market.Kind
	target market.Target
	run    func(ctx context.Context, p *pool.Pool, m *stub.Market) error
}

// Load runs every scripted pool to completion, indexing into stores.
func Load(ctx context.Context, stores indexer.Stores, logger *zap.Logger, metrics *observability.Metrics) ([]*pool.Pool, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ix, err := indexer.New(stores, "fixtures", logger, metrics)
	if err != nil {
		return nil, err
	}

	m := stub.New()
	scripts := []script{
		{
			id:     WonPoolID,
			self:   common.HexToAddress("0x000000000000000000000000000000000000b001"),
			kind:   market.KindZora,
			target: market.Target{AuctionID: uint256.NewInt(1)},
			run:    runWon,
		},
		{
			id:     LostPoolID,
			self:   common.HexToAddress("0x000000000000000000000000000000000000b002"),
			kind:   market.KindReserve,
			target: market.Target{AuctionID: uint256.NewInt(2)},
			run:    runLost,
		},
	}

	pools := make([]*pool.Pool, 0, len(scripts))
	for _, s := range scripts {
		m.Open(Market, s.kind, s.target, domain.Ether(1))
		gw, err := market.NewGateway(market.GatewayConfig{
			Kind:   s.kind,
			Market: Market,
			Target: s.target,
			Self:   s.self,
		}, m, logger)
		if err != nil {
			return nil, err
		}

		clock := Epoch
		p, err := pool.New(pool.Config{
			ID:                      s.id,
			Admin:                   Admin,
			AcceptLateContributions: true,
			Clock: func() time.Time {
				clock = clock.Add(time.Minute)
				return clock
			},
		}, gw, market.NewPayer(m, s.self), nil, logger, metrics)
		if err != nil {
			return nil, err
		}
		p.AddObserver("indexer", ix)

		if err := s.run(ctx, p, m); err != nil {
			return nil, fmt.Errorf("fixture %s: %w", s.id, err)
		}
		if err := p.CheckInvariants(); err != nil {
			return nil, fmt.Errorf("fixture %s: %w", s.id, err)
		}
		if err := ix.Sync(ctx, p); err != nil {
			return nil, fmt.Errorf("fixture %s: %w", s.id, err)
		}
		pools = append(pools, p)
	}
	return pools, nil
}

// runWon: 5 ETH raised, 4 ETH bid wins, 2 ETH resale deposited, Bob redeems.
func runWon(ctx context.Context, p *pool.Pool, m *stub.Market) error {
	for _, c := range []struct {
		who common.Address
		eth uint64
	}{{Alice, 3}, {Bob, 1}, {Carol, 1}} {
		if _, err := p.Contribute(ctx, c.who, domain.Ether(c.eth)); err != nil {
			return err
		}
	}
	if err := p.Bid(ctx, domain.Ether(4)); err != nil {
		return err
	}
	if err := m.End(Market, market.Target{AuctionID: uint256.NewInt(1)}); err != nil {
		return err
	}
	if _, err := p.ObserveOutcome(ctx); err != nil {
		return err
	}
	if _, err := p.Finalize(ctx); err != nil {
		return err
	}
	if err := p.Deposit(ctx, Admin, domain.Ether(2)); err != nil {
		return err
	}
	_, err := p.Redeem(ctx, Bob, p.BalanceOf(Bob))
	return err
}

// runLost: 3 ETH raised, outbid by a rival, Carol's late ETH refunded,
// Alice redeems half her tokens.
func runLost(ctx context.Context, p *pool.Pool, m *stub.Market) error {
	target := market.Target{AuctionID: uint256.NewInt(2)}
	if _, err := p.Contribute(ctx, Alice, domain.Ether(2)); err != nil {
		return err
	}
	if _, err := p.Contribute(ctx, Bob, domain.Ether(1)); err != nil {
		return err
	}
	if err := p.Bid(ctx, domain.Ether(3)); err != nil {
		return err
	}
	if _, err := p.Contribute(ctx, Carol, domain.Ether(1)); err != nil {
		return err
	}
	if err := m.PlaceRivalBid(Market, target, Rival, domain.Ether(5)); err != nil {
		return err
	}
	if err := m.End(Market, target); err != nil {
		return err
	}
	if _, err := p.ObserveOutcome(ctx); err != nil {
		return err
	}
	if _, err := p.Finalize(ctx); err != nil {
		return err
	}
	if _, err := p.RefundExcess(ctx, Carol); err != nil {
		return err
	}
	half := new(uint256.Int).Rsh(p.BalanceOf(Alice), 1)
	_, err := p.Redeem(ctx, Alice, half)
	return err
}
