package market

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"partybid/internal/domain"
)

// GatewayConfig describes the auction a pool participates in.
type GatewayConfig struct {
	Kind   Kind
	Market common.Address // auction house contract
	Target Target
	Self   common.Address // the pool's own address, used to recognise a win
}

// Validate checks the configuration for the selected market kind.
func (c GatewayConfig) Validate() error {
	if !c.Kind.IsValid() {
		return fmt.Errorf("unknown market kind %q", c.Kind)
	}
	if domain.IsZeroAddress(c.Market) {
		return errors.New("market address is required")
	}
	if domain.IsZeroAddress(c.Self) {
		return errors.New("pool address is required")
	}
	switch c.Kind {
	case KindZora, KindReserve:
		if c.Target.AuctionID == nil {
			return fmt.Errorf("%s market requires an auction id", c.Kind)
		}
	case KindColdie:
		if domain.IsZeroAddress(c.Target.NFTContract) || c.Target.TokenID == nil {
			return errors.New("coldie market requires nft contract and token id")
		}
	}
	return nil
}

// Gateway issues bids to the configured market and interprets its outcome.
// It holds no state of its own.
type Gateway struct {
	cfg    GatewayConfig
	market Market
	logger *zap.Logger
}

// NewGateway creates a gateway. A nil logger disables logging.
func NewGateway(cfg GatewayConfig, market Market, logger *zap.Logger) (*Gateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if market == nil {
		return nil, errors.New("market is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{cfg: cfg, market: market, logger: logger}, nil
}

// Config returns the gateway configuration.
func (g *Gateway) Config() GatewayConfig {
	return g.cfg
}

// BidCall builds the typed bid call for maxAmount.
func (g *Gateway) BidCall(maxAmount *uint256.Int) Call {
	switch g.cfg.Kind {
	case KindZora:
		return ZoraCreateBid{AuctionID: g.cfg.Target.AuctionID, Amount: maxAmount}
	case KindReserve:
		return ReserveAuctionPlaceBid{AuctionID: g.cfg.Target.AuctionID}
	default:
		return ColdieBid{NFTContract: g.cfg.Target.NFTContract, TokenID: g.cfg.Target.TokenID}
	}
}

// Bid submits a bid of maxAmount carrying maxAmount as value.
func (g *Gateway) Bid(ctx context.Context, maxAmount *uint256.Int) error {
	data, err := Encode(g.BidCall(maxAmount))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrExternalCallFailed, err)
	}
	tx := Transaction{From: g.cfg.Self, To: g.cfg.Market, Data: data, Value: domain.CloneAmount(maxAmount)}
	if err := g.market.Submit(ctx, tx); err != nil {
		g.logger.Debug("bid rejected by market",
			zap.String("market", g.cfg.Kind.String()),
			zap.String("amount", maxAmount.Dec()),
			zap.Error(err))
		return fmt.Errorf("%w: bid: %v", domain.ErrExternalCallFailed, err)
	}
	return nil
}

func (g *Gateway) status(ctx context.Context) (*AuctionStatus, error) {
	st, err := g.market.Auction(ctx, g.cfg.Market, g.cfg.Kind, g.cfg.Target)
	if err != nil {
		return nil, fmt.Errorf("%w: query auction: %v", domain.ErrExternalCallFailed, err)
	}
	if st == nil {
		return nil, fmt.Errorf("%w: empty auction status", domain.ErrExternalCallFailed)
	}
	return st, nil
}

// ObserveOutcome reads the auction state. It has no side effects.
// A winning price above maxAmount is treated as malformed market data.
func (g *Gateway) ObserveOutcome(ctx context.Context, maxAmount *uint256.Int) (domain.Outcome, error) {
	st, err := g.status(ctx)
	if err != nil {
		return domain.Outcome{}, err
	}
	if !st.Ended {
		return domain.Pending(), nil
	}
	if st.HighestBidder != g.cfg.Self {
		return domain.Lost(), nil
	}
	price := domain.CloneAmount(st.HighestBid)
	if price.Gt(domain.CloneAmount(maxAmount)) {
		return domain.Outcome{}, fmt.Errorf("%w: final price %s exceeds bid cap %s",
			domain.ErrExternalCallFailed, price.Dec(), domain.CloneAmount(maxAmount).Dec())
	}
	return domain.Won(price), nil
}

// Outbid reports whether the auction is still open and someone else holds
// the highest bid.
func (g *Gateway) Outbid(ctx context.Context) (bool, error) {
	st, err := g.status(ctx)
	if err != nil {
		return false, err
	}
	return !st.Ended && st.HighestBidder != g.cfg.Self, nil
}

// Call forwards an arbitrary call from the pool. Used by emergency controls.
func (g *Gateway) Call(ctx context.Context, target common.Address, data []byte, value *uint256.Int) error {
	tx := Transaction{From: g.cfg.Self, To: target, Data: data, Value: domain.CloneAmount(value)}
	if err := g.market.Submit(ctx, tx); err != nil {
		return fmt.Errorf("%w: call %s: %v", domain.ErrExternalCallFailed, target.Hex(), err)
	}
	return nil
}
