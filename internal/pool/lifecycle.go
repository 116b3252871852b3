package pool

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"partybid/internal/domain"
)

// Bid submits maxAmount to the auction market. Legal in Active, or in
// Bidding once another bidder has overtaken the pool. The pool's state and
// escrow are updated before the market is called and restored if it rejects.
func (p *Pool) Bid(ctx context.Context, maxAmount *uint256.Int) error {
	return p.run(ctx, "bid", func(o *op) error {
		rebid := false
		switch o.s.phase {
		case domain.StateActive:
		case domain.StateBidding:
			var outbid bool
			err := o.external(func(ctx context.Context) error {
				var err error
				outbid, err = p.gateway.Outbid(ctx)
				return err
			})
			if err != nil {
				return err
			}
			if !outbid {
				return domain.ErrAlreadyBid
			}
			rebid = true
		default:
			return fmt.Errorf("bid in %s: %w", o.s.phase, domain.ErrInvalidState)
		}

		if maxAmount == nil || maxAmount.IsZero() {
			return domain.ErrZeroAmount
		}
		total := o.s.ledger.TotalContributed()
		if maxAmount.Gt(total) {
			return fmt.Errorf("%w: bid %s exceeds contributions %s", domain.ErrInsufficientFunds, maxAmount.Dec(), total.Dec())
		}

		// An overtaken bid has been returned by the market.
		available := domain.CloneAmount(o.s.ethBalance)
		if rebid {
			var err error
			if available, err = domain.CheckedAdd(available, o.s.bidCap); err != nil {
				return err
			}
		}
		if available.Lt(maxAmount) {
			return fmt.Errorf("%w: bid %s exceeds balance %s", domain.ErrInsufficientFunds, maxAmount.Dec(), available.Dec())
		}

		prevCap := domain.CloneAmount(o.s.bidCap)
		o.s.phase = domain.StateBidding
		o.s.bidCap = domain.CloneAmount(maxAmount)
		o.s.spent = domain.CloneAmount(maxAmount)
		o.s.ethBalance = available.Sub(available, maxAmount)
		o.emit(domain.EventBidPlaced, common.Address{}, maxAmount, map[string]string{
			"rebid":    fmt.Sprint(rebid),
			"previous": prevCap.Dec(),
		})

		return o.external(func(ctx context.Context) error {
			return p.gateway.Bid(ctx, maxAmount)
		})
	})
}

// ObserveOutcome polls the market while Bidding. A pending auction leaves
// the pool untouched. Once resolved the recorded outcome is returned
// without further market calls.
func (p *Pool) ObserveOutcome(ctx context.Context) (domain.Outcome, error) {
	var out domain.Outcome
	err := p.run(ctx, "observe_outcome", func(o *op) error {
		switch o.s.phase {
		case domain.StateWon, domain.StateLost, domain.StateFinalized:
			out = o.s.outcome.Clone()
			return nil
		case domain.StateBidding:
		default:
			return fmt.Errorf("observe outcome in %s: %w", o.s.phase, domain.ErrInvalidState)
		}

		var outcome domain.Outcome
		err := o.external(func(ctx context.Context) error {
			var err error
			outcome, err = p.gateway.ObserveOutcome(ctx, o.s.bidCap)
			return err
		})
		if err != nil {
			return err
		}

		switch outcome.Kind {
		case domain.OutcomePending:
			out = outcome
			return nil
		case domain.OutcomeWon:
			if outcome.Price.Gt(o.s.bidCap) {
				return fmt.Errorf("%w: final price %s exceeds bid cap %s", domain.ErrExternalCallFailed, outcome.Price.Dec(), o.s.bidCap.Dec())
			}
			o.s.phase = domain.StateWon
		case domain.OutcomeLost:
			o.s.phase = domain.StateLost
		default:
			return fmt.Errorf("%w: unknown outcome %q", domain.ErrExternalCallFailed, outcome.Kind)
		}

		o.s.outcome = outcome.Clone()
		o.emit(domain.EventOutcomeObserved, common.Address{}, outcome.SpentPrice(), map[string]string{
			"outcome": outcome.Kind.String(),
		})
		out = outcome.Clone()
		return nil
	})
	return out, err
}

// Finalize settles the bid: the spend is locked to the final price (zero if
// lost), the unspent escrow returns to the pool and the leftover pooled funds
// become redeemable. Calling it again returns the same account unchanged.
func (p *Pool) Finalize(ctx context.Context) (domain.PoolAccount, error) {
	err := p.run(ctx, "finalize", func(o *op) error {
		switch o.s.phase {
		case domain.StateFinalized:
			return nil
		case domain.StateWon, domain.StateLost:
		default:
			return fmt.Errorf("finalize in %s: %w", o.s.phase, domain.ErrInvalidState)
		}

		price := o.s.outcome.SpentPrice()
		refund, err := domain.CheckedSub(o.s.bidCap, price)
		if err != nil {
			return err
		}
		balance, err := domain.CheckedAdd(o.s.ethBalance, refund)
		if err != nil {
			return err
		}
		redeemable, err := domain.CheckedSub(o.s.ledger.TotalContributed(), price)
		if err != nil {
			return err
		}

		o.s.spent = price
		o.s.ethBalance = balance
		o.s.redeemable = redeemable
		o.s.phase = domain.StateFinalized

		o.emit(domain.EventFinalized, common.Address{}, redeemable, map[string]string{
			"outcome":         o.s.outcome.Kind.String(),
			"total_spent":     price.Dec(),
			"escrow_refunded": refund.Dec(),
		})
		p.logger.Info("pool finalized",
			zap.String("outcome", o.s.outcome.Kind.String()),
			zap.String("spent", price.Dec()),
			zap.String("redeemable", redeemable.Dec()))
		return nil
	})
	if err != nil {
		return domain.PoolAccount{}, err
	}
	return p.Account(), nil
}
