package pool

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"partybid/internal/domain"
	"partybid/internal/idhash"
)

// RedeemAmount returns the currency paid for burning tokenAmount claim tokens:
// floor(redeemableEthBalance * tokenAmount / totalSupply), or zero when no
// tokens are outstanding. It reads the live balance, so tokens transferred
// after contributing redeem at the same rate.
func (p *Pool) RedeemAmount(tokenAmount *uint256.Int) (*uint256.Int, error) {
	var (
		out *uint256.Int
		err error
	)
	p.read(func(s *state) { out, err = redeemAmount(s, tokenAmount) })
	return out, err
}

func redeemAmount(s *state, tokenAmount *uint256.Int) (*uint256.Int, error) {
	supply := s.token.TotalSupply()
	if supply.IsZero() || tokenAmount == nil || tokenAmount.IsZero() {
		return domain.Zero(), nil
	}
	return domain.MulDivFloor(s.redeemable, tokenAmount, supply)
}

// Redeem burns tokenAmount of holder's claim tokens and pays out their share
// of the redeemable balance. Burning zero tokens returns an empty record and
// changes nothing.
func (p *Pool) Redeem(ctx context.Context, holder common.Address, tokenAmount *uint256.Int) (domain.RedemptionRecord, error) {
	var out domain.RedemptionRecord
	err := p.run(ctx, "redeem", func(o *op) error {
		if o.s.phase != domain.StateFinalized {
			return domain.ErrNotFinalized
		}
		if tokenAmount == nil || tokenAmount.IsZero() {
			out = domain.RedemptionRecord{
				PoolID:       p.cfg.ID,
				Holder:       holder,
				TokensBurned: domain.Zero(),
				EthPaid:      domain.Zero(),
				Timestamp:    o.now,
			}
			return nil
		}

		payout, err := redeemAmount(o.s, tokenAmount)
		if err != nil {
			return err
		}
		if err := o.s.token.Burn(holder, tokenAmount); err != nil {
			return err
		}
		if o.s.ethBalance.Lt(payout) {
			return fmt.Errorf("%w: payout %s exceeds balance %s", domain.ErrInsufficientFunds, payout.Dec(), o.s.ethBalance.Dec())
		}
		if o.s.redeemable, err = domain.CheckedSub(o.s.redeemable, payout); err != nil {
			return err
		}
		if o.s.totalRedeemed, err = domain.CheckedAdd(o.s.totalRedeemed, payout); err != nil {
			return err
		}
		o.s.ethBalance = new(uint256.Int).Sub(o.s.ethBalance, payout)

		seq := uint64(len(o.s.redemptions))
		rec := domain.RedemptionRecord{
			ID:           idhash.ComputeRedemptionID(p.cfg.ID, seq, holder.Hex()),
			PoolID:       p.cfg.ID,
			Holder:       holder,
			TokensBurned: domain.CloneAmount(tokenAmount),
			EthPaid:      payout,
			Seq:          seq,
			Timestamp:    o.now,
		}
		o.s.redemptions = append(o.s.redemptions, rec)
		o.redemptions = append(o.redemptions, rec.Clone())
		o.emit(domain.EventRedeemed, holder, payout, map[string]string{
			"redemption_id": rec.ID,
			"tokens_burned": tokenAmount.Dec(),
		})
		out = rec.Clone()

		if payout.IsZero() {
			return nil
		}
		return o.pay(holder, payout)
	})
	return out, err
}

// pay sends amount to the recipient as the last step of an operation.
func (o *op) pay(to common.Address, amount *uint256.Int) error {
	return o.external(func(ctx context.Context) error {
		if err := o.p.payer.Send(ctx, to, amount); err != nil {
			return fmt.Errorf("%w: pay %s to %s: %v", domain.ErrExternalCallFailed, amount.Dec(), to.Hex(), err)
		}
		return nil
	})
}

// RefundExcess pays contributor back every unrefunded excess contribution,
// 1:1. Returns zero when nothing is owed.
func (p *Pool) RefundExcess(ctx context.Context, contributor common.Address) (*uint256.Int, error) {
	out := domain.Zero()
	err := p.run(ctx, "refund_excess", func(o *op) error {
		if o.s.phase != domain.StateFinalized {
			return domain.ErrNotFinalized
		}
		before := o.s.ledger.Contributions()
		owed, err := o.s.ledger.MarkExcessRefunded(contributor)
		if err != nil {
			return err
		}
		if owed.IsZero() {
			return nil
		}
		if o.s.ethBalance.Lt(owed) {
			return fmt.Errorf("%w: refund %s exceeds balance %s", domain.ErrInsufficientFunds, owed.Dec(), o.s.ethBalance.Dec())
		}
		o.s.ethBalance = new(uint256.Int).Sub(o.s.ethBalance, owed)

		after := o.s.ledger.Contributions()
		for i := range after {
			if after[i].Refunded && !before[i].Refunded {
				o.contribs = append(o.contribs, after[i])
			}
		}
		o.emit(domain.EventExcessRefunded, contributor, owed, map[string]string{
			"contributions": strconv.Itoa(len(o.contribs)),
		})
		out = owed
		return o.pay(contributor, owed)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Deposit adds currency received after finalization, such as resale
// proceeds, to the redeemable balance.
func (p *Pool) Deposit(ctx context.Context, from common.Address, amount *uint256.Int) error {
	return p.run(ctx, "deposit", func(o *op) error {
		if o.s.phase != domain.StateFinalized {
			return fmt.Errorf("deposit in %s: %w", o.s.phase, domain.ErrInvalidState)
		}
		if amount == nil || amount.IsZero() {
			return domain.ErrZeroAmount
		}
		var err error
		if o.s.ethBalance, err = domain.CheckedAdd(o.s.ethBalance, amount); err != nil {
			return err
		}
		if o.s.redeemable, err = domain.CheckedAdd(o.s.redeemable, amount); err != nil {
			return err
		}
		if o.s.deposited, err = domain.CheckedAdd(o.s.deposited, amount); err != nil {
			return err
		}
		o.emit(domain.EventDeposit, from, amount, nil)
		return nil
	})
}

// TransferTokens moves claim tokens between holders.
func (p *Pool) TransferTokens(ctx context.Context, from, to common.Address, amount *uint256.Int) error {
	return p.run(ctx, "transfer_tokens", func(o *op) error {
		if err := o.s.token.Transfer(from, to, amount); err != nil {
			return err
		}
		if from == to {
			return nil
		}
		o.emit(domain.EventTokenTransfer, from, amount, map[string]string{"to": to.Hex()})
		return nil
	})
}
