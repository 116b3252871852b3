package pool

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"partybid/internal/domain"
)

// Contribute records a contribution and mints claim tokens to the contributor.
// Only Active pools accept pooled contributions. While Bidding, and only when
// AcceptLateContributions is set, the contribution is recorded as excess:
// no tokens are minted and it is refundable 1:1 after finalization.
func (p *Pool) Contribute(ctx context.Context, contributor common.Address, amount *uint256.Int) (domain.Contribution, error) {
	var out domain.Contribution
	err := p.run(ctx, "contribute", func(o *op) error {
		excess := false
		switch {
		case o.s.phase == domain.StateActive:
		case o.s.phase == domain.StateBidding && p.cfg.AcceptLateContributions:
			excess = true
		default:
			return fmt.Errorf("contribute in %s: %w", o.s.phase, domain.ErrInvalidState)
		}
		if amount == nil || amount.IsZero() {
			return domain.ErrZeroAmount
		}

		balance, err := domain.CheckedAdd(o.s.ethBalance, amount)
		if err != nil {
			return err
		}

		c, err := o.s.ledger.Record(contributor, amount, excess, o.now)
		if err != nil {
			return err
		}

		minted := domain.Zero()
		if !excess {
			if minted, err = domain.CheckedMul(amount, p.cfg.TokenScale); err != nil {
				return err
			}
			if err := o.s.token.Mint(contributor, minted); err != nil {
				return err
			}
		}
		o.s.ethBalance = balance

		o.contribs = append(o.contribs, c)
		o.emit(domain.EventContribution, contributor, amount, map[string]string{
			"contribution_id": c.ID,
			"seq":             strconv.FormatUint(c.Seq, 10),
			"excess":          strconv.FormatBool(excess),
			"tokens_minted":   minted.Dec(),
		})
		out = c
		return nil
	})
	return out, err
}
