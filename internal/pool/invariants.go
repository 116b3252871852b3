package pool

import (
	"fmt"

	"partybid/internal/domain"
)

// CheckInvariants verifies the accounting identities of the committed state.
// It returns the first violation found.
func (p *Pool) CheckInvariants() error {
	var err error
	p.read(func(s *state) { err = s.checkInvariants() })
	return err
}

func (s *state) checkInvariants() error {
	if err := s.ledger.CheckInvariants(); err != nil {
		return fmt.Errorf("ledger: %w", err)
	}
	if err := s.token.CheckInvariants(); err != nil {
		return fmt.Errorf("claim token: %w", err)
	}

	total := s.ledger.TotalContributed()
	excess := s.ledger.ExcessContributions()

	if s.spent.Gt(total) {
		return fmt.Errorf("spent %s exceeds contributions %s", s.spent.Dec(), total.Dec())
	}
	if s.bidCap.Gt(total) {
		return fmt.Errorf("bid cap %s exceeds contributions %s", s.bidCap.Dec(), total.Dec())
	}
	if s.outcome.Kind == domain.OutcomeWon && s.outcome.Price.Gt(s.bidCap) {
		return fmt.Errorf("final price %s exceeds bid cap %s", s.outcome.Price.Dec(), s.bidCap.Dec())
	}

	// Currency conservation: what is held plus what left via emergency
	// withdrawal equals what is owed plus what sits in escrow.
	held, err := domain.CheckedAdd(s.ethBalance, s.withdrawn)
	if err != nil {
		return err
	}

	if s.phase != domain.StateFinalized {
		if !s.redeemable.IsZero() {
			return fmt.Errorf("redeemable balance %s before finalization", s.redeemable.Dec())
		}
		escrow := domain.Zero()
		if s.phase != domain.StateActive {
			escrow = s.bidCap
		}
		if held, err = domain.CheckedAdd(held, escrow); err != nil {
			return err
		}
		owed, err := domain.CheckedAdd(total, excess)
		if err != nil {
			return err
		}
		if !held.Eq(owed) {
			return fmt.Errorf("balance %s + withdrawn + escrow != contributions %s + excess %s",
				s.ethBalance.Dec(), total.Dec(), excess.Dec())
		}
		return nil
	}

	if !s.spent.Eq(s.outcome.SpentPrice()) {
		return fmt.Errorf("spent %s does not match outcome %s", s.spent.Dec(), s.outcome)
	}
	owed, err := domain.CheckedAdd(s.redeemable, excess)
	if err != nil {
		return err
	}
	if !held.Eq(owed) {
		return fmt.Errorf("balance %s + withdrawn %s != redeemable %s + excess %s",
			s.ethBalance.Dec(), s.withdrawn.Dec(), s.redeemable.Dec(), excess.Dec())
	}

	// Aggregate payouts never exceed the pool: redeemed + remaining equals
	// the leftover at finalization plus later deposits.
	leftover, err := domain.CheckedSub(total, s.spent)
	if err != nil {
		return err
	}
	funded, err := domain.CheckedAdd(leftover, s.deposited)
	if err != nil {
		return err
	}
	paid, err := domain.CheckedAdd(s.totalRedeemed, s.redeemable)
	if err != nil {
		return err
	}
	if !paid.Eq(funded) {
		return fmt.Errorf("redeemed %s + redeemable %s != leftover %s + deposited %s",
			s.totalRedeemed.Dec(), s.redeemable.Dec(), leftover.Dec(), s.deposited.Dec())
	}

	redeemed := domain.Zero()
	for _, r := range s.redemptions {
		if redeemed, err = domain.CheckedAdd(redeemed, r.EthPaid); err != nil {
			return err
		}
	}
	if !redeemed.Eq(s.totalRedeemed) {
		return fmt.Errorf("redemption records sum %s != total redeemed %s", redeemed.Dec(), s.totalRedeemed.Dec())
	}
	return nil
}
