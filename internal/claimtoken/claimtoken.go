// Package claimtoken keeps the fungible claim-token balances of a pool.
package claimtoken

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"partybid/internal/domain"
)

// Token tracks balances and total supply. Not safe for concurrent use.
type Token struct {
	balances map[common.Address]*uint256.Int
	supply   *uint256.Int
}

// New returns a token with zero supply.
func New() *Token {
	return &Token{
		balances: make(map[common.Address]*uint256.Int),
		supply:   domain.Zero(),
	}
}

// Mint credits amount to holder.
func (t *Token) Mint(holder common.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return domain.ErrZeroAmount
	}
	supply, err := domain.CheckedAdd(t.supply, amount)
	if err != nil {
		return fmt.Errorf("mint: %w", err)
	}
	bal, err := domain.CheckedAdd(t.BalanceOf(holder), amount)
	if err != nil {
		return fmt.Errorf("mint: %w", err)
	}
	t.supply = supply
	t.balances[holder] = bal
	return nil
}

// Burn debits amount from holder.
func (t *Token) Burn(holder common.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return domain.ErrZeroAmount
	}
	bal := t.BalanceOf(holder)
	if bal.Lt(amount) {
		return fmt.Errorf("%w: balance %s, burn %s", domain.ErrInsufficientTokenBalance, bal.Dec(), amount.Dec())
	}
	supply, err := domain.CheckedSub(t.supply, amount)
	if err != nil {
		return fmt.Errorf("burn: %w", err)
	}
	t.supply = supply
	t.set(holder, bal.Sub(bal, amount))
	return nil
}

// Transfer moves amount from one holder to another.
func (t *Token) Transfer(from, to common.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return domain.ErrZeroAmount
	}
	fromBal := t.BalanceOf(from)
	if fromBal.Lt(amount) {
		return fmt.Errorf("%w: balance %s, transfer %s", domain.ErrInsufficientTokenBalance, fromBal.Dec(), amount.Dec())
	}
	if from == to {
		return nil
	}
	toBal, err := domain.CheckedAdd(t.BalanceOf(to), amount)
	if err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	t.set(from, fromBal.Sub(fromBal, amount))
	t.balances[to] = toBal
	return nil
}

func (t *Token) set(holder common.Address, bal *uint256.Int) {
	if bal.IsZero() {
		delete(t.balances, holder)
		return
	}
	t.balances[holder] = bal
}

// BalanceOf returns the balance of holder.
func (t *Token) BalanceOf(holder common.Address) *uint256.Int {
	return domain.CloneAmount(t.balances[holder])
}

// TotalSupply returns the outstanding supply.
func (t *Token) TotalSupply() *uint256.Int {
	return domain.CloneAmount(t.supply)
}

// Holders returns a copy of all non-zero balances.
func (t *Token) Holders() map[common.Address]*uint256.Int {
	out := make(map[common.Address]*uint256.Int, len(t.balances))
	for k, v := range t.balances {
		out[k] = domain.CloneAmount(v)
	}
	return out
}

// Clone returns a deep copy.
func (t *Token) Clone() *Token {
	return &Token{balances: t.Holders(), supply: t.TotalSupply()}
}

// CheckInvariants verifies that balances sum to the total supply.
func (t *Token) CheckInvariants() error {
	sum := domain.Zero()
	for holder, bal := range t.balances {
		if bal.IsZero() {
			return fmt.Errorf("zero balance kept for %s", holder.Hex())
		}
		var err error
		if sum, err = domain.CheckedAdd(sum, bal); err != nil {
			return err
		}
	}
	if !sum.Eq(t.supply) {
		return fmt.Errorf("balances sum %s != total supply %s", sum.Dec(), t.supply.Dec())
	}
	return nil
}
