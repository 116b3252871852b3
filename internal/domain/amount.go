package domain

import (
	"fmt"

	"github.com/holiman/uint256"
)

// WeiPerEther is the number of smallest units in one whole currency unit.
const WeiPerEther = 1_000_000_000_000_000_000

// Zero returns a fresh zero amount.
func Zero() *uint256.Int {
	return new(uint256.Int)
}

// NewAmount returns an amount holding v.
func NewAmount(v uint64) *uint256.Int {
	return uint256.NewInt(v)
}

// Ether returns n whole currency units expressed in wei.
func Ether(n uint64) *uint256.Int {
	out, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(n), uint256.NewInt(WeiPerEther))
	if overflow {
		panic("domain: ether amount overflows 256 bits")
	}
	return out
}

// ParseAmount parses a base-10 integer amount in the smallest unit.
func ParseAmount(s string) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return v, nil
}

// CloneAmount copies v, treating nil as zero.
func CloneAmount(v *uint256.Int) *uint256.Int {
	if v == nil {
		return Zero()
	}
	return new(uint256.Int).Set(v)
}

// CheckedAdd returns a+b or ErrArithmeticOverflow.
func CheckedAdd(a, b *uint256.Int) (*uint256.Int, error) {
	out, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		return nil, fmt.Errorf("%w: %s + %s", ErrArithmeticOverflow, a.Dec(), b.Dec())
	}
	return out, nil
}

// CheckedSub returns a-b or ErrArithmeticOverflow when b > a.
func CheckedSub(a, b *uint256.Int) (*uint256.Int, error) {
	out, underflow := new(uint256.Int).SubOverflow(a, b)
	if underflow {
		return nil, fmt.Errorf("%w: %s - %s", ErrArithmeticOverflow, a.Dec(), b.Dec())
	}
	return out, nil
}

// CheckedMul returns a*b or ErrArithmeticOverflow.
func CheckedMul(a, b *uint256.Int) (*uint256.Int, error) {
	out, overflow := new(uint256.Int).MulOverflow(a, b)
	if overflow {
		return nil, fmt.Errorf("%w: %s * %s", ErrArithmeticOverflow, a.Dec(), b.Dec())
	}
	return out, nil
}

// MulDivFloor returns floor(a*b/d) using a 512-bit intermediate product, so
// a*b may exceed 256 bits as long as the quotient fits. d must be non-zero.
func MulDivFloor(a, b, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, fmt.Errorf("%w: division by zero", ErrArithmeticOverflow)
	}
	out, overflow := new(uint256.Int).MulDivOverflow(a, b, d)
	if overflow {
		return nil, fmt.Errorf("%w: %s * %s / %s", ErrArithmeticOverflow, a.Dec(), b.Dec(), d.Dec())
	}
	return out, nil
}
