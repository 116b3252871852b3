package domain

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func maxAmount() *uint256.Int {
	return new(uint256.Int).SetAllOne()
}

func TestCheckedArithmetic(t *testing.T) {
	tests := []struct {
		name    string
		fn      func(a, b *uint256.Int) (*uint256.Int, error)
		a, b    *uint256.Int
		want    uint64
		wantErr bool
	}{
		{name: "add", fn: CheckedAdd, a: NewAmount(2), b: NewAmount(3), want: 5},
		{name: "add overflow", fn: CheckedAdd, a: maxAmount(), b: NewAmount(1), wantErr: true},
		{name: "sub", fn: CheckedSub, a: NewAmount(5), b: NewAmount(3), want: 2},
		{name: "sub to zero", fn: CheckedSub, a: NewAmount(5), b: NewAmount(5), want: 0},
		{name: "sub underflow", fn: CheckedSub, a: NewAmount(3), b: NewAmount(5), wantErr: true},
		{name: "mul", fn: CheckedMul, a: NewAmount(6), b: NewAmount(7), want: 42},
		{name: "mul overflow", fn: CheckedMul, a: maxAmount(), b: NewAmount(2), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn(tt.a, tt.b)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrArithmeticOverflow))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Uint64())
		})
	}
}

func TestCheckedAdd_DoesNotMutateOperands(t *testing.T) {
	a, b := NewAmount(10), NewAmount(20)
	_, err := CheckedAdd(a, b)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), a.Uint64())
	assert.Equal(t, uint64(20), b.Uint64())
}

func TestMulDivFloor(t *testing.T) {
	got, err := MulDivFloor(NewAmount(20), NewAmount(30), NewAmount(60))
	require.NoError(t, err)
	assert.Equal(t, uint64(10), got.Uint64())

	got, err = MulDivFloor(NewAmount(10), NewAmount(1), NewAmount(3))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), got.Uint64(), "rounds down")

	// a*b exceeds 256 bits but the quotient fits.
	got, err = MulDivFloor(maxAmount(), maxAmount(), maxAmount())
	require.NoError(t, err)
	assert.True(t, got.Eq(maxAmount()))

	_, err = MulDivFloor(NewAmount(1), NewAmount(1), Zero())
	assert.ErrorIs(t, err, ErrArithmeticOverflow)

	_, err = MulDivFloor(maxAmount(), NewAmount(2), NewAmount(1))
	assert.ErrorIs(t, err, ErrArithmeticOverflow)
}

func TestEtherAndParse(t *testing.T) {
	assert.Equal(t, "1000000000000000000", Ether(1).Dec())
	assert.Equal(t, "40000000000000000000", Ether(40).Dec())

	v, err := ParseAmount("115792089237316195423570985008687907853269984665640564039457584007913129639935")
	require.NoError(t, err)
	assert.True(t, v.Eq(maxAmount()))

	_, err = ParseAmount("-1")
	assert.Error(t, err)
	_, err = ParseAmount("abc")
	assert.Error(t, err)
}

func TestCloneAmount(t *testing.T) {
	assert.True(t, CloneAmount(nil).IsZero())

	src := NewAmount(7)
	dst := CloneAmount(src)
	dst.AddUint64(dst, 1)
	assert.Equal(t, uint64(7), src.Uint64())
}

func TestParseAddress(t *testing.T) {
	a, err := ParseAddress("0x00000000000000000000000000000000000000aa")
	require.NoError(t, err)
	assert.False(t, IsZeroAddress(a))

	_, err = ParseAddress("not-an-address")
	assert.Error(t, err)

	zero, err := ParseAddress("0x0000000000000000000000000000000000000000")
	require.NoError(t, err)
	assert.True(t, IsZeroAddress(zero))
}
