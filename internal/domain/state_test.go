package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoolState_CanTransition(t *testing.T) {
	tests := []struct {
		from, to PoolState
		want     bool
	}{
		{StateActive, StateBidding, true},
		{StateActive, StateLost, true},
		{StateBidding, StateBidding, true},
		{StateBidding, StateWon, true},
		{StateBidding, StateLost, true},
		{StateWon, StateFinalized, true},
		{StateLost, StateFinalized, true},
		{StateBidding, StateActive, false},
		{StateWon, StateLost, false},
		{StateFinalized, StateActive, false},
		{StateFinalized, StateFinalized, false},
		{StateActive, PoolState("BOGUS"), false},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestParsePoolState(t *testing.T) {
	for _, s := range []PoolState{StateActive, StateBidding, StateWon, StateLost, StateFinalized} {
		got, err := ParsePoolState(s.String())
		assert.NoError(t, err)
		assert.Equal(t, s, got)
	}

	_, err := ParsePoolState("active")
	assert.Error(t, err)
}

func TestOutcome(t *testing.T) {
	assert.False(t, Pending().Resolved())
	assert.True(t, Lost().Resolved())

	price := NewAmount(40)
	won := Won(price)
	price.SetUint64(1)
	assert.Equal(t, uint64(40), won.Price.Uint64(), "won copies the price")
	assert.Equal(t, uint64(40), won.SpentPrice().Uint64())
	assert.True(t, Lost().SpentPrice().IsZero())
	assert.Equal(t, "WON{40}", won.String())
}
