package domain

import "fmt"

// PoolState is the lifecycle stage of a pool.
// Transitions are monotonic: Active → Bidding → {Won, Lost} → Finalized.
type PoolState string

const (
	StateActive    PoolState = "ACTIVE"
	StateBidding   PoolState = "BIDDING"
	StateWon       PoolState = "WON"
	StateLost      PoolState = "LOST"
	StateFinalized PoolState = "FINALIZED"
)

// String returns the string representation of PoolState.
func (s PoolState) String() string {
	return string(s)
}

// IsValid checks if the state is a known value.
func (s PoolState) IsValid() bool {
	switch s {
	case StateActive, StateBidding, StateWon, StateLost, StateFinalized:
		return true
	}
	return false
}

// Resolved reports whether the auction outcome is known.
func (s PoolState) Resolved() bool {
	return s == StateWon || s == StateLost || s == StateFinalized
}

// rank orders states along the lifecycle; Won and Lost share a rank.
func (s PoolState) rank() int {
	switch s {
	case StateActive:
		return 0
	case StateBidding:
		return 1
	case StateWon, StateLost:
		return 2
	case StateFinalized:
		return 3
	}
	return -1
}

// CanTransition reports whether moving from s to next respects the lifecycle.
func (s PoolState) CanTransition(next PoolState) bool {
	if !s.IsValid() || !next.IsValid() {
		return false
	}
	if s == StateBidding && next == StateBidding {
		return true // re-bid after being outbid
	}
	return next.rank() > s.rank()
}

// ParsePoolState parses the string form produced by String.
func ParsePoolState(s string) (PoolState, error) {
	st := PoolState(s)
	if !st.IsValid() {
		return "", fmt.Errorf("unknown pool state %q", s)
	}
	return st, nil
}
