package domain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// EventKind names an externally observable pool event.
type EventKind string

const (
	EventContribution       EventKind = "contribution"
	EventBidPlaced          EventKind = "bid_placed"
	EventOutcomeObserved    EventKind = "outcome_observed"
	EventFinalized          EventKind = "finalized"
	EventRedeemed           EventKind = "redeemed"
	EventExcessRefunded     EventKind = "excess_refunded"
	EventDeposit            EventKind = "deposit"
	EventTokenTransfer      EventKind = "token_transfer"
	EventEmergencyWithdraw  EventKind = "emergency_withdraw"
	EventEmergencyForceLost EventKind = "emergency_force_lost"
	EventEmergencyCall      EventKind = "emergency_call"
)

// String returns the string representation of EventKind.
func (k EventKind) String() string {
	return string(k)
}

// IsEmergency reports whether the event came from an emergency control.
func (k EventKind) IsEmergency() bool {
	return k == EventEmergencyWithdraw || k == EventEmergencyForceLost || k == EventEmergencyCall
}

// Event is one append-only entry of a pool's event log.
type Event struct {
	ID        string            // deterministic hash
	PoolID    string            // owning pool
	Seq       uint64            // 0-based position in the pool's log
	Kind      EventKind         // what happened
	Actor     common.Address    // caller / beneficiary, zero when not applicable
	Amount    *uint256.Int      // primary quantity (wei or token units), zero when not applicable
	State     PoolState         // pool state after the event
	Attrs     map[string]string // kind-specific details
	Timestamp int64             // unix ms
}

// Clone returns a deep copy.
func (e Event) Clone() Event {
	e.Amount = CloneAmount(e.Amount)
	if e.Attrs != nil {
		attrs := make(map[string]string, len(e.Attrs))
		for k, v := range e.Attrs {
			attrs[k] = v
		}
		e.Attrs = attrs
	}
	return e
}
