package domain

import (
	"fmt"

	"github.com/holiman/uint256"
)

// OutcomeKind classifies the auction result as seen by the pool.
type OutcomeKind string

const (
	OutcomePending OutcomeKind = "PENDING"
	OutcomeWon     OutcomeKind = "WON"
	OutcomeLost    OutcomeKind = "LOST"
)

// String returns the string representation of OutcomeKind.
func (k OutcomeKind) String() string {
	return string(k)
}

// Outcome is the auction result. Price is the final price paid and is only
// meaningful when Kind is OutcomeWon.
type Outcome struct {
	Kind  OutcomeKind
	Price *uint256.Int
}

// Pending returns the unresolved outcome.
func Pending() Outcome {
	return Outcome{Kind: OutcomePending, Price: Zero()}
}

// Won returns a winning outcome at price.
func Won(price *uint256.Int) Outcome {
	return Outcome{Kind: OutcomeWon, Price: CloneAmount(price)}
}

// Lost returns a losing outcome.
func Lost() Outcome {
	return Outcome{Kind: OutcomeLost, Price: Zero()}
}

// Resolved reports whether the outcome is final.
func (o Outcome) Resolved() bool {
	return o.Kind == OutcomeWon || o.Kind == OutcomeLost
}

// SpentPrice is what the pool ultimately paid: the price if won, zero otherwise.
func (o Outcome) SpentPrice() *uint256.Int {
	if o.Kind == OutcomeWon {
		return CloneAmount(o.Price)
	}
	return Zero()
}

// Clone returns a deep copy.
func (o Outcome) Clone() Outcome {
	return Outcome{Kind: o.Kind, Price: CloneAmount(o.Price)}
}

func (o Outcome) String() string {
	if o.Kind == OutcomeWon {
		return fmt.Sprintf("%s{%s}", o.Kind, CloneAmount(o.Price).Dec())
	}
	return o.Kind.String()
}
