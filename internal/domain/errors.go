package domain

import "errors"

// Engine errors. Every failing operation returns one of these (possibly
// wrapped) and leaves the pool exactly as it was before the call.
var (
	// ErrInvalidState is returned when an operation is illegal in the pool's current state.
	ErrInvalidState = errors.New("invalid state")

	// ErrZeroAmount is returned when a quantity that must be positive is zero.
	ErrZeroAmount = errors.New("zero amount")

	// ErrInsufficientFunds is returned when a requested amount exceeds the available funds.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInsufficientTokenBalance is returned when a holder burns or moves more claim tokens than held.
	ErrInsufficientTokenBalance = errors.New("insufficient token balance")

	// ErrExternalCallFailed is returned when the auction market or a payout
	// transfer reverted or returned malformed data.
	ErrExternalCallFailed = errors.New("external call failed")

	// ErrArithmeticOverflow is returned when an addition or multiplication would overflow 256 bits.
	ErrArithmeticOverflow = errors.New("arithmetic overflow")

	// ErrAlreadyBid is returned when a bid is outstanding and the pool has not been outbid.
	ErrAlreadyBid = errors.New("bid already outstanding")

	// ErrNotFinalized is returned by redemption paths before the pool is finalized.
	ErrNotFinalized = errors.New("pool not finalized")

	// ErrUnauthorized is returned when a non-admin invokes an emergency control.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrReentrantCall is returned when the pool is entered while it is
	// waiting on an external interaction.
	ErrReentrantCall = errors.New("reentrant call")
)
