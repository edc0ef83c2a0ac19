package table

import "errors"

// Domain error taxonomy. Engine rejections are returned synchronously and
// never retried automatically; transport failures are retried by the sync
// layer instead of surfacing here.
var (
	// ErrNotFound is returned when no session matches the given full or short id.
	ErrNotFound = errors.New("session not found")

	// ErrNotActive is returned when an action targets a session that is not
	// in a state accepting it (acting on a pending/completed session, or
	// joining a session that already started).
	ErrNotActive = errors.New("session not active")

	// ErrNotYourTurn is returned when the acting participant does not hold
	// the current turn.
	ErrNotYourTurn = errors.New("not your turn")

	// ErrInsufficientChips is returned when a call or raise exceeds the
	// actor's chip balance.
	ErrInsufficientChips = errors.New("insufficient chips")

	// ErrInvalidRaise is returned when a raise amount is below the minimum.
	// Amount always denotes the new total current bet, not an increment.
	ErrInvalidRaise = errors.New("invalid raise amount")

	// ErrUnauthorized is returned when a non-host attempts a host-only
	// operation.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNetworkUnavailable is returned when the backing store or bus is
	// unreachable; callers may retry.
	ErrNetworkUnavailable = errors.New("network unavailable")
)
