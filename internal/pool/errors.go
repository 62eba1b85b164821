package pool

import "errors"

// Range errors
var (
	ErrInvalidTickRange   = errors.New("invalid tick range")
	ErrInvalidPriceLimit  = errors.New("invalid sqrt price limit")
	ErrInvalidAmount      = errors.New("amount must be nonzero")
	ErrInvalidTickSpacing = errors.New("tick spacing must be positive")
)

// Authorization errors
var (
	ErrUnauthorized = errors.New("unauthorized caller")
)

// State errors
var (
	ErrLocked             = errors.New("pool locked")
	ErrNotInitialized     = errors.New("pool not initialized")
	ErrAlreadyInitialized = errors.New("pool already initialized")
	ErrNoLiquidity        = errors.New("pool has no active liquidity")
)

// Settlement errors
var (
	ErrSettlementFailed     = errors.New("settlement failed")
	ErrFlashNotRepaid       = errors.New("flash loan not repaid")
	ErrInsufficientReserves = errors.New("insufficient reserves")
)
