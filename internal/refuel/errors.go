package refuel

import "errors"

var (
	// ErrInvalidPool means the pool address is unusable or does not resolve
	// to a pool.
	ErrInvalidPool = errors.New("invalid pool address")
	// ErrInvalidAmount means the refuel amount must be positive.
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrThresholdOutOfRange means a donation threshold above 100% was
	// requested.
	ErrThresholdOutOfRange = errors.New("threshold exceeds 100%")
	// ErrPoolNotSet means the operation needs a configured pool.
	ErrPoolNotSet = errors.New("pool not set")
	// ErrAmountNotSet means the operation needs a configured refuel amount.
	ErrAmountNotSet = errors.New("refuel amount not set")
	// ErrInsufficientShares means the vault holds fewer pool shares than one
	// refuel consumes.
	ErrInsufficientShares = errors.New("insufficient pool shares")
	// ErrThresholdNotMet means the donation share came in below the
	// configured floor and the refuel was rolled back.
	ErrThresholdNotMet = errors.New("donation share below threshold")
	// ErrAlreadyInitialized means the vault's one-time initialization has
	// already happened.
	ErrAlreadyInitialized = errors.New("already initialized")
)
