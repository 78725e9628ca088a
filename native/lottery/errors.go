package lottery

import "errors"

var (
	errNilState  = errors.New("lottery engine: state not configured")
	errNilLedger = errors.New("lottery engine: ledger not configured")
)

// Validation errors. Rejected before any state mutation.
var (
	ErrUnauthorized        = errors.New("lottery: unauthorized")
	ErrInvalidBps          = errors.New("lottery: basis points exceed 10000")
	ErrInvalidPlatformFee  = errors.New("lottery: fee rate exceeds 1000 bps")
	ErrInvalidFeeConfig    = errors.New("lottery: combined fee rates must stay below 10000 bps")
	ErrInvalidTicketPrice  = errors.New("lottery: ticket price must be positive")
	ErrInvalidTicketBounds = errors.New("lottery: ticket bounds must satisfy 0 < min <= max")
	ErrInvalidDrawInterval = errors.New("lottery: draw interval out of range")
	ErrInvalidUnit         = errors.New("lottery: unit of account required")
	ErrInvalidQuantity     = errors.New("lottery: quantity must be positive")
	ErrCreatorNotAllowed   = errors.New("lottery: creator not allow-listed")
	ErrAlreadyWhitelisted  = errors.New("lottery: creator already allow-listed")
	ErrNotWhitelisted      = errors.New("lottery: creator missing from allow-list")
	ErrWhitelistFull       = errors.New("lottery: allow-list full")
	ErrInvalidAction       = errors.New("lottery: unknown allow-list action")
)

// State conflict errors. Surfaced verbatim to the caller.
var (
	ErrRegistryNotFound     = errors.New("lottery: registry not initialised")
	ErrRegistryExists       = errors.New("lottery: registry already initialised")
	ErrPoolNotFound         = errors.New("lottery: pool not found")
	ErrPoolNotActive        = errors.New("lottery: pool not active")
	ErrPoolFull             = errors.New("lottery: pool full")
	ErrPoolAlreadyCompleted = errors.New("lottery: pool already completed")
	ErrDrawTimeNotReached   = errors.New("lottery: draw time not reached")
	ErrTicketNotFound       = errors.New("lottery: ticket not found")
	ErrTicketLimitReached   = errors.New("lottery: per-user ticket limit reached")
	ErrInsufficientFunds    = errors.New("lottery: insufficient funds")
)

// Integrity errors. Always fatal to the operation.
var (
	ErrAccountCountMismatch     = errors.New("lottery: payout destinations do not match roster size")
	ErrInvalidWinnerDestination = errors.New("lottery: winner destination does not resolve to winner")
	ErrRosterMismatch           = errors.New("lottery: roster snapshot does not match pool")
	ErrOverflow                 = errors.New("lottery: arithmetic overflow")
)

// ErrorClass groups errors by how a caller should react to them.
type ErrorClass uint8

const (
	ClassInternal ErrorClass = iota
	ClassValidation
	ClassStateConflict
	ClassIntegrity
)

func (c ErrorClass) String() string {
	switch c {
	case ClassValidation:
		return "validation"
	case ClassStateConflict:
		return "state_conflict"
	case ClassIntegrity:
		return "integrity"
	default:
		return "internal"
	}
}

// classifiedErrors is checked in order, most severe class first, so an error
// wrapping several sentinels always lands in the same class.
var classifiedErrors = []struct {
	class    ErrorClass
	sentinel []error
}{
	{ClassIntegrity, []error{
		ErrAccountCountMismatch,
		ErrInvalidWinnerDestination,
		ErrRosterMismatch,
		ErrOverflow,
	}},
	{ClassStateConflict, []error{
		ErrRegistryNotFound,
		ErrRegistryExists,
		ErrPoolNotFound,
		ErrPoolNotActive,
		ErrPoolFull,
		ErrPoolAlreadyCompleted,
		ErrDrawTimeNotReached,
		ErrTicketNotFound,
		ErrTicketLimitReached,
		ErrInsufficientFunds,
	}},
	{ClassValidation, []error{
		ErrUnauthorized,
		ErrInvalidBps,
		ErrInvalidPlatformFee,
		ErrInvalidFeeConfig,
		ErrInvalidTicketPrice,
		ErrInvalidTicketBounds,
		ErrInvalidDrawInterval,
		ErrInvalidUnit,
		ErrInvalidQuantity,
		ErrCreatorNotAllowed,
		ErrAlreadyWhitelisted,
		ErrNotWhitelisted,
		ErrWhitelistFull,
		ErrInvalidAction,
	}},
}

// Classify maps an error returned by the engine onto its error class. Wrapped
// errors are unwrapped; anything unknown is internal.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassInternal
	}
	for _, group := range classifiedErrors {
		for _, sentinel := range group.sentinel {
			if errors.Is(err, sentinel) {
				return group.class
			}
		}
	}
	return ClassInternal
}
