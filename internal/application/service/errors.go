package service

import (
	"errors"
	"fmt"
)

// Business-rule failures are expected in normal operation. They all wrap
// ErrLedger or ErrPayment so callers can catch the class with errors.Is
// and surface the reason to a user.
var (
	// ErrLedger is the base class for recoverable ledger failures.
	ErrLedger = errors.New("ledger error")

	// ErrInsufficientExposure means the funded amount would breach the
	// practice's remaining exposure limit.
	ErrInsufficientExposure = fmt.Errorf("%w: insufficient remaining practice exposure limit", ErrLedger)

	// ErrInsufficientCapital means the pool cannot cover the advance.
	ErrInsufficientCapital = fmt.Errorf("%w: insufficient pool available capital", ErrLedger)

	// ErrInsufficientFunds means the CAPITAL_CASH balance cannot cover a
	// reservation.
	ErrInsufficientFunds = fmt.Errorf("%w: insufficient funds", ErrLedger)

	// ErrDuplicateEntry means an idempotency key was posted before. The
	// caller treats this as "already done", not as a failure.
	ErrDuplicateEntry = fmt.Errorf("%w: ledger entry already exists", ErrLedger)

	// ErrAccountNotFound means a required ledger account has not been
	// bootstrapped.
	ErrAccountNotFound = fmt.Errorf("%w: ledger account not found", ErrLedger)

	// ErrPayment is the base class for recoverable payment failures.
	ErrPayment = errors.New("payment error")

	// ErrPaymentAlreadyExists signals a claim that already carries an
	// intent under a mismatched key, a data inconsistency.
	ErrPaymentAlreadyExists = fmt.Errorf("%w: payment already exists for claim", ErrPayment)

	// ErrInvalidClaimState means the claim is not in a status that
	// permits the requested payment operation.
	ErrInvalidClaimState = fmt.Errorf("%w: invalid claim state", ErrPayment)

	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateClaim is returned when a submission's fingerprint
	// matches an existing claim.
	ErrDuplicateClaim = errors.New("duplicate claim submission")
)

// IsBusinessError reports whether err is a recoverable business-rule
// failure that should map to a 4xx-equivalent structured response.
func IsBusinessError(err error) bool {
	return errors.Is(err, ErrLedger) ||
		errors.Is(err, ErrPayment) ||
		errors.Is(err, ErrDuplicateClaim)
}

// InvariantViolationError indicates broken accounting state: a bug or
// data corruption, never a user mistake. It must propagate, abort the
// transaction, and be logged loudly; orchestration layers re-raise it
// unchanged.
type InvariantViolationError struct {
	Subject string
	Detail  string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("invariant violation on %s: %s", e.Subject, e.Detail)
}

// IsInvariantViolation reports whether err carries an
// *InvariantViolationError anywhere in its chain.
func IsInvariantViolation(err error) bool {
	var ive *InvariantViolationError
	return errors.As(err, &ive)
}
