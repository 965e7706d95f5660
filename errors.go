package shareledger

import (
	"errors"
	"fmt"

	"github.com/xraph/shareledger/types"
)

// Arithmetic sentinels, re-exported from the types package.
var (
	ErrArithmetic     = types.ErrArithmetic
	ErrOverflow       = types.ErrOverflow
	ErrUnderflow      = types.ErrUnderflow
	ErrDivisionByZero = types.ErrDivisionByZero
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("shareledger: not found")
	ErrAlreadyExists = errors.New("shareledger: already exists")
	ErrInvalidInput  = errors.New("shareledger: invalid input")

	// Ledger errors
	ErrReadOnly          = errors.New("shareledger: ledger is read-only")
	ErrInvariantViolated = errors.New("shareledger: share total does not match holdings")
	ErrSequenceGap       = errors.New("shareledger: journal sequence gap")

	// Pool errors
	ErrPoolNotFound = errors.New("shareledger: pool not found")
	ErrPoolExists   = errors.New("shareledger: pool already exists")
	ErrPoolArchived = errors.New("shareledger: pool is archived")

	// Journal and snapshot errors
	ErrSequenceConflict = errors.New("shareledger: journal sequence already written")
	ErrSnapshotNotFound = errors.New("shareledger: snapshot not found")

	// Store errors
	ErrStoreNotReady   = errors.New("shareledger: store not ready")
	ErrStoreClosed     = errors.New("shareledger: store is closed")
	ErrMigrationFailed = errors.New("shareledger: migration failed")
)

// OpError records the ledger operation that failed and, when it concerns a
// single holder, that holder's address. It unwraps to the arithmetic
// sentinel that caused it.
type OpError struct {
	Op      string
	Account string
	Err     error
}

func (e *OpError) Error() string {
	if e.Account == "" {
		return fmt.Sprintf("shareledger: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("shareledger: %s %s: %v", e.Op, e.Account, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

func accountErr(op string, account types.Account, err error) error {
	return &OpError{Op: op, Account: account.Hex(), Err: err}
}

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("shareledger: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is(err, ErrInvalidInput) match validation failures.
func (e ValidationError) Unwrap() error { return ErrInvalidInput }

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "shareledger: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("shareledger: %d errors occurred", len(e.Errors))
}

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// First returns the first error or nil.
func (e MultiError) First() error {
	if len(e.Errors) > 0 {
		return e.Errors[0]
	}
	return nil
}

// IsArithmetic returns true if the error is an overflow or underflow.
func IsArithmetic(err error) bool {
	return errors.Is(err, ErrArithmetic)
}

// IsDivisionByZero returns true if a conversion was attempted against an
// empty ledger.
func IsDivisionByZero(err error) bool {
	return errors.Is(err, ErrDivisionByZero)
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrPoolNotFound) ||
		errors.Is(err, ErrSnapshotNotFound)
}

// IsRetryable returns true if the operation can be retried after reloading
// state.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrSequenceConflict) ||
		errors.Is(err, ErrStoreNotReady)
}
