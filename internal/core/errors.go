package core

import "errors"

// Error classes surfaced by the ledger. Callers classify with errors.Is; the
// concrete error always carries the detail via fmt.Errorf("%w: ...").
var (
	// ErrValidation marks malformed input. No state was changed.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks a reference to a nonexistent account or transaction.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks an operation refused because of dependent rows,
	// e.g. deleting an account that still owns transactions.
	ErrConflict = errors.New("conflict")

	// ErrConsistency marks a storage fault inside an atomic balance+row unit.
	// The unit was rolled back.
	ErrConsistency = errors.New("consistency fault")

	// ErrInitialization marks a schema or seed failure at startup.
	ErrInitialization = errors.New("initialization fault")
)

var (
	ErrEmptyName        = errors.New("name is required")
	ErrEmptyCategory    = errors.New("category is required")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrBalanceOverflow  = errors.New("account balance out of range")
	ErrNegativeAmount   = errors.New("amount must not be negative")
	ErrInvalidKind      = errors.New("kind must be income or expense")
	ErrInvalidClass     = errors.New("classification must be fixed or variable")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidMonth     = errors.New("month must be between 1 and 12")
	ErrInvalidYear      = errors.New("year must be between 1 and 9999")
	ErrDescriptionLimit = errors.New("description too long (max 500 characters)")
)

// IsDomainError reports whether err is one of the classified caller-facing
// errors (validation, not found, conflict) rather than a storage fault.
func IsDomainError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict)
}
