/*
errors.go - Shared error types for the ledger primitives

PURPOSE:
  Errors raised below the vesting core: malformed input, token ledger
  rejections, and store failures. Domain packages wrap these with their
  own context (vesting.TransferFailedError wraps the ledger errors here).

ERROR CATEGORIES:
  1. Input errors - Malformed address or amount
  2. Token errors - Insufficient balance or allowance
  3. Access errors - Caller lacks the required capability
  4. Store errors - Persistence failures

SEE ALSO:
  - vesting/errors.go: Vesting state machine errors
  - token/ledger.go: Raises the token errors
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrInvalidAddress = errors.New("invalid address")
	ErrInvalidAmount  = errors.New("invalid amount")

	// ErrInsufficientBalance is returned when a transfer exceeds the sender's balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInsufficientAllowance is returned when transferFrom exceeds the approved allowance.
	ErrInsufficientAllowance = errors.New("insufficient allowance")

	// ErrNotAuthorized is returned when a caller invokes an owner-only operation.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrNotFound is returned by stores for missing keys.
	ErrNotFound = errors.New("not found")

	// ErrStoreRequired is returned when an operation needs a transactional store.
	ErrStoreRequired = errors.New("operation requires a transactional store")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientBalanceError provides details about a balance shortage.
type InsufficientBalanceError struct {
	Account   Address
	Symbol    string
	Available Amount
	Requested Amount
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient %s balance for %s: available %s, requested %s",
		e.Symbol, e.Account, e.Available, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// InsufficientAllowanceError provides details about an allowance shortage.
type InsufficientAllowanceError struct {
	Owner     Address
	Spender   Address
	Symbol    string
	Available Amount
	Requested Amount
}

func (e *InsufficientAllowanceError) Error() string {
	return fmt.Sprintf("insufficient %s allowance from %s to %s: available %s, requested %s",
		e.Symbol, e.Owner, e.Spender, e.Available, e.Requested)
}

func (e *InsufficientAllowanceError) Unwrap() error {
	return ErrInsufficientAllowance
}

// UnauthorizedError names the caller and the operation it was refused.
type UnauthorizedError struct {
	Caller    Address
	Operation string
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("%s is not authorized to %s", e.Caller, e.Operation)
}

func (e *UnauthorizedError) Unwrap() error {
	return ErrNotAuthorized
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAddress) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrInsufficientAllowance)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
