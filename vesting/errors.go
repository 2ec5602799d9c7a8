package vesting

import (
	"errors"
	"fmt"
	"time"

	"github.com/warp/vesting-ledger/generic"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrConfiguration   = errors.New("invalid vesting configuration")
	ErrNotAuthorized   = generic.ErrNotAuthorized
	ErrClaimNotOpen    = errors.New("claim is not opened")
	ErrClaimerNotFound = errors.New("claimer not found")
	ErrAlreadyExists   = errors.New("claimer already exists")
	ErrBelowMinimum    = errors.New("claimable amount below minimum")
	ErrTimeGate        = errors.New("claim time gate not elapsed")
	ErrAllClaimed      = errors.New("all tokens already claimed")
	ErrTransferFailed  = errors.New("token transfer failed")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ConfigurationError rejects a schedule that cannot pay every installment.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid vesting configuration: %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

type ClaimerNotFoundError struct {
	Address generic.Address
}

func (e *ClaimerNotFoundError) Error() string {
	return fmt.Sprintf("claimer not found: %s", e.Address)
}

func (e *ClaimerNotFoundError) Unwrap() error { return ErrClaimerNotFound }

type AlreadyExistsError struct {
	Address generic.Address
	Total   generic.Amount
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("claimer %s already exists with total claimable amount %s", e.Address, e.Total)
}

func (e *AlreadyExistsError) Unwrap() error { return ErrAlreadyExists }

type BelowMinimumError struct {
	Address generic.Address
	Amount  generic.Amount
	Minimum generic.Amount
}

func (e *BelowMinimumError) Error() string {
	return fmt.Sprintf("claimable amount %s for %s is below minimum total claimable amount %s",
		e.Amount, e.Address, e.Minimum)
}

func (e *BelowMinimumError) Unwrap() error { return ErrBelowMinimum }

// TimeGateError is returned when a claim comes too early. Gate tells
// whether the delay after the first release or the periodic duration applies.
type TimeGateError struct {
	Address   generic.Address
	Gate      Gate
	Required  time.Duration
	Elapsed   time.Duration
	UnlocksAt generic.Timestamp
}

func (e *TimeGateError) Error() string {
	return fmt.Sprintf("%s: %s elapsed of %s required, unlocks at %s",
		e.Gate.description(), e.Elapsed, e.Required, e.UnlocksAt)
}

func (e *TimeGateError) Unwrap() error { return ErrTimeGate }

type AllClaimedError struct {
	Address      generic.Address
	ClaimedTimes uint64
}

func (e *AllClaimedError) Error() string {
	return fmt.Sprintf("all tokens already claimed by %s after %d claims", e.Address, e.ClaimedTimes)
}

func (e *AllClaimedError) Unwrap() error { return ErrAllClaimed }

// TransferFailedError wraps the token ledger's rejection of a payout.
type TransferFailedError struct {
	To     generic.Address
	Amount generic.Amount
	Symbol string
	Err    error
}

func (e *TransferFailedError) Error() string {
	return fmt.Sprintf("failed to transfer %s %s to %s: %v", e.Amount, e.Symbol, e.To, e.Err)
}

func (e *TransferFailedError) Unwrap() []error { return []error{ErrTransferFailed, e.Err} }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the same call may succeed later without any
// other change: the time gate opens or the owner opens claiming.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTimeGate) || errors.Is(err, ErrClaimNotOpen)
}
