/*
Package generic provides the domain-neutral primitives of the vesting ledger.

PURPOSE:
  This package contains the types every other package speaks: account
  addresses, integer token amounts, timestamps, the claimer record, the
  audit event, and the interfaces to the token ledger and the store.
  It knows nothing about release schedules; the vesting package builds
  the state machine on top of these.

KEY CONCEPTS IN THIS FILE (types.go):
  - Address: A 20-byte account identifier (hex, EIP-55 checksummed on output)
  - Amount: A non-fractional token quantity backed by decimal.Decimal
  - Claimer: The per-address vesting record persisted by the Store

DESIGN PRINCIPLES:
  1. Integer tokens: Amounts never carry a fractional part. Percentages
     are applied with truncating division, matching on-chain arithmetic.
  2. Precision: decimal.Decimal avoids overflow for large supplies.
  3. Type Safety: Address is a distinct type, never a bare string.

USAGE:
  total := generic.NewAmount(1000)
  first := total.Percent(20) // 200
  addr, err := generic.ParseAddress("0x8ba1f109551bD432803012645Ac136ddd64DBA72")

SEE ALSO:
  - time.go: Timestamp and Clock
  - ledger.go: TokenLedger interface
  - store.go: Persistence interfaces
*/
package generic

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// =============================================================================
// ADDRESS - Account identity
// =============================================================================

// Address identifies an account on the token ledger.
type Address struct {
	common.Address
}

// ZeroAddress is the empty account. It is never a valid claimer.
var ZeroAddress = Address{}

// ParseAddress parses a 0x-prefixed (or bare) 40 hex digit address.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return ZeroAddress, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return Address{common.HexToAddress(s)}, nil
}

// MustParseAddress is ParseAddress for constants and tests.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) IsZero() bool { return a.Address == common.Address{} }

func (a Address) String() string { return a.Hex() }

// Format prints the checksummed hex form for every verb.
func (a Address) Format(s fmt.State, _ rune) { _, _ = s.Write([]byte(a.Hex())) }

// =============================================================================
// AMOUNT - Integer token quantity
// =============================================================================

var hundred = decimal.NewFromInt(100)

// Amount is a whole number of the smallest token unit.
type Amount struct {
	Value decimal.Decimal
}

func NewAmount(v int64) Amount { return Amount{Value: decimal.NewFromInt(v)} }

// ParseAmount parses a base-10 integer amount. Fractions and negatives are rejected.
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if !d.IsInteger() || d.IsNegative() {
		return Amount{}, fmt.Errorf("%w: %q must be a non-negative integer", ErrInvalidAmount, s)
	}
	return Amount{Value: d.Truncate(0)}, nil
}

// MustParseAmount is ParseAmount for constants and tests.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Amount) Add(b Amount) Amount { return Amount{Value: a.Value.Add(b.Value)} }
func (a Amount) Sub(b Amount) Amount { return Amount{Value: a.Value.Sub(b.Value)} }
func (a Amount) IsZero() bool { return a.Value.IsZero() }
func (a Amount) IsPositive() bool { return a.Value.IsPositive() }
func (a Amount) IsNegative() bool { return a.Value.IsNegative() }
func (a Amount) Equal(b Amount) bool { return a.Value.Equal(b.Value) }
func (a Amount) GreaterThan(b Amount) bool { return a.Value.GreaterThan(b.Value) }
func (a Amount) LessThan(b Amount) bool { return a.Value.LessThan(b.Value) }
func (a Amount) Cmp(b Amount) int { return a.Value.Cmp(b.Value) }
func (a Amount) String() string { return a.Value.StringFixed(0) }

// Percent returns floor(a * pct / 100).
func (a Amount) Percent(pct uint64) Amount {
	q, _ := a.Value.Mul(decimal.NewFromInt(int64(pct))).QuoRem(hundred, 0)
	return Amount{Value: q}
}

// Amounts are encoded as JSON strings so large supplies survive JavaScript clients.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// =============================================================================
// CLAIMER - Per-address vesting record
// =============================================================================

// Claimer is the persisted state of one vesting entitlement.
//
// INVARIANTS:
//   - TotalClaimableAmount never changes after registration.
//   - RemainingClaimableAmount only decreases and never exceeds the total.
//   - ClaimedTimes increases by exactly one per successful claim.
//
// A claimer with a zero TotalClaimableAmount does not exist.
type Claimer struct {
	Address                  Address
	TotalClaimableAmount     Amount
	RemainingClaimableAmount Amount
	ClaimedTimes             uint64
	LastClaimTime            Timestamp
	CreatedAt                Timestamp
}

// Exists reports whether the record carries an entitlement.
func (c Claimer) Exists() bool { return c.TotalClaimableAmount.IsPositive() }

// ClaimedAmount is how much has been paid out so far.
func (c Claimer) ClaimedAmount() Amount {
	return c.TotalClaimableAmount.Sub(c.RemainingClaimableAmount)
}
