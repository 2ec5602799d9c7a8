/*
store.go - Persistence interface for claimers, events, and token state

PURPOSE:
  Defines the interface between the domain logic and the database.
  Different implementations can use SQLite or in-memory storage.

KEY INTERFACES:
  ClaimerStore: Per-address vesting records (insert and update, never delete)
  EventLog:     Append-only audit events
  StateStore:   Small keyed values (schedule, open flag, bootstrap markers)
  TokenStore:   Token balances and allowances
  Store:        All of the above
  TxStore:      Store plus atomic WithTx

ATOMIC OPERATIONS:
  WithTx() ensures all-or-nothing semantics. A claim writes the claimer
  record, appends an event, and moves tokens; either all of it lands or
  none of it does.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - generic/store/memory.go: In-memory for testing

SEE ALSO:
  - ledger.go: TokenLedger, which persists through TokenStore
  - vesting/vesting.go: Main consumer
*/
package generic

import "context"

// =============================================================================
// STORE INTERFACES
// =============================================================================

// ClaimerStore persists vesting records. Records are never deleted.
type ClaimerStore interface {
	// GetClaimer returns the record for addr, or a zero Claimer if absent.
	GetClaimer(ctx context.Context, addr Address) (Claimer, error)

	// SaveClaimer inserts or replaces the record for c.Address.
	SaveClaimer(ctx context.Context, c Claimer) error

	// ListClaimers returns every record ordered by creation time.
	ListClaimers(ctx context.Context) ([]Claimer, error)
}

// EventLog stores audit events. Append-only.
type EventLog interface {
	// AppendEvent stores e and returns it with its sequence number assigned.
	AppendEvent(ctx context.Context, e Event) (Event, error)

	// Events returns events matching filter in sequence order.
	Events(ctx context.Context, filter EventFilter) ([]Event, error)
}

// StateStore holds small named values.
type StateStore interface {
	// GetState returns ErrNotFound when key was never set.
	GetState(ctx context.Context, key string) (string, error)
	SetState(ctx context.Context, key, value string) error
}

// TokenStore persists token balances and allowances. Missing entries read as zero.
type TokenStore interface {
	GetBalance(ctx context.Context, account Address) (Amount, error)
	SetBalance(ctx context.Context, account Address, amount Amount) error
	GetAllowance(ctx context.Context, owner, spender Address) (Amount, error)
	SetAllowance(ctx context.Context, owner, spender Address, amount Amount) error
}

type Store interface {
	ClaimerStore
	EventLog
	StateStore
	TokenStore
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	// fn must use the Store it is given, never the outer TxStore.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// EVENTS - Audit trail of every state change
// =============================================================================

type EventKind string

const (
	EventClaimOpened       EventKind = "claim_opened"
	EventClaimClosed       EventKind = "claim_closed"
	EventClaimerAdded      EventKind = "claimer_added"
	EventClaimed           EventKind = "claimed"
	EventFunded            EventKind = "funded"
	EventAllowanceApproved EventKind = "allowance_approved"
	EventAllowanceClaimed  EventKind = "allowance_claimed"
	EventMinted            EventKind = "minted"
)

// Event records who did what when. Events are emitted for indexing and
// audit; nothing inside the ledger reads them back to make decisions.
type Event struct {
	Seq          uint64 // assigned by the EventLog
	Kind         EventKind
	Actor        Address // who performed the action
	Subject      Address // whose state changed
	Amount       Amount
	ClaimedTimes uint64 // claims only
	At           Timestamp
	Metadata     map[string]string
}

type EventFilter struct {
	Kinds   []EventKind
	Subject *Address
	Limit   int
}

// Matches reports whether e passes the kind and subject criteria of f.
func (f EventFilter) Matches(e Event) bool {
	if f.Subject != nil && e.Subject != *f.Subject {
		return false
	}
	if len(f.Kinds) == 0 {
		return true
	}
	for _, k := range f.Kinds {
		if k == e.Kind {
			return true
		}
	}
	return false
}
