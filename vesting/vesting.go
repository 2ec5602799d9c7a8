/*
Package vesting implements the vesting schedule: registered claimers
withdraw a fixed entitlement over time, a first release followed by
periodic installments.

PURPOSE:
  Vesting holds the schedule, the global open/closed gate, and the
  claimer records (through generic.TxStore). Each claim computes an
  amount from the claimer's phase, advances the claimer, and instructs
  the token ledger to pay it out of the vesting account.

OPERATIONS:
  Owner:    OpenClaim, CloseClaim, AddClaimer, Fund
  Claimer:  Claim
  Anyone:   Schedule, IsOpen, Claimer, Claimers, Preview, Events, Solvency

ATOMICITY:
  Every mutating operation runs inside one store transaction and holds
  the engine mutex for its whole duration. Operations never interleave.
  A claim whose transfer fails leaves the claimer record, the event log,
  and all balances exactly as they were.

IMMUTABLE CONFIGURATION:
  The schedule is persisted on first start. Restarting against the same
  store with different parameters is a ConfigurationError. The open flag
  is persisted too and restored on start.

EVENTS:
  claim_opened / claim_closed   lifecycle, with timestamp
  claimer_added                 address + total amount
  claimed                       claimer, new claimed_times, amount, timestamp
  funded                        funder + amount

SEE ALSO:
  - schedule.go: Claim-amount algorithm
  - errors.go: Error taxonomy
  - generic/ledger.go: Token ledger contract
*/
package vesting

import (
	"context"
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/sasha-s/go-deadlock"
	"github.com/sirupsen/logrus"

	"github.com/warp/vesting-ledger/generic"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	stateScheduleKey = "vesting.schedule"
	stateOpenKey     = "vesting.claim_open"
)

// =============================================================================
// ENGINE
// =============================================================================

// Config wires a Vesting engine to its collaborators.
type Config struct {
	Schedule Schedule
	Owner    generic.Address // administrator
	Account  generic.Address // token account that holds the vesting pool
	Token    generic.TokenLedger
	Store    generic.TxStore
	Clock    generic.Clock  // defaults to generic.SystemClock
	Logger   *logrus.Logger // defaults to logrus.StandardLogger()
}

type Vesting struct {
	mu       *deadlock.Mutex
	schedule Schedule
	owner    generic.Address
	account  generic.Address
	token    generic.TokenLedger
	store    generic.TxStore
	clock    generic.Clock
	log      *logrus.Logger
	open     bool
}

// New configures the engine. Claiming starts closed on a fresh store.
func New(ctx context.Context, cfg Config) (*Vesting, error) {
	if cfg.Store == nil || cfg.Token == nil {
		return nil, &ConfigurationError{Field: "store", Reason: "store and token ledger are required"}
	}
	if cfg.Owner.IsZero() {
		return nil, &ConfigurationError{Field: "owner", Reason: "must not be the zero address"}
	}
	if cfg.Account.IsZero() {
		return nil, &ConfigurationError{Field: "account", Reason: "must not be the zero address"}
	}
	if cfg.Schedule.NumberOfPeriodicClaim == 0 || cfg.Schedule.MinimumTotalClaimableAmount.IsZero() {
		return nil, &ConfigurationError{Field: "schedule", Reason: "use NewSchedule to build the schedule"}
	}
	if cfg.Clock == nil {
		cfg.Clock = generic.SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	v := &Vesting{
		mu:       &deadlock.Mutex{},
		schedule: cfg.Schedule,
		owner:    cfg.Owner,
		account:  cfg.Account,
		token:    cfg.Token,
		store:    cfg.Store,
		clock:    cfg.Clock,
		log:      cfg.Logger,
	}

	if err := v.restore(ctx); err != nil {
		return nil, err
	}

	v.log.WithFields(logrus.Fields{
		"first_release_percentage":       v.schedule.FirstReleasePercentage,
		"periodic_claim_percentage":      v.schedule.PeriodicClaimPercentage,
		"number_of_periodic_claim":       v.schedule.NumberOfPeriodicClaim,
		"delay_after_first_release":      v.schedule.DelayAfterFirstRelease,
		"periodic_claim_duration":        v.schedule.PeriodicClaimDuration,
		"minimum_total_claimable_amount": v.schedule.MinimumTotalClaimableAmount.String(),
		"open":                           v.open,
	}).Info("vesting schedule configured")

	return v, nil
}

// restore persists the schedule on first start, or checks it matches the
// stored one, and loads the open flag.
func (v *Vesting) restore(ctx context.Context) error {
	return v.store.WithTx(ctx, func(s generic.Store) error {
		want, err := json.Marshal(toScheduleRecord(v.schedule))
		if err != nil {
			return fmt.Errorf("failed to encode schedule: %w", err)
		}

		stored, err := s.GetState(ctx, stateScheduleKey)
		switch {
		case errors.Is(err, generic.ErrNotFound):
			if err := s.SetState(ctx, stateScheduleKey, string(want)); err != nil {
				return err
			}
			return s.SetState(ctx, stateOpenKey, "false")
		case err != nil:
			return err
		}

		if stored != string(want) {
			return &ConfigurationError{Field: "schedule", Reason: "differs from the schedule this ledger was created with"}
		}

		open, err := s.GetState(ctx, stateOpenKey)
		if err != nil && !errors.Is(err, generic.ErrNotFound) {
			return err
		}
		v.open = open == "true"
		return nil
	})
}

// =============================================================================
// READ-ONLY INTROSPECTION
// =============================================================================

func (v *Vesting) Schedule() Schedule { return v.schedule }
func (v *Vesting) Owner() generic.Address { return v.owner }
func (v *Vesting) Account() generic.Address { return v.account }
func (v *Vesting) Symbol() string { return v.token.Symbol() }

func (v *Vesting) IsOpen() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.open
}

// Claimer returns the record for addr. A missing claimer has a zero total.
func (v *Vesting) Claimer(ctx context.Context, addr generic.Address) (generic.Claimer, error) {
	return v.store.GetClaimer(ctx, addr)
}

func (v *Vesting) Claimers(ctx context.Context) ([]generic.Claimer, error) {
	return v.store.ListClaimers(ctx)
}

func (v *Vesting) Events(ctx context.Context, filter generic.EventFilter) ([]generic.Event, error) {
	return v.store.Events(ctx, filter)
}

// =============================================================================
// ADMINISTRATIVE OPERATIONS
// =============================================================================

func (v *Vesting) OpenClaim(ctx context.Context, caller generic.Address) error {
	return v.setOpen(ctx, caller, true)
}

func (v *Vesting) CloseClaim(ctx context.Context, caller generic.Address) error {
	return v.setOpen(ctx, caller, false)
}

func (v *Vesting) setOpen(ctx context.Context, caller generic.Address, open bool) error {
	op, kind := "close claim", generic.EventClaimClosed
	if open {
		op, kind = "open claim", generic.EventClaimOpened
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireOwner(caller, op); err != nil {
		return err
	}

	now := v.clock.Now()
	err := v.store.WithTx(ctx, func(s generic.Store) error {
		if err := s.SetState(ctx, stateOpenKey, fmt.Sprint(open)); err != nil {
			return err
		}
		_, err := s.AppendEvent(ctx, generic.Event{
			Kind:  kind,
			Actor: caller,
			At:    now,
		})
		return err
	})
	if err != nil {
		return err
	}

	v.open = open
	v.log.WithFields(logrus.Fields{"at": now.String()}).Info(string(kind))
	return nil
}

// AddClaimer registers addr with a fixed total entitlement.
func (v *Vesting) AddClaimer(ctx context.Context, caller, addr generic.Address, amount generic.Amount) (generic.Claimer, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireOwner(caller, "add claimer"); err != nil {
		return generic.Claimer{}, err
	}
	if addr.IsZero() {
		return generic.Claimer{}, fmt.Errorf("%w: claimer must not be the zero address", generic.ErrInvalidAddress)
	}

	now := v.clock.Now()
	var added generic.Claimer
	err := v.store.WithTx(ctx, func(s generic.Store) error {
		existing, err := s.GetClaimer(ctx, addr)
		if err != nil {
			return err
		}
		if existing.Exists() {
			return &AlreadyExistsError{Address: addr, Total: existing.TotalClaimableAmount}
		}
		if amount.LessThan(v.schedule.MinimumTotalClaimableAmount) {
			return &BelowMinimumError{Address: addr, Amount: amount, Minimum: v.schedule.MinimumTotalClaimableAmount}
		}

		added = generic.Claimer{
			Address:                  addr,
			TotalClaimableAmount:     amount,
			RemainingClaimableAmount: amount,
			CreatedAt:                now,
		}
		if err := s.SaveClaimer(ctx, added); err != nil {
			return err
		}
		_, err = s.AppendEvent(ctx, generic.Event{
			Kind:    generic.EventClaimerAdded,
			Actor:   caller,
			Subject: addr,
			Amount:  amount,
			At:      now,
		})
		return err
	})
	if err != nil {
		return generic.Claimer{}, err
	}

	v.log.WithFields(logrus.Fields{
		"claimer": addr.Hex(),
		"amount":  amount.String(),
	}).Info("claimer added")
	return added, nil
}

// Fund pulls amount from caller into the vesting account. The caller must
// have approved the vesting account on the token ledger beforehand.
func (v *Vesting) Fund(ctx context.Context, caller generic.Address, amount generic.Amount) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireOwner(caller, "fund vesting"); err != nil {
		return err
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: funding amount must be positive", generic.ErrInvalidAmount)
	}

	now := v.clock.Now()
	err := v.store.WithTx(ctx, func(s generic.Store) error {
		if err := generic.Bind(v.token, s).TransferFrom(ctx, v.account, caller, v.account, amount); err != nil {
			return &TransferFailedError{To: v.account, Amount: amount, Symbol: v.token.Symbol(), Err: err}
		}
		_, err := s.AppendEvent(ctx, generic.Event{
			Kind:    generic.EventFunded,
			Actor:   caller,
			Subject: v.account,
			Amount:  amount,
			At:      now,
		})
		return err
	})
	if err != nil {
		return err
	}

	v.log.WithFields(logrus.Fields{
		"funder": caller.Hex(),
		"amount": amount.String(),
	}).Info("vesting funded")
	return nil
}

func (v *Vesting) requireOwner(caller generic.Address, op string) error {
	if caller != v.owner {
		return &generic.UnauthorizedError{Caller: caller, Operation: op}
	}
	return nil
}

// =============================================================================
// CLAIM
// =============================================================================

// Receipt describes a successful claim.
type Receipt struct {
	Claimer generic.Claimer // state after the claim
	Phase   Phase           // phase the claim was made in
	Amount  generic.Amount
	Event   generic.Event
}

// Claim pays caller its next installment.
func (v *Vesting) Claim(ctx context.Context, caller generic.Address) (Receipt, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.open {
		return Receipt{}, ErrClaimNotOpen
	}

	now := v.clock.Now()
	var receipt Receipt
	err := v.store.WithTx(ctx, func(s generic.Store) error {
		c, err := s.GetClaimer(ctx, caller)
		if err != nil {
			return err
		}
		if !c.Exists() {
			return &ClaimerNotFoundError{Address: caller}
		}

		phase, amount, err := v.schedule.NextClaim(c, now)
		if err != nil {
			return err
		}

		next := v.schedule.Apply(c, amount, now)
		if err := s.SaveClaimer(ctx, next); err != nil {
			return err
		}
		event, err := s.AppendEvent(ctx, generic.Event{
			Kind:         generic.EventClaimed,
			Actor:        caller,
			Subject:      caller,
			Amount:       amount,
			ClaimedTimes: next.ClaimedTimes,
			At:           now,
			Metadata:     map[string]string{"phase": phase.String()},
		})
		if err != nil {
			return err
		}

		// Transfer last: a rejection rolls back the record and event above.
		if err := generic.Bind(v.token, s).Transfer(ctx, v.account, caller, amount); err != nil {
			return &TransferFailedError{To: caller, Amount: amount, Symbol: v.token.Symbol(), Err: err}
		}

		receipt = Receipt{Claimer: next, Phase: phase, Amount: amount, Event: event}
		return nil
	})
	if err != nil {
		v.log.WithError(err).WithField("claimer", caller.Hex()).Debug("claim rejected")
		return Receipt{}, err
	}

	v.log.WithFields(logrus.Fields{
		"claimer":       caller.Hex(),
		"claimed_times": receipt.Claimer.ClaimedTimes,
		"amount":        receipt.Amount.String(),
		"remaining":     receipt.Claimer.RemainingClaimableAmount.String(),
		"phase":         receipt.Phase.String(),
	}).Info("claimed")
	return receipt, nil
}

// =============================================================================
// PREVIEW & SOLVENCY
// =============================================================================

// Preview describes what a claim by a claimer would do right now.
type Preview struct {
	Claimer   generic.Claimer
	Phase     Phase
	Amount    generic.Amount    // what the next claim pays once allowed
	UnlocksAt generic.Timestamp // zero when no time gate applies
	Claimable bool
	Reason    error // why a claim now would fail, nil when Claimable
}

func (v *Vesting) Preview(ctx context.Context, addr generic.Address) (Preview, error) {
	c, err := v.store.GetClaimer(ctx, addr)
	if err != nil {
		return Preview{}, err
	}
	if !c.Exists() {
		return Preview{}, &ClaimerNotFoundError{Address: addr}
	}

	now := v.clock.Now()
	phase, amount, reason := v.schedule.NextClaim(c, now)
	p := Preview{
		Claimer:   c,
		Phase:     phase,
		Amount:    v.schedule.InstallmentAmount(c, phase),
		UnlocksAt: v.schedule.UnlocksAt(c, phase),
		Reason:    reason,
	}
	if reason == nil {
		p.Amount = amount
		if !v.IsOpen() {
			p.Reason = ErrClaimNotOpen
		}
	}
	p.Claimable = p.Reason == nil
	return p, nil
}

// Solvency compares the vesting account balance with what claimers may
// still withdraw. Shortfall is zero when the pool covers every claimer.
type Solvency struct {
	Pool        generic.Amount
	Outstanding generic.Amount
	Shortfall   generic.Amount
}

func (v *Vesting) Solvency(ctx context.Context) (Solvency, error) {
	pool, err := v.token.BalanceOf(ctx, v.account)
	if err != nil {
		return Solvency{}, err
	}
	claimers, err := v.store.ListClaimers(ctx)
	if err != nil {
		return Solvency{}, err
	}
	var outstanding generic.Amount
	for _, c := range claimers {
		outstanding = outstanding.Add(c.RemainingClaimableAmount)
	}
	s := Solvency{Pool: pool, Outstanding: outstanding}
	if outstanding.GreaterThan(pool) {
		s.Shortfall = outstanding.Sub(pool)
	}
	return s, nil
}

// =============================================================================
// PERSISTED SCHEDULE
// =============================================================================

type scheduleRecord struct {
	FirstReleasePercentage      uint64 `json:"first_release_percentage"`
	PeriodicClaimPercentage     uint64 `json:"periodic_claim_percentage"`
	NumberOfPeriodicClaim       uint64 `json:"number_of_periodic_claim"`
	DelayAfterFirstRelease      int64  `json:"delay_after_first_release_seconds"`
	PeriodicClaimDuration       int64  `json:"periodic_claim_duration_seconds"`
	MinimumTotalClaimableAmount string `json:"minimum_total_claimable_amount"`
}

func toScheduleRecord(s Schedule) scheduleRecord {
	return scheduleRecord{
		FirstReleasePercentage:      s.FirstReleasePercentage,
		PeriodicClaimPercentage:     s.PeriodicClaimPercentage,
		NumberOfPeriodicClaim:       s.NumberOfPeriodicClaim,
		DelayAfterFirstRelease:      int64(s.DelayAfterFirstRelease / time.Second),
		PeriodicClaimDuration:       int64(s.PeriodicClaimDuration / time.Second),
		MinimumTotalClaimableAmount: s.MinimumTotalClaimableAmount.String(),
	}
}
