/*
schedule.go - Release schedule parameters and the claim-amount state machine

PURPOSE:
  A Schedule is configured once and never changes. It says how much of a
  claimer's entitlement each claim pays and how long a claimer must wait
  between claims.

RELEASE MODEL:
  Claim #1:        FirstReleasePercentage of the total, any time
  Claim #2:        PeriodicClaimPercentage, DelayAfterFirstRelease after #1
  Claim #3..#n:    PeriodicClaimPercentage, PeriodicClaimDuration after the previous
  Claim #n+1:      Whatever remains, PeriodicClaimDuration after the previous
  (n = NumberOfPeriodicClaim)

  The last claim pays the remainder rather than a percentage so that
  truncation in earlier installments never strands tokens.

MINIMUM ENTITLEMENT:
  Integer percentages truncate. A total of 4 at 20% pays floor(0.8) = 0,
  which would leave a claimer claiming nothing forever.
  MinimumTotalClaimableAmount = 100 / min(first, periodic) + 1 is the
  smallest total for which every percentage installment is at least 1.

EXAMPLE:
  s, _ := vesting.NewSchedule(20, 24*time.Hour, 4, 24*time.Hour)
  // s.PeriodicClaimPercentage == 20, s.MinimumTotalClaimableAmount == 6
  // total 1000 pays 200, 200, 200, 200, 200

SEE ALSO:
  - phase.go: Phase state machine
  - vesting.go: Applies NextClaim to stored claimers
*/
package vesting

import (
	"time"

	"github.com/warp/vesting-ledger/generic"
)

// =============================================================================
// SCHEDULE
// =============================================================================

type Schedule struct {
	FirstReleasePercentage      uint64
	PeriodicClaimPercentage     uint64
	NumberOfPeriodicClaim       uint64
	DelayAfterFirstRelease      time.Duration
	PeriodicClaimDuration       time.Duration
	MinimumTotalClaimableAmount generic.Amount
}

// NewSchedule derives the periodic percentage and the minimum entitlement.
//
// Fails when numberOfPeriodicClaim is zero, firstReleasePercentage exceeds
// 100, a duration is negative or rounds down to zero seconds, or either
// percentage is zero (an installment would always pay nothing).
func NewSchedule(
	firstReleasePercentage uint64,
	delayAfterFirstRelease time.Duration,
	numberOfPeriodicClaim uint64,
	periodicClaimDuration time.Duration,
) (Schedule, error) {
	if numberOfPeriodicClaim == 0 {
		return Schedule{}, &ConfigurationError{Field: "number_of_periodic_claim", Reason: "must be at least 1"}
	}
	if firstReleasePercentage > 100 {
		return Schedule{}, &ConfigurationError{Field: "first_release_percentage", Reason: "must not exceed 100"}
	}
	if delayAfterFirstRelease < 0 {
		return Schedule{}, &ConfigurationError{Field: "delay_after_first_release", Reason: "must not be negative"}
	}
	if periodicClaimDuration < 0 {
		return Schedule{}, &ConfigurationError{Field: "periodic_claim_duration", Reason: "must not be negative"}
	}
	if delayAfterFirstRelease > 0 && delayAfterFirstRelease < time.Second {
		return Schedule{}, &ConfigurationError{Field: "delay_after_first_release", Reason: "must be zero or at least one second"}
	}
	if periodicClaimDuration > 0 && periodicClaimDuration < time.Second {
		return Schedule{}, &ConfigurationError{Field: "periodic_claim_duration", Reason: "must be zero or at least one second"}
	}

	periodic := (100 - firstReleasePercentage) / numberOfPeriodicClaim

	lowest := firstReleasePercentage
	if periodic < lowest {
		lowest = periodic
	}
	if lowest == 0 {
		field := "first_release_percentage"
		if periodic == 0 {
			field = "number_of_periodic_claim"
		}
		return Schedule{}, &ConfigurationError{Field: field, Reason: "an installment percentage truncates to zero"}
	}

	return Schedule{
		FirstReleasePercentage:      firstReleasePercentage,
		PeriodicClaimPercentage:     periodic,
		NumberOfPeriodicClaim:       numberOfPeriodicClaim,
		DelayAfterFirstRelease:      delayAfterFirstRelease.Truncate(time.Second),
		PeriodicClaimDuration:       periodicClaimDuration.Truncate(time.Second),
		MinimumTotalClaimableAmount: generic.NewAmount(int64(100/lowest + 1)),
	}, nil
}

// TotalClaims is how many successful claims exhaust an entitlement.
func (s Schedule) TotalClaims() uint64 { return s.NumberOfPeriodicClaim + 1 }

// PhaseOf returns the phase of a claimer that has claimed claimedTimes times.
func (s Schedule) PhaseOf(claimedTimes uint64) Phase {
	n := s.NumberOfPeriodicClaim
	switch {
	case claimedTimes > n:
		return Phase{Kind: PhaseExhausted, ClaimedTimes: claimedTimes}
	case claimedTimes == 0:
		return Phase{Kind: PhaseNotStarted}
	case claimedTimes == n:
		return Phase{Kind: PhaseFinal, ClaimedTimes: claimedTimes}
	case claimedTimes == 1:
		return Phase{Kind: PhaseAfterFirst, ClaimedTimes: claimedTimes}
	default:
		return Phase{Kind: PhasePeriodic, ClaimedTimes: claimedTimes}
	}
}

// RequiredDelay is how long after the previous claim the gate opens.
func (s Schedule) RequiredDelay(g Gate) time.Duration {
	switch g {
	case GateAfterFirstRelease:
		return s.DelayAfterFirstRelease
	case GatePeriodic:
		return s.PeriodicClaimDuration
	default:
		return 0
	}
}

// InstallmentAmount is what a claim in phase p pays to c, ignoring time.
func (s Schedule) InstallmentAmount(c generic.Claimer, p Phase) generic.Amount {
	switch p.Kind {
	case PhaseNotStarted:
		return c.TotalClaimableAmount.Percent(s.FirstReleasePercentage)
	case PhaseAfterFirst, PhasePeriodic:
		return c.TotalClaimableAmount.Percent(s.PeriodicClaimPercentage)
	case PhaseFinal:
		return c.RemainingClaimableAmount
	default:
		return generic.Amount{}
	}
}

// UnlocksAt is the earliest time a claim in phase p may be made by c.
func (s Schedule) UnlocksAt(c generic.Claimer, p Phase) generic.Timestamp {
	g := p.Gate()
	if g == GateNone {
		return 0
	}
	return c.LastClaimTime.Add(s.RequiredDelay(g))
}

// NextClaim validates a claim by c at now and returns its phase and amount.
// It does not mutate c.
func (s Schedule) NextClaim(c generic.Claimer, now generic.Timestamp) (Phase, generic.Amount, error) {
	p := s.PhaseOf(c.ClaimedTimes)
	if p.Kind == PhaseExhausted {
		return p, generic.Amount{}, &AllClaimedError{Address: c.Address, ClaimedTimes: c.ClaimedTimes}
	}

	if g := p.Gate(); g != GateNone {
		required := s.RequiredDelay(g)
		elapsed, ok := now.Since(c.LastClaimTime)
		if !ok || elapsed < required {
			return p, generic.Amount{}, &TimeGateError{
				Address:   c.Address,
				Gate:      g,
				Required:  required,
				Elapsed:   elapsed,
				UnlocksAt: s.UnlocksAt(c, p),
			}
		}
	}

	return p, s.InstallmentAmount(c, p), nil
}

// Apply returns c after a successful claim of amount at now.
func (s Schedule) Apply(c generic.Claimer, amount generic.Amount, now generic.Timestamp) generic.Claimer {
	c.RemainingClaimableAmount = c.RemainingClaimableAmount.Sub(amount)
	c.ClaimedTimes++
	c.LastClaimTime = now
	return c
}
