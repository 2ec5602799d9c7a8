package vesting

// PhaseKind is where a claimer stands in its release schedule.
//
//	NotStarted -> AfterFirst -> Periodic ... -> Final -> Exhausted
//
// With a single periodic claim AfterFirst and Periodic are skipped: the
// claim after the first release is already Final.
type PhaseKind uint8

const (
	PhaseNotStarted PhaseKind = iota // next claim is the first release
	PhaseAfterFirst                  // next claim is the first periodic claim
	PhasePeriodic                    // next claim is a middle periodic claim
	PhaseFinal                       // next claim pays the remainder
	PhaseExhausted                   // terminal
)

func (k PhaseKind) String() string {
	switch k {
	case PhaseNotStarted:
		return "not_started"
	case PhaseAfterFirst:
		return "after_first"
	case PhasePeriodic:
		return "periodic"
	case PhaseFinal:
		return "final"
	case PhaseExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Phase pairs the kind with the claim counter it was derived from.
type Phase struct {
	Kind         PhaseKind
	ClaimedTimes uint64
}

func (p Phase) String() string { return p.Kind.String() }

func (p Phase) IsTerminal() bool { return p.Kind == PhaseExhausted }

// Gate is the time condition guarding the next claim. The claim right
// after the first release waits DelayAfterFirstRelease; every later
// one waits PeriodicClaimDuration.
func (p Phase) Gate() Gate {
	switch {
	case p.Kind == PhaseNotStarted || p.Kind == PhaseExhausted:
		return GateNone
	case p.ClaimedTimes == 1:
		return GateAfterFirstRelease
	default:
		return GatePeriodic
	}
}

type Gate uint8

const (
	GateNone Gate = iota
	GateAfterFirstRelease
	GatePeriodic
)

func (g Gate) String() string {
	switch g {
	case GateAfterFirstRelease:
		return "delay_after_first_release"
	case GatePeriodic:
		return "periodic_claim_duration"
	default:
		return "none"
	}
}

func (g Gate) description() string {
	switch g {
	case GateAfterFirstRelease:
		return "delay after first release not elapsed"
	case GatePeriodic:
		return "periodic claim duration not elapsed"
	default:
		return "claim not yet available"
	}
}
