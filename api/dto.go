/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupling the
  domain types from the external contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

AMOUNTS:
  Token amounts are JSON strings ("1000") so values beyond 2^53 survive
  JavaScript clients. generic.Amount marshals itself that way.

TIMESTAMPS:
  Unix seconds plus an RFC3339 rendering; zero means "never".

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/vesting-ledger/generic"
	"github.com/warp/vesting-ledger/vesting"
)

// =============================================================================
// SCHEDULE
// =============================================================================

type ScheduleDTO struct {
	FirstReleasePercentage      uint64         `json:"first_release_percentage"`
	PeriodicClaimPercentage     uint64         `json:"periodic_claim_percentage"`
	NumberOfPeriodicClaim       uint64         `json:"number_of_periodic_claim"`
	DelayAfterFirstRelease      int64          `json:"delay_after_first_release"`
	PeriodicClaimDuration       int64          `json:"periodic_claim_duration"`
	MinimumTotalClaimableAmount generic.Amount `json:"minimum_total_claimable_amount"`
	IsOpenedForClaim            bool           `json:"is_opened_for_claim"`
	Owner                       string         `json:"owner"`
	Account                     string         `json:"account"`
	Symbol                      string         `json:"symbol"`
	Pool                        generic.Amount `json:"pool"`
	Outstanding                 generic.Amount `json:"outstanding"`
	Shortfall                   generic.Amount `json:"shortfall"`
}

func toScheduleDTO(v *vesting.Vesting, s vesting.Solvency) ScheduleDTO {
	sch := v.Schedule()
	return ScheduleDTO{
		FirstReleasePercentage:      sch.FirstReleasePercentage,
		PeriodicClaimPercentage:     sch.PeriodicClaimPercentage,
		NumberOfPeriodicClaim:       sch.NumberOfPeriodicClaim,
		DelayAfterFirstRelease:      int64(sch.DelayAfterFirstRelease / time.Second),
		PeriodicClaimDuration:       int64(sch.PeriodicClaimDuration / time.Second),
		MinimumTotalClaimableAmount: sch.MinimumTotalClaimableAmount,
		IsOpenedForClaim:            v.IsOpen(),
		Owner:                       v.Owner().Hex(),
		Account:                     v.Account().Hex(),
		Symbol:                      v.Symbol(),
		Pool:                        s.Pool,
		Outstanding:                 s.Outstanding,
		Shortfall:                   s.Shortfall,
	}
}

// =============================================================================
// CLAIMERS
// =============================================================================

type ClaimerDTO struct {
	Address                  string         `json:"address"`
	TotalClaimableAmount     generic.Amount `json:"total_claimable_amount"`
	RemainingClaimableAmount generic.Amount `json:"remaining_claimable_amount"`
	ClaimedAmount            generic.Amount `json:"claimed_amount"`
	ClaimedTimes             uint64         `json:"claimed_times"`
	LastClaimTime            uint64         `json:"last_claim_time"`
	LastClaimAt              string         `json:"last_claim_at,omitempty"`
}

func toClaimerDTO(c generic.Claimer) ClaimerDTO {
	dto := ClaimerDTO{
		Address:                  c.Address.Hex(),
		TotalClaimableAmount:     c.TotalClaimableAmount,
		RemainingClaimableAmount: c.RemainingClaimableAmount,
		ClaimedAmount:            c.ClaimedAmount(),
		ClaimedTimes:             c.ClaimedTimes,
		LastClaimTime:            uint64(c.LastClaimTime),
	}
	if !c.LastClaimTime.IsZero() {
		dto.LastClaimAt = c.LastClaimTime.String()
	}
	return dto
}

// AddClaimerRequest registers a claimer.
type AddClaimerRequest struct {
	Address string         `json:"address"`
	Amount  generic.Amount `json:"amount"`
}

// PreviewDTO describes what the next claim would do.
type PreviewDTO struct {
	Claimer   ClaimerDTO     `json:"claimer"`
	Phase     string         `json:"phase"`
	Amount    generic.Amount `json:"amount"`
	UnlocksAt uint64         `json:"unlocks_at"`
	Claimable bool           `json:"claimable"`
	Reason    string         `json:"reason,omitempty"`
}

func toPreviewDTO(p vesting.Preview) PreviewDTO {
	dto := PreviewDTO{
		Claimer:   toClaimerDTO(p.Claimer),
		Phase:     p.Phase.String(),
		Amount:    p.Amount,
		UnlocksAt: uint64(p.UnlocksAt),
		Claimable: p.Claimable,
	}
	if p.Reason != nil {
		dto.Reason = p.Reason.Error()
	}
	return dto
}

// ReceiptDTO is returned by a successful claim.
type ReceiptDTO struct {
	Claimer      ClaimerDTO     `json:"claimer"`
	Phase        string         `json:"phase"`
	Amount       generic.Amount `json:"amount"`
	ClaimedTimes uint64         `json:"claimed_times"`
	At           uint64         `json:"at"`
}

func toReceiptDTO(r vesting.Receipt) ReceiptDTO {
	return ReceiptDTO{
		Claimer:      toClaimerDTO(r.Claimer),
		Phase:        r.Phase.String(),
		Amount:       r.Amount,
		ClaimedTimes: r.Claimer.ClaimedTimes,
		At:           uint64(r.Event.At),
	}
}

// =============================================================================
// EVENTS
// =============================================================================

type EventDTO struct {
	Seq          uint64            `json:"seq"`
	Kind         string            `json:"kind"`
	Actor        string            `json:"actor"`
	Subject      string            `json:"subject"`
	Amount       generic.Amount    `json:"amount"`
	ClaimedTimes uint64            `json:"claimed_times,omitempty"`
	At           uint64            `json:"at"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

func toEventDTO(e generic.Event) EventDTO {
	return EventDTO{
		Seq:          e.Seq,
		Kind:         string(e.Kind),
		Actor:        e.Actor.Hex(),
		Subject:      e.Subject.Hex(),
		Amount:       e.Amount,
		ClaimedTimes: e.ClaimedTimes,
		At:           uint64(e.At),
		Metadata:     e.Metadata,
	}
}

// =============================================================================
// TOKEN & ALLOWANCE
// =============================================================================

// AmountRequest carries a bare amount (fund, allowance approve/claim).
type AmountRequest struct {
	Amount generic.Amount `json:"amount"`
}

type ApproveRequest struct {
	Spender string         `json:"spender"`
	Amount  generic.Amount `json:"amount"`
}

type MintRequest struct {
	To     string         `json:"to"`
	Amount generic.Amount `json:"amount"`
}

type BalanceDTO struct {
	Account string         `json:"account"`
	Symbol  string         `json:"symbol"`
	Balance generic.Amount `json:"balance"`
}

type AllowanceDTO struct {
	Owner     string         `json:"owner"`
	Spender   string         `json:"spender"`
	Symbol    string         `json:"symbol"`
	Allowance generic.Amount `json:"allowance"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}
