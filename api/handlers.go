/*
handlers.go - HTTP API handlers for the vesting ledger

PURPOSE:
  Exposes the vesting schedule, the allowance contract, and the token
  ledger via REST. Handles HTTP request/response, JSON serialization,
  and delegates to domain logic.

ENDPOINTS:
  Schedule:
    GET    /api/schedule                      Parameters, open flag, solvency
    POST   /api/schedule/open                 Open claiming (owner)
    POST   /api/schedule/close                Close claiming (owner)
    POST   /api/schedule/fund                 Pull funding via transferFrom (owner)
    GET    /api/schedule/solvency             Last solvency monitor report

  Claimers:
    GET    /api/claimers                      List claimers
    POST   /api/claimers                      Register claimer (owner)
    GET    /api/claimers/{address}            Claimer record
    GET    /api/claimers/{address}/preview    What the next claim would do
    POST   /api/claim                         Claim as X-Caller

  Events:
    GET    /api/events?kind=&address=&limit=  Audit log

  Token:
    GET    /api/token/balances/{address}      Balance
    POST   /api/token/approve                 Approve spender as X-Caller
    POST   /api/token/mint                    Mint (minter only)

  Allowance contract:
    GET    /api/allowance                     Remaining allowance
    POST   /api/allowance/approve             Set allowance (owner)
    POST   /api/allowance/claim               Pull tokens as X-Caller

CALLER IDENTITY:
  The X-Caller header carries the acting address. There is no
  authentication: whoever can reach the API can act as any address.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed input, configuration, below-minimum entitlement
  - 403: Not authorized
  - 404: Claimer not found
  - 409: Already exists, claim not open, time gate, all claimed
  - 422: Token transfer rejected, allowance exceeded
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"github.com/warp/vesting-ledger/allowance"
	"github.com/warp/vesting-ledger/generic"
	"github.com/warp/vesting-ledger/token"
	"github.com/warp/vesting-ledger/vesting"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// CallerHeader names the acting address.
const CallerHeader = "X-Caller"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Vesting   *vesting.Vesting
	Allowance *allowance.Contract
	Token     *token.Ledger
	Monitor   *SolvencyMonitor
	Log       *logrus.Logger
}

// NewHandler creates a new handler.
func NewHandler(v *vesting.Vesting, a *allowance.Contract, t *token.Ledger, log *logrus.Logger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{Vesting: v, Allowance: a, Token: t, Monitor: NewSolvencyMonitor(v, log), Log: log}
}

// =============================================================================
// SCHEDULE HANDLERS
// =============================================================================

// GetSchedule returns the schedule parameters, the open flag, and pool solvency.
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	solvency, err := h.Vesting.Solvency(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toScheduleDTO(h.Vesting, solvency))
}

// GetSolvency returns the monitor's last report, running a check if none exists yet.
func (h *Handler) GetSolvency(w http.ResponseWriter, r *http.Request) {
	report, ok := h.Monitor.LastReport()
	if !ok {
		var err error
		if report, err = h.Monitor.RunNow(r.Context()); err != nil {
			h.writeDomainError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) OpenClaim(w http.ResponseWriter, r *http.Request) {
	h.toggleClaim(w, r, true)
}

func (h *Handler) CloseClaim(w http.ResponseWriter, r *http.Request) {
	h.toggleClaim(w, r, false)
}

func (h *Handler) toggleClaim(w http.ResponseWriter, r *http.Request, open bool) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var err error
	if open {
		err = h.Vesting.OpenClaim(r.Context(), caller)
	} else {
		err = h.Vesting.CloseClaim(r.Context(), caller)
	}
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"is_opened_for_claim": open})
}

// Fund pulls tokens from the caller into the vesting pool.
func (h *Handler) Fund(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req AmountRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.Vesting.Fund(r.Context(), caller, req.Amount); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.GetSchedule(w, r)
}

// =============================================================================
// CLAIMER HANDLERS
// =============================================================================

func (h *Handler) ListClaimers(w http.ResponseWriter, r *http.Request) {
	claimers, err := h.Vesting.Claimers(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	dtos := make([]ClaimerDTO, len(claimers))
	for i, c := range claimers {
		dtos[i] = toClaimerDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) AddClaimer(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req AddClaimerRequest
	if !decode(w, r, &req) {
		return
	}
	addr, err := generic.ParseAddress(req.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid claimer address", "invalid_address", err)
		return
	}

	c, err := h.Vesting.AddClaimer(r.Context(), caller, addr, req.Amount)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toClaimerDTO(c))
}

func (h *Handler) GetClaimer(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r)
	if !ok {
		return
	}
	c, err := h.Vesting.Claimer(r.Context(), addr)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if !c.Exists() {
		h.writeDomainError(w, &vesting.ClaimerNotFoundError{Address: addr})
		return
	}
	writeJSON(w, http.StatusOK, toClaimerDTO(c))
}

func (h *Handler) PreviewClaim(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r)
	if !ok {
		return
	}
	p, err := h.Vesting.Preview(r.Context(), addr)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPreviewDTO(p))
}

// Claim pays the caller's next installment.
func (h *Handler) Claim(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	receipt, err := h.Vesting.Claim(r.Context(), caller)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReceiptDTO(receipt))
}

// =============================================================================
// EVENT HANDLERS
// =============================================================================

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	var filter generic.EventFilter
	q := r.URL.Query()
	for _, k := range q["kind"] {
		filter.Kinds = append(filter.Kinds, generic.EventKind(k))
	}
	if s := q.Get("address"); s != "" {
		addr, err := generic.ParseAddress(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid address", "invalid_address", err)
			return
		}
		filter.Subject = &addr
	}
	if s := q.Get("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", "invalid_request", err)
			return
		}
		filter.Limit = limit
	}

	events, err := h.Vesting.Events(r.Context(), filter)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	dtos := make([]EventDTO, len(events))
	for i, e := range events {
		dtos[i] = toEventDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// TOKEN HANDLERS
// =============================================================================

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r)
	if !ok {
		return
	}
	bal, err := h.Token.BalanceOf(r.Context(), addr)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceDTO{Account: addr.Hex(), Symbol: h.Token.Symbol(), Balance: bal})
}

func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req ApproveRequest
	if !decode(w, r, &req) {
		return
	}
	spender, err := generic.ParseAddress(req.Spender)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid spender address", "invalid_address", err)
		return
	}
	if err := h.Token.Approve(r.Context(), caller, spender, req.Amount); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AllowanceDTO{
		Owner:     caller.Hex(),
		Spender:   spender.Hex(),
		Symbol:    h.Token.Symbol(),
		Allowance: req.Amount,
	})
}

func (h *Handler) Mint(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req MintRequest
	if !decode(w, r, &req) {
		return
	}
	to, err := generic.ParseAddress(req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid recipient address", "invalid_address", err)
		return
	}
	if err := h.Token.Mint(r.Context(), caller, to, req.Amount); err != nil {
		h.writeDomainError(w, err)
		return
	}
	bal, err := h.Token.BalanceOf(r.Context(), to)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceDTO{Account: to.Hex(), Symbol: h.Token.Symbol(), Balance: bal})
}

// =============================================================================
// ALLOWANCE CONTRACT HANDLERS
// =============================================================================

func (h *Handler) GetAllowance(w http.ResponseWriter, r *http.Request) {
	amount, err := h.Allowance.Allowance(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AllowanceDTO{
		Owner:     h.Allowance.Owner().Hex(),
		Spender:   h.Allowance.Account().Hex(),
		Symbol:    h.Token.Symbol(),
		Allowance: amount,
	})
}

func (h *Handler) ApproveAllowance(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req AmountRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.Allowance.Approve(r.Context(), caller, req.Amount); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.GetAllowance(w, r)
}

func (h *Handler) ClaimAllowance(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req AmountRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.Allowance.Claim(r.Context(), caller, req.Amount); err != nil {
		h.writeDomainError(w, err)
		return
	}
	bal, err := h.Token.BalanceOf(r.Context(), caller)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceDTO{Account: caller.Hex(), Symbol: h.Token.Symbol(), Balance: bal})
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (generic.Address, bool) {
	raw := r.Header.Get(CallerHeader)
	if raw == "" {
		writeError(w, http.StatusBadRequest, "Missing "+CallerHeader+" header", "missing_caller", nil)
		return generic.ZeroAddress, false
	}
	addr, err := generic.ParseAddress(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid "+CallerHeader+" header", "invalid_address", err)
		return generic.ZeroAddress, false
	}
	return addr, true
}

func pathAddress(w http.ResponseWriter, r *http.Request) (generic.Address, bool) {
	addr, err := generic.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid address", "invalid_address", err)
		return generic.ZeroAddress, false
	}
	return addr, true
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "invalid_request", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message, code string, err error) {
	resp := ErrorResponse{Error: message, Code: code}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain errors to a status and a stable code.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		h.Log.WithError(err).Error("request failed")
		writeError(w, status, "Internal error", code, err)
		return
	}
	writeError(w, status, err.Error(), code, nil)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, generic.ErrNotAuthorized):
		return http.StatusForbidden, "not_authorized"
	case errors.Is(err, vesting.ErrClaimerNotFound):
		return http.StatusNotFound, "claimer_not_found"
	case errors.Is(err, vesting.ErrAlreadyExists):
		return http.StatusConflict, "already_exists"
	case errors.Is(err, vesting.ErrClaimNotOpen):
		return http.StatusConflict, "claim_not_open"
	case errors.Is(err, vesting.ErrTimeGate):
		return http.StatusConflict, "time_gate_not_elapsed"
	case errors.Is(err, vesting.ErrAllClaimed):
		return http.StatusConflict, "all_claimed"
	case errors.Is(err, vesting.ErrBelowMinimum):
		return http.StatusBadRequest, "below_minimum"
	case errors.Is(err, vesting.ErrConfiguration):
		return http.StatusBadRequest, "configuration_error"
	case errors.Is(err, vesting.ErrTransferFailed), errors.Is(err, allowance.ErrTransferFailed):
		return http.StatusUnprocessableEntity, "transfer_failed"
	case errors.Is(err, allowance.ErrExceedsAllowance):
		return http.StatusUnprocessableEntity, "exceeds_allowance"
	case errors.Is(err, generic.ErrInsufficientBalance), errors.Is(err, generic.ErrInsufficientAllowance):
		return http.StatusUnprocessableEntity, "insufficient_funds"
	case generic.IsClientError(err):
		return http.StatusBadRequest, "invalid_request"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
