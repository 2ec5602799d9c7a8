/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for dashboards

ROUTE GROUPS:
  /api/schedule/*    Schedule parameters and lifecycle
  /api/claimers/*    Claimer registration and introspection
  /api/claim         Claim
  /api/events        Audit log
  /api/token/*       Token ledger
  /api/allowance/*   Allowance contract

SECURITY NOTE:
  No authentication middleware. Caller identity comes from X-Caller.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", CallerHeader},
		}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/schedule", func(r chi.Router) {
			r.Get("/", h.GetSchedule)
			r.Post("/open", h.OpenClaim)
			r.Post("/close", h.CloseClaim)
			r.Post("/fund", h.Fund)
			r.Get("/solvency", h.GetSolvency)
		})

		r.Route("/claimers", func(r chi.Router) {
			r.Get("/", h.ListClaimers)
			r.Post("/", h.AddClaimer)
			r.Get("/{address}", h.GetClaimer)
			r.Get("/{address}/preview", h.PreviewClaim)
		})

		r.Post("/claim", h.Claim)
		r.Get("/events", h.ListEvents)

		r.Route("/token", func(r chi.Router) {
			r.Get("/balances/{address}", h.GetBalance)
			r.Post("/approve", h.Approve)
			r.Post("/mint", h.Mint)
		})

		r.Route("/allowance", func(r chi.Router) {
			r.Get("/", h.GetAllowance)
			r.Post("/approve", h.ApproveAllowance)
			r.Post("/claim", h.ClaimAllowance)
		})
	})

	return r
}
