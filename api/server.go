/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend
  5. requireAuth: Bearer token verification (loan routes only)

ROUTE GROUPS:
  /api/auth/*           Signup and login (public)
  /api/loans/*          Loan operations (authenticated)
  /healthz              Liveness probe
  /metrics              Prometheus metrics

SEE ALSO:
  - handlers.go: Handler implementations
  - middleware.go: Authentication middleware
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/warp/loan-engine/auth"
	"github.com/warp/loan-engine/metrics"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, authsvc *auth.Service, m *metrics.Metrics) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Auth routes (public)
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", h.Signup)
			r.Post("/login", h.Login)
		})

		// Loan routes (authenticated)
		r.Route("/loans", func(r chi.Router) {
			r.Use(requireAuth(authsvc))
			r.Post("/", h.CreateLoan)
			r.Get("/", h.ListLoans)
			r.Get("/{loanID}/installments", h.GetInstallments)
			r.Post("/{loanID}/pay", h.PayLoan)
			r.Delete("/{loanID}", h.DeleteLoan)
		})
	})

	// Liveness probe
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Prometheus metrics
	if m != nil {
		r.Handle("/metrics", m.Handler())
	}

	return r
}
