package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-ledger/internal/api/middleware"
)

// Handlers groups the endpoint handlers mounted by NewRouter. Jobs may be nil
// when the service runs without a queue.
type Handlers struct {
	Statements *StatementsHandler
	Ledger     *LedgerHandler
	History    *HistoryHandler
	Jobs       *JobsHandler
}

// NewRouter builds the HTTP API. Uploads share one rate limiter.
func NewRouter(h Handlers, uploadsPerMinute int, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(log))
	r.Use(middleware.CORS)

	r.Get("/health", Health)

	r.Route("/api", func(r chi.Router) {
		r.With(middleware.RateLimit(uploadsPerMinute, log)).Post("/statements", h.Statements.Upload)
		r.Get("/statement", h.Ledger.GetStatement)
		r.Get("/annotations", h.Ledger.GetAnnotations)
		r.Get("/history", h.History.ListHistory)

		if h.Jobs != nil {
			r.Get("/jobs", h.Jobs.ListJobs)
			r.Get("/jobs/{id}", h.Jobs.GetJob)
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	return r
}
