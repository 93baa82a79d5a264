// Package api exposes the ledger over HTTP.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/shunichi-ikebuchi/savings-club/pkg/ledger"
)

// Server holds the HTTP handlers.
type Server struct {
	engine *ledger.Engine
	loc    *time.Location
	logger *slog.Logger
}

// NewServer creates a Server. Dates in requests are read in loc.
func NewServer(engine *ledger.Engine, loc *time.Location, logger *slog.Logger) *Server {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{engine: engine, loc: loc, logger: logger}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/members", func(r chi.Router) {
			r.Get("/", s.listMembers)
			r.Post("/", s.createMember)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getMember)
				r.Delete("/", s.deleteMember)

				r.Post("/savings", s.save)
				r.Post("/savings/retroactive", s.retroactiveFill)

				r.Post("/borrowings", s.borrow)
				r.Post("/borrowings/pay-full", s.payFull)
				r.Post("/borrowings/{bid}/repayments", s.repay)
			})
		})

		r.Get("/share", s.share)
		r.Get("/history", s.history)
		r.Get("/audit", s.audit)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/penalties", s.runPenalties)
			r.Post("/reset", s.resetAll)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return r
}
