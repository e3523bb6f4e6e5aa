// Package api exposes the leakwatch REST surface.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/leakwatch/internal/classify"
	"github.com/sells-group/leakwatch/internal/disclosure"
	"github.com/sells-group/leakwatch/internal/export"
	"github.com/sells-group/leakwatch/internal/poll"
	"github.com/sells-group/leakwatch/internal/store"
)

// Deps carries the subsystems the handlers need. Classifier is optional;
// classification endpoints return 503 when it is absent.
type Deps struct {
	Store            store.Store
	Correlator       *disclosure.Correlator
	Classifier       *classify.Classifier
	Exporter         *export.Writer
	Poller           *poll.Poller
	BatchConcurrency int
}

type server struct {
	Deps
}

// NewRouter builds the HTTP router.
func NewRouter(deps Deps) http.Handler {
	s := &server{Deps: deps}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api/victims", func(r chi.Router) {
		r.Get("/", s.handleListVictims)
		r.Get("/stats", s.handleStats)
		r.Post("/export", s.handleExport)
		r.Post("/bulk-delete", s.handleBulkDelete)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetVictim)
			r.Delete("/", s.handleDeleteVictim)
			r.Post("/review", s.handleReviewVictim)
			r.Post("/flag", s.handleFlagVictim)
			r.Post("/restore", s.handleRestoreVictim)
			r.Post("/correlate", s.handleCorrelateVictim)
			r.Post("/classify", s.handleClassifyVictim)
			r.Post("/news", s.handleNewsVictim)
		})
	})

	r.Route("/api/correlate", func(r chi.Router) {
		r.Post("/", s.handleCorrelate)
		r.Post("/batch", s.handleCorrelateBatch)
	})

	r.Route("/api/monitors", func(r chi.Router) {
		r.Post("/", s.handleCreateMonitor)
		r.Get("/", s.handleListMonitors)
		r.Post("/poll-due", s.handlePollDue)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetMonitor)
			r.Delete("/", s.handleDeactivateMonitor)
			r.Post("/poll", s.handlePollMonitor)
		})
	})

	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// respondJSON writes a JSON response body with the given status.
func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Warn("response encode failed", zap.Error(err))
	}
}

// respondError maps store sentinels onto status codes and logs server faults.
func respondError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		respondJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	zap.L().Error("request failed", zap.Error(err))
	respondJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func badRequest(w http.ResponseWriter, msg string) {
	respondJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}
