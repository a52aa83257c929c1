package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// componentCheckTimeout bounds each component health check.
const componentCheckTimeout = 3 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(withRequestID, s.accessLog, s.recoverPanics, limitBody)

	// Prometheus scrape endpoint
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/stats", s.handleStats)
		r.Post("/flush", s.handleFlush)

		r.Route("/deadletters", func(r chi.Router) {
			r.Get("/", s.handleListDeadLetters)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetDeadLetter)
				r.Delete("/", s.handleDeleteDeadLetter)
				r.Post("/replay", s.handleReplayDeadLetter)
			})
		})
	})

	return r
}

// ComponentHealth is the health of one infrastructure component.
type ComponentHealth struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HealthResponse is the /health body.
type HealthResponse struct {
	Status     string                     `json:"status"`
	Version    string                     `json:"version"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

// handleHealth returns "ok" when every component is healthy and
// 503 "degraded" otherwise.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Version: s.version}

	names := make([]string, 0, len(s.components))
	for name := range s.components {
		names = append(names, name)
	}
	sort.Strings(names)

	if len(names) > 0 {
		resp.Components = make(map[string]ComponentHealth, len(names))
	}
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), componentCheckTimeout)
		err := s.components[name].HealthCheck(ctx)
		cancel()

		if err != nil {
			resp.Status = "degraded"
			resp.Components[name] = ComponentHealth{Status: "unhealthy", Error: err.Error()}
			continue
		}
		resp.Components[name] = ComponentHealth{Status: "ok"}
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
