package api

import (
	"context"
	"errors"
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/gray-logic-ingest/internal/batch"
)

// flushTimeout bounds a manual flush requested over the API.
const flushTimeout = 30 * time.Second

// StatsResponse represents the complete stats response.
type StatsResponse struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Runtime       RuntimeMetrics `json:"runtime"`
	Writer        batch.Stats    `json:"writer"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// handleStats returns writer and runtime statistics.
func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	writeJSON(w, http.StatusOK, StatsResponse{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		Writer: s.writer.Stats(),
	})
}

// handleFlush runs one dispatch cycle and returns the writer stats after it.
func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), flushTimeout)
	defer cancel()

	start := time.Now()
	err := s.writer.FlushNow(ctx)
	switch {
	case errors.Is(err, batch.ErrBatchingDisabled):
		writeStatus(w, http.StatusConflict, "batching is disabled")
		return
	case err != nil:
		s.logger.Warn("manual flush did not complete", "error", err)
		writeStatus(w, http.StatusGatewayTimeout, "flush did not complete in time")
		return
	}

	s.logger.Info("manual flush completed", "duration_ms", time.Since(start).Milliseconds())
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "flushed",
		"writer": s.writer.Stats(),
	})
}
