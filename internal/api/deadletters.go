package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-ingest/internal/deadletter"
)

// handleListDeadLetters returns paginated dead letters with optional filters.
//
// Query parameters:
//   - kind: filter by outcome kind (database_not_found, retry_buffer_overrun, ...)
//   - database: filter by destination database
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListDeadLetters(w http.ResponseWriter, r *http.Request) {
	if s.deadLetters == nil {
		writeDeadLettersDisabled(w)
		return
	}

	q := r.URL.Query()
	filter := deadletter.Filter{
		Kind:     q.Get("kind"),
		Database: q.Get("database"),
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeStatus(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeStatus(w, http.StatusBadRequest, "offset must be an integer")
			return
		}
		filter.Offset = n
	}

	result, err := s.deadLetters.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list dead letters", "error", err)
		writeStatus(w, http.StatusInternalServerError, "failed to list dead letters")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetDeadLetter returns one dead letter including its payload.
func (s *Server) handleGetDeadLetter(w http.ResponseWriter, r *http.Request) {
	if s.deadLetters == nil {
		writeDeadLettersDisabled(w)
		return
	}

	id := chi.URLParam(r, "id")
	letter, err := s.deadLetters.Get(r.Context(), id)
	if errors.Is(err, deadletter.ErrNotFound) {
		writeStatus(w, http.StatusNotFound, "dead letter not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to get dead letter", "id", id, "error", err)
		writeStatus(w, http.StatusInternalServerError, "failed to get dead letter")
		return
	}

	writeJSON(w, http.StatusOK, letter)
}

// handleDeleteDeadLetter discards a dead letter.
func (s *Server) handleDeleteDeadLetter(w http.ResponseWriter, r *http.Request) {
	if s.deadLetters == nil {
		writeDeadLettersDisabled(w)
		return
	}

	id := chi.URLParam(r, "id")
	err := s.deadLetters.Delete(r.Context(), id)
	if errors.Is(err, deadletter.ErrNotFound) {
		writeStatus(w, http.StatusNotFound, "dead letter not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to delete dead letter", "id", id, "error", err)
		writeStatus(w, http.StatusInternalServerError, "failed to delete dead letter")
		return
	}

	s.logger.Info("dead letter discarded", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

// handleReplayDeadLetter resubmits a dead letter through the writer.
func (s *Server) handleReplayDeadLetter(w http.ResponseWriter, r *http.Request) {
	if s.replayer == nil {
		writeDeadLettersDisabled(w)
		return
	}

	id := chi.URLParam(r, "id")
	n, err := s.replayer.Replay(r.Context(), id)
	if errors.Is(err, deadletter.ErrNotFound) {
		writeStatus(w, http.StatusNotFound, "dead letter not found")
		return
	}
	if err != nil {
		s.logger.Warn("dead letter replay failed", "id", id, "error", err)
		writeError(w, http.StatusBadGateway, ErrCodeReplayFailed, err.Error())
		return
	}

	s.logger.Info("dead letter replayed", "id", id, "points", n)
	writeJSON(w, http.StatusOK, map[string]any{
		"id":     id,
		"status": "replayed",
		"points": n,
	})
}

func writeDeadLettersDisabled(w http.ResponseWriter) {
	writeStatus(w, http.StatusServiceUnavailable, "dead-letter store is not enabled")
}
