package api

import (
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"setuptask/internal/core"

	"github.com/go-chi/chi/v5"
)

type historyResponse struct {
	ID        string  `json:"id"`
	Timestamp string  `json:"timestamp"`
	Subject   string  `json:"subject"`
	Event     string  `json:"event"`
	Note      *string `json:"note,omitempty"`
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	subject := strings.TrimSpace(r.URL.Query().Get("subject"))
	limit := parseIntDefault(r.URL.Query().Get("limit"), 20)
	offset := parseIntDefault(r.URL.Query().Get("offset"), 0)

	entries, err := s.store.ListHistory(r.Context(), subject, limit, offset)
	if err != nil {
		s.logger.Error("list history", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list history")
		return
	}
	res := make([]historyResponse, 0, len(entries))
	for _, entry := range entries {
		res = append(res, historyToResponse(entry))
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRunLog(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	tail := parseIntDefault(r.URL.Query().Get("tail"), 0)

	content, err := s.store.ReadRunLog(runID, tail)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeError(w, http.StatusNotFound, "not_found", "log not found")
		} else {
			s.logger.Error("read run log", "run_id", runID, "err", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to read log")
		}
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(content))
}

func historyToResponse(entry *core.HistoryEntry) historyResponse {
	return historyResponse{
		ID:        entry.ID,
		Timestamp: entry.Timestamp.UTC().Format(time.RFC3339),
		Subject:   entry.SubjectID,
		Event:     string(entry.Event),
		Note:      entry.Note,
	}
}
