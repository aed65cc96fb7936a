package api

import (
	"net/http"
	"time"
)

type progressEntry struct {
	Category   string `json:"category,omitempty"`
	Completed  int    `json:"completed"`
	Total      int    `json:"total"`
	Percentage int    `json:"percentage"`
}

type progressResponse struct {
	Overall    progressEntry   `json:"overall"`
	Categories []progressEntry `json:"categories"`
}

type stateResponse struct {
	Completed  []string `json:"completed"`
	InProgress *string  `json:"in_progress,omitempty"`
	LastRun    *string  `json:"last_run,omitempty"`
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	overall, err := s.reporter.Overall(r.Context())
	if err != nil {
		s.logger.Error("overall progress", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to compute progress")
		return
	}
	categories, err := s.reporter.Categories(r.Context())
	if err != nil {
		s.logger.Error("category progress", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to compute progress")
		return
	}

	res := progressResponse{
		Overall: progressEntry{
			Completed:  overall.Completed,
			Total:      overall.Total,
			Percentage: overall.Percentage,
		},
		Categories: make([]progressEntry, 0, len(categories)),
	}
	for _, p := range categories {
		res.Categories = append(res.Categories, progressEntry{
			Category:   p.CategoryID,
			Completed:  p.Completed,
			Total:      p.Total,
			Percentage: p.Percentage,
		})
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	record, err := s.store.LoadState(r.Context())
	if err != nil {
		s.logger.Error("load state", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load state")
		return
	}
	res := stateResponse{Completed: record.Completed}
	if res.Completed == nil {
		res.Completed = []string{}
	}
	res.InProgress = record.InProgress
	if record.LastRun != nil {
		formatted := record.LastRun.UTC().Format(time.RFC3339)
		res.LastRun = &formatted
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleResetState(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Reset(r.Context()); err != nil {
		s.logger.Error("reset state", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to reset state")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
