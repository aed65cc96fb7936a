package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"setuptask/internal/core"

	"github.com/go-chi/chi/v5"
)

type taskResponse struct {
	ID           string  `json:"id"`
	Category     string  `json:"category"`
	Name         string  `json:"name"`
	Description  string  `json:"description,omitempty"`
	Prerequisite *string `json:"prerequisite,omitempty"`
	Status       string  `json:"status"`
}

type runTaskRequest struct {
	Fields map[string]string `json:"fields,omitempty"`
}

type runTaskResponse struct {
	TaskID   string `json:"task_id"`
	RunID    string `json:"run_id"`
	ExitCode int    `json:"exit_code"`
	Success  bool   `json:"success"`
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	record, err := s.store.LoadState(r.Context())
	if err != nil {
		s.logger.Error("load state", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load state")
		return
	}
	tasks := s.registry.Tasks()
	res := make([]taskResponse, 0, len(tasks))
	for _, task := range tasks {
		res = append(res, taskToResponse(task, record))
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	task, err := s.registry.Lookup(taskID)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "task not found")
		return
	}
	record, err := s.store.LoadState(r.Context())
	if err != nil {
		s.logger.Error("load state", "task_id", taskID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load state")
		return
	}
	writeJSON(w, http.StatusOK, taskToResponse(task, record))
}

func (s *Server) handleRunTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	var req runTaskRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
			return
		}
	}

	inProgress, err := s.store.IsInProgress(r.Context(), taskID)
	if err != nil {
		s.logger.Error("check in progress", "task_id", taskID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load state")
		return
	}
	if inProgress {
		writeError(w, http.StatusConflict, "conflict", "task is already running")
		return
	}

	result, err := s.engine.Execute(r.Context(), taskID, req.Fields)
	if err != nil {
		var prereqErr *core.PrerequisiteError
		switch {
		case errors.Is(err, core.ErrTaskNotFound):
			writeError(w, http.StatusNotFound, "not_found", "task not found")
		case errors.As(err, &prereqErr):
			writeError(w, http.StatusConflict, "prerequisite_unmet", prereqErr.Error())
		default:
			s.logger.Error("execute task", "task_id", taskID, "err", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "task execution failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, runTaskResponse{
		TaskID:   result.TaskID,
		RunID:    result.RunID,
		ExitCode: result.Code,
		Success:  result.Success(),
	})
}

func taskToResponse(task *core.Task, record *core.StateRecord) taskResponse {
	status := core.TaskStatusPending
	if record.InProgress != nil && *record.InProgress == task.ID {
		status = core.TaskStatusInProgress
	}
	for _, id := range record.Completed {
		if id == task.ID {
			status = core.TaskStatusCompleted
			break
		}
	}
	return taskResponse{
		ID:           task.ID,
		Category:     task.CategoryID,
		Name:         task.DisplayName,
		Description:  task.Description,
		Prerequisite: task.PrerequisiteID,
		Status:       string(status),
	}
}

func parseIntDefault(value string, def int) int {
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	payload := map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	}
	writeJSON(w, status, payload)
}
