package core

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// StateStore abstracts the durable completion ledger used by the engine and
// the progress reporter.
type StateStore interface {
	LoadState(ctx context.Context) (*StateRecord, error)
	IsCompleted(ctx context.Context, taskID string) (bool, error)
	IsInProgress(ctx context.Context, taskID string) (bool, error)
	MarkInProgress(ctx context.Context, taskID string) error
	MarkCompleted(ctx context.Context, taskID string) error
	MarkFailed(ctx context.Context, taskID string) error
	ResetState(ctx context.Context) error
}

// HistoryLog records lifecycle events. Append-only; the engine is the sole
// writer.
type HistoryLog interface {
	AppendHistory(ctx context.Context, entry *HistoryEntry) error
}

// Executor performs the actual system change for a task. It is invoked
// synchronously with the task's executor reference and must return an exit
// status where 0 means success. A non-nil error means the executor could not
// run at all, as opposed to running and failing.
type Executor interface {
	Execute(ctx context.Context, runID string, ref ExecutorRef, fields map[string]string) (int, error)
}

// Notifier delivers an out-of-band message about a finished execution.
// Implementations live in internal/notify.
type Notifier interface {
	Send(ctx context.Context, title, body string) error
}

// Result is the outcome of one engine execution. Code 0 is success; anything
// else is the executor's failure code, propagated verbatim.
type Result struct {
	TaskID string
	RunID  string
	Code   int
}

// Success reports whether the execution completed with status 0.
func (r Result) Success() bool {
	return r.Code == 0
}

// Engine executes tasks one at a time: prerequisite gating against the
// registry, state transitions in the store, a synchronous executor call, and
// history recording. It holds no state of its own and stays usable after a
// failed execution.
type Engine struct {
	registry *Registry
	store    StateStore
	history  HistoryLog
	executor Executor
	notifier Notifier
	logger   *slog.Logger
}

// NewEngine constructs an engine. notifier may be nil.
func NewEngine(registry *Registry, store StateStore, history HistoryLog, executor Executor, notifier Notifier, logger *slog.Logger) *Engine {
	return &Engine{
		registry: registry,
		store:    store,
		history:  history,
		executor: executor,
		notifier: notifier,
		logger:   logger,
	}
}

// Execute runs the task with the given id. fields carries wizard-collected
// input for the executor and may be nil.
//
// Gating failures (unknown task, unmet prerequisite) are returned before any
// state mutation. Once the task is marked in progress the executor runs to
// completion; there is no retry and no rollback of partial executor effects.
func (e *Engine) Execute(ctx context.Context, taskID string, fields map[string]string) (Result, error) {
	if !e.registry.Validated() {
		return Result{}, ErrRegistryNotValidated
	}
	task, err := e.registry.Lookup(taskID)
	if err != nil {
		return Result{}, err
	}
	if task.PrerequisiteID != nil {
		done, err := e.store.IsCompleted(ctx, *task.PrerequisiteID)
		if err != nil {
			return Result{}, fmt.Errorf("check prerequisite: %w", err)
		}
		if !done {
			return Result{}, &PrerequisiteError{TaskID: task.ID, PrerequisiteID: *task.PrerequisiteID}
		}
	}

	runID := uuid.NewString()
	if err := e.store.MarkInProgress(ctx, task.ID); err != nil {
		return Result{}, fmt.Errorf("mark in progress: %w", err)
	}
	if err := e.appendEvent(ctx, task.ID, HistoryEventStarted, nil); err != nil {
		return Result{}, err
	}
	e.logger.Info("task started", "task_id", task.ID, "run_id", runID)

	code, execErr := e.executor.Execute(ctx, runID, task.Executor, fields)
	result := Result{TaskID: task.ID, RunID: runID, Code: code}

	if execErr != nil {
		if err := e.store.MarkFailed(ctx, task.ID); err != nil {
			return result, fmt.Errorf("mark failed: %w", err)
		}
		note := execErr.Error()
		if err := e.appendEvent(ctx, task.ID, HistoryEventFailed, &note); err != nil {
			return result, err
		}
		e.notify(ctx, task, fmt.Sprintf("executor error: %v", execErr))
		if result.Code == 0 {
			result.Code = -1
		}
		return result, fmt.Errorf("execute %s: %w", task.ID, execErr)
	}

	if code == 0 {
		if err := e.store.MarkCompleted(ctx, task.ID); err != nil {
			return result, fmt.Errorf("mark completed: %w", err)
		}
		if err := e.appendEvent(ctx, task.ID, HistoryEventCompleted, nil); err != nil {
			return result, err
		}
		e.logger.Info("task completed", "task_id", task.ID, "run_id", runID)
		e.notify(ctx, task, "completed")
		return result, nil
	}

	if err := e.store.MarkFailed(ctx, task.ID); err != nil {
		return result, fmt.Errorf("mark failed: %w", err)
	}
	note := strconv.Itoa(code)
	if err := e.appendEvent(ctx, task.ID, HistoryEventFailed, &note); err != nil {
		return result, err
	}
	e.logger.Warn("task failed", "task_id", task.ID, "run_id", runID, "exit_code", code)
	e.notify(ctx, task, fmt.Sprintf("failed with exit code %d", code))
	return result, nil
}

// Reset empties the completion ledger and records a reset event.
func (e *Engine) Reset(ctx context.Context) error {
	if err := e.store.ResetState(ctx); err != nil {
		return fmt.Errorf("reset state: %w", err)
	}
	return e.appendEvent(ctx, "state", HistoryEventReset, nil)
}

func (e *Engine) appendEvent(ctx context.Context, subjectID string, event HistoryEvent, note *string) error {
	entry := &HistoryEntry{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		SubjectID: subjectID,
		Event:     event,
		Note:      note,
	}
	if err := e.history.AppendHistory(ctx, entry); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func (e *Engine) notify(ctx context.Context, task *Task, body string) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Send(ctx, task.DisplayName, body); err != nil {
		e.logger.Warn("send notification", "task_id", task.ID, "err", err)
	}
}
