package core

import (
	"time"
)

// TaskStatus describes the live state of a task as derived from the state store.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
)

// HistoryEvent names a lifecycle transition recorded in the history log.
type HistoryEvent string

const (
	HistoryEventStarted   HistoryEvent = "started"
	HistoryEventCompleted HistoryEvent = "completed"
	HistoryEventFailed    HistoryEvent = "failed"
	HistoryEventReset     HistoryEvent = "reset"
)

// ExecutorRef is the opaque handle a task carries for its executor. The
// default shell executor interprets Command via /bin/sh; other executors are
// free to ignore fields they do not understand.
type ExecutorRef struct {
	Command    string
	WorkingDir *string
}

// Task is a named unit of configuration work. PrerequisiteID, when set, must
// name another registered task that has to complete first.
type Task struct {
	ID             string
	CategoryID     string
	DisplayName    string
	Description    string
	PrerequisiteID *string
	Executor       ExecutorRef
}

// Category groups tasks for display and progress aggregation.
type Category struct {
	ID          string
	DisplayName string
}

// StateRecord is the durable completion ledger. Completed preserves insertion
// order for display; uniqueness is the only semantic guarantee. InProgress
// holds at most one task id and never survives a finished execution.
type StateRecord struct {
	Completed  []string
	InProgress *string
	LastRun    *time.Time
}

// HistoryEntry is one append-only audit record. Note carries the executor
// exit code on failure and is empty otherwise.
type HistoryEntry struct {
	ID        string
	Timestamp time.Time
	SubjectID string
	Event     HistoryEvent
	Note      *string
}

// Progress is a completion tuple for the whole registry or one category.
// Percentage is floor(completed*100/total); an empty scope reports 0.
type Progress struct {
	CategoryID string
	Completed  int
	Total      int
	Percentage int
}
