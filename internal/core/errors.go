package core

import (
	"errors"
	"fmt"
)

var (
	// ErrTaskNotFound is returned when a task id does not resolve in the registry.
	ErrTaskNotFound = errors.New("task not found")
	// ErrDuplicateTaskID is returned by Register when the id is already taken.
	ErrDuplicateTaskID = errors.New("duplicate task id")
	// ErrUnknownPrerequisite is returned by Validate when a prerequisite link
	// points at a task that was never registered.
	ErrUnknownPrerequisite = errors.New("unknown prerequisite")
	// ErrCyclicDependency is returned by Validate when following prerequisite
	// links from some task revisits a task already seen in that walk.
	ErrCyclicDependency = errors.New("cyclic dependency")
	// ErrRegistryNotValidated guards Execute against running before Validate.
	ErrRegistryNotValidated = errors.New("registry not validated")
)

// PrerequisiteError reports a gating failure: the task's prerequisite has not
// completed. No state is mutated when it is returned.
type PrerequisiteError struct {
	TaskID         string
	PrerequisiteID string
}

func (e *PrerequisiteError) Error() string {
	return fmt.Sprintf("task %s requires %s to complete first", e.TaskID, e.PrerequisiteID)
}
