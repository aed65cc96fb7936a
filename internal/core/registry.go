package core

import (
	"fmt"
)

// Registry is the static table of categories and tasks, built once at startup.
// Register all categories and tasks, then call Validate before any lookup is
// trusted or any task is executed.
type Registry struct {
	categories []Category
	tasks      []*Task
	byID       map[string]*Task
	validated  bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID: make(map[string]*Task),
	}
}

// RegisterCategory appends a category. Categories only group tasks for
// display and progress; re-registering an id is rejected.
func (r *Registry) RegisterCategory(category Category) error {
	for _, existing := range r.categories {
		if existing.ID == category.ID {
			return fmt.Errorf("register category %s: %w", category.ID, ErrDuplicateTaskID)
		}
	}
	r.categories = append(r.categories, category)
	return nil
}

// Register adds a task, preserving registration order for display.
func (r *Registry) Register(task Task) error {
	if _, exists := r.byID[task.ID]; exists {
		return fmt.Errorf("register task %s: %w", task.ID, ErrDuplicateTaskID)
	}
	t := task
	r.tasks = append(r.tasks, &t)
	r.byID[task.ID] = &t
	r.validated = false
	return nil
}

// Validate checks referential integrity of prerequisite links and proves the
// prerequisite graph acyclic. Each task has at most one direct prerequisite,
// so a cycle is a chain that returns to a task already seen in the walk.
func (r *Registry) Validate() error {
	for _, task := range r.tasks {
		if task.PrerequisiteID == nil {
			continue
		}
		if _, ok := r.byID[*task.PrerequisiteID]; !ok {
			return fmt.Errorf("task %s prerequisite %s: %w", task.ID, *task.PrerequisiteID, ErrUnknownPrerequisite)
		}
	}
	for _, task := range r.tasks {
		seen := map[string]bool{task.ID: true}
		current := task
		for current.PrerequisiteID != nil {
			next := r.byID[*current.PrerequisiteID]
			if seen[next.ID] {
				return fmt.Errorf("task %s: %w", next.ID, ErrCyclicDependency)
			}
			seen[next.ID] = true
			current = next
		}
	}
	r.validated = true
	return nil
}

// Validated reports whether Validate has run successfully since the last Register.
func (r *Registry) Validated() bool {
	return r.validated
}

// Lookup resolves a task by id.
func (r *Registry) Lookup(id string) (*Task, error) {
	task, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("lookup %s: %w", id, ErrTaskNotFound)
	}
	return task, nil
}

// Tasks returns all tasks in registration order.
func (r *Registry) Tasks() []*Task {
	out := make([]*Task, len(r.tasks))
	copy(out, r.tasks)
	return out
}

// Categories returns all categories in registration order.
func (r *Registry) Categories() []Category {
	out := make([]Category, len(r.categories))
	copy(out, r.categories)
	return out
}

// TasksInCategory returns the category's tasks in registration order.
func (r *Registry) TasksInCategory(categoryID string) []*Task {
	var out []*Task
	for _, task := range r.tasks {
		if task.CategoryID == categoryID {
			out = append(out, task)
		}
	}
	return out
}
