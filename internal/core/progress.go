package core

import (
	"context"
	"fmt"
)

// Reporter derives completion percentages from the registry and the state
// store. It never mutates either.
type Reporter struct {
	registry *Registry
	store    StateStore
}

// NewReporter constructs a progress reporter.
func NewReporter(registry *Registry, store StateStore) *Reporter {
	return &Reporter{registry: registry, store: store}
}

// Overall reports completion across every registered task.
func (r *Reporter) Overall(ctx context.Context) (Progress, error) {
	return r.progressOf(ctx, "", r.registry.Tasks())
}

// Category reports completion for a single category's tasks.
func (r *Reporter) Category(ctx context.Context, categoryID string) (Progress, error) {
	return r.progressOf(ctx, categoryID, r.registry.TasksInCategory(categoryID))
}

// Categories reports completion per category in registration order. Categories
// with no tasks are excluded rather than reported as 0/0 noise.
func (r *Reporter) Categories(ctx context.Context) ([]Progress, error) {
	var out []Progress
	for _, category := range r.registry.Categories() {
		tasks := r.registry.TasksInCategory(category.ID)
		if len(tasks) == 0 {
			continue
		}
		progress, err := r.progressOf(ctx, category.ID, tasks)
		if err != nil {
			return nil, err
		}
		out = append(out, progress)
	}
	return out, nil
}

func (r *Reporter) progressOf(ctx context.Context, categoryID string, tasks []*Task) (Progress, error) {
	completed := 0
	for _, task := range tasks {
		done, err := r.store.IsCompleted(ctx, task.ID)
		if err != nil {
			return Progress{}, fmt.Errorf("progress of %s: %w", task.ID, err)
		}
		if done {
			completed++
		}
	}
	progress := Progress{
		CategoryID: categoryID,
		Completed:  completed,
		Total:      len(tasks),
	}
	if progress.Total > 0 {
		progress.Percentage = completed * 100 / progress.Total
	}
	return progress, nil
}
