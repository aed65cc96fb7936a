// Package cli drives an interactive wizard session on a terminal: one prompt
// per step, re-prompts on invalid input, a review summary, and a confirmed
// hand-off to the orchestration engine.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"setuptask/internal/catalog"
	"setuptask/internal/core"
	"setuptask/internal/wizard"
)

// Runner holds the dependencies for one interactive session.
type Runner struct {
	catalog  *catalog.Catalog
	registry *core.Registry
	engine   *core.Engine
	reporter *core.Reporter
	store    core.StateStore
	in       *bufio.Scanner
	out      io.Writer
	logger   *slog.Logger
}

// NewRunner constructs an interactive runner reading from in and writing to out.
func NewRunner(cat *catalog.Catalog, registry *core.Registry, engine *core.Engine, reporter *core.Reporter, store core.StateStore, in io.Reader, out io.Writer, logger *slog.Logger) *Runner {
	return &Runner{
		catalog:  cat,
		registry: registry,
		engine:   engine,
		reporter: reporter,
		store:    store,
		in:       bufio.NewScanner(in),
		out:      out,
		logger:   logger,
	}
}

// Run drives one wizard session for taskID, prompting for a task first when
// taskID is empty. The return value is the process exit code: 0 on success or
// cancellation, 1 on a failed execution or unmet prerequisite.
func (r *Runner) Run(ctx context.Context, taskID string) int {
	if taskID == "" {
		selected, ok := r.selectTask(ctx)
		if !ok {
			return 0
		}
		taskID = selected
	}

	task, err := r.registry.Lookup(taskID)
	if err != nil {
		fmt.Fprintf(r.out, "unknown task %q\n", taskID)
		return 1
	}

	def, _ := r.catalog.WizardDefinition(task.ID)
	session := wizard.NewSession(def)
	if err := session.Start(); err != nil {
		r.logger.Error("start wizard", "task_id", task.ID, "err", err)
		return 1
	}

	fmt.Fprintf(r.out, "%s — %s\n", task.DisplayName, task.Description)
	if !r.collect(session) {
		fmt.Fprintln(r.out, "cancelled, nothing was changed")
		return 0
	}

	r.review(session)
	if !r.confirmed(session) {
		fmt.Fprintln(r.out, "cancelled, nothing was changed")
		return 0
	}

	result, err := r.engine.Execute(ctx, task.ID, session.FieldMap())
	if err != nil {
		var prereqErr *core.PrerequisiteError
		if errors.As(err, &prereqErr) {
			fmt.Fprintf(r.out, "cannot run yet: %s\n", prereqErr.Error())
		} else {
			fmt.Fprintf(r.out, "execution error: %v\n", err)
		}
		return 1
	}
	if !result.Success() {
		fmt.Fprintf(r.out, "task failed with exit code %d (run %s)\n", result.Code, result.RunID)
		return 1
	}
	fmt.Fprintf(r.out, "task %s completed\n", task.ID)
	r.printProgress(ctx)
	return 0
}

// collect walks the session through every step. Returns false when input ends
// before the review state is reached.
func (r *Runner) collect(session *wizard.Session) bool {
	for {
		step, ok := session.Current()
		if !ok {
			return session.State() == wizard.StateReviewing
		}
		r.prompt(step)
		line, ok := r.readLine()
		if !ok {
			session.Cancel()
			return false
		}
		if err := session.Submit(line); err != nil {
			var verr *wizard.ValidationError
			if errors.As(err, &verr) {
				fmt.Fprintf(r.out, "  %s\n", verr.Detail)
				continue
			}
			r.logger.Error("submit input", "err", err)
			session.Cancel()
			return false
		}
	}
}

func (r *Runner) prompt(step wizard.Step) {
	if step.IsChoice() {
		fmt.Fprintf(r.out, "%s:\n", step.Prompt)
		for i, option := range step.Options {
			fmt.Fprintf(r.out, "  %d) %s\n", i+1, option)
		}
		if step.Default != "" {
			fmt.Fprintf(r.out, "choice [%s]: ", step.Default)
		} else {
			fmt.Fprint(r.out, "choice: ")
		}
		return
	}
	if step.Default != "" {
		fmt.Fprintf(r.out, "%s [%s]: ", step.Prompt, step.Default)
	} else {
		fmt.Fprintf(r.out, "%s: ", step.Prompt)
	}
}

func (r *Runner) review(session *wizard.Session) {
	fields := session.Fields()
	if len(fields) == 0 {
		return
	}
	fmt.Fprintln(r.out, "\nReview:")
	for _, field := range fields {
		value := field.Value
		if strings.Contains(field.Name, "password") {
			value = strings.Repeat("*", len(value))
		}
		fmt.Fprintf(r.out, "  %s = %s\n", field.Name, value)
	}
}

func (r *Runner) confirmed(session *wizard.Session) bool {
	for {
		fmt.Fprint(r.out, "Apply these settings? [y/n]: ")
		line, ok := r.readLine()
		if !ok {
			session.Cancel()
			return false
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			_ = session.Confirm(true)
			return true
		case "n", "no":
			_ = session.Confirm(false)
			return false
		}
	}
}

func (r *Runner) selectTask(ctx context.Context) (string, bool) {
	record, err := r.store.LoadState(ctx)
	if err != nil {
		r.logger.Error("load state", "err", err)
		record = &core.StateRecord{}
	}
	for _, category := range r.registry.Categories() {
		tasks := r.registry.TasksInCategory(category.ID)
		if len(tasks) == 0 {
			continue
		}
		fmt.Fprintf(r.out, "%s:\n", category.DisplayName)
		for _, task := range tasks {
			marker := " "
			for _, id := range record.Completed {
				if id == task.ID {
					marker = "x"
					break
				}
			}
			fmt.Fprintf(r.out, "  [%s] %-20s %s\n", marker, task.ID, task.DisplayName)
		}
	}
	fmt.Fprint(r.out, "task id: ")
	line, ok := r.readLine()
	if !ok {
		return "", false
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", false
	}
	return line, true
}

func (r *Runner) printProgress(ctx context.Context) {
	overall, err := r.reporter.Overall(ctx)
	if err != nil {
		return
	}
	fmt.Fprintf(r.out, "progress: %d/%d (%d%%)\n", overall.Completed, overall.Total, overall.Percentage)
}

func (r *Runner) readLine() (string, bool) {
	if !r.in.Scan() {
		return "", false
	}
	return r.in.Text(), true
}
