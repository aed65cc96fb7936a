package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"setuptask/internal/catalog"
	"setuptask/internal/core"
)

type memStore struct {
	completed  []string
	inProgress *string
}

func (m *memStore) LoadState(ctx context.Context) (*core.StateRecord, error) {
	now := time.Now().UTC()
	return &core.StateRecord{Completed: m.completed, InProgress: m.inProgress, LastRun: &now}, nil
}

func (m *memStore) IsCompleted(ctx context.Context, taskID string) (bool, error) {
	for _, id := range m.completed {
		if id == taskID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) IsInProgress(ctx context.Context, taskID string) (bool, error) {
	return m.inProgress != nil && *m.inProgress == taskID, nil
}

func (m *memStore) MarkInProgress(ctx context.Context, taskID string) error {
	m.inProgress = &taskID
	return nil
}

func (m *memStore) MarkCompleted(ctx context.Context, taskID string) error {
	done, _ := m.IsCompleted(ctx, taskID)
	if !done {
		m.completed = append(m.completed, taskID)
	}
	m.inProgress = nil
	return nil
}

func (m *memStore) MarkFailed(ctx context.Context, taskID string) error {
	m.inProgress = nil
	return nil
}

func (m *memStore) ResetState(ctx context.Context) error {
	m.completed = nil
	m.inProgress = nil
	return nil
}

type memHistory struct{}

func (memHistory) AppendHistory(ctx context.Context, entry *core.HistoryEntry) error { return nil }

type scriptedExecutor struct {
	code   int
	fields map[string]string
	calls  int
}

func (e *scriptedExecutor) Execute(ctx context.Context, runID string, ref core.ExecutorRef, fields map[string]string) (int, error) {
	e.calls++
	e.fields = fields
	return e.code, nil
}

func testCatalog() *catalog.Catalog {
	return &catalog.Catalog{
		Categories: []catalog.CategorySpec{{ID: "security", Name: "Security"}},
		Tasks: []catalog.TaskSpec{
			{
				ID:       "ufw-firewall",
				Category: "security",
				Name:     "UFW firewall",
				Command:  "true",
				Steps: []catalog.StepSpec{
					{Field: "ssh_port", Prompt: "SSH port", Validator: "port", Default: "22", Required: true},
					{Field: "admin_password", Prompt: "Admin password", Validator: "password", Required: true},
				},
			},
		},
	}
}

func newRunner(t *testing.T, input string, executor *scriptedExecutor) (*Runner, *bytes.Buffer, *memStore) {
	t.Helper()
	cat := testCatalog()
	registry, err := cat.BuildRegistry()
	require.NoError(t, err)

	store := &memStore{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := core.NewEngine(registry, store, memHistory{}, executor, nil, logger)
	reporter := core.NewReporter(registry, store)

	out := &bytes.Buffer{}
	runner := NewRunner(cat, registry, engine, reporter, store, strings.NewReader(input), out, logger)
	return runner, out, store
}

func TestRunner_ConfirmedRun(t *testing.T) {
	executor := &scriptedExecutor{}
	runner, out, store := newRunner(t, "2222\nhunter2-long\ny\n", executor)

	code := runner.Run(context.Background(), "ufw-firewall")
	assert.Equal(t, 0, code)
	assert.Equal(t, 1, executor.calls)
	assert.Equal(t, map[string]string{"ssh_port": "2222", "admin_password": "hunter2-long"}, executor.fields)
	assert.Equal(t, []string{"ufw-firewall"}, store.completed)

	text := out.String()
	assert.Contains(t, text, "ssh_port = 2222")
	assert.Contains(t, text, "admin_password = ************")
	assert.NotContains(t, text, "hunter2-long")
	assert.Contains(t, text, "task ufw-firewall completed")
}

func TestRunner_InvalidInputReprompts(t *testing.T) {
	executor := &scriptedExecutor{}
	runner, out, _ := newRunner(t, "99999\n443\npassword-ok\ny\n", executor)

	code := runner.Run(context.Background(), "ufw-firewall")
	assert.Equal(t, 0, code)
	assert.Contains(t, out.String(), "port must be")
	assert.Equal(t, "443", executor.fields["ssh_port"])
}

func TestRunner_DeclineAtReview(t *testing.T) {
	executor := &scriptedExecutor{}
	runner, out, store := newRunner(t, "22\npassword-ok\nn\n", executor)

	code := runner.Run(context.Background(), "ufw-firewall")
	assert.Equal(t, 0, code)
	assert.Zero(t, executor.calls)
	assert.Empty(t, store.completed)
	assert.Contains(t, out.String(), "nothing was changed")
}

func TestRunner_EOFCancels(t *testing.T) {
	executor := &scriptedExecutor{}
	runner, out, _ := newRunner(t, "", executor)

	code := runner.Run(context.Background(), "ufw-firewall")
	assert.Equal(t, 0, code)
	assert.Zero(t, executor.calls)
	assert.Contains(t, out.String(), "nothing was changed")
}

func TestRunner_FailedExecution(t *testing.T) {
	executor := &scriptedExecutor{code: 3}
	runner, out, store := newRunner(t, "\npassword-ok\ny\n", executor)

	code := runner.Run(context.Background(), "ufw-firewall")
	assert.Equal(t, 1, code)
	assert.Empty(t, store.completed)
	assert.Contains(t, out.String(), "exit code 3")
	// empty input picked the default
	assert.Equal(t, "22", executor.fields["ssh_port"])
}

func TestRunner_UnknownTask(t *testing.T) {
	runner, out, _ := newRunner(t, "", &scriptedExecutor{})

	code := runner.Run(context.Background(), "ghost")
	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "unknown task")
}

func TestRunner_SelectTaskMenu(t *testing.T) {
	executor := &scriptedExecutor{}
	runner, out, _ := newRunner(t, "ufw-firewall\n22\npassword-ok\ny\n", executor)

	code := runner.Run(context.Background(), "")
	assert.Equal(t, 0, code)
	assert.Contains(t, out.String(), "Security:")
	assert.Contains(t, out.String(), "[ ] ufw-firewall")
	assert.Equal(t, 1, executor.calls)
}
