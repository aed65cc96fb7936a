package core

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory StateStore with the same union/last-write-wins
// semantics as the sqlite store.
type fakeStore struct {
	completed  []string
	inProgress *string
	lastRun    *time.Time
	err        error
}

func (f *fakeStore) LoadState(ctx context.Context) (*StateRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	completed := make([]string, len(f.completed))
	copy(completed, f.completed)
	return &StateRecord{Completed: completed, InProgress: f.inProgress, LastRun: f.lastRun}, nil
}

func (f *fakeStore) IsCompleted(ctx context.Context, taskID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	for _, id := range f.completed {
		if id == taskID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) IsInProgress(ctx context.Context, taskID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.inProgress != nil && *f.inProgress == taskID, nil
}

func (f *fakeStore) MarkInProgress(ctx context.Context, taskID string) error {
	if f.err != nil {
		return f.err
	}
	now := time.Now().UTC()
	f.inProgress = &taskID
	f.lastRun = &now
	return nil
}

func (f *fakeStore) MarkCompleted(ctx context.Context, taskID string) error {
	if f.err != nil {
		return f.err
	}
	done, _ := f.IsCompleted(ctx, taskID)
	if !done {
		f.completed = append(f.completed, taskID)
	}
	if f.inProgress != nil && *f.inProgress == taskID {
		f.inProgress = nil
	}
	return nil
}

func (f *fakeStore) MarkFailed(ctx context.Context, taskID string) error {
	if f.err != nil {
		return f.err
	}
	if f.inProgress != nil && *f.inProgress == taskID {
		f.inProgress = nil
	}
	return nil
}

func (f *fakeStore) ResetState(ctx context.Context) error {
	if f.err != nil {
		return f.err
	}
	f.completed = nil
	f.inProgress = nil
	f.lastRun = nil
	return nil
}

type fakeHistory struct {
	entries []*HistoryEntry
}

func (f *fakeHistory) AppendHistory(ctx context.Context, entry *HistoryEntry) error {
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeHistory) events() []HistoryEvent {
	out := make([]HistoryEvent, 0, len(f.entries))
	for _, entry := range f.entries {
		out = append(out, entry.Event)
	}
	return out
}

type fakeExecutor struct {
	code   int
	err    error
	calls  int
	fields map[string]string
	ref    ExecutorRef
}

func (f *fakeExecutor) Execute(ctx context.Context, runID string, ref ExecutorRef, fields map[string]string) (int, error) {
	f.calls++
	f.ref = ref
	f.fields = fields
	return f.code, f.err
}

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	require.NoError(t, r.Register(task("1.1", "system", nil)))
	require.NoError(t, r.Register(task("1.2", "system", strPtr("1.1"))))
	require.NoError(t, r.Validate())
	return r
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEngine_ExecuteUnknownTask(t *testing.T) {
	store := &fakeStore{}
	history := &fakeHistory{}
	engine := NewEngine(testRegistry(t), store, history, &fakeExecutor{}, nil, testLogger())

	_, err := engine.Execute(context.Background(), "ghost", nil)
	assert.ErrorIs(t, err, ErrTaskNotFound)
	assert.Empty(t, history.entries)
	assert.Nil(t, store.inProgress)
}

func TestEngine_ExecuteBeforeValidate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(task("1.1", "system", nil)))
	engine := NewEngine(r, &fakeStore{}, &fakeHistory{}, &fakeExecutor{}, nil, testLogger())

	_, err := engine.Execute(context.Background(), "1.1", nil)
	assert.ErrorIs(t, err, ErrRegistryNotValidated)
}

func TestEngine_PrerequisiteUnmetLeavesStateUntouched(t *testing.T) {
	store := &fakeStore{}
	history := &fakeHistory{}
	executor := &fakeExecutor{}
	engine := NewEngine(testRegistry(t), store, history, executor, nil, testLogger())

	_, err := engine.Execute(context.Background(), "1.2", nil)

	var prereqErr *PrerequisiteError
	require.ErrorAs(t, err, &prereqErr)
	assert.Equal(t, "1.2", prereqErr.TaskID)
	assert.Equal(t, "1.1", prereqErr.PrerequisiteID)

	assert.Zero(t, executor.calls)
	assert.Empty(t, store.completed)
	assert.Nil(t, store.inProgress)
	assert.Empty(t, history.entries)
}

func TestEngine_ExecuteSuccess(t *testing.T) {
	store := &fakeStore{}
	history := &fakeHistory{}
	executor := &fakeExecutor{code: 0}
	engine := NewEngine(testRegistry(t), store, history, executor, nil, testLogger())

	fields := map[string]string{"ssh_port": "22"}
	result, err := engine.Execute(context.Background(), "1.1", fields)
	require.NoError(t, err)

	assert.True(t, result.Success())
	assert.Equal(t, "1.1", result.TaskID)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, fields, executor.fields)
	assert.Equal(t, []string{"1.1"}, store.completed)
	assert.Nil(t, store.inProgress)
	assert.Equal(t, []HistoryEvent{HistoryEventStarted, HistoryEventCompleted}, history.events())
}

func TestEngine_ExecuteFailurePropagatesCode(t *testing.T) {
	store := &fakeStore{}
	history := &fakeHistory{}
	engine := NewEngine(testRegistry(t), store, history, &fakeExecutor{code: 7}, nil, testLogger())

	result, err := engine.Execute(context.Background(), "1.1", nil)
	require.NoError(t, err)

	assert.False(t, result.Success())
	assert.Equal(t, 7, result.Code)
	assert.Empty(t, store.completed)
	assert.Nil(t, store.inProgress)
	assert.Equal(t, []HistoryEvent{HistoryEventStarted, HistoryEventFailed}, history.events())
	require.NotNil(t, history.entries[1].Note)
	assert.Equal(t, "7", *history.entries[1].Note)
}

func TestEngine_ExecutorErrorMarksFailed(t *testing.T) {
	store := &fakeStore{}
	history := &fakeHistory{}
	engine := NewEngine(testRegistry(t), store, history, &fakeExecutor{err: errors.New("sh not found")}, nil, testLogger())

	result, err := engine.Execute(context.Background(), "1.1", nil)
	require.Error(t, err)

	assert.False(t, result.Success())
	assert.Empty(t, store.completed)
	assert.Nil(t, store.inProgress)
	assert.Equal(t, []HistoryEvent{HistoryEventStarted, HistoryEventFailed}, history.events())
}

func TestEngine_EngineUsableAfterFailure(t *testing.T) {
	store := &fakeStore{}
	history := &fakeHistory{}
	executor := &fakeExecutor{code: 1}
	engine := NewEngine(testRegistry(t), store, history, executor, nil, testLogger())

	result, err := engine.Execute(context.Background(), "1.1", nil)
	require.NoError(t, err)
	require.False(t, result.Success())

	executor.code = 0
	result, err = engine.Execute(context.Background(), "1.1", nil)
	require.NoError(t, err)
	assert.True(t, result.Success())
	assert.Equal(t, []string{"1.1"}, store.completed)
}

func TestEngine_Reset(t *testing.T) {
	store := &fakeStore{completed: []string{"1.1"}}
	history := &fakeHistory{}
	engine := NewEngine(testRegistry(t), store, history, &fakeExecutor{}, nil, testLogger())

	require.NoError(t, engine.Reset(context.Background()))
	assert.Empty(t, store.completed)
	assert.Nil(t, store.lastRun)
	assert.Equal(t, []HistoryEvent{HistoryEventReset}, history.events())
	assert.Equal(t, "state", history.entries[0].SubjectID)
}

type fakeNotifier struct {
	titles []string
	bodies []string
}

func (f *fakeNotifier) Send(ctx context.Context, title, body string) error {
	f.titles = append(f.titles, title)
	f.bodies = append(f.bodies, body)
	return nil
}

func TestEngine_NotifiesOnCompletion(t *testing.T) {
	notifier := &fakeNotifier{}
	engine := NewEngine(testRegistry(t), &fakeStore{}, &fakeHistory{}, &fakeExecutor{code: 0}, notifier, testLogger())

	_, err := engine.Execute(context.Background(), "1.1", nil)
	require.NoError(t, err)
	require.Len(t, notifier.bodies, 1)
	assert.Equal(t, "completed", notifier.bodies[0])
}
