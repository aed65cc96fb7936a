package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"setuptask/internal/core"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), t.TempDir(), 20)
	require.NoError(t, err)
	t.Cleanup(func() { s.DB.Close() })
	return s
}

func TestStore_LoadStateEmpty(t *testing.T) {
	s := openTestStore(t)

	record, err := s.LoadState(context.Background())
	require.NoError(t, err)
	assert.Empty(t, record.Completed)
	assert.Nil(t, record.InProgress)
	assert.Nil(t, record.LastRun)
}

func TestStore_MarkCompletedIdempotent(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.MarkCompleted(ctx, "1.1"))
	require.NoError(t, s.MarkCompleted(ctx, "1.2"))
	require.NoError(t, s.MarkCompleted(ctx, "1.1"))

	record, err := s.LoadState(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"1.1", "1.2"}, record.Completed)

	done, err := s.IsCompleted(ctx, "1.1")
	require.NoError(t, err)
	assert.True(t, done)
	done, err = s.IsCompleted(ctx, "1.3")
	require.NoError(t, err)
	assert.False(t, done)
}

func TestStore_InProgressSlot(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.MarkInProgress(ctx, "1.1"))
	inProgress, err := s.IsInProgress(ctx, "1.1")
	require.NoError(t, err)
	assert.True(t, inProgress)

	record, err := s.LoadState(ctx)
	require.NoError(t, err)
	require.NotNil(t, record.InProgress)
	assert.Equal(t, "1.1", *record.InProgress)
	require.NotNil(t, record.LastRun)
	assert.WithinDuration(t, time.Now().UTC(), *record.LastRun, time.Minute)

	// last write wins
	require.NoError(t, s.MarkInProgress(ctx, "1.2"))
	inProgress, err = s.IsInProgress(ctx, "1.1")
	require.NoError(t, err)
	assert.False(t, inProgress)

	require.NoError(t, s.MarkCompleted(ctx, "1.2"))
	record, err = s.LoadState(ctx)
	require.NoError(t, err)
	assert.Nil(t, record.InProgress)
	assert.Equal(t, []string{"1.2"}, record.Completed)
}

func TestStore_MarkCompletedOnlyClearsOwnSlot(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.MarkInProgress(ctx, "1.2"))
	require.NoError(t, s.MarkCompleted(ctx, "1.1"))

	inProgress, err := s.IsInProgress(ctx, "1.2")
	require.NoError(t, err)
	assert.True(t, inProgress)
}

func TestStore_MarkFailedClearsSlotWithoutCompleting(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.MarkInProgress(ctx, "1.1"))
	require.NoError(t, s.MarkFailed(ctx, "1.1"))

	record, err := s.LoadState(ctx)
	require.NoError(t, err)
	assert.Nil(t, record.InProgress)
	assert.Empty(t, record.Completed)
}

func TestStore_ResetState(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.MarkCompleted(ctx, "1.1"))
	require.NoError(t, s.MarkInProgress(ctx, "1.2"))
	require.NoError(t, s.ResetState(ctx))

	record, err := s.LoadState(ctx)
	require.NoError(t, err)
	assert.Empty(t, record.Completed)
	assert.Nil(t, record.InProgress)
	assert.Nil(t, record.LastRun)
}

func TestStore_StateSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(ctx, dir, 20)
	require.NoError(t, err)
	require.NoError(t, s.MarkCompleted(ctx, "1.1"))
	require.NoError(t, s.MarkCompleted(ctx, "2.3"))
	require.NoError(t, s.DB.Close())

	s, err = Open(ctx, dir, 20)
	require.NoError(t, err)
	defer s.DB.Close()

	record, err := s.LoadState(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"1.1", "2.3"}, record.Completed)
}

func TestStore_History(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	note := "7"
	entries := []*core.HistoryEntry{
		{ID: uuid.NewString(), Timestamp: time.Now().UTC(), SubjectID: "1.1", Event: core.HistoryEventStarted},
		{ID: uuid.NewString(), Timestamp: time.Now().UTC(), SubjectID: "1.1", Event: core.HistoryEventFailed, Note: &note},
		{ID: uuid.NewString(), Timestamp: time.Now().UTC(), SubjectID: "2.1", Event: core.HistoryEventStarted},
	}
	for _, entry := range entries {
		require.NoError(t, s.AppendHistory(ctx, entry))
	}

	got, err := s.GetHistoryEntry(ctx, entries[1].ID)
	require.NoError(t, err)
	assert.Equal(t, core.HistoryEventFailed, got.Event)
	require.NotNil(t, got.Note)
	assert.Equal(t, "7", *got.Note)

	_, err = s.GetHistoryEntry(ctx, "missing")
	assert.ErrorIs(t, err, ErrHistoryEntryNotFound)

	all, err := s.ListHistory(ctx, "", 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	// newest first
	assert.Equal(t, entries[2].ID, all[0].ID)
	assert.Equal(t, entries[0].ID, all[2].ID)

	filtered, err := s.ListHistory(ctx, "1.1", 0, 0)
	require.NoError(t, err)
	require.Len(t, filtered, 2)
	for _, entry := range filtered {
		assert.Equal(t, "1.1", entry.SubjectID)
	}

	page, err := s.ListHistory(ctx, "", 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, entries[0].ID, page[0].ID)
}

func TestStore_RunLogs(t *testing.T) {
	s := openTestStore(t)

	runID := uuid.NewString()
	require.NoError(t, s.EnsureRunLogDir(runID))
	require.NoError(t, os.WriteFile(s.RunLogPath(runID), []byte("one\ntwo\nthree\n"), 0o644))

	full, err := s.ReadRunLog(runID, 0)
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\nthree\n", full)

	tail, err := s.ReadRunLog(runID, 2)
	require.NoError(t, err)
	assert.Equal(t, "three\n", tail)

	_, err = s.ReadRunLog("missing", 0)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestStore_PruneRunLogs(t *testing.T) {
	s := openTestStore(t)
	s.LogRetention = 2

	for i, runID := range []string{"aaa", "bbb", "ccc", "ddd"} {
		require.NoError(t, s.EnsureRunLogDir(runID))
		require.NoError(t, os.WriteFile(s.RunLogPath(runID), []byte("x"), 0o644))
		mod := time.Now().Add(time.Duration(i-4) * time.Hour)
		require.NoError(t, os.Chtimes(filepath.Join(s.StateDir, "runs", runID), mod, mod))
	}

	require.NoError(t, s.PruneRunLogs())

	entries, err := os.ReadDir(filepath.Join(s.StateDir, "runs"))
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	assert.ElementsMatch(t, []string{"ccc", "ddd"}, names)
}

func TestStore_PruneRunLogsNoDir(t *testing.T) {
	s := openTestStore(t)
	assert.NoError(t, s.PruneRunLogs())
}
