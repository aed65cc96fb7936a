package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"setuptask/internal/core"
)

// LoadState materializes the full state record. A database with no prior
// record yields an empty record, never an error.
func (s *Store) LoadState(ctx context.Context) (*core.StateRecord, error) {
	record := &core.StateRecord{}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT task_id FROM completed_tasks ORDER BY rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("query completed tasks: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan completed task: %w", err)
		}
		record.Completed = append(record.Completed, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var inProgress, lastRun sql.NullString
	err = s.DB.QueryRowContext(ctx, `SELECT in_progress, last_run FROM state WHERE id = 1`).
		Scan(&inProgress, &lastRun)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("query state: %w", err)
	}
	if inProgress.Valid && inProgress.String != "" {
		record.InProgress = &inProgress.String
	}
	if lastRun.Valid && lastRun.String != "" {
		if t, err := time.Parse(time.RFC3339Nano, lastRun.String); err == nil {
			record.LastRun = &t
		}
	}
	return record, nil
}

// IsCompleted reports whether the task id is in the completed set.
func (s *Store) IsCompleted(ctx context.Context, taskID string) (bool, error) {
	var count int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(1) FROM completed_tasks WHERE task_id = ?`, taskID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check completed: %w", err)
	}
	return count > 0, nil
}

// IsInProgress reports whether the task id occupies the in-progress slot.
func (s *Store) IsInProgress(ctx context.Context, taskID string) (bool, error) {
	var inProgress sql.NullString
	err := s.DB.QueryRowContext(ctx, `SELECT in_progress FROM state WHERE id = 1`).Scan(&inProgress)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check in progress: %w", err)
	}
	return inProgress.Valid && inProgress.String == taskID, nil
}

// MarkInProgress sets the in-progress slot to the task id and stamps the
// last-run time. The slot has last-write-wins semantics; mutual exclusion is
// the caller's concern.
func (s *Store) MarkInProgress(ctx context.Context, taskID string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO state (id, in_progress, last_run) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET in_progress = excluded.in_progress, last_run = excluded.last_run
	`, taskID, now)
	if err != nil {
		return fmt.Errorf("mark in progress: %w", err)
	}
	return nil
}

// MarkCompleted adds the task id to the completed set (union semantics) and
// clears the in-progress slot if it holds this id.
func (s *Store) MarkCompleted(ctx context.Context, taskID string) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin mark completed: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO completed_tasks (task_id, completed_at) VALUES (?, ?)
	`, taskID, now); err != nil {
		return fmt.Errorf("insert completed: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE state SET in_progress = NULL WHERE id = 1 AND in_progress = ?
	`, taskID); err != nil {
		return fmt.Errorf("clear in progress: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit mark completed: %w", err)
	}
	return nil
}

// MarkFailed clears the in-progress slot if it holds this id. Failed tasks
// never join the completed set.
func (s *Store) MarkFailed(ctx context.Context, taskID string) error {
	_, err := s.DB.ExecContext(ctx, `
		UPDATE state SET in_progress = NULL WHERE id = 1 AND in_progress = ?
	`, taskID)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

// ResetState empties the completed set and clears the in-progress slot and
// last-run time.
func (s *Store) ResetState(ctx context.Context) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reset: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM completed_tasks`); err != nil {
		return fmt.Errorf("clear completed: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE state SET in_progress = NULL, last_run = NULL WHERE id = 1`); err != nil {
		return fmt.Errorf("clear state: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reset: %w", err)
	}
	return nil
}
