package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"setuptask/internal/core"
)

var ErrHistoryEntryNotFound = errors.New("history entry not found")

// AppendHistory inserts one audit record. History rows are never updated or
// deleted.
func (s *Store) AppendHistory(ctx context.Context, entry *core.HistoryEntry) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO history (id, timestamp, subject_id, event, note)
		VALUES (?, ?, ?, ?, ?)
	`, entry.ID, entry.Timestamp.UTC().Format(time.RFC3339Nano), entry.SubjectID, entry.Event, nullableString(entry.Note))
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// GetHistoryEntry resolves one audit record by id.
func (s *Store) GetHistoryEntry(ctx context.Context, id string) (*core.HistoryEntry, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT id, timestamp, subject_id, event, note
		FROM history WHERE id = ?
	`, id)
	entry, err := scanHistoryEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrHistoryEntryNotFound
		}
		return nil, err
	}
	return entry, nil
}

// ListHistory returns audit records newest first. subjectID narrows the
// listing to one task or wizard when non-empty.
func (s *Store) ListHistory(ctx context.Context, subjectID string, limit, offset int) ([]*core.HistoryEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows *sql.Rows
	var err error
	if subjectID != "" {
		rows, err = s.DB.QueryContext(ctx, `
			SELECT id, timestamp, subject_id, event, note
			FROM history
			WHERE subject_id = ?
			ORDER BY rowid DESC
			LIMIT ? OFFSET ?
		`, subjectID, limit, offset)
	} else {
		rows, err = s.DB.QueryContext(ctx, `
			SELECT id, timestamp, subject_id, event, note
			FROM history
			ORDER BY rowid DESC
			LIMIT ? OFFSET ?
		`, limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()
	var entries []*core.HistoryEntry
	for rows.Next() {
		entry, err := scanHistoryEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func scanHistoryEntry(scanner interface {
	Scan(dest ...any) error
}) (*core.HistoryEntry, error) {
	var (
		id        string
		timestamp string
		subjectID string
		event     string
		note      sql.NullString
	)
	if err := scanner.Scan(&id, &timestamp, &subjectID, &event, &note); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan history entry: %w", err)
	}
	entry := &core.HistoryEntry{
		ID:        id,
		SubjectID: subjectID,
		Event:     core.HistoryEvent(event),
	}
	if t, err := time.Parse(time.RFC3339Nano, timestamp); err == nil {
		entry.Timestamp = t
	}
	if note.Valid {
		entry.Note = &note.String
	}
	return entry, nil
}

func nullableString(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}
