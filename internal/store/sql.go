package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// sqlStore holds the queries shared by the SQLite and MySQL backends.
// Both use ? placeholders and store timestamps as unix seconds, so only
// the schema and the open path differ per driver.
type sqlStore struct {
	db *sql.DB
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

func (s *sqlStore) AddEvent(ctx context.Context, group string, createdAt time.Time, convertedAt *time.Time) (*Event, error) {
	var conv sql.NullInt64
	if convertedAt != nil {
		conv = sql.NullInt64{Int64: convertedAt.Unix(), Valid: true}
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO events (cohort, created_at, converted_at) VALUES (?, ?, ?)`,
		group, createdAt.Unix(), conv,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	event := &Event{
		ID:        id,
		Group:     group,
		CreatedAt: time.Unix(createdAt.Unix(), 0),
	}
	if convertedAt != nil {
		t := time.Unix(convertedAt.Unix(), 0)
		event.ConvertedAt = &t
	}

	return event, nil
}

func (s *sqlStore) MarkConverted(ctx context.Context, id int64, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE events SET converted_at = ? WHERE id = ?`,
		at.Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark conversion: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// ListEvents returns events in creation order. An empty group lists the
// whole table.
func (s *sqlStore) ListEvents(ctx context.Context, group string) ([]*Event, error) {
	query := `SELECT id, cohort, created_at, converted_at FROM events ORDER BY created_at, id`
	var args []any
	if group != "" {
		query = `SELECT id, cohort, created_at, converted_at FROM events WHERE cohort = ? ORDER BY created_at, id`
		args = append(args, group)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var e Event
		var createdAt int64
		var convertedAt sql.NullInt64
		if err := rows.Scan(&e.ID, &e.Group, &createdAt, &convertedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.CreatedAt = time.Unix(createdAt, 0)
		if convertedAt.Valid {
			t := time.Unix(convertedAt.Int64, 0)
			e.ConvertedAt = &t
		}
		events = append(events, &e)
	}

	return events, nil
}

func (s *sqlStore) GroupStats(ctx context.Context) ([]GroupStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			cohort,
			COUNT(*) as units,
			COUNT(converted_at) as conversions,
			MIN(created_at) as oldest
		FROM events
		GROUP BY cohort
		ORDER BY cohort
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get group stats: %w", err)
	}
	defer rows.Close()

	var stats []GroupStats
	for rows.Next() {
		var g GroupStats
		var oldest int64
		if err := rows.Scan(&g.Group, &g.Units, &g.Conversions, &oldest); err != nil {
			return nil, fmt.Errorf("failed to scan stats: %w", err)
		}
		g.Oldest = time.Unix(oldest, 0)
		stats = append(stats, g)
	}

	return stats, nil
}
