package automation

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// EventRepository defines the interface for the append-only event log.
// This abstraction allows different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type EventRepository interface {
	// Append writes an event. Persistence errors propagate to the
	// caller; the log never fails silently.
	Append(ctx context.Context, evt *Event) error

	// ListRecent returns the newest events first, up to limit.
	ListRecent(ctx context.Context, limit int) ([]Event, error)

	// ListByDevice returns the newest events for one device first,
	// up to limit.
	ListByDevice(ctx context.Context, deviceID string, limit int) ([]Event, error)

	// Count returns the total number of events in the log.
	Count(ctx context.Context) (int, error)

	// PurgeBefore deletes events older than the cutoff and returns
	// the number removed. This is the only way events are deleted.
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// eventColumns is the SELECT column list for event queries.
const eventColumns = `id, device_id, event_type, reason, surplus_w, success, error_message, created_at`

// SQLiteEventRepository implements EventRepository using SQLite.
type SQLiteEventRepository struct {
	db *sql.DB
}

// NewSQLiteEventRepository creates a new SQLite-backed event log.
func NewSQLiteEventRepository(db *sql.DB) *SQLiteEventRepository {
	return &SQLiteEventRepository{db: db}
}

// Append inserts an event row.
func (r *SQLiteEventRepository) Append(ctx context.Context, evt *Event) error {
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO automation_events (
			id, device_id, event_type, reason, surplus_w, success, error_message, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		evt.ID,
		evt.DeviceID,
		string(evt.Type),
		evt.Reason,
		evt.SurplusW,
		boolToInt(evt.Success),
		nullableString(evt.ErrorMessage),
		evt.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

// ListRecent retrieves the newest events across all devices.
//
// created_at is second-resolution text, so one automation tick can
// stamp several events identically. rowid is the insertion sequence
// and breaks those ties; PurgeBefore only removes the oldest rows, so
// the highest rowid is never reused.
func (r *SQLiteEventRepository) ListRecent(ctx context.Context, limit int) ([]Event, error) {
	query := `SELECT ` + eventColumns + `
		FROM automation_events
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`
	return r.queryEvents(ctx, query, clampLimit(limit))
}

// ListByDevice retrieves the newest events for a single device.
func (r *SQLiteEventRepository) ListByDevice(ctx context.Context, deviceID string, limit int) ([]Event, error) {
	query := `SELECT ` + eventColumns + `
		FROM automation_events
		WHERE device_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`
	return r.queryEvents(ctx, query, deviceID, clampLimit(limit))
}

// Count returns the total number of events.
func (r *SQLiteEventRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM automation_events").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting events: %w", err)
	}
	return count, nil
}

// PurgeBefore deletes events older than the cutoff.
func (r *SQLiteEventRepository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM automation_events WHERE created_at < ?",
		cutoff.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("purging events: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return removed, nil
}

func (r *SQLiteEventRepository) queryEvents(ctx context.Context, query string, args ...any) ([]Event, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		evt, scanErr := scanEventRow(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning event: %w", scanErr)
		}
		events = append(events, *evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}
	return events, nil
}

// ─── Row Scanning Helpers ───────────────────────────────────────────────────

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEventRow(scanner rowScanner) (*Event, error) {
	var e Event
	var eventType string
	var success int
	var errorMessage sql.NullString
	var createdAt string

	err := scanner.Scan(
		&e.ID,
		&e.DeviceID,
		&eventType,
		&e.Reason,
		&e.SurplusW,
		&success,
		&errorMessage,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	e.Type = EventType(eventType)
	e.Success = success != 0
	if errorMessage.Valid {
		e.ErrorMessage = &errorMessage.String
	}
	if t, parseErr := time.Parse(time.RFC3339, createdAt); parseErr == nil {
		e.CreatedAt = t
	}
	return &e, nil
}

// ─── SQL Helpers ────────────────────────────────────────────────────────────

// clampLimit bounds query limits to a sane range.
func clampLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func nullableString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
