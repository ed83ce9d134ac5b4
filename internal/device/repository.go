package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for device persistence.
// This abstraction allows different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Device, error)
	List(ctx context.Context) ([]Device, error)
	Create(ctx context.Context, d *Device) error
	Update(ctx context.Context, d *Device) error

	// UpdateStatus persists only the switch state and updated_at.
	// Used on the hot path so automation ticks avoid full-row writes.
	UpdateStatus(ctx context.Context, id string, status Status, updatedAt time.Time) error

	// UpdateOverride persists only the manual override flag and updated_at.
	UpdateOverride(ctx context.Context, id string, override bool, updatedAt time.Time) error

	// ClearOverrides resets the override flag on every overridden device
	// and returns the IDs that were cleared.
	ClearOverrides(ctx context.Context, updatedAt time.Time) ([]string, error)

	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// deviceColumns is the SELECT column list for device queries.
const deviceColumns = `id, name, power_w, priority, category, status,
			automated, manual_override, created_at, updated_at`

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByID retrieves a device by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	d, err := scanDeviceRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return d, nil
}

// List retrieves all devices ordered by name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		d, scanErr := scanDeviceRow(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning device: %w", scanErr)
		}
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, nil
}

// Create inserts a new device.
func (r *SQLiteRepository) Create(ctx context.Context, d *Device) error {
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now

	query := `
		INSERT INTO devices (
			id, name, power_w, priority, category, status,
			automated, manual_override, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		d.ID,
		d.Name,
		d.PowerW,
		string(d.Priority),
		string(d.Category),
		string(d.Status),
		boolToInt(d.Automated),
		boolToInt(d.ManualOverride),
		d.CreatedAt.Format(time.RFC3339),
		d.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrExists
		}
		return fmt.Errorf("inserting device: %w", err)
	}
	return nil
}

// Update modifies an existing device.
func (r *SQLiteRepository) Update(ctx context.Context, d *Device) error {
	d.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE devices SET
			name = ?, power_w = ?, priority = ?, category = ?, status = ?,
			automated = ?, manual_override = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		d.Name,
		d.PowerW,
		string(d.Priority),
		string(d.Category),
		string(d.Status),
		boolToInt(d.Automated),
		boolToInt(d.ManualOverride),
		d.UpdatedAt.Format(time.RFC3339),
		d.ID,
	)
	if err != nil {
		return fmt.Errorf("updating device: %w", err)
	}
	return checkAffected(result)
}

// UpdateStatus persists a status change without touching other columns.
func (r *SQLiteRepository) UpdateStatus(ctx context.Context, id string, status Status, updatedAt time.Time) error {
	query := `UPDATE devices SET status = ?, updated_at = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		string(status),
		updatedAt.UTC().Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("updating device status: %w", err)
	}
	return checkAffected(result)
}

// UpdateOverride persists a manual override change without touching other columns.
func (r *SQLiteRepository) UpdateOverride(ctx context.Context, id string, override bool, updatedAt time.Time) error {
	query := `UPDATE devices SET manual_override = ?, updated_at = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		boolToInt(override),
		updatedAt.UTC().Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("updating device override: %w", err)
	}
	return checkAffected(result)
}

// ClearOverrides resets the override flag for every overridden device.
func (r *SQLiteRepository) ClearOverrides(ctx context.Context, updatedAt time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM devices WHERE manual_override = 1`)
	if err != nil {
		return nil, fmt.Errorf("querying overridden devices: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if scanErr := rows.Scan(&id); scanErr != nil {
			return nil, fmt.Errorf("scanning device id: %w", scanErr)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device ids: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	query := `UPDATE devices SET manual_override = 0, updated_at = ? WHERE manual_override = 1`
	if _, err := r.db.ExecContext(ctx, query, updatedAt.UTC().Format(time.RFC3339)); err != nil {
		return nil, fmt.Errorf("clearing overrides: %w", err)
	}
	return ids, nil
}

// Delete removes a device by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}
	return checkAffected(result)
}

// Count returns the total number of devices.
func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM devices").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting devices: %w", err)
	}
	return count, nil
}

// ─── Row Scanning Helpers ───────────────────────────────────────────────────

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDeviceRow(scanner rowScanner) (*Device, error) {
	var d Device
	var priority, category, status string
	var automated, manualOverride int
	var createdAt, updatedAt string

	err := scanner.Scan(
		&d.ID,
		&d.Name,
		&d.PowerW,
		&priority,
		&category,
		&status,
		&automated,
		&manualOverride,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.Priority = Priority(priority)
	d.Category = Category(category)
	d.Status = Status(status)
	d.Automated = automated != 0
	d.ManualOverride = manualOverride != 0

	// Timestamps are stored as RFC3339 strings
	if t, parseErr := time.Parse(time.RFC3339, createdAt); parseErr == nil {
		d.CreatedAt = t
	}
	if t, parseErr := time.Parse(time.RFC3339, updatedAt); parseErr == nil {
		d.UpdatedAt = t
	}

	return &d, nil
}

// ─── SQL Helpers ────────────────────────────────────────────────────────────

func checkAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
