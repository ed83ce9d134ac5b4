package device

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the devices table.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	// Create devices table matching the schema
	schema := `
		CREATE TABLE devices (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			power_w REAL NOT NULL,
			priority TEXT NOT NULL,
			category TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'off',
			automated INTEGER NOT NULL DEFAULT 1,
			manual_override INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		);
		CREATE INDEX idx_devices_category ON devices(category);
		CREATE INDEX idx_devices_status ON devices(status);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// testDevice creates a device for testing.
func testDevice(id, name string) *Device {
	return &Device{
		ID:        id,
		Name:      name,
		PowerW:    1200,
		Priority:  PriorityMedium,
		Category:  CategoryAppliance,
		Status:    StatusOff,
		Automated: true,
	}
}

func TestSQLiteRepository_Create(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	d := testDevice("washer", "Washing Machine")
	if err := repo.Create(ctx, d); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if d.CreatedAt.IsZero() || d.UpdatedAt.IsZero() {
		t.Error("Create should set timestamps")
	}

	// Duplicate ID
	dup := testDevice("washer", "Other Washer")
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrExists) {
		t.Errorf("duplicate Create error = %v, want ErrExists", err)
	}
}

func TestSQLiteRepository_GetByID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	want := testDevice("heater", "Water Heater")
	want.PowerW = 2000
	want.Priority = PriorityHigh
	want.Category = CategoryHeating
	if err := repo.Create(ctx, want); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := repo.GetByID(ctx, "heater")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Name != "Water Heater" || got.PowerW != 2000 {
		t.Errorf("got %q %.0f W, want Water Heater 2000 W", got.Name, got.PowerW)
	}
	if got.Priority != PriorityHigh || got.Category != CategoryHeating {
		t.Errorf("got priority %q category %q", got.Priority, got.Category)
	}
	if !got.Automated || got.ManualOverride {
		t.Errorf("got automated=%v override=%v, want true/false", got.Automated, got.ManualOverride)
	}

	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID(missing) error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteRepository_List(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	for _, d := range []*Device{
		testDevice("b", "Boiler"),
		testDevice("a", "Aircon"),
		testDevice("c", "Charger"),
	} {
		if err := repo.Create(ctx, d); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	devices, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(devices) != 3 {
		t.Fatalf("got %d devices, want 3", len(devices))
	}
	// Ordered by name
	if devices[0].Name != "Aircon" || devices[2].Name != "Charger" {
		t.Errorf("list not ordered by name: %v, %v, %v",
			devices[0].Name, devices[1].Name, devices[2].Name)
	}
}

func TestSQLiteRepository_Update(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	d := testDevice("pump", "Pool Pump")
	if err := repo.Create(ctx, d); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	d.Name = "Pool Pump Main"
	d.PowerW = 850
	d.Priority = PriorityLow
	if err := repo.Update(ctx, d); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, err := repo.GetByID(ctx, "pump")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Name != "Pool Pump Main" || got.PowerW != 850 || got.Priority != PriorityLow {
		t.Errorf("update not persisted: %+v", got)
	}

	missing := testDevice("nope", "Missing")
	if err := repo.Update(ctx, missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update(missing) error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteRepository_UpdateStatus(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	d := testDevice("washer", "Washing Machine")
	if err := repo.Create(ctx, d); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	now := time.Now().UTC()
	if err := repo.UpdateStatus(ctx, "washer", StatusOn, now); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	got, err := repo.GetByID(ctx, "washer")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != StatusOn {
		t.Errorf("status = %q, want on", got.Status)
	}
	// Other columns untouched
	if got.Name != "Washing Machine" || !got.Automated {
		t.Errorf("UpdateStatus modified unrelated columns: %+v", got)
	}

	if err := repo.UpdateStatus(ctx, "missing", StatusOn, now); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateStatus(missing) error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteRepository_UpdateOverride(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	d := testDevice("ev", "EV Charger")
	if err := repo.Create(ctx, d); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := repo.UpdateOverride(ctx, "ev", true, time.Now().UTC()); err != nil {
		t.Fatalf("UpdateOverride failed: %v", err)
	}

	got, err := repo.GetByID(ctx, "ev")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if !got.ManualOverride {
		t.Error("override not persisted")
	}
}

func TestSQLiteRepository_ClearOverrides(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, id := range []string{"a", "b", "c"} {
		d := testDevice(id, "Device "+id)
		if err := repo.Create(ctx, d); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}
	for _, id := range []string{"a", "c"} {
		if err := repo.UpdateOverride(ctx, id, true, now); err != nil {
			t.Fatalf("UpdateOverride failed: %v", err)
		}
	}

	ids, err := repo.ClearOverrides(ctx, now)
	if err != nil {
		t.Fatalf("ClearOverrides failed: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("cleared %d overrides, want 2", len(ids))
	}

	devices, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	for _, d := range devices {
		if d.ManualOverride {
			t.Errorf("device %q still overridden after clear", d.ID)
		}
	}

	// No overrides left: no-op
	ids, err = repo.ClearOverrides(ctx, now)
	if err != nil {
		t.Fatalf("second ClearOverrides failed: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("second clear returned %d ids, want 0", len(ids))
	}
}

func TestSQLiteRepository_Delete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	d := testDevice("gone", "Doomed")
	if err := repo.Create(ctx, d); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := repo.Delete(ctx, "gone"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := repo.GetByID(ctx, "gone"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID after delete error = %v, want ErrNotFound", err)
	}
	if err := repo.Delete(ctx, "gone"); !errors.Is(err, ErrNotFound) {
		t.Errorf("double Delete error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteRepository_Count(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	count, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("empty count = %d, want 0", count)
	}

	if err := repo.Create(ctx, testDevice("one", "One")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	count, err = repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestSeed(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	if err := Seed(ctx, repo, nil); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}

	devices, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(devices) != 6 {
		t.Fatalf("seeded %d devices, want 6", len(devices))
	}

	// Idempotent on populated databases
	if err := Seed(ctx, repo, nil); err != nil {
		t.Fatalf("second Seed failed: %v", err)
	}
	count, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 6 {
		t.Errorf("count after second seed = %d, want 6", count)
	}

	// The fleet should be all off, all automated, none overridden
	for _, d := range devices {
		if d.Status != StatusOff || !d.Automated || d.ManualOverride {
			t.Errorf("seed device %q: status=%q automated=%v override=%v",
				d.ID, d.Status, d.Automated, d.ManualOverride)
		}
		if err := Validate(&d); err != nil {
			t.Errorf("seed device %q invalid: %v", d.ID, err)
		}
	}
}
