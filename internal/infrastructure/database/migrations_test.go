package database

import (
	"context"
	"embed"
	"testing"
)

//go:embed testdata/*.sql
var fixtureFS embed.FS

// useFixtureMigrations points the package-level migration source at the
// testdata files for the duration of one test.
func useFixtureMigrations(t *testing.T) {
	t.Helper()
	origFS, origDir := MigrationsFS, MigrationsDir
	t.Cleanup(func() {
		MigrationsFS = origFS
		MigrationsDir = origDir
	})
	MigrationsFS = fixtureFS
	MigrationsDir = "testdata"
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name).Scan(&n)
	if err != nil {
		t.Fatalf("sqlite_master query: %v", err)
	}
	return n == 1
}

// ─── Migrate ───

func TestMigrate_AppliesAndIsIdempotent(t *testing.T) {
	useFixtureMigrations(t)
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if !tableExists(t, db, "energy_log") {
		t.Fatal("energy_log table not created")
	}

	done, err := db.appliedVersions(ctx)
	if err != nil {
		t.Fatalf("appliedVersions: %v", err)
	}
	if len(done) != 1 {
		t.Errorf("applied versions = %d, want 1", len(done))
	}
	if _, ok := done["20260101_000000"]; !ok {
		t.Errorf("version 20260101_000000 not recorded, got %v", done)
	}

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	if done, _ = db.appliedVersions(ctx); len(done) != 1 {
		t.Errorf("second Migrate changed applied set, len = %d", len(done))
	}
}

func TestMigrate_EmptyFilesystem(t *testing.T) {
	origFS, origDir := MigrationsFS, MigrationsDir
	t.Cleanup(func() {
		MigrationsFS = origFS
		MigrationsDir = origDir
	})
	MigrationsFS = embed.FS{}
	MigrationsDir = "."

	db := openTestDB(t)
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate with no migrations: %v", err)
	}
}

// ─── MigrateDown ───

func TestMigrateDown_RevertsLatest(t *testing.T) {
	useFixtureMigrations(t)
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if err := db.MigrateDown(ctx); err != nil {
		t.Fatalf("MigrateDown: %v", err)
	}

	if tableExists(t, db, "energy_log") {
		t.Error("energy_log table still present after rollback")
	}
	done, err := db.appliedVersions(ctx)
	if err != nil {
		t.Fatalf("appliedVersions: %v", err)
	}
	if len(done) != 0 {
		t.Errorf("applied versions after rollback = %d, want 0", len(done))
	}
}

func TestMigrateDown_NothingApplied(t *testing.T) {
	useFixtureMigrations(t)
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.ensureVersionTable(ctx); err != nil {
		t.Fatalf("ensureVersionTable: %v", err)
	}
	if err := db.MigrateDown(ctx); err != nil {
		t.Fatalf("MigrateDown on empty history: %v", err)
	}
}

// ─── Filename parsing ───

func TestSplitMigrationName(t *testing.T) {
	cases := []struct {
		in          string
		wantVersion string
		wantName    string
		wantUp      bool
		wantOK      bool
	}{
		{"20260815_100000_initial_schema.up.sql", "20260815_100000", "initial_schema", true, true},
		{"20260815_100000_initial_schema.down.sql", "20260815_100000", "initial_schema", false, true},
		{"20260101_000000_energy_log.up.sql", "20260101_000000", "energy_log", true, true},
		{"notes.txt", "", "", false, false},
		{"20260815_100000_missing_direction.sql", "", "", false, false},
		{"oneword.up.sql", "", "", false, false},
	}
	for _, tc := range cases {
		version, name, up, ok := splitMigrationName(tc.in)
		if ok != tc.wantOK {
			t.Errorf("splitMigrationName(%q) ok = %v, want %v", tc.in, ok, tc.wantOK)
			continue
		}
		if !ok {
			continue
		}
		if version != tc.wantVersion || name != tc.wantName || up != tc.wantUp {
			t.Errorf("splitMigrationName(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tc.in, version, name, up, tc.wantVersion, tc.wantName, tc.wantUp)
		}
	}
}

func TestLoadMigrations_SortedWithBothDirections(t *testing.T) {
	useFixtureMigrations(t)

	all, err := loadMigrations()
	if err != nil {
		t.Fatalf("loadMigrations: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("len = %d, want 1", len(all))
	}
	m := all[0]
	if m.Version != "20260101_000000" || m.Name != "energy_log" {
		t.Errorf("migration = %+v", m)
	}
	if m.UpSQL == "" || m.DownSQL == "" {
		t.Error("up or down SQL not loaded")
	}
}
