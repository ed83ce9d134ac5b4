package automation

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the events table.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE automation_events (
			id TEXT PRIMARY KEY,
			device_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			surplus_w REAL NOT NULL DEFAULT 0,
			success INTEGER NOT NULL DEFAULT 1,
			error_message TEXT,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		);
		CREATE INDEX idx_automation_events_created ON automation_events(created_at);
		CREATE INDEX idx_automation_events_device ON automation_events(device_id, created_at);
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

func testEvent(deviceID string, typ EventType, createdAt time.Time) *Event {
	return &Event{
		ID:        GenerateID(),
		DeviceID:  deviceID,
		Type:      typ,
		Reason:    "Solar surplus of 2500 W available",
		SurplusW:  2500,
		Success:   true,
		CreatedAt: createdAt,
	}
}

func TestSQLiteEventRepository_Append(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteEventRepository(db)
	ctx := context.Background()

	evt := testEvent("heater", EventTurnOn, time.Now().UTC())
	if err := repo.Append(ctx, evt); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	events, err := repo.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	got := events[0]
	if got.DeviceID != "heater" || got.Type != EventTurnOn || got.SurplusW != 2500 {
		t.Errorf("event = %+v", got)
	}
	if !got.Success || got.ErrorMessage != nil {
		t.Errorf("success = %v, error = %v", got.Success, got.ErrorMessage)
	}
}

func TestSQLiteEventRepository_AppendFailure(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteEventRepository(db)
	ctx := context.Background()

	evt := testEvent("heater", EventTurnOn, time.Now().UTC())
	evt.Success = false
	msg := "disk full"
	evt.ErrorMessage = &msg
	if err := repo.Append(ctx, evt); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	events, err := repo.ListRecent(ctx, 1)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if events[0].Success {
		t.Error("success flag not persisted")
	}
	if events[0].ErrorMessage == nil || *events[0].ErrorMessage != "disk full" {
		t.Errorf("error message = %v, want disk full", events[0].ErrorMessage)
	}
}

func TestSQLiteEventRepository_ListRecent_MostRecentFirst(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteEventRepository(db)
	ctx := context.Background()
	base := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		evt := testEvent(fmt.Sprintf("dev-%d", i), EventTurnOn, base.Add(time.Duration(i)*time.Minute))
		if err := repo.Append(ctx, evt); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	events, err := repo.ListRecent(ctx, 3)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	if events[0].DeviceID != "dev-4" || events[2].DeviceID != "dev-2" {
		t.Errorf("not most-recent-first: %v, %v, %v",
			events[0].DeviceID, events[1].DeviceID, events[2].DeviceID)
	}
}

func TestSQLiteEventRepository_ListRecent_SameSecondKeepsInsertionOrder(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteEventRepository(db)
	ctx := context.Background()

	// One tick toggling several devices stamps every event with the
	// same second-resolution timestamp.
	stamp := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 8; i++ {
		if err := repo.Append(ctx, testEvent(fmt.Sprintf("dev-%d", i), EventTurnOn, stamp)); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	events, err := repo.ListRecent(ctx, 8)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if len(events) != 8 {
		t.Fatalf("got %d events, want 8", len(events))
	}
	for i, e := range events {
		if want := fmt.Sprintf("dev-%d", 7-i); e.DeviceID != want {
			t.Errorf("position %d: got %s, want %s", i, e.DeviceID, want)
		}
	}
}

func TestSQLiteEventRepository_ListByDevice_SameSecondKeepsInsertionOrder(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteEventRepository(db)
	ctx := context.Background()

	stamp := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	sequence := []EventType{EventTurnOn, EventTurnOff, EventTurnOn}
	for _, typ := range sequence {
		if err := repo.Append(ctx, testEvent("heater", typ, stamp)); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	events, err := repo.ListByDevice(ctx, "heater", 10)
	if err != nil {
		t.Fatalf("ListByDevice failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	for i, e := range events {
		if want := sequence[len(sequence)-1-i]; e.Type != want {
			t.Errorf("position %d: got %s, want %s", i, e.Type, want)
		}
	}
}

func TestSQLiteEventRepository_ListByDevice(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteEventRepository(db)
	ctx := context.Background()
	base := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		if err := repo.Append(ctx, testEvent("heater", EventTurnOn, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	if err := repo.Append(ctx, testEvent("pump", EventTurnOff, base)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	events, err := repo.ListByDevice(ctx, "heater", 10)
	if err != nil {
		t.Fatalf("ListByDevice failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	for _, e := range events {
		if e.DeviceID != "heater" {
			t.Errorf("event device = %q, want heater", e.DeviceID)
		}
	}
	// Insertion order preserved, newest first
	if !events[0].CreatedAt.After(events[1].CreatedAt) {
		t.Error("events not ordered newest first")
	}
}

func TestSQLiteEventRepository_Count(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteEventRepository(db)
	ctx := context.Background()

	count, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("empty count = %d, want 0", count)
	}

	for i := 0; i < 4; i++ {
		if err := repo.Append(ctx, testEvent("heater", EventTurnOn, time.Now().UTC())); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	count, err = repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 4 {
		t.Errorf("count = %d, want 4", count)
	}
}

func TestSQLiteEventRepository_PurgeBefore(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteEventRepository(db)
	ctx := context.Background()
	base := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

	if err := repo.Append(ctx, testEvent("old", EventTurnOn, base.AddDate(0, 0, -100))); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := repo.Append(ctx, testEvent("recent", EventTurnOn, base)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	removed, err := repo.PurgeBefore(ctx, base.AddDate(0, 0, -90))
	if err != nil {
		t.Fatalf("PurgeBefore failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed %d events, want 1", removed)
	}

	events, err := repo.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if len(events) != 1 || events[0].DeviceID != "recent" {
		t.Errorf("surviving events = %v", events)
	}
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, 50},
		{-5, 50},
		{25, 25},
		{500, 500},
		{9999, 500},
	}
	for _, tt := range tests {
		if got := clampLimit(tt.in); got != tt.want {
			t.Errorf("clampLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
