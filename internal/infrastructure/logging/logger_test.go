package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/helioshome/helios-core/internal/infrastructure/config"
)

// ─── Construction ───

func TestNew(t *testing.T) {
	for _, cfg := range []config.LoggingConfig{
		{Level: "info", Format: "json", Output: "stdout"},
		{Level: "debug", Format: "text", Output: "stderr"},
		{Level: "", Format: "", Output: ""},
	} {
		if New(cfg, "0.1.0") == nil {
			t.Fatalf("New(%+v) returned nil", cfg)
		}
	}
}

func TestDefault(t *testing.T) {
	if Default() == nil {
		t.Fatal("Default() returned nil")
	}
}

// ─── Level parsing ───

func TestLevelFor(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":    slog.LevelDebug,
		"DEBUG":    slog.LevelDebug,
		"info":     slog.LevelInfo,
		"warn":     slog.LevelWarn,
		"warning":  slog.LevelWarn,
		"error":    slog.LevelError,
		"verbose":  slog.LevelInfo,
		"":         slog.LevelInfo,
	}
	for in, want := range cases {
		if got := levelFor(in); got != want {
			t.Errorf("levelFor(%q) = %v, want %v", in, got, want)
		}
	}
}

// ─── Child loggers ───

func TestWith_ReturnsDistinctLogger(t *testing.T) {
	parent := Default()
	child := parent.With("component", "inverter")

	if child == nil {
		t.Fatal("With returned nil")
	}
	if child == parent {
		t.Error("With returned the parent logger")
	}
}

// ─── Record shape ───

func TestRecordCarriesServiceAttributes(t *testing.T) {
	var buf bytes.Buffer
	h := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}).
		WithAttrs([]slog.Attr{
			slog.String("service", serviceName),
			slog.String("version", "test"),
		})
	log := &Logger{Logger: slog.New(h)}

	log.Info("surplus available", "surplus_w", 1500)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("record is not JSON: %v", err)
	}
	if rec["service"] != serviceName {
		t.Errorf("service = %v, want %q", rec["service"], serviceName)
	}
	if rec["msg"] != "surplus available" {
		t.Errorf("msg = %v", rec["msg"])
	}
	if rec["surplus_w"] != float64(1500) {
		t.Errorf("surplus_w = %v", rec["surplus_w"])
	}
	if !strings.Contains(buf.String(), `"version":"test"`) {
		t.Error("record missing version attribute")
	}
}

func TestDebugFilteredAtInfoLevel(t *testing.T) {
	var buf bytes.Buffer
	h := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: levelFor("info")})
	log := &Logger{Logger: slog.New(h)}

	log.Debug("tick skipped")
	if buf.Len() != 0 {
		t.Errorf("debug record emitted at info level: %s", buf.String())
	}

	log.Warn("reading stale")
	if buf.Len() == 0 {
		t.Error("warn record suppressed at info level")
	}
}
