package influxdb_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/helioshome/helios-core/internal/infrastructure/config"
	"github.com/helioshome/helios-core/internal/infrastructure/influxdb"
)

// devConfig matches the local docker-compose InfluxDB. Tests needing a
// live server skip themselves when it is not reachable.
func devConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "helios-dev-token",
		Org:           "helios",
		Bucket:        "metrics",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

func liveClient(t *testing.T) *influxdb.Client {
	t.Helper()
	c, err := influxdb.Connect(devConfig())
	if err != nil {
		t.Skipf("influxdb not reachable: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// collectErrors wires SetOnError into a race-safe slice.
func collectErrors(c *influxdb.Client) func() []error {
	var mu sync.Mutex
	var errs []error
	c.SetOnError(func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	})
	return func() []error {
		mu.Lock()
		defer mu.Unlock()
		return append([]error(nil), errs...)
	}
}

// ─── Connect ───

func TestConnect_Disabled(t *testing.T) {
	cfg := devConfig()
	cfg.Enabled = false
	if _, err := influxdb.Connect(cfg); !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	cfg := devConfig()
	cfg.URL = "http://127.0.0.1:59999"
	if _, err := influxdb.Connect(cfg); !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect_Live(t *testing.T) {
	c := liveClient(t)
	if !c.IsConnected() {
		t.Error("IsConnected = false after Connect")
	}
}

func TestConnect_ZeroBatchSettingsUseDefaults(t *testing.T) {
	cfg := devConfig()
	cfg.BatchSize = 0
	cfg.FlushInterval = -1
	c, err := influxdb.Connect(cfg)
	if err != nil {
		t.Skipf("influxdb not reachable: %v", err)
	}
	defer c.Close()
	if !c.IsConnected() {
		t.Error("IsConnected = false with defaulted batch settings")
	}
}

// ─── Health ───

func TestHealthCheck_Live(t *testing.T) {
	c := liveClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck: %v", err)
	}
}

func TestHealthCheck_AfterClose(t *testing.T) {
	c, err := influxdb.Connect(devConfig())
	if err != nil {
		t.Skipf("influxdb not reachable: %v", err)
	}
	c.Close()
	if err := c.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck after Close = %v, want ErrNotConnected", err)
	}
}

// ─── Writes ───

func TestWritePowerReading(t *testing.T) {
	c := liveClient(t)
	errs := collectErrors(c)

	c.WritePowerReading(3200, 1100, -2100, time.Now())
	c.Flush()
	time.Sleep(100 * time.Millisecond)

	if got := errs(); len(got) != 0 {
		t.Errorf("write errors: %v", got)
	}
}

func TestWriteAutomationEvent(t *testing.T) {
	c := liveClient(t)
	errs := collectErrors(c)

	c.WriteAutomationEvent("water-heater", "turn_on", 2450, true)
	c.WriteAutomationEvent("pool-pump", "turn_off", -300, false)
	c.Flush()
	time.Sleep(100 * time.Millisecond)

	if got := errs(); len(got) != 0 {
		t.Errorf("write errors: %v", got)
	}
}

func TestWriteAfterClose_IsDropped(t *testing.T) {
	c, err := influxdb.Connect(devConfig())
	if err != nil {
		t.Skipf("influxdb not reachable: %v", err)
	}
	c.Close()

	// Must not panic or block.
	c.WritePowerReading(1000, 500, -500, time.Now())
	c.Flush()
}

// ─── Close ───

func TestClose_FlushesAndDisconnects(t *testing.T) {
	c, err := influxdb.Connect(devConfig())
	if err != nil {
		t.Skipf("influxdb not reachable: %v", err)
	}

	c.WritePowerReading(2800, 900, -1900, time.Now())
	if err := c.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if c.IsConnected() {
		t.Error("IsConnected = true after Close")
	}
}
