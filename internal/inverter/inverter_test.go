package inverter

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/helioshome/helios-core/internal/automation"
)

func TestSimulator_DaylightCurve(t *testing.T) {
	sim := NewSimulator(5000, 400, 42)

	at := func(hour int) automation.PowerReading {
		sim.now = func() time.Time {
			return time.Date(2026, 6, 15, hour, 0, 0, 0, time.UTC)
		}
		reading, err := sim.Read(context.Background())
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		return reading
	}

	if r := at(2); r.SolarW != 0 {
		t.Errorf("solar at 02:00 = %.0f, want 0", r.SolarW)
	}
	if r := at(23); r.SolarW != 0 {
		t.Errorf("solar at 23:00 = %.0f, want 0", r.SolarW)
	}

	noon := at(13)
	if noon.SolarW < 3000 {
		t.Errorf("solar at 13:00 = %.0f, want near the 5000 W peak", noon.SolarW)
	}
	morning := at(7)
	if morning.SolarW >= noon.SolarW {
		t.Errorf("solar at 07:00 (%.0f) should be below noon (%.0f)", morning.SolarW, noon.SolarW)
	}

	// Load never drops below a plausible floor and bumps in the evening
	if noon.LoadW <= 0 {
		t.Errorf("load at noon = %.0f, want positive", noon.LoadW)
	}
	evening := at(20)
	if evening.LoadW <= noon.LoadW {
		t.Errorf("evening load (%.0f) should exceed midday load (%.0f)", evening.LoadW, noon.LoadW)
	}
}

func TestSimulator_Deterministic(t *testing.T) {
	read := func(seed int64) automation.PowerReading {
		sim := NewSimulator(5000, 400, seed)
		sim.now = func() time.Time {
			return time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
		}
		r, err := sim.Read(context.Background())
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		return r
	}

	a, b := read(7), read(7)
	if a.SolarW != b.SolarW || a.LoadW != b.LoadW {
		t.Errorf("same seed produced different readings: %+v vs %+v", a, b)
	}
}

func TestMQTTSource_Lifecycle(t *testing.T) {
	src := NewMQTTSource()
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	src.now = func() time.Time { return now }

	// Nothing pushed yet
	if _, err := src.Read(context.Background()); !errors.Is(err, ErrNoReading) {
		t.Errorf("Read before push error = %v, want ErrNoReading", err)
	}

	handler := src.Handler()
	payload, _ := json.Marshal(map[string]any{
		"solar_w":   3200.0,
		"load_w":    900.0,
		"grid_w":    -2300.0,
		"timestamp": now.Format(time.RFC3339),
	})
	if err := handler("helios/reading/power", payload); err != nil {
		t.Fatalf("handler failed: %v", err)
	}

	reading, err := src.Read(context.Background())
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if reading.SolarW != 3200 || reading.LoadW != 900 {
		t.Errorf("reading = %+v", reading)
	}

	// Stale after the freshness window
	src.now = func() time.Time { return now.Add(3 * time.Minute) }
	if _, err := src.Read(context.Background()); !errors.Is(err, ErrStaleReading) {
		t.Errorf("stale Read error = %v, want ErrStaleReading", err)
	}
}

func TestMQTTSource_RejectsBadPayloads(t *testing.T) {
	src := NewMQTTSource()
	handler := src.Handler()

	if err := handler("helios/reading/power", []byte("not json")); err == nil {
		t.Error("handler accepted malformed JSON")
	}
	negative, _ := json.Marshal(map[string]any{"solar_w": -10.0, "load_w": 500.0})
	if err := handler("helios/reading/power", negative); err == nil {
		t.Error("handler accepted negative production")
	}
	if _, err := src.Read(context.Background()); !errors.Is(err, ErrNoReading) {
		t.Errorf("bad payloads should not populate the source, got %v", err)
	}
}

// stubSource returns queued readings then an error.
type stubSource struct {
	mu       sync.Mutex
	readings []automation.PowerReading
	err      error
	reads    int
}

func (s *stubSource) Read(context.Context) (automation.PowerReading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if len(s.readings) == 0 {
		return automation.PowerReading{}, s.err
	}
	r := s.readings[0]
	s.readings = s.readings[1:]
	return r, nil
}

type stubConsumer struct {
	mu       sync.Mutex
	readings []automation.PowerReading
}

func (c *stubConsumer) Update(_ context.Context, r automation.PowerReading) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readings = append(c.readings, r)
}

func (c *stubConsumer) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.readings)
}

func TestPoller_FeedsConsumer(t *testing.T) {
	reading := automation.PowerReading{SolarW: 2000, LoadW: 500, Timestamp: time.Now().UTC()}
	source := &stubSource{readings: []automation.PowerReading{reading, reading, reading}}
	consumer := &stubConsumer{}
	poller := NewPoller(source, consumer, nil, nil, 10*time.Millisecond, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	poller.Run(ctx)

	if consumer.count() < 2 {
		t.Errorf("consumer received %d readings, want at least 2", consumer.count())
	}
}

func TestPoller_SkipsFailedReads(t *testing.T) {
	source := &stubSource{err: errors.New("gateway offline")}
	consumer := &stubConsumer{}
	poller := NewPoller(source, consumer, nil, nil, 10*time.Millisecond, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	poller.Run(ctx)

	if consumer.count() != 0 {
		t.Errorf("consumer received %d readings from a failing source, want 0", consumer.count())
	}
	source.mu.Lock()
	reads := source.reads
	source.mu.Unlock()
	if reads < 2 {
		t.Errorf("poller made %d reads, want it to keep retrying", reads)
	}
}
