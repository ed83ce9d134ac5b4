package inverter

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/helioshome/helios-core/internal/automation"
)

// Daylight window for the simulated production curve, hours.
const (
	sunriseHour = 6.0
	sunsetHour  = 20.0
)

// Simulator produces synthetic readings shaped like a real household:
// a sinusoidal production curve across the daylight window and a load
// pattern with morning and evening bumps. Randomness is seeded so runs
// are reproducible.
type Simulator struct {
	peakSolarW float64
	baseLoadW  float64

	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewSimulator creates a simulator with the given curve parameters.
func NewSimulator(peakSolarW, baseLoadW float64, seed int64) *Simulator {
	return &Simulator{
		peakSolarW: peakSolarW,
		baseLoadW:  baseLoadW,
		rng:        rand.New(rand.NewSource(seed)),
		now:        time.Now,
	}
}

// Read returns a synthetic reading for the current wall-clock time.
func (s *Simulator) Read(_ context.Context) (automation.PowerReading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	solar := s.solarAt(now)
	load := s.loadAt(now)

	return automation.PowerReading{
		SolarW:    solar,
		LoadW:     load,
		GridW:     load - solar,
		Timestamp: now.UTC(),
	}, nil
}

// solarAt follows a half-sine between sunrise and sunset with ±10%
// jitter standing in for passing clouds.
func (s *Simulator) solarAt(now time.Time) float64 {
	h := float64(now.Hour()) + float64(now.Minute())/60
	if h < sunriseHour || h > sunsetHour {
		return 0
	}

	phase := (h - sunriseHour) / (sunsetHour - sunriseHour)
	solar := s.peakSolarW * math.Sin(phase*math.Pi)
	solar *= 0.9 + s.rng.Float64()*0.2
	if solar < 0 {
		return 0
	}
	return math.Round(solar)
}

// loadAt is the base draw plus breakfast and dinner bumps with ±15%
// jitter.
func (s *Simulator) loadAt(now time.Time) float64 {
	h := now.Hour()
	load := s.baseLoadW
	switch {
	case h >= 7 && h <= 9:
		load += 800
	case h >= 18 && h <= 22:
		load += 1500
	}
	load *= 0.85 + s.rng.Float64()*0.3
	return math.Round(load)
}
