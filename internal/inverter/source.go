package inverter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/helioshome/helios-core/internal/automation"
	"github.com/helioshome/helios-core/internal/infrastructure/mqtt"
)

// Source supplies power readings, one per poll.
type Source interface {
	// Read returns the current power reading. Implementations should
	// respect context cancellation when the read blocks.
	Read(ctx context.Context) (automation.PowerReading, error)
}

// Domain errors for the inverter package.
var (
	// ErrNoReading is returned when no reading has arrived yet.
	ErrNoReading = errors.New("inverter: no reading available")

	// ErrStaleReading is returned when the last reading is too old to act on.
	ErrStaleReading = errors.New("inverter: reading is stale")
)

// maxReadingAge is how old a pushed reading may be before MQTTSource
// refuses to serve it. Acting on stale data would toggle devices
// against a surplus that no longer exists.
const maxReadingAge = 2 * time.Minute

// MQTTSource receives readings pushed by an inverter gateway over the
// bus and serves the most recent one.
type MQTTSource struct {
	mu      sync.RWMutex
	latest  automation.PowerReading
	haveOne bool
	now     func() time.Time
}

// wireReading is the gateway payload shape on the power reading topic.
type wireReading struct {
	SolarW    float64   `json:"solar_w"`
	LoadW     float64   `json:"load_w"`
	GridW     float64   `json:"grid_w"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMQTTSource creates a source fed from the power reading topic.
// Subscribe it with Handler:
//
//	src := inverter.NewMQTTSource()
//	client.Subscribe(topics.PowerReading(), 1, src.Handler())
func NewMQTTSource() *MQTTSource {
	return &MQTTSource{now: time.Now}
}

// Handler returns the message handler that ingests gateway payloads.
func (s *MQTTSource) Handler() mqtt.MessageHandler {
	return func(_ string, payload []byte) error {
		var wire wireReading
		if err := json.Unmarshal(payload, &wire); err != nil {
			return fmt.Errorf("decoding power reading: %w", err)
		}
		if wire.SolarW < 0 || wire.LoadW < 0 {
			return fmt.Errorf("%w: negative production or load", automation.ErrInvalidReading)
		}
		if wire.Timestamp.IsZero() {
			wire.Timestamp = s.now().UTC()
		}

		s.mu.Lock()
		s.latest = automation.PowerReading{
			SolarW:    wire.SolarW,
			LoadW:     wire.LoadW,
			GridW:     wire.GridW,
			Timestamp: wire.Timestamp,
		}
		s.haveOne = true
		s.mu.Unlock()
		return nil
	}
}

// Read returns the most recent pushed reading.
func (s *MQTTSource) Read(_ context.Context) (automation.PowerReading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.haveOne {
		return automation.PowerReading{}, ErrNoReading
	}
	if s.now().Sub(s.latest.Timestamp) > maxReadingAge {
		return automation.PowerReading{}, fmt.Errorf("%w: last reading at %s",
			ErrStaleReading, s.latest.Timestamp.Format(time.RFC3339))
	}
	return s.latest, nil
}
