package inverter

import (
	"context"
	"errors"
	"time"

	"github.com/helioshome/helios-core/internal/automation"
)

// Consumer receives each reading as one automation tick.
type Consumer interface {
	Update(ctx context.Context, reading automation.PowerReading)
}

// TelemetryWriter records readings in the time-series store. May be nil.
type TelemetryWriter interface {
	WritePowerReading(solarW, loadW, gridW float64, timestamp time.Time)
}

// WSHub broadcasts readings to dashboard clients. May be nil.
type WSHub interface {
	Broadcast(channel string, payload any)
}

// Logger defines the logging interface used by the Poller.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Poller reads the source on a fixed interval and feeds each reading
// to the automation manager, the time-series store, and the dashboard.
// A failed read skips the tick; automation resumes on the next one.
type Poller struct {
	source    Source
	consumer  Consumer
	telemetry TelemetryWriter
	hub       WSHub
	logger    Logger
	interval  time.Duration
}

// NewPoller creates a poller. telemetry and hub may be nil.
func NewPoller(source Source, consumer Consumer, telemetry TelemetryWriter, hub WSHub, interval time.Duration, logger Logger) *Poller {
	if logger == nil {
		logger = noopLogger{}
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Poller{
		source:    source,
		consumer:  consumer,
		telemetry: telemetry,
		hub:       hub,
		logger:    logger,
		interval:  interval,
	}
}

// Run polls until the context is cancelled. It performs one immediate
// read so a fresh start does not wait a full interval for its first
// decision, then settles into the ticker cadence.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("inverter poller started", "interval", p.interval.String())

	p.tick(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("inverter poller stopped")
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	reading, err := p.source.Read(ctx)
	if err != nil {
		// No reading yet is normal right after startup in MQTT mode
		if errors.Is(err, ErrNoReading) {
			p.logger.Debug("no power reading yet")
			return
		}
		p.logger.Warn("power reading failed", "error", err)
		return
	}

	p.consumer.Update(ctx, reading)

	if p.telemetry != nil {
		p.telemetry.WritePowerReading(reading.SolarW, reading.LoadW, reading.GridW, reading.Timestamp)
	}
	if p.hub != nil {
		p.hub.Broadcast("reading.updated", reading)
	}

	p.logger.Debug("power reading processed",
		"solar_w", reading.SolarW,
		"load_w", reading.LoadW,
		"surplus_w", reading.Surplus(),
	)
}
