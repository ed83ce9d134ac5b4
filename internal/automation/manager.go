package automation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/helioshome/helios-core/internal/device"
)

// Registry is the interface the manager needs from the device package.
// Reads return isolated copies; writes are cache-first with a durable
// write behind them.
type Registry interface {
	Get(id string) (*device.Device, error)
	List() []device.Device
	SetStatus(ctx context.Context, id string, status device.Status) error
	SetOverride(ctx context.Context, id string, override bool) error
	ClearOverrides(ctx context.Context) ([]string, error)
}

// Publisher is the interface for publishing device commands and
// automation events to the MQTT bus. May be nil when no broker is
// configured.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// WSHub is the interface for broadcasting WebSocket events.
type WSHub interface {
	// Broadcast sends an event to all clients subscribed to the given channel.
	Broadcast(channel string, payload any)
}

// MetricsWriter is the interface for recording decision points in the
// time-series store. May be nil.
type MetricsWriter interface {
	WriteAutomationEvent(deviceID, eventType string, surplusW float64, success bool)
}

// Logger defines the logging interface used by the Manager.
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

// Config holds the tunable automation parameters.
type Config struct {
	// Enabled gates the whole decision loop. Manual control still works
	// while disabled.
	Enabled bool `json:"enabled"`

	// MinSurplusW is the hysteresis band: readings whose absolute
	// surplus is below this threshold cause no action.
	MinSurplusW float64 `json:"min_surplus_w"`

	// EnabledCategories restricts automation to the listed categories.
	// Empty means all categories.
	EnabledCategories []device.Category `json:"enabled_categories,omitempty"`

	// TariffEURPerKWh prices recommendation savings.
	TariffEURPerKWh float64 `json:"tariff_eur_per_kwh"`
}

// ConfigUpdate is a partial configuration change. Nil fields are left
// unchanged. The update is validated as a whole and applied atomically.
type ConfigUpdate struct {
	Enabled           *bool             `json:"enabled,omitempty"`
	MinSurplusW       *float64          `json:"min_surplus_w,omitempty"`
	EnabledCategories []device.Category `json:"enabled_categories,omitempty"`
	TariffEURPerKWh   *float64          `json:"tariff_eur_per_kwh,omitempty"`
}

// Manager converts power readings into device toggle decisions.
//
// Each reading is processed as one tick: compute the surplus, pick
// devices to activate or shed under priority and time-window rules,
// mutate the registry, and log every decision to the event log. Ticks
// are serialised behind a single mutex; a second Update call cannot
// begin its read phase until the prior tick's writes have completed
// or failed.
//
// MQTT, WebSocket, and metrics channels are optional side effects and
// may be nil.
type Manager struct {
	registry Registry
	events   EventRepository
	mqtt     Publisher
	hub      WSHub
	metrics  MetricsWriter
	logger   Logger

	mu  sync.Mutex // serialises ticks, manual control, and config
	cfg Config

	lastSurplusW  float64
	lastTick      time.Time
	energyDay     string
	energyTodayWh float64
	totalEvents   int

	timers map[string]*time.Timer // scheduled reverts by device ID
}

// NewManager creates a new automation manager.
//
// Parameters:
//   - registry: Device registry for candidate lookup and state writes
//   - events: Append-only event log
//   - mqtt: MQTT publisher for state and event topics (may be nil)
//   - hub: WebSocket hub for dashboard broadcasts (may be nil)
//   - metrics: Time-series writer for decision points (may be nil)
//   - cfg: Initial configuration
//   - logger: Logger instance
func NewManager(registry Registry, events EventRepository, mqtt Publisher, hub WSHub, metrics MetricsWriter, cfg Config, logger Logger) *Manager {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Manager{
		registry: registry,
		events:   events,
		mqtt:     mqtt,
		hub:      hub,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
		timers:   make(map[string]*time.Timer),
	}
}

// Restore loads running counters from the event log. Call once at
// startup after migrations have run.
func (m *Manager) Restore(ctx context.Context) error {
	count, err := m.events.Count(ctx)
	if err != nil {
		return fmt.Errorf("loading event count: %w", err)
	}

	m.mu.Lock()
	m.totalEvents = count
	m.mu.Unlock()
	return nil
}

// Close cancels any scheduled reverts. Pending schedule_end events are
// lost; the next restart reconciles from durable state.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.timers {
		t.Stop()
		delete(m.timers, id)
	}
}

// Update processes one power reading as a single automation tick.
//
// Readings inside the hysteresis band produce no device mutations and
// no events. Positive surplus dispatches to the activation algorithm,
// negative to the shedding algorithm. The decision hour is taken from
// the reading's timestamp, not the wall clock, so replayed or simulated
// readings behave deterministically.
func (m *Manager) Update(ctx context.Context, reading PowerReading) {
	m.mu.Lock()
	defer m.mu.Unlock()

	surplus := reading.Surplus()
	m.accumulateEnergy(reading.Timestamp)
	m.lastSurplusW = surplus

	if !m.cfg.Enabled {
		return
	}
	if math.Abs(surplus) < m.cfg.MinSurplusW {
		return
	}

	hour := reading.Timestamp.Hour()
	if surplus > 0 {
		m.handleSurplus(ctx, surplus, hour)
	} else {
		m.handleDeficit(ctx, -surplus, hour)
	}
}

// handleSurplus greedily activates eligible devices, highest priority
// first and cheapest within a priority, until the surplus is spent.
func (m *Manager) handleSurplus(ctx context.Context, surplusW float64, hour int) {
	candidates := m.candidates(device.StatusOff)
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() > b.Priority.Rank()
		}
		if a.PowerW != b.PowerW {
			return a.PowerW < b.PowerW
		}
		return a.Name < b.Name
	})

	remaining := surplusW
	for _, d := range candidates {
		if remaining < m.cfg.MinSurplusW {
			break
		}
		if !activationRule(d.Category).eligible(hour, remaining) {
			continue
		}
		if d.PowerW > remaining {
			continue
		}
		reason := fmt.Sprintf("Solar surplus of %.0f W available", remaining)
		if m.toggle(ctx, d, device.StatusOn, EventTurnOn, reason) {
			remaining -= d.PowerW
		}
	}
}

// handleDeficit sheds active devices, lowest priority first, until the
// deficit is covered. Essential devices are never shed.
func (m *Manager) handleDeficit(ctx context.Context, deficitW float64, hour int) {
	candidates := m.candidates(device.StatusOn)
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() < b.Priority.Rank()
		}
		if a.PowerW != b.PowerW {
			return a.PowerW > b.PowerW
		}
		return a.Name < b.Name
	})

	remaining := deficitW
	for _, d := range candidates {
		if remaining < m.cfg.MinSurplusW {
			break
		}
		if !shouldShed(d, hour, remaining) {
			continue
		}
		reason := fmt.Sprintf("Power deficit of %.0f W", remaining)
		if m.toggle(ctx, d, device.StatusOff, EventTurnOff, reason) {
			remaining -= d.PowerW
		}
	}
}

// candidates returns automation-eligible devices in the given state:
// automated, not overridden, and in an enabled category.
func (m *Manager) candidates(status device.Status) []device.Device {
	var out []device.Device
	for _, d := range m.registry.List() {
		if d.Status != status || !d.Automated || d.ManualOverride {
			continue
		}
		if !m.categoryEnabled(d.Category) {
			continue
		}
		out = append(out, d)
	}
	return out
}

func (m *Manager) categoryEnabled(c device.Category) bool {
	if len(m.cfg.EnabledCategories) == 0 {
		return true
	}
	for _, enabled := range m.cfg.EnabledCategories {
		if c == enabled {
			return true
		}
	}
	return false
}

// ActivateDevice turns a device on through the automation path.
// Returns false on precondition failure: unknown device, already on,
// or under manual override.
func (m *Manager) ActivateDevice(ctx context.Context, id, reason string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, err := m.registry.Get(id)
	if err != nil {
		return false
	}
	if d.Status == device.StatusOn || d.ManualOverride {
		return false
	}
	return m.toggle(ctx, *d, device.StatusOn, EventTurnOn, reason)
}

// DeactivateDevice turns a device off through the automation path.
// Same precondition semantics as ActivateDevice.
func (m *Manager) DeactivateDevice(ctx context.Context, id, reason string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, err := m.registry.Get(id)
	if err != nil {
		return false
	}
	if d.Status == device.StatusOff || d.ManualOverride {
		return false
	}
	return m.toggle(ctx, *d, device.StatusOff, EventTurnOff, reason)
}

// toggle mutates one device and records the decision. Must be called
// with m.mu held. A failed durable write keeps the in-memory change,
// logs the discrepancy, and records the event with success=false; the
// tick continues with the remaining candidates either way.
func (m *Manager) toggle(ctx context.Context, d device.Device, target device.Status, typ EventType, reason string) bool {
	persistErr := m.registry.SetStatus(ctx, d.ID, target)
	if persistErr != nil {
		if errors.Is(persistErr, device.ErrNotFound) {
			return false
		}
		m.logger.Warn("device state not persisted",
			"device", d.Name,
			"target", string(target),
			"reason", reason,
			"error", persistErr,
		)
	}

	m.logger.Info("device toggled",
		"device", d.Name,
		"status", string(target),
		"surplus_w", m.lastSurplusW,
		"reason", reason,
	)

	m.recordEvent(ctx, d.ID, typ, reason, persistErr)
	m.publishState(d.ID, target)
	return true
}

// ControlDevice applies a manual control request, bypassing the
// automation algorithms. It always succeeds when the device exists,
// even if already in the requested state, and always records an event.
// This is the only path that can set the manual override flag.
func (m *Manager) ControlDevice(ctx context.Context, control Control) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, err := m.registry.Get(control.DeviceID)
	if err != nil {
		return false
	}

	var target device.Status
	switch control.Action {
	case ActionTurnOn:
		target = device.StatusOn
	case ActionTurnOff:
		target = device.StatusOff
	case ActionToggle:
		target = device.StatusOn
		if d.Status == device.StatusOn {
			target = device.StatusOff
		}
	default:
		return false
	}

	persistErr := m.registry.SetStatus(ctx, d.ID, target)
	if persistErr != nil && errors.Is(persistErr, device.ErrNotFound) {
		return false
	}
	if ovErr := m.registry.SetOverride(ctx, d.ID, control.Manual); ovErr != nil && persistErr == nil {
		persistErr = ovErr
	}

	reason := "Automated control"
	typ := EventTurnOff
	if target == device.StatusOn {
		typ = EventTurnOn
	}
	if control.Manual {
		reason = "Manual control"
	}

	m.recordEvent(ctx, d.ID, typ, reason, persistErr)
	m.publishState(d.ID, target)

	if control.DurationMinutes > 0 {
		m.scheduleRevert(d.ID, target, time.Duration(control.DurationMinutes)*time.Minute)
		m.recordEvent(ctx, d.ID, EventScheduleStart,
			fmt.Sprintf("Scheduled for %d minutes", control.DurationMinutes), nil)
	}
	return true
}

// scheduleRevert arms a timer that flips the device back and clears its
// override after the window. A newer control replaces a pending timer.
// Must be called with m.mu held.
func (m *Manager) scheduleRevert(id string, current device.Status, after time.Duration) {
	if t, ok := m.timers[id]; ok {
		t.Stop()
	}

	revertTo := device.StatusOff
	if current == device.StatusOff {
		revertTo = device.StatusOn
	}

	m.timers[id] = time.AfterFunc(after, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.timers, id)

		ctx := context.Background()
		persistErr := m.registry.SetStatus(ctx, id, revertTo)
		if persistErr != nil && errors.Is(persistErr, device.ErrNotFound) {
			return
		}
		if ovErr := m.registry.SetOverride(ctx, id, false); ovErr != nil && persistErr == nil {
			persistErr = ovErr
		}

		m.recordEvent(ctx, id, EventScheduleEnd, "Scheduled control window ended", persistErr)
		m.publishState(id, revertTo)
	})
}

// ClearManualOverrides resets the override flag for every overridden
// device and records a manual_override event per device. Returns the
// number of devices cleared.
func (m *Manager) ClearManualOverrides(ctx context.Context) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids, err := m.registry.ClearOverrides(ctx)
	if err != nil {
		m.logger.Warn("override clear not persisted", "error", err)
	}
	for _, id := range ids {
		m.recordEvent(ctx, id, EventManualOverride, "Manual override cleared", nil)
	}
	return len(ids)
}

// Recommendation thresholds. Suggestions only appear once the surplus
// or deficit is large enough to be worth acting on.
const (
	recommendSurplusW = 500
	recommendDeficitW = -200

	maxActivationRecommendations = 3
	maxSheddingRecommendations   = 2
)

// Recommendations produces read-only suggestions for a reading without
// mutating any state: up to three activations on a healthy surplus, up
// to two sheds on a meaningful deficit.
func (m *Manager) Recommendations(reading PowerReading) []Recommendation {
	m.mu.Lock()
	defer m.mu.Unlock()

	surplus := reading.Surplus()
	hour := reading.Timestamp.Hour()
	var recs []Recommendation

	switch {
	case surplus > recommendSurplusW:
		candidates := m.candidates(device.StatusOff)
		sort.Slice(candidates, func(i, j int) bool {
			a, b := candidates[i], candidates[j]
			if a.Priority.Rank() != b.Priority.Rank() {
				return a.Priority.Rank() > b.Priority.Rank()
			}
			return a.PowerW < b.PowerW
		})
		remaining := surplus
		for _, d := range candidates {
			if len(recs) >= maxActivationRecommendations {
				break
			}
			if !activationRule(d.Category).eligible(hour, remaining) || d.PowerW > remaining {
				continue
			}
			recs = append(recs, Recommendation{
				DeviceID:            d.ID,
				DeviceName:          d.Name,
				Action:              ActionTurnOn,
				PowerW:              d.PowerW,
				Reason:              fmt.Sprintf("Fits within %.0f W surplus", remaining),
				EstimatedSavingsEUR: d.PowerW / 1000 * m.cfg.TariffEURPerKWh,
			})
			remaining -= d.PowerW
		}

	case surplus < recommendDeficitW:
		candidates := m.candidates(device.StatusOn)
		sort.Slice(candidates, func(i, j int) bool {
			a, b := candidates[i], candidates[j]
			if a.Priority.Rank() != b.Priority.Rank() {
				return a.Priority.Rank() < b.Priority.Rank()
			}
			return a.PowerW > b.PowerW
		})
		remaining := -surplus
		for _, d := range candidates {
			if len(recs) >= maxSheddingRecommendations {
				break
			}
			if !shouldShed(d, hour, remaining) {
				continue
			}
			recs = append(recs, Recommendation{
				DeviceID:            d.ID,
				DeviceName:          d.Name,
				Action:              ActionTurnOff,
				PowerW:              d.PowerW,
				Reason:              fmt.Sprintf("Reduces %.0f W deficit", remaining),
				EstimatedSavingsEUR: d.PowerW / 1000 * m.cfg.TariffEURPerKWh,
			})
			remaining -= d.PowerW
		}
	}
	return recs
}

// Stats returns the current automation counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	active := 0
	for _, d := range m.registry.List() {
		if d.Status == device.StatusOn && d.Automated {
			active++
		}
	}
	return Stats{
		Enabled:       m.cfg.Enabled,
		TotalEvents:   m.totalEvents,
		LastSurplusW:  m.lastSurplusW,
		ActiveDevices: active,
		EnergyTodayWh: m.energyTodayWh,
	}
}

// RecentEvents returns the newest events across all devices.
func (m *Manager) RecentEvents(ctx context.Context, limit int) ([]Event, error) {
	return m.events.ListRecent(ctx, limit)
}

// DeviceEvents returns the newest events for a single device.
func (m *Manager) DeviceEvents(ctx context.Context, deviceID string, limit int) ([]Event, error) {
	return m.events.ListByDevice(ctx, deviceID, limit)
}

// Configuration returns a copy of the current configuration.
func (m *Manager) Configuration() Config {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg := m.cfg
	cfg.EnabledCategories = append([]device.Category(nil), m.cfg.EnabledCategories...)
	return cfg
}

// SetConfiguration applies a partial configuration update. The whole
// update is validated first; an invalid update changes nothing.
func (m *Manager) SetConfiguration(update ConfigUpdate) error {
	if update.MinSurplusW != nil && *update.MinSurplusW < 0 {
		return fmt.Errorf("%w: %.1f", ErrInvalidThreshold, *update.MinSurplusW)
	}
	if update.TariffEURPerKWh != nil && *update.TariffEURPerKWh < 0 {
		return fmt.Errorf("%w: %.3f", ErrInvalidTariff, *update.TariffEURPerKWh)
	}
	for _, c := range update.EnabledCategories {
		if err := device.ValidateCategory(c); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidCategory, c)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if update.Enabled != nil {
		m.cfg.Enabled = *update.Enabled
	}
	if update.MinSurplusW != nil {
		m.cfg.MinSurplusW = *update.MinSurplusW
	}
	if update.EnabledCategories != nil {
		m.cfg.EnabledCategories = append([]device.Category(nil), update.EnabledCategories...)
	}
	if update.TariffEURPerKWh != nil {
		m.cfg.TariffEURPerKWh = *update.TariffEURPerKWh
	}

	m.logger.Info("automation configuration updated",
		"enabled", m.cfg.Enabled,
		"min_surplus_w", m.cfg.MinSurplusW,
		"categories", len(m.cfg.EnabledCategories),
	)
	return nil
}

// accumulateEnergy adds the energy drawn by active automated devices
// since the previous tick to today's counter. The counter resets when
// the reading's date changes. Must be called with m.mu held.
func (m *Manager) accumulateEnergy(now time.Time) {
	day := now.Format("2006-01-02")
	if day != m.energyDay {
		m.energyDay = day
		m.energyTodayWh = 0
		m.lastTick = time.Time{}
	}

	if !m.lastTick.IsZero() {
		elapsed := now.Sub(m.lastTick).Hours()
		if elapsed > 0 {
			for _, d := range m.registry.List() {
				if d.Status == device.StatusOn && d.Automated {
					m.energyTodayWh += d.PowerW * elapsed
				}
			}
		}
	}
	m.lastTick = now
}

// recordEvent appends an event to the log and fans it out to the
// optional side channels. Event log failures are logged, never fatal.
// Must be called with m.mu held.
func (m *Manager) recordEvent(ctx context.Context, deviceID string, typ EventType, reason string, persistErr error) {
	evt := Event{
		ID:        GenerateID(),
		DeviceID:  deviceID,
		Type:      typ,
		Reason:    reason,
		SurplusW:  m.lastSurplusW,
		Success:   persistErr == nil,
		CreatedAt: time.Now().UTC(),
	}
	if persistErr != nil {
		msg := persistErr.Error()
		evt.ErrorMessage = &msg
	}

	if err := m.events.Append(ctx, &evt); err != nil {
		m.logger.Error("automation event not recorded",
			"device_id", deviceID,
			"event_type", string(typ),
			"error", err,
		)
	} else {
		// Count only persisted events so the total matches what
		// Restore will reload after a restart.
		m.totalEvents++
	}

	if m.metrics != nil {
		m.metrics.WriteAutomationEvent(deviceID, string(typ), evt.SurplusW, evt.Success)
	}
	if m.hub != nil {
		m.hub.Broadcast("automation.event", evt)
	}
	if m.mqtt != nil {
		if payload, err := json.Marshal(evt); err == nil {
			if pubErr := m.mqtt.Publish("helios/event/automation", payload, 1, false); pubErr != nil {
				m.logger.Warn("event publish failed", "error", pubErr)
			}
		}
	}
}

// publishState fans a device state change out to the dashboard and the
// bus. Must be called with m.mu held.
func (m *Manager) publishState(deviceID string, status device.Status) {
	change := map[string]any{
		"device_id": deviceID,
		"status":    string(status),
	}
	if m.hub != nil {
		m.hub.Broadcast("device.state_changed", change)
	}
	if m.mqtt != nil {
		if payload, err := json.Marshal(change); err == nil {
			if pubErr := m.mqtt.Publish("helios/state/"+deviceID, payload, 1, true); pubErr != nil {
				m.logger.Warn("state publish failed", "device_id", deviceID, "error", pubErr)
			}
		}
	}
}
