package automation

import (
	"time"

	"github.com/google/uuid"
)

// PowerReading is one sample from the inverter: instantaneous solar
// production and household load in watts. GridW is the grid exchange
// (positive = importing) and is recorded for telemetry only; decisions
// use production and load alone.
type PowerReading struct {
	SolarW    float64   `json:"solar_w"`
	LoadW     float64   `json:"load_w"`
	GridW     float64   `json:"grid_w"`
	Timestamp time.Time `json:"timestamp"`
}

// Surplus returns solar production minus household load in watts.
// Positive means excess energy is available to redirect.
func (r PowerReading) Surplus() float64 {
	return r.SolarW - r.LoadW
}

// EventType classifies an automation event.
type EventType string

const (
	EventTurnOn         EventType = "turn_on"
	EventTurnOff        EventType = "turn_off"
	EventScheduleStart  EventType = "schedule_start"
	EventScheduleEnd    EventType = "schedule_end"
	EventManualOverride EventType = "manual_override"
)

// AllEventTypes returns all valid event types.
func AllEventTypes() []EventType {
	return []EventType{
		EventTurnOn,
		EventTurnOff,
		EventScheduleStart,
		EventScheduleEnd,
		EventManualOverride,
	}
}

// Event is one immutable automation decision record. Events are
// append-only; nothing mutates or deletes them except retention
// cleanup of the whole log.
type Event struct {
	ID       string    `json:"id"`
	DeviceID string    `json:"device_id"`
	Type     EventType `json:"event_type"`

	// Reason records the numeric surplus or deficit that caused the
	// action, in human-readable form.
	Reason string `json:"reason"`

	// SurplusW is the signed surplus snapshot at decision time.
	SurplusW float64 `json:"surplus_w"`

	// Success is false when the durable device write failed; the
	// in-memory toggle still happened.
	Success      bool    `json:"success"`
	ErrorMessage *string `json:"error_message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Action is a manual control verb.
type Action string

const (
	ActionTurnOn  Action = "turn_on"
	ActionTurnOff Action = "turn_off"
	ActionToggle  Action = "toggle"
)

// Control is a manual control request. It bypasses the automation
// algorithms entirely.
type Control struct {
	DeviceID string `json:"device_id"`
	Action   Action `json:"action"`

	// Manual sets the override flag: while true the device is frozen
	// against automated toggling until overrides are cleared.
	Manual bool `json:"manual"`

	// DurationMinutes schedules an automatic revert after the given
	// window. Zero means no schedule.
	DurationMinutes int `json:"duration_minutes,omitempty"`
}

// Stats summarises automation activity. Derived from the device
// registry and event log; cached in the manager for convenience.
type Stats struct {
	Enabled       bool    `json:"enabled"`
	TotalEvents   int     `json:"total_events"`
	LastSurplusW  float64 `json:"last_surplus_w"`
	ActiveDevices int     `json:"active_devices"`
	EnergyTodayWh float64 `json:"energy_today_wh"`
}

// Recommendation is a read-only suggestion produced from a reading
// without mutating any device state.
type Recommendation struct {
	DeviceID   string  `json:"device_id"`
	DeviceName string  `json:"device_name"`
	Action     Action  `json:"action"`
	PowerW     float64 `json:"power_w"`
	Reason     string  `json:"reason"`

	// EstimatedSavingsEUR is the per-hour value of the suggestion at
	// the configured tariff.
	EstimatedSavingsEUR float64 `json:"estimated_savings_eur"`
}

// GenerateID creates a new unique event identifier.
func GenerateID() string {
	return uuid.New().String()
}
