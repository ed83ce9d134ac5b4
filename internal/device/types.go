package device

import "time"

// Device represents a controllable household load known to Helios Core.
//
// A device is eligible for surplus-driven automation only when Automated
// is true and ManualOverride is false. ManualOverride is an orthogonal
// freeze flag: while set, the automation manager must not toggle the
// device in either direction.
type Device struct {
	// Identity
	ID   string `json:"id"`
	Name string `json:"name"`

	// PowerW is the nominal draw in watts while the device is on.
	PowerW float64 `json:"power_w"`

	// Priority orders automation decisions. Essential devices are never
	// shed; low-priority devices are shed first.
	Priority Priority `json:"priority"`

	// Category determines time-of-day eligibility for activation.
	Category Category `json:"category"`

	// Status is the current switch state. Only "on" and "off" are
	// authoritative for automation; "auto" and "manual" describe the
	// control mode of devices excluded from automation.
	Status Status `json:"status"`

	// Automated marks the device as eligible for automated control.
	Automated bool `json:"automated"`

	// ManualOverride freezes the device against automated toggling
	// until explicitly cleared.
	ManualOverride bool `json:"manual_override"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Priority represents the automation importance of a device.
type Priority string

const (
	PriorityEssential Priority = "essential"
	PriorityHigh      Priority = "high"
	PriorityMedium    Priority = "medium"
	PriorityLow       Priority = "low"
)

// AllPriorities returns all valid device priorities.
func AllPriorities() []Priority {
	return []Priority{
		PriorityEssential,
		PriorityHigh,
		PriorityMedium,
		PriorityLow,
	}
}

// Rank returns a numeric weight for ordering. Higher means more important.
// Unknown priorities rank below low so malformed rows sort last.
func (p Priority) Rank() int {
	switch p {
	case PriorityEssential:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// Category represents the functional class of a device.
type Category string

const (
	CategoryHeating    Category = "heating"
	CategoryAppliance  Category = "appliance"
	CategoryLighting   Category = "lighting"
	CategoryEVCharging Category = "ev_charging"
	CategoryPool       Category = "pool"
	CategoryOther      Category = "other"
)

// AllCategories returns all valid device categories.
func AllCategories() []Category {
	return []Category{
		CategoryHeating,
		CategoryAppliance,
		CategoryLighting,
		CategoryEVCharging,
		CategoryPool,
		CategoryOther,
	}
}

// Status represents the switch state or control mode of a device.
type Status string

const (
	StatusOn     Status = "on"
	StatusOff    Status = "off"
	StatusAuto   Status = "auto"
	StatusManual Status = "manual"
)

// AllStatuses returns all valid device statuses.
func AllStatuses() []Status {
	return []Status{
		StatusOn,
		StatusOff,
		StatusAuto,
		StatusManual,
	}
}

// Clone creates an independent copy of the Device.
// Devices contain only value fields, so a shallow copy is complete.
// This is essential for cache isolation.
func (d *Device) Clone() *Device {
	if d == nil {
		return nil
	}
	cpy := *d
	return &cpy
}
