package automation

import "github.com/helioshome/helios-core/internal/device"

// categoryRule decides whether a device category may be activated at a
// given local hour with a given remaining surplus. The rule set is a
// closed set of variants so new kinds must be handled explicitly.
type categoryRule interface {
	eligible(hour int, remainingW float64) bool
}

// ruleAlways permits activation at any hour.
type ruleAlways struct{}

func (ruleAlways) eligible(int, float64) bool { return true }

// ruleTimeWindow permits activation between start and end hours inclusive.
type ruleTimeWindow struct {
	start, end int
}

func (r ruleTimeWindow) eligible(hour int, _ float64) bool {
	return hour >= r.start && hour <= r.end
}

// ruleMinRemaining permits activation at any hour, but only while the
// remaining surplus strictly exceeds the given wattage. Used for loads
// with a high fixed draw that should not nibble at small surpluses.
type ruleMinRemaining struct {
	watts float64
}

func (r ruleMinRemaining) eligible(_ int, remainingW float64) bool {
	return remainingW > r.watts
}

// activationRule maps a device category to its eligibility rule.
//
// Appliances run only in the peak solar window; pool pumps get a wider
// daytime window; EV charging needs a large surplus to be worthwhile.
// The 2000 W EV threshold is deliberately fixed rather than per-device.
func activationRule(c device.Category) categoryRule {
	switch c {
	case device.CategoryAppliance:
		return ruleTimeWindow{start: 10, end: 16}
	case device.CategoryPool:
		return ruleTimeWindow{start: 8, end: 18}
	case device.CategoryEVCharging:
		return ruleMinRemaining{watts: 2000}
	case device.CategoryHeating, device.CategoryLighting, device.CategoryOther:
		return ruleAlways{}
	default:
		return ruleAlways{}
	}
}

// Evening peak window for aggressive shedding, hours inclusive.
const (
	eveningPeakStart = 18
	eveningPeakEnd   = 22
)

// shouldShed decides whether an active device is deactivated during a
// deficit. Essential devices are never shed. Low priority always sheds;
// medium sheds only against a large remaining deficit; during the
// evening peak everything below high priority sheds.
func shouldShed(d device.Device, hour int, remainingDeficitW float64) bool {
	if d.Priority == device.PriorityEssential {
		return false
	}
	if d.Priority == device.PriorityLow {
		return true
	}
	if d.Priority == device.PriorityMedium && remainingDeficitW > 1000 {
		return true
	}
	if hour >= eveningPeakStart && hour <= eveningPeakEnd && d.Priority != device.PriorityHigh {
		return true
	}
	return false
}
