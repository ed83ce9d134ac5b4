package device

import (
	"context"
	"fmt"
)

// defaultDevices is the bootstrap fleet for a fresh installation.
// Wattages and priorities reflect a typical household; installers are
// expected to replace these via the API.
func defaultDevices() []Device {
	return []Device{
		{ID: "water-heater", Name: "Water Heater", PowerW: 2000, Priority: PriorityHigh, Category: CategoryHeating, Status: StatusOff, Automated: true},
		{ID: "washing-machine", Name: "Washing Machine", PowerW: 1200, Priority: PriorityMedium, Category: CategoryAppliance, Status: StatusOff, Automated: true},
		{ID: "dishwasher", Name: "Dishwasher", PowerW: 1800, Priority: PriorityMedium, Category: CategoryAppliance, Status: StatusOff, Automated: true},
		{ID: "pool-pump", Name: "Pool Pump", PowerW: 800, Priority: PriorityLow, Category: CategoryPool, Status: StatusOff, Automated: true},
		{ID: "ev-charger", Name: "EV Charger", PowerW: 3200, Priority: PriorityMedium, Category: CategoryEVCharging, Status: StatusOff, Automated: true},
		{ID: "air-conditioning", Name: "Air Conditioning", PowerW: 1500, Priority: PriorityHigh, Category: CategoryOther, Status: StatusOff, Automated: true},
	}
}

// Seed inserts the default device fleet when the repository is empty.
// It is a no-op on populated installations, so it is safe to call on
// every startup.
func Seed(ctx context.Context, repo Repository, logger Logger) error {
	if logger == nil {
		logger = noopLogger{}
	}

	count, err := repo.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting devices: %w", err)
	}
	if count > 0 {
		return nil
	}

	seeds := defaultDevices()
	for i := range seeds {
		if err := repo.Create(ctx, &seeds[i]); err != nil {
			return fmt.Errorf("seeding device %q: %w", seeds[i].ID, err)
		}
	}

	logger.Info("seeded default devices", "count", len(seeds))
	return nil
}
