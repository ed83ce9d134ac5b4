// Package device provides the device registry for Helios Core.
//
// Devices are the household loads the automation manager may toggle in
// response to solar surplus: heaters, appliances, pool pumps, EV
// chargers. Each device carries a priority, a category (which gates
// time-of-day eligibility), a nominal wattage, and two automation
// flags: Automated (may the manager touch it at all) and ManualOverride
// (frozen until explicitly cleared).
//
// # Key Types
//
//   - Device: A controllable load with priority, category, and wattage
//   - Registry: Thread-safe in-memory cache wrapping Repository
//   - Repository: SQLite-backed persistence
//
// # Cache Semantics
//
// The Registry cache is the source of truth during a process lifetime.
// Status and override writes mutate the cache first and then attempt
// the durable write; a failed write keeps the in-memory change and
// returns the error so the caller can log it. Durable storage wins on
// the next restart via RefreshCache.
//
// # Usage
//
//	repo := device.NewSQLiteRepository(db)
//	registry := device.NewRegistry(repo)
//	registry.SetLogger(log)
//
//	if err := device.Seed(ctx, repo, log); err != nil {
//	    return err
//	}
//	if err := registry.RefreshCache(ctx); err != nil {
//	    return err
//	}
package device
