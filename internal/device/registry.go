package device

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
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

// Registry holds the canonical in-memory set of devices and wraps a
// Repository for durable storage.
//
// The cache is populated on startup via RefreshCache() and is the source
// of truth for the remainder of the process. State mutations update the
// cache first and then attempt the durable write; when the write fails
// the in-memory change is kept and the error is returned so callers can
// log the discrepancy. Durable storage wins again on the next restart.
//
// All public methods are thread-safe.
type Registry struct {
	repo    Repository
	cache   map[string]*Device
	cacheMu sync.RWMutex
	logger  Logger
}

// NewRegistry creates a new device registry.
// The repository is used for persistence; the registry adds caching.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]*Device),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all devices from the repository into the cache.
// This should be called on application startup.
func (r *Registry) RefreshCache(ctx context.Context) error {
	devices, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.cache = make(map[string]*Device, len(devices))
	for i := range devices {
		d := devices[i]
		r.cache[d.ID] = d.Clone()
	}

	r.logger.Info("device cache refreshed", "count", len(devices))
	return nil
}

// Get retrieves a device by ID.
// The returned device is a copy; callers can safely modify it.
func (r *Registry) Get(id string) (*Device, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	d, ok := r.cache[id]
	if !ok {
		return nil, ErrNotFound
	}
	return d.Clone(), nil
}

// List returns copies of all devices sorted by name.
func (r *Registry) List() []Device {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	devices := make([]Device, 0, len(r.cache))
	for _, d := range r.cache {
		devices = append(devices, *d.Clone())
	}
	sort.Slice(devices, func(i, j int) bool {
		return devices[i].Name < devices[j].Name
	})
	return devices
}

// Create validates and persists a new device, then adds it to the cache.
// An empty ID is filled with a generated one.
func (r *Registry) Create(ctx context.Context, d *Device) error {
	if d.ID == "" {
		d.ID = GenerateID()
	}
	if d.Status == "" {
		d.Status = StatusOff
	}
	if err := Validate(d); err != nil {
		return err
	}

	if err := r.repo.Create(ctx, d); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.cache[d.ID] = d.Clone()
	r.cacheMu.Unlock()

	r.logger.Info("device created", "device_id", d.ID, "name", d.Name)
	return nil
}

// Update validates and persists changes to an existing device, then
// replaces the cache entry.
func (r *Registry) Update(ctx context.Context, d *Device) error {
	if err := Validate(d); err != nil {
		return err
	}

	r.cacheMu.RLock()
	existing, ok := r.cache[d.ID]
	r.cacheMu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	d.CreatedAt = existing.CreatedAt

	if err := r.repo.Update(ctx, d); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.cache[d.ID] = d.Clone()
	r.cacheMu.Unlock()

	r.logger.Info("device updated", "device_id", d.ID, "name", d.Name)
	return nil
}

// SetStatus changes a device's switch state. The cache is updated first;
// if the durable write then fails, the in-memory state is kept and the
// error is returned so the caller can record the discrepancy.
func (r *Registry) SetStatus(ctx context.Context, id string, status Status) error {
	if err := ValidateStatus(status); err != nil {
		return err
	}

	now := time.Now().UTC()

	r.cacheMu.Lock()
	d, ok := r.cache[id]
	if !ok {
		r.cacheMu.Unlock()
		return ErrNotFound
	}
	d.Status = status
	d.UpdatedAt = now
	r.cacheMu.Unlock()

	if err := r.repo.UpdateStatus(ctx, id, status, now); err != nil {
		return fmt.Errorf("persisting status for %q: %w", id, err)
	}
	return nil
}

// SetOverride changes a device's manual override flag. Same cache-first
// semantics as SetStatus.
func (r *Registry) SetOverride(ctx context.Context, id string, override bool) error {
	now := time.Now().UTC()

	r.cacheMu.Lock()
	d, ok := r.cache[id]
	if !ok {
		r.cacheMu.Unlock()
		return ErrNotFound
	}
	d.ManualOverride = override
	d.UpdatedAt = now
	r.cacheMu.Unlock()

	if err := r.repo.UpdateOverride(ctx, id, override, now); err != nil {
		return fmt.Errorf("persisting override for %q: %w", id, err)
	}
	return nil
}

// ClearOverrides resets the manual override flag on every overridden
// device and returns the IDs that were cleared.
func (r *Registry) ClearOverrides(ctx context.Context) ([]string, error) {
	now := time.Now().UTC()

	r.cacheMu.Lock()
	var ids []string
	for _, d := range r.cache {
		if d.ManualOverride {
			d.ManualOverride = false
			d.UpdatedAt = now
			ids = append(ids, d.ID)
		}
	}
	r.cacheMu.Unlock()

	if len(ids) == 0 {
		return nil, nil
	}

	if _, err := r.repo.ClearOverrides(ctx, now); err != nil {
		return ids, fmt.Errorf("persisting override clear: %w", err)
	}

	r.logger.Info("manual overrides cleared", "count", len(ids))
	return ids, nil
}

// Delete removes a device from durable storage and the cache.
func (r *Registry) Delete(ctx context.Context, id string) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	r.cacheMu.Lock()
	delete(r.cache, id)
	r.cacheMu.Unlock()

	r.logger.Info("device deleted", "device_id", id)
	return nil
}

// Stats summarises the registry for dashboards.
type Stats struct {
	Total        int              `json:"total"`
	Active       int              `json:"active"`
	Automated    int              `json:"automated"`
	Overridden   int              `json:"overridden"`
	TotalPowerW  float64          `json:"total_power_w"`
	ActivePowerW float64          `json:"active_power_w"`
	ByPriority   map[Priority]int `json:"by_priority"`
	ByCategory   map[Category]int `json:"by_category"`
	ByStatus     map[Status]int   `json:"by_status"`
}

// Stats computes registry statistics from the cache.
func (r *Registry) Stats() Stats {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	stats := Stats{
		ByPriority: make(map[Priority]int),
		ByCategory: make(map[Category]int),
		ByStatus:   make(map[Status]int),
	}
	for _, d := range r.cache {
		stats.Total++
		stats.TotalPowerW += d.PowerW
		stats.ByPriority[d.Priority]++
		stats.ByCategory[d.Category]++
		stats.ByStatus[d.Status]++
		if d.Status == StatusOn {
			stats.Active++
			stats.ActivePowerW += d.PowerW
		}
		if d.Automated {
			stats.Automated++
		}
		if d.ManualOverride {
			stats.Overridden++
		}
	}
	return stats
}
