package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/helioshome/helios-core/internal/automation"
	"github.com/helioshome/helios-core/internal/device"
)

// handleListDevices returns all devices, with optional query filters.
//
// Query parameters:
//   - category: filter by category (heating, appliance, etc.)
//   - priority: filter by priority (essential, high, medium, low)
//   - status: filter by status (on, off)
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices := s.registry.List()

	if cat := r.URL.Query().Get("category"); cat != "" {
		devices = filterDevices(devices, func(d device.Device) bool {
			return d.Category == device.Category(cat)
		})
	}
	if prio := r.URL.Query().Get("priority"); prio != "" {
		devices = filterDevices(devices, func(d device.Device) bool {
			return d.Priority == device.Priority(prio)
		})
	}
	if status := r.URL.Query().Get("status"); status != "" {
		devices = filterDevices(devices, func(d device.Device) bool {
			return d.Status == device.Status(status)
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	dev, err := s.registry.Get(id)
	if err != nil {
		if errors.Is(err, device.ErrNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	writeJSON(w, http.StatusOK, dev)
}

// handleCreateDevice creates a new device.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var dev device.Device
	if err := json.NewDecoder(r.Body).Decode(&dev); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.registry.Create(r.Context(), &dev); err != nil {
		if isValidationError(err) {
			writeBadRequest(w, err.Error())
			return
		}
		if errors.Is(err, device.ErrExists) {
			writeConflict(w, "device already exists")
			return
		}
		writeInternalError(w, "failed to create device")
		return
	}

	writeJSON(w, http.StatusCreated, dev)
}

// handleUpdateDevice partially updates a device.
func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// Get existing device
	existing, err := s.registry.Get(id)
	if err != nil {
		if errors.Is(err, device.ErrNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	// Decode partial update onto existing device
	if err := json.NewDecoder(r.Body).Decode(existing); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	existing.ID = id // Ensure ID cannot be changed

	if err := s.registry.Update(r.Context(), existing); err != nil {
		if isValidationError(err) {
			writeBadRequest(w, err.Error())
			return
		}
		writeInternalError(w, "failed to update device")
		return
	}

	writeJSON(w, http.StatusOK, existing)
}

// handleDeleteDevice removes a device by ID.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.registry.Delete(r.Context(), id); err != nil {
		if errors.Is(err, device.ErrNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to delete device")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleDeviceStats returns device registry statistics.
func (s *Server) handleDeviceStats(w http.ResponseWriter, _ *http.Request) {
	stats := s.registry.Stats()
	writeJSON(w, http.StatusOK, stats)
}

// DeviceControl is the request body for POST /devices/{id}/control.
type DeviceControl struct {
	Action          string `json:"action"`
	Manual          bool   `json:"manual"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
}

// handleControlDevice applies a direct on/off/toggle command to a device.
//
// Manual commands set a manual override that shields the device from
// automation until the override is cleared (or the optional duration expires).
func (s *Server) handleControlDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var ctl DeviceControl
	if err := json.NewDecoder(r.Body).Decode(&ctl); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	action := automation.Action(ctl.Action)
	switch action {
	case automation.ActionTurnOn, automation.ActionTurnOff, automation.ActionToggle:
	case "":
		writeBadRequest(w, "action field is required")
		return
	default:
		writeBadRequest(w, "unknown action: "+ctl.Action)
		return
	}
	if ctl.DurationMinutes < 0 {
		writeBadRequest(w, "duration_minutes must not be negative")
		return
	}

	ok := s.manager.ControlDevice(r.Context(), automation.Control{
		DeviceID:        id,
		Action:          action,
		Manual:          ctl.Manual,
		DurationMinutes: ctl.DurationMinutes,
	})
	if !ok {
		writeNotFound(w, "device not found")
		return
	}

	dev, err := s.registry.Get(id)
	if err != nil {
		writeInternalError(w, "failed to get device")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id":       dev.ID,
		"status":          dev.Status,
		"manual_override": dev.ManualOverride,
	})
}

// filterDevices returns the devices matching the predicate.
func filterDevices(devices []device.Device, keep func(device.Device) bool) []device.Device {
	out := make([]device.Device, 0, len(devices))
	for _, d := range devices {
		if keep(d) {
			out = append(out, d)
		}
	}
	return out
}

// isValidationError checks whether an error is a device validation error.
// Validate wraps various sentinel errors (ErrInvalidName, ErrInvalidPower, etc.)
// so we check all of them.
func isValidationError(err error) bool {
	return errors.Is(err, device.ErrInvalidName) ||
		errors.Is(err, device.ErrInvalidPower) ||
		errors.Is(err, device.ErrInvalidPriority) ||
		errors.Is(err, device.ErrInvalidCategory) ||
		errors.Is(err, device.ErrInvalidStatus)
}
