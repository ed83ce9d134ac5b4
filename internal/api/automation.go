package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/helioshome/helios-core/internal/automation"
)

// handleAutomationStats returns automation runtime statistics.
func (s *Server) handleAutomationStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.Stats())
}

// handleListEvents returns recent automation events, most recent first.
//
// Query parameters:
//   - limit: maximum number of events (default 50, capped at 500)
//   - device_id: restrict to events for one device
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeBadRequest(w, "limit must be an integer")
			return
		}
		limit = n
	}

	var (
		events []automation.Event
		err    error
	)
	if deviceID := r.URL.Query().Get("device_id"); deviceID != "" {
		events, err = s.manager.DeviceEvents(r.Context(), deviceID, limit)
	} else {
		events, err = s.manager.RecentEvents(r.Context(), limit)
	}
	if err != nil {
		writeInternalError(w, "failed to list events")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"events": events, "count": len(events)})
}

// handleRecommendations returns suggested actions for a power reading
// without applying them.
//
// The request body is a power reading; a zero timestamp defaults to now.
func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	var reading automation.PowerReading
	if err := json.NewDecoder(r.Body).Decode(&reading); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if reading.SolarW < 0 || reading.LoadW < 0 {
		writeBadRequest(w, "solar_w and load_w must not be negative")
		return
	}
	if reading.Timestamp.IsZero() {
		reading.Timestamp = time.Now()
	}

	recs := s.manager.Recommendations(reading)
	writeJSON(w, http.StatusOK, map[string]any{
		"surplus_w":       reading.Surplus(),
		"recommendations": recs,
		"count":           len(recs),
	})
}

// handleGetAutomationConfig returns the current automation configuration.
func (s *Server) handleGetAutomationConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.Configuration())
}

// handleSetAutomationConfig applies a partial configuration update.
// Invalid values reject the whole update; nothing is partially applied.
func (s *Server) handleSetAutomationConfig(w http.ResponseWriter, r *http.Request) {
	var update automation.ConfigUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.manager.SetConfiguration(update); err != nil {
		if errors.Is(err, automation.ErrInvalidThreshold) ||
			errors.Is(err, automation.ErrInvalidTariff) ||
			errors.Is(err, automation.ErrInvalidCategory) {
			writeBadRequest(w, err.Error())
			return
		}
		writeInternalError(w, "failed to update configuration")
		return
	}

	writeJSON(w, http.StatusOK, s.manager.Configuration())
}

// handleClearOverrides releases all manual overrides back to automation.
func (s *Server) handleClearOverrides(w http.ResponseWriter, r *http.Request) {
	cleared := s.manager.ClearManualOverrides(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"cleared": cleared})
}
