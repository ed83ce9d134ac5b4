package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.withRequestID)
	r.Use(s.withLogging)
	r.Use(s.withRecovery)
	r.Use(s.withCORS)
	r.Use(s.withBodyLimit)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Device endpoints
		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Post("/", s.handleCreateDevice)
			r.Get("/stats", s.handleDeviceStats)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetDevice)
				r.Patch("/", s.handleUpdateDevice)
				r.Delete("/", s.handleDeleteDevice)
				r.Post("/control", s.handleControlDevice)
			})
		})

		// Automation endpoints
		r.Route("/automation", func(r chi.Router) {
			r.Get("/stats", s.handleAutomationStats)
			r.Get("/events", s.handleListEvents)
			r.Post("/recommendations", s.handleRecommendations)
			r.Get("/config", s.handleGetAutomationConfig)
			r.Put("/config", s.handleSetAutomationConfig)
			r.Post("/overrides/clear", s.handleClearOverrides)
		})

		// WebSocket
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status, including the connection
// state of optional infrastructure components.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	components := map[string]string{}
	if s.mqtt != nil {
		components["mqtt"] = connState(s.mqtt.IsConnected())
	}
	if s.influx != nil {
		components["influxdb"] = connState(s.influx.IsConnected())
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"version":    s.version,
		"components": components,
	})
}

func connState(connected bool) string {
	if connected {
		return "connected"
	}
	return "disconnected"
}
