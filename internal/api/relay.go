package api

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/helioshome/helios-core/internal/automation"
)

// subscribeControlRequests lets external publishers (Node-RED flows,
// wall tablets) drive devices over MQTT with the same semantics as
// POST /devices/{id}/control. The payload on helios/command/{device_id}
// matches the REST control body.
func (s *Server) subscribeControlRequests() error {
	if s.mqtt == nil {
		return nil
	}
	topic := "helios/command/+"
	s.logger.Info("subscribing to external control requests", "topic", topic)

	return s.mqtt.Subscribe(topic, 1, func(t string, payload []byte) error {
		deviceID := t[strings.LastIndex(t, "/")+1:]
		if deviceID == "" {
			return nil
		}

		var ctl DeviceControl
		if err := json.Unmarshal(payload, &ctl); err != nil {
			s.logger.Warn("invalid control payload", "topic", t, "error", err)
			return nil
		}

		action := automation.Action(ctl.Action)
		switch action {
		case automation.ActionTurnOn, automation.ActionTurnOff, automation.ActionToggle:
		default:
			s.logger.Warn("unknown control action", "topic", t, "action", ctl.Action)
			return nil
		}

		if !s.manager.ControlDevice(context.Background(), automation.Control{
			DeviceID:        deviceID,
			Action:          action,
			Manual:          ctl.Manual,
			DurationMinutes: ctl.DurationMinutes,
		}) {
			s.logger.Debug("control request for unknown device", "device_id", deviceID)
		}
		return nil
	})
}
