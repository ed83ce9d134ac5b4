package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WritePowerReading records one inverter telemetry sample in the
// "power" measurement. Non-blocking; the point joins the current batch.
// Silently dropped when the client is closed, matching the optional
// nature of telemetry.
func (c *Client) WritePowerReading(solarW, loadW, gridW float64, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writes.WritePoint(write.NewPoint("power",
		map[string]string{"source": "inverter"},
		map[string]any{
			"solar_w":   solarW,
			"load_w":    loadW,
			"grid_w":    gridW,
			"surplus_w": solarW - loadW,
		},
		timestamp))
}

// WriteAutomationEvent records an automation decision in the
// "automation_events" measurement for trend dashboards. The success
// field is 0/1 so it can be summed.
func (c *Client) WriteAutomationEvent(deviceID, eventType string, surplusW float64, success bool) {
	if !c.IsConnected() {
		return
	}
	ok := 0
	if success {
		ok = 1
	}
	c.writes.WritePoint(write.NewPoint("automation_events",
		map[string]string{"device_id": deviceID, "event_type": eventType},
		map[string]any{"surplus_w": surplusW, "success": ok},
		time.Now()))
}
