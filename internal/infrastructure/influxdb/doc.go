// Package influxdb stores Helios time-series telemetry: inverter power
// samples in the "power" measurement and automation decisions in
// "automation_events".
//
// Writes go through the influxdb-client-go non-blocking API. Points are
// batched per the config's batch_size and flush_interval, and failures
// arrive asynchronously through SetOnError, so telemetry can never
// stall the control loop. When InfluxDB is disabled or down the rest of
// the system runs without it; writers silently drop points after Close.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	client.SetOnError(func(err error) { log.Warn("influx write", "error", err) })
//	client.WritePowerReading(3200, 1100, -2100, time.Now())
package influxdb
