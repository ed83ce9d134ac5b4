// Package logging wraps log/slog with the conventions every Helios
// component shares: JSON or text output, level filtering, and service
// and version attributes stamped on every record.
//
// Components receive a *Logger (usually narrowed through their own
// small Logger interface) and log key/value pairs:
//
//	log := logging.New(cfg.Logging, version)
//	log.Info("device activated", "device_id", id, "surplus_w", surplus)
//
// Use Default() only before the configuration file has been loaded.
//
// Do not log credentials. MQTT passwords and InfluxDB tokens stay out
// of log records even at debug level.
package logging
