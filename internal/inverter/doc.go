// Package inverter supplies power readings to the automation manager.
//
// Two sources are available, selected by configuration:
//
//   - Simulator: a synthetic daylight curve with seeded randomness,
//     for development and demo installations without hardware.
//   - MQTTSource: readings pushed by a real inverter gateway on the
//     power reading topic.
//
// The Poller drives either source on a fixed interval. Each reading
// becomes one automation tick and is fanned out to the time-series
// store and the dashboard WebSocket.
package inverter
