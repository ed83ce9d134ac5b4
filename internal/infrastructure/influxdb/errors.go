package influxdb

import "errors"

var (
	// ErrDisabled is returned by Connect when the influxdb config
	// section is switched off.
	ErrDisabled = errors.New("influxdb: disabled in configuration")

	// ErrConnectionFailed wraps a failed initial ping.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrNotConnected is returned for operations after Close.
	ErrNotConnected = errors.New("influxdb: not connected")
)
