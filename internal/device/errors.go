package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrNotFound) {
//	    // handle not found case
//	}
var (
	// ErrNotFound is returned when a device ID does not exist.
	ErrNotFound = errors.New("device: not found")

	// ErrExists is returned when creating a device with an ID that already exists.
	ErrExists = errors.New("device: already exists")

	// ErrInvalidName is returned when a device name is empty or too long.
	ErrInvalidName = errors.New("device: invalid name")

	// ErrInvalidPower is returned when the nominal draw is zero or negative.
	ErrInvalidPower = errors.New("device: invalid power draw")

	// ErrInvalidPriority is returned when a priority is not a known value.
	ErrInvalidPriority = errors.New("device: invalid priority")

	// ErrInvalidCategory is returned when a category is not a known value.
	ErrInvalidCategory = errors.New("device: invalid category")

	// ErrInvalidStatus is returned when a status is not a known value.
	ErrInvalidStatus = errors.New("device: invalid status")
)
