package automation

import "errors"

// Domain errors for the automation package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, automation.ErrInvalidThreshold) {
//	    // handle rejected configuration
//	}
var (
	// ErrInvalidThreshold is returned when a surplus threshold is negative.
	ErrInvalidThreshold = errors.New("automation: invalid surplus threshold")

	// ErrInvalidCategory is returned when a category filter names an
	// unknown category.
	ErrInvalidCategory = errors.New("automation: invalid category")

	// ErrInvalidTariff is returned when a tariff is negative.
	ErrInvalidTariff = errors.New("automation: invalid tariff")

	// ErrInvalidReading is returned when a reading carries negative
	// production or load.
	ErrInvalidReading = errors.New("automation: invalid power reading")
)
