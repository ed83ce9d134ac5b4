package device

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// maxNameLength bounds device names for storage and UI display.
const maxNameLength = 100

// Validation sets are pre-computed once at package init for O(1) lookups.
var (
	validPriorities map[Priority]struct{}
	validCategories map[Category]struct{}
	validStatuses   map[Status]struct{}
)

func init() {
	validPriorities = make(map[Priority]struct{}, len(AllPriorities()))
	for _, p := range AllPriorities() {
		validPriorities[p] = struct{}{}
	}

	validCategories = make(map[Category]struct{}, len(AllCategories()))
	for _, c := range AllCategories() {
		validCategories[c] = struct{}{}
	}

	validStatuses = make(map[Status]struct{}, len(AllStatuses()))
	for _, s := range AllStatuses() {
		validStatuses[s] = struct{}{}
	}
}

// ValidateName checks that a device name is non-empty and within bounds.
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidName)
	}
	if len(trimmed) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

// ValidatePriority checks that a priority is a known value.
func ValidatePriority(p Priority) error {
	if _, ok := validPriorities[p]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidPriority, p)
	}
	return nil
}

// ValidateCategory checks that a category is a known value.
func ValidateCategory(c Category) error {
	if _, ok := validCategories[c]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, c)
	}
	return nil
}

// ValidateStatus checks that a status is a known value.
func ValidateStatus(s Status) error {
	if _, ok := validStatuses[s]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return nil
}

// Validate checks all invariants of a device. It returns the first
// violation found, wrapped in the matching sentinel error.
func Validate(d *Device) error {
	if err := ValidateName(d.Name); err != nil {
		return err
	}
	if d.PowerW <= 0 {
		return fmt.Errorf("%w: %.1f W", ErrInvalidPower, d.PowerW)
	}
	if err := ValidatePriority(d.Priority); err != nil {
		return err
	}
	if err := ValidateCategory(d.Category); err != nil {
		return err
	}
	if err := ValidateStatus(d.Status); err != nil {
		return err
	}
	return nil
}

// GenerateID creates a new unique device identifier.
func GenerateID() string {
	return uuid.New().String()
}
