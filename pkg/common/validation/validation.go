// Package validation provides common validation utilities for the sinkflow library.
package validation

import (
	"math"

	gferrors "github.com/vnykmshr/sinkflow/pkg/common/errors"
)

// ValidatePositive validates that an integer value is positive (> 0).
// Returns a ValidationError if the value is not positive.
func ValidatePositive(module, field string, value int) error {
	if value <= 0 {
		return gferrors.NewValidationError(module, field, value, "must be positive").
			WithHint("value must be greater than 0")
	}
	return nil
}

// ValidateNonNegative validates that a numeric value is non-negative (>= 0)
// and not NaN. Positive infinity is accepted.
// Returns a ValidationError otherwise.
func ValidateNonNegative(module, field string, value float64) error {
	if math.IsNaN(value) {
		return gferrors.NewValidationError(module, field, value, "cannot be NaN").
			WithHint("use 0 or a positive value")
	}
	if value < 0 {
		return gferrors.NewValidationError(module, field, value, "cannot be negative").
			WithHint("use 0 or a positive value")
	}
	return nil
}

// ValidateFiniteNonNegative validates that a float64 value is finite and >= 0.
// Chunk sizes go through this check before they are added to a queue total.
func ValidateFiniteNonNegative(module, field string, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return gferrors.NewValidationError(module, field, value, "must be finite").
			WithHint("size functions must return a finite number")
	}
	if value < 0 {
		return gferrors.NewValidationError(module, field, value, "cannot be negative").
			WithHint("use 0 or a positive value")
	}
	return nil
}

// ValidateNotNil validates that an interface value is not nil.
// Returns a ValidationError if the value is nil.
func ValidateNotNil(module, field string, value interface{}) error {
	if value == nil {
		return gferrors.NewValidationError(module, field, nil, "cannot be nil").
			WithHint("provide a valid " + field)
	}
	return nil
}

// ValidateNotEmpty validates that a string value is not empty.
// Returns a ValidationError if the string is empty.
func ValidateNotEmpty(module, field string, value string) error {
	if value == "" {
		return gferrors.NewValidationError(module, field, value, "cannot be empty").
			WithHint("provide a non-empty " + field)
	}
	return nil
}
