// Package validation provides common validation utilities for configuration
// parameters across the sinkflow library.
//
// Constructors in the streaming packages use these helpers so that a bad
// high-water mark, chunk size, buffer size or Redis key is reported the same
// way everywhere: as an *errors.ValidationError wrapping
// errors.ErrInvalidConfiguration.
package validation
