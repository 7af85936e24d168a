// Package config provides configuration types and defaults for videocomp.
package config

import "errors"

// Sentinel errors for configuration validation.
var (
	// ErrInvalidCodec indicates an unsupported video codec was configured.
	ErrInvalidCodec = errors.New("invalid video codec")

	// ErrInvalidPreset indicates a preset outside the recognized nine levels.
	ErrInvalidPreset = errors.New("invalid preset")

	// ErrInvalidCRF indicates a CRF value outside the valid 15-35 range.
	ErrInvalidCRF = errors.New("CRF value out of range")

	// ErrInvalidFraction indicates a fractional config value outside [0, 1].
	ErrInvalidFraction = errors.New("fraction must be between 0 and 1")

	// ErrInvalidWorkers indicates a non-positive worker count.
	ErrInvalidWorkers = errors.New("worker count must be at least 1")

	// ErrInvalidThreshold indicates a negative or zero size/duration threshold.
	ErrInvalidThreshold = errors.New("threshold must be positive")
)
