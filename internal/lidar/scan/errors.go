package scan

import "errors"

var (
	// ErrInvalidConfig wraps every configuration validation failure.
	ErrInvalidConfig = errors.New("invalid scan configuration")

	// ErrClosed is returned by operations on a closed Sensor.
	ErrClosed = errors.New("sensor closed")
)
