package config

import "errors"

// Sentinel error kinds for this package.
var (
	// ErrInvalidConfig wraps every Validate failure.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig wraps file, parser and provider failures in Load.
	ErrLoadConfig    = errors.New("load config failed")
)
