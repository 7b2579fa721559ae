package postgres

import "errors"

// Sentinel kinds for postgres sink errors.
var (
	ErrNoDSN = errors.New("postgres dsn not configured")
	ErrWrite = errors.New("postgres write failed")
)
