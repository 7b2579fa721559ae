package service

import "errors"

// ErrStopped is returned when starting a service that was already stopped.
var ErrStopped = errors.New("service stopped")
