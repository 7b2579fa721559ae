package cache

import "errors"

// Sentinel kinds for cache sink errors.
var (
	ErrNoURL = errors.New("redis url not configured")
	ErrWrite = errors.New("redis write failed")
	ErrMiss  = errors.New("snapshot not cached")
)
