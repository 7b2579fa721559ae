package store

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyExists = errors.New("record already exists")
	ErrUndeclaredKey = errors.New("key not declared in transaction")
)
