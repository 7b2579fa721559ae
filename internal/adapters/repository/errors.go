package repository

import "errors"

// Sentinel kinds for scoreboard errors.
var (
	ErrNotFound     = errors.New("identity not ranked")
	ErrInvalidLimit = errors.New("invalid leaderboard limit")
)
