package scoring

import "errors"

// Sentinel kinds for scoring errors.
var (
	ErrInvalidInteractionType = errors.New("invalid interaction type")
	ErrInvalidPoints          = errors.New("base points out of range")
	ErrWeightOutOfRange       = errors.New("weight out of range")
	ErrZeroWeights            = errors.New("all weights are zero")
)
