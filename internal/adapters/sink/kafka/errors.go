package kafka

import "errors"

// Sentinel kinds for kafka sink errors.
var (
	ErrNoBrokers = errors.New("kafka publisher requires at least one broker")
	ErrPublish   = errors.New("kafka publish failed")
)
