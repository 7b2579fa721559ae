package worker

import (
	"time"

	"github.com/okian/repdao/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(logger logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithRetries sets how many times a failed delivery is retried per sink.
func WithRetries(n int) Option {
	return func(w *InMemoryWorker) {
		if n >= 0 {
			w.retries = n
		}
	}
}

// WithBackoff sets the base delay between retries. The n-th retry waits n times the base.
func WithBackoff(d time.Duration) Option {
	return func(w *InMemoryWorker) {
		if d >= 0 {
			w.backoff = d
		}
	}
}
