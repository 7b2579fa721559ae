package service

import (
	"time"

	"github.com/okian/repdao/internal/adapters/mq/worker"
	"github.com/okian/repdao/internal/domain/scoring"
	"github.com/okian/repdao/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of delivery workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the outbox capacity.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithShardCount sets the number of lock stripes in the record store.
func WithShardCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.shardCount = count
		}
	}
}

// WithDelivery sets the per-sink retry budget and base backoff.
func WithDelivery(retries int, backoff time.Duration) Option {
	return func(s *Service) {
		if retries >= 0 {
			s.retries = retries
		}
		if backoff >= 0 {
			s.backoff = backoff
		}
	}
}

// WithSinks adds downstream consumers of committed changes.
func WithSinks(sinks ...worker.Sink) Option {
	return func(s *Service) {
		for _, sk := range sinks {
			if sk != nil {
				s.sinks = append(s.sinks, sk)
			}
		}
	}
}

// WithCooldownTiers overrides the interaction cooldown ladder.
func WithCooldownTiers(t scoring.Tiers) Option {
	return func(s *Service) {
		s.tiers = &t
	}
}

// WithWitnessCapacity bounds the counterparties each profile remembers.
func WithWitnessCapacity(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.witnessCapacity = n
		}
	}
}

// WithBadgeBonus sets the score credited per claimed badge.
func WithBadgeBonus(points uint64) Option {
	return func(s *Service) {
		s.badgeBonus = &points
	}
}

// WithDecayRate sets the percentage removed per elapsed decay period.
func WithDecayRate(percent uint64) Option {
	return func(s *Service) {
		if percent <= 100 {
			s.decayRate = &percent
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
