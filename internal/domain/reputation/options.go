package reputation

import (
	"time"

	"github.com/google/uuid"
	"github.com/okian/repdao/internal/domain/scoring"
	"github.com/okian/repdao/pkg/logger"
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithClock sets the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithPublisher sets where committed changes are announced.
func WithPublisher(p Publisher) Option {
	return func(e *Engine) {
		e.publisher = p
	}
}

// WithProofVerifier sets the badge proof check.
func WithProofVerifier(v ProofVerifier) Option {
	return func(e *Engine) {
		e.verifier = v
	}
}

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithCooldownTiers overrides the per-type cooldown intervals.
func WithCooldownTiers(t scoring.Tiers) Option {
	return func(e *Engine) {
		e.tiers = t
	}
}

// WithWitnessCapacity bounds the counterparties each profile remembers.
func WithWitnessCapacity(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.witnessCapacity = n
		}
	}
}

// WithBadgeBonus sets the score credited when a badge is claimed.
func WithBadgeBonus(points uint64) Option {
	return func(e *Engine) {
		e.badgeBonus = points
	}
}

// WithDecayRate sets the percentage removed per elapsed decay period.
func WithDecayRate(percent uint64) Option {
	return func(e *Engine) {
		if percent <= 100 {
			e.decayRate = percent
		}
	}
}

// WithIDGenerator sets the event ID source.
func WithIDGenerator(gen func() (uuid.UUID, error)) Option {
	return func(e *Engine) {
		if gen != nil {
			e.newID = gen
		}
	}
}
