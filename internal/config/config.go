// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() initializer to build a Config with defaults.
// - Keys are flat and snake_case so env vars map one to one (REPDAO_QUEUE_SIZE -> queue_size).
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"fmt"
	"runtime"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// ShutdownTimeout bounds the graceful drain on SIGTERM.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// ShardCount configures the number of lock stripes in the record store.
	ShardCount int `koanf:"shard_count"`

	// MaxListLimit caps ?limit on the leaderboard and event listings.
	MaxListLimit int `koanf:"max_list_limit"`

	// QueueSize bounds the change outbox.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of delivery workers.
	WorkerCount int `koanf:"worker_count"`

	// DeliveryRetries and DeliveryBackoff control per-sink redelivery.
	DeliveryRetries int           `koanf:"delivery_retries"`
	DeliveryBackoff time.Duration `koanf:"delivery_backoff"`

	// WitnessCapacity bounds the per-profile cooldown witness.
	WitnessCapacity int `koanf:"witness_capacity"`

	// CooldownLow, CooldownMid and CooldownHigh are the per-pair cooldown tiers.
	CooldownLow  time.Duration `koanf:"cooldown_low"`
	CooldownMid  time.Duration `koanf:"cooldown_mid"`
	CooldownHigh time.Duration `koanf:"cooldown_high"`

	// BadgeBonus is credited to the badge's category on claim.
	BadgeBonus uint64 `koanf:"badge_bonus"`

	// DecayRate is the percentage removed per elapsed decay period.
	DecayRate uint64 `koanf:"decay_rate"`

	// PostgresDSN enables the event archive sink when set.
	PostgresDSN string `koanf:"postgres_dsn"`

	// KafkaBrokers enables the change stream sink when set.
	KafkaBrokers []string `koanf:"kafka_brokers"`
	KafkaTopic   string   `koanf:"kafka_topic"`

	// RedisURL enables the snapshot cache sink when set.
	RedisURL string        `koanf:"redis_url"`
	CacheTTL time.Duration `koanf:"cache_ttl"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		LogFormat:       "text",
		Addr:            ":9080",
		ShutdownTimeout: 10 * time.Second,
		ShardCount:      64,
		MaxListLimit:    100,
		QueueSize:       100_000,
		WorkerCount:     runtime.NumCPU(),
		DeliveryRetries: 3,
		DeliveryBackoff: 100 * time.Millisecond,
		WitnessCapacity: 64,
		CooldownLow:     5 * time.Minute,
		CooldownMid:     30 * time.Minute,
		CooldownHigh:    2 * time.Hour,
		BadgeBonus:      25,
		DecayRate:       2,
		KafkaTopic:      "repdao.changes",
		CacheTTL:        24 * time.Hour,
	}
}

// Validate reports the first setting the service cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.ShardCount < 1:
		return fmt.Errorf("%w: shard_count must be positive", ErrInvalidConfig)
	case c.QueueSize < 1:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.WorkerCount < 1:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case c.WitnessCapacity < 1:
		return fmt.Errorf("%w: witness_capacity must be positive", ErrInvalidConfig)
	case c.DecayRate > 100:
		return fmt.Errorf("%w: decay_rate must not exceed 100", ErrInvalidConfig)
	case c.CooldownLow <= 0 || c.CooldownMid <= 0 || c.CooldownHigh <= 0:
		return fmt.Errorf("%w: cooldown tiers must be positive", ErrInvalidConfig)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: log_format must be text or json", ErrInvalidConfig)
	}
	return nil
}
