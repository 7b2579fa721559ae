// Package cache keeps the latest profile and realm snapshots in Redis for
// readers that should not touch the engine.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/okian/repdao/internal/domain/model"
	"github.com/okian/repdao/internal/domain/types"
	"github.com/redis/go-redis/v9"
)

const (
	sinkName = "cache"

	// DefaultTTL bounds how long a snapshot survives without a refresh.
	DefaultTTL = 24 * time.Hour

	profilePrefix = "repdao:profile:"
	realmPrefix   = "repdao:realm:"
)

// putScript stores ARGV[1] unless the cached snapshot has a higher version.
// ARGV[2] is the incoming version and ARGV[3] the ttl in milliseconds (0 keeps it).
// It returns 1 when written and 0 when the write was stale.
const putScript = `
local cur = redis.call('GET', KEYS[1])
if cur then
  local ok, doc = pcall(cjson.decode, cur)
  if ok and type(doc) == 'table' then
    local have = tonumber(doc['version'])
    if have and have > tonumber(ARGV[2]) then
      return 0
    end
  end
end
local ttl = tonumber(ARGV[3])
if ttl > 0 then
  redis.call('SET', KEYS[1], ARGV[1], 'PX', ttl)
else
  redis.call('SET', KEYS[1], ARGV[1])
end
return 1
`

// Client is the subset of redis.Client the sink needs.
type Client interface {
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// Option configures the sink.
type Option func(*Sink)

// WithTTL sets the snapshot expiry. Zero keeps snapshots forever.
func WithTTL(ttl time.Duration) Option {
	return func(s *Sink) {
		if ttl >= 0 {
			s.ttl = ttl
		}
	}
}

// Sink writes snapshots to Redis.
type Sink struct {
	client Client
	ttl    time.Duration
}

// New creates a sink over client.
func New(client Client, opts ...Option) *Sink {
	s := &Sink{client: client, ttl: DefaultTTL}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect initializes a Redis client from URL or host:port input.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		return nil, ErrNoURL
	}
	var client *redis.Client
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: redisURL})
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return client, nil
}

// Name implements worker.Sink.
func (s *Sink) Name() string { return sinkName }

// Deliver stores every snapshot carried by c.
func (s *Sink) Deliver(ctx context.Context, c model.Change) error { //nolint:gocritic // hugeParam: matches the Sink interface
	for _, p := range c.Profiles {
		if p == nil {
			continue
		}
		if err := s.put(ctx, profilePrefix+string(p.Owner), p.Version, p); err != nil {
			return err
		}
	}
	if c.Realm != nil {
		return s.put(ctx, realmPrefix+c.Realm.Name, c.Realm.Algorithm.Version, c.Realm)
	}
	return nil
}

// put writes a snapshot unless a newer version is already cached. Snapshots
// of one record can reach the sink out of order, so plain SET is not enough.
func (s *Sink) put(ctx context.Context, key string, version uint64, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	args := []any{string(body), strconv.FormatUint(version, 10), s.ttl.Milliseconds()}
	if err := s.client.Eval(ctx, putScript, []string{key}, args...).Err(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWrite, key, err)
	}
	return nil
}

// Profile reads the cached snapshot for owner.
func (s *Sink) Profile(ctx context.Context, owner types.Identity) (*model.ReputationProfile, error) {
	var p model.ReputationProfile
	if err := s.get(ctx, profilePrefix+string(owner), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Realm reads the cached snapshot for name.
func (s *Sink) Realm(ctx context.Context, name string) (*model.GovernanceRealm, error) {
	var r model.GovernanceRealm
	if err := s.get(ctx, realmPrefix+name, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Sink) get(ctx context.Context, key string, v any) error {
	body, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}
