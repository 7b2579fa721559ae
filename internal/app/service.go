// Package service wires the record store, reputation engine, change outbox
// and delivery sinks into the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	eventqueue "github.com/okian/repdao/internal/adapters/mq/queue"
	workerpool "github.com/okian/repdao/internal/adapters/mq/worker"
	repository "github.com/okian/repdao/internal/adapters/repository"
	"github.com/okian/repdao/internal/domain/reputation"
	"github.com/okian/repdao/internal/domain/scoring"
	"github.com/okian/repdao/internal/domain/types"
	"github.com/okian/repdao/pkg/logger"
	"github.com/okian/repdao/pkg/metrics"
)

// Service implements the API dependencies for the reputation system. The
// engine operations are promoted from the embedded *reputation.Engine.
type Service struct {
	*reputation.Engine

	mu sync.RWMutex

	// Core components
	store      *repository.MemoryStore
	eventQueue *eventqueue.InMemoryQueue
	workerPool *workerpool.Pool
	sinks      []workerpool.Sink

	// Configuration
	workerCount     int
	queueSize       int
	shardCount      int
	retries         int
	backoff         time.Duration
	witnessCapacity int
	tiers           *scoring.Tiers
	badgeBonus      *uint64
	decayRate       *uint64

	// State
	started bool
	stopped bool

	// Logging
	logger logger.Logger
}

// New constructs a Service. The store, outbox and engine are ready for use
// immediately; Start launches delivery of committed changes to the sinks.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU(),
		queueSize:   100_000,
		shardCount:  64,
		retries:     3,
		backoff:     100 * time.Millisecond,
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.store = repository.NewMemoryStore(repository.WithShardCount(s.shardCount))
	s.eventQueue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))

	engineOpts := []reputation.Option{
		reputation.WithPublisher(s.eventQueue),
		reputation.WithLogger(s.logger.Named("engine")),
		reputation.WithWitnessCapacity(s.witnessCapacity),
	}
	if s.tiers != nil {
		engineOpts = append(engineOpts, reputation.WithCooldownTiers(*s.tiers))
	}
	if s.badgeBonus != nil {
		engineOpts = append(engineOpts, reputation.WithBadgeBonus(*s.badgeBonus))
	}
	if s.decayRate != nil {
		engineOpts = append(engineOpts, reputation.WithDecayRate(*s.decayRate))
	}
	s.Engine = reputation.New(s.store, engineOpts...)

	return s
}

// Start launches the worker pool draining the outbox.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting reputation service...")

	s.workerPool = workerpool.NewPool(s.workerCount, s.eventQueue, s.sinks,
		workerpool.WithRetries(s.retries),
		workerpool.WithBackoff(s.backoff),
	)
	s.workerPool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "reputation service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("shards", s.shardCount),
		logger.Any("sinks", s.sinkNames()),
	)

	return nil
}

// Shutdown closes the outbox and waits until the changes already queued are
// delivered or ctx expires.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.logger.Info(ctx, "draining change outbox...", logger.Int("pending", s.eventQueue.Len(ctx)))

	err := s.workerPool.Shutdown(ctx)
	s.closeSinks(ctx)
	s.started = false
	s.stopped = true

	if err != nil {
		return fmt.Errorf("service shutdown: %w", err)
	}
	s.logger.Info(ctx, "reputation service stopped")
	return nil
}

// Stop aborts delivery without draining the outbox.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping reputation service...")

	s.workerPool.Stop()
	_ = s.eventQueue.Close()
	s.closeSinks(ctx)

	s.started = false
	s.stopped = true
	s.logger.Info(ctx, "reputation service stopped")
}

func (s *Service) closeSinks(ctx context.Context) {
	for _, sk := range s.sinks {
		closer, ok := sk.(interface{ Close() error })
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil {
			s.logger.Error(ctx, "error closing sink", logger.String("sink", sk.Name()), logger.Error(err))
		}
	}
}

func (s *Service) sinkNames() []string {
	names := make([]string, len(s.sinks))
	for i, sk := range s.sinks {
		names[i] = sk.Name()
	}
	return names
}

// TopN returns the top N scoreboard entries.
func (s *Service) TopN(ctx context.Context, n int) ([]types.Entry, error) {
	return s.store.TopN(ctx, n)
}

// Rank returns the scoreboard position of id.
func (s *Service) Rank(ctx context.Context, id types.Identity) (types.Entry, error) {
	entry, err := s.store.Rank(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return types.Entry{}, fmt.Errorf("%w: %q: %w", reputation.ErrNotFound, id, err)
	}
	return entry, err
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	profiles, realms, events := s.store.Counts(ctx)
	queueLen := s.eventQueue.Len(ctx)

	stats := map[string]interface{}{
		"started":       s.started,
		"workerCount":   s.workerCount,
		"queueCapacity": s.eventQueue.Capacity(),
		"queueLength":   queueLen,
		"shardCount":    s.shardCount,
		"sinks":         s.sinkNames(),
		"profiles":      profiles,
		"realms":        realms,
		"events":        events,
	}

	if s.workerPool != nil {
		delivered, failed := s.workerPool.Stats()
		stats["delivered"] = delivered
		stats["failed"] = failed
	}

	// Update metrics
	metrics.UpdateQueueSize(queueLen)
	metrics.UpdateRepositoryRecordsTotal(profiles)
	metrics.UpdateRepositoryRealmsTotal(realms)
	metrics.UpdateRepositoryEventsTotal(events)

	return stats
}
