// Package worker delivers committed changes from the outbox to sinks.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/okian/repdao/internal/adapters/mq/queue"
	"github.com/okian/repdao/pkg/logger"
	"github.com/okian/repdao/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultRetries        = 3
	defaultBackoff        = 100 * time.Millisecond
	metricsUpdateInterval = 5 * time.Second
	inboxSize             = 64
)

// Change abstracts what workers read off the queue.
type Change = queue.Change

// Sink is a downstream consumer of committed changes.
type Sink interface {
	// Name labels the sink in logs and metrics.
	Name() string
	// Deliver hands one change to the sink.
	Deliver(ctx context.Context, c Change) error
}

// Queue defines how workers receive changes.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Change
}

// Worker processes changes and hands them to every sink.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or its input closes.
	Run(ctx context.Context)

	// Shutdown stops the worker and waits for it to exit.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for delivering changes.
type InMemoryWorker struct {
	queue Queue
	sinks []Sink
	name  string

	retries int
	backoff time.Duration

	delivered atomic.Int64
	failed    atomic.Int64
	busy      atomic.Bool

	// Shutdown control
	stopOnce sync.Once
	shutdown chan struct{}
	done     chan struct{}

	// Logging
	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, sinks []Sink, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		sinks:    sinks,
		name:     "worker",
		retries:  defaultRetries,
		backoff:  defaultBackoff,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}

	// Apply all options
	for _, opt := range opts {
		opt(w)
	}

	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run starts the worker loop. Changes already handed to the worker are
// delivered before it returns on a closed input.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	in := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case c, ok := <-in:
			if !ok {
				return
			}
			w.process(ctx, c)
		}
	}
}

// Shutdown stops the worker without draining its input.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.stop()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) stop() {
	w.stopOnce.Do(func() { close(w.shutdown) })
}

// Delivered returns the number of changes every sink accepted.
func (w *InMemoryWorker) Delivered() int64 { return w.delivered.Load() }

// Failed returns the number of changes at least one sink rejected.
func (w *InMemoryWorker) Failed() int64 { return w.failed.Load() }

// process hands c to every sink. A failing sink does not block the others.
func (w *InMemoryWorker) process(ctx context.Context, c Change) { //nolint:gocritic // hugeParam: Change is passed by value for channel semantics
	w.busy.Store(true)
	defer w.busy.Store(false)

	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	ok := true
	for _, s := range w.sinks {
		if err := w.deliver(ctx, s, c); err != nil {
			ok = false
			metrics.RecordWorkerError()
			metrics.RecordErrorByComponent("worker", s.Name())
			metrics.RecordErrorByType("delivery_error", "high")
			w.logger.Error(ctx, "delivery failed",
				logger.String("sink", s.Name()),
				logger.String("kind", string(c.Kind)),
				logger.String("key", c.Key()),
				logger.Error(err),
			)
		}
	}
	if ok {
		w.delivered.Add(1)
	} else {
		w.failed.Add(1)
	}
}

func (w *InMemoryWorker) deliver(ctx context.Context, s Sink, c Change) error { //nolint:gocritic // hugeParam: see process
	var err error
	for attempt := 0; attempt <= w.retries; attempt++ {
		if attempt > 0 {
			metrics.RecordWorkerRetry()
			timer := time.NewTimer(w.backoff * time.Duration(attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("delivery to %s abandoned: %w", s.Name(), ctx.Err())
			case <-w.shutdown:
				timer.Stop()
				return fmt.Errorf("delivery to %s abandoned: %w", s.Name(), ErrStopped)
			case <-timer.C:
			}
		}

		start := time.Now()
		err = s.Deliver(ctx, c)
		metrics.RecordSinkLatency(s.Name(), float64(time.Since(start).Milliseconds()))
		if err == nil {
			metrics.RecordSinkDelivery(s.Name(), "ok")
			return nil
		}
		metrics.RecordSinkDelivery(s.Name(), "error")
	}
	return fmt.Errorf("delivery to %s failed after %d attempts: %w", s.Name(), w.retries+1, err)
}

// inbox feeds one worker. Changes with the same key always land in the same
// inbox, so they reach the sinks in commit order.
type inbox chan Change

func (i inbox) Dequeue(context.Context) <-chan Change { return i }

// Pool partitions the outbox across workers by change key.
type Pool struct {
	workers []*InMemoryWorker
	inboxes []inbox
	queue   Queue

	// Shutdown control
	stopOnce sync.Once
	shutdown chan struct{}
	done     chan struct{}

	// Metrics tracking
	lastDelivered     int64
	lastProcessedTime time.Time

	// Logging
	logger logger.Logger
}

// NewPool creates a new worker pool. opts are applied to every worker.
func NewPool(workerCount int, q Queue, sinks []Sink, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	pool := &Pool{
		workers:           make([]*InMemoryWorker, workerCount),
		inboxes:           make([]inbox, workerCount),
		queue:             q,
		shutdown:          make(chan struct{}),
		done:              make(chan struct{}),
		lastProcessedTime: time.Now(),
		logger:            logger.Get().Named("worker-pool"),
	}

	for i := 0; i < workerCount; i++ {
		pool.inboxes[i] = make(inbox, inboxSize)
		workerOpts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		pool.workers[i] = NewInMemoryWorker(pool.inboxes[i], sinks, workerOpts...)
	}

	// Initialize worker metrics
	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(0)
	metrics.UpdateWorkerIdleCount(workerCount)
	metrics.UpdateWorkerMessagesPerSecond(0.0)

	return pool
}

// Start starts the dispatcher and all workers.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	go p.dispatch(ctx)

	// Start metrics updater
	go p.startMetricsUpdater(ctx)
}

// dispatch routes every change to the inbox owning its key.
func (p *Pool) dispatch(ctx context.Context) {
	defer func() {
		for _, in := range p.inboxes {
			close(in)
		}
		close(p.done)
	}()

	src := p.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case c, ok := <-src:
			if !ok {
				return
			}
			idx := int(xxhash.Sum64String(c.Key()) % uint64(len(p.inboxes)))
			select {
			case p.inboxes[idx] <- c:
			case <-ctx.Done():
				return
			case <-p.shutdown:
				return
			}
		}
	}
}

// startMetricsUpdater starts a background goroutine that updates worker metrics.
func (p *Pool) startMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metricsUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case <-p.done:
			return
		case <-ticker.C:
			p.updateMetrics()
		}
	}
}

// updateMetrics updates worker-related metrics.
func (p *Pool) updateMetrics() {
	now := time.Now()
	delivered, _ := p.Stats()
	if elapsed := now.Sub(p.lastProcessedTime).Seconds(); elapsed > 0 {
		metrics.UpdateWorkerMessagesPerSecond(float64(delivered-p.lastDelivered) / elapsed)
	}
	p.lastDelivered = delivered
	p.lastProcessedTime = now

	active := 0
	for _, w := range p.workers {
		if w.busy.Load() {
			active++
		}
	}
	metrics.UpdateWorkerActiveCount(active)
	metrics.UpdateWorkerIdleCount(len(p.workers) - active)
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Stats returns the delivered and failed change counts across workers.
func (p *Pool) Stats() (delivered, failed int64) {
	for _, w := range p.workers {
		delivered += w.Delivered()
		failed += w.Failed()
	}
	return delivered, failed
}

// Stop aborts dispatch and all workers without draining.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() { close(p.shutdown) })
	for _, w := range p.workers {
		w.stop()
	}
}

// Shutdown closes the queue and waits for buffered changes to be delivered.
// When ctx expires first the pool is stopped and the remaining changes are
// abandoned.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	select {
	case <-p.done:
	case <-ctx.Done():
		p.Stop()
		return fmt.Errorf("dispatcher shutdown: %w", ctx.Err())
	}

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-ctx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			p.Stop()
			return fmt.Errorf("worker shutdown: %w", ctx.Err())
		}
	}
	return nil
}
