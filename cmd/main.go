package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/repdao/internal/adapters/http/api"
	"github.com/okian/repdao/internal/adapters/mq/worker"
	cachesink "github.com/okian/repdao/internal/adapters/sink/cache"
	kafkasink "github.com/okian/repdao/internal/adapters/sink/kafka"
	pgsink "github.com/okian/repdao/internal/adapters/sink/postgres"
	app "github.com/okian/repdao/internal/app"
	"github.com/okian/repdao/internal/config"
	"github.com/okian/repdao/internal/domain/scoring"
	"github.com/okian/repdao/pkg/logger"
	"github.com/okian/repdao/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	if err := run(); err != nil {
		// Use stderr since the logger may not be available yet
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

func run() error {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	sinks, release, err := buildSinks(ctx, cfg)
	if err != nil {
		return err
	}
	defer release()

	svc := app.New(serviceOptions(cfg, log, sinks)...)
	// Delivery must outlive the signal so Shutdown can drain the outbox.
	if err := svc.Start(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.NewServer(svc, svc, cfg.MaxListLimit).Handler(),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info(gctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		startSystemMetricsUpdater(gctx)
		return nil
	})
	g.Go(func() error {
		startServiceMetricsUpdater(gctx, svc)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info(context.Background(), "shutting down server...")

		// Graceful shutdown with timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
		}
		if err := svc.Shutdown(shutdownCtx); err != nil {
			return err
		}
		log.Info(shutdownCtx, "server stopped")
		return nil
	})

	return g.Wait()
}

// serviceOptions maps the loaded configuration onto the service.
func serviceOptions(cfg *config.Config, log logger.Logger, sinks []worker.Sink) []app.Option {
	return []app.Option{
		app.WithLogger(log.Named("service")),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithShardCount(cfg.ShardCount),
		app.WithDelivery(cfg.DeliveryRetries, cfg.DeliveryBackoff),
		app.WithWitnessCapacity(cfg.WitnessCapacity),
		app.WithCooldownTiers(scoring.Tiers{Low: cfg.CooldownLow, Mid: cfg.CooldownMid, High: cfg.CooldownHigh}),
		app.WithBadgeBonus(cfg.BadgeBonus),
		app.WithDecayRate(cfg.DecayRate),
		app.WithSinks(sinks...),
	}
}

// buildSinks connects every sink whose configuration is present. The
// returned release func closes the underlying connections; on error the
// connections opened so far are already closed.
func buildSinks(ctx context.Context, cfg *config.Config) ([]worker.Sink, func(), error) {
	var (
		sinks   []worker.Sink
		closers []func()
	)
	release := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.PostgresDSN != "" {
		pool, err := pgsink.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres sink: %w", err)
		}
		closers = append(closers, pool.Close)
		pg := pgsink.New(pool)
		if err := pg.Migrate(ctx); err != nil {
			release()
			return nil, nil, fmt.Errorf("postgres sink: %w", err)
		}
		sinks = append(sinks, pg)
	}

	if len(cfg.KafkaBrokers) > 0 {
		ks, err := kafkasink.New(cfg.KafkaBrokers, kafkasink.WithTopic(cfg.KafkaTopic))
		if err != nil {
			release()
			return nil, nil, fmt.Errorf("kafka sink: %w", err)
		}
		// The service closes the writer after the outbox drains.
		sinks = append(sinks, ks)
	}

	if cfg.RedisURL != "" {
		client, err := cachesink.Connect(ctx, cfg.RedisURL)
		if err != nil {
			release()
			return nil, nil, fmt.Errorf("cache sink: %w", err)
		}
		closers = append(closers, func() { _ = client.Close() })
		sinks = append(sinks, cachesink.New(client, cachesink.WithTTL(cfg.CacheTTL)))
	}

	return sinks, release, nil
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater refreshes the store and outbox gauges.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// GetStats updates the gauges as a side effect.
			_ = svc.GetStats()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
