package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/farpkdpasirmas-lang/MedSafetyPro/internal/adapters/http/api"
	"github.com/farpkdpasirmas-lang/MedSafetyPro/internal/adapters/http/swagger"
	"github.com/farpkdpasirmas-lang/MedSafetyPro/internal/adapters/repository"
	app "github.com/farpkdpasirmas-lang/MedSafetyPro/internal/app"
	"github.com/farpkdpasirmas-lang/MedSafetyPro/internal/config"
	"github.com/farpkdpasirmas-lang/MedSafetyPro/pkg/logger"
	"github.com/farpkdpasirmas-lang/MedSafetyPro/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants. WriteTimeout stays zero so dashboard
// event streams are not cut off.
const (
	readTimeout               = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	backendConnectTimeout     = 15 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics
	// We collect our own custom system metrics instead
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithServiceName("medsafety")); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	loggerInstance := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg, loggerInstance); err != nil {
		loggerInstance.Error(ctx, "medsafety stopped with error", logger.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

// run serves until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	connectCtx, cancel := context.WithTimeout(ctx, backendConnectTimeout)
	backend, err := openBackend(connectCtx, cfg, log)
	cancel()
	if err != nil {
		return err
	}

	svc := newService(cfg, backend, log)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	// Start system metrics updater
	go startSystemMetricsUpdater(ctx)

	// Start service metrics updater
	go startServiceMetricsUpdater(ctx, svc)

	mux, closeStreams := newMux(ctx, cfg, svc, log)
	srv := newHTTPServer(cfg.Addr, mux, closeStreams)

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or a listener failure
	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// openBackend selects the storage backend once for the process lifetime.
func openBackend(ctx context.Context, cfg *config.Config, log logger.Logger) (repository.Backend, error) {
	switch kind := cfg.ResolveBackend(); kind {
	case config.BackendRedis:
		store, err := repository.DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB,
			repository.WithRedisKeyPrefix(cfg.RedisKeyPrefix))
		if err != nil {
			return repository.Backend{}, err
		}
		log.Info(ctx, "using redis document store", logger.String("addr", cfg.RedisAddr))
		return repository.RemoteBackend(store), nil

	case config.BackendPostgres:
		store, err := repository.OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return repository.Backend{}, err
		}
		log.Info(ctx, "using postgres document store")
		return repository.RemoteBackend(store), nil

	default:
		if cfg.DataDir == "" {
			log.Warn(ctx, "no backend configured; reports are kept in memory only")
			return repository.LocalBackend(repository.NewMemoryKV()), nil
		}
		kv, err := repository.NewFileKV(cfg.DataDir)
		if err != nil {
			return repository.Backend{}, fmt.Errorf("open data dir: %w", err)
		}
		log.Info(ctx, "using local file store", logger.String("dir", cfg.DataDir))
		return repository.LocalBackend(kv), nil
	}
}

func newService(cfg *config.Config, backend repository.Backend, log logger.Logger) *app.Service {
	gw := repository.NewGateway(backend, repository.WithLogger(log.Named("repository")))
	return app.New(gw,
		app.WithLogger(log),
		app.WithChangeQueueSize(cfg.ChangeQueueSize),
		app.WithRecentWindow(time.Duration(cfg.RecentWindowDays)*24*time.Hour),
		app.WithFacilities(cfg.Facilities),
		app.WithDashboardIdleTTL(time.Duration(cfg.DashboardIdleMinutes)*time.Minute),
		app.WithMaxDashboards(cfg.MaxDashboards),
	)
}

// newHTTPServer builds the listener-facing server. onShutdown runs when
// Shutdown starts, ending the event streams that would otherwise keep their
// connections active until the shutdown timeout.
func newHTTPServer(addr string, h http.Handler, onShutdown func()) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadTimeout:       readTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	if onShutdown != nil {
		srv.RegisterOnShutdown(onShutdown)
	}
	return srv
}

// newMux registers every route. The returned func closes open dashboard
// event streams.
func newMux(ctx context.Context, cfg *config.Config, svc *app.Service, log logger.Logger) (*http.ServeMux, func()) {
	mux := http.NewServeMux()

	// Register API docs under /api-docs and /openapi.yaml
	swagger.Register(ctx, mux)

	// Register business API routes with the service dependency.
	apiServer := api.NewServer(svc, svc,
		api.WithSubmitRate(cfg.SubmitRatePerMinute, cfg.SubmitBurst),
		api.WithLogger(log.Named("http")),
	)
	apiServer.Register(ctx, mux)
	return mux, apiServer.CloseStreams
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

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
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

// updateServiceMetrics refreshes the feed and dashboard gauges.
func updateServiceMetrics(svc *app.Service) {
	st := svc.GetStats()
	if n, ok := st["dashboards"].(int); ok {
		metrics.UpdateActiveDashboards(n)
	}
	if n, ok := st["subscribers"].(int); ok {
		metrics.UpdateFeedSubscribers(n)
	}
}
