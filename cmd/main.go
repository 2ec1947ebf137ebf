package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/podium/internal/adapters/http/api"
	"github.com/okian/podium/internal/adapters/http/swagger"
	service "github.com/okian/podium/internal/app"
	"github.com/okian/podium/internal/config"
	"github.com/okian/podium/internal/scheduler"
	"github.com/okian/podium/pkg/logger"
	"github.com/okian/podium/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 10 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	systemMetricsInterval  = 10 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := run(ctx, *cfg); err != nil {
		logger.Get().Error(ctx, "podium exited", logger.Error(err))
		os.Exit(1)
	}
}

// run starts the service, its periodic jobs and the HTTP server, and blocks
// until ctx is cancelled.
func run(ctx context.Context, cfg config.Config) error {
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	svc := service.New(cfg, service.WithLogger(log.Named("service")))
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := svc.Stop(stopCtx); err != nil {
			log.Error(ctx, "service stop failed", logger.Error(err))
		}
	}()

	jobs := newScheduler(cfg, svc, log)
	jobCtx, cancelJobs := context.WithCancel(ctx)
	jobs.Start(jobCtx)
	defer func() {
		cancelJobs()
		jobs.Wait()
	}()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHandler(cfg, svc, log),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// newHandler registers the API docs and the business API on a fresh mux.
func newHandler(cfg config.Config, svc *service.Service, log logger.Logger) http.Handler {
	mux := http.NewServeMux()
	swagger.Register(mux)
	api.NewServer(svc,
		api.WithMaxLimit(cfg.MaxLeaderboardLimit),
		api.WithLogger(log.Named("api")),
	).Register(mux)
	return mux
}

// newScheduler wires the periodic maintenance jobs.
func newScheduler(cfg config.Config, svc *service.Service, log logger.Logger) *scheduler.Scheduler {
	s := scheduler.New(scheduler.WithLogger(log))
	scheduler.Register(s, svc, scheduler.Intervals{
		Sync:          cfg.SyncInterval,
		CooldownPrune: cfg.CooldownPruneInterval,
		Purge:         cfg.PurgeInterval,
		SystemMetrics: systemMetricsInterval,
	})
	s.Add(scheduler.Job{
		Name:     "service_metrics",
		Interval: serviceMetricsInterval,
		Run: func(ctx context.Context) error {
			return updateServiceMetrics(ctx, svc)
		},
	})
	return s
}

// updateServiceMetrics publishes service-level gauges.
func updateServiceMetrics(ctx context.Context, svc *service.Service) error {
	stats, err := svc.Stats(ctx)
	if err != nil {
		return err
	}
	metrics.UpdateQueueSize(stats.QueueLength)
	metrics.UpdateWorkerCount(stats.Workers)
	metrics.UpdateCooldownEntries(stats.CooldownEntries)
	metrics.UpdateRepositorySubjects(stats.Store.Subjects)
	return nil
}
