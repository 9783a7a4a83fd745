package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/tradelines-backend/internal/activity"
	"github.com/angelmondragon/tradelines-backend/internal/cron"
	"github.com/angelmondragon/tradelines-backend/internal/payouts"
	"github.com/angelmondragon/tradelines-backend/pkg/config"
	"github.com/angelmondragon/tradelines-backend/pkg/db"
	"github.com/angelmondragon/tradelines-backend/pkg/instance"
	"github.com/angelmondragon/tradelines-backend/pkg/logger"
	"github.com/angelmondragon/tradelines-backend/pkg/metrics"
	"github.com/angelmondragon/tradelines-backend/pkg/migrate"
	"github.com/angelmondragon/tradelines-backend/pkg/outbox"
	"github.com/angelmondragon/tradelines-backend/pkg/redis"
)

const serviceKind = "cron-worker"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceKind})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceKind
	logg = logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": serviceKind,
		"instance":    instance.GetID(serviceKind),
	})

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		stop()
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer closeWithLog(ctx, logg, "database", dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("bootstrap redis: %w", err)
	}
	defer closeWithLog(ctx, logg, "redis", redisClient.Close)

	registry, err := buildRegistry(cfg, logg, dbClient)
	if err != nil {
		return fmt.Errorf("register cron jobs: %w", err)
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Locks:    cron.RedisLockFactory(redisClient, cfg.App.Env, cron.WithLockHolder(instance.GetID(serviceKind))),
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		return fmt.Errorf("create cron service: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logg.Info(gctx, "starting cron worker")
		return service.Run(gctx)
	})
	if addr := cfg.Service.MetricsAddr; addr != "" {
		g.Go(func() error { return serveMetrics(gctx, logg, addr) })
	}
	return g.Wait()
}

// serveMetrics exposes the default registry until ctx ends.
func serveMetrics(ctx context.Context, logg *logger.Logger, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logg.Info(logg.WithField(ctx, "addr", addr), "metrics listener started")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics listener: %w", err)
	}
	return nil
}

func closeWithLog(ctx context.Context, logg *logger.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(context.WithoutCancel(ctx), "error closing "+name, err)
	}
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (*cron.Registry, error) {
	activityService, err := activity.NewService(activity.NewRepository(dbClient.DB()))
	if err != nil {
		return nil, err
	}
	outboxRepo := outbox.NewRepository(dbClient.DB())

	payoutService, err := payouts.NewService(payouts.ServiceParams{
		Repo:     payouts.NewRepository(dbClient.DB()),
		Tx:       dbClient,
		Activity: activityService,
		Outbox:   outbox.NewService(outboxRepo, logg),
		Metrics:  metrics.NewPayoutMetrics(prometheus.DefaultRegisterer),
		Logger:   logg,
	})
	if err != nil {
		return nil, err
	}

	payoutJob, err := cron.NewPayoutBatchJob(cron.PayoutBatchJobParams{
		Logger:        logg,
		Payouts:       payoutService,
		PeriodDays:    cfg.Payouts.PeriodDays,
		PaymentMethod: cfg.Payouts.DefaultMethod,
	})
	if err != nil {
		return nil, err
	}
	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:            logg,
		DB:                dbClient,
		Repository:        outboxRepo,
		RetentionDays:     cfg.Outbox.RetentionDays,
		ExhaustedAttempts: cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		return nil, err
	}

	registry := cron.NewRegistry()
	for _, entry := range []cron.Entry{
		{Job: payoutJob, Interval: cfg.Payouts.BatchInterval},
		{Job: retentionJob},
	} {
		if err := registry.Register(entry.Job, entry.Interval); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
