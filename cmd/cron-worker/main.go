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
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/vendkiosk/kiosk-backend/internal/cron"
	"github.com/vendkiosk/kiosk-backend/internal/kiosks"
	"github.com/vendkiosk/kiosk-backend/pkg/config"
	"github.com/vendkiosk/kiosk-backend/pkg/db"
	"github.com/vendkiosk/kiosk-backend/pkg/logger"
	"github.com/vendkiosk/kiosk-backend/pkg/metrics"
	"github.com/vendkiosk/kiosk-backend/pkg/migrate"
	"github.com/vendkiosk/kiosk-backend/pkg/redis"
)

const serviceName = "cron-worker"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceName

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Console:     logger.IsConsoleFormat(cfg.App.LogFormat),
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "cron worker stopped", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "serviceKind": cfg.Service.Kind})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	// The lock is what keeps a second replica idle, so redis is mandatory here.
	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	reg := prometheus.NewRegistry()
	service, err := buildService(cfg, logg, dbClient, redisClient, reg)
	if err != nil {
		return err
	}

	metricsServer := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logg.Info(gctx, "cron.started")
		err := service.Run(gctx)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	err = g.Wait()
	logg.Info(ctx, "cron worker shutting down")
	return err
}

func buildService(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, reg prometheus.Registerer) (*cron.Service, error) {
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(serviceName), 0)
	if err != nil {
		return nil, fmt.Errorf("cron lock: %w", err)
	}

	liveness, err := cron.NewLivenessJob(cron.LivenessJobParams{
		Logger:       logg,
		Kiosks:       kiosks.NewRepository(dbClient.DB()),
		Metrics:      metrics.NewKioskMetrics(reg),
		OfflineAfter: cfg.Kiosk.OfflineAfter,
	})
	if err != nil {
		return nil, fmt.Errorf("liveness job: %w", err)
	}

	registry, err := cron.NewRegistry(liveness)
	if err != nil {
		return nil, fmt.Errorf("cron registry: %w", err)
	}
	return cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(reg),
		Interval: cfg.Cron.Interval,
	})
}
