package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/vendkiosk/kiosk-backend/api/routes"
	"github.com/vendkiosk/kiosk-backend/internal/catalog"
	"github.com/vendkiosk/kiosk-backend/internal/gateway"
	"github.com/vendkiosk/kiosk-backend/internal/kioskconfig"
	"github.com/vendkiosk/kiosk-backend/internal/kiosks"
	"github.com/vendkiosk/kiosk-backend/internal/qrauth"
	"github.com/vendkiosk/kiosk-backend/internal/remotevend"
	"github.com/vendkiosk/kiosk-backend/internal/sms"
	"github.com/vendkiosk/kiosk-backend/internal/stores"
	"github.com/vendkiosk/kiosk-backend/pkg/config"
	"github.com/vendkiosk/kiosk-backend/pkg/db"
	"github.com/vendkiosk/kiosk-backend/pkg/logger"
	"github.com/vendkiosk/kiosk-backend/pkg/metrics"
	"github.com/vendkiosk/kiosk-backend/pkg/migrate"
	"github.com/vendkiosk/kiosk-backend/pkg/redis"
	"github.com/vendkiosk/kiosk-backend/pkg/storage/gcs"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Console:     logger.IsConsoleFormat(cfg.App.LogFormat),
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	var redisClient *redis.Client
	if cfg.Redis.Configured() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, redisClient.Close()) }()
	} else {
		logg.Warn(ctx, "redis not configured; rate limits disabled")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	kioskMetrics := metrics.NewKioskMetrics(reg)

	svcs, closeServices, err := buildServices(ctx, cfg, logg, dbClient, redisClient, kioskMetrics)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, closeServices()) }()

	addr := ":" + cfg.App.Port
	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, dbClient, redisClient, svcs, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logCtx := logg.WithFields(ctx, map[string]any{
		"env":     cfg.App.Env,
		"addr":    addr,
		"mailbox": cfg.Kiosk.MailboxBackend,
	})
	logg.Info(logCtx, "starting api server")

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func buildServices(
	ctx context.Context,
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	kioskMetrics *metrics.KioskMetrics,
) (routes.Services, func() error, error) {
	noop := func() error { return nil }

	kioskRepo := kiosks.NewRepository(dbClient.DB())
	catalogRepo := catalog.NewRepository(dbClient.DB())

	kiosksSvc, err := kiosks.NewService(kiosks.ServiceParams{
		Tx:           dbClient,
		Repo:         kioskRepo,
		Allocator:    kiosks.NewPairCodeAllocator(),
		Logger:       logg,
		Metrics:      kioskMetrics,
		GridRows:     cfg.Kiosk.SlotRows,
		GridCols:     cfg.Kiosk.SlotCols,
		DefaultImage: cfg.Kiosk.DefaultImage,
	})
	if err != nil {
		return routes.Services{}, noop, err
	}

	catalogParams := catalog.ServiceParams{
		Tx:      dbClient,
		Repo:    catalogRepo,
		Kiosks:  kioskRepo,
		Logger:  logg,
		Metrics: kioskMetrics,
	}
	closer := noop
	if cfg.GCS.BucketName != "" {
		gcsClient, err := gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg)
		if err != nil {
			return routes.Services{}, noop, err
		}
		catalogParams.Uploader = gcsClient
		closer = gcsClient.Close
	} else {
		logg.Warn(ctx, "gcs bucket not configured; screensaver uploads disabled")
	}
	catalogSvc, err := catalog.NewService(catalogParams)
	if err != nil {
		return routes.Services{}, closer, err
	}

	var mailbox remotevend.Mailbox
	switch {
	case cfg.Kiosk.UseMemoryMailbox():
		mailbox = remotevend.NewMemoryMailbox(cfg.Kiosk.RemoteVendTTL, time.Now)
	case redisClient != nil:
		mailbox = remotevend.NewRedisMailbox(redisClient, cfg.Kiosk.RemoteVendTTL)
	default:
		return routes.Services{}, closer, errors.New("redis mailbox backend requires redis configuration")
	}

	gatewaySvc, err := gateway.NewService(gateway.ServiceParams{
		Tx:      dbClient,
		Kiosks:  kioskRepo,
		Catalog: catalogRepo,
		Config:  kioskconfig.NewLoader(catalogRepo),
		Mailbox: mailbox,
		Logger:  logg,
		Metrics: kioskMetrics,
	})
	if err != nil {
		return routes.Services{}, closer, err
	}

	sender, err := sms.NewFromConfig(cfg.SMS, logg)
	if err != nil {
		return routes.Services{}, closer, err
	}
	qrParams := qrauth.ServiceParams{
		Repo:     qrauth.NewRepository(dbClient.DB()),
		Kiosks:   kioskRepo,
		Sender:   sender,
		Config:   cfg.QrAuth,
		Password: cfg.Password,
		Logger:   logg,
	}
	if redisClient != nil {
		qrParams.Limiter = redisClient
	}
	qrSvc, err := qrauth.NewService(qrParams)
	if err != nil {
		return routes.Services{}, closer, err
	}

	storesSvc, err := stores.NewService(stores.NewRepository(dbClient.DB()))
	if err != nil {
		return routes.Services{}, closer, err
	}

	return routes.Services{
		Gateway: gatewaySvc,
		QrAuth:  qrSvc,
		Kiosks:  kiosksSvc,
		Catalog: catalogSvc,
		Stores:  storesSvc,
	}, closer, nil
}
