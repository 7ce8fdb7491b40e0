package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"carrental/internal/api"
	"carrental/internal/config"
	"carrental/internal/database"
	"carrental/internal/domain"
	"carrental/internal/events"
	"carrental/internal/logging"
	"carrental/internal/metrics"
	"carrental/internal/repository"
	"carrental/internal/service"
	"carrental/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := initDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient := initRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	bus := events.NewEventBus()
	bus.Subscribe(events.EventBookingCreated, logEvent(logger))
	bus.Subscribe(events.EventBookingExtended, logEvent(logger))
	bus.Subscribe(events.EventBookingCancelled, logEvent(logger))
	bus.Subscribe(events.EventBookingClosed, logEvent(logger))

	outbox := initOutboxWorker(cfg, db, bus, redisClient, logger)

	opts := []service.Option{
		service.WithExtensionPolicy(service.ExtensionPolicy{AdminBypassesConflicts: *cfg.Booking.AdminBypassExtensionConflicts}),
		service.WithCreateOverlapScan(*cfg.Booking.ScanOverlapsOnCreate),
		service.WithMaxBookingDays(cfg.Booking.MaxBookingDays),
	}
	if outbox != nil {
		opts = append(opts, service.WithAfterCommit(outbox.Notify))
	}
	bookingService := service.NewBookingService(db, db,
		initCarLocker(cfg, redisClient, logger),
		logging.Component(logger, "booking-service"),
		opts...)

	if !cfg.API.Enabled {
		logger.Warn().Msg("API is disabled in config, but starting API application. Check your config.")
	}
	httpServer := api.NewHTTPServer(cfg.API, bookingService, logging.Component(logger, "http"))

	startMetrics(ctx, cfg, logger)
	startBackground(ctx, cfg, db, outbox, logger)

	return startServer(ctx, httpServer, cfg, logger)
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}

	return cfg, logging.Component(baseLogger, "api-main"), closer, nil
}

func initDatabase(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*database.DB, error) {
	retry := worker.TransactionRetryPolicy(cfg.Booking.TxMaxRetries, cfg.Booking.TxRetryDelay)
	db, err := database.NewDB(cfg.Database.Path, logging.Component(logger, "database"),
		database.WithRetry(retry.MaxRetries, retry))
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}

	fleetPath := os.Getenv("FLEET_PATH")
	if fleetPath == "" {
		fleetPath = "configs/fleet.yaml"
	}
	fleet, err := loadFleet(fleetPath)
	if errors.Is(err, os.ErrNotExist) {
		logger.Warn().Str("fleet_path", fleetPath).Msg("fleet file not found, starting with the stored catalog")
		return db, nil
	}
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := fleet.seed(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info().Int("cars", len(fleet.Cars)).Int("customers", len(fleet.Customers)).Msg("fleet seeded")
	return db, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func initCarLocker(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) domain.CarLocker {
	memory := repository.NewMemoryCarLocker()
	if redisClient == nil {
		return memory
	}
	primary := repository.NewRedisCarLocker(redisClient, cfg.Booking.LockTTL, logging.Component(logger, "car-lock"))
	return repository.NewFailoverCarLocker(primary, memory, logging.Component(logger, "car-lock"))
}

func initOutboxWorker(cfg *config.Config, db *database.DB, bus *events.EventBus, redisClient *redis.Client, logger *zerolog.Logger) *worker.OutboxWorker {
	if !cfg.Outbox.Enabled {
		return nil
	}
	retry := worker.RetryPolicy{
		MaxRetries:   cfg.Outbox.MaxRetries,
		InitialDelay: cfg.Outbox.InitialDelay,
		MaxDelay:     cfg.Outbox.MaxDelay,
	}
	opts := []worker.OutboxOption{worker.WithPolling(cfg.Outbox.PollInterval, cfg.Outbox.BatchSize)}
	if redisClient != nil {
		opts = append(opts, worker.WithRedisMirror(redisClient, cfg.Outbox.RedisQueueKey))
	}
	return worker.NewOutboxWorker(db, bus, retry, logging.Component(logger, "outbox"), opts...)
}

func logEvent(logger *zerolog.Logger) events.EventHandler {
	l := logging.Component(logger, "events")
	return func(e *events.Event) error {
		l.Info().Str("event_type", e.Type).RawJSON("payload", e.Payload).Msg("booking event")
		return nil
	}
}

func startBackground(ctx context.Context, cfg *config.Config, db *database.DB, outbox *worker.OutboxWorker, logger *zerolog.Logger) {
	if outbox != nil {
		go outbox.Start(ctx)
	}
	if cfg.Backup.Enabled {
		backup := database.NewBackupService(db, cfg.Backup, logging.Component(logger, "backup"))
		go backup.Start(ctx)
	}
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startServer(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
