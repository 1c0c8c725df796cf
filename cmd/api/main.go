package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"namelis/internal/api"
	"namelis/internal/availability"
	"namelis/internal/catalog"
	"namelis/internal/config"
	"namelis/internal/database"
	"namelis/internal/domain"
	"namelis/internal/events"
	"namelis/internal/logging"
	"namelis/internal/metrics"
	"namelis/internal/notify"
	"namelis/internal/repository"
	"namelis/internal/service"
	"namelis/internal/webhook"
	"namelis/internal/widget"

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

	cat, err := loadCabins(cfg, &logger)
	if err != nil {
		return err
	}

	if err := prepareDirectories(cfg); err != nil {
		return err
	}

	db, err := initDatabase(cfg, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	loc, err := time.LoadLocation(cfg.Widget.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", cfg.Widget.Timezone, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessions, redisClient := initSessionStore(cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	if cfg.Backup.Enabled {
		backupService := database.NewBackupService(cfg.Database.Path, cfg.Backup, &logger)
		go backupService.Start(ctx)
	}

	bus := events.NewEventBus()
	initTelegram(cfg, bus, &logger)

	notifier := webhook.NewNotifier(cfg.Webhook, &logger)
	provider := availability.NewProvider(cat, db, loc, &logger)
	bookings := service.NewBookingService(db, bus, loc, cfg.Widget.MaxBookingDays, &logger)
	engine := widget.NewEngine(sessions, provider, bookings, notifier, cat, cfg.Widget, loc, &logger)

	httpServer := api.NewServer(cfg, engine, bookings, provider, cat, sessions, db, &logger)

	startMetrics(ctx, cfg, &logger)

	return startServer(ctx, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

func loadCabins(cfg *config.Config, logger *zerolog.Logger) (*catalog.Catalog, error) {
	cabinsPath := os.Getenv("CABINS_PATH")
	if cabinsPath == "" {
		cabinsPath = "configs/cabins.yaml"
	}

	cabins, err := catalog.LoadFile(cabinsPath)
	if err != nil {
		logger.Error().Err(err).Str("cabins_path", cabinsPath).Msg("read cabins")
		return nil, err
	}

	cat, err := catalog.New(cabins, cfg.Availability)
	if err != nil {
		logger.Error().Err(err).Str("cabins_path", cabinsPath).Msg("validate cabins")
		return nil, err
	}

	logger.Info().Int("cabins", cat.Len()).Msg("cabin catalog loaded")
	return cat, nil
}

func prepareDirectories(cfg *config.Config) error {
	if dir := filepath.Dir(cfg.Database.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create database dir: %w", err)
		}
	}
	return nil
}

func initDatabase(cfg *config.Config, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}
	return db, nil
}

// initSessionStore picks where widget sessions live. Without redis they
// stay in memory; with redis the failover wrapper keeps serving from
// memory whenever redis is unreachable and probes it back afterwards.
func initSessionStore(cfg *config.Config, logger *zerolog.Logger) (domain.SessionRepository, *redis.Client) {
	ttl := time.Duration(cfg.Redis.SessionTTL) * time.Second
	memory := repository.NewMemorySessionRepository(ttl)

	if cfg.Redis.Address == "" {
		logger.Info().Msg("redis not configured, sessions held in memory")
		return memory, nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	if _, err := client.Ping(context.Background()).Result(); err != nil {
		logger.Warn().Err(err).Msg("redis ping failed, sessions fall back to memory until it recovers")
	} else {
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	}

	primary := repository.NewRedisSessionRepository(client, ttl)
	return repository.NewFailoverSessionRepository(primary, memory, logger), client
}

func initTelegram(cfg *config.Config, bus *events.EventBus, logger *zerolog.Logger) {
	notifier, err := notify.NewTelegramNotifier(cfg.Telegram, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, continuing without manager notifications")
		return
	}
	if notifier == nil {
		return
	}

	notifier.Subscribe(bus)
	logger.Info().Msg("telegram manager notifications enabled")
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

func startServer(ctx context.Context, httpServer *api.Server, cfg *config.Config, logger *zerolog.Logger) error {
	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Int("http_port", cfg.HTTP.Port).Msg("booking API started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown")
	}

	logger.Info().Msg("booking API stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
