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

	"salonbook/internal/api"
	"salonbook/internal/config"
	"salonbook/internal/database"
	"salonbook/internal/domain"
	"salonbook/internal/events"
	"salonbook/internal/google"
	"salonbook/internal/intent"
	"salonbook/internal/logging"
	"salonbook/internal/metrics"
	"salonbook/internal/repository"
	"salonbook/internal/schedule"
	"salonbook/internal/service"
	"salonbook/internal/tracing"
	"salonbook/internal/worker"

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

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing, cfg.App.Name+"-api")
	if err != nil {
		logger.Error().Err(err).Msg("init tracing")
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	rules, err := schedule.NewRules(cfg.Scheduling)
	if err != nil {
		return fmt.Errorf("scheduling rules: %w", err)
	}
	calendarService := service.NewCalendarService(db, &logger)
	if err := calendarService.Seed(ctx, cfg.Hours, cfg.Blackouts, false); err != nil {
		logger.Error().Err(err).Msg("seed calendar")
		return err
	}

	redisClient, sessions := initSessions(ctx, cfg, &logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}

	extractor, closeExtractor, err := intent.New(ctx, cfg.Intent, rules.Location, &logger)
	if err != nil {
		logger.Error().Err(err).Str("provider", cfg.Intent.Provider).Msg("init intent extractor")
		return err
	}
	defer func() { _ = closeExtractor() }()

	eventBus := events.NewEventBus()
	subscribeAuditLog(eventBus, &logger)

	syncWorker := initSheetsSync(ctx, cfg, db, redisClient, &logger)

	bookingService := service.NewBookingService(db, schedule.NewCalendar(db, rules), eventBus, syncWorker, &logger)
	chatService := service.NewChatService(bookingService, extractor, sessions, cfg.Chat, &logger)

	if cfg.Backup.Enabled {
		backupService := database.NewBackupService(db, cfg.Database.Path, cfg.Backup, &logger)
		go backupService.Start(ctx)
	}

	startMetrics(ctx, cfg, &logger)

	httpServer := api.NewHTTPServer(cfg.API, api.Services{
		Booking:  bookingService,
		Calendar: calendarService,
		Chat:     chatService,
		Ready:    db.PingContext,
		Capacity: rules.Capacity,
	}, &logger)

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(cfg.API, &logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
		go grpcServer.WatchReadiness(ctx, db.PingContext, 10*time.Second)
	}

	return startServers(ctx, grpcServer, httpServer, cfg, &logger)
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

// initSessions prefers Redis for chat drafts and rate limits and falls back
// to process memory when Redis is missing or goes down.
func initSessions(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*redis.Client, domain.SessionRepository) {
	ttl := time.Duration(cfg.Chat.SessionTTL) * time.Second
	memoryRepo := repository.NewMemorySessionRepository(ttl)

	if cfg.Redis.Address == "" {
		logger.Info().Msg("redis not configured, chat sessions kept in memory")
		return nil, memoryRepo
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, starting on memory sessions")
	} else {
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	}

	redisRepo := repository.NewRedisSessionRepository(redisClient, ttl)
	return redisClient, repository.NewFailoverSessionRepository(redisRepo, memoryRepo, logger)
}

func initSheetsSync(ctx context.Context, cfg *config.Config, db *database.DB, redisClient *redis.Client, logger *zerolog.Logger) domain.SyncWorker {
	if !cfg.Google.SheetsEnabled() {
		return nil
	}

	sheetsService, err := google.NewSheetsService(ctx, cfg.Google.GoogleCredentialsFile, cfg.Google.AppointmentsSpreadSheetID)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}
	if err := sheetsService.WarmUpCache(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets cache warm-up failed")
	}

	sheetsWorker := worker.NewSheetsWorker(db, sheetsService, redisClient, worker.DefaultRetryPolicy(), logger)
	go sheetsWorker.Start(ctx)

	logger.Info().Msg("google sheets sync started")
	return sheetsWorker
}

// subscribeAuditLog writes every booking decision that changes or refuses
// state to the structured log.
func subscribeAuditLog(bus *events.EventBus, logger *zerolog.Logger) {
	audit := logger.With().Str("component", "audit").Logger()

	bus.Subscribe(events.EventAppointmentBooked, func(ev *events.Event) error {
		var p events.AppointmentEventPayload
		if err := ev.Decode(&p); err != nil {
			return err
		}
		audit.Info().Str("appointment_id", p.AppointmentID).Str("date", p.Date).Str("time", p.Time).
			Str("service", p.Service).Msg("appointment booked")
		return nil
	})
	bus.Subscribe(events.EventAppointmentCancelled, func(ev *events.Event) error {
		var p events.AppointmentEventPayload
		if err := ev.Decode(&p); err != nil {
			return err
		}
		audit.Info().Str("appointment_id", p.AppointmentID).Str("date", p.Date).Str("time", p.Time).
			Msg("appointment cancelled")
		return nil
	})
	bus.Subscribe(events.EventBookingRejected, func(ev *events.Event) error {
		var p events.RejectionEventPayload
		if err := ev.Decode(&p); err != nil {
			return err
		}
		audit.Info().Str("outcome", p.Outcome).Str("date", p.Date).Str("time", p.Time).
			Strs("suggestions", p.Suggestions).Msg("booking rejected")
		return nil
	})
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	if grpcServer != nil {
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Bool("grpc", grpcServer != nil).Msg("API server started")

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case runErr = <-errCh:
		logger.Error().Err(runErr).Msg("http server stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return runErr
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
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
