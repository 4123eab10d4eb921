package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"salonbook/internal/bot"
	"salonbook/internal/config"
	"salonbook/internal/database"
	"salonbook/internal/domain"
	"salonbook/internal/events"
	"salonbook/internal/google"
	"salonbook/internal/intent"
	"salonbook/internal/logging"
	"salonbook/internal/repository"
	"salonbook/internal/schedule"
	"salonbook/internal/service"
	"salonbook/internal/tracing"
	"salonbook/internal/worker"

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
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	if cfg.Telegram.BotToken == "" || cfg.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE" {
		logger.Error().Msg("set telegram.bot_token or TELEGRAM_BOT_TOKEN")
		return os.ErrInvalid
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing, cfg.App.Name+"-bot")
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Msg("init database")
		return err
	}
	defer db.Close()

	rules, err := schedule.NewRules(cfg.Scheduling)
	if err != nil {
		return err
	}
	if err := service.NewCalendarService(db, &logger).Seed(ctx, cfg.Hours, cfg.Blackouts, false); err != nil {
		logger.Error().Err(err).Msg("seed calendar")
		return err
	}

	redisClient, sessions := initSessions(ctx, cfg, &logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}

	extractor, closeExtractor, err := intent.New(ctx, cfg.Intent, rules.Location, &logger)
	if err != nil {
		logger.Error().Err(err).Msg("init intent extractor")
		return err
	}
	defer func() { _ = closeExtractor() }()

	var syncWorker domain.SyncWorker
	if cfg.Google.SheetsEnabled() {
		sheetsService, err := google.NewSheetsService(ctx, cfg.Google.GoogleCredentialsFile, cfg.Google.AppointmentsSpreadSheetID)
		if err != nil {
			logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		} else {
			sheetsWorker := worker.NewSheetsWorker(db, sheetsService, redisClient, worker.DefaultRetryPolicy(), &logger)
			go sheetsWorker.Start(ctx)
			syncWorker = sheetsWorker
		}
	}

	bookingService := service.NewBookingService(db, schedule.NewCalendar(db, rules), events.NewEventBus(), syncWorker, &logger)
	chatService := service.NewChatService(bookingService, extractor, sessions, cfg.Chat, &logger)

	if cfg.Backup.Enabled {
		go database.NewBackupService(db, cfg.Database.Path, cfg.Backup, &logger).Start(ctx)
	}

	return startBot(ctx, cfg, chatService, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}
	return cfg, baseLogger.With().Str("component", "bot-main").Logger(), closer, nil
}

func initSessions(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*redis.Client, domain.SessionRepository) {
	ttl := time.Duration(cfg.Chat.SessionTTL) * time.Second
	memoryRepo := repository.NewMemorySessionRepository(ttl)
	if cfg.Redis.Address == "" {
		return nil, memoryRepo
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("Redis unavailable")
	}
	primary := repository.NewRedisSessionRepository(redisClient, ttl)
	return redisClient, repository.NewFailoverSessionRepository(primary, memoryRepo, logger)
}

func startBot(ctx context.Context, cfg *config.Config, chat domain.ChatService, logger *zerolog.Logger) error {
	botAPI, err := bot.NewBotAPI(cfg.Telegram.BotToken, cfg.Telegram.Debug)
	if err != nil {
		logger.Error().Err(err).Msg("create Telegram client")
		return err
	}

	telegramBot := bot.NewBot(service.NewTelegramService(botAPI), chat, logger)
	defer telegramBot.Stop()

	logger.Info().Msg("Bot started")
	telegramBot.Start(ctx)

	logger.Info().Msg("Shutdown complete.")
	return nil
}
