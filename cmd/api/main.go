package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/rubric-review-api/internal/config"
	"github.com/noah-isme/rubric-review-api/internal/database"
	"github.com/noah-isme/rubric-review-api/internal/handler"
	"github.com/noah-isme/rubric-review-api/internal/middleware"
	"github.com/noah-isme/rubric-review-api/internal/repository"
	"github.com/noah-isme/rubric-review-api/internal/router"
	"github.com/noah-isme/rubric-review-api/internal/service"
	"github.com/noah-isme/rubric-review-api/pkg/ai"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "rubric-review-api").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	if cfg.AppEnv == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, users, closeStore, err := openStores(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.StorageDriver).Msg("failed to open storage")
	}
	defer closeStore()

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(rootCtx, cfg.RedisURL, 3*time.Second)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, dashboard cache disabled")
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	llm, err := ai.NewClient(ai.ProviderConfig{
		Provider:        cfg.AIProvider,
		Model:           cfg.AIModel,
		MaxTokens:       cfg.AIMaxTokens,
		AnthropicAPIKey: cfg.AnthropicAPIKey,
		OpenAIAPIKey:    cfg.OpenAIAPIKey,
		Logger:          logger,
	})
	switch {
	case errors.Is(err, ai.ErrNotConfigured):
		logger.Warn().Str("provider", cfg.AIProvider).Msg("llm api key missing, rubric generation returns samples and grading is disabled")
		llm = nil
	case err != nil:
		logger.Fatal().Err(err).Msg("failed to create llm client")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	gradingCfg := service.GradingConfig{
		Temperature: cfg.AITemperature,
		MaxTokens:   cfg.AIMaxTokens,
		BatchSize:   cfg.GradingBatchSize,
		BatchDelay:  cfg.GradingBatchDelay,
	}

	dashboardService := service.NewDashboardService(store, redisClient, cfg.DashboardCacheTTL, logger)
	store = service.InvalidateOnWrite(store, dashboardService)

	gradingService := service.NewGradingService(store, llm, gradingCfg, logger)
	trigger, triggerName, closeTrigger := buildTrigger(rootCtx, cfg, llm, gradingService, logger)
	defer closeTrigger()

	rubricService := service.NewRubricService(llm, users, validate, gradingCfg, logger)
	submissionService := service.NewSubmissionService(store, users, trigger, validate, logger)
	reviewService := service.NewReviewService(store, logger)
	exportService := service.NewExportService(store, users, logger)

	debugInfo := handler.DebugInfo{Provider: cfg.AIProvider, LLMConfigured: llm != nil, Trigger: triggerName}
	if llm != nil {
		debugInfo.Provider = llm.Provider()
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    2 * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{
		Logger:       &logger,
		AllowOrigins: cfg.CORSAllowOrigins,
		AccessLog:    cfg.AppEnv != "production",
	})
	router.Register(app, cfg, router.Dependencies{
		RubricHandler:     handler.NewRubricHandler(rubricService, logger),
		SubmissionHandler: handler.NewSubmissionHandler(submissionService, logger),
		AdminHandler: handler.NewAdminHandler(handler.AdminServices{
			Reviews:   reviewService,
			Grading:   gradingService,
			Dashboard: dashboardService,
			Export:    exportService,
		}, logger),
		DebugHandler: handler.DebugHandler(cfg, reviewService, debugInfo, logger),
	})

	go func() {
		logger.Info().
			Str("addr", cfg.HTTPAddress()).
			Str("storage", store.Backend()).
			Str("trigger", triggerName).
			Msg("server starting")
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(rootCtx, app, logger)
}

// openStores selects the storage backend named by cfg.StorageDriver.
func openStores(cfg config.Config, logger zerolog.Logger) (repository.SubmissionStore, repository.UserStore, func(), error) {
	switch cfg.StorageDriver {
	case config.StorageJSONFile:
		store, err := repository.NewJSONStore(cfg.JSONStorePath)
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Info().Str("path", cfg.JSONStorePath).Msg("using json file storage")
		return store, store.Users(), func() {}, nil
	case config.StoragePostgres, config.StorageSQLite:
		connect := func() (*gorm.DB, error) { return database.ConnectPostgres(cfg.DatabaseURL) }
		if cfg.StorageDriver == config.StorageSQLite {
			connect = func() (*gorm.DB, error) { return database.ConnectSQLite(cfg.SQLitePath) }
		}
		db, err := connect()
		if err != nil {
			return nil, nil, nil, err
		}
		if err := database.Migrate(db); err != nil {
			return nil, nil, nil, err
		}
		closeDB := func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		return repository.NewSubmissionRepository(db), repository.NewUserRepository(db), closeDB, nil
	default:
		return nil, nil, nil, errors.New("unsupported storage driver: " + cfg.StorageDriver)
	}
}

// buildTrigger returns the background grading trigger. With NATS configured,
// submissions are published and graded by a queue worker in this process.
func buildTrigger(ctx context.Context, cfg config.Config, llm ai.Client, grading service.GradingService, logger zerolog.Logger) (service.GradingTrigger, string, func()) {
	if llm == nil {
		return nil, "disabled", func() {}
	}
	if cfg.NATSURL == "" {
		return service.NewAsyncGradingTrigger(grading, cfg.GradingTimeout, logger), "goroutine", func() {}
	}

	conn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("nats unavailable, grading in-process")
		return service.NewAsyncGradingTrigger(grading, cfg.GradingTimeout, logger), "goroutine", func() {}
	}

	worker := service.NewGradingWorker(conn, cfg.NATSSubject, cfg.NATSQueue, grading, cfg.GradingTimeout, logger)
	if err := worker.Start(ctx); err != nil {
		logger.Warn().Err(err).Msg("failed to subscribe grading worker, grading in-process")
		conn.Close()
		return service.NewAsyncGradingTrigger(grading, cfg.GradingTimeout, logger), "goroutine", func() {}
	}

	return service.NewNATSGradingTrigger(conn, cfg.NATSSubject, logger), "nats", func() { drainNATS(conn, logger) }
}

func drainNATS(conn *nats.Conn, logger zerolog.Logger) {
	if err := conn.Drain(); err != nil {
		logger.Warn().Err(err).Msg("nats drain failed")
	}
}

func waitForShutdown(ctx context.Context, app *fiber.App, logger zerolog.Logger) {
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
