package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/hugh/go-marks/internal/database"
	"github.com/hugh/go-marks/internal/metadata"
	"github.com/hugh/go-marks/internal/tasks"
	"github.com/hugh/go-marks/pkg/config"
	"github.com/hugh/go-marks/pkg/queue"
	"github.com/hugh/go-marks/pkg/util"
	"github.com/joho/godotenv"
)

// reminderTickSpec is how often due reminders are fired.
const reminderTickSpec = "@every 1m"

func main() {
	// Load .env file
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := util.NewLogger(cfg.Server.Env)
	slog.SetDefault(logger)

	logger.Info("starting go-marks worker")

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	fetcher := metadata.NewFetcher(logger, &metadata.FetcherConfig{
		Timeout:   cfg.Metadata.Timeout(),
		UserAgent: cfg.Metadata.UserAgent,
	})

	srv := queue.NewServer(&cfg.Redis, 10)
	mux := asynq.NewServeMux()
	tasks.NewHandler(db, logger, fetcher).RegisterHandlers(mux)

	scheduler := queue.NewScheduler(&cfg.Redis)
	entryID, err := scheduler.Register(reminderTickSpec, tasks.NewReminderTickTask())
	if err != nil {
		logger.Error("failed to register reminder tick", "error", err)
		os.Exit(1)
	}
	logger.Info("reminder tick registered", "entry_id", entryID, "spec", reminderTickSpec)

	if err := srv.Start(mux); err != nil {
		logger.Error("worker error", "error", err)
		os.Exit(1)
	}
	if err := scheduler.Start(); err != nil {
		logger.Error("scheduler error", "error", err)
		srv.Shutdown()
		os.Exit(1)
	}

	logger.Info("worker started, waiting for tasks...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down worker...")
	scheduler.Shutdown()
	srv.Shutdown()

	sqlDB, _ := db.DB()
	sqlDB.Close()

	logger.Info("worker stopped")
}
