package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hugh/go-marks/internal/api"
	"github.com/hugh/go-marks/internal/api/handlers"
	"github.com/hugh/go-marks/internal/api/middleware"
	"github.com/hugh/go-marks/internal/auth"
	"github.com/hugh/go-marks/internal/database"
	"github.com/hugh/go-marks/internal/storage"
	"github.com/hugh/go-marks/internal/tasks"
	"github.com/hugh/go-marks/pkg/config"
	"github.com/hugh/go-marks/pkg/crypto"
	"github.com/hugh/go-marks/pkg/queue"
	"github.com/hugh/go-marks/pkg/util"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

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

	logger.Info("starting go-marks server",
		"env", cfg.Server.Env,
		"addr", cfg.Server.Addr(),
	)

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	// Production schemas come from marksctl migrate; development syncs models directly.
	if cfg.Server.IsDevelopment() {
		if err := database.AutoMigrate(db); err != nil {
			logger.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Warn("failed to connect to Redis, metadata refresh disabled", "error", err)
		redisClient.Close()
		redisClient = nil
	}

	// A typed nil would defeat the handler's nil check, so the interface stays unset.
	var (
		asynqClient *asynq.Client
		metaQueue   handlers.MetadataQueue
	)
	if redisClient != nil {
		asynqClient = queue.NewClient(&cfg.Redis)
		metaQueue = tasks.NewEnqueuer(asynqClient)
	}

	blobs, err := storage.New(context.Background(), &cfg.Storage)
	switch {
	case errors.Is(err, storage.ErrDisabled):
		logger.Warn("STORAGE_DRIVER not set, media uploads disabled")
		blobs = nil
	case err != nil:
		logger.Error("failed to initialize blob storage", "error", err)
		os.Exit(1)
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry())
	authService := auth.NewService(db, jwtService)

	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		logger.Error("failed to create encryptor", "error", err)
		os.Exit(1)
	}
	if cfg.Encryption.Key == "" {
		logger.Warn("ENCRYPTION_KEY not set, using generated key - reminder targets will be unreadable after restart")
	}

	csrfStore := middleware.NewCSRFStore()
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case now := <-ticker.C:
				csrfStore.Sweep(now)
			}
		}
	}()

	router := api.NewRouter(api.RouterConfig{
		DB:             db,
		Redis:          redisClient,
		Logger:         logger,
		JWTService:     jwtService,
		AuthService:    authService,
		Encryptor:      encryptor,
		Queue:          metaQueue,
		Blobs:          blobs,
		MaxUploadBytes: cfg.Storage.MaxUploadBytes(),
		CSRFStore:      csrfStore,
		SecureCookies:  !cfg.Server.IsDevelopment(),
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		RateLimitReqs:  cfg.RateLimit.Requests,
		RateLimitSecs:  cfg.RateLimit.WindowSeconds,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	stopSweep()

	if blobs != nil {
		if err := blobs.Close(); err != nil {
			logger.Warn("closing blob storage", "error", err)
		}
	}
	if asynqClient != nil {
		asynqClient.Close()
	}
	if redisClient != nil {
		redisClient.Close()
	}

	sqlDB, _ := db.DB()
	sqlDB.Close()

	logger.Info("server stopped")
}
