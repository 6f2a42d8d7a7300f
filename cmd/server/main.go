package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/iudofia2026/youtubedubber.com-sub004/internal/client"
	"github.com/iudofia2026/youtubedubber.com-sub004/internal/config"
	"github.com/iudofia2026/youtubedubber.com-sub004/internal/handler"
	"github.com/iudofia2026/youtubedubber.com-sub004/internal/ledger"
	"github.com/iudofia2026/youtubedubber.com-sub004/internal/middleware"
	"github.com/iudofia2026/youtubedubber.com-sub004/internal/service"
	"github.com/iudofia2026/youtubedubber.com-sub004/internal/store"
	ws "github.com/iudofia2026/youtubedubber.com-sub004/internal/websocket"
	"github.com/iudofia2026/youtubedubber.com-sub004/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zlog.Sync()

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		zlog.Warn("Redis not available", zap.Error(err))
	}

	// Initialize Asynq client
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub(zlog)
	go hub.Run()

	// Initialize storage
	var storage client.StorageClient
	r2Client, err := client.NewR2Client(&cfg.R2)
	if err != nil {
		zlog.Warn("R2 storage not configured, presigned uploads will use mock URLs", zap.Error(err))
	} else {
		storage = r2Client
	}

	// Initialize provider clients
	deepgramClient := client.NewDeepgramClient(&cfg.Deepgram)
	openaiClient := client.NewOpenAIClient(&cfg.OpenAI)
	elevenlabsClient := client.NewElevenLabsClient(&cfg.ElevenLabs, storage)
	audioClient := client.NewAudioClient(&cfg.Audio)

	// Initialize persistence
	retention := time.Duration(cfg.Worker.RetentionDays) * 24 * time.Hour
	jobStore := store.NewRedisStore(redisClient, zlog, retention)
	creditLedger := ledger.NewRedisLedger(redisClient, zlog)

	// Initialize services
	jobService := service.NewJobService(jobStore, creditLedger, asynqClient, zlog, cfg.Credits.PerLanguage)
	uploadService := service.NewUploadService(storage, zlog)
	creditService := service.NewCreditService(creditLedger, zlog)

	// Initialize handlers
	jobHandler := handler.NewJobHandler(jobService, validate)
	uploadHandler := handler.NewUploadHandler(uploadService, validate)
	creditHandler := handler.NewCreditHandler(creditService, validate)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    50 * 1024 * 1024, // 50MB
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Base routes
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"service":   "youtubedubber-api",
			"timestamp": time.Now().Unix(),
		})
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		status := "ok"
		redisOK := redisClient.Ping(c.Context()).Err() == nil
		if !redisOK {
			status = "degraded"
		}
		return c.JSON(fiber.Map{
			"status": status,
			"services": fiber.Map{
				"redis":      redisOK,
				"deepgram":   deepgramClient.IsConfigured(),
				"openai":     openaiClient.IsConfigured(),
				"elevenlabs": elevenlabsClient.IsConfigured(),
				"audio":      audioClient.IsConfigured(),
				"storage":    storage != nil,
			},
		})
	})

	// API routes
	api := app.Group("/api", authMiddleware.Authenticate())

	// Upload routes
	api.Post("/uploads", rateLimiter.UploadLimit(cfg.RateLimit.UploadPerHour), uploadHandler.Targets)

	// Job routes
	jobs := api.Group("/jobs")
	jobs.Post("/", rateLimiter.SubmitLimit(cfg.RateLimit.SubmitPerHour), jobHandler.Submit)
	jobs.Get("/:jobId", jobHandler.Status)
	jobs.Post("/:jobId/cancel", jobHandler.Cancel)

	// Credit routes
	credits := api.Group("/credits")
	credits.Get("/", creditHandler.Balance)
	credits.Post("/confirm", creditHandler.ConfirmPurchase)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		jobID := c.Params("jobId")
		hub.HandleConnection(c, jobID)
	}))

	// Re-enqueue work that was in flight when the previous process died.
	if err := jobService.RecoverIncompleteJobs(ctx); err != nil {
		zlog.Error("Failed to recover incomplete jobs", zap.Error(err))
	}

	// Start Asynq worker server
	dubWorker := worker.NewDubWorker(
		jobStore,
		creditLedger,
		deepgramClient,
		openaiClient,
		elevenlabsClient,
		audioClient,
		hub,
		zlog,
		cfg.Worker.RetryBudget,
		time.Duration(cfg.Worker.BackoffBaseMs)*time.Millisecond,
	)
	go startWorkerServer(cfg, dubWorker, zlog)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		zlog.Info("Shutting down server")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			zlog.Error("Server shutdown error", zap.Error(err))
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	zlog.Info("Server starting", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		zlog.Fatal("Server error", zap.Error(err))
	}
}

func startWorkerServer(cfg *config.Config, dubWorker *worker.DubWorker, zlog *zap.Logger) {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: cfg.Worker.Concurrency,
			Queues: map[string]int{
				"dub": 10,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(worker.TaskTypeDubLanguage, dubWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		zlog.Error("Asynq worker error", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zcfg zap.Config
	if cfg.Server.Env == "production" {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	return zcfg.Build()
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
