package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
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

	"github.com/coursemind/api/internal/client"
	"github.com/coursemind/api/internal/config"
	"github.com/coursemind/api/internal/handler"
	"github.com/coursemind/api/internal/middleware"
	"github.com/coursemind/api/internal/pipeline"
	"github.com/coursemind/api/internal/service"
	"github.com/coursemind/api/internal/store"
	ws "github.com/coursemind/api/internal/websocket"
	"github.com/coursemind/api/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
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
	hub := ws.NewHub()
	go hub.Run()

	// Initialize external clients
	llmClient, err := client.NewLLMClient(&cfg.LLM)
	if err != nil {
		log.Fatalf("Failed to initialize LLM client: %v", err)
	}
	if !llmClient.IsConfigured() {
		log.Println("Info: LLM API key not set, using deterministic mock embeddings and answers")
	}

	extractClient := client.NewExtractClient(&cfg.Extract)
	if !extractClient.IsConfigured() {
		log.Println("Info: extraction service not configured, pipelines run in mock mode")
	}

	// Initialize object storage (optional - continues if not configured)
	var storage client.StorageClient
	if cfg.Storage.AccessKeyID != "" && cfg.Storage.SecretAccessKey != "" {
		objectStore, err := client.NewObjectStore(&cfg.Storage)
		if err != nil {
			log.Printf("Warning: object storage not initialized: %v", err)
		} else {
			storage = objectStore
		}
	} else {
		log.Println("Info: object storage not configured, URL ingestion only")
	}

	// Initialize chunk store with its embedding pool
	chunkStore, err := store.NewChunkStore(redisClient, llmClient, cfg.LLM.EmbedPoolSize)
	if err != nil {
		log.Fatalf("Failed to initialize chunk store: %v", err)
	}
	defer chunkStore.Close()

	// Initialize services
	ingestService := service.NewIngestService(redisClient, asynqClient, cfg.Pipeline)
	queryService := service.NewQueryService(chunkStore, llmClient, llmClient, cfg.Prompts)
	summaryService := service.NewSummaryService(redisClient, ingestService, chunkStore, llmClient, cfg.Prompts)

	// Initialize content pipelines and router. A pipeline that cannot reach
	// its extraction backend fails fast here rather than on the first job.
	router := pipeline.NewRouter(
		pipeline.NewVideoPipeline(cfg.Pipeline, extractClient, storage),
		pipeline.NewAudioPipeline(cfg.Pipeline, extractClient, storage),
		pipeline.NewDocumentPipeline(cfg.Pipeline, extractClient, storage),
		pipeline.NewImagePipeline(cfg.Pipeline, extractClient, storage),
	)
	if err := router.Initialize(ctx); err != nil {
		log.Fatalf("Failed to initialize content pipelines: %v", err)
	}

	// Initialize handlers
	ingestHandler := handler.NewIngestHandler(ingestService, storage, validate)
	statusHandler := handler.NewStatusHandler(ingestService)
	queryHandler := handler.NewQueryHandler(queryService, validate)
	summaryHandler := handler.NewSummaryHandler(summaryService)

	// Initialize middleware
	var apiAuthMiddleware fiber.Handler
	if cfg.Gateway.Enabled {
		// Behind the gateway: auth is handled upstream, read X-User-* headers
		log.Println("Info: Gateway mode enabled — using header-based auth")
		apiAuthMiddleware = middleware.GatewayAuthMiddleware()
	} else {
		apiAuthMiddleware = middleware.NewAuthMiddleware(cfg.JWT.Secret).Authenticate()
	}
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    200 * 1024 * 1024, // 200MB, matches the upload cap
	})

	// Global middleware
	app.Use(recover.New())
	isDebug := strings.EqualFold(cfg.Server.LogLevel, "debug")
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if isDebug {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${body} ${reqHeaders}\n"
		log.Println("Debug logging enabled")
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Base URL - timestamp
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"llm":     llmClient.IsConfigured(),
				"extract": extractClient.IsConfigured(),
				"storage": storage != nil,
				"redis":   redisClient.Ping(c.Context()).Err() == nil,
			},
		})
	})

	// API routes
	api := app.Group("/api", apiAuthMiddleware)

	api.Post("/ingest", rateLimiter.IngestLimit(cfg.RateLimit.IngestPerHour), ingestHandler.Ingest)

	status := api.Group("/status", rateLimiter.StatusLimit(cfg.RateLimit.StatusPerMin))
	status.Get("/:jobId", statusHandler.GetStatus)
	status.Get("/:jobId/logs", statusHandler.GetLogs)

	api.Post("/query", rateLimiter.QueryLimit(cfg.RateLimit.QueryPerMin), queryHandler.Query)
	api.Get("/summary/:jobId", rateLimiter.QueryLimit(cfg.RateLimit.QueryPerMin), summaryHandler.GetSummary)

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

	// Start the queue consumer
	ingestWorker := worker.NewIngestWorker(ingestService, router, chunkStore, hub, cfg.Pipeline.MaxRetries)
	workerServer := worker.NewServer(cfg, ingestWorker)
	if err := workerServer.Start(); err != nil {
		log.Fatalf("Failed to start worker server: %v", err)
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		workerServer.Stop()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
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
