package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"assistantmemory/internal/config"
	"assistantmemory/internal/handlers"
	"assistantmemory/internal/jobs"
	"assistantmemory/internal/logging"
	"assistantmemory/internal/middleware"
	"assistantmemory/internal/services"
	"assistantmemory/internal/storage"
	"assistantmemory/pkg/auth"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	}

	// Initialize structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting Assistant Memory API...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}
	log.Printf("📋 Configuration loaded (Port: %s, Environment: %s, Storage: %s)", cfg.Port, cfg.Environment, cfg.StorageMode)

	// Select the storage backend once; database mode fails hard here
	startupCtx, cancel := context.WithTimeout(context.Background(), cfg.StorageConnectTimeout+5*time.Second)
	store, err := storage.Open(startupCtx, cfg.StorageOptions())
	cancel()
	if err != nil {
		log.Fatalf("❌ Failed to initialize storage: %v", err)
	}
	store = storage.Instrument(store, storage.NewMetrics(prometheus.DefaultRegisterer))
	log.Printf("💾 Storage mode: %s", store.Mode())

	// JWT authentication
	jwtSecret := cfg.JWTSecret
	if jwtSecret == "" {
		jwtSecret, err = auth.GenerateSecret()
		if err != nil {
			log.Fatalf("❌ Failed to generate JWT secret: %v", err)
		}
		log.Println("⚠️  JWT_SECRET not set, using an ephemeral secret (tokens will not survive a restart)")
	}
	jwtAuth, err := auth.NewLocalJWTAuth(jwtSecret, cfg.JWTExpiresIn)
	if err != nil {
		log.Fatalf("❌ Failed to initialize JWT authentication: %v", err)
	}

	// Services
	authService := services.NewAuthService(store, jwtAuth, cfg.APIKeyCacheTTL)
	contextService := services.NewContextService(store)

	// Background jobs
	jobScheduler, err := jobs.NewJobScheduler()
	if err != nil {
		log.Fatalf("❌ Failed to create job scheduler: %v", err)
	}
	if err := jobScheduler.Register(jobs.ContextSweepJobName, jobs.NewContextSweepJob(contextService, cfg.ContextSweepInterval)); err != nil {
		log.Fatalf("❌ Failed to register context sweeper: %v", err)
	}
	jobScheduler.Start()

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Assistant Memory API",
		BodyLimit:    10 * 1024 * 1024,
		ErrorHandler: errorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())

	// Prometheus metrics middleware
	prom := fiberprometheus.New("assistant_memory")
	prom.RegisterAt(app, "/metrics")
	app.Use(prom.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigin,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-API-Key",
		AllowCredentials: cfg.CORSOrigin != "*",
	}))
	log.Printf("🔒 [SECURITY] CORS allowed origins: %s", cfg.CORSOrigin)

	rateLimitConfig := middleware.NewRateLimitConfig(cfg.RateLimitMax, cfg.RateLimitWindow, cfg.Environment == "development")
	app.Use("/api", middleware.GlobalAPIRateLimiter(rateLimitConfig))
	log.Printf("🛡️  [RATE-LIMIT] Global=%d per %v, Auth=%d per %v",
		rateLimitConfig.GlobalAPIMax, rateLimitConfig.GlobalAPIExpiration,
		rateLimitConfig.AuthMax, rateLimitConfig.AuthExpiration)

	// Routes
	h := handlers.New(store, handlers.Services{
		Auth:        authService,
		Contexts:    contextService,
		Tasks:       services.NewTaskService(store),
		Preferences: services.NewPreferenceService(store),
		Data:        services.NewDataService(store),
	}, cfg.Environment)
	app.Get("/health", h.Health.Handle)
	h.Mount(
		app.Group("/api/v1"),
		middleware.APIKeyOrJWTMiddleware(authService),
		middleware.AuthRateLimiter(rateLimitConfig),
	)

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Route not found",
		})
	})

	log.Printf("📡 Health check: http://localhost:%s/health", cfg.Port)
	log.Printf("🕐 Background jobs: context sweeper (every %v)", cfg.ContextSweepInterval)

	// Handle graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("🛑 Shutting down server...")

		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			log.Printf("⚠️ Error shutting down server: %v", err)
		}

		if err := jobScheduler.Stop(); err != nil {
			log.Printf("⚠️ Error stopping job scheduler: %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := store.Close(ctx); err != nil {
			log.Printf("⚠️ Error closing storage: %v", err)
		}
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
	<-done
	log.Println("✅ Server stopped")
}

// errorHandler renders errors that escape handlers as JSON
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	} else {
		log.Printf("❌ Unhandled error on %s %s: %v", c.Method(), c.Path(), err)
	}

	return c.Status(code).JSON(fiber.Map{"error": message})
}
