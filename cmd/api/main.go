package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"safecheck/field-assessment/internal/config"
	"safecheck/field-assessment/internal/handlers"
	"safecheck/field-assessment/internal/repositories"
	"safecheck/field-assessment/internal/services"
)

func main() {
	// Load configuration
	cfg := config.Load()
	log.Println("✅ Config loaded successfully")

	// Initialize database
	db, err := config.InitDatabase(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to initialize database: %v", err)
	}

	// Initialize repositories
	assessmentRepo := repositories.NewAssessmentRepository(db)
	templateRepo := repositories.NewTemplateRepository(db)
	resultRepo := repositories.NewResultRepository(db)
	log.Println("✅ Repositories initialized successfully")

	// Initialize object storage
	storageService, err := services.NewObjectStorageService(
		cfg.Storage.Endpoint,
		cfg.Storage.AccessKey,
		cfg.Storage.SecretKey,
		cfg.Storage.Bucket,
		cfg.Storage.UseSSL,
	)
	if err != nil {
		log.Fatalf("❌ Failed to initialize object storage: %v", err)
	}
	if err := storageService.EnsureBucket(context.Background()); err != nil {
		log.Fatalf("❌ Failed to ensure storage bucket: %v", err)
	}
	log.Println("✅ Object storage initialized successfully")

	// Initialize Gemini AI
	geminiService, err := services.NewGeminiService(cfg.Gemini.APIKey)
	if err != nil {
		log.Fatalf("❌ Failed to initialize Gemini AI: %v", err)
	}
	log.Println("✅ Gemini AI initialized successfully")

	// Initialize Qdrant
	qdrantService, err := services.NewQdrantService(
		cfg.Qdrant.URL,
		cfg.Qdrant.APIKey,
		cfg.Qdrant.Collection,
	)
	if err != nil {
		log.Fatalf("❌ Failed to initialize Qdrant: %v", err)
	}

	if err := qdrantService.InitCollection(); err != nil {
		log.Fatalf("❌ Failed to initialize Qdrant collection: %v", err)
	}
	log.Println("✅ Qdrant initialized successfully")

	// Initialize pipeline services
	sttService := services.NewDeepgramService(
		cfg.Deepgram.APIKey,
		cfg.Deepgram.Model,
		cfg.Deepgram.Language,
	)
	retrievalService := services.NewRetrievalService(geminiService, qdrantService)
	retryPolicy := services.NewOverloadRetryPolicy(
		cfg.Worker.RetryMaxAttempts,
		cfg.Worker.RetryInitialDelay,
	)

	extractorService := services.NewExtractorService(
		assessmentRepo,
		templateRepo,
		resultRepo,
		sttService,
		geminiService,
		retrievalService,
		storageService,
		retryPolicy,
	)

	structurerService := services.NewStructurerService(
		templateRepo,
		geminiService,
		storageService,
		retryPolicy,
	)
	log.Println("✅ Pipeline services initialized")

	// Initialize worker
	worker := services.NewWorker(
		templateRepo,
		structurerService,
		cfg.Worker.Concurrency,
	)

	ctx := context.Background()
	worker.Start(ctx)
	log.Println("✅ Worker started successfully")

	// Initialize handlers
	transcribeHandler := handlers.NewTranscribeHandler(extractorService)
	assessmentHandler := handlers.NewAssessmentHandler(assessmentRepo, resultRepo, extractorService)
	templateHandler := handlers.NewTemplateHandler(templateRepo, worker)
	log.Println("✅ Handlers initialized")

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Field Assessment API",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second,
		ErrorHandler: customErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	// Routes
	api := app.Group("/api/v1")

	// Health check
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now(),
		})
	})

	// API endpoints
	api.Post("/transcribe", transcribeHandler.HandleTranscribe)
	api.Get("/assessments/:id", assessmentHandler.HandleGetAssessment)
	api.Get("/assessments/:id/results", assessmentHandler.HandleGetResults)
	api.Post("/assessments/:id/retry", assessmentHandler.HandleRetry)
	api.Post("/templates/:id/structure", templateHandler.HandleStructure)
	api.Get("/templates/:id", templateHandler.HandleGetTemplate)

	// Root route
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Field Assessment API",
			"version": "1.0.0",
			"endpoints": []string{
				"POST /api/v1/transcribe",
				"GET /api/v1/assessments/:id",
				"GET /api/v1/assessments/:id/results",
				"POST /api/v1/assessments/:id/retry",
				"POST /api/v1/templates/:id/structure",
				"GET /api/v1/templates/:id",
			},
		})
	})

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("\n🛑 Shutting down server...")
		worker.Stop()
		if err := app.Shutdown(); err != nil {
			log.Printf("❌ Server forced to shutdown: %v", err)
		}
	}()

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Printf("🚀 Server starting on %s\n", addr)

	if err := app.Listen(addr); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
		"code":  code,
	})
}
