package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"doc-analysis-platform/internal/ai"
	"doc-analysis-platform/internal/auth"
	"doc-analysis-platform/internal/config"
	"doc-analysis-platform/internal/database"
	"doc-analysis-platform/internal/extract"
	"doc-analysis-platform/internal/logger"
	"doc-analysis-platform/internal/render"
	"doc-analysis-platform/internal/repository"
	"doc-analysis-platform/internal/storage"
	"doc-analysis-platform/internal/telemetry"
	"doc-analysis-platform/middleware"
	"doc-analysis-platform/models"
	"doc-analysis-platform/routes"
	"doc-analysis-platform/services"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	appLogger := logger.InitLogger(cfg)
	ctx := context.Background()

	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.OTLPEndpoint, cfg.GinMode, cfg.OTelSampleRate, appLogger)
	if err != nil {
		log.Fatal("Failed to initialize tracer:", err)
	}
	defer shutdownTracer()

	// PostgreSQL
	if err := database.Migrate(cfg, appLogger); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}
	pool, err := database.Connect(ctx, cfg, appLogger)
	if err != nil {
		log.Fatal("Failed to connect to PostgreSQL:", err)
	}
	defer pool.Close()

	// Redis backs token revocation, rate limits and the task queue
	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer rdb.Close()

	redisOpt, err := config.AsynqRedisOpt(cfg)
	if err != nil {
		log.Fatal("Invalid Redis configuration for task queue:", err)
	}
	taskClient := asynq.NewClient(redisOpt)
	defer taskClient.Close()

	tokens, err := auth.NewTokenManager(cfg.AccessSecret, cfg.AccessTokenTTL, rdb)
	if err != nil {
		log.Fatal("Failed to initialize token manager:", err)
	}

	store, err := storage.New(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to initialize object storage:", err)
	}

	analyzer, aiClient, err := ai.New(ctx, cfg, appLogger)
	if err != nil {
		log.Fatal("Failed to initialize AI client:", err)
	}
	defer aiClient.Close()

	ocr, closeOCR, err := newOCREngine(ctx, cfg, aiClient)
	if err != nil {
		log.Fatal("Failed to initialize OCR engine:", err)
	}
	defer closeOCR()

	// Audit trail is optional
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	var auditLogger *models.AuditLogger
	if mongoClient != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			mongoClient.Disconnect(ctx)
		}()
		auditLogger = models.NewAuditLogger(ctx, mongoClient.Database(cfg.DBName), appLogger)
	} else {
		appLogger.Info("audit trail disabled")
	}

	userRepo := repository.NewUserRepository(pool)
	fileRepo := repository.NewFileRepository(pool)

	renderer := render.NewRenderer(render.Options{FlattenNestedLists: cfg.FlattenNestedLists})
	cache := services.NewRenderCache(cfg.RenderCacheSize, cfg.RenderCacheTTL)

	userService := services.NewUserService(userRepo, tokens, cfg.BcryptCost, appLogger)
	analysisService := services.NewAnalysisService(cfg, extract.New(ocr, appLogger), store, fileRepo, analyzer, taskClient, appLogger)
	fileService := services.NewFileService(fileRepo, store, renderer, cache, taskClient, appLogger)

	// Initialize Gin router
	if cfg.IsRelease() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.TracingMiddleware())
	router.Use(middleware.EnrichTrace())
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.CORSMiddlewareWithOrigins(cfg.CORSOrigins))
	if auditLogger != nil {
		router.Use(middleware.AuditMiddleware(auditLogger))
	}

	authMiddleware := middleware.NewAuthMiddleware(tokens)

	// Setup routes
	routes.SetupHealthRoutes(router)
	routes.SetupAuthRoutes(router, cfg, userService, authMiddleware, rdb)
	routes.SetupAnalyzeRoutes(router, cfg, analysisService, authMiddleware, rdb)
	routes.SetupFileRoutes(router, fileService, authMiddleware)
	if auditLogger != nil {
		routes.SetupAuditRoutes(router, auditLogger, authMiddleware)
	}
	routes.SetupStaticRoutes(router, cfg.StaticDir)

	// Create HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		appLogger.Info("Server starting", "port", cfg.Port, "blob_policy", analysisService.Policy())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", "error", err)
	}

	appLogger.Info("Server exited")
}

// newOCREngine picks the OCR backend. The Gemini engine reuses the
// analysis client when that is also Gemini.
func newOCREngine(ctx context.Context, cfg *config.Config, aiClient ai.Client) (extract.OCREngine, func(), error) {
	if cfg.OCREngine != "gemini" {
		tesseract := extract.NewTesseractOCR(cfg.TesseractPath, cfg.OCRLanguage)
		if !tesseract.Available() {
			logger.Warn("tesseract not found, image uploads will fail", "path", cfg.TesseractPath)
		}
		return tesseract, func() {}, nil
	}

	if gc, ok := aiClient.(*ai.GeminiClient); ok {
		return extract.NewGeminiOCR(gc.GenAI(), cfg.GeminiModel), func() {}, nil
	}
	gc, err := ai.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.AITier, logger.Logger)
	if err != nil {
		return nil, nil, err
	}
	return extract.NewGeminiOCR(gc.GenAI(), cfg.GeminiModel), func() { gc.Close() }, nil
}
