package main

import (
	"context"
	"log"

	"doc-analysis-platform/internal/config"
	"doc-analysis-platform/internal/database"
	"doc-analysis-platform/internal/logger"
	"doc-analysis-platform/internal/queue"
	"doc-analysis-platform/internal/repository"
	"doc-analysis-platform/internal/storage"
	"doc-analysis-platform/services"

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

	pool, err := database.Connect(ctx, cfg, appLogger)
	if err != nil {
		log.Fatal("Failed to connect to PostgreSQL:", err)
	}
	defer pool.Close()

	store, err := storage.New(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to initialize object storage:", err)
	}
	fileRepo := repository.NewFileRepository(pool)

	redisOpt, err := config.AsynqRedisOpt(cfg)
	if err != nil {
		log.Fatal("Invalid Redis configuration:", err)
	}

	// Create Asynq server
	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				appLogger.Error("task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	processor := queue.NewTaskProcessor(store, fileRepo, appLogger)

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskBlobCleanup, processor.CleanupBlob)

	sweeper := services.NewOrphanSweeper(store, fileRepo, cfg.OrphanSweepInterval, cfg.OrphanGracePeriod, appLogger)
	if err := sweeper.Start(); err != nil {
		log.Fatal("Failed to schedule orphan sweep:", err)
	}
	defer sweeper.Stop()

	appLogger.Info("Starting task worker", "concurrency", 10, "queues", "critical(6), default(3), low(1)")

	// Run blocks until SIGTERM or SIGINT
	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
