package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docstream-platform/internal/ai"
	"docstream-platform/internal/config"
	"docstream-platform/internal/database"
	"docstream-platform/internal/logger"
	"docstream-platform/internal/storage"
	"docstream-platform/repositories"
	"docstream-platform/services"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.InitLogger(false)
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}
	logger.InitLogger(cfg.GinMode == "debug")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("database connect failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.Verify(ctx, pool); err != nil {
		logger.Error("schema verification failed, run migrate first", "error", err)
		os.Exit(1)
	}

	store, err := storage.NewObjectStore(ctx, cfg)
	if err != nil {
		logger.Error("object store init failed", "error", err)
		os.Exit(1)
	}

	documents := repositories.NewDocumentRepository(pool)
	jobs := repositories.NewJobRepository(pool)
	content := repositories.NewContentRepository(pool)
	outbox := repositories.NewOutboxRepository(pool)

	embedder := ai.NewEmbeddingClient(
		cfg.EmbeddingsAPIKey,
		cfg.EmbeddingsAPIURL,
		cfg.EmbeddingsModel,
		cfg.EmbeddingBatch,
		time.Duration(cfg.EmbeddingBatchGap)*time.Millisecond,
	)

	coordinator := services.NewCoordinator(
		documents, jobs, content, store,
		services.NewParserRouter(),
		services.NewSemanticChunker(cfg.MaxChunkSize, cfg.MinChunkSize, cfg.ChunkOverlap),
		embedder,
	)

	dispatcher := services.NewDispatcher(outbox, coordinator,
		cfg.WorkerConcurrency, time.Duration(cfg.PollInterval)*time.Second)
	dispatcher.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("worker shutting down")
	dispatcher.Stop()
}
