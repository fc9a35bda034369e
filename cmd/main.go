package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"docstream-platform/internal/config"
	"docstream-platform/internal/cryptobox"
	"docstream-platform/internal/database"
	"docstream-platform/internal/logger"
	"docstream-platform/internal/storage"
	"docstream-platform/repositories"
	"docstream-platform/routes"
	"docstream-platform/services"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.InitLogger(false)
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}

	gin.SetMode(cfg.GinMode)
	logger.InitLogger(cfg.GinMode == gin.DebugMode)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("database connect failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Error("migration failed", "error", err)
		os.Exit(1)
	}

	store, err := storage.NewObjectStore(ctx, cfg)
	if err != nil {
		logger.Error("object store init failed", "error", err)
		os.Exit(1)
	}

	box, err := cryptobox.New(cfg.EncryptionKey)
	if err != nil {
		logger.Error("encryption init failed", "error", err)
		os.Exit(1)
	}

	documents := repositories.NewDocumentRepository(pool)
	jobs := repositories.NewJobRepository(pool)
	outbox := repositories.NewOutboxRepository(pool)
	credentials := repositories.NewCredentialRepository(pool, box)

	uploads := services.NewUploadService(pool, documents, jobs, outbox, store,
		time.Duration(cfg.UploadURLTTL)*time.Second)

	router := routes.SetupRouter(&routes.Handlers{
		Documents:   documents,
		Jobs:        jobs,
		Credentials: credentials,
		Store:       store,
		Uploads:     uploads,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("api server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}
