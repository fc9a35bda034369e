package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"docstream-platform/internal/config"
	"docstream-platform/internal/database"
	"docstream-platform/internal/logger"
)

func main() {
	logger.InitLogger(false)

	command := "migrate"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("database connect failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	switch command {
	case "migrate":
		if err := database.Migrate(ctx, pool); err != nil {
			logger.Error("migration failed", "error", err)
			os.Exit(1)
		}
		logger.Info("migration complete")
	case "verify-db":
		if err := database.Verify(ctx, pool); err != nil {
			logger.Error("schema verification failed", "error", err)
			os.Exit(1)
		}
		logger.Info("schema verified")
	default:
		fmt.Fprintf(os.Stderr, "usage: migrate [migrate|verify-db]\n")
		os.Exit(1)
	}
}
