package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	// Postgres-compatible DSN
	DatabaseURL string

	// Object store credentials
	ObjectStoreEndpoint  string
	ObjectStoreRegion    string
	ObjectStoreAccessKey string
	ObjectStoreSecret    string
	ObjectStoreBucket    string

	// 32-byte base64 key for credential encryption at rest
	EncryptionKey []byte

	// Embeddings configuration
	EmbeddingsAPIKey  string
	EmbeddingsAPIURL  string
	EmbeddingsModel   string
	EmbeddingBatch    int
	EmbeddingBatchGap int // milliseconds between batches

	// Worker pool
	WorkerConcurrency int
	PollInterval      int // seconds between outbox polls

	// Upload limits
	MaxFileSizeBytes int64
	UploadURLTTL     int // seconds

	// Chunker tunables
	MaxChunkSize int
	MinChunkSize int
	ChunkOverlap int

	// Server
	Port    string
	GinMode string
}

func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	loadDotEnv()

	cfg := &Config{
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		ObjectStoreEndpoint:  getEnv("OBJECT_STORE_ENDPOINT", ""),
		ObjectStoreRegion:    getEnv("OBJECT_STORE_REGION", "us-east-1"),
		ObjectStoreAccessKey: getEnv("OBJECT_STORE_ACCESS_KEY", ""),
		ObjectStoreSecret:    getEnv("OBJECT_STORE_SECRET", ""),
		ObjectStoreBucket:    getEnv("OBJECT_STORE_BUCKET", ""),
		EmbeddingsAPIKey:     getEnv("EMBEDDINGS_API_KEY", ""),
		EmbeddingsAPIURL:     getEnv("EMBEDDINGS_API_URL", "https://api.openai.com/v1/embeddings"),
		EmbeddingsModel:      getEnv("EMBEDDINGS_MODEL", "text-embedding-3-small"),
		EmbeddingBatch:       getEnvInt("EMBEDDINGS_BATCH_SIZE", 50),
		EmbeddingBatchGap:    getEnvInt("EMBEDDINGS_BATCH_GAP_MS", 100),
		WorkerConcurrency:    getEnvInt("WORKER_CONCURRENCY", 4),
		PollInterval:         getEnvInt("OUTBOX_POLL_INTERVAL", 3),
		MaxFileSizeBytes:     getEnvInt64("MAX_FILE_SIZE_BYTES", 52428800), // 50MB
		UploadURLTTL:         getEnvInt("UPLOAD_URL_TTL", 900),
		MaxChunkSize:         getEnvInt("MAX_CHUNK_SIZE", 1000),
		MinChunkSize:         getEnvInt("MIN_CHUNK_SIZE", 200),
		ChunkOverlap:         getEnvInt("CHUNK_OVERLAP", 100),
		Port:                 getEnv("PORT", "8080"),
		GinMode:              getEnv("GIN_MODE", "release"),
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.ObjectStoreEndpoint == "" {
		return nil, fmt.Errorf("OBJECT_STORE_ENDPOINT is required")
	}
	if cfg.ObjectStoreAccessKey == "" {
		return nil, fmt.Errorf("OBJECT_STORE_ACCESS_KEY is required")
	}
	if cfg.ObjectStoreSecret == "" {
		return nil, fmt.Errorf("OBJECT_STORE_SECRET is required")
	}
	if cfg.ObjectStoreBucket == "" {
		return nil, fmt.Errorf("OBJECT_STORE_BUCKET is required")
	}
	if cfg.EmbeddingsAPIKey == "" {
		return nil, fmt.Errorf("EMBEDDINGS_API_KEY is required")
	}

	rawKey := getEnv("ENCRYPTION_KEY", "")
	if rawKey == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY is required")
	}
	key, err := base64.StdEncoding.DecodeString(rawKey)
	if err != nil {
		return nil, fmt.Errorf("ENCRYPTION_KEY must be base64: %v", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("ENCRYPTION_KEY must decode to 32 bytes, got %d", len(key))
	}
	cfg.EncryptionKey = key

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}
