package config

import (
	"os"

	"github.com/joho/godotenv"
)

// loadDotEnv loads a local .env file when present. Missing files are fine;
// production deployments set real environment variables.
func loadDotEnv() {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load()
	}
}
