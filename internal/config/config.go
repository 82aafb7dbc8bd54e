package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Config captures runtime configuration sourced from environment variables.
type Config struct {
	Environment       string
	HTTPPort          string
	DatabasePath      string
	FrontendDir       string
	JWTSecret         string
	AssignMaxRetries  int
	ReconcileSchedule string
}

// Load reads env vars and falls back to defaults so the server can boot with zero configuration.
func Load() (Config, error) {
	cfg := Config{
		Environment:       getEnv("QM_ENV", "development"),
		HTTPPort:          getEnv("QM_HTTP_PORT", "8080"),
		DatabasePath:      getEnv("QM_DB_PATH", filepath.Join("data", "quartermaster.db")),
		FrontendDir:       getEnv("QM_FRONTEND_DIR", filepath.Clean(filepath.Join("..", "frontend", "dist"))),
		JWTSecret:         getEnv("QM_JWT_SECRET", ""),
		AssignMaxRetries:  getEnvInt("QM_ASSIGN_MAX_RETRIES", 3),
		ReconcileSchedule: getEnv("QM_RECONCILE_SCHEDULE", "@every 1h"),
	}

	if cfg.JWTSecret == "" && cfg.Environment == "production" {
		return Config{}, fmt.Errorf("QM_JWT_SECRET must be set in production")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
		return Config{}, fmt.Errorf("ensure data directory: %w", err)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			return n
		}
	}

	return fallback
}
