package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds application configuration sourced from environment variables.
type Config struct {
	AppEnv        string `env:"APP_ENV" envDefault:"dev"`
	Port          string `env:"PORT" envDefault:"8080"`
	DBPath        string `env:"DB_PATH" envDefault:"./dev.db"`
	MigrationsDir string `env:"MIGRATIONS_DIR" envDefault:"migrations"`
	UploadDir     string `env:"UPLOAD_DIR" envDefault:"./uploads"`
	AdminEmail    string `env:"ADMIN_EMAIL"`
	AdminPassword string `env:"ADMIN_PASSWORD"`
	SessionSecret string `env:"SESSION_SECRET"`
}

// Load reads a local .env file (best effort, for development) and then parses
// the environment into a Config. Production should use real env injection.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	return cfg, nil
}

// IsDev reports whether the app runs in the local development environment.
func (c Config) IsDev() bool {
	return c.AppEnv == "dev"
}
