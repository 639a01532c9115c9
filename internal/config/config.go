// Package config loads the service configuration from the environment.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"

	cverrors "github.com/copyleftdev/cvtune/internal/errors"
)

type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	}
	Logging struct {
		Level  string `env:"LOG_LEVEL" envDefault:"info"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}
	Database struct {
		// Type is "memory" or "sqlite"
		Type string `env:"DB_TYPE" envDefault:"memory"`
		DSN  string `env:"DB_DSN"`
	}
	Tuning struct {
		Optimizer      string  `env:"TUNE_OPTIMIZER" envDefault:"bayesian"`
		MaxIterations  int     `env:"TUNE_MAX_ITERATIONS" envDefault:"50"`
		InitialPoints  int     `env:"TUNE_INITIAL_POINTS" envDefault:"10"`
		GridSize       int     `env:"TUNE_GRID_SIZE" envDefault:"10"`
		Folds          int     `env:"TUNE_FOLDS" envDefault:"5"`
		ValidationSize float64 `env:"TUNE_VALIDATION_SIZE" envDefault:"0.2"`
		Population     int     `env:"TUNE_POPULATION" envDefault:"20"`
		WorkerCount    int     `env:"TUNE_WORKER_COUNT" envDefault:"4"`
		Seed           int64   `env:"TUNE_SEED" envDefault:"0"`
	}
}

func Load() (*Config, error) {
	cfg := &Config{}

	// Parse environment variables
	if err := env.Parse(cfg); err != nil {
		return nil, cverrors.Wrap(err, "failed to parse environment").
			WithComponent("config").
			WithKind(cverrors.KindConfiguration)
	}

	// Set default logging level based on environment
	if cfg.Environment == "development" && cfg.Logging.Level == "" {
		cfg.Logging.Level = "debug"
	}

	cfg.Database.Type = strings.ToLower(cfg.Database.Type)
	if cfg.Database.DSN == "" && cfg.Database.Type == "sqlite" {
		// Ensure the data directory exists
		if err := os.MkdirAll("data", 0755); err != nil {
			return nil, err
		}
		cfg.Database.DSN = filepath.Join("data", "cvtune.db")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	switch c.Database.Type {
	case "memory", "sqlite":
	default:
		return invalid("unsupported database type %q", c.Database.Type)
	}
	if c.Tuning.WorkerCount < 1 {
		return invalid("worker count must be positive, got %d", c.Tuning.WorkerCount)
	}
	if c.Tuning.Folds < 2 {
		return invalid("at least 2 folds are required, got %d", c.Tuning.Folds)
	}
	if !(c.Tuning.ValidationSize > 0 && c.Tuning.ValidationSize < 1) {
		return invalid("validation size must be in (0, 1), got %v", c.Tuning.ValidationSize)
	}
	return nil
}

func invalid(format string, args ...interface{}) error {
	return cverrors.Errorf(format, args...).
		WithOperation("Config.Validate").
		WithComponent("config").
		WithKind(cverrors.KindConfiguration)
}

// GetEnv returns the value of the environment variable or the default value
func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetEnvAsInt returns the value of the environment variable as int or the default value
func GetEnvAsInt(key string, defaultValue int) int {
	valueStr := GetEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}
