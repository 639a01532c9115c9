package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cverrors "github.com/copyleftdev/cvtune/internal/errors"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 30*time.Second, cfg.HTTP.ReadTimeout)
	assert.Equal(t, "memory", cfg.Database.Type)
	assert.Equal(t, "bayesian", cfg.Tuning.Optimizer)
	assert.Equal(t, 5, cfg.Tuning.Folds)
	assert.Equal(t, 0.2, cfg.Tuning.ValidationSize)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("DB_TYPE", "SQLite")
	t.Setenv("DB_DSN", "file::memory:")
	t.Setenv("TUNE_OPTIMIZER", "grid")
	t.Setenv("TUNE_SEED", "42")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, "file::memory:", cfg.Database.DSN)
	assert.Equal(t, "grid", cfg.Tuning.Optimizer)
	assert.Equal(t, int64(42), cfg.Tuning.Seed)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"DB_TYPE", "postgres"},
		{"TUNE_FOLDS", "1"},
		{"TUNE_WORKER_COUNT", "0"},
		{"TUNE_VALIDATION_SIZE", "1.5"},
		{"HTTP_PORT", "not-a-number"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Equal(t, cverrors.KindConfiguration, cverrors.KindOf(err))
		})
	}
}

func TestGetEnvAsInt(t *testing.T) {
	t.Setenv("CVTUNE_TEST_INT", "12")
	assert.Equal(t, 12, GetEnvAsInt("CVTUNE_TEST_INT", 3))
	assert.Equal(t, 3, GetEnvAsInt("CVTUNE_TEST_MISSING", 3))
}
