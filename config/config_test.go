package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "data/dedup.db", cfg.Storage.DedupPath)
	assert.Equal(t, 30, cfg.Run.DedupRetentionDays)
	assert.Equal(t, "06:30", cfg.Run.DailyRunTime)
	assert.False(t, cfg.Telegram.Enabled)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DEDUP_RETENTION_DAYS", "7")
	t.Setenv("TELEGRAM_ENABLED", "true")
	t.Setenv("CORS_ORIGINS", "https://a.example,https://b.example")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 7, cfg.Run.DedupRetentionDays)
	assert.True(t, cfg.Telegram.Enabled)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestLoadThresholdsMissingFileWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.yaml")

	got, err := LoadThresholds(path)
	require.NoError(t, err)
	assert.InDelta(t, 10, got.MinYieldPercent, 0.001)

	// The defaults were written back for the operator to edit.
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestLoadThresholdsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.yaml")
	require.NoError(t, os.WriteFile(path, []byte("min_yield_percent: 12\n"), 0644))

	got, err := LoadThresholds(path)
	require.NoError(t, err)
	assert.InDelta(t, 12, got.MinYieldPercent, 0.001)
}

func TestLoadThresholdsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{not yaml"), 0644))

	_, err := LoadThresholds(path)
	assert.Error(t, err)
}
