package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "8090", cfg.Server.Port)
	assert.Equal(t, 2000, cfg.Store.MaxTraces)
	assert.Equal(t, 2*time.Hour, cfg.Store.TraceTTL)
	assert.Equal(t, time.Second, cfg.Analyzer.SlowThreshold)
	assert.Equal(t, 5*time.Second, cfg.Analyzer.VerySlowThreshold)
	assert.Equal(t, 100, cfg.Monitor.HistorySize)
	assert.Equal(t, 50, cfg.Monitor.HealthWindow)
	assert.Equal(t, 5, cfg.Monitor.TrendWindow)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("SPANLIGHT_PORT", "9100")
	t.Setenv("SPANLIGHT_STORE_MAX_TRACES", "500")
	t.Setenv("SPANLIGHT_ANALYZER_SLOW_THRESHOLD", "250ms")
	t.Setenv("SPANLIGHT_RATE_LIMIT_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9100", cfg.Server.Port)
	assert.Equal(t, 500, cfg.Store.MaxTraces)
	assert.Equal(t, 250*time.Millisecond, cfg.Analyzer.SlowThreshold)
	assert.False(t, cfg.RateLimit.Enabled)
}

func TestLoadFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spanlight.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9200"
store:
  max_traces: 250
monitor:
  trend_window: 10
`), 0o644))
	t.Setenv("SPANLIGHT_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9200", cfg.Server.Port)
	assert.Equal(t, 250, cfg.Store.MaxTraces)
	assert.Equal(t, 10, cfg.Monitor.TrendWindow)
	// Untouched sections keep their env/default values.
	assert.Equal(t, 2*time.Hour, cfg.Store.TraceTTL)
}

func TestLoadFileMissing(t *testing.T) {
	t.Setenv("SPANLIGHT_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := Load()
	assert.Error(t, err)
}
