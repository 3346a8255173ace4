package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, int32(10), cfg.Store.MaxConns)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout())
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.Model)
	assert.Equal(t, int64(500), cfg.Anthropic.MaxTokens)
	assert.Equal(t, "NPR", cfg.Extract.DefaultCurrency)
	assert.Equal(t, 10, cfg.Extract.MaxKeywords)
	assert.Equal(t, 5, cfg.Extract.FallbackKeywords)
	assert.Equal(t, 4, cfg.Matching.Workers)
	assert.Equal(t, 256, cfg.Matching.QueueSize)
	assert.InDelta(t, 10.0, cfg.Matching.InsertsPerSecond, 0.001)
	assert.Equal(t, "@every 1h", cfg.Sync.SweepSchedule)
	assert.Equal(t, "@daily", cfg.Sync.ReconcileSchedule)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, "listing-events", cfg.Kafka.Topic)
	assert.InDelta(t, 0.2, cfg.Monitoring.FailureRateThreshold, 0.001)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
  database_url: file:market.db
log:
  level: debug
  format: console
server:
  port: 9090
matching:
  workers: 8
kafka:
  enabled: true
  brokers: [kafka-1:9092, kafka-2:9092]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "file:market.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 8, cfg.Matching.Workers)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	// Defaults still apply for unset values
	assert.Equal(t, 256, cfg.Matching.QueueSize)
	assert.Equal(t, "market-match", cfg.Kafka.GroupID)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("MARKET_STORE_DRIVER", "postgres")
	t.Setenv("MARKET_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("MARKET_SERVER_PORT", "3000")
	t.Setenv("MARKET_MATCHING_INSERTS_PER_SECOND", "2.5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.InDelta(t, 2.5, cfg.Matching.InsertsPerSecond, 0.001)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0644))

	_, err := Load()
	assert.Error(t, err)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config that passes validation in every mode.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "postgres"
	cfg.Store.DatabaseURL = "postgres://localhost/market"
	cfg.Server.Port = 8080
	cfg.Matching.Workers = 4
	cfg.Matching.QueueSize = 256
	cfg.Matching.InsertsPerSecond = 10
	cfg.Monitoring.FailureRateThreshold = 0.2
	cfg.Monitoring.DropRateThreshold = 0.05
	return cfg
}

func TestValidate_AllModes(t *testing.T) {
	cfg := validDefaults()
	for _, mode := range []string{"serve", "match", "sync", "stats", "migrate"} {
		assert.NoError(t, cfg.Validate(mode), mode)
	}
}

func TestValidate_UnknownMode(t *testing.T) {
	err := validDefaults().Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidate_Store(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"
	cfg.Store.DatabaseURL = ""

	err := cfg.Validate("sync")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `store.driver "mysql"`)
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestValidate_Matching(t *testing.T) {
	cfg := validDefaults()
	cfg.Matching.Workers = 0
	cfg.Matching.QueueSize = 0

	err := cfg.Validate("match")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "matching.workers must be between 1 and 64")
	assert.Contains(t, err.Error(), "matching.queue_size must be > 0")

	// Sync and stats do not run workers.
	assert.NoError(t, cfg.Validate("sync"))
}

func TestValidate_Serve(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0
	cfg.Kafka.Enabled = true
	cfg.Monitoring.Enabled = true
	cfg.Monitoring.DropRateThreshold = 1.5

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
	assert.Contains(t, err.Error(), "kafka requires brokers")
	assert.Contains(t, err.Error(), "monitoring.webhook_url is required")
	assert.Contains(t, err.Error(), "drop_rate_threshold")
}
