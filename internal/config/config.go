package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Extract    ExtractConfig    `yaml:"extract" mapstructure:"extract"`
	Matching   MatchingConfig   `yaml:"matching" mapstructure:"matching"`
	Sync       SyncConfig       `yaml:"sync" mapstructure:"sync"`
	Kafka      KafkaConfig      `yaml:"kafka" mapstructure:"kafka"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
}

// StoreConfig configures the persistence backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port                int      `yaml:"port" mapstructure:"port"`
	CORSOrigins         []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	ShutdownTimeoutSecs int      `yaml:"shutdown_timeout_secs" mapstructure:"shutdown_timeout_secs"`
}

// ShutdownTimeout returns the graceful shutdown budget.
func (c ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSecs) * time.Second
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// ExtractConfig configures preference extraction.
type ExtractConfig struct {
	DefaultCurrency   string `yaml:"default_currency" mapstructure:"default_currency"`
	MaxKeywords       int    `yaml:"max_keywords" mapstructure:"max_keywords"`
	FallbackKeywords  int    `yaml:"fallback_keywords" mapstructure:"fallback_keywords"`
	MaxAttempts       int    `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMS  int    `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	BreakerThreshold  int    `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs  int    `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
	RequestTimeoutSec int    `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
}

// MatchingConfig configures the background matching workers.
type MatchingConfig struct {
	Workers          int     `yaml:"workers" mapstructure:"workers"`
	QueueSize        int     `yaml:"queue_size" mapstructure:"queue_size"`
	InsertsPerSecond float64 `yaml:"inserts_per_second" mapstructure:"inserts_per_second"`
	BatchConcurrency int     `yaml:"batch_concurrency" mapstructure:"batch_concurrency"`
}

// SyncConfig schedules listing maintenance.
type SyncConfig struct {
	SweepSchedule     string `yaml:"sweep_schedule" mapstructure:"sweep_schedule"`
	ReconcileSchedule string `yaml:"reconcile_schedule" mapstructure:"reconcile_schedule"`
	JobTimeoutSecs    int    `yaml:"job_timeout_secs" mapstructure:"job_timeout_secs"`
}

// KafkaConfig configures the listing event consumer.
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled" mapstructure:"enabled"`
	Brokers []string `yaml:"brokers" mapstructure:"brokers"`
	GroupID string   `yaml:"group_id" mapstructure:"group_id"`
	Topic   string   `yaml:"topic" mapstructure:"topic"`
}

// MonitoringConfig configures health alerting.
type MonitoringConfig struct {
	Enabled              bool    `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	DropRateThreshold    float64 `yaml:"drop_rate_threshold" mapstructure:"drop_rate_threshold"`
	MinJobs              int     `yaml:"min_jobs" mapstructure:"min_jobs"`
	RepeatAfterSecs      int     `yaml:"repeat_after_secs" mapstructure:"repeat_after_secs"`
}

var drivers = []string{"postgres", "sqlite"}

// Validate checks the settings a command mode needs. Modes are "serve",
// "match", "sync", "stats" and "migrate". All problems are reported at once.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve", "match", "sync", "stats", "migrate":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if !slices.Contains(drivers, c.Store.Driver) {
		errs = append(errs, fmt.Sprintf("store.driver %q is not one of %v", c.Store.Driver, drivers))
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}

	if mode == "serve" || mode == "match" {
		if c.Matching.Workers < 1 || c.Matching.Workers > 64 {
			errs = append(errs, "matching.workers must be between 1 and 64")
		}
		if c.Matching.QueueSize < 1 {
			errs = append(errs, "matching.queue_size must be > 0")
		}
		if c.Matching.InsertsPerSecond < 0 {
			errs = append(errs, "matching.inserts_per_second must be >= 0")
		}
	}

	if mode == "serve" {
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "" || c.Kafka.GroupID == "") {
			errs = append(errs, "kafka requires brokers, topic and group_id when enabled")
		}
		if c.Monitoring.Enabled && c.Monitoring.WebhookURL == "" {
			errs = append(errs, "monitoring.webhook_url is required when monitoring is enabled")
		}
		if t := c.Monitoring.FailureRateThreshold; t < 0 || t > 1 {
			errs = append(errs, "monitoring.failure_rate_threshold must be between 0 and 1")
		}
		if t := c.Monitoring.DropRateThreshold; t < 0 || t > 1 {
			errs = append(errs, "monitoring.drop_rate_threshold must be between 0 and 1")
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("MARKET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.shutdown_timeout_secs", 15)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 500)
	v.SetDefault("extract.default_currency", "NPR")
	v.SetDefault("extract.max_keywords", 10)
	v.SetDefault("extract.fallback_keywords", 5)
	v.SetDefault("extract.max_attempts", 3)
	v.SetDefault("extract.initial_backoff_ms", 500)
	v.SetDefault("extract.breaker_threshold", 5)
	v.SetDefault("extract.breaker_reset_secs", 30)
	v.SetDefault("extract.request_timeout_secs", 20)
	v.SetDefault("matching.workers", 4)
	v.SetDefault("matching.queue_size", 256)
	v.SetDefault("matching.inserts_per_second", 10)
	v.SetDefault("matching.batch_concurrency", 4)
	v.SetDefault("sync.sweep_schedule", "@every 1h")
	v.SetDefault("sync.reconcile_schedule", "@daily")
	v.SetDefault("sync.job_timeout_secs", 600)
	v.SetDefault("kafka.group_id", "market-match")
	v.SetDefault("kafka.topic", "listing-events")
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.failure_rate_threshold", 0.2)
	v.SetDefault("monitoring.drop_rate_threshold", 0.05)
	v.SetDefault("monitoring.min_jobs", 5)
	v.SetDefault("monitoring.repeat_after_secs", 3600)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
