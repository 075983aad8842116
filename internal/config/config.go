// Package config loads the CLI configuration from config.yaml, a .env file
// and TRUST_ environment variables.
package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix prefixes every environment override, e.g. TRUST_STORE_DRIVER.
const EnvPrefix = "TRUST"

// Config holds the full application configuration.
type Config struct {
	Store           StoreConfig     `yaml:"store" mapstructure:"store"`
	Log             LogConfig       `yaml:"log" mapstructure:"log"`
	Aggregate       AggregateConfig `yaml:"aggregate" mapstructure:"aggregate"`
	Sweep           SweepConfig     `yaml:"sweep" mapstructure:"sweep"`
	MethodologyFile string          `yaml:"methodology_file" mapstructure:"methodology_file"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AggregateConfig configures pillar aggregation runs.
type AggregateConfig struct {
	// ReferenceYear fixes the year data age is measured against. Zero means
	// the current year.
	ReferenceYear int         `yaml:"reference_year" mapstructure:"reference_year"`
	Retry         RetryConfig `yaml:"retry" mapstructure:"retry"`
}

// RetryConfig configures wholesale retries of a failed pillar run.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// SweepConfig configures the data quality sweep.
type SweepConfig struct {
	// Checks restricts the sweep to the named checks. Empty runs all.
	Checks     []string `yaml:"checks" mapstructure:"checks"`
	ReportPath string   `yaml:"report_path" mapstructure:"report_path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, the config file and the environment.
// Environment variables win over the file; existing variables win over .env.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("aggregate.reference_year", 0)
	v.SetDefault("aggregate.retry.max_attempts", 3)
	v.SetDefault("aggregate.retry.initial_backoff_ms", 200)
	v.SetDefault("aggregate.retry.max_backoff_ms", 5000)
	v.SetDefault("sweep.checks", []string{})
	v.SetDefault("sweep.report_path", "")
	v.SetDefault("methodology_file", "")

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
