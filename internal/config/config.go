package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/offmode/brickd/internal/storage"
)

// Config holds the complete application configuration
type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	Logging LoggingConfig `mapstructure:"logging"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Admin   AdminConfig   `mapstructure:"admin"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// StorageConfig defines storage backend settings
type StorageConfig struct {
	Path  string      `mapstructure:"path"`
	Type  string      `mapstructure:"type"` // "bolt" or "redis"
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig defines the optional redis backend for short-lived records
// (unlock grants and override countdowns). Durable records stay in bolt.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level            string `mapstructure:"level"`
	Format           string `mapstructure:"format"`
	LogRetentionDays int    `mapstructure:"log_retention_days"`
}

// EngineConfig defines enforcement engine tunables
type EngineConfig struct {
	TickInterval         string `mapstructure:"tick_interval"`
	CooldownMinutes      int    `mapstructure:"cooldown_minutes"`
	OverrideGrantMinutes int    `mapstructure:"override_grant_minutes"`
	RepeatedActionCount  int    `mapstructure:"repeated_action_count"`
}

// AdminConfig defines the local admin API settings
type AdminConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ListenAddr  string `mapstructure:"listen_addr"`
	BearerToken string `mapstructure:"bearer_token"`
}

// MetricsConfig defines the metrics endpoint settings
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetEnvPrefix("BRICKD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !notFound && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Defaults returns the built-in configuration, untouched by any file or
// environment variable.
func Defaults() *Config {
	v := viper.New()
	setDefaults(v)

	var config Config
	_ = v.Unmarshal(&config)
	return &config
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Storage defaults
	v.SetDefault("storage.path", "/var/lib/brickd/brickd.bolt")
	v.SetDefault("storage.type", "bolt")
	v.SetDefault("storage.redis.addr", "localhost:6379")
	v.SetDefault("storage.redis.db", 0)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.log_retention_days", 90)

	// Engine defaults
	v.SetDefault("engine.tick_interval", "30s")
	v.SetDefault("engine.cooldown_minutes", 10)
	v.SetDefault("engine.override_grant_minutes", 5)
	v.SetDefault("engine.repeated_action_count", 500)

	// Admin defaults
	v.SetDefault("admin.enabled", true)
	v.SetDefault("admin.listen_addr", "127.0.0.1:8377")

	// Metrics defaults
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen_addr", "127.0.0.1:9090")
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Storage.Path == "" {
		return fmt.Errorf("storage path is required")
	}

	switch cfg.Storage.Type {
	case "":
		cfg.Storage.Type = "bolt"
	case "bolt":
	case "redis":
		if cfg.Storage.Redis.Addr == "" {
			return fmt.Errorf("redis address is required for storage type redis")
		}
	default:
		return fmt.Errorf("unknown storage type: %s", cfg.Storage.Type)
	}

	if cfg.Logging.LogRetentionDays < 0 {
		return fmt.Errorf("log retention days must not be negative")
	}
	if cfg.Engine.CooldownMinutes < 0 {
		return fmt.Errorf("cooldown minutes must not be negative")
	}
	if cfg.Engine.RepeatedActionCount <= 0 {
		return fmt.Errorf("repeated action count must be positive")
	}

	if err := storage.EnsureDir(filepath.Dir(cfg.Storage.Path)); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}

	return nil
}
