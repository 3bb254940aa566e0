package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/campus/pkg/plugins"
	"github.com/platinummonkey/campus/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Plugin host configuration
	Plugins PluginsConfig

	// Storage configuration
	Storage storage.Config

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
	MaxBodyBytes    int64
	RateLimit       int // write requests per minute per client, 0 disables
	RateLimitBurst  int
}

// PluginsConfig holds plugin manager settings
type PluginsConfig struct {
	Mode        plugins.Mode
	Dirs        []string
	Watch       bool
	HookTimeout time.Duration
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel  string
	LogFormat string

	// Metrics
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	pluginsCfg, err := loadPluginsConfig()
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	cfg := &Config{
		Server:        loadServerConfig(),
		Plugins:       pluginsCfg,
		Storage:       loadStorageConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("CAMPUS_HOST", "0.0.0.0"),
		Port:            getEnv("CAMPUS_PORT", "8080"),
		ReadTimeout:     getEnvDuration("CAMPUS_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("CAMPUS_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("CAMPUS_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("CAMPUS_SHUTDOWN_TIMEOUT", 30*time.Second),
		AllowedOrigins:  getEnvList("CAMPUS_ALLOWED_ORIGINS", nil),
		MaxBodyBytes:    getEnvInt64("CAMPUS_MAX_BODY_BYTES", 1<<20),
		RateLimit:       getEnvInt("CAMPUS_RATE_LIMIT", 0),
		RateLimitBurst:  getEnvInt("CAMPUS_RATE_LIMIT_BURST", 10),
	}
}

// loadPluginsConfig loads plugin manager configuration from environment
func loadPluginsConfig() (PluginsConfig, error) {
	modeName := getEnv("CAMPUS_PLUGIN_MODE", "strict")
	mode, ok := plugins.ParseMode(strings.ToLower(modeName))
	if !ok {
		return PluginsConfig{}, fmt.Errorf("invalid plugin mode: %s (must be strict or lenient)", modeName)
	}

	return PluginsConfig{
		Mode:        mode,
		Dirs:        getEnvList("CAMPUS_PLUGIN_DIRS", plugins.GetDefaultPluginDirectories()),
		Watch:       getEnvBool("CAMPUS_PLUGIN_WATCH", false),
		HookTimeout: getEnvDuration("CAMPUS_HOOK_TIMEOUT", 0),
	}, nil
}

// loadStorageConfig loads storage configuration from environment
func loadStorageConfig() storage.Config {
	cfg := storage.DefaultConfig()

	// Storage type
	if storageType := getEnv("CAMPUS_STORAGE_TYPE", ""); storageType != "" {
		cfg.Type = strings.ToLower(storageType)
	}
	if prefix := getEnv("CAMPUS_STORAGE_PREFIX", ""); prefix != "" {
		cfg.KeyPrefix = prefix
	}
	if timeout := getEnvDuration("CAMPUS_STORAGE_SAVE_TIMEOUT", 0); timeout > 0 {
		cfg.SaveTimeout = timeout
	}

	// PostgreSQL config
	if pgURL := getEnv("CAMPUS_POSTGRES_URL", ""); pgURL != "" {
		cfg.PostgresURL = pgURL
	}
	if maxConns := getEnvInt("CAMPUS_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		cfg.PostgresMaxConns = maxConns
	}
	if minConns := getEnvInt("CAMPUS_POSTGRES_MIN_CONNS", 0); minConns > 0 {
		cfg.PostgresMinConns = minConns
	}
	if timeout := getEnvDuration("CAMPUS_POSTGRES_TIMEOUT", 0); timeout > 0 {
		cfg.PostgresTimeout = timeout
	}

	// Redis config
	if redisURL := getEnv("CAMPUS_REDIS_URL", ""); redisURL != "" {
		cfg.RedisURL = redisURL
	}
	if redisPassword := getEnv("CAMPUS_REDIS_PASSWORD", ""); redisPassword != "" {
		cfg.RedisPassword = redisPassword
	}
	if redisDB := getEnvInt("CAMPUS_REDIS_DB", -1); redisDB >= 0 {
		cfg.RedisDB = redisDB
	}
	if redisMaxRetries := getEnvInt("CAMPUS_REDIS_MAX_RETRIES", 0); redisMaxRetries > 0 {
		cfg.RedisMaxRetries = redisMaxRetries
	}
	if redisPoolSize := getEnvInt("CAMPUS_REDIS_POOL_SIZE", 0); redisPoolSize > 0 {
		cfg.RedisPoolSize = redisPoolSize
	}

	return cfg
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       strings.ToLower(getEnv("CAMPUS_LOG_LEVEL", "info")),
		LogFormat:      strings.ToLower(getEnv("CAMPUS_LOG_FORMAT", "text")),
		MetricsEnabled: getEnvBool("CAMPUS_METRICS_ENABLED", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("max body bytes must be positive")
	}

	if c.Server.RateLimit < 0 || c.Server.RateLimitBurst < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}

	if c.Plugins.HookTimeout < 0 {
		return fmt.Errorf("hook timeout must not be negative")
	}

	// Validate storage config based on type
	switch c.Storage.Type {
	case storage.TypeMemory:
	case storage.TypeRedis:
		if c.Storage.RedisURL == "" {
			return fmt.Errorf("redis URL is required for redis storage")
		}
	case storage.TypePostgres:
		if c.Storage.PostgresURL == "" {
			return fmt.Errorf("postgres URL is required for postgres storage")
		}
	default:
		return fmt.Errorf("invalid storage type: %s (must be memory, redis, or postgres)", c.Storage.Type)
	}

	// Validate observability config
	if _, err := logrus.ParseLevel(c.Observability.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %s", c.Observability.LogLevel)
	}
	switch c.Observability.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Observability.LogFormat)
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList returns a comma separated environment variable or a default
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
