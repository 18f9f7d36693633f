// Package config loads and validates the search-core configuration using Viper.
//
// Configuration is layered: built-in defaults < YAML config file < environment
// variables. Environment variables use the SRCH_ prefix (e.g., SRCH_DATABASE_HOST
// overrides database.host in the YAML).
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Geometry  GeometryConfig  `mapstructure:"geometry"`
	Audit     AuditConfig     `mapstructure:"audit"`
}

// ServerConfig holds the settings of the long-running serve process
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host               string `mapstructure:"host"`
	Port               int    `mapstructure:"port"`
	Name               string `mapstructure:"name"`
	User               string `mapstructure:"user"`
	Password           string `mapstructure:"password"`
	SSLMode            string `mapstructure:"ssl_mode"`
	MaxConnections     int    `mapstructure:"max_connections"`
	MinIdleConnections int    `mapstructure:"min_idle_connections"`
}

// RedisConfig holds the transform cache connection. An empty URL disables the cache.
type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds observability configuration
type TelemetryConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	ServiceName string        `mapstructure:"service_name"`
	Metrics     MetricsConfig `mapstructure:"metrics"`
}

// MetricsConfig holds Prometheus metrics configuration
type MetricsConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	PrometheusPort int  `mapstructure:"prometheus_port"`
}

// GeometryConfig holds limits applied to location geometries
type GeometryConfig struct {
	// OperationTimeout bounds a single validate or transform call
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
	// TopologyLayer is the name reported in topology errors
	TopologyLayer string `mapstructure:"topology_layer"`
	// TopologyTolerance is the snapping grid of the topology layer, in SRID units
	TopologyTolerance float64 `mapstructure:"topology_tolerance"`
	// MaxAreaKm2 rejects area locations larger than this (0 disables)
	MaxAreaKm2 float64 `mapstructure:"max_area_km2"`
	// MaxLocationsPerRequest caps bulk location writes
	MaxLocationsPerRequest int `mapstructure:"max_locations_per_request"`
	// CacheTTL is how long transformed geometries stay in Redis
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// AuditConfig holds audit partitioning, retention and alerting configuration
type AuditConfig struct {
	// PartitionIntervalHours determines how often partition maintenance runs (default 24)
	PartitionIntervalHours int `mapstructure:"partition_interval_hours"`
	// PurgeIntervalHours determines how often the retention purge runs (default 24)
	PurgeIntervalHours int `mapstructure:"purge_interval_hours"`
	// MonthsAhead is how many future monthly partitions are kept ready (default 3)
	MonthsAhead int `mapstructure:"months_ahead"`
	// FailureAlertThreshold is the number of consecutive job failures that raises an alert
	FailureAlertThreshold int `mapstructure:"failure_alert_threshold"`
	// AlertWebhookURL receives operational alerts as JSON; empty means log only
	AlertWebhookURL string `mapstructure:"alert_webhook_url"`
	// AlertTimeoutSecs bounds each webhook delivery
	AlertTimeoutSecs int `mapstructure:"alert_timeout_secs"`
}

// bindEnvVars explicitly binds environment variables to config keys.
// This is necessary because AutomaticEnv() doesn't work well with nested structs during Unmarshal.
func bindEnvVars(v *viper.Viper) error {
	keys := []string{
		// Server
		"server.host",
		"server.port",
		"server.shutdown_timeout",

		// Database
		"database.host",
		"database.port",
		"database.name",
		"database.user",
		"database.password",
		"database.ssl_mode",
		"database.max_connections",
		"database.min_idle_connections",

		// Redis
		"redis.url",
		"redis.pool_size",
		"redis.min_idle_conns",
		"redis.dial_timeout",
		"redis.read_timeout",
		"redis.write_timeout",

		// Logging
		"logging.level",
		"logging.format",

		// Telemetry
		"telemetry.enabled",
		"telemetry.service_name",
		"telemetry.metrics.enabled",
		"telemetry.metrics.prometheus_port",

		// Geometry
		"geometry.operation_timeout",
		"geometry.topology_layer",
		"geometry.topology_tolerance",
		"geometry.max_area_km2",
		"geometry.max_locations_per_request",
		"geometry.cache_ttl",

		// Audit
		"audit.partition_interval_hours",
		"audit.purge_interval_hours",
		"audit.months_ahead",
		"audit.failure_alert_threshold",
		"audit.alert_webhook_url",
		"audit.alert_timeout_secs",
	}
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("failed to bind env var %q: %w", key, err)
		}
	}
	return nil
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/search-core")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; use defaults and environment variables
	}

	v.SetEnvPrefix("SRCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Expand environment variables in sensitive fields
	cfg.Database.Password = expandEnv(cfg.Database.Password)
	cfg.Redis.URL = expandEnv(cfg.Redis.URL)
	cfg.Audit.AlertWebhookURL = expandEnv(cfg.Audit.AlertWebhookURL)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "search_core")
	v.SetDefault("database.user", "search")
	v.SetDefault("database.ssl_mode", "require")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_idle_connections", 5)

	// Redis defaults
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.service_name", "search-core")
	v.SetDefault("telemetry.metrics.enabled", true)
	v.SetDefault("telemetry.metrics.prometheus_port", 9090)

	// Geometry defaults
	v.SetDefault("geometry.operation_timeout", "2s")
	v.SetDefault("geometry.topology_layer", "search_locations_topo")
	v.SetDefault("geometry.topology_tolerance", 1e-6)
	v.SetDefault("geometry.max_area_km2", 100000.0)
	v.SetDefault("geometry.max_locations_per_request", 100)
	v.SetDefault("geometry.cache_ttl", "1h")

	// Audit defaults
	v.SetDefault("audit.partition_interval_hours", 24)
	v.SetDefault("audit.purge_interval_hours", 24)
	v.SetDefault("audit.months_ahead", 3)
	v.SetDefault("audit.failure_alert_threshold", 3)
	v.SetDefault("audit.alert_webhook_url", "")
	v.SetDefault("audit.alert_timeout_secs", 10)
}

// expandEnv expands environment variables in the format ${VAR_NAME}
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database.user is required")
	}

	if c.Redis.URL != "" {
		if u, err := url.Parse(c.Redis.URL); err != nil || (u.Scheme != "redis" && u.Scheme != "rediss") {
			return fmt.Errorf("invalid redis.url: must be a redis:// or rediss:// URL")
		}
	}

	if c.Geometry.OperationTimeout <= 0 {
		return fmt.Errorf("geometry.operation_timeout must be positive")
	}
	if c.Geometry.TopologyTolerance <= 0 {
		return fmt.Errorf("geometry.topology_tolerance must be positive")
	}
	if c.Geometry.MaxAreaKm2 < 0 {
		return fmt.Errorf("geometry.max_area_km2 must not be negative")
	}
	if c.Geometry.MaxLocationsPerRequest < 1 {
		return fmt.Errorf("geometry.max_locations_per_request must be at least 1")
	}

	if c.Audit.PartitionIntervalHours < 1 {
		return fmt.Errorf("audit.partition_interval_hours must be at least 1")
	}
	if c.Audit.PurgeIntervalHours < 1 {
		return fmt.Errorf("audit.purge_interval_hours must be at least 1")
	}
	if c.Audit.MonthsAhead < 0 || c.Audit.MonthsAhead > 24 {
		return fmt.Errorf("invalid audit.months_ahead: %d (must be between 0 and 24)", c.Audit.MonthsAhead)
	}
	if c.Audit.FailureAlertThreshold < 1 {
		return fmt.Errorf("audit.failure_alert_threshold must be at least 1")
	}
	if c.Audit.AlertWebhookURL != "" {
		if u, err := url.Parse(c.Audit.AlertWebhookURL); err != nil || u.Host == "" {
			return fmt.Errorf("invalid audit.alert_webhook_url: %q", c.Audit.AlertWebhookURL)
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	return nil
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// GetAddress returns the server address in host:port format
func (c *ServerConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
