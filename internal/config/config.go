// Package config provides configuration management for ezstream using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultServerPort         = 8080
	defaultServerTimeout      = 30 * time.Second
	defaultShutdownTimeout    = 10 * time.Second
	defaultMaxOpenConns       = 25
	defaultMaxIdleConns       = 10
	defaultConnMaxIdleTime    = 30 * time.Minute
	defaultSweepInterval      = 15 * time.Second
	defaultHeartbeatInterval  = 5 * time.Second
	defaultHeartbeatTimeout   = 15 * time.Second
	defaultHealthCheckPeriod  = 5 * time.Second
	defaultAckTimeout         = 30 * time.Second
	defaultStopTimeout        = 20 * time.Second
	defaultSnapshotTTL        = 5 * time.Minute
	defaultMaxWorkerStreams   = 4
	defaultFreeTierStreams    = 1
	defaultEventWriteTimeout  = 10 * time.Second
	defaultEventBatchTimeout  = time.Second
	defaultCleanupSweep       = time.Minute
	defaultCleanupGracePeriod = time.Minute
)

// Config holds all configuration for the application.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Fleet      FleetConfig      `mapstructure:"fleet"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher"`
	Progress   ProgressConfig   `mapstructure:"progress"`
	Quota      QuotaConfig      `mapstructure:"quota"`
	Cleanup    CleanupConfig    `mapstructure:"cleanup"`
	Events     EventsConfig     `mapstructure:"events"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres, mysql
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// StorageConfig holds video asset storage configuration.
type StorageConfig struct {
	// BaseDir is the root directory holding uploaded video assets.
	// All asset paths referenced by playlist items resolve inside this directory.
	BaseDir string `mapstructure:"base_dir"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// FleetConfig holds worker fleet registry configuration.
type FleetConfig struct {
	// HeartbeatInterval is how often workers are expected to report in.
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	// HeartbeatTimeout marks a worker unhealthy after this long without a heartbeat.
	HeartbeatTimeout time.Duration `mapstructure:"heartbeat_timeout"`
	// HealthCheckPeriod is the interval of the health sweep.
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	// DefaultMaxStreams is the per-worker concurrent stream cap when a worker
	// registers without declaring its own capacity.
	DefaultMaxStreams int `mapstructure:"default_max_streams"`
}

// SchedulerConfig holds the schedule sweep configuration.
type SchedulerConfig struct {
	// SweepInterval is how often scheduled start/end times are evaluated.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// DispatcherConfig holds worker command dispatch configuration.
type DispatcherConfig struct {
	// AckTimeout bounds how long a start command waits for the worker acknowledgement.
	AckTimeout time.Duration `mapstructure:"ack_timeout"`
	// StopTimeout bounds how long a stop command waits for the worker acknowledgement.
	StopTimeout time.Duration `mapstructure:"stop_timeout"`
}

// ProgressConfig holds progress tracker configuration.
type ProgressConfig struct {
	// SnapshotTTL is how long terminal snapshots are retained before cleanup.
	SnapshotTTL time.Duration `mapstructure:"snapshot_ttl"`
}

// QuotaConfig holds quota enforcement configuration.
type QuotaConfig struct {
	// DefaultMaxConcurrent is the concurrent-stream limit applied to owners
	// without a subscription record (free tier).
	DefaultMaxConcurrent int `mapstructure:"default_max_concurrent"`
}

// CleanupConfig holds the asset cleanup sweep configuration.
type CleanupConfig struct {
	// SweepInterval is how often the cleanup agent scans for completed
	// ephemeral streams whose assets can be removed.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	// GracePeriod delays asset removal after a stream completes, leaving a
	// window for operators to inspect or retain the files.
	GracePeriod time.Duration `mapstructure:"grace_period"`
}

// EventsConfig holds lifecycle event publishing configuration.
type EventsConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with EZSTREAM_ and use underscores for nesting.
// Example: EZSTREAM_SERVER_PORT=8080.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/ezstream")
		v.AddConfigPath("$HOME/.ezstream")
	}

	v.SetEnvPrefix("EZSTREAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is OK - we'll use defaults and env vars
	}

	return FromViper(v)
}

// FromViper unmarshals and validates configuration from an already
// initialized viper instance. Callers that manage their own viper (the CLI
// binds flags and reads the config file before commands run) use this
// instead of Load.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file to ensure defaults are in place.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("server.cors_origins", []string{"*"})

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "ezstream.db")
	v.SetDefault("database.max_open_conns", defaultMaxOpenConns)
	v.SetDefault("database.max_idle_conns", defaultMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", defaultConnMaxIdleTime)
	v.SetDefault("database.log_level", "warn")

	// Storage defaults
	v.SetDefault("storage.base_dir", "./data")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Fleet defaults
	v.SetDefault("fleet.heartbeat_interval", defaultHeartbeatInterval)
	v.SetDefault("fleet.heartbeat_timeout", defaultHeartbeatTimeout)
	v.SetDefault("fleet.health_check_period", defaultHealthCheckPeriod)
	v.SetDefault("fleet.default_max_streams", defaultMaxWorkerStreams)

	// Scheduler defaults
	v.SetDefault("scheduler.sweep_interval", defaultSweepInterval)

	// Dispatcher defaults
	v.SetDefault("dispatcher.ack_timeout", defaultAckTimeout)
	v.SetDefault("dispatcher.stop_timeout", defaultStopTimeout)

	// Progress defaults
	v.SetDefault("progress.snapshot_ttl", defaultSnapshotTTL)

	// Quota defaults
	v.SetDefault("quota.default_max_concurrent", defaultFreeTierStreams)

	// Cleanup defaults
	v.SetDefault("cleanup.sweep_interval", defaultCleanupSweep)
	v.SetDefault("cleanup.grace_period", defaultCleanupGracePeriod)

	// Events defaults
	v.SetDefault("events.enabled", false)
	v.SetDefault("events.brokers", []string{"localhost:9092"})
	v.SetDefault("events.topic", "ezstream.lifecycle")
	v.SetDefault("events.write_timeout", defaultEventWriteTimeout)
	v.SetDefault("events.batch_timeout", defaultEventBatchTimeout)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	validDrivers := map[string]bool{"sqlite": true, "postgres": true, "mysql": true}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("database.driver must be one of: sqlite, postgres, mysql")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir is required")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if c.Fleet.HeartbeatTimeout <= c.Fleet.HeartbeatInterval {
		return fmt.Errorf("fleet.heartbeat_timeout must be greater than fleet.heartbeat_interval")
	}
	if c.Fleet.DefaultMaxStreams < 1 {
		return fmt.Errorf("fleet.default_max_streams must be at least 1")
	}

	if c.Scheduler.SweepInterval < time.Second {
		return fmt.Errorf("scheduler.sweep_interval must be at least 1s")
	}

	if c.Dispatcher.AckTimeout < time.Second {
		return fmt.Errorf("dispatcher.ack_timeout must be at least 1s")
	}

	if c.Cleanup.SweepInterval < time.Second {
		return fmt.Errorf("cleanup.sweep_interval must be at least 1s")
	}
	if c.Cleanup.GracePeriod < 0 {
		return fmt.Errorf("cleanup.grace_period must not be negative")
	}

	if c.Quota.DefaultMaxConcurrent < 0 {
		return fmt.Errorf("quota.default_max_concurrent must not be negative")
	}

	if c.Events.Enabled {
		if len(c.Events.Brokers) == 0 {
			return fmt.Errorf("events.brokers is required when events are enabled")
		}
		if c.Events.Topic == "" {
			return fmt.Errorf("events.topic is required when events are enabled")
		}
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
