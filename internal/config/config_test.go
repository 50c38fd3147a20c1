package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTestConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Database: DatabaseConfig{
			Driver:       "sqlite",
			DSN:          "test.db",
			MaxOpenConns: 25,
			MaxIdleConns: 10,
			LogLevel:     "warn",
		},
		Storage: StorageConfig{BaseDir: "./data"},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Fleet: FleetConfig{
			HeartbeatInterval: 5 * time.Second,
			HeartbeatTimeout:  15 * time.Second,
			HealthCheckPeriod: 5 * time.Second,
			DefaultMaxStreams: 4,
		},
		Scheduler:  SchedulerConfig{SweepInterval: 15 * time.Second},
		Dispatcher: DispatcherConfig{AckTimeout: 30 * time.Second, StopTimeout: 20 * time.Second},
		Progress:   ProgressConfig{SnapshotTTL: 5 * time.Minute},
		Quota:      QuotaConfig{DefaultMaxConcurrent: 1},
		Cleanup:    CleanupConfig{SweepInterval: time.Minute, GracePeriod: time.Minute},
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// Server defaults
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)

	// Database defaults
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "ezstream.db", cfg.Database.DSN)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)

	// Logging defaults
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	// Fleet defaults
	assert.Equal(t, 5*time.Second, cfg.Fleet.HeartbeatInterval)
	assert.Equal(t, 15*time.Second, cfg.Fleet.HeartbeatTimeout)
	assert.Equal(t, 4, cfg.Fleet.DefaultMaxStreams)

	// Scheduler defaults
	assert.Equal(t, 15*time.Second, cfg.Scheduler.SweepInterval)

	// Dispatcher defaults
	assert.Equal(t, 30*time.Second, cfg.Dispatcher.AckTimeout)
	assert.Equal(t, 20*time.Second, cfg.Dispatcher.StopTimeout)

	// Cleanup defaults
	assert.Equal(t, time.Minute, cfg.Cleanup.SweepInterval)
	assert.Equal(t, time.Minute, cfg.Cleanup.GracePeriod)

	// Events are off by default
	assert.False(t, cfg.Events.Enabled)
	assert.Equal(t, "ezstream.lifecycle", cfg.Events.Topic)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9090
database:
  driver: sqlite
  dsn: custom.db
scheduler:
  sweep_interval: 30s
fleet:
  default_max_streams: 8
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "custom.db", cfg.Database.DSN)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.SweepInterval)
	assert.Equal(t, 8, cfg.Fleet.DefaultMaxStreams)
	// Untouched sections keep defaults
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("EZSTREAM_SERVER_PORT", "7070")
	t.Setenv("EZSTREAM_DATABASE_DSN", "env.db")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "env.db", cfg.Database.DSN)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:    "invalid port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "server.port",
		},
		{
			name:    "invalid driver",
			mutate:  func(c *Config) { c.Database.Driver = "oracle" },
			wantErr: "database.driver",
		},
		{
			name:    "missing dsn",
			mutate:  func(c *Config) { c.Database.DSN = "" },
			wantErr: "database.dsn",
		},
		{
			name:    "missing base dir",
			mutate:  func(c *Config) { c.Storage.BaseDir = "" },
			wantErr: "storage.base_dir",
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "logging.level",
		},
		{
			name:    "heartbeat timeout below interval",
			mutate:  func(c *Config) { c.Fleet.HeartbeatTimeout = time.Second },
			wantErr: "fleet.heartbeat_timeout",
		},
		{
			name:    "sweep interval too small",
			mutate:  func(c *Config) { c.Scheduler.SweepInterval = 100 * time.Millisecond },
			wantErr: "scheduler.sweep_interval",
		},
		{
			name:    "negative cleanup grace period",
			mutate:  func(c *Config) { c.Cleanup.GracePeriod = -time.Second },
			wantErr: "cleanup.grace_period",
		},
		{
			name: "events enabled without brokers",
			mutate: func(c *Config) {
				c.Events.Enabled = true
				c.Events.Brokers = nil
				c.Events.Topic = "t"
			},
			wantErr: "events.brokers",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestServerConfig_Address(t *testing.T) {
	cfg := ServerConfig{Host: "127.0.0.1", Port: 9000}
	assert.Equal(t, "127.0.0.1:9000", cfg.Address())
}
