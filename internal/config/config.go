// Package config handles loading the nova daemon configuration and the
// persisted backend record.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultBackendURL is the backend used when nothing has been persisted yet.
const DefaultBackendURL = "http://127.0.0.1:8000"

// Config is the root configuration for the nova daemon.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Transports TransportsConfig `mapstructure:"transports"`
	Backend    BackendConfig    `mapstructure:"backend"`
	Offline    OfflineConfig    `mapstructure:"offline"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig holds the health check server settings.
type ServerConfig struct {
	HealthPort int `mapstructure:"health_port"`
	GRPCPort   int `mapstructure:"grpc_port"` // gRPC health protocol, 0 disables
}

// TransportsConfig holds the configuration for each front-end.
type TransportsConfig struct {
	HTTP HTTPConfig `mapstructure:"http"`
}

// HTTPConfig configures the HTTP front-end.
type HTTPConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// BackendConfig controls how the remote backend is located and contacted.
type BackendConfig struct {
	// ConfigFile is the JSON file holding the persisted cloud_server_url.
	ConfigFile    string        `mapstructure:"config_file"`
	DefaultURL    string        `mapstructure:"default_url"`
	DefaultScheme string        `mapstructure:"default_scheme"` // prepended to user-entered URLs without one
	ProbeTimeout  time.Duration `mapstructure:"probe_timeout"`
	SendTimeout   time.Duration `mapstructure:"send_timeout"`
	ProbeInterval time.Duration `mapstructure:"probe_interval"` // cached reachability lifetime
}

// OfflineConfig tunes the local command rules.
type OfflineConfig struct {
	CPUSampleInterval time.Duration     `mapstructure:"cpu_sample_interval"`
	TopProcesses      int               `mapstructure:"top_processes"`
	DiskPath          string            `mapstructure:"disk_path"`
	Applications      map[string]string `mapstructure:"applications"` // spoken name -> executable, merged over the built-in table
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// Load reads the configuration from file, environment variables, and defaults.
// If configFile is non-empty it is used directly; otherwise the standard
// search order applies: ./nova.yaml, ./configs/nova.yaml, /etc/nova/nova.yaml.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.health_port", 8081)
	v.SetDefault("server.grpc_port", 50051)
	v.SetDefault("transports.http.enabled", true)
	v.SetDefault("transports.http.port", 5000)
	v.SetDefault("backend.config_file", "config.json")
	v.SetDefault("backend.default_url", DefaultBackendURL)
	v.SetDefault("backend.default_scheme", "https")
	v.SetDefault("backend.probe_timeout", 2*time.Second)
	v.SetDefault("backend.send_timeout", 10*time.Second)
	v.SetDefault("backend.probe_interval", 30*time.Second)
	v.SetDefault("offline.cpu_sample_interval", time.Second)
	v.SetDefault("offline.top_processes", 5)
	v.SetDefault("offline.disk_path", "/")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("nova")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/nova")
	}

	// Environment variables: NOVA_BACKEND_SEND_TIMEOUT, NOVA_LOGGING_LEVEL, etc.
	v.SetEnvPrefix("NOVA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (optional, env vars and defaults are sufficient)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		slog.Info("no config file found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cfg.Backend.ConfigFile = expandHome(cfg.Backend.ConfigFile)
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Backend.ProbeTimeout <= 0 {
		return fmt.Errorf("backend.probe_timeout must be positive, got %s", c.Backend.ProbeTimeout)
	}
	if c.Backend.SendTimeout <= 0 {
		return fmt.Errorf("backend.send_timeout must be positive, got %s", c.Backend.SendTimeout)
	}
	if c.Backend.ConfigFile == "" {
		return fmt.Errorf("backend.config_file is required")
	}
	if c.Offline.TopProcesses < 1 {
		return fmt.Errorf("offline.top_processes must be at least 1, got %d", c.Offline.TopProcesses)
	}
	return nil
}

// expandHome replaces a leading "~/" with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return home + path[1:]
}

// SetupLogging configures the global slog logger based on config.
func SetupLogging(cfg LoggingConfig) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}
