package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/claude/repcam/internal/counter"
	"github.com/claude/repcam/internal/pose"
	"gopkg.in/yaml.v3"
)

// Checkpoint backends.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Auth       AuthConfig       `yaml:"auth"`
	Tailscale  TailscaleConfig  `yaml:"tailscale"`
	Counter    counter.Config   `yaml:"counter"`
	Detector   DetectorConfig   `yaml:"detector"`
	Sessions   SessionsConfig   `yaml:"sessions"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// AuthConfig protects the REST API and /mcp when APIKey is set. The WebSocket endpoint
// stays open so browsers can connect without custom headers.
type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

// DetectorConfig describes the external pose estimator process. An empty
// Command disables image frames; clients must then send joints.
type DetectorConfig struct {
	Command       string        `yaml:"command"`
	Args          []string      `yaml:"args"`
	Side          string        `yaml:"side"`
	MinVisibility float64       `yaml:"min_visibility"`
	Timeout       time.Duration `yaml:"timeout"`
	Annotate      bool          `yaml:"annotate"`
}

type SessionsConfig struct {
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
	CheckpointTTL time.Duration `yaml:"checkpoint_ttl"`
}

type CheckpointConfig struct {
	Backend   string         `yaml:"backend"`
	SQLiteDir string         `yaml:"sqlite_dir"`
	Database  DatabaseConfig `yaml:"database"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// Default returns the configuration used for keys absent from the file.
func Default() *Config {
	return &Config{
		Server:    ServerConfig{Host: "0.0.0.0", Port: 8000},
		Tailscale: TailscaleConfig{Hostname: "repcam", StateDir: "tsnet-state"},
		Counter:   counter.DefaultConfig(),
		Detector: DetectorConfig{
			Side:          string(pose.SideRight),
			MinVisibility: 0.5,
			Timeout:       2 * time.Second,
		},
		Sessions: SessionsConfig{
			IdleTimeout:   10 * time.Minute,
			CheckpointTTL: 24 * time.Hour,
		},
		Checkpoint: CheckpointConfig{
			Backend:   BackendMemory,
			SQLiteDir: "data",
			Database:  DatabaseConfig{Host: "localhost", Port: 5432, Name: "repcam", User: "repcam"},
		},
	}
}

// Load reads config from a YAML file, then applies environment variable overrides.
// Env vars use the prefix REPCAM_ and underscore-separated paths:
//
//	REPCAM_SERVER_HOST, REPCAM_SERVER_PORT, REPCAM_AUTH_API_KEY,
//	REPCAM_TAILSCALE_ENABLED, REPCAM_TAILSCALE_HOSTNAME,
//	REPCAM_COUNTER_FLEXION_THRESHOLD, REPCAM_COUNTER_EXTENSION_THRESHOLD,
//	REPCAM_COUNTER_DEBOUNCE, REPCAM_COUNTER_WINDOW_SIZE,
//	REPCAM_DETECTOR_COMMAND, REPCAM_DETECTOR_SIDE,
//	REPCAM_CHECKPOINT_BACKEND, REPCAM_CHECKPOINT_SQLITE_DIR,
//	REPCAM_DB_HOST, REPCAM_DB_PORT, REPCAM_DB_NAME,
//	REPCAM_DB_USER, REPCAM_DB_PASSWORD, REPCAM_DB_SSLMODE
//
// An empty path skips the file and uses defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("environment override: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("REPCAM_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("REPCAM_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("REPCAM_AUTH_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}
	if v := os.Getenv("REPCAM_TAILSCALE_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("REPCAM_TAILSCALE_ENABLED: %w", err)
		}
		cfg.Tailscale.Enabled = enabled
	}
	if v := os.Getenv("REPCAM_TAILSCALE_HOSTNAME"); v != "" {
		cfg.Tailscale.Hostname = v
	}

	if v := os.Getenv("REPCAM_COUNTER_FLEXION_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("REPCAM_COUNTER_FLEXION_THRESHOLD: %w", err)
		}
		cfg.Counter.FlexionThreshold = f
	}
	if v := os.Getenv("REPCAM_COUNTER_EXTENSION_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("REPCAM_COUNTER_EXTENSION_THRESHOLD: %w", err)
		}
		cfg.Counter.ExtensionThreshold = f
	}
	if v := os.Getenv("REPCAM_COUNTER_DEBOUNCE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("REPCAM_COUNTER_DEBOUNCE: %w", err)
		}
		cfg.Counter.Debounce = d
	}
	if v := os.Getenv("REPCAM_COUNTER_WINDOW_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("REPCAM_COUNTER_WINDOW_SIZE: %w", err)
		}
		cfg.Counter.WindowSize = n
	}

	if v := os.Getenv("REPCAM_DETECTOR_COMMAND"); v != "" {
		cfg.Detector.Command = v
	}
	if v := os.Getenv("REPCAM_DETECTOR_SIDE"); v != "" {
		cfg.Detector.Side = v
	}

	if v := os.Getenv("REPCAM_CHECKPOINT_BACKEND"); v != "" {
		cfg.Checkpoint.Backend = v
	}
	if v := os.Getenv("REPCAM_CHECKPOINT_SQLITE_DIR"); v != "" {
		cfg.Checkpoint.SQLiteDir = v
	}
	db := &cfg.Checkpoint.Database
	if v := os.Getenv("REPCAM_DB_HOST"); v != "" {
		db.Host = v
	}
	if v := os.Getenv("REPCAM_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			db.Port = port
		}
	}
	if v := os.Getenv("REPCAM_DB_NAME"); v != "" {
		db.Name = v
	}
	if v := os.Getenv("REPCAM_DB_USER"); v != "" {
		db.User = v
	}
	if v := os.Getenv("REPCAM_DB_PASSWORD"); v != "" {
		db.Password = v
	}
	if v := os.Getenv("REPCAM_DB_SSLMODE"); v != "" {
		db.SSLMode = v
	}
	return nil
}

func (c *Config) validate() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}
	if err := c.Counter.Validate(); err != nil {
		return fmt.Errorf("counter: %w", err)
	}
	if _, err := pose.ParseSide(c.Detector.Side); err != nil {
		return fmt.Errorf("detector.side: %w", err)
	}
	if c.Detector.MinVisibility < 0 || c.Detector.MinVisibility > 1 {
		return fmt.Errorf("detector.min_visibility %.2f must be within [0, 1]", c.Detector.MinVisibility)
	}
	if c.Detector.Timeout < 0 {
		return fmt.Errorf("detector.timeout must not be negative")
	}
	if c.Sessions.IdleTimeout < 0 || c.Sessions.CheckpointTTL < 0 {
		return fmt.Errorf("sessions timeouts must not be negative")
	}

	c.Checkpoint.Backend = strings.ToLower(c.Checkpoint.Backend)
	switch c.Checkpoint.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.Checkpoint.SQLiteDir == "" {
			return fmt.Errorf("checkpoint.sqlite_dir is required for the sqlite backend")
		}
	case BackendPostgres:
		db := c.Checkpoint.Database
		if db.Host == "" {
			return fmt.Errorf("checkpoint.database.host is required")
		}
		if db.Port == 0 {
			return fmt.Errorf("checkpoint.database.port is required")
		}
		if db.Name == "" {
			return fmt.Errorf("checkpoint.database.name is required")
		}
		if db.User == "" {
			return fmt.Errorf("checkpoint.database.user is required")
		}
	default:
		return fmt.Errorf("checkpoint.backend %q must be one of memory, sqlite, postgres", c.Checkpoint.Backend)
	}
	return nil
}
