// Package config loads and validates application configuration from YAML files
// and environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Identity      IdentityConfig      `yaml:"identity"`
	Stores        StoresConfig        `yaml:"stores"`
	Roles         RolesConfig         `yaml:"roles"`
	Directory     DirectoryConfig     `yaml:"directory"`
	Deadlines     DeadlinesConfig     `yaml:"deadlines"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig describes HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	HandlerTimeout  time.Duration `yaml:"handler_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORS            CORSConfig    `yaml:"cors"`
}

// CORSConfig describes Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
	MaxAge         int      `yaml:"max_age"`
}

// IdentityConfig describes JWT and identity provider settings.
type IdentityConfig struct {
	Issuer       string            `yaml:"issuer"`
	Audience     string            `yaml:"audience"`
	JWKSURL      string            `yaml:"jwks_url"`
	JWKSCacheTTL time.Duration     `yaml:"jwks_cache_ttl"`
	Algorithms   []string          `yaml:"algorithms"`
	ClaimPaths   map[string]string `yaml:"claim_paths"`
}

// StoresConfig describes persistence settings for all components.
type StoresConfig struct {
	Driver   string         `yaml:"driver"` // "memory" or "postgres"
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
}

// PostgresConfig describes the PostgreSQL connection pool.
type PostgresConfig struct {
	DSNEnv          string        `yaml:"dsn_env"`
	MaxConns        int           `yaml:"max_conns"`
	MinConns        int           `yaml:"min_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// RedisConfig describes the Redis connection used by the reminder log.
type RedisConfig struct {
	Enabled bool   `yaml:"enabled"`
	AddrEnv string `yaml:"addr_env"`
	DB      int    `yaml:"db"`
}

// RolesConfig describes the static role-table overrides.
type RolesConfig struct {
	PolicyFile string `yaml:"policy_file"`
}

// DirectoryConfig points at the static user directory used to validate
// reassignment targets.
type DirectoryConfig struct {
	UsersFile string `yaml:"users_file"`
}

// DeadlinesConfig describes the overdue and reminder sweeps.
type DeadlinesConfig struct {
	SweepInterval   time.Duration `yaml:"sweep_interval"`
	ReminderHorizon time.Duration `yaml:"reminder_horizon"`
	ReminderTTL     time.Duration `yaml:"reminder_ttl"`
	OverdueTTL      time.Duration `yaml:"overdue_ttl"`
}

// NotificationsConfig describes the async notification dispatcher.
type NotificationsConfig struct {
	Buffer int `yaml:"buffer"`
}

// ObservabilityConfig describes logging, tracing, and metrics settings.
type ObservabilityConfig struct {
	LogLevel string        `yaml:"log_level"`
	Tracing  TracingConfig `yaml:"tracing"`
	Metrics  MetricsConfig `yaml:"metrics"`
}

// TracingConfig describes distributed tracing settings.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// MetricsConfig describes Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			HandlerTimeout:  25 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			CORS: CORSConfig{
				AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"Authorization", "Content-Type", "X-Correlation-Id"},
				MaxAge:         86400,
			},
		},
		Identity: IdentityConfig{
			JWKSCacheTTL: 1 * time.Hour,
			Algorithms:   []string{"RS256"},
			ClaimPaths: map[string]string{
				"subject_id": "sub",
				"email":      "email",
				"role":       "role",
				"name":       "name",
			},
		},
		Stores: StoresConfig{
			Driver: "memory",
			Postgres: PostgresConfig{
				DSNEnv:          "GREENROOM_POSTGRES_DSN",
				MaxConns:        25,
				MinConns:        2,
				ConnMaxLifetime: 5 * time.Minute,
			},
			Redis: RedisConfig{
				AddrEnv: "GREENROOM_REDIS_ADDR",
			},
		},
		Deadlines: DeadlinesConfig{
			SweepInterval:   5 * time.Minute,
			ReminderHorizon: 48 * time.Hour,
			ReminderTTL:     24 * time.Hour,
			OverdueTTL:      24 * time.Hour,
		},
		Notifications: NotificationsConfig{
			Buffer: 256,
		},
		Observability: ObservabilityConfig{
			LogLevel: "info",
			Tracing: TracingConfig{
				Exporter:     "otlp",
				SamplingRate: 0.1,
			},
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}

// Load reads a YAML config file, applies environment variable overrides,
// and validates required fields.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required fields are present and valid.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if c.Identity.Issuer == "" {
		errs = append(errs, "identity.issuer is required")
	}
	if c.Identity.JWKSURL == "" {
		errs = append(errs, "identity.jwks_url is required")
	}
	if c.Identity.Audience == "" {
		errs = append(errs, "identity.audience is required")
	}
	switch c.Stores.Driver {
	case "memory", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("stores.driver %q is not one of memory, postgres", c.Stores.Driver))
	}
	if c.Deadlines.SweepInterval <= 0 {
		errs = append(errs, "deadlines.sweep_interval must be positive")
	}
	if c.Deadlines.ReminderHorizon <= 0 {
		errs = append(errs, "deadlines.reminder_horizon must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// applyEnvOverrides reads GREENROOM_* environment variables and overrides
// config values. Only the most commonly overridden fields are supported.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GREENROOM_SERVER_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("GREENROOM_IDENTITY_ISSUER"); v != "" {
		cfg.Identity.Issuer = v
	}
	if v := os.Getenv("GREENROOM_IDENTITY_JWKS_URL"); v != "" {
		cfg.Identity.JWKSURL = v
	}
	if v := os.Getenv("GREENROOM_IDENTITY_AUDIENCE"); v != "" {
		cfg.Identity.Audience = v
	}
	if v := os.Getenv("GREENROOM_STORES_DRIVER"); v != "" {
		cfg.Stores.Driver = v
	}
	if v := os.Getenv("GREENROOM_ROLES_POLICY_FILE"); v != "" {
		cfg.Roles.PolicyFile = v
	}
	if v := os.Getenv("GREENROOM_DIRECTORY_USERS_FILE"); v != "" {
		cfg.Directory.UsersFile = v
	}
	if v := os.Getenv("GREENROOM_OBSERVABILITY_LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
}
