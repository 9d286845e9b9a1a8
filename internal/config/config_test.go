package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Stores.Driver != "memory" {
		t.Errorf("Stores.Driver = %q, want memory", cfg.Stores.Driver)
	}
	if cfg.Deadlines.SweepInterval != 5*time.Minute {
		t.Errorf("Deadlines.SweepInterval = %v, want 5m", cfg.Deadlines.SweepInterval)
	}
	if cfg.Deadlines.ReminderHorizon != 48*time.Hour {
		t.Errorf("Deadlines.ReminderHorizon = %v, want 48h", cfg.Deadlines.ReminderHorizon)
	}
	if cfg.Observability.LogLevel != "info" {
		t.Errorf("Observability.LogLevel = %q, want info", cfg.Observability.LogLevel)
	}
	if cfg.Identity.ClaimPaths["subject_id"] != "sub" {
		t.Errorf("ClaimPaths[subject_id] = %q, want sub", cfg.Identity.ClaimPaths["subject_id"])
	}
	if cfg.Notifications.Buffer != 256 {
		t.Errorf("Notifications.Buffer = %d, want 256", cfg.Notifications.Buffer)
	}
}

func TestLoad_valid(t *testing.T) {
	cfg, err := Load("testdata/valid.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want 15s", cfg.Server.ReadTimeout)
	}
	if got := cfg.Server.CORS.AllowedOrigins; len(got) != 1 || got[0] != "https://studio.example.com" {
		t.Errorf("CORS.AllowedOrigins = %v", got)
	}
	if cfg.Identity.Issuer != "https://auth.example.com" {
		t.Errorf("Identity.Issuer = %q", cfg.Identity.Issuer)
	}
	if len(cfg.Identity.Algorithms) != 2 {
		t.Errorf("Identity.Algorithms = %v, want RS256 and ES256", cfg.Identity.Algorithms)
	}
	if cfg.Stores.Driver != "postgres" {
		t.Errorf("Stores.Driver = %q, want postgres", cfg.Stores.Driver)
	}
	if cfg.Stores.Postgres.MaxConns != 10 {
		t.Errorf("Postgres.MaxConns = %d, want 10", cfg.Stores.Postgres.MaxConns)
	}
	if !cfg.Stores.Redis.Enabled {
		t.Error("Stores.Redis.Enabled = false, want true")
	}
	if cfg.Roles.PolicyFile != "/etc/greenroom/roles.yaml" {
		t.Errorf("Roles.PolicyFile = %q", cfg.Roles.PolicyFile)
	}
	if cfg.Directory.UsersFile != "/etc/greenroom/users.yaml" {
		t.Errorf("Directory.UsersFile = %q", cfg.Directory.UsersFile)
	}
	if cfg.Deadlines.SweepInterval != time.Minute {
		t.Errorf("Deadlines.SweepInterval = %v, want 1m", cfg.Deadlines.SweepInterval)
	}
	if cfg.Deadlines.ReminderHorizon != 72*time.Hour {
		t.Errorf("Deadlines.ReminderHorizon = %v, want 72h", cfg.Deadlines.ReminderHorizon)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Errorf("Observability.LogLevel = %q, want debug", cfg.Observability.LogLevel)
	}
	if !cfg.Observability.Tracing.Enabled || cfg.Observability.Tracing.Exporter != "stdout" {
		t.Errorf("Tracing = %+v", cfg.Observability.Tracing)
	}

	// Defaults the file does not mention survive the merge.
	if cfg.Stores.Postgres.DSNEnv != "GREENROOM_POSTGRES_DSN" {
		t.Errorf("Postgres.DSNEnv = %q", cfg.Stores.Postgres.DSNEnv)
	}
	if cfg.Deadlines.ReminderTTL != 24*time.Hour {
		t.Errorf("Deadlines.ReminderTTL = %v, want 24h", cfg.Deadlines.ReminderTTL)
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load("testdata/does_not_exist.yaml"); err == nil {
		t.Fatal("Load succeeded for a missing file")
	}
}

func TestLoad_missingIdentity(t *testing.T) {
	_, err := Load("testdata/missing_identity.yaml")
	if err == nil {
		t.Fatal("Load succeeded without identity settings")
	}
	for _, want := range []string{"identity.issuer", "identity.jwks_url", "identity.audience"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoad_envOverrides(t *testing.T) {
	t.Setenv("GREENROOM_SERVER_PORT", "7070")
	t.Setenv("GREENROOM_IDENTITY_ISSUER", "https://other.example.com")
	t.Setenv("GREENROOM_STORES_DRIVER", "memory")
	t.Setenv("GREENROOM_OBSERVABILITY_LOG_LEVEL", "warn")

	cfg, err := Load("testdata/valid.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want env override 7070", cfg.Server.Port)
	}
	if cfg.Identity.Issuer != "https://other.example.com" {
		t.Errorf("Identity.Issuer = %q, want env override", cfg.Identity.Issuer)
	}
	if cfg.Stores.Driver != "memory" {
		t.Errorf("Stores.Driver = %q, want env override memory", cfg.Stores.Driver)
	}
	if cfg.Observability.LogLevel != "warn" {
		t.Errorf("Observability.LogLevel = %q, want env override warn", cfg.Observability.LogLevel)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := Defaults()
		cfg.Identity.Issuer = "https://auth.example.com"
		cfg.Identity.JWKSURL = "https://auth.example.com/jwks"
		cfg.Identity.Audience = "greenroom"
		return cfg
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name    string
		mutate  func(*Config)
		mention string
	}{
		{"port zero", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"unknown driver", func(c *Config) { c.Stores.Driver = "sqlite" }, "stores.driver"},
		{"zero sweep interval", func(c *Config) { c.Deadlines.SweepInterval = 0 }, "sweep_interval"},
		{"negative horizon", func(c *Config) { c.Deadlines.ReminderHorizon = -time.Hour }, "reminder_horizon"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate accepted an invalid config")
			}
			if !strings.Contains(err.Error(), tc.mention) {
				t.Errorf("error %q does not mention %s", err, tc.mention)
			}
		})
	}
}
