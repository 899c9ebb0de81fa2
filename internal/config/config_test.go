package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/neomorfeo/teamhost/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "teamhost.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Path != "teamhost.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "teamhost.db")
	}
	if cfg.Helix.BaseURL != "https://api.twitch.tv/helix" {
		t.Errorf("Helix.BaseURL = %q", cfg.Helix.BaseURL)
	}
	if cfg.Helix.RequestsPerSecond != 5 {
		t.Errorf("Helix.RequestsPerSecond = %v, want 5", cfg.Helix.RequestsPerSecond)
	}
	if cfg.Hosting.HostLength != 30*time.Minute {
		t.Errorf("Hosting.HostLength = %s, want 30m", cfg.Hosting.HostLength)
	}
	if cfg.Hosting.RecheckLength != 5*time.Minute {
		t.Errorf("Hosting.RecheckLength = %s, want 5m", cfg.Hosting.RecheckLength)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("Log = %+v, want info/text", cfg.Log)
	}
	if cfg.Telemetry.ServiceName != "teamhost" || cfg.Telemetry.Exporter != "stdout" {
		t.Errorf("Telemetry = %+v, want teamhost/stdout", cfg.Telemetry)
	}
	if len(cfg.Teams) != 0 {
		t.Errorf("Teams = %+v, want none", cfg.Teams)
	}
}

func TestLoad_TeamSeeds(t *testing.T) {
	path := writeConfig(t, `
hosting:
  control_channel: hostbot
  host_length: 45m
teams:
  - id: crew
    name: The Crew
    channels: [alpha, bravo]
    preferred_tags: [Retro Games]
    autostart: true
  - id: guild
    control_channel: guildbot
    channels: [charlie]
    host_length: 10m
    recheck_length: 1m
`)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Teams) != 2 {
		t.Fatalf("got %d teams, want 2", len(cfg.Teams))
	}
	if !cfg.Teams[0].Autostart || cfg.Teams[1].Autostart {
		t.Errorf("Autostart = [%v %v], want [true false]", cfg.Teams[0].Autostart, cfg.Teams[1].Autostart)
	}

	crew := cfg.Team(cfg.Teams[0])
	if crew.Name != "The Crew" || crew.ControlChannel != "hostbot" {
		t.Errorf("crew = %+v, want name The Crew on hostbot", crew)
	}
	if crew.HostLength != 45*time.Minute || crew.RecheckLength != 5*time.Minute {
		t.Errorf("crew durations = %s/%s, want 45m/5m", crew.HostLength, crew.RecheckLength)
	}
	if len(crew.PreferredTags) != 1 || crew.PreferredTags[0] != "Retro Games" {
		t.Errorf("PreferredTags = %q, want [Retro Games]", crew.PreferredTags)
	}

	guild := cfg.Team(cfg.Teams[1])
	if guild.Name != "guild" {
		t.Errorf("Name = %q, want id fallback %q", guild.Name, "guild")
	}
	if guild.ControlChannel != "guildbot" {
		t.Errorf("ControlChannel = %q, want %q", guild.ControlChannel, "guildbot")
	}
	if guild.HostLength != 10*time.Minute || guild.RecheckLength != time.Minute {
		t.Errorf("guild durations = %s/%s, want 10m/1m", guild.HostLength, guild.RecheckLength)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TEAMHOST_SERVER_PORT", "9191")
	t.Setenv("TEAMHOST_DATABASE_PATH", "/tmp/other.db")
	t.Setenv("TEAMHOST_LOG_FORMAT", "json")

	cfg, err := config.Load(writeConfig(t, "server:\n  port: 8081\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9191 {
		t.Errorf("Server.Port = %d, want 9191", cfg.Server.Port)
	}
	if cfg.Database.Path != "/tmp/other.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/other.db")
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "json")
	}
}

func TestLoad_TelemetryEnv(t *testing.T) {
	t.Setenv("OTEL_SERVICE_NAME", "custom-service")
	t.Setenv("OTEL_ENVIRONMENT", "production")
	t.Setenv("OTEL_EXPORTER", "otlp")
	t.Setenv("TEAMHOST_TELEMETRY_EXPORTER", "none")

	cfg, err := config.Load(writeConfig(t, "telemetry:\n  service_version: 2.0.0\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Telemetry.ServiceName != "custom-service" {
		t.Errorf("ServiceName = %q, want %q", cfg.Telemetry.ServiceName, "custom-service")
	}
	if cfg.Telemetry.ServiceVersion != "2.0.0" {
		t.Errorf("ServiceVersion = %q, want %q from file", cfg.Telemetry.ServiceVersion, "2.0.0")
	}
	if cfg.Telemetry.Environment != "production" {
		t.Errorf("Environment = %q, want %q", cfg.Telemetry.Environment, "production")
	}
	// The prefixed variable takes precedence over OTEL_EXPORTER.
	if cfg.Telemetry.Exporter != "none" {
		t.Errorf("Exporter = %q, want %q", cfg.Telemetry.Exporter, "none")
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Cleanup(func() { os.Unsetenv("TEAMHOST_HELIX_CLIENT_ID") })

	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("TEAMHOST_HELIX_CLIENT_ID=from-dotenv\n"), 0o600); err != nil {
		t.Fatalf("writing .env: %v", err)
	}

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Helix.ClientID != "from-dotenv" {
		t.Errorf("Helix.ClientID = %q, want %q", cfg.Helix.ClientID, "from-dotenv")
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for a missing explicit config file")
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad port", "server:\n  port: 70000\n", "server port"},
		{"bad log level", "log:\n  level: loud\n", "log level"},
		{"bad log format", "log:\n  format: xml\n", "log format"},
		{"bad exporter", "telemetry:\n  exporter: jaeger\n", "telemetry exporter"},
		{"zero host length", "hosting:\n  host_length: 0s\n", "host_length"},
		{"team without id", "teams:\n  - channels: [alpha]\n", "id is required"},
		{"team without channels", "teams:\n  - id: crew\n", "channels"},
		{"duplicate team", "teams:\n  - id: crew\n    channels: [a]\n  - id: crew\n    channels: [b]\n", "duplicate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to mention %q", err, tt.want)
			}
		})
	}
}
