// Package config loads teamhost configuration from file and environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/neomorfeo/teamhost/internal/domain"
)

// Config holds all configuration for the teamhost service.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Helix     HelixConfig     `mapstructure:"helix"`
	Hosting   HostingConfig   `mapstructure:"hosting"`
	Log       LogConfig       `mapstructure:"log"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Teams     []TeamConfig    `mapstructure:"teams"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds the SQLite database location.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// HelixConfig holds the streaming platform API settings.
type HelixConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	ClientID          string        `mapstructure:"client_id"`
	Token             string        `mapstructure:"token"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

// HostingConfig holds rotation defaults applied to seeded teams.
type HostingConfig struct {
	ControlChannel string        `mapstructure:"control_channel"`
	HostLength     time.Duration `mapstructure:"host_length"`
	RecheckLength  time.Duration `mapstructure:"recheck_length"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds OpenTelemetry resource and exporter settings.
type TelemetryConfig struct {
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`
	Environment    string `mapstructure:"environment"`
	Exporter       string `mapstructure:"exporter"`
}

// TeamConfig is a team registered at startup. Zero durations and an empty
// control channel fall back to HostingConfig.
type TeamConfig struct {
	ID             string        `mapstructure:"id"`
	Name           string        `mapstructure:"name"`
	ControlChannel string        `mapstructure:"control_channel"`
	Channels       []string      `mapstructure:"channels"`
	PreferredTags  []string      `mapstructure:"preferred_tags"`
	HostLength     time.Duration `mapstructure:"host_length"`
	RecheckLength  time.Duration `mapstructure:"recheck_length"`
	Autostart      bool          `mapstructure:"autostart"`
}

// Load reads configuration from file and environment variables.
// An empty configPath looks for teamhost.yaml in the working directory and
// /etc/teamhost; a missing file is not an error. A .env file in the working
// directory is loaded first without overriding variables already set.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		// An explicit path must exist; only the search path is optional.
		if _, err := os.Stat(configPath); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("teamhost")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/teamhost/")
	}

	v.SetEnvPrefix("TEAMHOST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindTelemetryEnv(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_header_timeout", "10s")
	v.SetDefault("server.shutdown_timeout", "5s")

	v.SetDefault("database.path", "teamhost.db")

	v.SetDefault("helix.base_url", "https://api.twitch.tv/helix")
	v.SetDefault("helix.client_id", "")
	v.SetDefault("helix.token", "")
	v.SetDefault("helix.requests_per_second", 5.0)
	v.SetDefault("helix.timeout", "10s")

	v.SetDefault("hosting.control_channel", "")
	v.SetDefault("hosting.host_length", "30m")
	v.SetDefault("hosting.recheck_length", "5m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("telemetry.service_name", "teamhost")
	v.SetDefault("telemetry.service_version", "0.1.0")
	v.SetDefault("telemetry.environment", "development")
	v.SetDefault("telemetry.exporter", "stdout")
}

// bindTelemetryEnv accepts the standard OTEL_* variables alongside the
// TEAMHOST_TELEMETRY_* ones; the prefixed name wins when both are set.
func bindTelemetryEnv(v *viper.Viper) error {
	bindings := map[string]string{
		"service_name":    "OTEL_SERVICE_NAME",
		"service_version": "OTEL_SERVICE_VERSION",
		"environment":     "OTEL_ENVIRONMENT",
		"exporter":        "OTEL_EXPORTER",
	}
	for key, otelName := range bindings {
		prefixed := "TEAMHOST_TELEMETRY_" + strings.ToUpper(key)
		if err := v.BindEnv("telemetry."+key, prefixed, otelName); err != nil {
			return fmt.Errorf("binding telemetry env: %w", err)
		}
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.Helix.BaseURL == "" {
		return errors.New("helix base url is required")
	}
	if c.Hosting.HostLength <= 0 {
		return fmt.Errorf("hosting host_length must be positive, got %s", c.Hosting.HostLength)
	}
	if c.Hosting.RecheckLength <= 0 {
		return fmt.Errorf("hosting recheck_length must be positive, got %s", c.Hosting.RecheckLength)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format: %q (use \"text\" or \"json\")", c.Log.Format)
	}

	if c.Telemetry.ServiceName == "" {
		return errors.New("telemetry service_name is required")
	}
	switch c.Telemetry.Exporter {
	case "stdout", "otlp", "none":
	default:
		return fmt.Errorf("invalid telemetry exporter: %q (use \"stdout\", \"otlp\" or \"none\")", c.Telemetry.Exporter)
	}

	seen := make(map[string]bool, len(c.Teams))
	for i, tc := range c.Teams {
		if tc.ID == "" {
			return fmt.Errorf("teams[%d]: id is required", i)
		}
		if seen[tc.ID] {
			return fmt.Errorf("teams[%d]: duplicate id %q", i, tc.ID)
		}
		seen[tc.ID] = true

		if err := c.Team(tc).Validate(); err != nil {
			return fmt.Errorf("teams[%d]: %w", i, err)
		}
	}

	return nil
}

// Team builds the domain team for a seed, filling unset fields from the
// hosting defaults.
func (c *Config) Team(tc TeamConfig) domain.Team {
	control := tc.ControlChannel
	if control == "" {
		control = c.Hosting.ControlChannel
	}
	host := tc.HostLength
	if host == 0 {
		host = c.Hosting.HostLength
	}
	recheck := tc.RecheckLength
	if recheck == 0 {
		recheck = c.Hosting.RecheckLength
	}
	name := tc.Name
	if name == "" {
		name = tc.ID
	}
	return domain.NewTeam(tc.ID, name, control, tc.Channels, tc.PreferredTags, host, recheck)
}
