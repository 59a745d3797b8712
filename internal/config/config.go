// ABOUTME: Configuration loading for weather-mcp.
// ABOUTME: YAML files with ${ENV} expansion, or pure environment variables.

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config represents the complete weather-mcp configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Auth    AuthConfig    `yaml:"auth"`
	Logging LoggingConfig `yaml:"logging"`
	Stdio   StdioConfig   `yaml:"stdio"`
}

// ServerConfig holds HTTP transport configuration.
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" env:"WEATHER_MCP_HTTP_ADDR" envDefault:":8000"`
}

// AuthConfig holds the Entra ID (Azure AD) bearer-token gate configuration.
// Running without a tenant/client requires Disabled to be set explicitly;
// missing credentials are a startup error, never a silent downgrade.
type AuthConfig struct {
	TenantID     string `yaml:"tenant_id" env:"AZURE_AD_TENANT_ID"`
	ClientID     string `yaml:"client_id" env:"AZURE_AD_CLIENT_ID"`
	Disabled     bool   `yaml:"disabled" env:"WEATHER_MCP_AUTH_DISABLED"`
	RequiredRole string `yaml:"required_role" env:"WEATHER_MCP_REQUIRED_ROLE"`
}

// Enabled reports whether the auth gate should be mounted.
func (a AuthConfig) Enabled() bool { return !a.Disabled }

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"WEATHER_MCP_LOG_LEVEL" envDefault:"info"`
	Format string `yaml:"format" env:"WEATHER_MCP_LOG_FORMAT" envDefault:"text"`
}

// StdioConfig holds stdio transport configuration.
type StdioConfig struct {
	ShutdownGrace time.Duration `yaml:"-"`

	// Raw string value for YAML/env unmarshaling
	ShutdownGraceRaw string `yaml:"shutdown_grace" env:"WEATHER_MCP_SHUTDOWN_GRACE"`
}

// Load reads configuration from the given YAML path, or from environment
// variables when the path is empty. Environment variables in the format
// ${VAR_NAME} are expanded inside YAML files.
func Load(path string) (*Config, error) {
	if path == "" {
		return FromEnv()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if cfg.Server.HTTPAddr == "" {
		cfg.Server.HTTPAddr = ":8000"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}

	return finish(&cfg)
}

// FromEnv builds the configuration from environment variables only.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return finish(&cfg)
}

func finish(cfg *Config) (*Config, error) {
	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding
// environment variable values. Unset variables become empty strings.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
func (c *Config) Validate() error {
	if c.Auth.Enabled() {
		if c.Auth.TenantID == "" {
			return fmt.Errorf("auth.tenant_id is required (set auth.disabled: true to run without authentication)")
		}
		if c.Auth.ClientID == "" {
			return fmt.Errorf("auth.client_id is required (set auth.disabled: true to run without authentication)")
		}
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json; got %q", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values.
func parseDurations(cfg *Config) error {
	if cfg.Stdio.ShutdownGraceRaw != "" {
		d, err := time.ParseDuration(cfg.Stdio.ShutdownGraceRaw)
		if err != nil {
			return fmt.Errorf("parsing shutdown_grace %q: %w", cfg.Stdio.ShutdownGraceRaw, err)
		}
		cfg.Stdio.ShutdownGrace = d
	}
	return nil
}
