package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v9"
)

// Config holds all configuration for the server.
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Environment EnvironmentConfig
	Auth        AuthConfig
	Log         LogConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" envDefault:"127.0.0.1"`
	Port int    `env:"SERVER_PORT" envDefault:"8080"`
	// PortScan is how many ports after Port are tried when Port is taken.
	PortScan        int           `env:"SERVER_PORT_SCAN" envDefault:"10"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Driver string `env:"DB_DRIVER" envDefault:"sqlite3"`
	DSN    string `env:"DB_DSN" envDefault:"data/env-manager.db"`
}

// Environment backends.
const (
	BackendAuto     = "auto"
	BackendRegistry = "registry"
	BackendFile     = "file"
)

// EnvironmentConfig selects the live environment backend.
type EnvironmentConfig struct {
	Backend string `env:"ENV_BACKEND" envDefault:"auto"`
	File    string `env:"ENV_FILE" envDefault:"data/environment.json"`
	// AssumeAdmin overrides the privilege probe. Only honoured by the file backend.
	AssumeAdmin bool `env:"ENV_ASSUME_ADMIN" envDefault:"false"`
}

// AuthConfig holds API authentication configuration.
type AuthConfig struct {
	APIToken string `env:"API_TOKEN"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// ClientConfig configures envctl.
type ClientConfig struct {
	URL     string        `env:"ENVMGR_URL" envDefault:"http://127.0.0.1:8080"`
	Token   string        `env:"ENVMGR_TOKEN"`
	Timeout time.Duration `env:"ENVMGR_TIMEOUT"`
	Log     LogConfig
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(&cfg.Server); err != nil {
		return nil, fmt.Errorf("parsing server config: %w", err)
	}
	if err := env.Parse(&cfg.Database); err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	if err := env.Parse(&cfg.Environment); err != nil {
		return nil, fmt.Errorf("parsing environment config: %w", err)
	}
	if err := env.Parse(&cfg.Auth); err != nil {
		return nil, fmt.Errorf("parsing auth config: %w", err)
	}
	if err := env.Parse(&cfg.Log); err != nil {
		return nil, fmt.Errorf("parsing log config: %w", err)
	}

	return cfg, nil
}

// LoadClient loads envctl configuration from environment variables.
func LoadClient() (*ClientConfig, error) {
	cfg := &ClientConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing client config: %w", err)
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	return cfg, nil
}

// Addr returns the server address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.AddrAt(c.Port)
}

// AddrAt returns the server address for an explicit port.
func (c *ServerConfig) AddrAt(port int) string {
	return fmt.Sprintf("%s:%d", c.Host, port)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535")
	}
	if c.Server.PortScan < 0 {
		return fmt.Errorf("SERVER_PORT_SCAN must not be negative")
	}

	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite3 or postgres, got %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}

	switch c.Environment.Backend {
	case BackendAuto, BackendRegistry:
	case BackendFile:
		if c.Environment.File == "" {
			return fmt.Errorf("ENV_FILE is required when ENV_BACKEND is file")
		}
	default:
		return fmt.Errorf("ENV_BACKEND must be auto, registry or file, got %q", c.Environment.Backend)
	}

	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.Log.Format)
	}

	return nil
}

// AuthEnabled returns true if the API requires a bearer token.
func (c *Config) AuthEnabled() bool {
	return c.Auth.APIToken != ""
}
