// Package config loads the server configuration from an optional YAML file
// and SEASKY_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/seasky/seasky-web/pkg/logging"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Environment names.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config is the complete server configuration.
type Config struct {
	Addr       string `yaml:"addr"`
	StaticDir  string `yaml:"static_dir"`
	StaticPort int    `yaml:"static_port"`
	APIURL     string `yaml:"api_url"`
	Env        string `yaml:"env"`

	// Debug enables the registration debug overlay. Nil means "on outside
	// production".
	Debug *bool `yaml:"debug"`

	LogLevel   string `yaml:"log_level"`
	LogJSON    bool   `yaml:"log_json"`
	LogBackend string `yaml:"log_backend"`

	SessionTTL     string   `yaml:"session_ttl"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	Locale         string   `yaml:"locale"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Addr:       ":8080",
		StaticDir:  "./dist",
		StaticPort: 3000,
		APIURL:     "http://localhost:8000",
		Env:        EnvDevelopment,
		LogLevel:   "info",
		LogBackend: "slog",
		SessionTTL: "30m",
		Locale:     "fr",
	}
}

// Load builds the configuration from the process environment. The file
// named by SEASKY_CONFIG is read first when set; environment variables
// take precedence over it.
func Load() (*Config, error) {
	return LoadWith(os.Getenv)
}

// LoadWith is Load with an injectable environment lookup.
func LoadWith(getenv func(string) string) (*Config, error) {
	cfg := Default()

	if path := getenv("SEASKY_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides(getenv func(string) string) error {
	setString := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	setBool := func(key string, dst *bool) error {
		v := getenv(key)
		if v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a boolean", ErrInvalidConfig, key, v)
		}
		*dst = b
		return nil
	}

	setString("SEASKY_ADDR", &c.Addr)
	setString("SEASKY_STATIC_DIR", &c.StaticDir)
	setString("SEASKY_API_URL", &c.APIURL)
	setString("SEASKY_ENV", &c.Env)
	setString("SEASKY_LOG_LEVEL", &c.LogLevel)
	setString("SEASKY_LOG_BACKEND", &c.LogBackend)
	setString("SEASKY_SESSION_TTL", &c.SessionTTL)
	setString("SEASKY_LOCALE", &c.Locale)

	if v := getenv("SEASKY_STATIC_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: SEASKY_STATIC_PORT=%q is not a number", ErrInvalidConfig, v)
		}
		c.StaticPort = port
	}
	if err := setBool("SEASKY_LOG_JSON", &c.LogJSON); err != nil {
		return err
	}
	if getenv("SEASKY_DEBUG") != "" {
		var debug bool
		if err := setBool("SEASKY_DEBUG", &debug); err != nil {
			return err
		}
		c.Debug = &debug
	}
	if v := getenv("SEASKY_ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = splitList(v)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr is empty", ErrInvalidConfig)
	}
	if c.StaticPort <= 0 || c.StaticPort > 65535 {
		return fmt.Errorf("%w: static port %d out of range", ErrInvalidConfig, c.StaticPort)
	}
	if c.Env != EnvDevelopment && c.Env != EnvProduction {
		return fmt.Errorf("%w: unknown env %q", ErrInvalidConfig, c.Env)
	}
	if c.LogBackend != "slog" && c.LogBackend != "zap" {
		return fmt.Errorf("%w: unknown log backend %q (valid: slog, zap)", ErrInvalidConfig, c.LogBackend)
	}
	if d, err := time.ParseDuration(c.SessionTTL); err != nil || d <= 0 {
		return fmt.Errorf("%w: session ttl %q", ErrInvalidConfig, c.SessionTTL)
	}
	if c.Locale == "" {
		return fmt.Errorf("%w: locale is empty", ErrInvalidConfig)
	}
	return nil
}

// IsProduction reports whether the server runs in production.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// DebugEnabled reports whether the debug overlay is shown.
func (c *Config) DebugEnabled() bool {
	if c.Debug != nil {
		return *c.Debug
	}
	return !c.IsProduction()
}

// GetSessionTTL returns the session TTL as a duration.
func (c *Config) GetSessionTTL() time.Duration {
	d, err := time.ParseDuration(c.SessionTTL)
	if err != nil {
		return 30 * time.Minute
	}
	return d
}

// StaticAddr is the listen address of the standalone static server.
func (c *Config) StaticAddr() string {
	return ":" + strconv.Itoa(c.StaticPort)
}

// Level returns the parsed log level.
func (c *Config) Level() slog.Level {
	return logging.ParseLevel(c.LogLevel)
}

// Logger builds the configured logger.
func (c *Config) Logger() logging.Logger {
	return logging.New(c.LogBackend, c.Level(), c.LogJSON, nil)
}
