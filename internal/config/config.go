// Package config provides configuration management for the bridge.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"mt5-bridge/internal/connection"
	apperrors "mt5-bridge/internal/errors"
	"mt5-bridge/internal/logging"
	"mt5-bridge/internal/security"
)

// Transports served by the MCP server.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Config holds all application configuration.
type Config struct {
	Terminal  TerminalConfig  `mapstructure:"terminal"`
	Server    ServerConfig    `mapstructure:"server"`
	Security  SecurityConfig  `mapstructure:"security"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Simulator SimulatorConfig `mapstructure:"simulator"`

	file     string
	settings map[string]interface{}
}

// TerminalConfig holds the terminal connection settings.
type TerminalConfig struct {
	Path          string        `mapstructure:"path"`
	Login         string        `mapstructure:"login"`
	Password      string        `mapstructure:"password"`
	Server        string        `mapstructure:"server"`
	Timeout       time.Duration `mapstructure:"timeout"`
	Portable      bool          `mapstructure:"portable"`
	Debug         bool          `mapstructure:"debug"`
	MaxRetries    int           `mapstructure:"max_retries"`
	BackoffFactor float64       `mapstructure:"backoff_factor"`
	CooldownTime  time.Duration `mapstructure:"cooldown_time"`
}

// ServerConfig holds the MCP and HTTP API listener settings.
type ServerConfig struct {
	Transport string `mapstructure:"transport"` // stdio, http
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	APIPrefix string `mapstructure:"api_prefix"`
}

// SecurityConfig holds the trading switch and input checking settings.
type SecurityConfig struct {
	ReadOnlyMode     bool `mapstructure:"read_only_mode"`
	TradingEnabled   bool `mapstructure:"trading_enabled"`
	StrictValidation bool `mapstructure:"strict_validation"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// SimulatorConfig configures the built-in simulated terminal.
type SimulatorConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	DBPath         string  `mapstructure:"db_path"`
	InitialBalance float64 `mapstructure:"initial_balance"`
	Currency       string  `mapstructure:"currency"`
	Leverage       int     `mapstructure:"leverage"`

	// EnforceSessions rejects trades outside FX hours (Sunday 22:00 to Friday 22:00 UTC).
	EnforceSessions bool `mapstructure:"enforce_sessions"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/mt5-bridge"
	}
	return filepath.Join(home, ".config", "mt5-bridge")
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("terminal.timeout", "60s")
	v.SetDefault("terminal.portable", false)
	v.SetDefault("terminal.debug", false)
	v.SetDefault("terminal.max_retries", 3)
	v.SetDefault("terminal.backoff_factor", 1.5)
	v.SetDefault("terminal.cooldown_time", "2s")

	v.SetDefault("server.transport", TransportStdio)
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.api_prefix", "/api/v1")

	v.SetDefault("security.read_only_mode", false)
	v.SetDefault("security.trading_enabled", true)
	v.SetDefault("security.strict_validation", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.file", true)
	v.SetDefault("logging.file_path", filepath.Join(configDir, "logs", "mt5-bridge.log"))
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 7)
	v.SetDefault("logging.max_age", 30)

	v.SetDefault("simulator.enabled", false)
	v.SetDefault("simulator.db_path", filepath.Join(configDir, "data", "simulator.db"))
	v.SetDefault("simulator.initial_balance", 10000.0)
	v.SetDefault("simulator.currency", "USD")
	v.SetDefault("simulator.leverage", 100)
	v.SetDefault("simulator.enforce_sessions", false)
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. A missing
// config.toml is created from the template and the defaults are used.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v, configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, apperrors.Wrap(err, "loading config.toml")
		}
		if err := createTemplateConfig(configDir); err != nil {
			return nil, apperrors.Wrap(err, "creating config.toml")
		}
	}

	cfg := &Config{file: v.ConfigFileUsed()}
	if cfg.file == "" {
		cfg.file = filepath.Join(configDir, "config.toml")
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, apperrors.Wrap(err, "decoding config.toml")
	}

	applyEnvOverrides(cfg)
	v.Set("terminal.login", cfg.Terminal.Login)
	v.Set("terminal.password", cfg.Terminal.Password)
	v.Set("terminal.server", cfg.Terminal.Server)
	v.Set("terminal.path", cfg.Terminal.Path)
	v.Set("server.transport", cfg.Server.Transport)
	v.Set("server.host", cfg.Server.Host)
	v.Set("server.port", cfg.Server.Port)
	v.Set("security.trading_enabled", cfg.Security.TradingEnabled)
	cfg.settings = v.AllSettings()

	if err := cfg.Validate(); err != nil {
		return nil, apperrors.Wrap(err, "validating config")
	}
	return cfg, nil
}

// LoadDotEnv loads .env files into the process environment. Missing files
// are skipped; variables already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return apperrors.Wrapf(err, "loading %s", p)
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MT5_LOGIN"); v != "" {
		cfg.Terminal.Login = v
	}
	if v := os.Getenv("MT5_PASSWORD"); v != "" {
		cfg.Terminal.Password = v
	}
	if v := os.Getenv("MT5_SERVER"); v != "" {
		cfg.Terminal.Server = v
	}
	if v := os.Getenv("MT5_PATH"); v != "" {
		cfg.Terminal.Path = v
	}

	if v := os.Getenv("MCP_TRANSPORT"); v != "" {
		cfg.Server.Transport = strings.ToLower(v)
	}
	if v := os.Getenv("MCP_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("MCP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("MT5_TRADING_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Security.TradingEnabled = enabled
		}
	}
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", apperrors.ErrConfigInvalid, fmt.Sprintf(format, args...))
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Terminal.Timeout <= 0 {
		return invalid("terminal.timeout must be positive")
	}
	if c.Terminal.MaxRetries < 1 {
		return invalid("terminal.max_retries must be at least 1")
	}
	if c.Terminal.BackoffFactor < 1 {
		return invalid("terminal.backoff_factor must be at least 1")
	}
	if c.Terminal.CooldownTime < 0 {
		return invalid("terminal.cooldown_time must be non-negative")
	}
	if c.Terminal.Login != "" {
		if _, err := strconv.ParseInt(c.Terminal.Login, 10, 64); err != nil {
			return invalid("terminal.login must be an account number, got %q", c.Terminal.Login)
		}
	}

	switch c.Server.Transport {
	case TransportStdio, TransportHTTP:
	default:
		return invalid("server.transport must be 'stdio' or 'http', got %q", c.Server.Transport)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return invalid("server.port must be between 1 and 65535")
	}
	if c.Server.APIPrefix != "" && !strings.HasPrefix(c.Server.APIPrefix, "/") {
		return invalid("server.api_prefix must start with '/'")
	}

	if c.Simulator.Enabled {
		if c.Simulator.InitialBalance <= 0 {
			return invalid("simulator.initial_balance must be positive")
		}
		if c.Simulator.Leverage < 1 {
			return invalid("simulator.leverage must be at least 1")
		}
	}
	return nil
}

// TradingAllowed reports whether mutating operations may reach the terminal.
func (c *Config) TradingAllowed() bool {
	return c.Security.TradingEnabled && !c.Security.ReadOnlyMode
}

// File returns the path of the config file in use.
func (c *Config) File() string {
	return c.file
}

// Settings returns every resolved setting with secrets masked.
func (c *Config) Settings() map[string]interface{} {
	settings := c.settings
	if settings == nil {
		settings = map[string]interface{}{}
	}
	return security.MaskSecrets(settings)
}

// Connection returns the connection manager settings.
func (c *Config) Connection() connection.Config {
	return connection.Config{
		Path:          c.Terminal.Path,
		Login:         c.Terminal.Login,
		Password:      c.Terminal.Password,
		Server:        c.Terminal.Server,
		Timeout:       c.Terminal.Timeout,
		Portable:      c.Terminal.Portable,
		MaxRetries:    c.Terminal.MaxRetries,
		BackoffFactor: c.Terminal.BackoffFactor,
		CooldownTime:  c.Terminal.CooldownTime,
	}
}

// Log returns the logger settings. Stdio serving keeps the console on stderr.
func (c *Config) Log(stdio bool) logging.LogConfig {
	level := c.Logging.Level
	if c.Terminal.Debug {
		level = "debug"
	}
	return logging.LogConfig{
		Level:      level,
		Console:    c.Logging.Console,
		File:       c.Logging.File,
		FilePath:   c.Logging.FilePath,
		MaxSize:    c.Logging.MaxSize,
		MaxBackups: c.Logging.MaxBackups,
		MaxAge:     c.Logging.MaxAge,
		Stderr:     stdio,
		NoColor:    stdio,
	}
}
