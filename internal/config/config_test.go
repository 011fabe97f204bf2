package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	apperrors "mt5-bridge/internal/errors"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"MT5_LOGIN", "MT5_PASSWORD", "MT5_SERVER", "MT5_PATH", "MCP_TRANSPORT", "MCP_HOST", "MCP_PORT", "MT5_TRADING_ENABLED"} {
		t.Setenv(k, "")
	}
}

func TestLoadCreatesTemplate(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "config.toml")); err != nil {
		t.Errorf("template not written: %v", err)
	}

	if cfg.Terminal.Timeout != 60*time.Second || cfg.Terminal.MaxRetries != 3 || cfg.Terminal.BackoffFactor != 1.5 {
		t.Errorf("terminal = %+v", cfg.Terminal)
	}
	if cfg.Terminal.CooldownTime != 2*time.Second {
		t.Errorf("cooldown = %v", cfg.Terminal.CooldownTime)
	}
	if cfg.Server.Transport != TransportStdio || cfg.Server.Port != 8000 || cfg.Server.APIPrefix != "/api/v1" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if !cfg.TradingAllowed() {
		t.Error("trading should be allowed by default")
	}

	conn := cfg.Connection()
	if conn.MaxRetries != 3 || conn.Timeout != 60*time.Second {
		t.Errorf("connection = %+v", conn)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	content := `
[terminal]
login = 5001000
password = "hunter2"
server = "Broker-Demo"
max_retries = 5

[server]
transport = "http"
port = 9000

[security]
read_only_mode = true

[simulator]
enforce_sessions = true
`
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MT5_SERVER", "Broker-Live")
	t.Setenv("MCP_PORT", "9100")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Terminal.Login != "5001000" || cfg.Terminal.Server != "Broker-Live" || cfg.Terminal.MaxRetries != 5 {
		t.Errorf("terminal = %+v", cfg.Terminal)
	}
	if cfg.Server.Transport != TransportHTTP || cfg.Server.Port != 9100 {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.TradingAllowed() {
		t.Error("read-only mode should disable trading")
	}
	if !cfg.Simulator.EnforceSessions {
		t.Error("simulator.enforce_sessions not loaded")
	}

	settings := cfg.Settings()
	terminal := settings["terminal"].(map[string]interface{})
	if terminal["password"] != "****" {
		t.Errorf("password not masked: %v", terminal["password"])
	}
}

func TestLoadMalformedFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[terminal\nlogin = "), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := Load(dir)
	if err == nil || !strings.HasPrefix(err.Error(), "loading config.toml: ") {
		t.Errorf("err = %v", err)
	}
	if errors.Unwrap(err) == nil {
		t.Error("cause not wrapped")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Terminal: TerminalConfig{Timeout: time.Second, MaxRetries: 1, BackoffFactor: 1},
			Server:   ServerConfig{Transport: TransportStdio, Port: 8000, APIPrefix: "/api/v1"},
		}
	}

	tests := []struct {
		name string
		edit func(*Config)
		ok   bool
	}{
		{"valid", func(c *Config) {}, true},
		{"zero timeout", func(c *Config) { c.Terminal.Timeout = 0 }, false},
		{"no retries", func(c *Config) { c.Terminal.MaxRetries = 0 }, false},
		{"backoff below one", func(c *Config) { c.Terminal.BackoffFactor = 0.5 }, false},
		{"text login", func(c *Config) { c.Terminal.Login = "alice" }, false},
		{"bad transport", func(c *Config) { c.Server.Transport = "sse" }, false},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, false},
		{"bad prefix", func(c *Config) { c.Server.APIPrefix = "api" }, false},
		{"simulator balance", func(c *Config) { c.Simulator.Enabled = true; c.Simulator.Leverage = 100 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.edit(cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, apperrors.ErrConfigInvalid) {
				t.Errorf("err = %v, want ErrConfigInvalid", err)
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	os.Unsetenv("MT5_LOGIN")
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("MT5_LOGIN=7007007\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("MT5_LOGIN") })

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatal(err)
	}
	if os.Getenv("MT5_LOGIN") != "7007007" {
		t.Errorf("MT5_LOGIN = %q", os.Getenv("MT5_LOGIN"))
	}

	bad := filepath.Join(dir, "bad.env")
	if err := os.WriteFile(bad, []byte("MT5_SERVER=\"Broker-Demo\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := LoadDotEnv(bad); err == nil || !strings.HasPrefix(err.Error(), "loading "+bad+": ") {
		t.Errorf("malformed .env: %v", err)
	}
}
