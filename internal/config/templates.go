package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# mt5-bridge configuration
# Environment variables (MT5_LOGIN, MT5_PASSWORD, MT5_SERVER, MT5_PATH,
# MCP_TRANSPORT, MCP_HOST, MCP_PORT, MT5_TRADING_ENABLED) override these values.

[terminal]
# Path to terminal64.exe; empty searches the standard install locations
path = ""
# Account number, password and trade server; leave empty to use the
# account the terminal is already logged into
login = ""
password = ""
server = ""
# Connection timeout
timeout = "60s"
# Start the terminal in portable mode
portable = false
# Verbose terminal logging
debug = false
# Initialization attempts and backoff base
max_retries = 3
backoff_factor = 1.5
# Minimum time between connection attempts
cooldown_time = "2s"

[server]
# MCP transport: "stdio" or "http"
transport = "stdio"
host = "127.0.0.1"
port = 8000
# Route prefix of the REST API
api_prefix = "/api/v1"

[security]
# Block every trading operation
read_only_mode = false
# Allow trading tools to reach the terminal
trading_enabled = true
# Reject injection-looking comments and symbols
strict_validation = true

[logging]
level = "info"
console = true
file = true
# file_path = "~/.config/mt5-bridge/logs/mt5-bridge.log"
max_size = 100
max_backups = 7
max_age = 30

[simulator]
# Serve a simulated terminal instead of MetaTrader 5
enabled = false
# db_path = "~/.config/mt5-bridge/data/simulator.db"
initial_balance = 10000.0
currency = "USD"
leverage = 100
# Reject trades while the FX market is closed
enforce_sessions = false
`

// Template returns the default config.toml contents.
func Template() string {
	return configTemplate
}

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	// The file may hold the account password.
	if err := os.WriteFile(path, []byte(configTemplate), 0600); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}
	return nil
}
