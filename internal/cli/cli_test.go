package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func clearTerminalEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"MT5_LOGIN", "MT5_PASSWORD", "MT5_SERVER", "MT5_PATH", "MCP_TRANSPORT", "MCP_PORT", "MT5_TRADING_ENABLED"} {
		t.Setenv(key, "")
	}
}

// execute runs one CLI invocation against the simulator kept in dir.
func execute(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	app := &App{Logger: zerolog.Nop(), fixedLogger: true}
	cmd := newRootCmd(app)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", dir, "--simulator"}, args...))
	err := cmd.ExecuteContext(context.Background())
	require.NoError(t, app.close(context.Background()))
	return out.String(), err
}

func TestVersionAndConfig(t *testing.T) {
	clearTerminalEnv(t)
	dir := t.TempDir()

	out, err := execute(t, dir, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "mt5-bridge v"+Version)

	out, err = execute(t, dir, "version", "--json")
	require.NoError(t, err)
	var version map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &version))
	assert.Equal(t, Version, version["version"])

	out, err = execute(t, dir, "config", "path")
	require.NoError(t, err)
	assert.Contains(t, out, "config.toml")

	out, err = execute(t, dir, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid")

	out, err = execute(t, dir, "--password", "hunter2", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Simulator")
	assert.NotContains(t, out, "hunter2")

	out, err = execute(t, dir, "config", "show", "-o", "yaml")
	require.NoError(t, err)
	var settings map[string]interface{}
	require.NoError(t, yaml.Unmarshal([]byte(out), &settings))
	assert.Contains(t, settings, "server")
}

func TestMarketCommands(t *testing.T) {
	clearTerminalEnv(t)
	dir := t.TempDir()

	out, err := execute(t, dir, "account", "--json")
	require.NoError(t, err)
	var account map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &account))
	assert.Equal(t, 10000.0, account["balance"])

	out, err = execute(t, dir, "symbols", "*JPY*", "--json")
	require.NoError(t, err)
	var symbols []string
	require.NoError(t, json.Unmarshal([]byte(out), &symbols))
	assert.Contains(t, symbols, "USDJPY")

	out, err = execute(t, dir, "price", "EURUSD")
	require.NoError(t, err)
	assert.Contains(t, out, "bid:")
	assert.Contains(t, out, "1.085")

	out, err = execute(t, dir, "candles", "EURUSD", "h1", "--count", "4")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 6, "header, separator and four bars")
	assert.Contains(t, lines[0], "close")

	out, err = execute(t, dir, "calc", "profit", "EURUSD", "buy", "1", "1.08", "1.09")
	require.NoError(t, err)
	assert.Equal(t, "1000", strings.TrimSpace(out))

	_, err = execute(t, dir, "price", "NOPE")
	assert.Error(t, err)
}

func TestTradingCommands(t *testing.T) {
	clearTerminalEnv(t)
	dir := t.TempDir()

	out, err := execute(t, dir, "positions")
	require.NoError(t, err)
	assert.Contains(t, out, "No records")

	out, err = execute(t, dir, "buy", "EURUSD", "0.1", "--sl", "1.08")
	require.NoError(t, err)
	assert.Contains(t, out, "BUY EURUSD 0.1 LOT")
	assert.Contains(t, out, "Position ID: 100001")

	out, err = execute(t, dir, "positions", "-o", "json")
	require.NoError(t, err)
	var positions []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &positions))
	require.Len(t, positions, 1)
	assert.Equal(t, "EURUSD", positions[0]["symbol"])
	assert.InDelta(t, 1.08, positions[0]["stop_loss"], 1e-9)

	out, err = execute(t, dir, "sell", "EURUSD", "0.2", "--price", "1.095")
	require.NoError(t, err)
	assert.Contains(t, out, "✓")

	out, err = execute(t, dir, "orders", "--json")
	require.NoError(t, err)
	var orders []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &orders))
	require.Len(t, orders, 1)
	assert.Equal(t, "SELL_LIMIT", orders[0]["type"])

	out, err = execute(t, dir, "modify", "100001", "--tp", "1.1")
	require.NoError(t, err)
	assert.Contains(t, out, "✓")

	_, err = execute(t, dir, "close")
	assert.Error(t, err)

	_, err = execute(t, dir, "close", "999")
	assert.Error(t, err)

	out, err = execute(t, dir, "close", "100001")
	require.NoError(t, err)
	assert.Contains(t, out, "✓")

	out, err = execute(t, dir, "cancel", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "Cancelled 1 of 1 pending orders")

	out, err = execute(t, dir, "history", "deals", "--position", "100001", "-o", "json")
	require.NoError(t, err)
	var deals []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &deals))
	assert.Len(t, deals, 2)
}

func TestNoDriverWithoutSimulator(t *testing.T) {
	clearTerminalEnv(t)
	app := &App{Logger: zerolog.Nop(), fixedLogger: true}
	cmd := newRootCmd(app)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", t.TempDir(), "account"})
	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--simulator")
}

func TestHelpCommands(t *testing.T) {
	clearTerminalEnv(t)
	dir := t.TempDir()

	out, err := execute(t, dir, "commands")
	require.NoError(t, err)
	assert.Contains(t, out, "serve mcp")
	assert.Contains(t, out, "History")

	out, err = execute(t, dir, "quickstart")
	require.NoError(t, err)
	assert.Contains(t, out, "Step 1: Find the config file")
}
