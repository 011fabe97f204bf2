// Package cli provides the command-line interface of the terminal bridge.
package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"mt5-bridge/internal/client"
	"mt5-bridge/internal/config"
	"mt5-bridge/internal/logging"
	"mt5-bridge/internal/tools"
	"mt5-bridge/pkg/utils"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2025-01-15"
)

// App holds the application dependencies. The terminal client is created on
// first use so that config and version commands work without a terminal.
type App struct {
	Config *config.Config
	Logger zerolog.Logger

	// fixedLogger keeps Logger instead of building one from the config.
	fixedLogger bool
	client      *client.Client
	registry    *tools.Registry
}

// Execute runs the CLI with args and releases the terminal client afterwards.
func Execute(ctx context.Context, args []string) error {
	app := &App{}
	rootCmd := newRootCmd(app)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	if cerr := app.close(context.Background()); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func newRootCmd(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "mt5-bridge",
		Short: "MetaTrader 5 bridge - MCP and REST access to a trading terminal",
		Long: `mt5-bridge exposes a MetaTrader 5 terminal to language-model agents and HTTP
clients. It serves the terminal as MCP tools (stdio or HTTP), as a REST API
with an OpenAPI description, and as a command-line client.

Use 'mt5-bridge --simulator' to run against the built-in simulated terminal.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.load(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config directory (default: ~/.config/mt5-bridge)")
	flags.Bool("json", false, "output in JSON format")
	flags.StringP("output", "o", FormatTable, "output format (table, json, yaml)")
	flags.Bool("debug", false, "enable debug logging")
	flags.String("login", "", "terminal account number (or MT5_LOGIN)")
	flags.String("password", "", "terminal account password (or MT5_PASSWORD)")
	flags.String("server", "", "trade server name (or MT5_SERVER)")
	flags.String("path", "", "terminal executable path (or MT5_PATH)")
	flags.Bool("simulator", false, "use the built-in simulated terminal")

	addCoreCommands(rootCmd, app)
	addHelpCommands(rootCmd)
	addServeCommands(rootCmd, app)
	addMarketCommands(rootCmd, app)
	addTradingCommands(rootCmd, app)
	addHistoryCommands(rootCmd, app)

	return rootCmd
}

// load reads the configuration, applies the global flags and builds the
// logger.
func (a *App) load(cmd *cobra.Command) error {
	dir, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(dir)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	for flag, target := range map[string]*string{
		"login":    &cfg.Terminal.Login,
		"password": &cfg.Terminal.Password,
		"server":   &cfg.Terminal.Server,
		"path":     &cfg.Terminal.Path,
	} {
		if flags.Changed(flag) {
			*target, _ = flags.GetString(flag)
		}
	}
	if sim, _ := flags.GetBool("simulator"); sim {
		cfg.Simulator.Enabled = true
	}
	debug, _ := flags.GetBool("debug")
	if debug {
		cfg.Terminal.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.Config = cfg

	if !a.fixedLogger {
		a.Logger = logging.NewLoggerWithConfig(cfg.Log(servesStdio(cmd, cfg)))
	}
	if debug {
		logging.SetDebugLevel()
		a.Logger = a.Logger.Level(zerolog.DebugLevel)
	}
	return nil
}

// servesStdio reports whether cmd will speak JSON-RPC on stdout.
func servesStdio(cmd *cobra.Command, cfg *config.Config) bool {
	if cmd.Name() != "mcp" || cmd.Parent() == nil || cmd.Parent().Name() != "serve" {
		return false
	}
	transport := cfg.Server.Transport
	if f := cmd.Flags().Lookup("transport"); f != nil && f.Changed {
		transport = f.Value.String()
	}
	return strings.EqualFold(transport, config.TransportStdio)
}

// Client returns the connected terminal client, creating it on first use.
func (a *App) Client(ctx context.Context) (*client.Client, error) {
	if a.client != nil {
		return a.client, nil
	}
	c, err := client.FromConfig(a.Config, a.Logger)
	if err != nil {
		if errors.Is(err, client.ErrNoDriver) {
			return nil, fmt.Errorf("%w; run with --simulator or set simulator.enabled", err)
		}
		return nil, err
	}
	if err := c.Connect(ctx); err != nil {
		_ = c.Close(ctx)
		return nil, err
	}
	a.client = c
	return c, nil
}

// Tools returns the tool registry over the connected client.
func (a *App) Tools(ctx context.Context) (*tools.Registry, error) {
	if a.registry != nil {
		return a.registry, nil
	}
	c, err := a.Client(ctx)
	if err != nil {
		return nil, err
	}
	reg, err := tools.New(c)
	if err != nil {
		return nil, err
	}
	a.registry = reg
	return reg, nil
}

// run calls a tool and renders its result.
func (a *App) run(cmd *cobra.Command, name string, params map[string]interface{}) error {
	reg, err := a.Tools(cmd.Context())
	if err != nil {
		return err
	}
	out, err := reg.Call(cmd.Context(), name, params)
	if err != nil {
		return err
	}
	return NewOutput(cmd).Tool(out)
}

func (a *App) close(ctx context.Context) error {
	if a.client == nil {
		return nil
	}
	err := a.client.Close(ctx)
	a.client = nil
	a.registry = nil
	return err
}

// addCoreCommands adds core utility commands.
func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsStructured() {
				return output.Structured(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("mt5-bridge v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate the application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsStructured() {
				return output.Structured(app.Config.Settings())
			}
			return showConfig(output, app.Config)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsStructured() {
				return output.Structured(map[string]string{"path": app.Config.File()})
			}
			output.Println(app.Config.File())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsStructured() {
				return output.Structured(map[string]bool{"valid": true})
			}
			output.Success("✓ Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) error {
	masked := "(not set)"
	if cfg.Terminal.Password != "" {
		masked = "********"
	}

	output.Bold("Terminal")
	output.Printf("  Login:           %s\n", orDash(cfg.Terminal.Login))
	output.Printf("  Password:        %s\n", masked)
	output.Printf("  Server:          %s\n", orDash(cfg.Terminal.Server))
	output.Printf("  Path:            %s\n", orDash(cfg.Terminal.Path))
	output.Printf("  Timeout:         %s\n", FormatDuration(cfg.Terminal.Timeout))
	output.Printf("  Max Retries:     %d\n", cfg.Terminal.MaxRetries)
	output.Println()

	output.Bold("Server")
	output.Printf("  Transport:       %s\n", cfg.Server.Transport)
	output.Printf("  Listen:          %s:%d\n", cfg.Server.Host, cfg.Server.Port)
	output.Printf("  API Prefix:      %s\n", cfg.Server.APIPrefix)
	output.Println()

	output.Bold("Security")
	output.Printf("  Trading Enabled: %v\n", cfg.Security.TradingEnabled)
	output.Printf("  Read Only:       %v\n", cfg.Security.ReadOnlyMode)
	output.Printf("  Strict Checks:   %v\n", cfg.Security.StrictValidation)
	output.Println()

	output.Bold("Simulator")
	output.Printf("  Enabled:         %v\n", cfg.Simulator.Enabled)
	output.Printf("  Balance:         %s\n", utils.FormatMoney(cfg.Simulator.InitialBalance, cfg.Simulator.Currency))
	output.Printf("  Leverage:        1:%d\n", cfg.Simulator.Leverage)
	output.Printf("  Database:        %s\n", orDash(cfg.Simulator.DBPath))
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
