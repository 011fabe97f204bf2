package cli

import (
	"github.com/spf13/cobra"
)

type helpEntry struct {
	cmd  string
	desc string
}

type helpCategory struct {
	name     string
	commands []helpEntry
}

var commandCategories = []helpCategory{
	{
		name: "Account and Market",
		commands: []helpEntry{
			{"account", "Balance, equity and margin"},
			{"symbols [group]", "List symbols, e.g. '*USD*'"},
			{"price <symbol>", "Latest quote (--info for properties)"},
			{"candles <symbol> <tf>", "OHLC bars by count or date range"},
			{"calc margin|profit|target", "Trade calculations"},
		},
	},
	{
		name: "Trading",
		commands: []helpEntry{
			{"buy|sell <symbol> <volume>", "Market order, or pending with --price"},
			{"positions", "Open positions"},
			{"orders", "Pending orders"},
			{"modify <ticket>", "Change SL/TP or a pending order"},
			{"close [ticket]", "Close one or many positions"},
			{"cancel [ticket]", "Cancel one or many pending orders"},
		},
	},
	{
		name: "History",
		commands: []helpEntry{
			{"history deals", "Executed deals"},
			{"history orders", "Historical orders"},
			{"history stats", "Win rate and profit factor"},
		},
	},
	{
		name: "Serving",
		commands: []helpEntry{
			{"serve mcp", "MCP tools over stdio or HTTP"},
			{"serve api", "REST API with OpenAPI description"},
		},
	},
	{
		name: "Utilities",
		commands: []helpEntry{
			{"config show|path|validate", "Configuration"},
			{"commands", "This list"},
			{"quickstart", "First steps"},
			{"version", "Version information"},
		},
	},
}

func addHelpCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newCommandsCmd())
	rootCmd.AddCommand(newQuickstartCmd())
}

func newCommandsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "commands",
		Short: "List all commands by category",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsStructured() {
				listing := make(map[string]map[string]string, len(commandCategories))
				for _, cat := range commandCategories {
					entries := make(map[string]string, len(cat.commands))
					for _, c := range cat.commands {
						entries[c.cmd] = c.desc
					}
					listing[cat.name] = entries
				}
				return output.Structured(listing)
			}

			for _, cat := range commandCategories {
				output.Bold(cat.name)
				for _, c := range cat.commands {
					output.Printf("  %s %s\n", output.ColoredString(ColorCyan, PadRight(c.cmd, 30)), c.desc)
				}
				output.Println()
			}
			output.Dim("Use 'mt5-bridge help <command>' for details on any command")
			return nil
		},
	}
}

func newQuickstartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quickstart",
		Short: "First steps with the bridge",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			steps := []struct {
				title string
				cmd   string
			}{
				{"Find the config file", "mt5-bridge config path"},
				{"Try the simulated terminal", "mt5-bridge --simulator account"},
				{"Check a quote", "mt5-bridge --simulator price EURUSD"},
				{"Open and close a position", "mt5-bridge --simulator buy EURUSD 0.1 --sl 1.08"},
				{"Connect an MCP client", "mt5-bridge serve mcp"},
				{"Serve the REST API", "mt5-bridge serve api --port 8000"},
			}

			output.Bold("mt5-bridge quick start")
			output.Println()
			for i, s := range steps {
				output.Printf("%s Step %d: %s\n", output.ColoredString(ColorCyan, "→"), i+1, s.title)
				output.Printf("  %s\n\n", output.ColoredString(ColorDim, s.cmd))
			}
			output.Dim("Set MT5_LOGIN, MT5_PASSWORD and MT5_SERVER (or a .env file) for a live terminal.")
			return nil
		},
	}
}
