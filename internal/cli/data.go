package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

// addMarketCommands adds account and market data commands.
func addMarketCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newAccountCmd(app))
	rootCmd.AddCommand(newSymbolsCmd(app))
	rootCmd.AddCommand(newPriceCmd(app))
	rootCmd.AddCommand(newCandlesCmd(app))
	rootCmd.AddCommand(newCalcCmd(app))
}

// flagParams copies the flags the user set into params, turning dashes into
// underscores.
func flagParams(cmd *cobra.Command, params map[string]interface{}, names ...string) map[string]interface{} {
	if params == nil {
		params = make(map[string]interface{})
	}
	for _, name := range names {
		f := cmd.Flags().Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		params[strings.ReplaceAll(name, "-", "_")] = f.Value.String()
	}
	return params
}

func newAccountCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "account",
		Short: "Show account balance, equity and margin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.run(cmd, "get_account_info", nil)
		},
	}
}

func newSymbolsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "symbols [group]",
		Short: "List symbols, optionally filtered by a group pattern",
		Example: `  mt5-bridge symbols
  mt5-bridge symbols '*USD*'`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := map[string]interface{}{}
			if len(args) == 1 {
				params["group"] = args[0]
			}
			return app.run(cmd, "get_symbols", params)
		},
	}
}

func newPriceCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "price <symbol>",
		Short: "Show the latest quote of a symbol",
		Example: `  mt5-bridge price EURUSD
  mt5-bridge price XAUUSD --info`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tool := "get_symbol_price"
			if info, _ := cmd.Flags().GetBool("info"); info {
				tool = "get_symbol_info"
			}
			return app.run(cmd, tool, map[string]interface{}{"symbol_name": args[0]})
		},
	}
	cmd.Flags().Bool("info", false, "show the symbol properties instead of the quote")
	return cmd
}

func newCandlesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "candles <symbol> <timeframe>",
		Short: "Show OHLC candles, newest first",
		Example: `  mt5-bridge candles EURUSD H1 --count 24
  mt5-bridge candles EURUSD D1 --from 2025-01-01 --to 2025-01-31`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := map[string]interface{}{
				"symbol_name": args[0],
				"timeframe":   strings.ToUpper(args[1]),
			}
			if cmd.Flags().Changed("from") || cmd.Flags().Changed("to") {
				from, _ := cmd.Flags().GetString("from")
				to, _ := cmd.Flags().GetString("to")
				params["from_date"] = from
				params["to_date"] = to
				return app.run(cmd, "get_candles_by_date", params)
			}
			return app.run(cmd, "get_candles_latest", flagParams(cmd, params, "count"))
		},
	}
	cmd.Flags().Int("count", 100, "number of candles")
	cmd.Flags().String("from", "", "start date ('YYYY-MM-DD' or 'YYYY-MM-DD HH:MM')")
	cmd.Flags().String("to", "", "end date ('YYYY-MM-DD' or 'YYYY-MM-DD HH:MM')")
	return cmd
}

func newCalcCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calc",
		Short: "Margin, profit and price target calculations",
	}

	margin := &cobra.Command{
		Use:     "margin <symbol> <BUY|SELL> <volume>",
		Short:   "Margin required for a trade",
		Example: `  mt5-bridge calc margin EURUSD BUY 0.1`,
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.run(cmd, "calculate_margin", flagParams(cmd, map[string]interface{}{
				"symbol": args[0], "order_type": strings.ToUpper(args[1]), "volume": args[2],
			}, "price"))
		},
	}
	margin.Flags().Float64("price", 0, "open price (default: current quote)")

	profit := &cobra.Command{
		Use:     "profit <symbol> <BUY|SELL> <volume> <open> <close>",
		Short:   "Profit of a trade between two prices",
		Example: `  mt5-bridge calc profit EURUSD BUY 1 1.08 1.09`,
		Args:    cobra.ExactArgs(5),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.run(cmd, "calculate_profit", map[string]interface{}{
				"symbol": args[0], "order_type": strings.ToUpper(args[1]), "volume": args[2],
				"open_price": args[3], "close_price": args[4],
			})
		},
	}

	target := &cobra.Command{
		Use:     "target <symbol> <price>",
		Short:   "Prices a distance in points or percent away",
		Example: `  mt5-bridge calc target EURUSD 1.085 --points 100`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.run(cmd, "calculate_price_target", flagParams(cmd, map[string]interface{}{
				"symbol": args[0], "price": args[1],
			}, "points", "percent"))
		},
	}
	target.Flags().Float64("points", 0, "distance in points")
	target.Flags().Float64("percent", 0, "distance in percent")

	cmd.AddCommand(margin, profit, target)
	return cmd
}
