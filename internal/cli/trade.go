package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// addTradingCommands adds position, order and trade commands.
func addTradingCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newPositionsCmd(app))
	rootCmd.AddCommand(newOrdersCmd(app))
	rootCmd.AddCommand(newTradeCmd(app, "buy"))
	rootCmd.AddCommand(newTradeCmd(app, "sell"))
	rootCmd.AddCommand(newModifyCmd(app))
	rootCmd.AddCommand(newCloseCmd(app))
	rootCmd.AddCommand(newCancelCmd(app))
}

func filterFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("symbol", "s", "", "filter by symbol")
	cmd.Flags().String("group", "", "filter by symbol group pattern (e.g. '*USD*')")
	cmd.Flags().String("ticket", "", "filter by ticket")
	cmd.Flags().Int64("magic", 0, "filter by magic number")
	cmd.Flags().String("type", "", "filter by order type (e.g. BUY, SELL_LIMIT)")
}

func newPositionsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "positions",
		Short: "List open positions",
		Example: `  mt5-bridge positions
  mt5-bridge positions --symbol EURUSD
  mt5-bridge positions --group '*JPY*' -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.run(cmd, "get_positions", flagParams(cmd, nil, "symbol", "group", "ticket", "magic", "type"))
		},
	}
	filterFlags(cmd)
	return cmd
}

func newOrdersCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "List pending orders",
		Example: `  mt5-bridge orders
  mt5-bridge orders --type BUY_LIMIT`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.run(cmd, "get_pending_orders", flagParams(cmd, nil,
				"symbol", "group", "ticket", "magic", "type", "state", "filling", "lifetime"))
		},
	}
	filterFlags(cmd)
	cmd.Flags().String("state", "", "filter by order state")
	cmd.Flags().String("filling", "", "filter by filling policy")
	cmd.Flags().String("lifetime", "", "filter by order lifetime")
	return cmd
}

func newTradeCmd(app *App, side string) *cobra.Command {
	upper := strings.ToUpper(side)
	cmd := &cobra.Command{
		Use:   side + " <symbol> <volume>",
		Short: fmt.Sprintf("Open a %s position, or place a pending %s order with --price", upper, upper),
		Long: fmt.Sprintf(`Open a %[1]s position at the market price.

With --price a pending order is placed instead; its type (%[1]s_LIMIT or
%[1]s_STOP) follows from where the price sits relative to the quote.`, upper),
		Example: fmt.Sprintf(`  mt5-bridge %[1]s EURUSD 0.1
  mt5-bridge %[1]s EURUSD 0.1 --sl 1.08 --tp 1.09
  mt5-bridge %[1]s EURUSD 0.1 --price 1.07`, side),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := map[string]interface{}{
				"symbol":     args[0],
				"volume":     args[1],
				"order_type": upper,
			}
			if cmd.Flags().Changed("price") {
				return app.run(cmd, "place_pending_order",
					flagParams(cmd, params, "price", "sl", "tp", "magic", "comment", "expiration"))
			}
			return app.run(cmd, "place_market_order",
				flagParams(cmd, params, "sl", "tp", "deviation", "magic", "comment"))
		},
	}
	cmd.Flags().Float64P("price", "p", 0, "pending order price (omit for a market order)")
	cmd.Flags().Float64("sl", 0, "stop loss price")
	cmd.Flags().Float64("tp", 0, "take profit price")
	cmd.Flags().Int("deviation", 20, "maximum price deviation in points")
	cmd.Flags().Int64("magic", 0, "magic number")
	cmd.Flags().String("comment", "", "order comment")
	cmd.Flags().String("expiration", "", "pending order expiry ('YYYY-MM-DD HH:MM', UTC)")
	return cmd
}

func newModifyCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "modify <ticket>",
		Short: "Change stop loss and take profit of a position, or a pending order with --pending",
		Example: `  mt5-bridge modify 100001 --sl 1.08 --tp 1.095
  mt5-bridge modify 100002 --pending --price 1.075`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := map[string]interface{}{"ticket": args[0]}
			if pending, _ := cmd.Flags().GetBool("pending"); pending {
				return app.run(cmd, "modify_pending_order", flagParams(cmd, params, "price", "sl", "tp", "expiration"))
			}
			return app.run(cmd, "modify_position", flagParams(cmd, params, "sl", "tp"))
		},
	}
	cmd.Flags().Bool("pending", false, "modify a pending order")
	cmd.Flags().Float64("price", 0, "new pending order price")
	cmd.Flags().Float64("sl", 0, "new stop loss price")
	cmd.Flags().Float64("tp", 0, "new take profit price")
	cmd.Flags().String("expiration", "", "new pending order expiry ('YYYY-MM-DD HH:MM', UTC)")
	return cmd
}

func newCloseCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "close [ticket]",
		Short: "Close a position, or many with --all, --symbol, --profitable or --losing",
		Example: `  mt5-bridge close 100001
  mt5-bridge close 100001 --volume 0.05
  mt5-bridge close --symbol EURUSD
  mt5-bridge close --profitable`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			all, _ := cmd.Flags().GetBool("all")
			profitable, _ := cmd.Flags().GetBool("profitable")
			losing, _ := cmd.Flags().GetBool("losing")
			symbol, _ := cmd.Flags().GetString("symbol")

			switch {
			case len(args) == 1:
				return app.run(cmd, "close_position", flagParams(cmd, map[string]interface{}{"ticket": args[0]}, "volume"))
			case all:
				return app.run(cmd, "close_all_positions", nil)
			case symbol != "":
				return app.run(cmd, "close_all_positions_by_symbol", map[string]interface{}{"symbol": symbol})
			case profitable:
				return app.run(cmd, "close_all_profitable_positions", nil)
			case losing:
				return app.run(cmd, "close_all_losing_positions", nil)
			default:
				return fmt.Errorf("give a ticket or one of --all, --symbol, --profitable, --losing")
			}
		},
	}
	cmd.Flags().Float64("volume", 0, "volume to close (default: the whole position)")
	cmd.Flags().Bool("all", false, "close every open position")
	cmd.Flags().StringP("symbol", "s", "", "close every position on a symbol")
	cmd.Flags().Bool("profitable", false, "close every position in profit")
	cmd.Flags().Bool("losing", false, "close every position at a loss")
	cmd.MarkFlagsMutuallyExclusive("all", "symbol", "profitable", "losing")
	return cmd
}

func newCancelCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel [ticket]",
		Short: "Cancel a pending order, or many with --all or --symbol",
		Example: `  mt5-bridge cancel 100002
  mt5-bridge cancel --all`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			all, _ := cmd.Flags().GetBool("all")
			symbol, _ := cmd.Flags().GetString("symbol")

			switch {
			case len(args) == 1:
				return app.run(cmd, "cancel_pending_order", map[string]interface{}{"ticket": args[0]})
			case all:
				return app.run(cmd, "cancel_all_pending_orders", nil)
			case symbol != "":
				return app.run(cmd, "cancel_pending_orders_by_symbol", map[string]interface{}{"symbol": symbol})
			default:
				return fmt.Errorf("give a ticket or one of --all, --symbol")
			}
		},
	}
	cmd.Flags().Bool("all", false, "cancel every pending order")
	cmd.Flags().StringP("symbol", "s", "", "cancel every pending order on a symbol")
	cmd.MarkFlagsMutuallyExclusive("all", "symbol")
	return cmd
}
