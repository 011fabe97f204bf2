package cli

import (
	"github.com/spf13/cobra"
)

// addHistoryCommands adds the trade history commands.
func addHistoryCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Closed deals, historical orders and statistics",
	}

	deals := &cobra.Command{
		Use:   "deals",
		Short: "List deals in a date range (default: the last 30 days)",
		Example: `  mt5-bridge history deals --from 2025-01-01
  mt5-bridge history deals --position 100001`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.run(cmd, "get_deals", historyParams(cmd, "position"))
		},
	}
	historyFlags(deals)
	deals.Flags().Int64("position", 0, "filter by position ID")

	orders := &cobra.Command{
		Use:   "orders",
		Short: "List historical orders in a date range (default: the last 30 days)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.run(cmd, "get_orders", historyParams(cmd))
		},
	}
	historyFlags(orders)

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Win rate, profit factor and totals of closed deals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.run(cmd, "get_trade_statistics", historyParams(cmd))
		},
	}
	historyFlags(stats)

	cmd.AddCommand(deals, orders, stats)
	rootCmd.AddCommand(cmd)
}

func historyFlags(cmd *cobra.Command) {
	cmd.Flags().String("from", "", "start date ('YYYY-MM-DD' or 'YYYY-MM-DD HH:MM')")
	cmd.Flags().String("to", "", "end date ('YYYY-MM-DD' or 'YYYY-MM-DD HH:MM')")
	cmd.Flags().String("group", "", "filter by symbol group pattern")
	cmd.Flags().Int64("ticket", 0, "filter by ticket")
}

func historyParams(cmd *cobra.Command, extra ...string) map[string]interface{} {
	params := flagParams(cmd, nil, append([]string{"group", "ticket"}, extra...)...)
	if from, _ := cmd.Flags().GetString("from"); from != "" {
		params["from_date"] = from
	}
	if to, _ := cmd.Flags().GetString("to"); to != "" {
		params["to_date"] = to
	}
	return params
}
