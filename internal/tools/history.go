package tools

import (
	"context"

	"mt5-bridge/internal/client"
	"mt5-bridge/internal/history"
	"mt5-bridge/internal/models"
)

func historyQuery(c *client.Client, p Params, withPosition bool) (history.Query, error) {
	var q history.Query
	var err error
	if q.From, err = p.Time("from_date"); err != nil {
		return q, err
	}
	if q.To, err = p.Time("to_date"); err != nil {
		return q, err
	}
	if q.Group = p.String("group"); q.Group != "" {
		if err := c.Validator.ValidateGroup(q.Group); err != nil {
			return q, err
		}
	}
	if q.Ticket, err = p.Int("ticket"); err != nil {
		return q, err
	}
	if withPosition {
		if q.Position, err = p.Int("position"); err != nil {
			return q, err
		}
	}
	return q, nil
}

func historyParams(extra ...Param) []Param {
	return append([]Param{
		str("from_date", "Start date (ISO 8601, 'YYYY-MM-DD' or 'YYYY-MM-DD HH:MM'). Defaults to 30 days ago."),
		str("to_date", "End date (ISO 8601, 'YYYY-MM-DD' or 'YYYY-MM-DD HH:MM'). Defaults to now."),
		str("group", "Filter by symbol group pattern (e.g., '*USD*')."),
	}, extra...)
}

func historyTools(c *client.Client) []*tool {
	return []*tool{
		reader("get_deals",
			"Get historical deals as CSV.",
			NewSchema(historyParams(
				integer("ticket", "Filter by deal ticket number."),
				integer("position", "Filter by position ID."),
			)...),
			func(ctx context.Context, p Params) (*Output, error) {
				q, err := historyQuery(c, p, true)
				if err != nil {
					return nil, err
				}
				deals, err := c.History.Deals(ctx, q)
				if err != nil {
					return nil, err
				}
				rows := make([]models.DealRow, len(deals))
				for i, d := range deals {
					rows[i] = models.NewDealRow(d)
				}
				return table(rows)
			}),

		reader("get_orders",
			"Get historical orders as CSV.",
			NewSchema(historyParams(
				integer("ticket", "Filter by order ticket number."),
			)...),
			func(ctx context.Context, p Params) (*Output, error) {
				q, err := historyQuery(c, p, false)
				if err != nil {
					return nil, err
				}
				orders, err := c.History.Orders(ctx, q)
				if err != nil {
					return nil, err
				}
				rows := make([]models.HistoryOrderRow, len(orders))
				for i, o := range orders {
					rows[i] = models.NewHistoryOrderRow(o)
				}
				return table(rows)
			}),

		reader("get_trade_statistics",
			"Get closed trade statistics (net profit, gross profit and loss, win rate, largest trades) over a history window.",
			NewSchema(historyParams()...),
			func(ctx context.Context, p Params) (*Output, error) {
				q, err := historyQuery(c, p, false)
				if err != nil {
					return nil, err
				}
				stats, err := c.History.Statistics(ctx, q)
				if err != nil {
					return nil, err
				}
				return object(stats)
			}),
	}
}
