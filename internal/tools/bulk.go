package tools

import (
	"context"

	"mt5-bridge/internal/client"
	"mt5-bridge/internal/orders"
)

func bulkTools(c *client.Client) []*tool {
	all := func(run func(context.Context) (*orders.Result, error)) handler {
		return func(ctx context.Context, p Params) (*Output, error) {
			return result(run(ctx))
		}
	}
	bySymbol := func(run func(context.Context, string) (*orders.Result, error)) handler {
		return func(ctx context.Context, p Params) (*Output, error) {
			symbol := p.String("symbol")
			if err := c.Validator.ValidateSymbol(symbol); err != nil {
				return nil, err
			}
			return result(run(ctx, symbol))
		}
	}
	symbolOnly := NewSchema(str("symbol", "Symbol name (e.g., 'EURUSD').").required())

	return []*tool{
		trader("close_all_positions",
			"Close every open position at the market price.",
			NewSchema(), all(c.Orders.CloseAllPositions)),
		trader("close_all_positions_by_symbol",
			"Close every open position on a symbol.",
			symbolOnly, bySymbol(c.Orders.CloseAllPositionsBySymbol)),
		trader("close_all_profitable_positions",
			"Close every open position currently in profit.",
			NewSchema(), all(c.Orders.CloseAllProfitablePositions)),
		trader("close_all_losing_positions",
			"Close every open position currently at a loss.",
			NewSchema(), all(c.Orders.CloseAllLosingPositions)),
		trader("cancel_all_pending_orders",
			"Cancel every pending order.",
			NewSchema(), all(c.Orders.CancelAllPendingOrders)),
		trader("cancel_pending_orders_by_symbol",
			"Cancel every pending order on a symbol.",
			symbolOnly, bySymbol(c.Orders.CancelPendingOrdersBySymbol)),
	}
}
