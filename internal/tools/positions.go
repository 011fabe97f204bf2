package tools

import (
	"context"

	"mt5-bridge/internal/client"
	"mt5-bridge/internal/models"
	"mt5-bridge/internal/orders"
)

// filter reads the optional query filters present in p.
func filter(c *client.Client, p Params, pending bool) (orders.Filter, error) {
	f := orders.Filter{Ticket: p.String("ticket")}
	if f.Symbol = p.String("symbol"); f.Symbol != "" {
		if err := c.Validator.ValidateSymbol(f.Symbol); err != nil {
			return f, err
		}
	}
	if f.Group = p.String("group"); f.Group != "" {
		if err := c.Validator.ValidateGroup(f.Group); err != nil {
			return f, err
		}
	}
	if p.Has("magic") {
		magic, err := p.Int("magic")
		if err != nil {
			return f, err
		}
		f.Magic = &magic
	}

	var err error
	if f.Type, err = p.Key("type"); err != nil {
		return f, err
	}
	if !pending {
		return f, nil
	}
	if f.State, err = p.Key("state"); err != nil {
		return f, err
	}
	if f.Filling, err = p.Key("filling"); err != nil {
		return f, err
	}
	if f.Lifetime, err = p.Key("lifetime"); err != nil {
		return f, err
	}
	return f, nil
}

func filterParams(pending bool) []Param {
	params := []Param{
		str("symbol", "Symbol name to filter (e.g., 'EURUSD')."),
		str("group", "Symbol group pattern to filter (e.g., '*USD*')."),
		str("ticket", "Ticket ID. A value that is not a number matches nothing."),
		integer("magic", "Magic number to filter."),
		str("type", "Order type name or code (e.g., 'BUY', 'SELL_LIMIT').").names(models.OrderTypes.Names()...),
	}
	if pending {
		params = append(params,
			str("state", "Order state name or code.").names(models.OrderStates.Names()...),
			str("filling", "Filling policy name or code.").names(models.OrderFillings.Names()...),
			str("lifetime", "Order lifetime name or code.").names(models.OrderTimes.Names()...),
		)
	}
	return params
}

func positionTable(positions []models.Position, err error) (*Output, error) {
	if err != nil {
		return nil, err
	}
	return table(orders.PositionRows(positions))
}

func pendingTable(pending []models.Order, err error) (*Output, error) {
	if err != nil {
		return nil, err
	}
	return table(orders.PendingOrderRows(pending))
}

func queryTools(c *client.Client) []*tool {
	symbolOnly := NewSchema(str("symbol", "Symbol name (e.g., 'EURUSD').").required())
	currencyOnly := NewSchema(str("currency", "Currency code (e.g., 'USD').").required())
	ticketOnly := NewSchema(str("ticket", "Ticket ID. A value that is not a number matches nothing.").required())

	symbol := func(p Params) (string, error) {
		s := p.String("symbol")
		return s, c.Validator.ValidateSymbol(s)
	}
	currency := func(p Params) (string, error) {
		s := p.String("currency")
		return s, c.Validator.ValidateCurrency(s)
	}

	return []*tool{
		reader("get_positions",
			"Get open positions as CSV, optionally filtered by symbol, group, ticket, magic number or type.",
			NewSchema(filterParams(false)...),
			func(ctx context.Context, p Params) (*Output, error) {
				f, err := filter(c, p, false)
				if err != nil {
					return nil, err
				}
				return positionTable(c.Orders.Positions(ctx, f))
			}),

		reader("get_all_positions",
			"Get all open positions as CSV.",
			NewSchema(),
			func(ctx context.Context, p Params) (*Output, error) {
				return positionTable(c.Orders.AllPositions(ctx))
			}),

		reader("get_positions_by_symbol",
			"Get open positions for a specific symbol as CSV.",
			symbolOnly,
			func(ctx context.Context, p Params) (*Output, error) {
				s, err := symbol(p)
				if err != nil {
					return nil, err
				}
				return positionTable(c.Orders.PositionsBySymbol(ctx, s))
			}),

		reader("get_positions_by_currency",
			"Get open positions on every symbol quoted in or against a currency as CSV.",
			currencyOnly,
			func(ctx context.Context, p Params) (*Output, error) {
				cur, err := currency(p)
				if err != nil {
					return nil, err
				}
				return positionTable(c.Orders.PositionsByCurrency(ctx, cur))
			}),

		reader("get_positions_by_id",
			"Get the open position with a ticket as CSV.",
			ticketOnly,
			func(ctx context.Context, p Params) (*Output, error) {
				return positionTable(c.Orders.PositionsByID(ctx, p.String("ticket")))
			}),

		reader("get_pending_orders",
			"Get pending orders as CSV, optionally filtered by symbol, group, ticket, magic number, type, state, filling or lifetime.",
			NewSchema(filterParams(true)...),
			func(ctx context.Context, p Params) (*Output, error) {
				f, err := filter(c, p, true)
				if err != nil {
					return nil, err
				}
				return pendingTable(c.Orders.PendingOrders(ctx, f))
			}),

		reader("get_all_pending_orders",
			"Get all pending orders as CSV.",
			NewSchema(),
			func(ctx context.Context, p Params) (*Output, error) {
				return pendingTable(c.Orders.AllPendingOrders(ctx))
			}),

		reader("get_pending_orders_by_symbol",
			"Get pending orders for a specific symbol as CSV.",
			symbolOnly,
			func(ctx context.Context, p Params) (*Output, error) {
				s, err := symbol(p)
				if err != nil {
					return nil, err
				}
				return pendingTable(c.Orders.PendingOrdersBySymbol(ctx, s))
			}),

		reader("get_pending_orders_by_currency",
			"Get pending orders on every symbol quoted in or against a currency as CSV.",
			currencyOnly,
			func(ctx context.Context, p Params) (*Output, error) {
				cur, err := currency(p)
				if err != nil {
					return nil, err
				}
				return pendingTable(c.Orders.PendingOrdersByCurrency(ctx, cur))
			}),

		reader("get_pending_orders_by_id",
			"Get the pending order with a ticket as CSV.",
			ticketOnly,
			func(ctx context.Context, p Params) (*Output, error) {
				return pendingTable(c.Orders.PendingOrdersByID(ctx, p.String("ticket")))
			}),
	}
}
