package tools

import (
	"context"
	"time"

	"mt5-bridge/internal/client"
	"mt5-bridge/internal/models"
	"mt5-bridge/internal/orders"
	"mt5-bridge/internal/security"
)

var orderTypeNames = models.OrderTypes.Names()

func orderTypeParam() Param {
	return str("order_type", "Order type name or its numeric code.").required().names(orderTypeNames...)
}

func calcTools(c *client.Client) []*tool {
	return []*tool{
		reader("calculate_margin",
			"Calculate the margin required to open a trade, in account currency. The live price is used when price is omitted.",
			NewSchema(
				str("symbol", "Symbol name (e.g., 'EURUSD').").required(),
				num("volume", "Volume in lots.").required(),
				orderTypeParam(),
				num("price", "Open price."),
			),
			func(ctx context.Context, p Params) (*Output, error) {
				symbol := p.String("symbol")
				if err := c.Validator.ValidateSymbol(symbol); err != nil {
					return nil, err
				}
				key, volume, err := typeAndVolume(p)
				if err != nil {
					return nil, err
				}
				price, err := p.Float("price")
				if err != nil {
					return nil, err
				}
				margin, err := c.Account.CalculateMargin(ctx, symbol, key, volume, price)
				if err != nil {
					return nil, err
				}
				return number(margin), nil
			}),

		reader("calculate_profit",
			"Calculate the profit of a trade between an open and a close price, in account currency.",
			NewSchema(
				str("symbol", "Symbol name (e.g., 'EURUSD').").required(),
				num("volume", "Volume in lots.").required(),
				orderTypeParam(),
				num("open_price", "Open price.").required(),
				num("close_price", "Close price.").required(),
			),
			func(ctx context.Context, p Params) (*Output, error) {
				symbol := p.String("symbol")
				if err := c.Validator.ValidateSymbol(symbol); err != nil {
					return nil, err
				}
				key, volume, err := typeAndVolume(p)
				if err != nil {
					return nil, err
				}
				open, err := p.Float("open_price")
				if err != nil {
					return nil, err
				}
				closePrice, err := p.Float("close_price")
				if err != nil {
					return nil, err
				}
				profit, err := c.Account.CalculateProfit(ctx, symbol, key, volume, open, closePrice)
				if err != nil {
					return nil, err
				}
				return number(profit), nil
			}),

		reader("calculate_price_target",
			"Calculate take profit and stop loss levels at a distance from a price, given in points or in percent. Exactly one of points or percent is required.",
			NewSchema(
				str("symbol", "Symbol name (e.g., 'EURUSD').").required(),
				num("price", "Reference price.").required(),
				num("points", "Distance in symbol points."),
				num("percent", "Distance in percent of price."),
			),
			func(ctx context.Context, p Params) (*Output, error) {
				symbol := p.String("symbol")
				if err := c.Validator.ValidateSymbol(symbol); err != nil {
					return nil, err
				}
				price, err := p.Float("price")
				if err != nil {
					return nil, err
				}
				points, err := p.OptFloat("points")
				if err != nil {
					return nil, err
				}
				percent, err := p.OptFloat("percent")
				if err != nil {
					return nil, err
				}
				target, err := c.Account.CalculatePriceTarget(ctx, symbol, price, points, percent)
				if err != nil {
					return nil, err
				}
				return object(target)
			}),
	}
}

func typeAndVolume(p Params) (models.Key, float64, error) {
	key, err := p.Key("order_type")
	if err != nil {
		return models.Key{}, 0, err
	}
	volume, err := p.Float("volume")
	return key, volume, err
}

// floats reads the named optional numbers; missing ones stay zero.
func floats(p Params, keys ...string) ([]float64, error) {
	out := make([]float64, len(keys))
	for i, k := range keys {
		v, err := p.Float(k)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func comment(c *client.Client, p Params) (string, error) {
	text := security.SanitizeText(p.String("comment"))
	return text, c.Validator.ValidateComment(text)
}

func expiration(p Params) (*time.Time, error) {
	if !p.Has("expiration") {
		return nil, nil
	}
	t, err := p.Time("expiration")
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func tradeTools(c *client.Client) []*tool {
	return []*tool{
		trader("send_order",
			"Send a raw trade request. action defaults to DEAL; for DEAL the live price is used and order_type must be BUY or SELL.",
			NewSchema(
				str("action", "Trade action name or its numeric code.").def("DEAL").names(models.TradeActions.Names()...),
				str("symbol", "Symbol name (e.g., 'EURUSD'). Required for DEAL and PENDING."),
				num("volume", "Volume in lots. Required for DEAL and PENDING."),
				str("order_type", "Order type name or its numeric code.").names(orderTypeNames...),
				num("price", "Order price (PENDING and MODIFY)."),
				num("stoplimit", "Stop limit price for STOP_LIMIT orders."),
				num("sl", "Stop loss price."),
				num("tp", "Take profit price."),
				integer("deviation", "Maximum price deviation in points.").def(20),
				integer("magic", "Magic number."),
				str("comment", "Order comment."),
				integer("position", "Position ticket (SLTP, CLOSE_BY, closing deals)."),
				integer("position_by", "Opposite position ticket (CLOSE_BY)."),
				integer("order", "Order ticket (MODIFY, REMOVE)."),
				str("type_filling", "Filling policy name or its numeric code.").names(models.OrderFillings.Names()...),
				str("type_time", "Order lifetime name or its numeric code.").names(models.OrderTimes.Names()...),
				str("expiration", "Expiration time for SPECIFIED lifetimes ('YYYY-MM-DD HH:MM', UTC)."),
			),
			func(ctx context.Context, p Params) (*Output, error) {
				in, err := intent(c, p)
				if err != nil {
					return nil, err
				}
				return result(c.Orders.SendOrder(ctx, in))
			}),

		trader("place_market_order",
			"Open a BUY or SELL position at the market price.",
			NewSchema(
				str("symbol", "Symbol name (e.g., 'EURUSD').").required(),
				num("volume", "Volume in lots.").required(),
				str("order_type", "BUY or SELL, in any case, or the numeric code 0 or 1.").required(),
				num("sl", "Stop loss price."),
				num("tp", "Take profit price."),
				integer("deviation", "Maximum price deviation in points.").def(20),
				integer("magic", "Magic number."),
				str("comment", "Order comment."),
			),
			func(ctx context.Context, p Params) (*Output, error) {
				key, volume, err := typeAndVolume(p)
				if err != nil {
					return nil, err
				}
				stops, err := floats(p, "sl", "tp")
				if err != nil {
					return nil, err
				}
				text, err := comment(c, p)
				if err != nil {
					return nil, err
				}
				deviation, err := p.Int("deviation")
				if err != nil {
					return nil, err
				}
				magic, err := p.Int("magic")
				if err != nil {
					return nil, err
				}
				return result(c.Orders.PlaceMarketOrder(ctx, orders.MarketOrder{
					Symbol:    p.String("symbol"),
					Volume:    volume,
					Type:      key,
					SL:        stops[0],
					TP:        stops[1],
					Deviation: int(deviation),
					Magic:     magic,
					Comment:   text,
				}))
			}),

		trader("place_pending_order",
			"Place a pending order. BUY or SELL becomes a LIMIT or STOP order depending on where price sits against the current quote; concrete pending types are sent as given.",
			NewSchema(
				str("symbol", "Symbol name (e.g., 'EURUSD').").required(),
				num("volume", "Volume in lots.").required(),
				orderTypeParam(),
				num("price", "Order price.").required(),
				num("stoplimit", "Stop limit price for STOP_LIMIT orders."),
				num("sl", "Stop loss price."),
				num("tp", "Take profit price."),
				integer("magic", "Magic number."),
				str("comment", "Order comment."),
				str("type_filling", "Filling policy name or its numeric code.").names(models.OrderFillings.Names()...),
				str("type_time", "Order lifetime name or its numeric code.").names(models.OrderTimes.Names()...),
				str("expiration", "Expiration time ('YYYY-MM-DD HH:MM', UTC)."),
			),
			func(ctx context.Context, p Params) (*Output, error) {
				key, volume, err := typeAndVolume(p)
				if err != nil {
					return nil, err
				}
				prices, err := floats(p, "price", "stoplimit", "sl", "tp")
				if err != nil {
					return nil, err
				}
				text, err := comment(c, p)
				if err != nil {
					return nil, err
				}
				magic, err := p.Int("magic")
				if err != nil {
					return nil, err
				}
				filling, err := p.Key("type_filling")
				if err != nil {
					return nil, err
				}
				lifetime, err := p.Key("type_time")
				if err != nil {
					return nil, err
				}
				order := orders.PendingOrder{
					Symbol:    p.String("symbol"),
					Volume:    volume,
					Type:      key,
					Price:     prices[0],
					StopLimit: prices[1],
					SL:        prices[2],
					TP:        prices[3],
					Magic:     magic,
					Comment:   text,
					Filling:   filling,
					Lifetime:  lifetime,
				}
				exp, err := expiration(p)
				if err != nil {
					return nil, err
				}
				if exp != nil {
					order.Expiration = *exp
				}
				return result(c.Orders.PlacePendingOrder(ctx, order))
			}),

		trader("modify_position",
			"Modify the stop loss and take profit of an open position. Omitted values are kept; 0 removes a level.",
			NewSchema(
				integer("ticket", "Position ticket.").required(),
				num("sl", "New stop loss price."),
				num("tp", "New take profit price."),
			),
			func(ctx context.Context, p Params) (*Output, error) {
				ticket, err := p.Int("ticket")
				if err != nil {
					return nil, err
				}
				sl, err := p.OptFloat("sl")
				if err != nil {
					return nil, err
				}
				tp, err := p.OptFloat("tp")
				if err != nil {
					return nil, err
				}
				return result(c.Orders.ModifyPosition(ctx, ticket, sl, tp))
			}),

		trader("modify_pending_order",
			"Modify the price, stop loss, take profit or expiration of a pending order. Omitted values are kept.",
			NewSchema(
				integer("ticket", "Pending order ticket.").required(),
				num("price", "New order price."),
				num("sl", "New stop loss price."),
				num("tp", "New take profit price."),
				str("expiration", "New expiration time ('YYYY-MM-DD HH:MM', UTC)."),
			),
			func(ctx context.Context, p Params) (*Output, error) {
				ticket, err := p.Int("ticket")
				if err != nil {
					return nil, err
				}
				var change orders.PendingChange
				if change.Price, err = p.OptFloat("price"); err != nil {
					return nil, err
				}
				if change.SL, err = p.OptFloat("sl"); err != nil {
					return nil, err
				}
				if change.TP, err = p.OptFloat("tp"); err != nil {
					return nil, err
				}
				if change.Expiration, err = expiration(p); err != nil {
					return nil, err
				}
				return result(c.Orders.ModifyPendingOrder(ctx, ticket, change))
			}),

		trader("close_position",
			"Close an open position at the market price, fully or partially.",
			NewSchema(
				integer("ticket", "Position ticket.").required(),
				num("volume", "Volume to close; the whole position when omitted."),
			),
			func(ctx context.Context, p Params) (*Output, error) {
				ticket, err := p.Int("ticket")
				if err != nil {
					return nil, err
				}
				volume, err := p.OptFloat("volume")
				if err != nil {
					return nil, err
				}
				return result(c.Orders.ClosePosition(ctx, ticket, volume))
			}),

		trader("cancel_pending_order",
			"Cancel a pending order.",
			NewSchema(integer("ticket", "Pending order ticket.").required()),
			func(ctx context.Context, p Params) (*Output, error) {
				ticket, err := p.Int("ticket")
				if err != nil {
					return nil, err
				}
				return result(c.Orders.CancelPendingOrder(ctx, ticket))
			}),
	}
}

// intent assembles a raw trade intent from send_order parameters.
func intent(c *client.Client, p Params) (orders.Intent, error) {
	var in orders.Intent
	var err error

	if in.Action, err = p.Key("action"); err != nil {
		return in, err
	}
	if in.Action.IsZero() {
		in.Action = models.TypedKey(models.TradeActionDeal)
	}
	if in.Type, in.Volume, err = typeAndVolume(p); err != nil {
		return in, err
	}
	in.Symbol = p.String("symbol")

	prices, err := floats(p, "price", "stoplimit", "sl", "tp")
	if err != nil {
		return in, err
	}
	in.Price, in.StopLimit, in.SL, in.TP = prices[0], prices[1], prices[2], prices[3]

	var deviation int64
	if deviation, err = p.Int("deviation"); err != nil {
		return in, err
	}
	in.Deviation = int(deviation)
	if in.Magic, err = p.Int("magic"); err != nil {
		return in, err
	}
	if in.Position, err = p.Int("position"); err != nil {
		return in, err
	}
	if in.PositionBy, err = p.Int("position_by"); err != nil {
		return in, err
	}
	if in.Order, err = p.Int("order"); err != nil {
		return in, err
	}
	if in.Comment, err = comment(c, p); err != nil {
		return in, err
	}
	if in.Filling, err = p.Key("type_filling"); err != nil {
		return in, err
	}
	if in.Lifetime, err = p.Key("type_time"); err != nil {
		return in, err
	}
	exp, err := expiration(p)
	if err != nil {
		return in, err
	}
	if exp != nil {
		in.Expiration = *exp
	}
	return in, nil
}
