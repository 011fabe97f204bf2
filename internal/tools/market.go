package tools

import (
	"context"

	"mt5-bridge/internal/client"
	"mt5-bridge/internal/models"
)

// DefaultCandles is the bar count of get_candles_latest.
const DefaultCandles = 100

var timeframeNames = models.Timeframes.Names()

func accountTools(c *client.Client) []*tool {
	return []*tool{
		reader("get_account_info",
			"Get account information (balance, equity, profit, margin level, free margin, account type, leverage, currency).",
			NewSchema(),
			func(ctx context.Context, p Params) (*Output, error) {
				stats, err := c.Account.TradeStatistics(ctx)
				if err != nil {
					return nil, err
				}
				return object(stats)
			}),
	}
}

func symbolParam(name string) Param {
	return str(name, "Symbol name (e.g., 'EURUSD').").required()
}

func marketTools(c *client.Client) []*tool {
	symbol := func(p Params, key string) (string, error) {
		s := p.String(key)
		return s, c.Validator.ValidateSymbol(s)
	}

	return []*tool{
		reader("get_symbols",
			"Get a list of all available market symbols (optionally filter by group pattern).",
			NewSchema(str("group", "Filter symbols by group pattern (e.g., '*USD*').")),
			func(ctx context.Context, p Params) (*Output, error) {
				group := p.String("group")
				if group != "" {
					if err := c.Validator.ValidateGroup(group); err != nil {
						return nil, err
					}
				}
				symbols, err := c.Market.Symbols(ctx, group)
				if err != nil {
					return nil, err
				}
				if symbols == nil {
					symbols = []string{}
				}
				return object(symbols)
			}),

		reader("get_symbol_info",
			"Get info for a specific market symbol as a dictionary.",
			NewSchema(symbolParam("symbol_name")),
			func(ctx context.Context, p Params) (*Output, error) {
				name, err := symbol(p, "symbol_name")
				if err != nil {
					return nil, err
				}
				info, err := c.Market.SymbolInfo(ctx, name)
				if err != nil {
					return nil, err
				}
				return object(info)
			}),

		reader("get_symbol_price",
			"Get the latest price info for a symbol as a dictionary (bid, ask, last, volume, time).",
			NewSchema(symbolParam("symbol_name")),
			func(ctx context.Context, p Params) (*Output, error) {
				name, err := symbol(p, "symbol_name")
				if err != nil {
					return nil, err
				}
				price, err := c.Market.SymbolPrice(ctx, name)
				if err != nil {
					return nil, err
				}
				return object(price)
			}),

		reader("get_candles_latest",
			"Get the latest N candles for a symbol and timeframe as CSV, newest first.",
			NewSchema(
				symbolParam("symbol_name"),
				str("timeframe", "Timeframe (e.g., 'M1', 'H1', 'D1').").required().names(timeframeNames...),
				integer("count", "Number of candles to retrieve.").def(DefaultCandles),
			),
			func(ctx context.Context, p Params) (*Output, error) {
				name, err := symbol(p, "symbol_name")
				if err != nil {
					return nil, err
				}
				count := int64(DefaultCandles)
				if p.Has("count") {
					if count, err = p.Int("count"); err != nil {
						return nil, err
					}
				}
				rates, err := c.Market.CandlesLatest(ctx, name, p.String("timeframe"), int(count))
				if err != nil {
					return nil, err
				}
				return table(candleRows(rates))
			}),

		reader("get_candles_by_date",
			"Get candles for a symbol and timeframe in a date range as CSV, newest first. Dates are UTC.",
			NewSchema(
				symbolParam("symbol_name"),
				str("timeframe", "Timeframe (e.g., 'M1', 'H1', 'D1').").required().names(timeframeNames...),
				str("from_date", "Start date ('YYYY-MM-DD' or 'YYYY-MM-DD HH:MM')."),
				str("to_date", "End date ('YYYY-MM-DD' or 'YYYY-MM-DD HH:MM')."),
			),
			func(ctx context.Context, p Params) (*Output, error) {
				name, err := symbol(p, "symbol_name")
				if err != nil {
					return nil, err
				}
				rates, err := c.Market.CandlesByDate(ctx, name, p.String("timeframe"), p.String("from_date"), p.String("to_date"))
				if err != nil {
					return nil, err
				}
				return table(candleRows(rates))
			}),
	}
}

func candleRows(rates []models.Rate) []models.CandleRow {
	rows := make([]models.CandleRow, len(rates))
	for i, r := range rates {
		rows[i] = models.NewCandleRow(r)
	}
	return rows
}
