package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mt5-bridge/internal/client"
	"mt5-bridge/internal/connection"
	apperrors "mt5-bridge/internal/errors"
	"mt5-bridge/internal/models"
	"mt5-bridge/internal/orders"
	"mt5-bridge/internal/terminal"
)

var testNow = time.Date(2025, 1, 8, 12, 30, 0, 0, time.UTC)

func newRegistry(t *testing.T, readOnly bool) (*Registry, *terminal.Simulator) {
	t.Helper()
	sim := terminal.NewSimulator(terminal.SimulatorConfig{Now: func() time.Time { return testNow }})
	c := client.New(sim, client.Options{
		Connection:        connection.DefaultConfig(),
		ReadOnly:          readOnly,
		StrictValidation:  true,
		Logger:            zerolog.Nop(),
		ConnectionOptions: []connection.Option{connection.WithPathFinder(&connection.PathFinder{})},
	})
	require.NoError(t, c.Connect(context.Background()))

	reg, err := New(c)
	require.NoError(t, err)
	return reg, sim
}

func call(t *testing.T, reg *Registry, name string, params map[string]interface{}) *Output {
	t.Helper()
	out, err := reg.Call(context.Background(), name, params)
	require.NoError(t, err, name)
	require.NotNil(t, out)
	return out
}

func csvLines(content string) []string {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	return strings.Split(content, "\n")
}

func TestRegistryCatalogue(t *testing.T) {
	reg, _ := newRegistry(t, false)

	names := reg.Names()
	assert.Len(t, names, 35)
	for _, want := range []string{
		"get_account_info", "get_deals", "get_orders", "get_candles_by_date", "get_candles_latest",
		"get_symbol_info", "get_symbol_price", "get_symbols", "get_positions", "get_all_positions",
		"get_positions_by_symbol", "get_positions_by_currency", "get_positions_by_id",
		"get_pending_orders", "get_all_pending_orders", "get_pending_orders_by_symbol",
		"get_pending_orders_by_currency", "get_pending_orders_by_id", "calculate_margin",
		"calculate_profit", "calculate_price_target", "send_order", "place_market_order",
		"place_pending_order", "modify_position", "modify_pending_order", "close_position",
		"cancel_pending_order", "close_all_positions", "close_all_positions_by_symbol",
		"close_all_profitable_positions", "close_all_losing_positions", "cancel_all_pending_orders",
		"cancel_pending_orders_by_symbol",
	} {
		assert.Contains(t, names, want)
	}

	for _, tool := range reg.List() {
		schema, err := ParseSchema(tool)
		require.NoError(t, err, tool.Name())
		assert.Equal(t, "object", schema.Type)
		for _, req := range schema.Required {
			assert.Contains(t, schema.Properties, req, "%s requires undeclared %s", tool.Name(), req)
		}
		assert.NotEmpty(t, tool.Description())
	}

	place, err := reg.Get("place_market_order")
	require.NoError(t, err)
	assert.False(t, place.ReadOnly())
	info, err := reg.Get("get_account_info")
	require.NoError(t, err)
	assert.True(t, info.ReadOnly())

	aliased, err := reg.Get("close_all_profittable_positions")
	require.NoError(t, err)
	assert.Equal(t, "close_all_profitable_positions", aliased.Name())

	_, err = reg.Call(context.Background(), "no_such_tool", nil)
	assert.ErrorIs(t, err, ErrToolNotFound)
}

func TestKeyParamsAcceptAnyCase(t *testing.T) {
	reg, _ := newRegistry(t, false)

	for _, tool := range reg.List() {
		assert.NotContains(t, string(tool.InputSchema()), `"enum"`, tool.Name())
	}
	send, err := reg.Get("send_order")
	require.NoError(t, err)
	schema, err := ParseSchema(send)
	require.NoError(t, err)
	assert.Contains(t, schema.Properties["order_type"].Description, "in any case")
	assert.Contains(t, schema.Properties["order_type"].Description, "SELL_LIMIT")

	out := call(t, reg, "place_pending_order", map[string]interface{}{
		"symbol": "EURUSD", "volume": 0.1, "order_type": "sell_limit", "price": 1.09,
	})
	require.False(t, out.IsError, out.Content)
	rows := call(t, reg, "get_pending_orders", map[string]interface{}{"type": "3"}).Data.([]models.PendingOrderRow)
	assert.Len(t, rows, 1)
}

func TestInputValidation(t *testing.T) {
	reg, _ := newRegistry(t, false)
	ctx := context.Background()

	_, err := reg.Call(ctx, "place_market_order", map[string]interface{}{"symbol": "EURUSD", "order_type": "BUY"})
	assert.ErrorIs(t, err, apperrors.ErrInputValidation, "missing volume")

	_, err = reg.Call(ctx, "place_market_order", map[string]interface{}{"symbol": "EURUSD", "volume": "lots", "order_type": "BUY"})
	assert.ErrorIs(t, err, apperrors.ErrInputValidation, "volume not a number")

	_, err = reg.Call(ctx, "close_position", map[string]interface{}{"ticket": 1.5})
	assert.ErrorIs(t, err, apperrors.ErrInputValidation, "fractional ticket")

	_, err = reg.Call(ctx, "get_symbol_info", map[string]interface{}{"symbol_name": "EUR USD"})
	assert.ErrorIs(t, err, apperrors.ErrInputValidation, "malformed symbol")

	_, err = reg.Call(ctx, "place_market_order", map[string]interface{}{
		"symbol": "EURUSD", "volume": 0.1, "order_type": "BUY", "comment": "x; rm -rf /",
	})
	assert.ErrorIs(t, err, apperrors.ErrInputValidation, "injected comment")

	_, err = reg.Call(ctx, "get_positions_by_currency", map[string]interface{}{"currency": "EURO"})
	assert.ErrorIs(t, err, apperrors.ErrInputValidation)
}

func TestCommentControlCharactersDropped(t *testing.T) {
	reg, sim := newRegistry(t, false)

	out := call(t, reg, "place_market_order", map[string]interface{}{
		"symbol": "EURUSD", "volume": 0.1, "order_type": "BUY", "comment": "grid\n1\x00",
	})
	require.False(t, out.IsError, out.Content)

	positions, err := sim.PositionsGet(context.Background(), terminal.Filter{})
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "grid1", positions[0].Comment)
}

func TestAccountAndMarketTools(t *testing.T) {
	reg, _ := newRegistry(t, false)

	out := call(t, reg, "get_account_info", nil)
	assert.Equal(t, FormatJSON, out.Format)
	var account map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out.Content), &account))
	assert.EqualValues(t, 5001000, account["login"])
	assert.Equal(t, "USD", account["currency"])

	out = call(t, reg, "get_symbols", map[string]interface{}{"group": "*USD*"})
	var symbols []string
	require.NoError(t, json.Unmarshal([]byte(out.Content), &symbols))
	assert.Contains(t, symbols, "EURUSD")
	assert.Contains(t, symbols, "USDJPY")

	out = call(t, reg, "get_symbol_price", map[string]interface{}{"symbol_name": "EURUSD"})
	var price map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out.Content), &price))
	assert.InDelta(t, 1.085, price["bid"], 1e-9)
	assert.InDelta(t, 1.08512, price["ask"], 1e-9)

	out = call(t, reg, "get_symbol_info", map[string]interface{}{"symbol_name": "XAUUSD"})
	assert.Contains(t, out.Content, `"name":"XAUUSD"`)

	_, err := reg.Call(context.Background(), "get_symbol_info", map[string]interface{}{"symbol_name": "NOPE"})
	assert.ErrorIs(t, err, apperrors.ErrSymbolNotFound)
}

func TestCandleTools(t *testing.T) {
	reg, _ := newRegistry(t, false)

	out := call(t, reg, "get_candles_latest", map[string]interface{}{"symbol_name": "EURUSD", "timeframe": "H1", "count": "5"})
	assert.Equal(t, FormatCSV, out.Format)
	lines := csvLines(out.Content)
	require.Len(t, lines, 6)
	assert.True(t, strings.HasPrefix(lines[0], "time,open,high,low,close,tick_volume,spread,real_volume"))
	assert.Greater(t, lines[1], lines[5], "newest bar first")

	out = call(t, reg, "get_candles_latest", map[string]interface{}{"symbol_name": "EURUSD", "timeframe": "M15"})
	assert.Len(t, csvLines(out.Content), DefaultCandles+1)

	out = call(t, reg, "get_candles_by_date", map[string]interface{}{
		"symbol_name": "EURUSD", "timeframe": "H1", "from_date": "2025-01-07", "to_date": "2025-01-07 06:00",
	})
	rows := out.Data.([]models.CandleRow)
	require.NotEmpty(t, rows)
	for _, r := range rows {
		assert.True(t, r.Time >= "2025-01-07 00:00:00" && r.Time <= "2025-01-07 06:00:00", r.Time)
	}

	_, err := reg.Call(context.Background(), "get_candles_latest", map[string]interface{}{"symbol_name": "EURUSD", "timeframe": "H7"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidTimeframe)
}

func TestTradeLifecycle(t *testing.T) {
	reg, _ := newRegistry(t, false)

	out := call(t, reg, "place_market_order", map[string]interface{}{"symbol": "EURUSD", "volume": 0.1, "order_type": "buy"})
	require.False(t, out.IsError, out.Content)
	assert.Contains(t, out.Content, `"error":false`)
	assert.Contains(t, out.Content, "BUY EURUSD 0.1 LOT at 1.08512 success (Position ID: 100001)")

	out = call(t, reg, "get_all_positions", nil)
	lines := csvLines(out.Content)
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "id,time,symbol,type,type_code,volume,open,stop_loss,take_profit,profit"))
	assert.Contains(t, lines[1], "100001,")
	assert.Contains(t, lines[1], ",EURUSD,BUY,0,")

	out = call(t, reg, "get_positions_by_id", map[string]interface{}{"ticket": "100001"})
	assert.Len(t, csvLines(out.Content), 2)
	out = call(t, reg, "get_positions_by_id", map[string]interface{}{"ticket": "abc"})
	assert.Empty(t, csvLines(out.Content))
	out = call(t, reg, "get_positions_by_currency", map[string]interface{}{"currency": "usd"})
	assert.Len(t, csvLines(out.Content), 2)
	out = call(t, reg, "get_positions", map[string]interface{}{"symbol": "GBPUSD"})
	assert.Empty(t, csvLines(out.Content))

	out = call(t, reg, "modify_position", map[string]interface{}{"ticket": 100001, "sl": 1.07, "tp": "1.1"})
	require.False(t, out.IsError, out.Content)
	positions := call(t, reg, "get_all_positions", nil).Data.([]models.PositionRow)
	require.Len(t, positions, 1)
	assert.Equal(t, 1.07, positions[0].StopLoss)
	assert.Equal(t, 1.1, positions[0].TakeProfit)

	out = call(t, reg, "close_position", map[string]interface{}{"ticket": "100001"})
	require.False(t, out.IsError, out.Content)
	assert.Empty(t, call(t, reg, "get_all_positions", nil).Data)

	out = call(t, reg, "get_deals", map[string]interface{}{"position": 100001})
	assert.Len(t, csvLines(out.Content), 3, "opening and closing deal")
}

func TestPendingOrderTools(t *testing.T) {
	reg, _ := newRegistry(t, false)

	out := call(t, reg, "place_pending_order", map[string]interface{}{
		"symbol": "EURUSD", "volume": 0.1, "order_type": "BUY", "price": 1.08,
	})
	require.False(t, out.IsError, out.Content)
	ticket := out.Data.(*orders.Result).Data.(*models.TradeResult).Order

	rows := call(t, reg, "get_pending_orders_by_symbol", map[string]interface{}{"symbol": "EURUSD"}).Data.([]models.PendingOrderRow)
	require.Len(t, rows, 1)
	assert.Equal(t, "BUY_LIMIT", rows[0].Type)

	rows = call(t, reg, "get_pending_orders", map[string]interface{}{"type": "BUY_STOP"}).Data.([]models.PendingOrderRow)
	assert.Empty(t, rows)

	out = call(t, reg, "modify_pending_order", map[string]interface{}{"ticket": ticket, "price": 1.075, "expiration": "2025-02-01 12:00"})
	require.False(t, out.IsError, out.Content)
	rows = call(t, reg, "get_pending_orders_by_id", map[string]interface{}{"ticket": ticket}).Data.([]models.PendingOrderRow)
	require.Len(t, rows, 1)
	assert.Equal(t, 1.075, rows[0].Open)
	assert.Equal(t, "SPECIFIED", rows[0].Lifetime)
	assert.Equal(t, "2025-02-01 12:00:00", rows[0].Expiration)

	out = call(t, reg, "cancel_pending_order", map[string]interface{}{"ticket": ticket})
	require.False(t, out.IsError, out.Content)
	assert.Empty(t, call(t, reg, "get_all_pending_orders", nil).Data)

	out = call(t, reg, "cancel_pending_order", map[string]interface{}{"ticket": 999})
	assert.True(t, out.IsError)
	assert.Contains(t, out.Content, string(orders.ReasonNotFound))
}

func TestSendOrderTool(t *testing.T) {
	reg, _ := newRegistry(t, false)

	out := call(t, reg, "send_order", map[string]interface{}{"symbol": "GBPUSD", "volume": 0.2, "order_type": "SELL"})
	require.False(t, out.IsError, out.Content)
	res := out.Data.(*orders.Result).Data.(*models.TradeResult)

	out = call(t, reg, "send_order", map[string]interface{}{"action": "SLTP", "symbol": "GBPUSD", "position": res.Order, "sl": 1.3})
	require.False(t, out.IsError, out.Content)

	out = call(t, reg, "send_order", map[string]interface{}{"symbol": "GBPUSD", "volume": 0.2, "order_type": "BUY_LIMIT"})
	assert.True(t, out.IsError)
	assert.Contains(t, out.Content, "Invalid order type, must be BUY or SELL")

	out = call(t, reg, "send_order", map[string]interface{}{"symbol": "EURUSD", "volume": 500, "order_type": "BUY"})
	assert.True(t, out.IsError)
	assert.Contains(t, out.Content, "Invalid volume")
}

func TestCalculationTools(t *testing.T) {
	reg, _ := newRegistry(t, false)

	out := call(t, reg, "calculate_margin", map[string]interface{}{"symbol": "EURUSD", "volume": 1, "order_type": "BUY"})
	assert.Equal(t, FormatText, out.Format)
	assert.Greater(t, out.Data.(float64), 0.0)

	out = call(t, reg, "calculate_profit", map[string]interface{}{
		"symbol": "EURUSD", "volume": 1, "order_type": "BUY", "open_price": 1.08, "close_price": 1.09,
	})
	assert.InDelta(t, 1000, out.Data.(float64), 1e-6)

	out = call(t, reg, "calculate_price_target", map[string]interface{}{"symbol": "EURUSD", "price": 1.085, "points": 100})
	var target map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out.Content), &target))
	assert.InDelta(t, 1.086, target["buy_take_profit"], 1e-9)
	assert.InDelta(t, 1.084, target["buy_stop_loss"], 1e-9)

	_, err := reg.Call(context.Background(), "calculate_price_target", map[string]interface{}{"symbol": "EURUSD", "price": 1.085})
	assert.ErrorIs(t, err, apperrors.ErrInputValidation)
}

func TestBulkTools(t *testing.T) {
	reg, sim := newRegistry(t, false)

	for _, side := range []string{"BUY", "SELL"} {
		out := call(t, reg, "place_market_order", map[string]interface{}{"symbol": "EURUSD", "volume": 0.1, "order_type": side})
		require.False(t, out.IsError, out.Content)
	}
	out := call(t, reg, "place_market_order", map[string]interface{}{"symbol": "USDJPY", "volume": 0.1, "order_type": "BUY"})
	require.False(t, out.IsError, out.Content)
	require.NoError(t, sim.SetTick("EURUSD", 1.09, 1.09012))

	out = call(t, reg, "close_all_profitable_positions", nil)
	assert.Contains(t, out.Content, "Closed 1 of 1 profitable positions")

	out = call(t, reg, "close_all_positions_by_symbol", map[string]interface{}{"symbol": "EURUSD"})
	assert.Contains(t, out.Content, "Closed 1 of 1 open positions on EURUSD")

	out = call(t, reg, "close_all_positions", nil)
	assert.Contains(t, out.Content, "Closed 1 of 1 open positions")

	out = call(t, reg, "cancel_all_pending_orders", nil)
	assert.False(t, out.IsError)
	assert.Contains(t, out.Content, "No pending orders")
}

func TestReadOnlyTools(t *testing.T) {
	reg, _ := newRegistry(t, true)

	out := call(t, reg, "place_market_order", map[string]interface{}{"symbol": "EURUSD", "volume": 0.1, "order_type": "BUY"})
	assert.True(t, out.IsError)
	assert.Contains(t, out.Content, string(orders.ReasonTradingDisabled))

	out = call(t, reg, "close_all_positions", nil)
	assert.True(t, out.IsError)

	out = call(t, reg, "get_all_positions", nil)
	assert.False(t, out.IsError)
}

func TestParams(t *testing.T) {
	p := Params{
		"f":     "1.5",
		"n":     json.Number("7"),
		"i":     float64(100001),
		"frac":  2.5,
		"code":  "2",
		"name":  " sell ",
		"blank": "  ",
	}

	f, err := p.Float("f")
	require.NoError(t, err)
	assert.Equal(t, 1.5, f)

	n, err := p.Int("n")
	require.NoError(t, err)
	assert.EqualValues(t, 7, n)

	assert.Equal(t, "100001", p.String("i"))
	_, err = p.Int("frac")
	assert.ErrorIs(t, err, apperrors.ErrInputValidation)

	k, err := p.Key("code")
	require.NoError(t, err)
	assert.Equal(t, models.CodeKey(2), k)
	k, err = p.Key("name")
	require.NoError(t, err)
	assert.Equal(t, models.NameKey("sell"), k)

	assert.False(t, p.Has("blank"))
	assert.False(t, p.Has("absent"))
	v, err := p.OptFloat("absent")
	require.NoError(t, err)
	assert.Nil(t, v)

	ts, err := Params{"d": "2025-01-02 03:04"}.Time("d")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 2, 3, 4, 0, 0, time.UTC), ts)
	_, err = Params{"d": "yesterday"}.Time("d")
	assert.ErrorIs(t, err, apperrors.ErrInputValidation)
}
