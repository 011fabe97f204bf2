package api

import "net/http"

// Route binds an HTTP endpoint to a tool. Path parameters use the tool's
// parameter names so they merge straight into the tool input.
type Route struct {
	Method  string
	Pattern string
	Tool    string
	Summary string
	Tag     string
}

// Routes is the REST surface served under the API prefix.
var Routes = []Route{
	{http.MethodGet, "/account/info", "get_account_info", "Account summary", "account"},
	{http.MethodGet, "/account/statistics", "get_trade_statistics", "Closed-deal statistics", "account"},

	{http.MethodGet, "/market/symbols", "get_symbols", "List symbols", "market"},
	{http.MethodGet, "/market/symbols/{symbol_name}", "get_symbol_info", "Symbol properties", "market"},
	{http.MethodGet, "/market/symbols/{symbol_name}/price", "get_symbol_price", "Latest quote", "market"},
	{http.MethodGet, "/market/candles/latest", "get_candles_latest", "Latest candles", "market"},
	{http.MethodGet, "/market/candles/date", "get_candles_by_date", "Candles in a date range", "market"},

	{http.MethodGet, "/history/deals", "get_deals", "Historical deals", "history"},
	{http.MethodGet, "/history/orders", "get_orders", "Historical orders", "history"},

	{http.MethodGet, "/positions", "get_positions", "Open positions", "positions"},
	{http.MethodGet, "/positions/all", "get_all_positions", "All open positions", "positions"},
	{http.MethodGet, "/positions/symbol/{symbol}", "get_positions_by_symbol", "Positions on a symbol", "positions"},
	{http.MethodGet, "/positions/currency/{currency}", "get_positions_by_currency", "Positions on a currency", "positions"},
	{http.MethodGet, "/positions/{ticket}", "get_positions_by_id", "Position by ticket", "positions"},
	{http.MethodPut, "/positions/{ticket}", "modify_position", "Modify stop loss and take profit", "positions"},
	{http.MethodDelete, "/positions/{ticket}", "close_position", "Close a position", "positions"},
	{http.MethodPost, "/positions/close-all", "close_all_positions", "Close all positions", "positions"},
	{http.MethodPost, "/positions/close-all/{symbol}", "close_all_positions_by_symbol", "Close all positions on a symbol", "positions"},
	{http.MethodPost, "/positions/close-profitable", "close_all_profitable_positions", "Close profitable positions", "positions"},
	{http.MethodPost, "/positions/close-losing", "close_all_losing_positions", "Close losing positions", "positions"},

	{http.MethodGet, "/orders/pending", "get_pending_orders", "Pending orders", "orders"},
	{http.MethodGet, "/orders/pending/all", "get_all_pending_orders", "All pending orders", "orders"},
	{http.MethodGet, "/orders/pending/symbol/{symbol}", "get_pending_orders_by_symbol", "Pending orders on a symbol", "orders"},
	{http.MethodGet, "/orders/pending/currency/{currency}", "get_pending_orders_by_currency", "Pending orders on a currency", "orders"},
	{http.MethodGet, "/orders/pending/{ticket}", "get_pending_orders_by_id", "Pending order by ticket", "orders"},
	{http.MethodPost, "/orders/pending", "place_pending_order", "Place a pending order", "orders"},
	{http.MethodPut, "/orders/pending/{ticket}", "modify_pending_order", "Modify a pending order", "orders"},
	{http.MethodDelete, "/orders/pending/{ticket}", "cancel_pending_order", "Cancel a pending order", "orders"},
	{http.MethodPost, "/orders/pending/cancel-all", "cancel_all_pending_orders", "Cancel all pending orders", "orders"},
	{http.MethodPost, "/orders/pending/cancel-all/{symbol}", "cancel_pending_orders_by_symbol", "Cancel pending orders on a symbol", "orders"},
	{http.MethodPost, "/orders/market", "place_market_order", "Place a market order", "orders"},
	{http.MethodPost, "/orders/send", "send_order", "Send a raw trade request", "orders"},

	{http.MethodPost, "/calculate/margin", "calculate_margin", "Required margin", "calculate"},
	{http.MethodPost, "/calculate/profit", "calculate_profit", "Profit between two prices", "calculate"},
	{http.MethodPost, "/calculate/price-target", "calculate_price_target", "Price targets from a distance", "calculate"},
}
