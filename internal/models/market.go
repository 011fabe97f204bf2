package models

import "time"

// SymbolInfo describes a tradable instrument.
type SymbolInfo struct {
	Name              string  `json:"name"`
	Description       string  `json:"description"`
	Path              string  `json:"path"`
	CurrencyBase      string  `json:"currency_base"`
	CurrencyProfit    string  `json:"currency_profit"`
	CurrencyMargin    string  `json:"currency_margin"`
	Digits            int     `json:"digits"`
	Point             float64 `json:"point"`
	Spread            int     `json:"spread"`
	TradeContractSize float64 `json:"trade_contract_size"`
	VolumeMin         float64 `json:"volume_min"`
	VolumeMax         float64 `json:"volume_max"`
	VolumeStep        float64 `json:"volume_step"`
	Bid               float64 `json:"bid"`
	Ask               float64 `json:"ask"`
	Last              float64 `json:"last"`
	Visible           bool    `json:"visible"`
	Select            bool    `json:"select"`
	TradeMode         int     `json:"trade_mode"`
}

// Tick is the latest quote for a symbol.
type Tick struct {
	Time   time.Time `json:"time"`
	Bid    float64   `json:"bid"`
	Ask    float64   `json:"ask"`
	Last   float64   `json:"last"`
	Volume float64   `json:"volume"`
}

// Rate is one OHLC bar.
type Rate struct {
	Time       time.Time `json:"time"`
	Open       float64   `json:"open"`
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	Close      float64   `json:"close"`
	TickVolume int64     `json:"tick_volume"`
	Spread     int       `json:"spread"`
	RealVolume int64     `json:"real_volume"`
}

// AccountInfo is the trading account snapshot.
type AccountInfo struct {
	Login        int64   `json:"login"`
	TradeMode    int     `json:"trade_mode"`
	Leverage     int     `json:"leverage"`
	LimitOrders  int     `json:"limit_orders"`
	TradeAllowed bool    `json:"trade_allowed"`
	TradeExpert  bool    `json:"trade_expert"`
	Balance      float64 `json:"balance"`
	Credit       float64 `json:"credit"`
	Profit       float64 `json:"profit"`
	Equity       float64 `json:"equity"`
	Margin       float64 `json:"margin"`
	MarginFree   float64 `json:"margin_free"`
	MarginLevel  float64 `json:"margin_level"`
	Name         string  `json:"name"`
	Server       string  `json:"server"`
	Currency     string  `json:"currency"`
	Company      string  `json:"company"`
}

// Account trade modes.
const (
	AccountTradeModeDemo    = 0
	AccountTradeModeContest = 1
	AccountTradeModeReal    = 2
)

// TradeModeName returns DEMO, CONTEST or REAL.
func (a AccountInfo) TradeModeName() string {
	switch a.TradeMode {
	case AccountTradeModeDemo:
		return "DEMO"
	case AccountTradeModeContest:
		return "CONTEST"
	case AccountTradeModeReal:
		return "REAL"
	}
	return "UNKNOWN"
}

// TerminalInfo describes the terminal process.
type TerminalInfo struct {
	Connected    bool   `json:"connected"`
	TradeAllowed bool   `json:"trade_allowed"`
	Build        int    `json:"build"`
	Name         string `json:"name"`
	Company      string `json:"company"`
	Language     string `json:"language"`
	Path         string `json:"path"`
	DataPath     string `json:"data_path"`
	Ping         int    `json:"ping_last"`
}

// Version is the terminal version split into its parts.
type Version struct {
	Major    int `json:"major"`
	Minor    int `json:"minor"`
	Build    int `json:"build"`
	Revision int `json:"revision"`
}
