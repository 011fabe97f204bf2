// Package terminal defines the boundary to the trading terminal's local process API
// and provides an in-memory implementation of it.
package terminal

import (
	"context"
	"time"

	apperrors "mt5-bridge/internal/errors"
	"mt5-bridge/internal/models"
)

// Terminal is the synchronous call surface of a trading terminal.
// Failed calls return a *errors.TerminalError carrying the terminal's (code, message).
type Terminal interface {
	// Lifecycle
	Initialize(ctx context.Context, params InitParams) error
	Login(ctx context.Context, params LoginParams) error
	Shutdown(ctx context.Context) error
	TerminalInfo(ctx context.Context) (*models.TerminalInfo, error)
	AccountInfo(ctx context.Context) (*models.AccountInfo, error)
	LastError(ctx context.Context) (int, string)

	// Symbols
	SymbolsGet(ctx context.Context, group string) ([]models.SymbolInfo, error)
	SymbolInfo(ctx context.Context, symbol string) (*models.SymbolInfo, error)
	SymbolInfoTick(ctx context.Context, symbol string) (*models.Tick, error)
	SymbolSelect(ctx context.Context, symbol string, enable bool) error

	// Rates
	CopyRatesFrom(ctx context.Context, symbol string, tf models.Timeframe, from time.Time, count int) ([]models.Rate, error)
	CopyRatesFromPos(ctx context.Context, symbol string, tf models.Timeframe, start, count int) ([]models.Rate, error)
	CopyRatesRange(ctx context.Context, symbol string, tf models.Timeframe, from, to time.Time) ([]models.Rate, error)

	// Trading
	PositionsGet(ctx context.Context, filter Filter) ([]models.Position, error)
	OrdersGet(ctx context.Context, filter Filter) ([]models.Order, error)
	HistoryDealsGet(ctx context.Context, filter HistoryFilter) ([]models.Deal, error)
	HistoryOrdersGet(ctx context.Context, filter HistoryFilter) ([]models.Order, error)
	OrderCalcMargin(ctx context.Context, orderType models.OrderType, symbol string, volume, price float64) (float64, error)
	OrderCalcProfit(ctx context.Context, orderType models.OrderType, symbol string, volume, priceOpen, priceClose float64) (float64, error)
	OrderSend(ctx context.Context, req models.TradeRequest) (*models.TradeResult, error)
}

// InitParams are the arguments of the initialize call. Zero values mean "not given".
type InitParams struct {
	Path     string
	Login    int64
	Password string
	Server   string
	Timeout  time.Duration
	Portable bool
}

// LoginParams are the arguments of the login call.
type LoginParams struct {
	Login    int64
	Password string
	Server   string
	Timeout  time.Duration
}

// Filter selects positions or active orders. Ticket wins over Symbol, Symbol over Group.
type Filter struct {
	Ticket int64
	Symbol string
	Group  string
}

// HistoryFilter selects historical deals or orders.
// Ticket and Position ignore the date range, as the terminal does.
type HistoryFilter struct {
	From     time.Time
	To       time.Time
	Group    string
	Ticket   int64
	Position int64
}

// Error codes used by terminal implementations.
var (
	errNotInitialized = apperrors.NewTerminalError(apperrors.CodeInternalFailInit, "IPC initialize failed, terminal not initialized")
	errNotLoggedIn    = apperrors.NewTerminalError(apperrors.CodeAuthFailed, "Authorization failed")
)

// IsNotInitialized reports whether err is the terminal's "not initialized" failure.
func IsNotInitialized(err error) bool {
	var te *apperrors.TerminalError
	if !apperrors.As(err, &te) {
		return false
	}
	return te.Code == apperrors.CodeInternalFailInit
}
