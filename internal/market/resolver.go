// Package market provides symbol resolution, quotes and candle retrieval.
package market

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"mt5-bridge/internal/connection"
	apperrors "mt5-bridge/internal/errors"
	"mt5-bridge/internal/models"
)

// Resolver looks symbols up in the terminal catalogue and makes sure they are
// subscribed before their prices are read.
type Resolver struct {
	conn *connection.Manager
	log  zerolog.Logger
}

// NewResolver creates a resolver over the managed terminal.
func NewResolver(conn *connection.Manager, logger zerolog.Logger) *Resolver {
	return &Resolver{conn: conn, log: logger}
}

// Resolve returns the names of all symbols matching nameOrPattern. A plain
// name matches itself; patterns use the terminal group syntax
// ("*USD*", "EUR*,GBP*", "*,!*JPY*"). An empty pattern lists everything.
func (r *Resolver) Resolve(ctx context.Context, nameOrPattern string) ([]string, error) {
	if err := r.conn.Require(ctx); err != nil {
		return nil, err
	}
	symbols, err := r.conn.Terminal().SymbolsGet(ctx, strings.TrimSpace(nameOrPattern))
	if err != nil {
		if lost := apperrors.LinkLost("symbols_get", err); lost != nil {
			return nil, lost
		}
		return nil, apperrors.NewMarketError(nameOrPattern, "failed to list symbols", err)
	}
	names := make([]string, 0, len(symbols))
	for _, s := range symbols {
		names = append(names, s.Name)
	}
	return names, nil
}

// Ensure returns the symbol's properties, selecting it into Market Watch
// first when it is hidden. Selection is attempted once.
func (r *Resolver) Ensure(ctx context.Context, symbol string) (*models.SymbolInfo, error) {
	if strings.TrimSpace(symbol) == "" {
		return nil, apperrors.NewSymbolNotFoundError(symbol)
	}
	if err := r.conn.Require(ctx); err != nil {
		return nil, err
	}
	term := r.conn.Terminal()

	info, err := term.SymbolInfo(ctx, symbol)
	if err != nil {
		if lost := apperrors.LinkLost("symbol_info", err); lost != nil {
			return nil, lost
		}
		return nil, apperrors.NewSymbolNotFoundError(symbol)
	}
	if info.Visible {
		return info, nil
	}

	r.log.Debug().Str("symbol", symbol).Msg("Selecting hidden symbol")
	if err := term.SymbolSelect(ctx, symbol, true); err != nil {
		if lost := apperrors.LinkLost("symbol_select", err); lost != nil {
			return nil, lost
		}
		return nil, apperrors.NewMarketError(symbol, fmt.Sprintf("Failed to select symbol %s", symbol), err)
	}
	info, err = term.SymbolInfo(ctx, symbol)
	if err != nil {
		return nil, apperrors.NewMarketError(symbol, "symbol vanished after selection", err)
	}
	return info, nil
}

// Tick returns the live quote for an ensured symbol.
func (r *Resolver) Tick(ctx context.Context, symbol string) (*models.Tick, error) {
	if _, err := r.Ensure(ctx, symbol); err != nil {
		return nil, err
	}
	tick, err := r.conn.Terminal().SymbolInfoTick(ctx, symbol)
	if err != nil {
		if lost := apperrors.LinkLost("symbol_info_tick", err); lost != nil {
			return nil, lost
		}
		return nil, apperrors.NewMarketError(symbol, fmt.Sprintf("Failed to get tick for %s", symbol), err)
	}
	if tick == nil {
		return nil, apperrors.NewMarketError(symbol, fmt.Sprintf("No tick data for %s", symbol), nil)
	}
	return tick, nil
}
