// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"mt5-bridge/internal/models"
)

// DataStore persists simulated terminal state and candle series.
type DataStore interface {
	// Candles
	SaveCandles(ctx context.Context, symbol string, tf models.Timeframe, rates []models.Rate) error
	GetCandles(ctx context.Context, symbol string, tf models.Timeframe, from, to time.Time) ([]models.Rate, error)
	GetCandlesFreshness(ctx context.Context, symbol string, tf models.Timeframe) (time.Time, error)

	// Simulator state
	SaveSnapshot(ctx context.Context, snap *Snapshot) error
	LoadSnapshot(ctx context.Context) (*Snapshot, error)

	// Lifecycle
	Close() error
}

// Snapshot is the full state of a simulated account.
type Snapshot struct {
	Balance       float64
	NextTicket    int64
	Positions     []models.Position
	Orders        []models.Order
	HistoryOrders []models.Order
	Deals         []models.Deal
	SavedAt       time.Time
}

// Empty reports whether the snapshot holds no account state at all.
func (s *Snapshot) Empty() bool {
	return s == nil || (s.NextTicket == 0 && len(s.Deals) == 0 && len(s.Positions) == 0 && len(s.Orders) == 0)
}
