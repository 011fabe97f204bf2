package market

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"mt5-bridge/internal/connection"
	"mt5-bridge/internal/models"
)

// Price is the current quote of a symbol.
type Price struct {
	Bid    float64   `json:"bid"`
	Ask    float64   `json:"ask"`
	Last   float64   `json:"last"`
	Volume float64   `json:"volume"`
	Time   time.Time `json:"time"`
}

// Service answers symbol, price and candle queries.
type Service struct {
	conn     *connection.Manager
	resolver *Resolver
	log      zerolog.Logger
}

// NewService creates the market service.
func NewService(conn *connection.Manager, logger zerolog.Logger) *Service {
	return &Service{
		conn:     conn,
		resolver: NewResolver(conn, logger),
		log:      logger.With().Str("component", "market").Logger(),
	}
}

// Resolver returns the symbol resolver shared with the order services.
func (s *Service) Resolver() *Resolver {
	return s.resolver
}

// Symbols lists symbol names, optionally filtered by a group pattern.
func (s *Service) Symbols(ctx context.Context, group string) ([]string, error) {
	return s.resolver.Resolve(ctx, group)
}

// SymbolInfo returns the properties of symbol.
func (s *Service) SymbolInfo(ctx context.Context, symbol string) (*models.SymbolInfo, error) {
	return s.resolver.Ensure(ctx, symbol)
}

// SymbolPrice returns the latest quote of symbol.
func (s *Service) SymbolPrice(ctx context.Context, symbol string) (*Price, error) {
	tick, err := s.resolver.Tick(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return &Price{
		Bid:    tick.Bid,
		Ask:    tick.Ask,
		Last:   tick.Last,
		Volume: tick.Volume,
		Time:   tick.Time,
	}, nil
}
