// Package account reads the trading account and runs pre-trade calculations.
package account

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"mt5-bridge/internal/connection"
	apperrors "mt5-bridge/internal/errors"
	"mt5-bridge/internal/market"
	"mt5-bridge/internal/models"
	"mt5-bridge/internal/terminal"
)

// Service exposes account information.
type Service struct {
	conn     *connection.Manager
	resolver *market.Resolver
	log      zerolog.Logger
}

// NewService creates the account service.
func NewService(conn *connection.Manager, resolver *market.Resolver, logger zerolog.Logger) *Service {
	return &Service{
		conn:     conn,
		resolver: resolver,
		log:      logger.With().Str("component", "account").Logger(),
	}
}

// Info returns the full account snapshot.
func (s *Service) Info(ctx context.Context) (*models.AccountInfo, error) {
	if err := s.conn.Require(ctx); err != nil {
		return nil, err
	}
	info, err := s.conn.Terminal().AccountInfo(ctx)
	if err != nil {
		if lost := apperrors.LinkLost("account_info", err); lost != nil {
			return nil, lost
		}
		return nil, apperrors.NewDataError("account", "", "Failed to get account info", fmt.Errorf("%w: %v", apperrors.ErrAccountInfo, err))
	}
	return info, nil
}

// Balance returns the account balance.
func (s *Service) Balance(ctx context.Context) (float64, error) {
	info, err := s.Info(ctx)
	if err != nil {
		return 0, err
	}
	return info.Balance, nil
}

// Equity returns balance plus floating profit.
func (s *Service) Equity(ctx context.Context) (float64, error) {
	info, err := s.Info(ctx)
	if err != nil {
		return 0, err
	}
	return info.Equity, nil
}

// Margin returns the margin in use.
func (s *Service) Margin(ctx context.Context) (float64, error) {
	info, err := s.Info(ctx)
	if err != nil {
		return 0, err
	}
	return info.Margin, nil
}

// FreeMargin returns the margin available for new positions.
func (s *Service) FreeMargin(ctx context.Context) (float64, error) {
	info, err := s.Info(ctx)
	if err != nil {
		return 0, err
	}
	return info.MarginFree, nil
}

// MarginLevel returns equity / margin in percent. The level is undefined
// while no margin is used.
func (s *Service) MarginLevel(ctx context.Context) (float64, error) {
	info, err := s.Info(ctx)
	if err != nil {
		return 0, apperrors.NewDataError("margin level", "", "Failed to get margin level", fmt.Errorf("%w: %v", apperrors.ErrMarginLevel, err))
	}
	if info.Margin == 0 {
		return 0, apperrors.NewDataError("margin level", "", "No margin in use", apperrors.ErrMarginLevel)
	}
	return info.MarginLevel, nil
}

// Currency returns the deposit currency.
func (s *Service) Currency(ctx context.Context) (string, error) {
	info, err := s.Info(ctx)
	if err != nil {
		return "", err
	}
	return info.Currency, nil
}

// TradeAllowed reports whether both the account and the terminal allow trading.
func (s *Service) TradeAllowed(ctx context.Context) (bool, error) {
	info, err := s.Info(ctx)
	if err != nil {
		return false, err
	}
	if !info.TradeAllowed {
		return false, nil
	}
	term, err := s.conn.TerminalInfo(ctx)
	if err != nil {
		return false, err
	}
	return term.TradeAllowed, nil
}

// TradeStatistics is the account summary returned to tool callers.
type TradeStatistics struct {
	Login         int64   `json:"login"`
	TradeMode     string  `json:"trade_mode"`
	Leverage      int     `json:"leverage"`
	Balance       float64 `json:"balance"`
	Credit        float64 `json:"credit"`
	Equity        float64 `json:"equity"`
	Profit        float64 `json:"profit"`
	Margin        float64 `json:"margin"`
	MarginFree    float64 `json:"margin_free"`
	MarginLevel   float64 `json:"margin_level"`
	Currency      string  `json:"currency"`
	Name          string  `json:"name"`
	Server        string  `json:"server"`
	Company       string  `json:"company"`
	TradeAllowed  bool    `json:"trade_allowed"`
	OpenPositions int     `json:"open_positions"`
	PendingOrders int     `json:"pending_orders"`
}

// TradeStatistics summarizes the account together with its open exposure.
func (s *Service) TradeStatistics(ctx context.Context) (*TradeStatistics, error) {
	info, err := s.Info(ctx)
	if err != nil {
		return nil, err
	}
	term := s.conn.Terminal()

	positions, err := term.PositionsGet(ctx, terminal.Filter{})
	if err != nil {
		if lost := apperrors.LinkLost("positions_get", err); lost != nil {
			return nil, lost
		}
		s.log.Warn().Err(err).Msg("Failed to count positions")
	}
	orders, err := term.OrdersGet(ctx, terminal.Filter{})
	if err != nil {
		if lost := apperrors.LinkLost("orders_get", err); lost != nil {
			return nil, lost
		}
		s.log.Warn().Err(err).Msg("Failed to count pending orders")
	}

	return &TradeStatistics{
		Login:         info.Login,
		TradeMode:     info.TradeModeName(),
		Leverage:      info.Leverage,
		Balance:       info.Balance,
		Credit:        info.Credit,
		Equity:        info.Equity,
		Profit:        info.Profit,
		Margin:        info.Margin,
		MarginFree:    info.MarginFree,
		MarginLevel:   info.MarginLevel,
		Currency:      info.Currency,
		Name:          info.Name,
		Server:        info.Server,
		Company:       info.Company,
		TradeAllowed:  info.TradeAllowed,
		OpenPositions: len(positions),
		PendingOrders: len(orders),
	}, nil
}
