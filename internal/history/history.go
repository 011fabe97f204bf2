// Package history reads the account's deal and order history.
package history

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"mt5-bridge/internal/connection"
	apperrors "mt5-bridge/internal/errors"
	"mt5-bridge/internal/models"
	"mt5-bridge/internal/terminal"
)

// DefaultWindow is the history window used when no start date is given.
const DefaultWindow = 30 * 24 * time.Hour

// Query selects history records. A non-zero Ticket (or Position, for deals)
// ignores the date range and group.
type Query struct {
	From     time.Time
	To       time.Time
	Group    string
	Ticket   int64
	Position int64
}

// Service reads the account history.
type Service struct {
	conn *connection.Manager
	log  zerolog.Logger
	now  func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the clock used for the default window.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates the history service.
func NewService(conn *connection.Manager, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		conn: conn,
		log:  logger.With().Str("component", "history").Logger(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) filter(q Query) terminal.HistoryFilter {
	f := terminal.HistoryFilter{Ticket: q.Ticket, Position: q.Position}
	if q.Ticket != 0 || q.Position != 0 {
		return f
	}
	f.From, f.To, f.Group = q.From, q.To, q.Group
	if f.To.IsZero() {
		f.To = s.now().UTC()
	}
	if f.From.IsZero() {
		f.From = s.now().UTC().Add(-DefaultWindow)
	}
	if f.From.After(f.To) {
		f.From, f.To = f.To, f.From
	}
	return f
}

func historyError(kind string, sentinel error, err error) error {
	msg := fmt.Sprintf("Failed to retrieve %s history: %v", kind, err)
	var te *apperrors.TerminalError
	if apperrors.As(err, &te) {
		msg = fmt.Sprintf("Failed to retrieve %s history: %s", kind, te.Message)
	}
	return apperrors.NewDataError(kind+" history", "", msg,
		fmt.Errorf("%w (error code: %d)", sentinel, apperrors.TerminalCode(err)))
}

// Deals returns executed deals, newest first. No matches is an empty slice.
func (s *Service) Deals(ctx context.Context, q Query) ([]models.Deal, error) {
	if err := s.conn.Require(ctx); err != nil {
		return nil, err
	}
	f := s.filter(q)
	s.log.Debug().
		Time("from", f.From).
		Time("to", f.To).
		Str("group", f.Group).
		Int64("ticket", f.Ticket).
		Int64("position", f.Position).
		Msg("Retrieving deals")

	deals, err := s.conn.Terminal().HistoryDealsGet(ctx, f)
	if err != nil {
		if lost := apperrors.LinkLost("history_deals_get", err); lost != nil {
			return nil, lost
		}
		s.log.Error().Err(err).Msg("Failed to retrieve deals history")
		return nil, historyError("deals", apperrors.ErrDealsHistory, err)
	}
	if len(deals) == 0 {
		s.log.Info().Msg("No deals found with the specified parameters")
		return []models.Deal{}, nil
	}

	out := make([]models.Deal, len(deals))
	copy(out, deals)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.After(out[j].Time) })
	return out, nil
}

// Orders returns finished orders, newest first. Position is ignored.
func (s *Service) Orders(ctx context.Context, q Query) ([]models.Order, error) {
	if err := s.conn.Require(ctx); err != nil {
		return nil, err
	}
	q.Position = 0
	f := s.filter(q)

	orders, err := s.conn.Terminal().HistoryOrdersGet(ctx, f)
	if err != nil {
		if lost := apperrors.LinkLost("history_orders_get", err); lost != nil {
			return nil, lost
		}
		s.log.Error().Err(err).Msg("Failed to retrieve orders history")
		return nil, historyError("orders", apperrors.ErrOrdersHistory, err)
	}
	if len(orders) == 0 {
		s.log.Info().Msg("No orders found with the specified parameters")
		return []models.Order{}, nil
	}

	out := make([]models.Order, len(orders))
	copy(out, orders)
	sort.SliceStable(out, func(i, j int) bool { return out[i].TimeSetup.After(out[j].TimeSetup) })
	return out, nil
}

// TotalDeals counts the deals matching q.
func (s *Service) TotalDeals(ctx context.Context, q Query) (int, error) {
	deals, err := s.Deals(ctx, q)
	return len(deals), err
}

// TotalOrders counts the finished orders matching q.
func (s *Service) TotalOrders(ctx context.Context, q Query) (int, error) {
	orders, err := s.Orders(ctx, q)
	return len(orders), err
}
