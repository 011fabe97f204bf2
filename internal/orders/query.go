package orders

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"mt5-bridge/internal/connection"
	apperrors "mt5-bridge/internal/errors"
	"mt5-bridge/internal/market"
	"mt5-bridge/internal/models"
	"mt5-bridge/internal/terminal"
)

// Filter selects positions or pending orders.
//
// Ticket wins over Symbol and Symbol over Group for the terminal call. With a
// ticket set, Symbol must match exactly one symbol and Group at least one,
// otherwise nothing is returned. A ticket that is not an integer matches
// nothing. Type, State, Filling, Lifetime and Magic filter the rows
// afterwards; State, Filling and Lifetime only apply to pending orders.
type Filter struct {
	Ticket   string
	Symbol   string
	Group    string
	Magic    *int64
	Type     models.Key
	State    models.Key
	Filling  models.Key
	Lifetime models.Key
}

// TicketFilter selects a single ticket.
func TicketFilter(ticket int64) Filter {
	return Filter{Ticket: strconv.FormatInt(ticket, 10)}
}

// CurrencyGroup returns the group pattern matching every symbol quoted in
// or against currency.
func CurrencyGroup(currency string) string {
	return "*" + strings.ToUpper(strings.TrimSpace(currency)) + "*"
}

// Query reads open positions and active pending orders.
type Query struct {
	conn     *connection.Manager
	resolver *market.Resolver
	log      zerolog.Logger
}

// NewQuery creates the query adapter.
func NewQuery(conn *connection.Manager, resolver *market.Resolver, logger zerolog.Logger) *Query {
	return &Query{conn: conn, resolver: resolver, log: logger}
}

// terminalFilter applies the priority rules. ok is false when the result is
// known to be empty without asking the terminal.
func (q *Query) terminalFilter(ctx context.Context, f Filter) (tf terminal.Filter, ok bool, err error) {
	if f.Ticket == "" {
		if f.Symbol != "" {
			return terminal.Filter{Symbol: f.Symbol}, true, nil
		}
		return terminal.Filter{Group: f.Group}, true, nil
	}

	if f.Symbol != "" {
		symbols, err := q.resolver.Resolve(ctx, f.Symbol)
		if lost := apperrors.LinkLost("symbols_get", err); lost != nil {
			return tf, false, lost
		}
		if len(symbols) != 1 {
			return tf, false, nil
		}
	}
	if f.Group != "" {
		symbols, err := q.resolver.Resolve(ctx, f.Group)
		if lost := apperrors.LinkLost("symbols_get", err); lost != nil {
			return tf, false, lost
		}
		if len(symbols) == 0 {
			return tf, false, nil
		}
	}

	ticket, perr := strconv.ParseInt(strings.TrimSpace(f.Ticket), 10, 64)
	if perr != nil {
		return tf, false, nil
	}
	return terminal.Filter{Ticket: ticket}, true, nil
}

type keyFilter struct {
	set  bool
	code int
}

func orderTypeFilter(k models.Key) (keyFilter, error) {
	if k.IsZero() {
		return keyFilter{}, nil
	}
	t, err := models.OrderTypes.Normalize(k)
	if err != nil {
		return keyFilter{}, apperrors.NewValidationError("order_type", k.String(), fmt.Sprintf("Invalid order type: %s", k))
	}
	return keyFilter{set: true, code: int(t)}, nil
}

func (kf keyFilter) match(code int) bool {
	return !kf.set || kf.code == code
}

// Positions returns open positions matching f, newest first.
func (q *Query) Positions(ctx context.Context, f Filter) ([]models.Position, error) {
	byType, err := orderTypeFilter(f.Type)
	if err != nil {
		return nil, err
	}
	if err := q.conn.Require(ctx); err != nil {
		return nil, err
	}
	tf, ok, err := q.terminalFilter(ctx, f)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []models.Position{}, nil
	}

	positions, err := q.conn.Terminal().PositionsGet(ctx, tf)
	if err != nil {
		if lost := apperrors.LinkLost("positions_get", err); lost != nil {
			return nil, lost
		}
		q.log.Error().Err(err).Msg("Failed to retrieve positions")
		return nil, apperrors.NewDataError("positions", f.Symbol, "Failed to retrieve positions", err)
	}

	out := make([]models.Position, 0, len(positions))
	for _, p := range positions {
		if !byType.match(int(p.Type)) {
			continue
		}
		if f.Magic != nil && p.Magic != *f.Magic {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Time.Equal(out[j].Time) {
			return out[i].Ticket > out[j].Ticket
		}
		return out[i].Time.After(out[j].Time)
	})
	return out, nil
}

// PendingOrders returns active pending orders matching f, newest first.
func (q *Query) PendingOrders(ctx context.Context, f Filter) ([]models.Order, error) {
	byType, err := orderTypeFilter(f.Type)
	if err != nil {
		return nil, err
	}
	var byState, byFilling, byLifetime keyFilter
	if !f.State.IsZero() {
		s, err := models.OrderStates.Normalize(f.State)
		if err != nil {
			return nil, apperrors.NewValidationError("order_state", f.State.String(), fmt.Sprintf("Invalid order state: %s", f.State))
		}
		byState = keyFilter{set: true, code: int(s)}
	}
	if !f.Filling.IsZero() {
		fl, err := models.OrderFillings.Normalize(f.Filling)
		if err != nil {
			return nil, apperrors.NewValidationError("order_filling", f.Filling.String(), fmt.Sprintf("Invalid order filling: %s", f.Filling))
		}
		byFilling = keyFilter{set: true, code: int(fl)}
	}
	if !f.Lifetime.IsZero() {
		lt, err := models.OrderTimes.Normalize(f.Lifetime)
		if err != nil {
			return nil, apperrors.NewValidationError("order_lifetime", f.Lifetime.String(), fmt.Sprintf("Invalid order lifetime: %s", f.Lifetime))
		}
		byLifetime = keyFilter{set: true, code: int(lt)}
	}

	if err := q.conn.Require(ctx); err != nil {
		return nil, err
	}
	tf, ok, err := q.terminalFilter(ctx, f)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []models.Order{}, nil
	}

	orders, err := q.conn.Terminal().OrdersGet(ctx, tf)
	if err != nil {
		if lost := apperrors.LinkLost("orders_get", err); lost != nil {
			return nil, lost
		}
		q.log.Error().Err(err).Msg("Failed to retrieve pending orders")
		return nil, apperrors.NewDataError("pending orders", f.Symbol, "Failed to retrieve pending orders", err)
	}

	out := make([]models.Order, 0, len(orders))
	for _, o := range orders {
		if !byType.match(int(o.Type)) || !byState.match(int(o.State)) ||
			!byFilling.match(int(o.TypeFilling)) || !byLifetime.match(int(o.TypeTime)) {
			continue
		}
		if f.Magic != nil && o.Magic != *f.Magic {
			continue
		}
		out = append(out, o)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TimeSetup.Equal(out[j].TimeSetup) {
			return out[i].Ticket > out[j].Ticket
		}
		return out[i].TimeSetup.After(out[j].TimeSetup)
	})
	return out, nil
}

// AllPositions returns every open position.
func (q *Query) AllPositions(ctx context.Context) ([]models.Position, error) {
	return q.Positions(ctx, Filter{})
}

// PositionsBySymbol returns the open positions on symbol.
func (q *Query) PositionsBySymbol(ctx context.Context, symbol string) ([]models.Position, error) {
	return q.Positions(ctx, Filter{Symbol: symbol})
}

// PositionsByCurrency returns the open positions on symbols containing currency.
func (q *Query) PositionsByCurrency(ctx context.Context, currency string) ([]models.Position, error) {
	return q.Positions(ctx, Filter{Group: CurrencyGroup(currency)})
}

// PositionsByID returns the position with the given ticket, if open.
func (q *Query) PositionsByID(ctx context.Context, ticket string) ([]models.Position, error) {
	return q.Positions(ctx, Filter{Ticket: ticket})
}

// AllPendingOrders returns every active pending order.
func (q *Query) AllPendingOrders(ctx context.Context) ([]models.Order, error) {
	return q.PendingOrders(ctx, Filter{})
}

// PendingOrdersBySymbol returns the pending orders on symbol.
func (q *Query) PendingOrdersBySymbol(ctx context.Context, symbol string) ([]models.Order, error) {
	return q.PendingOrders(ctx, Filter{Symbol: symbol})
}

// PendingOrdersByCurrency returns the pending orders on symbols containing currency.
func (q *Query) PendingOrdersByCurrency(ctx context.Context, currency string) ([]models.Order, error) {
	return q.PendingOrders(ctx, Filter{Group: CurrencyGroup(currency)})
}

// PendingOrdersByID returns the pending order with the given ticket, if active.
func (q *Query) PendingOrdersByID(ctx context.Context, ticket string) ([]models.Order, error) {
	return q.PendingOrders(ctx, Filter{Ticket: ticket})
}

// PositionRows flattens positions into table rows.
func PositionRows(positions []models.Position) []models.PositionRow {
	rows := make([]models.PositionRow, len(positions))
	for i, p := range positions {
		rows[i] = models.NewPositionRow(p)
	}
	return rows
}

// PendingOrderRows flattens pending orders into table rows.
func PendingOrderRows(orders []models.Order) []models.PendingOrderRow {
	rows := make([]models.PendingOrderRow, len(orders))
	for i, o := range orders {
		rows[i] = models.NewPendingOrderRow(o)
	}
	return rows
}
