package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"mt5-bridge/internal/connection"
	apperrors "mt5-bridge/internal/errors"
	"mt5-bridge/internal/logging"
	"mt5-bridge/internal/market"
	"mt5-bridge/internal/models"
	"mt5-bridge/internal/security"
)

// MarketOrder is a request to open a position at the market.
type MarketOrder struct {
	Symbol    string
	Volume    float64
	Type      models.Key
	SL        float64
	TP        float64
	Deviation int
	Magic     int64
	Comment   string
}

// PendingOrder is a request to place a pending order.
type PendingOrder struct {
	Symbol     string
	Volume     float64
	Type       models.Key
	Price      float64
	StopLimit  float64
	SL         float64
	TP         float64
	Magic      int64
	Comment    string
	Filling    models.Key
	Lifetime   models.Key
	Expiration time.Time
}

// PendingChange lists the fields to change on a pending order. Nil fields
// keep their current value.
type PendingChange struct {
	Price      *float64
	SL         *float64
	TP         *float64
	Expiration *time.Time
}

// Service executes trade operations. Every operation goes through the same
// pipeline: trading switch, Build, Validate, Send. Failures are returned as
// a failed Result; the error is non-nil only when the terminal link is lost.
type Service struct {
	*Query

	builder    *Builder
	validator  *Validator
	dispatcher *Dispatcher
	access     *security.AccessController
	log        zerolog.Logger
}

// NewService creates the order service. A nil access controller permits
// every operation.
func NewService(conn *connection.Manager, resolver *market.Resolver, access *security.AccessController, logger zerolog.Logger) *Service {
	log := logger.With().Str("component", "orders").Logger()
	return &Service{
		Query:      NewQuery(conn, resolver, log),
		builder:    NewBuilder(resolver),
		validator:  NewValidator(resolver),
		dispatcher: NewDispatcher(conn, log),
		access:     access,
		log:        log,
	}
}

// failure converts an error from the pipeline into a failed Result, passing
// a lost link through as the error.
func failure(err error) (*Result, error) {
	var (
		ce *apperrors.ConnectionError
		ve *apperrors.ValidationError
		me *apperrors.MarketError
		ro *security.ReadOnlyError
	)
	switch {
	case apperrors.As(err, &ce):
		return nil, err
	case apperrors.As(err, &ro):
		return FailWith(ReasonTradingDisabled, err), nil
	case apperrors.As(err, &ve):
		r := Fail(reasonFor(ve), ve.Message)
		r.Cause = err
		return r, nil
	case apperrors.Is(err, apperrors.ErrSymbolNotFound):
		r := Fail(ReasonInvalidSymbol, MsgInvalidSymbol)
		r.Cause = err
		return r, nil
	case apperrors.As(err, &me):
		r := Fail(ReasonMarket, me.Message)
		r.Cause = err
		return r, nil
	}
	return FailWith(ReasonTerminal, err), nil
}

// submit runs the pipeline for in under operation op.
func (s *Service) submit(ctx context.Context, op security.OperationType, in Intent) (*Result, error) {
	if err := s.access.CheckPermission(ctx, op); err != nil {
		return failure(err)
	}
	req, err := s.builder.Build(ctx, in)
	if err != nil {
		return failure(err)
	}
	if err := s.validator.Validate(ctx, req); err != nil {
		log := logging.WithSymbol(s.log, req.Symbol)
		log.Info().
			Str("action", req.Action.String()).
			Str("reason", err.Error()).
			Msg("Trade request rejected by validation")
		return failure(err)
	}
	return s.dispatcher.Send(ctx, req)
}

// SendOrder builds, validates and sends a raw intent.
func (s *Service) SendOrder(ctx context.Context, in Intent) (*Result, error) {
	return s.submit(ctx, security.OpSendOrder, in)
}

// PlaceMarketOrder opens a BUY or SELL position at the live price.
func (s *Service) PlaceMarketOrder(ctx context.Context, o MarketOrder) (*Result, error) {
	return s.submit(ctx, security.OpPlaceOrder, Intent{
		Action:    models.TypedKey(models.TradeActionDeal),
		Type:      o.Type,
		Symbol:    o.Symbol,
		Volume:    o.Volume,
		SL:        o.SL,
		TP:        o.TP,
		Deviation: o.Deviation,
		Magic:     o.Magic,
		Comment:   o.Comment,
	})
}

// PlacePendingOrder places a pending order. A BUY or SELL type becomes a
// LIMIT or STOP order depending on where price sits against the quote.
func (s *Service) PlacePendingOrder(ctx context.Context, o PendingOrder) (*Result, error) {
	return s.submit(ctx, security.OpPlaceOrder, Intent{
		Action:     models.TypedKey(models.TradeActionPending),
		Type:       o.Type,
		Symbol:     o.Symbol,
		Volume:     o.Volume,
		Price:      o.Price,
		StopLimit:  o.StopLimit,
		SL:         o.SL,
		TP:         o.TP,
		Magic:      o.Magic,
		Comment:    o.Comment,
		Filling:    o.Filling,
		Lifetime:   o.Lifetime,
		Expiration: o.Expiration,
	})
}

// position looks up an open position by ticket.
func (s *Service) position(ctx context.Context, ticket int64) (*models.Position, *Result, error) {
	if ticket <= 0 {
		return nil, Fail(ReasonInvalidTicket, MsgMissingPosition), nil
	}
	positions, err := s.Positions(ctx, TicketFilter(ticket))
	if err != nil {
		r, err := failure(err)
		return nil, r, err
	}
	if len(positions) == 0 {
		return nil, Fail(ReasonNotFound, fmt.Sprintf("Position %d not found", ticket)), nil
	}
	return &positions[0], nil, nil
}

// pendingOrder looks up an active pending order by ticket.
func (s *Service) pendingOrder(ctx context.Context, ticket int64) (*models.Order, *Result, error) {
	if ticket <= 0 {
		return nil, Fail(ReasonInvalidTicket, MsgMissingOrder), nil
	}
	orders, err := s.PendingOrders(ctx, TicketFilter(ticket))
	if err != nil {
		r, err := failure(err)
		return nil, r, err
	}
	if len(orders) == 0 {
		return nil, Fail(ReasonNotFound, fmt.Sprintf("Pending order %d not found", ticket)), nil
	}
	return &orders[0], nil, nil
}

// ModifyPosition changes the stop loss and take profit of a position.
// A nil level keeps the current one; zero removes it.
func (s *Service) ModifyPosition(ctx context.Context, ticket int64, sl, tp *float64) (*Result, error) {
	if err := s.access.CheckPermission(ctx, security.OpModifyPosition); err != nil {
		return failure(err)
	}
	pos, r, err := s.position(ctx, ticket)
	if pos == nil {
		return r, err
	}

	in := Intent{
		Action:   models.TypedKey(models.TradeActionSLTP),
		Type:     models.TypedKey(pos.Type),
		Symbol:   pos.Symbol,
		Position: pos.Ticket,
		Magic:    pos.Magic,
		SL:       pos.SL,
		TP:       pos.TP,
	}
	if sl != nil {
		in.SL = *sl
	}
	if tp != nil {
		in.TP = *tp
	}
	log := logging.WithTicket(s.log, ticket)
	log.Debug().Msg("Modifying position")
	return s.submit(ctx, security.OpModifyPosition, in)
}

// ModifyPendingOrder changes the price, stops or expiration of a pending order.
func (s *Service) ModifyPendingOrder(ctx context.Context, ticket int64, change PendingChange) (*Result, error) {
	if err := s.access.CheckPermission(ctx, security.OpModifyOrder); err != nil {
		return failure(err)
	}
	order, r, err := s.pendingOrder(ctx, ticket)
	if order == nil {
		return r, err
	}

	in := Intent{
		Action:     models.TypedKey(models.TradeActionModify),
		Type:       models.TypedKey(order.Type),
		Symbol:     order.Symbol,
		Order:      order.Ticket,
		Volume:     order.VolumeCurrent,
		Price:      order.PriceOpen,
		StopLimit:  order.PriceStopLimit,
		SL:         order.SL,
		TP:         order.TP,
		Magic:      order.Magic,
		Filling:    models.TypedKey(order.TypeFilling),
		Lifetime:   models.TypedKey(order.TypeTime),
		Expiration: order.TimeExpiration,
	}
	if change.Price != nil {
		in.Price = *change.Price
	}
	if change.SL != nil {
		in.SL = *change.SL
	}
	if change.TP != nil {
		in.TP = *change.TP
	}
	if change.Expiration != nil {
		in.Expiration = *change.Expiration
		in.Lifetime = models.TypedKey(models.OrderTimeSpecified)
		if change.Expiration.IsZero() {
			in.Lifetime = models.TypedKey(models.OrderTimeGTC)
		}
	}
	return s.submit(ctx, security.OpModifyOrder, in)
}

// ClosePosition closes volume lots of a position with an opposite market
// deal. A nil volume closes the whole position.
func (s *Service) ClosePosition(ctx context.Context, ticket int64, volume *float64) (*Result, error) {
	if err := s.access.CheckPermission(ctx, security.OpClosePosition); err != nil {
		return failure(err)
	}
	pos, r, err := s.position(ctx, ticket)
	if pos == nil {
		return r, err
	}

	lots := pos.Volume
	if volume != nil {
		if *volume <= 0 || *volume > pos.Volume {
			return Fail(ReasonInvalidVolume, MsgInvalidVolume), nil
		}
		lots = *volume
	}
	return s.submit(ctx, security.OpClosePosition, Intent{
		Action:   models.TypedKey(models.TradeActionDeal),
		Type:     models.TypedKey(pos.Type.Opposite()),
		Symbol:   pos.Symbol,
		Volume:   lots,
		Position: pos.Ticket,
		Magic:    pos.Magic,
	})
}

// CancelPendingOrder removes a pending order.
func (s *Service) CancelPendingOrder(ctx context.Context, ticket int64) (*Result, error) {
	if err := s.access.CheckPermission(ctx, security.OpCancelOrder); err != nil {
		return failure(err)
	}
	order, r, err := s.pendingOrder(ctx, ticket)
	if order == nil {
		return r, err
	}
	return s.submit(ctx, security.OpCancelOrder, Intent{
		Action: models.TypedKey(models.TradeActionRemove),
		Type:   models.TypedKey(order.Type),
		Symbol: order.Symbol,
		Order:  order.Ticket,
		Magic:  order.Magic,
	})
}
