package orders

import (
	"context"
	"math"

	apperrors "mt5-bridge/internal/errors"
	"mt5-bridge/internal/market"
	"mt5-bridge/internal/models"
)

// MaxVolume is the largest volume accepted for a single request, in lots.
const MaxVolume = 100.0

// Validation reasons.
const (
	MsgInvalidSymbol       = "Invalid symbol"
	MsgInvalidVolume       = "Invalid volume"
	MsgInvalidPrice        = "Invalid price"
	MsgInvalidStops        = "Invalid SL or TP"
	MsgDealType            = "Invalid order type, must be BUY or SELL"
	MsgPendingType         = "Invalid order type for a pending order"
	MsgBuySLPrice          = "Stop loss must be below the price"
	MsgBuySLTP             = "Stop loss must be below the take profit"
	MsgSellSLPrice         = "Stop loss must be above the price"
	MsgSellSLTP            = "Stop loss must be above the take profit"
	MsgMissingPosition     = "Invalid position ticket"
	MsgMissingOrder        = "Invalid order ticket"
	MsgMissingOppositeLink = "Invalid opposite position ticket"
)

// Validator runs pre-flight checks on built requests.
type Validator struct {
	resolver *market.Resolver
}

// NewValidator creates a request validator.
func NewValidator(resolver *market.Resolver) *Validator {
	return &Validator{resolver: resolver}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func reject(field string, value interface{}, reason string) error {
	return apperrors.NewValidationError(field, value, reason)
}

// Validate checks req in a fixed order and returns the first failure as a
// *ValidationError whose message is the reason. A lost terminal link is
// returned as a ConnectionError instead.
func (v *Validator) Validate(ctx context.Context, req models.TradeRequest) error {
	if req.Symbol == "" {
		return reject("symbol", req.Symbol, MsgInvalidSymbol)
	}
	symbols, err := v.resolver.Resolve(ctx, req.Symbol)
	if lost := apperrors.LinkLost("symbols_get", err); lost != nil {
		return lost
	}
	if err != nil || len(symbols) == 0 {
		return reject("symbol", req.Symbol, MsgInvalidSymbol)
	}

	trades := req.Action == models.TradeActionDeal || req.Action == models.TradeActionPending
	if trades && !(req.Volume > 0 && req.Volume <= MaxVolume) {
		return reject("volume", req.Volume, MsgInvalidVolume)
	}
	if !finite(req.Price) || req.Price < 0 || !finite(req.StopLimit) {
		return reject("price", req.Price, MsgInvalidPrice)
	}
	if !finite(req.SL) || !finite(req.TP) || req.SL < 0 || req.TP < 0 {
		return reject("sl_tp", [2]float64{req.SL, req.TP}, MsgInvalidStops)
	}

	switch req.Action {
	case models.TradeActionDeal:
		return validateDeal(req)
	case models.TradeActionPending:
		switch req.Type {
		case models.OrderTypeBuyLimit, models.OrderTypeBuyStop, models.OrderTypeSellLimit, models.OrderTypeSellStop,
			models.OrderTypeBuyStopLimit, models.OrderTypeSellStopLimit:
		default:
			return reject("order_type", req.Type.String(), MsgPendingType)
		}
		if req.Price <= 0 {
			return reject("price", req.Price, MsgInvalidPrice)
		}
	case models.TradeActionSLTP:
		if req.Position <= 0 {
			return reject("ticket", req.Position, MsgMissingPosition)
		}
	case models.TradeActionModify, models.TradeActionRemove:
		if req.Order <= 0 {
			return reject("ticket", req.Order, MsgMissingOrder)
		}
	case models.TradeActionCloseBy:
		if req.Position <= 0 {
			return reject("ticket", req.Position, MsgMissingPosition)
		}
		if req.PositionBy <= 0 || req.PositionBy == req.Position {
			return reject("ticket", req.PositionBy, MsgMissingOppositeLink)
		}
	}
	return nil
}

// validateDeal checks a market request's side and its stops against the
// request price, which the builder takes from the live tick.
func validateDeal(req models.TradeRequest) error {
	sl, tp, price := req.SL, req.TP, req.Price

	switch req.Type {
	case models.OrderTypeBuy:
		if sl != 0 && sl >= price {
			return reject("sl", sl, MsgBuySLPrice)
		}
		if sl != 0 && tp != 0 && sl >= tp {
			return reject("sl", sl, MsgBuySLTP)
		}
	case models.OrderTypeSell:
		if sl != 0 && sl <= price {
			return reject("sl", sl, MsgSellSLPrice)
		}
		if sl != 0 && tp != 0 && sl <= tp {
			return reject("sl", sl, MsgSellSLTP)
		}
	default:
		return reject("order_type", req.Type.String(), MsgDealType)
	}
	return nil
}
