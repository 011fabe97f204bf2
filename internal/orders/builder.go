// Package orders builds, validates and sends trade requests, and reads open
// positions and pending orders.
package orders

import (
	"context"
	"strings"
	"time"

	apperrors "mt5-bridge/internal/errors"
	"mt5-bridge/internal/market"
	"mt5-bridge/internal/models"
	"mt5-bridge/pkg/utils"
)

// Request defaults.
const (
	DefaultDeviation = 20
	DefaultComment   = "MCP"
)

// unknownType marks an order type key that did not normalize. The validator
// rejects it in its own order of checks.
const unknownType models.OrderType = -1

// Intent is a high-level trade instruction. Keys are normalized once, by Build.
//
// For a PENDING intent, Type may be a side (BUY or SELL), in which case the
// LIMIT or STOP subtype is derived from the live quote, or a concrete
// pending type, which is sent unchanged.
type Intent struct {
	Action     models.Key
	Type       models.Key
	Symbol     string
	Volume     float64
	Price      float64
	StopLimit  float64
	SL         float64
	TP         float64
	Deviation  int
	Magic      int64
	Comment    string
	Position   int64
	PositionBy int64
	Order      int64
	Filling    models.Key
	Lifetime   models.Key
	Expiration time.Time
}

// Builder turns intents into terminal trade requests.
type Builder struct {
	resolver *market.Resolver
}

// NewBuilder creates a request builder.
func NewBuilder(resolver *market.Resolver) *Builder {
	return &Builder{resolver: resolver}
}

// PendingType derives the pending subtype for side at price: a BUY below the
// ask is a BUY_LIMIT, otherwise a BUY_STOP; a SELL above the bid is a
// SELL_LIMIT, otherwise a SELL_STOP. ok is false when side is not BUY or SELL.
func PendingType(side models.OrderType, price, bid, ask float64) (t models.OrderType, ok bool) {
	switch side {
	case models.OrderTypeBuy:
		if ask > price {
			return models.OrderTypeBuyLimit, true
		}
		return models.OrderTypeBuyStop, true
	case models.OrderTypeSell:
		if bid < price {
			return models.OrderTypeSellLimit, true
		}
		return models.OrderTypeSellStop, true
	}
	return side, false
}

func needsSymbol(action models.TradeAction) bool {
	return action == models.TradeActionDeal || action == models.TradeActionPending
}

// Build assembles the trade request for in. The symbol is resolved first;
// an unknown symbol is a MarketError. DEAL prices come from the live tick
// (ask for BUY, bid for SELL) and any caller price is ignored.
func (b *Builder) Build(ctx context.Context, in Intent) (models.TradeRequest, error) {
	action, err := models.TradeActions.Normalize(in.Action)
	if err != nil {
		return models.TradeRequest{}, apperrors.NewValidationError("action", in.Action.String(), "Invalid trade action")
	}

	req := models.TradeRequest{
		Action:     action,
		Symbol:     strings.TrimSpace(in.Symbol),
		Volume:     in.Volume,
		Price:      in.Price,
		StopLimit:  in.StopLimit,
		SL:         in.SL,
		TP:         in.TP,
		Deviation:  in.Deviation,
		Magic:      in.Magic,
		Comment:    in.Comment,
		Position:   in.Position,
		PositionBy: in.PositionBy,
		Order:      in.Order,
		Expiration: in.Expiration,
	}
	if req.Deviation <= 0 {
		req.Deviation = DefaultDeviation
	}
	if req.Comment == "" {
		req.Comment = DefaultComment
	}

	var info *models.SymbolInfo
	if needsSymbol(action) || req.Symbol != "" {
		info, err = b.resolver.Ensure(ctx, req.Symbol)
		if err != nil {
			return models.TradeRequest{}, err
		}
		req.Symbol = info.Name
	}

	req.Type = models.OrderTypes.NormalizeOr(in.Type, unknownType)
	if in.Type.IsZero() && !needsSymbol(action) {
		req.Type = models.OrderTypeBuy
	}

	if in.Filling.IsZero() {
		req.TypeFilling = models.OrderFillingFOK
	} else if req.TypeFilling, err = models.OrderFillings.Normalize(in.Filling); err != nil {
		return models.TradeRequest{}, apperrors.NewValidationError("type_filling", in.Filling.String(), "Invalid order filling")
	}
	if in.Lifetime.IsZero() {
		req.TypeTime = models.OrderTimeGTC
		if !in.Expiration.IsZero() {
			req.TypeTime = models.OrderTimeSpecified
		}
	} else if req.TypeTime, err = models.OrderTimes.Normalize(in.Lifetime); err != nil {
		return models.TradeRequest{}, apperrors.NewValidationError("type_time", in.Lifetime.String(), "Invalid order lifetime")
	}

	switch action {
	case models.TradeActionDeal:
		req.Price = 0
		if req.Type == models.OrderTypeBuy || req.Type == models.OrderTypeSell {
			tick, err := b.resolver.Tick(ctx, req.Symbol)
			if err != nil {
				return models.TradeRequest{}, err
			}
			req.Price = tick.Bid
			if req.Type == models.OrderTypeBuy {
				req.Price = tick.Ask
			}
		}
	case models.TradeActionPending:
		if req.Type == models.OrderTypeBuy || req.Type == models.OrderTypeSell {
			tick, err := b.resolver.Tick(ctx, req.Symbol)
			if err != nil {
				return models.TradeRequest{}, err
			}
			// The subtype is chosen against the price that will be sent.
			if info != nil {
				req.Price = utils.NormalizePrice(req.Price, info.Digits)
			}
			req.Type, _ = PendingType(req.Type, req.Price, tick.Bid, tick.Ask)
		}
	}

	if info != nil {
		req.Price = utils.NormalizePrice(req.Price, info.Digits)
		req.StopLimit = utils.NormalizePrice(req.StopLimit, info.Digits)
		req.SL = utils.NormalizePrice(req.SL, info.Digits)
		req.TP = utils.NormalizePrice(req.TP, info.Digits)
		// Volumes off the symbol's lot step are rounded down, never up.
		req.Volume = utils.StepVolume(req.Volume, info.VolumeStep)
	}
	return req, nil
}
