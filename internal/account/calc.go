package account

import (
	"context"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	apperrors "mt5-bridge/internal/errors"
	"mt5-bridge/internal/models"
)

// orderType normalizes a loosely typed order type. Names, codes and typed
// values are accepted; anything else is a validation error.
func orderType(key models.Key) (models.OrderType, error) {
	t, err := models.OrderTypes.Normalize(key)
	if err != nil {
		return 0, apperrors.NewValidationError("order_type", key.String(), fmt.Sprintf("Invalid order type: %s", key))
	}
	return t, nil
}

// CalculateMargin returns the margin needed to open volume lots of symbol,
// in account currency. A zero price uses the live quote: ask for buy types,
// bid for sell types.
func (s *Service) CalculateMargin(ctx context.Context, symbol string, key models.Key, volume, price float64) (float64, error) {
	t, err := orderType(key)
	if err != nil {
		return 0, err
	}
	if volume <= 0 {
		return 0, apperrors.NewValidationError("volume", volume, "must be positive")
	}
	if _, err := s.resolver.Ensure(ctx, symbol); err != nil {
		return 0, err
	}
	if price == 0 {
		tick, err := s.resolver.Tick(ctx, symbol)
		if err != nil {
			return 0, err
		}
		price = tick.Bid
		if t.IsBuy() {
			price = tick.Ask
		}
	}

	margin, err := s.conn.Terminal().OrderCalcMargin(ctx, t, symbol, volume, price)
	if err != nil {
		return 0, s.calcFailure("order_calc_margin", symbol, err)
	}
	return margin, nil
}

// CalculateProfit returns the profit of a trade opened at openPrice and
// closed at closePrice, in account currency.
func (s *Service) CalculateProfit(ctx context.Context, symbol string, key models.Key, volume, openPrice, closePrice float64) (float64, error) {
	t, err := orderType(key)
	if err != nil {
		return 0, err
	}
	if volume <= 0 {
		return 0, apperrors.NewValidationError("volume", volume, "must be positive")
	}
	if _, err := s.resolver.Ensure(ctx, symbol); err != nil {
		return 0, err
	}

	profit, err := s.conn.Terminal().OrderCalcProfit(ctx, t, symbol, volume, openPrice, closePrice)
	if err != nil {
		return 0, s.calcFailure("order_calc_profit", symbol, err)
	}
	return profit, nil
}

func (s *Service) calcFailure(method, symbol string, err error) error {
	if lost := apperrors.LinkLost(method, err); lost != nil {
		return lost
	}
	return apperrors.NewDataError("calculation", symbol, fmt.Sprintf("%s failed: %v", method, err), apperrors.ErrCalculation)
}

// PriceTarget holds take-profit and stop-loss levels at a fixed distance
// from a reference price.
type PriceTarget struct {
	Symbol         string  `json:"symbol"`
	Price          float64 `json:"price"`
	Distance       float64 `json:"distance"`
	Points         float64 `json:"points"`
	BuyTakeProfit  float64 `json:"buy_take_profit"`
	BuyStopLoss    float64 `json:"buy_stop_loss"`
	SellTakeProfit float64 `json:"sell_take_profit"`
	SellStopLoss   float64 `json:"sell_stop_loss"`
}

// CalculatePriceTarget places targets points (in symbol points) or percent
// (of price) away from price. Exactly one of points and percent must be set.
func (s *Service) CalculatePriceTarget(ctx context.Context, symbol string, price float64, points, percent *float64) (*PriceTarget, error) {
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return nil, apperrors.NewValidationError("price", price, "must be a positive number")
	}
	if (points == nil) == (percent == nil) {
		return nil, apperrors.NewValidationError("points", nil, "exactly one of points or percent is required")
	}
	info, err := s.resolver.Ensure(ctx, symbol)
	if err != nil {
		return nil, err
	}

	digits := int32(info.Digits)
	ref := decimal.NewFromFloat(price)
	point := decimal.NewFromFloat(info.Point)

	var distance decimal.Decimal
	if points != nil {
		if *points <= 0 {
			return nil, apperrors.NewValidationError("points", *points, "must be positive")
		}
		distance = decimal.NewFromFloat(*points).Mul(point)
	} else {
		if *percent <= 0 {
			return nil, apperrors.NewValidationError("percent", *percent, "must be positive")
		}
		distance = ref.Mul(decimal.NewFromFloat(*percent)).Div(decimal.NewFromInt(100))
	}
	distance = distance.Round(digits)

	up := ref.Add(distance).Round(digits).InexactFloat64()
	down := ref.Sub(distance).Round(digits).InexactFloat64()

	target := &PriceTarget{
		Symbol:         info.Name,
		Price:          ref.Round(digits).InexactFloat64(),
		Distance:       distance.InexactFloat64(),
		BuyTakeProfit:  up,
		BuyStopLoss:    down,
		SellTakeProfit: down,
		SellStopLoss:   up,
	}
	if !point.IsZero() {
		target.Points = distance.Div(point).Round(1).InexactFloat64()
	}
	return target, nil
}
