package market

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	apperrors "mt5-bridge/internal/errors"
	"mt5-bridge/internal/models"
)

const (
	// DefaultCandleCount is the number of bars returned when no bound is given.
	DefaultCandleCount = 1000
	// DefaultLookback is the window used when only the end date is given.
	DefaultLookback = 30 * 24 * time.Hour
)

// DateLayouts are the accepted date formats, interpreted in UTC.
var DateLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// ParseDate parses a date in one of DateLayouts. An empty string yields the zero time.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	for _, layout := range DateLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, apperrors.NewValidationError("date", value, "expected YYYY-MM-DD, YYYY-MM-DD HH:MM or ISO 8601")
}

func (s *Service) timeframe(name string) (models.Timeframe, error) {
	tf, ok := models.ParseTimeframe(name)
	if !ok {
		return 0, apperrors.NewInvalidTimeframeError(name)
	}
	return tf, nil
}

// CandlesLatest returns the count most recent bars, newest first.
func (s *Service) CandlesLatest(ctx context.Context, symbol, timeframe string, count int) ([]models.Rate, error) {
	if _, err := s.resolver.Ensure(ctx, symbol); err != nil {
		return nil, err
	}
	tf, err := s.timeframe(timeframe)
	if err != nil {
		return nil, err
	}
	if count <= 0 {
		return nil, apperrors.NewValidationError("count", count, "must be positive")
	}

	rates, err := s.conn.Terminal().CopyRatesFromPos(ctx, symbol, tf, 0, count)
	return s.finishRates(symbol, tf, "copy_rates_from_pos", rates, err)
}

// CandlesByDate returns bars between from and to, newest first. Either bound
// may be empty:
//   - both: every bar in the range (reversed bounds are swapped)
//   - from only: DefaultCandleCount bars up to from
//   - to only: the DefaultLookback window ending at to
//   - neither: the latest DefaultCandleCount bars
func (s *Service) CandlesByDate(ctx context.Context, symbol, timeframe, from, to string) ([]models.Rate, error) {
	if _, err := s.resolver.Ensure(ctx, symbol); err != nil {
		return nil, err
	}
	tf, err := s.timeframe(timeframe)
	if err != nil {
		return nil, err
	}
	start, err := ParseDate(from)
	if err != nil {
		return nil, err
	}
	end, err := ParseDate(to)
	if err != nil {
		return nil, err
	}

	term := s.conn.Terminal()
	var (
		rates  []models.Rate
		method string
	)
	switch {
	case !start.IsZero() && !end.IsZero():
		if start.After(end) {
			start, end = end, start
		}
		method = "copy_rates_range"
		rates, err = term.CopyRatesRange(ctx, symbol, tf, start, end)
	case !start.IsZero():
		method = "copy_rates_from"
		rates, err = term.CopyRatesFrom(ctx, symbol, tf, start, DefaultCandleCount)
	case !end.IsZero():
		method = "copy_rates_range"
		rates, err = term.CopyRatesRange(ctx, symbol, tf, end.Add(-DefaultLookback), end)
	default:
		method = "copy_rates_from_pos"
		rates, err = term.CopyRatesFromPos(ctx, symbol, tf, 0, DefaultCandleCount)
	}

	s.log.Debug().
		Str("symbol", symbol).
		Str("timeframe", tf.String()).
		Str("method", method).
		Int("bars", len(rates)).
		Msg("Candles retrieved")

	return s.finishRates(symbol, tf, method, rates, err)
}

func (s *Service) finishRates(symbol string, tf models.Timeframe, method string, rates []models.Rate, err error) ([]models.Rate, error) {
	if err != nil {
		if lost := apperrors.LinkLost(method, err); lost != nil {
			return nil, lost
		}
		return nil, apperrors.NewMarketDataError(symbol, fmt.Sprintf("Failed to get candles for %s %s: %v", symbol, tf, err))
	}
	if len(rates) == 0 {
		return nil, apperrors.NewMarketDataError(symbol, fmt.Sprintf("No candle data found for %s with timeframe %s", symbol, tf))
	}

	out := make([]models.Rate, len(rates))
	copy(out, rates)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.After(out[j].Time) })
	return out, nil
}
