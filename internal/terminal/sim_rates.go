package terminal

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"time"

	apperrors "mt5-bridge/internal/errors"
	"mt5-bridge/internal/models"
	"mt5-bridge/pkg/utils"
)

// maxBars caps the number of candles a single copy call returns.
const maxBars = 100000

// CopyRatesFrom returns count bars ending at or before from, oldest first.
func (s *Simulator) CopyRatesFrom(ctx context.Context, symbol string, tf models.Timeframe, from time.Time, count int) ([]models.Rate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := s.ratesPrecheckLocked("copy_rates_from", symbol, tf, count)
	if err != nil {
		return nil, err
	}

	step := tfDuration(tf)
	end := from.UTC().Truncate(step)
	if now := s.now().Truncate(step); end.After(now) {
		end = now
	}
	start := end.Add(-time.Duration(count-1) * step)

	rates := s.seriesLocked(ctx, info, tf, start, end)
	if len(rates) > count {
		rates = rates[len(rates)-count:]
	}
	s.ok()
	return rates, nil
}

// CopyRatesFromPos returns count bars starting start bars back from the current one, oldest first.
func (s *Simulator) CopyRatesFromPos(ctx context.Context, symbol string, tf models.Timeframe, start, count int) ([]models.Rate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := s.ratesPrecheckLocked("copy_rates_from_pos", symbol, tf, count)
	if err != nil {
		return nil, err
	}
	if start < 0 {
		return nil, s.fail(apperrors.NewTerminalError(apperrors.CodeInvalidParams, "Invalid start position"))
	}

	step := tfDuration(tf)
	end := s.now().Truncate(step).Add(-time.Duration(start) * step)
	first := end.Add(-time.Duration(count-1) * step)

	rates := s.seriesLocked(ctx, info, tf, first, end)
	s.ok()
	return rates, nil
}

// CopyRatesRange returns every bar opened within [from, to], oldest first.
func (s *Simulator) CopyRatesRange(ctx context.Context, symbol string, tf models.Timeframe, from, to time.Time) ([]models.Rate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := s.ratesPrecheckLocked("copy_rates_range", symbol, tf, 1)
	if err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, s.fail(apperrors.NewTerminalError(apperrors.CodeInvalidParams, "Invalid date range"))
	}

	step := tfDuration(tf)
	start := from.UTC()
	if t := start.Truncate(step); t.Before(start) {
		start = t.Add(step)
	}
	end := to.UTC().Truncate(step)
	if now := s.now().Truncate(step); end.After(now) {
		end = now
	}
	if end.Sub(start)/step >= maxBars {
		start = end.Add(-time.Duration(maxBars-1) * step)
	}

	rates := s.seriesLocked(ctx, info, tf, start, end)
	s.ok()
	return rates, nil
}

func (s *Simulator) ratesPrecheckLocked(method, symbol string, tf models.Timeframe, count int) (*models.SymbolInfo, error) {
	if !s.initialized {
		return nil, s.fail(errNotInitialized)
	}
	if err := s.fault(method); err != nil {
		return nil, s.fail(err)
	}
	if !models.Timeframes.Exists(tf) {
		return nil, s.fail(apperrors.NewTerminalError(apperrors.CodeInvalidParams, fmt.Sprintf("Invalid timeframe %d", int(tf))))
	}
	if count <= 0 || count > maxBars {
		return nil, s.fail(apperrors.NewTerminalError(apperrors.CodeInvalidParams, "Invalid count"))
	}
	info, ok := s.symbols[symbol]
	if !ok {
		return nil, s.fail(apperrors.NewTerminalError(apperrors.CodeNotFound, fmt.Sprintf("Terminal: symbol %s not found", symbol)))
	}
	return info, nil
}

// seriesLocked prefers imported candles and falls back to generated ones.
func (s *Simulator) seriesLocked(ctx context.Context, info *models.SymbolInfo, tf models.Timeframe, start, end time.Time) []models.Rate {
	if end.Before(start) {
		return []models.Rate{}
	}
	if s.cfg.Store != nil {
		stored, err := s.cfg.Store.GetCandles(ctx, info.Name, tf, start, end)
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", info.Name).Msg("Failed to read stored candles")
		} else if len(stored) > 0 {
			return stored
		}
	}
	return s.generateLocked(info, tf, start, end)
}

// generateLocked produces deterministic bars derived from the bar's open time.
func (s *Simulator) generateLocked(info *models.SymbolInfo, tf models.Timeframe, start, end time.Time) []models.Rate {
	step := tfDuration(tf)
	base := s.basePrice(info.Name)
	seed := symbolSeed(info.Name)

	mid := func(t time.Time) float64 {
		n := float64(t.Unix() / int64(step/time.Second))
		wave := 0.004*math.Sin(n*0.21+seed) + 0.002*math.Sin(n*0.037+2*seed)
		return base * (1 + wave)
	}

	rates := make([]models.Rate, 0, int(end.Sub(start)/step)+1)
	for t := start; !t.After(end); t = t.Add(step) {
		n := float64(t.Unix() / int64(step/time.Second))
		open := mid(t)
		closePrice := mid(t.Add(step))
		wick := base * 0.0008 * (0.5 + math.Abs(math.Sin(n*1.7+seed)))

		rates = append(rates, models.Rate{
			Time:       t,
			Open:       utils.NormalizePrice(open, info.Digits),
			High:       utils.NormalizePrice(math.Max(open, closePrice)+wick, info.Digits),
			Low:        utils.NormalizePrice(math.Min(open, closePrice)-wick, info.Digits),
			Close:      utils.NormalizePrice(closePrice, info.Digits),
			TickVolume: int64(200 + 800*math.Abs(math.Sin(n*0.9+seed))),
			Spread:     info.Spread,
		})
	}
	return rates
}

// basePrice is the seeded mid price, so candles do not drift with SetTick.
func (s *Simulator) basePrice(symbol string) float64 {
	for _, info := range s.cfg.Symbols {
		if info.Name == symbol {
			return (info.Bid + info.Ask) / 2
		}
	}
	return 1
}

func symbolSeed(symbol string) float64 {
	h := fnv.New32a()
	h.Write([]byte(symbol))
	return float64(h.Sum32()%1000) / 100
}

func tfDuration(tf models.Timeframe) time.Duration {
	return time.Duration(tf.Minutes()) * time.Minute
}
