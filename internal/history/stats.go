package history

import (
	"context"

	"github.com/shopspring/decimal"

	"mt5-bridge/internal/models"
)

// Statistics summarizes closed trades over a history window.
type Statistics struct {
	TotalDeals    int     `json:"total_deals"`
	TotalOrders   int     `json:"total_orders"`
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"`
	NetProfit     float64 `json:"net_profit"`
	GrossProfit   float64 `json:"gross_profit"`
	GrossLoss     float64 `json:"gross_loss"`
	Commission    float64 `json:"commission"`
	Swap          float64 `json:"swap"`
	Fee           float64 `json:"fee"`
	ProfitFactor  float64 `json:"profit_factor"`
	AvgWin        float64 `json:"avg_win"`
	AvgLoss       float64 `json:"avg_loss"`
	LargestWin    float64 `json:"largest_win"`
	LargestLoss   float64 `json:"largest_loss"`
}

// closes reports whether d realizes profit on a position.
func closes(d models.Deal) bool {
	if d.Type != models.DealTypeBuy && d.Type != models.DealTypeSell {
		return false
	}
	return d.Entry == models.DealEntryOut || d.Entry == models.DealEntryOutBy || d.Entry == models.DealEntryInOut
}

// Statistics computes trade statistics for the deals and orders matching q.
func (s *Service) Statistics(ctx context.Context, q Query) (*Statistics, error) {
	deals, err := s.Deals(ctx, q)
	if err != nil {
		return nil, err
	}
	orders, err := s.Orders(ctx, q)
	if err != nil {
		return nil, err
	}
	stats := Summarize(deals)
	stats.TotalOrders = len(orders)
	return stats, nil
}

// Summarize computes trade statistics from deals. Each closing deal counts
// as one trade; its result includes commission, swap and fee.
func Summarize(deals []models.Deal) *Statistics {
	stats := &Statistics{TotalDeals: len(deals)}

	var (
		net, grossProfit, grossLoss decimal.Decimal
		commission, swap, fee       decimal.Decimal
		largestWin, largestLoss     decimal.Decimal
	)
	for _, d := range deals {
		commission = commission.Add(decimal.NewFromFloat(d.Commission))
		swap = swap.Add(decimal.NewFromFloat(d.Swap))
		fee = fee.Add(decimal.NewFromFloat(d.Fee))
		if !closes(d) {
			continue
		}

		result := decimal.NewFromFloat(d.Profit).
			Add(decimal.NewFromFloat(d.Commission)).
			Add(decimal.NewFromFloat(d.Swap)).
			Add(decimal.NewFromFloat(d.Fee))
		net = net.Add(result)
		stats.TotalTrades++

		switch {
		case result.IsPositive():
			stats.WinningTrades++
			grossProfit = grossProfit.Add(result)
			if result.GreaterThan(largestWin) {
				largestWin = result
			}
		case result.IsNegative():
			stats.LosingTrades++
			grossLoss = grossLoss.Add(result)
			if result.LessThan(largestLoss) {
				largestLoss = result
			}
		}
	}

	if stats.TotalTrades > 0 {
		stats.WinRate = round2(decimal.NewFromInt(int64(stats.WinningTrades)).
			Div(decimal.NewFromInt(int64(stats.TotalTrades))).
			Mul(decimal.NewFromInt(100)))
	}
	if stats.WinningTrades > 0 {
		stats.AvgWin = round2(grossProfit.Div(decimal.NewFromInt(int64(stats.WinningTrades))))
	}
	if stats.LosingTrades > 0 {
		stats.AvgLoss = round2(grossLoss.Div(decimal.NewFromInt(int64(stats.LosingTrades))))
	}
	if !grossLoss.IsZero() {
		stats.ProfitFactor = round2(grossProfit.Div(grossLoss.Abs()))
	}

	stats.NetProfit = round2(net)
	stats.GrossProfit = round2(grossProfit)
	stats.GrossLoss = round2(grossLoss)
	stats.Commission = round2(commission)
	stats.Swap = round2(swap)
	stats.Fee = round2(fee)
	stats.LargestWin = round2(largestWin)
	stats.LargestLoss = round2(largestLoss)
	return stats
}

func round2(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
