package orders

import (
	"context"
	"fmt"

	"mt5-bridge/internal/models"
	"mt5-bridge/internal/security"
)

// Outcome is the result of one ticket in a bulk operation.
type Outcome struct {
	Ticket  int64  `json:"ticket" csv:"ticket"`
	Symbol  string `json:"symbol" csv:"symbol"`
	Success bool   `json:"success" csv:"success"`
	Message string `json:"message" csv:"message"`
}

// BulkSummary aggregates the outcomes of a bulk operation.
type BulkSummary struct {
	Total     int       `json:"total"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Outcomes  []Outcome `json:"outcomes"`
}

func (b *BulkSummary) add(ticket int64, symbol string, r *Result) {
	o := Outcome{Ticket: ticket, Symbol: symbol, Success: r.Success, Message: r.Message}
	b.Total++
	if r.Success {
		b.Succeeded++
	} else {
		b.Failed++
	}
	b.Outcomes = append(b.Outcomes, o)
}

// result wraps the summary; the operation succeeds only when every ticket did.
func (b *BulkSummary) result(verb, noun string) *Result {
	if b.Total == 0 {
		return Ok(fmt.Sprintf("No %s", noun), b)
	}
	msg := fmt.Sprintf("%s %d of %d %s", verb, b.Succeeded, b.Total, noun)
	if b.Failed > 0 {
		r := Fail(ReasonPartial, msg)
		r.Data = b
		return r
	}
	return Ok(msg, b)
}

// closeEach closes every position in positions, stopping early only when the
// terminal link is lost.
func (s *Service) closeEach(ctx context.Context, positions []models.Position, noun string) (*Result, error) {
	summary := &BulkSummary{Outcomes: []Outcome{}}
	for _, p := range positions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := s.ClosePosition(ctx, p.Ticket, nil)
		if err != nil {
			return nil, err
		}
		summary.add(p.Ticket, p.Symbol, r)
	}
	s.log.Info().
		Int("total", summary.Total).
		Int("failed", summary.Failed).
		Msg("Bulk close finished")
	return summary.result("Closed", noun), nil
}

func (s *Service) closeWhere(ctx context.Context, f Filter, noun string, keep func(models.Position) bool) (*Result, error) {
	if err := s.access.CheckPermission(ctx, security.OpClosePosition); err != nil {
		return failure(err)
	}
	positions, err := s.Positions(ctx, f)
	if err != nil {
		return failure(err)
	}
	selected := positions[:0]
	for _, p := range positions {
		if keep == nil || keep(p) {
			selected = append(selected, p)
		}
	}
	return s.closeEach(ctx, selected, noun)
}

// CloseAllPositions closes every open position.
func (s *Service) CloseAllPositions(ctx context.Context) (*Result, error) {
	return s.closeWhere(ctx, Filter{}, "open positions", nil)
}

// CloseAllPositionsBySymbol closes every open position on symbol.
func (s *Service) CloseAllPositionsBySymbol(ctx context.Context, symbol string) (*Result, error) {
	return s.closeWhere(ctx, Filter{Symbol: symbol}, fmt.Sprintf("open positions on %s", symbol), nil)
}

// CloseAllProfitablePositions closes every position currently in profit.
func (s *Service) CloseAllProfitablePositions(ctx context.Context) (*Result, error) {
	return s.closeWhere(ctx, Filter{}, "profitable positions", func(p models.Position) bool {
		return p.Profit > 0
	})
}

// CloseAllLosingPositions closes every position currently at a loss.
func (s *Service) CloseAllLosingPositions(ctx context.Context) (*Result, error) {
	return s.closeWhere(ctx, Filter{}, "losing positions", func(p models.Position) bool {
		return p.Profit < 0
	})
}

func (s *Service) cancelWhere(ctx context.Context, f Filter, noun string) (*Result, error) {
	if err := s.access.CheckPermission(ctx, security.OpCancelOrder); err != nil {
		return failure(err)
	}
	orders, err := s.PendingOrders(ctx, f)
	if err != nil {
		return failure(err)
	}
	summary := &BulkSummary{Outcomes: []Outcome{}}
	for _, o := range orders {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := s.CancelPendingOrder(ctx, o.Ticket)
		if err != nil {
			return nil, err
		}
		summary.add(o.Ticket, o.Symbol, r)
	}
	s.log.Info().
		Int("total", summary.Total).
		Int("failed", summary.Failed).
		Msg("Bulk cancel finished")
	return summary.result("Cancelled", noun), nil
}

// CancelAllPendingOrders cancels every active pending order.
func (s *Service) CancelAllPendingOrders(ctx context.Context) (*Result, error) {
	return s.cancelWhere(ctx, Filter{}, "pending orders")
}

// CancelPendingOrdersBySymbol cancels every pending order on symbol.
func (s *Service) CancelPendingOrdersBySymbol(ctx context.Context, symbol string) (*Result, error) {
	return s.cancelWhere(ctx, Filter{Symbol: symbol}, fmt.Sprintf("pending orders on %s", symbol))
}
