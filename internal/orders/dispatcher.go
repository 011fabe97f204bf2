package orders

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"mt5-bridge/internal/connection"
	apperrors "mt5-bridge/internal/errors"
	"mt5-bridge/internal/logging"
	"mt5-bridge/internal/models"
	"mt5-bridge/pkg/utils"
)

// Dispatcher submits trade requests and maps the terminal's answer to a Result.
// Submission is never retried.
type Dispatcher struct {
	conn *connection.Manager
	log  zerolog.Logger
}

// NewDispatcher creates a dispatcher over the managed terminal.
func NewDispatcher(conn *connection.Manager, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{conn: conn, log: logger}
}

// Send submits req once. Rejections come back as a failed Result; the
// error is non-nil only when the terminal link is lost.
func (d *Dispatcher) Send(ctx context.Context, req models.TradeRequest) (*Result, error) {
	if err := d.conn.Require(ctx); err != nil {
		return nil, err
	}
	term := d.conn.Terminal()

	start := time.Now()
	res, err := term.OrderSend(ctx, req)
	logging.LogTerminalCall(d.log, "order_send", time.Since(start), err)
	if err != nil {
		if lost := apperrors.LinkLost("order_send", err); lost != nil {
			return nil, lost
		}
		code, desc := apperrors.TerminalCode(err), err.Error()
		var te *apperrors.TerminalError
		if apperrors.As(err, &te) {
			desc = te.Message
		}
		d.log.Error().Err(err).Str("symbol", req.Symbol).Msg("order_send failed")
		r := Fail(ReasonTerminal, fmt.Sprintf("Error %d: %s", code, desc))
		r.Cause = err
		return r, nil
	}
	if res == nil {
		code, desc := term.LastError(ctx)
		return Fail(ReasonTerminal, fmt.Sprintf("Error %d: %s", code, desc)), nil
	}

	logging.LogOrder(d.log, req.Action.String(), req.Symbol, req.Type.String(), req.Volume, res.Retcode.String())

	if !res.Retcode.Success() {
		r := Fail(ReasonRejected, fmt.Sprintf("Error %d: %s", int(res.Retcode), res.Retcode.Description()))
		r.Data = res
		return r, nil
	}
	return Ok(describe(req, res), res), nil
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// describe renders the success message for an executed request.
func describe(req models.TradeRequest, res *models.TradeResult) string {
	volume := utils.FormatVolume(req.Volume)
	if res.Volume > 0 {
		volume = utils.FormatVolume(res.Volume)
	}
	price := res.Price
	if price == 0 {
		price = req.Price
	}

	switch req.Action {
	case models.TradeActionDeal:
		if req.Position != 0 {
			return fmt.Sprintf("Close position %d %s %s LOT at %s success (Deal ID: %d)",
				req.Position, req.Symbol, volume, formatNumber(price), res.Deal)
		}
		return fmt.Sprintf("%s %s %s LOT at %s success (Position ID: %d)",
			req.Type, req.Symbol, volume, formatNumber(price), res.Order)
	case models.TradeActionPending:
		return fmt.Sprintf("%s %s %s LOT at %s success (Order ID: %d)",
			req.Type, req.Symbol, volume, formatNumber(price), res.Order)
	case models.TradeActionSLTP:
		return fmt.Sprintf("Modify position %d success (SL: %s, TP: %s)",
			req.Position, formatNumber(req.SL), formatNumber(req.TP))
	case models.TradeActionModify:
		return fmt.Sprintf("Modify pending order %d success (price: %s, SL: %s, TP: %s)",
			req.Order, formatNumber(price), formatNumber(req.SL), formatNumber(req.TP))
	case models.TradeActionRemove:
		return fmt.Sprintf("Cancel pending order %d success", req.Order)
	case models.TradeActionCloseBy:
		return fmt.Sprintf("Close position %d by %d success (Deal ID: %d)", req.Position, req.PositionBy, res.Deal)
	}
	return "Order sent successfully"
}
