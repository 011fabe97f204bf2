package orders

import (
	"encoding/json"

	apperrors "mt5-bridge/internal/errors"
)

// Reason classifies a failed trade operation.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonInvalidRequest  Reason = "INVALID_REQUEST"
	ReasonInvalidSymbol   Reason = "INVALID_SYMBOL"
	ReasonInvalidVolume   Reason = "INVALID_VOLUME"
	ReasonInvalidPrice    Reason = "INVALID_PRICE"
	ReasonInvalidStops    Reason = "INVALID_STOPS"
	ReasonInvalidType     Reason = "INVALID_ORDER_TYPE"
	ReasonStopLossSide    Reason = "STOP_LOSS_SIDE"
	ReasonInvalidTicket   Reason = "INVALID_TICKET"
	ReasonNotFound        Reason = "NOT_FOUND"
	ReasonMarket          Reason = "MARKET"
	ReasonTerminal        Reason = "TERMINAL_ERROR"
	ReasonRejected        Reason = "REJECTED"
	ReasonTradingDisabled Reason = "TRADING_DISABLED"
	ReasonPartial         Reason = "PARTIAL"
)

// Result is the outcome of a trade operation. A success carries Data; a
// failure carries a Reason and, when one exists, the error behind it.
type Result struct {
	Success bool
	Reason  Reason
	Message string
	Data    interface{}
	Cause   error
}

// Ok builds a successful result.
func Ok(message string, data interface{}) *Result {
	return &Result{Success: true, Message: message, Data: data}
}

// Fail builds a failed result.
func Fail(reason Reason, message string) *Result {
	return &Result{Reason: reason, Message: message}
}

// FailWith builds a failed result backed by err.
func FailWith(reason Reason, err error) *Result {
	return &Result{Reason: reason, Message: err.Error(), Cause: err}
}

// Err returns the failure as an error, or nil for a success.
func (r *Result) Err() error {
	if r.Success {
		return nil
	}
	if r.Cause != nil {
		return r.Cause
	}
	return apperrors.New(r.Message)
}

type resultJSON struct {
	Error   bool        `json:"error"`
	Message string      `json:"message"`
	Reason  Reason      `json:"reason,omitempty"`
	Data    interface{} `json:"data"`
}

// MarshalJSON writes {"error": bool, "message": str, "data": ...}.
func (r *Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(resultJSON{
		Error:   !r.Success,
		Message: r.Message,
		Reason:  r.Reason,
		Data:    r.Data,
	})
}

// reasonFor maps a validation failure to its reason code.
func reasonFor(err *apperrors.ValidationError) Reason {
	switch err.Field {
	case "symbol":
		return ReasonInvalidSymbol
	case "volume":
		return ReasonInvalidVolume
	case "price":
		return ReasonInvalidPrice
	case "sl_tp":
		return ReasonInvalidStops
	case "order_type":
		return ReasonInvalidType
	case "sl":
		return ReasonStopLossSide
	case "ticket":
		return ReasonInvalidTicket
	}
	return ReasonInvalidRequest
}
