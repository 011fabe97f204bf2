// Package models provides the terminal's enumerations and record types.
package models

import "strings"

// OrderType is the terminal's order type.
type OrderType int

const (
	OrderTypeBuy           OrderType = 0
	OrderTypeSell          OrderType = 1
	OrderTypeBuyLimit      OrderType = 2
	OrderTypeSellLimit     OrderType = 3
	OrderTypeBuyStop       OrderType = 4
	OrderTypeSellStop      OrderType = 5
	OrderTypeBuyStopLimit  OrderType = 6
	OrderTypeSellStopLimit OrderType = 7
	OrderTypeCloseBy       OrderType = 8
)

// OrderTypes is the order type registry.
var OrderTypes = newRegistry("order type", map[OrderType]string{
	OrderTypeBuy:           "BUY",
	OrderTypeSell:          "SELL",
	OrderTypeBuyLimit:      "BUY_LIMIT",
	OrderTypeSellLimit:     "SELL_LIMIT",
	OrderTypeBuyStop:       "BUY_STOP",
	OrderTypeSellStop:      "SELL_STOP",
	OrderTypeBuyStopLimit:  "BUY_STOP_LIMIT",
	OrderTypeSellStopLimit: "SELL_STOP_LIMIT",
	OrderTypeCloseBy:       "CLOSE_BY",
}, true)

func (t OrderType) String() string { return OrderTypes.ToString(t) }

// IsBuy reports whether the order type opens or adds to the long side.
func (t OrderType) IsBuy() bool {
	switch t {
	case OrderTypeBuy, OrderTypeBuyLimit, OrderTypeBuyStop, OrderTypeBuyStopLimit:
		return true
	}
	return false
}

// IsSell reports whether the order type opens or adds to the short side.
func (t OrderType) IsSell() bool {
	switch t {
	case OrderTypeSell, OrderTypeSellLimit, OrderTypeSellStop, OrderTypeSellStopLimit:
		return true
	}
	return false
}

// Opposite returns the market type that closes a position of type t.
func (t OrderType) Opposite() OrderType {
	if t == OrderTypeBuy {
		return OrderTypeSell
	}
	return OrderTypeBuy
}

// OrderFilling is the order filling policy.
type OrderFilling int

const (
	OrderFillingFOK    OrderFilling = 0
	OrderFillingIOC    OrderFilling = 1
	OrderFillingReturn OrderFilling = 2
)

// OrderFillings is the filling policy registry.
var OrderFillings = newRegistry("order filling", map[OrderFilling]string{
	OrderFillingFOK:    "FOK",
	OrderFillingIOC:    "IOC",
	OrderFillingReturn: "RETURN",
}, true)

func (f OrderFilling) String() string { return OrderFillings.ToString(f) }

// OrderTime is the order lifetime.
type OrderTime int

const (
	OrderTimeGTC          OrderTime = 0
	OrderTimeDay          OrderTime = 1
	OrderTimeSpecified    OrderTime = 2
	OrderTimeSpecifiedDay OrderTime = 3
)

// OrderTimes is the order lifetime registry.
var OrderTimes = newRegistry("order time", map[OrderTime]string{
	OrderTimeGTC:          "GTC",
	OrderTimeDay:          "DAY",
	OrderTimeSpecified:    "SPECIFIED",
	OrderTimeSpecifiedDay: "SPECIFIED_DAY",
}, true)

func (t OrderTime) String() string { return OrderTimes.ToString(t) }

// TradeAction is the trade request action.
type TradeAction int

const (
	TradeActionDeal    TradeAction = 1
	TradeActionPending TradeAction = 5
	TradeActionSLTP    TradeAction = 6
	TradeActionModify  TradeAction = 7
	TradeActionRemove  TradeAction = 8
	TradeActionCloseBy TradeAction = 10
)

// TradeActions is the trade action registry.
var TradeActions = newRegistry("trade action", map[TradeAction]string{
	TradeActionDeal:    "DEAL",
	TradeActionPending: "PENDING",
	TradeActionSLTP:    "SLTP",
	TradeActionModify:  "MODIFY",
	TradeActionRemove:  "REMOVE",
	TradeActionCloseBy: "CLOSE_BY",
}, true)

func (a TradeAction) String() string { return TradeActions.ToString(a) }

// OrderState is the lifecycle state of an order.
type OrderState int

const (
	OrderStateStarted       OrderState = 0
	OrderStatePlaced        OrderState = 1
	OrderStateCanceled      OrderState = 2
	OrderStatePartial       OrderState = 3
	OrderStateFilled        OrderState = 4
	OrderStateRejected      OrderState = 5
	OrderStateExpired       OrderState = 6
	OrderStateRequestAdd    OrderState = 7
	OrderStateRequestModify OrderState = 8
	OrderStateRequestCancel OrderState = 9
)

// OrderStates is the order state registry.
var OrderStates = newRegistry("order state", map[OrderState]string{
	OrderStateStarted:       "STARTED",
	OrderStatePlaced:        "PLACED",
	OrderStateCanceled:      "CANCELED",
	OrderStatePartial:       "PARTIAL",
	OrderStateFilled:        "FILLED",
	OrderStateRejected:      "REJECTED",
	OrderStateExpired:       "EXPIRED",
	OrderStateRequestAdd:    "REQUEST_ADD",
	OrderStateRequestModify: "REQUEST_MODIFY",
	OrderStateRequestCancel: "REQUEST_CANCEL",
}, true)

func (s OrderState) String() string { return OrderStates.ToString(s) }

// DealType is the type of an executed deal.
type DealType int

const (
	DealTypeBuy                    DealType = 0
	DealTypeSell                   DealType = 1
	DealTypeBalance                DealType = 2
	DealTypeCredit                 DealType = 3
	DealTypeCharge                 DealType = 4
	DealTypeCorrection             DealType = 5
	DealTypeBonus                  DealType = 6
	DealTypeCommission             DealType = 7
	DealTypeCommissionDaily        DealType = 8
	DealTypeCommissionMonthly      DealType = 9
	DealTypeCommissionAgentDaily   DealType = 10
	DealTypeCommissionAgentMonthly DealType = 11
	DealTypeInterest               DealType = 12
	DealTypeBuyCanceled            DealType = 13
	DealTypeSellCanceled           DealType = 14
)

// DealTypes is the deal type registry.
var DealTypes = newRegistry("deal type", map[DealType]string{
	DealTypeBuy:                    "BUY",
	DealTypeSell:                   "SELL",
	DealTypeBalance:                "BALANCE",
	DealTypeCredit:                 "CREDIT",
	DealTypeCharge:                 "CHARGE",
	DealTypeCorrection:             "CORRECTION",
	DealTypeBonus:                  "BONUS",
	DealTypeCommission:             "COMMISSION",
	DealTypeCommissionDaily:        "COMMISSION_DAILY",
	DealTypeCommissionMonthly:      "COMMISSION_MONTHLY",
	DealTypeCommissionAgentDaily:   "COMMISSION_AGENT_DAILY",
	DealTypeCommissionAgentMonthly: "COMMISSION_AGENT_MONTHLY",
	DealTypeInterest:               "INTEREST",
	DealTypeBuyCanceled:            "BUY_CANCELED",
	DealTypeSellCanceled:           "SELL_CANCELED",
}, true)

func (t DealType) String() string { return DealTypes.ToString(t) }

// DealEntry tells whether a deal opened or closed a position.
type DealEntry int

const (
	DealEntryIn    DealEntry = 0
	DealEntryOut   DealEntry = 1
	DealEntryInOut DealEntry = 2
	DealEntryOutBy DealEntry = 3
)

// DealEntries is the deal entry registry.
var DealEntries = newRegistry("deal entry", map[DealEntry]string{
	DealEntryIn:    "IN",
	DealEntryOut:   "OUT",
	DealEntryInOut: "INOUT",
	DealEntryOutBy: "OUT_BY",
}, true)

func (e DealEntry) String() string { return DealEntries.ToString(e) }

// Timeframe is a candle period, using the terminal's own codes.
type Timeframe int

const (
	TimeframeM1  Timeframe = 1
	TimeframeM2  Timeframe = 2
	TimeframeM3  Timeframe = 3
	TimeframeM4  Timeframe = 4
	TimeframeM5  Timeframe = 5
	TimeframeM6  Timeframe = 6
	TimeframeM10 Timeframe = 10
	TimeframeM12 Timeframe = 12
	TimeframeM15 Timeframe = 15
	TimeframeM20 Timeframe = 20
	TimeframeM30 Timeframe = 30
	TimeframeH1  Timeframe = 16385
	TimeframeH2  Timeframe = 16386
	TimeframeH3  Timeframe = 16387
	TimeframeH4  Timeframe = 16388
	TimeframeH6  Timeframe = 16390
	TimeframeH8  Timeframe = 16392
	TimeframeH12 Timeframe = 16396
	TimeframeD1  Timeframe = 16408
	TimeframeW1  Timeframe = 32769
	TimeframeMN1 Timeframe = 49153
)

// Timeframes is the timeframe registry. Names are case-insensitive.
var Timeframes = newRegistry("timeframe", map[Timeframe]string{
	TimeframeM1:  "M1",
	TimeframeM2:  "M2",
	TimeframeM3:  "M3",
	TimeframeM4:  "M4",
	TimeframeM5:  "M5",
	TimeframeM6:  "M6",
	TimeframeM10: "M10",
	TimeframeM12: "M12",
	TimeframeM15: "M15",
	TimeframeM20: "M20",
	TimeframeM30: "M30",
	TimeframeH1:  "H1",
	TimeframeH2:  "H2",
	TimeframeH3:  "H3",
	TimeframeH4:  "H4",
	TimeframeH6:  "H6",
	TimeframeH8:  "H8",
	TimeframeH12: "H12",
	TimeframeD1:  "D1",
	TimeframeW1:  "W1",
	TimeframeMN1: "MN1",
}, true)

func (tf Timeframe) String() string { return Timeframes.ToString(tf) }

// Minutes returns the nominal length of one candle. MN1 counts as 30 days.
func (tf Timeframe) Minutes() int {
	switch {
	case tf < 16384:
		return int(tf)
	case tf < 32768:
		return int(tf-16384) * 60
	case tf == TimeframeW1:
		return 7 * 24 * 60
	default:
		return 30 * 24 * 60
	}
}

// ParseTimeframe returns the timeframe for a name such as "h1" or "M15".
func ParseTimeframe(name string) (Timeframe, bool) {
	return Timeframes.Lookup(strings.TrimSpace(name))
}

// TradeRetcode is the return code of a trade request.
type TradeRetcode int

const (
	RetcodeRequote          TradeRetcode = 10004
	RetcodeReject           TradeRetcode = 10006
	RetcodeCancel           TradeRetcode = 10007
	RetcodePlaced           TradeRetcode = 10008
	RetcodeDone             TradeRetcode = 10009
	RetcodeDonePartial      TradeRetcode = 10010
	RetcodeError            TradeRetcode = 10011
	RetcodeTimeout          TradeRetcode = 10012
	RetcodeInvalid          TradeRetcode = 10013
	RetcodeInvalidVolume    TradeRetcode = 10014
	RetcodeInvalidPrice     TradeRetcode = 10015
	RetcodeInvalidStops     TradeRetcode = 10016
	RetcodeTradeDisabled    TradeRetcode = 10017
	RetcodeMarketClosed     TradeRetcode = 10018
	RetcodeNoMoney          TradeRetcode = 10019
	RetcodePriceChanged     TradeRetcode = 10020
	RetcodePriceOff         TradeRetcode = 10021
	RetcodeInvalidExpire    TradeRetcode = 10022
	RetcodeOrderChanged     TradeRetcode = 10023
	RetcodeTooManyRequests  TradeRetcode = 10024
	RetcodeNoChanges        TradeRetcode = 10025
	RetcodeClientDisablesAT TradeRetcode = 10027
	RetcodeLocked           TradeRetcode = 10028
	RetcodeFrozen           TradeRetcode = 10029
	RetcodeInvalidFill      TradeRetcode = 10030
	RetcodeConnection       TradeRetcode = 10031
	RetcodeLimitOrders      TradeRetcode = 10033
	RetcodeLimitVolume      TradeRetcode = 10034
	RetcodeInvalidOrder     TradeRetcode = 10035
	RetcodePositionClosed   TradeRetcode = 10036
)

// TradeRetcodes is the trade return code registry.
var TradeRetcodes = newRegistry("trade retcode", map[TradeRetcode]string{
	RetcodeRequote:          "REQUOTE",
	RetcodeReject:           "REJECT",
	RetcodeCancel:           "CANCEL",
	RetcodePlaced:           "PLACED",
	RetcodeDone:             "DONE",
	RetcodeDonePartial:      "DONE_PARTIAL",
	RetcodeError:            "ERROR",
	RetcodeTimeout:          "TIMEOUT",
	RetcodeInvalid:          "INVALID",
	RetcodeInvalidVolume:    "INVALID_VOLUME",
	RetcodeInvalidPrice:     "INVALID_PRICE",
	RetcodeInvalidStops:     "INVALID_STOPS",
	RetcodeTradeDisabled:    "TRADE_DISABLED",
	RetcodeMarketClosed:     "MARKET_CLOSED",
	RetcodeNoMoney:          "NO_MONEY",
	RetcodePriceChanged:     "PRICE_CHANGED",
	RetcodePriceOff:         "PRICE_OFF",
	RetcodeInvalidExpire:    "INVALID_EXPIRATION",
	RetcodeOrderChanged:     "ORDER_CHANGED",
	RetcodeTooManyRequests:  "TOO_MANY_REQUESTS",
	RetcodeNoChanges:        "NO_CHANGES",
	RetcodeClientDisablesAT: "CLIENT_DISABLES_AT",
	RetcodeLocked:           "LOCKED",
	RetcodeFrozen:           "FROZEN",
	RetcodeInvalidFill:      "INVALID_FILL",
	RetcodeConnection:       "CONNECTION",
	RetcodeLimitOrders:      "LIMIT_ORDERS",
	RetcodeLimitVolume:      "LIMIT_VOLUME",
	RetcodeInvalidOrder:     "INVALID_ORDER",
	RetcodePositionClosed:   "POSITION_CLOSED",
}, false)

var retcodeDescriptions = map[TradeRetcode]string{
	RetcodeRequote:          "Requote",
	RetcodeReject:           "Request rejected",
	RetcodeCancel:           "Request canceled by trader",
	RetcodePlaced:           "Order placed",
	RetcodeDone:             "Request completed",
	RetcodeDonePartial:      "Only part of the request was completed",
	RetcodeError:            "Request processing error",
	RetcodeTimeout:          "Request canceled by timeout",
	RetcodeInvalid:          "Invalid request",
	RetcodeInvalidVolume:    "Invalid volume in the request",
	RetcodeInvalidPrice:     "Invalid price in the request",
	RetcodeInvalidStops:     "Invalid stops in the request",
	RetcodeTradeDisabled:    "Trade is disabled",
	RetcodeMarketClosed:     "Market is closed",
	RetcodeNoMoney:          "There is not enough money to complete the request",
	RetcodePriceChanged:     "Prices changed",
	RetcodePriceOff:         "There are no quotes to process the request",
	RetcodeInvalidExpire:    "Invalid order expiration date in the request",
	RetcodeOrderChanged:     "Order state changed",
	RetcodeTooManyRequests:  "Too frequent requests",
	RetcodeNoChanges:        "No changes in request",
	RetcodeClientDisablesAT: "Autotrading disabled by client terminal",
	RetcodeLocked:           "Request locked for processing",
	RetcodeFrozen:           "Order or position frozen",
	RetcodeInvalidFill:      "Invalid order filling type",
	RetcodeConnection:       "No connection with the trade server",
	RetcodeLimitOrders:      "The number of pending orders has reached the limit",
	RetcodeLimitVolume:      "The volume of orders and positions has reached the limit",
	RetcodeInvalidOrder:     "Incorrect or prohibited order type",
	RetcodePositionClosed:   "Position with the specified identifier has already been closed",
}

func (c TradeRetcode) String() string { return TradeRetcodes.ToString(c) }

// Description returns the human readable meaning of the code.
func (c TradeRetcode) Description() string {
	if d, ok := retcodeDescriptions[c]; ok {
		return d
	}
	return c.String()
}

// Success reports whether the request was accepted by the server.
func (c TradeRetcode) Success() bool {
	return c == RetcodeDone || c == RetcodePlaced || c == RetcodeDonePartial
}
