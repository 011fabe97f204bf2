package models

import "time"

// TradeRequest is the structure passed to the terminal's order_send call.
type TradeRequest struct {
	Action      TradeAction  `json:"action"`
	Magic       int64        `json:"magic"`
	Order       int64        `json:"order,omitempty"`
	Symbol      string       `json:"symbol"`
	Volume      float64      `json:"volume"`
	Price       float64      `json:"price"`
	StopLimit   float64      `json:"stoplimit,omitempty"`
	SL          float64      `json:"sl"`
	TP          float64      `json:"tp"`
	Deviation   int          `json:"deviation"`
	Type        OrderType    `json:"type"`
	TypeFilling OrderFilling `json:"type_filling"`
	TypeTime    OrderTime    `json:"type_time"`
	Expiration  time.Time    `json:"expiration,omitempty"`
	Comment     string       `json:"comment"`
	Position    int64        `json:"position,omitempty"`
	PositionBy  int64        `json:"position_by,omitempty"`
}

// TradeResult is the terminal's answer to order_send.
type TradeResult struct {
	Retcode         TradeRetcode `json:"retcode"`
	Deal            int64        `json:"deal"`
	Order           int64        `json:"order"`
	Volume          float64      `json:"volume"`
	Price           float64      `json:"price"`
	Bid             float64      `json:"bid"`
	Ask             float64      `json:"ask"`
	Comment         string       `json:"comment"`
	RequestID       int64        `json:"request_id"`
	RetcodeExternal int          `json:"retcode_external"`
	Request         TradeRequest `json:"request"`
}

// Position is an open position as reported by positions_get.
type Position struct {
	Ticket       int64     `json:"ticket"`
	Time         time.Time `json:"time"`
	Type         OrderType `json:"type"`
	Magic        int64     `json:"magic"`
	Identifier   int64     `json:"identifier"`
	Volume       float64   `json:"volume"`
	PriceOpen    float64   `json:"price_open"`
	SL           float64   `json:"sl"`
	TP           float64   `json:"tp"`
	PriceCurrent float64   `json:"price_current"`
	Swap         float64   `json:"swap"`
	Profit       float64   `json:"profit"`
	Symbol       string    `json:"symbol"`
	Comment      string    `json:"comment"`
}

// Order is an active pending order as reported by orders_get.
type Order struct {
	Ticket         int64        `json:"ticket"`
	TimeSetup      time.Time    `json:"time_setup"`
	TimeExpiration time.Time    `json:"time_expiration"`
	TimeDone       time.Time    `json:"time_done,omitempty"`
	Type           OrderType    `json:"type"`
	TypeTime       OrderTime    `json:"type_time"`
	TypeFilling    OrderFilling `json:"type_filling"`
	State          OrderState   `json:"state"`
	Magic          int64        `json:"magic"`
	PositionID     int64        `json:"position_id"`
	VolumeInitial  float64      `json:"volume_initial"`
	VolumeCurrent  float64      `json:"volume_current"`
	PriceOpen      float64      `json:"price_open"`
	SL             float64      `json:"sl"`
	TP             float64      `json:"tp"`
	PriceCurrent   float64      `json:"price_current"`
	PriceStopLimit float64      `json:"price_stoplimit"`
	Symbol         string       `json:"symbol"`
	Comment        string       `json:"comment"`
}

// Deal is an executed deal from the account history.
type Deal struct {
	Ticket     int64     `json:"ticket"`
	Order      int64     `json:"order"`
	Time       time.Time `json:"time"`
	Type       DealType  `json:"type"`
	Entry      DealEntry `json:"entry"`
	Magic      int64     `json:"magic"`
	PositionID int64     `json:"position_id"`
	Volume     float64   `json:"volume"`
	Price      float64   `json:"price"`
	Commission float64   `json:"commission"`
	Swap       float64   `json:"swap"`
	Profit     float64   `json:"profit"`
	Fee        float64   `json:"fee"`
	Symbol     string    `json:"symbol"`
	Comment    string    `json:"comment"`
}
