package models

import "time"

// TimeLayout is the layout used for times in tabular output.
const TimeLayout = "2006-01-02 15:04:05"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimeLayout)
}

// PositionRow is one line of a positions table.
type PositionRow struct {
	ID         int64   `json:"id" csv:"id"`
	Time       string  `json:"time" csv:"time"`
	Symbol     string  `json:"symbol" csv:"symbol"`
	Type       string  `json:"type" csv:"type"`
	TypeCode   int     `json:"type_code" csv:"type_code"`
	Volume     float64 `json:"volume" csv:"volume"`
	Open       float64 `json:"open" csv:"open"`
	StopLoss   float64 `json:"stop_loss" csv:"stop_loss"`
	TakeProfit float64 `json:"take_profit" csv:"take_profit"`
	Profit     float64 `json:"profit" csv:"profit"`
}

// NewPositionRow flattens a position into a table row.
func NewPositionRow(p Position) PositionRow {
	return PositionRow{
		ID:         p.Ticket,
		Time:       formatTime(p.Time),
		Symbol:     p.Symbol,
		Type:       p.Type.String(),
		TypeCode:   int(p.Type),
		Volume:     p.Volume,
		Open:       p.PriceOpen,
		StopLoss:   p.SL,
		TakeProfit: p.TP,
		Profit:     p.Profit,
	}
}

// PendingOrderRow is one line of a pending orders table.
type PendingOrderRow struct {
	ID           int64   `json:"id" csv:"id"`
	Time         string  `json:"time" csv:"time"`
	Symbol       string  `json:"symbol" csv:"symbol"`
	Type         string  `json:"type" csv:"type"`
	TypeCode     int     `json:"type_code" csv:"type_code"`
	State        string  `json:"state" csv:"state"`
	StateCode    int     `json:"state_code" csv:"state_code"`
	Volume       float64 `json:"volume" csv:"volume"`
	Open         float64 `json:"open" csv:"open"`
	StopLoss     float64 `json:"stop_loss" csv:"stop_loss"`
	TakeProfit   float64 `json:"take_profit" csv:"take_profit"`
	PriceCurrent float64 `json:"price_current" csv:"price_current"`
	Filling      string  `json:"filling" csv:"filling"`
	FillingCode  int     `json:"filling_code" csv:"filling_code"`
	Lifetime     string  `json:"lifetime" csv:"lifetime"`
	LifetimeCode int     `json:"lifetime_code" csv:"lifetime_code"`
	Expiration   string  `json:"expiration" csv:"expiration"`
}

// NewPendingOrderRow flattens a pending order into a table row.
func NewPendingOrderRow(o Order) PendingOrderRow {
	return PendingOrderRow{
		ID:           o.Ticket,
		Time:         formatTime(o.TimeSetup),
		Symbol:       o.Symbol,
		Type:         o.Type.String(),
		TypeCode:     int(o.Type),
		State:        o.State.String(),
		StateCode:    int(o.State),
		Volume:       o.VolumeCurrent,
		Open:         o.PriceOpen,
		StopLoss:     o.SL,
		TakeProfit:   o.TP,
		PriceCurrent: o.PriceCurrent,
		Filling:      o.TypeFilling.String(),
		FillingCode:  int(o.TypeFilling),
		Lifetime:     o.TypeTime.String(),
		LifetimeCode: int(o.TypeTime),
		Expiration:   formatTime(o.TimeExpiration),
	}
}

// DealRow is one line of a deals history table.
type DealRow struct {
	Ticket     int64   `json:"ticket" csv:"ticket"`
	Time       string  `json:"time" csv:"time"`
	Symbol     string  `json:"symbol" csv:"symbol"`
	Type       string  `json:"type" csv:"type"`
	Entry      string  `json:"entry" csv:"entry"`
	Volume     float64 `json:"volume" csv:"volume"`
	Price      float64 `json:"price" csv:"price"`
	Profit     float64 `json:"profit" csv:"profit"`
	Commission float64 `json:"commission" csv:"commission"`
	Swap       float64 `json:"swap" csv:"swap"`
	Fee        float64 `json:"fee" csv:"fee"`
	Magic      int64   `json:"magic" csv:"magic"`
	PositionID int64   `json:"position_id" csv:"position_id"`
	Order      int64   `json:"order" csv:"order"`
	Comment    string  `json:"comment" csv:"comment"`
}

// NewDealRow flattens a deal into a table row.
func NewDealRow(d Deal) DealRow {
	return DealRow{
		Ticket:     d.Ticket,
		Time:       formatTime(d.Time),
		Symbol:     d.Symbol,
		Type:       d.Type.String(),
		Entry:      d.Entry.String(),
		Volume:     d.Volume,
		Price:      d.Price,
		Profit:     d.Profit,
		Commission: d.Commission,
		Swap:       d.Swap,
		Fee:        d.Fee,
		Magic:      d.Magic,
		PositionID: d.PositionID,
		Order:      d.Order,
		Comment:    d.Comment,
	}
}

// HistoryOrderRow is one line of an orders history table.
type HistoryOrderRow struct {
	Ticket         int64   `json:"ticket" csv:"ticket"`
	TimeSetup      string  `json:"time_setup" csv:"time_setup"`
	TimeDone       string  `json:"time_done" csv:"time_done"`
	TimeExpiration string  `json:"time_expiration" csv:"time_expiration"`
	Symbol         string  `json:"symbol" csv:"symbol"`
	Type           string  `json:"type" csv:"type"`
	State          string  `json:"state" csv:"state"`
	VolumeInitial  float64 `json:"volume_initial" csv:"volume_initial"`
	VolumeCurrent  float64 `json:"volume_current" csv:"volume_current"`
	PriceOpen      float64 `json:"price_open" csv:"price_open"`
	SL             float64 `json:"sl" csv:"sl"`
	TP             float64 `json:"tp" csv:"tp"`
	PriceCurrent   float64 `json:"price_current" csv:"price_current"`
	PriceStopLimit float64 `json:"price_stoplimit" csv:"price_stoplimit"`
	Magic          int64   `json:"magic" csv:"magic"`
	PositionID     int64   `json:"position_id" csv:"position_id"`
	Comment        string  `json:"comment" csv:"comment"`
}

// NewHistoryOrderRow flattens a historical order into a table row.
func NewHistoryOrderRow(o Order) HistoryOrderRow {
	return HistoryOrderRow{
		Ticket:         o.Ticket,
		TimeSetup:      formatTime(o.TimeSetup),
		TimeDone:       formatTime(o.TimeDone),
		TimeExpiration: formatTime(o.TimeExpiration),
		Symbol:         o.Symbol,
		Type:           o.Type.String(),
		State:          o.State.String(),
		VolumeInitial:  o.VolumeInitial,
		VolumeCurrent:  o.VolumeCurrent,
		PriceOpen:      o.PriceOpen,
		SL:             o.SL,
		TP:             o.TP,
		PriceCurrent:   o.PriceCurrent,
		PriceStopLimit: o.PriceStopLimit,
		Magic:          o.Magic,
		PositionID:     o.PositionID,
		Comment:        o.Comment,
	}
}

// CandleRow is one line of a candles table.
type CandleRow struct {
	Time       string  `json:"time" csv:"time"`
	Open       float64 `json:"open" csv:"open"`
	High       float64 `json:"high" csv:"high"`
	Low        float64 `json:"low" csv:"low"`
	Close      float64 `json:"close" csv:"close"`
	TickVolume int64   `json:"tick_volume" csv:"tick_volume"`
	Spread     int     `json:"spread" csv:"spread"`
	RealVolume int64   `json:"real_volume" csv:"real_volume"`
}

// NewCandleRow flattens a bar into a table row.
func NewCandleRow(r Rate) CandleRow {
	return CandleRow{
		Time:       formatTime(r.Time),
		Open:       r.Open,
		High:       r.High,
		Low:        r.Low,
		Close:      r.Close,
		TickVolume: r.TickVolume,
		Spread:     r.Spread,
		RealVolume: r.RealVolume,
	}
}
