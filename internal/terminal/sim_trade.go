package terminal

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"mt5-bridge/internal/models"
	"mt5-bridge/pkg/utils"
)

// OrderSend executes a trade request against the simulated account.
// Rejections are reported through the result's retcode, never as an error.
func (s *Simulator) OrderSend(ctx context.Context, req models.TradeRequest) (*models.TradeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return nil, s.fail(errNotInitialized)
	}
	if err := s.fault("order_send"); err != nil {
		return nil, s.fail(err)
	}

	s.requestID++
	result := &models.TradeResult{Request: req, RequestID: s.requestID}

	var retcode models.TradeRetcode
	if !s.connected {
		retcode = models.RetcodeConnection
	} else {
		retcode = s.executeLocked(req, result)
	}
	result.Retcode = retcode
	result.Comment = retcode.Description()
	if retcode == models.RetcodeMarketClosed {
		result.Comment = fmt.Sprintf("%s, reopens %s", result.Comment, utils.NextSessionOpen(s.now()).Format(time.RFC3339))
	}
	if info, ok := s.symbols[req.Symbol]; ok {
		result.Bid = info.Bid
		result.Ask = info.Ask
	}

	s.log.Debug().
		Str("action", req.Action.String()).
		Str("symbol", req.Symbol).
		Str("retcode", retcode.String()).
		Int64("order", result.Order).
		Msg("Simulated order_send")

	if retcode.Success() {
		s.persistLocked()
	}
	s.ok()
	return result, nil
}

func (s *Simulator) executeLocked(req models.TradeRequest, result *models.TradeResult) models.TradeRetcode {
	if !s.tradeAllowed {
		return models.RetcodeClientDisablesAT
	}

	switch req.Action {
	case models.TradeActionDeal:
		if req.Position != 0 {
			return s.closePositionLocked(req, result)
		}
		return s.openPositionLocked(req, result)
	case models.TradeActionPending:
		return s.placePendingLocked(req, result)
	case models.TradeActionSLTP:
		return s.modifyPositionLocked(req)
	case models.TradeActionModify:
		return s.modifyOrderLocked(req, result)
	case models.TradeActionRemove:
		return s.removeOrderLocked(req, result)
	case models.TradeActionCloseBy:
		return s.closeByLocked(req, result)
	}
	return models.RetcodeInvalid
}

func (s *Simulator) ticketLocked() int64 {
	s.nextTicket++
	return s.nextTicket
}

// tradableLocked checks symbol, volume and session for a new order.
func (s *Simulator) tradableLocked(req models.TradeRequest) (*models.SymbolInfo, models.TradeRetcode) {
	info, ok := s.symbols[req.Symbol]
	if !ok || !info.Select {
		return nil, models.RetcodeInvalid
	}
	if req.Volume < info.VolumeMin || req.Volume > info.VolumeMax || !utils.IsVolumeStep(req.Volume, info.VolumeStep) {
		return nil, models.RetcodeInvalidVolume
	}
	if s.cfg.EnforceSessions && !utils.IsSessionOpen(s.now()) {
		return nil, models.RetcodeMarketClosed
	}
	return info, 0
}

func stopsValid(t models.OrderType, ref, sl, tp float64) bool {
	if t.IsBuy() {
		return (sl == 0 || sl < ref) && (tp == 0 || tp > ref)
	}
	return (sl == 0 || sl > ref) && (tp == 0 || tp < ref)
}

func (s *Simulator) openPositionLocked(req models.TradeRequest, result *models.TradeResult) models.TradeRetcode {
	if req.Type != models.OrderTypeBuy && req.Type != models.OrderTypeSell {
		return models.RetcodeInvalidOrder
	}
	info, code := s.tradableLocked(req)
	if code != 0 {
		return code
	}
	if req.TypeFilling == models.OrderFillingReturn {
		return models.RetcodeInvalidFill
	}

	price := info.Ask
	closeRef := info.Bid
	if req.Type == models.OrderTypeSell {
		price = info.Bid
		closeRef = info.Ask
	}
	if req.Price != 0 && math.Abs(req.Price-price) > float64(req.Deviation)*info.Point+info.Point/2 {
		return models.RetcodeRequote
	}
	if !stopsValid(req.Type, closeRef, req.SL, req.TP) {
		return models.RetcodeInvalidStops
	}

	account := s.accountLocked()
	margin, err := s.marginLocked(req.Symbol, req.Volume, price)
	if err != nil || margin > account.MarginFree {
		return models.RetcodeNoMoney
	}

	now := s.now()
	ticket := s.ticketLocked()
	s.positions[ticket] = &models.Position{
		Ticket:       ticket,
		Time:         now,
		Type:         req.Type,
		Magic:        req.Magic,
		Identifier:   ticket,
		Volume:       req.Volume,
		PriceOpen:    price,
		SL:           req.SL,
		TP:           req.TP,
		PriceCurrent: closeRef,
		Symbol:       req.Symbol,
		Comment:      req.Comment,
	}
	s.historyOrders = append(s.historyOrders, models.Order{
		Ticket:        ticket,
		TimeSetup:     now,
		TimeDone:      now,
		Type:          req.Type,
		TypeTime:      req.TypeTime,
		TypeFilling:   req.TypeFilling,
		State:         models.OrderStateFilled,
		Magic:         req.Magic,
		PositionID:    ticket,
		VolumeInitial: req.Volume,
		PriceOpen:     price,
		SL:            req.SL,
		TP:            req.TP,
		PriceCurrent:  price,
		Symbol:        req.Symbol,
		Comment:       req.Comment,
	})
	deal := s.addDealLocked(ticket, ticket, req.Type, models.DealEntryIn, req.Symbol, req.Volume, price, 0, req.Magic, req.Comment)

	result.Deal = deal
	result.Order = ticket
	result.Volume = req.Volume
	result.Price = price
	return models.RetcodeDone
}

func (s *Simulator) closePositionLocked(req models.TradeRequest, result *models.TradeResult) models.TradeRetcode {
	pos, ok := s.positions[req.Position]
	if !ok {
		return models.RetcodePositionClosed
	}
	if req.Symbol != "" && req.Symbol != pos.Symbol {
		return models.RetcodeInvalid
	}
	if req.Type != pos.Type.Opposite() {
		return models.RetcodeInvalidOrder
	}
	info := s.symbols[pos.Symbol]
	volume := req.Volume
	if volume <= 0 || volume > pos.Volume+1e-9 || !utils.IsVolumeStep(volume, info.VolumeStep) {
		return models.RetcodeInvalidVolume
	}
	if s.cfg.EnforceSessions && !utils.IsSessionOpen(s.now()) {
		return models.RetcodeMarketClosed
	}

	price := s.marketPriceLocked(pos.Symbol, pos.Type)
	profit, err := s.profitLocked(pos.Symbol, pos.Type, volume, pos.PriceOpen, price)
	if err != nil {
		return models.RetcodeError
	}
	profit = round2(profit)

	now := s.now()
	ticket := s.ticketLocked()
	s.historyOrders = append(s.historyOrders, models.Order{
		Ticket:        ticket,
		TimeSetup:     now,
		TimeDone:      now,
		Type:          req.Type,
		TypeTime:      req.TypeTime,
		TypeFilling:   req.TypeFilling,
		State:         models.OrderStateFilled,
		Magic:         req.Magic,
		PositionID:    pos.Identifier,
		VolumeInitial: volume,
		PriceOpen:     price,
		PriceCurrent:  price,
		Symbol:        pos.Symbol,
		Comment:       req.Comment,
	})
	deal := s.addDealLocked(ticket, pos.Identifier, req.Type, models.DealEntryOut, pos.Symbol, volume, price, profit, req.Magic, req.Comment)
	s.balance += profit
	s.reduceLocked(pos, volume)

	result.Deal = deal
	result.Order = ticket
	result.Volume = volume
	result.Price = price
	return models.RetcodeDone
}

func (s *Simulator) reduceLocked(pos *models.Position, volume float64) {
	remaining := utils.NormalizePrice(pos.Volume-volume, 8)
	if remaining <= 0 {
		delete(s.positions, pos.Ticket)
		return
	}
	pos.Volume = remaining
}

func (s *Simulator) addDealLocked(order, position int64, t models.OrderType, entry models.DealEntry, symbol string, volume, price, profit float64, magic int64, comment string) int64 {
	dealType := models.DealTypeBuy
	if t.IsSell() {
		dealType = models.DealTypeSell
	}
	ticket := s.ticketLocked()
	s.deals = append(s.deals, models.Deal{
		Ticket:     ticket,
		Order:      order,
		Time:       s.now(),
		Type:       dealType,
		Entry:      entry,
		Magic:      magic,
		PositionID: position,
		Volume:     volume,
		Price:      price,
		Profit:     profit,
		Symbol:     symbol,
		Comment:    comment,
	})
	return ticket
}

// pendingPriceValid checks the order price against the current quote.
func pendingPriceValid(t models.OrderType, price float64, info *models.SymbolInfo) bool {
	switch t {
	case models.OrderTypeBuyLimit:
		return price < info.Ask
	case models.OrderTypeBuyStop:
		return price > info.Ask
	case models.OrderTypeSellLimit:
		return price > info.Bid
	case models.OrderTypeSellStop:
		return price < info.Bid
	}
	return false
}

func (s *Simulator) expirationValid(t models.OrderTime, exp time.Time) bool {
	switch t {
	case models.OrderTimeSpecified, models.OrderTimeSpecifiedDay:
		return !exp.IsZero() && exp.After(s.now())
	}
	return true
}

func (s *Simulator) placePendingLocked(req models.TradeRequest, result *models.TradeResult) models.TradeRetcode {
	switch req.Type {
	case models.OrderTypeBuyLimit, models.OrderTypeBuyStop, models.OrderTypeSellLimit, models.OrderTypeSellStop:
	default:
		return models.RetcodeInvalidOrder
	}
	info, code := s.tradableLocked(req)
	if code != 0 {
		return code
	}
	if req.Price <= 0 || !pendingPriceValid(req.Type, req.Price, info) {
		return models.RetcodeInvalidPrice
	}
	if !stopsValid(req.Type, req.Price, req.SL, req.TP) {
		return models.RetcodeInvalidStops
	}
	if !s.expirationValid(req.TypeTime, req.Expiration) {
		return models.RetcodeInvalidExpire
	}

	ticket := s.ticketLocked()
	price := utils.NormalizePrice(req.Price, info.Digits)
	s.orders[ticket] = &models.Order{
		Ticket:         ticket,
		TimeSetup:      s.now(),
		TimeExpiration: req.Expiration,
		Type:           req.Type,
		TypeTime:       req.TypeTime,
		TypeFilling:    req.TypeFilling,
		State:          models.OrderStatePlaced,
		Magic:          req.Magic,
		VolumeInitial:  req.Volume,
		VolumeCurrent:  req.Volume,
		PriceOpen:      price,
		SL:             req.SL,
		TP:             req.TP,
		Symbol:         req.Symbol,
		Comment:        req.Comment,
	}

	result.Order = ticket
	result.Volume = req.Volume
	result.Price = price
	return models.RetcodePlaced
}

func (s *Simulator) modifyPositionLocked(req models.TradeRequest) models.TradeRetcode {
	pos, ok := s.positions[req.Position]
	if !ok {
		return models.RetcodePositionClosed
	}
	if req.SL == pos.SL && req.TP == pos.TP {
		return models.RetcodeNoChanges
	}
	if !stopsValid(pos.Type, s.marketPriceLocked(pos.Symbol, pos.Type), req.SL, req.TP) {
		return models.RetcodeInvalidStops
	}
	pos.SL = req.SL
	pos.TP = req.TP
	return models.RetcodeDone
}

func (s *Simulator) modifyOrderLocked(req models.TradeRequest, result *models.TradeResult) models.TradeRetcode {
	order, ok := s.orders[req.Order]
	if !ok {
		return models.RetcodeInvalid
	}
	price := req.Price
	if price == 0 {
		price = order.PriceOpen
	}
	typeTime := req.TypeTime
	expiration := req.Expiration
	if expiration.IsZero() && typeTime == order.TypeTime {
		expiration = order.TimeExpiration
	}

	if price == order.PriceOpen && req.SL == order.SL && req.TP == order.TP &&
		typeTime == order.TypeTime && expiration.Equal(order.TimeExpiration) {
		return models.RetcodeNoChanges
	}

	info := s.symbols[order.Symbol]
	if !pendingPriceValid(order.Type, price, info) {
		return models.RetcodeInvalidPrice
	}
	if !stopsValid(order.Type, price, req.SL, req.TP) {
		return models.RetcodeInvalidStops
	}
	if !s.expirationValid(typeTime, expiration) {
		return models.RetcodeInvalidExpire
	}

	order.PriceOpen = utils.NormalizePrice(price, info.Digits)
	order.SL = req.SL
	order.TP = req.TP
	order.TypeTime = typeTime
	order.TimeExpiration = expiration

	result.Order = order.Ticket
	result.Volume = order.VolumeCurrent
	result.Price = order.PriceOpen
	return models.RetcodeDone
}

func (s *Simulator) removeOrderLocked(req models.TradeRequest, result *models.TradeResult) models.TradeRetcode {
	order, ok := s.orders[req.Order]
	if !ok {
		return models.RetcodeInvalid
	}
	s.finishOrderLocked(order, models.OrderStateCanceled)
	result.Order = order.Ticket
	return models.RetcodeDone
}

func (s *Simulator) finishOrderLocked(order *models.Order, state models.OrderState) {
	delete(s.orders, order.Ticket)
	order.State = state
	order.TimeDone = s.now()
	s.historyOrders = append(s.historyOrders, *order)
}

func (s *Simulator) closeByLocked(req models.TradeRequest, result *models.TradeResult) models.TradeRetcode {
	pos, ok1 := s.positions[req.Position]
	by, ok2 := s.positions[req.PositionBy]
	if !ok1 || !ok2 {
		return models.RetcodePositionClosed
	}
	if pos.Symbol != by.Symbol || pos.Type == by.Type {
		return models.RetcodeInvalidOrder
	}

	volume := math.Min(pos.Volume, by.Volume)
	profit, err := s.profitLocked(pos.Symbol, pos.Type, volume, pos.PriceOpen, by.PriceOpen)
	if err != nil {
		return models.RetcodeError
	}
	profit = round2(profit)

	now := s.now()
	ticket := s.ticketLocked()
	s.historyOrders = append(s.historyOrders, models.Order{
		Ticket:        ticket,
		TimeSetup:     now,
		TimeDone:      now,
		Type:          models.OrderTypeCloseBy,
		State:         models.OrderStateFilled,
		Magic:         req.Magic,
		PositionID:    pos.Identifier,
		VolumeInitial: volume,
		PriceOpen:     by.PriceOpen,
		Symbol:        pos.Symbol,
		Comment:       req.Comment,
	})
	deal := s.addDealLocked(ticket, pos.Identifier, pos.Type.Opposite(), models.DealEntryOutBy, pos.Symbol, volume, by.PriceOpen, profit, req.Magic, req.Comment)
	s.addDealLocked(ticket, by.Identifier, by.Type.Opposite(), models.DealEntryOutBy, by.Symbol, volume, by.PriceOpen, 0, req.Magic, req.Comment)

	s.balance += profit
	s.reduceLocked(pos, volume)
	s.reduceLocked(by, volume)

	result.Deal = deal
	result.Order = ticket
	result.Volume = volume
	result.Price = by.PriceOpen
	return models.RetcodeDone
}

// processPendingLocked expires stale orders and fills triggered ones for symbol.
func (s *Simulator) processPendingLocked(symbol string) {
	info := s.symbols[symbol]
	now := s.now()

	tickets := make([]int64, 0, len(s.orders))
	for ticket, o := range s.orders {
		if o.Symbol == symbol {
			tickets = append(tickets, ticket)
		}
	}
	sort.Slice(tickets, func(i, j int) bool { return tickets[i] < tickets[j] })

	for _, ticket := range tickets {
		order := s.orders[ticket]

		if expired(order, now) {
			s.finishOrderLocked(order, models.OrderStateExpired)
			s.log.Info().Int64("ticket", ticket).Str("symbol", symbol).Msg("Pending order expired")
			continue
		}
		if !triggered(order, info) {
			continue
		}

		posType := models.OrderTypeBuy
		closeRef := info.Bid
		if order.Type.IsSell() {
			posType = models.OrderTypeSell
			closeRef = info.Ask
		}
		s.positions[ticket] = &models.Position{
			Ticket:       ticket,
			Time:         now,
			Type:         posType,
			Magic:        order.Magic,
			Identifier:   ticket,
			Volume:       order.VolumeCurrent,
			PriceOpen:    order.PriceOpen,
			SL:           order.SL,
			TP:           order.TP,
			PriceCurrent: closeRef,
			Symbol:       symbol,
			Comment:      order.Comment,
		}
		order.PositionID = ticket
		s.addDealLocked(ticket, ticket, posType, models.DealEntryIn, symbol, order.VolumeCurrent, order.PriceOpen, 0, order.Magic, order.Comment)
		s.finishOrderLocked(order, models.OrderStateFilled)
		s.log.Info().Int64("ticket", ticket).Str("symbol", symbol).Float64("price", order.PriceOpen).Msg("Pending order triggered")
	}
}

func expired(o *models.Order, now time.Time) bool {
	switch o.TypeTime {
	case models.OrderTimeSpecified, models.OrderTimeSpecifiedDay:
		return !o.TimeExpiration.IsZero() && !now.Before(o.TimeExpiration)
	case models.OrderTimeDay:
		y1, m1, d1 := o.TimeSetup.Date()
		y2, m2, d2 := now.Date()
		return y1 != y2 || m1 != m2 || d1 != d2
	}
	return false
}

func triggered(o *models.Order, info *models.SymbolInfo) bool {
	switch o.Type {
	case models.OrderTypeBuyLimit:
		return info.Ask <= o.PriceOpen
	case models.OrderTypeBuyStop:
		return info.Ask >= o.PriceOpen
	case models.OrderTypeSellLimit:
		return info.Bid >= o.PriceOpen
	case models.OrderTypeSellStop:
		return info.Bid <= o.PriceOpen
	}
	return false
}
