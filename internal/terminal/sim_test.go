package terminal

import (
	"context"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	apperrors "mt5-bridge/internal/errors"
	"mt5-bridge/internal/models"
	"mt5-bridge/internal/store"
)

var simNow = time.Date(2025, 1, 8, 12, 30, 0, 0, time.UTC)

func newTestSimulator(t *testing.T) *Simulator {
	t.Helper()
	sim := NewSimulator(SimulatorConfig{Now: func() time.Time { return simNow }})
	if err := sim.Initialize(context.Background(), InitParams{}); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return sim
}

func marketRequest(symbol string, t models.OrderType, volume float64) models.TradeRequest {
	return models.TradeRequest{
		Action:      models.TradeActionDeal,
		Symbol:      symbol,
		Volume:      volume,
		Type:        t,
		Deviation:   20,
		TypeFilling: models.OrderFillingFOK,
		TypeTime:    models.OrderTimeGTC,
		Comment:     "MCP",
	}
}

func send(t *testing.T, sim *Simulator, req models.TradeRequest) *models.TradeResult {
	t.Helper()
	result, err := sim.OrderSend(context.Background(), req)
	if err != nil {
		t.Fatalf("order_send: %v", err)
	}
	return result
}

func TestSimulatorLifecycle(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulator(SimulatorConfig{})

	if _, err := sim.TerminalInfo(ctx); !IsNotInitialized(err) {
		t.Fatalf("terminal_info before initialize = %v", err)
	}
	if err := sim.Shutdown(ctx); !IsNotInitialized(err) {
		t.Fatalf("shutdown before initialize = %v", err)
	}

	if err := sim.Initialize(ctx, InitParams{}); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	info, err := sim.TerminalInfo(ctx)
	if err != nil || !info.Connected || info.Build != 4755 {
		t.Fatalf("terminal_info = %+v, %v", info, err)
	}
	if code, _ := sim.LastError(ctx); code != apperrors.CodeOK {
		t.Errorf("last_error = %d", code)
	}

	if err := sim.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if _, err := sim.AccountInfo(ctx); !IsNotInitialized(err) {
		t.Errorf("account_info after shutdown = %v", err)
	}
}

func TestSimulatorCredentials(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulator(SimulatorConfig{Login: 1234, Password: "secret", Server: "Demo"})

	err := sim.Initialize(ctx, InitParams{Login: 1234, Password: "wrong", Server: "Demo"})
	var te *apperrors.TerminalError
	if !apperrors.As(err, &te) || te.Code != apperrors.CodeAuthFailed {
		t.Fatalf("bad password = %v", err)
	}
	if code, msg := sim.LastError(ctx); code != apperrors.CodeAuthFailed || msg != "Authorization failed" {
		t.Errorf("last_error = %d %q", code, msg)
	}

	if err := sim.Initialize(ctx, InitParams{Login: 1234, Password: "secret", Server: "demo"}); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := sim.Login(ctx, LoginParams{Login: 1234, Password: "secret"}); err != nil {
		t.Errorf("login: %v", err)
	}
	account, err := sim.AccountInfo(ctx)
	if err != nil || account.Login != 1234 || account.Balance != 10000 {
		t.Errorf("account = %+v, %v", account, err)
	}
}

func TestSimulatorMarketOrderAndClose(t *testing.T) {
	ctx := context.Background()
	sim := newTestSimulator(t)

	opened := send(t, sim, marketRequest("EURUSD", models.OrderTypeBuy, 0.1))
	if opened.Retcode != models.RetcodeDone {
		t.Fatalf("open retcode = %s (%s)", opened.Retcode, opened.Comment)
	}
	if opened.Price != 1.08512 || opened.Volume != 0.1 {
		t.Errorf("fill = %v x %v", opened.Price, opened.Volume)
	}

	positions, _ := sim.PositionsGet(ctx, Filter{Ticket: opened.Order})
	if len(positions) != 1 || positions[0].Identifier != opened.Order {
		t.Fatalf("positions = %+v", positions)
	}

	if err := sim.SetTick("EURUSD", 1.08612, 1.08624); err != nil {
		t.Fatal(err)
	}
	positions, _ = sim.PositionsGet(ctx, Filter{Symbol: "EURUSD"})
	if positions[0].Profit != 10 {
		t.Errorf("floating profit = %v", positions[0].Profit)
	}

	closeReq := marketRequest("EURUSD", models.OrderTypeSell, 0.1)
	closeReq.Position = opened.Order
	closed := send(t, sim, closeReq)
	if closed.Retcode != models.RetcodeDone || closed.Price != 1.08612 {
		t.Fatalf("close = %s at %v", closed.Retcode, closed.Price)
	}

	account, _ := sim.AccountInfo(ctx)
	if account.Balance != 10010 {
		t.Errorf("balance = %v", account.Balance)
	}
	if positions, _ := sim.PositionsGet(ctx, Filter{}); len(positions) != 0 {
		t.Errorf("positions left open: %+v", positions)
	}

	deals, _ := sim.HistoryDealsGet(ctx, HistoryFilter{Position: opened.Order})
	if len(deals) != 2 || deals[0].Entry != models.DealEntryIn || deals[1].Entry != models.DealEntryOut || deals[1].Profit != 10 {
		t.Errorf("deals = %+v", deals)
	}
	orders, _ := sim.HistoryOrdersGet(ctx, HistoryFilter{From: simNow.Add(-time.Hour), To: simNow.Add(time.Hour)})
	if len(orders) != 2 {
		t.Errorf("history orders = %d", len(orders))
	}
}

func TestSimulatorMarketClosed(t *testing.T) {
	saturday := time.Date(2025, 1, 11, 10, 0, 0, 0, time.UTC)
	sim := NewSimulator(SimulatorConfig{EnforceSessions: true, Now: func() time.Time { return saturday }})
	if err := sim.Initialize(context.Background(), InitParams{}); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	res, err := sim.OrderSend(context.Background(), marketRequest("EURUSD", models.OrderTypeBuy, 0.1))
	if err != nil {
		t.Fatal(err)
	}
	if res.Retcode != models.RetcodeMarketClosed {
		t.Fatalf("retcode = %s", res.Retcode)
	}
	if !strings.Contains(res.Comment, "reopens 2025-01-12T22:00:00Z") {
		t.Errorf("comment = %q", res.Comment)
	}
}

func TestSimulatorRejections(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*Simulator)
		req   models.TradeRequest
		want  models.TradeRetcode
	}{
		{"unknown symbol", nil, marketRequest("FOOBAR", models.OrderTypeBuy, 0.1), models.RetcodeInvalid},
		{"hidden symbol", nil, marketRequest("NZDUSD", models.OrderTypeBuy, 0.1), models.RetcodeInvalid},
		{"off-step volume", nil, marketRequest("EURUSD", models.OrderTypeBuy, 0.015), models.RetcodeInvalidVolume},
		{"too large", nil, marketRequest("EURUSD", models.OrderTypeBuy, 101), models.RetcodeInvalidVolume},
		{"no money", nil, marketRequest("EURUSD", models.OrderTypeBuy, 100), models.RetcodeNoMoney},
		{"pending type on deal", nil, marketRequest("EURUSD", models.OrderTypeBuyLimit, 0.1), models.RetcodeInvalidOrder},
		{"autotrading off", func(s *Simulator) { s.SetTradeAllowed(false) }, marketRequest("EURUSD", models.OrderTypeBuy, 0.1), models.RetcodeClientDisablesAT},
		{"disconnected", func(s *Simulator) { s.SetConnected(false) }, marketRequest("EURUSD", models.OrderTypeBuy, 0.1), models.RetcodeConnection},
		{
			"stop loss above bid", nil,
			func() models.TradeRequest {
				r := marketRequest("EURUSD", models.OrderTypeBuy, 0.1)
				r.SL = 1.09
				return r
			}(),
			models.RetcodeInvalidStops,
		},
		{
			"requote", nil,
			func() models.TradeRequest {
				r := marketRequest("EURUSD", models.OrderTypeBuy, 0.1)
				r.Price = 1.0800
				return r
			}(),
			models.RetcodeRequote,
		},
		{
			"close missing position", nil,
			func() models.TradeRequest {
				r := marketRequest("EURUSD", models.OrderTypeSell, 0.1)
				r.Position = 42
				return r
			}(),
			models.RetcodePositionClosed,
		},
		{"unknown action", nil, models.TradeRequest{Action: 99, Symbol: "EURUSD"}, models.RetcodeInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := newTestSimulator(t)
			if tt.setup != nil {
				tt.setup(sim)
			}
			result := send(t, sim, tt.req)
			if result.Retcode != tt.want {
				t.Errorf("retcode = %s, want %s", result.Retcode, tt.want)
			}
			if result.Comment != tt.want.Description() {
				t.Errorf("comment = %q", result.Comment)
			}
		})
	}
}

func pendingRequest(t models.OrderType, price float64) models.TradeRequest {
	return models.TradeRequest{
		Action:      models.TradeActionPending,
		Symbol:      "EURUSD",
		Volume:      0.2,
		Type:        t,
		Price:       price,
		TypeFilling: models.OrderFillingFOK,
		TypeTime:    models.OrderTimeGTC,
		Comment:     "MCP",
	}
}

func TestSimulatorPendingTrigger(t *testing.T) {
	ctx := context.Background()
	sim := newTestSimulator(t)

	if r := send(t, sim, pendingRequest(models.OrderTypeBuyLimit, 1.09)); r.Retcode != models.RetcodeInvalidPrice {
		t.Errorf("buy limit above ask = %s", r.Retcode)
	}

	placed := send(t, sim, pendingRequest(models.OrderTypeBuyLimit, 1.08))
	if placed.Retcode != models.RetcodePlaced {
		t.Fatalf("place = %s", placed.Retcode)
	}
	orders, _ := sim.OrdersGet(ctx, Filter{Symbol: "EURUSD"})
	if len(orders) != 1 || orders[0].State != models.OrderStatePlaced || orders[0].PriceCurrent != 1.08512 {
		t.Fatalf("orders = %+v", orders)
	}

	if err := sim.SetTick("EURUSD", 1.0799, 1.07995); err != nil {
		t.Fatal(err)
	}

	if orders, _ := sim.OrdersGet(ctx, Filter{}); len(orders) != 0 {
		t.Errorf("order still active: %+v", orders)
	}
	positions, _ := sim.PositionsGet(ctx, Filter{Ticket: placed.Order})
	if len(positions) != 1 || positions[0].Type != models.OrderTypeBuy || positions[0].PriceOpen != 1.08 {
		t.Fatalf("positions = %+v", positions)
	}
	history, _ := sim.HistoryOrdersGet(ctx, HistoryFilter{Ticket: placed.Order})
	if len(history) != 1 || history[0].State != models.OrderStateFilled {
		t.Errorf("history = %+v", history)
	}
}

func TestSimulatorModifyAndRemove(t *testing.T) {
	ctx := context.Background()
	sim := newTestSimulator(t)

	placed := send(t, sim, pendingRequest(models.OrderTypeSellLimit, 1.09))
	if placed.Retcode != models.RetcodePlaced {
		t.Fatalf("place = %s", placed.Retcode)
	}

	modify := models.TradeRequest{Action: models.TradeActionModify, Order: placed.Order, Price: 1.09}
	if r := send(t, sim, modify); r.Retcode != models.RetcodeNoChanges {
		t.Errorf("unchanged modify = %s", r.Retcode)
	}

	modify.Price = 1.095
	modify.SL = 1.1
	if r := send(t, sim, modify); r.Retcode != models.RetcodeDone {
		t.Fatalf("modify = %s", r.Retcode)
	}
	orders, _ := sim.OrdersGet(ctx, Filter{Ticket: placed.Order})
	if orders[0].PriceOpen != 1.095 || orders[0].SL != 1.1 {
		t.Errorf("modified order = %+v", orders[0])
	}

	remove := models.TradeRequest{Action: models.TradeActionRemove, Order: placed.Order}
	if r := send(t, sim, remove); r.Retcode != models.RetcodeDone {
		t.Fatalf("remove = %s", r.Retcode)
	}
	if r := send(t, sim, remove); r.Retcode != models.RetcodeInvalid {
		t.Errorf("second remove = %s", r.Retcode)
	}
	history, _ := sim.HistoryOrdersGet(ctx, HistoryFilter{Ticket: placed.Order})
	if len(history) != 1 || history[0].State != models.OrderStateCanceled {
		t.Errorf("history = %+v", history)
	}
}

func TestSimulatorPendingExpiration(t *testing.T) {
	ctx := context.Background()
	clock := simNow
	sim := NewSimulator(SimulatorConfig{Now: func() time.Time { return clock }})
	if err := sim.Initialize(ctx, InitParams{}); err != nil {
		t.Fatal(err)
	}

	req := pendingRequest(models.OrderTypeBuyStop, 1.1)
	req.TypeTime = models.OrderTimeSpecified
	req.Expiration = clock.Add(-time.Minute)
	if r := send(t, sim, req); r.Retcode != models.RetcodeInvalidExpire {
		t.Errorf("past expiration = %s", r.Retcode)
	}

	req.Expiration = clock.Add(time.Hour)
	placed := send(t, sim, req)
	if placed.Retcode != models.RetcodePlaced {
		t.Fatalf("place = %s", placed.Retcode)
	}

	clock = clock.Add(2 * time.Hour)
	if err := sim.SetTick("EURUSD", 1.085, 1.08512); err != nil {
		t.Fatal(err)
	}
	history, _ := sim.HistoryOrdersGet(ctx, HistoryFilter{Ticket: placed.Order})
	if len(history) != 1 || history[0].State != models.OrderStateExpired {
		t.Errorf("history = %+v", history)
	}
}

func TestSimulatorSLTPAndCloseBy(t *testing.T) {
	ctx := context.Background()
	sim := newTestSimulator(t)

	long := send(t, sim, marketRequest("EURUSD", models.OrderTypeBuy, 0.1))
	short := send(t, sim, marketRequest("EURUSD", models.OrderTypeSell, 0.1))

	sltp := models.TradeRequest{Action: models.TradeActionSLTP, Position: long.Order, SL: 1.08, TP: 1.09}
	if r := send(t, sim, sltp); r.Retcode != models.RetcodeDone {
		t.Fatalf("sltp = %s", r.Retcode)
	}
	if r := send(t, sim, sltp); r.Retcode != models.RetcodeNoChanges {
		t.Errorf("repeated sltp = %s", r.Retcode)
	}
	sltp.SL = 1.086
	if r := send(t, sim, sltp); r.Retcode != models.RetcodeInvalidStops {
		t.Errorf("sl above bid = %s", r.Retcode)
	}

	closeBy := models.TradeRequest{Action: models.TradeActionCloseBy, Position: long.Order, PositionBy: short.Order}
	if r := send(t, sim, closeBy); r.Retcode != models.RetcodeDone {
		t.Fatalf("close by = %s", r.Retcode)
	}
	if positions, _ := sim.PositionsGet(ctx, Filter{}); len(positions) != 0 {
		t.Errorf("positions = %+v", positions)
	}
	account, _ := sim.AccountInfo(ctx)
	if account.Balance != 9998.8 {
		t.Errorf("balance after close by = %v", account.Balance)
	}
}

func TestSimulatorSymbols(t *testing.T) {
	ctx := context.Background()
	sim := newTestSimulator(t)

	usd, _ := sim.SymbolsGet(ctx, "*USD*,!XA*")
	if len(usd) != 7 {
		t.Errorf("*USD* without metals = %d symbols", len(usd))
	}

	if _, err := sim.SymbolInfoTick(ctx, "NZDUSD"); err == nil {
		t.Error("hidden symbol should have no tick")
	}
	if err := sim.SymbolSelect(ctx, "NZDUSD", true); err != nil {
		t.Fatal(err)
	}
	tick, err := sim.SymbolInfoTick(ctx, "NZDUSD")
	if err != nil || tick.Bid != 0.605 || !tick.Time.Equal(simNow) {
		t.Errorf("tick = %+v, %v", tick, err)
	}

	margin, err := sim.OrderCalcMargin(ctx, models.OrderTypeBuy, "USDJPY", 1, 150.256)
	if err != nil || margin != 1000 {
		t.Errorf("USDJPY margin = %v, %v", margin, err)
	}
	profit, err := sim.OrderCalcProfit(ctx, models.OrderTypeSell, "EURUSD", 1, 1.1, 1.099)
	if err != nil || profit != 100 {
		t.Errorf("EURUSD profit = %v, %v", profit, err)
	}
}

func TestMatchGroup(t *testing.T) {
	tests := []struct {
		group  string
		symbol string
		want   bool
	}{
		{"*USD*", "EURUSD", true},
		{"*usd*", "EURUSD", true},
		{"EUR*", "GBPUSD", false},
		{"EUR*,GBP*", "GBPUSD", true},
		{"*,!*JPY*", "USDJPY", false},
		{"*,!*JPY*", "EURGBP", true},
		{"!EURUSD", "GBPUSD", true},
	}

	for _, tt := range tests {
		if got := MatchGroup(tt.group, tt.symbol); got != tt.want {
			t.Errorf("MatchGroup(%q, %q) = %v", tt.group, tt.symbol, got)
		}
	}
}

func TestSimulatorFaults(t *testing.T) {
	ctx := context.Background()
	sim := newTestSimulator(t)
	sim.FailNext("order_send", apperrors.CodeInternalFailConn, "IPC send failed")

	_, err := sim.OrderSend(ctx, marketRequest("EURUSD", models.OrderTypeBuy, 0.1))
	var te *apperrors.TerminalError
	if !apperrors.As(err, &te) || !te.Connectivity() {
		t.Fatalf("queued fault = %v", err)
	}
	if r := send(t, sim, marketRequest("EURUSD", models.OrderTypeBuy, 0.1)); r.Retcode != models.RetcodeDone {
		t.Errorf("fault should fire once, got %s", r.Retcode)
	}
}

func TestSimulatorRates(t *testing.T) {
	ctx := context.Background()
	sim := newTestSimulator(t)

	rates, err := sim.CopyRatesFromPos(ctx, "EURUSD", models.TimeframeH1, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(rates) != 10 || !rates[9].Time.Equal(simNow.Truncate(time.Hour)) {
		t.Fatalf("got %d bars, last %v", len(rates), rates[len(rates)-1].Time)
	}
	for i, r := range rates {
		if i > 0 && !r.Time.After(rates[i-1].Time) {
			t.Errorf("bars not ascending at %d", i)
		}
		if r.High < math.Max(r.Open, r.Close) || r.Low > math.Min(r.Open, r.Close) {
			t.Errorf("bar %d has inconsistent OHLC: %+v", i, r)
		}
	}

	again, _ := sim.CopyRatesFrom(ctx, "EURUSD", models.TimeframeH1, simNow, 10)
	for i := range rates {
		if !rates[i].Time.Equal(again[i].Time) || rates[i].Close != again[i].Close {
			t.Fatalf("series not deterministic at %d", i)
		}
	}

	day := simNow.Truncate(24 * time.Hour)
	ranged, _ := sim.CopyRatesRange(ctx, "EURUSD", models.TimeframeM15, day, day.Add(2*time.Hour))
	if len(ranged) != 9 {
		t.Errorf("range bars = %d", len(ranged))
	}

	if _, err := sim.CopyRatesFromPos(ctx, "EURUSD", models.Timeframe(7777), 0, 10); err == nil {
		t.Error("invalid timeframe accepted")
	}
}

func TestSimulatorPersistence(t *testing.T) {
	ctx := context.Background()
	db, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "sim.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	stored := []models.Rate{
		{Time: simNow.Add(-2 * time.Hour).Truncate(time.Hour), Open: 1.2, High: 1.3, Low: 1.1, Close: 1.25},
		{Time: simNow.Add(-time.Hour).Truncate(time.Hour), Open: 1.25, High: 1.35, Low: 1.2, Close: 1.3},
	}
	if err := db.SaveCandles(ctx, "EURUSD", models.TimeframeH1, stored); err != nil {
		t.Fatal(err)
	}

	cfg := SimulatorConfig{Store: db, Now: func() time.Time { return simNow }}
	sim := NewSimulator(cfg)
	if err := sim.Initialize(ctx, InitParams{}); err != nil {
		t.Fatal(err)
	}

	rates, _ := sim.CopyRatesRange(ctx, "EURUSD", models.TimeframeH1, stored[0].Time, stored[1].Time)
	if len(rates) != 2 || rates[1].Close != 1.3 {
		t.Errorf("stored candles not served: %+v", rates)
	}

	opened := send(t, sim, marketRequest("GBPUSD", models.OrderTypeSell, 0.5))
	if err := sim.Shutdown(ctx); err != nil {
		t.Fatal(err)
	}

	restored := NewSimulator(cfg)
	if err := restored.Initialize(ctx, InitParams{}); err != nil {
		t.Fatal(err)
	}
	positions, _ := restored.PositionsGet(ctx, Filter{Ticket: opened.Order})
	if len(positions) != 1 || positions[0].Volume != 0.5 {
		t.Fatalf("restored positions = %+v", positions)
	}
	next := send(t, restored, marketRequest("GBPUSD", models.OrderTypeBuy, 0.1))
	if next.Order <= opened.Order {
		t.Errorf("ticket counter not restored: %d <= %d", next.Order, opened.Order)
	}
}

// Property: opening and immediately closing a position costs exactly the spread.
func TestProperty_RoundTripCostsSpread(t *testing.T) {
	sim := newTestSimulator(t)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("balance drops by spread times volume", prop.ForAll(
		func(lots int, sell bool) bool {
			sim.Reset()
			side := models.OrderTypeBuy
			if sell {
				side = models.OrderTypeSell
			}
			volume := float64(lots) / 100

			opened, err := sim.OrderSend(context.Background(), marketRequest("EURUSD", side, volume))
			if err != nil || opened.Retcode != models.RetcodeDone {
				return false
			}
			closeReq := marketRequest("EURUSD", side.Opposite(), volume)
			closeReq.Position = opened.Order
			closed, err := sim.OrderSend(context.Background(), closeReq)
			if err != nil || closed.Retcode != models.RetcodeDone {
				return false
			}

			account, _ := sim.AccountInfo(context.Background())
			want := 10000 - 0.12*float64(lots)
			return math.Abs(account.Balance-want) < 1e-6 && account.Margin == 0
		},
		gen.IntRange(1, 9),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
