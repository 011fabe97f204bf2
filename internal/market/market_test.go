package market

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"mt5-bridge/internal/connection"
	apperrors "mt5-bridge/internal/errors"
	"mt5-bridge/internal/terminal"
)

var testNow = time.Date(2025, 1, 8, 12, 30, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *terminal.Simulator, *connection.Manager) {
	t.Helper()
	sim := terminal.NewSimulator(terminal.SimulatorConfig{Now: func() time.Time { return testNow }})
	conn := connection.NewManager(sim, connection.DefaultConfig(), connection.WithPathFinder(&connection.PathFinder{}))
	if err := conn.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	return NewService(conn, zerolog.Nop()), sim, conn
}

func TestResolve(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		pattern string
		want    []string
	}{
		{"EURUSD", []string{"EURUSD"}},
		{"eurusd", []string{"EURUSD"}},
		{"*JPY*", []string{"EURJPY", "GBPJPY", "USDJPY"}},
		{"XA*", []string{"XAGUSD", "XAUUSD"}},
		{"*USD*,!XA*,!*JPY*", []string{"AUDUSD", "EURUSD", "GBPUSD", "NZDUSD", "USDCAD", "USDCHF"}},
		{"NOPE", []string{}},
	}

	for _, tt := range tests {
		got, err := svc.Symbols(ctx, tt.pattern)
		if err != nil {
			t.Fatalf("Symbols(%q): %v", tt.pattern, err)
		}
		sort.Strings(got)
		if len(got) != len(tt.want) {
			t.Errorf("Symbols(%q) = %v, want %v", tt.pattern, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("Symbols(%q) = %v, want %v", tt.pattern, got, tt.want)
				break
			}
		}
	}

	all, err := svc.Symbols(ctx, "")
	if err != nil || len(all) != 12 {
		t.Errorf("all symbols = %d, %v", len(all), err)
	}
}

func TestEnsureSelectsHiddenSymbol(t *testing.T) {
	svc, sim, _ := newTestService(t)
	ctx := context.Background()

	if _, err := sim.SymbolInfoTick(ctx, "NZDUSD"); err == nil {
		t.Fatal("hidden symbol should have no tick")
	}
	info, err := svc.Resolver().Ensure(ctx, "NZDUSD")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if !info.Visible {
		t.Error("symbol not visible after Ensure")
	}

	price, err := svc.SymbolPrice(ctx, "NZDUSD")
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if price.Bid != 0.605 || price.Ask != 0.60518 {
		t.Errorf("price = %+v", price)
	}
}

func TestEnsureFailures(t *testing.T) {
	svc, sim, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.SymbolInfo(ctx, "FOOBAR")
	if !errors.Is(err, apperrors.ErrSymbolNotFound) || !errors.Is(err, apperrors.ErrMarket) {
		t.Errorf("unknown symbol: %v", err)
	}
	if _, err := svc.SymbolInfo(ctx, ""); !errors.Is(err, apperrors.ErrSymbolNotFound) {
		t.Errorf("empty symbol: %v", err)
	}

	sim.FailNext("symbol_select", apperrors.CodeFail, "select refused")
	_, err = svc.SymbolInfo(ctx, "EURJPY")
	var me *apperrors.MarketError
	if !errors.As(err, &me) || me.Symbol != "EURJPY" || errors.Is(err, apperrors.ErrSymbolNotFound) {
		t.Errorf("select failure: %v", err)
	}
}

func TestConnectivityLoss(t *testing.T) {
	svc, sim, _ := newTestService(t)
	ctx := context.Background()

	sim.FailNext("symbol_info", apperrors.CodeInternalFailTimeout, "IPC timeout")
	if _, err := svc.SymbolInfo(ctx, "EURUSD"); !errors.Is(err, apperrors.ErrConnection) {
		t.Errorf("IPC failure: %v", err)
	}

	sim.SetConnected(false)
	if _, err := svc.Symbols(ctx, "*"); !errors.Is(err, apperrors.ErrNotConnected) {
		t.Errorf("disconnected: %v", err)
	}
}

func TestCandlesLatest(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	rates, err := svc.CandlesLatest(ctx, "EURUSD", "h1", 24)
	if err != nil {
		t.Fatal(err)
	}
	if len(rates) != 24 {
		t.Fatalf("bars = %d", len(rates))
	}
	if !rates[0].Time.Equal(time.Date(2025, 1, 8, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("newest bar = %v", rates[0].Time)
	}
	for i := 1; i < len(rates); i++ {
		if !rates[i].Time.Before(rates[i-1].Time) {
			t.Fatalf("bars not newest first at %d", i)
		}
	}

	if _, err := svc.CandlesLatest(ctx, "EURUSD", "H5", 10); !errors.Is(err, apperrors.ErrInvalidTimeframe) {
		t.Errorf("bad timeframe: %v", err)
	}
	if _, err := svc.CandlesLatest(ctx, "NOPE", "H5", 10); !errors.Is(err, apperrors.ErrSymbolNotFound) {
		t.Errorf("symbol is checked before timeframe: %v", err)
	}
	if _, err := svc.CandlesLatest(ctx, "EURUSD", "H1", 0); !errors.Is(err, apperrors.ErrInputValidation) {
		t.Errorf("zero count: %v", err)
	}
}

func TestCandlesByDate(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		from, to string
		bars     int
		newest   time.Time
	}{
		{"range", "2025-01-07 00:00", "2025-01-07 23:59", 24, time.Date(2025, 1, 7, 23, 0, 0, 0, time.UTC)},
		{"reversed", "2025-01-07 23:59", "2025-01-07 00:00", 24, time.Date(2025, 1, 7, 23, 0, 0, 0, time.UTC)},
		{"date only", "2025-01-06", "2025-01-07", 25, time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC)},
		{"from only", "2025-01-07 10:00", "", DefaultCandleCount, time.Date(2025, 1, 7, 10, 0, 0, 0, time.UTC)},
		{"to only", "", "2025-01-08 00:00", 30*24 + 1, time.Date(2025, 1, 8, 0, 0, 0, 0, time.UTC)},
		{"neither", "", "", DefaultCandleCount, time.Date(2025, 1, 8, 12, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rates, err := svc.CandlesByDate(ctx, "EURUSD", "H1", tt.from, tt.to)
			if err != nil {
				t.Fatal(err)
			}
			if len(rates) != tt.bars {
				t.Errorf("bars = %d, want %d", len(rates), tt.bars)
			}
			if !rates[0].Time.Equal(tt.newest) {
				t.Errorf("newest = %v, want %v", rates[0].Time, tt.newest)
			}
		})
	}
}

func TestCandlesByDateErrors(t *testing.T) {
	svc, sim, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.CandlesByDate(ctx, "EURUSD", "H1", "07/01/2025", ""); !errors.Is(err, apperrors.ErrInputValidation) {
		t.Errorf("bad date: %v", err)
	}
	if _, err := svc.CandlesByDate(ctx, "EURUSD", "X1", "", ""); !errors.Is(err, apperrors.ErrInvalidTimeframe) {
		t.Errorf("bad timeframe: %v", err)
	}
	// A range in the future has no bars.
	if _, err := svc.CandlesByDate(ctx, "EURUSD", "H1", "2030-01-01", "2030-01-02"); !errors.Is(err, apperrors.ErrMarketData) {
		t.Errorf("empty range: %v", err)
	}

	sim.FailNext("copy_rates_range", apperrors.CodeInvalidParams, "Invalid params")
	if _, err := svc.CandlesByDate(ctx, "EURUSD", "H1", "2025-01-07", "2025-01-08"); !errors.Is(err, apperrors.ErrMarketData) {
		t.Errorf("terminal failure: %v", err)
	}
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2025-03-04 05:06")
	if err != nil || !got.Equal(time.Date(2025, 3, 4, 5, 6, 0, 0, time.UTC)) {
		t.Errorf("ParseDate = %v, %v", got, err)
	}
	got, err = ParseDate("  ")
	if err != nil || !got.IsZero() {
		t.Errorf("blank = %v, %v", got, err)
	}
}
