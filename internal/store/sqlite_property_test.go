package store

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"mt5-bridge/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// Property: saving candles and reading them back yields the same series.
func TestProperty_CandleRoundTripConsistency(t *testing.T) {
	store := newTestStore(t)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	symbols := []string{"EURUSD", "GBPUSD", "USDJPY", "XAUUSD", "AUDUSD"}
	timeframeGen := gen.OneConstOf(models.TimeframeM1, models.TimeframeM15, models.TimeframeH1, models.TimeframeD1)

	run := 0
	properties.Property("save then retrieve produces equivalent data", prop.ForAll(
		func(symbolIdx int, tf models.Timeframe, count int, basePrice float64) bool {
			ctx := context.Background()
			run++
			symbol := fmt.Sprintf("%s_%d", symbols[symbolIdx%len(symbols)], run)

			rates := generateTestRates(count, basePrice, tf)
			if err := store.SaveCandles(ctx, symbol, tf, rates); err != nil {
				t.Logf("Failed to save candles: %v", err)
				return false
			}

			from := rates[0].Time.Add(-time.Second)
			to := rates[len(rates)-1].Time.Add(time.Second)
			retrieved, err := store.GetCandles(ctx, symbol, tf, from, to)
			if err != nil {
				t.Logf("Failed to get candles: %v", err)
				return false
			}

			if len(retrieved) != len(rates) {
				t.Logf("Count mismatch: expected %d, got %d", len(rates), len(retrieved))
				return false
			}
			for i := range rates {
				if !ratesEqual(rates[i], retrieved[i]) {
					t.Logf("Candle mismatch at %d: %+v vs %+v", i, rates[i], retrieved[i])
					return false
				}
			}

			fresh, err := store.GetCandlesFreshness(ctx, symbol, tf)
			return err == nil && fresh.Equal(rates[len(rates)-1].Time)
		},
		gen.IntRange(0, len(symbols)-1),
		timeframeGen,
		gen.IntRange(1, 20),
		gen.Float64Range(0.5, 2500.0),
	))

	properties.Property("saving an empty slice succeeds", prop.ForAll(
		func(tf models.Timeframe) bool {
			return store.SaveCandles(context.Background(), "EMPTY", tf, nil) == nil
		},
		timeframeGen,
	))

	properties.TestingRun(t)
}

func TestCandlesFreshnessFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh.db")
	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	rates := generateTestRates(3, 1.1, models.TimeframeH1)
	if err := store.SaveCandles(context.Background(), "EURUSD", models.TimeframeH1, rates); err != nil {
		t.Fatalf("save: %v", err)
	}
	store.Close()

	reopened, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	fresh, err := reopened.GetCandlesFreshness(context.Background(), "EURUSD", models.TimeframeH1)
	if err != nil {
		t.Fatalf("freshness: %v", err)
	}
	if !fresh.Equal(rates[2].Time) {
		t.Errorf("freshness = %v, want %v", fresh, rates[2].Time)
	}

	none, err := reopened.GetCandlesFreshness(context.Background(), "GBPUSD", models.TimeframeH1)
	if err != nil || !none.IsZero() {
		t.Errorf("unknown series freshness = %v, %v", none, err)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	empty, err := store.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("load empty: %v", err)
	}
	if !empty.Empty() {
		t.Fatalf("fresh database should yield an empty snapshot: %+v", empty)
	}

	opened := time.Date(2025, 2, 3, 8, 0, 0, 0, time.UTC)
	snap := &Snapshot{
		Balance:    10250.5,
		NextTicket: 1004,
		Positions: []models.Position{{
			Ticket: 1001, Time: opened, Type: models.OrderTypeBuy, Identifier: 1001,
			Volume: 0.1, PriceOpen: 1.0812, SL: 1.07, TP: 1.09, Symbol: "EURUSD", Comment: "MCP",
		}},
		Orders: []models.Order{{
			Ticket: 1003, TimeSetup: opened.Add(time.Hour), Type: models.OrderTypeSellLimit,
			TypeTime: models.OrderTimeGTC, TypeFilling: models.OrderFillingFOK, State: models.OrderStatePlaced,
			VolumeInitial: 0.2, VolumeCurrent: 0.2, PriceOpen: 1.095, Symbol: "EURUSD",
		}},
		HistoryOrders: []models.Order{{
			Ticket: 1001, TimeSetup: opened, TimeDone: opened, Type: models.OrderTypeBuy,
			State: models.OrderStateFilled, VolumeInitial: 0.1, PriceOpen: 1.0812, Symbol: "EURUSD",
		}},
		Deals: []models.Deal{{
			Ticket: 2001, Order: 1001, Time: opened, Type: models.DealTypeBuy, Entry: models.DealEntryIn,
			PositionID: 1001, Volume: 0.1, Price: 1.0812, Symbol: "EURUSD",
		}},
	}

	if err := store.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if got.Balance != snap.Balance || got.NextTicket != snap.NextTicket {
		t.Errorf("state = %v/%d", got.Balance, got.NextTicket)
	}
	if len(got.Positions) != 1 || got.Positions[0].Ticket != 1001 || !got.Positions[0].Time.Equal(opened) || got.Positions[0].SL != 1.07 {
		t.Errorf("positions = %+v", got.Positions)
	}
	if len(got.Orders) != 1 || got.Orders[0].Type != models.OrderTypeSellLimit || !got.Orders[0].TimeExpiration.IsZero() {
		t.Errorf("orders = %+v", got.Orders)
	}
	if len(got.HistoryOrders) != 1 || got.HistoryOrders[0].State != models.OrderStateFilled {
		t.Errorf("history orders = %+v", got.HistoryOrders)
	}
	if len(got.Deals) != 1 || got.Deals[0].Entry != models.DealEntryIn || got.Deals[0].PositionID != 1001 {
		t.Errorf("deals = %+v", got.Deals)
	}

	// A second save replaces, not appends.
	snap.Positions = nil
	if err := store.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("second save: %v", err)
	}
	got, _ = store.LoadSnapshot(ctx)
	if len(got.Positions) != 0 || len(got.Deals) != 1 {
		t.Errorf("after replace: %d positions, %d deals", len(got.Positions), len(got.Deals))
	}
}

func generateTestRates(count int, basePrice float64, tf models.Timeframe) []models.Rate {
	rates := make([]models.Rate, count)
	baseTime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	step := time.Duration(tf.Minutes()) * time.Minute

	for i := 0; i < count; i++ {
		variation := float64(i%10) * 0.001 * basePrice
		open := basePrice + variation
		closePrice := basePrice + variation*0.5

		rates[i] = models.Rate{
			Time:       baseTime.Add(time.Duration(i) * step),
			Open:       roundToDecimal(open, 5),
			High:       roundToDecimal(math.Max(open, closePrice)*1.001, 5),
			Low:        roundToDecimal(math.Min(open, closePrice)*0.999, 5),
			Close:      roundToDecimal(closePrice, 5),
			TickVolume: int64(100 + i*10),
			Spread:     12,
		}
	}
	return rates
}

func roundToDecimal(val float64, places int) float64 {
	multiplier := math.Pow(10, float64(places))
	return math.Round(val*multiplier) / multiplier
}

func ratesEqual(a, b models.Rate) bool {
	const tolerance = 1e-9
	return a.Time.Equal(b.Time) &&
		math.Abs(a.Open-b.Open) <= tolerance &&
		math.Abs(a.High-b.High) <= tolerance &&
		math.Abs(a.Low-b.Low) <= tolerance &&
		math.Abs(a.Close-b.Close) <= tolerance &&
		a.TickVolume == b.TickVolume &&
		a.Spread == b.Spread
}
