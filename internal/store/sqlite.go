package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"mt5-bridge/internal/models"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db        *sql.DB
	mu        sync.RWMutex
	freshness map[string]time.Time
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{
		db:        db,
		freshness: make(map[string]time.Time),
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS candles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		timeframe INTEGER NOT NULL,
		timestamp DATETIME NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		tick_volume INTEGER NOT NULL,
		spread INTEGER NOT NULL DEFAULT 0,
		real_volume INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(symbol, timeframe, timestamp)
	);

	CREATE TABLE IF NOT EXISTS sim_state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS sim_positions (
		ticket INTEGER PRIMARY KEY,
		time DATETIME NOT NULL,
		type INTEGER NOT NULL,
		magic INTEGER NOT NULL DEFAULT 0,
		identifier INTEGER NOT NULL,
		volume REAL NOT NULL,
		price_open REAL NOT NULL,
		sl REAL NOT NULL DEFAULT 0,
		tp REAL NOT NULL DEFAULT 0,
		price_current REAL NOT NULL DEFAULT 0,
		swap REAL NOT NULL DEFAULT 0,
		profit REAL NOT NULL DEFAULT 0,
		symbol TEXT NOT NULL,
		comment TEXT
	);

	CREATE TABLE IF NOT EXISTS sim_orders (
		ticket INTEGER PRIMARY KEY,
		active INTEGER NOT NULL,
		time_setup DATETIME NOT NULL,
		time_expiration DATETIME,
		time_done DATETIME,
		type INTEGER NOT NULL,
		type_time INTEGER NOT NULL,
		type_filling INTEGER NOT NULL,
		state INTEGER NOT NULL,
		magic INTEGER NOT NULL DEFAULT 0,
		position_id INTEGER NOT NULL DEFAULT 0,
		volume_initial REAL NOT NULL,
		volume_current REAL NOT NULL,
		price_open REAL NOT NULL,
		sl REAL NOT NULL DEFAULT 0,
		tp REAL NOT NULL DEFAULT 0,
		price_current REAL NOT NULL DEFAULT 0,
		price_stoplimit REAL NOT NULL DEFAULT 0,
		symbol TEXT NOT NULL,
		comment TEXT
	);

	CREATE TABLE IF NOT EXISTS sim_deals (
		ticket INTEGER PRIMARY KEY,
		order_ticket INTEGER NOT NULL,
		time DATETIME NOT NULL,
		type INTEGER NOT NULL,
		entry INTEGER NOT NULL,
		magic INTEGER NOT NULL DEFAULT 0,
		position_id INTEGER NOT NULL DEFAULT 0,
		volume REAL NOT NULL,
		price REAL NOT NULL,
		commission REAL NOT NULL DEFAULT 0,
		swap REAL NOT NULL DEFAULT 0,
		profit REAL NOT NULL DEFAULT 0,
		fee REAL NOT NULL DEFAULT 0,
		symbol TEXT,
		comment TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_candles_symbol_timeframe ON candles(symbol, timeframe);
	CREATE INDEX IF NOT EXISTS idx_candles_timestamp ON candles(timestamp);
	CREATE INDEX IF NOT EXISTS idx_sim_orders_active ON sim_orders(active);
	CREATE INDEX IF NOT EXISTS idx_sim_deals_time ON sim_deals(time);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ============================================================================
// Candles Methods
// ============================================================================

func freshnessKey(symbol string, tf models.Timeframe) string {
	return symbol + ":" + strconv.Itoa(int(tf))
}

// SaveCandles saves candles to the database.
func (s *SQLiteStore) SaveCandles(ctx context.Context, symbol string, tf models.Timeframe, rates []models.Rate) error {
	if len(rates) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO candles (symbol, timeframe, timestamp, open, high, low, close, tick_volume, spread, real_volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	var newest time.Time
	for _, r := range rates {
		ts := r.Time.UTC()
		_, err := stmt.ExecContext(ctx, symbol, int(tf), ts, r.Open, r.High, r.Low, r.Close, r.TickVolume, r.Spread, r.RealVolume)
		if err != nil {
			return fmt.Errorf("failed to insert candle: %w", err)
		}
		if ts.After(newest) {
			newest = ts
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.mu.Lock()
	key := freshnessKey(symbol, tf)
	if newest.After(s.freshness[key]) {
		s.freshness[key] = newest
	}
	s.mu.Unlock()

	return nil
}

// GetCandles retrieves candles in [from, to], oldest first.
func (s *SQLiteStore) GetCandles(ctx context.Context, symbol string, tf models.Timeframe, from, to time.Time) ([]models.Rate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, open, high, low, close, tick_volume, spread, real_volume
		FROM candles
		WHERE symbol = ? AND timeframe = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC
	`, symbol, int(tf), from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query candles: %w", err)
	}
	defer rows.Close()

	var rates []models.Rate
	for rows.Next() {
		var r models.Rate
		if err := rows.Scan(&r.Time, &r.Open, &r.High, &r.Low, &r.Close, &r.TickVolume, &r.Spread, &r.RealVolume); err != nil {
			return nil, fmt.Errorf("failed to scan candle: %w", err)
		}
		r.Time = r.Time.UTC()
		rates = append(rates, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candles: %w", err)
	}

	return rates, nil
}

// GetCandlesFreshness returns the timestamp of the most recent candle.
func (s *SQLiteStore) GetCandlesFreshness(ctx context.Context, symbol string, tf models.Timeframe) (time.Time, error) {
	s.mu.RLock()
	if t, ok := s.freshness[freshnessKey(symbol, tf)]; ok {
		s.mu.RUnlock()
		return t, nil
	}
	s.mu.RUnlock()

	var timestamp sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(timestamp) FROM candles WHERE symbol = ? AND timeframe = ?
	`, symbol, int(tf)).Scan(&timestamp)
	if err != nil && err != sql.ErrNoRows {
		return time.Time{}, fmt.Errorf("failed to get candles freshness: %w", err)
	}
	if !timestamp.Valid {
		return time.Time{}, nil
	}

	t, err := parseSQLiteTime(timestamp.String)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse candles freshness: %w", err)
	}
	return t, nil
}

// MAX() loses the column type, so the driver hands back text.
func parseSQLiteTime(s string) (time.Time, error) {
	layouts := []string{
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02T15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02T15:04:05.999999999Z07:00",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

// ============================================================================
// Simulator State Methods
// ============================================================================

// SaveSnapshot replaces the stored simulator state with snap.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap *Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"sim_positions", "sim_orders", "sim_deals"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	state := map[string]string{
		"balance":     strconv.FormatFloat(snap.Balance, 'f', -1, 64),
		"next_ticket": strconv.FormatInt(snap.NextTicket, 10),
	}
	for k, v := range state {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO sim_state (key, value, updated_at) VALUES (?, ?, ?)
		`, k, v, time.Now().UTC()); err != nil {
			return fmt.Errorf("failed to save state %s: %w", k, err)
		}
	}

	for _, p := range snap.Positions {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sim_positions (ticket, time, type, magic, identifier, volume, price_open, sl, tp, price_current, swap, profit, symbol, comment)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, p.Ticket, p.Time.UTC(), int(p.Type), p.Magic, p.Identifier, p.Volume, p.PriceOpen, p.SL, p.TP, p.PriceCurrent, p.Swap, p.Profit, p.Symbol, p.Comment); err != nil {
			return fmt.Errorf("failed to save position %d: %w", p.Ticket, err)
		}
	}

	insertOrder := func(o models.Order, active bool) error {
		flag := 0
		if active {
			flag = 1
		}
		_, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO sim_orders (ticket, active, time_setup, time_expiration, time_done, type, type_time, type_filling, state, magic, position_id, volume_initial, volume_current, price_open, sl, tp, price_current, price_stoplimit, symbol, comment)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, o.Ticket, flag, o.TimeSetup.UTC(), o.TimeExpiration.UTC(), o.TimeDone.UTC(), int(o.Type), int(o.TypeTime), int(o.TypeFilling), int(o.State), o.Magic, o.PositionID,
			o.VolumeInitial, o.VolumeCurrent, o.PriceOpen, o.SL, o.TP, o.PriceCurrent, o.PriceStopLimit, o.Symbol, o.Comment)
		if err != nil {
			return fmt.Errorf("failed to save order %d: %w", o.Ticket, err)
		}
		return nil
	}
	for _, o := range snap.HistoryOrders {
		if err := insertOrder(o, false); err != nil {
			return err
		}
	}
	for _, o := range snap.Orders {
		if err := insertOrder(o, true); err != nil {
			return err
		}
	}

	for _, d := range snap.Deals {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sim_deals (ticket, order_ticket, time, type, entry, magic, position_id, volume, price, commission, swap, profit, fee, symbol, comment)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, d.Ticket, d.Order, d.Time.UTC(), int(d.Type), int(d.Entry), d.Magic, d.PositionID, d.Volume, d.Price, d.Commission, d.Swap, d.Profit, d.Fee, d.Symbol, d.Comment); err != nil {
			return fmt.Errorf("failed to save deal %d: %w", d.Ticket, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LoadSnapshot reads the stored simulator state. An empty database yields an empty snapshot.
func (s *SQLiteStore) LoadSnapshot(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}

	rows, err := s.db.QueryContext(ctx, `SELECT key, value, updated_at FROM sim_state`)
	if err != nil {
		return nil, fmt.Errorf("failed to query state: %w", err)
	}
	for rows.Next() {
		var key, value string
		var updated time.Time
		if err := rows.Scan(&key, &value, &updated); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan state: %w", err)
		}
		switch key {
		case "balance":
			snap.Balance, _ = strconv.ParseFloat(value, 64)
		case "next_ticket":
			snap.NextTicket, _ = strconv.ParseInt(value, 10, 64)
		}
		if updated.After(snap.SavedAt) {
			snap.SavedAt = updated.UTC()
		}
	}
	rows.Close()

	if snap.Positions, err = s.loadPositions(ctx); err != nil {
		return nil, err
	}
	if snap.Orders, err = s.loadOrders(ctx, true); err != nil {
		return nil, err
	}
	if snap.HistoryOrders, err = s.loadOrders(ctx, false); err != nil {
		return nil, err
	}
	if snap.Deals, err = s.loadDeals(ctx); err != nil {
		return nil, err
	}

	return snap, nil
}

func (s *SQLiteStore) loadPositions(ctx context.Context) ([]models.Position, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ticket, time, type, magic, identifier, volume, price_open, sl, tp, price_current, swap, profit, symbol, COALESCE(comment, '')
		FROM sim_positions ORDER BY ticket ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var positions []models.Position
	for rows.Next() {
		var p models.Position
		var typ int
		if err := rows.Scan(&p.Ticket, &p.Time, &typ, &p.Magic, &p.Identifier, &p.Volume, &p.PriceOpen, &p.SL, &p.TP, &p.PriceCurrent, &p.Swap, &p.Profit, &p.Symbol, &p.Comment); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		p.Type = models.OrderType(typ)
		p.Time = p.Time.UTC()
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

func (s *SQLiteStore) loadOrders(ctx context.Context, active bool) ([]models.Order, error) {
	flag := 0
	if active {
		flag = 1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT ticket, time_setup, time_expiration, time_done, type, type_time, type_filling, state, magic, position_id,
			volume_initial, volume_current, price_open, sl, tp, price_current, price_stoplimit, symbol, COALESCE(comment, '')
		FROM sim_orders WHERE active = ? ORDER BY ticket ASC
	`, flag)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var o models.Order
		var typ, typeTime, typeFilling, state int
		if err := rows.Scan(&o.Ticket, &o.TimeSetup, &o.TimeExpiration, &o.TimeDone, &typ, &typeTime, &typeFilling, &state, &o.Magic, &o.PositionID,
			&o.VolumeInitial, &o.VolumeCurrent, &o.PriceOpen, &o.SL, &o.TP, &o.PriceCurrent, &o.PriceStopLimit, &o.Symbol, &o.Comment); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		o.Type = models.OrderType(typ)
		o.TypeTime = models.OrderTime(typeTime)
		o.TypeFilling = models.OrderFilling(typeFilling)
		o.State = models.OrderState(state)
		o.TimeSetup = o.TimeSetup.UTC()
		o.TimeExpiration = o.TimeExpiration.UTC()
		o.TimeDone = o.TimeDone.UTC()
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (s *SQLiteStore) loadDeals(ctx context.Context) ([]models.Deal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ticket, order_ticket, time, type, entry, magic, position_id, volume, price, commission, swap, profit, fee, COALESCE(symbol, ''), COALESCE(comment, '')
		FROM sim_deals ORDER BY ticket ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query deals: %w", err)
	}
	defer rows.Close()

	var deals []models.Deal
	for rows.Next() {
		var d models.Deal
		var typ, entry int
		if err := rows.Scan(&d.Ticket, &d.Order, &d.Time, &typ, &entry, &d.Magic, &d.PositionID, &d.Volume, &d.Price, &d.Commission, &d.Swap, &d.Profit, &d.Fee, &d.Symbol, &d.Comment); err != nil {
			return nil, fmt.Errorf("failed to scan deal: %w", err)
		}
		d.Type = models.DealType(typ)
		d.Entry = models.DealEntry(entry)
		d.Time = d.Time.UTC()
		deals = append(deals, d)
	}
	return deals, rows.Err()
}

var _ DataStore = (*SQLiteStore)(nil)
