package terminal

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"

	apperrors "mt5-bridge/internal/errors"
	"mt5-bridge/internal/models"
	"mt5-bridge/internal/store"
	"mt5-bridge/pkg/utils"
)

// SimulatorConfig holds configuration for the simulated terminal.
type SimulatorConfig struct {
	InitialBalance float64
	Currency       string
	Leverage       int
	Login          int64
	Password       string
	Server         string
	Name           string
	Company        string
	// EnforceSessions rejects market orders outside FX trading hours.
	EnforceSessions bool
	Symbols         []models.SymbolInfo
	Store           store.DataStore
	Logger          zerolog.Logger
	Now             func() time.Time
}

// Simulator is an in-memory terminal. It keeps a hedging account with
// positions, pending orders and deal history, quotes a fixed set of symbols
// and generates deterministic candles. State can be persisted to a DataStore.
type Simulator struct {
	cfg SimulatorConfig
	log zerolog.Logger
	now func() time.Time

	initialized  bool
	loggedIn     bool
	connected    bool
	tradeAllowed bool
	restored     bool

	symbols map[string]*models.SymbolInfo
	names   []string

	positions     map[int64]*models.Position
	orders        map[int64]*models.Order
	historyOrders []models.Order
	deals         []models.Deal
	balance       float64
	nextTicket    int64
	requestID     int64

	lastErr *apperrors.TerminalError
	faults  map[string][]*apperrors.TerminalError

	mu sync.RWMutex
}

// NewSimulator creates a simulated terminal with seeded FX and metal symbols.
func NewSimulator(cfg SimulatorConfig) *Simulator {
	if cfg.InitialBalance == 0 {
		cfg.InitialBalance = 10000
	}
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	if cfg.Leverage == 0 {
		cfg.Leverage = 100
	}
	if cfg.Login == 0 {
		cfg.Login = 5001000
	}
	if cfg.Server == "" {
		cfg.Server = "Simulator-Demo"
	}
	if cfg.Name == "" {
		cfg.Name = "Simulated Account"
	}
	if cfg.Company == "" {
		cfg.Company = "mt5-bridge"
	}
	if cfg.Symbols == nil {
		cfg.Symbols = DefaultSymbols()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	s := &Simulator{
		cfg:          cfg,
		log:          cfg.Logger,
		now:          func() time.Time { return now().UTC() },
		tradeAllowed: true,
		symbols:      make(map[string]*models.SymbolInfo, len(cfg.Symbols)),
		positions:    make(map[int64]*models.Position),
		orders:       make(map[int64]*models.Order),
		balance:      cfg.InitialBalance,
		nextTicket:   100000,
		faults:       make(map[string][]*apperrors.TerminalError),
		lastErr:      apperrors.NewTerminalError(apperrors.CodeOK, "Success"),
	}
	for i := range cfg.Symbols {
		info := cfg.Symbols[i]
		s.symbols[info.Name] = &info
		s.names = append(s.names, info.Name)
	}
	sort.Strings(s.names)
	return s
}

// DefaultSymbols returns the seeded instrument catalogue.
func DefaultSymbols() []models.SymbolInfo {
	fx := func(name, desc string, digits int, bid, ask float64, visible bool) models.SymbolInfo {
		point := 1.0
		for i := 0; i < digits; i++ {
			point /= 10
		}
		return models.SymbolInfo{
			Name:              name,
			Description:       desc,
			Path:              "Forex\\" + name,
			CurrencyBase:      name[:3],
			CurrencyProfit:    name[3:6],
			CurrencyMargin:    name[:3],
			Digits:            digits,
			Point:             point,
			Spread:            int((ask-bid)/point + 0.5),
			TradeContractSize: 100000,
			VolumeMin:         0.01,
			VolumeMax:         100,
			VolumeStep:        0.01,
			Bid:               bid,
			Ask:               ask,
			Visible:           visible,
			Select:            visible,
			TradeMode:         4,
		}
	}

	symbols := []models.SymbolInfo{
		fx("EURUSD", "Euro vs US Dollar", 5, 1.08500, 1.08512, true),
		fx("GBPUSD", "Great Britain Pound vs US Dollar", 5, 1.26500, 1.26515, true),
		fx("USDJPY", "US Dollar vs Japanese Yen", 3, 150.250, 150.262, true),
		fx("USDCHF", "US Dollar vs Swiss Franc", 5, 0.88200, 0.88215, true),
		fx("AUDUSD", "Australian Dollar vs US Dollar", 5, 0.65500, 0.65514, true),
		fx("USDCAD", "US Dollar vs Canadian Dollar", 5, 1.35500, 1.35516, true),
		fx("NZDUSD", "New Zealand Dollar vs US Dollar", 5, 0.60500, 0.60518, false),
		fx("EURJPY", "Euro vs Japanese Yen", 3, 163.000, 163.020, false),
		fx("GBPJPY", "Great Britain Pound vs Japanese Yen", 3, 190.000, 190.030, false),
		fx("EURGBP", "Euro vs Great Britain Pound", 5, 0.85700, 0.85712, false),
	}

	gold := fx("XAUUSD", "Gold vs US Dollar", 2, 2350.00, 2350.30, true)
	gold.Path = "Metals\\XAUUSD"
	gold.TradeContractSize = 100
	silver := fx("XAGUSD", "Silver vs US Dollar", 3, 28.000, 28.030, false)
	silver.Path = "Metals\\XAGUSD"
	silver.TradeContractSize = 5000
	silver.VolumeMax = 50

	return append(symbols, gold, silver)
}

// ============================================================================
// Test and demo controls
// ============================================================================

// SetTick moves a symbol's quote, re-prices positions and triggers pending orders.
func (s *Simulator) SetTick(symbol string, bid, ask float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.symbols[symbol]
	if !ok {
		return apperrors.NewSymbolNotFoundError(symbol)
	}
	info.Bid = utils.NormalizePrice(bid, info.Digits)
	info.Ask = utils.NormalizePrice(ask, info.Digits)
	info.Spread = int((info.Ask-info.Bid)/info.Point + 0.5)

	s.processPendingLocked(symbol)
	s.persistLocked()
	return nil
}

// SetTradeAllowed toggles the terminal's AutoTrading button.
func (s *Simulator) SetTradeAllowed(allowed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tradeAllowed = allowed
}

// SetConnected simulates the terminal losing or regaining its server link.
func (s *Simulator) SetConnected(connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = connected
}

// FailNext makes the next call of method fail with (code, message).
// Method names follow the terminal API, e.g. "initialize" or "order_send".
func (s *Simulator) FailNext(method string, code int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[method] = append(s.faults[method], apperrors.NewTerminalError(code, message))
}

// Reset restores the initial balance and clears all trading state.
func (s *Simulator) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.positions = make(map[int64]*models.Position)
	s.orders = make(map[int64]*models.Order)
	s.historyOrders = nil
	s.deals = nil
	s.balance = s.cfg.InitialBalance
	s.nextTicket = 100000
	s.persistLocked()
}

// ============================================================================
// Lifecycle
// ============================================================================

func (s *Simulator) fault(method string) *apperrors.TerminalError {
	queue := s.faults[method]
	if len(queue) == 0 {
		return nil
	}
	err := queue[0]
	s.faults[method] = queue[1:]
	return err
}

func (s *Simulator) fail(err *apperrors.TerminalError) error {
	s.lastErr = err
	return err
}

func (s *Simulator) ok() {
	s.lastErr = apperrors.NewTerminalError(apperrors.CodeOK, "Success")
}

func (s *Simulator) checkCredentials(login int64, password, server string) *apperrors.TerminalError {
	if login != s.cfg.Login {
		return apperrors.NewTerminalError(apperrors.CodeAuthFailed, "Authorization failed")
	}
	if s.cfg.Password != "" && password != s.cfg.Password {
		return apperrors.NewTerminalError(apperrors.CodeAuthFailed, "Authorization failed")
	}
	if server != "" && !strings.EqualFold(server, s.cfg.Server) {
		return apperrors.NewTerminalError(apperrors.CodeAuthFailed, "Authorization failed")
	}
	return nil
}

// Initialize starts the simulated terminal. Credentials, when given, must match.
func (s *Simulator) Initialize(ctx context.Context, params InitParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.fault("initialize"); err != nil {
		return s.fail(err)
	}
	if params.Login != 0 {
		if err := s.checkCredentials(params.Login, params.Password, params.Server); err != nil {
			return s.fail(err)
		}
	}

	if !s.restored && s.cfg.Store != nil {
		if err := s.restoreLocked(ctx); err != nil {
			s.log.Warn().Err(err).Msg("Failed to restore simulator state")
		}
		s.restored = true
	}

	s.initialized = true
	s.connected = true
	s.loggedIn = true
	s.log.Debug().Str("path", params.Path).Msg("Simulator initialized")
	s.ok()
	return nil
}

// Login switches the simulated account after checking credentials.
func (s *Simulator) Login(ctx context.Context, params LoginParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return s.fail(errNotInitialized)
	}
	if err := s.fault("login"); err != nil {
		return s.fail(err)
	}
	if err := s.checkCredentials(params.Login, params.Password, params.Server); err != nil {
		return s.fail(err)
	}
	s.loggedIn = true
	s.ok()
	return nil
}

// Shutdown stops the simulated terminal and persists its state.
func (s *Simulator) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return s.fail(errNotInitialized)
	}
	if err := s.fault("shutdown"); err != nil {
		return s.fail(err)
	}
	s.persistLocked()
	s.initialized = false
	s.loggedIn = false
	s.connected = false
	s.ok()
	return nil
}

// TerminalInfo describes the simulated terminal.
func (s *Simulator) TerminalInfo(ctx context.Context) (*models.TerminalInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return nil, s.fail(errNotInitialized)
	}
	if err := s.fault("terminal_info"); err != nil {
		return nil, s.fail(err)
	}
	s.ok()
	return &models.TerminalInfo{
		Connected:    s.connected,
		TradeAllowed: s.tradeAllowed,
		Build:        4755,
		Name:         "Simulated Terminal 5.0.36",
		Company:      s.cfg.Company,
		Language:     "English",
		Path:         "simulator",
		DataPath:     "simulator",
	}, nil
}

// AccountInfo returns the simulated account with floating profit applied.
func (s *Simulator) AccountInfo(ctx context.Context) (*models.AccountInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return nil, s.fail(errNotInitialized)
	}
	if !s.loggedIn {
		return nil, s.fail(errNotLoggedIn)
	}
	if err := s.fault("account_info"); err != nil {
		return nil, s.fail(err)
	}

	info := s.accountLocked()
	s.ok()
	return &info, nil
}

func (s *Simulator) accountLocked() models.AccountInfo {
	s.repriceLocked()

	profit := 0.0
	margin := 0.0
	for _, p := range s.positions {
		profit += p.Profit
		m, _ := s.marginLocked(p.Symbol, p.Volume, p.PriceOpen)
		margin += m
	}
	equity := s.balance + profit
	level := 0.0
	if margin > 0 {
		level = equity / margin * 100
	}

	return models.AccountInfo{
		Login:        s.cfg.Login,
		TradeMode:    models.AccountTradeModeDemo,
		Leverage:     s.cfg.Leverage,
		LimitOrders:  200,
		TradeAllowed: true,
		TradeExpert:  true,
		Balance:      round2(s.balance),
		Profit:       round2(profit),
		Equity:       round2(equity),
		Margin:       round2(margin),
		MarginFree:   round2(equity - margin),
		MarginLevel:  round2(level),
		Name:         s.cfg.Name,
		Server:       s.cfg.Server,
		Currency:     s.cfg.Currency,
		Company:      s.cfg.Company,
	}
}

// LastError returns the result of the most recent call.
func (s *Simulator) LastError(ctx context.Context) (int, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr.Code, s.lastErr.Message
}

// ============================================================================
// Symbols
// ============================================================================

// MatchGroup reports whether symbol matches a terminal group filter such as
// "*USD*", "EUR*,GBP*" or "*,!*JPY*". Exclusions win over inclusions.
func MatchGroup(group, symbol string) bool {
	name := strings.ToUpper(symbol)
	included := false
	hasInclude := false

	for _, raw := range strings.Split(group, ",") {
		pattern := strings.ToUpper(strings.TrimSpace(raw))
		if pattern == "" {
			continue
		}
		if strings.HasPrefix(pattern, "!") {
			if ok, _ := doublestar.Match(pattern[1:], name); ok {
				return false
			}
			continue
		}
		hasInclude = true
		if ok, _ := doublestar.Match(pattern, name); ok {
			included = true
		}
	}
	return included || !hasInclude
}

// SymbolsGet returns every symbol matching group; an empty group returns all.
func (s *Simulator) SymbolsGet(ctx context.Context, group string) ([]models.SymbolInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return nil, s.fail(errNotInitialized)
	}
	if err := s.fault("symbols_get"); err != nil {
		return nil, s.fail(err)
	}

	out := make([]models.SymbolInfo, 0, len(s.names))
	for _, name := range s.names {
		if group == "" || MatchGroup(group, name) {
			out = append(out, *s.symbols[name])
		}
	}
	s.ok()
	return out, nil
}

// SymbolInfo returns one symbol's properties.
func (s *Simulator) SymbolInfo(ctx context.Context, symbol string) (*models.SymbolInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return nil, s.fail(errNotInitialized)
	}
	if err := s.fault("symbol_info"); err != nil {
		return nil, s.fail(err)
	}
	info, ok := s.symbols[symbol]
	if !ok {
		return nil, s.fail(apperrors.NewTerminalError(apperrors.CodeNotFound, fmt.Sprintf("Terminal: symbol %s not found", symbol)))
	}
	s.ok()
	out := *info
	return &out, nil
}

// SymbolInfoTick returns the latest quote. Hidden symbols have no ticks.
func (s *Simulator) SymbolInfoTick(ctx context.Context, symbol string) (*models.Tick, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return nil, s.fail(errNotInitialized)
	}
	if err := s.fault("symbol_info_tick"); err != nil {
		return nil, s.fail(err)
	}
	info, ok := s.symbols[symbol]
	if !ok || !info.Select {
		return nil, s.fail(apperrors.NewTerminalError(apperrors.CodeNotFound, fmt.Sprintf("Terminal: no tick for %s", symbol)))
	}
	s.ok()
	return &models.Tick{
		Time:   s.now(),
		Bid:    info.Bid,
		Ask:    info.Ask,
		Last:   0,
		Volume: 0,
	}, nil
}

// SymbolSelect shows or hides a symbol in Market Watch.
func (s *Simulator) SymbolSelect(ctx context.Context, symbol string, enable bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return s.fail(errNotInitialized)
	}
	if err := s.fault("symbol_select"); err != nil {
		return s.fail(err)
	}
	info, ok := s.symbols[symbol]
	if !ok {
		return s.fail(apperrors.NewTerminalError(apperrors.CodeNotFound, fmt.Sprintf("Terminal: symbol %s not found", symbol)))
	}
	if !enable && s.hasExposureLocked(symbol) {
		return s.fail(apperrors.NewTerminalError(apperrors.CodeFail, "Symbol has open positions or orders"))
	}
	info.Select = enable
	info.Visible = enable
	s.ok()
	return nil
}

func (s *Simulator) hasExposureLocked(symbol string) bool {
	for _, p := range s.positions {
		if p.Symbol == symbol {
			return true
		}
	}
	for _, o := range s.orders {
		if o.Symbol == symbol {
			return true
		}
	}
	return false
}

// ============================================================================
// Positions, orders and history
// ============================================================================

func matchFilter(f Filter, ticket int64, symbol string) bool {
	switch {
	case f.Ticket != 0:
		return ticket == f.Ticket
	case f.Symbol != "":
		return symbol == f.Symbol
	case f.Group != "":
		return MatchGroup(f.Group, symbol)
	}
	return true
}

// PositionsGet returns open positions matching filter.
func (s *Simulator) PositionsGet(ctx context.Context, filter Filter) ([]models.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return nil, s.fail(errNotInitialized)
	}
	if err := s.fault("positions_get"); err != nil {
		return nil, s.fail(err)
	}

	s.repriceLocked()
	out := make([]models.Position, 0, len(s.positions))
	for _, p := range s.positions {
		if matchFilter(filter, p.Ticket, p.Symbol) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticket < out[j].Ticket })
	s.ok()
	return out, nil
}

// OrdersGet returns active pending orders matching filter.
func (s *Simulator) OrdersGet(ctx context.Context, filter Filter) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return nil, s.fail(errNotInitialized)
	}
	if err := s.fault("orders_get"); err != nil {
		return nil, s.fail(err)
	}

	out := make([]models.Order, 0, len(s.orders))
	for _, o := range s.orders {
		if matchFilter(filter, o.Ticket, o.Symbol) {
			cp := *o
			if info, ok := s.symbols[o.Symbol]; ok {
				cp.PriceCurrent = info.Bid
				if o.Type.IsBuy() {
					cp.PriceCurrent = info.Ask
				}
			}
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticket < out[j].Ticket })
	s.ok()
	return out, nil
}

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && t.After(to) {
		return false
	}
	return true
}

// HistoryDealsGet returns executed deals.
func (s *Simulator) HistoryDealsGet(ctx context.Context, filter HistoryFilter) ([]models.Deal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return nil, s.fail(errNotInitialized)
	}
	if err := s.fault("history_deals_get"); err != nil {
		return nil, s.fail(err)
	}

	var out []models.Deal
	for _, d := range s.deals {
		switch {
		case filter.Ticket != 0:
			if d.Ticket != filter.Ticket {
				continue
			}
		case filter.Position != 0:
			if d.PositionID != filter.Position {
				continue
			}
		default:
			if !inRange(d.Time, filter.From, filter.To) {
				continue
			}
			if filter.Group != "" && (d.Symbol == "" || !MatchGroup(filter.Group, d.Symbol)) {
				continue
			}
		}
		out = append(out, d)
	}
	s.ok()
	return out, nil
}

// HistoryOrdersGet returns finished orders.
func (s *Simulator) HistoryOrdersGet(ctx context.Context, filter HistoryFilter) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return nil, s.fail(errNotInitialized)
	}
	if err := s.fault("history_orders_get"); err != nil {
		return nil, s.fail(err)
	}

	var out []models.Order
	for _, o := range s.historyOrders {
		switch {
		case filter.Ticket != 0:
			if o.Ticket != filter.Ticket {
				continue
			}
		case filter.Position != 0:
			if o.PositionID != filter.Position {
				continue
			}
		default:
			if !inRange(o.TimeSetup, filter.From, filter.To) {
				continue
			}
			if filter.Group != "" && !MatchGroup(filter.Group, o.Symbol) {
				continue
			}
		}
		out = append(out, o)
	}
	s.ok()
	return out, nil
}

// ============================================================================
// Calculations
// ============================================================================

// OrderCalcMargin returns the margin of a market or pending order in account currency.
func (s *Simulator) OrderCalcMargin(ctx context.Context, orderType models.OrderType, symbol string, volume, price float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return 0, s.fail(errNotInitialized)
	}
	if err := s.fault("order_calc_margin"); err != nil {
		return 0, s.fail(err)
	}
	if !orderType.IsBuy() && !orderType.IsSell() {
		return 0, s.fail(apperrors.NewTerminalError(apperrors.CodeInvalidParams, "Invalid order type"))
	}
	if volume <= 0 || price <= 0 {
		return 0, s.fail(apperrors.NewTerminalError(apperrors.CodeInvalidParams, "Invalid volume or price"))
	}
	margin, err := s.marginLocked(symbol, volume, price)
	if err != nil {
		return 0, s.fail(err)
	}
	s.ok()
	return round2(margin), nil
}

// OrderCalcProfit returns the profit of a hypothetical trade in account currency.
func (s *Simulator) OrderCalcProfit(ctx context.Context, orderType models.OrderType, symbol string, volume, priceOpen, priceClose float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return 0, s.fail(errNotInitialized)
	}
	if err := s.fault("order_calc_profit"); err != nil {
		return 0, s.fail(err)
	}
	if orderType != models.OrderTypeBuy && orderType != models.OrderTypeSell {
		return 0, s.fail(apperrors.NewTerminalError(apperrors.CodeInvalidParams, "Invalid order type"))
	}
	if volume <= 0 {
		return 0, s.fail(apperrors.NewTerminalError(apperrors.CodeInvalidParams, "Invalid volume"))
	}
	profit, err := s.profitLocked(symbol, orderType, volume, priceOpen, priceClose)
	if err != nil {
		return 0, s.fail(err)
	}
	s.ok()
	return round2(profit), nil
}

// rateLocked converts one unit of from into to using mid quotes, crossing via USD.
func (s *Simulator) rateLocked(from, to string) (float64, bool) {
	if from == to {
		return 1, true
	}
	if info, ok := s.symbols[from+to]; ok {
		return (info.Bid + info.Ask) / 2, true
	}
	if info, ok := s.symbols[to+from]; ok {
		return 2 / (info.Bid + info.Ask), true
	}
	if from != "USD" && to != "USD" {
		a, ok1 := s.rateLocked(from, "USD")
		b, ok2 := s.rateLocked("USD", to)
		if ok1 && ok2 {
			return a * b, true
		}
	}
	return 0, false
}

func (s *Simulator) toAccountLocked(amount float64, currency string) (float64, *apperrors.TerminalError) {
	rate, ok := s.rateLocked(currency, s.cfg.Currency)
	if !ok {
		return 0, apperrors.NewTerminalError(apperrors.CodeInternalFail, fmt.Sprintf("No conversion rate %s/%s", currency, s.cfg.Currency))
	}
	return amount * rate, nil
}

func (s *Simulator) marginLocked(symbol string, volume, price float64) (float64, *apperrors.TerminalError) {
	info, ok := s.symbols[symbol]
	if !ok {
		return 0, apperrors.NewTerminalError(apperrors.CodeNotFound, fmt.Sprintf("Terminal: symbol %s not found", symbol))
	}
	// Notional in the profit currency, e.g. USD for EURUSD, JPY for USDJPY.
	notional := volume * info.TradeContractSize * price / float64(s.cfg.Leverage)
	return s.toAccountLocked(notional, info.CurrencyProfit)
}

func (s *Simulator) profitLocked(symbol string, orderType models.OrderType, volume, priceOpen, priceClose float64) (float64, *apperrors.TerminalError) {
	info, ok := s.symbols[symbol]
	if !ok {
		return 0, apperrors.NewTerminalError(apperrors.CodeNotFound, fmt.Sprintf("Terminal: symbol %s not found", symbol))
	}
	diff := priceClose - priceOpen
	if orderType.IsSell() {
		diff = -diff
	}
	return s.toAccountLocked(diff*volume*info.TradeContractSize, info.CurrencyProfit)
}

// marketPriceLocked is the price a position of type t closes at.
func (s *Simulator) marketPriceLocked(symbol string, t models.OrderType) float64 {
	info, ok := s.symbols[symbol]
	if !ok {
		return 0
	}
	if t.IsBuy() {
		return info.Bid
	}
	return info.Ask
}

func (s *Simulator) repriceLocked() {
	for _, p := range s.positions {
		p.PriceCurrent = s.marketPriceLocked(p.Symbol, p.Type)
		profit, err := s.profitLocked(p.Symbol, p.Type, p.Volume, p.PriceOpen, p.PriceCurrent)
		if err == nil {
			p.Profit = round2(profit)
		}
	}
}

// ============================================================================
// Persistence
// ============================================================================

func (s *Simulator) snapshotLocked() *store.Snapshot {
	snap := &store.Snapshot{
		Balance:       s.balance,
		NextTicket:    s.nextTicket,
		HistoryOrders: append([]models.Order(nil), s.historyOrders...),
		Deals:         append([]models.Deal(nil), s.deals...),
		SavedAt:       s.now(),
	}
	for _, p := range s.positions {
		snap.Positions = append(snap.Positions, *p)
	}
	for _, o := range s.orders {
		snap.Orders = append(snap.Orders, *o)
	}
	return snap
}

func (s *Simulator) persistLocked() {
	if s.cfg.Store == nil {
		return
	}
	if err := s.cfg.Store.SaveSnapshot(context.Background(), s.snapshotLocked()); err != nil {
		s.log.Error().Err(err).Msg("Failed to persist simulator state")
	}
}

func (s *Simulator) restoreLocked(ctx context.Context) error {
	snap, err := s.cfg.Store.LoadSnapshot(ctx)
	if err != nil {
		return err
	}
	if snap.Empty() {
		return nil
	}

	s.balance = snap.Balance
	s.nextTicket = snap.NextTicket
	s.positions = make(map[int64]*models.Position, len(snap.Positions))
	for i := range snap.Positions {
		p := snap.Positions[i]
		s.positions[p.Ticket] = &p
	}
	s.orders = make(map[int64]*models.Order, len(snap.Orders))
	for i := range snap.Orders {
		o := snap.Orders[i]
		s.orders[o.Ticket] = &o
	}
	s.historyOrders = snap.HistoryOrders
	s.deals = snap.Deals

	s.log.Info().
		Int("positions", len(s.positions)).
		Int("orders", len(s.orders)).
		Int("deals", len(s.deals)).
		Msg("Simulator state restored")
	return nil
}

func round2(v float64) float64 {
	return utils.NormalizePrice(v, 2)
}

var _ Terminal = (*Simulator)(nil)
