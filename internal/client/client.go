// Package client wires the terminal connection to the account, market,
// order and history services.
package client

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"mt5-bridge/internal/account"
	"mt5-bridge/internal/config"
	"mt5-bridge/internal/connection"
	apperrors "mt5-bridge/internal/errors"
	"mt5-bridge/internal/history"
	"mt5-bridge/internal/market"
	"mt5-bridge/internal/orders"
	"mt5-bridge/internal/security"
	"mt5-bridge/internal/store"
	"mt5-bridge/internal/terminal"
)

// ErrNoDriver is returned when no terminal implementation is available.
var ErrNoDriver = fmt.Errorf("%w: no MetaTrader 5 driver is linked into this build, enable the simulator", apperrors.ErrInitialization)

// Options configures a Client.
type Options struct {
	Connection       connection.Config
	ReadOnly         bool
	StrictValidation bool
	Logger           zerolog.Logger
	// ConnectionOptions are passed to the connection manager.
	ConnectionOptions []connection.Option
}

// Client owns one terminal connection and the services built on it.
type Client struct {
	conn *connection.Manager
	term terminal.Terminal
	log  zerolog.Logger

	Account   *account.Service
	Market    *market.Service
	Orders    *orders.Service
	History   *history.Service
	Access    *security.AccessController
	Validator *security.InputValidator

	closers []func() error
}

// New creates a client over term. The terminal is not contacted until Connect.
func New(term terminal.Terminal, opts Options) *Client {
	log := opts.Logger
	connOpts := append([]connection.Option{connection.WithLogger(log)}, opts.ConnectionOptions...)
	conn := connection.NewManager(term, opts.Connection, connOpts...)

	mkt := market.NewService(conn, log)
	access := security.NewAccessController(opts.ReadOnly, log)

	return &Client{
		conn:      conn,
		term:      term,
		log:       log,
		Account:   account.NewService(conn, mkt.Resolver(), log),
		Market:    mkt,
		Orders:    orders.NewService(conn, mkt.Resolver(), access, log),
		History:   history.NewService(conn, log),
		Access:    access,
		Validator: security.NewInputValidator(opts.StrictValidation),
	}
}

// FromConfig builds a client from the loaded configuration. With the
// simulator enabled the client runs against a simulated terminal whose state
// is kept in SQLite at simulator.db_path.
func FromConfig(cfg *config.Config, logger zerolog.Logger) (*Client, error) {
	if !cfg.Simulator.Enabled {
		return nil, ErrNoDriver
	}

	simCfg := terminal.SimulatorConfig{
		InitialBalance:  cfg.Simulator.InitialBalance,
		Currency:        cfg.Simulator.Currency,
		Leverage:        cfg.Simulator.Leverage,
		EnforceSessions: cfg.Simulator.EnforceSessions,
		Password:        cfg.Terminal.Password,
		Server:          cfg.Terminal.Server,
		Logger:          logger.With().Str("component", "simulator").Logger(),
	}

	connCfg := cfg.Connection()
	if connCfg.Login != "" {
		login, err := parseLogin(connCfg.Login)
		if err != nil {
			return nil, err
		}
		simCfg.Login = login
	}

	var db *store.SQLiteStore
	if cfg.Simulator.DBPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Simulator.DBPath), 0755); err != nil {
			return nil, fmt.Errorf("creating simulator data directory: %w", err)
		}
		var err error
		db, err = store.NewSQLiteStore(cfg.Simulator.DBPath)
		if err != nil {
			return nil, fmt.Errorf("opening simulator store: %w", err)
		}
		simCfg.Store = db
	}

	c := New(terminal.NewSimulator(simCfg), Options{
		Connection:       connCfg,
		ReadOnly:         !cfg.TradingAllowed(),
		StrictValidation: cfg.Security.StrictValidation,
		Logger:           logger,
	})
	if db != nil {
		c.closers = append(c.closers, db.Close)
	}
	return c, nil
}

func parseLogin(raw string) (int64, error) {
	login, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, apperrors.NewValidationError("login", raw, "login must be an account number")
	}
	return login, nil
}

// Connection returns the connection manager.
func (c *Client) Connection() *connection.Manager {
	return c.conn
}

// Terminal returns the underlying terminal.
func (c *Client) Terminal() terminal.Terminal {
	return c.term
}

// Logger returns the client's logger.
func (c *Client) Logger() zerolog.Logger {
	return c.log
}

// Connect establishes the terminal connection.
func (c *Client) Connect(ctx context.Context) error {
	return c.conn.Connect(ctx)
}

// IsConnected reports whether the terminal is connected.
func (c *Client) IsConnected(ctx context.Context) bool {
	return c.conn.IsConnected(ctx)
}

// Close disconnects from the terminal and releases the client's resources.
func (c *Client) Close(ctx context.Context) error {
	err := c.conn.Disconnect(ctx)
	for _, closeFn := range c.closers {
		if cerr := closeFn(); cerr != nil && err == nil {
			err = cerr
		}
	}
	c.closers = nil
	return err
}
