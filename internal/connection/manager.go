// Package connection manages the lifecycle of the terminal link: cooldown,
// initialization and login with retries, shutdown and status.
package connection

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	apperrors "mt5-bridge/internal/errors"
	"mt5-bridge/internal/logging"
	"mt5-bridge/internal/models"
	"mt5-bridge/internal/security"
	"mt5-bridge/internal/terminal"
	"mt5-bridge/pkg/utils"
)

// State is the connection state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Config holds connection settings.
type Config struct {
	Path string
	// Login is kept as text; it must parse as an integer account number.
	Login         string
	Password      string
	Server        string
	Timeout       time.Duration
	Portable      bool
	MaxRetries    int
	BackoffFactor float64
	CooldownTime  time.Duration
}

// DefaultConfig returns the default connection settings.
func DefaultConfig() Config {
	return Config{
		Timeout:       60 * time.Second,
		MaxRetries:    3,
		BackoffFactor: 1.5,
		CooldownTime:  2 * time.Second,
	}
}

// Manager owns the terminal link. Connect and Disconnect are serialized.
type Manager struct {
	cfg    Config
	term   terminal.Terminal
	log    zerolog.Logger
	finder *PathFinder

	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(max time.Duration) time.Duration

	mu          sync.Mutex
	state       State
	connected   bool
	lastAttempt time.Time
	path        string
	login       int64
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) { m.log = logger }
}

// WithClock replaces the wall clock and sleep function.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(m *Manager) {
		m.now = now
		m.sleep = sleep
	}
}

// WithJitter replaces the retry jitter source.
func WithJitter(jitter func(max time.Duration) time.Duration) Option {
	return func(m *Manager) { m.jitter = jitter }
}

// WithPathFinder replaces the terminal path discovery.
func WithPathFinder(f *PathFinder) Option {
	return func(m *Manager) { m.finder = f }
}

// NewManager creates a connection manager for term.
func NewManager(term terminal.Terminal, cfg Config, opts ...Option) *Manager {
	def := DefaultConfig()
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.BackoffFactor <= 0 {
		cfg.BackoffFactor = def.BackoffFactor
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.CooldownTime < 0 {
		cfg.CooldownTime = def.CooldownTime
	}

	m := &Manager{
		cfg:    cfg,
		term:   term,
		log:    zerolog.Nop(),
		now:    time.Now,
		sleep:  utils.SleepContext,
		jitter: utils.RandomJitter,
		path:   cfg.Path,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.finder == nil {
		m.finder = NewPathFinder()
	}
	return m
}

// Terminal returns the managed terminal.
func (m *Manager) Terminal() terminal.Terminal {
	return m.term
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Path returns the terminal path used by the last initialization.
func (m *Manager) Path() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.path
}

// Connect initializes the terminal and logs in. Failures are returned as
// *errors.ConnectionError wrapping an InitializationError or LoginError.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.log.Debug().Msg("Attempting to connect to terminal")
	m.state = StateConnecting

	if err := m.initialize(ctx); err != nil {
		m.connected = false
		m.state = StateDisconnected
		return apperrors.NewConnectionError("initialize", err)
	}
	if err := m.doLogin(ctx); err != nil {
		m.connected = false
		m.state = StateDisconnected
		return apperrors.NewConnectionError("login", err)
	}

	m.connected = true
	m.state = StateConnected
	logging.LogConnection(m.log, "connected", 0, nil)
	return nil
}

// ensureCooldown waits until CooldownTime has passed since the previous attempt.
func (m *Manager) ensureCooldown(ctx context.Context) error {
	if !m.lastAttempt.IsZero() {
		elapsed := m.now().Sub(m.lastAttempt)
		if elapsed < m.cfg.CooldownTime {
			wait := m.cfg.CooldownTime - elapsed
			m.log.Debug().Dur("cooldown", wait).Msg("Applying connection cooldown")
			if err := m.sleep(ctx, wait); err != nil {
				return err
			}
		}
	}
	m.lastAttempt = m.now()
	return nil
}

func (m *Manager) retryConfig(authCooldown bool) utils.RetryConfig {
	cfg := utils.DefaultRetryConfig()
	cfg.MaxAttempts = m.cfg.MaxRetries
	cfg.BackoffFactor = m.cfg.BackoffFactor
	cfg.Sleep = m.sleep
	cfg.Jitter = m.jitter
	if authCooldown {
		cfg.Delay = func(_ int, err error) (time.Duration, bool) {
			var te *apperrors.TerminalError
			if apperrors.As(err, &te) && te.Code == apperrors.CodeAuthFailed {
				return 2 * m.cfg.CooldownTime, true
			}
			return 0, false
		}
	}
	return cfg
}

// lastError prefers the code carried by err and falls back to last_error.
func (m *Manager) lastError(ctx context.Context, err error) (int, string) {
	var te *apperrors.TerminalError
	if apperrors.As(err, &te) {
		return te.Code, te.Message
	}
	return m.term.LastError(ctx)
}

func (m *Manager) parseLogin() error {
	if m.cfg.Login == "" {
		m.login = 0
		return nil
	}
	login, err := strconv.ParseInt(strings.TrimSpace(m.cfg.Login), 10, 64)
	if err != nil {
		return &apperrors.InitializationError{
			Message: fmt.Sprintf("Invalid login format: %s. Must be an integer.", m.cfg.Login),
		}
	}
	m.login = login
	return nil
}

func (m *Manager) initialize(ctx context.Context) error {
	if err := m.ensureCooldown(ctx); err != nil {
		return err
	}

	if info, err := m.term.TerminalInfo(ctx); err == nil && info != nil {
		m.log.Debug().Msg("Terminal is already initialized")
		return nil
	}

	if m.path == "" {
		m.path = m.finder.Find()
		if m.path == "" {
			m.log.Debug().Msg("Could not find terminal path, trying without path")
		} else {
			m.log.Debug().Str("path", m.path).Msg("Found terminal path")
		}
	}

	if err := m.parseLogin(); err != nil {
		return err
	}

	params := terminal.InitParams{
		Path:     m.path,
		Login:    m.login,
		Password: m.cfg.Password,
		Server:   m.cfg.Server,
		Timeout:  m.cfg.Timeout,
		Portable: m.cfg.Portable,
	}

	err := utils.Retry(ctx, m.retryConfig(true), func(attempt int) error {
		err := m.term.Initialize(ctx, params)
		if err != nil {
			logging.LogConnection(m.log, "initialize", attempt+1, err)
		}
		return err
	})
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	code, msg := m.lastError(ctx, err)
	return &apperrors.InitializationError{
		Message: fmt.Sprintf("Failed to initialize MetaTrader 5 terminal: %s", msg),
		Code:    code,
	}
}

func (m *Manager) doLogin(ctx context.Context) error {
	if info, err := m.term.AccountInfo(ctx); err == nil && info != nil {
		m.log.Debug().Msg("Already logged in")
		return nil
	}

	if m.cfg.Login == "" || m.cfg.Password == "" || m.cfg.Server == "" {
		if info, err := m.term.TerminalInfo(ctx); err == nil && info != nil {
			m.log.Debug().Msg("No login credentials provided, but terminal is initialized")
			return nil
		}
		return &apperrors.LoginError{Message: "Login credentials not provided"}
	}
	if err := m.parseLogin(); err != nil {
		return err
	}

	params := terminal.LoginParams{
		Login:    m.login,
		Password: m.cfg.Password,
		Server:   m.cfg.Server,
		Timeout:  m.cfg.Timeout,
	}

	safe := security.NewSafeLogger(m.log)
	safe.Info().
		Int64("login", m.login).
		Str("server", m.cfg.Server).
		Str("password", m.cfg.Password).
		Msg("Logging in to trade server")

	err := utils.Retry(ctx, m.retryConfig(false), func(attempt int) error {
		err := m.term.Login(ctx, params)
		if err != nil {
			logging.LogConnection(m.log, "login", attempt+1, err)
		}
		return err
	})
	if err == nil {
		return nil
	}
	safe.Error().Int("attempts", m.cfg.MaxRetries).Err(err).Msg("Login failed")
	if ctx.Err() != nil {
		return ctx.Err()
	}

	code, msg := m.lastError(ctx, err)
	return &apperrors.LoginError{
		Message: fmt.Sprintf("Failed to login to MetaTrader 5 terminal: %s", msg),
		Code:    code,
	}
}

// Disconnect shuts the terminal down. It is a no-op when not connected.
func (m *Manager) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		m.log.Debug().Msg("Already disconnected")
		return nil
	}

	err := m.term.Shutdown(ctx)
	if err == nil || terminal.IsNotInitialized(err) || strings.Contains(strings.ToLower(err.Error()), "not initialized") {
		m.connected = false
		m.state = StateDisconnected
		logging.LogConnection(m.log, "disconnected", 0, nil)
		return nil
	}

	code, msg := m.lastError(ctx, err)
	return &apperrors.DisconnectionError{
		Message: fmt.Sprintf("Failed to disconnect from MetaTrader 5 terminal: %s", msg),
		Code:    code,
	}
}

// IsConnected reports whether the terminal is up and linked to its server.
func (m *Manager) IsConnected(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isConnectedLocked(ctx)
}

func (m *Manager) isConnectedLocked(ctx context.Context) bool {
	if !m.connected {
		return false
	}
	info, err := m.term.TerminalInfo(ctx)
	if err != nil {
		m.log.Warn().Err(err).Msg("Error checking connection status")
		return false
	}
	return info != nil && info.Connected
}

// Require returns a ConnectionError unless the manager is connected.
func (m *Manager) Require(ctx context.Context) error {
	if !m.IsConnected(ctx) {
		return apperrors.NewConnectionError("connect", apperrors.ErrNotConnected)
	}
	return nil
}

// TerminalInfo returns the terminal description.
func (m *Manager) TerminalInfo(ctx context.Context) (*models.TerminalInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.isConnectedLocked(ctx) {
		return nil, apperrors.NewConnectionError("connect", apperrors.ErrNotConnected)
	}
	info, err := m.term.TerminalInfo(ctx)
	if err != nil {
		return nil, apperrors.NewConnectionError("terminal_info", err)
	}
	return info, nil
}

// Version returns (major, minor, build, revision). Major, minor and revision
// come from the last word of the terminal name; major defaults to 5.
func (m *Manager) Version(ctx context.Context) (models.Version, error) {
	info, err := m.TerminalInfo(ctx)
	if err != nil {
		return models.Version{}, err
	}
	return ParseVersion(info.Name, info.Build), nil
}

// ParseVersion extracts a version from a terminal name like "MetaTrader 5.0.36".
func ParseVersion(name string, build int) models.Version {
	v := models.Version{Build: build}

	fields := strings.Fields(name)
	if len(fields) > 1 {
		parts := strings.Split(fields[len(fields)-1], ".")
		targets := []*int{&v.Major, &v.Minor, &v.Revision}
		for i := 0; i < len(parts) && i < len(targets); i++ {
			if n, err := strconv.Atoi(parts[i]); err == nil {
				*targets[i] = n
			}
		}
	}
	if v.Major == 0 {
		v.Major = 5
	}
	return v
}
