// Package errors provides custom error types for terminal and domain errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrNotConnected      = errors.New("not connected to terminal")
	ErrConnection        = errors.New("connection error")
	ErrInitialization    = errors.New("terminal initialization failed")
	ErrLogin             = errors.New("terminal login failed")
	ErrDisconnection     = errors.New("terminal disconnection failed")
	ErrMarket            = errors.New("market error")
	ErrSymbolNotFound    = errors.New("symbol not found")
	ErrInvalidTimeframe  = errors.New("invalid timeframe")
	ErrAccountInfo       = errors.New("account info unavailable")
	ErrMarginLevel       = errors.New("margin level unavailable")
	ErrOrdersHistory     = errors.New("orders history unavailable")
	ErrDealsHistory      = errors.New("deals history unavailable")
	ErrMarketData        = errors.New("market data unavailable")
	ErrCalculation       = errors.New("calculation failed")
	ErrConfigInvalid     = errors.New("invalid configuration")
	ErrDatabaseError     = errors.New("database error")
	ErrReadOnlyMode      = errors.New("operation blocked: trading is disabled")
	ErrInputValidation   = errors.New("input validation failed")
	ErrTerminalCall      = errors.New("terminal call failed")
)

// Terminal error codes reported through last_error.
const (
	CodeOK                  = 1
	CodeFail                = -1
	CodeInvalidParams       = -2
	CodeNoMemory            = -3
	CodeNotFound            = -4
	CodeInvalidVersion      = -5
	CodeAuthFailed          = -6
	CodeUnsupported         = -7
	CodeAutoTradingOff      = -8
	CodeInternalFail        = -10000
	CodeInternalFailSend    = -10001
	CodeInternalFailRecv    = -10002
	CodeInternalFailInit    = -10003
	CodeInternalFailConn    = -10004
	CodeInternalFailTimeout = -10005
)

// TerminalError is the (code, message) pair the terminal reports for a failed call.
type TerminalError struct {
	Code    int
	Message string
}

func (e *TerminalError) Error() string {
	return fmt.Sprintf("terminal error %d: %s", e.Code, e.Message)
}

// Is matches ErrTerminalCall, and ErrNotConnected for IPC failures.
func (e *TerminalError) Is(target error) bool {
	if target == ErrTerminalCall {
		return true
	}
	return target == ErrNotConnected && e.Connectivity()
}

// Connectivity reports whether the code means the terminal link itself is gone.
func (e *TerminalError) Connectivity() bool {
	switch e.Code {
	case CodeInternalFailInit, CodeInternalFailConn, CodeInternalFailTimeout:
		return true
	}
	return false
}

// NewTerminalError creates a new TerminalError.
func NewTerminalError(code int, message string) *TerminalError {
	return &TerminalError{Code: code, Message: message}
}

// ConnectionError wraps failures of the connection lifecycle.
// Stage is one of "initialize", "login", "disconnect" or "connect".
type ConnectionError struct {
	Stage string
	Err   error
}

func (e *ConnectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("connection error [%s]: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("connection error [%s]", e.Stage)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

func (e *ConnectionError) Is(target error) bool {
	return target == ErrConnection
}

// NewConnectionError creates a new ConnectionError.
func NewConnectionError(stage string, err error) *ConnectionError {
	return &ConnectionError{Stage: stage, Err: err}
}

// InitializationError is raised when the terminal link cannot be initialized.
type InitializationError struct {
	Message string
	Code    int
}

func (e *InitializationError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s (error code: %d)", e.Message, e.Code)
	}
	return e.Message
}

func (e *InitializationError) Is(target error) bool {
	return target == ErrInitialization
}

// LoginError is raised when the account login keeps failing.
type LoginError struct {
	Message string
	Code    int
}

func (e *LoginError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s (error code: %d)", e.Message, e.Code)
	}
	return e.Message
}

func (e *LoginError) Is(target error) bool {
	return target == ErrLogin
}

// DisconnectionError is raised when shutdown fails.
type DisconnectionError struct {
	Message string
	Code    int
}

func (e *DisconnectionError) Error() string {
	return fmt.Sprintf("%s (error code: %d)", e.Message, e.Code)
}

func (e *DisconnectionError) Is(target error) bool {
	return target == ErrDisconnection
}

// MarketError represents a failure to resolve or subscribe a symbol.
type MarketError struct {
	Symbol  string
	Message string
	Err     error
}

func (e *MarketError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("market error [%s]: %s: %v", e.Symbol, e.Message, e.Err)
	}
	return fmt.Sprintf("market error [%s]: %s", e.Symbol, e.Message)
}

func (e *MarketError) Unwrap() error {
	return e.Err
}

func (e *MarketError) Is(target error) bool {
	return target == ErrMarket
}

// NewMarketError creates a new MarketError.
func NewMarketError(symbol, message string, err error) *MarketError {
	return &MarketError{
		Symbol:  symbol,
		Message: message,
		Err:     err,
	}
}

// NewSymbolNotFoundError creates a MarketError that also matches ErrSymbolNotFound.
func NewSymbolNotFoundError(symbol string) *MarketError {
	return NewMarketError(symbol, "symbol not found", ErrSymbolNotFound)
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInputValidation
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// DataError represents a failure to read account, history or market data.
// Err is normally one of the data sentinels (ErrAccountInfo, ErrOrdersHistory, ...).
type DataError struct {
	DataType string
	Symbol   string
	Message  string
	Err      error
}

func (e *DataError) Error() string {
	subject := e.DataType
	if e.Symbol != "" {
		subject += " " + e.Symbol
	}
	if e.Err != nil {
		return fmt.Sprintf("data error [%s]: %s: %v", subject, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s]: %s", subject, e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a new DataError.
func NewDataError(dataType, symbol, message string, err error) *DataError {
	return &DataError{
		DataType: dataType,
		Symbol:   symbol,
		Message:  message,
		Err:      err,
	}
}

// NewInvalidTimeframeError reports a timeframe name outside the known set.
func NewInvalidTimeframeError(timeframe string) *DataError {
	return NewDataError("timeframe", "", fmt.Sprintf("Invalid timeframe: %s", timeframe), ErrInvalidTimeframe)
}

// NewMarketDataError reports missing or unreadable bars or ticks.
func NewMarketDataError(symbol, message string) *DataError {
	return NewDataError("market data", symbol, message, ErrMarketData)
}

// LinkLost returns a ConnectionError for stage when err means the terminal
// link is gone, and nil for any other failure.
func LinkLost(stage string, err error) error {
	if err == nil {
		return nil
	}
	var ce *ConnectionError
	if errors.As(err, &ce) {
		return err
	}
	if errors.Is(err, ErrNotConnected) {
		return NewConnectionError(stage, err)
	}
	return nil
}

// TerminalCode returns the code of the first TerminalError in err's chain, or CodeFail.
func TerminalCode(err error) int {
	var te *TerminalError
	if errors.As(err, &te) {
		return te.Code
	}
	return CodeFail
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New returns an error that formats as the given text.
func New(text string) error {
	return errors.New(text)
}

// SecurityError represents a security-related error.
type SecurityError struct {
	Operation string
	Reason    string
	Err       error
}

func (e *SecurityError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("security error [%s]: %s: %v", e.Operation, e.Reason, e.Err)
	}
	return fmt.Sprintf("security error [%s]: %s", e.Operation, e.Reason)
}

func (e *SecurityError) Unwrap() error {
	return e.Err
}

// NewSecurityError creates a new SecurityError.
func NewSecurityError(operation, reason string, err error) *SecurityError {
	return &SecurityError{
		Operation: operation,
		Reason:    reason,
		Err:       err,
	}
}
