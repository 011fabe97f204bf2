// Package security provides the trading switch, secret masking and input checks.
package security

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	apperrors "mt5-bridge/internal/errors"
)

// OperationType represents the type of operation.
type OperationType string

const (
	// Read operations
	OpRead OperationType = "READ"

	// Write operations (blocked while trading is disabled)
	OpSendOrder      OperationType = "SEND_ORDER"
	OpPlaceOrder     OperationType = "PLACE_ORDER"
	OpModifyPosition OperationType = "MODIFY_POSITION"
	OpModifyOrder    OperationType = "MODIFY_ORDER"
	OpClosePosition  OperationType = "CLOSE_POSITION"
	OpCancelOrder    OperationType = "CANCEL_ORDER"
	OpModifyConfig   OperationType = "MODIFY_CONFIG"
)

var writeOperations = []OperationType{
	OpSendOrder,
	OpPlaceOrder,
	OpModifyPosition,
	OpModifyOrder,
	OpClosePosition,
	OpCancelOrder,
	OpModifyConfig,
}

var descriptions = map[OperationType]string{
	OpRead:           "Read account, market or history data",
	OpSendOrder:      "Send a raw trade request",
	OpPlaceOrder:     "Place a market or pending order",
	OpModifyPosition: "Modify stop loss or take profit of a position",
	OpModifyOrder:    "Modify a pending order",
	OpClosePosition:  "Close a position",
	OpCancelOrder:    "Cancel a pending order",
	OpModifyConfig:   "Modify configuration",
}

// ReadOnlyError is returned when a write operation is attempted while trading is disabled.
type ReadOnlyError struct {
	Operation OperationType
}

func (e *ReadOnlyError) Error() string {
	return fmt.Sprintf("operation %s blocked: trading is disabled", e.Operation)
}

// Is matches ErrReadOnlyMode.
func (e *ReadOnlyError) Is(target error) bool {
	return target == apperrors.ErrReadOnlyMode
}

// AccessController is the trading switch. While read-only, every write
// operation is refused before it reaches the terminal.
type AccessController struct {
	readOnly bool
	log      zerolog.Logger
	mu       sync.RWMutex
}

// NewAccessController creates a new access controller.
func NewAccessController(readOnly bool, logger zerolog.Logger) *AccessController {
	return &AccessController{
		readOnly: readOnly,
		log:      logger.With().Str("component", "access").Logger(),
	}
}

// IsReadOnly returns whether trading is disabled.
func (ac *AccessController) IsReadOnly() bool {
	ac.mu.RLock()
	defer ac.mu.RUnlock()
	return ac.readOnly
}

// SetReadOnly enables or disables the switch.
func (ac *AccessController) SetReadOnly(readOnly bool) {
	ac.mu.Lock()
	changed := ac.readOnly != readOnly
	ac.readOnly = readOnly
	ac.mu.Unlock()

	if changed {
		ac.log.Info().Bool("read_only", readOnly).Msg("Trading switch changed")
	}
}

// CheckPermission returns a *ReadOnlyError when op is a write operation
// and trading is disabled. A nil controller permits everything.
func (ac *AccessController) CheckPermission(ctx context.Context, op OperationType) error {
	if ac == nil || !IsWriteOperation(op) || !ac.IsReadOnly() {
		return nil
	}
	ac.log.Warn().
		Str("operation", string(op)).
		Msg("Operation blocked: trading is disabled")
	return &ReadOnlyError{Operation: op}
}

// MustCheckPermission panics if the operation is not permitted.
func (ac *AccessController) MustCheckPermission(ctx context.Context, op OperationType) {
	if err := ac.CheckPermission(ctx, op); err != nil {
		panic(err)
	}
}

// IsWriteOperation reports whether op changes account state.
func IsWriteOperation(op OperationType) bool {
	for _, w := range writeOperations {
		if w == op {
			return true
		}
	}
	return false
}

// WriteOperations returns the operations blocked while trading is disabled.
func WriteOperations() []OperationType {
	out := make([]OperationType, len(writeOperations))
	copy(out, writeOperations)
	return out
}

// OperationDescription returns a human-readable description of an operation.
func OperationDescription(op OperationType) string {
	if d, ok := descriptions[op]; ok {
		return d
	}
	return string(op)
}
