package security

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// sensitiveFields contains field names that should be masked in logs and dumps.
var sensitiveFields = map[string]bool{
	"password":     true,
	"passwd":       true,
	"mt5_password": true,
	"investor":     true,
	"secret":       true,
	"token":        true,
	"api_key":      true,
	"credentials":  true,
}

// SafeLogger wraps zerolog.Logger to automatically mask sensitive data.
type SafeLogger struct {
	logger zerolog.Logger
}

// NewSafeLogger creates a new safe logger that masks sensitive data.
func NewSafeLogger(logger zerolog.Logger) *SafeLogger {
	return &SafeLogger{logger: logger}
}

// Debug starts a debug event.
func (sl *SafeLogger) Debug() *SafeEvent {
	return &SafeEvent{event: sl.logger.Debug()}
}

// Info starts an info event.
func (sl *SafeLogger) Info() *SafeEvent {
	return &SafeEvent{event: sl.logger.Info()}
}

// Warn starts a warning event.
func (sl *SafeLogger) Warn() *SafeEvent {
	return &SafeEvent{event: sl.logger.Warn()}
}

// Error starts an error event.
func (sl *SafeLogger) Error() *SafeEvent {
	return &SafeEvent{event: sl.logger.Error()}
}

// SafeEvent wraps zerolog.Event to mask sensitive data.
type SafeEvent struct {
	event *zerolog.Event
}

// Str adds a string field, masking if sensitive.
func (se *SafeEvent) Str(key, val string) *SafeEvent {
	if isSensitiveField(key) {
		se.event = se.event.Str(key, "****")
	} else {
		se.event = se.event.Str(key, MaskSensitive(val))
	}
	return se
}

// Int64 adds an int64 field.
func (se *SafeEvent) Int64(key string, val int64) *SafeEvent {
	se.event = se.event.Int64(key, val)
	return se
}

// Int adds an integer field.
func (se *SafeEvent) Int(key string, val int) *SafeEvent {
	se.event = se.event.Int(key, val)
	return se
}

// Bool adds a boolean field.
func (se *SafeEvent) Bool(key string, val bool) *SafeEvent {
	se.event = se.event.Bool(key, val)
	return se
}

// Err adds an error field, masking sensitive data in the message.
func (se *SafeEvent) Err(err error) *SafeEvent {
	switch {
	case err == nil:
	case ContainsSensitiveData(err.Error()):
		se.event = se.event.Err(fmt.Errorf("%s", MaskSensitive(err.Error())))
	default:
		se.event = se.event.Err(err)
	}
	return se
}

// Msg sends the event with a message.
func (se *SafeEvent) Msg(msg string) {
	se.event.Msg(MaskSensitive(msg))
}

func isSensitiveField(field string) bool {
	return sensitiveFields[strings.ToLower(field)]
}

// MaskSecrets returns a copy of data with sensitive values replaced.
// Nested maps, as produced by viper's AllSettings, are masked recursively.
func MaskSecrets(data map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{}, len(data))
	for k, v := range data {
		switch t := v.(type) {
		case map[string]interface{}:
			result[k] = MaskSecrets(t)
		case string:
			if isSensitiveField(k) {
				if t != "" {
					result[k] = "****"
				} else {
					result[k] = ""
				}
			} else {
				result[k] = MaskSensitive(t)
			}
		default:
			if isSensitiveField(k) {
				result[k] = "****"
			} else {
				result[k] = v
			}
		}
	}
	return result
}
