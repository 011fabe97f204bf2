package tools

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	apperrors "mt5-bridge/internal/errors"
	"mt5-bridge/internal/market"
	"mt5-bridge/internal/models"
)

// Params wraps decoded tool parameters. JSON numbers arrive as float64,
// query strings and CLI flags as strings; both are accepted.
type Params map[string]interface{}

func missing(v interface{}) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

// Has reports whether key carries a value.
func (p Params) Has(key string) bool {
	return !missing(p[key])
}

// String returns key as text. Numbers are formatted without exponent.
func (p Params) String(key string) string {
	switch v := p[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}

// Float returns key as a number; a missing key is zero.
func (p Params) Float(key string) (float64, error) {
	if !p.Has(key) {
		return 0, nil
	}
	return toFloat(key, p[key])
}

// OptFloat returns key as a number, or nil when it is missing.
func (p Params) OptFloat(key string) (*float64, error) {
	if !p.Has(key) {
		return nil, nil
	}
	v, err := toFloat(key, p[key])
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Int returns key as an integer; a missing key is zero.
func (p Params) Int(key string) (int64, error) {
	if !p.Has(key) {
		return 0, nil
	}
	return toInt(key, p[key])
}

// Key returns key as an enumeration reference.
func (p Params) Key(key string) (models.Key, error) {
	v := p[key]
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if n, err := strconv.Atoi(s); err == nil {
			return models.CodeKey(n), nil
		}
		v = s
	}
	k, err := models.KeyFromAny(v)
	if err != nil {
		return models.Key{}, apperrors.NewValidationError(key, v, err.Error())
	}
	return k, nil
}

// Time returns key parsed as a date, or the zero time when it is missing.
func (p Params) Time(key string) (time.Time, error) {
	t, err := market.ParseDate(p.String(key))
	if err != nil {
		return time.Time{}, apperrors.NewValidationError(key, p.String(key), "expected YYYY-MM-DD, YYYY-MM-DD HH:MM or ISO 8601")
	}
	return t, nil
}

func toFloat(key string, v interface{}) (float64, error) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return 0, apperrors.NewValidationError(key, v, "must be a number")
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, apperrors.NewValidationError(key, v, "must be a number")
		}
		f = n
	default:
		return 0, apperrors.NewValidationError(key, v, "must be a number")
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, apperrors.NewValidationError(key, v, "must be a finite number")
	}
	return f, nil
}

func toInt(key string, v interface{}) (int64, error) {
	switch t := v.(type) {
	case int:
		return int64(t), nil
	case int64:
		return t, nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, apperrors.NewValidationError(key, v, "must be an integer")
		}
		return n, nil
	}
	f, err := toFloat(key, v)
	if err != nil || f != math.Trunc(f) {
		return 0, apperrors.NewValidationError(key, v, "must be an integer")
	}
	return int64(f), nil
}

func toBool(key string, v interface{}) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		if err == nil {
			return b, nil
		}
	}
	return false, apperrors.NewValidationError(key, v, "must be true or false")
}
