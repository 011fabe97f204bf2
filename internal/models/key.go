package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

type keyKind int

const (
	keyNone keyKind = iota
	keyCode
	keyName
	keyTyped
)

// Key is a loosely typed reference to an enumeration member: a raw code,
// a raw name, or an already typed value. Registry.Normalize turns it into
// the canonical member once, at the entry point.
type Key struct {
	kind keyKind
	code int
	name string
}

// CodeKey references a member by its numeric code.
func CodeKey(code int) Key {
	return Key{kind: keyCode, code: code}
}

// NameKey references a member by name.
func NameKey(name string) Key {
	return Key{kind: keyName, name: name}
}

// TypedKey references an already typed member.
func TypedKey[T ~int](v T) Key {
	return Key{kind: keyTyped, code: int(v)}
}

// IsZero reports whether the key is unset.
func (k Key) IsZero() bool {
	return k.kind == keyNone
}

func (k Key) String() string {
	switch k.kind {
	case keyCode, keyTyped:
		return strconv.Itoa(k.code)
	case keyName:
		return k.name
	default:
		return ""
	}
}

// KeyFromAny builds a key from a decoded JSON value (number or string).
func KeyFromAny(v interface{}) (Key, error) {
	switch t := v.(type) {
	case nil:
		return Key{}, nil
	case Key:
		return t, nil
	case string:
		if t == "" {
			return Key{}, nil
		}
		return NameKey(t), nil
	case int:
		return CodeKey(t), nil
	case int64:
		return CodeKey(int(t)), nil
	case float64:
		if t != math.Trunc(t) {
			return Key{}, fmt.Errorf("non-integer code %v", t)
		}
		return CodeKey(int(t)), nil
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return Key{}, err
		}
		return CodeKey(int(n)), nil
	default:
		return Key{}, fmt.Errorf("unsupported key type %T", v)
	}
}

// UnmarshalJSON accepts a number or a string.
func (k *Key) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	key, err := KeyFromAny(raw)
	if err != nil {
		return err
	}
	*k = key
	return nil
}

// MarshalJSON writes codes as numbers and names as strings.
func (k Key) MarshalJSON() ([]byte, error) {
	switch k.kind {
	case keyCode, keyTyped:
		return json.Marshal(k.code)
	case keyName:
		return json.Marshal(k.name)
	default:
		return []byte("null"), nil
	}
}
