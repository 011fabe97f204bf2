package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	apperrors "mt5-bridge/internal/errors"
)

// Registry is a closed enumeration with bidirectional name/code lookup.
// Lookups never fail: unknown values fall back to a default.
type Registry[T ~int] struct {
	kind       string
	byCode     map[T]string
	byName     map[string]T
	foldCase   bool
	codesOrder []T
}

func newRegistry[T ~int](kind string, entries map[T]string, foldCase bool) *Registry[T] {
	r := &Registry[T]{
		kind:     kind,
		byCode:   make(map[T]string, len(entries)),
		byName:   make(map[string]T, len(entries)),
		foldCase: foldCase,
	}
	for code, name := range entries {
		r.byCode[code] = name
		r.byName[r.key(name)] = code
		r.codesOrder = append(r.codesOrder, code)
	}
	sort.Slice(r.codesOrder, func(i, j int) bool { return r.codesOrder[i] < r.codesOrder[j] })
	return r
}

func (r *Registry[T]) key(name string) string {
	name = strings.TrimSpace(name)
	if r.foldCase {
		return strings.ToUpper(name)
	}
	return name
}

// Kind returns the enumeration name, e.g. "order type".
func (r *Registry[T]) Kind() string {
	return r.kind
}

// ToString returns the member name, or UNKNOWN_<code> for codes outside the set.
func (r *Registry[T]) ToString(code T) string {
	return r.ToStringOr(code, fmt.Sprintf("UNKNOWN_%d", int(code)))
}

// ToStringOr returns the member name, or def for codes outside the set.
func (r *Registry[T]) ToStringOr(code T, def string) string {
	if name, ok := r.byCode[code]; ok {
		return name
	}
	return def
}

// ToCode returns the member code for name, or def if the name is unknown.
func (r *Registry[T]) ToCode(name string, def T) T {
	if code, ok := r.byName[r.key(name)]; ok {
		return code
	}
	return def
}

// Lookup returns the member code for name.
func (r *Registry[T]) Lookup(name string) (T, bool) {
	code, ok := r.byName[r.key(name)]
	return code, ok
}

// Exists reports whether key names a member. Key may be the enum itself,
// an integer code, a name string, or a Key.
func (r *Registry[T]) Exists(key interface{}) bool {
	switch k := key.(type) {
	case T:
		_, ok := r.byCode[k]
		return ok
	case int:
		_, ok := r.byCode[T(k)]
		return ok
	case int64:
		_, ok := r.byCode[T(k)]
		return ok
	case string:
		_, ok := r.byName[r.key(k)]
		return ok
	case Key:
		_, err := r.Normalize(k)
		return err == nil
	default:
		return false
	}
}

// Codes returns every member code in ascending order.
func (r *Registry[T]) Codes() []T {
	out := make([]T, len(r.codesOrder))
	copy(out, r.codesOrder)
	return out
}

// Names returns every member name in code order.
func (r *Registry[T]) Names() []string {
	out := make([]string, 0, len(r.codesOrder))
	for _, c := range r.codesOrder {
		out = append(out, r.byCode[c])
	}
	return out
}

// Normalize converts a tagged key to the canonical member.
func (r *Registry[T]) Normalize(k Key) (T, error) {
	var zero T
	switch k.kind {
	case keyCode, keyTyped:
		code := T(k.code)
		if _, ok := r.byCode[code]; ok {
			return code, nil
		}
		return zero, apperrors.NewValidationError(r.kind, k.code, "unknown code")
	case keyName:
		if code, ok := r.byName[r.key(k.name)]; ok {
			return code, nil
		}
		// Numeric strings are codes sent as text.
		if n, err := strconv.Atoi(strings.TrimSpace(k.name)); err == nil {
			if _, ok := r.byCode[T(n)]; ok {
				return T(n), nil
			}
		}
		return zero, apperrors.NewValidationError(r.kind, k.name, "unknown name")
	default:
		return zero, apperrors.NewValidationError(r.kind, nil, "empty key")
	}
}

// NormalizeOr converts k, returning def when the key is empty or unknown.
func (r *Registry[T]) NormalizeOr(k Key, def T) T {
	v, err := r.Normalize(k)
	if err != nil {
		return def
	}
	return v
}
