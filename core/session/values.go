package session

import (
	"slices"
	"strconv"
)

// Kind identifies the scalar type held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindInt
	KindString
	KindBool
)

// String returns the wire tag for the kind.
func (k Kind) String() string {
	switch k {
	case KindInt:
		return "i"
	case KindString:
		return "s"
	case KindBool:
		return "b"
	default:
		return "N"
	}
}

// Value is a single session scalar: integer, string, boolean or null.
// The zero Value is null.
type Value struct {
	kind Kind
	i    int64
	s    string
}

// Int returns an integer value.
func Int(v int64) Value { return Value{kind: KindInt, i: v} }

// String returns a string value.
func String(v string) Value { return Value{kind: KindString, s: v} }

// Bool returns a boolean value.
func Bool(v bool) Value {
	if v {
		return Value{kind: KindBool, i: 1}
	}
	return Value{kind: KindBool}
}

// Null returns the null value.
func Null() Value { return Value{} }

// Kind returns the scalar type of the value.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Int returns the integer payload and whether the value is an integer.
func (v Value) Int() (int64, bool) {
	return v.i, v.kind == KindInt
}

// Str returns the string payload and whether the value is a string.
func (v Value) Str() (string, bool) {
	return v.s, v.kind == KindString
}

// Bool returns the boolean payload and whether the value is a boolean.
func (v Value) Bool() (bool, bool) {
	return v.i != 0, v.kind == KindBool
}

// String renders the value for logs and debugging.
func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindString:
		return v.s
	case KindBool:
		return strconv.FormatBool(v.i != 0)
	default:
		return "null"
	}
}

// Values is an ordered string-keyed map of scalars.
// Keys keep their first insertion position; Set on an existing key
// replaces the value in place. The zero Values is ready to use.
type Values struct {
	keys []string
	m    map[string]Value
}

// NewValues returns an empty mapping with room for n entries.
func NewValues(n int) Values {
	return Values{
		keys: make([]string, 0, n),
		m:    make(map[string]Value, n),
	}
}

// Set stores v under key.
func (vs *Values) Set(key string, v Value) {
	if vs.m == nil {
		vs.m = make(map[string]Value)
	}
	if _, ok := vs.m[key]; !ok {
		vs.keys = append(vs.keys, key)
	}
	vs.m[key] = v
}

// Get returns the value stored under key.
func (vs Values) Get(key string) (Value, bool) {
	v, ok := vs.m[key]
	return v, ok
}

// Has reports whether key is present.
func (vs Values) Has(key string) bool {
	_, ok := vs.m[key]
	return ok
}

// Int returns the integer stored under key.
func (vs Values) Int(key string) (int64, bool) {
	v, ok := vs.m[key]
	if !ok {
		return 0, false
	}
	return v.Int()
}

// Str returns the string stored under key.
func (vs Values) Str(key string) (string, bool) {
	v, ok := vs.m[key]
	if !ok {
		return "", false
	}
	return v.Str()
}

// Delete removes key.
func (vs *Values) Delete(key string) {
	if _, ok := vs.m[key]; !ok {
		return
	}
	delete(vs.m, key)
	vs.keys = slices.DeleteFunc(vs.keys, func(k string) bool { return k == key })
}

// Keys returns the keys in insertion order.
func (vs Values) Keys() []string {
	return slices.Clone(vs.keys)
}

// Len returns the number of entries.
func (vs Values) Len() int { return len(vs.keys) }

// Clear removes every entry.
func (vs *Values) Clear() {
	vs.keys = vs.keys[:0]
	clear(vs.m)
}

// Clone returns a deep copy.
func (vs Values) Clone() Values {
	out := NewValues(len(vs.keys))
	for _, k := range vs.keys {
		out.Set(k, vs.m[k])
	}
	return out
}

// Merge copies every entry of other into vs, in other's order.
func (vs *Values) Merge(other Values) {
	for _, k := range other.keys {
		vs.Set(k, other.m[k])
	}
}

// Equal reports whether both mappings hold the same entries in the same order.
func (vs Values) Equal(other Values) bool {
	if !slices.Equal(vs.keys, other.keys) {
		return false
	}
	for _, k := range vs.keys {
		if vs.m[k] != other.m[k] {
			return false
		}
	}
	return true
}

// All iterates over the entries in insertion order.
func (vs Values) All(yield func(string, Value) bool) {
	for _, k := range vs.keys {
		if !yield(k, vs.m[k]) {
			return
		}
	}
}
