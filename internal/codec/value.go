package codec

import (
	"fmt"
	"reflect"
	"slices"
	"unicode/utf16"
)

// Value is a sealed interface representing attribute values.
// Only Null, String, Int, Float, Bool, List, and Map implement it.
type Value interface {
	value() // Sealed - only these types implement it
}

// Null represents an explicit null.
type Null struct{}

func (Null) value() {}

// String is a string value.
type String string

func (String) value() {}

// Int is an integer value. Always int64.
type Int int64

func (Int) value() {}

// Float is a floating point value. Kept distinct from Int so that 1 and
// 1.0 survive a round trip with their original kind.
type Float float64

func (Float) value() {}

// Bool is a boolean value.
type Bool bool

func (Bool) value() {}

// List is an ordered sequence of values.
type List []Value

func (List) value() {}

// Map is a mapping from normalized string keys to values. It is also the
// container type for a record's attributes.
// Use SortedKeys() for deterministic iteration.
type Map map[string]Value

func (Map) value() {}

// SortedKeys returns keys ordered by UTF-16 code units, matching the order
// used by the canonical encoding.
func (m Map) SortedKeys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeys)
	return keys
}

// Clone returns a deep copy of m.
func (m Map) Clone() Map {
	if m == nil {
		return nil
	}
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v Value) Value {
	switch val := v.(type) {
	case List:
		out := make(List, len(val))
		for i, e := range val {
			out[i] = cloneValue(e)
		}
		return out
	case Map:
		return val.Clone()
	default:
		return v
	}
}

// Equal reports whether two values are deeply equal. A nil Map and an
// empty Map are equal, as are a nil List and an empty List.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case Map:
		bv, ok := b.(Map)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			w, ok := bv[k]
			if !ok || !Equal(v, w) {
				return false
			}
		}
		return true
	case List:
		bv, ok := b.(List)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return reflect.DeepEqual(a, b)
	}
}

// ToAny converts a Value into plain Go values (map[string]any, []any,
// string, int64, float64, bool, nil), suitable for encoding/json.
func ToAny(v Value) any {
	switch val := v.(type) {
	case nil, Null:
		return nil
	case String:
		return string(val)
	case Int:
		return int64(val)
	case Float:
		return float64(val)
	case Bool:
		return bool(val)
	case List:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = ToAny(e)
		}
		return out
	case Map:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = ToAny(e)
		}
		return out
	default:
		panic(fmt.Sprintf("codec: unknown Value type %T", v))
	}
}

// compareKeys compares strings using UTF-16 code unit ordering (RFC 8785).
// Go's default string comparison uses UTF-8 which produces a different order
// for characters outside the BMP.
func compareKeys(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}
