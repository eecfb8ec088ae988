package codec

import (
	"encoding"
	"fmt"
	"math"
	"reflect"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

var valueType = reflect.TypeOf((*Value)(nil)).Elem()

// NormalizeKey converts a caller-supplied key to its canonical string form.
// Accepted keys: any type whose underlying kind is string (including typed
// string constants), fmt.Stringer, and encoding.TextMarshaler.
// The result is NFC normalized. Keys that are not valid UTF-8 are rejected.
func NormalizeKey(k any) (string, error) {
	if k == nil {
		return "", fmt.Errorf("normalize key: nil key")
	}
	switch key := k.(type) {
	case string:
		return nfc(key)
	case encoding.TextMarshaler:
		text, err := key.MarshalText()
		if err != nil {
			return "", fmt.Errorf("normalize key: %w", err)
		}
		return nfc(string(text))
	case fmt.Stringer:
		return nfc(key.String())
	}
	rv := reflect.ValueOf(k)
	if rv.Kind() == reflect.String {
		return nfc(rv.String())
	}
	return "", fmt.Errorf("normalize key: unsupported key type %T", k)
}

func nfc(key string) (string, error) {
	if !utf8.ValidString(key) {
		return "", fmt.Errorf("normalize key: %q is not valid UTF-8", key)
	}
	return norm.NFC.String(key), nil
}

// normalizeKeys returns m with every key in NFC form. Two keys that
// normalize to the same string are an error.
func normalizeKeys(m Map) (Map, error) {
	out := make(Map, len(m))
	for k, v := range m {
		nk, err := nfc(k)
		if err != nil {
			return nil, err
		}
		if _, dup := out[nk]; dup {
			return nil, fmt.Errorf("keys collide after normalization: %q", nk)
		}
		out[nk] = v
	}
	return out, nil
}

func checkString(s string) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("string %q is not valid UTF-8", s)
	}
	return nil
}

// Normalize converts a caller-supplied attributes structure into a Map.
// fields may be a Map, any Go map with normalizable keys, or a struct
// (encoded through its yaml tags). A nil input yields an empty Map.
func Normalize(fields any) (Map, error) {
	if fields == nil {
		return Map{}, nil
	}
	v, err := FromAny(fields)
	if err != nil {
		return nil, err
	}
	switch m := v.(type) {
	case Map:
		return m, nil
	case Null:
		return Map{}, nil
	default:
		return nil, fmt.Errorf("normalize: attributes must be a mapping, got %T", fields)
	}
}

// FromAny converts an arbitrary Go value into a Value.
func FromAny(v any) (Value, error) {
	if v == nil {
		return Null{}, nil
	}
	if val, ok := v.(Value); ok {
		return normalizeValue(val)
	}
	return fromReflect(reflect.ValueOf(v))
}

// normalizeValue re-normalizes keys of caller-built Maps and checks their
// strings.
func normalizeValue(v Value) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case String:
		if err := checkString(string(val)); err != nil {
			return nil, err
		}
		return val, nil
	case Map:
		out, err := normalizeKeys(val)
		if err != nil {
			return nil, err
		}
		for k, e := range out {
			ne, err := normalizeValue(e)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			out[k] = ne
		}
		return out, nil
	case List:
		out := make(List, len(val))
		for i, e := range val {
			ne, err := normalizeValue(e)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = ne
		}
		return out, nil
	default:
		return v, nil
	}
}

func fromReflect(rv reflect.Value) (Value, error) {
	if !rv.IsValid() {
		return Null{}, nil
	}
	if rv.Type().Implements(valueType) && rv.Kind() != reflect.Interface {
		return normalizeValue(rv.Interface().(Value))
	}

	switch rv.Kind() {
	case reflect.Interface, reflect.Pointer:
		if rv.IsNil() {
			return Null{}, nil
		}
		return fromReflect(rv.Elem())
	case reflect.String:
		if err := checkString(rv.String()); err != nil {
			return nil, err
		}
		return String(rv.String()), nil
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return nil, fmt.Errorf("unsigned integer %d overflows int64", u)
		}
		return Int(int64(u)), nil
	case reflect.Float32, reflect.Float64:
		return Float(rv.Float()), nil
	case reflect.Slice:
		if rv.IsNil() {
			return List{}, nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			if err := checkString(string(rv.Bytes())); err != nil {
				return nil, err
			}
			return String(rv.Bytes()), nil
		}
		fallthrough
	case reflect.Array:
		out := make(List, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			e, err := fromReflect(rv.Index(i))
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = e
		}
		return out, nil
	case reflect.Map:
		out := make(Map, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key, err := NormalizeKey(iter.Key().Interface())
			if err != nil {
				return nil, err
			}
			if _, dup := out[key]; dup {
				return nil, fmt.Errorf("keys collide after normalization: %q", key)
			}
			e, err := fromReflect(iter.Value())
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", key, err)
			}
			out[key] = e
		}
		return out, nil
	case reflect.Struct:
		return fromStruct(rv)
	default:
		return nil, fmt.Errorf("unsupported type: %s", rv.Type())
	}
}

// fromStruct encodes a struct through yaml.v3 so its yaml tags decide the
// field names, then converts the resulting node.
func fromStruct(rv reflect.Value) (Value, error) {
	var node yaml.Node
	if err := node.Encode(rv.Interface()); err != nil {
		return nil, fmt.Errorf("encode %s: %w", rv.Type(), err)
	}
	return fromNode(&node)
}
