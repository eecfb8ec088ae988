package codec

import (
	"math"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fieldName string

type stringerKey struct{ s string }

func (k stringerKey) String() string { return k.s }

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"plain string", "name", "name"},
		{"typed string", fieldName("name"), "name"},
		{"stringer", stringerKey{"name"}, "name"},
		{"nfc", "café", "café"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeKey(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeKey_Unsupported(t *testing.T) {
	_, err := NormalizeKey(42)
	assert.Error(t, err)

	_, err = NormalizeKey(nil)
	assert.Error(t, err)
}

func TestNormalize_KeyKindsCollapse(t *testing.T) {
	a, err := Normalize(map[fieldName]any{"name": "foo"})
	require.NoError(t, err)
	b, err := Normalize(map[string]any{"name": "foo"})
	require.NoError(t, err)

	assert.True(t, Equal(a, b))

	encA, err := EncodeAttributes(a)
	require.NoError(t, err)
	encB, err := EncodeAttributes(b)
	require.NoError(t, err)
	assert.Equal(t, encA, encB)
}

func TestNormalize_Collision(t *testing.T) {
	_, err := Normalize(map[any]any{"name": 1, fieldName("name"): 2})
	assert.Error(t, err)
}

func TestNormalize_ValueMapCollision(t *testing.T) {
	_, err := Normalize(Map{"e\u0301": Int(1), "\u00e9": Int(2)})
	assert.ErrorContains(t, err, "collide")

	_, err = FromAny(List{Map{"e\u0301": Int(1), "\u00e9": Int(2)}})
	assert.Error(t, err)

	m, err := Normalize(Map{"e\u0301": Map{"e\u0301": Int(1)}})
	require.NoError(t, err)
	assert.Equal(t, Map{"\u00e9": Map{"\u00e9": Int(1)}}, m)
}

func TestFromAny_InvalidUTF8(t *testing.T) {
	tests := []struct {
		name string
		in   any
	}{
		{"string", string([]byte{0xff})},
		{"bytes", []byte{0xff, 0xfe}},
		{"value", String([]byte{0xff})},
		{"nested value", Map{"k": List{String([]byte{0xff})}}},
		{"map value", map[string]any{"k": string([]byte{0xff})}},
		{"map key", map[string]any{string([]byte{0xff}): 1}},
		{"value map key", Map{string([]byte{0xff}): Int(1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromAny(tt.in)
			assert.ErrorContains(t, err, "UTF-8")
		})
	}

	_, err := NormalizeKey(string([]byte{0xff}))
	assert.Error(t, err)

	v, err := FromAny([]byte("plain"))
	require.NoError(t, err)
	assert.Equal(t, String("plain"), v)
}

func TestNormalize_Nil(t *testing.T) {
	m, err := Normalize(nil)
	require.NoError(t, err)
	assert.Empty(t, m)
}

func TestNormalize_NotMapping(t *testing.T) {
	_, err := Normalize([]string{"a"})
	assert.Error(t, err)
}

func TestNormalize_Struct(t *testing.T) {
	type profile struct {
		Name  string   `yaml:"name"`
		Age   int      `yaml:"age"`
		Tags  []string `yaml:"tags"`
		Notes string   `yaml:"notes,omitempty"`
	}
	m, err := Normalize(profile{Name: "ada", Age: 36, Tags: []string{"x"}})
	require.NoError(t, err)

	assert.Equal(t, Map{
		"name": String("ada"),
		"age":  Int(36),
		"tags": List{String("x")},
	}, m)
}

func TestNormalize_Scalars(t *testing.T) {
	m, err := Normalize(map[string]any{
		"s":   "x",
		"i":   int32(7),
		"u":   uint8(3),
		"f":   1.5,
		"b":   true,
		"n":   nil,
		"raw": []byte("hi"),
	})
	require.NoError(t, err)

	assert.Equal(t, String("x"), m["s"])
	assert.Equal(t, Int(7), m["i"])
	assert.Equal(t, Int(3), m["u"])
	assert.Equal(t, Float(1.5), m["f"])
	assert.Equal(t, Bool(true), m["b"])
	assert.Equal(t, Null{}, m["n"])
	assert.Equal(t, String("hi"), m["raw"])
}

func TestNormalize_UintOverflow(t *testing.T) {
	_, err := Normalize(map[string]any{"big": uint64(math.MaxUint64)})
	assert.Error(t, err)
}

func TestSortedKeys(t *testing.T) {
	m := Map{"b": Null{}, "a": Null{}, "c": Null{}}
	assert.Equal(t, []string{"a", "b", "c"}, m.SortedKeys())
}

func TestEqual_NilAndEmpty(t *testing.T) {
	assert.True(t, Equal(Map(nil), Map{}))
	assert.True(t, Equal(List(nil), List{}))
	assert.False(t, Equal(Int(1), Float(1)))
}

func TestClone_IsDeep(t *testing.T) {
	orig := Map{"nested": Map{"k": String("v")}, "list": List{Int(1)}}
	cp := orig.Clone()
	cp["nested"].(Map)["k"] = String("changed")
	cp["list"].(List)[0] = Int(2)

	assert.Equal(t, String("v"), orig["nested"].(Map)["k"])
	assert.Equal(t, Int(1), orig["list"].(List)[0])
}

func TestEncodeAttributes_Empty(t *testing.T) {
	out, err := EncodeAttributes(Map{})
	require.NoError(t, err)
	assert.Nil(t, out)

	out, err = EncodeAttributes(nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestEncodeAttributes_NormalizesKeys(t *testing.T) {
	data, err := EncodeAttributes(Map{"e\u0301": Int(1), "nested": Map{"e\u0301": Bool(true)}})
	require.NoError(t, err)

	got, err := DecodeAttributes(data)
	require.NoError(t, err)
	assert.Equal(t, Map{"\u00e9": Int(1), "nested": Map{"\u00e9": Bool(true)}}, got)

	again, err := EncodeAttributes(got)
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestEncodeAttributes_Rejects(t *testing.T) {
	tests := []struct {
		name string
		in   Map
	}{
		{"colliding keys", Map{"e\u0301": Int(1), "\u00e9": Int(2)}},
		{"nested colliding keys", Map{"n": Map{"e\u0301": Int(1), "\u00e9": Int(2)}}},
		{"invalid utf-8 value", Map{"raw": String([]byte{0xff})}},
		{"invalid utf-8 key", Map{string([]byte{0xff}): Int(1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := EncodeAttributes(tt.in)
			assert.Error(t, err)
			assert.Nil(t, out)
		})
	}
}

func TestEncodeAttributes_Golden(t *testing.T) {
	m, err := Normalize(map[string]any{
		"two":    2,
		"one":    1,
		"name":   "foo",
		"nested": map[string]any{"flag": true},
	})
	require.NoError(t, err)

	out, err := EncodeAttributes(m)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "attributes", out)
}

func TestEncodeAttributes_Deterministic(t *testing.T) {
	m := Map{"z": Int(1), "a": List{String("x"), Map{"k": Bool(false)}}, "m": Null{}}
	first, err := EncodeAttributes(m)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := EncodeAttributes(m.Clone())
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestAttributes_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   Map
	}{
		{"scalars", Map{"s": String("foo"), "i": Int(-3), "f": Float(2.5), "b": Bool(true), "n": Null{}}},
		{"whole float", Map{"f": Float(3)}},
		{"large float", Map{"f": Float(1e21)}},
		{"string that looks like others", Map{"a": String("true"), "b": String("12"), "c": String("null"), "d": String("")}},
		{"nested", Map{"outer": Map{"inner": Map{"leaf": String("x")}}}},
		{"list", Map{"l": List{Int(1), String("two"), List{Bool(false)}}}},
		{"empty containers", Map{"l": List{}, "m": Map{}}},
		{"multiline", Map{"text": String("line one\nline two\n")}},
		{"unicode key", Map{"café": String("☃")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodeAttributes(tt.in)
			require.NoError(t, err)

			got, err := DecodeAttributes(data)
			require.NoError(t, err)
			assert.True(t, Equal(tt.in, got), "got %#v", got)
		})
	}
}

func TestFormatFloat(t *testing.T) {
	assert.Equal(t, "3.0", formatFloat(3))
	assert.Equal(t, "0.5", formatFloat(0.5))
	assert.Equal(t, ".nan", formatFloat(math.NaN()))
	assert.Equal(t, ".inf", formatFloat(math.Inf(1)))
	assert.Equal(t, "-.inf", formatFloat(math.Inf(-1)))
}

func TestDecodeAttributes_Empty(t *testing.T) {
	m, err := DecodeAttributes(nil)
	require.NoError(t, err)
	assert.Empty(t, m)

	m, err = DecodeAttributes([]byte("  \n"))
	require.NoError(t, err)
	assert.Empty(t, m)
}

func TestDecodeAttributes_NotMapping(t *testing.T) {
	_, err := DecodeAttributes([]byte("- a\n- b\n"))
	assert.ErrorIs(t, err, ErrNotMapping)

	_, err = DecodeAttributes([]byte("just a string\n"))
	assert.ErrorIs(t, err, ErrNotMapping)
}

func TestDecodeAttributes_Malformed(t *testing.T) {
	_, err := DecodeAttributes([]byte("key: [unterminated\n"))
	assert.Error(t, err)
}

func TestDecodeAttributes_NonScalarKey(t *testing.T) {
	_, err := DecodeAttributes([]byte("? [a, b]\n: value\n"))
	assert.Error(t, err)
}

func TestDecodeAttributes_Alias(t *testing.T) {
	m, err := DecodeAttributes([]byte("base: &b {x: 1}\ncopy: *b\n"))
	require.NoError(t, err)
	assert.Equal(t, Map{"x": Int(1)}, m["copy"])
}

func TestDecodeAttributes_TimestampStaysString(t *testing.T) {
	m, err := DecodeAttributes([]byte("at: 2024-01-02\n"))
	require.NoError(t, err)
	assert.Equal(t, String("2024-01-02"), m["at"])
}

func TestToAny(t *testing.T) {
	got := ToAny(Map{"l": List{Int(1), Null{}}, "s": String("x")})
	assert.Equal(t, map[string]any{"l": []any{int64(1), nil}, "s": "x"}, got)
}
