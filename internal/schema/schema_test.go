package schema

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recordtree/internal/codec"
	"github.com/roach88/recordtree/internal/errs"
	"github.com/roach88/recordtree/internal/record"
	"github.com/roach88/recordtree/internal/testutil"
)

func TestDeclare_Validation(t *testing.T) {
	r := NewRegistry()

	assert.ErrorIs(t, r.Declare("", "a", KindAttribute, Value(1)), errs.ErrInvalidKey)
	assert.ErrorIs(t, r.Declare("T", "", KindAttribute, Value(1)), errs.ErrInvalidKey)
	assert.ErrorIs(t, r.Declare("T", "attributes.yml", KindBlob, Value("")), errs.ErrInvalidKey)
	assert.NoError(t, r.Declare("T", "a", KindAttribute, Value(1)))
	assert.Equal(t, []string{"T"}, r.Types())
}

func TestMaterialize_FillsAbsentFields(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Declare("TestEntity", "one", KindAttribute, Value(1)))
	require.NoError(t, r.Declare("TestEntity", "two", KindAttribute, Value(2)))
	require.NoError(t, r.Declare("TestEntity", "blob1.txt", KindBlob, Value("default")))

	rec := record.New(record.MustType("TestEntity"), "foo")
	require.NoError(t, rec.Set("two", 22))

	require.NoError(t, r.Materialize(rec))
	assert.Equal(t, codec.Int(1), rec.Attributes["one"])
	assert.Equal(t, codec.Int(22), rec.Attributes["two"], "present fields are kept")
	assert.Equal(t, "default", string(rec.Blobs["blob1.txt"]))
}

func TestMaterialize_PassesThroughUndeclared(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Declare("TestEntity", "one", KindAttribute, Value(1)))

	rec := record.New(record.MustType("TestEntity"), "foo")
	require.NoError(t, rec.Set("extra", "kept"))
	require.NoError(t, r.Materialize(rec))

	assert.Equal(t, codec.String("kept"), rec.Attributes["extra"])
}

func TestMaterialize_MutableDefaultsNotShared(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Declare("TestEntity", "tags", KindAttribute, Value([]any{"a"})))

	a := record.New(record.MustType("TestEntity"), "a")
	b := record.New(record.MustType("TestEntity"), "b")
	require.NoError(t, r.Materialize(a))
	require.NoError(t, r.Materialize(b))

	a.Attributes["tags"].(codec.List)[0] = codec.String("changed")
	assert.Equal(t, codec.List{codec.String("a")}, b.Attributes["tags"])
}

func TestMaterialize_GeneratorPerField(t *testing.T) {
	r := NewRegistry()
	gen := testutil.NewSequenceIDGenerator("tok")
	require.NoError(t, r.Declare("TestEntity", "token", KindAttribute, Generator(func() (any, error) {
		return gen.Generate(), nil
	})))

	a := record.New(record.MustType("TestEntity"), "a")
	b := record.New(record.MustType("TestEntity"), "b")
	require.NoError(t, r.Materialize(a))
	require.NoError(t, r.Materialize(b))

	assert.Equal(t, codec.String("tok-0001"), a.Attributes["token"])
	assert.Equal(t, codec.String("tok-0002"), b.Attributes["token"])
}

func TestMaterialize_GeneratorError(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("boom")
	require.NoError(t, r.Declare("TestEntity", "x", KindAttribute, Generator(func() (any, error) {
		return nil, boom
	})))

	err := r.Materialize(record.New(record.MustType("TestEntity"), "a"))
	assert.ErrorIs(t, err, boom)
}

func TestMaterialize_NoDefault(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Declare("TestEntity", "x", KindAttribute, Default{}))

	rec := record.New(record.MustType("TestEntity"), "a")
	require.NoError(t, r.Materialize(rec))
	assert.Empty(t, rec.Attributes)
}

func TestMaterialize_NullDefault(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Declare("TestEntity", "x", KindAttribute, Value(nil)))

	rec := record.New(record.MustType("TestEntity"), "a")
	require.NoError(t, r.Materialize(rec))
	assert.Equal(t, codec.Null{}, rec.Attributes["x"])
}

func TestUUIDv7(t *testing.T) {
	v, err := UUIDv7()
	require.NoError(t, err)

	id, err := uuid.Parse(v.(string))
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
}

func TestRegistry_Type(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.SetDir("TestEntity", "custom"))
	require.NoError(t, r.DeclareField("TestEntity", Field{Name: "name", Rule: "required"}))

	typ, err := r.Type("TestEntity")
	require.NoError(t, err)
	assert.Equal(t, "custom", typ.Dir)

	ok, found := record.New(typ, "x").Validate()
	assert.False(t, ok)
	assert.Equal(t, record.Errors{"name": {"is required"}}, found)

	plain, err := r.Type("Undeclared")
	require.NoError(t, err)
	assert.Equal(t, "undeclareds", plain.Dir)
	assert.Nil(t, plain.Validator)
}

func TestLoadCUE(t *testing.T) {
	clock := testutil.NewDeterministicClock()
	r := NewRegistry(WithClock(clock.Now))
	require.NoError(t, r.LoadCUE(filepath.Join("testdata", "schema.cue")))

	assert.Equal(t, []string{"Person", "TestEntity"}, r.Types())

	s, ok := r.Lookup("TestEntity")
	require.True(t, ok)
	assert.Equal(t, "test_entities", s.Dir)

	name, ok := s.Field("name")
	require.True(t, ok)
	assert.Equal(t, "required,min=2", name.Rule)
	assert.True(t, name.Default.IsZero())

	notes, ok := s.Field("notes.txt")
	require.True(t, ok)
	assert.Equal(t, KindBlob, notes.Kind)

	typ, err := r.Type("TestEntity")
	require.NoError(t, err)
	rec := record.New(typ, "foo")
	require.NoError(t, rec.Set("name", "ada"))
	require.NoError(t, r.Materialize(rec))

	assert.Equal(t, codec.String("draft"), rec.Attributes["status"])
	assert.Equal(t, codec.List{}, rec.Attributes["tags"])
	assert.Equal(t, codec.String(testutil.Epoch.Format(time.RFC3339)), rec.Attributes["created_at"])
	assert.IsType(t, codec.String(""), rec.Attributes["token"])
	assert.Equal(t, "empty", string(rec.Blobs["notes.txt"]))

	ok, _ = rec.Validate()
	assert.True(t, ok)

	person, ok := r.Lookup("Person")
	require.True(t, ok)
	age, ok := person.Field("age")
	require.True(t, ok)

	p := record.New(record.MustType("Person"), "p")
	require.NoError(t, r.Materialize(p))
	assert.Equal(t, codec.Int(0), p.Attributes["age"])
	assert.Equal(t, KindAttribute, age.Kind)
}

func TestLoadCUESource_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"syntax", `type: {`},
		{"no types", `other: 1`},
		{"unknown generator", `type: T: attributes: a: generate: "dice"`},
		{"both default and generate", `type: T: attributes: a: {default: 1, generate: "uuid"}`},
		{"bad dir", `type: T: dir: "../x"`},
		{"reserved blob", `type: T: blobs: "attributes.yml": default: ""`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewRegistry().LoadCUESource("test.cue", []byte(tt.src))
			assert.Error(t, err)
		})
	}
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("blob")
	require.NoError(t, err)
	assert.Equal(t, KindBlob, k)

	k, err = ParseKind("attribute")
	require.NoError(t, err)
	assert.Equal(t, KindAttribute, k)

	_, err = ParseKind("other")
	assert.Error(t, err)
}
