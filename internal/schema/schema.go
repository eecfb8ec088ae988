package schema

import (
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/recordtree/internal/codec"
	"github.com/roach88/recordtree/internal/errs"
	"github.com/roach88/recordtree/internal/paths"
	"github.com/roach88/recordtree/internal/record"
	"github.com/roach88/recordtree/internal/validation"
)

// Kind says whether a field is stored in attributes.yml or as a blob.
type Kind int

const (
	KindAttribute Kind = iota
	KindBlob
)

// String returns "attribute" or "blob".
func (k Kind) String() string {
	if k == KindBlob {
		return "blob"
	}
	return "attribute"
}

// ParseKind parses "attribute" or "blob".
func ParseKind(s string) (Kind, error) {
	switch s {
	case "attribute", "attributes":
		return KindAttribute, nil
	case "blob", "blobs":
		return KindBlob, nil
	}
	return 0, fmt.Errorf("unknown field kind %q", s)
}

// Default produces the value for an absent field. The zero Default
// declares a field without one.
type Default struct {
	value    any
	generate func() (any, error)
	set      bool
}

// Value returns a Default that yields a fresh copy of v for every record.
func Value(v any) Default {
	return Default{value: v, set: true}
}

// Generator returns a Default that calls fn once per missing field.
func Generator(fn func() (any, error)) Default {
	return Default{generate: fn, set: fn != nil}
}

// IsZero reports whether no default was given.
func (d Default) IsZero() bool {
	return !d.set
}

// String describes the default for display.
func (d Default) String() string {
	switch {
	case !d.set:
		return ""
	case d.generate != nil:
		return "<generated>"
	}
	return fmt.Sprint(d.value)
}

func (d Default) produce() (any, error) {
	if d.generate != nil {
		return d.generate()
	}
	return d.value, nil
}

// UUIDv7 generates time-ordered UUID strings.
func UUIDv7() (any, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	return id.String(), nil
}

// Field is one declared field.
type Field struct {
	Name    string
	Kind    Kind
	Default Default

	// Rule is a validator tag checked on save; empty means unchecked.
	Rule string
}

// Schema is the declaration of one type.
type Schema struct {
	Type   string
	Dir    string
	fields map[string]Field
}

// Fields returns the declared fields sorted by name.
func (s *Schema) Fields() []Field {
	out := make([]Field, 0, len(s.fields))
	for _, name := range slices.Sorted(maps.Keys(s.fields)) {
		out = append(out, s.fields[name])
	}
	return out
}

// Field returns the declaration of name.
func (s *Schema) Field(name string) (Field, bool) {
	f, ok := s.fields[name]
	return f, ok
}

// Rules returns the validator tags declared on the schema's fields.
func (s *Schema) Rules() validation.Rules {
	var rules validation.Rules
	for name, f := range s.fields {
		if f.Rule == "" {
			continue
		}
		if f.Kind == KindBlob {
			if rules.Blobs == nil {
				rules.Blobs = map[string]string{}
			}
			rules.Blobs[name] = f.Rule
			continue
		}
		if rules.Attributes == nil {
			rules.Attributes = map[string]string{}
		}
		rules.Attributes[name] = f.Rule
	}
	return rules
}

// Registry maps type names to schemas. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*Schema
	now   func() time.Time
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithClock sets the time source of the "now" generator.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{types: make(map[string]*Schema), now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Declare adds or replaces a field declaration.
func (r *Registry) Declare(typeName, field string, kind Kind, def Default) error {
	return r.DeclareField(typeName, Field{Name: field, Kind: kind, Default: def})
}

// DeclareField adds or replaces a field declaration, including its rule.
func (r *Registry) DeclareField(typeName string, f Field) error {
	if typeName == "" {
		return errs.InvalidKey("declare", "type is empty")
	}
	if f.Name == "" {
		return errs.InvalidKey("declare", "field name is empty")
	}
	if f.Kind == KindBlob {
		if err := paths.ValidateBlobName(f.Name); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.schemaLocked(typeName)
	s.fields[f.Name] = f
	return nil
}

// SetDir overrides the directory of a type.
func (r *Registry) SetDir(typeName, dir string) error {
	if _, err := paths.TypeDir(dir); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemaLocked(typeName).Dir = dir
	return nil
}

func (r *Registry) schemaLocked(typeName string) *Schema {
	s, ok := r.types[typeName]
	if !ok {
		s = &Schema{Type: typeName, fields: make(map[string]Field)}
		r.types[typeName] = s
	}
	return s
}

// Lookup returns a copy of the schema for typeName.
func (r *Registry) Lookup(typeName string) (*Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.types[typeName]
	if !ok {
		return nil, false
	}
	return &Schema{Type: s.Type, Dir: s.Dir, fields: maps.Clone(s.fields)}, true
}

// Types returns declared type names, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Type builds the record type for typeName: the declared directory (or
// the derived one) and a validator for the declared rules. opts are
// applied after the schema's own settings.
func (r *Registry) Type(typeName string, opts ...record.TypeOption) (*record.Type, error) {
	var base []record.TypeOption
	if s, ok := r.Lookup(typeName); ok {
		if s.Dir != "" {
			base = append(base, record.WithDir(s.Dir))
		}
		if rules := s.Rules(); !rules.Empty() {
			rs, err := validation.New(rules)
			if err != nil {
				return nil, fmt.Errorf("type %s: %w", typeName, err)
			}
			base = append(base, record.WithValidator(rs))
		}
	}
	return record.NewType(typeName, append(base, opts...)...)
}

// Materialize sets every declared field absent from rec to its default.
// Fields without a default and fields already present are left alone.
func (r *Registry) Materialize(rec *record.Record) error {
	if rec.Type == nil {
		return nil
	}
	s, ok := r.Lookup(rec.Type.Name)
	if !ok {
		return nil
	}
	for _, f := range s.Fields() {
		if f.Default.IsZero() {
			continue
		}
		switch f.Kind {
		case KindBlob:
			if _, ok := rec.Blobs[f.Name]; ok {
				continue
			}
			v, err := f.Default.produce()
			if err != nil {
				return fmt.Errorf("materialize %s.%s: %w", s.Type, f.Name, err)
			}
			data, err := blobBytes(v)
			if err != nil {
				return fmt.Errorf("materialize %s.%s: %w", s.Type, f.Name, err)
			}
			if rec.Blobs == nil {
				rec.Blobs = map[string][]byte{}
			}
			rec.Blobs[f.Name] = data
		default:
			if _, ok := rec.Attributes[f.Name]; ok {
				continue
			}
			v, err := f.Default.produce()
			if err != nil {
				return fmt.Errorf("materialize %s.%s: %w", s.Type, f.Name, err)
			}
			// FromAny always builds new containers.
			cv, err := codec.FromAny(v)
			if err != nil {
				return fmt.Errorf("materialize %s.%s: %w", s.Type, f.Name, err)
			}
			if rec.Attributes == nil {
				rec.Attributes = codec.Map{}
			}
			rec.Attributes[f.Name] = cv
		}
	}
	return nil
}

// NamedGenerator returns a built-in generator:
//
//	uuid  time-ordered UUID string
//	now   current UTC time, RFC 3339
//	list  empty list
//	map   empty mapping
func (r *Registry) NamedGenerator(name string) (Default, error) {
	switch name {
	case "uuid":
		return Generator(UUIDv7), nil
	case "now":
		return Generator(func() (any, error) {
			return r.now().UTC().Format(time.RFC3339), nil
		}), nil
	case "list":
		return Generator(func() (any, error) { return []any{}, nil }), nil
	case "map":
		return Generator(func() (any, error) { return map[string]any{}, nil }), nil
	}
	return Default{}, fmt.Errorf("unknown generator %q", name)
}

func blobBytes(v any) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return slices.Clone(b), nil
	case string:
		return []byte(b), nil
	case nil:
		return []byte{}, nil
	}
	return nil, fmt.Errorf("blob default must be bytes or string, got %T", v)
}
