package record

import (
	"github.com/roach88/recordtree/internal/naming"
	"github.com/roach88/recordtree/internal/paths"
)

// Type describes a record type: its name, the directory its records live
// under, and the validator gating saves.
type Type struct {
	Name      string
	Dir       string
	Validator Validator
}

// TypeOption configures a Type.
type TypeOption func(*Type)

// WithDir overrides the directory derived from the type name.
func WithDir(dir string) TypeOption {
	return func(t *Type) { t.Dir = dir }
}

// WithValidator sets the validator used by Record.Validate.
func WithValidator(v Validator) TypeOption {
	return func(t *Type) { t.Validator = v }
}

// NewType creates a Type. Unless WithDir is given, the directory is derived
// from the name with naming.Subdirectory.
func NewType(name string, opts ...TypeOption) (*Type, error) {
	t := &Type{Name: name}
	for _, opt := range opts {
		opt(t)
	}
	if t.Dir == "" && name != "" {
		t.Dir = naming.Subdirectory(name)
	}
	if _, err := paths.TypeDir(t.Dir); err != nil {
		return nil, err
	}
	return t, nil
}

// MustType is like NewType but panics on an invalid name or directory.
func MustType(name string, opts ...TypeOption) *Type {
	t, err := NewType(name, opts...)
	if err != nil {
		panic(err)
	}
	return t
}

// String returns the type name.
func (t *Type) String() string {
	if t == nil {
		return ""
	}
	return t.Name
}
