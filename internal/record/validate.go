package record

import (
	"maps"
	"slices"
)

// Errors maps field names to validation messages.
type Errors map[string][]string

// Add appends a message for field.
func (e Errors) Add(field, msg string) {
	e[field] = append(e[field], msg)
}

// Empty reports whether there are no messages.
func (e Errors) Empty() bool {
	return len(e) == 0
}

// Fields returns the fields with messages, sorted.
func (e Errors) Fields() []string {
	return slices.Sorted(maps.Keys(e))
}

// Clone returns a copy of e.
func (e Errors) Clone() Errors {
	if e == nil {
		return nil
	}
	out := make(Errors, len(e))
	for k, v := range e {
		out[k] = slices.Clone(v)
	}
	return out
}

// Validator decides whether a record may be saved. It returns nil or empty
// Errors when the record is valid.
type Validator interface {
	ValidateRecord(r *Record) Errors
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(r *Record) Errors

// ValidateRecord calls f(r).
func (f ValidatorFunc) ValidateRecord(r *Record) Errors {
	return f(r)
}

// Validators runs several validators and merges their messages.
type Validators []Validator

// ValidateRecord runs every validator in order.
func (vs Validators) ValidateRecord(r *Record) Errors {
	out := Errors{}
	for _, v := range vs {
		for field, msgs := range v.ValidateRecord(r) {
			out[field] = append(out[field], msgs...)
		}
	}
	return out
}
