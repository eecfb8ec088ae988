package record

import (
	"maps"
	"slices"

	"github.com/roach88/recordtree/internal/codec"
	"github.com/roach88/recordtree/internal/errs"
	"github.com/roach88/recordtree/internal/object"
)

// Record is one stored entity.
//
// Attributes and Blobs may be read and replaced directly; the mutator
// methods additionally normalize keys and enforce the frozen state.
type Record struct {
	Type       *Type
	ID         string
	Attributes codec.Map
	Blobs      map[string][]byte

	persisted bool
	frozen    bool
	commit    object.Hash
	errors    Errors
}

// New creates an unpersisted record.
func New(t *Type, id string) *Record {
	return &Record{
		Type:       t,
		ID:         id,
		Attributes: codec.Map{},
		Blobs:      map[string][]byte{},
	}
}

// Identity returns the record id.
func (r *Record) Identity() string { return r.ID }

// Key returns "<type-dir>/<id>".
func (r *Record) Key() string {
	if r.Type == nil {
		return r.ID
	}
	return r.Type.Dir + "/" + r.ID
}

// IsPersisted reports whether the record has an entry in the snapshot it
// was last loaded from or saved to.
func (r *Record) IsPersisted() bool { return r.persisted }

// IsFrozen reports whether the record was deleted.
func (r *Record) IsFrozen() bool { return r.frozen }

// Commit returns the commit the record was last loaded from or saved at.
func (r *Record) Commit() object.Hash { return r.commit }

// Errors returns the messages from the last Validate or failed save.
func (r *Record) Errors() Errors { return r.errors }

// Validate runs the type's validator and records its messages on r. A
// record whose type has no validator is always valid.
func (r *Record) Validate() (bool, Errors) {
	r.errors = nil
	if r.Type == nil || r.Type.Validator == nil {
		return true, nil
	}
	found := r.Type.Validator.ValidateRecord(r)
	if found.Empty() {
		return true, nil
	}
	r.errors = found
	return false, found.Clone()
}

// Get returns the attribute stored under key. String, typed string, and
// fmt.Stringer keys with the same text are equivalent.
func (r *Record) Get(key any) (codec.Value, bool) {
	k, err := codec.NormalizeKey(key)
	if err != nil {
		return nil, false
	}
	v, ok := r.Attributes[k]
	return v, ok
}

// Set normalizes key and value and stores the attribute.
func (r *Record) Set(key, value any) error {
	if err := r.mutable("set"); err != nil {
		return err
	}
	k, err := codec.NormalizeKey(key)
	if err != nil {
		return errs.Wrap(errs.CodeInvalidKey, "set", err)
	}
	v, err := codec.FromAny(value)
	if err != nil {
		return errs.Wrap(errs.CodeValidationFailed, "set "+k, err)
	}
	if r.Attributes == nil {
		r.Attributes = codec.Map{}
	}
	r.Attributes[k] = v
	return nil
}

// Merge sets every field in fields.
func (r *Record) Merge(fields any) error {
	if err := r.mutable("merge"); err != nil {
		return err
	}
	m, err := codec.Normalize(fields)
	if err != nil {
		return errs.Wrap(errs.CodeValidationFailed, "merge", err)
	}
	if r.Attributes == nil {
		r.Attributes = codec.Map{}
	}
	maps.Copy(r.Attributes, m)
	return nil
}

// Unset removes an attribute.
func (r *Record) Unset(key any) error {
	if err := r.mutable("unset"); err != nil {
		return err
	}
	k, err := codec.NormalizeKey(key)
	if err != nil {
		return errs.Wrap(errs.CodeInvalidKey, "unset", err)
	}
	delete(r.Attributes, k)
	return nil
}

// Blob returns the named blob.
func (r *Record) Blob(name string) ([]byte, bool) {
	b, ok := r.Blobs[name]
	return b, ok
}

// BlobNames returns blob names, sorted.
func (r *Record) BlobNames() []string {
	return slices.Sorted(maps.Keys(r.Blobs))
}

// SetBlob stores a blob. Names are validated on save.
func (r *Record) SetBlob(name string, data []byte) error {
	if err := r.mutable("set blob"); err != nil {
		return err
	}
	if r.Blobs == nil {
		r.Blobs = map[string][]byte{}
	}
	r.Blobs[name] = slices.Clone(data)
	return nil
}

// RemoveBlob removes a blob.
func (r *Record) RemoveBlob(name string) error {
	if err := r.mutable("remove blob"); err != nil {
		return err
	}
	delete(r.Blobs, name)
	return nil
}

// SetID changes the id. The record is no longer considered persisted.
func (r *Record) SetID(id string) error {
	if err := r.mutable("set id"); err != nil {
		return err
	}
	if id != r.ID {
		r.ID = id
		r.persisted = false
	}
	return nil
}

// Clone returns a deep copy of r with the same lifecycle state.
func (r *Record) Clone() *Record {
	out := *r
	out.Attributes = r.Attributes.Clone()
	out.Blobs = make(map[string][]byte, len(r.Blobs))
	for k, v := range r.Blobs {
		out.Blobs[k] = slices.Clone(v)
	}
	out.errors = r.errors.Clone()
	return &out
}

// MarkPersisted records that r exists at commit.
func (r *Record) MarkPersisted(commit object.Hash) {
	r.persisted = true
	r.commit = commit
	r.errors = nil
}

// MarkDeleted freezes r after its deletion was committed at commit.
func (r *Record) MarkDeleted(commit object.Hash) {
	r.persisted = false
	r.frozen = true
	r.commit = commit
}

// SetErrors attaches validation messages to r.
func (r *Record) SetErrors(e Errors) {
	r.errors = e
}

// Replace copies the stored state of src into r, keeping r's identity.
func (r *Record) Replace(src *Record) {
	r.Attributes = src.Attributes.Clone()
	r.Blobs = make(map[string][]byte, len(src.Blobs))
	for k, v := range src.Blobs {
		r.Blobs[k] = slices.Clone(v)
	}
	r.persisted = src.persisted
	r.commit = src.commit
	r.errors = nil
}

func (r *Record) mutable(op string) error {
	if r.frozen {
		return &errs.Error{Code: errs.CodeFrozen, Op: op, Type: r.Type.String(), ID: r.ID, Message: "record was deleted"}
	}
	return nil
}
