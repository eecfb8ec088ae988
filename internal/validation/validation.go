// Package validation provides a record.Validator driven by
// go-playground/validator tags, one tag string per attribute or blob.
//
//	v, _ := validation.New(validation.Rules{
//		Attributes: map[string]string{"name": "required,min=2", "email": "omitempty,email"},
//		Blobs:      map[string]string{"avatar": "required,max=1048576"},
//	})
//
// Attribute values are checked in their plain Go form (codec.ToAny); blobs
// are checked as byte slices, so len-based tags apply to their size.
package validation

import (
	"errors"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"

	"github.com/roach88/recordtree/internal/codec"
	"github.com/roach88/recordtree/internal/record"
)

// Rules maps field names to validator tags.
type Rules struct {
	Attributes map[string]string `yaml:"attributes" mapstructure:"attributes"`
	Blobs      map[string]string `yaml:"blobs" mapstructure:"blobs"`
}

// Empty reports whether no rules are declared.
func (r Rules) Empty() bool {
	return len(r.Attributes) == 0 && len(r.Blobs) == 0
}

// RuleSet validates records against Rules.
type RuleSet struct {
	rules    Rules
	validate *validator.Validate
}

var _ record.Validator = (*RuleSet)(nil)

// New compiles rules. Every tag is checked once against a zero value so
// unknown tags fail here rather than on the first save.
func New(rules Rules) (rs *RuleSet, err error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	defer func() {
		// validator panics on unknown tags.
		if p := recover(); p != nil {
			rs, err = nil, fmt.Errorf("compile rules: %v", p)
		}
	}()
	for _, tag := range rules.Attributes {
		_ = v.Var(nil, tag)
	}
	for _, tag := range rules.Blobs {
		_ = v.Var([]byte(nil), tag)
	}
	return &RuleSet{rules: rules, validate: v}, nil
}

// ValidateRecord implements record.Validator.
func (s *RuleSet) ValidateRecord(r *record.Record) record.Errors {
	out := record.Errors{}
	for _, field := range sortedKeys(s.rules.Attributes) {
		var value any
		if v, ok := r.Attributes[field]; ok {
			value = codec.ToAny(v)
		}
		s.check(out, field, value, s.rules.Attributes[field])
	}
	for _, name := range sortedKeys(s.rules.Blobs) {
		var data []byte
		if b, ok := r.Blobs[name]; ok {
			data = b
		}
		s.check(out, name, data, s.rules.Blobs[name])
	}
	return out
}

func (s *RuleSet) check(out record.Errors, field string, value any, tag string) {
	err := s.validate.Var(value, tag)
	if err == nil {
		return
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		out.Add(field, err.Error())
		return
	}
	for _, fe := range verrs {
		out.Add(field, message(fe))
	}
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "len":
		return "must have length " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "uuid", "uuid4", "uuid7":
		return "must be a valid UUID"
	case "gt", "gte", "lt", "lte":
		return fmt.Sprintf("must be %s %s", comparison[fe.Tag()], fe.Param())
	}
	if fe.Param() != "" {
		return fmt.Sprintf("failed %s=%s", fe.Tag(), fe.Param())
	}
	return "failed " + fe.Tag()
}

var comparison = map[string]string{
	"gt":  "greater than",
	"gte": "greater than or equal to",
	"lt":  "less than",
	"lte": "less than or equal to",
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
