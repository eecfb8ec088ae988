package schema

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
)

// LoadError reports a problem in a schema file, with its CUE position when
// known.
type LoadError struct {
	Path    string
	Message string
	Pos     string
}

func (e *LoadError) Error() string {
	if e.Pos != "" {
		return fmt.Sprintf("%s: %s: %s", e.Pos, e.Path, e.Message)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// LoadCUE reads schema declarations from a .cue file or a directory of
// them and declares them on r.
func (r *Registry) LoadCUE(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("load schema: %w", err)
	}

	ctx := cuecontext.New()
	var v cue.Value
	if info.IsDir() {
		instances := load.Instances([]string{"."}, &load.Config{Dir: path})
		if len(instances) == 0 {
			return &LoadError{Message: "no CUE instances loaded"}
		}
		if err := instances[0].Err; err != nil {
			return &LoadError{Message: errors.Details(err, nil)}
		}
		v = ctx.BuildInstance(instances[0])
	} else {
		src, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("load schema: %w", err)
		}
		v = ctx.CompileBytes(src, cue.Filename(path))
	}
	return r.declareCUE(v)
}

// LoadCUESource declares schemas from CUE source text.
func (r *Registry) LoadCUESource(name string, src []byte) error {
	return r.declareCUE(cuecontext.New().CompileBytes(src, cue.Filename(name)))
}

func (r *Registry) declareCUE(v cue.Value) error {
	if err := v.Err(); err != nil {
		return &LoadError{Message: errors.Details(err, nil)}
	}
	types := v.LookupPath(cue.ParsePath("type"))
	if !types.Exists() {
		return &LoadError{Message: "no type declarations found"}
	}
	iter, err := types.Fields()
	if err != nil {
		return cueError("type", types, err)
	}
	for iter.Next() {
		if err := r.declareType(iter.Selector().Unquoted(), iter.Value()); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) declareType(typeName string, v cue.Value) error {
	at := "type." + typeName
	if dir := v.LookupPath(cue.ParsePath("dir")); dir.Exists() {
		s, err := dir.String()
		if err != nil {
			return cueError(at+".dir", dir, err)
		}
		if err := r.SetDir(typeName, s); err != nil {
			return cueError(at+".dir", dir, err)
		}
	}
	for _, kind := range []Kind{KindAttribute, KindBlob} {
		section := v.LookupPath(cue.ParsePath(kind.String() + "s"))
		if !section.Exists() {
			continue
		}
		iter, err := section.Fields()
		if err != nil {
			return cueError(at+"."+kind.String()+"s", section, err)
		}
		for iter.Next() {
			name := iter.Selector().Unquoted()
			f, err := r.parseField(name, kind, iter.Value())
			if err != nil {
				return cueError(at+"."+kind.String()+"s."+name, iter.Value(), err)
			}
			if err := r.DeclareField(typeName, f); err != nil {
				return cueError(at+"."+kind.String()+"s."+name, iter.Value(), err)
			}
		}
	}
	return nil
}

func (r *Registry) parseField(name string, kind Kind, v cue.Value) (Field, error) {
	f := Field{Name: name, Kind: kind}

	def := v.LookupPath(cue.ParsePath("default"))
	gen := v.LookupPath(cue.ParsePath("generate"))
	if def.Exists() && gen.Exists() {
		return Field{}, fmt.Errorf("default and generate are mutually exclusive")
	}
	if def.Exists() {
		var x any
		if err := def.Decode(&x); err != nil {
			return Field{}, err
		}
		f.Default = Value(x)
	}
	if gen.Exists() {
		s, err := gen.String()
		if err != nil {
			return Field{}, err
		}
		if f.Default, err = r.NamedGenerator(s); err != nil {
			return Field{}, err
		}
	}
	if rule := v.LookupPath(cue.ParsePath("rule")); rule.Exists() {
		s, err := rule.String()
		if err != nil {
			return Field{}, err
		}
		f.Rule = s
	}
	return f, nil
}

func cueError(path string, v cue.Value, err error) *LoadError {
	le := &LoadError{Path: path, Message: err.Error()}
	if pos := v.Pos(); pos.IsValid() {
		le.Pos = fmt.Sprintf("%s:%d:%d", pos.Filename(), pos.Line(), pos.Column())
	}
	return le
}
