package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/recordtree/internal/codec"
	"github.com/roach88/recordtree/internal/errs"
	"github.com/roach88/recordtree/internal/record"
)

// PutOptions holds flags for the put command.
type PutOptions struct {
	*RootOptions
	Set     []string // key=value, value parsed as YAML
	Unset   []string // attribute keys to remove
	Attrs   string   // YAML file replacing all attributes
	Blobs   []string // name=@path or name=text
	RmBlobs []string // blob names to remove
}

// WriteResult is the JSON payload of put and rm.
type WriteResult struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	Commit    string `json:"commit"`
	Committed bool   `json:"committed"`
}

// NewPutCommand creates the put command.
func NewPutCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PutOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "put <type> <id>",
		Short: "Create or update a record",
		Long: `Create or update a record and commit it.

An existing record is loaded first, so only the named attributes and blobs
change. Values given to --set are parsed as YAML.

Examples:
  recordtree put TestEntity foo --set one=1 --set two=2 --blob blob1.txt="This is blob 1"
  recordtree put Person ada --attrs ada.yml --blob avatar.png=@avatar.png
  recordtree put Person ada --unset age --rm-blob avatar.png`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPut(cmd, opts, args[0], args[1])
		},
	}

	cmd.Flags().StringArrayVar(&opts.Set, "set", nil, "set an attribute (key=value)")
	cmd.Flags().StringArrayVar(&opts.Unset, "unset", nil, "remove an attribute")
	cmd.Flags().StringVar(&opts.Attrs, "attrs", "", "YAML file replacing all attributes")
	cmd.Flags().StringArrayVar(&opts.Blobs, "blob", nil, "set a blob (name=text or name=@file)")
	cmd.Flags().StringArrayVar(&opts.RmBlobs, "rm-blob", nil, "remove a blob")

	return cmd
}

func runPut(cmd *cobra.Command, opts *PutOptions, typeName, id string) error {
	ctx := commandContext(cmd)
	out := formatter(cmd, opts.RootOptions)

	r, _, err := openRepo(cmd)
	if err != nil {
		return err
	}
	defer r.Close()

	typ, err := r.Type(typeName)
	if err != nil {
		return out.Fail("unknown type", err)
	}
	rec, err := r.Find(ctx, typ, id)
	switch {
	case errs.Is(err, errs.CodeNotFound):
		rec = record.New(typ, id)
	case err != nil:
		return out.Fail("failed to load record", err)
	}

	if err := applyPut(rec, opts); err != nil {
		return out.Fail("invalid input", err)
	}

	res, err := r.SaveOrFail(ctx, rec)
	if err != nil {
		return out.Fail(fmt.Sprintf("failed to save %s", rec.Key()), err)
	}

	text := fmt.Sprintf("saved %s at %s", rec.Key(), res.Commit.Short())
	if !res.Committed {
		text = fmt.Sprintf("%s unchanged", rec.Key())
	}
	return out.Success(WriteResult{
		Type:      typ.Name,
		ID:        id,
		Commit:    res.Commit.String(),
		Committed: res.Committed,
	}, text)
}

func applyPut(rec *record.Record, opts *PutOptions) error {
	if opts.Attrs != "" {
		data, err := os.ReadFile(opts.Attrs)
		if err != nil {
			return errs.Wrap(errs.CodeInvalidKey, "read attributes", err)
		}
		attrs, err := codec.DecodeAttributes(data)
		if err != nil {
			return errs.Wrap(errs.CodeValidationFailed, "read attributes", err)
		}
		for _, key := range rec.Attributes.SortedKeys() {
			if err := rec.Unset(key); err != nil {
				return err
			}
		}
		if err := rec.Merge(attrs); err != nil {
			return err
		}
	}

	for _, kv := range opts.Set {
		key, raw, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return errs.InvalidKey("set", "expected key=value, got %q", kv)
		}
		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			return errs.Wrap(errs.CodeValidationFailed, "set "+key, err)
		}
		if err := rec.Set(key, value); err != nil {
			return err
		}
	}
	for _, key := range opts.Unset {
		if err := rec.Unset(key); err != nil {
			return err
		}
	}

	for _, arg := range opts.Blobs {
		name, value, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return errs.InvalidKey("blob", "expected name=text or name=@file, got %q", arg)
		}
		data := []byte(value)
		if path, isFile := strings.CutPrefix(value, "@"); isFile {
			var err error
			if data, err = os.ReadFile(path); err != nil {
				return errs.Wrap(errs.CodeInvalidKey, "read blob "+name, err)
			}
		}
		if err := rec.SetBlob(name, data); err != nil {
			return err
		}
	}
	for _, name := range opts.RmBlobs {
		if err := rec.RemoveBlob(name); err != nil {
			return err
		}
	}
	return nil
}
