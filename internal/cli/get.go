package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/recordtree/internal/codec"
	"github.com/roach88/recordtree/internal/errs"
	"github.com/roach88/recordtree/internal/record"
)

// GetOptions holds flags for the get command.
type GetOptions struct {
	*RootOptions
	Blob string // print this blob's raw contents
	At   string // revision to read from
}

// RecordView is the JSON payload of get.
type RecordView struct {
	Type       string         `json:"type"`
	ID         string         `json:"id"`
	Commit     string         `json:"commit"`
	Attributes any            `json:"attributes"`
	Blobs      map[string]int `json:"blobs"`
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "get <type> <id>",
		Short: "Show a record",
		Long: `Show a record's attributes and blob sizes, or one blob's contents.

Examples:
  recordtree get TestEntity foo
  recordtree get TestEntity foo --blob blob1.txt
  recordtree get TestEntity foo --at HEAD~2`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd, opts, args[0], args[1])
		},
	}

	cmd.Flags().StringVar(&opts.Blob, "blob", "", "print one blob's raw contents")
	cmd.Flags().StringVar(&opts.At, "at", "", "read as of a revision (hash, hash prefix, HEAD, HEAD~N)")

	return cmd
}

func runGet(cmd *cobra.Command, opts *GetOptions, typeName, id string) error {
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

	var rec *record.Record
	if opts.At != "" {
		commit, rerr := resolveRevision(ctx, r, opts.At)
		if rerr != nil {
			return out.Fail("failed to resolve revision", rerr)
		}
		rec, err = r.FindAt(ctx, commit, typ, id)
	} else {
		rec, err = r.Find(ctx, typ, id)
	}
	if err != nil {
		return out.Fail(fmt.Sprintf("failed to read %s/%s", typ.Dir, id), err)
	}

	if opts.Blob != "" {
		data, ok := rec.Blob(opts.Blob)
		if !ok {
			return out.Fail("blob not found", errs.New(errs.CodeNotFound, "get", "%s has no blob %q", rec.Key(), opts.Blob))
		}
		if opts.Format == "json" {
			return out.Success(map[string]string{"name": opts.Blob, "data": string(data)}, "")
		}
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}

	view := RecordView{
		Type:       typ.Name,
		ID:         rec.ID,
		Commit:     rec.Commit().String(),
		Attributes: codec.ToAny(rec.Attributes),
		Blobs:      make(map[string]int, len(rec.Blobs)),
	}
	for name, data := range rec.Blobs {
		view.Blobs[name] = len(data)
	}
	if opts.Format == "json" {
		return out.Success(view, "")
	}

	text, err := renderRecord(rec)
	if err != nil {
		return out.Fail("failed to render record", err)
	}
	return out.Success(nil, text)
}

// renderRecord formats a record as its attributes YAML followed by a blob
// listing.
func renderRecord(rec *record.Record) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s @ %s\n", rec.Key(), rec.Commit().Short())
	attrs, err := codec.EncodeAttributes(rec.Attributes)
	if err != nil {
		return "", err
	}
	b.Write(attrs)
	if names := rec.BlobNames(); len(names) > 0 {
		b.WriteString("# blobs\n")
		for _, name := range names {
			data, _ := rec.Blob(name)
			fmt.Fprintf(&b, "#   %s (%d bytes)\n", name, len(data))
		}
	}
	return strings.TrimSuffix(b.String(), "\n"), nil
}
