package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// LsOptions holds flags for the ls command.
type LsOptions struct {
	*RootOptions
	Long bool
}

// RecordSummary is one entry of ls output.
type RecordSummary struct {
	ID         string `json:"id"`
	Attributes int    `json:"attributes"`
	Blobs      int    `json:"blobs"`
}

// NewLsCommand creates the ls command.
func NewLsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ls [type]",
		Short: "List record types or the records of a type",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return runLsTypes(cmd, opts)
			}
			return runLsRecords(cmd, opts, args[0])
		},
	}

	cmd.Flags().BoolVarP(&opts.Long, "long", "l", false, "show attribute and blob counts")

	return cmd
}

func runLsTypes(cmd *cobra.Command, opts *LsOptions) error {
	ctx := commandContext(cmd)
	out := formatter(cmd, opts.RootOptions)

	r, _, err := openRepo(cmd)
	if err != nil {
		return err
	}
	defer r.Close()

	snap, err := r.Snapshot(ctx)
	if err != nil {
		return out.Fail("failed to read head", err)
	}
	entries, err := snap.List(ctx, "")
	if err != nil {
		return out.Fail("failed to list types", err)
	}
	dirs := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name)
		}
	}
	return out.Success(dirs, strings.Join(dirs, "\n"))
}

func runLsRecords(cmd *cobra.Command, opts *LsOptions, typeName string) error {
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
	recs, err := r.FindAll(ctx, typ)
	if err != nil {
		return out.Fail(fmt.Sprintf("failed to list %s", typ.Dir), err)
	}

	summaries := make([]RecordSummary, 0, len(recs))
	lines := make([]string, 0, len(recs))
	for _, rec := range recs {
		s := RecordSummary{ID: rec.ID, Attributes: len(rec.Attributes), Blobs: len(rec.Blobs)}
		summaries = append(summaries, s)
		if opts.Long {
			lines = append(lines, fmt.Sprintf("%s\t%d attributes\t%d blobs", s.ID, s.Attributes, s.Blobs))
		} else {
			lines = append(lines, s.ID)
		}
	}
	return out.Success(summaries, strings.Join(lines, "\n"))
}
