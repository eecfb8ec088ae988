package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// RmOptions holds flags for the rm command.
type RmOptions struct {
	*RootOptions
	All bool
}

// NewRmCommand creates the rm command.
func NewRmCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RmOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "rm <type> [id...]",
		Short: "Delete records",
		Long: `Delete records. Deleting an absent record succeeds without a commit.

Examples:
  recordtree rm TestEntity foo bar
  recordtree rm TestEntity --all`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRm(cmd, opts, args[0], args[1:])
		},
	}

	cmd.Flags().BoolVar(&opts.All, "all", false, "delete every record of the type in one commit")

	return cmd
}

func runRm(cmd *cobra.Command, opts *RmOptions, typeName string, ids []string) error {
	ctx := commandContext(cmd)
	out := formatter(cmd, opts.RootOptions)

	if opts.All == (len(ids) > 0) {
		return NewExitError(ExitCommandError, "give either record ids or --all")
	}

	r, _, err := openRepo(cmd)
	if err != nil {
		return err
	}
	defer r.Close()

	typ, err := r.Type(typeName)
	if err != nil {
		return out.Fail("unknown type", err)
	}

	if opts.All {
		res, err := r.DeleteAll(ctx, typ)
		if err != nil {
			return out.Fail(fmt.Sprintf("failed to delete %s", typ.Dir), err)
		}
		text := fmt.Sprintf("deleted all %s at %s", typ.Dir, res.Commit.Short())
		if !res.Committed {
			text = fmt.Sprintf("no %s records", typ.Dir)
		}
		return out.Success(WriteResult{Type: typ.Name, Commit: res.Commit.String(), Committed: res.Committed}, text)
	}

	results := make([]WriteResult, 0, len(ids))
	lines := make([]string, 0, len(ids))
	for _, id := range ids {
		res, err := r.Delete(ctx, typ, id)
		if err != nil {
			return out.Fail(fmt.Sprintf("failed to delete %s/%s", typ.Dir, id), err)
		}
		results = append(results, WriteResult{Type: typ.Name, ID: id, Commit: res.Commit.String(), Committed: res.Committed})
		if res.Committed {
			lines = append(lines, fmt.Sprintf("deleted %s/%s at %s", typ.Dir, id, res.Commit.Short()))
		} else {
			lines = append(lines, fmt.Sprintf("%s/%s not present", typ.Dir, id))
		}
	}
	return out.Success(results, strings.Join(lines, "\n"))
}
