package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// LogOptions holds flags for the log command.
type LogOptions struct {
	*RootOptions
	Limit int
}

// CommitView is one entry of log output.
type CommitView struct {
	Hash    string    `json:"hash"`
	Parent  string    `json:"parent,omitempty"`
	Tree    string    `json:"tree"`
	Author  string    `json:"author"`
	Email   string    `json:"email,omitempty"`
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// NewLogCommand creates the log command.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show commit history, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLog(cmd, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 0, "show at most n commits (0 shows all)")

	return cmd
}

func runLog(cmd *cobra.Command, opts *LogOptions) error {
	ctx := commandContext(cmd)
	out := formatter(cmd, opts.RootOptions)

	r, _, err := openRepo(cmd)
	if err != nil {
		return err
	}
	defer r.Close()

	entries, err := r.Log(ctx, opts.Limit)
	if err != nil {
		return out.Fail("failed to read history", err)
	}

	views := make([]CommitView, 0, len(entries))
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		v := CommitView{
			Hash:    e.Hash.String(),
			Parent:  e.Parent.String(),
			Tree:    e.Tree.String(),
			Author:  e.Author,
			Email:   e.Email,
			Time:    time.Unix(e.Time, 0).UTC(),
			Message: e.Message,
		}
		views = append(views, v)
		lines = append(lines, fmt.Sprintf("%s %s %s %s", e.Hash.Short(), v.Time.Format(time.RFC3339), e.Author, e.Message))
	}
	return out.Success(views, strings.Join(lines, "\n"))
}
