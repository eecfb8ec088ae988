package cli

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"

	"github.com/roach88/recordtree/internal/codec"
	"github.com/roach88/recordtree/internal/errs"
	"github.com/roach88/recordtree/internal/object"
	"github.com/roach88/recordtree/internal/record"
)

// DiffLine is one line of an attribute diff. Op is "+", "-" or " ".
type DiffLine struct {
	Op   string `json:"op"`
	Text string `json:"text"`
}

// BlobChange describes a blob that differs between two revisions.
type BlobChange struct {
	Name     string `json:"name"`
	Change   string `json:"change"` // "added", "removed" or "modified"
	FromSize int    `json:"from_size"`
	ToSize   int    `json:"to_size"`
}

// RecordDiff is the JSON payload of diff.
type RecordDiff struct {
	Type       string       `json:"type"`
	ID         string       `json:"id"`
	From       string       `json:"from"`
	To         string       `json:"to"`
	Attributes []DiffLine   `json:"attributes"`
	Blobs      []BlobChange `json:"blobs"`
}

// Empty reports whether the two revisions hold the same record.
func (d *RecordDiff) Empty() bool {
	for _, l := range d.Attributes {
		if l.Op != " " {
			return false
		}
	}
	return len(d.Blobs) == 0
}

var (
	addColor    = color.New(color.FgGreen).SprintFunc()
	removeColor = color.New(color.FgRed).SprintFunc()
	headerColor = color.New(color.Bold).SprintFunc()
)

// NewDiffCommand creates the diff command.
func NewDiffCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "diff <type> <id> [from [to]]",
		Short: "Show how a record changed between two revisions",
		Long: `Show how a record changed between two revisions.

from defaults to HEAD~1 and to defaults to HEAD. A record absent at a
revision compares as empty.

Examples:
  recordtree diff TestEntity foo
  recordtree diff TestEntity foo HEAD~3
  recordtree diff TestEntity foo 3f2a9c 81be07`,
		Args: cobra.RangeArgs(2, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to := "", "HEAD"
			if len(args) > 2 {
				from = args[2]
			}
			if len(args) > 3 {
				to = args[3]
			}
			return runDiff(cmd, rootOpts, args[0], args[1], from, to)
		},
	}
}

func runDiff(cmd *cobra.Command, opts *RootOptions, typeName, id, fromRev, toRev string) error {
	ctx := commandContext(cmd)
	out := formatter(cmd, opts)

	r, _, err := openRepo(cmd)
	if err != nil {
		return err
	}
	defer r.Close()

	typ, err := r.Type(typeName)
	if err != nil {
		return out.Fail("unknown type", err)
	}

	var from object.Hash
	if fromRev == "" {
		// The parent of the first commit is the empty history.
		from, err = resolveRevision(ctx, r, "HEAD~1")
		if errs.Is(err, errs.CodeNotFound) {
			from, err = object.ZeroHash, nil
		}
	} else {
		from, err = resolveRevision(ctx, r, fromRev)
	}
	if err != nil {
		return out.Fail("failed to resolve revision", err)
	}
	to, err := resolveRevision(ctx, r, toRev)
	if err != nil {
		return out.Fail("failed to resolve revision", err)
	}

	load := func(commit object.Hash) (*record.Record, error) {
		rec, err := r.FindAt(ctx, commit, typ, id)
		if errs.Is(err, errs.CodeNotFound) {
			return nil, nil
		}
		return rec, err
	}
	before, err := load(from)
	if err != nil {
		return out.Fail("failed to read record", err)
	}
	after, err := load(to)
	if err != nil {
		return out.Fail("failed to read record", err)
	}

	d, err := diffRecords(before, after)
	if err != nil {
		return out.Fail("failed to diff record", err)
	}
	d.Type, d.ID, d.From, d.To = typ.Name, id, from.String(), to.String()

	if opts.Format == "json" {
		return out.Success(d, "")
	}
	return out.Success(nil, renderDiff(d, typ.Dir+"/"+id))
}

// diffRecords compares two versions of a record; nil is an absent record.
func diffRecords(before, after *record.Record) (*RecordDiff, error) {
	a, err := attributesText(before)
	if err != nil {
		return nil, err
	}
	b, err := attributesText(after)
	if err != nil {
		return nil, err
	}

	d := &RecordDiff{Attributes: lineDiff(a, b), Blobs: []BlobChange{}}

	names := map[string]struct{}{}
	for _, rec := range []*record.Record{before, after} {
		if rec != nil {
			for name := range rec.Blobs {
				names[name] = struct{}{}
			}
		}
	}
	for _, name := range sortedKeys(names) {
		oldData, inOld := blobOf(before, name)
		newData, inNew := blobOf(after, name)
		change := BlobChange{Name: name, FromSize: len(oldData), ToSize: len(newData)}
		switch {
		case !inOld:
			change.Change = "added"
		case !inNew:
			change.Change = "removed"
		case !bytes.Equal(oldData, newData):
			change.Change = "modified"
		default:
			continue
		}
		d.Blobs = append(d.Blobs, change)
	}
	return d, nil
}

func attributesText(rec *record.Record) (string, error) {
	if rec == nil {
		return "", nil
	}
	data, err := codec.EncodeAttributes(rec.Attributes)
	return string(data), err
}

func blobOf(rec *record.Record, name string) ([]byte, bool) {
	if rec == nil {
		return nil, false
	}
	return rec.Blob(name)
}

// lineDiff computes a line-level diff of two texts.
func lineDiff(a, b string) []DiffLine {
	dmp := diffmatchpatch.New()
	ca, cb, lines := dmp.DiffLinesToChars(a, b)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ca, cb, false), lines)

	out := []DiffLine{}
	for _, d := range diffs {
		op := " "
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			op = "+"
		case diffmatchpatch.DiffDelete:
			op = "-"
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			out = append(out, DiffLine{Op: op, Text: strings.TrimSuffix(line, "\n")})
		}
	}
	return out
}

func renderDiff(d *RecordDiff, key string) string {
	if d.Empty() {
		return fmt.Sprintf("%s: no changes", key)
	}

	var b strings.Builder
	fmt.Fprintln(&b, headerColor(fmt.Sprintf("--- %s @ %s", key, shortOrNone(d.From))))
	fmt.Fprintln(&b, headerColor(fmt.Sprintf("+++ %s @ %s", key, shortOrNone(d.To))))
	fmt.Fprintln(&b, headerColor("@@ attributes"))
	for _, l := range d.Attributes {
		line := l.Op + l.Text
		switch l.Op {
		case "+":
			line = addColor(line)
		case "-":
			line = removeColor(line)
		}
		fmt.Fprintln(&b, line)
	}
	if len(d.Blobs) > 0 {
		fmt.Fprintln(&b, headerColor("@@ blobs"))
		for _, c := range d.Blobs {
			switch c.Change {
			case "added":
				fmt.Fprintln(&b, addColor(fmt.Sprintf("+%s (%d bytes)", c.Name, c.ToSize)))
			case "removed":
				fmt.Fprintln(&b, removeColor(fmt.Sprintf("-%s (%d bytes)", c.Name, c.FromSize)))
			default:
				fmt.Fprintf(&b, "~%s (%d -> %d bytes)\n", c.Name, c.FromSize, c.ToSize)
			}
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func shortOrNone(h string) string {
	if h == "" {
		return "(none)"
	}
	return object.Hash(h).Short()
}
