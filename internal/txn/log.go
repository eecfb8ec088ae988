package txn

import (
	"context"

	"github.com/roach88/recordtree/internal/errs"
	"github.com/roach88/recordtree/internal/object"
)

// LogEntry is one commit in history.
type LogEntry struct {
	Hash object.Hash
	object.Commit
}

// Log walks first-parent history from start, newest first. A limit of zero
// or less walks the whole history.
func Log(ctx context.Context, store object.Store, start object.Hash, limit int) ([]LogEntry, error) {
	var out []LogEntry
	for h := start; !h.IsZero(); {
		if limit > 0 && len(out) >= limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c, err := object.ReadCommit(ctx, store, h)
		if err != nil {
			return nil, errs.Unavailable("log", err)
		}
		out = append(out, LogEntry{Hash: h, Commit: *c})
		h = c.Parent
	}
	return out, nil
}
