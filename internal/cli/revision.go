package cli

import (
	"context"
	"strconv"
	"strings"

	"github.com/roach88/recordtree/internal/errs"
	"github.com/roach88/recordtree/internal/object"
	"github.com/roach88/recordtree/internal/repo"
	"github.com/roach88/recordtree/internal/txn"
)

// resolveRevision turns HEAD, HEAD~N, a full hash, or a unique hash
// prefix into a commit hash.
func resolveRevision(ctx context.Context, r *repo.Repository, rev string) (object.Hash, error) {
	head, err := r.Head(ctx)
	if err != nil {
		return object.ZeroHash, err
	}

	if rev == "" || rev == "HEAD" {
		return head, nil
	}
	if n, ok := strings.CutPrefix(rev, "HEAD~"); ok {
		back, err := strconv.Atoi(n)
		if err != nil || back < 0 {
			return object.ZeroHash, errs.InvalidKey("resolve revision", "bad ancestor count in %q", rev)
		}
		entries, err := txn.Log(ctx, r.Store(), head, back+1)
		if err != nil {
			return object.ZeroHash, err
		}
		if len(entries) <= back {
			return object.ZeroHash, errs.New(errs.CodeNotFound, "resolve revision", "%s is beyond the first commit", rev)
		}
		return entries[back].Hash, nil
	}
	if h, err := object.ParseHash(rev); err == nil {
		return h, nil
	}

	entries, err := r.Log(ctx, 0)
	if err != nil {
		return object.ZeroHash, err
	}
	var match object.Hash
	for _, e := range entries {
		if strings.HasPrefix(string(e.Hash), rev) {
			if !match.IsZero() {
				return object.ZeroHash, errs.InvalidKey("resolve revision", "revision %q is ambiguous", rev)
			}
			match = e.Hash
		}
	}
	if match.IsZero() {
		return object.ZeroHash, errs.New(errs.CodeNotFound, "resolve revision", "unknown revision %q", rev)
	}
	return match, nil
}
