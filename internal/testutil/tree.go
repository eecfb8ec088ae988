package testutil

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/recordtree/internal/object"
)

// BuildTree stores files (slash-separated path to contents) as a tree and
// returns the root tree hash.
func BuildTree(t *testing.T, s object.Store, files map[string][]byte) object.Hash {
	t.Helper()
	h, err := buildTree(context.Background(), s, files)
	require.NoError(t, err)
	return h
}

// CommitFiles stores files as a tree, commits it on top of the current
// head, and advances the head. Returns the new commit hash.
func CommitFiles(t *testing.T, s object.Store, files map[string][]byte) object.Hash {
	t.Helper()
	ctx := context.Background()

	root := BuildTree(t, s, files)
	parent, err := s.Head(ctx)
	require.NoError(t, err)

	commit, err := object.CreateCommit(ctx, s, object.Commit{
		Tree:    root,
		Parent:  parent,
		Author:  "test",
		Time:    Epoch.Unix(),
		Message: "seed",
	})
	require.NoError(t, err)
	require.NoError(t, s.UpdateHead(ctx, parent, commit))
	return commit
}

func buildTree(ctx context.Context, s object.Store, files map[string][]byte) (object.Hash, error) {
	subdirs := make(map[string]map[string][]byte)
	var tree object.Tree
	for p, data := range files {
		head, rest, nested := strings.Cut(p, "/")
		if nested {
			if subdirs[head] == nil {
				subdirs[head] = make(map[string][]byte)
			}
			subdirs[head][rest] = data
			continue
		}
		h, err := object.WriteBlob(ctx, s, data)
		if err != nil {
			return object.ZeroHash, err
		}
		tree.Entries = append(tree.Entries, object.TreeEntry{Name: head, Kind: object.KindBlob, Hash: h})
	}
	for name, sub := range subdirs {
		h, err := buildTree(ctx, s, sub)
		if err != nil {
			return object.ZeroHash, err
		}
		tree.Entries = append(tree.Entries, object.TreeEntry{Name: name, Kind: object.KindTree, Hash: h})
	}
	return object.WriteTree(ctx, s, tree)
}
