// Package snapshot provides read-only views of the record tree at a single
// commit.
//
// A Snapshot is resolved once, either from the store head or from an
// explicit commit, and never changes afterwards: every read through it sees
// the same tree even if other writers advance the head concurrently. A
// snapshot of an empty history behaves as an empty tree.
//
// Trees are content addressed, so decoded trees are shared between
// snapshots through a TreeCache.
package snapshot
