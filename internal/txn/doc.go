// Package txn applies a diff to a snapshot and publishes the result as a new
// commit.
//
// A commit is published by a compare-and-swap of the store head from the
// snapshot's commit to the new one. If another writer moved the head in the
// meantime the commit is abandoned with errs.CodeConcurrentModification and
// nothing becomes visible; objects already written stay in the store
// unreferenced. The Committer never retries on its own.
package txn
