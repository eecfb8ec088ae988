// Package repo binds a storage root to an object store and exposes the
// record API: Find, FindAll, Exists, Create, Save, SaveOrFail, Delete and
// DeleteAll.
//
// Reads resolve one snapshot per call and never block on writers. Writes
// are serialized by a per-repository write lock held across "resolve
// snapshot, build diff, commit". A commit rejected because another process
// moved the head is retried against a fresh snapshot a bounded number of
// times before errs.CodeConcurrentModification is returned.
//
// A Repository is usually held explicitly. For callers that want an
// implicit context, Initialize installs a process-wide default that the
// package-level functions use; tests replace it with Swap.
package repo
