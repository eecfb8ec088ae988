// Package store provides the SQLite-backed object store for recordtree.
//
// The store implements object.Store with two tables:
//   - objects: immutable content-addressed blobs, trees, and commits
//   - refs: the mutable HEAD reference
//
// # Critical Patterns
//
// Objects are written before the ref update. A crash between the two leaves
// unreachable objects behind, never a head pointing at a partial tree.
//
// HEAD is advanced with a single conditional statement
// (UPDATE ... WHERE hash = old), so two writers racing on the same parent
// cannot both succeed; the loser gets object.ErrHeadMoved.
//
// Object payloads are zstd-compressed at rest. Hashes are always computed
// over the uncompressed encoding, so compression settings never change ids.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store
