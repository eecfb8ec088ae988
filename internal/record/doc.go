// Package record defines the in-memory record model: a typed, identified
// bag of attributes and blobs with persisted and frozen lifecycle flags.
//
// Records are plain values until a repository saves or loads them. A record
// returned by a repository is persisted; a record deleted through
// Repository.DeleteRecord is frozen and rejects further mutation.
package record
