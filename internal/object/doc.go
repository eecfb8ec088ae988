// Package object defines the content-addressed object model that backs every
// recordtree snapshot: blobs (raw bytes), trees (sorted directory listings),
// and commits (a tree plus a single parent, forming a linear history).
//
// Objects are identified by a domain-separated SHA-256 of their uncompressed
// encoding. Trees and commits are encoded as CBOR using Core Deterministic
// Encoding (RFC 8949 §4.2) so the same logical object always hashes to the
// same id. Blobs are stored as-is.
//
// The Store interface is the contract a backend must satisfy. Backends are
// dumb key/value stores plus a single head reference with compare-and-swap
// semantics; all hashing and encoding happens in this package.
package object
