// Package codec converts record attributes between their in-memory form and
// the attributes.yml text encoding stored in a snapshot.
//
// The in-memory form is a sealed Value tree (Null, String, Int, Float, Bool,
// List, Map). Callers usually never build Values by hand: Normalize accepts
// ordinary Go maps, slices, scalars, and structs, and converts every map key
// to its canonical string form (typed string constants, fmt.Stringer, and
// encoding.TextMarshaler keys all collapse to the same string). Keys are NFC
// normalized so visually identical keys cannot diverge.
//
// EncodeAttributes is canonical: keys are sorted, indentation is fixed, and
// the same Map always produces the same bytes, so an unchanged record
// produces an unchanged blob hash and no tree delta. An empty Map encodes to
// nil, meaning "no attributes file".
//
// Blob payloads never pass through this package.
package codec
