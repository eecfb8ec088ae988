// Package paths maps (type, id, field) triples to storage paths inside a
// snapshot tree. Every function is pure; the only failure is an invalid key.
//
// Layout:
//
//	<type-dir>/<id>/attributes.yml   serialized attributes (omitted when empty)
//	<type-dir>/<id>/<blob-name>      one file per blob, raw bytes
//	<type-dir>/<id>/.placeholder     sentinel for id-only records (optional)
package paths

import (
	"strings"

	"github.com/roach88/recordtree/internal/errs"
)

const (
	// AttributesFile is the file name holding a record's serialized attributes.
	AttributesFile = "attributes.yml"

	// PlaceholderFile marks a record with no attributes and no blobs when
	// placeholder records are enabled.
	PlaceholderFile = ".placeholder"

	// Separator joins path segments. Paths are always slash-separated,
	// independent of the host OS.
	Separator = "/"
)

// TypeDir validates and returns the directory for a record type.
// typeDir may contain several slash-separated segments.
func TypeDir(typeDir string) (string, error) {
	if typeDir == "" {
		return "", errs.InvalidKey("type dir", "type is empty")
	}
	for _, seg := range strings.Split(typeDir, Separator) {
		if err := checkSegment(seg); err != nil {
			return "", errs.InvalidKey("type dir", "type %q: %s", typeDir, err.Error())
		}
	}
	return typeDir, nil
}

// RecordDir returns <type-dir>/<id>.
func RecordDir(typeDir, id string) (string, error) {
	dir, err := TypeDir(typeDir)
	if err != nil {
		return "", err
	}
	if err := ValidateID(id); err != nil {
		return "", err
	}
	return dir + Separator + id, nil
}

// AttributesPath returns <type-dir>/<id>/attributes.yml.
func AttributesPath(typeDir, id string) (string, error) {
	dir, err := RecordDir(typeDir, id)
	if err != nil {
		return "", err
	}
	return dir + Separator + AttributesFile, nil
}

// PlaceholderPath returns <type-dir>/<id>/.placeholder.
func PlaceholderPath(typeDir, id string) (string, error) {
	dir, err := RecordDir(typeDir, id)
	if err != nil {
		return "", err
	}
	return dir + Separator + PlaceholderFile, nil
}

// BlobPath returns <type-dir>/<id>/<name>.
func BlobPath(typeDir, id, name string) (string, error) {
	dir, err := RecordDir(typeDir, id)
	if err != nil {
		return "", err
	}
	if err := ValidateBlobName(name); err != nil {
		return "", err
	}
	return dir + Separator + name, nil
}

// ValidateID rejects empty or malformed record ids.
func ValidateID(id string) error {
	if id == "" {
		return errs.InvalidKey("validate id", "id is empty")
	}
	if err := checkSegment(id); err != nil {
		return errs.InvalidKey("validate id", "id %q: %s", id, err.Error())
	}
	return nil
}

// ValidateBlobName rejects empty, malformed, or reserved blob names.
func ValidateBlobName(name string) error {
	if name == "" {
		return errs.InvalidKey("validate blob name", "blob name is empty")
	}
	if err := checkSegment(name); err != nil {
		return errs.InvalidKey("validate blob name", "blob name %q: %s", name, err.Error())
	}
	if IsReserved(name) {
		return errs.InvalidKey("validate blob name", "blob name %q is reserved", name)
	}
	return nil
}

// IsReserved reports whether a file name inside a record directory is
// managed by recordtree rather than being a blob.
func IsReserved(name string) bool {
	return name == AttributesFile || name == PlaceholderFile
}

// Join joins slash-separated segments, skipping empty ones.
func Join(segs ...string) string {
	parts := make([]string, 0, len(segs))
	for _, s := range segs {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, Separator)
}

// Split splits a path into its segments. The empty path has no segments.
func Split(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, Separator)
}

// Base returns the last segment of a path.
func Base(path string) string {
	if i := strings.LastIndex(path, Separator); i >= 0 {
		return path[i+1:]
	}
	return path
}

type segmentError string

func (e segmentError) Error() string { return string(e) }

func checkSegment(seg string) error {
	switch {
	case seg == "":
		return segmentError("empty path segment")
	case seg == "." || seg == "..":
		return segmentError("relative path segment")
	case strings.ContainsAny(seg, "/\\\x00"):
		return segmentError("contains a path separator or NUL")
	case strings.TrimSpace(seg) != seg:
		return segmentError("has leading or trailing whitespace")
	}
	return nil
}
