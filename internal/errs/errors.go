// Package errs defines the error taxonomy shared by every recordtree layer.
//
// All failures surface as *Error with a Code. Callers branch on the code via
// errors.Is against the exported sentinels or via the Is helper:
//
//	if errors.Is(err, errs.ErrNotFound) { ... }
//	if errs.Is(err, errs.CodeConcurrentModification) { ... }
//
// Only CodeConcurrentModification is ever retried automatically, and only a
// bounded number of times.
package errs

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Code categorizes recordtree errors.
type Code string

const (
	// CodeInvalidKey indicates an empty or malformed type, id, or blob name.
	CodeInvalidKey Code = "INVALID_KEY"

	// CodeNotFound indicates a find on an id absent from the resolved snapshot.
	CodeNotFound Code = "NOT_FOUND"

	// CodeValidationFailed indicates the validation collaborator rejected a record.
	CodeValidationFailed Code = "VALIDATION_FAILED"

	// CodeSaveFailed is returned by SaveOrFail when a save did not commit.
	CodeSaveFailed Code = "SAVE_FAILED"

	// CodeConcurrentModification indicates head moved between resolve and commit.
	CodeConcurrentModification Code = "CONCURRENT_MODIFICATION"

	// CodeCorruptRecord indicates stored attributes failed to deserialize.
	CodeCorruptRecord Code = "CORRUPT_RECORD"

	// CodeStoreUnavailable indicates the object store failed an I/O operation.
	CodeStoreUnavailable Code = "STORE_UNAVAILABLE"

	// CodeEmptyRecord indicates a save with no attributes and no blobs
	// under the disallow policy.
	CodeEmptyRecord Code = "EMPTY_RECORD"

	// CodeFrozen indicates a mutation on a deleted record.
	CodeFrozen Code = "FROZEN"

	// CodeTimeout indicates the write lock could not be acquired in time.
	CodeTimeout Code = "TIMEOUT"

	// CodeNotInitialized indicates the process-wide repository is unset.
	CodeNotInitialized Code = "NOT_INITIALIZED"

	// CodeAlreadyInitialized indicates Initialize was called for a different root.
	CodeAlreadyInitialized Code = "ALREADY_INITIALIZED"
)

// Sentinels for errors.Is matching. They carry only a code.
var (
	ErrInvalidKey             = &Error{Code: CodeInvalidKey}
	ErrNotFound               = &Error{Code: CodeNotFound}
	ErrValidationFailed       = &Error{Code: CodeValidationFailed}
	ErrSaveFailed             = &Error{Code: CodeSaveFailed}
	ErrConcurrentModification = &Error{Code: CodeConcurrentModification}
	ErrCorruptRecord          = &Error{Code: CodeCorruptRecord}
	ErrStoreUnavailable       = &Error{Code: CodeStoreUnavailable}
	ErrEmptyRecord            = &Error{Code: CodeEmptyRecord}
	ErrFrozen                 = &Error{Code: CodeFrozen}
	ErrTimeout                = &Error{Code: CodeTimeout}
	ErrNotInitialized         = &Error{Code: CodeNotInitialized}
	ErrAlreadyInitialized     = &Error{Code: CodeAlreadyInitialized}
)

// Error is the structured error used across recordtree.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Op names the operation that failed (e.g. "save", "find").
	Op string

	// Type and ID identify the affected record, when known.
	Type string
	ID   string

	// Path is the storage path involved, when known.
	Path string

	// Message is a human-readable description.
	Message string

	// Fields holds field-level validation messages.
	Fields map[string][]string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Code))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Type != "" || e.ID != "" {
		fmt.Fprintf(&b, " (type=%s, id=%s)", e.Type, e.ID)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " (path=%s)", e.Path)
	}
	if len(e.Fields) > 0 {
		b.WriteString(": ")
		b.WriteString(formatFields(e.Fields))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error carrying the same code, so the package sentinels
// work with errors.Is regardless of the other fields.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New creates an Error with a code and formatted message.
func New(code Code, op, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code to an underlying error.
// Wrapping an error that already carries a code keeps the inner code
// visible through errors.As while the outer code wins for CodeOf.
func Wrap(code Code, op string, err error) *Error {
	return &Error{Code: code, Op: op, Err: err}
}

// InvalidKey reports a malformed type, id, or blob name.
func InvalidKey(op, format string, args ...any) *Error {
	return New(CodeInvalidKey, op, format, args...)
}

// NotFound reports a record absent from the resolved snapshot.
func NotFound(op, typ, id string) *Error {
	return &Error{Code: CodeNotFound, Op: op, Type: typ, ID: id, Message: "record not found"}
}

// Unavailable wraps a store I/O failure.
func Unavailable(op string, err error) *Error {
	return Wrap(CodeStoreUnavailable, op, err)
}

// Corrupt reports stored data that failed to deserialize.
func Corrupt(op, path string, err error) *Error {
	return &Error{Code: CodeCorruptRecord, Op: op, Path: path, Err: err}
}

// CodeOf returns the code of the outermost *Error in err's chain, or "".
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Is reports whether any *Error in err's chain has the given code.
func Is(err error, code Code) bool {
	return errors.Is(err, &Error{Code: code})
}

// IsRetryable reports whether err may be retried against a fresh snapshot.
func IsRetryable(err error) bool {
	return Is(err, CodeConcurrentModification)
}

func formatFields(fields map[string][]string) string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s %s", name, strings.Join(fields[name], ", ")))
	}
	return strings.Join(parts, "; ")
}
