package api

import (
	"errors"
	"fmt"
)

// Error taxonomy (spec.md §7). Each sentinel is wrapped by a *PathError
// carrying the node path and, where applicable, the offending attribute
// name or value, and compared with errors.Is/errors.As — the same
// %w-wrapping convention the teacher uses for ErrNotFound (internal/graph).
var (
	ErrNotFound                   = errors.New("not found")
	ErrAlreadyExists              = errors.New("already exists")
	ErrUnsupported                = errors.New("unsupported")
	ErrNotSerializable            = errors.New("not serializable")
	ErrOverlappingChunks          = errors.New("overlapping chunks")
	ErrAttributeConflict          = errors.New("attribute conflict")
	ErrExternalUnavailable        = errors.New("external file unavailable")
	ErrObjectIDMismatch           = errors.New("object id mismatch") // warning, non-fatal
	ErrBrokenLink                 = errors.New("broken link")
	ErrSchemaCacheError           = errors.New("schema cache error") // non-fatal
	ErrRegionReferenceUnsupported = errors.New("region references are not supported")
	ErrInternalInvariant          = errors.New("internal invariant violated")
)

// PathError is the common error shape: a sentinel plus the node path and,
// optionally, the attribute name or value that triggered it.
type PathError struct {
	Op    string // e.g. "open", "write", "read", "resolve"
	Path  string
	Attr  string // attribute name, if applicable
	Value any    // offending value, if applicable
	Err   error  // one of the sentinels above
}

func (e *PathError) Error() string {
	switch {
	case e.Attr != "":
		return fmt.Sprintf("%s %s: attribute %q: %v", e.Op, e.Path, e.Attr, e.Err)
	case e.Path != "":
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

func (e *PathError) Unwrap() error { return e.Err }

// NewPathError builds a *PathError for the given operation, path, and
// underlying sentinel.
func NewPathError(op, path string, err error) *PathError {
	return &PathError{Op: op, Path: path, Err: err}
}

// NewAttrError builds a *PathError for a failure tied to a specific
// attribute name (and optionally its offending value).
func NewAttrError(op, path, attr string, value any, err error) *PathError {
	return &PathError{Op: op, Path: path, Attr: attr, Value: value, Err: err}
}

// IsWarning reports whether err represents one of the two non-fatal
// conditions (ObjectIdMismatch, SchemaCacheError) that spec.md §7 says
// must be logged rather than propagated as a call failure.
func IsWarning(err error) bool {
	return errors.Is(err, ErrObjectIDMismatch) || errors.Is(err, ErrSchemaCacheError)
}
