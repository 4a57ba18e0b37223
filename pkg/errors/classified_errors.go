// Package errors classifies the error kinds the CRDT document engine can
// raise (spec §7) and carries enough context for a caller to decide whether
// to log-and-continue (remote apply of a single operation) or surface the
// failure to the host (a local update, a snapshot decode).
package errors

import (
	"context"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Kind classifies a document engine error.
type Kind int

const (
	// KindUnknown is an unclassified error.
	KindUnknown Kind = iota
	// KindReference: an operation targets a createdAt not present in the
	// Root's by-id index (e.g. the parent was concurrently removed).
	KindReference
	// KindUnsupported: an operation is incompatible with its target's type
	// (e.g. Increase on a non-counter element).
	KindUnsupported
	// KindDocumentRemoved: an edit was attempted on a Removed document.
	KindDocumentRemoved
	// KindUnimplemented: an unknown wire type tag or element variant.
	KindUnimplemented
	// KindUnexpected: an invariant violation (no actor assigned, a
	// subscription path not rooted at "$", etc).
	KindUnexpected
)

// String renders the kind name used in Code and log fields.
func (k Kind) String() string {
	switch k {
	case KindReference:
		return "Reference"
	case KindUnsupported:
		return "Unsupported"
	case KindDocumentRemoved:
		return "DocumentRemoved"
	case KindUnimplemented:
		return "Unimplemented"
	case KindUnexpected:
		return "Unexpected"
	default:
		return "Unknown"
	}
}

// Surfaced reports whether errors of this kind must always propagate to the
// caller, per spec §7's propagation policy. KindReference is the one kind
// whose surfacing is context-dependent (surfaced during a local update,
// logged-and-skipped during remote apply of a single operation within a
// pack) — callers decide that themselves; every other kind is always
// surfaced.
func (k Kind) Surfaced() bool {
	return k != KindReference
}

// DocumentError is a classified error raised by the CRDT engine.
type DocumentError struct {
	Kind      Kind
	Operation string
	Message   string
	cause     error
}

// Error implements the error interface.
func (e *DocumentError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Operation, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *DocumentError) Unwrap() error { return e.cause }

// New creates a classified document error.
func New(kind Kind, operation, message string) *DocumentError {
	return &DocumentError{Kind: kind, Operation: operation, Message: message}
}

// Wrap attaches a classification and a captured stack trace to err. No code
// in this module calls it.
func Wrap(err error, kind Kind, operation string) *DocumentError {
	if err == nil {
		return nil
	}
	return &DocumentError{
		Kind:      kind,
		Operation: operation,
		Message:   err.Error(),
		cause:     pkgerrors.WithStack(err),
	}
}

// WithContext records a cancellation/deadline cause from ctx onto the
// message, so a caller that reads ctx.Err() after the fact can still see it
// in the classified error's own text.
func (e *DocumentError) WithContext(ctx context.Context) *DocumentError {
	if err := ctx.Err(); err != nil {
		e.Message = fmt.Sprintf("%s (ctx: %s)", e.Message, err)
	}
	return e
}

// Is reports whether err is a *DocumentError of the given kind.
func Is(err error, kind Kind) bool {
	de, ok := err.(*DocumentError)
	return ok && de.Kind == kind
}

// IsReference reports whether err is a Reference error.
func IsReference(err error) bool { return Is(err, KindReference) }

// IsUnsupported reports whether err is an Unsupported error.
func IsUnsupported(err error) bool { return Is(err, KindUnsupported) }

// IsDocumentRemoved reports whether err is a DocumentRemoved error.
func IsDocumentRemoved(err error) bool { return Is(err, KindDocumentRemoved) }

// IsUnimplemented reports whether err is an Unimplemented error.
func IsUnimplemented(err error) bool { return Is(err, KindUnimplemented) }

// IsUnexpected reports whether err is an Unexpected error.
func IsUnexpected(err error) bool { return Is(err, KindUnexpected) }
