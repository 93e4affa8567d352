// Package errors defines the error taxonomy shared by all sentinel
// subsystems. Errors carry the collection name and document id of the
// failing operation so callers can diagnose failures without parsing
// messages.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an error into one of the failure categories the
// engine can produce.
type Kind int

const (
	// KindNotFound means the operation targeted an absent document or
	// collection where absence is an error.
	KindNotFound Kind = iota + 1
	// KindConflict means an insert targeted an id that already exists.
	KindConflict
	// KindInvalidArgument means a name, id, field path, or pagination
	// argument was malformed.
	KindInvalidArgument
	// KindStorage means an I/O failure or a corrupt on-disk layout.
	KindStorage
	// KindAuth means a passphrase or key problem on open.
	KindAuth
	// KindIntegrity means a stored content hash did not match the
	// recomputed hash of the data.
	KindIntegrity
	// KindEmptyAggregation means a reducer is undefined on an empty
	// filtered set.
	KindEmptyAggregation
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindConflict:
		return "conflict"
	case KindInvalidArgument:
		return "invalid argument"
	case KindStorage:
		return "storage"
	case KindAuth:
		return "auth"
	case KindIntegrity:
		return "integrity"
	case KindEmptyAggregation:
		return "empty aggregation"
	default:
		return "unknown"
	}
}

// Sentinel values for errors.Is matching. They match any *Error with
// the same kind regardless of context.
var (
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrConflict         = &Error{Kind: KindConflict}
	ErrInvalidArgument  = &Error{Kind: KindInvalidArgument}
	ErrStorage          = &Error{Kind: KindStorage}
	ErrAuth             = &Error{Kind: KindAuth}
	ErrIntegrity        = &Error{Kind: KindIntegrity}
	ErrEmptyAggregation = &Error{Kind: KindEmptyAggregation}
)

// Error is the concrete error type produced by the engine.
type Error struct {
	Kind       Kind
	Collection string
	ID         string
	Msg        string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	switch {
	case e.Collection != "" && e.ID != "":
		return fmt.Sprintf("%s: document %q in collection %q: %s", e.Kind, e.ID, e.Collection, msg)
	case e.Collection != "":
		return fmt.Sprintf("%s: collection %q: %s", e.Kind, e.Collection, msg)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target matches this error. A target with no
// collection or id context matches on kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	if t.Collection != "" && t.Collection != e.Collection {
		return false
	}
	if t.ID != "" && t.ID != e.ID {
		return false
	}
	return true
}

// NotFound returns an error for an absent document.
func NotFound(collection, id string) error {
	return &Error{Kind: KindNotFound, Collection: collection, ID: id, Msg: "document does not exist"}
}

// CollectionNotFound returns an error for an absent collection.
func CollectionNotFound(name string) error {
	return &Error{Kind: KindNotFound, Collection: name, Msg: "collection does not exist"}
}

// Conflict returns an error for an insert on an existing id.
func Conflict(collection, id string) error {
	return &Error{Kind: KindConflict, Collection: collection, ID: id, Msg: "document already exists"}
}

// Invalid returns an error for a malformed argument.
func Invalid(format string, args ...any) error {
	return &Error{Kind: KindInvalidArgument, Msg: fmt.Sprintf(format, args...)}
}

// Storage wraps an I/O or layout failure.
func Storage(err error, format string, args ...any) error {
	return &Error{Kind: KindStorage, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Auth returns an error for passphrase or key problems.
func Auth(err error, msg string) error {
	return &Error{Kind: KindAuth, Msg: msg, Err: err}
}

// Integrity returns an error for a content-hash mismatch on read.
func Integrity(collection, id string) error {
	return &Error{Kind: KindIntegrity, Collection: collection, ID: id, Msg: "stored hash does not match document data"}
}

// EmptyAggregation returns an error for a reducer over an empty set.
func EmptyAggregation(collection string) error {
	return &Error{Kind: KindEmptyAggregation, Collection: collection, Msg: "aggregation is undefined on an empty set"}
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
