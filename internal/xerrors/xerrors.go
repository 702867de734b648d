// Package xerrors defines the single error taxonomy shared by every layer
// of the graph engine, from the KV backend up through the query builder.
package xerrors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can branch on it without parsing
// strings. It intentionally mirrors the error surface of the storage and
// validation layers one level down (Storage, Serialization, Cache) plus the
// request-level classes the engine itself raises.
type Kind string

const (
	// Storage indicates the underlying KV backend failed.
	Storage Kind = "storage"
	// Serialization indicates an encode/decode failure in any format.
	Serialization Kind = "serialization"
	// Cache indicates a cache-layer failure; callers normally never see this
	// directly because cache errors fall through to the backend.
	Cache Kind = "cache"
	// NotFound indicates a missing node, edge, session, or template.
	NotFound Kind = "not_found"
	// InvalidArgument indicates a validation failure (empty/oversized
	// content, malformed bindings, failed variable validation, etc).
	InvalidArgument Kind = "invalid_argument"
	// AlreadyExists indicates an explicit-id creation conflict.
	AlreadyExists Kind = "already_exists"
	// InvalidConfig indicates an open-time header mismatch or bad config.
	InvalidConfig Kind = "invalid_config"
)

// Error is the single error type returned by every public operation in this
// module. Wrap lower-layer errors with Wrap to preserve the chain while
// attaching a Kind the caller can switch on.
type Error struct {
	Kind    Kind
	Op      string // operation that failed, e.g. "engine.AddPrompt"
	Message string
	Err     error // wrapped cause, may be nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is supports errors.Is(err, xerrors.ErrNotFound)-style kind comparisons by
// treating any *Error target as a sentinel for its Kind.
func (e *Error) Is(target error) bool {
	var k *Error
	if errors.As(target, &k) {
		return e.Kind == k.Kind
	}
	return false
}

// New constructs an Error of the given kind.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap constructs an Error of the given kind around a lower-layer cause.
func Wrap(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// OfKind reports whether err (or any error it wraps) carries the given Kind.
func OfKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Sentinel kind markers usable directly with errors.Is, e.g.
// errors.Is(err, xerrors.ErrNotFound).
var (
	ErrNotFound        = &Error{Kind: NotFound}
	ErrInvalidArgument = &Error{Kind: InvalidArgument}
	ErrAlreadyExists   = &Error{Kind: AlreadyExists}
	ErrStorage         = &Error{Kind: Storage}
	ErrSerialization   = &Error{Kind: Serialization}
	ErrCache           = &Error{Kind: Cache}
	ErrInvalidConfig   = &Error{Kind: InvalidConfig}
)
