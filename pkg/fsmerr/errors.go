// Package fsmerr defines the error taxonomy shared by every subsystem:
// config, validation, protocol, timeout, resource, and cancellation errors,
// as laid out in the error handling design.
package fsmerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Category classifies an error into one of the six buckets the engine and
// its subsystems distinguish when deciding whether a failure is local,
// fatal, or a non-error (cancellation).
type Category string

const (
	// Config covers invalid FSM definitions, action configs, or schema
	// definitions. Surfaced at startFSM; always fatal.
	Config Category = "config"
	// Validation covers an event that failed its transition's schema.
	// Non-fatal for the LLM action (triggers a retry); fatal otherwise.
	Validation Category = "validation"
	// Protocol covers bridge write failures, EOF, and malformed frames.
	Protocol Category = "protocol"
	// Timeout covers an await that elapsed. Never fatal by itself.
	Timeout Category = "timeout"
	// Resource covers spawn failure and out-of-memory during emission.
	// Always fatal.
	Resource Category = "resource"
	// Cancelled marks cooperative shutdown. Not an error in the usual
	// sense; await returns a partial trail tagged cancelled.
	Cancelled Category = "cancelled"
)

// Error wraps an underlying cause with a category and, for the dispatch
// failures the engine must name precisely (no-such-transition, etc.), a
// stable code used by callers that want to switch on it without string
// matching the message.
type Error struct {
	category Category
	code     string
	cause    error
}

func (e *Error) Error() string {
	if e.code != "" {
		return fmt.Sprintf("%s: %s: %v", e.category, e.code, e.cause)
	}
	return fmt.Sprintf("%s: %v", e.category, e.cause)
}

// Unwrap lets errors.Is/errors.As see through to the wrapped cause,
// including any stack trace github.com/pkg/errors attached to it.
func (e *Error) Unwrap() error { return e.cause }

// Category returns the bucket this error belongs to.
func (e *Error) Category() Category { return e.category }

// Code returns the stable dispatch code, or "" if none was set.
func (e *Error) Code() string { return e.code }

// New wraps cause (adding a stack trace if it doesn't have one yet) under
// category, with no specific dispatch code.
func New(category Category, cause error) *Error {
	return &Error{category: category, cause: errors.WithStack(cause)}
}

// Newf builds a category error from a format string, stack-traced at the
// call site.
func Newf(category Category, format string, args ...interface{}) *Error {
	return &Error{category: category, cause: errors.Errorf(format, args...)}
}

// Coded builds a category error carrying a stable dispatch code, for the
// handful of failures callers are expected to switch on: no-such-transition,
// no-such-action, schema-invalid, value-invalid, ref-unresolved,
// spawn-error, bridge-write-error, bridge-closed.
func Coded(category Category, code string, format string, args ...interface{}) *Error {
	return &Error{category: category, code: code, cause: errors.Errorf(format, args...)}
}

// Is reports whether err is an *Error of the given category, unwrapping
// through any number of wrapping layers.
func Is(err error, category Category) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.category == category
	}
	return false
}

// HasCode reports whether err is an *Error carrying the given dispatch code.
func HasCode(err error, code string) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.code == code
	}
	return false
}

// Well-known dispatch codes (see spec §4.1, §4.5, §4.3).
const (
	CodeNoSuchTransition  = "no-such-transition"
	CodeNoSuchAction      = "no-such-action"
	CodeSchemaInvalid     = "schema-invalid"
	CodeValueInvalid      = "value-invalid"
	CodeRefUnresolved     = "ref-unresolved"
	CodeSpawnError        = "spawn-error"
	CodeBridgeWriteError  = "bridge-write-error"
	CodeBridgeClosed      = "bridge-closed"
	CodeTransitionInvalid = "transition-validation-error"
)
