// Package errkind gives every error raised inside gasable-hub a typed Kind so
// the HTTP layer can map it to the right status code and the status
// component can file it into the recent-errors ring without re-parsing
// strings.
package errkind

import (
	"errors"
	"fmt"
)

// Kind enumerates the error taxonomy components agree on.
type Kind string

const (
	BadRequest         Kind = "BadRequest"
	MissingCredential  Kind = "MissingCredential"
	UpstreamTimeout    Kind = "UpstreamTimeout"
	UpstreamUnavailable Kind = "UpstreamUnavailable"
	ToolError          Kind = "ToolError"
	ToolTimeout        Kind = "ToolTimeout"
	Forbidden          Kind = "Forbidden"
	NotFound           Kind = "NotFound"
	ConstraintViolation Kind = "ConstraintViolation"
	Internal           Kind = "Internal"
)

// Error wraps an underlying error with a Kind, carrying enough context for
// the HTTP boundary to respond without inspecting the message text.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with the given kind and operation label.
func New(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf builds a Kind error from a format string, mirroring fmt.Errorf.
func Newf(kind Kind, op, format string, args ...any) error {
	return New(kind, op, fmt.Errorf(format, args...))
}

// Of extracts the Kind carried by err, walking the Unwrap chain. Errors with
// no attached Kind are reported as Internal.
func Of(err error) Kind {
	if err == nil {
		return ""
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}
	return Internal
}

// HTTPStatus maps a Kind to the status code the HTTP handlers should return.
func HTTPStatus(k Kind) int {
	switch k {
	case BadRequest:
		return 400
	case MissingCredential, Forbidden:
		return 403
	case NotFound:
		return 404
	case ConstraintViolation:
		return 409
	case ToolTimeout, UpstreamTimeout:
		return 504
	case UpstreamUnavailable:
		return 502
	case ToolError:
		return 422
	default:
		return 500
	}
}
