package auth

import (
	"errors"
	"fmt"
)

// Kind classifies pipeline failures for transport mapping.
type Kind int

const (
	// KindInternal is an infrastructure failure (store down, unexpected error).
	KindInternal Kind = iota
	// KindUnauthenticated requires the caller to re-authenticate.
	KindUnauthenticated
	// KindForbidden means the caller is known but the action is disallowed.
	KindForbidden
	// KindConfiguration is a deployment mistake: missing secret, unknown permission names.
	KindConfiguration
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindConfiguration:
		return "configuration"
	default:
		return "internal"
	}
}

var (
	ErrMissingToken         = errors.New("missing bearer token")
	ErrUnsupportedTokenType = errors.New("unsupported token type")
	ErrInvalidToken         = errors.New("invalid token")
	ErrMissingSubject       = errors.New("token missing subject")
	ErrAccountDeleted       = errors.New("account deleted")
	ErrAccountNotActive     = errors.New("account not active")
)

// Error is a classified pipeline failure. Message is safe to return to the
// client; Err carries the cause for logs and errors.Is.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Err == nil:
		return e.Message
	case e.Message == "":
		return e.Err.Error()
	default:
		return e.Message + ": " + e.Err.Error()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Unauthenticated wraps cause as a re-authentication failure.
func Unauthenticated(message string, cause error) *Error {
	return &Error{Kind: KindUnauthenticated, Message: message, Err: cause}
}

// Forbidden builds a denial with an audit-friendly message.
func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

// Forbiddenf is Forbidden with formatting.
func Forbiddenf(format string, args ...any) *Error {
	return Forbidden(fmt.Sprintf(format, args...))
}

// ConfigurationError reports a deployment mistake.
func ConfigurationError(message string, cause error) *Error {
	return &Error{Kind: KindConfiguration, Message: message, Err: cause}
}

// Internal wraps an infrastructure failure.
func Internal(message string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: cause}
}

// KindOf returns the classification of err. Unclassified errors are internal.
func KindOf(err error) Kind {
	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr.Kind
	}
	return KindInternal
}

// MessageOf returns the client-safe message of a classified error.
func MessageOf(err error) string {
	var authErr *Error
	if errors.As(err, &authErr) && authErr.Message != "" {
		return authErr.Message
	}
	return "internal error"
}
