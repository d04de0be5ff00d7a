package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an application error independently of the transport.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindNotFound
	KindAlreadyExists
	KindValidation
	KindNotAuthorized
	KindUnauthenticated
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindAlreadyExists:
		return "already_exists"
	case KindValidation:
		return "validation"
	case KindNotAuthorized:
		return "not_authorized"
	case KindUnauthenticated:
		return "unauthenticated"
	default:
		return "internal"
	}
}

// Error is the single error type returned by repositories and services.
// Detail is safe to show to clients; Err carries the underlying cause for logs.
type Error struct {
	Kind         ErrorKind
	Detail       string
	ResourceType string
	Err          error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Detail, e.Err)
	}
	return e.Detail
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrNotFound        = &Error{Kind: KindNotFound, Detail: "resource not found"}
	ErrAlreadyExists   = &Error{Kind: KindAlreadyExists, Detail: "resource already exists"}
	ErrValidation      = &Error{Kind: KindValidation, Detail: "validation failed"}
	ErrNotAuthorized   = &Error{Kind: KindNotAuthorized, Detail: "not authorized"}
	ErrUnauthenticated = &Error{Kind: KindUnauthenticated, Detail: "not authenticated"}
	ErrInternal        = &Error{Kind: KindInternal, Detail: "internal server error"}
)

func NotFound(resourceType, format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, ResourceType: resourceType, Detail: fmt.Sprintf(format, args...)}
}

func AlreadyExists(resourceType, format string, args ...any) *Error {
	return &Error{Kind: KindAlreadyExists, ResourceType: resourceType, Detail: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Detail: fmt.Sprintf(format, args...)}
}

func NotAuthorized(format string, args ...any) *Error {
	return &Error{Kind: KindNotAuthorized, Detail: fmt.Sprintf(format, args...)}
}

func Unauthenticated(format string, args ...any) *Error {
	return &Error{Kind: KindUnauthenticated, Detail: fmt.Sprintf(format, args...)}
}

// Internal hides cause behind a generic message.
func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Detail: "internal server error", Err: cause}
}

// KindOf reports the kind of err, treating foreign errors as internal.
func KindOf(err error) ErrorKind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}
