// Convene - Personality-Aware Place Ratings and Group Decisions
// Copyright 2026 The Convene Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/convene-app/convene

package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an error for transport mapping and retry decisions.
// Every error crossing a package boundary carries exactly one kind; the API
// layer maps kinds to HTTP status codes and machine-readable error codes.
type ErrorKind int

const (
	// KindUnknown is the zero value for unclassified errors.
	KindUnknown ErrorKind = iota

	// KindNotFound indicates a referenced entity does not exist.
	KindNotFound

	// KindValidation indicates the input violates a domain rule.
	KindValidation

	// KindUnauthorized indicates the actor may not perform the operation,
	// such as a non-member voting or a non-creator finalizing a group.
	KindUnauthorized

	// KindConflict indicates the operation lost a concurrency race or the
	// entity is in a state that forbids it, such as voting on an archived
	// group.
	KindConflict

	// KindUnavailable indicates an external collaborator failed and no
	// fallback could serve the request.
	KindUnavailable
)

// String returns the API error code for the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "NOT_FOUND"
	case KindValidation:
		return "VALIDATION_ERROR"
	case KindUnauthorized:
		return "UNAUTHORIZED"
	case KindConflict:
		return "CONFLICT"
	case KindUnavailable:
		return "EXTERNAL_UNAVAILABLE"
	default:
		return "UNKNOWN"
	}
}

// HTTPStatus returns the HTTP status code the kind maps to.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindNotFound:
		return 404
	case KindValidation:
		return 400
	case KindUnauthorized:
		return 403
	case KindConflict:
		return 409
	case KindUnavailable:
		return 503
	default:
		return 500
	}
}

// Error is the kind-classified error used across all Convene packages.
// Message is safe to surface to API clients; Err holds the underlying
// cause for logs and errors.Is/As chains.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound returns a KindNotFound error.
func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Validation returns a KindValidation error.
func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Unauthorized returns a KindUnauthorized error.
func Unauthorized(format string, args ...interface{}) *Error {
	return &Error{Kind: KindUnauthorized, Message: fmt.Sprintf(format, args...)}
}

// Conflict returns a KindConflict error.
func Conflict(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// Unavailable returns a KindUnavailable error.
func Unavailable(format string, args ...interface{}) *Error {
	return &Error{Kind: KindUnavailable, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to a kind-classified error.
func Wrap(kind ErrorKind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of err, walking the Unwrap chain. Errors that
// carry no *Error report KindUnknown.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
