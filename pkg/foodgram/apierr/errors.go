// Package apierr defines the domain error taxonomy shared by all handlers
// and the renderer that turns those errors into JSON responses.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a domain error and determines its HTTP status.
type Kind string

const (
	KindValidation       Kind = "validation"
	KindAlreadyExists    Kind = "already_exists"
	KindRelationNotFound Kind = "relation_not_found"
	KindNotFound         Kind = "not_found"
	KindSelfSubscription Kind = "self_subscription"
	KindUnauthorized     Kind = "unauthorized"
	KindPermissionDenied Kind = "permission_denied"
	KindTooLarge         Kind = "too_large"
	KindInternal         Kind = "internal"
)

// Status returns the HTTP status code for the kind.
func (k Kind) Status() int {
	switch k {
	case KindValidation, KindAlreadyExists, KindRelationNotFound, KindSelfSubscription:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindPermissionDenied:
		return http.StatusForbidden
	case KindTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error. Code narrows a Kind (e.g. "duplicate_ingredient")
// and Field names the request field the error belongs to, if any.
type Error struct {
	Kind    Kind
	Code    string
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind. When the target carries a
// code the codes must match too, so sentinels like ErrDuplicateIngredient
// can be compared with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

// Status returns the HTTP status code for the error.
func (e *Error) Status() int {
	return e.Kind.Status()
}

// Sentinels for errors.Is comparisons.
var (
	ErrValidation       = &Error{Kind: KindValidation, Message: "Invalid input."}
	ErrAlreadyExists    = &Error{Kind: KindAlreadyExists, Message: "Already exists."}
	ErrRelationNotFound = &Error{Kind: KindRelationNotFound, Message: "Relation does not exist."}
	ErrNotFound         = &Error{Kind: KindNotFound, Message: "Not found."}
	ErrSelfSubscription = &Error{Kind: KindSelfSubscription, Message: "You cannot subscribe to yourself."}
	ErrUnauthorized     = &Error{Kind: KindUnauthorized, Message: "Authentication credentials were not provided."}
	ErrPermissionDenied = &Error{Kind: KindPermissionDenied, Message: "You do not have permission to perform this action."}
	ErrBodyTooLarge     = &Error{Kind: KindTooLarge, Message: "Request body is too large."}

	ErrDuplicateIngredient = &Error{
		Kind:    KindValidation,
		Code:    "duplicate_ingredient",
		Field:   "ingredients",
		Message: "Ingredients should not be repeated.",
	}
)

// Validation returns a field-level validation error.
func Validation(field, message string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

// AlreadyExists returns an AlreadyExists error with a custom message.
func AlreadyExists(message string) *Error {
	return &Error{Kind: KindAlreadyExists, Message: message}
}

// RelationNotFound returns a RelationNotFound error with a custom message.
func RelationNotFound(message string) *Error {
	return &Error{Kind: KindRelationNotFound, Message: message}
}

// NotFound returns a 404 error for a missing entity, e.g. NotFound("Recipe").
func NotFound(entity string) *Error {
	return &Error{Kind: KindNotFound, Message: entity + " not found."}
}

// Unauthorized returns a 401 error with a custom message.
func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

// Internal wraps an unexpected error.
func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// KindOf returns the Kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
