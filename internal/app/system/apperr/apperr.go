// Package apperr is the error taxonomy shared by the plan and chat
// components. Every failure crossing a component boundary is an *Error
// carrying a Kind and a human-readable message.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/dalemusser/planhub/internal/app/system/docstore"
)

// Kind is a machine-readable failure category.
type Kind string

const (
	KindUnknown          Kind = "unknown"
	KindNotFound         Kind = "not_found"
	KindUnauthorized     Kind = "unauthorized"
	KindValidationFailed Kind = "validation_failed"
	KindStoreUnavailable Kind = "store_unavailable"

	// Soft outcomes. Join and Leave treat these as success; they are
	// exposed so callers that care can still detect them.
	KindAlreadyExists Kind = "already_exists"
	KindNotAMember    Kind = "not_a_member"
)

// Error is a typed failure. Op names the operation ("membership.Join").
type Error struct {
	Op      string
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Message != "":
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// E builds an error without a cause.
func E(op string, kind Kind, msg string) error {
	return &Error{Op: op, Kind: kind, Message: msg}
}

// Wrap builds an error around a cause.
func Wrap(op string, kind Kind, msg string, err error) error {
	return &Error{Op: op, Kind: kind, Message: msg, Err: err}
}

// Validation is shorthand for a ValidationFailed error.
func Validation(op, msg string) error { return E(op, KindValidationFailed, msg) }

// Unauthorized is shorthand for an Unauthorized error.
func Unauthorized(op, msg string) error { return E(op, KindUnauthorized, msg) }

// FromStore converts a document store error into a typed error. Errors that
// are already typed pass through unchanged.
func FromStore(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		return Wrap(op, KindNotFound, "plan not found", err)
	case errors.Is(err, context.DeadlineExceeded):
		return Wrap(op, KindStoreUnavailable, "the store did not respond in time", err)
	case errors.Is(err, context.Canceled):
		return Wrap(op, KindStoreUnavailable, "the request was cancelled", err)
	default:
		return Wrap(op, KindStoreUnavailable, "the store is unavailable", err)
	}
}

// KindOf returns the Kind of err, or KindUnknown.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// MessageOf returns the human-readable message for err.
func MessageOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	if err == nil {
		return ""
	}
	return "an unexpected error occurred"
}

// HTTPStatus maps a Kind to a transport status.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusForbidden
	case KindValidationFailed:
		return http.StatusUnprocessableEntity
	case KindAlreadyExists, KindNotAMember:
		return http.StatusConflict
	case KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
