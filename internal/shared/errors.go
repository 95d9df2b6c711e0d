package shared

import (
	"errors"
	"fmt"
)

// Kind classifies business errors so transport layers can map them uniformly.
type Kind string

const (
	// KindValidation indicates a rejected input value.
	KindValidation Kind = "VALIDATION"
	// KindInsufficientStock indicates an outbound movement exceeding available stock.
	KindInsufficientStock Kind = "INSUFFICIENT_STOCK"
	// KindAuth indicates a failed or missing authentication.
	KindAuth Kind = "AUTH"
	// KindNotFound indicates a missing resource.
	KindNotFound Kind = "NOT_FOUND"
)

// Error is a typed business error carried across service boundaries.
type Error struct {
	Kind  Kind
	Field string
	Msg   string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// ValidationError builds a KindValidation error for a named field.
func ValidationError(field, msg string) *Error {
	return &Error{Kind: KindValidation, Field: field, Msg: msg}
}

// InsufficientStockError builds a KindInsufficientStock error.
func InsufficientStockError(msg string) *Error {
	return &Error{Kind: KindInsufficientStock, Msg: msg}
}

// AuthError builds a KindAuth error.
func AuthError(msg string) *Error {
	return &Error{Kind: KindAuth, Msg: msg}
}

// NotFoundError builds a KindNotFound error.
func NotFoundError(msg string) *Error {
	return &Error{Kind: KindNotFound, Msg: msg}
}

// KindOf extracts the Kind from err, or "" when err is not a business error.
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return ""
}

// UserSafeMessage returns a message safe to surface to API clients.
// Internal failures collapse to a generic message.
func UserSafeMessage(err error) string {
	var be *Error
	if errors.As(err, &be) {
		return be.Msg
	}
	if errors.Is(err, ErrIdempotencyConflict) {
		return "request already processed"
	}
	return "an unexpected error occurred"
}

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)
