// Package gate provides the request gate's value types: inbound requests,
// processing stages and the caller-visible error taxonomy.
package gate

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is a caller-visible error category.
type Kind string

const (
	KindInvalidFormat      Kind = "invalid_format"
	KindUnauthorized       Kind = "unauthorized"
	KindQuotaExceeded      Kind = "quota_exceeded"
	KindInvalidSubject     Kind = "invalid_subject"
	KindNotFound           Kind = "not_found"
	KindStorageUnavailable Kind = "storage_unavailable"
	KindInternal           Kind = "internal_error"
	KindDuplicateContact   Kind = "duplicate_contact"
	KindInvalidInput       Kind = "invalid_input"
)

// StatusCode maps an error kind to its HTTP status.
// This is a PURE function.
func StatusCode(k Kind) int {
	switch k {
	case KindInvalidFormat, KindUnauthorized:
		return http.StatusUnauthorized
	case KindQuotaExceeded:
		return http.StatusTooManyRequests
	case KindInvalidSubject:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindStorageUnavailable:
		return http.StatusServiceUnavailable
	case KindDuplicateContact:
		return http.StatusConflict
	case KindInvalidInput:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Expected reports whether the kind is an ordinary user-facing outcome
// rather than a system fault. Expected outcomes are never logged as errors.
func (k Kind) Expected() bool {
	switch k {
	case KindInvalidFormat, KindUnauthorized, KindQuotaExceeded,
		KindInvalidSubject, KindNotFound, KindDuplicateContact, KindInvalidInput:
		return true
	}
	return false
}

// Error is a categorized failure. Limit and Used are set for quota rejections.
type Error struct {
	Kind    Kind
	Message string
	Limit   int64
	Used    int64
	Err     error // underlying cause, never shown to callers
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Status returns the HTTP status for the error.
func (e *Error) Status() int {
	return StatusCode(e.Kind)
}

// Constructors for each kind. Messages are safe to show callers.

func InvalidFormat() *Error {
	return &Error{Kind: KindInvalidFormat, Message: "Invalid API key format"}
}

// Unauthorized does not say whether the key exists.
func Unauthorized() *Error {
	return &Error{Kind: KindUnauthorized, Message: "Invalid API key"}
}

func QuotaExceeded(limit, used int64) *Error {
	return &Error{
		Kind:    KindQuotaExceeded,
		Message: fmt.Sprintf("Daily limit of %d requests exceeded", limit),
		Limit:   limit,
		Used:    used,
	}
}

func InvalidSubject(msg string) *Error {
	return &Error{Kind: KindInvalidSubject, Message: msg}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func StorageUnavailable(err error) *Error {
	return &Error{Kind: KindStorageUnavailable, Message: "Service temporarily unavailable", Err: err}
}

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "Internal server error", Err: err}
}

func DuplicateContact(email string) *Error {
	return &Error{Kind: KindDuplicateContact, Message: fmt.Sprintf("An account with email %s already exists", email)}
}

func InvalidInput(msg string) *Error {
	return &Error{Kind: KindInvalidInput, Message: msg}
}

// As extracts a *Error from err. Errors of any other type are reported as
// Internal so callers always get a categorized failure.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var ge *Error
	if errors.As(err, &ge) {
		return ge
	}
	return Internal(err)
}

// KindOf returns the category of err, or "" for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return As(err).Kind
}
