package domain

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes failures returned by core operations.
type ErrorKind string

const (
	// KindValidation indicates caller-supplied data failed a field rule.
	KindValidation ErrorKind = "VALIDATION"

	// KindNotFound indicates a referenced entity does not exist.
	KindNotFound ErrorKind = "NOT_FOUND"

	// KindConflict indicates a uniqueness or "already assigned" rule was violated.
	KindConflict ErrorKind = "CONFLICT"

	// KindRestricted indicates a deletion would orphan a dependent.
	KindRestricted ErrorKind = "RESTRICTED"

	// KindStoreFailure indicates the persistence layer itself failed.
	KindStoreFailure ErrorKind = "STORE_FAILURE"

	// KindUnauthenticated indicates a credential check failed. The message
	// never says whether the user or the secret was wrong.
	KindUnauthenticated ErrorKind = "UNAUTHENTICATED"
)

// GenericCredentialMessage is returned for every credential failure.
const GenericCredentialMessage = "invalid username or password"

// GenericStoreMessage is returned for every storage failure.
const GenericStoreMessage = "storage failure"

// Error is the failure value returned by every core operation.
type Error struct {
	// Kind identifies the error category.
	Kind ErrorKind

	// Message is a human-readable description safe to show to callers.
	Message string

	// Err is the underlying cause, if any. It is never part of Message.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind, so errors.Is(err, &Error{Kind: KindNotFound})
// works without comparing messages.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// Validationf builds a KindValidation error.
func Validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFoundf builds a KindNotFound error.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Conflictf builds a KindConflict error.
func Conflictf(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// Restrictedf builds a KindRestricted error.
func Restrictedf(format string, args ...any) *Error {
	return &Error{Kind: KindRestricted, Message: fmt.Sprintf(format, args...)}
}

// StoreFailure wraps a persistence error behind the generic message.
func StoreFailure(cause error) *Error {
	return &Error{Kind: KindStoreFailure, Message: GenericStoreMessage, Err: cause}
}

// Unauthenticated builds the indistinguishable credential failure.
func Unauthenticated() *Error {
	return &Error{Kind: KindUnauthenticated, Message: GenericCredentialMessage}
}

// KindOf returns the kind of err, or "" if err is nil or not an *Error.
// Uses errors.As to handle wrapped errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// IsNotFound reports whether err is a not-found failure.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsConflict reports whether err is a conflict failure.
func IsConflict(err error) bool { return KindOf(err) == KindConflict }

// IsRestricted reports whether err is a restricted-deletion failure.
func IsRestricted(err error) bool { return KindOf(err) == KindRestricted }

// IsStoreFailure reports whether err is a storage failure.
func IsStoreFailure(err error) bool { return KindOf(err) == KindStoreFailure }

// IsUnauthenticated reports whether err is a credential failure.
func IsUnauthenticated(err error) bool { return KindOf(err) == KindUnauthenticated }
