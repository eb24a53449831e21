// Package core defines the error taxonomy shared by every service in the
// IAM core. Repositories and lower-level packages raise their own typed
// errors; service code translates those into an Error here, and the HTTP
// layer is the only place that maps a Kind to a status code.
package core

import (
	"errors"
	"fmt"
)

// Kind enumerates the unified error taxonomy. See spec §7.
type Kind string

const (
	KindInvalidRealm        Kind = "invalid_realm"
	KindInvalidClient       Kind = "invalid_client"
	KindInvalidUser         Kind = "invalid_user"
	KindInvalidPassword     Kind = "invalid_password"
	KindInvalidRefreshToken Kind = "invalid_refresh_token"
	KindInvalidState        Kind = "invalid_state"
	KindInvalidRequest      Kind = "invalid_request"
	KindForbidden           Kind = "forbidden"
	KindNotFound            Kind = "not_found"
	KindConflict            Kind = "conflict"
	KindAlreadyExists       Kind = "already_exists"
	KindBadGateway          Kind = "bad_gateway"
	KindInternal            Kind = "internal_server_error"
	KindRateLimited         Kind = "rate_limited"
)

// Error is the unified error type returned by every service operation.
// Message is always safe to surface to a caller; Internal errors never
// carry their underlying cause in Message.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is allows errors.Is(err, core.NotFound()) style comparisons by Kind alone.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

func newErr(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap attaches an internal cause to an Error without leaking it into Message.
func (e *Error) Wrap(cause error) *Error {
	return &Error{Kind: e.Kind, Message: e.Message, cause: cause}
}

func InvalidRealm(msg string) *Error        { return newErr(KindInvalidRealm, msg) }
func InvalidClient(msg string) *Error       { return newErr(KindInvalidClient, msg) }
func InvalidUser(msg string) *Error         { return newErr(KindInvalidUser, msg) }
func InvalidPassword(msg string) *Error     { return newErr(KindInvalidPassword, msg) }
func InvalidRefreshToken(msg string) *Error { return newErr(KindInvalidRefreshToken, msg) }
func InvalidState(msg string) *Error        { return newErr(KindInvalidState, msg) }
func InvalidRequest(msg string) *Error      { return newErr(KindInvalidRequest, msg) }
func Forbidden(msg string) *Error           { return newErr(KindForbidden, msg) }
func NotFound() *Error                      { return newErr(KindNotFound, "") }
func Conflict(msg string) *Error            { return newErr(KindConflict, msg) }
func AlreadyExists(msg string) *Error       { return newErr(KindAlreadyExists, msg) }
func BadGateway(msg string) *Error          { return newErr(KindBadGateway, msg) }
func RateLimited(msg string) *Error         { return newErr(KindRateLimited, msg) }

// Internal wraps an arbitrary cause. Message is never exposed: callers must
// rely on logging the cause server-side.
func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Message: "", cause: cause}
}

// KindOf extracts the Kind of err if it is (or wraps) a *Error, defaulting to
// KindInternal for anything else — repository failures upstream of policy
// must never surface as Forbidden.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
