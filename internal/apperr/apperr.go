// Package apperr defines the stable error-code taxonomy shared by every
// handler and service in the platform, so a failure can cross a service
// boundary (orchestrator -> dispatcher -> HTTP handler) without losing its
// machine-readable identity.
package apperr

import (
	"errors"
	"fmt"
)

// Code is a stable, externally-visible error identifier.
type Code string

const (
	CodeAuthenticationRequired  Code = "AUTHENTICATION_REQUIRED"
	CodeInvalidToken            Code = "INVALID_TOKEN"
	CodeTenantContextRequired   Code = "TENANT_CONTEXT_REQUIRED"
	CodeTenantAccessDenied      Code = "TENANT_ACCESS_DENIED"
	CodeInsufficientPermissions Code = "INSUFFICIENT_PERMISSIONS"
	CodeValidationFailed        Code = "VALIDATION_FAILED"
	CodeConsentRequired         Code = "CONSENT_REQUIRED"
	CodeRateLimitExceeded       Code = "RATE_LIMIT_EXCEEDED"
	CodeFourEyesViolation       Code = "FOUR_EYES_VIOLATION"
	CodeProviderUnavailable     Code = "PROVIDER_UNAVAILABLE"
	CodeCredentialValidation    Code = "CREDENTIAL_VALIDATION_FAILED"
	CodeNotFound                Code = "NOT_FOUND"
	CodeConflict                Code = "CONFLICT"
	CodeInternal                Code = "INTERNAL"
)

// httpStatus maps each code to the status the HTTP layer should answer with.
var httpStatus = map[Code]int{
	CodeAuthenticationRequired:  401,
	CodeInvalidToken:            401,
	CodeTenantContextRequired:   400,
	CodeTenantAccessDenied:      403,
	CodeInsufficientPermissions: 403,
	CodeValidationFailed:        422,
	CodeConsentRequired:         409,
	CodeRateLimitExceeded:       429,
	CodeFourEyesViolation:       409,
	CodeProviderUnavailable:     503,
	CodeCredentialValidation:    422,
	CodeNotFound:                404,
	CodeConflict:                409,
	CodeInternal:                500,
}

// Error is the typed error every package returns for anything the caller
// (ultimately an HTTP response or an audit entry) needs to distinguish by
// code rather than by matching message text.
type Error struct {
	Code    Code
	Message string
	Details map[string]any
	Wrapped error
}

func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Wrapped }

// HTTPStatus returns the response status this code should render as.
func (e *Error) HTTPStatus() int {
	if s, ok := httpStatus[e.Code]; ok {
		return s
	}
	return 500
}

// New constructs an Error with no wrapped cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error, preserving it for
// %w-style unwrapping and logging.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Wrapped: cause}
}

// WithDetails attaches field-level validation detail (spec: VALIDATION_FAILED
// "details enumerate offending fields").
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// As extracts an *Error from err if present.
func As(err error) (*Error, bool) {
	var target *Error
	ok := errors.As(err, &target)
	return target, ok
}
