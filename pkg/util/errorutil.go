package util

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Machine-readable error codes surfaced in the error envelope.
const (
	CodeMissingToken       = "MISSING_TOKEN"
	CodeInvalidFormat      = "INVALID_FORMAT"
	CodeEmptyToken         = "EMPTY_TOKEN"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeNotLoggedIn        = "NOT_LOGGED_IN"
	CodeForbidden          = "FORBIDDEN"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeTooManyAttempts    = "TOO_MANY_ATTEMPTS"
	CodeNotFound           = "NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodeInternal           = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusUnprocessableEntity, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

// NewUnauthenticated is the single outcome for credentials that could not be resolved.
func NewUnauthenticated() error {
	return NewDomainError(CodeInvalidToken, "Unauthenticated.", http.StatusUnauthorized, nil)
}

// NewTokenRejected reports a malformed credential presentation with its gate code.
func NewTokenRejected(code, message string) error {
	return NewDomainError(code, message, http.StatusUnauthorized, nil)
}

func NewInvalidCredentials() error {
	return NewDomainError(CodeInvalidCredentials, "Invalid credentials.", http.StatusUnauthorized, nil)
}

func NewNotLoggedIn() error {
	return NewDomainError(CodeNotLoggedIn, "User is not logged in.", http.StatusForbidden, nil)
}

// NewForbidden lists the permissions the route required.
func NewForbidden(required []string) error {
	return NewDomainError(CodeForbidden, "User does not have the right permissions.", http.StatusForbidden,
		map[string]any{"required_permissions": required})
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

func NewTooManyAttempts() error {
	return NewDomainError(CodeTooManyAttempts, "Too many attempts, slow down.", http.StatusTooManyRequests, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// FromStatus builds a DomainError for framework errors that only carry a status.
func FromStatus(status int, message string) *DomainError {
	code := strings.ToUpper(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	if code == "" {
		code = CodeInternal
	}
	if message == "" {
		message = http.StatusText(status)
	}
	return &DomainError{Code: code, Message: message, HTTPStatus: status}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		if de, ok := NewNotFound("resource", nil).(*DomainError); ok {
			return de
		}
	}
	if de, ok := NewInternalError(err).(*DomainError); ok {
		return de
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}
