package util

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Error codes rendered in the "error" field of responses.
const (
	CodeAuthentication  = "AUTHENTICATION_ERROR"
	CodeAuthorization   = "AUTHORIZATION_ERROR"
	CodeValidation      = "VALIDATION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT_ERROR"
	CodeRateLimit       = "RATE_LIMIT_ERROR"
	CodeExternalService = "EXTERNAL_SERVICE_ERROR"
	CodeRequestTimeout  = "REQUEST_TIMEOUT"
	CodeHTTP            = "HTTP_ERROR"
	CodeInternal        = "INTERNAL_ERROR"
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
	return NewDomainError(CodeValidation, message, http.StatusUnprocessableEntity, details)
}

func NewBadRequest(message string) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, nil)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	details["resource"] = resource
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewAuthenticationError(message string) error {
	if message == "" {
		message = "Authentication failed"
	}
	return NewDomainError(CodeAuthentication, message, http.StatusUnauthorized, nil)
}

func NewAuthorizationError(message string) error {
	if message == "" {
		message = "Insufficient permissions"
	}
	return NewDomainError(CodeAuthorization, message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

func NewRateLimited() error {
	return NewDomainError(CodeRateLimit, "Rate limit exceeded", http.StatusTooManyRequests, nil)
}

func NewExternalServiceError(service string, err error) error {
	return &DomainError{
		Code:       CodeExternalService,
		Message:    "External service error",
		HTTPStatus: http.StatusBadGateway,
		Details:    map[string]any{"service": service},
		Err:        err,
	}
}

func NewRequestTimeout(err error) error {
	return &DomainError{
		Code:       CodeRequestTimeout,
		Message:    "request cancelled or timed out",
		HTTPStatus: http.StatusRequestTimeout,
		Err:        err,
	}
}

func NewHTTPError(status int, message string) error {
	return NewDomainError(CodeHTTP, message, status, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "An internal server error occurred",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
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
		return NewNotFound("resource", nil).(*DomainError)
	}
	return NewInternalError(err).(*DomainError)
}

func MapError(err error) error {
	return ToDomainError(err)
}
