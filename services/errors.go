package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeUnauthenticated ErrorType = "unauthenticated"
	ErrorTypeForbidden       ErrorType = "forbidden"
	ErrorTypeRateLimit       ErrorType = "rate_limit"
	ErrorTypeValidation      ErrorType = "validation"
	ErrorTypeNotFound        ErrorType = "not_found"
	ErrorTypeConflict        ErrorType = "conflict"
	ErrorTypeUnavailable     ErrorType = "unavailable"
	ErrorTypeInternal        ErrorType = "internal"
)

// Machine-readable codes surfaced in the error envelope
const (
	CodeInvalidCredentials     = "invalid_credentials"
	CodeTokenExpired           = "token_expired"
	CodeInvalidTokenType       = "invalid_token_type"
	CodeTokenValidationFailed  = "token_validation_failed"
	CodeInactiveUser           = "inactive_user"
	CodeInsufficientPermission = "insufficient_permissions"
	CodePermissionDenied       = "permission_denied"
	CodeRateLimitExceeded      = "rate_limit_exceeded"
	CodeInvalidCurrentPassword = "invalid_current_password"
	CodeEmailAlreadyRegistered = "email_already_registered"
	CodeValidationFailed       = "validation_failed"
	CodeNotFound               = "not_found"
	CodeServiceUnavailable     = "service_unavailable"
	CodeInternal               = "internal_error"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Code    string
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is. Two domain errors match when type and code match.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Wrap returns a copy of e carrying err as its cause. The receiver is left
// untouched so package-level variables can be wrapped safely.
func (e *DomainError) Wrap(err error) *DomainError {
	c := *e
	c.Err = err
	if e.Details != nil {
		c.Details = make(map[string]interface{}, len(e.Details))
		for k, v := range e.Details {
			c.Details[k] = v
		}
	}
	return &c
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, code, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Domain error variables. Use them as errors.Is targets; build new
// instances with the constructors below when a cause or details are attached.
var (
	ErrInvalidCredentials    = NewDomainError(ErrorTypeUnauthenticated, CodeInvalidCredentials, "could not validate credentials", nil)
	ErrTokenExpired          = NewDomainError(ErrorTypeUnauthenticated, CodeTokenExpired, "token has expired", nil)
	ErrInvalidTokenType      = NewDomainError(ErrorTypeUnauthenticated, CodeInvalidTokenType, "invalid token type", nil)
	ErrTokenValidationFailed = NewDomainError(ErrorTypeUnauthenticated, CodeTokenValidationFailed, "token validation failed", nil)

	ErrInactiveUser            = NewDomainError(ErrorTypeForbidden, CodeInactiveUser, "inactive user", nil)
	ErrInsufficientPermissions = NewDomainError(ErrorTypeForbidden, CodeInsufficientPermission, "the user doesn't have enough privileges", nil)
	ErrPermissionDenied        = NewDomainError(ErrorTypeForbidden, CodePermissionDenied, "permission denied", nil)
	ErrInvalidCurrentPassword  = NewDomainError(ErrorTypeForbidden, CodeInvalidCurrentPassword, "current password is incorrect", nil)

	ErrRateLimitExceeded = NewDomainError(ErrorTypeRateLimit, CodeRateLimitExceeded, "too many requests", nil)

	ErrEmailAlreadyRegistered = NewDomainError(ErrorTypeConflict, CodeEmailAlreadyRegistered, "email already registered", nil)
	ErrUserNotFound           = NewDomainError(ErrorTypeNotFound, CodeNotFound, "user not found", nil)

	ErrServiceUnavailable = NewDomainError(ErrorTypeUnavailable, CodeServiceUnavailable, "service temporarily unavailable", nil)
	ErrInternal           = NewDomainError(ErrorTypeInternal, CodeInternal, "internal server error", nil)
)

// Unauthenticated builds an authentication failure with the given code
func Unauthenticated(code, message string, err error) *DomainError {
	return NewDomainError(ErrorTypeUnauthenticated, code, message, err)
}

// Forbidden builds an authorization failure with the given code
func Forbidden(code, message string) *DomainError {
	return NewDomainError(ErrorTypeForbidden, code, message, nil)
}

// RateLimited builds a rate limit rejection carrying the retry hint in seconds
func RateLimited(retryAfterSeconds int) *DomainError {
	return NewDomainError(ErrorTypeRateLimit, CodeRateLimitExceeded, "too many requests, please try again later", nil).
		WithDetail("retry_after", retryAfterSeconds)
}

// Unavailable wraps a dependency failure such as an identity lookup timeout
func Unavailable(message string, err error) *DomainError {
	return NewDomainError(ErrorTypeUnavailable, CodeServiceUnavailable, message, err)
}

// Error type checking helper functions

// IsUnauthenticatedError checks if an error is an authentication failure
func IsUnauthenticatedError(err error) bool {
	return GetErrorType(err) == ErrorTypeUnauthenticated
}

// IsForbiddenError checks if an error is a forbidden error
func IsForbiddenError(err error) bool {
	return GetErrorType(err) == ErrorTypeForbidden
}

// IsRateLimitError checks if an error is a rate limit error
func IsRateLimitError(err error) bool {
	return GetErrorType(err) == ErrorTypeRateLimit
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return GetErrorType(err) == ErrorTypeValidation
}

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return GetErrorType(err) == ErrorTypeNotFound
}

// IsConflictError checks if an error is a conflict error
func IsConflictError(err error) bool {
	return GetErrorType(err) == ErrorTypeConflict
}

// IsUnavailableError checks if an error is a dependency outage
func IsUnavailableError(err error) bool {
	return GetErrorType(err) == ErrorTypeUnavailable
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	return GetErrorType(err) == ErrorTypeInternal
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorCode returns the machine code of a domain error, or empty string if not a domain error
func GetErrorCode(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// GetErrorMessage returns the human-readable message of a domain error
func GetErrorMessage(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, CodeInternal, message, err)
}

// NewValidationError builds a validation failure with per-field messages
func NewValidationError(message string, fields map[string]string) *DomainError {
	e := NewDomainError(ErrorTypeValidation, CodeValidationFailed, message, nil)
	for k, v := range fields {
		e.WithDetail(k, v)
	}
	return e
}
