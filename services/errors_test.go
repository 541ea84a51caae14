package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDomainError(t *testing.T) {
	baseErr := errors.New("base error")
	domainErr := NewDomainError(ErrorTypeUnauthenticated, CodeTokenExpired, "token has expired", baseErr)

	assert.Equal(t, ErrorTypeUnauthenticated, domainErr.Type)
	assert.Equal(t, CodeTokenExpired, domainErr.Code)
	assert.Equal(t, "token has expired", domainErr.Message)
	assert.Equal(t, baseErr, domainErr.Err)
	assert.Nil(t, domainErr.Details)
}

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *DomainError
		wantMsg string
	}{
		{
			name:    "error with wrapped error",
			err:     NewDomainError(ErrorTypeNotFound, CodeNotFound, "user not found", errors.New("db error")),
			wantMsg: "not_found: user not found (db error)",
		},
		{
			name:    "error without wrapped error",
			err:     NewDomainError(ErrorTypeForbidden, CodeInactiveUser, "inactive user", nil),
			wantMsg: "inactive_user: inactive user",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMsg, tt.err.Error())
		})
	}
}

func TestDomainError_Unwrap(t *testing.T) {
	baseErr := errors.New("base error")
	domainErr := WrapInternal("internal error", baseErr)

	assert.True(t, errors.Is(domainErr, baseErr))
}

func TestDomainError_Is(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{
			name:   "same type and code",
			err:    Unauthenticated(CodeTokenExpired, "expired", errors.New("cause")),
			target: ErrTokenExpired,
			want:   true,
		},
		{
			name:   "same type different code",
			err:    Unauthenticated(CodeInvalidTokenType, "refresh", nil),
			target: ErrTokenExpired,
			want:   false,
		},
		{
			name:   "wrapped domain error",
			err:    fmt.Errorf("authenticate: %w", ErrInactiveUser),
			target: ErrInactiveUser,
			want:   true,
		},
		{
			name:   "non-domain error",
			err:    errors.New("plain"),
			target: ErrInternal,
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.Is(tt.err, tt.target))
		})
	}
}

func TestDomainError_WithDetail(t *testing.T) {
	err := Forbidden(CodePermissionDenied, "permission denied").WithDetail("permission", "read:transactions")

	require.NotNil(t, err.Details)
	assert.Equal(t, "read:transactions", err.Details["permission"])
	assert.Nil(t, ErrPermissionDenied.Details, "sentinel must stay untouched")
}

func TestRateLimited(t *testing.T) {
	err := RateLimited(60)

	assert.True(t, IsRateLimitError(err))
	assert.Equal(t, CodeRateLimitExceeded, GetErrorCode(err))
	assert.Equal(t, 60, GetErrorDetails(err)["retry_after"])
}

func TestErrorTypeHelpers(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"unauthenticated", ErrInvalidCredentials, IsUnauthenticatedError},
		{"forbidden", ErrInsufficientPermissions, IsForbiddenError},
		{"rate limit", ErrRateLimitExceeded, IsRateLimitError},
		{"validation", NewValidationError("bad", nil), IsValidationError},
		{"not found", ErrUserNotFound, IsNotFoundError},
		{"conflict", ErrEmailAlreadyRegistered, IsConflictError},
		{"unavailable", Unavailable("lookup timed out", nil), IsUnavailableError},
		{"internal", WrapInternal("boom", nil), IsInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(tt.err))
			assert.True(t, tt.check(fmt.Errorf("wrapped: %w", tt.err)))
			assert.False(t, tt.check(errors.New("plain")))
		})
	}
}

func TestGetErrorAccessors(t *testing.T) {
	err := NewValidationError("Validation failed", map[string]string{"email": "email is required"})

	assert.Equal(t, ErrorTypeValidation, GetErrorType(err))
	assert.Equal(t, CodeValidationFailed, GetErrorCode(err))
	assert.Equal(t, "Validation failed", GetErrorMessage(err))
	assert.Equal(t, "email is required", GetErrorDetails(err)["email"])

	plain := errors.New("plain")
	assert.Empty(t, GetErrorType(plain))
	assert.Empty(t, GetErrorCode(plain))
	assert.Nil(t, GetErrorDetails(plain))
}

func TestDomainError_Wrap(t *testing.T) {
	cause := errors.New("signature mismatch")
	err := ErrTokenValidationFailed.Wrap(cause)

	assert.ErrorIs(t, err, ErrTokenValidationFailed)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "token_validation_failed: token validation failed (signature mismatch)", err.Error())
	assert.Nil(t, ErrTokenValidationFailed.Err, "wrapping must not mutate the shared variable")

	limited := RateLimited(30)
	wrapped := limited.Wrap(cause)
	wrapped.WithDetail("retry_after", 5)
	assert.Equal(t, 30, limited.Details["retry_after"])
}
