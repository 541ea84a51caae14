package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type registerForm struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,password"`
	FullName string `json:"full_name" validate:"max=10"`
}

type changeForm struct {
	Current string `json:"current_password" validate:"required"`
	New     string `json:"new_password" validate:"required,password,nefield=Current"`
}

func TestValidateStruct(t *testing.T) {
	t.Run("valid struct", func(t *testing.T) {
		s := registerForm{
			Email:    "john@example.com",
			Password: "Str0ng!Passw0rd",
			FullName: "John",
		}

		err := ValidateStruct(&s)
		assert.NoError(t, err)
	})

	t.Run("missing required field", func(t *testing.T) {
		s := registerForm{
			Password: "Str0ng!Passw0rd",
		}

		err := ValidateStruct(&s)
		assert.Error(t, err)
		assert.True(t, IsValidationError(err))

		fields := GetValidationFields(err)
		assert.Equal(t, "email is required", fields["email"])
	})

	t.Run("invalid email", func(t *testing.T) {
		s := registerForm{
			Email:    "invalid-email",
			Password: "Str0ng!Passw0rd",
		}

		err := ValidateStruct(&s)
		require.Error(t, err)

		fields := GetValidationFields(err)
		assert.Equal(t, "email must be a valid email", fields["email"])
	})

	t.Run("weak password", func(t *testing.T) {
		s := registerForm{
			Email:    "john@example.com",
			Password: "password",
		}

		err := ValidateStruct(&s)
		require.Error(t, err)

		fields := GetValidationFields(err)
		assert.Contains(t, fields["password"], "at least 12 characters")
	})

	t.Run("too long", func(t *testing.T) {
		s := registerForm{
			Email:    "john@example.com",
			Password: "Str0ng!Passw0rd",
			FullName: "A very long full name",
		}

		err := ValidateStruct(&s)
		require.Error(t, err)
		assert.Equal(t, "full_name must be at most 10", GetValidationFields(err)["full_name"])
	})

	t.Run("new password equal to current", func(t *testing.T) {
		s := changeForm{
			Current: "Str0ng!Passw0rd",
			New:     "Str0ng!Passw0rd",
		}

		err := ValidateStruct(&s)
		require.Error(t, err)
		assert.Contains(t, GetValidationFields(err), "new_password")
	})
}

func TestStrongPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		want     bool
	}{
		{"all classes", "Str0ng!Passw0rd", true},
		{"exactly twelve", "Abcdefgh1!xy", true},
		{"eleven", "Abcdefg1!xy", false},
		{"no upper", "str0ng!passw0rd", false},
		{"no lower", "STR0NG!PASSW0RD", false},
		{"no digit", "Strong!Password", false},
		{"no special", "Str0ngPassw0rd", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StrongPassword(tt.password))
		})
	}
}

func TestValidateUUID(t *testing.T) {
	tests := []struct {
		name      string
		uuid      string
		wantError bool
	}{
		{
			name:      "valid UUID",
			uuid:      "550e8400-e29b-41d4-a716-446655440000",
			wantError: false,
		},
		{
			name:      "invalid UUID - wrong format",
			uuid:      "not-a-uuid",
			wantError: true,
		},
		{
			name:      "empty string",
			uuid:      "",
			wantError: true,
		},
		{
			name:      "invalid UUID - missing parts",
			uuid:      "550e8400-e29b-41d4",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUUID(tt.uuid)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewValidationError(t *testing.T) {
	err := ValidateStruct(&registerForm{Email: "invalid-email"})
	require.Error(t, err)

	validationErr, ok := err.(*ValidationError)
	require.True(t, ok)

	assert.Equal(t, "Validation failed", validationErr.Message)
	assert.Contains(t, validationErr.Fields, "email")
	assert.Contains(t, validationErr.Fields, "password")
}

func TestIsValidationError(t *testing.T) {
	assert.True(t, IsValidationError(&ValidationError{Message: "test"}))
	assert.False(t, IsValidationError(assert.AnError))
	assert.Nil(t, GetValidationFields(assert.AnError))
}
