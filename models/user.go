package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a stored account. HashedPassword is the credential digest
// and is never serialized.
type User struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	Email          string     `json:"email" db:"email"`
	FullName       string     `json:"full_name" db:"full_name"`
	HashedPassword string     `json:"-" db:"hashed_password"`
	IsActive       bool       `json:"is_active" db:"is_active"`
	IsSuperuser    bool       `json:"is_superuser" db:"is_superuser"`
	Scopes         []string   `json:"scopes" db:"scopes"`
	LastLoginAt    *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the User model
func (User) TableName() string {
	return "users"
}

// NewUser creates a new active, non-privileged User
func NewUser(email, fullName, hashedPassword string) *User {
	now := time.Now().UTC()
	return &User{
		ID:             uuid.New(),
		Email:          email,
		FullName:       fullName,
		HashedPassword: hashedPassword,
		IsActive:       true,
		Scopes:         []string{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Identity materializes the request-scoped principal for this user
func (u *User) Identity() *Identity {
	return NewIdentity(u.ID.String(), u.Email, u.IsActive, u.IsSuperuser, u.Scopes)
}
