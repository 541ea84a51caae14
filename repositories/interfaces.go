package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/upb/banking-api/models"
)

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}

// UserRepository handles user account data operations.
// Lookups that find nothing return services.ErrUserNotFound; a duplicate
// email on Create returns services.ErrEmailAlreadyRegistered.
type UserRepository interface {
	// Create stores a new user
	Create(ctx context.Context, user *models.User) error

	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	// GetByEmail retrieves a user by email, compared case-insensitively
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// UpdatePassword replaces the stored credential digest
	UpdatePassword(ctx context.Context, id uuid.UUID, hashedPassword string) error

	// UpdateLastLogin records a successful login time
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Users UserRepository
}
