// Package account implements login, registration and credential rotation
// on top of the user store, the credential hasher and the token codec.
package account

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/upb/banking-api/models"
	"github.com/upb/banking-api/repositories"
	"github.com/upb/banking-api/services"
	"github.com/upb/banking-api/services/authz"
	"github.com/upb/banking-api/services/ratelimit"
	"go.uber.org/zap"
)

// TokenTypeBearer is the token_type reported to clients
const TokenTypeBearer = "bearer"

// Hasher hashes and verifies account passwords
type Hasher interface {
	Hash(secret string) (string, error)
	Verify(secret, digest string) bool
}

// Issuer issues access tokens
type Issuer interface {
	IssueAccess(subject, email string, scopes []string, privileged bool) (string, error)
	AccessTTL() time.Duration
}

// IdentityInvalidator drops any cached identity for a subject
type IdentityInvalidator interface {
	Invalidate(ctx context.Context, subject string) error
}

// LoginResult is returned by a successful login
type LoginResult struct {
	AccessToken string
	TokenType   string
	ExpiresIn   int // seconds
	User        *models.User
}

// RegisterInput holds the fields required to create an account
type RegisterInput struct {
	Email    string
	Password string
	FullName string
}

// Service handles account operations
type Service struct {
	users    repositories.UserRepository
	txMgr    repositories.TransactionManager
	hasher   Hasher
	issuer   Issuer
	throttle *ratelimit.LoginThrottle
	cache    IdentityInvalidator
	now      func() time.Time
	logger   *zap.Logger
}

// Option configures a Service
type Option func(*Service)

// WithTransactionManager runs multi-step writes inside a transaction
func WithTransactionManager(txMgr repositories.TransactionManager) Option {
	return func(s *Service) { s.txMgr = txMgr }
}

// WithLoginThrottle limits repeated login attempts per username
func WithLoginThrottle(throttle *ratelimit.LoginThrottle) Option {
	return func(s *Service) { s.throttle = throttle }
}

// WithIdentityInvalidator evicts cached identities after credential changes
func WithIdentityInvalidator(cache IdentityInvalidator) Option {
	return func(s *Service) { s.cache = cache }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new account Service
func NewService(users repositories.UserRepository, hasher Hasher, issuer Issuer, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		users:  users,
		hasher: hasher,
		issuer: issuer,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login verifies the username (email) and password and issues an access token.
// Unknown users and wrong passwords fail identically.
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	now := s.now()

	if s.throttle != nil && !s.throttle.Allow(username, now) {
		s.logger.Warn("login throttled", zap.String("username", username))
		return nil, services.RateLimited(int(s.throttle.RetryAfter() / time.Second))
	}

	user, err := s.users.GetByEmail(ctx, username)
	if err != nil {
		if services.IsNotFoundError(err) {
			return nil, invalidCredentials()
		}
		return nil, services.WrapInternal("failed to load user", err)
	}

	if !s.hasher.Verify(password, user.HashedPassword) {
		return nil, invalidCredentials()
	}

	if !user.IsActive {
		return nil, services.NewDomainError(services.ErrorTypeValidation, services.CodeInactiveUser, "inactive user", nil)
	}

	if s.throttle != nil {
		s.throttle.Reset(username)
	}

	accessToken, err := s.issuer.IssueAccess(user.ID.String(), user.Email, user.Scopes, user.IsSuperuser)
	if err != nil {
		return nil, services.WrapInternal("failed to issue token", err)
	}

	loginAt := now.UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, loginAt); err != nil {
		s.logger.Warn("failed to record last login", zap.String("user_id", user.ID.String()), zap.Error(err))
	} else {
		user.LastLoginAt = &loginAt
	}

	s.logger.Info("user logged in", zap.String("user_id", user.ID.String()))

	return &LoginResult{
		AccessToken: accessToken,
		TokenType:   TokenTypeBearer,
		ExpiresIn:   int(s.issuer.AccessTTL() / time.Second),
		User:        user,
	}, nil
}

// Register creates a new active account. A taken email is a conflict.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" {
		return nil, services.NewValidationError("email and password are required", nil)
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, services.WrapInternal("failed to hash password", err)
	}
	user := models.NewUser(email, strings.TrimSpace(in.FullName), digest)

	err = s.inTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.users.GetByEmail(ctx, email); err == nil {
			return services.ErrEmailAlreadyRegistered
		} else if !services.IsNotFoundError(err) {
			return err
		}
		return s.users.Create(ctx, user)
	})
	if err != nil {
		if services.IsConflictError(err) {
			return nil, err
		}
		return nil, services.WrapInternal("failed to register user", err)
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID.String()))
	return user, nil
}

// ChangePassword replaces the caller's password after verifying the current one
func (s *Service) ChangePassword(ctx context.Context, identity *models.Identity, currentPassword, newPassword string) error {
	id, err := parseUserID(identity)
	if err != nil {
		return err
	}
	if newPassword == "" {
		return services.NewValidationError("new password is required", map[string]string{"password": "required"})
	}
	if newPassword == currentPassword {
		return services.NewValidationError("new password must differ from the current password",
			map[string]string{"password": "must differ from current password"})
	}

	err = s.inTransaction(ctx, func(ctx context.Context) error {
		user, err := s.users.GetByID(ctx, id)
		if err != nil {
			return err
		}

		if err := authz.VerifyCurrentCredential(s.hasher, currentPassword, user.HashedPassword); err != nil {
			s.logger.Warn("password change rejected", zap.String("user_id", id.String()))
			return err
		}

		digest, err := s.hasher.Hash(newPassword)
		if err != nil {
			return services.WrapInternal("failed to hash password", err)
		}
		if err := s.users.UpdatePassword(ctx, id, digest); err != nil {
			return err
		}

		s.logger.Info("user password changed", zap.String("user_id", id.String()))
		return nil
	})
	if err != nil {
		return err
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, identity.UserID); err != nil {
			s.logger.Warn("failed to evict cached identity", zap.String("user_id", id.String()), zap.Error(err))
		}
	}
	return nil
}

// CurrentUser loads the stored account behind identity
func (s *Service) CurrentUser(ctx context.Context, identity *models.Identity) (*models.User, error) {
	id, err := parseUserID(identity)
	if err != nil {
		return nil, err
	}
	return s.GetUser(ctx, id)
}

// GetUser loads an account by ID
func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if services.IsNotFoundError(err) {
			return nil, err
		}
		return nil, services.WrapInternal("failed to load user", err)
	}
	return user, nil
}

func (s *Service) inTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.txMgr == nil {
		return fn(ctx)
	}
	return s.txMgr.InTransaction(ctx, func(ctx context.Context, _ repositories.Transaction) error {
		return fn(ctx)
	})
}

func parseUserID(identity *models.Identity) (uuid.UUID, error) {
	if identity == nil {
		return uuid.Nil, invalidCredentials()
	}
	id, err := uuid.Parse(identity.UserID)
	if err != nil {
		return uuid.Nil, services.WrapInternal(fmt.Sprintf("identity subject %q is not a user id", identity.UserID), err)
	}
	return id, nil
}

func invalidCredentials() error {
	return services.Unauthenticated(services.CodeInvalidCredentials, "incorrect email or password", nil)
}
