package authn

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/upb/banking-api/models"
	"github.com/upb/banking-api/repositories"
	"github.com/upb/banking-api/services"
	"github.com/upb/banking-api/services/token"
	"go.uber.org/zap"
)

// ClaimsResolver builds the identity from token claims alone.
// Every subject holding a valid token is treated as active.
type ClaimsResolver struct{}

// NewClaimsResolver creates a new ClaimsResolver
func NewClaimsResolver() *ClaimsResolver {
	return &ClaimsResolver{}
}

// Resolve implements IdentityResolver
func (ClaimsResolver) Resolve(_ context.Context, claims *token.Claims) (*models.Identity, error) {
	return models.NewIdentity(claims.Subject, claims.Email, true, claims.IsPrivileged, claims.Scopes), nil
}

// RepositoryResolver looks the subject up in the user store on every request
type RepositoryResolver struct {
	users repositories.UserRepository
}

// NewRepositoryResolver creates a new RepositoryResolver
func NewRepositoryResolver(users repositories.UserRepository) *RepositoryResolver {
	return &RepositoryResolver{users: users}
}

// Resolve implements IdentityResolver
func (r *RepositoryResolver) Resolve(ctx context.Context, claims *token.Claims) (*models.Identity, error) {
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, services.ErrUserNotFound
	}

	user, err := r.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return user.Identity(), nil
}

// cachedIdentity is the Redis value layout
type cachedIdentity struct {
	UserID      string   `json:"user_id"`
	Email       string   `json:"email"`
	Active      bool     `json:"active"`
	Privileged  bool     `json:"privileged"`
	Permissions []string `json:"permissions"`
}

// CachedResolver is a Redis read-through cache in front of another resolver.
// Cache failures are logged and fall through to the wrapped resolver.
// A cached entry can lag the store by up to ttl unless Invalidate is called.
type CachedResolver struct {
	client redis.Cmdable
	next   IdentityResolver
	ttl    time.Duration
	prefix string
	logger *zap.Logger
}

// NewCachedResolver creates a new CachedResolver
func NewCachedResolver(client redis.Cmdable, next IdentityResolver, ttl time.Duration, logger *zap.Logger) *CachedResolver {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedResolver{
		client: client,
		next:   next,
		ttl:    ttl,
		prefix: "identity:",
		logger: logger,
	}
}

// Resolve implements IdentityResolver
func (r *CachedResolver) Resolve(ctx context.Context, claims *token.Claims) (*models.Identity, error) {
	key := r.prefix + claims.Subject

	raw, err := r.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached cachedIdentity
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
			return models.NewIdentity(cached.UserID, cached.Email, cached.Active, cached.Privileged, cached.Permissions), nil
		}
		r.logger.Warn("discarding unreadable cached identity", zap.String("key", key))
	case errors.Is(err, redis.Nil):
	case ctx.Err() != nil:
		return nil, ctx.Err()
	default:
		r.logger.Warn("identity cache read failed", zap.Error(err))
	}

	identity, err := r.next.Resolve(ctx, claims)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(cachedIdentity{
		UserID:      identity.UserID,
		Email:       identity.Email,
		Active:      identity.Active,
		Privileged:  identity.Privileged,
		Permissions: identity.PermissionList(),
	})
	if err == nil {
		if setErr := r.client.Set(ctx, key, payload, r.ttl).Err(); setErr != nil {
			r.logger.Warn("identity cache write failed", zap.Error(setErr))
		}
	}

	return identity, nil
}

// Invalidate drops the cached identity for subject
func (r *CachedResolver) Invalidate(ctx context.Context, subject string) error {
	return r.client.Del(ctx, r.prefix+subject).Err()
}
