// Package authn turns an Authorization header into a resolved, active identity.
package authn

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/upb/banking-api/models"
	"github.com/upb/banking-api/services"
	"github.com/upb/banking-api/services/token"
	"go.uber.org/zap"
)

const (
	DefaultScheme          = "Bearer"
	DefaultResolverTimeout = 2 * time.Second
)

// Decoder decodes access tokens into claims
type Decoder interface {
	DecodeAccess(tokenString string) (*token.Claims, error)
}

// IdentityResolver maps verified claims to an identity.
// Implementations return services.ErrUserNotFound when the subject does not exist.
type IdentityResolver interface {
	Resolve(ctx context.Context, claims *token.Claims) (*models.Identity, error)
}

// ResolverFunc adapts a function to IdentityResolver
type ResolverFunc func(ctx context.Context, claims *token.Claims) (*models.Identity, error)

// Resolve calls f
func (f ResolverFunc) Resolve(ctx context.Context, claims *token.Claims) (*models.Identity, error) {
	return f(ctx, claims)
}

// Config holds gate settings
type Config struct {
	Scheme          string
	ResolverTimeout time.Duration
}

// Gate authenticates requests. It holds no per-request state.
type Gate struct {
	decoder  Decoder
	resolver IdentityResolver
	scheme   string
	timeout  time.Duration
	logger   *zap.Logger
}

// NewGate creates a new Gate
func NewGate(decoder Decoder, resolver IdentityResolver, cfg Config, logger *zap.Logger) *Gate {
	if cfg.Scheme == "" {
		cfg.Scheme = DefaultScheme
	}
	if cfg.ResolverTimeout <= 0 {
		cfg.ResolverTimeout = DefaultResolverTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		decoder:  decoder,
		resolver: resolver,
		scheme:   cfg.Scheme,
		timeout:  cfg.ResolverTimeout,
		logger:   logger,
	}
}

// Scheme returns the expected authorization scheme
func (g *Gate) Scheme() string {
	return g.scheme
}

// Authenticate extracts the bearer token, decodes it, resolves the identity
// and requires it to be active. Every failure is a *services.DomainError.
func (g *Gate) Authenticate(ctx context.Context, authorizationHeader string) (*models.Identity, error) {
	tokenString, err := ExtractToken(authorizationHeader, g.scheme)
	if err != nil {
		return nil, err
	}

	claims, err := g.decoder.DecodeAccess(tokenString)
	if err != nil {
		g.logger.Debug("token rejected", zap.Error(err))
		return nil, mapDecodeError(err)
	}

	identity, err := g.resolve(ctx, claims)
	if err != nil {
		return nil, err
	}

	if !identity.Active {
		return nil, services.Forbidden(services.CodeInactiveUser, "inactive user")
	}

	return identity, nil
}

// resolve runs the resolver under the configured timeout and returns once
// the deadline passes even if the resolver ignores its context
func (g *Gate) resolve(ctx context.Context, claims *token.Claims) (*models.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	type result struct {
		identity *models.Identity
		err      error
	}
	done := make(chan result, 1)

	go func() {
		identity, err := g.resolver.Resolve(ctx, claims)
		done <- result{identity, err}
	}()

	select {
	case <-ctx.Done():
		g.logger.Warn("identity resolution timed out",
			zap.String("subject", claims.Subject),
			zap.Duration("timeout", g.timeout))
		return nil, services.Unavailable("identity lookup timed out", ctx.Err())
	case res := <-done:
		switch {
		case res.err == nil && res.identity == nil:
			return nil, services.Unauthenticated(services.CodeInvalidCredentials, "could not validate credentials", nil)
		case res.err == nil:
			return res.identity, nil
		case services.IsNotFoundError(res.err):
			return nil, services.Unauthenticated(services.CodeInvalidCredentials, "could not validate credentials", res.err)
		case errors.Is(res.err, context.DeadlineExceeded), errors.Is(res.err, context.Canceled):
			return nil, services.Unavailable("identity lookup timed out", res.err)
		default:
			g.logger.Error("identity resolution failed",
				zap.String("subject", claims.Subject),
				zap.Error(res.err))
			return nil, services.Unavailable("identity lookup failed", res.err)
		}
	}
}

// ExtractToken splits "<scheme> <token>" and returns the token.
// The scheme is matched case-insensitively.
func ExtractToken(header, scheme string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", services.Unauthenticated(services.CodeInvalidCredentials, "not authenticated", nil)
	}

	prefix, rest, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(prefix, scheme) {
		return "", services.Unauthenticated(services.CodeInvalidCredentials, "invalid authentication scheme", nil)
	}

	tokenString := strings.TrimSpace(rest)
	if tokenString == "" || strings.ContainsAny(tokenString, " \t") {
		return "", services.Unauthenticated(services.CodeInvalidCredentials, "could not validate credentials", nil)
	}
	return tokenString, nil
}

func mapDecodeError(err error) error {
	switch {
	case errors.Is(err, token.ErrMalformedToken):
		return services.ErrInvalidCredentials.Wrap(err)
	case errors.Is(err, token.ErrExpired):
		return services.ErrTokenExpired.Wrap(err)
	case errors.Is(err, token.ErrWrongTokenType):
		return services.ErrInvalidTokenType.Wrap(err)
	default:
		// signature mismatch, unparseable token
		return services.ErrTokenValidationFailed.Wrap(err)
	}
}
