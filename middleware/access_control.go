package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/upb/banking-api/internal/observability"
	"github.com/upb/banking-api/models"
	"github.com/upb/banking-api/services"
	"github.com/upb/banking-api/services/authz"
	"github.com/upb/banking-api/services/ratelimit"
	"github.com/upb/banking-api/utils"
	"go.uber.org/zap"
)

// RateLimiter admits or denies a request for a client key
type RateLimiter interface {
	Admit(clientKey string, now time.Time) ratelimit.Decision
}

// Authenticator turns an Authorization header into an identity
type Authenticator interface {
	Authenticate(ctx context.Context, authorizationHeader string) (*models.Identity, error)
	Scheme() string
}

// AccessControlConfig configures AccessControl
type AccessControlConfig struct {
	// SkipPaths are path prefixes exempt from rate limiting
	SkipPaths []string
	// ClientKey derives the limiter key. Defaults to the socket peer address.
	ClientKey ClientKeyFunc
	Now       func() time.Time
}

// AccessControl chains rate limiting, authentication and authorization
// in front of a handler. The handler never runs when any stage rejects.
type AccessControl struct {
	limiter   RateLimiter
	gate      Authenticator
	metrics   *observability.Metrics
	skipPaths []string
	clientKey ClientKeyFunc
	now       func() time.Time
	logger    *zap.Logger
}

// NewAccessControl creates a new AccessControl. A nil limiter disables rate limiting.
func NewAccessControl(limiter RateLimiter, gate Authenticator, metrics *observability.Metrics, cfg AccessControlConfig, logger *zap.Logger) *AccessControl {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.ClientKey == nil {
		cfg.ClientKey = ClientKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccessControl{
		limiter:   limiter,
		gate:      gate,
		metrics:   metrics,
		skipPaths: cfg.SkipPaths,
		clientKey: cfg.ClientKey,
		now:       cfg.Now,
		logger:    logger,
	}
}

// RateLimit admits the request against the client's sliding window.
// Denied requests get 429 with Retry-After set to the window length.
func (m *AccessControl) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.limiter == nil || m.skipped(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		key := m.clientKey(r)
		decision := m.limiter.Admit(key, m.now())
		m.metrics.RecordRateLimit(decision.Allowed)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

		if !decision.Allowed {
			m.logger.Warn("rate limit exceeded",
				zap.String("request_id", GetRequestIDFromContext(r.Context())),
				zap.String("client", key),
				zap.String("path", r.URL.Path))
			_ = utils.WriteTooManyRequests(w, decision.RetryAfterSeconds(), "")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Authenticate resolves the bearer token into an identity and stores it in the context
func (m *AccessControl) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		identity, err := m.gate.Authenticate(ctx, r.Header.Get("Authorization"))
		if err != nil {
			m.metrics.RecordAuth("authn", services.GetErrorCode(err))
			m.logger.Info("authentication rejected",
				zap.String("request_id", requestID),
				zap.String("code", services.GetErrorCode(err)),
				zap.Error(err))
			m.writeError(w, err)
			return
		}
		m.metrics.RecordAuth("authn", "")

		m.logger.Debug("authentication successful",
			zap.String("request_id", requestID),
			zap.String("sub", identity.UserID))

		next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, identity)))
	})
}

// Authorize runs checks against the identity stored by Authenticate
func (m *AccessControl) Authorize(checks ...authz.Check) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			identity := GetIdentityFromContext(ctx)
			if identity == nil {
				m.logger.Error("identity not found in context",
					zap.String("request_id", GetRequestIDFromContext(ctx)))
				m.writeError(w, services.Unauthenticated(services.CodeInvalidCredentials, "not authenticated", nil))
				return
			}

			if err := authz.Evaluate(identity, checks...); err != nil {
				m.metrics.RecordAuth("authz", services.GetErrorCode(err))
				m.logger.Warn("authorization denied",
					zap.String("request_id", GetRequestIDFromContext(ctx)),
					zap.String("sub", identity.UserID),
					zap.String("code", services.GetErrorCode(err)))
				m.writeError(w, err)
				return
			}
			m.metrics.RecordAuth("authz", "")

			next.ServeHTTP(w, r)
		})
	}
}

// Protect applies RateLimit, Authenticate and Authorize in that order
func (m *AccessControl) Protect(checks ...authz.Check) func(http.Handler) http.Handler {
	authorize := m.Authorize(checks...)
	return func(next http.Handler) http.Handler {
		return m.RateLimit(m.Authenticate(authorize(next)))
	}
}

func (m *AccessControl) skipped(path string) bool {
	for _, prefix := range m.skipPaths {
		if prefix != "" && strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func (m *AccessControl) writeError(w http.ResponseWriter, err error) {
	code := services.GetErrorCode(err)
	message := services.GetErrorMessage(err)
	details := services.GetErrorDetails(err)

	var writeErr error
	switch services.GetErrorType(err) {
	case services.ErrorTypeUnauthenticated:
		writeErr = utils.WriteUnauthorized(w, m.gate.Scheme(), code, message)
	case services.ErrorTypeForbidden:
		writeErr = utils.WriteForbidden(w, code, message, details)
	case services.ErrorTypeRateLimit:
		retryAfter, _ := details["retry_after"].(int)
		writeErr = utils.WriteTooManyRequests(w, retryAfter, message)
	case services.ErrorTypeUnavailable:
		writeErr = utils.WriteServiceUnavailable(w, message)
	default:
		m.logger.Error("unexpected access control failure", zap.Error(err))
		writeErr = utils.WriteInternalServerError(w, "")
	}
	if writeErr != nil {
		m.logger.Error("failed to write error response", zap.Error(writeErr))
	}
}
