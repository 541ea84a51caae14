package app

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/banking-api/config"
	"github.com/upb/banking-api/models"
	"github.com/upb/banking-api/repositories/postgres"
	"github.com/upb/banking-api/services/authn"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// MockUserRepository is a mock implementation of repositories.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, hashedPassword string) error {
	return m.Called(ctx, id, hashedPassword).Error(0)
}

func (m *MockUserRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

func TestNewDependenciesWithRepositories(t *testing.T) {
	t.Run("wires the access control stack", func(t *testing.T) {
		cfg := testConfig(t)
		deps, err := NewDependenciesWithRepositories(cfg, zaptest.NewLogger(t), new(MockUserRepository), nil)
		require.NoError(t, err)
		defer deps.Close(context.Background())

		assert.NotNil(t, deps.Tokens)
		assert.NotNil(t, deps.Hasher)
		assert.NotNil(t, deps.Limiter)
		assert.NotNil(t, deps.LoginThrottle)
		assert.NotNil(t, deps.Gate)
		assert.NotNil(t, deps.AccessControl)
		assert.NotNil(t, deps.Accounts)
		assert.NotNil(t, deps.Metrics)
		assert.Equal(t, 100, deps.Limiter.Limit())
		assert.Equal(t, time.Minute, deps.Limiter.Window())
		assert.Equal(t, "Bearer", deps.Gate.Scheme())
		assert.IsType(t, &authn.RepositoryResolver{}, deps.Resolver)
	})

	t.Run("claims identity source", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Auth.IdentitySource = "claims"

		deps, err := NewDependenciesWithRepositories(cfg, zap.NewNop(), new(MockUserRepository), nil)
		require.NoError(t, err)
		defer deps.Close(context.Background())

		assert.IsType(t, &authn.ClaimsResolver{}, deps.Resolver)
	})

	t.Run("rate limiting and throttle disabled", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.RateLimit.Enabled = false
		cfg.LoginThrottle.Enabled = false

		deps, err := NewDependenciesWithRepositories(cfg, zap.NewNop(), new(MockUserRepository), nil)
		require.NoError(t, err)
		defer deps.Close(context.Background())

		assert.Nil(t, deps.Limiter)
		assert.Nil(t, deps.LoginThrottle)
		assert.NotNil(t, deps.AccessControl)
	})

	t.Run("unsupported algorithm fails", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Auth.Algorithm = "RS256"

		deps, err := NewDependenciesWithRepositories(cfg, zap.NewNop(), new(MockUserRepository), nil)
		assert.Error(t, err)
		assert.Nil(t, deps)
		assert.Contains(t, err.Error(), "failed to initialize access control")
	})

	t.Run("issued tokens pass the gate", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Auth.IdentitySource = "claims"

		deps, err := NewDependenciesWithRepositories(cfg, zap.NewNop(), new(MockUserRepository), nil)
		require.NoError(t, err)
		defer deps.Close(context.Background())

		accessToken, err := deps.Tokens.IssueAccess("user-1", "user@example.com", []string{"read:transactions"}, false)
		require.NoError(t, err)

		identity, err := deps.Gate.Authenticate(context.Background(), "Bearer "+accessToken)
		require.NoError(t, err)
		assert.Equal(t, "user-1", identity.UserID)
		assert.True(t, identity.HasPermission("read:transactions"))
	})
}

func TestNewResolver_WithCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	deps := &Dependencies{
		Logger: zap.NewNop(),
		Users:  new(MockUserRepository),
		Cache:  client,
	}

	assert.IsType(t, &authn.CachedResolver{}, deps.newResolver(testConfig(t)))
}

func TestInitAccessControl_PasswordChangeEvictsCachedIdentity(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	users := new(MockUserRepository)
	cfg := testConfig(t)
	deps := &Dependencies{Config: cfg, Logger: zaptest.NewLogger(t), Users: users, Cache: client}
	require.NoError(t, deps.initAccessControl(cfg))
	defer deps.Close(context.Background())

	digest, err := deps.Hasher.Hash("Old-Passw0rd!")
	require.NoError(t, err)
	user := models.NewUser("jane@example.com", "Jane", digest)
	users.On("GetByID", mock.Anything, user.ID).Return(user, nil)
	users.On("UpdatePassword", mock.Anything, user.ID, mock.AnythingOfType("string")).Return(nil)

	accessToken, err := deps.Tokens.IssueAccess(user.ID.String(), user.Email, nil, false)
	require.NoError(t, err)
	_, err = deps.Gate.Authenticate(context.Background(), "Bearer "+accessToken)
	require.NoError(t, err)
	require.Len(t, mr.Keys(), 1)

	require.NoError(t, deps.Accounts.ChangePassword(context.Background(), user.Identity(), "Old-Passw0rd!", "N3w-Passw0rd!"))
	assert.Empty(t, mr.Keys())
}

func TestNewDependencies(t *testing.T) {
	t.Run("successful initialization with all components", func(t *testing.T) {
		ctx := context.Background()
		cfg := testConfig(t)
		logger := zaptest.NewLogger(t)

		// Skip if database not available
		if !isDatabaseAvailable(t, cfg) {
			t.Skip("database not available")
		}

		deps, err := NewDependencies(ctx, cfg, logger)
		require.NoError(t, err)
		require.NotNil(t, deps)

		assert.NotNil(t, deps.Config)
		assert.NotNil(t, deps.DB)
		assert.NotNil(t, deps.Users)
		assert.NotNil(t, deps.TxManager)
		assert.NotNil(t, deps.Accounts)

		assert.NoError(t, deps.Close(ctx))
	})

	t.Run("database connection failure", func(t *testing.T) {
		ctx := context.Background()
		cfg := testConfig(t)
		cfg.Database.Host = "invalid-host-that-does-not-exist"
		cfg.Database.ConnectionString = ""
		logger := zaptest.NewLogger(t)

		deps, err := NewDependencies(ctx, cfg, logger)
		assert.Error(t, err)
		assert.Nil(t, deps)
		assert.Contains(t, err.Error(), "failed to initialize database")
	})
}

func TestDependenciesClose(t *testing.T) {
	deps, err := NewDependenciesWithRepositories(testConfig(t), zap.NewNop(), new(MockUserRepository), nil)
	require.NoError(t, err)

	assert.NoError(t, deps.Close(context.Background()))
	// Second close should not panic
	assert.NoError(t, deps.Close(context.Background()))
}

// Test helpers

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Environment: "test",
		Server: config.ServerConfig{
			Host:            "localhost",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: config.DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			User:            "banking",
			Password:        "banking",
			Database:        "banking_test",
			SSLMode:         "disable",
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Auth: config.AuthConfig{
			SecretKey:       "app-test-signing-key-0123456789abcdef",
			Algorithm:       "HS256",
			AccessTokenTTL:  30 * time.Minute,
			RefreshTokenTTL: 7 * 24 * time.Hour,
			BearerScheme:    "Bearer",
			ResolverTimeout: 2 * time.Second,
			IdentitySource:  "repository",
			PasswordCost:    4,
		},
		RateLimit: config.RateLimitConfig{
			Enabled:       true,
			Window:        time.Minute,
			MaxRequests:   100,
			MaxClients:    1000,
			SweepInterval: time.Minute,
			SkipPaths:     []string{"/health", "/metrics"},
		},
		LoginThrottle: config.LoginThrottleConfig{
			Enabled: true,
			Every:   12 * time.Second,
			Burst:   5,
			IdleTTL: 15 * time.Minute,
		},
		Observability: config.ObservabilityConfig{
			LogLevel:  "debug",
			LogFormat: "json",
		},
	}
}

func isDatabaseAvailable(t *testing.T, cfg *config.Config) bool {
	t.Helper()
	factory, err := postgres.NewRepositoryFactory(cfg, zap.NewNop())
	if err != nil {
		return false
	}
	defer factory.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	return factory.GetDB().PingContext(ctx) == nil
}
