package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/upb/banking-api/config"
	"github.com/upb/banking-api/internal/observability"
	"github.com/upb/banking-api/middleware"
	"github.com/upb/banking-api/repositories"
	"github.com/upb/banking-api/repositories/postgres"
	"github.com/upb/banking-api/services/account"
	"github.com/upb/banking-api/services/authn"
	"github.com/upb/banking-api/services/credential"
	"github.com/upb/banking-api/services/ratelimit"
	"github.com/upb/banking-api/services/token"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Cache  *redis.Client
	Logger *zap.Logger

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Users     repositories.UserRepository
	TxManager repositories.TransactionManager

	// Access control
	Hasher        *credential.Hasher
	Tokens        *token.Codec
	Limiter       *ratelimit.SlidingWindowLimiter
	LoginThrottle *ratelimit.LoginThrottle
	Resolver      authn.IdentityResolver
	Gate          *authn.Gate
	AccessControl *middleware.AccessControl
	Metrics       *observability.Metrics

	// Services
	Accounts *account.Service

	stopJanitors context.CancelFunc
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	// Initialize PostgreSQL
	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Initialize repositories
	repos := deps.RepoFactory.NewRepositories()
	deps.Users = repos.Users
	deps.TxManager = deps.RepoFactory.GetTransactionManager()
	logger.Info("repositories initialized")

	deps.initCache(ctx, cfg)

	if err := deps.initAccessControl(cfg); err != nil {
		_ = deps.Close(ctx)
		return nil, fmt.Errorf("failed to initialize access control: %w", err)
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// NewDependenciesWithRepositories wires the access-control stack over an
// existing user store. No database or cache connection is opened.
func NewDependenciesWithRepositories(cfg *config.Config, logger *zap.Logger, users repositories.UserRepository, txMgr repositories.TransactionManager) (*Dependencies, error) {
	deps := &Dependencies{
		Config:    cfg,
		Logger:    logger,
		Users:     users,
		TxManager: txMgr,
	}
	if err := deps.initAccessControl(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize access control: %w", err)
	}
	return deps, nil
}

// initDatabase initializes the PostgreSQL database connection and factory
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	factory, err := postgres.NewRepositoryFactory(cfg, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()

	if err := d.DB.InitSchema(ctx); err != nil {
		_ = factory.Close()
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	d.Logger.Info("database connection established",
		zap.String("connection", cfg.Database.LogString()))

	return nil
}

// initCache connects the optional Redis identity cache. An unreachable
// server is logged; lookups fall through to the store until it recovers.
func (d *Dependencies) initCache(ctx context.Context, cfg *config.Config) {
	if !cfg.Cache.Enabled {
		return
	}

	d.Cache = redis.NewClient(&redis.Options{
		Addr:     cfg.Cache.Address(),
		Password: cfg.Cache.Password,
		DB:       cfg.Cache.DB,
	})
	if err := d.Cache.Ping(ctx).Err(); err != nil {
		d.Logger.Warn("identity cache unreachable", zap.String("addr", cfg.Cache.Address()), zap.Error(err))
		return
	}
	d.Logger.Info("identity cache connected", zap.String("addr", cfg.Cache.Address()))
}

// initAccessControl builds the hasher, codec, limiter, gate and account service
func (d *Dependencies) initAccessControl(cfg *config.Config) error {
	tokens, err := token.NewCodec(token.Config{
		SigningKey: cfg.Auth.SecretKey,
		Algorithm:  cfg.Auth.Algorithm,
		AccessTTL:  cfg.Auth.AccessTokenTTL,
		RefreshTTL: cfg.Auth.RefreshTokenTTL,
	})
	if err != nil {
		return err
	}
	d.Tokens = tokens
	d.Hasher = credential.NewHasher(cfg.Auth.PasswordCost)
	d.Metrics = observability.NewMetrics(nil)

	janitorCtx, cancel := context.WithCancel(context.Background())
	d.stopJanitors = cancel

	var limiter middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		d.Limiter = ratelimit.NewSlidingWindowLimiter(ratelimit.Config{
			Window:      cfg.RateLimit.Window,
			MaxRequests: cfg.RateLimit.MaxRequests,
			MaxClients:  cfg.RateLimit.MaxClients,
		}, d.Logger)
		d.Limiter.StartJanitor(janitorCtx, cfg.RateLimit.SweepInterval)
		limiter = d.Limiter
	}

	var opts []account.Option
	if d.TxManager != nil {
		opts = append(opts, account.WithTransactionManager(d.TxManager))
	}
	if cfg.LoginThrottle.Enabled {
		d.LoginThrottle = ratelimit.NewLoginThrottle(ratelimit.ThrottleConfig{
			Every:   cfg.LoginThrottle.Every,
			Burst:   cfg.LoginThrottle.Burst,
			IdleTTL: cfg.LoginThrottle.IdleTTL,
		})
		d.LoginThrottle.StartJanitor(janitorCtx, cfg.LoginThrottle.IdleTTL)
		opts = append(opts, account.WithLoginThrottle(d.LoginThrottle))
	}

	d.Resolver = d.newResolver(cfg)
	if cached, ok := d.Resolver.(*authn.CachedResolver); ok {
		opts = append(opts, account.WithIdentityInvalidator(cached))
	}
	d.Gate = authn.NewGate(tokens, d.Resolver, authn.Config{
		Scheme:          cfg.Auth.BearerScheme,
		ResolverTimeout: cfg.Auth.ResolverTimeout,
	}, d.Logger)

	clientKey, err := middleware.NewClientKeyFunc(cfg.RateLimit.TrustedProxies)
	if err != nil {
		return err
	}
	d.AccessControl = middleware.NewAccessControl(limiter, d.Gate, d.Metrics, middleware.AccessControlConfig{
		SkipPaths: cfg.RateLimit.SkipPaths,
		ClientKey: clientKey,
	}, d.Logger)

	d.Accounts = account.NewService(d.Users, d.Hasher, tokens, d.Logger, opts...)

	d.Logger.Info("access control initialized",
		zap.String("algorithm", cfg.Auth.Algorithm),
		zap.String("identity_source", cfg.Auth.IdentitySource),
		zap.Bool("rate_limit", cfg.RateLimit.Enabled),
		zap.Bool("login_throttle", cfg.LoginThrottle.Enabled),
		zap.Bool("identity_cache", d.Cache != nil))
	return nil
}

func (d *Dependencies) newResolver(cfg *config.Config) authn.IdentityResolver {
	if cfg.Auth.IdentitySource == "claims" || d.Users == nil {
		return authn.NewClaimsResolver()
	}

	var resolver authn.IdentityResolver = authn.NewRepositoryResolver(d.Users)
	if d.Cache != nil {
		resolver = authn.NewCachedResolver(d.Cache, resolver, cfg.Cache.TTL, d.Logger)
	}
	return resolver
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.stopJanitors != nil {
		d.stopJanitors()
	}

	if d.Cache != nil {
		if err := d.Cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close cache: %w", err))
		}
		d.Cache = nil
	}

	// Close database connection
	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
		d.RepoFactory = nil
	}

	// Sync logger
	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
