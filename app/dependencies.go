package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/upb/authd/config"
	"github.com/upb/authd/handlers"
	"github.com/upb/authd/internal/credentials"
	"github.com/upb/authd/internal/observability"
	"github.com/upb/authd/middleware"
	"github.com/upb/authd/repositories"
	"github.com/upb/authd/repositories/sqlstore"
	"github.com/upb/authd/services/audit"
	"github.com/upb/authd/services/identity"
	"github.com/upb/authd/services/ratelimit"
	"github.com/upb/authd/services/rbac"
	"github.com/upb/authd/token"
	"go.uber.org/zap"
)

// auditStopTimeout bounds how long Close waits for queued audit entries
const auditStopTimeout = 5 * time.Second

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config  *config.Config
	DB      *sqlstore.DB
	Redis   *redis.Client
	Metrics *observability.Metrics
	Logger  *zap.Logger

	// Repository Factory
	RepoFactory *sqlstore.RepositoryFactory
	Repos       *repositories.Repositories
	TxManager   repositories.TransactionManager

	// Services
	Hasher   *credentials.Hasher
	Tokens   *token.Service
	Audit    *audit.AuditService
	Identity *identity.Service
	RBAC     *rbac.Service

	// Middleware
	AuthMiddleware     *middleware.AuthMiddleware
	ThrottleMiddleware *middleware.ThrottleMiddleware

	// Handlers
	HealthHandler     *handlers.HealthHandler
	AuthHandler       *handlers.AuthHandler
	UserHandler       *handlers.UserHandler
	GroupHandler      *handlers.GroupHandler
	PermissionHandler *handlers.PermissionHandler
	AuditHandler      *handlers.AuditHandler

	auditRunning bool
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := deps.initServices(cfg); err != nil {
		_ = deps.Close(ctx)
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := deps.initHTTP(cfg); err != nil {
		_ = deps.Close(ctx)
		return nil, fmt.Errorf("failed to initialize http layer: %w", err)
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase opens the store, migrates it when configured and builds the repositories
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	factory, err := sqlstore.NewRepositoryFactory(ctx, cfg, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()
	d.Repos = factory.NewRepositories()
	d.TxManager = factory.GetTransactionManager()

	d.Logger.Info("database connection established",
		zap.String("driver", cfg.Database.Driver),
		zap.String("connection", cfg.Database.LogString()))

	return nil
}

// initServices builds the credential, token, audit, throttle and use case layers
func (d *Dependencies) initServices(cfg *config.Config) error {
	d.Hasher = credentials.NewHasher(credentials.Params{
		Memory:      cfg.Security.Argon2Memory,
		Iterations:  cfg.Security.Argon2Iterations,
		Parallelism: cfg.Security.Argon2Parallelism,
	})

	tokens, err := token.NewService(token.Config{
		SigningKey: cfg.Security.SigningKey,
		Issuer:     cfg.Security.Issuer,
		TTL:        cfg.Security.TokenTTL,
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to create token service: %w", err)
	}
	d.Tokens = tokens

	d.Audit = audit.NewAuditService(d.Repos.AuditLogs, d.Logger, audit.Config{
		BufferSize:  cfg.Audit.BufferSize,
		WorkerCount: cfg.Audit.Workers,
	})
	var recorder audit.Recorder = audit.Nop{}
	if cfg.Audit.Enabled {
		if err := d.Audit.Start(); err != nil {
			return fmt.Errorf("failed to start audit service: %w", err)
		}
		d.auditRunning = true
		recorder = d.Audit
	}

	verifier := credentials.NewVerifier(d.Repos.Users, d.Hasher, d.Logger)
	d.Identity = identity.NewService(
		d.Repos.Users,
		d.Repos.Roles,
		verifier,
		d.Hasher,
		d.Tokens,
		credentials.Policy{MinLength: cfg.Security.PasswordMinLength},
		recorder,
		d.Logger,
	)
	d.RBAC = rbac.NewService(d.Repos, recorder, d.Logger)

	d.Logger.Info("services initialized",
		zap.Bool("audit_enabled", cfg.Audit.Enabled),
		zap.Duration("token_ttl", cfg.Security.TokenTTL))

	return nil
}

// initHTTP builds metrics, middleware and handlers
func (d *Dependencies) initHTTP(cfg *config.Config) error {
	if cfg.Observability.MetricsEnabled {
		metrics, err := observability.NewMetrics()
		if err != nil {
			return fmt.Errorf("failed to create metrics: %w", err)
		}
		if err := metrics.RegisterDB(d.DB.DB, cfg.Database.Driver); err != nil {
			return fmt.Errorf("failed to register database metrics: %w", err)
		}
		d.Metrics = metrics
	}

	if cfg.Throttle.Enabled && cfg.Throttle.Backend == config.ThrottleBackendRedis {
		d.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	limiter, err := ratelimit.NewLimiter(cfg.Throttle, d.Redis, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create sign-in limiter: %w", err)
	}

	d.AuthMiddleware = middleware.NewAuthMiddleware(&tokenValidatorAdapter{identity: d.Identity}, d.Metrics, d.Logger)
	d.ThrottleMiddleware = middleware.NewThrottleMiddleware(limiter, d.Metrics, d.Logger)

	d.HealthHandler = handlers.NewHealthHandler(d.DB.DB, d.Logger)
	if d.Redis != nil {
		d.HealthHandler.WithCheck("redis", func(ctx context.Context) error {
			return d.Redis.Ping(ctx).Err()
		})
	}
	d.AuthHandler = handlers.NewAuthHandler(d.Identity, d.Metrics, cfg.Security.AllowSignUp, d.Logger)
	d.UserHandler = handlers.NewUserHandler(d.Identity, d.Logger)
	d.GroupHandler = handlers.NewGroupHandler(d.RBAC, d.Logger)
	d.PermissionHandler = handlers.NewPermissionHandler(d.RBAC, d.Logger)
	d.AuditHandler = handlers.NewAuditHandler(d.Audit, d.Logger)

	return nil
}

// tokenDecoder is the part of identity.Service the auth middleware needs
type tokenDecoder interface {
	ValidateToken(ctx context.Context, raw string) (*identity.TokenInfo, error)
}

// tokenValidatorAdapter adapts identity.Service to middleware.TokenValidator
type tokenValidatorAdapter struct {
	identity tokenDecoder
}

func (a *tokenValidatorAdapter) ValidateToken(ctx context.Context, raw string) (*middleware.Claims, error) {
	info, err := a.identity.ValidateToken(ctx, raw)
	if err != nil {
		return nil, err
	}
	roles := info.Roles
	if roles == nil {
		roles = []string{}
	}
	permissions := info.Permissions
	if permissions == nil {
		permissions = []string{}
	}
	return &middleware.Claims{
		UserID:      info.UserID,
		Roles:       roles,
		Permissions: permissions,
		ExpiresAt:   info.ExpiresAt,
	}, nil
}

// Close gracefully shuts down all dependencies. Queued audit entries are
// flushed before the store is closed.
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.auditRunning {
		timeout := auditStopTimeout
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}
		if err := d.Audit.Stop(timeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop audit service: %w", err))
		}
		d.auditRunning = false
	}

	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis client: %w", err))
		}
	}

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	_ = d.Logger.Sync()

	return errors.Join(errs...)
}
