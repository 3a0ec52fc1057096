package container

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"rafl-be/internal/config"
	"rafl-be/internal/handler"
	"rafl-be/internal/middleware"
	"rafl-be/internal/repository"
	"rafl-be/internal/service"
	"rafl-be/internal/service/auth"
	"rafl-be/pkg/database"
	"rafl-be/pkg/events"
	"rafl-be/pkg/logger"
	"rafl-be/pkg/redis"
)

// Container holds all application dependencies
type Container struct {
	Config       *config.Config
	Logger       *logger.Logger
	DB           *database.PostgresDB
	RedisClient  *redis.Client
	Publisher    events.Publisher
	Repositories *repository.Repositories
	Services     *service.Services
	Auth         *auth.Service
	Signature    service.SignatureVerifier
	Cache        *service.CacheService
	Limiter      middleware.Limiter
}

// New wires repositories and services. redisClient may be nil, in which case
// caching, idempotency keys, draw locks and rate limiting are disabled.
func New(cfg *config.Config, log *logger.Logger, db *database.PostgresDB, redisClient *redis.Client, publisher events.Publisher) (*Container, error) {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}

	vault, err := service.NewContactVault(cfg.ContactSealingKey)
	if err != nil {
		return nil, fmt.Errorf("contact vault: %w", err)
	}
	if !vault.Enabled() {
		log.Warn("CONTACT_SEALING_KEY not set, winners will only be identified by hashed email")
	}

	signature, err := service.NewSignatureVerifier(cfg.SignatureMode)
	if err != nil {
		return nil, err
	}
	if cfg.SignatureMode != service.SignatureModeHMAC {
		log.Warn("Signature mode is presence only, request bodies are not authenticated")
	}

	repos := &repository.Repositories{
		Promotion:  repository.NewPromotionRepository(db),
		Entry:      repository.NewEntryRepository(db),
		Credential: repository.NewCredentialRepository(db),
		Winner:     repository.NewWinnerRepository(db),
	}

	c := &Container{
		Config:       cfg,
		Logger:       log,
		DB:           db,
		RedisClient:  redisClient,
		Publisher:    publisher,
		Repositories: repos,
		Auth:         auth.NewService(cfg.OperatorJWTSecret, log),
		Signature:    signature,
	}

	// Untyped nils keep the optional collaborators nil inside the services
	var (
		promoCache  service.PromotionCache
		idempotency service.IdempotencyStore
		locker      service.DrawLocker
	)
	if redisClient != nil {
		c.Cache = service.NewCacheService(redisClient, log.Logger, cfg.PromoCacheTTL, cfg.IdempotencyTTL)
		promoCache, idempotency = c.Cache, c.Cache
		locker = service.NewRedisDrawLocker(redisClient, log.Logger)
		if limiter, err := middleware.NewRedisLimiter(redisClient, cfg.Environment, cfg.EntryRateLimitPerMinute); err != nil {
			log.Warn("Entry rate limiting disabled", zap.Error(err))
		} else {
			c.Limiter = limiter
		}
	} else {
		log.Warn("Redis not configured, running without cache, idempotency, draw locks or rate limits")
	}

	c.Services = &service.Services{
		Credential: service.NewCredentialService(repos.Credential, log.Logger),
		Entry:      service.NewEntryService(repos.Promotion, repos.Entry, promoCache, idempotency, vault, publisher, log.Logger),
		Winner:     service.NewWinnerService(repos.Promotion, repos.Entry, repos.Winner, locker, vault, publisher, log.Logger),
		Promotion:  service.NewPromotionService(repos.Promotion, promoCache, publisher, log.Logger, cfg.LifecycleSchedule),
	}

	return c, nil
}

// HealthChecks returns the readiness probes for the configured dependencies
func (c *Container) HealthChecks() map[string]handler.HealthCheck {
	checks := make(map[string]handler.HealthCheck, 2)
	if c.DB != nil {
		checks["database"] = c.DB.Health
	}
	if c.RedisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return c.RedisClient.Health(ctx)
		}
	}
	return checks
}

// GetLogger returns the logger
func (c *Container) GetLogger() *logger.Logger {
	return c.Logger
}

// GetConfig returns the configuration
func (c *Container) GetConfig() *config.Config {
	return c.Config
}
