package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fashionistas/ticketing/internal/cache"
	"github.com/fashionistas/ticketing/internal/events"
	"github.com/fashionistas/ticketing/internal/handler"
	"github.com/fashionistas/ticketing/internal/payment"
	"github.com/fashionistas/ticketing/internal/repository"
	"github.com/fashionistas/ticketing/internal/service"
	"github.com/fashionistas/ticketing/internal/worker"
	"github.com/fashionistas/ticketing/pkg/config"
	"github.com/fashionistas/ticketing/pkg/database"
	"github.com/fashionistas/ticketing/pkg/kafka"
	"github.com/fashionistas/ticketing/pkg/logger"
	"github.com/fashionistas/ticketing/pkg/middleware"
	"github.com/fashionistas/ticketing/pkg/redis"
	"github.com/fashionistas/ticketing/pkg/telemetry"
)

// Container holds all dependencies for the ticketing service
type Container struct {
	// Infrastructure
	DB           *database.PostgresDB
	Memory       *repository.MemoryStore
	Redis        *redis.Client
	Publisher    events.Publisher
	Gateway      payment.Gateway
	Availability cache.AvailabilityCache
	Metrics      *telemetry.PurchaseMetrics
	Log          *logger.Logger

	// Repositories
	EventRepo        repository.EventRepository
	TicketTypeRepo   repository.TicketTypeRepository
	RegistrationRepo repository.RegistrationRepository

	// Services
	EventService        service.EventService
	TicketTypeService   service.TicketTypeService
	PurchaseService     service.PurchaseService
	RegistrationService service.RegistrationService
	PaymentService      service.PaymentService
	ExpiryService       service.ExpiryService

	// Handlers
	HealthHandler       *handler.HealthHandler
	EventHandler        *handler.EventHandler
	TicketTypeHandler   *handler.TicketTypeHandler
	PurchaseHandler     *handler.PurchaseHandler
	RegistrationHandler *handler.RegistrationHandler
	PaymentHandler      *handler.PaymentHandler

	// Background
	ExpiryWorker *worker.ExpiryWorker
	AuditLogger  *middleware.AuditLogger
	RateLimiter  middleware.Limiter
}

// ContainerConfig contains configuration for building the container.
// A nil DB selects the in-memory store; nil Redis, Producer and Gateway
// fall back to no-op implementations.
type ContainerConfig struct {
	DB       *database.PostgresDB
	Redis    *redis.Client
	Producer *kafka.Producer
	Gateway  payment.Gateway
	Metrics  *telemetry.PurchaseMetrics
	Log      *logger.Logger

	Source    string
	CacheTTL  time.Duration
	Purchase  config.PurchaseConfig
	RateLimit config.RateLimitConfig
}

// NewContainer creates a new dependency injection container
func NewContainer(ctx context.Context, cfg *ContainerConfig) (*Container, error) {
	log := cfg.Log
	if log == nil {
		log = logger.NewNop()
	}

	c := &Container{
		DB:      cfg.DB,
		Redis:   cfg.Redis,
		Gateway: cfg.Gateway,
		Metrics: cfg.Metrics,
		Log:     log,
	}
	if c.Gateway == nil {
		c.Gateway = payment.NoopGateway{}
	}

	// Initialize infrastructure adapters
	if cfg.Producer != nil {
		c.Publisher = events.NewKafkaPublisher(cfg.Producer, cfg.Source)
	} else {
		c.Publisher = events.NewLogPublisher(log)
	}
	if c.Redis != nil {
		c.Availability = cache.NewRedisAvailabilityCache(c.Redis, cfg.CacheTTL)
	} else {
		c.Availability = cache.NoopAvailabilityCache{}
	}

	// Initialize repositories
	if c.DB != nil {
		c.EventRepo = repository.NewPostgresEventRepository(c.DB.Pool())
		c.TicketTypeRepo = repository.NewPostgresTicketTypeRepository(c.DB.Pool())
		c.RegistrationRepo = repository.NewPostgresRegistrationRepository(c.DB.Pool())
	} else {
		c.Memory = repository.NewMemoryStore()
		c.EventRepo = c.Memory.Events()
		c.TicketTypeRepo = c.Memory.TicketTypes()
		c.RegistrationRepo = c.Memory.Registrations()
	}

	// Initialize services
	deps := service.Deps{
		Registrations: c.RegistrationRepo,
		Cache:         c.Availability,
		Publisher:     c.Publisher,
		Metrics:       c.Metrics,
		Log:           log.Named("registrations"),
	}
	c.EventService = service.NewEventService(c.EventRepo)
	c.TicketTypeService = service.NewTicketTypeService(c.TicketTypeRepo, c.EventRepo, c.Availability, log.Named("ticket-types"))
	c.PurchaseService = service.NewPurchaseService(c.TicketTypeRepo, c.EventRepo, deps, service.PurchaseConfig{
		Currency:        cfg.Purchase.Currency,
		ConflictRetries: cfg.Purchase.ConflictRetries,
	})
	c.RegistrationService = service.NewRegistrationService(c.EventRepo, c.Gateway, deps)
	c.PaymentService = service.NewPaymentService(c.Gateway, deps)
	c.ExpiryService = service.NewExpiryService(deps, service.ExpiryConfig{
		PendingTTL: cfg.Purchase.PendingTTL,
		BatchSize:  cfg.Purchase.ExpiryBatchSize,
	})

	// Initialize handlers
	c.HealthHandler = handler.NewHealthHandler(c.healthChecks(cfg.Producer))
	c.EventHandler = handler.NewEventHandler(c.EventService)
	c.TicketTypeHandler = handler.NewTicketTypeHandler(c.TicketTypeService, cfg.Purchase.Currency)
	c.PurchaseHandler = handler.NewPurchaseHandler(c.PurchaseService, cfg.Purchase.Currency)
	c.RegistrationHandler = handler.NewRegistrationHandler(c.RegistrationService, c.PaymentService)
	c.PaymentHandler = handler.NewPaymentHandler(c.PaymentService)

	// Initialize background components
	c.ExpiryWorker = worker.NewExpiryWorker(c.ExpiryService, log, &worker.ExpiryWorkerConfig{
		ScanInterval: cfg.Purchase.ExpiryScanInterval,
		BatchSize:    cfg.Purchase.ExpiryBatchSize,
	})

	var sink middleware.AuditSink
	if c.DB != nil {
		sink = middleware.NewPostgresAuditSink(c.DB.Pool())
	} else {
		sink = middleware.NewLogAuditSink(log.Named("audit"))
	}
	c.AuditLogger = middleware.NewAuditLogger(middleware.DefaultAuditConfig(sink, log.Named("audit")))

	if cfg.RateLimit.Enabled {
		limiter, err := c.newRateLimiter(ctx, cfg.RateLimit)
		if err != nil {
			_ = c.AuditLogger.Close()
			return nil, err
		}
		c.RateLimiter = limiter
	}

	return c, nil
}

// RateLimitConfig returns the middleware settings for the purchase limiter
func RateLimitConfig(cfg config.RateLimitConfig) middleware.RateLimitConfig {
	rl := middleware.DefaultRateLimitConfig()
	if cfg.RequestsPerSecond > 0 {
		rl.RequestsPerSecond = cfg.RequestsPerSecond
	}
	if cfg.Burst > 0 {
		rl.Burst = cfg.Burst
	}
	rl.KeyPrefix = "ticketing:ratelimit:purchase:"
	return rl
}

func (c *Container) newRateLimiter(ctx context.Context, cfg config.RateLimitConfig) (middleware.Limiter, error) {
	rl := RateLimitConfig(cfg)
	if cfg.Backend == "redis" {
		if c.Redis == nil {
			return nil, errors.New("redis rate limiting requires a redis client")
		}
		limiter, err := middleware.NewRedisRateLimiter(ctx, c.Redis, rl)
		if err != nil {
			return nil, fmt.Errorf("redis rate limiter: %w", err)
		}
		return limiter, nil
	}
	return middleware.NewLocalRateLimiter(rl), nil
}

func (c *Container) healthChecks(producer *kafka.Producer) map[string]handler.Checker {
	checks := make(map[string]handler.Checker)
	if c.DB != nil {
		checks["postgres"] = c.DB.HealthCheck
	}
	if c.Redis != nil {
		checks["redis"] = c.Redis.HealthCheck
	}
	if producer != nil {
		checks["kafka"] = producer.Ping
	}
	return checks
}

// Close releases everything the container owns, flushing the audit log and
// the event publisher first
func (c *Container) Close(ctx context.Context) error {
	var errs []error

	if local, ok := c.RateLimiter.(*middleware.LocalRateLimiter); ok {
		local.Stop()
	}
	if err := c.AuditLogger.Close(); err != nil {
		errs = append(errs, fmt.Errorf("audit logger: %w", err))
	}
	if err := c.Publisher.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("publisher: %w", err))
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if c.DB != nil {
		c.DB.Close()
	}

	return errors.Join(errs...)
}
