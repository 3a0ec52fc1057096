package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"rafl-be/internal/config"
	"rafl-be/internal/container"
	"rafl-be/internal/handler"
	"rafl-be/internal/middleware"
	"rafl-be/internal/service"
	"rafl-be/pkg/database"
	"rafl-be/pkg/errors"
	"rafl-be/pkg/events"
	"rafl-be/pkg/logger"
	"rafl-be/pkg/redis"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

// Resources holds all resources that need cleanup
type Resources struct {
	db               *database.PostgresDB
	redisClient      *redis.Client
	publisher        events.Publisher
	promotionService *service.PromotionService
	server           *http.Server
	log              *logger.Logger
	mu               sync.Mutex
	closed           bool
}

// Cleanup gracefully closes all resources
func (r *Resources) Cleanup(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error

	r.log.Info("Starting graceful shutdown...")

	// Stop accepting requests before closing what they depend on
	if r.server != nil {
		r.log.Info("Shutting down HTTP server...")
		if err := r.server.Shutdown(ctx); err != nil {
			r.log.WithError(err).Error("Failed to shutdown HTTP server")
			errs = append(errs, fmt.Errorf("HTTP server shutdown: %w", err))
		} else {
			r.log.Info("HTTP server shutdown complete")
		}
	}

	if r.promotionService != nil {
		if err := r.promotionService.Stop(ctx); err != nil {
			r.log.WithError(err).Error("Failed to stop promotion lifecycle job")
			errs = append(errs, fmt.Errorf("promotion lifecycle shutdown: %w", err))
		}
	}

	if r.publisher != nil {
		if err := r.publisher.Close(); err != nil {
			r.log.WithError(err).Error("Failed to close event publisher")
			errs = append(errs, fmt.Errorf("event publisher close: %w", err))
		}
	}

	if r.redisClient != nil {
		r.log.Info("Closing Redis connection...")
		if err := r.redisClient.Close(); err != nil {
			r.log.WithError(err).Error("Failed to close Redis connection")
			errs = append(errs, fmt.Errorf("Redis close: %w", err))
		} else {
			r.log.Info("Redis connection closed successfully")
		}
	}

	if r.db != nil {
		r.log.Info("Closing database connection pool...")
		r.db.Close()
		r.log.Info("Database connection pool closed successfully")
	}

	if len(errs) > 0 {
		r.log.WithField("error_count", len(errs)).Error("Cleanup completed with errors")
		return fmt.Errorf("cleanup completed with %d errors: %v", len(errs), errs)
	}

	r.log.Info("Graceful shutdown completed successfully")
	return nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel, cfg.Environment)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.WithFields(map[string]interface{}{
		"port":           cfg.Port,
		"log_level":      cfg.LogLevel,
		"environment":    cfg.Environment,
		"signature_mode": cfg.SignatureMode,
		"version":        version,
	}).Info("Starting rafl-be server")

	ctx := context.Background()

	db, err := database.NewPostgresDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}

	// Redis backs idempotency, draw locks and rate limits, so it is required
	redisClient, err := redis.NewClient(cfg.RedisURL, cfg.Environment, log.Logger)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to Redis")
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.AMQPURL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, log.Logger)
		if err != nil {
			log.WithError(err).Fatal("Failed to connect to event broker")
		}
		publisher = amqpPublisher
		log.Info("Publishing events to AMQP", zap.String("exchange", cfg.AMQPExchange))
	}

	c, err := container.New(cfg, log, db, redisClient, publisher)
	if err != nil {
		log.WithError(err).Fatal("Failed to create container")
	}

	if err := c.Services.Promotion.Start(ctx); err != nil {
		log.WithError(err).Fatal("Failed to start promotion lifecycle job")
	}

	server := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        setupRouter(c),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	resources := &Resources{
		db:               db,
		redisClient:      redisClient,
		publisher:        publisher,
		promotionService: c.Services.Promotion,
		server:           server,
		log:              log,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := resources.Cleanup(cleanupCtx); err != nil {
			log.WithError(err).Error("Cleanup completed with errors")
		}
	}()

	serverErrChan := make(chan error, 1)
	go func() {
		log.Info("Server starting on port " + cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("Server error occurred")
			serverErrChan <- err
		}
	}()

	select {
	case sig := <-quit:
		log.WithField("signal", sig.String()).Info("Received shutdown signal")
	case err := <-serverErrChan:
		log.WithError(err).Error("Server failed, initiating shutdown")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer cancel()

	if err := resources.Cleanup(shutdownCtx); err != nil {
		log.WithError(err).Error("Graceful shutdown completed with errors")
		os.Exit(1)
	}

	log.Info("Application shutdown complete")
}

// setupRouter configures and returns the HTTP router
func setupRouter(c *container.Container) *chi.Mux {
	cfg := c.GetConfig()
	log := c.GetLogger()

	r := chi.NewRouter()

	r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.AllowedOrigins), log))
	r.Use(middleware.RequestID())
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(cfg.RequestTimeout))

	healthHandler := handler.NewHealthHandler(c.HealthChecks(), version, log)
	entryHandler := handler.NewEntryHandler(c.Services.Entry, c.Signature, log)
	winnerHandler := handler.NewWinnerHandler(c.Services.Winner, log)
	credentialHandler := handler.NewCredentialHandler(c.Services.Credential, log)
	promoHandler := handler.NewPromoHandler(c.Services.Promotion, log)

	r.Get("/health", healthHandler.Check)
	r.Get("/health/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Public
		r.Get("/promos/{promoID}/rules", promoHandler.Rules)

		// Store integrations authenticate with an API credential
		r.Group(func(r chi.Router) {
			r.Use(middleware.APIKey(c.Services.Credential, log))
			if c.Limiter != nil {
				r.Use(middleware.RateLimitByCredential(c.Limiter, log))
			}

			r.Post("/entries", entryHandler.Submit)
		})

		// Dashboard operators authenticate with a JWT
		r.Group(func(r chi.Router) {
			r.Use(middleware.OperatorAuth(c.Auth, log))

			r.Post("/promos/{promoID}/winner", winnerHandler.Draw)
			r.Post("/promos/{promoID}/status", promoHandler.UpdateStatus)

			r.Route("/credentials", func(r chi.Router) {
				r.Post("/", credentialHandler.Create)
				r.Get("/", credentialHandler.List)
				r.Delete("/{credentialID}", credentialHandler.Revoke)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		errors.Write(w, errors.New(errors.CodeNotFound, "Endpoint not found"))
	})

	log.Info("Router configured successfully")
	return r
}
