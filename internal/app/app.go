// Package app wires the storefront BFF together and runs it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kidsdesign/storefront/internal/catalog"
	"github.com/kidsdesign/storefront/internal/composer"
	"github.com/kidsdesign/storefront/internal/config"
	"github.com/kidsdesign/storefront/internal/event"
	"github.com/kidsdesign/storefront/internal/gateway"
	"github.com/kidsdesign/storefront/internal/handler"
	"github.com/kidsdesign/storefront/internal/proxy"
	"github.com/kidsdesign/storefront/internal/session"
	"github.com/kidsdesign/storefront/pkg/cache"
	"github.com/kidsdesign/storefront/pkg/health"
	"github.com/kidsdesign/storefront/pkg/httpclient"
	pkgkafka "github.com/kidsdesign/storefront/pkg/kafka"
	"github.com/kidsdesign/storefront/pkg/tracing"
)

const (
	serviceName    = "storefront"
	serviceVersion = "0.1.0"
)

// App wires together all dependencies and runs the storefront BFF.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	httpServer     *http.Server
	sessions       *session.Manager
	kafkaProducer  *pkgkafka.Producer
	redisClient    *redis.Client
	tracerShutdown func(context.Context) error

	// background bounds the session evictor and rate limiter cleanup.
	background     context.Context
	stopBackground context.CancelFunc
	workers        sync.WaitGroup
}

// NewApp creates a new application instance: remote API clients, the
// optional category cache and event producer, the session store and the
// HTTP router.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, cfg.Tracing(serviceName, serviceVersion))
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	a := &App{
		cfg:            cfg,
		logger:         logger,
		tracerShutdown: tracerShutdown,
	}
	a.background, a.stopBackground = context.WithCancel(context.Background())

	if err := a.wire(ctx); err != nil {
		a.stopBackground()
		a.closeClients()
		_ = tracerShutdown(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	// Reads retry; wishlist writes do not, a retried POST could save twice.
	reader := httpclient.NewCircuitBreakerClient(httpclient.New(cfg.HTTPClient()), cfg.CircuitBreaker("catalog-api"), logger)
	writeCfg := cfg.HTTPClient()
	writeCfg.MaxRetries = 0
	writer := httpclient.NewCircuitBreakerClient(httpclient.New(writeCfg), cfg.CircuitBreaker("wishlist-writes"), logger)

	catalogClient, err := gateway.NewCatalogClient(cfg.CatalogAPIURL, reader, logger)
	if err != nil {
		return fmt.Errorf("create catalog client: %w", err)
	}
	wishlistClient, err := gateway.NewWishlistClient(cfg.CatalogAPIURL, cfg.WishlistPath, reader, writer, logger)
	if err != nil {
		return fmt.Errorf("create wishlist client: %w", err)
	}

	healthHandler := health.NewHandler()
	healthHandler.Register("catalog-api", catalogClient.Ping)

	var catalogGW composer.CatalogGateway = catalogClient
	if cfg.RedisEnabled {
		a.redisClient, err = cache.NewRedisClient(ctx, cfg.Redis())
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		categories := cache.NewJSON[catalog.Category](a.redisClient, "storefront:category", cfg.CategoryCacheTTL)
		catalogGW = gateway.NewCachedCatalog(catalogClient, categories, logger)
		healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
			return a.redisClient.Ping(ctx).Err()
		})
		logger.Info("category cache enabled", slog.String("addr", cfg.Redis().Addr()))
	}

	// Without Kafka the event producer drops every event.
	var publisher event.Publisher
	if cfg.KafkaEnabled {
		a.kafkaProducer = pkgkafka.NewProducer(cfg.Kafka(), logger)
		publisher = a.kafkaProducer
		healthHandler.RegisterNonCritical("kafka", a.kafkaProducer.Ping)
	}
	events := event.NewProducer(publisher, logger)

	a.sessions = session.NewManager(session.Config{
		TTL:         cfg.SessionTTL,
		MaxSessions: cfg.SessionMaxCount,
		PageSize:    cfg.CatalogPageSize,
	}, catalogGW, wishlistClient, events, logger)

	sp, err := proxy.NewServiceProxy(proxy.DefaultConfig(cfg.CatalogAPIURL), logger)
	if err != nil {
		return fmt.Errorf("create service proxy: %w", err)
	}

	router := handler.NewRouter(a.background, cfg,
		handler.NewCatalogHandler(catalogGW, wishlistClient, events, cfg.CatalogPageSize, cfg.ComposeTimeout, logger),
		handler.NewSessionHandler(a.sessions, cfg.ComposeTimeout, logger),
		sp, healthHandler, logger,
	)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

// Run starts the HTTP server and the session evictor and blocks until the
// context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	a.workers.Add(1)
	go func() {
		defer a.workers.Done()
		a.sessions.Run(a.background)
	}()

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Sessions (unmount every composer)
// 3. Kafka producer (flush page view events)
// 4. Redis client
// 5. Tracer (flush pending spans)
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// 1. Drain in-flight HTTP requests (5s budget).
	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 2. Stop background loops; the session evictor unmounts what is left.
	a.stopBackground()
	done := make(chan struct{})
	go func() {
		a.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		a.logger.Warn("session store did not stop in time")
	}
	a.sessions.Close()

	// 3-4. Close clients.
	errs = append(errs, a.closeClients()...)

	// 5. Flush pending spans after everything else so shutdown spans are captured.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

func (a *App) closeClients() []error {
	var errs []error
	if a.kafkaProducer != nil {
		if err := a.kafkaProducer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	return errs
}
