package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kidsdesign/storefront/internal/config"
	sfmiddleware "github.com/kidsdesign/storefront/internal/middleware"
	"github.com/kidsdesign/storefront/internal/proxy"
	"github.com/kidsdesign/storefront/pkg/health"
	pkgmiddleware "github.com/kidsdesign/storefront/pkg/middleware"
)

// NewRouter creates a chi router with global middleware, health endpoints,
// the catalog page routes and proxy routes to the remote API. ctx bounds the
// rate limiter's background cleanup.
func NewRouter(
	ctx context.Context,
	cfg *config.Config,
	catalogHandler *CatalogHandler,
	sessionHandler *SessionHandler,
	sp *proxy.ServiceProxy,
	healthHandler *health.Handler,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	cors := pkgmiddleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSAllowedOrigins
	cors.MaxAge = cfg.CORSMaxAge
	cors.Environment = cfg.Environment

	// Global middleware stack (applied in order).
	r.Use(pkgmiddleware.CORS(cors))
	r.Use(sfmiddleware.RateLimit(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst, logger))
	r.Use(pkgmiddleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(pkgmiddleware.RequestLogging(logger, "/health/live", "/health/ready", "/metrics"))
	r.Use(pkgmiddleware.PrometheusMetrics("storefront"))
	r.Use(pkgmiddleware.Tracing("storefront"))
	r.Use(pkgmiddleware.RequestLogger(logger))

	// Health check endpoints.
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())

	// Metrics endpoint with IP allowlist protection.
	r.With(pkgmiddleware.IPAllowlist(cfg.MetricsAllowedCIDRs, logger)).Handle("/metrics", promhttp.Handler())

	// Pprof debug endpoints with IP allowlist.
	pkgmiddleware.RegisterPprof(r, cfg.PprofAllowedCIDRs, logger)

	// Composed catalog pages. Tokens are optional; a valid one unlocks the
	// shopper's wishlist.
	r.Group(func(r chi.Router) {
		r.Use(pkgmiddleware.OptionalAuth(sfmiddleware.JWTValidator(cfg.JWTSecret)))

		r.Get("/category/{id}", catalogHandler.GetCategoryPage)
		r.Get("/api/v1/catalog/categories/{id}", catalogHandler.GetCategoryPage)

		r.Route("/api/v1/catalog/sessions", func(r chi.Router) {
			r.Post("/", sessionHandler.CreateSession)
			r.Get("/{sid}", sessionHandler.GetSession)
			r.Delete("/{sid}", sessionHandler.DeleteSession)
			r.Put("/{sid}/page", sessionHandler.ChangePage)
			r.Put("/{sid}/sort", sessionHandler.ChangeSort)
			r.Put("/{sid}/location", sessionHandler.Navigate)
			r.Put("/{sid}/saved/{productId}", sessionHandler.SaveProduct)
			r.Delete("/{sid}/saved/{productId}", sessionHandler.UnsaveProduct)
		})
	})

	// Everything else the storefront calls goes to the remote API untouched;
	// it checks its own credentials.
	for name, prefix := range proxy.Routes {
		r.Handle(prefix, sp.Handler(name))
		r.Handle(prefix+"/*", sp.Handler(name))
	}

	return r
}
