// Package proxy forwards the storefront surfaces this service does not
// compose (auth, orders, payments, contact, admin) to the remote API as is.
package proxy

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	pkghttputil "github.com/kidsdesign/storefront/pkg/httputil"
	"github.com/kidsdesign/storefront/pkg/logger"
)

var proxyErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "storefront_proxy_errors_total",
		Help: "Proxied requests that failed to reach the remote API",
	},
	[]string{"route"},
)

// Routes are the path prefixes (below /api/v1) forwarded to the remote API,
// keyed by route name.
var Routes = map[string]string{
	"auth":    "/api/v1/auth",
	"order":   "/api/v1/order",
	"payment": "/api/v1/payment",
	"contact": "/api/v1/contact",
	"admin":   "/api/v1/admin",
	"product": "/api/v1/product",
}

// Config holds reverse proxy transport settings.
type Config struct {
	TargetURL       string
	DialTimeout     time.Duration
	ResponseTimeout time.Duration
	IdleTimeout     time.Duration
	MaxIdleConns    int
}

// DefaultConfig returns transport defaults for targetURL.
func DefaultConfig(targetURL string) Config {
	return Config{
		TargetURL:       targetURL,
		DialTimeout:     5 * time.Second,
		ResponseTimeout: 30 * time.Second,
		IdleTimeout:     90 * time.Second,
		MaxIdleConns:    100,
	}
}

// ServiceProxy manages reverse proxies to the remote API, one per route so
// errors and metrics are attributed.
type ServiceProxy struct {
	target *url.URL
	routes map[string]*httputil.ReverseProxy
	logger *slog.Logger
}

// NewServiceProxy creates a reverse proxy for every entry in Routes.
func NewServiceProxy(cfg Config, logger *slog.Logger) (*ServiceProxy, error) {
	target, err := url.Parse(cfg.TargetURL)
	if err != nil {
		return nil, fmt.Errorf("parse proxy target: %w", err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("proxy target %q must be absolute", cfg.TargetURL)
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConns,
		IdleConnTimeout:       cfg.IdleTimeout,
		ResponseHeaderTimeout: cfg.ResponseTimeout,
		TLSHandshakeTimeout:   5 * time.Second,
	}

	sp := &ServiceProxy{
		target: target,
		routes: make(map[string]*httputil.ReverseProxy, len(Routes)),
		logger: logger,
	}
	for name := range Routes {
		sp.routes[name] = &httputil.ReverseProxy{
			Rewrite: func(pr *httputil.ProxyRequest) {
				pr.SetURL(target)
				pr.SetXForwarded()
				pr.Out.Host = target.Host
			},
			Transport:    transport,
			ErrorHandler: sp.errorHandler(name),
		}
	}

	logger.Info("registered remote API proxy",
		slog.String("target", target.String()),
		slog.Int("routes", len(sp.routes)),
	)
	return sp, nil
}

// Handler returns the proxy for the named route.
func (sp *ServiceProxy) Handler(name string) http.Handler {
	proxy, ok := sp.routes[name]
	if !ok {
		sp.logger.Error("no proxy registered for route", slog.String("route", name))
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			pkghttputil.WriteJSON(w, http.StatusBadGateway, pkghttputil.Response{
				Error: &pkghttputil.ErrorResponse{Code: "SERVICE_UNAVAILABLE", Message: "route not configured"},
			})
		})
	}
	return proxy
}

// errorHandler logs proxy failures and answers with the JSON error envelope.
func (sp *ServiceProxy) errorHandler(name string) func(http.ResponseWriter, *http.Request, error) {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		proxyErrorsTotal.WithLabelValues(name).Inc()
		logger.WithContext(r.Context(), sp.logger).ErrorContext(r.Context(), "proxy error",
			slog.String("route", name),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)

		pkghttputil.WriteJSON(w, http.StatusBadGateway, pkghttputil.Response{
			Error: &pkghttputil.ErrorResponse{
				Code:      "BAD_GATEWAY",
				Message:   "upstream service unavailable",
				RequestID: logger.CorrelationIDFromContext(r.Context()),
			},
		})
	}
}
