// Package gateway talks to the remote storefront REST API on behalf of the
// composer: category metadata, product listings and the shopper's wishlist.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kidsdesign/storefront/internal/catalog"
	apperrors "github.com/kidsdesign/storefront/pkg/errors"
	"github.com/kidsdesign/storefront/pkg/httpclient"
	"github.com/kidsdesign/storefront/pkg/middleware"
)

const tracerName = "github.com/kidsdesign/storefront/internal/gateway"

// maxResponseBytes bounds decoded response bodies.
const maxResponseBytes = 8 << 20

// apiClient performs JSON requests against one base URL.
type apiClient struct {
	name    string
	baseURL *url.URL
	doer    httpclient.Doer
	logger  *slog.Logger
	tracer  trace.Tracer
}

func newAPIClient(name, baseURL string, doer httpclient.Doer, logger *slog.Logger) (*apiClient, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse %s base url: %w", name, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%s base url %q must be absolute", name, baseURL)
	}
	return &apiClient{
		name:    name,
		baseURL: u,
		doer:    doer,
		logger:  logger,
		tracer:  otel.Tracer(tracerName),
	}, nil
}

// endpoint resolves path (with a trailing slash, as the remote API expects)
// and query against the base URL.
func (c *apiClient) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	u.RawQuery = query.Encode()
	return u.String()
}

// sameOrigin reports whether raw points at the API host, so pagination links
// from the API are never followed elsewhere.
func (c *apiClient) sameOrigin(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Scheme, c.baseURL.Scheme) && strings.EqualFold(u.Host, c.baseURL.Host)
}

// do sends a request and decodes a 2xx JSON body into dst (when non-nil).
// Failures come back classified against the catalog error sentinels.
func (c *apiClient) do(ctx context.Context, method, rawURL string, body io.Reader, dst any) error {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", c.name, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := middleware.BearerTokenFromContext(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.doer.Do(ctx, req)
	if err != nil {
		return classify(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return classify(httpclient.ParseResponseError(resp, c.name))
	}
	defer func() { _ = resp.Body.Close() }()

	if dst == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(dst); err != nil {
		return fmt.Errorf("%w: decode %s response: %w", catalog.ErrMalformedData, c.name, err)
	}
	return nil
}

// classify maps transport and upstream errors onto the catalog taxonomy,
// keeping the original error in the chain.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, catalog.ErrNetwork), errors.Is(err, catalog.ErrMalformedData):
		return err
	case errors.Is(err, apperrors.ErrNotFound):
		return fmt.Errorf("%w: %w", catalog.ErrNotFound, err)
	default:
		return fmt.Errorf("%w: %w", catalog.ErrNetwork, err)
	}
}

// startSpan opens a client span for a gateway call.
func (c *apiClient) startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, c.name+"."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(append(attrs, attribute.String("peer.service", c.name))...),
	)
}

// endSpan records err on span unless it is a cancellation, which is how
// superseded lanes end.
func endSpan(span trace.Span, err error) {
	if err != nil && !catalog.IsCanceled(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(catalog.KindOf(err)))
	}
	span.End()
}

// pageEnvelope is the remote API's pagination envelope.
type pageEnvelope[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}
