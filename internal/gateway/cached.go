package gateway

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kidsdesign/storefront/internal/catalog"
	"github.com/kidsdesign/storefront/pkg/cache"
)

var categoryCacheTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "storefront_category_cache_total",
		Help: "Category cache lookups by result (hit, miss, error)",
	},
	[]string{"result"},
)

// CatalogSource is what CachedCatalog decorates.
type CatalogSource interface {
	FetchCategory(ctx context.Context, categoryID int) (catalog.Category, error)
	FetchProductPage(ctx context.Context, categoryID, page, pageSize int) (catalog.ProductPage, error)
}

// CachedCatalog serves category metadata read-through from Redis. Product
// pages always go to the source. Only successful lookups are cached, and a
// Redis outage degrades to direct fetches.
type CachedCatalog struct {
	source CatalogSource
	cache  *cache.JSON[catalog.Category]
	logger *slog.Logger
}

// NewCachedCatalog wraps source with the category cache.
func NewCachedCatalog(source CatalogSource, categories *cache.JSON[catalog.Category], logger *slog.Logger) *CachedCatalog {
	return &CachedCatalog{source: source, cache: categories, logger: logger}
}

// FetchCategory returns the cached category or loads and caches it.
func (c *CachedCatalog) FetchCategory(ctx context.Context, categoryID int) (catalog.Category, error) {
	key := strconv.Itoa(categoryID)

	cat, err := c.cache.Get(ctx, key)
	switch {
	case err == nil:
		categoryCacheTotal.WithLabelValues("hit").Inc()
		return cat, nil
	case errors.Is(err, cache.ErrMiss):
		categoryCacheTotal.WithLabelValues("miss").Inc()
	case catalog.IsCanceled(err):
		return catalog.Category{}, err
	default:
		categoryCacheTotal.WithLabelValues("error").Inc()
		c.logger.WarnContext(ctx, "category cache read failed",
			slog.Int("category_id", categoryID),
			slog.String("error", err.Error()),
		)
	}

	cat, err = c.source.FetchCategory(ctx, categoryID)
	if err != nil {
		return catalog.Category{}, err
	}

	if err := c.cache.Set(ctx, key, cat); err != nil && !catalog.IsCanceled(err) {
		c.logger.WarnContext(ctx, "category cache write failed",
			slog.Int("category_id", categoryID),
			slog.String("error", err.Error()),
		)
	}
	return cat, nil
}

// FetchProductPage delegates to the source.
func (c *CachedCatalog) FetchProductPage(ctx context.Context, categoryID, page, pageSize int) (catalog.ProductPage, error) {
	return c.source.FetchProductPage(ctx, categoryID, page, pageSize)
}
