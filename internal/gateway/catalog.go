package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kidsdesign/storefront/internal/catalog"
	"github.com/kidsdesign/storefront/pkg/httpclient"
)

// CatalogClient reads categories and product listings from the remote API.
type CatalogClient struct {
	api *apiClient
}

// NewCatalogClient returns a client for the API at baseURL, e.g.
// "https://api.kidsdesigncompany.com".
func NewCatalogClient(baseURL string, doer httpclient.Doer, logger *slog.Logger) (*CatalogClient, error) {
	api, err := newAPIClient("catalog-api", baseURL, doer, logger)
	if err != nil {
		return nil, err
	}
	return &CatalogClient{api: api}, nil
}

// FetchCategory loads one category by id.
func (c *CatalogClient) FetchCategory(ctx context.Context, categoryID int) (cat catalog.Category, err error) {
	ctx, span := c.api.startSpan(ctx, "FetchCategory", attribute.Int("category.id", categoryID))
	defer func() { endSpan(span, err) }()

	path := "/api/v1/product/category/" + strconv.Itoa(categoryID) + "/"
	if err := c.api.do(ctx, http.MethodGet, c.api.endpoint(path, nil), nil, &cat); err != nil {
		return catalog.Category{}, err
	}
	if cat.ID == 0 {
		return catalog.Category{}, fmt.Errorf("%w: category %d response has no id", catalog.ErrMalformedData, categoryID)
	}
	return cat, nil
}

// FetchProductPage loads one page of the available products in a category.
// A page past the end of the listing is an empty page rather than an error.
func (c *CatalogClient) FetchProductPage(ctx context.Context, categoryID, page, pageSize int) (result catalog.ProductPage, err error) {
	ctx, span := c.api.startSpan(ctx, "FetchProductPage",
		attribute.Int("category.id", categoryID),
		attribute.Int("page", page),
		attribute.Int("page_size", pageSize),
	)
	defer func() { endSpan(span, err) }()

	q := url.Values{}
	q.Set("is_available", "true")
	q.Set("category", strconv.Itoa(categoryID))
	q.Set("page_size", strconv.Itoa(pageSize))
	q.Set("page", strconv.Itoa(page))

	var env pageEnvelope[catalog.Product]
	err = c.api.do(ctx, http.MethodGet, c.api.endpoint("/api/v1/product/item/", q), nil, &env)
	if errors.Is(err, catalog.ErrNotFound) && page > 1 {
		c.api.logger.DebugContext(ctx, "product page out of range",
			slog.Int("category_id", categoryID),
			slog.Int("page", page),
		)
		return catalog.ProductPage{HasPrevious: true, Items: []catalog.Product{}}, nil
	}
	if err != nil {
		return catalog.ProductPage{}, err
	}

	items := env.Results
	if items == nil {
		items = []catalog.Product{}
	}
	span.SetAttributes(attribute.Int("results", len(items)), attribute.Int("count", env.Count))
	return catalog.ProductPage{
		TotalCount:  env.Count,
		HasNext:     env.Next != nil,
		HasPrevious: env.Previous != nil,
		Items:       items,
	}, nil
}

// Ping checks that the remote API answers. A 404 still proves it is up.
func (c *CatalogClient) Ping(ctx context.Context) error {
	err := c.api.do(ctx, http.MethodGet, c.api.endpoint("/api/v1/product/category/", url.Values{"page_size": {"1"}}), nil, nil)
	if err != nil && !errors.Is(err, catalog.ErrNotFound) {
		return err
	}
	return nil
}
