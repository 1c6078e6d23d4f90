package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kidsdesign/storefront/internal/catalog"
	apperrors "github.com/kidsdesign/storefront/pkg/errors"
	"github.com/kidsdesign/storefront/pkg/httpclient"
	"github.com/kidsdesign/storefront/pkg/middleware"
)

// DefaultWishlistPath is the wishlist collection on the remote API.
const DefaultWishlistPath = "/api/v1/order/wishlist/"

// maxWishlistPages bounds how many `next` links FetchWishlist follows.
const maxWishlistPages = 20

// wishItem is a remote wishlist entry; only the product id is needed.
type wishItem struct {
	ID      int `json:"id"`
	Product struct {
		ID int `json:"id"`
	} `json:"product"`
}

// WishlistClient reads and edits the signed-in shopper's wishlist. The
// bearer token is taken from the request context.
type WishlistClient struct {
	api    *apiClient
	writes *apiClient
	path   string
}

// NewWishlistClient returns a wishlist client. Reads go through reader;
// writes go through writer, which should not retry non-idempotent POSTs.
func NewWishlistClient(baseURL, path string, reader, writer httpclient.Doer, logger *slog.Logger) (*WishlistClient, error) {
	api, err := newAPIClient("wishlist-api", baseURL, reader, logger)
	if err != nil {
		return nil, err
	}
	if path == "" {
		path = DefaultWishlistPath
	}
	writes := api
	if writer != nil {
		cpy := *api
		cpy.doer = writer
		writes = &cpy
	}
	return &WishlistClient{api: api, writes: writes, path: path}, nil
}

// FetchWishlist returns every entry of the shopper's wishlist, following the
// API's pagination. Anonymous shoppers have an empty wishlist.
func (c *WishlistClient) FetchWishlist(ctx context.Context) (entries []catalog.WishEntry, err error) {
	if middleware.BearerTokenFromContext(ctx) == "" {
		return nil, nil
	}

	ctx, span := c.api.startSpan(ctx, "FetchWishlist")
	defer func() { endSpan(span, err) }()

	next := c.api.endpoint(c.path, nil)
	for pages := 0; next != ""; pages++ {
		if pages == maxWishlistPages {
			c.api.logger.WarnContext(ctx, "wishlist pagination truncated",
				slog.Int("pages", pages),
				slog.Int("entries", len(entries)),
			)
			break
		}

		var env pageEnvelope[wishItem]
		if err := c.api.do(ctx, http.MethodGet, next, nil, &env); err != nil {
			return nil, err
		}
		for _, item := range env.Results {
			entries = append(entries, catalog.WishEntry{ID: item.ID, ProductID: item.Product.ID})
		}

		next = ""
		if env.Next != nil && c.api.sameOrigin(*env.Next) {
			next = *env.Next
		}
	}

	span.SetAttributes(attribute.Int("entries", len(entries)))
	return entries, nil
}

// AddItem saves productID and returns the created entry.
func (c *WishlistClient) AddItem(ctx context.Context, productID int) (entry catalog.WishEntry, err error) {
	if middleware.BearerTokenFromContext(ctx) == "" {
		return catalog.WishEntry{}, apperrors.Unauthorized("sign in to save products")
	}

	ctx, span := c.api.startSpan(ctx, "AddItem", attribute.Int("product.id", productID))
	defer func() { endSpan(span, err) }()

	body, err := json.Marshal(map[string]int{"product_id": productID})
	if err != nil {
		return catalog.WishEntry{}, fmt.Errorf("encode wishlist item: %w", err)
	}

	var item wishItem
	if err := c.writes.do(ctx, http.MethodPost, c.api.endpoint(c.path, nil), bytes.NewReader(body), &item); err != nil {
		return catalog.WishEntry{}, err
	}
	if item.Product.ID == 0 {
		item.Product.ID = productID
	}
	return catalog.WishEntry{ID: item.ID, ProductID: item.Product.ID}, nil
}

// RemoveItem deletes the wishlist entry entryID. Removing an entry that no
// longer exists succeeds.
func (c *WishlistClient) RemoveItem(ctx context.Context, entryID int) (err error) {
	if middleware.BearerTokenFromContext(ctx) == "" {
		return apperrors.Unauthorized("sign in to edit the wishlist")
	}

	ctx, span := c.api.startSpan(ctx, "RemoveItem", attribute.Int("wishlist.entry_id", entryID))
	defer func() { endSpan(span, err) }()

	err = c.writes.do(ctx, http.MethodDelete, c.api.endpoint(c.path+strconv.Itoa(entryID)+"/", nil), nil, nil)
	if err != nil && catalog.KindOf(err) == catalog.KindNotFound {
		return nil
	}
	return err
}
