package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kidsdesign/storefront/internal/catalog"
	"github.com/kidsdesign/storefront/internal/composer"
	"github.com/kidsdesign/storefront/internal/event"
	"github.com/kidsdesign/storefront/internal/location"
	apperrors "github.com/kidsdesign/storefront/pkg/errors"
	"github.com/kidsdesign/storefront/pkg/httputil"
	"github.com/kidsdesign/storefront/pkg/logger"
)

// PageViewPublisher receives page view events.
type PageViewPublisher interface {
	PublishPageViewed(ctx context.Context, data event.PageViewedData) error
}

// CatalogHandler renders one category page per request.
type CatalogHandler struct {
	catalog  composer.CatalogGateway
	wishlist composer.WishlistGateway
	events   PageViewPublisher
	pageSize int
	timeout  time.Duration
	logger   *slog.Logger
}

// NewCatalogHandler creates a category page handler. wishlistGW and events
// may be nil.
func NewCatalogHandler(
	catalogGW composer.CatalogGateway,
	wishlistGW composer.WishlistGateway,
	events PageViewPublisher,
	pageSize int,
	timeout time.Duration,
	logger *slog.Logger,
) *CatalogHandler {
	return &CatalogHandler{
		catalog:  catalogGW,
		wishlist: wishlistGW,
		events:   events,
		pageSize: pageSize,
		timeout:  timeout,
		logger:   logger,
	}
}

// GetCategoryPage handles GET /category/{id} and GET /api/v1/catalog/categories/{id}
func (h *CatalogHandler) GetCategoryPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := httputil.ParseID(w, "category id", chi.URLParam(r, "id")); !ok {
		return
	}

	criterion := catalog.DefaultSort
	if raw := r.URL.Query().Get("sort"); raw != "" {
		c, err := catalog.ParseSort(raw)
		if err != nil {
			httputil.WriteError(w, r, apperrors.InvalidInput(err.Error()), h.logger)
			return
		}
		criterion = c
	}

	loc, err := location.Parse(r.URL.RequestURI())
	if err != nil {
		httputil.WriteError(w, r, apperrors.InvalidInput(err.Error()), h.logger)
		return
	}

	comp := composer.New(h.catalog, h.wishlist, h.pageSize, h.logger)
	if err := comp.Mount(r.Context(), loc); err != nil {
		httputil.WriteError(w, r, apperrors.InvalidInput(err.Error()), h.logger)
		return
	}
	defer comp.Unmount()
	comp.OnSortChange(criterion)

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	v, err := comp.Wait(ctx)
	if err != nil && errors.Is(r.Context().Err(), context.Canceled) {
		logger.FromContext(r.Context()).DebugContext(r.Context(), "client went away before the page loaded")
		return
	}

	status, errBody := viewStatus(v)
	if errBody != nil {
		errBody.RequestID = logger.CorrelationIDFromContext(r.Context())
	}
	if !v.Loading {
		h.publishPageView(r.Context(), v)
	}

	httputil.WriteJSON(w, status, httputil.Response{
		Data:  newPageResponse(v, loc.URL()),
		Error: errBody,
	})
}

func (h *CatalogHandler) publishPageView(ctx context.Context, v composer.View) {
	if h.events == nil {
		return
	}
	err := h.events.PublishPageViewed(ctx, event.PageViewedData{
		CategoryID: v.Request.CategoryID,
		Page:       v.Request.Page,
		Sort:       v.Sort.String(),
		State:      string(v.State),
		Items:      len(v.Items),
		TotalPages: v.Pagination.TotalPages,
	})
	if err != nil {
		logger.FromContext(ctx).WarnContext(ctx, "failed to publish page view",
			slog.Int("category_id", v.Request.CategoryID),
			slog.String("error", err.Error()),
		)
	}
}
