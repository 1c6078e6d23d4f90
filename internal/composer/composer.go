// Package composer builds the category page view from three independently
// loading sources: category metadata, a product listing page and the user's
// wishlist.
package composer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/kidsdesign/storefront/internal/catalog"
	"github.com/kidsdesign/storefront/internal/location"
	"github.com/kidsdesign/storefront/pkg/logger"
)

var (
	// ErrUnmounted is returned by operations on a composer that has been unmounted.
	ErrUnmounted = errors.New("composer unmounted")
	// ErrAlreadyMounted is returned when Mount is called twice.
	ErrAlreadyMounted = errors.New("composer already mounted")
)

// CatalogGateway reads category metadata and product listing pages.
type CatalogGateway interface {
	FetchCategory(ctx context.Context, categoryID int) (catalog.Category, error)
	FetchProductPage(ctx context.Context, categoryID, page, pageSize int) (catalog.ProductPage, error)
}

// WishlistGateway reads the current user's wishlist.
type WishlistGateway interface {
	FetchWishlist(ctx context.Context) ([]catalog.WishEntry, error)
}

// Composer owns the lanes of one mounted category page. All lane results are
// applied under a single lock in arrival order, and a result is only applied
// when its request key still matches the lane.
type Composer struct {
	catalog  CatalogGateway
	wishlist WishlistGateway
	pageSize int
	logger   *slog.Logger
	sort     *SortSelector

	mu          sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	loc         *location.Location
	unsubscribe func()
	mounted     bool
	unmounted   bool
	request     catalog.PageRequest
	generation  uint64
	category    Lane[catalog.Category]
	products    Lane[catalog.ProductPage]
	wishes      Lane[catalog.WishIndex]
	overrides   catalog.Overrides
	stopCat     context.CancelFunc
	stopProd    context.CancelFunc
	changed     chan struct{}
}

// New creates an unmounted composer.
func New(catalogGW CatalogGateway, wishlistGW WishlistGateway, pageSize int, logger *slog.Logger) *Composer {
	if pageSize <= 0 {
		pageSize = catalog.PageSize
	}
	c := &Composer{
		catalog:   catalogGW,
		wishlist:  wishlistGW,
		pageSize:  pageSize,
		logger:    logger,
		sort:      NewSortSelector(),
		overrides: make(catalog.Overrides),
		changed:   make(chan struct{}),
	}
	c.sort.OnChange(func(catalog.SortCriterion) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.notifyLocked()
	})
	return c
}

// Mount binds the composer to loc, starts the wishlist lane and the lanes for
// the current location. Values carried by ctx (credentials, logger, trace)
// are kept for the lifetime of the mount; its cancellation is not, only
// Unmount stops the lanes.
func (c *Composer) Mount(ctx context.Context, loc *location.Location) error {
	req, err := location.Resolve(loc.URL())
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.mounted {
		c.mu.Unlock()
		return ErrAlreadyMounted
	}
	c.mounted = true
	c.ctx, c.cancel = context.WithCancel(context.WithoutCancel(ctx))
	c.loc = loc
	c.unsubscribe = loc.Subscribe(c.onLocationChange)
	c.startWishlistLocked()
	c.navigateLocked(req)
	c.mu.Unlock()
	return nil
}

// Unmount stops all lanes. Results arriving afterwards are dropped and the
// view is frozen.
func (c *Composer) Unmount() {
	c.mu.Lock()
	if c.unmounted {
		c.mu.Unlock()
		return
	}
	c.unmounted = true
	if c.cancel != nil {
		c.cancel()
	}
	unsubscribe := c.unsubscribe
	c.notifyLocked()
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// View runs one composition pass over the current lane states.
func (c *Composer) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// Wait blocks until the view is no longer loading and returns it.
func (c *Composer) Wait(ctx context.Context) (View, error) {
	for {
		c.mu.Lock()
		v := c.viewLocked()
		if c.unmounted {
			c.mu.Unlock()
			return v, ErrUnmounted
		}
		if !v.Loading {
			c.mu.Unlock()
			return v, nil
		}
		changed := c.changed
		c.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return v, ctx.Err()
		}
	}
}

// Changed returns a channel that is closed on the next state change.
func (c *Composer) Changed() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.changed
}

// Location returns the location the composer is mounted on.
func (c *Composer) Location() *location.Location {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loc
}

// OnPageChange rewrites the page query parameter, which in turn restarts the
// product lane through the location subscription.
func (c *Composer) OnPageChange(page int) error {
	loc, err := c.mountedLocation()
	if err != nil {
		return err
	}
	if page < 1 {
		page = 1
	}
	loc.SetPageNumber(page)
	return nil
}

// OnSortChange switches the sort criterion. The loaded page is re-sorted on
// the next composition pass; nothing is re-fetched.
func (c *Composer) OnSortChange(criterion catalog.SortCriterion) {
	c.sort.Select(criterion)
}

// Navigate moves the mounted page to a new location.
func (c *Composer) Navigate(raw string) error {
	loc, err := c.mountedLocation()
	if err != nil {
		return err
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse location: %w", err)
	}
	if _, err := location.Resolve(u); err != nil {
		return err
	}
	return loc.Navigate(raw)
}

// SetSaved records a local save or unsave for productID. It takes effect on
// the next composition pass without re-running the wishlist fetch. entryID
// may be zero when the wishlist entry id is not known yet.
func (c *Composer) SetSaved(productID int, saved bool, entryID int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.overrides[productID] = catalog.Override{Saved: saved, EntryID: entryID}
	c.notifyLocked()
}

// Override returns the local override for productID, if any.
func (c *Composer) Override(productID int) (catalog.Override, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.overrides[productID]
	return o, ok
}

// RestoreOverride puts back a previously read override, removing the entry
// when there was none.
func (c *Composer) RestoreOverride(productID int, o catalog.Override, existed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existed {
		c.overrides[productID] = o
	} else {
		delete(c.overrides, productID)
	}
	c.notifyLocked()
}

// SavedEntry reports whether productID is currently saved and the wishlist
// entry id backing it, if known.
func (c *Composer) SavedEntry(productID int) (bool, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var idx catalog.WishIndex
	if c.wishes.State == LaneSucceeded {
		idx = c.wishes.Data
	}
	saved, entryID := catalog.Lookup(productID, idx, c.overrides)
	if entryID == nil {
		return saved, 0
	}
	return saved, *entryID
}

func (c *Composer) mountedLocation() (*location.Location, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unmounted || !c.mounted {
		return nil, ErrUnmounted
	}
	return c.loc, nil
}

// onLocationChange applies the current location rather than u, so the last
// notification to run wins when changes overlap.
func (c *Composer) onLocationChange(*url.URL) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loc == nil {
		return
	}

	u := c.loc.URL()
	req, err := location.Resolve(u)
	if err != nil {
		c.logger.Warn("ignoring unresolvable location",
			slog.String("location", u.String()),
			slog.String("error", err.Error()),
		)
		return
	}
	c.navigateLocked(req)
}

func (c *Composer) viewLocked() View {
	return Merge(MergeInput{
		Request:   c.request,
		PageSize:  c.pageSize,
		Sort:      c.sort.Current(),
		Category:  c.category,
		Products:  c.products,
		Wishlist:  c.wishes,
		Overrides: c.overrides,
	})
}

// navigateLocked restarts the lanes affected by moving to req. The category
// lane is kept when the category id is unchanged and its fetch has not failed.
func (c *Composer) navigateLocked(req catalog.PageRequest) {
	if c.unmounted {
		return
	}

	sameRequest := c.request == req && c.products.State != LaneIdle
	c.request = req

	keepCategory := c.category.Key.Params.CategoryID == req.CategoryID &&
		(c.category.State == LaneLoading || c.category.State == LaneSucceeded)
	if !keepCategory {
		c.startCategoryLocked(req.CategoryID)
	}

	if !sameRequest || c.products.State == LaneFailed {
		c.startProductsLocked(req)
	}

	c.notifyLocked()
}

func (c *Composer) nextKeyLocked(params catalog.PageRequest) RequestKey {
	c.generation++
	return RequestKey{Params: params, Generation: c.generation}
}

func (c *Composer) startCategoryLocked(categoryID int) {
	if c.stopCat != nil {
		c.stopCat()
	}
	key := c.nextKeyLocked(catalog.PageRequest{CategoryID: categoryID})
	c.category.Start(key)

	ctx, cancel := context.WithCancel(c.ctx)
	c.stopCat = cancel
	started := time.Now()

	go func() {
		defer cancel()
		category, err := c.catalog.FetchCategory(ctx, categoryID)
		laneDuration.WithLabelValues(catalog.LaneCategory).Observe(time.Since(started).Seconds())

		c.apply(ctx, catalog.LaneCategory, key, err, func() bool {
			if err != nil {
				return c.category.Fail(key, err)
			}
			return c.category.Succeed(key, category)
		})
	}()
}

func (c *Composer) startProductsLocked(req catalog.PageRequest) {
	if c.stopProd != nil {
		c.stopProd()
	}
	key := c.nextKeyLocked(req)
	c.products.Start(key)

	ctx, cancel := context.WithCancel(c.ctx)
	c.stopProd = cancel
	started := time.Now()
	pageSize := c.pageSize

	go func() {
		defer cancel()
		page, err := c.catalog.FetchProductPage(ctx, req.CategoryID, req.Page, pageSize)
		laneDuration.WithLabelValues(catalog.LaneProducts).Observe(time.Since(started).Seconds())

		c.apply(ctx, catalog.LaneProducts, key, err, func() bool {
			if err != nil {
				return c.products.Fail(key, err)
			}
			return c.products.Succeed(key, page)
		})
	}()
}

// startWishlistLocked fetches the wishlist once per mount. A missing gateway
// is an empty wishlist.
func (c *Composer) startWishlistLocked() {
	key := c.nextKeyLocked(catalog.PageRequest{})
	c.wishes.Start(key)

	if c.wishlist == nil {
		c.wishes.Succeed(key, catalog.NewWishIndex(nil))
		return
	}

	ctx := c.ctx
	started := time.Now()

	go func() {
		entries, err := c.wishlist.FetchWishlist(ctx)
		laneDuration.WithLabelValues(catalog.LaneWishlist).Observe(time.Since(started).Seconds())

		var idx catalog.WishIndex
		if err == nil {
			idx = catalog.NewWishIndex(entries)
		}

		c.apply(ctx, catalog.LaneWishlist, key, err, func() bool {
			if err != nil {
				return c.wishes.Fail(key, err)
			}
			return c.wishes.Succeed(key, idx)
		})
	}()
}

// apply hands a lane result to the lane under the composer lock and wakes
// waiters when the lane accepted it. Nothing is applied after Unmount.
func (c *Composer) apply(ctx context.Context, lane string, key RequestKey, err error, accept func() bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.unmounted {
		laneResultsTotal.WithLabelValues(lane, "unmounted").Inc()
		return
	}

	l := logger.WithContext(ctx, c.logger)

	switch {
	case !accept():
		laneResultsTotal.WithLabelValues(lane, "stale").Inc()
		l.Debug("discarded stale lane result",
			slog.String("lane", lane),
			slog.Int("category_id", key.Params.CategoryID),
			slog.Int("page", key.Params.Page),
			slog.Uint64("generation", key.Generation),
		)
		return
	case err != nil:
		laneResultsTotal.WithLabelValues(lane, "failed").Inc()
		level := slog.LevelError
		if lane == catalog.LaneWishlist {
			// Wishlist failures never reach the user.
			level = slog.LevelWarn
		}
		l.Log(ctx, level, "lane fetch failed",
			slog.String("lane", lane),
			slog.Int("category_id", key.Params.CategoryID),
			slog.Int("page", key.Params.Page),
			slog.String("error", err.Error()),
		)
	default:
		laneResultsTotal.WithLabelValues(lane, "succeeded").Inc()
	}

	c.notifyLocked()
}

func (c *Composer) notifyLocked() {
	close(c.changed)
	c.changed = make(chan struct{})
}
