package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kidsdesign/storefront/internal/catalog"
	"github.com/kidsdesign/storefront/internal/composer"
	"github.com/kidsdesign/storefront/internal/event"
	apperrors "github.com/kidsdesign/storefront/pkg/errors"
	"github.com/kidsdesign/storefront/pkg/middleware"
)

// --- mocks ---

type mockCatalog struct {
	mock.Mock
}

func (m *mockCatalog) FetchCategory(ctx context.Context, categoryID int) (catalog.Category, error) {
	args := m.Called(ctx, categoryID)
	return args.Get(0).(catalog.Category), args.Error(1)
}

func (m *mockCatalog) FetchProductPage(ctx context.Context, categoryID, page, pageSize int) (catalog.ProductPage, error) {
	args := m.Called(ctx, categoryID, page, pageSize)
	return args.Get(0).(catalog.ProductPage), args.Error(1)
}

type mockWishlist struct {
	mock.Mock
}

func (m *mockWishlist) FetchWishlist(ctx context.Context) ([]catalog.WishEntry, error) {
	args := m.Called(ctx)
	entries, _ := args.Get(0).([]catalog.WishEntry)
	return entries, args.Error(1)
}

func (m *mockWishlist) AddItem(ctx context.Context, productID int) (catalog.WishEntry, error) {
	args := m.Called(ctx, productID)
	return args.Get(0).(catalog.WishEntry), args.Error(1)
}

func (m *mockWishlist) RemoveItem(ctx context.Context, entryID int) error {
	args := m.Called(ctx, entryID)
	return args.Error(0)
}

type mockEvents struct {
	mock.Mock
}

func (m *mockEvents) PublishProductSaved(ctx context.Context, data event.ProductSavedData) error {
	args := m.Called(ctx, data)
	return args.Error(0)
}

// --- helpers ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	mgr      *Manager
	catalog  *mockCatalog
	wishlist *mockWishlist
	events   *mockEvents
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{
		catalog:  &mockCatalog{},
		wishlist: &mockWishlist{},
		events:   &mockEvents{},
	}
	f.catalog.On("FetchCategory", mock.Anything, 5).Return(catalog.Category{ID: 5, Name: "Toys"}, nil).Maybe()
	f.catalog.On("FetchProductPage", mock.Anything, 5, mock.Anything, mock.Anything).Return(catalog.ProductPage{
		TotalCount: 2,
		Items:      []catalog.Product{{ID: 10, Price: "5"}, {ID: 11, Price: "7"}},
	}, nil).Maybe()
	f.wishlist.On("FetchWishlist", mock.Anything).Return([]catalog.WishEntry{{ID: 900, ProductID: 11}}, nil).Maybe()

	if cfg.TTL == 0 {
		cfg.TTL = time.Minute
	}
	f.mgr = NewManager(cfg, f.catalog, f.wishlist, f.events, testLogger())
	t.Cleanup(f.mgr.Close)
	return f
}

func shopper(id string) context.Context {
	ctx := middleware.WithUserID(context.Background(), id)
	return middleware.WithBearerToken(ctx, "tok-"+id)
}

func ready(t *testing.T, s *Session) composer.View {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	v, err := s.Composer.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, composer.RenderReady, v.State)
	return v
}

func savedIn(v composer.View, productID int) (bool, *int) {
	for _, item := range v.Items {
		if item.ID == productID {
			return item.IsSaved, item.WishEntryID
		}
	}
	return false, nil
}

func httpStatus(t *testing.T, err error) int {
	t.Helper()
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr), "want AppError, got %v", err)
	return appErr.Status
}

// --- lifecycle ---

func TestCreate(t *testing.T) {
	f := newFixture(t, Config{})

	s, err := f.mgr.Create(shopper("42"), "/category/5?page=1")
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, "42", s.UserID)
	assert.Equal(t, 1, f.mgr.Len())

	v := ready(t, s)
	saved, entry := savedIn(v, 11)
	assert.True(t, saved)
	assert.Equal(t, 900, *entry)
}

func TestCreate_InvalidLocation(t *testing.T) {
	f := newFixture(t, Config{})

	for _, raw := range []string{"/category/toys", "%zz", "/"} {
		_, err := f.mgr.Create(shopper("42"), raw)
		require.Error(t, err, raw)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	}
	assert.Equal(t, 0, f.mgr.Len())
}

func TestCreate_Capacity(t *testing.T) {
	f := newFixture(t, Config{MaxSessions: 1})

	_, err := f.mgr.Create(shopper("42"), "/category/5")
	require.NoError(t, err)
	_, err = f.mgr.Create(shopper("42"), "/category/5")
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
}

func TestCreate_CapacityUnderConcurrency(t *testing.T) {
	f := newFixture(t, Config{MaxSessions: 3})

	const callers = 20
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.mgr.Create(shopper("42"), "/category/5")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	created := 0
	for err := range errs {
		if err == nil {
			created++
			continue
		}
		assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
	}
	assert.Equal(t, 3, created)
	assert.Equal(t, 3, f.mgr.Len())
}

func TestGet_OwnerOnly(t *testing.T) {
	f := newFixture(t, Config{})
	s, err := f.mgr.Create(shopper("42"), "/category/5")
	require.NoError(t, err)

	got, err := f.mgr.Get(shopper("42"), s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)

	_, err = f.mgr.Get(shopper("43"), s.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = f.mgr.Get(context.Background(), s.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = f.mgr.Get(shopper("42"), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDelete_Unmounts(t *testing.T) {
	f := newFixture(t, Config{})
	s, err := f.mgr.Create(shopper("42"), "/category/5")
	require.NoError(t, err)

	require.NoError(t, f.mgr.Delete(shopper("42"), s.ID))
	assert.Equal(t, 0, f.mgr.Len())
	_, err = s.Composer.Wait(context.Background())
	assert.ErrorIs(t, err, composer.ErrUnmounted)

	assert.ErrorIs(t, f.mgr.Delete(shopper("42"), s.ID), apperrors.ErrNotFound)
}

func TestEvictIdle(t *testing.T) {
	f := newFixture(t, Config{TTL: time.Minute})
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f.mgr.nowFunc = func() time.Time { return now }

	stale, err := f.mgr.Create(shopper("1"), "/category/5")
	require.NoError(t, err)
	now = now.Add(45 * time.Second)
	fresh, err := f.mgr.Create(shopper("2"), "/category/5")
	require.NoError(t, err)

	now = now.Add(30 * time.Second)
	f.mgr.evictIdle()

	assert.Equal(t, 1, f.mgr.Len())
	_, err = f.mgr.Get(shopper("1"), stale.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = f.mgr.Get(shopper("2"), fresh.ID)
	assert.NoError(t, err)
}

func TestRun_ClosesOnShutdown(t *testing.T) {
	f := newFixture(t, Config{TTL: time.Hour})
	s, err := f.mgr.Create(shopper("42"), "/category/5")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.mgr.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.Equal(t, 0, f.mgr.Len())
	_, err = s.Composer.Wait(context.Background())
	assert.ErrorIs(t, err, composer.ErrUnmounted)
}

// --- save / unsave ---

func TestSetSaved_Add(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := shopper("42")
	s, err := f.mgr.Create(ctx, "/category/5")
	require.NoError(t, err)
	ready(t, s)

	f.wishlist.On("AddItem", mock.Anything, 10).Return(catalog.WishEntry{ID: 950, ProductID: 10}, nil).Once()
	f.events.On("PublishProductSaved", mock.Anything, event.ProductSavedData{ProductID: 10, Saved: true, EntryID: 950}).Return(nil).Once()

	require.NoError(t, f.mgr.SetSaved(ctx, s, 10, true))

	saved, entry := savedIn(s.Composer.View(), 10)
	assert.True(t, saved)
	require.NotNil(t, entry)
	assert.Equal(t, 950, *entry)
	f.wishlist.AssertExpectations(t)
	f.events.AssertExpectations(t)
}

func TestSetSaved_AddFailureRollsBack(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"upstream down", fmt.Errorf("%w: boom", catalog.ErrNetwork), http.StatusBadGateway},
		{"token rejected", fmt.Errorf("%w: %w", catalog.ErrNetwork, apperrors.Unauthorized("wishlist-api: token expired")), http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Config{})
			ctx := shopper("42")
			s, err := f.mgr.Create(ctx, "/category/5")
			require.NoError(t, err)
			ready(t, s)

			f.wishlist.On("AddItem", mock.Anything, 10).Return(catalog.WishEntry{}, tt.err).Once()

			err = f.mgr.SetSaved(ctx, s, 10, true)
			require.Error(t, err)
			assert.Equal(t, tt.wantStatus, httpStatus(t, err))

			saved, _ := savedIn(s.Composer.View(), 10)
			assert.False(t, saved, "optimistic save must be rolled back")
			_, existed := s.Composer.Override(10)
			assert.False(t, existed)
			f.events.AssertNotCalled(t, "PublishProductSaved", mock.Anything, mock.Anything)
		})
	}
}

func TestSetSaved_Remove(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := shopper("42")
	s, err := f.mgr.Create(ctx, "/category/5")
	require.NoError(t, err)
	ready(t, s)

	f.wishlist.On("RemoveItem", mock.Anything, 900).Return(nil).Once()
	f.events.On("PublishProductSaved", mock.Anything, mock.Anything).Return(errors.New("kafka down")).Once()

	require.NoError(t, f.mgr.SetSaved(ctx, s, 11, false), "event failures do not fail the save")

	saved, entry := savedIn(s.Composer.View(), 11)
	assert.False(t, saved)
	assert.Nil(t, entry)
	f.wishlist.AssertExpectations(t)
}

func TestSetSaved_RemoveFailureRestoresSaved(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := shopper("42")
	s, err := f.mgr.Create(ctx, "/category/5")
	require.NoError(t, err)
	ready(t, s)

	f.wishlist.On("RemoveItem", mock.Anything, 900).Return(catalog.ErrNetwork).Once()

	err = f.mgr.SetSaved(ctx, s, 11, false)
	assert.Equal(t, http.StatusBadGateway, httpStatus(t, err))

	saved, entry := savedIn(s.Composer.View(), 11)
	assert.True(t, saved)
	assert.Equal(t, 900, *entry)
}

func TestSetSaved_Idempotent(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := shopper("42")
	s, err := f.mgr.Create(ctx, "/category/5")
	require.NoError(t, err)
	ready(t, s)

	require.NoError(t, f.mgr.SetSaved(ctx, s, 11, true))
	require.NoError(t, f.mgr.SetSaved(ctx, s, 10, false))
	f.wishlist.AssertNotCalled(t, "AddItem", mock.Anything, mock.Anything)
	f.wishlist.AssertNotCalled(t, "RemoveItem", mock.Anything, mock.Anything)
}

func TestSetSaved_RemoveWithoutEntryConflicts(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := shopper("42")
	s, err := f.mgr.Create(ctx, "/category/5")
	require.NoError(t, err)
	ready(t, s)

	s.Composer.SetSaved(10, true, 0)
	err = f.mgr.SetSaved(ctx, s, 10, false)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestSetSaved_NoWishlist(t *testing.T) {
	mgr := NewManager(Config{TTL: time.Minute}, &mockCatalog{}, nil, nil, testLogger())
	err := mgr.SetSaved(context.Background(), &Session{}, 1, true)
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
}
