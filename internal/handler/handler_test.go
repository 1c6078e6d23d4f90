package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kidsdesign/storefront/internal/catalog"
	"github.com/kidsdesign/storefront/internal/config"
	"github.com/kidsdesign/storefront/internal/event"
	"github.com/kidsdesign/storefront/internal/proxy"
	"github.com/kidsdesign/storefront/internal/session"
	"github.com/kidsdesign/storefront/pkg/health"
)

const testJWTSecret = "test-jwt-secret-for-handler-tests"

// ============================================================================
// Mocks
// ============================================================================

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

type mockPageViews struct {
	mock.Mock
}

func (m *mockPageViews) PublishPageViewed(ctx context.Context, data event.PageViewedData) error {
	args := m.Called(ctx, data)
	return args.Error(0)
}

// ============================================================================
// Test helpers
// ============================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	return &config.Config{
		Environment:         "development",
		JWTSecret:           testJWTSecret,
		CatalogPageSize:     catalog.PageSize,
		ComposeTimeout:      2 * time.Second,
		SessionTTL:          time.Minute,
		SessionMaxCount:     10,
		RateLimitRPS:        10000,
		RateLimitBurst:      20000,
		CORSAllowedOrigins:  []string{"*"},
		CORSMaxAge:          3600,
		MetricsAllowedCIDRs: []string{"127.0.0.0/8"},
		PprofAllowedCIDRs:   []string{"127.0.0.0/8"},
	}
}

type fixture struct {
	handler  http.Handler
	catalog  *mockCatalog
	wishlist *mockWishlist
	events   *mockPageViews
	sessions *session.Manager
	backend  *httptest.Server
}

func newFixture(t *testing.T, cfg *config.Config) *fixture {
	t.Helper()

	f := &fixture{
		catalog:  &mockCatalog{},
		wishlist: &mockWishlist{},
		events:   &mockPageViews{},
	}
	f.events.On("PublishPageViewed", mock.Anything, mock.Anything).Return(nil).Maybe()

	f.backend = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"path": r.URL.Path})
	}))
	t.Cleanup(f.backend.Close)

	sp, err := proxy.NewServiceProxy(proxy.DefaultConfig(f.backend.URL), testLogger())
	require.NoError(t, err)

	f.sessions = session.NewManager(session.Config{
		TTL:         cfg.SessionTTL,
		MaxSessions: cfg.SessionMaxCount,
		PageSize:    cfg.CatalogPageSize,
	}, f.catalog, f.wishlist, nil, testLogger())
	t.Cleanup(f.sessions.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	f.handler = NewRouter(ctx, cfg,
		NewCatalogHandler(f.catalog, f.wishlist, f.events, cfg.CatalogPageSize, cfg.ComposeTimeout, testLogger()),
		NewSessionHandler(f.sessions, cfg.ComposeTimeout, testLogger()),
		sp, health.NewHandler(), testLogger(),
	)
	return f
}

// stockCategory sets up category 5 with two pages of three products.
func (f *fixture) stockCategory() {
	f.catalog.On("FetchCategory", mock.Anything, 5).Return(catalog.Category{ID: 5, Name: "Dresses"}, nil)
	f.catalog.On("FetchProductPage", mock.Anything, 5, 1, catalog.PageSize).Return(catalog.ProductPage{
		TotalCount: 20,
		HasNext:    true,
		Items: []catalog.Product{
			testProduct(1, "30.00", 1),
			testProduct(2, "10.00", 3),
			testProduct(3, "20.00", 2),
		},
	}, nil)
	f.catalog.On("FetchProductPage", mock.Anything, 5, 2, catalog.PageSize).Return(catalog.ProductPage{
		TotalCount:  20,
		HasPrevious: true,
		Items:       []catalog.Product{testProduct(4, "5.00", 1)},
	}, nil)
}

func testProduct(id int, price string, ageDays int) catalog.Product {
	created := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -ageDays)
	return catalog.Product{
		ID:          id,
		Name:        fmt.Sprintf("Product %d", id),
		Price:       price,
		IsAvailable: true,
		DateCreated: created,
	}
}

func accessToken(t *testing.T, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":    userID,
		"token_type": "access",
		"exp":        time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return signed
}

type pageBody struct {
	Data struct {
		State     string `json:"state"`
		SessionID string `json:"session_id"`
		Sort      string `json:"sort"`
		SortLabel string `json:"sort_label"`
		Request   struct {
			CategoryID int `json:"category_id"`
			Page       int `json:"page"`
		} `json:"request"`
		Category *struct {
			Name string `json:"name"`
		} `json:"category"`
		Error *struct {
			Lane    string `json:"lane"`
			Kind    string `json:"kind"`
			Message string `json:"message"`
		} `json:"error"`
		Items []struct {
			ID          int  `json:"id"`
			IsSaved     bool `json:"is_saved"`
			WishEntryID *int `json:"wish_entry_id"`
		} `json:"items"`
		Pagination struct {
			CurrentPage int  `json:"current_page"`
			ControlPage int  `json:"control_page"`
			TotalPages  int  `json:"total_pages"`
			HasNext     bool `json:"has_next"`
			HasPrevious bool `json:"has_previous"`
		} `json:"pagination"`
		Links Links `json:"links"`
	} `json:"data"`
	Error *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

func (p pageBody) itemIDs() []int {
	ids := make([]int, 0, len(p.Data.Items))
	for _, it := range p.Data.Items {
		ids = append(ids, it.ID)
	}
	return ids
}

func (f *fixture) do(t *testing.T, method, target, token string, body any) (*httptest.ResponseRecorder, pageBody) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)

	var page pageBody
	if rr.Body.Len() > 0 && rr.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page), rr.Body.String())
	}
	return rr, page
}
