// Package session keeps mounted category pages alive between requests so a
// client can page, sort and save products against one composer.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kidsdesign/storefront/internal/catalog"
	"github.com/kidsdesign/storefront/internal/composer"
	"github.com/kidsdesign/storefront/internal/event"
	"github.com/kidsdesign/storefront/internal/location"
	apperrors "github.com/kidsdesign/storefront/pkg/errors"
	"github.com/kidsdesign/storefront/pkg/logger"
	"github.com/kidsdesign/storefront/pkg/middleware"
)

var activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "storefront_catalog_sessions_active",
	Help: "Mounted catalog page sessions",
})

// Wishlist reads and edits the shopper's wishlist.
type Wishlist interface {
	composer.WishlistGateway
	AddItem(ctx context.Context, productID int) (catalog.WishEntry, error)
	RemoveItem(ctx context.Context, entryID int) error
}

// EventPublisher receives wishlist change events.
type EventPublisher interface {
	PublishProductSaved(ctx context.Context, data event.ProductSavedData) error
}

// Config bounds the session store.
type Config struct {
	TTL         time.Duration
	MaxSessions int
	PageSize    int
}

// Session is one mounted category page.
type Session struct {
	ID       string
	UserID   string
	Composer *composer.Composer

	// saving serializes save/unsave calls so optimistic overrides are
	// rolled back in order.
	saving   sync.Mutex
	lastSeen time.Time
}

// Manager owns every live session.
type Manager struct {
	catalog  composer.CatalogGateway
	wishlist Wishlist
	events   EventPublisher
	cfg      Config
	logger   *slog.Logger
	nowFunc  func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
	// mounting counts slots reserved by Create calls still mounting.
	mounting int
}

// NewManager creates a session manager. events may be nil.
func NewManager(cfg Config, catalogGW composer.CatalogGateway, wishlist Wishlist, events EventPublisher, logger *slog.Logger) *Manager {
	if cfg.PageSize <= 0 {
		cfg.PageSize = catalog.PageSize
	}
	return &Manager{
		catalog:  catalogGW,
		wishlist: wishlist,
		events:   events,
		cfg:      cfg,
		logger:   logger,
		nowFunc:  time.Now,
		sessions: make(map[string]*Session),
	}
}

// Create mounts a composer on rawLocation. The request's credentials stay
// attached to the session for its wishlist fetch.
func (m *Manager) Create(ctx context.Context, rawLocation string) (*Session, error) {
	loc, err := location.Parse(rawLocation)
	if err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}
	if _, err := location.Resolve(loc.URL()); err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}

	if !m.reserve() {
		return nil, apperrors.ServiceUnavailable("too many open catalog sessions")
	}

	s := &Session{
		ID:       uuid.NewString(),
		UserID:   middleware.UserIDFromContext(ctx),
		Composer: composer.New(m.catalog, m.wishlist, m.cfg.PageSize, m.logger),
		lastSeen: m.nowFunc(),
	}

	mountCtx := logger.WithSessionID(ctx, s.ID)
	if err := s.Composer.Mount(mountCtx, loc); err != nil {
		m.mu.Lock()
		m.mounting--
		m.mu.Unlock()
		return nil, apperrors.InvalidInput(err.Error())
	}

	m.mu.Lock()
	m.mounting--
	m.sessions[s.ID] = s
	activeSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	logger.FromContext(ctx).InfoContext(ctx, "catalog session created",
		slog.String("session_id", s.ID),
		slog.String("location", rawLocation),
	)
	return s, nil
}

// reserve claims a session slot, counting sessions that are still mounting.
func (m *Manager) reserve() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cfg.MaxSessions > 0 && len(m.sessions)+m.mounting >= m.cfg.MaxSessions {
		return false
	}
	m.mounting++
	return true
}

// Get returns the caller's session and marks it as used. Sessions belonging
// to another shopper are reported as missing.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok || s.UserID != middleware.UserIDFromContext(ctx) {
		return nil, apperrors.NotFound("catalog session", id)
	}
	s.lastSeen = m.nowFunc()
	return s, nil
}

// Delete unmounts and forgets the caller's session.
func (m *Manager) Delete(ctx context.Context, id string) error {
	s, err := m.Get(ctx, id)
	if err != nil {
		return err
	}
	m.remove(s)
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Run evicts idle sessions until ctx is done, then unmounts everything left.
func (m *Manager) Run(ctx context.Context) {
	interval := m.cfg.TTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.Close()
			return
		case <-ticker.C:
			m.evictIdle()
		}
	}
}

// Close unmounts every session.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		m.remove(s)
	}
}

func (m *Manager) evictIdle() {
	now := m.nowFunc()

	m.mu.Lock()
	var idle []*Session
	for _, s := range m.sessions {
		if now.Sub(s.lastSeen) > m.cfg.TTL {
			idle = append(idle, s)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		m.logger.Debug("evicting idle catalog session", slog.String("session_id", s.ID))
		m.remove(s)
	}
}

func (m *Manager) remove(s *Session) {
	m.mu.Lock()
	if _, ok := m.sessions[s.ID]; !ok {
		m.mu.Unlock()
		return
	}
	delete(m.sessions, s.ID)
	activeSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	s.Composer.Unmount()
}
