// Package location resolves catalog page parameters from a navigable URL and
// models the URL as the single source of truth for category and page.
package location

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/kidsdesign/storefront/internal/catalog"
	"github.com/kidsdesign/storefront/pkg/pagination"
)

// ErrInvalidCategory is returned when the path carries no usable category id.
var ErrInvalidCategory = errors.New("invalid category id")

// Resolve derives the page request from u. The category id is read from the
// segment following "category" (or "categories"); the page from the "page"
// query parameter, defaulting to 1.
func Resolve(u *url.URL) (catalog.PageRequest, error) {
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")

	raw := ""
	for i := len(segments) - 2; i >= 0; i-- {
		if segments[i] == "category" || segments[i] == "categories" {
			raw = segments[i+1]
			break
		}
	}
	if raw == "" {
		return catalog.PageRequest{}, fmt.Errorf("%w: no category segment in %q", ErrInvalidCategory, u.Path)
	}

	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return catalog.PageRequest{}, fmt.Errorf("%w: %q", ErrInvalidCategory, raw)
	}

	return catalog.PageRequest{
		CategoryID: id,
		Page:       pagination.FromQuery(u.Query(), catalog.PageSize).Page,
	}, nil
}

// WithPage returns a copy of u with the page query parameter set to n.
func WithPage(u *url.URL, n int) *url.URL {
	cpy := *u
	q := cpy.Query()
	q.Set("page", strconv.Itoa(n))
	cpy.RawQuery = q.Encode()
	return &cpy
}

// Location is a mutable navigable URL. Every change is broadcast to
// subscribers after the internal lock is released.
type Location struct {
	mu        sync.Mutex
	current   *url.URL
	listeners map[int]func(*url.URL)
	nextID    int
}

// Parse creates a Location from a raw URL or path.
func Parse(raw string) (*Location, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse location: %w", err)
	}
	return &Location{current: u, listeners: make(map[int]func(*url.URL))}, nil
}

// URL returns a copy of the current URL.
func (l *Location) URL() *url.URL {
	l.mu.Lock()
	defer l.mu.Unlock()
	cpy := *l.current
	return &cpy
}

func (l *Location) String() string {
	return l.URL().String()
}

// Subscribe registers fn for location changes and returns a function that
// removes it.
func (l *Location) Subscribe(fn func(*url.URL)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.nextID
	l.nextID++
	l.listeners[id] = fn
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.listeners, id)
	}
}

// Navigate replaces the location.
func (l *Location) Navigate(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse location: %w", err)
	}
	l.update(func(*url.URL) *url.URL { return u })
	return nil
}

// SetPageNumber rewrites the page query parameter.
func (l *Location) SetPageNumber(n int) {
	l.update(func(cur *url.URL) *url.URL { return WithPage(cur, n) })
}

// update swaps the current URL for next(current) under the lock. Listeners
// may observe changes out of order and should read URL for the latest one.
func (l *Location) update(next func(*url.URL) *url.URL) {
	l.mu.Lock()
	u := next(l.current)
	l.current = u
	listeners := make([]func(*url.URL), 0, len(l.listeners))
	for _, fn := range l.listeners {
		listeners = append(listeners, fn)
	}
	l.mu.Unlock()

	for _, fn := range listeners {
		cpy := *u
		fn(&cpy)
	}
}
