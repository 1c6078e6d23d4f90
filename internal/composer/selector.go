package composer

import (
	"sync"

	"github.com/kidsdesign/storefront/internal/catalog"
)

// SortSelector holds the active sort criterion and notifies subscribers when
// it changes.
type SortSelector struct {
	mu        sync.Mutex
	current   catalog.SortCriterion
	listeners []func(catalog.SortCriterion)
}

// NewSortSelector returns a selector set to the default criterion.
func NewSortSelector() *SortSelector {
	return &SortSelector{current: catalog.DefaultSort}
}

// Current returns the active criterion.
func (s *SortSelector) Current() catalog.SortCriterion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// OnChange registers fn to be called after every change.
func (s *SortSelector) OnChange(fn func(catalog.SortCriterion)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Select sets the criterion. Listeners run only when the value changed, and
// never while the selector lock is held.
func (s *SortSelector) Select(c catalog.SortCriterion) bool {
	s.mu.Lock()
	if s.current == c {
		s.mu.Unlock()
		return false
	}
	s.current = c
	listeners := append([]func(catalog.SortCriterion){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(c)
	}
	return true
}
