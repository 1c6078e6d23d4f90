package catalog

import "github.com/kidsdesign/storefront/pkg/pagination"

// PageSize is the page size contract of the remote product listing.
const PageSize = 16

// Pagination describes the pagination controls for a composed view.
// HasNext and HasPrevious come from the gateway, not from page arithmetic.
// ControlPage is CurrentPage clamped into [1, TotalPages] for rendering the
// controls; the requested page itself is left as is.
type Pagination struct {
	CurrentPage int  `json:"current_page"`
	ControlPage int  `json:"control_page"`
	TotalPages  int  `json:"total_pages"`
	HasNext     bool `json:"has_next"`
	HasPrevious bool `json:"has_previous"`
}

// NewPagination derives pagination metadata for page, which was fetched as
// currentPage with the given page size.
func NewPagination(page ProductPage, currentPage, pageSize int) Pagination {
	totalPages := pagination.TotalPages(page.TotalCount, pageSize)
	return Pagination{
		CurrentPage: currentPage,
		ControlPage: pagination.Clamp(currentPage, totalPages),
		TotalPages:  totalPages,
		HasNext:     page.HasNext,
		HasPrevious: page.HasPrevious,
	}
}
