package pagination

import (
	"net/url"
	"strconv"
)

// Params holds pagination parameters extracted from query strings.
type Params struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Offset  int `json:"-"`
}

// DefaultParams returns the first page with the given page size.
func DefaultParams(perPage int) Params {
	return Params{
		Page:    1,
		PerPage: perPage,
		Offset:  0,
	}
}

// FromQuery extracts the page number from the "page" query parameter. Absent,
// non-numeric or non-positive values fall back to page 1. The page size is
// fixed by the caller.
func FromQuery(q url.Values, perPage int) Params {
	p := DefaultParams(perPage)

	if page := q.Get("page"); page != "" {
		if v, err := strconv.Atoi(page); err == nil && v > 0 {
			p.Page = v
		}
	}

	p.Offset = (p.Page - 1) * p.PerPage
	return p
}

// TotalPages returns ceil(totalCount / perPage). Zero items yield zero pages.
func TotalPages(totalCount, perPage int) int {
	if totalCount <= 0 || perPage <= 0 {
		return 0
	}
	totalPages := totalCount / perPage
	if totalCount%perPage > 0 {
		totalPages++
	}
	return totalPages
}

// Clamp bounds page into [1, totalPages]. With no pages at all it returns 1.
func Clamp(page, totalPages int) int {
	if totalPages < 1 || page < 1 {
		return 1
	}
	if page > totalPages {
		return totalPages
	}
	return page
}
