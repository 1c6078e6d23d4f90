package catalog

import (
	"fmt"
	"slices"
	"strings"
)

// SortCriterion selects the client-side ordering of a loaded page.
type SortCriterion int

const (
	SortNewest SortCriterion = iota
	SortPriceAsc
	SortPriceDesc
)

// DefaultSort is the criterion a freshly mounted page starts with.
const DefaultSort = SortNewest

func (c SortCriterion) String() string {
	switch c {
	case SortNewest:
		return "newest"
	case SortPriceAsc:
		return "price_asc"
	case SortPriceDesc:
		return "price_desc"
	default:
		return fmt.Sprintf("sort(%d)", int(c))
	}
}

// Label is the human readable name shown in the sort dropdown.
func (c SortCriterion) Label() string {
	switch c {
	case SortPriceAsc:
		return "Lowest price"
	case SortPriceDesc:
		return "Highest price"
	default:
		return "Latest items"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c SortCriterion) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *SortCriterion) UnmarshalText(b []byte) error {
	parsed, err := ParseSort(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseSort parses a criterion by key or by dropdown label.
func ParseSort(s string) (SortCriterion, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "newest", "latest", "latest items":
		return SortNewest, nil
	case "price_asc", "lowest price":
		return SortPriceAsc, nil
	case "price_desc", "highest price":
		return SortPriceDesc, nil
	}
	return DefaultSort, fmt.Errorf("unknown sort criterion %q", s)
}

// SortProducts returns a sorted copy of items. The input is not modified and
// items with equal keys keep their listing order.
func SortProducts(items []Product, c SortCriterion) []Product {
	out := slices.Clone(items)
	switch c {
	case SortPriceAsc:
		slices.SortStableFunc(out, func(a, b Product) int {
			return ParsePrice(a.Price).Cmp(ParsePrice(b.Price))
		})
	case SortPriceDesc:
		slices.SortStableFunc(out, func(a, b Product) int {
			return ParsePrice(b.Price).Cmp(ParsePrice(a.Price))
		})
	default:
		slices.SortStableFunc(out, func(a, b Product) int {
			return b.DateCreated.Compare(a.DateCreated)
		})
	}
	return out
}
