package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a read-only snapshot of a listed product.
type Product struct {
	ID                 int         `json:"id"`
	Name               string      `json:"name"`
	Description        string      `json:"description"`
	Price              string      `json:"price"`
	UndiscountedPrice  string      `json:"undiscounted_price"`
	Image1             *string     `json:"image1"`
	Image2             *string     `json:"image2"`
	Image3             *string     `json:"image3"`
	IsAvailable        bool        `json:"is_available"`
	TotalQuantity      int         `json:"total_quantity"`
	Colour             string      `json:"colour"`
	DimensionalSize    string      `json:"dimensional_size"`
	Weight             string      `json:"weight"`
	LatestItem         bool        `json:"latest_item"`
	LatestItemPosition int         `json:"latest_item_position"`
	TopSellingItems    bool        `json:"top_selling_items"`
	TopSellingPosition int         `json:"top_selling_position"`
	SubCategory        SubCategory `json:"sub_category"`
	DateCreated        time.Time   `json:"date_created"`
	DateUpdated        time.Time   `json:"date_updated"`
}

// Images returns the non-empty image URLs in display order.
func (p Product) Images() []string {
	images := make([]string, 0, 3)
	for _, img := range []*string{p.Image1, p.Image2, p.Image3} {
		if img != nil && *img != "" {
			images = append(images, *img)
		}
	}
	return images
}

// ParsePrice parses a decimal price string. Missing or malformed prices are
// treated as zero.
func ParsePrice(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ProductPage is one page of a server-paginated product listing.
type ProductPage struct {
	TotalCount  int       `json:"total_count"`
	HasNext     bool      `json:"has_next"`
	HasPrevious bool      `json:"has_previous"`
	Items       []Product `json:"items"`
}

// PageRequest identifies the listing page a view is composed for.
type PageRequest struct {
	CategoryID int `json:"category_id"`
	Page       int `json:"page"`
}
