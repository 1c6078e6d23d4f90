package composer

import (
	"github.com/kidsdesign/storefront/internal/catalog"
)

// RenderState is the single thing a page shows at a time.
type RenderState string

const (
	RenderLoading       RenderState = "loading"
	RenderCategoryError RenderState = "category_error"
	RenderProductError  RenderState = "products_error"
	RenderReady         RenderState = "ready"
)

// View is the composed output consumed by the grid and pagination controls.
type View struct {
	State      RenderState                `json:"state"`
	Loading    bool                       `json:"loading"`
	Error      *catalog.LaneError         `json:"error,omitempty"`
	Request    catalog.PageRequest        `json:"request"`
	Sort       catalog.SortCriterion      `json:"sort"`
	SortLabel  string                     `json:"sort_label"`
	Category   *catalog.Category          `json:"category,omitempty"`
	Items      []catalog.AnnotatedProduct `json:"items"`
	Pagination catalog.Pagination         `json:"pagination"`
}

// MergeInput is everything one composition pass reads.
type MergeInput struct {
	Request   catalog.PageRequest
	PageSize  int
	Sort      catalog.SortCriterion
	Category  Lane[catalog.Category]
	Products  Lane[catalog.ProductPage]
	Wishlist  Lane[catalog.WishIndex]
	Overrides catalog.Overrides
}

// Merge computes the view from the lane states. It has no side effects.
//
// Core lanes that have not been started count as pending, so the result is
// always exactly one of loading, category error, products error or ready.
// A failed wishlist lane degrades to an empty wishlist.
func Merge(in MergeInput) View {
	v := View{
		Request:   in.Request,
		Sort:      in.Sort,
		SortLabel: in.Sort.Label(),
		Items:     []catalog.AnnotatedProduct{},
	}

	switch {
	case in.Category.Pending() || in.Products.Pending() || in.Wishlist.State == LaneLoading:
		v.State = RenderLoading
		v.Loading = true
	case in.Category.State == LaneFailed:
		v.State = RenderCategoryError
		v.Error = catalog.NewLaneError(catalog.LaneCategory, in.Category.Err)
	case in.Products.State == LaneFailed:
		v.State = RenderProductError
		v.Error = catalog.NewLaneError(catalog.LaneProducts, in.Products.Err)
	default:
		v.State = RenderReady
		category := in.Category.Data
		v.Category = &category

		var idx catalog.WishIndex
		if in.Wishlist.State == LaneSucceeded {
			idx = in.Wishlist.Data
		}
		page := in.Products.Data
		sorted := catalog.SortProducts(page.Items, in.Sort)
		v.Items = catalog.Annotate(sorted, idx, in.Overrides)
		v.Pagination = catalog.NewPagination(page, in.Request.Page, in.PageSize)
	}

	return v
}
