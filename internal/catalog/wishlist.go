package catalog

// WishEntry is an entry in the user's wishlist. ID is the wishlist entry id,
// not the product id.
type WishEntry struct {
	ID        int `json:"id"`
	ProductID int `json:"product_id"`
}

// AnnotatedProduct is a Product joined against the wishlist.
type AnnotatedProduct struct {
	Product
	Images      []string `json:"images"`
	IsSaved     bool     `json:"is_saved"`
	WishEntryID *int     `json:"wish_entry_id,omitempty"`
}

// WishIndex maps product ids to the wishlist entry that saved them.
type WishIndex map[int]WishEntry

// NewWishIndex builds an index over the given entries. When the wishlist holds
// duplicate entries for a product, the first one wins.
func NewWishIndex(entries []WishEntry) WishIndex {
	idx := make(WishIndex, len(entries))
	for _, e := range entries {
		if _, ok := idx[e.ProductID]; ok {
			continue
		}
		idx[e.ProductID] = e
	}
	return idx
}

// Override is a locally recorded save/unsave decision for a product.
// EntryID is zero until the wishlist service has confirmed the entry.
type Override struct {
	Saved   bool `json:"saved"`
	EntryID int  `json:"entry_id,omitempty"`
}

// Overrides maps product ids to local save/unsave decisions.
type Overrides map[int]Override

// Lookup reports whether productID is saved and the matching wishlist entry
// id, if known. Overrides take precedence over the index.
func Lookup(productID int, idx WishIndex, overrides Overrides) (bool, *int) {
	if o, ok := overrides[productID]; ok {
		if !o.Saved {
			return false, nil
		}
		if o.EntryID != 0 {
			id := o.EntryID
			return true, &id
		}
		if e, ok := idx[productID]; ok {
			id := e.ID
			return true, &id
		}
		return true, nil
	}
	if e, ok := idx[productID]; ok {
		id := e.ID
		return true, &id
	}
	return false, nil
}

// Annotate joins products against the wishlist index and local overrides.
// A nil index is treated as an empty wishlist.
func Annotate(products []Product, idx WishIndex, overrides Overrides) []AnnotatedProduct {
	out := make([]AnnotatedProduct, len(products))
	for i, p := range products {
		saved, entryID := Lookup(p.ID, idx, overrides)
		out[i] = AnnotatedProduct{
			Product:     p,
			Images:      p.Images(),
			IsSaved:     saved,
			WishEntryID: entryID,
		}
	}
	return out
}
