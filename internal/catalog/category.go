package catalog

// Category is a top-level product category as returned by the remote catalog API.
type Category struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// SubCategory groups products beneath a Category.
type SubCategory struct {
	ID       int      `json:"id"`
	Name     string   `json:"name"`
	Category Category `json:"category"`
}
