package domain

// Page is the list envelope returned by every collection endpoint
type Page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Pages int `json:"pages"`
	Size  int `json:"size"`
}

// NewPage computes page = skip/limit + 1 and pages = ceil(total/limit).
func NewPage[T any](items []T, total, skip, limit int) Page[T] {
	if items == nil {
		items = []T{}
	}
	page, pages := 1, 0
	if limit > 0 {
		page = skip/limit + 1
		pages = (total + limit - 1) / limit
	}
	return Page[T]{
		Items: items,
		Total: total,
		Page:  page,
		Pages: pages,
		Size:  limit,
	}
}
