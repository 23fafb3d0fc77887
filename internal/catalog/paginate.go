package catalog

// Page size limits.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page is one page of a listing. Page numbers start at 1.
type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// Paginate returns page of items. A size outside 1..MaxPageSize becomes
// DefaultPageSize or MaxPageSize, and page is clamped into the existing
// pages, so an empty listing still has one (empty) page.
func Paginate[T any](items []T, page, size int) Page[T] {
	switch {
	case size <= 0:
		size = DefaultPageSize
	case size > MaxPageSize:
		size = MaxPageSize
	}
	total := len(items)
	pages := max(1, (total+size-1)/size)
	page = min(max(page, 1), pages)

	start := (page - 1) * size
	end := min(start+size, total)
	pageItems := make([]T, 0, end-start)
	return Page[T]{
		Items:      append(pageItems, items[start:end]...),
		Page:       page,
		PageSize:   size,
		Total:      total,
		TotalPages: pages,
	}
}
