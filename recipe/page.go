package recipe

// Page is one window of an ordered result set.
type Page[T any] struct {
	Items   []T  `json:"items"`
	Total   int  `json:"total"`
	HasMore bool `json:"has_more"`
}

// NewPage builds a page and derives HasMore from the window position.
func NewPage[T any](items []T, total, offset int) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items:   items,
		Total:   total,
		HasMore: offset+len(items) < total,
	}
}

// EmptyPage is the page returned when nothing can match.
func EmptyPage[T any]() Page[T] {
	return Page[T]{Items: []T{}}
}

// ClonePage returns a copy of page whose items are deep copies.
func ClonePage(page Page[Recipe]) Page[Recipe] {
	out := page
	if page.Items != nil {
		out.Items = make([]Recipe, len(page.Items))
		for i, item := range page.Items {
			out.Items[i] = item.Clone()
		}
	}
	return out
}
