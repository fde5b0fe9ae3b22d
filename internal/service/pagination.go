package service

// Paginated 分页响应信封
type Paginated[T any] struct {
	Data        []T `json:"data"`
	CurrentPage int `json:"current_page"`
	PerPage     int `json:"per_page"`
	Total       int `json:"total"`
	LastPage    int `json:"last_page"`
}

func newPaginated[T any](items []T, page, perPage, total int) *Paginated[T] {
	if page <= 0 {
		page = 1
	}
	last := 1
	if perPage > 0 && total > 0 {
		last = (total + perPage - 1) / perPage
	}
	if items == nil {
		items = []T{}
	}
	return &Paginated[T]{Data: items, CurrentPage: page, PerPage: perPage, Total: total, LastPage: last}
}
