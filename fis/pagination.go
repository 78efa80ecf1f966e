package fis

// PaginatedResult is one page of a list query together with the
// navigation facts derived from the exact total count. A result is
// built once per successful fetch and never mutated afterwards;
// refetches replace it wholesale.
type PaginatedResult[T any] struct {
	Items       []T  `json:"items"`
	TotalCount  int  `json:"totalCount"`
	TotalPages  int  `json:"totalPages"`
	CurrentPage int  `json:"currentPage"`
	HasNextPage bool `json:"hasNextPage"`
	HasPrevPage bool `json:"hasPrevPage"`
}

// NewPaginatedResult derives the page envelope from the raw query output.
// totalPages is ceil(totalCount/limit); hasNextPage and hasPrevPage follow
// from the current page's position in that range.
func NewPaginatedResult[T any](items []T, totalCount, page, limit int) *PaginatedResult[T] {
	if limit < 1 {
		limit = 1
	}
	if totalCount < 0 {
		totalCount = 0
	}
	if items == nil {
		items = []T{}
	}

	totalPages := (totalCount + limit - 1) / limit

	return &PaginatedResult[T]{
		Items:       items,
		TotalCount:  totalCount,
		TotalPages:  totalPages,
		CurrentPage: page,
		HasNextPage: page < totalPages,
		HasPrevPage: page > 1,
	}
}
