package types

// PaginationResponse describes the page returned by a list endpoint
type PaginationResponse struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// ListResponse is the envelope of every list endpoint
type ListResponse[T any] struct {
	Items      []T                `json:"items"`
	Pagination PaginationResponse `json:"pagination"`
}

// NewListResponse wraps one page of items. total is the number of rows
// matching the filter regardless of paging.
func NewListResponse[T any](items []T, total int, filter BaseFilter) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	page := PaginationResponse{Total: total, Limit: len(items)}
	if filter != nil && !filter.IsUnlimited() {
		page.Limit = filter.GetLimit()
		page.Offset = filter.GetOffset()
	}
	page.HasMore = page.Offset+len(items) < total
	return ListResponse[T]{Items: items, Pagination: page}
}
