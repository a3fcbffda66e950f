// Package pagination normalizes page requests and builds page responses.
package pagination

// Request carries a zero-based page number and a page size.
type Request struct {
	Page     int `query:"page" json:"page"`
	PageSize int `query:"page_size" json:"page_size"`
}

// Normalize applies defaults and constraints. Negative pages become page 0.
func (r *Request) Normalize(opts ...Option) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if r.Page < 0 {
		r.Page = 0
	}
	if r.PageSize <= 0 || o.FixedPageSize {
		r.PageSize = o.DefaultPageSize
	}
	if r.PageSize > o.MaxPageSize {
		r.PageSize = o.MaxPageSize
	}
}

// Offset returns the number of rows to skip.
func (r Request) Offset() int {
	return r.Page * r.PageSize
}

// Limit returns the maximum number of rows to return.
func (r Request) Limit() int {
	return r.PageSize
}

// Response is a page of items with its position in the full result set.
type Response[T any] struct {
	Page        int   `json:"page"`
	PageSize    int   `json:"page_size"`
	PageCount   int   `json:"page_count"`
	TotalCount  int64 `json:"total_count"`
	PageContent []T   `json:"page_content"`
}

// NewResponse builds a page response. A nil items slice is returned as empty.
func NewResponse[T any](items []T, totalCount int64, req Request) Response[T] {
	if items == nil {
		items = []T{}
	}

	pageCount := 0
	if req.PageSize > 0 {
		pageCount = int((totalCount + int64(req.PageSize) - 1) / int64(req.PageSize))
	}

	return Response[T]{
		Page:        req.Page,
		PageSize:    req.PageSize,
		PageCount:   pageCount,
		TotalCount:  totalCount,
		PageContent: items,
	}
}
