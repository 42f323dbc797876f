// Package pagination implements optional page/page_size slicing of list
// queries. Paging is off unless the client asks for it.
package pagination

import (
	"math"

	"gorm.io/gorm"
)

// DefaultPageSize applies when only page is given.
const DefaultPageSize = 20

// PageRequest holds pagination parameters parsed from query strings.
type PageRequest struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// Enabled reports whether the client asked for a page.
func (p *PageRequest) Enabled() bool {
	return p.Page > 0 || p.PageSize > 0
}

// Defaults fills in default values when only one of page or page_size is set.
func (p *PageRequest) Defaults() {
	if !p.Enabled() {
		return
	}
	if p.Page == 0 {
		p.Page = 1
	}
	if p.PageSize == 0 {
		p.PageSize = DefaultPageSize
	}
}

// Offset returns the SQL OFFSET for the current page.
func (p *PageRequest) Offset() int {
	if !p.Enabled() {
		return 0
	}
	return (p.Page - 1) * p.PageSize
}

// PageResponse wraps a list of items with metadata. For an unpaged request
// the whole result set is a single page.
type PageResponse[T any] struct {
	Data       []T   `json:"data"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// NewPageResponse creates a PageResponse from the given data and total count.
func NewPageResponse[T any](data []T, req PageRequest, totalItems int64) PageResponse[T] {
	if data == nil {
		data = []T{}
	}
	page, pageSize := req.Page, req.PageSize
	if !req.Enabled() {
		page, pageSize = 1, int(totalItems)
	}
	totalPages := 0
	if pageSize > 0 {
		totalPages = int(math.Ceil(float64(totalItems) / float64(pageSize)))
	}
	return PageResponse[T]{
		Data:       data,
		Page:       page,
		PageSize:   pageSize,
		TotalItems: totalItems,
		TotalPages: totalPages,
	}
}

// Paginate returns a GORM scope that applies OFFSET and LIMIT for the given
// page request, or leaves the query untouched when paging is off.
func Paginate(req PageRequest) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if !req.Enabled() {
			return db
		}
		return db.Offset(req.Offset()).Limit(req.PageSize)
	}
}
