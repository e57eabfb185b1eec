// Package pagination parses page/limit query parameters and describes the
// resulting page of a list response.
package pagination

import (
	"math"
	"strconv"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100

	// MaxPage keeps (Page-1)*Limit within int for any accepted limit.
	MaxPage = math.MaxInt / MaxLimit
)

// Params is a validated page request.
type Params struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// Meta describes a page within a result set of Total items.
type Meta struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

// Page wraps one page of items with its meta.
type Page[T any] struct {
	Data []T  `json:"data"`
	Meta Meta `json:"meta"`
}

// Parse reads raw query values. Missing or malformed values fall back to
// the defaults, page is clamped to MaxPage and limit to MaxLimit.
func Parse(page, limit string) Params {
	p := Params{Page: DefaultPage, Limit: DefaultLimit}
	if n, err := strconv.Atoi(page); err == nil && n > 0 {
		p.Page = min(n, MaxPage)
	}
	if n, err := strconv.Atoi(limit); err == nil && n > 0 {
		p.Limit = n
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

// Offset is the index of the first item on the page.
func (p Params) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Paginate builds the meta for a result set of total items.
func (p Params) Paginate(total int) Meta {
	totalPages := 0
	if total > 0 && p.Limit > 0 {
		totalPages = total / p.Limit
		if total%p.Limit != 0 {
			totalPages++
		}
	}
	return Meta{
		Page:       p.Page,
		Limit:      p.Limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    p.Page < totalPages,
		HasPrev:    p.Page > 1,
	}
}

// Slice cuts the requested page out of items, which must already be in
// display order.
func Slice[T any](items []T, p Params) Page[T] {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	start := len(items)
	// compare in page units so Offset cannot overflow
	if p.Page-1 <= len(items)/p.Limit {
		start = min(p.Offset(), len(items))
	}
	end := len(items)
	if len(items)-start > p.Limit {
		end = start + p.Limit
	}
	data := make([]T, end-start)
	copy(data, items[start:end])
	return Page[T]{Data: data, Meta: p.Paginate(len(items))}
}
