// Package pagination normalizes page/limit inputs and builds page metadata.
package pagination

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

// Params is a 1-based page request.
type Params struct {
	Page  int
	Limit int
}

// Meta describes the page returned to the caller.
type Meta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// Normalize clamps page to >= 1 and limit to [1, MaxLimit], defaulting limit.
func (p Params) Normalize() Params {
	if p.Page < 1 {
		p.Page = 1
	}
	p.Limit = NormalizeLimit(p.Limit)
	return p
}

// Offset is the row offset of the normalized page.
func (p Params) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.Limit
}

// NewMeta builds metadata for a normalized page and total row count.
func NewMeta(p Params, total int64) Meta {
	n := p.Normalize()
	pages := int((total + int64(n.Limit) - 1) / int64(n.Limit))
	return Meta{Page: n.Page, Limit: n.Limit, Total: total, TotalPages: pages}
}

func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
