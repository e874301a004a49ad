package pagination

import "strings"

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100

	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// Paging carries list parameters. Normalize before use; the normalized
// value is part of the list cache key.
type Paging struct {
	Page   int    `json:"page"`
	Limit  int    `json:"limit"`
	Sort   string `json:"sort,omitempty"`
	Order  string `json:"order,omitempty"`
	Cursor string `json:"cursor,omitempty"`
}

// Normalize clamps page and limit, lower-cases order and drops sort
// columns outside allowed. The first allowed column is the default sort.
func (p Paging) Normalize(allowed ...string) Paging {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	switch {
	case p.Limit < 1:
		p.Limit = DefaultLimit
	case p.Limit > MaxLimit:
		p.Limit = MaxLimit
	}

	p.Order = strings.ToLower(p.Order)
	if p.Order != OrderAsc {
		p.Order = OrderDesc
	}

	if len(allowed) > 0 {
		ok := false
		for _, col := range allowed {
			if p.Sort == col {
				ok = true
				break
			}
		}
		if !ok {
			p.Sort = allowed[0]
		}
	}
	return p
}

// Offset returns the row offset of the page.
func (p Paging) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// OrderClause returns "<sort> <order>" for a normalized Paging.
func (p Paging) OrderClause() string {
	return p.Sort + " " + p.Order
}

// Page is a paginated result envelope.
type Page[T any] struct {
	Data   []T    `json:"data"`
	Paging Paging `json:"paging"`
	Total  int64  `json:"total"`
}

// HasMore reports whether rows exist past this page.
func (p *Page[T]) HasMore() bool {
	return int64(p.Paging.Offset()+len(p.Data)) < p.Total
}
