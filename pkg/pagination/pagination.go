package pagination

import (
	"net/http"
	"strconv"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// Params is a page request parsed from query parameters. Offset is
// derived from Page and PerPage and is not part of the wire format.
type Params struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Offset  int `json:"-"`
}

// DefaultParams is the first page at the default page size.
func DefaultParams() Params {
	return Params{
		Page:    1,
		PerPage: defaultPerPage,
		Offset:  0,
	}
}

// FromRequest reads `page` and `per_page` from the request query.
// Missing, malformed, or out-of-range values fall back to defaults
// rather than erroring, so a bad query string still yields a sane page.
func FromRequest(r *http.Request) Params {
	p := DefaultParams()

	if v := positiveQueryInt(r, "page"); v > 0 {
		p.Page = v
	}
	if v := positiveQueryInt(r, "per_page"); v > 0 && v <= maxPerPage {
		p.PerPage = v
	}

	p.Offset = (p.Page - 1) * p.PerPage
	return p
}

func positiveQueryInt(r *http.Request, key string) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0
	}
	return v
}

// Result is one page of data plus the metadata a client needs to walk
// the collection.
type Result[T any] struct {
	Data       []T  `json:"data"`
	TotalCount int  `json:"total_count"`
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// NewResult builds a Result for one page of data out of the total row
// count and the params that produced the page.
func NewResult[T any](data []T, totalCount int, params Params) Result[T] {
	totalPages := totalCount / params.PerPage
	if totalCount%params.PerPage > 0 {
		totalPages++
	}

	return Result[T]{
		Data:       data,
		TotalCount: totalCount,
		Page:       params.Page,
		PerPage:    params.PerPage,
		TotalPages: totalPages,
		HasNext:    params.Page < totalPages,
		HasPrev:    params.Page > 1,
	}
}
