// Package pagination implements page-number pagination with a
// client-selected page size:
//
//	GET /api/recipes/?page=2&limit=6
//	{"count": 14, "next": ".../?limit=6&page=3", "previous": ".../?limit=6&page=1", "results": [...]}
package pagination

import (
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/foodgram/pkg/foodgram/apierr"
	"gorm.io/gorm"
)

const (
	PageParam  = "page"
	LimitParam = "limit"
)

var (
	defaultSize = 6
	maxSize     = 100
)

// ErrInvalidPage is returned for a page past the last one.
var ErrInvalidPage = apierr.NotFound("Page")

// Configure sets the default and maximum page sizes.
func Configure(size, maximum int) {
	if size > 0 {
		defaultSize = size
	}
	if maximum >= defaultSize {
		maxSize = maximum
	}
}

// Page is the paginated response envelope.
type Page[T any] struct {
	Count    int64   `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// Params is a parsed page request.
type Params struct {
	Page  int
	Limit int
}

// FromQuery reads page and limit from the request. Invalid or missing
// values fall back to page 1 and the default size; limit is capped at the
// maximum size.
func FromQuery(c *gin.Context) Params {
	p := Params{Page: 1, Limit: defaultSize}
	if v, err := strconv.Atoi(c.Query(PageParam)); err == nil && v > 0 {
		p.Page = v
	}
	if v, err := strconv.Atoi(c.Query(LimitParam)); err == nil && v > 0 {
		p.Limit = min(v, maxSize)
	}
	return p
}

// Offset returns the number of rows before the page.
func (p Params) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Scope applies LIMIT/OFFSET to a query.
func (p Params) Scope(db *gorm.DB) *gorm.DB {
	return db.Offset(p.Offset()).Limit(p.Limit)
}

// Check rejects a page beyond the last one. Page 1 is always valid.
func (p Params) Check(count int64) error {
	if p.Page > 1 && int64(p.Offset()) >= count {
		return ErrInvalidPage
	}
	return nil
}

// New builds the envelope with absolute next/previous links derived from
// the current request URL.
func New[T any](c *gin.Context, p Params, count int64, results []T) Page[T] {
	if results == nil {
		results = []T{}
	}
	page := Page[T]{Count: count, Results: results}
	if int64(p.Page*p.Limit) < count {
		page.Next = pageURL(c, p.Page+1)
	}
	if p.Page > 1 {
		page.Previous = pageURL(c, p.Page-1)
	}
	return page
}

func pageURL(c *gin.Context, page int) *string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	u := url.URL{
		Scheme: scheme,
		Host:   c.Request.Host,
		Path:   c.Request.URL.Path,
	}
	q := c.Request.URL.Query()
	q.Set(PageParam, strconv.Itoa(page))
	u.RawQuery = q.Encode()

	s := u.String()
	return &s
}
