package jsonapi

import (
	"net/url"
	"strconv"
)

// Pagination describes a limit/offset page of a collection.
type Pagination struct {
	Total   int    // Total number of items
	Limit   int    // Page size
	Offset  int    // Items skipped
	BaseURL string // Base URL for generating links
}

// HasNext returns true if items remain after this page.
func (p *Pagination) HasNext() bool {
	return p.Offset+p.Limit < p.Total
}

// Links generates pagination links. Returns nil when BaseURL is empty.
func (p *Pagination) Links() *Links {
	if p.BaseURL == "" {
		return nil
	}

	links := &Links{
		Self:  p.buildURL(p.Offset),
		First: p.buildURL(0),
	}
	if p.Offset > 0 {
		prev := p.Offset - p.Limit
		if prev < 0 {
			prev = 0
		}
		links.Prev = p.buildURL(prev)
	}
	if p.HasNext() {
		links.Next = p.buildURL(p.Offset + p.Limit)
	}
	return links
}

func (p *Pagination) buildURL(offset int) string {
	u, err := url.Parse(p.BaseURL)
	if err != nil {
		return p.BaseURL
	}

	q := u.Query()
	q.Set("page[limit]", strconv.Itoa(p.Limit))
	q.Set("page[offset]", strconv.Itoa(offset))
	u.RawQuery = q.Encode()

	return u.String()
}

// Meta returns pagination metadata.
func (p *Pagination) Meta() Meta {
	return Meta{
		"total":  p.Total,
		"limit":  p.Limit,
		"offset": p.Offset,
	}
}

// ParsePaginationParams extracts limit and offset from the query.
// Accepts page[limit]/page[offset] or limit/offset. limit is capped at maxLimit.
func ParsePaginationParams(query url.Values, defaultLimit, maxLimit int) (limit, offset int) {
	limit = defaultLimit

	if n, ok := nonNegativeInt(query, "page[limit]", "limit"); ok && n > 0 {
		limit = n
	}
	if n, ok := nonNegativeInt(query, "page[offset]", "offset"); ok {
		offset = n
	}
	if maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}
	return limit, offset
}

func nonNegativeInt(query url.Values, keys ...string) (int, bool) {
	for _, k := range keys {
		if v := query.Get(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				return n, true
			}
		}
	}
	return 0, false
}
