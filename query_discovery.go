package docgraph

import (
	"fmt"
	"strings"
)

// Pagination controls offset+limit paging on list/search results.
type Pagination struct {
	Offset int // skip this many results (default 0)
	Limit  int // max results to return (default 50, max 500)
}

const (
	defaultLimit = 50
	maxLimit     = 500
)

// normalize returns a Pagination with defaults applied and bounds enforced.
func (p Pagination) normalize() Pagination {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	return p
}

// PagedResult wraps a page of results with total count for pagination.
type PagedResult[T any] struct {
	Items      []T
	TotalCount int // total matching results (before pagination)
}

// Search returns the symbols whose display name starts with prefix,
// optionally restricted to one declaration kind, ordered by name.
func (q *QueryBuilder) Search(prefix, kind string, page Pagination) (*PagedResult[*Symbol], error) {
	if err := q.check(); err != nil {
		return nil, err
	}
	page = page.normalize()
	syms, total, err := q.store.SearchSymbols(prefix, kind, page.Offset, page.Limit)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return &PagedResult[*Symbol]{Items: syms, TotalCount: total}, nil
}

// Files lists the indexed files in registry order, optionally restricted
// to a path prefix and a language.
func (q *QueryBuilder) Files(pathPrefix, language string, page Pagination) (*PagedResult[*File], error) {
	if err := q.check(); err != nil {
		return nil, err
	}
	page = page.normalize()
	all, err := q.store.Files()
	if err != nil {
		return nil, fmt.Errorf("files: %w", err)
	}
	var matched []*File
	for _, f := range all {
		if pathPrefix != "" && !strings.HasPrefix(f.Path, normalizePathPrefix(pathPrefix)) {
			continue
		}
		if language != "" && !strings.EqualFold(f.Language, language) {
			continue
		}
		matched = append(matched, f)
	}
	res := &PagedResult[*File]{TotalCount: len(matched)}
	if page.Offset < len(matched) {
		res.Items = matched[page.Offset:min(page.Offset+page.Limit, len(matched))]
	}
	return res, nil
}

// normalizePathPrefix strips a leading "./" so prefixes match registry keys.
func normalizePathPrefix(p string) string {
	return strings.TrimPrefix(p, "./")
}
