package docgraph

import (
	"fmt"
	"strings"

	"github.com/jward/docgraph/internal/qname"
	"github.com/jward/docgraph/internal/store"
	"github.com/jward/docgraph/internal/xref"
)

// QueryBuilder answers lookups against a committed index.
type QueryBuilder struct {
	store *store.Store
}

func (q *QueryBuilder) check() error {
	if q.store == nil {
		return ErrNoStore
	}
	return nil
}

// symbol finds a symbol by its written name. C, C++ and IDL names are
// "::"-joined; a name without "::" is also tried with Python's ".".
func (q *QueryBuilder) symbol(name string) (*store.Symbol, error) {
	if err := q.check(); err != nil {
		return nil, err
	}
	sym, err := q.store.SymbolByName(qname.Parse(name, qname.LangCxx))
	if err != nil || sym != nil {
		return sym, err
	}
	if !strings.Contains(name, "::") && strings.Contains(name, ".") {
		return q.store.SymbolByName(qname.Parse(name, qname.LangPython))
	}
	return nil, nil
}

// Lookup returns the symbol with the given qualified name, or nil.
func (q *QueryBuilder) Lookup(name string) (*Symbol, error) {
	sym, err := q.symbol(name)
	if err != nil {
		return nil, fmt.Errorf("lookup: %w", err)
	}
	return sym, nil
}

// Overloads returns every symbol registered under a short name: a last
// name segment, or a bare function name matching all of its signatures.
func (q *QueryBuilder) Overloads(short string) ([]*Symbol, error) {
	if err := q.check(); err != nil {
		return nil, err
	}
	return q.store.SymbolsByShortName(short)
}

// PageCount returns the number of xref pages.
func (q *QueryBuilder) PageCount() (int, error) {
	if err := q.check(); err != nil {
		return 0, err
	}
	return q.store.PageCount()
}

// Page returns the symbols of xref page n in page order.
func (q *QueryBuilder) Page(n int) ([]*Symbol, error) {
	if err := q.check(); err != nil {
		return nil, err
	}
	count, err := q.store.PageCount()
	if err != nil {
		return nil, err
	}
	if n < 0 || n >= count {
		return nil, fmt.Errorf("page %d out of range [0, %d)", n, count)
	}
	return q.store.SymbolsOnPage(n)
}

// ViewFor returns the xref page holding name.
func (q *QueryBuilder) ViewFor(name string) (int, bool, error) {
	sym, err := q.symbol(name)
	if err != nil {
		return 0, false, fmt.Errorf("view for: %w", err)
	}
	if sym == nil || sym.Page == nil {
		return 0, false, nil
	}
	return *sym.Page, true, nil
}

// Link returns the location of name's entry in the rendered xref pages.
func (q *QueryBuilder) Link(name string) (string, bool, error) {
	sym, err := q.symbol(name)
	if err != nil {
		return "", false, fmt.Errorf("link: %w", err)
	}
	if sym == nil || sym.Page == nil {
		return "", false, nil
	}
	return xref.PageLink(*sym.Page, qname.ParseKey(sym.Key)), true, nil
}

// FileOf returns the path of the file declaring sym, or "" for names only
// seen in reference streams.
func (q *QueryBuilder) FileOf(sym *Symbol) (string, error) {
	if err := q.check(); err != nil {
		return "", err
	}
	if sym == nil || sym.FileID == nil {
		return "", nil
	}
	f, err := q.store.FileByID(*sym.FileID)
	if err != nil || f == nil {
		return "", err
	}
	return f.Path, nil
}

// Metadata returns a value recorded by the last Index run.
func (q *QueryBuilder) Metadata(key string) (string, bool, error) {
	if err := q.check(); err != nil {
		return "", false, err
	}
	return q.store.Metadata(key)
}
