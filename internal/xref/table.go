// Package xref compiles per-file reference streams into a global
// cross-reference table: for every qualified name, where it is defined,
// called and referenced, plus a short-name index and a deterministic page
// assignment used by renderers.
package xref

import (
	"cmp"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/jward/docgraph/internal/qname"
)

// DefaultPageSize is the page weight threshold used when none is given.
const DefaultPageSize = 200

// Kind classifies a reference record.
type Kind int

const (
	Definition Kind = iota
	Call
	Reference
)

func (k Kind) String() string {
	switch k {
	case Definition:
		return "definition"
	case Call:
		return "call"
	case Reference:
		return "reference"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind maps the stream's type attribute to a Kind.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "definition":
		return Definition, true
	case "call":
		return Call, true
	case "reference":
		return Reference, true
	}
	return 0, false
}

// Ref locates one use of a name: the file, the 1-based line and the scope
// the use originates from.
type Ref struct {
	File  string
	Line  int
	Scope qname.Name
}

// Entry is the usage record of one qualified name.
type Entry struct {
	Definitions []Ref
	Calls       []Ref
	References  []Ref
}

// Weight is the number of display lines the entry takes on a page.
func (e *Entry) Weight() int {
	w := 1 + len(e.Definitions) + len(e.Calls) + len(e.References)
	for _, l := range [][]Ref{e.Definitions, e.Calls, e.References} {
		if len(l) > 0 {
			w++
		}
	}
	return w
}

// Len returns the total number of records.
func (e *Entry) Len() int {
	return len(e.Definitions) + len(e.Calls) + len(e.References)
}

func (e *Entry) list(k Kind) *[]Ref {
	switch k {
	case Call:
		return &e.Calls
	case Reference:
		return &e.References
	}
	return &e.Definitions
}

// Table maps qualified names to entries. Add and Merge invalidate the index;
// call GenerateIndex before Find, Pages or ViewFor.
type Table struct {
	entries map[string]*Entry
	names   map[string]qname.Name

	index    map[string][]qname.Name
	pages    [][]qname.Name
	pageOf   map[string]int
	pageSize int
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{
		entries:  make(map[string]*Entry),
		names:    make(map[string]qname.Name),
		pageSize: DefaultPageSize,
	}
}

// Len returns the number of distinct names.
func (t *Table) Len() int {
	return len(t.entries)
}

func (t *Table) entry(name qname.Name) *Entry {
	key := name.Key()
	e, ok := t.entries[key]
	if !ok {
		e = &Entry{}
		t.entries[key] = e
		t.names[key] = qname.New(name...)
	}
	return e
}

// Add appends a record for name.
func (t *Table) Add(name qname.Name, kind Kind, ref Ref) {
	l := t.entry(name).list(kind)
	*l = append(*l, ref)
	t.pages = nil
}

// Merge appends every record of other to t. Lists are concatenated, not
// deduplicated, so each list keeps the order of its contributing tables.
func (t *Table) Merge(other *Table) {
	if other == nil {
		return
	}
	for key, oe := range other.entries {
		e := t.entry(other.names[key])
		e.Definitions = append(e.Definitions, oe.Definitions...)
		e.Calls = append(e.Calls, oe.Calls...)
		e.References = append(e.References, oe.References...)
	}
	t.pages = nil
}

// Lookup returns the entry for name.
func (t *Table) Lookup(name qname.Name) (*Entry, bool) {
	e, ok := t.entries[name.Key()]
	return e, ok
}

// Names returns every name in sorted order.
func (t *Table) Names() []qname.Name {
	out := make([]qname.Name, 0, len(t.names))
	for _, n := range t.names {
		out = append(out, n)
	}
	slices.SortFunc(out, qname.Name.Compare)
	return out
}

// SetPageSize changes the page weight threshold used by GenerateIndex.
func (t *Table) SetPageSize(n int) {
	if n > 0 {
		t.pageSize = n
	}
}

func compareRef(a, b Ref) int {
	if c := cmp.Compare(a.File, b.File); c != 0 {
		return c
	}
	return cmp.Compare(a.Line, b.Line)
}

// GenerateIndex sorts call and reference lists by location, builds the
// short-name index and assigns pages. Names accumulate on a page until its
// running weight exceeds the page size; the name that crosses the
// threshold stays on the page it filled.
func (t *Table) GenerateIndex() {
	t.index = make(map[string][]qname.Name)
	t.pageOf = make(map[string]int)
	t.pages = nil

	names := t.Names()
	for _, n := range names {
		e := t.entries[n.Key()]
		slices.SortStableFunc(e.Calls, compareRef)
		slices.SortStableFunc(e.References, compareRef)

		for _, short := range ShortNames(n) {
			t.index[short] = append(t.index[short], n)
		}
	}

	var page []qname.Name
	size := 0
	for _, n := range names {
		page = append(page, n)
		size += t.entries[n.Key()].Weight()
		t.pageOf[n.Key()] = len(t.pages)
		if size > t.pageSize {
			t.pages = append(t.pages, page)
			page, size = nil, 0
		}
	}
	if len(page) > 0 {
		t.pages = append(t.pages, page)
	}
}

// ShortNames returns the index keys of name: its last segment and, when
// that segment is a function signature, the bare function name.
func ShortNames(name qname.Name) []string {
	last := name.Last()
	if i := strings.IndexByte(last, '('); i > 0 {
		return []string{last, last[:i]}
	}
	return []string{last}
}

// PageSize returns the page weight threshold.
func (t *Table) PageSize() int {
	return t.pageSize
}

// Find returns the names registered under a short name: the last segment
// of a name, or a function's bare name without its parameter list.
func (t *Table) Find(short string) []qname.Name {
	return slices.Clone(t.index[short])
}

// Pages returns the page assignment computed by GenerateIndex.
func (t *Table) Pages() [][]qname.Name {
	return t.pages
}

// ViewFor returns the page holding name.
func (t *Table) ViewFor(name qname.Name) (int, bool) {
	p, ok := t.pageOf[name.Key()]
	return p, ok
}

// Link returns the location of name's entry in the rendered index.
func (t *Table) Link(name qname.Name) (string, bool) {
	p, ok := t.ViewFor(name)
	if !ok {
		return "", false
	}
	return PageLink(p, name), true
}

// PageLink formats the link to name on page p.
func PageLink(p int, name qname.Name) string {
	return fmt.Sprintf("xref%d.html#%s", p, url.PathEscape(name.String()))
}
