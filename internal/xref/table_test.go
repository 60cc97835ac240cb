package xref

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/docgraph/internal/qname"
)

func fill(t *Table, name qname.Name, defs, calls, refs int) {
	for i := 0; i < defs; i++ {
		t.Add(name, Definition, Ref{File: "a.cc", Line: i + 1})
	}
	for i := 0; i < calls; i++ {
		t.Add(name, Call, Ref{File: "a.cc", Line: i + 1})
	}
	for i := 0; i < refs; i++ {
		t.Add(name, Reference, Ref{File: "a.cc", Line: i + 1})
	}
}

func TestEntry_Weight(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 1, (&Entry{}).Weight())
	e := &Entry{Definitions: make([]Ref, 2), References: make([]Ref, 3)}
	assert.Equal(t, 1+5+2, e.Weight())
	assert.Equal(t, 5, e.Len())
}

func TestTable_Pagination_HeavyEntries(t *testing.T) {
	t.Parallel()
	tbl := NewTable()
	names := []qname.Name{qname.New("A"), qname.New("B"), qname.New("C")}
	for _, n := range names {
		// 1 + 247 + 2 non-empty lists = 250
		fill(tbl, n, 1, 246, 0)
	}
	e, _ := tbl.Lookup(names[0])
	require.Equal(t, 250, e.Weight())

	tbl.GenerateIndex()

	pages := tbl.Pages()
	require.Len(t, pages, 3)
	for i, n := range names {
		assert.Equal(t, []qname.Name{n}, pages[i])
		p, ok := tbl.ViewFor(n)
		require.True(t, ok)
		assert.Equal(t, i, p)
	}
}

func TestTable_Pagination_PacksSmallEntries(t *testing.T) {
	t.Parallel()
	tbl := NewTable()
	tbl.SetPageSize(10)
	for _, s := range []string{"e", "d", "c", "b", "a"} {
		fill(tbl, qname.New(s), 1, 1, 0) // weight 5
	}
	tbl.GenerateIndex()

	pages := tbl.Pages()
	require.Len(t, pages, 2)
	assert.Equal(t, []qname.Name{qname.New("a"), qname.New("b"), qname.New("c")}, pages[0])
	assert.Equal(t, []qname.Name{qname.New("d"), qname.New("e")}, pages[1])

	link, ok := tbl.Link(qname.New("c"))
	require.True(t, ok)
	assert.Equal(t, "xref0.html#c", link)
	link, ok = tbl.Link(qname.New("d"))
	require.True(t, ok)
	assert.Equal(t, "xref1.html#d", link)
	_, ok = tbl.Link(qname.New("zzz"))
	assert.False(t, ok)
}

func TestTable_Pagination_CrossingNameStaysOnPage(t *testing.T) {
	t.Parallel()
	tbl := NewTable()
	a, b, c := qname.New("a"), qname.New("b"), qname.New("c")
	fill(tbl, a, 1, 146, 0) // weight 150
	fill(tbl, b, 1, 96, 0)  // weight 100
	fill(tbl, c, 1, 26, 0)  // weight 30
	tbl.GenerateIndex()

	pages := tbl.Pages()
	require.Len(t, pages, 2)
	assert.Equal(t, []qname.Name{a, b}, pages[0])
	assert.Equal(t, []qname.Name{c}, pages[1])
	p, ok := tbl.ViewFor(b)
	require.True(t, ok)
	assert.Equal(t, 0, p)
}

func TestTable_Pagination_Deterministic(t *testing.T) {
	t.Parallel()
	build := func() [][]qname.Name {
		tbl := NewTable()
		for i := 0; i < 50; i++ {
			fill(tbl, qname.New("ns", string(rune('a'+i%26)), string(rune('A'+i/26))), i%7, i%5, i%3)
		}
		tbl.GenerateIndex()
		return tbl.Pages()
	}
	first := build()
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, build())
	}
}

func TestTable_Merge_Concatenates(t *testing.T) {
	t.Parallel()
	x := qname.New("N", "x")
	a := NewTable()
	a.Add(x, Definition, Ref{File: "a.h", Line: 1})
	a.Add(x, Call, Ref{File: "a.cc", Line: 7})
	b := NewTable()
	b.Add(x, Definition, Ref{File: "a.h", Line: 1})
	b.Add(x, Call, Ref{File: "b.cc", Line: 2})
	b.Add(qname.New("N", "y"), Reference, Ref{File: "b.cc", Line: 3})

	a.Merge(b)

	e, ok := a.Lookup(x)
	require.True(t, ok)
	assert.Equal(t, []Ref{{File: "a.h", Line: 1}, {File: "a.h", Line: 1}}, e.Definitions)
	assert.Equal(t, []Ref{{File: "a.cc", Line: 7}, {File: "b.cc", Line: 2}}, e.Calls)
	assert.Equal(t, 2, a.Len())
}

func TestTable_GenerateIndex_SortsCallsAndReferences(t *testing.T) {
	t.Parallel()
	n := qname.New("f()")
	tbl := NewTable()
	tbl.Add(n, Definition, Ref{File: "z.cc", Line: 9})
	tbl.Add(n, Definition, Ref{File: "a.cc", Line: 1})
	tbl.Add(n, Call, Ref{File: "b.cc", Line: 5})
	tbl.Add(n, Call, Ref{File: "a.cc", Line: 30})
	tbl.Add(n, Call, Ref{File: "a.cc", Line: 4})
	tbl.Add(n, Reference, Ref{File: "b.cc", Line: 2, Scope: qname.New("s2")})
	tbl.Add(n, Reference, Ref{File: "b.cc", Line: 2, Scope: qname.New("s1")})
	tbl.GenerateIndex()

	e, _ := tbl.Lookup(n)
	assert.Equal(t, []Ref{{File: "a.cc", Line: 4}, {File: "a.cc", Line: 30}, {File: "b.cc", Line: 5}}, e.Calls)
	// Equal locations keep their order.
	assert.Equal(t, "s2", e.References[0].Scope.String())
	// Definitions are left as recorded.
	assert.Equal(t, "z.cc", e.Definitions[0].File)
}

func TestTable_Find(t *testing.T) {
	t.Parallel()
	tbl := NewTable()
	for _, n := range []qname.Name{
		qname.New("N", "draw(int)"),
		qname.New("N", "draw(double)"),
		qname.New("M", "draw"),
		qname.New("N", "Shape"),
	} {
		tbl.Add(n, Definition, Ref{File: "a.h", Line: 1})
	}
	tbl.GenerateIndex()

	assert.Equal(t, []qname.Name{
		qname.New("M", "draw"),
		qname.New("N", "draw(double)"),
		qname.New("N", "draw(int)"),
	}, tbl.Find("draw"))
	assert.Equal(t, []qname.Name{qname.New("N", "draw(int)")}, tbl.Find("draw(int)"))
	assert.Empty(t, tbl.Find("missing"))
}

func TestTable_Names_Sorted(t *testing.T) {
	t.Parallel()
	tbl := NewTable()
	tbl.Add(qname.New("b"), Call, Ref{})
	tbl.Add(qname.New("a", "z"), Call, Ref{})
	tbl.Add(qname.New("a"), Call, Ref{})
	assert.Equal(t, []qname.Name{qname.New("a"), qname.New("a", "z"), qname.New("b")}, tbl.Names())
}

func TestKind(t *testing.T) {
	t.Parallel()
	for _, k := range []Kind{Definition, Call, Reference} {
		got, ok := ParseKind(k.String())
		require.True(t, ok)
		assert.Equal(t, k, got)
	}
	_, ok := ParseKind("use")
	assert.False(t, ok)
}
