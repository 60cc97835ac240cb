package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/docgraph/internal/asg"
	"github.com/jward/docgraph/internal/ir"
	"github.com/jward/docgraph/internal/qname"
	"github.com/jward/docgraph/internal/xref"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return s
}

// sampleIndex builds a small linked IR and a matching xref table.
func sampleIndex(t *testing.T) (*ir.IR, *xref.Table) {
	t.Helper()
	r := ir.New()
	hdr := r.AddFile(&ir.SourceFile{Name: "shapes.h", AbsName: "/src/shapes.h", Language: qname.LangCxx})
	main := r.AddFile(&ir.SourceFile{Name: "main.cc", Language: qname.LangCxx, Primary: true,
		Includes: []*ir.Include{{Target: "shapes.h"}, {Target: "vector", IsNext: true}}})

	shape := &asg.Class{DeclBase: asg.DeclBase{File: "shapes.h", Line: 3, Language: qname.LangCxx, Label: "class",
		Name: qname.New("geo", "Shape"), Comments: []string{"// A shape."}}}
	area := &asg.Function{
		DeclBase:   asg.DeclBase{File: "shapes.h", Line: 5, Language: qname.LangCxx, Name: qname.New("geo", "Shape", "area()"), Access: asg.Public},
		ReturnType: &asg.Base{Language: qname.LangCxx, Name: qname.New("double")},
		RealName:   qname.New("geo", "Shape", "area"),
	}
	scale := &asg.Function{
		DeclBase: asg.DeclBase{File: "shapes.h", Line: 6, Language: qname.LangCxx, Name: qname.New("geo", "Shape", "area(int)"), Access: asg.Public},
		RealName: qname.New("geo", "Shape", "area"),
	}
	shape.Declarations = []asg.Decl{area, scale}
	ns := &asg.MetaModule{DeclBase: asg.DeclBase{File: "shapes.h", Line: 1, Language: qname.LangCxx, Label: "namespace", Name: qname.New("geo")},
		Declarations: []asg.Decl{shape}}
	r.Declare(hdr, ns)
	r.Declare(main, &asg.Function{DeclBase: asg.DeclBase{File: "main.cc", Line: 10, Language: qname.LangCxx, Name: qname.New("main()")}})

	tbl := xref.NewTable()
	tbl.Add(qname.New("geo", "Shape", "area()"), xref.Definition, xref.Ref{File: "shapes.h", Line: 5, Scope: qname.New("geo", "Shape")})
	tbl.Add(qname.New("geo", "Shape", "area()"), xref.Call, xref.Ref{File: "main.cc", Line: 12, Scope: qname.New("main()")})
	tbl.Add(qname.New("geo", "Shape", "area()"), xref.Call, xref.Ref{File: "main.cc", Line: 11, Scope: qname.New("main()")})
	tbl.Add(qname.New("geo", "Shape"), xref.Reference, xref.Ref{File: "main.cc", Line: 11, Scope: qname.New("main()")})
	tbl.Add(qname.New("printf(const char*)"), xref.Call, xref.Ref{File: "main.cc", Line: 13, Scope: qname.New("main()")})
	tbl.GenerateIndex()
	return r, tbl
}

func committedStore(t *testing.T) *Store {
	t.Helper()
	s := newTestStore(t)
	r, tbl := sampleIndex(t)
	require.NoError(t, s.CommitIndex(r, tbl))
	return s
}

// =============================================================================
// Schema & Lifecycle
// =============================================================================

func TestMigrate_AllTablesExist(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	for _, table := range []string{"files", "includes", "symbols", "xrefs", "name_index", "metadata"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.Migrate())
}

// =============================================================================
// CommitIndex
// =============================================================================

func TestCommitIndex_Files(t *testing.T) {
	t.Parallel()
	s := committedStore(t)

	files, err := s.Files()
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "shapes.h", files[0].Path)
	assert.Equal(t, "/src/shapes.h", files[0].AbsPath)
	assert.False(t, files[0].Primary)
	assert.True(t, files[1].Primary)

	f, err := s.FileByPath("main.cc")
	require.NoError(t, err)
	require.NotNil(t, f)
	incs, err := s.IncludesByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, incs, 2)
	assert.Equal(t, "shapes.h", incs[0].Target)
	assert.True(t, incs[1].IsNext)

	missing, err := s.FileByPath("nope.cc")
	require.NoError(t, err)
	assert.Nil(t, missing)

	byID, err := s.FileByID(f.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "main.cc", byID.Path)
	missing, err = s.FileByID(f.ID + 100)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCommitIndex_Symbols(t *testing.T) {
	t.Parallel()
	s := committedStore(t)

	shape, err := s.SymbolByName(qname.New("geo", "Shape"))
	require.NoError(t, err)
	require.NotNil(t, shape)
	assert.Equal(t, asg.KindClass, shape.Kind)
	assert.Equal(t, "class", shape.Label)
	assert.Equal(t, 3, shape.Line)
	assert.Equal(t, []string{"// A shape."}, shape.Comments)
	require.NotNil(t, shape.FileID)
	require.NotNil(t, shape.ParentSymbolID)

	parent, err := s.SymbolByID(*shape.ParentSymbolID)
	require.NoError(t, err)
	assert.Equal(t, "geo", parent.Name)
	assert.Equal(t, asg.KindMetaModule, parent.Kind)

	children, err := s.ChildSymbols(shape.ID)
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "double area()", children[0].Summary)
	assert.Equal(t, "public", children[0].Access)

	// Names only seen in streams get a row without a kind.
	ext, err := s.SymbolByName(qname.New("printf(const char*)"))
	require.NoError(t, err)
	require.NotNil(t, ext)
	assert.Empty(t, ext.Kind)
	assert.Nil(t, ext.FileID)
	assert.NotNil(t, ext.Page)

	none, err := s.SymbolByName(qname.New("nothing"))
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestCommitIndex_XRefs(t *testing.T) {
	t.Parallel()
	s := committedStore(t)

	area, err := s.SymbolByName(qname.New("geo", "Shape", "area()"))
	require.NoError(t, err)
	require.NotNil(t, area)
	assert.Equal(t, 1+3+2, area.Weight)

	refs, err := s.XRefsBySymbol(area.ID, "")
	require.NoError(t, err)
	require.Len(t, refs, 3)
	assert.Equal(t, "definition", refs[0].Kind)
	// Calls were sorted by line when the table was indexed.
	assert.Equal(t, 11, refs[1].Line)
	assert.Equal(t, 12, refs[2].Line)
	assert.Equal(t, "main()", refs[1].Scope)

	calls, err := s.XRefsBySymbol(area.ID, "call")
	require.NoError(t, err)
	assert.Len(t, calls, 2)

	inMain, err := s.XRefsByFile("main.cc")
	require.NoError(t, err)
	require.Len(t, inMain, 4)
	assert.Equal(t, 11, inMain[0].Line)
	assert.Equal(t, 13, inMain[3].Line)
}

func TestCommitIndex_NameIndex(t *testing.T) {
	t.Parallel()
	s := committedStore(t)

	overloads, err := s.SymbolsByShortName("area")
	require.NoError(t, err)
	require.Len(t, overloads, 2)
	assert.Equal(t, "geo::Shape::area()", overloads[0].Name)
	assert.Equal(t, "geo::Shape::area(int)", overloads[1].Name)

	exact, err := s.SymbolsByShortName("area(int)")
	require.NoError(t, err)
	assert.Len(t, exact, 1)

	printf, err := s.SymbolsByShortName("printf")
	require.NoError(t, err)
	assert.Len(t, printf, 1)
}

func TestSymbolsByShortName_SegmentOrder(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	tbl := xref.NewTable()
	// "geo2::f" sorts before "geo::f" as a display string.
	tbl.Add(qname.New("geo2", "f()"), xref.Definition, xref.Ref{File: "a.cc", Line: 2})
	tbl.Add(qname.New("geo", "f()"), xref.Definition, xref.Ref{File: "a.cc", Line: 1})
	tbl.GenerateIndex()
	require.NoError(t, s.CommitIndex(ir.New(), tbl))

	syms, err := s.SymbolsByShortName("f")
	require.NoError(t, err)
	require.Len(t, syms, 2)
	assert.Equal(t, "geo::f()", syms[0].Name)
	assert.Equal(t, "geo2::f()", syms[1].Name)
}

func TestCommitIndex_Pages(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	r, tbl := sampleIndex(t)
	tbl.SetPageSize(4)
	tbl.GenerateIndex()
	require.NoError(t, s.CommitIndex(r, tbl))

	n, err := s.PageCount()
	require.NoError(t, err)
	assert.Equal(t, len(tbl.Pages()), n)

	for i, page := range tbl.Pages() {
		syms, err := s.SymbolsOnPage(i)
		require.NoError(t, err)
		require.Len(t, syms, len(page))
		for j, name := range page {
			assert.Equal(t, name.String(), syms[j].Name)
		}
	}

	p, ok, err := s.PageOf(qname.New("printf(const char*)"))
	require.NoError(t, err)
	require.True(t, ok)
	want, _ := tbl.ViewFor(qname.New("printf(const char*)"))
	assert.Equal(t, want, p)

	// Declarations without records have no page.
	_, ok, err = s.PageOf(qname.New("main()"))
	require.NoError(t, err)
	assert.False(t, ok)

	v, ok, err := s.Metadata(MetaPageSize)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "4", v)
}

func TestCommitIndex_Replaces(t *testing.T) {
	t.Parallel()
	s := committedStore(t)
	r, tbl := sampleIndex(t)
	require.NoError(t, s.CommitIndex(r, tbl))

	files, err := s.Files()
	require.NoError(t, err)
	assert.Len(t, files, 2)

	syms, total, err := s.SearchSymbols("", "", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 6, total)
	assert.Len(t, syms, 6)
}

func TestClear(t *testing.T) {
	t.Parallel()
	s := committedStore(t)
	require.NoError(t, s.Clear())
	n, err := s.PageCount()
	require.NoError(t, err)
	assert.Zero(t, n)
}

// =============================================================================
// Search & Metadata
// =============================================================================

func TestSearchSymbols(t *testing.T) {
	t.Parallel()
	s := committedStore(t)

	syms, total, err := s.SearchSymbols("geo::Shape::", "", 0, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, syms, 1)
	assert.Equal(t, "geo::Shape::area()", syms[0].Name)

	syms, _, err = s.SearchSymbols("geo::Shape::", "", 1, 1)
	require.NoError(t, err)
	require.Len(t, syms, 1)
	assert.Equal(t, "geo::Shape::area(int)", syms[0].Name)

	_, total, err = s.SearchSymbols("geo", asg.KindClass, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	// LIKE wildcards in the prefix are literal.
	_, total, err = s.SearchSymbols("%", "", 0, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestMetadata(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	_, ok, err := s.Metadata("k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetMetadata("k", "v1"))
	require.NoError(t, s.SetMetadata("k", "v2"))
	v, ok, err := s.Metadata("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", v)
}
