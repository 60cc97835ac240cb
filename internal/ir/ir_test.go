package ir

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/jward/docgraph/internal/asg"
	"github.com/jward/docgraph/internal/qname"
)

func cxxClass(file string, line int, name ...string) *asg.Class {
	return &asg.Class{DeclBase: asg.DeclBase{
		File: file, Line: line, Language: qname.LangCxx, Label: "class", Name: qname.New(name...),
	}}
}

func newUnit(t *testing.T, file string, decls ...asg.Decl) *IR {
	t.Helper()
	r := New()
	f := r.AddFile(&SourceFile{Name: file, AbsName: "/src/" + file, Language: qname.LangCxx, Primary: true})
	for _, d := range decls {
		r.Declare(f, d)
	}
	return r
}

func TestAddFile_MergesByKey(t *testing.T) {
	t.Parallel()
	r := New()
	a := r.AddFile(&SourceFile{Name: "a.h", Includes: []*Include{{Target: "b.h"}}})
	b := r.AddFile(&SourceFile{Name: "a.h", AbsName: "/src/a.h", Primary: true, Includes: []*Include{{Target: "c.h"}}})

	assert.Same(t, a, b)
	require.Len(t, r.Files(), 1)
	assert.True(t, a.Primary)
	assert.Equal(t, "/src/a.h", a.AbsName)
	require.Len(t, a.Includes, 2)
	assert.Equal(t, "c.h", a.Includes[1].Target)
}

func TestAddFile_PrimaryIsUnion(t *testing.T) {
	t.Parallel()
	r := New()
	r.AddFile(&SourceFile{Name: "a.h", Primary: true})
	r.AddFile(&SourceFile{Name: "a.h", Primary: false})
	f, ok := r.File("a.h")
	require.True(t, ok)
	assert.True(t, f.Primary)
}

func TestDeclare_RegistersNested(t *testing.T) {
	t.Parallel()
	outer := cxxClass("a.h", 1, "N", "Outer")
	inner := cxxClass("a.h", 2, "N", "Outer", "Inner")
	outer.Declarations = []asg.Decl{inner}

	r := newUnit(t, "a.h", outer)

	d, ok := r.Lookup(qname.New("N", "Outer", "Inner"))
	require.True(t, ok)
	assert.Same(t, inner, d)

	typ, ok := r.LookupType(qname.New("N", "Outer"))
	require.True(t, ok)
	decl, ok := typ.(*asg.Declared)
	require.True(t, ok)
	assert.Equal(t, asg.KindClass, decl.DeclKind)

	f, _ := r.File("a.h")
	assert.Equal(t, []asg.Decl{outer}, f.Declarations)
}

func TestMerge(t *testing.T) {
	t.Parallel()
	a := newUnit(t, "a.cc", cxxClass("a.cc", 1, "A"))
	b := newUnit(t, "b.cc", cxxClass("b.cc", 1, "B"))
	b.DeclareType(qname.New("int"), &asg.Base{Language: qname.LangCxx, Name: qname.New("int")})

	a.Merge(b)

	assert.Len(t, a.Declarations, 2)
	require.Len(t, a.Files(), 2)
	assert.Equal(t, "a.cc", a.Files()[0].Name)
	assert.Equal(t, "b.cc", a.Files()[1].Name)
	assert.Contains(t, a.Types, qname.New("int").Key())
	assert.Contains(t, a.Symbols, qname.New("B").Key())
}

func TestMerge_KeepsDuplicates(t *testing.T) {
	t.Parallel()
	fwd := &asg.Forward{DeclBase: asg.DeclBase{File: "a.h", Line: 3, Language: qname.LangCxx, Name: qname.New("X")}}
	cls := cxxClass("b.h", 9, "X")
	a := newUnit(t, "a.h", fwd)
	b := newUnit(t, "b.h", cls)

	a.Merge(b)

	assert.Equal(t, []asg.Decl{fwd, cls}, a.Declarations)
	// The later entry wins in the arena until the linker runs.
	d, _ := a.Lookup(qname.New("X"))
	assert.Same(t, cls, d)
}

func TestMerge_SameFileTwice(t *testing.T) {
	t.Parallel()
	a := newUnit(t, "x.h", cxxClass("x.h", 1, "A"))
	b := newUnit(t, "x.h", cxxClass("x.h", 5, "B"))

	a.Merge(b)

	require.Len(t, a.Files(), 1)
	f, _ := a.File("x.h")
	assert.Len(t, f.Declarations, 2)
}

func TestMerge_RebindsIncludes(t *testing.T) {
	t.Parallel()
	a := New()
	a.AddFile(&SourceFile{Name: "main.cc", Primary: true, Includes: []*Include{{Target: "/src/util.h"}, {Target: "<vector>"}}})
	b := New()
	b.AddFile(&SourceFile{Name: "util.h", AbsName: "/src/util.h"})

	a.Merge(b)

	f, _ := a.File("main.cc")
	assert.Equal(t, "util.h", f.Includes[0].Target)
	assert.Equal(t, "<vector>", f.Includes[1].Target)
	target, ok := a.IncludeTarget(f.Includes[0])
	require.True(t, ok)
	assert.Equal(t, "/src/util.h", target.AbsName)
}

func TestMerge_Nil(t *testing.T) {
	t.Parallel()
	a := newUnit(t, "a.cc", cxxClass("a.cc", 1, "A"))
	a.Merge(nil)
	assert.Len(t, a.Declarations, 1)
}

func TestPrimaryFiles(t *testing.T) {
	t.Parallel()
	r := New()
	r.AddFile(&SourceFile{Name: "a.cc", Primary: true})
	r.AddFile(&SourceFile{Name: "a.h"})
	r.AddFile(&SourceFile{Name: "b.cc", Primary: true})

	var names []string
	for _, f := range r.PrimaryFiles() {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"a.cc", "b.cc"}, names)
}

func sampleIR(t *testing.T) *IR {
	t.Helper()
	tmpl := &asg.Template{Language: qname.LangCxx, Parameters: []*asg.Parameter{
		{Type: &asg.Base{Language: qname.LangCxx, Name: qname.New("T")}, Name: "T"},
	}}
	vec := cxxClass("v.h", 4, "std", "vector")
	vec.Template = tmpl

	method := &asg.Function{
		DeclBase:   asg.DeclBase{File: "v.h", Line: 6, Language: qname.LangCxx, Name: qname.New("std", "vector", "size()"), Access: asg.Public},
		ReturnType: &asg.Base{Language: qname.LangCxx, Name: qname.New("size_t")},
		RealName:   qname.New("std", "vector", "size"),
	}
	vec.Declarations = []asg.Decl{method}

	color := &asg.Enum{DeclBase: asg.DeclBase{File: "v.h", Line: 10, Language: qname.LangCxx, Name: qname.New("std", "Color")}}
	color.Enumerators = []*asg.Enumerator{
		{DeclBase: asg.DeclBase{File: "v.h", Line: 10, Language: qname.LangCxx, Name: qname.New("std", "Red")}, Value: "0"},
	}

	ns := &asg.Module{
		DeclBase:     asg.DeclBase{File: "v.h", Line: 1, Language: qname.LangCxx, Label: "namespace", Name: qname.New("std"), Comments: []string{"// standard"}},
		Declarations: []asg.Decl{vec, color},
	}
	derived := cxxClass("v.h", 20, "Ints")
	derived.Parents = []*asg.Inheritance{{
		Kind:       "inherits",
		Parent:     &asg.Parametrized{Language: qname.LangCxx, Template: &asg.Unknown{Language: qname.LangCxx, Name: qname.New("std", "vector")}, Parameters: []asg.Type{&asg.Base{Language: qname.LangCxx, Name: qname.New("int")}}},
		Attributes: []string{"public"},
	}}

	r := New()
	f := r.AddFile(&SourceFile{Name: "v.h", AbsName: "/inc/v.h", Language: qname.LangCxx, Primary: true, Includes: []*Include{{Target: "cstddef", IsNext: true}}})
	r.Declare(f, ns)
	r.Declare(f, derived)
	r.DeclareType(qname.New("int"), &asg.Base{Language: qname.LangCxx, Name: qname.New("int")})
	return r
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	t.Parallel()
	orig := sampleIR(t)

	var buf bytes.Buffer
	require.NoError(t, orig.Save(&buf))
	got, err := Load(&buf)
	require.NoError(t, err)

	require.Len(t, got.Declarations, 2)
	ns, ok := got.Declarations[0].(*asg.Module)
	require.True(t, ok)
	assert.Equal(t, "namespace", ns.Label)
	assert.Equal(t, []string{"// standard"}, ns.Comments)
	require.Len(t, ns.Declarations, 2)

	vec := ns.Declarations[0].(*asg.Class)
	require.NotNil(t, vec.Template)
	assert.Equal(t, "T", vec.Template.Parameters[0].Name)

	fn := vec.Declarations[0].(*asg.Function)
	assert.Equal(t, asg.Public, fn.Access)
	assert.Equal(t, "size_t", asg.Format(fn.ReturnType))
	assert.True(t, fn.RealName.Equal(qname.New("std", "vector", "size")))

	color := ns.Declarations[1].(*asg.Enum)
	require.Len(t, color.Enumerators, 1)
	assert.Equal(t, "0", color.Enumerators[0].Value)

	derived := got.Declarations[1].(*asg.Class)
	assert.Equal(t, "std::vector<int>", asg.Format(derived.Parents[0].Parent))

	// File declarations share identity with the top-level list.
	f, ok := got.File("v.h")
	require.True(t, ok)
	assert.Same(t, got.Declarations[0], f.Declarations[0])
	assert.True(t, f.Primary)
	assert.True(t, f.Includes[0].IsNext)

	// Template dictionary entries are shared with their declaration.
	typ, ok := got.LookupType(qname.New("std", "vector"))
	require.True(t, ok)
	assert.Same(t, vec.Template, typ)

	d, ok := got.Lookup(qname.New("std", "Red"))
	require.True(t, ok)
	assert.Equal(t, asg.KindEnumerator, asg.KindOf(d))
	assert.Contains(t, got.Types, qname.New("int").Key())
}

func TestSave_Deterministic(t *testing.T) {
	t.Parallel()
	r := sampleIR(t)
	var a, b bytes.Buffer
	require.NoError(t, r.Save(&a))
	require.NoError(t, r.Save(&b))
	assert.Equal(t, a.Bytes(), b.Bytes())
}

func TestLoad_SchemaMismatch(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, msgpack.NewEncoder(&buf).Encode(&wireIR{Schema: schemaVersion + 1}))

	_, err := Load(&buf)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchemaVersion)
}

func TestLoad_BadReference(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, msgpack.NewEncoder(&buf).Encode(&wireIR{Schema: schemaVersion, TopLevel: []int{3}}))

	_, err := Load(&buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestSaveFile_LoadFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "out", "unit.ir")
	require.NoError(t, sampleIR(t).SaveFile(path))

	got, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, got.Declarations, 2)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.ir"))
	require.Error(t, err)
}
