package asg

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jward/docgraph/internal/qname"
)

func base(name string) *Base {
	return &Base{Language: qname.LangCxx, Name: qname.New(name)}
}

func TestKindOf(t *testing.T) {
	t.Parallel()
	assert.Equal(t, KindForward, KindOf(&Forward{}))
	assert.Equal(t, KindFunction, KindOf(&Function{}))
	assert.Equal(t, KindOperation, KindOf(&Function{Operation: true}))
	assert.Equal(t, KindMetaModule, KindOf(&MetaModule{}))
	assert.Equal(t, KindEnumerator, KindOf(&Enumerator{}))
}

func TestDeclaresType(t *testing.T) {
	t.Parallel()
	assert.True(t, DeclaresType(&Class{}))
	assert.True(t, DeclaresType(&Forward{}))
	assert.True(t, DeclaresType(&Typedef{}))
	assert.False(t, DeclaresType(&Variable{}))
	assert.False(t, DeclaresType(&Function{}))
}

func TestWalk_DepthFirstWithSkip(t *testing.T) {
	t.Parallel()
	inner := &Class{DeclBase: DeclBase{Name: qname.New("N", "C")}}
	inner.Declarations = []Decl{&Variable{DeclBase: DeclBase{Name: qname.New("N", "C", "x")}}}
	skipped := &Class{DeclBase: DeclBase{Name: qname.New("N", "S")}}
	skipped.Declarations = []Decl{&Variable{DeclBase: DeclBase{Name: qname.New("N", "S", "y")}}}
	enum := &Enum{
		DeclBase:    DeclBase{Name: qname.New("N", "E")},
		Enumerators: []*Enumerator{{DeclBase: DeclBase{Name: qname.New("N", "E", "A")}}},
	}
	mod := &Module{DeclBase: DeclBase{Name: qname.New("N")}, Declarations: []Decl{inner, skipped, enum}}

	var seen []string
	Walk([]Decl{mod}, func(d Decl) bool {
		seen = append(seen, d.Base().Name.String())
		return d != skipped
	})
	assert.Equal(t, []string{"N", "N::C", "N::C::x", "N::S", "N::E", "N::E::A"}, seen)
}

func TestFormat(t *testing.T) {
	t.Parallel()
	str := &Declared{Language: qname.LangCxx, Name: qname.New("std", "string"), DeclKind: KindClass}
	ref := &Modifier{Language: qname.LangCxx, Alias: str, Premodifiers: []string{"const"}, Postmodifiers: []string{"&"}}
	assert.Equal(t, "const std::string&", Format(ref))

	vec := &Parametrized{
		Language:   qname.LangCxx,
		Template:   &Template{Language: qname.LangCxx, Name: qname.New("std", "vector")},
		Parameters: []Type{base("int")},
	}
	assert.Equal(t, "std::vector<int>", Format(vec))

	arr := &Array{Language: qname.LangCxx, Alias: base("char"), Sizes: []string{"16"}}
	assert.Equal(t, "char[16]", Format(arr))

	fn := &FunctionType{Language: qname.LangCxx, Return: base("void"), Premodifiers: []string{"*"}, Parameters: []Type{base("int")}}
	assert.Equal(t, "void(*)(int)", Format(fn))
	assert.Equal(t, "", Format(nil))
}

func TestNameOf(t *testing.T) {
	t.Parallel()
	tmpl := &Template{Language: qname.LangCxx, Name: qname.New("std", "vector")}
	p := &Parametrized{Language: qname.LangCxx, Template: tmpl}
	m := &Modifier{Language: qname.LangCxx, Alias: p}
	assert.Equal(t, qname.New("std", "vector"), NameOf(m))
	assert.Nil(t, NameOf(&FunctionType{}))
}

func TestAccessibility(t *testing.T) {
	t.Parallel()
	assert.Equal(t, Protected, ParseAccessibility("protected"))
	assert.Equal(t, Default, ParseAccessibility("internal"))
	assert.Equal(t, "private", Private.String())
}
