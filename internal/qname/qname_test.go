package qname

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrune(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		self  Name
		other Name
		want  Name
	}{
		{"shared prefix", New("A", "B", "C", "D"), New("A", "B", "D"), New("C", "D")},
		{"no shared prefix", New("A", "B"), New("X"), New("A", "B")},
		{"identical keeps last", New("A", "B"), New("A", "B"), New("B")},
		{"other longer", New("A", "B"), New("A", "B", "C"), New("B")},
		{"empty other", New("A"), Name{}, New("A")},
		{"empty self", Name{}, New("A"), Name{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.self.Prune(tt.other)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrune_DoesNotAlias(t *testing.T) {
	t.Parallel()
	n := New("A", "B", "C")
	p := n.Prune(New("A"))
	p[0] = "Z"
	assert.Equal(t, New("A", "B", "C"), n)
}

func TestKeyRoundTrip(t *testing.T) {
	t.Parallel()
	n := New("std", "vector", "push_back(const T&)")
	assert.Equal(t, n, ParseKey(n.Key()))
	assert.Equal(t, Name{}, ParseKey(Name{}.Key()))
	assert.NotEqual(t, New("a::b").Key(), New("a", "b").Key())
}

func TestFormat(t *testing.T) {
	t.Parallel()
	n := New("pkg", "mod", "Class")
	assert.Equal(t, "pkg::mod::Class", n.Format(LangCxx))
	assert.Equal(t, "pkg.mod.Class", n.Format(LangPython))
	assert.Equal(t, "pkg::mod::Class", n.String())
	assert.Equal(t, n, Parse("pkg.mod.Class", LangPython))
	assert.Equal(t, n, Parse("pkg::mod::Class", LangIDL))
	assert.Equal(t, Name{}, Parse("", LangC))
}

func TestCompare_SortsLikeTuples(t *testing.T) {
	t.Parallel()
	names := []Name{
		New("b"),
		New("a", "z"),
		New("a"),
		New("a", "b"),
	}
	sort.Slice(names, func(i, j int) bool { return names[i].Compare(names[j]) < 0 })
	assert.Equal(t, []Name{New("a"), New("a", "b"), New("a", "z"), New("b")}, names)
}

func TestAppendParentLast(t *testing.T) {
	t.Parallel()
	base := New("A", "B")
	child := base.Append("C")
	assert.Equal(t, New("A", "B", "C"), child)
	assert.Equal(t, New("A", "B"), base)
	assert.Equal(t, base, child.Parent())
	assert.Equal(t, "C", child.Last())
	assert.True(t, child.HasPrefix(base))
	assert.False(t, base.HasPrefix(child))
	assert.Equal(t, "", Name{}.Last())
	assert.True(t, Name{}.Parent().IsEmpty())
}

func TestParse_NestedSeparators(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		lang Language
		want Name
	}{
		{"geo::scale(geo::Shape&)", LangCxx, New("geo", "scale(geo::Shape&)")},
		{"geo::fit(const std::vector<geo::Shape>&, int)", LangCxx, New("geo", "fit(const std::vector<geo::Shape>&, int)")},
		{"std::map<int, geo::Shape>::find(const int&)", LangCxx, New("std", "map<int, geo::Shape>", "find(const int&)")},
		{"geo::Shape::operator<(const geo::Shape&)", LangCxx, New("geo", "Shape", "operator<(const geo::Shape&)")},
		{"io::operator<<(std::ostream&, const geo::Shape&)", LangCxx, New("io", "operator<<(std::ostream&, const geo::Shape&)")},
		{"geo::Ptr::operator->()", LangCxx, New("geo", "Ptr", "operator->()")},
		{"pkg.mod.f(a.b)", LangPython, New("pkg", "mod", "f(a.b)")},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Parse(tt.in, tt.lang)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.Format(tt.lang))
		})
	}
}
