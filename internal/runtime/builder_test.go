package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/docgraph/internal/asg"
	"github.com/jward/docgraph/internal/frontend"
	"github.com/jward/docgraph/internal/qname"
	"github.com/jward/docgraph/internal/xref"
)

// runBuilder evaluates script with the builder globals for a file named
// shapes.idl and returns the resulting unit.
func runBuilder(t *testing.T, script string) (*frontend.Unit, error) {
	t.Helper()
	src := frontend.Source{Path: "shapes.idl", AbsPath: "/src/shapes.idl", Content: []byte("module geo {};\n")}
	b := newBuilder(qname.LangIDL, src)
	if err := NewRuntime("").RunSource(context.Background(), script, b.globals(src)); err != nil {
		return nil, err
	}
	return b.unit(), nil
}

func mustLookup(t *testing.T, unit *frontend.Unit, name ...string) asg.Decl {
	t.Helper()
	d, ok := unit.IR.Lookup(qname.New(name...))
	require.True(t, ok, "missing %v", name)
	return d
}

func TestBuilder_FileGlobals(t *testing.T) {
	t.Parallel()
	_, err := runBuilder(t, `
assert(file_path == "shapes.idl", file_path)
assert(abs_path == "/src/shapes.idl", abs_path)
assert(language == "IDL", language)
assert(source == "module geo {};\n", "source")
`)
	require.NoError(t, err)
}

func TestBuilder_NestedDeclarations(t *testing.T) {
	t.Parallel()
	unit, err := runBuilder(t, `
geo := declare({"kind": "module", "name": ["geo"], "line": 1, "comments": ["Geometry."]})
shape := declare({"kind": "class", "label": "interface", "name": ["geo", "Shape"], "line": 2, "parent": geo})
declare({"kind": "variable", "label": "attribute", "name": ["geo", "Shape", "name"], "type": "string", "parent": shape, "line": 3})
declare({"kind": "const", "name": ["geo", "LIMIT"], "type": "long", "value": "64", "parent": geo, "line": 5})
`)
	require.NoError(t, err)
	require.Len(t, unit.IR.Declarations, 1)

	geo, ok := mustLookup(t, unit, "geo").(*asg.Module)
	require.True(t, ok)
	assert.Equal(t, "module", geo.Label)
	assert.Equal(t, []string{"Geometry."}, geo.Comments)
	assert.Equal(t, "shapes.idl", geo.File)
	assert.Len(t, geo.Declarations, 2)

	shape, ok := mustLookup(t, unit, "geo", "Shape").(*asg.Class)
	require.True(t, ok)
	assert.Equal(t, "interface", shape.Label)
	require.Len(t, shape.Declarations, 1)

	attr, ok := mustLookup(t, unit, "geo", "Shape", "name").(*asg.Variable)
	require.True(t, ok)
	assert.IsType(t, &asg.Base{}, attr.VarType)

	limit, ok := mustLookup(t, unit, "geo", "LIMIT").(*asg.Const)
	require.True(t, ok)
	assert.Equal(t, "64", limit.Value)

	f, ok := unit.IR.File("shapes.idl")
	require.True(t, ok)
	assert.True(t, f.Primary)
	assert.Len(t, f.Declarations, 1)
}

func TestBuilder_Operations(t *testing.T) {
	t.Parallel()
	unit, err := runBuilder(t, `
shape := declare({"kind": "class", "name": ["Shape"], "line": 1})
seq := type_ref("parametrized", type_ref("base", "sequence"), ["Point"])
declare({
    "kind": "operation",
    "name": ["Shape", "move"],
    "line": 2,
    "parent": shape,
    "return_type": "void",
    "premodifiers": ["oneway"],
    "parameters": [
        {"name": "to", "type": "Point", "premodifiers": ["in"]},
        {"name": "path", "type": seq, "premodifiers": ["inout"]}
    ],
    "raises": ["Invalid"]
})
`)
	require.NoError(t, err)

	fn, ok := mustLookup(t, unit, "Shape", "move(in Point, inout sequence<Point>)").(*asg.Function)
	require.True(t, ok)
	assert.True(t, fn.Operation)
	assert.Equal(t, qname.New("Shape", "move"), fn.RealName)
	assert.Equal(t, []string{"oneway"}, fn.Premodifiers)
	assert.Equal(t, "void", asg.Format(fn.ReturnType))
	require.Len(t, fn.Parameters, 2)
	assert.IsType(t, &asg.Unknown{}, fn.Parameters[0].Type)
	require.Len(t, fn.Exceptions, 1)
}

func TestBuilder_EnumsAndParents(t *testing.T) {
	t.Parallel()
	unit, err := runBuilder(t, `
geo := declare({"kind": "module", "name": ["geo"], "line": 1})
declare({"kind": "enum", "name": ["geo", "Color"], "line": 2, "parent": geo,
         "enumerators": [{"name": "RED"}, {"name": "GREEN", "line": 3, "value": "2"}]})
declare({"kind": "class", "name": ["geo", "Square"], "line": 4, "parent": geo,
         "parents": ["Shape", {"type": "Drawable", "kind": "implements", "attributes": ["virtual"]}]})
`)
	require.NoError(t, err)

	color, ok := mustLookup(t, unit, "geo", "Color").(*asg.Enum)
	require.True(t, ok)
	require.Len(t, color.Enumerators, 2)
	assert.Equal(t, qname.New("geo", "RED"), color.Enumerators[0].Name)
	assert.Equal(t, 2, color.Enumerators[0].Line)
	assert.Equal(t, "2", color.Enumerators[1].Value)

	square, ok := mustLookup(t, unit, "geo", "Square").(*asg.Class)
	require.True(t, ok)
	require.Len(t, square.Parents, 2)
	assert.Equal(t, "inherits", square.Parents[0].Kind)
	assert.Equal(t, "implements", square.Parents[1].Kind)
	assert.Equal(t, []string{"virtual"}, square.Parents[1].Attributes)
}

func TestBuilder_TypeRefs(t *testing.T) {
	t.Parallel()
	unit, err := runBuilder(t, `
ptr := type_ref("modifier", "Node", ["const"], ["*"])
grid := type_ref("array", "double", ["3", "3"])
declare({"kind": "typedef", "name": ["NodePtr"], "type": ptr, "line": 1})
declare({"kind": "typedef", "name": ["Grid"], "type": grid, "line": 2})
declare({"kind": "typedef", "name": ["Big"], "type": "unsigned long long", "line": 3})
`)
	require.NoError(t, err)

	ptr, ok := mustLookup(t, unit, "NodePtr").(*asg.Typedef)
	require.True(t, ok)
	assert.Equal(t, "const Node*", asg.Format(ptr.Alias))

	grid, ok := mustLookup(t, unit, "Grid").(*asg.Typedef)
	require.True(t, ok)
	assert.Equal(t, "double[3][3]", asg.Format(grid.Alias))

	big, ok := mustLookup(t, unit, "Big").(*asg.Typedef)
	require.True(t, ok)
	assert.IsType(t, &asg.Base{}, big.Alias)
}

func TestBuilder_IncludesAndAnchors(t *testing.T) {
	t.Parallel()
	unit, err := runBuilder(t, `
include("orb.idl")
include("gen.idl", true)
geo := declare({"kind": "module", "name": ["geo"], "line": 1})
anchor({"line": 1, "column": 7, "text": "geo", "decl": geo, "kind": "definition"})
anchor({"line": 1, "column": 0, "text": "Shape", "name": ["geo", "Shape"], "from": ["geo"]})
`)
	require.NoError(t, err)

	f, _ := unit.IR.File("shapes.idl")
	require.Len(t, f.Includes, 2)
	assert.Equal(t, "orb.idl", f.Includes[0].Target)
	assert.True(t, f.Includes[1].IsMacro)

	require.Len(t, unit.Anchors, 2)
	assert.Equal(t, qname.New("geo"), unit.Anchors[0].Name)
	assert.Equal(t, xref.Definition, unit.Anchors[0].Kind)
	assert.Equal(t, xref.Reference, unit.Anchors[1].Kind)
	assert.Equal(t, qname.New("geo"), unit.Anchors[1].From)
}

func TestBuilder_Errors(t *testing.T) {
	t.Parallel()
	cases := map[string]struct {
		script string
		want   string
	}{
		"unknown kind":    {`declare({"kind": "widget", "name": ["w"]})`, "unknown kind"},
		"missing name":    {`declare({"kind": "module"})`, "without a name"},
		"bad parent":      {`declare({"kind": "module", "name": ["m"], "parent": 9})`, "out of range"},
		"non-scope":       {"v := declare({\"kind\": \"variable\", \"name\": [\"v\"], \"type\": \"int\"})\ndeclare({\"kind\": \"module\", \"name\": [\"m\"], \"parent\": v})", "not a scope"},
		"bad type kind":   {`type_ref("pointer", "int")`, "unknown type kind"},
		"bad type handle": {`declare({"kind": "typedef", "name": ["t"], "type": 4})`, "type handle"},
		"bad anchor kind": {`anchor({"kind": "use", "name": ["x"]})`, "unknown kind"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := runBuilder(t, tc.script)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}
