package frontend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/docgraph/internal/asg"
	"github.com/jward/docgraph/internal/qname"
	"github.com/jward/docgraph/internal/xref"
)

const shapesSource = `"""Shapes."""
import os
from . import util
from ..core.base import Base

MAX_SIDES = 12
counter = 0


# Scales v.
def scale(v):
    return v * v


class Square(Base):
    """A square."""

    sides = 4

    def __init__(self, size: float = 1.0):
        self.size = size

    def area(self) -> float:
        return scale(self.size)

    def _hidden(self):
        pass
`

func parsePython(t *testing.T, file, src string) *Unit {
	t.Helper()
	u, err := NewPython().Parse(context.Background(), Source{Path: file, Content: []byte(src)})
	require.NoError(t, err)
	return u
}

func TestModuleName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, qname.New("pkg", "sub", "mod"), ModuleName("pkg/sub/mod.py"))
	assert.Equal(t, qname.New("pkg"), ModuleName("pkg/__init__.py"))
	assert.Equal(t, qname.New("setup"), ModuleName("setup.py"))
	assert.Equal(t, qname.New("__init__"), ModuleName("__init__.py"))
}

func TestPythonModules(t *testing.T) {
	t.Parallel()
	u := parsePython(t, "pkg/geo/shapes.py", shapesSource)

	require.Len(t, u.IR.Declarations, 1)
	pkg := lookup[*asg.Module](t, u.IR, "pkg")
	assert.Equal(t, "package", pkg.Label)
	mod := lookup[*asg.Module](t, u.IR, "pkg", "geo", "shapes")
	assert.Equal(t, "module", mod.Label)
	assert.Equal(t, []string{`"""Shapes."""`}, mod.Comments)

	f, ok := u.IR.File("pkg/geo/shapes.py")
	require.True(t, ok)
	var targets []string
	for _, inc := range f.Includes {
		targets = append(targets, inc.Target)
	}
	assert.Equal(t, []string{"os.py", "pkg/geo/__init__.py", "pkg/core/base.py"}, targets)
}

func TestPythonDeclarations(t *testing.T) {
	t.Parallel()
	u := parsePython(t, "pkg/geo/shapes.py", shapesSource)
	scope := []string{"pkg", "geo", "shapes"}
	at := func(segs ...string) []string { return append(append([]string{}, scope...), segs...) }

	c := lookup[*asg.Const](t, u.IR, at("MAX_SIDES")...)
	assert.Equal(t, "12", c.Value)
	lookup[*asg.Variable](t, u.IR, at("counter")...)

	sq := lookup[*asg.Class](t, u.IR, at("Square")...)
	assert.Equal(t, []string{`"""A square."""`}, sq.Comments)
	require.Len(t, sq.Parents, 1)
	assert.Equal(t, qname.New("Base"), asg.NameOf(sq.Parents[0].Parent))

	sides := lookup[*asg.Variable](t, u.IR, at("Square", "sides")...)
	assert.Equal(t, "attribute", sides.Label)

	init := lookup[*asg.Function](t, u.IR, at("Square", "__init__")...)
	assert.Equal(t, asg.Public, init.Access)
	require.Len(t, init.Parameters, 2)
	assert.Equal(t, "size", init.Parameters[1].Name)
	assert.Equal(t, "1.0", init.Parameters[1].Default)
	assert.Equal(t, "float", asg.Format(init.Parameters[1].Type))

	area := lookup[*asg.Function](t, u.IR, at("Square", "area")...)
	assert.Equal(t, "method", area.Label)
	assert.Equal(t, "float", asg.Format(area.ReturnType))

	hidden := lookup[*asg.Function](t, u.IR, at("Square", "_hidden")...)
	assert.Equal(t, asg.Protected, hidden.Access)

	scale := lookup[*asg.Function](t, u.IR, at("scale")...)
	assert.Equal(t, []string{"# Scales v."}, scale.Comments)
	assert.Equal(t, "def", scale.Label)
}

func TestPythonCalls(t *testing.T) {
	t.Parallel()
	u := parsePython(t, "pkg/geo/shapes.py", shapesSource)

	var calls []xref.Anchor
	for _, a := range u.Anchors {
		if a.Kind == xref.Call {
			calls = append(calls, a)
		}
	}
	require.Len(t, calls, 1)
	assert.Equal(t, qname.New("pkg", "geo", "shapes", "scale"), calls[0].Name)
	assert.Equal(t, qname.New("pkg", "geo", "shapes", "Square", "area"), calls[0].From)
	assert.Equal(t, 24, calls[0].Line)
}
