package frontend

import (
	"context"
	"fmt"
	"strings"

	"fortio.org/safecast"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/docgraph/internal/qname"
	"github.com/jward/docgraph/internal/xref"
)

func parseTree(ctx context.Context, lang *sitter.Language, src []byte) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	return tree, nil
}

func nodeText(node *sitter.Node, src []byte) string {
	if node == nil {
		return ""
	}
	return node.Content(src)
}

// lineOf returns the 1-based line a node starts on.
func lineOf(node *sitter.Node) int {
	row, err := safecast.Conv[int](node.StartPoint().Row)
	if err != nil {
		return 0
	}
	return row + 1
}

func columnOf(node *sitter.Node) int {
	col, err := safecast.Conv[int](node.StartPoint().Column)
	if err != nil {
		return -1
	}
	return col
}

// namedChildren returns the named children of node in order.
func namedChildren(node *sitter.Node) []*sitter.Node {
	n := int(node.NamedChildCount())
	out := make([]*sitter.Node, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, node.NamedChild(i))
	}
	return out
}

// children returns all children of node, anonymous tokens included.
func children(node *sitter.Node) []*sitter.Node {
	n := int(node.ChildCount())
	out := make([]*sitter.Node, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, node.Child(i))
	}
	return out
}

func childOfType(node *sitter.Node, types ...string) *sitter.Node {
	for _, c := range namedChildren(node) {
		for _, t := range types {
			if c.Type() == t {
				return c
			}
		}
	}
	return nil
}

// anchorSink collects reference anchors for one file.
type anchorSink struct {
	src     []byte
	anchors []xref.Anchor
}

func (s *anchorSink) add(node *sitter.Node, name, from qname.Name, local bool, kind xref.Kind) {
	if node == nil || len(name) == 0 {
		return
	}
	text := nodeText(node, s.src)
	if text == "" || strings.Contains(text, "\n") {
		return
	}
	col := columnOf(node)
	if col < 0 {
		return
	}
	s.anchors = append(s.anchors, xref.Anchor{
		Line:   lineOf(node),
		Column: col,
		Text:   text,
		Name:   name,
		From:   from,
		Local:  local,
		Kind:   kind,
	})
}

// collapse squeezes runs of whitespace into single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
