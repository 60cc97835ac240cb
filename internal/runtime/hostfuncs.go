package runtime

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"fortio.org/safecast"
	"github.com/risor-io/risor/object"
	sitter "github.com/smacker/go-tree-sitter"
)

// parsedTree is a syntax tree produced by parse_src together with the
// bytes and grammar it was parsed from.
type parsedTree struct {
	tree    *sitter.Tree
	src     []byte
	grammar *sitter.Language
}

// treeSet holds every tree one evaluation parsed. go-tree-sitter nodes
// cannot reach their tree, so node arguments are resolved by walking up
// to the root node, which the tree caches and hands out as one pointer.
type treeSet struct {
	mu    sync.Mutex
	roots map[*sitter.Node]*parsedTree
}

func newTreeSet() *treeSet {
	return &treeSet{roots: make(map[*sitter.Node]*parsedTree)}
}

func (ts *treeSet) add(t *parsedTree) {
	ts.mu.Lock()
	ts.roots[t.tree.RootNode()] = t
	ts.mu.Unlock()
}

// owner returns the parsed tree node belongs to.
func (ts *treeSet) owner(node *sitter.Node) (*parsedTree, bool) {
	root := node
	for p := root.Parent(); p != nil; p = root.Parent() {
		root = p
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()
	t, ok := ts.roots[root]
	return t, ok
}

// release closes every tree. Nodes handed to the script are invalid
// afterwards.
func (ts *treeSet) release() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	for root, t := range ts.roots {
		t.tree.Close()
		delete(ts.roots, root)
	}
}

// Argument decoding shared by the host functions. Each returns a Risor
// error object naming the function on mismatch.

func stringArg(fn, what string, obj object.Object) (string, *object.Error) {
	s, ok := obj.(*object.String)
	if !ok {
		return "", object.Errorf("%s: %s must be a string, got %s", fn, what, obj.Type())
	}
	return s.Value(), nil
}

func nodeArg(fn string, obj object.Object) (*sitter.Node, *object.Error) {
	p, ok := obj.(*object.Proxy)
	if !ok {
		return nil, object.Errorf("%s: expected a node, got %s", fn, obj.Type())
	}
	n, ok := p.Interface().(*sitter.Node)
	if !ok || n == nil {
		return nil, object.Errorf("%s: expected a node, got %T", fn, p.Interface())
	}
	return n, nil
}

func (ts *treeSet) ownedNodeArg(fn string, obj object.Object) (*sitter.Node, *parsedTree, *object.Error) {
	n, errObj := nodeArg(fn, obj)
	if errObj != nil {
		return nil, nil, errObj
	}
	t, ok := ts.owner(n)
	if !ok {
		return nil, nil, object.Errorf("%s: node does not belong to a tree parsed by this script", fn)
	}
	return n, t, nil
}

func proxyNode(fn string, n *sitter.Node) object.Object {
	if n == nil {
		return object.Nil
	}
	p, err := object.NewProxy(n)
	if err != nil {
		return object.Errorf("%s: %v", fn, err)
	}
	return p
}

// parse_src(source, grammar) parses source with one of Grammars and
// returns the tree.
func (ts *treeSet) parseSrc() *object.Builtin {
	return object.NewBuiltin("parse_src", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("parse_src", 2, len(args))
		}
		src, errObj := stringArg("parse_src", "source", args[0])
		if errObj != nil {
			return errObj
		}
		name, errObj := stringArg("parse_src", "grammar", args[1])
		if errObj != nil {
			return errObj
		}
		grammar, ok := ParserForLanguage(name)
		if !ok {
			return object.Errorf("parse_src: unsupported language %q (have %s)", name, strings.Join(Grammars(), ", "))
		}

		parser := sitter.NewParser()
		defer parser.Close()
		parser.SetLanguage(grammar)
		t := &parsedTree{src: []byte(src), grammar: grammar}
		var err error
		if t.tree, err = parser.ParseCtx(ctx, nil, t.src); err != nil {
			return object.Errorf("parse_src: %v", err)
		}
		ts.add(t)

		p, err := object.NewProxy(t.tree)
		if err != nil {
			return object.Errorf("parse_src: %v", err)
		}
		return p
	})
}

// node_text(node) returns the source text a node spans.
func (ts *treeSet) nodeText() *object.Builtin {
	return object.NewBuiltin("node_text", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("node_text", 1, len(args))
		}
		n, t, errObj := ts.ownedNodeArg("node_text", args[0])
		if errObj != nil {
			return errObj
		}
		return object.NewString(n.Content(t.src))
	})
}

// node_child(node, field) returns the child in a grammar field, or nil.
func nodeChild() *object.Builtin {
	return object.NewBuiltin("node_child", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("node_child", 2, len(args))
		}
		n, errObj := nodeArg("node_child", args[0])
		if errObj != nil {
			return errObj
		}
		field, errObj := stringArg("node_child", "field", args[1])
		if errObj != nil {
			return errObj
		}
		return proxyNode("node_child", n.ChildByFieldName(field))
	})
}

// node_pos(node) returns {line, column, end_line}: lines count from 1 and
// the column from 0, the way declare and anchor expect them.
func nodePos() *object.Builtin {
	return object.NewBuiltin("node_pos", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("node_pos", 1, len(args))
		}
		n, errObj := nodeArg("node_pos", args[0])
		if errObj != nil {
			return errObj
		}
		start, end := n.StartPoint(), n.EndPoint()
		line, err := safecast.Conv[int64](start.Row)
		if err != nil {
			return object.Errorf("node_pos: %v", err)
		}
		col, err := safecast.Conv[int64](start.Column)
		if err != nil {
			return object.Errorf("node_pos: %v", err)
		}
		endLine, err := safecast.Conv[int64](end.Row)
		if err != nil {
			return object.Errorf("node_pos: %v", err)
		}
		return object.NewMap(map[string]object.Object{
			"line":     object.NewInt(line + 1),
			"column":   object.NewInt(col),
			"end_line": object.NewInt(endLine + 1),
		})
	})
}

// node_comments(node) returns the comments directly preceding a node,
// nearest last. A blank line ends the run.
func (ts *treeSet) nodeComments() *object.Builtin {
	return object.NewBuiltin("node_comments", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("node_comments", 1, len(args))
		}
		n, t, errObj := ts.ownedNodeArg("node_comments", args[0])
		if errObj != nil {
			return errObj
		}
		var found []object.Object
		next := n.StartPoint().Row
		for prev := n.PrevSibling(); prev != nil && prev.Type() == "comment"; prev = prev.PrevSibling() {
			if next-prev.EndPoint().Row > 1 {
				break
			}
			found = append(found, object.NewString(prev.Content(t.src)))
			next = prev.StartPoint().Row
		}
		for i, j := 0, len(found)-1; i < j; i, j = i+1, j-1 {
			found[i], found[j] = found[j], found[i]
		}
		if found == nil {
			found = []object.Object{}
		}
		return object.NewList(found)
	})
}

// query(pattern, node) runs a tree-sitter query under node. Each match is
// a map from capture name to node.
func (ts *treeSet) query() *object.Builtin {
	return object.NewBuiltin("query", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("query", 2, len(args))
		}
		pattern, errObj := stringArg("query", "pattern", args[0])
		if errObj != nil {
			return errObj
		}
		n, t, errObj := ts.ownedNodeArg("query", args[1])
		if errObj != nil {
			return errObj
		}
		q, err := sitter.NewQuery([]byte(pattern), t.grammar)
		if err != nil {
			return object.Errorf("query: invalid pattern: %v", err)
		}
		defer q.Close()

		cursor := sitter.NewQueryCursor()
		defer cursor.Close()
		cursor.Exec(q, n)

		matches := []object.Object{}
		for {
			m, ok := cursor.NextMatch()
			if !ok {
				break
			}
			m = cursor.FilterPredicates(m, t.src)
			captures := make(map[string]object.Object, len(m.Captures))
			for _, c := range m.Captures {
				captures[q.CaptureNameForId(c.Index)] = proxyNode("query", c.Node)
			}
			matches = append(matches, object.NewMap(captures))
		}
		return object.NewList(matches)
	})
}

// scriptLog backs the log global.
type scriptLog struct {
	l *slog.Logger
}

func (s *scriptLog) Debug(msg string) { s.l.Debug(msg) }
func (s *scriptLog) Info(msg string)  { s.l.Info(msg) }
func (s *scriptLog) Warn(msg string)  { s.l.Warn(msg) }
func (s *scriptLog) Error(msg string) { s.l.Error(msg) }
