package frontend

import (
	"context"
	"fmt"
	"path"
	"strings"
	"unicode"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/jward/docgraph/internal/asg"
	"github.com/jward/docgraph/internal/ir"
	"github.com/jward/docgraph/internal/qname"
	"github.com/jward/docgraph/internal/xref"
)

var pythonBuiltins = map[string]bool{
	"int": true, "float": true, "complex": true, "str": true, "bytes": true,
	"bool": true, "None": true, "object": true, "list": true, "dict": true,
	"set": true, "tuple": true, "type": true,
}

type pythonFrontend struct{}

// NewPython returns the tree-sitter front end for Python.
func NewPython() Frontend { return pythonFrontend{} }

func (pythonFrontend) Language() qname.Language { return qname.LangPython }

func (pythonFrontend) Parse(ctx context.Context, src Source) (*Unit, error) {
	tree, err := parseTree(ctx, python.GetLanguage(), src.Content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src.Path, err)
	}
	defer tree.Close()

	r := ir.New()
	file := r.AddFile(&ir.SourceFile{Name: src.Path, AbsName: src.AbsPath, Language: qname.LangPython, Primary: true})
	w := &pyWalker{src: src.Content, file: file, sink: &anchorSink{src: src.Content}}

	root := tree.RootNode()
	segs := ModuleName(src.Path)
	var outer, inner *asg.Module
	var name qname.Name
	for i, s := range segs {
		name = name.Append(s)
		label := "package"
		if i == len(segs)-1 && path.Base(src.Path) != "__init__.py" {
			label = "module"
		}
		m := &asg.Module{DeclBase: asg.DeclBase{
			File:     file.Name,
			Line:     1,
			Language: qname.LangPython,
			Label:    label,
			Name:     name,
			Access:   asg.Public,
		}}
		if inner != nil {
			inner.Declarations = append(inner.Declarations, m)
		} else {
			outer = m
		}
		inner = m
	}
	inner.Comments = w.docstring(root)
	inner.Declarations = w.block(root, name, false)
	r.Declare(file, outer)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w.calls(r)
	sortAnchors(w.sink.anchors)
	return &Unit{IR: r, Anchors: w.sink.anchors}, nil
}

// ModuleName derives the dotted module name of a Python file from its
// path: "pkg/sub/mod.py" is pkg.sub.mod and "pkg/__init__.py" is pkg.
func ModuleName(file string) qname.Name {
	file = strings.TrimSuffix(path.Clean(file), ".py")
	var segs qname.Name
	for _, s := range strings.Split(file, "/") {
		if s == "" || s == "." || s == ".." {
			continue
		}
		segs = append(segs, s)
	}
	if len(segs) > 1 && segs.Last() == "__init__" {
		segs = segs[:len(segs)-1]
	}
	if len(segs) == 0 {
		return qname.Name{"__main__"}
	}
	return segs
}

func pythonAccess(name string) asg.Accessibility {
	switch {
	case strings.HasPrefix(name, "__") && !strings.HasSuffix(name, "__"):
		return asg.Private
	case strings.HasPrefix(name, "_") && !strings.HasSuffix(name, "__"):
		return asg.Protected
	}
	return asg.Public
}

type pyWalker struct {
	src    []byte
	file   *ir.SourceFile
	sink   *anchorSink
	bodies []body
}

func (w *pyWalker) text(n *sitter.Node) string { return nodeText(n, w.src) }

func (w *pyWalker) base(n *sitter.Node, name qname.Name, label string, comments []string) asg.DeclBase {
	return asg.DeclBase{
		File:     w.file.Name,
		Line:     lineOf(n),
		Language: qname.LangPython,
		Label:    label,
		Name:     name,
		Access:   pythonAccess(name.Last()),
		Comments: comments,
	}
}

// docstring returns the string literal opening a module, class or
// function body.
func (w *pyWalker) docstring(block *sitter.Node) []string {
	if block == nil || block.NamedChildCount() == 0 {
		return nil
	}
	first := block.NamedChild(0)
	if first.Type() != "expression_statement" || first.NamedChildCount() != 1 {
		return nil
	}
	if s := first.NamedChild(0); s.Type() == "string" {
		return []string{w.text(s)}
	}
	return nil
}

func (w *pyWalker) block(n *sitter.Node, scope qname.Name, inClass bool) []asg.Decl {
	var out []asg.Decl
	var comments []string
	for _, c := range namedChildren(n) {
		switch c.Type() {
		case "comment":
			comments = append(comments, w.text(c))
			continue
		case "class_definition":
			out = append(out, w.class(c, scope, comments, nil))
		case "function_definition":
			out = append(out, w.function(c, scope, inClass, comments, nil))
		case "decorated_definition":
			var decorators []string
			for _, d := range namedChildren(c) {
				if d.Type() == "decorator" {
					decorators = append(decorators, collapse(w.text(d)))
				}
			}
			def := c.ChildByFieldName("definition")
			if def == nil {
				break
			}
			switch def.Type() {
			case "class_definition":
				out = append(out, w.class(def, scope, comments, decorators))
			case "function_definition":
				out = append(out, w.function(def, scope, inClass, comments, decorators))
			}
		case "expression_statement":
			out = append(out, w.assignment(c, scope, inClass, comments)...)
		case "import_statement", "import_from_statement":
			w.imports(c)
		}
		comments = nil
	}
	return out
}

func (w *pyWalker) class(n *sitter.Node, scope qname.Name, comments, decorators []string) asg.Decl {
	nameNode := n.ChildByFieldName("name")
	name := scope.Append(w.text(nameNode))
	body := n.ChildByFieldName("body")

	cl := &asg.Class{DeclBase: w.base(n, name, "class", append(comments, w.docstring(body)...))}
	if supers := n.ChildByFieldName("superclasses"); supers != nil {
		for _, s := range namedChildren(supers) {
			switch s.Type() {
			case "identifier", "attribute":
				cl.Parents = append(cl.Parents, &asg.Inheritance{Kind: "inherits", Parent: w.annotation(s)})
			}
		}
	}
	if len(decorators) > 0 {
		cl.Label = strings.Join(decorators, " ") + " class"
	}
	w.sink.add(nameNode, name, scope, false, xref.Definition)
	if body != nil {
		cl.Declarations = w.block(body, name, true)
	}
	return cl
}

func (w *pyWalker) function(n *sitter.Node, scope qname.Name, inClass bool, comments, decorators []string) asg.Decl {
	nameNode := n.ChildByFieldName("name")
	name := scope.Append(w.text(nameNode))
	blk := n.ChildByFieldName("body")

	label := "def"
	if inClass {
		label = "method"
	}
	fn := &asg.Function{
		DeclBase:     w.base(n, name, label, append(comments, w.docstring(blk)...)),
		Premodifiers: decorators,
		RealName:     name,
		Parameters:   w.parameters(n.ChildByFieldName("parameters")),
	}
	if first := n.Child(0); first != nil && first.Type() == "async" {
		fn.Premodifiers = append(fn.Premodifiers, "async")
	}
	if rt := n.ChildByFieldName("return_type"); rt != nil {
		fn.ReturnType = w.annotation(rt)
	}
	w.sink.add(nameNode, name, scope, false, xref.Definition)
	if blk != nil {
		w.bodies = append(w.bodies, body{node: blk, from: name})
	}
	return fn
}

func (w *pyWalker) parameters(list *sitter.Node) []*asg.Parameter {
	if list == nil {
		return nil
	}
	var out []*asg.Parameter
	for _, p := range namedChildren(list) {
		param := &asg.Parameter{}
		switch p.Type() {
		case "identifier", "list_splat_pattern", "dictionary_splat_pattern":
			param.Name = w.text(p)
		case "typed_parameter":
			if id := firstNamed(p); id != nil {
				param.Name = w.text(id)
			}
			param.Type = w.annotation(p.ChildByFieldName("type"))
		case "default_parameter", "typed_default_parameter":
			param.Name = w.text(p.ChildByFieldName("name"))
			param.Type = w.annotation(p.ChildByFieldName("type"))
			param.Default = collapse(w.text(p.ChildByFieldName("value")))
		default:
			continue
		}
		out = append(out, param)
	}
	return out
}

func (w *pyWalker) annotation(n *sitter.Node) asg.Type {
	if n == nil {
		return nil
	}
	text := collapse(w.text(n))
	if pythonBuiltins[text] || strings.ContainsAny(text, "[|'\" ") {
		return &asg.Base{Language: qname.LangPython, Name: qname.Name{text}}
	}
	return &asg.Unknown{Language: qname.LangPython, Name: qname.Parse(text, qname.LangPython)}
}

func isConstantName(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			hasLetter = true
		}
	}
	return hasLetter
}

func (w *pyWalker) assignment(stmt *sitter.Node, scope qname.Name, inClass bool, comments []string) []asg.Decl {
	a := firstNamed(stmt)
	if a == nil || a.Type() != "assignment" {
		return nil
	}
	left := a.ChildByFieldName("left")
	if left == nil {
		return nil
	}
	var ids []*sitter.Node
	switch left.Type() {
	case "identifier":
		ids = []*sitter.Node{left}
	case "pattern_list", "tuple_pattern":
		for _, c := range namedChildren(left) {
			if c.Type() == "identifier" {
				ids = append(ids, c)
			}
		}
	}
	vt := w.annotation(a.ChildByFieldName("type"))
	value := a.ChildByFieldName("right")

	label := "variable"
	if inClass {
		label = "attribute"
	}
	var out []asg.Decl
	for _, id := range ids {
		name := scope.Append(w.text(id))
		if len(ids) == 1 && value != nil && isConstantName(name.Last()) {
			out = append(out, &asg.Const{
				DeclBase:  w.base(stmt, name, "const", comments),
				ConstType: vt,
				Value:     collapse(w.text(value)),
			})
		} else {
			out = append(out, &asg.Variable{DeclBase: w.base(stmt, name, label, comments), VarType: vt})
		}
		w.sink.add(id, name, scope, false, xref.Definition)
	}
	return out
}

func (w *pyWalker) imports(n *sitter.Node) {
	if n.Type() == "import_from_statement" {
		if m := n.ChildByFieldName("module_name"); m != nil {
			w.addImport(w.text(m))
		}
		return
	}
	for _, c := range namedChildren(n) {
		switch c.Type() {
		case "dotted_name":
			w.addImport(w.text(c))
		case "aliased_import":
			w.addImport(w.text(c.ChildByFieldName("name")))
		}
	}
}

// addImport records an import as an include of the file the module would
// live in, relative to the project root.
func (w *pyWalker) addImport(module string) {
	module = collapse(module)
	if module == "" {
		return
	}
	rest := strings.TrimLeft(module, ".")
	dots := len(module) - len(rest)
	var target string
	if dots == 0 {
		target = strings.ReplaceAll(rest, ".", "/") + ".py"
	} else {
		dir := path.Dir(w.file.Name)
		for i := 1; i < dots; i++ {
			dir = path.Dir(dir)
		}
		if rest == "" {
			target = path.Join(dir, "__init__.py")
		} else {
			target = path.Join(dir, strings.ReplaceAll(rest, ".", "/")+".py")
		}
	}
	w.file.Includes = append(w.file.Includes, &ir.Include{Target: target})
}

func (w *pyWalker) calls(r *ir.IR) {
	byName := make(map[string][]*asg.Function)
	asg.Walk(r.Declarations, func(d asg.Decl) bool {
		if fn, ok := d.(*asg.Function); ok {
			byName[fn.Name.Last()] = append(byName[fn.Name.Last()], fn)
		}
		return true
	})

	for _, b := range w.bodies {
		stack := []*sitter.Node{b.node}
		for len(stack) > 0 {
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for i := int(n.NamedChildCount()) - 1; i >= 0; i-- {
				stack = append(stack, n.NamedChild(i))
			}
			if n.Type() != "call" {
				continue
			}
			target := n.ChildByFieldName("function")
			if target != nil && target.Type() == "attribute" {
				target = target.ChildByFieldName("attribute")
			}
			if target == nil || target.Type() != "identifier" {
				continue
			}
			written := qname.Name{w.text(target)}
			nargs := 0
			if args := n.ChildByFieldName("arguments"); args != nil {
				nargs = int(args.NamedChildCount())
			}
			w.sink.add(target, pickCallee(byName[written.Last()], written, nargs), b.from, false, xref.Call)
		}
	}
}
