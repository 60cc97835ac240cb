package frontend

import (
	"context"
	"fmt"
	"path"
	"slices"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"

	"github.com/jward/docgraph/internal/asg"
	"github.com/jward/docgraph/internal/ir"
	"github.com/jward/docgraph/internal/qname"
	"github.com/jward/docgraph/internal/xref"
)

// anonymousNamespace names the segment of an unnamed namespace.
const anonymousNamespace = "{anonymous}"

type cxxFrontend struct {
	lang    qname.Language
	grammar func() *sitter.Language
}

// NewC returns the tree-sitter front end for C.
func NewC() Frontend { return &cxxFrontend{lang: qname.LangC, grammar: c.GetLanguage} }

// NewCxx returns the tree-sitter front end for C++.
func NewCxx() Frontend { return &cxxFrontend{lang: qname.LangCxx, grammar: cpp.GetLanguage} }

func (f *cxxFrontend) Language() qname.Language { return f.lang }

func (f *cxxFrontend) Parse(ctx context.Context, src Source) (*Unit, error) {
	tree, err := parseTree(ctx, f.grammar(), src.Content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src.Path, err)
	}
	defer tree.Close()

	r := ir.New()
	file := r.AddFile(&ir.SourceFile{Name: src.Path, AbsName: src.AbsPath, Language: f.lang, Primary: true})
	w := &cxxWalker{lang: f.lang, src: src.Content, file: file, sink: &anchorSink{src: src.Content}}
	for _, d := range w.members(tree.RootNode(), nil, asg.Default, false) {
		r.Declare(file, d)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w.calls(r)
	sortAnchors(w.sink.anchors)
	return &Unit{IR: r, Anchors: w.sink.anchors}, nil
}

// declCtx is the state a declaration is built in.
type declCtx struct {
	scope    qname.Name
	access   asg.Accessibility
	inClass  bool
	comments []string
	tmpl     *asg.Template
	name     string // name given to an anonymous tag by a typedef
}

type body struct {
	node *sitter.Node
	from qname.Name
}

type cxxWalker struct {
	lang    qname.Language
	src     []byte
	file    *ir.SourceFile
	sink    *anchorSink
	tparams []string
	bodies  []body
}

func (w *cxxWalker) text(n *sitter.Node) string { return nodeText(n, w.src) }

func (w *cxxWalker) base(n *sitter.Node, dc declCtx, name qname.Name, label string) asg.DeclBase {
	return asg.DeclBase{
		File:     w.file.Name,
		Line:     lineOf(n),
		Language: w.lang,
		Label:    label,
		Name:     name,
		Access:   dc.access,
		Comments: dc.comments,
	}
}

// members builds the declarations found directly in parent.
func (w *cxxWalker) members(parent *sitter.Node, scope qname.Name, access asg.Accessibility, inClass bool) []asg.Decl {
	var out []asg.Decl
	var comments []string
	for _, n := range namedChildren(parent) {
		switch n.Type() {
		case "comment":
			comments = append(comments, w.text(n))
			continue
		case "access_specifier":
			if inClass {
				access = asg.ParseAccessibility(strings.TrimSpace(strings.TrimSuffix(w.text(n), ":")))
			}
		case "preproc_include":
			w.include(n)
		default:
			dc := declCtx{scope: scope, access: access, inClass: inClass, comments: comments}
			out = append(out, w.declare(n, dc)...)
		}
		comments = nil
	}
	return out
}

func (w *cxxWalker) declare(n *sitter.Node, dc declCtx) []asg.Decl {
	switch n.Type() {
	case "namespace_definition":
		return w.namespace(n, dc)
	case "class_specifier", "struct_specifier", "union_specifier":
		if d := w.class(n, dc); d != nil {
			return []asg.Decl{d}
		}
	case "enum_specifier":
		if d := w.enum(n, dc); d != nil {
			return []asg.Decl{d}
		}
	case "function_definition":
		return w.functionDef(n, dc)
	case "declaration", "field_declaration":
		return w.declaration(n, dc)
	case "type_definition":
		return w.typedef(n, dc)
	case "alias_declaration":
		return w.alias(n, dc)
	case "template_declaration":
		return w.template(n, dc)
	case "linkage_specification":
		body := n.ChildByFieldName("body")
		if body == nil {
			return nil
		}
		if body.Type() == "declaration_list" {
			return w.members(body, dc.scope, dc.access, false)
		}
		return w.declare(body, dc)
	case "preproc_ifdef", "preproc_if", "preproc_else", "preproc_elif":
		return w.members(n, dc.scope, dc.access, dc.inClass)
	}
	return nil
}

func (w *cxxWalker) namespace(n *sitter.Node, dc declCtx) []asg.Decl {
	body := n.ChildByFieldName("body")
	if body == nil {
		return nil
	}
	segs := []string{anonymousNamespace}
	nameNode := n.ChildByFieldName("name")
	if nameNode != nil {
		segs = strings.Split(collapse(w.text(nameNode)), "::")
	}

	scope := dc.scope
	var outer, inner *asg.Module
	for i, s := range segs {
		scope = scope.Append(strings.TrimSpace(s))
		mdc := declCtx{scope: dc.scope}
		if i == 0 {
			mdc = dc
		}
		m := &asg.Module{DeclBase: w.base(n, mdc, scope, "namespace")}
		if inner != nil {
			inner.Declarations = append(inner.Declarations, m)
		} else {
			outer = m
		}
		inner = m
	}
	if nameNode != nil && len(segs) == 1 {
		w.sink.add(nameNode, scope, dc.scope, false, xref.Definition)
	}
	inner.Declarations = w.members(body, scope, asg.Default, false)
	return []asg.Decl{outer}
}

func isTag(n *sitter.Node) bool {
	switch n.Type() {
	case "class_specifier", "struct_specifier", "union_specifier", "enum_specifier":
		return true
	}
	return false
}

func hasBody(n *sitter.Node) bool {
	return n != nil && isTag(n) && n.ChildByFieldName("body") != nil
}

// tagName returns the name of a tag specifier, falling back to a name
// given by an enclosing typedef.
func (w *cxxWalker) tagName(n *sitter.Node, dc declCtx) (qname.Name, *sitter.Node) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		if dc.name == "" {
			return nil, nil
		}
		return dc.scope.Append(dc.name), nil
	}
	return dc.scope.Append(w.nameSegments(nameNode)...), nameNode
}

func (w *cxxWalker) class(n *sitter.Node, dc declCtx) asg.Decl {
	label := strings.TrimSuffix(n.Type(), "_specifier")
	name, nameNode := w.tagName(n, dc)
	if name == nil {
		return nil
	}
	body := n.ChildByFieldName("body")
	if body == nil {
		return &asg.Forward{DeclBase: w.base(n, dc, name, label), Template: dc.tmpl}
	}

	cl := &asg.Class{DeclBase: w.base(n, dc, name, label), Template: dc.tmpl}
	if clause := childOfType(n, "base_class_clause"); clause != nil {
		cl.Parents = w.parents(clause)
	}
	w.sink.add(nameNode, name, dc.scope, false, xref.Definition)

	access := asg.Public
	if label == "class" {
		access = asg.Private
	}
	cl.Declarations = w.members(body, name, access, true)
	return cl
}

func (w *cxxWalker) parents(clause *sitter.Node) []*asg.Inheritance {
	var out []*asg.Inheritance
	var attrs []string
	for _, c := range children(clause) {
		switch c.Type() {
		case "access_specifier", "virtual":
			attrs = append(attrs, w.text(c))
		case "type_identifier", "qualified_identifier", "template_type":
			out = append(out, &asg.Inheritance{Kind: "inherits", Parent: w.typeOf(c), Attributes: attrs})
			attrs = nil
		}
	}
	return out
}

func (w *cxxWalker) enum(n *sitter.Node, dc declCtx) asg.Decl {
	name, nameNode := w.tagName(n, dc)
	if name == nil {
		return nil
	}
	body := n.ChildByFieldName("body")
	if body == nil {
		return &asg.Forward{DeclBase: w.base(n, dc, name, "enum")}
	}

	scoped := false
	for _, c := range children(n) {
		if t := c.Type(); t == "class" || t == "struct" {
			scoped = true
		}
	}
	valueScope := dc.scope
	if scoped {
		valueScope = name
	}

	e := &asg.Enum{DeclBase: w.base(n, dc, name, "enum")}
	w.sink.add(nameNode, name, dc.scope, false, xref.Definition)
	var comments []string
	for _, en := range namedChildren(body) {
		if en.Type() == "comment" {
			comments = append(comments, w.text(en))
			continue
		}
		if en.Type() != "enumerator" {
			continue
		}
		id := en.ChildByFieldName("name")
		if id == nil {
			continue
		}
		edc := declCtx{scope: valueScope, access: dc.access, comments: comments}
		ename := valueScope.Append(w.text(id))
		e.Enumerators = append(e.Enumerators, &asg.Enumerator{
			DeclBase: w.base(en, edc, ename, "enumerator"),
			Value:    collapse(w.text(en.ChildByFieldName("value"))),
		})
		w.sink.add(id, ename, dc.scope, false, xref.Definition)
		comments = nil
	}
	return e
}

func (w *cxxWalker) functionDef(n *sitter.Node, dc declCtx) []asg.Decl {
	ret, mods := w.specifiers(n)
	ret, fd := w.unwrap(ret, n.ChildByFieldName("declarator"))
	if fd == nil || fd.Type() != "function_declarator" {
		return nil
	}
	fn, outOfLine := w.function(n, fd, ret, mods, dc)
	if fn == nil {
		return nil
	}
	if b := n.ChildByFieldName("body"); b != nil {
		w.bodies = append(w.bodies, body{node: b, from: fn.Name})
	}
	if outOfLine {
		return nil
	}
	return []asg.Decl{fn}
}

// function builds a function from its declarator. Definitions of members
// declared elsewhere (qualified declarator names) report outOfLine; their
// declaration already lives in the class.
func (w *cxxWalker) function(n, fd *sitter.Node, ret asg.Type, mods []string, dc declCtx) (fn *asg.Function, outOfLine bool) {
	nameNode := fd.ChildByFieldName("declarator")
	if nameNode == nil {
		return nil, false
	}
	segs := w.nameSegments(nameNode)
	if len(segs) == 0 {
		return nil, false
	}
	outOfLine = len(segs) > 1

	params := w.parameters(fd.ChildByFieldName("parameters"))
	name := dc.scope.Append(segs[:len(segs)-1]...).Append(Signature(segs[len(segs)-1], params))

	var post []string
	for _, c := range children(fd) {
		switch c.Type() {
		case "type_qualifier", "noexcept", "virtual_specifier", "ref_qualifier", "throw_specifier":
			post = append(post, collapse(w.text(c)))
		}
	}
	if v := n.ChildByFieldName("default_value"); v != nil && n.Type() == "field_declaration" {
		post = append(post, "= "+collapse(w.text(v)))
	}

	fn = &asg.Function{
		DeclBase:      w.base(n, dc, name, "function"),
		Premodifiers:  mods,
		ReturnType:    ret,
		Postmodifiers: post,
		RealName:      dc.scope.Append(segs...),
		Parameters:    params,
		Template:      dc.tmpl,
	}
	if !outOfLine {
		w.sink.add(leafName(nameNode), name, dc.scope, false, xref.Definition)
	}
	return fn, outOfLine
}

// leafName returns the identifier node of a possibly qualified name.
func leafName(n *sitter.Node) *sitter.Node {
	for n != nil && n.Type() == "qualified_identifier" {
		inner := n.ChildByFieldName("name")
		if inner == nil {
			break
		}
		n = inner
	}
	return n
}

func (w *cxxWalker) parameters(list *sitter.Node) []*asg.Parameter {
	if list == nil {
		return nil
	}
	var out []*asg.Parameter
	for _, p := range children(list) {
		switch p.Type() {
		case "parameter_declaration", "optional_parameter_declaration":
			out = append(out, w.parameter(p))
		case "variadic_parameter_declaration", "...":
			out = append(out, &asg.Parameter{Type: &asg.Base{Language: w.lang, Name: qname.Name{"..."}}})
		}
	}
	if len(out) == 1 && out[0].Name == "" {
		if b, ok := out[0].Type.(*asg.Base); ok && b.Name.Last() == "void" {
			return nil
		}
	}
	return out
}

func (w *cxxWalker) parameter(p *sitter.Node) *asg.Parameter {
	t, mods := w.specifiers(p)
	t, leaf := w.resolveDeclarator(t, p.ChildByFieldName("declarator"))
	param := &asg.Parameter{Premodifiers: mods, Type: t}
	if leaf != nil {
		param.Name = w.text(leaf)
	}
	if v := p.ChildByFieldName("default_value"); v != nil {
		param.Default = collapse(w.text(v))
	}
	return param
}

// declaratorTypes are the node types a declaration's declarators can have.
var declaratorTypes = map[string]bool{
	"identifier":               true,
	"field_identifier":         true,
	"type_identifier":          true,
	"init_declarator":          true,
	"pointer_declarator":       true,
	"reference_declarator":     true,
	"array_declarator":         true,
	"function_declarator":      true,
	"parenthesized_declarator": true,
	"qualified_identifier":     true,
	"operator_name":            true,
	"destructor_name":          true,
}

func sameNode(a, b *sitter.Node) bool {
	return a != nil && b != nil && a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte()
}

func declarators(n *sitter.Node) []*sitter.Node {
	typeNode := n.ChildByFieldName("type")
	value := n.ChildByFieldName("default_value")
	var out []*sitter.Node
	for _, c := range namedChildren(n) {
		if sameNode(c, typeNode) || sameNode(c, value) {
			continue
		}
		if declaratorTypes[c.Type()] {
			out = append(out, c)
		}
	}
	return out
}

func (w *cxxWalker) declaration(n *sitter.Node, dc declCtx) []asg.Decl {
	var out []asg.Decl
	tn := n.ChildByFieldName("type")
	decls := declarators(n)
	if tn != nil && isTag(tn) && (hasBody(tn) || len(decls) == 0) {
		out = append(out, w.declare(tn, dc)...)
		dc.comments = nil
	}

	t, mods := w.specifiers(n)
	for _, d := range decls {
		vt, leaf := w.resolveDeclarator(t, d)
		if leaf == nil {
			continue
		}
		if leaf.Type() == "function_declarator" {
			if fn, outOfLine := w.function(n, leaf, vt, mods, dc); fn != nil && !outOfLine {
				out = append(out, fn)
			}
			continue
		}
		segs := w.nameSegments(leaf)
		if len(segs) != 1 {
			continue
		}
		name := dc.scope.Append(segs...)
		label := "variable"
		if dc.inClass {
			label = "field"
		}
		if len(mods) > 0 {
			label = mods[0] + " " + label
		}
		value := w.initializer(n, d)
		if isConst(vt) && value != "" {
			out = append(out, &asg.Const{DeclBase: w.base(n, dc, name, "const"), ConstType: vt, Value: value})
		} else {
			out = append(out, &asg.Variable{DeclBase: w.base(n, dc, name, label), VarType: vt, Constructed: hasBody(tn)})
		}
		w.sink.add(leaf, name, dc.scope, false, xref.Definition)
	}
	return out
}

func (w *cxxWalker) initializer(n, d *sitter.Node) string {
	if d.Type() == "init_declarator" {
		if v := d.ChildByFieldName("value"); v != nil {
			return strings.TrimPrefix(collapse(w.text(v)), "= ")
		}
	}
	if v := n.ChildByFieldName("default_value"); v != nil {
		return collapse(w.text(v))
	}
	return ""
}

func isConst(t asg.Type) bool {
	m, ok := t.(*asg.Modifier)
	if !ok || len(m.Postmodifiers) > 0 {
		return false
	}
	return slices.Contains(m.Premodifiers, "const") || slices.Contains(m.Premodifiers, "constexpr")
}

func (w *cxxWalker) typedef(n *sitter.Node, dc declCtx) []asg.Decl {
	var out []asg.Decl
	tn := n.ChildByFieldName("type")
	decls := declarators(n)
	t, _ := w.specifiers(n)

	var tag string
	if tn != nil && isTag(tn) {
		if nn := tn.ChildByFieldName("name"); nn != nil {
			tag = w.text(nn)
		} else if len(decls) > 0 {
			if _, leaf := w.resolveDeclarator(nil, decls[0]); leaf != nil {
				tag = w.text(leaf)
				t = &asg.Unknown{Language: w.lang, Name: qname.Name{tag}}
			}
		}
		if hasBody(tn) {
			tdc := dc
			tdc.name = tag
			out = append(out, w.declare(tn, tdc)...)
			dc.comments = nil
		}
	}

	for _, d := range decls {
		alias, leaf := w.resolveDeclarator(t, d)
		if leaf == nil {
			continue
		}
		id := w.text(leaf)
		// A typedef sharing its tag's name would collide with the tag
		// itself once linked.
		if id == tag {
			continue
		}
		name := dc.scope.Append(id)
		out = append(out, &asg.Typedef{DeclBase: w.base(n, dc, name, "typedef"), Alias: alias, Constructed: hasBody(tn)})
		w.sink.add(leaf, name, dc.scope, false, xref.Definition)
	}
	return out
}

func (w *cxxWalker) alias(n *sitter.Node, dc declCtx) []asg.Decl {
	nameNode := n.ChildByFieldName("name")
	tn := n.ChildByFieldName("type")
	if nameNode == nil || tn == nil {
		return nil
	}
	name := dc.scope.Append(w.text(nameNode))
	w.sink.add(nameNode, name, dc.scope, false, xref.Definition)
	return []asg.Decl{&asg.Typedef{DeclBase: w.base(n, dc, name, "using"), Alias: w.typeOf(tn)}}
}

func (w *cxxWalker) template(n *sitter.Node, dc declCtx) []asg.Decl {
	list := n.ChildByFieldName("parameters")
	tmpl := &asg.Template{Language: w.lang, Parameters: w.templateParams(list)}

	mark := len(w.tparams)
	for _, p := range tmpl.Parameters {
		if b, ok := p.Type.(*asg.Base); ok && p.Name != "" && (b.Name.Last() == "typename" || b.Name.Last() == "class") {
			w.tparams = append(w.tparams, p.Name)
		}
	}
	defer func() { w.tparams = w.tparams[:mark] }()

	tdc := dc
	tdc.tmpl = tmpl
	var out []asg.Decl
	for _, c := range namedChildren(n) {
		if sameNode(c, list) || c.Type() == "comment" {
			continue
		}
		out = append(out, w.declare(c, tdc)...)
	}
	return out
}

func (w *cxxWalker) templateParams(list *sitter.Node) []*asg.Parameter {
	if list == nil {
		return nil
	}
	var out []*asg.Parameter
	for _, p := range namedChildren(list) {
		switch p.Type() {
		case "type_parameter_declaration", "variadic_type_parameter_declaration", "optional_type_parameter_declaration":
			kw := "typename"
			if first := p.Child(0); first != nil && w.text(first) == "class" {
				kw = "class"
			}
			param := &asg.Parameter{Type: &asg.Base{Language: w.lang, Name: qname.Name{kw}}}
			if id := p.ChildByFieldName("name"); id != nil {
				param.Name = w.text(id)
			} else if id := childOfType(p, "type_identifier"); id != nil {
				param.Name = w.text(id)
			}
			if def := p.ChildByFieldName("default_type"); def != nil {
				param.Default = collapse(w.text(def))
			}
			out = append(out, param)
		case "parameter_declaration", "optional_parameter_declaration":
			out = append(out, w.parameter(p))
		case "template_template_parameter_declaration":
			param := &asg.Parameter{Type: &asg.Base{Language: w.lang, Name: qname.Name{"template"}}}
			if id := childOfType(p, "type_parameter_declaration"); id != nil {
				if tid := childOfType(id, "type_identifier"); tid != nil {
					param.Name = w.text(tid)
				}
			}
			out = append(out, param)
		}
	}
	return out
}

func (w *cxxWalker) include(n *sitter.Node) {
	p := n.ChildByFieldName("path")
	if p == nil {
		return
	}
	raw := collapse(w.text(p))
	inc := &ir.Include{Target: strings.Trim(raw, "\"<>")}
	switch p.Type() {
	case "string_literal":
		inc.Target = path.Join(path.Dir(w.file.Name), inc.Target)
	case "system_lib_string":
	default:
		inc.IsMacro = true
		inc.Target = raw
	}
	w.file.Includes = append(w.file.Includes, inc)
}

// specifiers returns the declared type of n, with leading qualifiers
// applied, and its storage and function specifiers.
func (w *cxxWalker) specifiers(n *sitter.Node) (asg.Type, []string) {
	var mods, quals []string
	for _, c := range children(n) {
		switch c.Type() {
		case "storage_class_specifier", "virtual", "explicit_function_specifier":
			mods = append(mods, collapse(w.text(c)))
		case "type_qualifier":
			quals = append(quals, collapse(w.text(c)))
		}
	}
	tn := n.ChildByFieldName("type")
	if tn == nil {
		return nil, mods
	}
	t := w.typeOf(tn)
	if len(quals) > 0 {
		t = &asg.Modifier{Language: w.lang, Alias: t, Premodifiers: quals}
	}
	return t, mods
}

// unwrap applies declarator modifiers to t until it reaches a name or a
// function declarator.
func (w *cxxWalker) unwrap(t asg.Type, d *sitter.Node) (asg.Type, *sitter.Node) {
	for d != nil {
		switch d.Type() {
		case "pointer_declarator", "abstract_pointer_declarator":
			post := []string{"*"}
			for _, q := range namedChildren(d) {
				if q.Type() == "type_qualifier" {
					post = append(post, " "+w.text(q))
				}
			}
			t = w.modify(t, post)
			d = d.ChildByFieldName("declarator")
		case "reference_declarator", "abstract_reference_declarator":
			op := "&"
			if first := d.Child(0); first != nil && w.text(first) == "&&" {
				op = "&&"
			}
			t = w.modify(t, []string{op})
			d = firstNamed(d)
		case "array_declarator", "abstract_array_declarator":
			size := collapse(w.text(d.ChildByFieldName("size")))
			if arr, ok := t.(*asg.Array); ok {
				t = &asg.Array{Language: w.lang, Alias: arr.Alias, Sizes: append([]string{size}, arr.Sizes...)}
			} else {
				t = &asg.Array{Language: w.lang, Alias: t, Sizes: []string{size}}
			}
			d = d.ChildByFieldName("declarator")
		case "abstract_function_declarator":
			t = w.functionType(t, d)
			d = d.ChildByFieldName("declarator")
		case "init_declarator":
			d = d.ChildByFieldName("declarator")
		case "parenthesized_declarator", "abstract_parenthesized_declarator":
			d = firstNamed(d)
		default:
			return t, d
		}
	}
	return t, nil
}

// resolveDeclarator is unwrap for objects: function declarators around a
// parenthesized declarator become function pointer types.
func (w *cxxWalker) resolveDeclarator(t asg.Type, d *sitter.Node) (asg.Type, *sitter.Node) {
	for {
		t, d = w.unwrap(t, d)
		if d == nil || d.Type() != "function_declarator" {
			return t, d
		}
		inner := d.ChildByFieldName("declarator")
		if inner == nil || inner.Type() != "parenthesized_declarator" {
			return t, d
		}
		t = w.functionType(t, d)
		d = inner
	}
}

func (w *cxxWalker) functionType(ret asg.Type, d *sitter.Node) asg.Type {
	ft := &asg.FunctionType{Language: w.lang, Return: ret}
	for _, p := range w.parameters(d.ChildByFieldName("parameters")) {
		ft.Parameters = append(ft.Parameters, p.Type)
	}
	return ft
}

func (w *cxxWalker) modify(t asg.Type, post []string) asg.Type {
	if ft, ok := t.(*asg.FunctionType); ok {
		out := *ft
		out.Premodifiers = append(slices.Clone(ft.Premodifiers), post...)
		return &out
	}
	if m, ok := t.(*asg.Modifier); ok {
		return &asg.Modifier{
			Language:      w.lang,
			Alias:         m.Alias,
			Premodifiers:  m.Premodifiers,
			Postmodifiers: append(slices.Clone(m.Postmodifiers), post...),
		}
	}
	return &asg.Modifier{Language: w.lang, Alias: t, Postmodifiers: post}
}

func firstNamed(n *sitter.Node) *sitter.Node {
	if n.NamedChildCount() == 0 {
		return nil
	}
	return n.NamedChild(0)
}

// nameSegments splits a possibly qualified declarator name.
func (w *cxxWalker) nameSegments(n *sitter.Node) []string {
	if n == nil {
		return nil
	}
	if n.Type() == "qualified_identifier" {
		var segs []string
		if scope := n.ChildByFieldName("scope"); scope != nil {
			segs = append(segs, w.nameSegments(scope)...)
		}
		return append(segs, w.nameSegments(n.ChildByFieldName("name"))...)
	}
	s := collapse(w.text(n))
	if s == "" {
		return nil
	}
	return []string{s}
}

func (w *cxxWalker) isTemplateParam(name string) bool {
	return slices.Contains(w.tparams, name)
}

// typeOf builds a type reference from a type specifier node.
func (w *cxxWalker) typeOf(n *sitter.Node) asg.Type {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "type_identifier":
		name := w.text(n)
		if w.isTemplateParam(name) {
			return &asg.Base{Language: w.lang, Name: qname.Name{name}}
		}
		return &asg.Unknown{Language: w.lang, Name: qname.Name{name}}
	case "qualified_identifier":
		return w.qualified(nil, n)
	case "template_type":
		return w.templateType(nil, n)
	case "class_specifier", "struct_specifier", "union_specifier", "enum_specifier":
		if nn := n.ChildByFieldName("name"); nn != nil {
			return w.typeOf(nn)
		}
		return &asg.Base{Language: w.lang, Name: qname.Name{strings.TrimSuffix(n.Type(), "_specifier")}}
	case "type_descriptor":
		quals := []string{}
		for _, q := range namedChildren(n) {
			if q.Type() == "type_qualifier" {
				quals = append(quals, w.text(q))
			}
		}
		t := w.typeOf(n.ChildByFieldName("type"))
		if len(quals) > 0 {
			t = &asg.Modifier{Language: w.lang, Alias: t, Premodifiers: quals}
		}
		t, _ = w.resolveDeclarator(t, n.ChildByFieldName("declarator"))
		return t
	}
	return &asg.Base{Language: w.lang, Name: qname.Name{collapse(w.text(n))}}
}

func (w *cxxWalker) qualified(prefix qname.Name, n *sitter.Node) asg.Type {
	if scope := n.ChildByFieldName("scope"); scope != nil {
		prefix = prefix.Append(collapse(w.text(scope)))
	}
	inner := n.ChildByFieldName("name")
	if inner == nil {
		return &asg.Unknown{Language: w.lang, Name: prefix}
	}
	switch inner.Type() {
	case "qualified_identifier":
		return w.qualified(prefix, inner)
	case "template_type":
		return w.templateType(prefix, inner)
	}
	return &asg.Unknown{Language: w.lang, Name: prefix.Append(w.text(inner))}
}

func (w *cxxWalker) templateType(prefix qname.Name, n *sitter.Node) asg.Type {
	p := &asg.Parametrized{
		Language: w.lang,
		Template: &asg.Unknown{Language: w.lang, Name: prefix.Append(w.text(n.ChildByFieldName("name")))},
	}
	if args := n.ChildByFieldName("arguments"); args != nil {
		for _, a := range namedChildren(args) {
			if a.Type() == "type_descriptor" {
				p.Parameters = append(p.Parameters, w.typeOf(a))
			} else {
				p.Parameters = append(p.Parameters, &asg.Base{Language: w.lang, Name: qname.Name{collapse(w.text(a))}})
			}
		}
	}
	return p
}

// calls records call anchors for every function body once all
// declarations of the file are known, resolving callees by their bare
// name within the file.
func (w *cxxWalker) calls(r *ir.IR) {
	byName := make(map[string][]*asg.Function)
	asg.Walk(r.Declarations, func(d asg.Decl) bool {
		if fn, ok := d.(*asg.Function); ok {
			byName[fn.RealName.Last()] = append(byName[fn.RealName.Last()], fn)
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
			if n.Type() != "call_expression" {
				continue
			}
			target, written := w.callee(n.ChildByFieldName("function"))
			if target == nil {
				continue
			}
			nargs := 0
			if args := n.ChildByFieldName("arguments"); args != nil {
				nargs = int(args.NamedChildCount())
			}
			w.sink.add(target, pickCallee(byName[written.Last()], written, nargs), b.from, false, xref.Call)
		}
	}
}

// callee returns the node naming the called function and the name as
// written.
func (w *cxxWalker) callee(fn *sitter.Node) (*sitter.Node, qname.Name) {
	if fn == nil {
		return nil, nil
	}
	switch fn.Type() {
	case "identifier":
		return fn, qname.Name{w.text(fn)}
	case "field_expression":
		field := fn.ChildByFieldName("field")
		if field == nil {
			return nil, nil
		}
		return field, qname.Name{w.text(field)}
	case "qualified_identifier":
		return fn, qname.Name(w.nameSegments(fn))
	case "template_function":
		name := fn.ChildByFieldName("name")
		if name == nil {
			return nil, nil
		}
		return name, qname.Name{w.text(name)}
	}
	return nil, nil
}

// pickCallee chooses among same-named functions of the file: one whose
// real name ends with the written name and whose arity matches wins.
func pickCallee(cands []*asg.Function, written qname.Name, nargs int) qname.Name {
	var match *asg.Function
	for _, fn := range cands {
		rn := fn.RealName
		if len(rn) < len(written) || !rn[len(rn)-len(written):].Equal(written) {
			continue
		}
		if len(fn.Parameters) == nargs {
			return fn.Name
		}
		if match == nil {
			match = fn
		}
	}
	if match != nil {
		return match.Name
	}
	return written
}

func sortAnchors(as []xref.Anchor) {
	slices.SortStableFunc(as, func(a, b xref.Anchor) int {
		if a.Line != b.Line {
			return a.Line - b.Line
		}
		return a.Column - b.Column
	})
}
