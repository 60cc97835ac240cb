package runtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/risor-io/risor/object"

	"github.com/jward/docgraph/internal/asg"
	"github.com/jward/docgraph/internal/frontend"
	"github.com/jward/docgraph/internal/ir"
	"github.com/jward/docgraph/internal/qname"
	"github.com/jward/docgraph/internal/xref"
)

// scriptBuiltins are the type names a string type argument resolves to a
// builtin type instead of an unresolved reference.
var scriptBuiltins = map[string]bool{
	"void": true, "boolean": true, "bool": true, "char": true, "wchar": true,
	"octet": true, "short": true, "int": true, "long": true, "float": true,
	"double": true, "string": true, "wstring": true, "any": true, "Object": true,
}

// builder collects the IR a front-end script declares through the
// declare, include, type_ref and anchor host functions. Risor cannot
// construct Go struct pointers, so these accept maps and primitive values
// and build the declarations Go-side. declare and type_ref return integer
// handles; declaration handles are passed back as a "parent", type handles
// wherever a type is expected.
type builder struct {
	lang    qname.Language
	r       *ir.IR
	file    *ir.SourceFile
	decls   []asg.Decl
	top     []asg.Decl
	types   []asg.Type
	anchors []xref.Anchor
}

func newBuilder(lang qname.Language, src frontend.Source) *builder {
	r := ir.New()
	return &builder{
		lang: lang,
		r:    r,
		file: r.AddFile(&ir.SourceFile{Name: src.Path, AbsName: src.AbsPath, Language: lang, Primary: true}),
	}
}

func (b *builder) globals(src frontend.Source) map[string]any {
	return map[string]any{
		"file_path": src.Path,
		"abs_path":  src.AbsPath,
		"language":  string(b.lang),
		"source":    string(src.Content),
		"declare":   b.declareFn(),
		"include":   b.includeFn(),
		"type_ref":  b.typeRefFn(),
		"anchor":    b.anchorFn(),
	}
}

// unit declares the collected top-level declarations and returns the
// finished unit.
func (b *builder) unit() *frontend.Unit {
	for _, d := range b.top {
		b.r.Declare(b.file, d)
	}
	return &frontend.Unit{IR: b.r, Anchors: b.anchors}
}

// declare(attrs) → handle
//
// attrs keys: kind, name (string or list), line, label, access, comments,
// parent (handle), type, value, return_type, parameters, premodifiers,
// postmodifiers, raises, parents, enumerators.
func (b *builder) declareFn() *object.Builtin {
	return object.NewBuiltin("declare", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("declare", 1, len(args))
		}
		m, err := extractMap(args[0])
		if err != nil {
			return object.Errorf("declare: %v", err)
		}
		d, err := b.decl(m)
		if err != nil {
			return object.Errorf("declare: %v", err)
		}
		if h, ok := getOptionalInt64(m, "parent"); ok {
			scope, err := b.scope(h)
			if err != nil {
				return object.Errorf("declare: %v", err)
			}
			scope.SetMembers(append(scope.Members(), d))
		} else {
			b.top = append(b.top, d)
		}
		b.decls = append(b.decls, d)
		return object.NewInt(int64(len(b.decls) - 1))
	})
}

func (b *builder) scope(h int64) (asg.Scope, error) {
	if h < 0 || h >= int64(len(b.decls)) {
		return nil, fmt.Errorf("parent handle %d out of range", h)
	}
	s, ok := b.decls[h].(asg.Scope)
	if !ok {
		return nil, fmt.Errorf("parent %s is a %s, not a scope", b.decls[h].Base().Name, asg.KindOf(b.decls[h]))
	}
	return s, nil
}

func (b *builder) decl(m map[string]object.Object) (asg.Decl, error) {
	kind := getString(m, "kind")
	name, err := b.name(m["name"])
	if err != nil {
		return nil, err
	}
	if len(name) == 0 {
		return nil, fmt.Errorf("%s without a name", kind)
	}
	base := asg.DeclBase{
		File:     b.file.Name,
		Line:     getInt(m, "line"),
		Language: b.lang,
		Label:    getStringDefault(m, "label", kind),
		Name:     name,
		Access:   asg.ParseAccessibility(getString(m, "access")),
		Comments: getStrings(m, "comments"),
	}

	switch kind {
	case asg.KindForward:
		return &asg.Forward{DeclBase: base}, nil
	case asg.KindModule:
		return &asg.Module{DeclBase: base}, nil
	case asg.KindTypedef:
		t, err := b.typeArg(m["type"])
		if err != nil {
			return nil, err
		}
		return &asg.Typedef{DeclBase: base, Alias: t}, nil
	case asg.KindVariable:
		t, err := b.typeArg(m["type"])
		if err != nil {
			return nil, err
		}
		return &asg.Variable{DeclBase: base, VarType: t}, nil
	case asg.KindConst:
		t, err := b.typeArg(m["type"])
		if err != nil {
			return nil, err
		}
		return &asg.Const{DeclBase: base, ConstType: t, Value: getString(m, "value")}, nil
	case asg.KindEnum:
		return b.enum(base, m)
	case asg.KindClass:
		return b.class(base, m)
	case asg.KindFunction, asg.KindOperation:
		return b.function(base, kind, m)
	}
	return nil, fmt.Errorf("unknown kind %q", kind)
}

func (b *builder) enum(base asg.DeclBase, m map[string]object.Object) (asg.Decl, error) {
	e := &asg.Enum{DeclBase: base}
	for _, attrs := range getList(m, "enumerators") {
		em, err := extractMap(attrs)
		if err != nil {
			return nil, fmt.Errorf("enumerator: %w", err)
		}
		id := getString(em, "name")
		if id == "" {
			return nil, fmt.Errorf("enumerator of %s without a name", base.Name)
		}
		line := getInt(em, "line")
		if line == 0 {
			line = base.Line
		}
		e.Enumerators = append(e.Enumerators, &asg.Enumerator{
			DeclBase: asg.DeclBase{
				File:     base.File,
				Line:     line,
				Language: b.lang,
				Label:    asg.KindEnumerator,
				Name:     base.Name.Parent().Append(id),
				Access:   base.Access,
			},
			Value: getString(em, "value"),
		})
	}
	return e, nil
}

func (b *builder) class(base asg.DeclBase, m map[string]object.Object) (asg.Decl, error) {
	c := &asg.Class{DeclBase: base}
	for _, attrs := range getList(m, "parents") {
		inh := &asg.Inheritance{Kind: "inherits"}
		if pm, ok := attrs.(*object.Map); ok {
			v := pm.Value()
			t, err := b.typeArg(v["type"])
			if err != nil {
				return nil, err
			}
			inh.Parent = t
			inh.Kind = getStringDefault(v, "kind", inh.Kind)
			inh.Attributes = getStrings(v, "attributes")
		} else {
			t, err := b.typeArg(attrs)
			if err != nil {
				return nil, err
			}
			inh.Parent = t
		}
		if inh.Parent == nil {
			return nil, fmt.Errorf("parent of %s without a type", base.Name)
		}
		c.Parents = append(c.Parents, inh)
	}
	return c, nil
}

func (b *builder) function(base asg.DeclBase, kind string, m map[string]object.Object) (asg.Decl, error) {
	ret, err := b.typeArg(m["return_type"])
	if err != nil {
		return nil, err
	}
	fn := &asg.Function{
		DeclBase:      base,
		Premodifiers:  getStrings(m, "premodifiers"),
		ReturnType:    ret,
		Postmodifiers: getStrings(m, "postmodifiers"),
		RealName:      base.Name,
		Operation:     kind == asg.KindOperation,
	}
	for _, attrs := range getList(m, "parameters") {
		pm, err := extractMap(attrs)
		if err != nil {
			return nil, fmt.Errorf("parameter: %w", err)
		}
		t, err := b.typeArg(pm["type"])
		if err != nil {
			return nil, err
		}
		fn.Parameters = append(fn.Parameters, &asg.Parameter{
			Premodifiers:  getStrings(pm, "premodifiers"),
			Type:          t,
			Postmodifiers: getStrings(pm, "postmodifiers"),
			Name:          getString(pm, "name"),
			Default:       getString(pm, "default"),
		})
	}
	for _, attrs := range getList(m, "raises") {
		t, err := b.typeArg(attrs)
		if err != nil {
			return nil, err
		}
		fn.Exceptions = append(fn.Exceptions, t)
	}
	if last := base.Name.Last(); !strings.Contains(last, "(") {
		fn.Name = base.Name.Parent().Append(frontend.Signature(last, fn.Parameters))
	}
	return fn, nil
}

func (b *builder) name(obj object.Object) (qname.Name, error) {
	switch v := obj.(type) {
	case nil, *object.NilType:
		return nil, nil
	case *object.String:
		return qname.Parse(v.Value(), b.lang), nil
	case *object.List:
		var n qname.Name
		for _, item := range v.Value() {
			s, err := toString(item)
			if err != nil {
				return nil, fmt.Errorf("name segment: %w", err)
			}
			n = append(n, s)
		}
		return n, nil
	}
	return nil, fmt.Errorf("name must be a string or list, got %s", obj.Type())
}

// typeArg resolves a type argument: a type handle, or a string naming a
// builtin or an unresolved type.
func (b *builder) typeArg(obj object.Object) (asg.Type, error) {
	switch v := obj.(type) {
	case nil, *object.NilType:
		return nil, nil
	case *object.String:
		return b.typeFromString(v.Value()), nil
	case *object.Int:
		h := v.Value()
		if h < 0 || h >= int64(len(b.types)) {
			return nil, fmt.Errorf("type handle %d out of range", h)
		}
		return b.types[h], nil
	}
	return nil, fmt.Errorf("type must be a string or type handle, got %s", obj.Type())
}

func (b *builder) typeFromString(s string) asg.Type {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return nil
	}
	if scriptBuiltins[s] || strings.ContainsAny(s, " <") {
		return &asg.Base{Language: b.lang, Name: qname.Name{s}}
	}
	return &asg.Unknown{Language: b.lang, Name: qname.Parse(s, b.lang)}
}

// type_ref(kind, ...) → type handle
//
//	type_ref("base", name)
//	type_ref("unknown", name)
//	type_ref("modifier", type, premodifiers, postmodifiers)
//	type_ref("array", type, sizes)
//	type_ref("parametrized", type, arguments)
func (b *builder) typeRefFn() *object.Builtin {
	return object.NewBuiltin("type_ref", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 2 {
			return object.Errorf("type_ref: expected at least 2 arguments, got %d", len(args))
		}
		kind, err := toString(args[0])
		if err != nil {
			return object.Errorf("type_ref: kind: %v", err)
		}
		t, err := b.typeRef(kind, args[1:])
		if err != nil {
			return object.Errorf("type_ref: %v", err)
		}
		b.types = append(b.types, t)
		return object.NewInt(int64(len(b.types) - 1))
	})
}

func (b *builder) typeRef(kind string, args []object.Object) (asg.Type, error) {
	switch kind {
	case asg.TypeBase, asg.TypeUnknown:
		s, err := toString(args[0])
		if err != nil {
			return nil, err
		}
		if kind == asg.TypeBase {
			return &asg.Base{Language: b.lang, Name: qname.Name{s}}, nil
		}
		return &asg.Unknown{Language: b.lang, Name: qname.Parse(s, b.lang)}, nil
	}

	inner, err := b.typeArg(args[0])
	if err != nil {
		return nil, err
	}
	if inner == nil {
		return nil, fmt.Errorf("%s of nothing", kind)
	}
	switch kind {
	case asg.TypeModifier:
		m := &asg.Modifier{Language: b.lang, Alias: inner}
		if len(args) > 1 {
			m.Premodifiers = listStrings(args[1])
		}
		if len(args) > 2 {
			m.Postmodifiers = listStrings(args[2])
		}
		return m, nil
	case asg.TypeArray:
		a := &asg.Array{Language: b.lang, Alias: inner}
		if len(args) > 1 {
			a.Sizes = listStrings(args[1])
		}
		return a, nil
	case asg.TypeParametrized:
		p := &asg.Parametrized{Language: b.lang, Template: inner}
		if len(args) > 1 {
			l, ok := args[1].(*object.List)
			if !ok {
				return nil, fmt.Errorf("arguments must be a list, got %s", args[1].Type())
			}
			for _, a := range l.Value() {
				t, err := b.typeArg(a)
				if err != nil {
					return nil, err
				}
				p.Parameters = append(p.Parameters, t)
			}
		}
		return p, nil
	}
	return nil, fmt.Errorf("unknown type kind %q", kind)
}

// include(target[, is_macro])
func (b *builder) includeFn() *object.Builtin {
	return object.NewBuiltin("include", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 1 || len(args) > 2 {
			return object.Errorf("include: expected 1 or 2 arguments, got %d", len(args))
		}
		target, err := toString(args[0])
		if err != nil {
			return object.Errorf("include: %v", err)
		}
		inc := &ir.Include{Target: target}
		if len(args) == 2 {
			if flag, ok := args[1].(*object.Bool); ok {
				inc.IsMacro = flag.Value()
			}
		}
		b.file.Includes = append(b.file.Includes, inc)
		return object.Nil
	})
}

// anchor(attrs) records a reference anchor; attrs keys: line, column, text,
// name, from, kind, local. A decl handle takes the name of that
// declaration, so a script need not render function signatures itself.
func (b *builder) anchorFn() *object.Builtin {
	return object.NewBuiltin("anchor", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("anchor", 1, len(args))
		}
		m, err := extractMap(args[0])
		if err != nil {
			return object.Errorf("anchor: %v", err)
		}
		kind, ok := xref.ParseKind(getStringDefault(m, "kind", "reference"))
		if !ok {
			return object.Errorf("anchor: unknown kind %q", getString(m, "kind"))
		}
		name, err := b.name(m["name"])
		if err != nil {
			return object.Errorf("anchor: %v", err)
		}
		if h, ok := getOptionalInt64(m, "decl"); ok {
			if h < 0 || h >= int64(len(b.decls)) {
				return object.Errorf("anchor: declaration handle %d out of range", h)
			}
			name = b.decls[h].Base().Name
		}
		from, err := b.name(m["from"])
		if err != nil {
			return object.Errorf("anchor: %v", err)
		}
		b.anchors = append(b.anchors, xref.Anchor{
			Line:   getInt(m, "line"),
			Column: getInt(m, "column"),
			Text:   getString(m, "text"),
			Name:   name,
			From:   from,
			Local:  getBool(m, "local"),
			Kind:   kind,
		})
		return object.Nil
	})
}

// --- Map extraction helpers ---

func extractMap(obj object.Object) (map[string]object.Object, error) {
	m, ok := obj.(*object.Map)
	if !ok {
		return nil, fmt.Errorf("expected map, got %s", obj.Type())
	}
	return m.Value(), nil
}

func getString(m map[string]object.Object, key string) string {
	v, ok := m[key]
	if !ok {
		return ""
	}
	if s, ok := v.(*object.String); ok {
		return s.Value()
	}
	return ""
}

func getStringDefault(m map[string]object.Object, key, def string) string {
	v := getString(m, key)
	if v == "" {
		return def
	}
	return v
}

func getInt(m map[string]object.Object, key string) int {
	v, ok := m[key]
	if !ok {
		return 0
	}
	if i, ok := v.(*object.Int); ok {
		return int(i.Value())
	}
	if f, ok := v.(*object.Float); ok {
		return int(f.Value())
	}
	return 0
}

func getOptionalInt64(m map[string]object.Object, key string) (int64, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return 0, false
	}
	if _, ok := v.(*object.NilType); ok {
		return 0, false
	}
	if i, ok := v.(*object.Int); ok {
		return i.Value(), true
	}
	if f, ok := v.(*object.Float); ok {
		return int64(f.Value()), true
	}
	return 0, false
}

func getBool(m map[string]object.Object, key string) bool {
	v, ok := m[key]
	if !ok {
		return false
	}
	if b, ok := v.(*object.Bool); ok {
		return b.Value()
	}
	return false
}

func getList(m map[string]object.Object, key string) []object.Object {
	if l, ok := m[key].(*object.List); ok {
		return l.Value()
	}
	return nil
}

func getStrings(m map[string]object.Object, key string) []string {
	v, ok := m[key]
	if !ok {
		return nil
	}
	return listStrings(v)
}

func listStrings(obj object.Object) []string {
	l, ok := obj.(*object.List)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range l.Value() {
		if s, ok := item.(*object.String); ok {
			out = append(out, s.Value())
		}
	}
	return out
}

func toString(obj object.Object) (string, error) {
	if s, ok := obj.(*object.String); ok {
		return s.Value(), nil
	}
	return "", fmt.Errorf("expected string, got %s", obj.Type())
}
