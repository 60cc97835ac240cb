package link

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/jward/docgraph/internal/asg"
	"github.com/jward/docgraph/internal/qname"
)

// linkTypes resolves the type references held by decls and everything
// nested in them.
func (k *linker) linkTypes(decls []asg.Decl) {
	for _, d := range decls {
		k.linkDecl(d)
	}
}

func (k *linker) linkDecl(d asg.Decl) {
	saved := k.scope
	k.scope = d.Base().Name.Parent()
	defer func() { k.scope = saved }()

	switch d := d.(type) {
	case *asg.Typedef:
		d.Alias = k.linkType(d.Alias, d)
	case *asg.Variable:
		d.VarType = k.linkType(d.VarType, d)
	case *asg.Const:
		d.ConstType = k.linkType(d.ConstType, d)
	case *asg.Function:
		d.ReturnType = k.linkType(d.ReturnType, d)
		k.linkParams(d.Parameters, d)
		for i, ex := range d.Exceptions {
			d.Exceptions[i] = k.linkType(ex, d)
		}
		if d.Template != nil {
			k.linkParams(d.Template.Parameters, d)
		}
	case *asg.Class:
		if d.Template != nil {
			k.linkParams(d.Template.Parameters, d)
		}
		for _, in := range d.Parents {
			k.linkInheritance(in, d)
		}
		k.linkTypes(d.Declarations)
	case *asg.Module:
		k.linkTypes(d.Declarations)
	case *asg.MetaModule:
		k.linkTypes(d.Declarations)
	}
}

func (k *linker) linkParams(ps []*asg.Parameter, owner asg.Decl) {
	for _, p := range ps {
		p.Type = k.linkType(p.Type, owner)
	}
}

// linkInheritance relinks the parent reference. A parametrized parent also
// picks up the template owned by the class it instantiates.
func (k *linker) linkInheritance(in *asg.Inheritance, owner asg.Decl) {
	in.Parent = k.linkType(in.Parent, owner)
	p, ok := in.Parent.(*asg.Parametrized)
	if !ok {
		return
	}
	name := asg.NameOf(p.Template)
	if name == nil {
		return
	}
	if c, ok := k.symbols[name.Key()].(*asg.Class); ok && c.Template != nil {
		p.Template = c.Template
	}
}

// linkType returns the canonical form of t. Composite references are
// relinked in place; named references are replaced by their dictionary
// entry. owner is the declaration holding the reference, used in warnings.
func (k *linker) linkType(t asg.Type, owner asg.Decl) asg.Type {
	switch t := t.(type) {
	case nil:
		return nil
	case *asg.Base:
		return t
	case *asg.Unknown:
		return k.resolve(t.Language, t.Name, owner)
	case *asg.Declared:
		return k.resolve(t.Language, t.Name, owner)
	case *asg.Modifier:
		t.Alias = k.linkType(t.Alias, owner)
		return t
	case *asg.Array:
		t.Alias = k.linkType(t.Alias, owner)
		return t
	case *asg.Parametrized:
		t.Template = k.linkType(t.Template, owner)
		for i, p := range t.Parameters {
			t.Parameters[i] = k.linkType(p, owner)
		}
		return t
	case *asg.FunctionType:
		t.Return = k.linkType(t.Return, owner)
		for i, p := range t.Parameters {
			t.Parameters[i] = k.linkType(p, owner)
		}
		return t
	case *asg.Template:
		// Templates resolve to the object owned by their declaration.
		if d, ok := k.symbols[t.Name.Key()]; ok {
			if own := asg.TemplateOf(d); own != nil {
				return own
			}
		}
		if entry, ok := k.lookup(t.Name); ok {
			return entry
		}
		return t
	}
	return t
}

func (k *linker) resolve(lang qname.Language, name qname.Name, owner asg.Decl) asg.Type {
	if entry, ok := k.lookup(name); ok {
		return entry
	}
	key := name.Key()
	if !k.warned[key] {
		k.warned[key] = true
		k.report.Unresolved = append(k.report.Unresolved, name)
		b := owner.Base()
		k.log.Warn("unresolved type", "name", name.Format(lang), "file", b.File, "line", b.Line)
		k.report.Warnings = multierror.Append(k.report.Warnings,
			fmt.Errorf("%s:%d: unresolved type %q", b.File, b.Line, name.Format(lang)))
	}
	return &asg.Unknown{Language: lang, Name: name}
}

// lookup finds name in the type dictionary. With scope lookup enabled the
// enclosing scopes are searched innermost first, so a nested declaration
// shadows a global one; the name as written is tried last.
func (k *linker) lookup(name qname.Name) (asg.Type, bool) {
	if k.scopeLookup {
		for s := k.scope; len(s) > 0; s = s.Parent() {
			if t, ok := k.types[s.Append(name...).Key()]; ok {
				return t, true
			}
		}
	}
	t, ok := k.types[name.Key()]
	return t, ok
}
