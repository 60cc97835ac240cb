package asg

import (
	"strconv"
	"strings"

	"github.com/jward/docgraph/internal/qname"
)

// Type is implemented by every type reference kind in this package.
type Type interface {
	Lang() qname.Language
	isType()
}

// Base is a builtin type such as int or a template parameter.
type Base struct {
	Language qname.Language
	Name     qname.Name
}

// Unknown is a reference whose target has not been resolved.
type Unknown struct {
	Language qname.Language
	Name     qname.Name
}

// Declared refers to a declaration by qualified name. The declaration itself
// is looked up through the IR's declaration arena.
type Declared struct {
	Language qname.Language
	Name     qname.Name
	DeclKind string
}

// Modifier wraps another type with qualifiers such as const, *, &.
type Modifier struct {
	Language      qname.Language
	Alias         Type
	Premodifiers  []string
	Postmodifiers []string
}

// Array is an array of Alias with one size expression per dimension.
type Array struct {
	Language qname.Language
	Alias    Type
	Sizes    []string
}

// Parametrized is an instantiation of a template with argument types.
type Parametrized struct {
	Language   qname.Language
	Template   Type
	Parameters []Type
}

// Template is the template parameter list owned by a class, forward or
// function declaration.
type Template struct {
	Language   qname.Language
	Name       qname.Name
	DeclKind   string
	Parameters []*Parameter
}

// FunctionType is a function signature used as a type (function pointers).
type FunctionType struct {
	Language     qname.Language
	Return       Type
	Premodifiers []string
	Parameters   []Type
}

func (t *Base) Lang() qname.Language         { return t.Language }
func (t *Unknown) Lang() qname.Language      { return t.Language }
func (t *Declared) Lang() qname.Language     { return t.Language }
func (t *Modifier) Lang() qname.Language     { return t.Language }
func (t *Array) Lang() qname.Language        { return t.Language }
func (t *Parametrized) Lang() qname.Language { return t.Language }
func (t *Template) Lang() qname.Language     { return t.Language }
func (t *FunctionType) Lang() qname.Language { return t.Language }

func (*Base) isType()         {}
func (*Unknown) isType()      {}
func (*Declared) isType()     {}
func (*Modifier) isType()     {}
func (*Array) isType()        {}
func (*Parametrized) isType() {}
func (*Template) isType()     {}
func (*FunctionType) isType() {}

// Type kind names used by the wire format.
const (
	TypeBase         = "base"
	TypeUnknown      = "unknown"
	TypeDeclared     = "declared"
	TypeModifier     = "modifier"
	TypeArray        = "array"
	TypeParametrized = "parametrized"
	TypeTemplate     = "template"
	TypeFunction     = "function"
)

// TypeKindOf returns the kind name of t, or "" for nil.
func TypeKindOf(t Type) string {
	switch t.(type) {
	case *Base:
		return TypeBase
	case *Unknown:
		return TypeUnknown
	case *Declared:
		return TypeDeclared
	case *Modifier:
		return TypeModifier
	case *Array:
		return TypeArray
	case *Parametrized:
		return TypeParametrized
	case *Template:
		return TypeTemplate
	case *FunctionType:
		return TypeFunction
	}
	return ""
}

// NameOf returns the qualified name a type reference is about. Wrappers
// report the name of the type they wrap; function types have no name.
func NameOf(t Type) qname.Name {
	switch t := t.(type) {
	case *Base:
		return t.Name
	case *Unknown:
		return t.Name
	case *Declared:
		return t.Name
	case *Template:
		return t.Name
	case *Modifier:
		return NameOf(t.Alias)
	case *Array:
		return NameOf(t.Alias)
	case *Parametrized:
		return NameOf(t.Template)
	}
	return nil
}

// Format renders t roughly as it would be written in C++. It is meant for
// summaries and diagnostics, not for round-tripping.
func Format(t Type) string {
	if t == nil {
		return ""
	}
	lang := t.Lang()
	switch t := t.(type) {
	case *Base:
		return t.Name.Format(lang)
	case *Unknown:
		return t.Name.Format(lang)
	case *Declared:
		return t.Name.Format(lang)
	case *Template:
		return t.Name.Format(lang)
	case *Modifier:
		var b strings.Builder
		for _, m := range t.Premodifiers {
			b.WriteString(m)
			b.WriteByte(' ')
		}
		b.WriteString(Format(t.Alias))
		for _, m := range t.Postmodifiers {
			b.WriteString(m)
		}
		return b.String()
	case *Array:
		var b strings.Builder
		b.WriteString(Format(t.Alias))
		for _, s := range t.Sizes {
			b.WriteString("[" + s + "]")
		}
		return b.String()
	case *Parametrized:
		args := make([]string, len(t.Parameters))
		for i, p := range t.Parameters {
			args[i] = Format(p)
		}
		return Format(t.Template) + "<" + strings.Join(args, ", ") + ">"
	case *FunctionType:
		params := make([]string, len(t.Parameters))
		for i, p := range t.Parameters {
			params[i] = Format(p)
		}
		return Format(t.Return) + "(" + strings.Join(t.Premodifiers, "") + ")(" + strings.Join(params, ", ") + ")"
	}
	return ""
}

// Summary renders a one-line description of d for listings.
func Summary(d Decl) string {
	b := d.Base()
	switch d := d.(type) {
	case *Function:
		params := make([]string, len(d.Parameters))
		for i, p := range d.Parameters {
			s := strings.TrimSpace(strings.Join(p.Premodifiers, " ") + " " + Format(p.Type) + strings.Join(p.Postmodifiers, ""))
			if p.Name != "" {
				s += " " + p.Name
			}
			if p.Default != "" {
				s += " = " + p.Default
			}
			params[i] = s
		}
		name := b.Name.Last()
		if d.RealName != nil {
			name = d.RealName.Last()
		}
		sig := name + "(" + strings.Join(params, ", ") + ")"
		if len(d.Postmodifiers) > 0 {
			sig += " " + strings.Join(d.Postmodifiers, " ")
		}
		ret := strings.TrimSpace(strings.Join(d.Premodifiers, " ") + " " + Format(d.ReturnType))
		if ret == "" {
			return sig
		}
		return ret + " " + sig
	case *Variable:
		return Format(d.VarType)
	case *Const:
		if d.Value == "" {
			return Format(d.ConstType)
		}
		return Format(d.ConstType) + " = " + d.Value
	case *Typedef:
		return Format(d.Alias)
	case *Enumerator:
		return d.Value
	case *Enum:
		names := make([]string, len(d.Enumerators))
		for i, e := range d.Enumerators {
			names[i] = e.Name.Last()
		}
		return "{" + strings.Join(names, ", ") + "}"
	case *Class:
		if len(d.Parents) == 0 {
			return ""
		}
		parents := make([]string, len(d.Parents))
		for i, p := range d.Parents {
			parents[i] = strings.TrimSpace(strings.Join(p.Attributes, " ") + " " + Format(p.Parent))
		}
		return ": " + strings.Join(parents, ", ")
	case *MetaModule:
		return fmtCount(len(d.Modules), "fragment")
	}
	return ""
}

func fmtCount(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return strconv.Itoa(n) + " " + noun + "s"
}
