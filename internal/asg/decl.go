// Package asg defines the abstract semantic graph shared by every front end:
// declarations, type references and inheritance edges.
//
// Declarations and types are closed sets. Each concrete kind implements a
// sealed interface, so consumers dispatch with a type switch instead of a
// visitor hierarchy.
package asg

import (
	"github.com/jward/docgraph/internal/qname"
)

// Accessibility is the access level of a declaration inside its scope.
type Accessibility int

const (
	Default Accessibility = iota
	Public
	Protected
	Private
)

func (a Accessibility) String() string {
	switch a {
	case Public:
		return "public"
	case Protected:
		return "protected"
	case Private:
		return "private"
	default:
		return "default"
	}
}

// ParseAccessibility maps a keyword to an Accessibility; unknown keywords
// map to Default.
func ParseAccessibility(s string) Accessibility {
	switch s {
	case "public":
		return Public
	case "protected":
		return Protected
	case "private":
		return Private
	default:
		return Default
	}
}

// DeclBase holds the fields common to every declaration.
type DeclBase struct {
	File     string // registry key of the declaring source file
	Line     int
	Language qname.Language
	Label    string // keyword as written: "class", "struct", "namespace", ...
	Name     qname.Name
	Access   Accessibility
	Comments []string
}

// Base returns the common fields.
func (b *DeclBase) Base() *DeclBase { return b }

// Decl is implemented by every declaration kind in this package.
type Decl interface {
	Base() *DeclBase
	isDecl()
}

// Scope is a declaration that owns an ordered list of nested declarations.
type Scope interface {
	Decl
	Members() []Decl
	SetMembers([]Decl)
}

// Forward is a placeholder for a type that is expected to be defined
// elsewhere.
type Forward struct {
	DeclBase
	Template *Template
}

// Typedef names an alias for another type.
type Typedef struct {
	DeclBase
	Alias       Type
	Constructed bool // the aliased type was defined inline
}

// Enumerator is a single named value of an Enum.
type Enumerator struct {
	DeclBase
	Value string
}

// Enum is an enumeration with its ordered enumerators.
type Enum struct {
	DeclBase
	Enumerators []*Enumerator
}

// Variable is a variable, field or attribute.
type Variable struct {
	DeclBase
	VarType     Type
	Constructed bool
}

// Const is a named constant with its literal value.
type Const struct {
	DeclBase
	ConstType Type
	Value     string
}

// Parameter is a function or template parameter.
type Parameter struct {
	Premodifiers  []string
	Type          Type
	Postmodifiers []string
	Name          string
	Default       string
}

// Function is a free function, method or (when Operation is set) an
// interface operation. Name's last segment carries the signature, RealName
// the bare identifier.
type Function struct {
	DeclBase
	Premodifiers  []string
	ReturnType    Type
	Postmodifiers []string
	RealName      qname.Name
	Parameters    []*Parameter
	Template      *Template
	Exceptions    []Type
	Operation     bool
}

// Module is one physical fragment of a namespace, package or module.
type Module struct {
	DeclBase
	Declarations []Decl
}

func (m *Module) Members() []Decl      { return m.Declarations }
func (m *Module) SetMembers(ds []Decl) { m.Declarations = ds }

// Inheritance is an edge from a class to one of its parents.
type Inheritance struct {
	Kind       string // "inherits", "implements", ...
	Parent     Type
	Attributes []string // "public", "virtual", ...
}

// Class is a class, struct, union or interface.
type Class struct {
	DeclBase
	Declarations []Decl
	Parents      []*Inheritance
	Template     *Template
}

func (c *Class) Members() []Decl      { return c.Declarations }
func (c *Class) SetMembers(ds []Decl) { c.Declarations = ds }

// MetaModule aggregates every Module fragment sharing one qualified name.
// Declarations holds the deduplicated union of the fragments' members.
type MetaModule struct {
	DeclBase
	Declarations []Decl
	Modules      []*Module
}

func (m *MetaModule) Members() []Decl      { return m.Declarations }
func (m *MetaModule) SetMembers(ds []Decl) { m.Declarations = ds }

func (*Forward) isDecl()    {}
func (*Typedef) isDecl()    {}
func (*Enumerator) isDecl() {}
func (*Enum) isDecl()       {}
func (*Variable) isDecl()   {}
func (*Const) isDecl()      {}
func (*Function) isDecl()   {}
func (*Module) isDecl()     {}
func (*Class) isDecl()      {}
func (*MetaModule) isDecl() {}

// Declaration kind names, used in errors, storage and the wire format.
const (
	KindForward    = "forward"
	KindTypedef    = "typedef"
	KindEnumerator = "enumerator"
	KindEnum       = "enum"
	KindVariable   = "variable"
	KindConst      = "const"
	KindFunction   = "function"
	KindOperation  = "operation"
	KindModule     = "module"
	KindClass      = "class"
	KindMetaModule = "metamodule"
)

// KindOf returns the kind name of d.
func KindOf(d Decl) string {
	switch d := d.(type) {
	case *Forward:
		return KindForward
	case *Typedef:
		return KindTypedef
	case *Enumerator:
		return KindEnumerator
	case *Enum:
		return KindEnum
	case *Variable:
		return KindVariable
	case *Const:
		return KindConst
	case *Function:
		if d.Operation {
			return KindOperation
		}
		return KindFunction
	case *Module:
		return KindModule
	case *Class:
		return KindClass
	case *MetaModule:
		return KindMetaModule
	}
	return "unknown"
}

// DeclaresType reports whether d introduces a name that type references can
// resolve to.
func DeclaresType(d Decl) bool {
	switch d.(type) {
	case *Forward, *Typedef, *Enum, *Class, *Module, *MetaModule:
		return true
	}
	return false
}

// TemplateOf returns the template parameter list owned by a class, forward
// or function declaration, or nil.
func TemplateOf(d Decl) *Template {
	switch d := d.(type) {
	case *Class:
		return d.Template
	case *Forward:
		return d.Template
	case *Function:
		return d.Template
	}
	return nil
}

// Walk visits decls depth-first in order. When fn returns false the
// children of that declaration are skipped. Enumerators are visited after
// their Enum.
func Walk(decls []Decl, fn func(Decl) bool) {
	for _, d := range decls {
		if !fn(d) {
			continue
		}
		switch d := d.(type) {
		case Scope:
			Walk(d.Members(), fn)
		case *Enum:
			for _, e := range d.Enumerators {
				fn(e)
			}
		}
	}
}

// TypeFor returns the type-dictionary entry for a type-declaring
// declaration: its own Template when it has one, otherwise a Declared
// reference. It returns nil for declarations that do not declare types.
func TypeFor(d Decl) Type {
	if !DeclaresType(d) {
		return nil
	}
	b := d.Base()
	if t := TemplateOf(d); t != nil {
		if t.Name == nil {
			t.Name = b.Name
		}
		if t.Language == "" {
			t.Language = b.Language
		}
		t.DeclKind = KindOf(d)
		return t
	}
	return &Declared{Language: b.Language, Name: b.Name, DeclKind: KindOf(d)}
}
