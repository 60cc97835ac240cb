// Package ir is the container passed between pipeline stages: the source
// file registry, the top-level declaration list, the type dictionary and the
// declaration arena.
package ir

import (
	"github.com/jward/docgraph/internal/asg"
	"github.com/jward/docgraph/internal/qname"
)

// Include is an edge from a file to a file it includes or imports. Target is
// the registry key of the included file; the edge never owns the file.
type Include struct {
	Target  string
	IsMacro bool // included through a macro expansion
	IsNext  bool // #include_next
}

// SourceFile is the per-file metadata kept in the registry.
type SourceFile struct {
	Name     string // registry key, usually relative to the project root
	AbsName  string
	Language qname.Language
	Primary  bool // a translation unit given to a front end, not just included

	Includes []*Include
	// Declarations are the top-level declarations this file contributes.
	// They are shared with IR.Declarations, not owned.
	Declarations []asg.Decl
}

// IR is the top-level aggregate. It is never mutated concurrently: one
// pipeline stage owns it at a time.
type IR struct {
	files map[string]*SourceFile
	order []string

	// Declarations owns the top-level declarations in arrival order.
	Declarations []asg.Decl
	// Types maps qname keys to type-dictionary entries.
	Types map[string]asg.Type
	// Symbols is the declaration arena: qname key to declaration. Type
	// references and other cross links resolve through it.
	Symbols map[string]asg.Decl
}

// New returns an empty IR.
func New() *IR {
	return &IR{
		files:   make(map[string]*SourceFile),
		Types:   make(map[string]asg.Type),
		Symbols: make(map[string]asg.Decl),
	}
}

// File returns the registered file with the given key.
func (r *IR) File(name string) (*SourceFile, bool) {
	f, ok := r.files[name]
	return f, ok
}

// Files returns the registered files in arrival order.
func (r *IR) Files() []*SourceFile {
	out := make([]*SourceFile, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.files[name])
	}
	return out
}

// PrimaryFiles returns the primary translation units in arrival order.
func (r *IR) PrimaryFiles() []*SourceFile {
	var out []*SourceFile
	for _, name := range r.order {
		if f := r.files[name]; f.Primary {
			out = append(out, f)
		}
	}
	return out
}

// AddFile registers f. If a file with the same key is already present the
// two are merged and the retained file is returned.
func (r *IR) AddFile(f *SourceFile) *SourceFile {
	existing, ok := r.files[f.Name]
	if !ok {
		r.files[f.Name] = f
		r.order = append(r.order, f.Name)
		return f
	}
	if existing == f {
		return f
	}
	existing.Primary = existing.Primary || f.Primary
	existing.Includes = append(existing.Includes, f.Includes...)
	existing.Declarations = append(existing.Declarations, f.Declarations...)
	if existing.AbsName == "" {
		existing.AbsName = f.AbsName
	}
	if existing.Language == "" {
		existing.Language = f.Language
	}
	return existing
}

// Declare adds a top-level declaration contributed by file and registers it
// and its nested declarations. A nil file only appends to Declarations.
func (r *IR) Declare(file *SourceFile, d asg.Decl) {
	r.Declarations = append(r.Declarations, d)
	if file != nil {
		file.Declarations = append(file.Declarations, d)
	}
	asg.Walk([]asg.Decl{d}, func(d asg.Decl) bool {
		r.Register(d)
		return true
	})
}

// Register records d in the declaration arena and, when it declares a type,
// in the type dictionary. Later registrations under the same name win.
func (r *IR) Register(d asg.Decl) {
	key := d.Base().Name.Key()
	r.Symbols[key] = d
	if t := asg.TypeFor(d); t != nil {
		r.Types[key] = t
	}
}

// DeclareType adds an entry to the type dictionary, typically a builtin.
func (r *IR) DeclareType(name qname.Name, t asg.Type) {
	r.Types[name.Key()] = t
}

// Lookup returns the declaration registered under name.
func (r *IR) Lookup(name qname.Name) (asg.Decl, bool) {
	d, ok := r.Symbols[name.Key()]
	return d, ok
}

// LookupType returns the type-dictionary entry registered under name.
func (r *IR) LookupType(name qname.Name) (asg.Type, bool) {
	t, ok := r.Types[name.Key()]
	return t, ok
}

// Merge folds other into r. Files are merged by key, declarations appended
// and dictionary entries overwritten on collision. The result may hold
// several declarations under one name; the linker resolves those. other must
// not be used afterwards.
func (r *IR) Merge(other *IR) {
	if other == nil {
		return
	}
	r.Declarations = append(r.Declarations, other.Declarations...)
	for _, f := range other.Files() {
		r.AddFile(f)
	}
	for k, t := range other.Types {
		r.Types[k] = t
	}
	for k, d := range other.Symbols {
		r.Symbols[k] = d
	}
	r.RebindIncludes()
}

// RebindIncludes rewrites include targets that name a registered file by its
// absolute path so that they use the registry key instead. Targets that are
// not registered are left alone.
func (r *IR) RebindIncludes() {
	byAbs := make(map[string]string, len(r.files))
	for name, f := range r.files {
		if f.AbsName != "" && f.AbsName != name {
			byAbs[f.AbsName] = name
		}
	}
	if len(byAbs) == 0 {
		return
	}
	for _, name := range r.order {
		for _, inc := range r.files[name].Includes {
			if key, ok := byAbs[inc.Target]; ok {
				inc.Target = key
			}
		}
	}
}

// IncludeTarget resolves an include edge through the registry.
func (r *IR) IncludeTarget(inc *Include) (*SourceFile, bool) {
	return r.File(inc.Target)
}
