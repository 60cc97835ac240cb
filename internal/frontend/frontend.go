// Package frontend defines the contract between language front ends and the
// rest of the pipeline, and provides native tree-sitter front ends for C,
// C++ and Python.
//
// A front end parses one source file into an IR holding that file's
// declarations, types and include edges. It never resolves names across
// files; the linker does that once all units are merged.
package frontend

import (
	"context"
	"path/filepath"
	"slices"
	"strings"

	"github.com/jward/docgraph/internal/asg"
	"github.com/jward/docgraph/internal/ir"
	"github.com/jward/docgraph/internal/qname"
	"github.com/jward/docgraph/internal/xref"
)

// Source is one input file.
type Source struct {
	Path    string // registry key, relative to the project root
	AbsPath string
	Content []byte
}

// Unit is the result of parsing one file.
type Unit struct {
	IR *ir.IR
	// Anchors are the reference records found in the file, ready to be
	// written as its reference stream. Front ends that do not produce them
	// leave this empty.
	Anchors []xref.Anchor
}

// Frontend parses source files of one language.
type Frontend interface {
	Language() qname.Language
	Parse(ctx context.Context, src Source) (*Unit, error)
}

// Registry maps file extensions to front ends.
type Registry struct {
	byExt map[string]Frontend
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byExt: make(map[string]Frontend)}
}

// DefaultRegistry returns a registry with the native front ends.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	cf, cxx, py := NewC(), NewCxx(), NewPython()
	r.Register(cf, ".c", ".h")
	r.Register(cxx, ".cc", ".cpp", ".cxx", ".hpp", ".hh", ".hxx")
	r.Register(py, ".py")
	return r
}

// Register binds f to each extension, replacing earlier bindings.
func (r *Registry) Register(f Frontend, exts ...string) {
	for _, ext := range exts {
		r.byExt[strings.ToLower(ext)] = f
	}
}

// For returns the front end handling path.
func (r *Registry) For(path string) (Frontend, bool) {
	f, ok := r.byExt[strings.ToLower(filepath.Ext(path))]
	return f, ok
}

// Restrict returns a registry holding only the bindings of front ends for
// the given languages. No languages means no restriction.
func (r *Registry) Restrict(langs ...qname.Language) *Registry {
	if len(langs) == 0 {
		return r
	}
	out := NewRegistry()
	for ext, f := range r.byExt {
		if slices.Contains(langs, f.Language()) {
			out.byExt[ext] = f
		}
	}
	return out
}

// Extensions returns the registered extensions, sorted.
func (r *Registry) Extensions() []string {
	out := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		out = append(out, ext)
	}
	slices.Sort(out)
	return out
}

// Signature renders the last name segment of a function: its bare name
// followed by its parameter types, as in "draw(int, const char*)".
func Signature(name string, params []*asg.Parameter) string {
	sig := make([]string, len(params))
	for i, p := range params {
		s := asg.Format(p.Type)
		if len(p.Premodifiers) > 0 {
			s = strings.Join(p.Premodifiers, " ") + " " + s
		}
		sig[i] = s
	}
	return name + "(" + strings.Join(sig, ", ") + ")"
}
