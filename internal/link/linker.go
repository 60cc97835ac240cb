// Package link turns a merged IR into a canonical one: duplicate
// declarations collapse to a single declaration per qualified name, module
// fragments are gathered into MetaModules, and type references are resolved
// against the type dictionary.
package link

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/hashicorp/go-multierror"

	"github.com/jward/docgraph/internal/asg"
	"github.com/jward/docgraph/internal/ir"
	"github.com/jward/docgraph/internal/qname"
)

// CollisionError reports a qualified name bound to declarations of
// incompatible kinds. It aborts the whole pass.
type CollisionError struct {
	Name     qname.Name
	Existing string // kind already bound to Name
	Incoming string // kind that failed to bind
	File     string // location of the incoming declaration
	Line     int
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("link: %s:%d: %s %q conflicts with existing %s",
		e.File, e.Line, e.Incoming, e.Name.String(), e.Existing)
}

// Report summarises a successful pass.
type Report struct {
	// Warnings holds the non-fatal conditions met during the pass, in order.
	Warnings *multierror.Error
	// Unresolved lists type names that stayed Unknown, once each, in the
	// order they were first met.
	Unresolved []qname.Name
	// Dropped counts declarations merged away as duplicates.
	Dropped int
	// MetaModules counts the MetaModules in the canonical tree.
	MetaModules int
}

// Err returns the accumulated warnings as an error, or nil.
func (r *Report) Err() error {
	return r.Warnings.ErrorOrNil()
}

// Option configures a pass.
type Option func(*linker)

// WithLogger sets the logger receiving warnings. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(k *linker) {
		if l != nil {
			k.log = l
		}
	}
}

// WithScopeLookup controls whether a type name that is not found as written
// is retried relative to the enclosing scopes, innermost first. Enabled by
// default.
func WithScopeLookup(enabled bool) Option {
	return func(k *linker) {
		k.scopeLookup = enabled
	}
}

// frame is one level of the deduplicating walk: the declarations already
// bound in a scope and the scope's new member list.
type frame struct {
	scope asg.Scope // nil for the global scope
	dict  map[string]asg.Decl
	index map[string]int // position of dict entries in out
	out   []asg.Decl
}

func newFrame(scope asg.Scope) *frame {
	return &frame{
		scope: scope,
		dict:  make(map[string]asg.Decl),
		index: make(map[string]int),
	}
}

func (f *frame) add(key string, d asg.Decl) {
	f.dict[key] = d
	f.index[key] = len(f.out)
	f.out = append(f.out, d)
}

func (f *frame) inClass() bool {
	_, ok := f.scope.(*asg.Class)
	return ok
}

// linker is the context of one pass. It is created by Link and discarded
// when the pass ends.
type linker struct {
	ir          *ir.IR
	log         *slog.Logger
	scopeLookup bool

	root   *frame
	frames map[asg.Scope]*frame
	order  []*frame // creation order, for a deterministic commit

	symbols map[string]asg.Decl
	types   map[string]asg.Type
	scope   qname.Name // enclosing scope during type linking
	warned  map[string]bool
	report  *Report
}

// Link collapses duplicate declarations in r and resolves its type
// references. A *CollisionError aborts the pass and leaves r unchanged;
// unresolved references are reported as warnings.
func Link(ctx context.Context, r *ir.IR, opts ...Option) (*Report, error) {
	k := &linker{
		ir:          r,
		log:         slog.Default(),
		scopeLookup: true,
		frames:      make(map[asg.Scope]*frame),
		warned:      make(map[string]bool),
		report:      &Report{},
	}
	for _, opt := range opts {
		opt(k)
	}
	k.root = newFrame(nil)

	for _, d := range r.Declarations {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("link: %w", err)
		}
		if err := k.visit(k.root, d); err != nil {
			return nil, err
		}
	}

	k.commit()
	k.linkTypes(r.Declarations)
	return k.report, nil
}

// visit binds d in frame f, following the merge rules for its kind.
func (k *linker) visit(f *frame, d asg.Decl) error {
	key := d.Base().Name.Key()
	switch d := d.(type) {
	case *asg.Module:
		return k.visitModule(f, key, d, []*asg.Module{d}, d.Declarations)
	case *asg.MetaModule:
		// An already-linked tree: its fragments carry over unchanged.
		return k.visitModule(f, key, d, d.Modules, d.Declarations)
	case *asg.Class:
		return k.visitClass(f, key, d)
	case *asg.Function:
		existing, ok := f.dict[key]
		if !ok || f.inClass() {
			if !ok {
				f.add(key, d)
			} else {
				f.out = append(f.out, d)
			}
			return nil
		}
		// Outside classes functions merge on name alone.
		k.drop(existing, d)
		return nil
	default:
		existing, ok := f.dict[key]
		if !ok {
			f.add(key, d)
			return nil
		}
		k.drop(existing, d)
		return nil
	}
}

func (k *linker) visitModule(f *frame, key string, d asg.Decl, fragments []*asg.Module, members []asg.Decl) error {
	var meta *asg.MetaModule
	switch existing := f.dict[key].(type) {
	case nil:
		b := *d.Base()
		b.Comments = slices.Clone(b.Comments)
		meta = &asg.MetaModule{DeclBase: b}
		f.add(key, meta)
		k.push(meta)
	case *asg.MetaModule:
		meta = existing
		meta.Comments = mergeComments(meta.Comments, d.Base().Comments)
	default:
		return k.collision(existing, d)
	}
	meta.Modules = append(meta.Modules, fragments...)

	inner := k.frames[meta]
	for _, m := range members {
		if err := k.visit(inner, m); err != nil {
			return err
		}
	}
	return nil
}

func (k *linker) visitClass(f *frame, key string, c *asg.Class) error {
	switch existing := f.dict[key].(type) {
	case nil:
		f.add(key, c)
	case *asg.Forward:
		idx := f.index[key]
		f.out[idx] = c
		f.dict[key] = c
		k.report.Dropped++
	case *asg.Class:
		// Already defined: only nested classes are recovered from the
		// duplicate, so forward-declared inner types get completed.
		k.report.Dropped++
		inner := k.frames[existing]
		for _, m := range c.Declarations {
			if nested, ok := m.(*asg.Class); ok {
				if err := k.visit(inner, nested); err != nil {
					return err
				}
			}
		}
		return nil
	default:
		return k.collision(existing, c)
	}

	inner := k.push(c)
	for _, m := range c.Declarations {
		if err := k.visit(inner, m); err != nil {
			return err
		}
	}
	return nil
}

func (k *linker) push(s asg.Scope) *frame {
	f := newFrame(s)
	k.frames[s] = f
	k.order = append(k.order, f)
	return f
}

// drop discards incoming in favour of the declaration already bound.
func (k *linker) drop(existing, incoming asg.Decl) {
	k.report.Dropped++
	if existing == incoming {
		return
	}
	ek, ik := asg.KindOf(existing), asg.KindOf(incoming)
	if ek == ik {
		return
	}
	if _, ok := incoming.(*asg.Forward); ok {
		return
	}
	b := incoming.Base()
	k.warn(fmt.Errorf("%s:%d: %s %q ignored, already declared as %s", b.File, b.Line, ik, b.Name.String(), ek))
}

func (k *linker) collision(existing, incoming asg.Decl) error {
	b := incoming.Base()
	return &CollisionError{
		Name:     b.Name,
		Existing: asg.KindOf(existing),
		Incoming: asg.KindOf(incoming),
		File:     b.File,
		Line:     b.Line,
	}
}

func (k *linker) warn(err error) {
	k.log.Warn("link", "err", err)
	k.report.Warnings = multierror.Append(k.report.Warnings, err)
}

// mergeComments appends incoming unless it already ends existing.
func mergeComments(existing, incoming []string) []string {
	if len(incoming) == 0 {
		return existing
	}
	if len(existing) >= len(incoming) && slices.Equal(existing[len(existing)-len(incoming):], incoming) {
		return existing
	}
	return append(existing, incoming...)
}

// commit installs the new member lists and rebuilds the arena, the type
// dictionary and the per-file declaration lists from the canonical tree.
func (k *linker) commit() {
	r := k.ir
	for _, f := range k.order {
		f.scope.SetMembers(f.out)
		if _, ok := f.scope.(*asg.MetaModule); ok {
			k.report.MetaModules++
		}
	}
	r.Declarations = k.root.out

	k.symbols = make(map[string]asg.Decl)
	asg.Walk(r.Declarations, func(d asg.Decl) bool {
		key := d.Base().Name.Key()
		if _, seen := k.symbols[key]; !seen {
			k.symbols[key] = d
		}
		return true
	})

	k.types = make(map[string]asg.Type, len(r.Types))
	for key, t := range r.Types {
		switch t.(type) {
		case *asg.Declared, *asg.Template:
			// Rebuilt below from the canonical declarations.
		default:
			k.types[key] = t
		}
	}
	for key, d := range k.symbols {
		if t := asg.TypeFor(d); t != nil {
			k.types[key] = t
		}
	}
	r.Symbols = k.symbols
	r.Types = k.types

	for _, file := range r.Files() {
		if len(file.Declarations) == 0 {
			continue
		}
		seen := make(map[asg.Decl]bool, len(file.Declarations))
		canonical := make([]asg.Decl, 0, len(file.Declarations))
		for _, d := range file.Declarations {
			if c, ok := k.symbols[d.Base().Name.Key()]; ok && sameFamily(c, d) {
				d = c
			}
			if !seen[d] {
				seen[d] = true
				canonical = append(canonical, d)
			}
		}
		file.Declarations = canonical
	}
}

// sameFamily reports whether canonical can stand in for d in a file's
// declaration list.
func sameFamily(canonical, d asg.Decl) bool {
	switch canonical.(type) {
	case *asg.MetaModule:
		switch d.(type) {
		case *asg.Module, *asg.MetaModule:
			return true
		}
		return false
	case *asg.Class:
		switch d.(type) {
		case *asg.Class, *asg.Forward:
			return true
		}
		return false
	}
	return asg.KindOf(canonical) == asg.KindOf(d)
}
