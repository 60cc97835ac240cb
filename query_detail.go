package docgraph

import (
	"fmt"

	"github.com/jward/docgraph/internal/xref"
)

// SymbolDetail is a symbol with its usage records and its neighbours in
// the declaration tree.
type SymbolDetail struct {
	Symbol      *Symbol
	Parent      *Symbol
	Children    []*Symbol
	Definitions []*XRef
	Calls       []*XRef
	References  []*XRef
	Includes    []*Include // of the declaring file
}

// Detail returns the full record of the symbol named name, or nil.
func (q *QueryBuilder) Detail(name string) (*SymbolDetail, error) {
	sym, err := q.symbol(name)
	if err != nil {
		return nil, fmt.Errorf("detail: %w", err)
	}
	if sym == nil {
		return nil, nil
	}

	d := &SymbolDetail{Symbol: sym}
	if sym.ParentSymbolID != nil {
		if d.Parent, err = q.store.SymbolByID(*sym.ParentSymbolID); err != nil {
			return nil, fmt.Errorf("detail: parent: %w", err)
		}
	}
	if d.Children, err = q.store.ChildSymbols(sym.ID); err != nil {
		return nil, fmt.Errorf("detail: children: %w", err)
	}

	refs, err := q.store.XRefsBySymbol(sym.ID, "")
	if err != nil {
		return nil, fmt.Errorf("detail: xrefs: %w", err)
	}
	for _, r := range refs {
		switch r.Kind {
		case xref.Definition.String():
			d.Definitions = append(d.Definitions, r)
		case xref.Call.String():
			d.Calls = append(d.Calls, r)
		default:
			d.References = append(d.References, r)
		}
	}

	if sym.FileID != nil {
		if d.Includes, err = q.store.IncludesByFile(*sym.FileID); err != nil {
			return nil, fmt.Errorf("detail: includes: %w", err)
		}
	}
	return d, nil
}

// XRefsInFile returns the usage records located in a file, by line.
func (q *QueryBuilder) XRefsInFile(file string) ([]*XRef, error) {
	if err := q.check(); err != nil {
		return nil, err
	}
	return q.store.XRefsByFile(normalizePathPrefix(file))
}
