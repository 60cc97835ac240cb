package store

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/jward/docgraph/internal/asg"
	"github.com/jward/docgraph/internal/ir"
	"github.com/jward/docgraph/internal/qname"
	"github.com/jward/docgraph/internal/xref"
)

// Metadata keys written by CommitIndex.
const (
	MetaIndexedAt = "indexed_at"
	MetaPageCount = "page_count"
	MetaPageSize  = "page_size"
	MetaSymbols   = "symbol_count"
)

// CommitIndex replaces the stored index with the files and declarations of
// a linked IR and the records of a compiled xref table, within a single
// transaction. The table must already be indexed (GenerateIndex).
//
// Insert order respects FK dependencies:
//  1. Files, then their includes
//  2. Symbols: declarations parent-first, then names only seen in streams
//  3. XRefs and the short-name index
//  4. Metadata
func (s *Store) CommitIndex(r *ir.IR, t *xref.Table) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit index: begin: %w", err)
	}
	defer tx.Rollback()

	if err := clearTx(tx); err != nil {
		return fmt.Errorf("commit index: %w", err)
	}

	// 1. Files
	fileIDs := make(map[string]int64)
	for _, f := range r.Files() {
		row := &File{Path: f.Name, AbsPath: f.AbsName, Language: string(f.Language), Primary: f.Primary}
		id, err := insertFileTx(tx, row)
		if err != nil {
			return fmt.Errorf("commit index: file %q: %w", f.Name, err)
		}
		fileIDs[f.Name] = id
		for i, inc := range f.Includes {
			if _, err := insertIncludeTx(tx, &Include{
				FileID: id, Target: inc.Target, Ordinal: i, IsMacro: inc.IsMacro, IsNext: inc.IsNext,
			}); err != nil {
				return fmt.Errorf("commit index: include %q: %w", inc.Target, err)
			}
		}
	}

	// 2. Symbols
	symIDs := make(map[string]int64)
	insert := func(sym *Symbol, name qname.Name) error {
		if p := name.Parent(); len(p) > 0 {
			if pid, ok := symIDs[p.Key()]; ok {
				sym.ParentSymbolID = &pid
			}
		}
		if page, ok := t.ViewFor(name); ok {
			sym.Page = &page
		}
		if e, ok := t.Lookup(name); ok {
			sym.Weight = e.Weight()
		}
		id, err := insertSymbolTx(tx, sym)
		if err != nil {
			return fmt.Errorf("commit index: symbol %q: %w", sym.Name, err)
		}
		symIDs[sym.Key] = id
		return nil
	}

	var walkErr error
	asg.Walk(r.Declarations, func(d asg.Decl) bool {
		if walkErr != nil {
			return false
		}
		b := d.Base()
		key := b.Name.Key()
		if _, dup := symIDs[key]; dup {
			return true
		}
		sym := symbolFor(b.Name, b.Language)
		sym.Kind = asg.KindOf(d)
		sym.Label = b.Label
		sym.Access = b.Access.String()
		sym.Line = b.Line
		sym.Summary = asg.Summary(d)
		sym.Comments = b.Comments
		if id, ok := fileIDs[b.File]; ok {
			sym.FileID = &id
		}
		walkErr = insert(sym, b.Name)
		return true
	})
	if walkErr != nil {
		return walkErr
	}

	names := t.Names()
	for _, n := range names {
		if _, ok := symIDs[n.Key()]; ok {
			continue
		}
		if err := insert(symbolFor(n, ""), n); err != nil {
			return err
		}
	}

	// Page ordinals follow the table's page order.
	for _, page := range t.Pages() {
		for i, n := range page {
			if _, err := tx.Exec("UPDATE symbols SET page_ordinal = ? WHERE id = ?", i, symIDs[n.Key()]); err != nil {
				return fmt.Errorf("commit index: page ordinal: %w", err)
			}
		}
	}

	// 3. XRefs and name index
	for _, n := range names {
		e, _ := t.Lookup(n)
		id := symIDs[n.Key()]
		for _, l := range []struct {
			kind xref.Kind
			refs []xref.Ref
		}{
			{xref.Definition, e.Definitions},
			{xref.Call, e.Calls},
			{xref.Reference, e.References},
		} {
			for i, ref := range l.refs {
				if _, err := insertXRefTx(tx, &XRef{
					SymbolID: id, Kind: l.kind.String(), File: ref.File, Line: ref.Line,
					Scope: ref.Scope.String(), Ordinal: i,
				}); err != nil {
					return fmt.Errorf("commit index: xref %q: %w", n.String(), err)
				}
			}
		}
	}
	for key, id := range symIDs {
		for _, short := range xref.ShortNames(qname.ParseKey(key)) {
			if _, err := tx.Exec("INSERT OR IGNORE INTO name_index (short_name, symbol_id) VALUES (?, ?)", short, id); err != nil {
				return fmt.Errorf("commit index: name index: %w", err)
			}
		}
	}

	// 4. Metadata
	for k, v := range map[string]string{
		MetaIndexedAt: time.Now().UTC().Format(time.RFC3339),
		MetaPageCount: strconv.Itoa(len(t.Pages())),
		MetaPageSize:  strconv.Itoa(t.PageSize()),
		MetaSymbols:   strconv.Itoa(len(symIDs)),
	} {
		if err := setMetadataTx(tx, k, v); err != nil {
			return fmt.Errorf("commit index: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit index: %w", err)
	}
	return nil
}

func symbolFor(name qname.Name, lang qname.Language) *Symbol {
	display := name.String()
	if lang != "" {
		display = name.Format(lang)
	}
	return &Symbol{
		Key:       name.Key(),
		Name:      name.String(),
		Display:   display,
		ShortName: name.Last(),
		Language:  string(lang),
	}
}

func insertFileTx(tx *sql.Tx, f *File) (int64, error) {
	res, err := tx.Exec(
		"INSERT INTO files (path, abs_path, language, is_primary) VALUES (?, ?, ?, ?)",
		f.Path, f.AbsPath, f.Language, f.Primary,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	f.ID = id
	return id, nil
}

func insertIncludeTx(tx *sql.Tx, inc *Include) (int64, error) {
	res, err := tx.Exec(
		"INSERT INTO includes (file_id, target, ordinal, is_macro, is_next) VALUES (?, ?, ?, ?, ?)",
		inc.FileID, inc.Target, inc.Ordinal, inc.IsMacro, inc.IsNext,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	inc.ID = id
	return id, nil
}

func insertSymbolTx(tx *sql.Tx, sym *Symbol) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO symbols (qkey, name, display, short_name, kind, label, language, access,
			file_id, line, summary, comments, page, page_ordinal, weight, parent_symbol_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sym.Key, sym.Name, sym.Display, sym.ShortName, sym.Kind, sym.Label, sym.Language, sym.Access,
		sym.FileID, sym.Line, sym.Summary, marshalStrings(sym.Comments), sym.Page, sym.PageOrdinal,
		sym.Weight, sym.ParentSymbolID,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	sym.ID = id
	return id, nil
}

func insertXRefTx(tx *sql.Tx, x *XRef) (int64, error) {
	res, err := tx.Exec(
		"INSERT INTO xrefs (symbol_id, kind, file, line, scope, ordinal) VALUES (?, ?, ?, ?, ?, ?)",
		x.SymbolID, x.Kind, x.File, x.Line, x.Scope, x.Ordinal,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	x.ID = id
	return id, nil
}

func setMetadataTx(tx *sql.Tx, key, value string) error {
	_, err := tx.Exec(
		"INSERT INTO metadata (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set metadata %q: %w", key, err)
	}
	return nil
}
