package store

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"fortio.org/safecast"

	"github.com/jward/docgraph/internal/qname"
)

// --- File queries ---

const fileCols = "id, path, COALESCE(abs_path, ''), language, is_primary"

func scanFile(scanner interface{ Scan(...any) error }) (*File, error) {
	f := &File{}
	if err := scanner.Scan(&f.ID, &f.Path, &f.AbsPath, &f.Language, &f.Primary); err != nil {
		return nil, err
	}
	return f, nil
}

// FileByPath returns the file registered under path, or nil.
func (s *Store) FileByPath(path string) (*File, error) {
	f, err := scanFile(s.db.QueryRow("SELECT "+fileCols+" FROM files WHERE path = ?", path))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by path: %w", err)
	}
	return f, nil
}

// FileByID returns the file with the given row id, or nil.
func (s *Store) FileByID(id int64) (*File, error) {
	f, err := scanFile(s.db.QueryRow("SELECT "+fileCols+" FROM files WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by id: %w", err)
	}
	return f, nil
}

// Files returns every file in registry order.
func (s *Store) Files() ([]*File, error) {
	rows, err := s.db.Query("SELECT " + fileCols + " FROM files ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("files: %w", err)
	}
	defer rows.Close()
	var files []*File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// IncludesByFile returns the include edges of a file in source order.
func (s *Store) IncludesByFile(fileID int64) ([]*Include, error) {
	rows, err := s.db.Query(
		"SELECT id, file_id, target, ordinal, is_macro, is_next FROM includes WHERE file_id = ? ORDER BY ordinal", fileID,
	)
	if err != nil {
		return nil, fmt.Errorf("includes by file: %w", err)
	}
	defer rows.Close()
	var incs []*Include
	for rows.Next() {
		inc := &Include{}
		if err := rows.Scan(&inc.ID, &inc.FileID, &inc.Target, &inc.Ordinal, &inc.IsMacro, &inc.IsNext); err != nil {
			return nil, fmt.Errorf("scan include: %w", err)
		}
		incs = append(incs, inc)
	}
	return incs, rows.Err()
}

// --- Symbol queries ---

// SymbolCols is the column list for symbol queries, exported for use by QueryBuilder.
const SymbolCols = `symbols.id, symbols.qkey, symbols.name, symbols.display, symbols.short_name,
	symbols.kind, COALESCE(symbols.label, ''), COALESCE(symbols.language, ''), COALESCE(symbols.access, ''),
	symbols.file_id, COALESCE(symbols.line, 0), COALESCE(symbols.summary, ''), COALESCE(symbols.comments, ''),
	symbols.page, COALESCE(symbols.page_ordinal, 0), symbols.weight, symbols.parent_symbol_id`

// ScanSymbolRow scans a single row selected with SymbolCols.
func ScanSymbolRow(scanner interface{ Scan(...any) error }) (*Symbol, error) {
	sym := &Symbol{}
	var comments string
	var page sql.NullInt64
	err := scanner.Scan(
		&sym.ID, &sym.Key, &sym.Name, &sym.Display, &sym.ShortName, &sym.Kind, &sym.Label,
		&sym.Language, &sym.Access, &sym.FileID, &sym.Line, &sym.Summary,
		&comments, &page, &sym.PageOrdinal, &sym.Weight, &sym.ParentSymbolID,
	)
	if err != nil {
		return nil, err
	}
	sym.Comments = unmarshalStrings(comments)
	if page.Valid {
		p, err := safecast.Conv[int](page.Int64)
		if err != nil {
			return nil, fmt.Errorf("symbol %q page: %w", sym.Name, err)
		}
		sym.Page = &p
	}
	return sym, nil
}

func (s *Store) querySymbols(query string, args ...any) ([]*Symbol, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var symbols []*Symbol
	for rows.Next() {
		sym, err := ScanSymbolRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

// SymbolByName returns the symbol with the given qualified name, or nil.
func (s *Store) SymbolByName(name qname.Name) (*Symbol, error) {
	sym, err := ScanSymbolRow(s.db.QueryRow("SELECT "+SymbolCols+" FROM symbols WHERE qkey = ?", name.Key()))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("symbol by name: %w", err)
	}
	return sym, nil
}

// SymbolByID returns the symbol with the given id, or nil.
func (s *Store) SymbolByID(id int64) (*Symbol, error) {
	sym, err := ScanSymbolRow(s.db.QueryRow("SELECT "+SymbolCols+" FROM symbols WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("symbol by id: %w", err)
	}
	return sym, nil
}

// SymbolsByShortName returns the symbols indexed under a short name: a last
// segment or a bare function name. Results are ordered by qualified name,
// segment by segment.
func (s *Store) SymbolsByShortName(short string) ([]*Symbol, error) {
	syms, err := s.querySymbols(
		"SELECT "+SymbolCols+" FROM symbols JOIN name_index ON name_index.symbol_id = symbols.id WHERE name_index.short_name = ? ORDER BY symbols.qkey",
		short,
	)
	if err != nil {
		return nil, fmt.Errorf("symbols by short name: %w", err)
	}
	return syms, nil
}

// ChildSymbols returns the symbols whose parent is parentID, in insertion
// order.
func (s *Store) ChildSymbols(parentID int64) ([]*Symbol, error) {
	syms, err := s.querySymbols("SELECT "+SymbolCols+" FROM symbols WHERE parent_symbol_id = ? ORDER BY id", parentID)
	if err != nil {
		return nil, fmt.Errorf("child symbols: %w", err)
	}
	return syms, nil
}

// SymbolsOnPage returns the symbols of an xref page in page order.
func (s *Store) SymbolsOnPage(page int) ([]*Symbol, error) {
	syms, err := s.querySymbols("SELECT "+SymbolCols+" FROM symbols WHERE page = ? ORDER BY page_ordinal", page)
	if err != nil {
		return nil, fmt.Errorf("symbols on page: %w", err)
	}
	return syms, nil
}

// PageCount returns the number of xref pages.
func (s *Store) PageCount() (int, error) {
	var n sql.NullInt64
	if err := s.db.QueryRow("SELECT MAX(page) FROM symbols").Scan(&n); err != nil {
		return 0, fmt.Errorf("page count: %w", err)
	}
	if !n.Valid {
		return 0, nil
	}
	count, err := safecast.Conv[int](n.Int64 + 1)
	if err != nil {
		return 0, fmt.Errorf("page count: %w", err)
	}
	return count, nil
}

// PageOf returns the xref page holding name.
func (s *Store) PageOf(name qname.Name) (int, bool, error) {
	sym, err := s.SymbolByName(name)
	if err != nil {
		return 0, false, err
	}
	if sym == nil || sym.Page == nil {
		return 0, false, nil
	}
	return *sym.Page, true, nil
}

// SearchSymbols returns symbols whose display name starts with prefix,
// ordered by name, with the total number of matches. A limit of 0 means no
// limit.
func (s *Store) SearchSymbols(prefix, kind string, offset, limit int) ([]*Symbol, int, error) {
	where := "display LIKE ? ESCAPE '\\'"
	args := []any{escapeLike(prefix) + "%"}
	if kind != "" {
		where += " AND kind = ?"
		args = append(args, kind)
	}

	var total int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM symbols WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("search symbols: count: %w", err)
	}

	q := "SELECT " + SymbolCols + " FROM symbols WHERE " + where + " ORDER BY name, id"
	if limit > 0 {
		q += " LIMIT " + strconv.Itoa(limit) + " OFFSET " + strconv.Itoa(offset)
	} else if offset > 0 {
		q += " LIMIT -1 OFFSET " + strconv.Itoa(offset)
	}
	syms, err := s.querySymbols(q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search symbols: %w", err)
	}
	return syms, total, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// --- XRef queries ---

// XRefsBySymbol returns the usage records of a symbol, definitions first,
// then calls, then references, each in stored order. An empty kind returns
// all kinds.
func (s *Store) XRefsBySymbol(symbolID int64, kind string) ([]*XRef, error) {
	q := `SELECT id, symbol_id, kind, file, line, COALESCE(scope, ''), ordinal FROM xrefs WHERE symbol_id = ?`
	args := []any{symbolID}
	if kind != "" {
		q += " AND kind = ?"
		args = append(args, kind)
	}
	q += ` ORDER BY CASE kind WHEN 'definition' THEN 0 WHEN 'call' THEN 1 ELSE 2 END, ordinal`

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("xrefs by symbol: %w", err)
	}
	defer rows.Close()
	var out []*XRef
	for rows.Next() {
		x := &XRef{}
		if err := rows.Scan(&x.ID, &x.SymbolID, &x.Kind, &x.File, &x.Line, &x.Scope, &x.Ordinal); err != nil {
			return nil, fmt.Errorf("scan xref: %w", err)
		}
		out = append(out, x)
	}
	return out, rows.Err()
}

// XRefsByFile returns every record located in file, ordered by line.
func (s *Store) XRefsByFile(file string) ([]*XRef, error) {
	rows, err := s.db.Query(
		`SELECT id, symbol_id, kind, file, line, COALESCE(scope, ''), ordinal FROM xrefs WHERE file = ? ORDER BY line, id`, file,
	)
	if err != nil {
		return nil, fmt.Errorf("xrefs by file: %w", err)
	}
	defer rows.Close()
	var out []*XRef
	for rows.Next() {
		x := &XRef{}
		if err := rows.Scan(&x.ID, &x.SymbolID, &x.Kind, &x.File, &x.Line, &x.Scope, &x.Ordinal); err != nil {
			return nil, fmt.Errorf("scan xref: %w", err)
		}
		out = append(out, x)
	}
	return out, rows.Err()
}

// --- Metadata ---

// SetMetadata stores a metadata value.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO metadata (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set metadata %q: %w", key, err)
	}
	return nil
}

// Metadata returns a metadata value and whether it is set.
func (s *Store) Metadata(key string) (string, bool, error) {
	var v string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("metadata %q: %w", key, err)
	}
	return v, true, nil
}
