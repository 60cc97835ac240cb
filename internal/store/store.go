package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite data access layer for the compiled cross-reference
// index.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates all tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS files (
  id              INTEGER PRIMARY KEY,
  path            TEXT NOT NULL UNIQUE,
  abs_path        TEXT,
  language        TEXT NOT NULL,
  is_primary      BOOLEAN DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS includes (
  id              INTEGER PRIMARY KEY,
  file_id         INTEGER NOT NULL REFERENCES files(id),
  target          TEXT NOT NULL,
  ordinal         INTEGER NOT NULL,
  is_macro        BOOLEAN DEFAULT FALSE,
  is_next         BOOLEAN DEFAULT FALSE
);

-- One row per qualified name: every declaration of the linked graph plus
-- every name that only appears in reference streams (kind is then empty).
CREATE TABLE IF NOT EXISTS symbols (
  id              INTEGER PRIMARY KEY,
  qkey            TEXT NOT NULL UNIQUE,
  name            TEXT NOT NULL,
  display         TEXT NOT NULL,
  short_name      TEXT NOT NULL,
  kind            TEXT NOT NULL DEFAULT '',
  label           TEXT,
  language        TEXT,
  access          TEXT,
  file_id         INTEGER REFERENCES files(id),
  line            INTEGER,
  summary         TEXT,
  comments        TEXT,
  page            INTEGER,
  page_ordinal    INTEGER,
  weight          INTEGER NOT NULL DEFAULT 0,
  parent_symbol_id INTEGER REFERENCES symbols(id)
);

CREATE TABLE IF NOT EXISTS xrefs (
  id              INTEGER PRIMARY KEY,
  symbol_id       INTEGER NOT NULL REFERENCES symbols(id),
  kind            TEXT NOT NULL,
  file            TEXT NOT NULL,
  line            INTEGER NOT NULL,
  scope           TEXT,
  ordinal         INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS name_index (
  short_name      TEXT NOT NULL,
  symbol_id       INTEGER NOT NULL REFERENCES symbols(id),
  PRIMARY KEY (short_name, symbol_id)
);

CREATE TABLE IF NOT EXISTS metadata (
  key             TEXT PRIMARY KEY,
  value           TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_files_language ON files(language);
CREATE INDEX IF NOT EXISTS idx_includes_file ON includes(file_id);
CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name);
CREATE INDEX IF NOT EXISTS idx_symbols_display ON symbols(display);
CREATE INDEX IF NOT EXISTS idx_symbols_kind ON symbols(kind);
CREATE INDEX IF NOT EXISTS idx_symbols_page ON symbols(page);
CREATE INDEX IF NOT EXISTS idx_symbols_file ON symbols(file_id);
CREATE INDEX IF NOT EXISTS idx_xrefs_symbol ON xrefs(symbol_id);
CREATE INDEX IF NOT EXISTS idx_xrefs_file ON xrefs(file);
CREATE INDEX IF NOT EXISTS idx_name_index_symbol ON name_index(symbol_id);
`

// Clear removes the whole index in one transaction.
func (s *Store) Clear() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()
	if err := clearTx(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// clearTx deletes in reverse-dependency order to respect FK constraints.
func clearTx(tx *sql.Tx) error {
	for _, q := range []string{
		"DELETE FROM name_index",
		"DELETE FROM xrefs",
		"UPDATE symbols SET parent_symbol_id = NULL",
		"DELETE FROM symbols",
		"DELETE FROM includes",
		"DELETE FROM files",
	} {
		if _, err := tx.Exec(q); err != nil {
			return fmt.Errorf("clear index: %w", err)
		}
	}
	return nil
}
