// Package config declares the typed option surface of each pipeline stage
// and loads it from a docgraph.toml project file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// FileName is the project file looked up by Find.
const FileName = "docgraph.toml"

// DefaultPageSize is the xref page weight threshold.
const DefaultPageSize = 200

// ErrInvalidParam is matched by every *ParamError.
var ErrInvalidParam = errors.New("invalid parameter")

// ParamError names the stage option that failed validation.
type ParamError struct {
	Stage  string
	Param  string
	Value  any
	Reason string
}

func (e *ParamError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("config: %s.%s: %s", e.Stage, e.Param, e.Reason)
	}
	return fmt.Sprintf("config: %s.%s: %s (got %v)", e.Stage, e.Param, e.Reason, e.Value)
}

func (e *ParamError) Unwrap() error { return ErrInvalidParam }

// Languages are the front-end language names accepted in Parser.Languages.
var Languages = []string{"C", "C++", "Python", "IDL"}

// Parser configures the parse stage.
type Parser struct {
	// Languages restricts parsing to these front ends. Empty means all.
	Languages []string `toml:"languages"`
	// Workers bounds concurrent front-end runs. Zero means GOMAXPROCS.
	Workers int `toml:"workers"`
	// Scripts is a directory of front-end scripts used instead of the
	// embedded ones.
	Scripts string `toml:"scripts"`
	// Streams, when set, receives one .sxr reference stream per parsed file.
	Streams string `toml:"streams"`
}

// Linker configures the link stage.
type Linker struct {
	ScopeLookup bool `toml:"scope_lookup"`
}

// XRef configures cross-reference compilation.
type XRef struct {
	Streams      string `toml:"streams"`
	FilterLocals bool   `toml:"filter_locals"`
	PageSize     int    `toml:"page_size"`
	Workers      int    `toml:"workers"`
}

// Store configures the index database.
type Store struct {
	Path string `toml:"path"`
}

// Config is the whole project file.
type Config struct {
	Parser Parser `toml:"parser"`
	Linker Linker `toml:"linker"`
	XRef   XRef   `toml:"xref"`
	Store  Store  `toml:"store"`
}

// Default returns the configuration used when no project file exists.
func Default() Config {
	return Config{
		Linker: Linker{ScopeLookup: true},
		XRef:   XRef{PageSize: DefaultPageSize},
		Store:  Store{Path: ".docgraph/index.db"},
	}
}

func (p Parser) Validate() error {
	for _, l := range p.Languages {
		if CanonicalLanguage(l) == "" {
			return &ParamError{Stage: "parser", Param: "languages", Value: l,
				Reason: "unknown language, want one of " + strings.Join(Languages, ", ")}
		}
	}
	if p.Workers < 0 {
		return &ParamError{Stage: "parser", Param: "workers", Value: p.Workers, Reason: "must not be negative"}
	}
	return nil
}

func (Linker) Validate() error { return nil }

func (x XRef) Validate() error {
	if x.PageSize <= 0 {
		return &ParamError{Stage: "xref", Param: "page_size", Value: x.PageSize, Reason: "must be positive"}
	}
	if x.Workers < 0 {
		return &ParamError{Stage: "xref", Param: "workers", Value: x.Workers, Reason: "must not be negative"}
	}
	return nil
}

func (s Store) Validate() error {
	if strings.TrimSpace(s.Path) == "" {
		return &ParamError{Stage: "store", Param: "path", Reason: "required"}
	}
	return nil
}

// Validate checks every stage.
func (c Config) Validate() error {
	for _, v := range []interface{ Validate() error }{c.Parser, c.Linker, c.XRef, c.Store} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// CanonicalLanguage maps a case-insensitive language name to its canonical
// spelling, or "" when unknown.
func CanonicalLanguage(name string) string {
	for _, l := range Languages {
		if strings.EqualFold(l, name) {
			return l
		}
	}
	switch strings.ToLower(name) {
	case "cpp", "cxx":
		return "C++"
	}
	return ""
}

// Load decodes path over the defaults. Keys the file defines but no option
// recognises are reported as a *ParamError.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		key := undecoded[0]
		stage := key[0]
		param := strings.Join(key[1:], ".")
		if len(key) == 1 {
			stage, param = "", key[0]
		}
		return Config{}, fmt.Errorf("%s: %w", path, &ParamError{Stage: stage, Param: param, Reason: "unknown option"})
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Find walks from startDir towards the filesystem root looking for the
// project file.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false, nil
		}
		dir = parent
	}
}

// Resolve loads the project file named by path, or the one Find locates
// from startDir, falling back to Default.
func Resolve(path, startDir string) (Config, string, error) {
	if path == "" {
		found, ok, err := Find(startDir)
		if err != nil {
			return Config{}, "", err
		}
		if !ok {
			return Default(), "", nil
		}
		path = found
	}
	cfg, err := Load(path)
	if err != nil {
		return Config{}, "", err
	}
	return cfg, path, nil
}
