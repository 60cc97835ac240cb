package docgraph

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jward/docgraph/internal/config"
	"github.com/jward/docgraph/internal/frontend"
	"github.com/jward/docgraph/internal/ir"
	"github.com/jward/docgraph/internal/link"
	"github.com/jward/docgraph/internal/pipeline"
	"github.com/jward/docgraph/internal/qname"
	"github.com/jward/docgraph/internal/runtime"
	"github.com/jward/docgraph/internal/store"
	"github.com/jward/docgraph/internal/xref"
	"github.com/jward/docgraph/scripts"
)

// ErrNoStore is returned by operations that need the index database when
// the Engine was created without one.
var ErrNoStore = errors.New("docgraph: engine has no store")

// Metadata keys written by Index next to the store's own.
const (
	MetaRoot       = "root"
	MetaFiles      = "file_count"
	MetaUnresolved = "unresolved_count"
)

// Engine orchestrates the pipeline: discovery, parsing, linking, xref
// compilation and commit to the index store.
type Engine struct {
	store    *store.Store
	cfg      config.Config
	runtime  *runtime.Runtime
	registry *frontend.Registry
	log      *slog.Logger

	scriptsDir string
	scriptsFS  fs.FS
	languages  []qname.Language // nil means all languages
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig sets the stage configuration. Defaults to config.Default().
func WithConfig(cfg config.Config) Option {
	return func(e *Engine) {
		e.cfg = cfg
	}
}

// WithLogger sets the logger passed to every stage. Defaults to
// slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithLanguages restricts which front ends the Engine runs. Names are
// matched case-insensitively against config.Languages.
func WithLanguages(languages ...string) Option {
	return func(e *Engine) {
		e.cfg.Parser.Languages = languages
	}
}

// WithParallel bounds the number of files parsed and streams compiled
// concurrently. Zero means GOMAXPROCS.
func WithParallel(n int) Option {
	return func(e *Engine) {
		e.cfg.Parser.Workers = n
		e.cfg.XRef.Workers = n
	}
}

// WithScriptsFS loads front-end scripts from fsys instead of the embedded
// set.
func WithScriptsFS(fsys fs.FS) Option {
	return func(e *Engine) {
		e.scriptsFS = fsys
	}
}

// WithScriptsDir loads front-end scripts from a directory on disk.
func WithScriptsDir(dir string) Option {
	return func(e *Engine) {
		e.scriptsDir = dir
	}
}

// New creates an Engine. dbPath names the SQLite index; an empty dbPath
// creates an Engine that can parse, link and compile but not index or
// query.
func New(dbPath string, opts ...Option) (*Engine, error) {
	e := &Engine{
		cfg: config.Default(),
		log: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cfg.Parser.Scripts != "" && e.scriptsDir == "" && e.scriptsFS == nil {
		e.scriptsDir = e.cfg.Parser.Scripts
	}
	if err := e.cfg.Parser.Validate(); err != nil {
		return nil, fmt.Errorf("docgraph: %w", err)
	}
	for _, l := range e.cfg.Parser.Languages {
		e.languages = append(e.languages, qname.Language(config.CanonicalLanguage(l)))
	}

	var rtOpts []runtime.RuntimeOption
	switch {
	case e.scriptsFS != nil:
		rtOpts = append(rtOpts, runtime.WithRuntimeFS(e.scriptsFS))
	case e.scriptsDir == "":
		rtOpts = append(rtOpts, runtime.WithRuntimeFS(scripts.FS))
	}
	rtOpts = append(rtOpts, runtime.WithRuntimeLogger(e.log))
	e.runtime = runtime.NewRuntime(e.scriptsDir, rtOpts...)

	reg := frontend.DefaultRegistry()
	reg.Register(runtime.NewScriptFrontend(e.runtime, qname.LangIDL, runtime.FrontendScriptPath("idl")), ".idl")
	e.registry = reg.Restrict(e.languages...)

	if dbPath != "" {
		if dir := filepath.Dir(dbPath); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("docgraph: create store dir: %w", err)
			}
		}
		s, err := store.NewStore(dbPath)
		if err != nil {
			return nil, fmt.Errorf("docgraph: create store: %w", err)
		}
		if err := s.Migrate(); err != nil {
			s.Close()
			return nil, fmt.Errorf("docgraph: migrate: %w", err)
		}
		e.store = s
	}
	return e, nil
}

// Close releases the Engine's database resources.
func (e *Engine) Close() error {
	if e.store == nil {
		return nil
	}
	return e.store.Close()
}

// Store returns the underlying store, or nil.
func (e *Engine) Store() *store.Store {
	return e.store
}

// Config returns the Engine's stage configuration.
func (e *Engine) Config() config.Config {
	return e.cfg
}

// Extensions returns the file extensions the Engine parses.
func (e *Engine) Extensions() []string {
	return e.registry.Extensions()
}

// Link deduplicates r in place and resolves its type references.
func (e *Engine) Link(ctx context.Context, r *ir.IR) (*link.Report, error) {
	stage := &pipeline.LinkStage{Config: e.cfg.Linker, Logger: e.log}
	runner := &pipeline.Runner{Stages: []pipeline.Stage{stage}, Logger: e.log}
	if _, err := runner.Run(ctx, r); err != nil {
		return nil, err
	}
	return stage.Report, nil
}

// LinkAll merges the IRs in order and links the result.
func (e *Engine) LinkAll(ctx context.Context, irs ...*ir.IR) (*ir.IR, *link.Report, error) {
	stage := &pipeline.LinkStage{Config: e.cfg.Linker, Logger: e.log}
	runner := &pipeline.Runner{Stages: []pipeline.Stage{stage}, Logger: e.log}
	out, err := runner.Run(ctx, irs...)
	if err != nil {
		return nil, nil, err
	}
	return out, stage.Report, nil
}

// CompileXRef builds the cross-reference table of a linked IR from the
// streams under dir.
func (e *Engine) CompileXRef(ctx context.Context, r *ir.IR, dir string) (*xref.Table, *xref.Report, error) {
	if err := e.cfg.XRef.Validate(); err != nil {
		return nil, nil, fmt.Errorf("docgraph: %w", err)
	}
	return xref.Compile(ctx, r, xref.DirSource(dir),
		xref.WithFilterLocals(e.cfg.XRef.FilterLocals),
		xref.WithPageSize(e.cfg.XRef.PageSize),
		xref.WithParallel(e.cfg.XRef.Workers),
		xref.WithLogger(e.log),
	)
}

// Commit replaces the stored index with r and t.
func (e *Engine) Commit(r *ir.IR, t *xref.Table) error {
	if e.store == nil {
		return ErrNoStore
	}
	if err := e.store.CommitIndex(r, t); err != nil {
		return fmt.Errorf("docgraph: %w", err)
	}
	return nil
}

// IndexResult summarises an Index run.
type IndexResult struct {
	Parse   *ParseResult
	Link    *link.Report
	XRef    *xref.Report
	Symbols int
	Pages   int
	Elapsed time.Duration
}

// Index runs the whole pipeline over root and commits the result. Reference
// streams are read from the configured xref streams directory; when none is
// configured the streams written while parsing are compiled from a
// temporary directory.
func (e *Engine) Index(ctx context.Context, root string) (*IndexResult, error) {
	if e.store == nil {
		return nil, ErrNoStore
	}
	start := time.Now()

	streams := e.cfg.XRef.Streams
	if streams == "" {
		streams = e.cfg.Parser.Streams
	}
	parseStreams := e.cfg.Parser.Streams
	if streams == "" {
		tmp, err := os.MkdirTemp("", "docgraph-sxr-")
		if err != nil {
			return nil, fmt.Errorf("docgraph: streams dir: %w", err)
		}
		defer os.RemoveAll(tmp)
		streams, parseStreams = tmp, tmp
	}

	pr, err := e.parseDirectory(ctx, root, parseStreams)
	if err != nil {
		return nil, err
	}
	linkRep, err := e.Link(ctx, pr.IR)
	if err != nil {
		return nil, err
	}
	table, xrefRep, err := e.CompileXRef(ctx, pr.IR, streams)
	if err != nil {
		return nil, err
	}
	if err := e.Commit(pr.IR, table); err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	for k, v := range map[string]string{
		MetaRoot:       abs,
		MetaFiles:      strconv.Itoa(pr.Files),
		MetaUnresolved: strconv.Itoa(len(linkRep.Unresolved)),
	} {
		if err := e.store.SetMetadata(k, v); err != nil {
			return nil, fmt.Errorf("docgraph: %w", err)
		}
	}

	res := &IndexResult{
		Parse:   pr,
		Link:    linkRep,
		XRef:    xrefRep,
		Symbols: table.Len(),
		Pages:   len(table.Pages()),
		Elapsed: time.Since(start),
	}
	e.log.Info("indexed", "root", root, "files", pr.Files, "names", res.Symbols,
		"pages", res.Pages, "elapsed", res.Elapsed.Round(time.Millisecond))
	return res, nil
}

// Query returns a QueryBuilder over the index store.
func (e *Engine) Query() *QueryBuilder {
	return &QueryBuilder{store: e.store}
}
