package xref

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/jward/docgraph/internal/ir"
)

// StreamExt is appended to a file's registry key to name its stream.
const StreamExt = ".sxr"

// StreamSource opens the reference stream of a source file. A missing
// stream is reported with an error matching fs.ErrNotExist.
type StreamSource interface {
	Open(file string) (io.ReadCloser, error)
}

// DirSource reads streams from <dir>/<file>.sxr.
type DirSource string

func (d DirSource) Open(file string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(string(d), filepath.FromSlash(file)+StreamExt))
}

// FSSource reads streams from <file>.sxr inside a file system.
type FSSource struct {
	FS fs.FS
}

func (s FSSource) Open(file string) (io.ReadCloser, error) {
	return s.FS.Open(file + StreamExt)
}

// Report summarises a compilation.
type Report struct {
	// Files counts the streams that were parsed and merged.
	Files int
	// Missing lists primary files without a stream.
	Missing []string
	// Skipped lists files whose stream could not be parsed.
	Skipped []string
	// Warnings holds one error per skipped file.
	Warnings *multierror.Error
}

// Err returns the accumulated warnings as an error, or nil.
func (r *Report) Err() error {
	return r.Warnings.ErrorOrNil()
}

type compiler struct {
	log          *slog.Logger
	filterLocals bool
	pageSize     int
	parallel     int
}

// Option configures Compile.
type Option func(*compiler)

// WithFilterLocals drops function-local records.
func WithFilterLocals(filter bool) Option {
	return func(c *compiler) { c.filterLocals = filter }
}

// WithPageSize sets the page weight threshold.
func WithPageSize(n int) Option {
	return func(c *compiler) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithParallel sets how many streams are parsed at once. Values below 1
// mean one per CPU.
func WithParallel(n int) Option {
	return func(c *compiler) { c.parallel = n }
}

// WithLogger sets the logger receiving per-file warnings.
func WithLogger(l *slog.Logger) Option {
	return func(c *compiler) {
		if l != nil {
			c.log = l
		}
	}
}

type parsed struct {
	table   *Table
	missing bool
	err     error
}

// Compile parses the stream of every primary file in r and merges the
// results, in file registry order, into one indexed table. A stream that
// cannot be parsed is skipped and reported; the rest still compile.
func Compile(ctx context.Context, r *ir.IR, src StreamSource, opts ...Option) (*Table, *Report, error) {
	c := &compiler{
		log:      slog.Default(),
		pageSize: DefaultPageSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.parallel < 1 {
		c.parallel = runtime.NumCPU()
	}

	files := r.PrimaryFiles()
	results := make([]parsed, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.parallel)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = c.parse(f, src)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("xref: %w", err)
	}

	table := NewTable()
	table.SetPageSize(c.pageSize)
	rep := &Report{}
	for i, res := range results {
		name := files[i].Name
		switch {
		case res.missing:
			rep.Missing = append(rep.Missing, name)
		case res.err != nil:
			c.log.Warn("skipping reference stream", "file", name, "err", res.err)
			rep.Skipped = append(rep.Skipped, name)
			rep.Warnings = multierror.Append(rep.Warnings, res.err)
		default:
			table.Merge(res.table)
			rep.Files++
		}
	}
	table.GenerateIndex()
	return table, rep, nil
}

func (c *compiler) parse(f *ir.SourceFile, src StreamSource) parsed {
	rc, err := src.Open(f.Name)
	if errors.Is(err, fs.ErrNotExist) {
		return parsed{missing: true}
	}
	if err != nil {
		return parsed{err: fmt.Errorf("open stream for %s: %w", f.Name, err)}
	}
	defer rc.Close()

	t, err := ParseStream(rc, ParseOptions{
		File:         f.Name,
		Language:     f.Language,
		FilterLocals: c.filterLocals,
	})
	if err != nil {
		return parsed{err: err}
	}
	return parsed{table: t}
}
