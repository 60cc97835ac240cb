package docgraph

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/jward/docgraph/internal/frontend"
	"github.com/jward/docgraph/internal/ir"
	"github.com/jward/docgraph/internal/xref"
)

// ParseResult is the merged IR of a parse run.
type ParseResult struct {
	IR *ir.IR
	// Files counts the files parsed successfully.
	Files int
	// Failed lists the files whose front end returned an error.
	Failed []string
	// Warnings holds one error per failed file.
	Warnings *multierror.Error
	// Streams counts the reference streams written.
	Streams int
}

// Err returns the per-file failures as an error, or nil.
func (r *ParseResult) Err() error {
	return r.Warnings.ErrorOrNil()
}

// ParseDirectory discovers the source files under root and parses them.
func (e *Engine) ParseDirectory(ctx context.Context, root string) (*ParseResult, error) {
	return e.parseDirectory(ctx, root, e.cfg.Parser.Streams)
}

func (e *Engine) parseDirectory(ctx context.Context, root, streams string) (*ParseResult, error) {
	files, err := frontend.Discover(root, e.registry)
	if err != nil {
		return nil, fmt.Errorf("docgraph: discover %s: %w", root, err)
	}
	return e.parse(ctx, root, files, streams)
}

// Parse parses the given files. Paths are made relative to the current
// directory to form registry keys; files without a front end are skipped.
func (e *Engine) Parse(ctx context.Context, paths []string) (*ParseResult, error) {
	var rels []string
	for _, p := range paths {
		if _, ok := e.registry.For(p); !ok {
			e.log.Debug("no front end", "file", p)
			continue
		}
		rel := filepath.ToSlash(filepath.Clean(p))
		if filepath.IsAbs(p) {
			if wd, err := os.Getwd(); err == nil {
				if r, err := filepath.Rel(wd, p); err == nil {
					rel = filepath.ToSlash(r)
				}
			}
		}
		rels = append(rels, rel)
	}
	return e.parse(ctx, ".", rels, e.cfg.Parser.Streams)
}

// parse runs the front ends over files with a bounded worker group and
// merges the units in input order, so the result does not depend on
// scheduling. A front-end failure skips that file; a context error aborts.
func (e *Engine) parse(ctx context.Context, root string, files []string, streams string) (*ParseResult, error) {
	start := time.Now()
	units := make([]*frontend.Unit, len(files))
	errs := make([]error, len(files))

	workers := e.cfg.Parser.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, rel := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			unit, err := e.parseFile(gctx, root, rel, streams)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				errs[i] = fmt.Errorf("%s: %w", rel, err)
				return nil
			}
			units[i] = unit
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("docgraph: parse: %w", err)
	}

	res := &ParseResult{IR: ir.New()}
	for i, u := range units {
		if errs[i] != nil {
			res.Failed = append(res.Failed, files[i])
			res.Warnings = multierror.Append(res.Warnings, errs[i])
			e.log.Warn("parse failed", "file", files[i], "err", errs[i])
			continue
		}
		res.IR.Merge(u.IR)
		res.Files++
		if streams != "" && len(u.Anchors) > 0 {
			res.Streams++
		}
	}
	e.log.Info("parsed", "files", res.Files, "failed", len(res.Failed),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return res, nil
}

// parseFile runs one front end and, when streams is set, writes the file's
// reference stream next to the others.
func (e *Engine) parseFile(ctx context.Context, root, rel, streams string) (*frontend.Unit, error) {
	fe, ok := e.registry.For(rel)
	if !ok {
		return nil, fmt.Errorf("no front end for %s", filepath.Ext(rel))
	}
	src, err := frontend.Load(root, rel)
	if err != nil {
		return nil, err
	}
	unit, err := fe.Parse(ctx, src)
	if err != nil {
		return nil, err
	}
	if streams != "" && len(unit.Anchors) > 0 {
		if err := writeStream(streams, src, unit, fe); err != nil {
			return nil, err
		}
	}
	return unit, nil
}

func writeStream(dir string, src frontend.Source, unit *frontend.Unit, fe frontend.Frontend) error {
	var buf bytes.Buffer
	if err := xref.WriteStream(&buf, src.Content, unit.Anchors, fe.Language()); err != nil {
		return fmt.Errorf("write stream: %w", err)
	}
	path := filepath.Join(dir, filepath.FromSlash(src.Path)+xref.StreamExt)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("write stream: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write stream: %w", err)
	}
	return nil
}
