package runtime

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"
)

const scriptExt = ".risor"

// Runtime evaluates front-end scripts in a Risor VM. Scripts come either
// from an fs.FS (normally the embedded scripts package) or from a
// directory on disk.
type Runtime struct {
	dir  string
	fsys fs.FS
	log  *slog.Logger
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeFS reads scripts, and resolves their imports, from fsys. It
// takes precedence over the scripts directory.
func WithRuntimeFS(fsys fs.FS) RuntimeOption {
	return func(r *Runtime) { r.fsys = fsys }
}

// WithRuntimeLogger sets the logger behind the log global.
func WithRuntimeLogger(l *slog.Logger) RuntimeOption {
	return func(r *Runtime) { r.log = l }
}

// NewRuntime returns a Runtime reading scripts from dir unless an FS is
// configured.
func NewRuntime(dir string, opts ...RuntimeOption) *Runtime {
	r := &Runtime{dir: dir, log: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FrontendScriptPath is where the script for a language lives relative
// to the script root, e.g. frontend/idl.risor.
func FrontendScriptPath(language string) string {
	return filepath.Join("frontend", strings.ToLower(language)+scriptExt)
}

// LoadScript returns the source of the script at p. Within an FS, p is
// taken relative to its root even when it starts with a slash.
func (r *Runtime) LoadScript(p string) (string, error) {
	if r.fsys != nil {
		name := path.Clean(strings.TrimPrefix(filepath.ToSlash(p), "/"))
		data, err := fs.ReadFile(r.fsys, name)
		if err != nil {
			return "", fmt.Errorf("runtime: reading script %s from fs: %w", name, err)
		}
		return string(data), nil
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(r.dir, p)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return "", fmt.Errorf("runtime: reading script: %w", err)
	}
	return string(data), nil
}

// RunScript evaluates the script at p. extra globals are added to, and
// may shadow, the host functions.
func (r *Runtime) RunScript(ctx context.Context, p string, extra map[string]any) error {
	src, err := r.LoadScript(p)
	if err != nil {
		return err
	}
	return r.eval(ctx, p, src, extra)
}

// RunSource evaluates src as an unnamed script.
func (r *Runtime) RunSource(ctx context.Context, src string, extra map[string]any) error {
	return r.eval(ctx, "<inline>", src, extra)
}

func (r *Runtime) eval(ctx context.Context, label, src string, extra map[string]any) error {
	trees := newTreeSet()
	defer trees.release()

	globals := r.hostGlobals(trees, label)
	for name, v := range extra {
		globals[name] = v
	}

	opts := make([]risor.Option, 0, len(globals)+1)
	names := make([]string, 0, len(globals))
	for name, v := range globals {
		opts = append(opts, risor.WithGlobal(name, v))
		names = append(names, name)
	}
	if imp := r.importer(names); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}

	if _, err := risor.Eval(ctx, src, opts...); err != nil {
		return fmt.Errorf("runtime: script %s: %w", label, err)
	}
	return nil
}

// hostGlobals returns the globals every script sees, bound to trees.
func (r *Runtime) hostGlobals(trees *treeSet, label string) map[string]any {
	return map[string]any{
		"parse_src":     trees.parseSrc(),
		"node_text":     trees.nodeText(),
		"node_child":    nodeChild(),
		"node_pos":      nodePos(),
		"node_comments": trees.nodeComments(),
		"query":         trees.query(),
		"log":           newLogProxy(r.log.With("script", label)),
	}
}

// importer resolves import statements next to the scripts. Imported
// modules are compiled knowing the global names so they can call the
// host functions.
func (r *Runtime) importer(globals []string) importer.Importer {
	switch {
	case r.fsys != nil:
		return importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: globals,
			SourceFS:    r.fsys,
			Extensions:  []string{scriptExt},
		})
	case r.dir != "":
		return importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: globals,
			SourceDir:   r.dir,
			Extensions:  []string{scriptExt},
		})
	default:
		return nil
	}
}

func newLogProxy(l *slog.Logger) object.Object {
	p, err := object.NewProxy(&scriptLog{l: l})
	if err != nil {
		panic(fmt.Sprintf("runtime: log proxy: %v", err))
	}
	return p
}
