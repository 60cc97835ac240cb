package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jward/docgraph"
	"github.com/jward/docgraph/internal/config"
	"github.com/jward/docgraph/internal/logging"
)

var (
	flagDB      string
	flagFormat  string
	flagConfig  string
	flagVerbose bool
	flagNoColor bool
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

// Resolved before every command by setup.
var (
	cfg    = config.Default()
	logger = logging.Discard()
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "%s %s\n", color.RedString("Error:"), err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "docgraph",
	Short: "Build a linked declaration graph and cross-reference index from source",
	Long: "docgraph parses C, C++, Python and IDL sources into per-file declaration graphs, " +
		"links them into one graph, and compiles a paged cross-reference index into a SQLite database.",
	SilenceErrors:     true,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	// No Run: prints help by default.
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagDB, "db", "", "database path (default: store.path from docgraph.toml, relative to repo root)")
	pf.StringVar(&flagFormat, "format", "json", "output format: json|text")
	pf.StringVar(&flagConfig, "config", "", "project file (default: nearest docgraph.toml)")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "log debug output to stderr")
	pf.BoolVar(&flagNoColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(linkCmd)
	rootCmd.AddCommand(xrefCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(tocCmd)
}

// setup validates the global flags, builds the logger and loads the
// project file.
func setup(cmd *cobra.Command, args []string) error {
	if err := validateFormat(flagFormat); err != nil {
		return err
	}
	if flagNoColor {
		color.NoColor = true
	}
	logger = logging.New(os.Stderr, logging.Options{Verbose: flagVerbose, NoColor: color.NoColor})

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting cwd: %w", err)
	}
	c, path, err := config.Resolve(flagConfig, cwd)
	if err != nil {
		return err
	}
	if path != "" {
		logger.Debug("loaded config", "path", path)
	}
	cfg = c
	return nil
}

// newEngine opens an Engine over dbPath with the resolved configuration.
// An empty dbPath gives an Engine without a store.
func newEngine(dbPath string, opts ...docgraph.Option) (*docgraph.Engine, error) {
	base := []docgraph.Option{docgraph.WithConfig(cfg), docgraph.WithLogger(logger)}
	e, err := docgraph.New(dbPath, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}
	return e, nil
}

// resolveTargetDir returns the absolute path of the directory to index.
func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}

// findRepoRoot walks up from startDir looking for a .git directory.
// Returns the directory containing .git, or startDir if not found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return startDir
		}
		dir = parent
	}
}

// resolveDBPath returns the database path from the --db flag or the
// configured store path, relative to repoRoot.
func resolveDBPath(repoRoot string) string {
	p := flagDB
	if p == "" {
		p = cfg.Store.Path
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(repoRoot, p)
}

// splitList splits a comma-separated flag value, dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
