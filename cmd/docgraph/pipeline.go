package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/jward/docgraph"
	"github.com/jward/docgraph/internal/ir"
)

var (
	flagOutput       string
	flagLanguages    string
	flagScriptsDir   string
	flagStreams      string
	flagFilterLocals bool
	flagPageSize     int
	flagWorkers      int
	flagForce        bool
)

// applyStageFlags copies the stage flags set on cmd over the project
// configuration.
func applyStageFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	if f.Changed("languages") {
		cfg.Parser.Languages = splitList(flagLanguages)
	}
	if f.Changed("scripts-dir") {
		cfg.Parser.Scripts = flagScriptsDir
	}
	if f.Changed("streams") {
		cfg.Parser.Streams = flagStreams
		cfg.XRef.Streams = flagStreams
	}
	if f.Changed("filter-locals") {
		cfg.XRef.FilterLocals = flagFilterLocals
	}
	if f.Changed("page-size") {
		cfg.XRef.PageSize = flagPageSize
	}
	if f.Changed("workers") {
		cfg.Parser.Workers = flagWorkers
		cfg.XRef.Workers = flagWorkers
	}
}

func addParserFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagLanguages, "languages", "", "comma-separated language filter (e.g. c++,idl)")
	cmd.Flags().StringVar(&flagScriptsDir, "scripts-dir", "", "load front-end scripts from disk path instead of embedded")
	cmd.Flags().IntVarP(&flagWorkers, "workers", "j", 0, "concurrent files (default: GOMAXPROCS)")
}

func addXRefFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&flagFilterLocals, "filter-locals", false, "drop references to function-local names")
	cmd.Flags().IntVar(&flagPageSize, "page-size", 0, "xref page weight threshold (default from config)")
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// --- parse ---

var parseCmd = &cobra.Command{
	Use:   "parse <path>...",
	Short: "Parse source files into a persisted IR",
	Long: "Runs the language front ends over the given files and directories and writes the merged, " +
		"unlinked IR. Files named directly are keyed by their path; files found under a directory argument " +
		"are keyed relative to that directory. With --streams, one reference stream per file is written " +
		"for 'docgraph xref'.",
	Args: cobra.MinimumNArgs(1),
	RunE: runParse,
}

func init() {
	parseCmd.Flags().StringVarP(&flagOutput, "output", "o", "", "IR output file")
	parseCmd.Flags().StringVar(&flagStreams, "streams", "", "directory receiving .sxr reference streams")
	addParserFlags(parseCmd)
	_ = parseCmd.MarkFlagRequired("output")
}

func runParse(cmd *cobra.Command, args []string) error {
	applyStageFlags(cmd)
	e, err := newEngine("")
	if err != nil {
		return outputError(cmd, "parse", err)
	}
	defer e.Close()

	ctx := cmd.Context()
	merged := ir.New()
	summary := CLIParseSummary{Output: flagOutput}
	var warnings *multierror.Error
	add := func(res *docgraph.ParseResult) {
		merged.Merge(res.IR)
		summary.Files += res.Files
		summary.Failed = append(summary.Failed, res.Failed...)
		summary.Streams += res.Streams
		if res.Warnings != nil {
			warnings = multierror.Append(warnings, res.Warnings.Errors...)
		}
	}

	var files []string
	for _, p := range args {
		info, err := os.Stat(p)
		if err != nil {
			return outputError(cmd, "parse", err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		res, err := e.ParseDirectory(ctx, p)
		if err != nil {
			return outputError(cmd, "parse", err)
		}
		add(res)
	}
	if len(files) > 0 {
		res, err := e.Parse(ctx, files)
		if err != nil {
			return outputError(cmd, "parse", err)
		}
		add(res)
	}

	if err := merged.SaveFile(flagOutput); err != nil {
		return outputError(cmd, "parse", err)
	}
	summary.Declarations = len(merged.Declarations)
	summary.Bytes = fileSize(flagOutput)
	return outputResult(cmd, CLIResult{Command: "parse", Results: summary, Warnings: warningsOf(warnings)})
}

// --- link ---

var linkCmd = &cobra.Command{
	Use:   "link <in.ir>...",
	Short: "Merge and link persisted IRs",
	Long: "Loads the IRs in order, merges them, removes duplicate declarations, gathers module fragments " +
		"into meta modules, resolves type references and writes the linked IR.",
	Args: cobra.MinimumNArgs(1),
	RunE: runLink,
}

func init() {
	linkCmd.Flags().StringVarP(&flagOutput, "output", "o", "", "linked IR output file")
	_ = linkCmd.MarkFlagRequired("output")
}

func runLink(cmd *cobra.Command, args []string) error {
	irs := make([]*ir.IR, 0, len(args))
	for _, p := range args {
		r, err := ir.LoadFile(p)
		if err != nil {
			return outputError(cmd, "link", err)
		}
		irs = append(irs, r)
	}

	e, err := newEngine("")
	if err != nil {
		return outputError(cmd, "link", err)
	}
	defer e.Close()

	linked, rep, err := e.LinkAll(cmd.Context(), irs...)
	if err != nil {
		return outputError(cmd, "link", err)
	}
	if err := linked.SaveFile(flagOutput); err != nil {
		return outputError(cmd, "link", err)
	}

	summary := CLILinkSummary{
		Output:      flagOutput,
		Inputs:      len(irs),
		Files:       len(linked.Files()),
		MetaModules: rep.MetaModules,
		Dropped:     rep.Dropped,
		Bytes:       fileSize(flagOutput),
	}
	for _, n := range rep.Unresolved {
		summary.Unresolved = append(summary.Unresolved, n.String())
	}
	return outputResult(cmd, CLIResult{Command: "link", Results: summary, Warnings: warningsOf(rep.Warnings)})
}

// --- xref ---

var xrefCmd = &cobra.Command{
	Use:   "xref <linked.ir>",
	Short: "Compile reference streams into the cross-reference index",
	Long: "Parses the .sxr stream of every primary file of a linked IR, assigns xref pages and " +
		"replaces the index database with the result.",
	Args: cobra.ExactArgs(1),
	RunE: runXRef,
}

func init() {
	xrefCmd.Flags().StringVar(&flagStreams, "streams", "", "directory holding .sxr reference streams")
	addXRefFlags(xrefCmd)
}

func runXRef(cmd *cobra.Command, args []string) error {
	applyStageFlags(cmd)
	if cfg.XRef.Streams == "" {
		return outputError(cmd, "xref", errors.New("no streams directory: pass --streams or set xref.streams"))
	}
	r, err := ir.LoadFile(args[0])
	if err != nil {
		return outputError(cmd, "xref", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return outputError(cmd, "xref", fmt.Errorf("getting cwd: %w", err))
	}
	dbPath := resolveDBPath(findRepoRoot(cwd))
	e, err := newEngine(dbPath)
	if err != nil {
		return outputError(cmd, "xref", err)
	}
	defer e.Close()

	table, rep, err := e.CompileXRef(cmd.Context(), r, cfg.XRef.Streams)
	if err != nil {
		return outputError(cmd, "xref", err)
	}
	if err := e.Commit(r, table); err != nil {
		return outputError(cmd, "xref", err)
	}
	summary := CLIXRefSummary{
		Database: dbPath,
		Streams:  rep.Files,
		Names:    table.Len(),
		Pages:    len(table.Pages()),
		Missing:  rep.Missing,
		Skipped:  rep.Skipped,
	}
	return outputResult(cmd, CLIResult{Command: "xref", Results: summary, Warnings: warningsOf(rep.Warnings)})
}

// --- index ---

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Parse, link and cross-reference a source tree into the index",
	Long:  "Runs every stage over a directory and replaces the index database with the result.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&flagForce, "force", false, "delete the database before indexing")
	indexCmd.Flags().StringVar(&flagStreams, "streams", "", "directory for .sxr reference streams (default: temporary)")
	addParserFlags(indexCmd)
	addXRefFlags(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	applyStageFlags(cmd)
	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return outputError(cmd, "index", err)
	}
	dbPath := resolveDBPath(findRepoRoot(targetDir))

	if flagForce {
		for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				return outputError(cmd, "index", fmt.Errorf("removing database for --force: %w", err))
			}
		}
		logger.Info("cleared database", "path", dbPath)
	}

	e, err := newEngine(dbPath)
	if err != nil {
		return outputError(cmd, "index", err)
	}
	defer e.Close()

	res, err := e.Index(cmd.Context(), targetDir)
	if err != nil {
		return outputError(cmd, "index", err)
	}

	summary := CLIIndexSummary{
		Root:        targetDir,
		Database:    dbPath,
		Files:       res.Parse.Files,
		Failed:      len(res.Parse.Failed),
		MetaModules: res.Link.MetaModules,
		Unresolved:  len(res.Link.Unresolved),
		Names:       res.Symbols,
		Pages:       res.Pages,
		ElapsedMS:   res.Elapsed.Round(time.Millisecond).Milliseconds(),
		Bytes:       fileSize(dbPath),
	}
	warnings := warningsOf(res.Parse.Warnings, res.Link.Warnings, res.XRef.Warnings)
	return outputResult(cmd, CLIResult{Command: "index", Results: summary, Warnings: warnings})
}
