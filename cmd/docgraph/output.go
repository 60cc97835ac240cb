package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/jward/docgraph"
)

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}

// outputResult writes a CLIResult to the command's stdout in the selected
// format.
func outputResult(cmd *cobra.Command, result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(cmd.OutOrStdout(), cmd.ErrOrStderr(), result)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(cmd *cobra.Command, command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", errorColor.Sprint("Error:"), err)
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	_ = enc.Encode(CLIResult{Command: command, Error: err.Error()})
	return err
}

// warningsOf flattens accumulated non-fatal errors.
func warningsOf(errs ...*multierror.Error) []string {
	var out []string
	for _, me := range errs {
		if me == nil {
			continue
		}
		for _, err := range me.Errors {
			out = append(out, err.Error())
		}
	}
	return out
}

func intPtr(n int) *int { return &n }

// openQuery opens the index database for reading. The database must exist.
func openQuery() (*docgraph.Engine, *docgraph.QueryBuilder, error) {
	dbPath, err := existingDBPath()
	if err != nil {
		return nil, nil, err
	}
	e, err := newEngine(dbPath)
	if err != nil {
		return nil, nil, err
	}
	return e, e.Query(), nil
}

func symbolToCLI(q *docgraph.QueryBuilder, sym *docgraph.Symbol) (CLISymbol, error) {
	file, err := q.FileOf(sym)
	if err != nil {
		return CLISymbol{}, err
	}
	return CLISymbol{
		ID:       sym.ID,
		Name:     sym.Name,
		Display:  sym.Display,
		Kind:     sym.Kind,
		Label:    sym.Label,
		Language: sym.Language,
		Access:   sym.Access,
		File:     file,
		Line:     sym.Line,
		Page:     sym.Page,
		Weight:   sym.Weight,
		Summary:  sym.Summary,
		Comments: sym.Comments,
	}, nil
}

func symbolsToCLI(q *docgraph.QueryBuilder, syms []*docgraph.Symbol) ([]CLISymbol, error) {
	out := make([]CLISymbol, 0, len(syms))
	for _, s := range syms {
		c, err := symbolToCLI(q, s)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func xrefsToCLI(refs []*docgraph.XRef) []CLIXRef {
	out := make([]CLIXRef, 0, len(refs))
	for _, r := range refs {
		out = append(out, CLIXRef{Kind: r.Kind, File: r.File, Line: r.Line, Scope: r.Scope})
	}
	return out
}

func filesToCLI(files []*docgraph.File) []CLIFile {
	out := make([]CLIFile, 0, len(files))
	for _, f := range files {
		out = append(out, CLIFile{ID: f.ID, Path: f.Path, Language: f.Language, Primary: f.Primary})
	}
	return out
}
