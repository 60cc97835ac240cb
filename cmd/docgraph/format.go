package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
)

var (
	headingColor = color.New(color.FgCyan, color.Bold)
	kindColor    = color.New(color.FgYellow)
	warnColor    = color.New(color.FgYellow, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
)

func formatSymbolsText(w io.Writer, syms []CLISymbol) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tLANGUAGE\tFILE\tLINE\tPAGE")
	for _, s := range syms {
		page := "-"
		if s.Page != nil {
			page = strconv.Itoa(*s.Page)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			s.Display, kindColor.Sprint(orDash(s.Kind)), orDash(s.Language), orDash(s.File), s.Line, page)
	}
	tw.Flush()
}

func formatXRefsText(w io.Writer, refs []CLIXRef) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tFILE\tLINE\tSCOPE")
	for _, r := range refs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", r.Kind, r.File, r.Line, orDash(r.Scope))
	}
	tw.Flush()
}

func formatFilesText(w io.Writer, files []CLIFile) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPATH\tLANGUAGE\tPRIMARY")
	for _, f := range files {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%t\n", f.ID, f.Path, f.Language, f.Primary)
	}
	tw.Flush()
}

func formatDetailText(w io.Writer, d CLIDetail) {
	headingColor.Fprintln(w, d.Symbol.Display)
	fmt.Fprintf(w, "Kind: %s\n", kindColor.Sprint(orDash(d.Symbol.Kind)))
	if d.Symbol.File != "" {
		fmt.Fprintf(w, "Declared: %s:%d\n", d.Symbol.File, d.Symbol.Line)
	}
	if d.Parent != nil {
		fmt.Fprintf(w, "Parent: %s\n", d.Parent.Display)
	}
	for _, c := range d.Symbol.Comments {
		fmt.Fprintf(w, "  %s\n", c)
	}
	if len(d.Children) > 0 {
		fmt.Fprintln(w)
		headingColor.Fprintln(w, "Members:")
		formatSymbolsText(w, d.Children)
	}
	for _, sec := range []struct {
		title string
		refs  []CLIXRef
	}{
		{"Definitions:", d.Definitions},
		{"Calls:", d.Calls},
		{"References:", d.References},
	} {
		if len(sec.refs) == 0 {
			continue
		}
		fmt.Fprintln(w)
		headingColor.Fprintln(w, sec.title)
		formatXRefsText(w, sec.refs)
	}
}

func formatTOCText(w io.Writer, entries []CLITOCEntry) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tLANGUAGE\tLINK")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Name, e.Language, e.Link)
	}
	tw.Flush()
}

// formatSummaryText prints a run summary as "label: value" lines under a
// heading.
func formatSummaryText(w io.Writer, title string, lines [][2]string) {
	headingColor.Fprintln(w, title)
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	for _, l := range lines {
		fmt.Fprintf(tw, "  %s:\t%s\n", l[0], l[1])
	}
	tw.Flush()
}

func count(n int) string { return humanize.Comma(int64(n)) }

func size(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}

func elapsed(ms int64) string {
	return (time.Duration(ms) * time.Millisecond).String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// outputResultText dispatches to the text formatter for the result type,
// then prints warnings to errw.
func outputResultText(w, errw io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case []CLISymbol:
		formatSymbolsText(w, v)
	case CLISymbol:
		formatSymbolsText(w, []CLISymbol{v})
	case []CLIXRef:
		formatXRefsText(w, v)
	case []CLIFile:
		formatFilesText(w, v)
	case CLIDetail:
		formatDetailText(w, v)
	case CLIView:
		fmt.Fprintf(w, "%s: page %d (%s)\n", v.Name, v.Page, v.Link)
	case CLIPages:
		fmt.Fprintf(w, "%s pages\n", count(v.PageCount))
	case []CLITOCEntry:
		formatTOCText(w, v)
	case CLITOCEntry:
		formatTOCText(w, []CLITOCEntry{v})
	case CLITOCSummary:
		formatSummaryText(w, "TOC", [][2]string{
			{"output", v.Output},
			{"entries", count(v.Entries)},
		})
	case CLIParseSummary:
		formatSummaryText(w, "Parsed", [][2]string{
			{"output", v.Output},
			{"files", count(v.Files)},
			{"failed", count(len(v.Failed))},
			{"declarations", count(v.Declarations)},
			{"streams", count(v.Streams)},
			{"size", size(v.Bytes)},
		})
	case CLILinkSummary:
		formatSummaryText(w, "Linked", [][2]string{
			{"output", v.Output},
			{"inputs", count(v.Inputs)},
			{"files", count(v.Files)},
			{"meta modules", count(v.MetaModules)},
			{"dropped", count(v.Dropped)},
			{"unresolved", count(len(v.Unresolved))},
			{"size", size(v.Bytes)},
		})
	case CLIXRefSummary:
		formatSummaryText(w, "Cross-referenced", [][2]string{
			{"database", v.Database},
			{"streams", count(v.Streams)},
			{"names", count(v.Names)},
			{"pages", count(v.Pages)},
			{"missing", count(len(v.Missing))},
			{"skipped", count(len(v.Skipped))},
		})
	case CLIIndexSummary:
		formatSummaryText(w, "Indexed "+v.Root, [][2]string{
			{"database", fmt.Sprintf("%s (%s)", v.Database, size(v.Bytes))},
			{"files", fmt.Sprintf("%s (%s failed)", count(v.Files), count(v.Failed))},
			{"meta modules", count(v.MetaModules)},
			{"unresolved", count(v.Unresolved)},
			{"names", count(v.Names)},
			{"pages", count(v.Pages)},
			{"elapsed", elapsed(v.ElapsedMS)},
		})
	case nil:
		// No output for nil results (e.g. lookup with no match).
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}

	if result.TotalCount != nil {
		total := *result.TotalCount
		if shown := resultLen(result.Results); shown < total {
			fmt.Fprintf(w, "\nShowing %d of %s results\n", shown, count(total))
		}
	}
	for _, warning := range result.Warnings {
		fmt.Fprintf(errw, "%s %s\n", warnColor.Sprint("warning:"), warning)
	}
	return nil
}

// resultLen returns the length of a result slice, or 1 for a single value.
func resultLen(v any) int {
	switch r := v.(type) {
	case []CLISymbol:
		return len(r)
	case []CLIXRef:
		return len(r)
	case []CLIFile:
		return len(r)
	case []CLITOCEntry:
		return len(r)
	case nil:
		return 0
	default:
		return 1
	}
}
