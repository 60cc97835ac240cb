package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jward/docgraph/internal/asg"
	"github.com/jward/docgraph/internal/ir"
	"github.com/jward/docgraph/internal/qname"
	"github.com/jward/docgraph/internal/toc"
	"github.com/jward/docgraph/internal/xref"
)

var flagTOCBase string

var tocCmd = &cobra.Command{
	Use:   "toc",
	Short: "Export and read table-of-contents files",
	Long:  "A TOC lists one symbol per line as name,language,link so that one documentation run can link to symbols documented by another.",
}

func init() {
	tocExportCmd.Flags().StringVarP(&flagOutput, "output", "o", "", "TOC output file")
	tocExportCmd.Flags().StringVar(&flagStreams, "streams", "", "link to xref pages compiled from these .sxr streams instead of source lines")
	tocExportCmd.Flags().StringVar(&flagTOCBase, "base", "", "prefix prepended to every link")
	_ = tocExportCmd.MarkFlagRequired("output")

	tocCmd.AddCommand(tocExportCmd)
	tocCmd.AddCommand(tocLookupCmd)
}

var tocExportCmd = &cobra.Command{
	Use:   "export <linked.ir>",
	Short: "Write the TOC of a linked IR",
	Args:  cobra.ExactArgs(1),
	RunE:  runTOCExport,
}

func runTOCExport(cmd *cobra.Command, args []string) error {
	applyStageFlags(cmd)
	r, err := ir.LoadFile(args[0])
	if err != nil {
		return outputError(cmd, "toc export", err)
	}

	link := func(d asg.Decl) string {
		b := d.Base()
		if b.File == "" {
			return ""
		}
		return fmt.Sprintf("%s%s#L%d", flagTOCBase, b.File, b.Line)
	}
	if flagStreams != "" {
		e, err := newEngine("")
		if err != nil {
			return outputError(cmd, "toc export", err)
		}
		table, _, err := e.CompileXRef(cmd.Context(), r, flagStreams)
		e.Close()
		if err != nil {
			return outputError(cmd, "toc export", err)
		}
		link = func(d asg.Decl) string {
			page, ok := table.ViewFor(d.Base().Name)
			if !ok {
				return ""
			}
			return flagTOCBase + xref.PageLink(page, d.Base().Name)
		}
	}

	t := toc.Build(r, link)
	f, err := os.Create(flagOutput)
	if err != nil {
		return outputError(cmd, "toc export", err)
	}
	if err := t.Write(f); err != nil {
		f.Close()
		return outputError(cmd, "toc export", err)
	}
	if err := f.Close(); err != nil {
		return outputError(cmd, "toc export", err)
	}
	return outputResult(cmd, CLIResult{
		Command: "toc export",
		Results: CLITOCSummary{Output: flagOutput, Entries: t.Len()},
	})
}

var tocLookupCmd = &cobra.Command{
	Use:   "lookup <toc-file> <name>",
	Short: "Find a symbol's link in a TOC",
	Args:  cobra.ExactArgs(2),
	RunE:  runTOCLookup,
}

func runTOCLookup(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return outputError(cmd, "toc lookup", err)
	}
	t, err := toc.Read(f)
	f.Close()
	if err != nil {
		return outputError(cmd, "toc lookup", err)
	}

	lang := qname.LangCxx
	if !strings.Contains(args[1], "::") && strings.Contains(args[1], ".") {
		lang = qname.LangPython
	}
	e, ok := t.Lookup(qname.Parse(args[1], lang))
	if !ok {
		return outputResult(cmd, CLIResult{Command: "toc lookup", Results: nil})
	}
	return outputResult(cmd, CLIResult{
		Command: "toc lookup",
		Results: CLITOCEntry{
			Name:     e.Name.Format(e.Language),
			Language: string(e.Language),
			Link:     e.Link,
		},
		TotalCount: intPtr(1),
	})
}
