package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jward/docgraph"
)

var (
	flagLimit    int
	flagOffset   int
	flagKind     string
	flagLanguage string
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the cross-reference index",
	Long:  "Run lookups against an index built by 'docgraph index' or 'docgraph xref'. Names are qualified with '::' (or '.' for Python).",
}

func init() {
	queryCmd.PersistentFlags().IntVar(&flagLimit, "limit", 50, "pagination limit (max 500)")
	queryCmd.PersistentFlags().IntVar(&flagOffset, "offset", 0, "pagination offset")

	searchCmd.Flags().StringVar(&flagKind, "kind", "", "restrict to a declaration kind (class, function, ...)")
	filesCmd.Flags().StringVar(&flagLanguage, "language", "", "restrict to a language")

	queryCmd.AddCommand(lookupCmd)
	queryCmd.AddCommand(searchCmd)
	queryCmd.AddCommand(overloadsCmd)
	queryCmd.AddCommand(pagesCmd)
	queryCmd.AddCommand(pageCmd)
	queryCmd.AddCommand(viewCmd)
	queryCmd.AddCommand(filesCmd)
	queryCmd.AddCommand(detailCmd)
	queryCmd.AddCommand(xrefsCmd)
}

// --- Helpers ---

// existingDBPath resolves the database path from the working directory and
// checks that an index exists there.
func existingDBPath() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting cwd: %w", err)
	}
	dbPath := resolveDBPath(findRepoRoot(cwd))
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return "", fmt.Errorf("database not found: %s (run 'docgraph index' first)", dbPath)
	}
	return dbPath, nil
}

// parseIntArg parses a positional argument as an integer with a clear error.
func parseIntArg(value, name string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be a non-negative integer", name, value)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid %s %q: must be non-negative", name, value)
	}
	return n, nil
}

// buildPagination creates a Pagination from CLI flags.
func buildPagination() docgraph.Pagination {
	return docgraph.Pagination{
		Limit:  flagLimit,
		Offset: flagOffset,
	}
}

// runQuery opens the index, runs fn and writes its result or error.
func runQuery(cmd *cobra.Command, command string, fn func(q *docgraph.QueryBuilder) (CLIResult, error)) error {
	e, q, err := openQuery()
	if err != nil {
		return outputError(cmd, command, err)
	}
	defer e.Close()

	res, err := fn(q)
	if err != nil {
		return outputError(cmd, command, err)
	}
	res.Command = command
	return outputResult(cmd, res)
}

// --- Name lookups ---

var lookupCmd = &cobra.Command{
	Use:   "lookup <name>",
	Short: "Find a symbol by qualified name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, "lookup", func(q *docgraph.QueryBuilder) (CLIResult, error) {
			sym, err := q.Lookup(args[0])
			if err != nil || sym == nil {
				return CLIResult{}, err
			}
			c, err := symbolToCLI(q, sym)
			if err != nil {
				return CLIResult{}, err
			}
			return CLIResult{Results: c, TotalCount: intPtr(1)}, nil
		})
	},
}

var overloadsCmd = &cobra.Command{
	Use:   "overloads <short-name>",
	Short: "List every symbol registered under a short name",
	Long:  "List the symbols whose last name segment, or bare function name, is <short-name>: all overloads of a function across scopes.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, "overloads", func(q *docgraph.QueryBuilder) (CLIResult, error) {
			syms, err := q.Overloads(args[0])
			if err != nil {
				return CLIResult{}, err
			}
			out, err := symbolsToCLI(q, syms)
			if err != nil {
				return CLIResult{}, err
			}
			return CLIResult{Results: out, TotalCount: intPtr(len(out))}, nil
		})
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <prefix>",
	Short: "Search symbols by name prefix",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, "search", func(q *docgraph.QueryBuilder) (CLIResult, error) {
			res, err := q.Search(args[0], flagKind, buildPagination())
			if err != nil {
				return CLIResult{}, err
			}
			out, err := symbolsToCLI(q, res.Items)
			if err != nil {
				return CLIResult{}, err
			}
			return CLIResult{Results: out, TotalCount: intPtr(res.TotalCount)}, nil
		})
	},
}

var detailCmd = &cobra.Command{
	Use:   "detail <name>",
	Short: "Show a symbol with its members and usage records",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, "detail", func(q *docgraph.QueryBuilder) (CLIResult, error) {
			d, err := q.Detail(args[0])
			if err != nil || d == nil {
				return CLIResult{}, err
			}
			out := CLIDetail{
				Definitions: xrefsToCLI(d.Definitions),
				Calls:       xrefsToCLI(d.Calls),
				References:  xrefsToCLI(d.References),
			}
			if out.Symbol, err = symbolToCLI(q, d.Symbol); err != nil {
				return CLIResult{}, err
			}
			if d.Parent != nil {
				p, err := symbolToCLI(q, d.Parent)
				if err != nil {
					return CLIResult{}, err
				}
				out.Parent = &p
			}
			if out.Children, err = symbolsToCLI(q, d.Children); err != nil {
				return CLIResult{}, err
			}
			for _, inc := range d.Includes {
				out.Includes = append(out.Includes, inc.Target)
			}
			return CLIResult{Results: out, TotalCount: intPtr(1)}, nil
		})
	},
}

// --- Pages ---

var pagesCmd = &cobra.Command{
	Use:   "pages",
	Short: "Print the number of xref pages",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, "pages", func(q *docgraph.QueryBuilder) (CLIResult, error) {
			n, err := q.PageCount()
			if err != nil {
				return CLIResult{}, err
			}
			return CLIResult{Results: CLIPages{PageCount: n}}, nil
		})
	},
}

var pageCmd = &cobra.Command{
	Use:   "page <n>",
	Short: "List the symbols of an xref page in page order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, "page", func(q *docgraph.QueryBuilder) (CLIResult, error) {
			n, err := parseIntArg(args[0], "page")
			if err != nil {
				return CLIResult{}, err
			}
			syms, err := q.Page(n)
			if err != nil {
				return CLIResult{}, err
			}
			out, err := symbolsToCLI(q, syms)
			if err != nil {
				return CLIResult{}, err
			}
			return CLIResult{Results: out, TotalCount: intPtr(len(out))}, nil
		})
	},
}

var viewCmd = &cobra.Command{
	Use:   "view <name>",
	Short: "Find the xref page holding a symbol",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, "view", func(q *docgraph.QueryBuilder) (CLIResult, error) {
			page, ok, err := q.ViewFor(args[0])
			if err != nil || !ok {
				return CLIResult{}, err
			}
			link, _, err := q.Link(args[0])
			if err != nil {
				return CLIResult{}, err
			}
			return CLIResult{Results: CLIView{Name: args[0], Page: page, Link: link}, TotalCount: intPtr(1)}, nil
		})
	},
}

// --- Files ---

var filesCmd = &cobra.Command{
	Use:   "files [path-prefix]",
	Short: "List indexed files",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, "files", func(q *docgraph.QueryBuilder) (CLIResult, error) {
			prefix := ""
			if len(args) > 0 {
				prefix = args[0]
			}
			res, err := q.Files(prefix, flagLanguage, buildPagination())
			if err != nil {
				return CLIResult{}, err
			}
			return CLIResult{Results: filesToCLI(res.Items), TotalCount: intPtr(res.TotalCount)}, nil
		})
	},
}

var xrefsCmd = &cobra.Command{
	Use:   "xrefs <file>",
	Short: "List the usage records located in a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, "xrefs", func(q *docgraph.QueryBuilder) (CLIResult, error) {
			refs, err := q.XRefsInFile(args[0])
			if err != nil {
				return CLIResult{}, err
			}
			out := xrefsToCLI(refs)
			return CLIResult{Results: out, TotalCount: intPtr(len(out))}, nil
		})
	},
}
