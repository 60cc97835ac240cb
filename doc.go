// Package docgraph builds a documentation graph from multi-language source
// trees: it parses files with per-language front ends, merges and links
// their declarations into one canonical graph, and compiles per-file
// reference streams into a paginated cross-reference index stored in
// SQLite.
//
// # Pipeline
//
//  1. Parse: each file is handed to the front end registered for its
//     extension. Native tree-sitter front ends cover C, C++ and Python;
//     Risor scripts under scripts/frontend cover the rest (IDL ships
//     embedded). Every file yields an IR and, optionally, a reference
//     stream (<file>.sxr).
//
//  2. Link: the per-file IRs are merged in input order and deduplicated so
//     that every qualified name has one canonical declaration. Namespace
//     fragments are gathered into MetaModules and type references are
//     resolved against the merged type dictionary.
//
//  3. XRef: the reference streams of the primary files are parsed into a
//     table of definitions, calls and references per qualified name, which
//     is indexed by short name and split into pages.
//
//  4. Index: the linked IR and the xref table are committed to the store in
//     one transaction.
//
// # Usage
//
//	e, err := docgraph.New(".docgraph/index.db")
//	if err != nil { ... }
//	defer e.Close()
//
//	ctx := context.Background()
//	res, err := e.Index(ctx, "path/to/project")
//
//	q := e.Query()
//	sym, err := q.Lookup("geo::Shape")
//	overloads, err := q.Overloads("area")
//
// The stages are also available one at a time ([Engine.ParseDirectory],
// [Engine.Link], [Engine.CompileXRef], [Engine.Commit]) so that parsed and
// linked IRs can be persisted and combined across runs.
package docgraph
