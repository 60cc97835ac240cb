package main

// CLIResult is the top-level JSON envelope for every command.
type CLIResult struct {
	Command    string   `json:"command"`
	Results    any      `json:"results"`
	TotalCount *int     `json:"total_count,omitempty"`
	Error      string   `json:"error,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
}

// CLISymbol is a JSON-friendly symbol representation.
type CLISymbol struct {
	ID       int64    `json:"id"`
	Name     string   `json:"name"`
	Display  string   `json:"display"`
	Kind     string   `json:"kind,omitempty"`
	Label    string   `json:"label,omitempty"`
	Language string   `json:"language,omitempty"`
	Access   string   `json:"access,omitempty"`
	File     string   `json:"file,omitempty"`
	Line     int      `json:"line"`
	Page     *int     `json:"page,omitempty"`
	Weight   int      `json:"weight"`
	Summary  string   `json:"summary,omitempty"`
	Comments []string `json:"comments,omitempty"`
}

// CLIXRef is one usage record.
type CLIXRef struct {
	Kind  string `json:"kind"`
	File  string `json:"file"`
	Line  int    `json:"line"`
	Scope string `json:"scope,omitempty"`
}

// CLIFile is a JSON-friendly file representation.
type CLIFile struct {
	ID       int64  `json:"id"`
	Path     string `json:"path"`
	Language string `json:"language"`
	Primary  bool   `json:"primary"`
}

// CLIDetail is a symbol with its neighbours and usage records.
type CLIDetail struct {
	Symbol      CLISymbol   `json:"symbol"`
	Parent      *CLISymbol  `json:"parent,omitempty"`
	Children    []CLISymbol `json:"children"`
	Definitions []CLIXRef   `json:"definitions"`
	Calls       []CLIXRef   `json:"calls"`
	References  []CLIXRef   `json:"references"`
	Includes    []string    `json:"includes,omitempty"`
}

// CLIView locates a symbol in the rendered xref pages.
type CLIView struct {
	Name string `json:"name"`
	Page int    `json:"page"`
	Link string `json:"link"`
}

// CLIPages is the result of "query pages".
type CLIPages struct {
	PageCount int `json:"page_count"`
}

// CLIParseSummary is the result of "parse".
type CLIParseSummary struct {
	Output       string   `json:"output"`
	Files        int      `json:"files"`
	Failed       []string `json:"failed,omitempty"`
	Declarations int      `json:"declarations"`
	Streams      int      `json:"streams"`
	Bytes        int64    `json:"bytes"`
}

// CLILinkSummary is the result of "link".
type CLILinkSummary struct {
	Output      string   `json:"output"`
	Inputs      int      `json:"inputs"`
	Files       int      `json:"files"`
	MetaModules int      `json:"meta_modules"`
	Dropped     int      `json:"dropped"`
	Unresolved  []string `json:"unresolved,omitempty"`
	Bytes       int64    `json:"bytes"`
}

// CLIXRefSummary is the result of "xref".
type CLIXRefSummary struct {
	Database string   `json:"database"`
	Streams  int      `json:"streams"`
	Names    int      `json:"names"`
	Pages    int      `json:"pages"`
	Missing  []string `json:"missing,omitempty"`
	Skipped  []string `json:"skipped,omitempty"`
}

// CLIIndexSummary is the result of "index".
type CLIIndexSummary struct {
	Root        string `json:"root"`
	Database    string `json:"database"`
	Files       int    `json:"files"`
	Failed      int    `json:"failed"`
	MetaModules int    `json:"meta_modules"`
	Unresolved  int    `json:"unresolved"`
	Names       int    `json:"names"`
	Pages       int    `json:"pages"`
	ElapsedMS   int64  `json:"elapsed_ms"`
	Bytes       int64  `json:"bytes"`
}

// CLITOCEntry is one table-of-contents line.
type CLITOCEntry struct {
	Name     string `json:"name"`
	Language string `json:"language"`
	Link     string `json:"link"`
}

// CLITOCSummary is the result of "toc export".
type CLITOCSummary struct {
	Output  string `json:"output"`
	Entries int    `json:"entries"`
}
