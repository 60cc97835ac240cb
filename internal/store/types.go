package store

// File is a row of the source file registry.
type File struct {
	ID       int64
	Path     string
	AbsPath  string
	Language string
	Primary  bool
}

// Include is an include edge; Target is a registry path or, for files
// outside the registry, the name as written.
type Include struct {
	ID      int64
	FileID  int64
	Target  string
	Ordinal int
	IsMacro bool
	IsNext  bool
}

// Symbol is one qualified name of the index.
type Symbol struct {
	ID             int64
	Key            string // qname key, collision-free
	Name           string // "::"-joined
	Display        string // joined with the language separator
	ShortName      string
	Kind           string // empty for names only seen in reference streams
	Label          string
	Language       string
	Access         string
	FileID         *int64
	Line           int
	Summary        string
	Comments       []string
	Page           *int
	PageOrdinal    int
	Weight         int
	ParentSymbolID *int64
}

// XRef is one usage record of a symbol.
type XRef struct {
	ID       int64
	SymbolID int64
	Kind     string // definition, call or reference
	File     string
	Line     int
	Scope    string
	Ordinal  int
}
