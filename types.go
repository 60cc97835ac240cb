package docgraph

import "github.com/jward/docgraph/internal/store"

// Public aliases for the store rows returned by QueryBuilder.

type Symbol = store.Symbol
type File = store.File
type Include = store.Include
type XRef = store.XRef
