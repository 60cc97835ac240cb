package runtime

import (
	"slices"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/python"
)

// grammars are the tree-sitter grammars a front-end script may hand to
// parse_src. They match the languages with built-in front ends, so a
// script overriding one of those can still lean on tree-sitter.
var grammars = map[string]func() *sitter.Language{
	"c":      c.GetLanguage,
	"cpp":    cpp.GetLanguage,
	"python": python.GetLanguage,
}

// ParserForLanguage returns the grammar registered under name.
func ParserForLanguage(name string) (*sitter.Language, bool) {
	get, ok := grammars[name]
	if !ok {
		return nil, false
	}
	return get(), true
}

// Grammars lists the grammar names in sorted order.
func Grammars() []string {
	names := make([]string, 0, len(grammars))
	for name := range grammars {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
