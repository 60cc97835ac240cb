// Package qname implements qualified symbol names: ordered, immutable
// sequences of path segments tagged with the language used to display them.
package qname

import (
	"strings"
)

// Language identifies the analyzed input language a name belongs to. It only
// affects how names are joined for display.
type Language string

const (
	LangC      Language = "C"
	LangCxx    Language = "C++"
	LangPython Language = "Python"
	LangIDL    Language = "IDL"
)

// Separator returns the segment separator used when displaying names of the
// language.
func (l Language) Separator() string {
	if l == LangPython {
		return "."
	}
	return "::"
}

// keySep joins segments in map keys. It cannot appear in identifiers of any
// supported language.
const keySep = "\x1f"

// Name is a qualified name. Methods never modify the receiver.
type Name []string

// New builds a Name from segments, copying them.
func New(segments ...string) Name {
	n := make(Name, len(segments))
	copy(n, segments)
	return n
}

// Parse splits s using the separator of lang. Separators inside a
// parameter list or template argument list belong to the segment, so
// "geo::scale(geo::Shape&)" has two segments. An empty string yields an
// empty name.
func Parse(s string, lang Language) Name {
	if s == "" {
		return Name{}
	}
	sep := lang.Separator()
	var out Name
	start, parens, angles := 0, 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			parens++
		case ')':
			parens = max(parens-1, 0)
		case '<', '>':
			if parens > 0 || isOperatorName(s[start:i]) {
				continue
			}
			if s[i] == '<' {
				angles++
			} else {
				angles = max(angles-1, 0)
			}
		default:
			if parens == 0 && angles == 0 && strings.HasPrefix(s[i:], sep) {
				out = append(out, s[start:i])
				i += len(sep) - 1
				start = i + 1
			}
		}
	}
	return append(out, s[start:])
}

// isOperatorName reports whether seg spells an operator function name up to
// its symbol, as in "operator<" or "operator->".
func isOperatorName(seg string) bool {
	rest, ok := strings.CutPrefix(strings.TrimSpace(seg), "operator")
	return ok && strings.Trim(rest, " <>=-!+*/%&|^~[]") == ""
}

// ParseKey is the inverse of Key.
func ParseKey(key string) Name {
	if key == "" {
		return Name{}
	}
	return Name(strings.Split(key, keySep))
}

// Key returns a string usable as a map key. Distinct names always produce
// distinct keys.
func (n Name) Key() string {
	return strings.Join(n, keySep)
}

// String joins the segments with "::".
func (n Name) String() string {
	return strings.Join(n, "::")
}

// Format joins the segments with the separator of lang.
func (n Name) Format(lang Language) string {
	return strings.Join(n, lang.Separator())
}

// IsEmpty reports whether the name has no segments.
func (n Name) IsEmpty() bool {
	return len(n) == 0
}

// Last returns the final segment, or "" for an empty name.
func (n Name) Last() string {
	if len(n) == 0 {
		return ""
	}
	return n[len(n)-1]
}

// Parent returns the name without its final segment.
func (n Name) Parent() Name {
	if len(n) == 0 {
		return Name{}
	}
	return New(n[:len(n)-1]...)
}

// Append returns a new name with the segments added at the end.
func (n Name) Append(segments ...string) Name {
	out := make(Name, 0, len(n)+len(segments))
	out = append(out, n...)
	return append(out, segments...)
}

// Equal reports whether both names have identical segments.
func (n Name) Equal(other Name) bool {
	if len(n) != len(other) {
		return false
	}
	for i := range n {
		if n[i] != other[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix is a leading subsequence of n.
func (n Name) HasPrefix(prefix Name) bool {
	if len(prefix) > len(n) {
		return false
	}
	return n[:len(prefix)].Equal(prefix)
}

// Compare orders names segment by segment; a proper prefix sorts first.
func (n Name) Compare(other Name) int {
	for i := 0; i < len(n) && i < len(other); i++ {
		if c := strings.Compare(n[i], other[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(n) < len(other):
		return -1
	case len(n) > len(other):
		return 1
	}
	return 0
}

// Prune removes the longest prefix n shares with other and returns what is
// left of n. The result keeps at least the last segment, so pruning a name
// against itself (or one of its descendants) yields its final segment.
func (n Name) Prune(other Name) Name {
	if len(n) == 0 {
		return Name{}
	}
	i := 0
	for i < len(n) && i < len(other) && n[i] == other[i] {
		i++
	}
	if i == len(n) {
		i = len(n) - 1
	}
	return New(n[i:]...)
}
