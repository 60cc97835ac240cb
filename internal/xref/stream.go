package xref

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"io"
	"slices"
	"strings"

	nethtml "golang.org/x/net/html"

	"github.com/jward/docgraph/internal/qname"
)

// ErrMalformedStream is wrapped by every StreamError.
var ErrMalformedStream = errors.New("malformed reference stream")

// StreamError locates a parse failure in a reference stream.
type StreamError struct {
	File   string
	Line   int
	Reason string
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("%s:%d: %s: %s", e.File, e.Line, ErrMalformedStream, e.Reason)
}

func (e *StreamError) Unwrap() error { return ErrMalformedStream }

// localMarker prefixes the from attribute of function-local scopes.
const localMarker = "#"

// scopeSep joins from attributes regardless of language.
const scopeSep = "::"

// Anchor is one tagged reference in a stream line.
type Anchor struct {
	Line   int // 1-based
	Column int // byte offset of Text in the source line
	Text   string
	Name   qname.Name
	From   qname.Name
	Local  bool // From is nested inside a function body
	Kind   Kind
}

// ParseOptions control ParseStream.
type ParseOptions struct {
	File     string
	Language qname.Language
	// FilterLocals drops records naming function-local symbols and
	// truncates function-local origin scopes to the enclosing function.
	FilterLocals bool
}

// ParseStream reads one file's reference stream into a table. Line n of the
// stream is source line n.
func ParseStream(r io.Reader, opts ParseOptions) (*Table, error) {
	lang := opts.Language
	if lang == "" {
		lang = qname.LangCxx
	}
	t := NewTable()
	z := nethtml.NewTokenizer(r)
	line := 1
	open := false
	openLine := 0

	fail := func(l int, format string, args ...any) error {
		return &StreamError{File: opts.File, Line: l, Reason: fmt.Sprintf(format, args...)}
	}

	for {
		tt := z.Next()
		if tt == nethtml.ErrorToken {
			if err := z.Err(); err != io.EOF {
				return nil, fmt.Errorf("%s: %w", opts.File, err)
			}
			if open {
				return nil, fail(openLine, "unterminated anchor")
			}
			return t, nil
		}
		raw := z.Raw()
		startLine := line
		line += bytes.Count(raw, []byte{'\n'})

		switch tt {
		case nethtml.StartTagToken, nethtml.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "a" {
				continue
			}
			if open {
				return nil, fail(startLine, "nested anchor")
			}
			attrs := make(map[string]string, 3)
			for hasAttr {
				var k, v []byte
				k, v, hasAttr = z.TagAttr()
				attrs[string(k)] = string(v)
			}
			typ, typed := attrs["type"]
			if !typed {
				// Plain links carry no reference record.
				if tt == nethtml.StartTagToken {
					open, openLine = true, startLine
				}
				continue
			}
			kind, ok := ParseKind(typ)
			if !ok {
				return nil, fail(startLine, "unknown reference type %q", typ)
			}
			href := attrs["href"]
			if href == "" {
				return nil, fail(startLine, "%s record without href", typ)
			}
			if tt == nethtml.StartTagToken {
				open, openLine = true, startLine
			}
			target := qname.Parse(href, lang)
			from, local := parseFrom(attrs["from"])
			if opts.FilterLocals {
				if isLocal(target) {
					continue
				}
				if local {
					from = enclosingScope(from)
				}
			}
			t.Add(target, kind, Ref{File: opts.File, Line: startLine, Scope: from})
		case nethtml.EndTagToken:
			name, _ := z.TagName()
			if string(name) != "a" {
				continue
			}
			if !open {
				return nil, fail(startLine, "unmatched </a>")
			}
			open = false
		}
	}
}

func parseFrom(s string) (qname.Name, bool) {
	local := strings.HasPrefix(s, localMarker)
	s = strings.TrimPrefix(s, localMarker)
	if s == "" {
		return qname.Name{}, local
	}
	return qname.Parse(s, qname.LangCxx), local
}

func isSignature(segment string) bool {
	return strings.Contains(segment, "(")
}

// isLocal reports whether name is declared inside a function body.
func isLocal(name qname.Name) bool {
	if len(name) < 2 {
		return false
	}
	return slices.ContainsFunc(name[:len(name)-1], isSignature)
}

// enclosingScope truncates a function-local scope to the innermost
// enclosing function, or to its parent when no function is named.
func enclosingScope(scope qname.Name) qname.Name {
	for i := len(scope) - 1; i >= 0; i-- {
		if isSignature(scope[i]) {
			return qname.New(scope[:i+1]...)
		}
	}
	return scope.Parent()
}

// WriteStream renders src as a reference stream, wrapping each anchor's text
// in an <a> tag. Anchors whose text does not match the source at their
// column are skipped.
func WriteStream(w io.Writer, src []byte, anchors []Anchor, lang qname.Language) error {
	if lang == "" {
		lang = qname.LangCxx
	}
	byLine := make(map[int][]Anchor)
	for _, a := range anchors {
		byLine[a.Line] = append(byLine[a.Line], a)
	}

	lines := strings.Split(string(src), "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	var b strings.Builder
	for i, text := range lines {
		as := byLine[i+1]
		slices.SortStableFunc(as, func(x, y Anchor) int { return x.Column - y.Column })
		pos := 0
		for _, a := range as {
			end := a.Column + len(a.Text)
			if a.Column < pos || end > len(text) || text[a.Column:end] != a.Text {
				continue
			}
			b.WriteString(html.EscapeString(text[pos:a.Column]))
			from := strings.Join(a.From, scopeSep)
			if a.Local {
				from = localMarker + from
			}
			fmt.Fprintf(&b, `<a href="%s" from="%s" type="%s">%s</a>`,
				html.EscapeString(a.Name.Format(lang)),
				html.EscapeString(from),
				a.Kind,
				html.EscapeString(a.Text))
			pos = end
		}
		b.WriteString(html.EscapeString(text[pos:]))
		b.WriteByte('\n')
	}
	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("write stream: %w", err)
	}
	return nil
}
