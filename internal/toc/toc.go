// Package toc reads and writes the table-of-contents exchange format: one
// symbol per line as "name,language,link", letting one documentation run
// link to symbols documented by another.
package toc

import (
	"bufio"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/jward/docgraph/internal/asg"
	"github.com/jward/docgraph/internal/ir"
	"github.com/jward/docgraph/internal/qname"
)

// Entry is one line of a TOC.
type Entry struct {
	Name     qname.Name
	Language qname.Language
	Link     string
}

// TOC is an ordered set of entries with lookup by name.
type TOC struct {
	entries []Entry
	byName  map[string]int
}

// New returns a TOC holding entries. Later entries replace earlier ones
// with the same name.
func New(entries ...Entry) *TOC {
	t := &TOC{byName: make(map[string]int)}
	for _, e := range entries {
		t.Add(e)
	}
	return t
}

// Add inserts or replaces e.
func (t *TOC) Add(e Entry) {
	key := e.Name.Key()
	if i, ok := t.byName[key]; ok {
		t.entries[i] = e
		return
	}
	t.byName[key] = len(t.entries)
	t.entries = append(t.entries, e)
}

// Lookup returns the entry for name.
func (t *TOC) Lookup(name qname.Name) (Entry, bool) {
	i, ok := t.byName[name.Key()]
	if !ok {
		return Entry{}, false
	}
	return t.entries[i], true
}

// Entries returns the entries in insertion order.
func (t *TOC) Entries() []Entry {
	return slices.Clone(t.entries)
}

// Len returns the number of entries.
func (t *TOC) Len() int {
	return len(t.entries)
}

// LinkFunc returns the link for a declaration, or "" to leave it out.
type LinkFunc func(asg.Decl) string

// Build collects an entry for every declaration of a linked IR, in
// declaration order. Module fragments are represented by their MetaModule.
func Build(r *ir.IR, link LinkFunc) *TOC {
	t := New()
	asg.Walk(r.Declarations, func(d asg.Decl) bool {
		b := d.Base()
		if l := link(d); l != "" {
			t.Add(Entry{Name: b.Name, Language: b.Language, Link: l})
		}
		return true
	})
	return t
}

var (
	escaper   = strings.NewReplacer("&", "&amp;", ",", "&2c;")
	unescaper = strings.NewReplacer("&2c;", ",", "&amp;", "&")
)

// Escape protects the field separator and the escape character.
func Escape(s string) string { return escaper.Replace(s) }

// Unescape reverses Escape.
func Unescape(s string) string { return unescaper.Replace(s) }

// Write emits the TOC, one entry per line.
func (t *TOC) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, e := range t.entries {
		lang := e.Language
		if lang == "" {
			lang = qname.LangCxx
		}
		fmt.Fprintf(bw, "%s,%s,%s\n",
			Escape(e.Name.Format(lang)), Escape(string(lang)), Escape(e.Link))
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("toc: write: %w", err)
	}
	return nil
}

// Read parses a TOC. Blank lines are ignored.
func Read(r io.Reader) (*TOC, error) {
	t := New()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r")
		if text == "" {
			continue
		}
		fields := strings.Split(text, ",")
		if len(fields) != 3 {
			return nil, fmt.Errorf("toc: line %d: expected 3 fields, got %d", line, len(fields))
		}
		lang := qname.Language(Unescape(fields[1]))
		t.Add(Entry{
			Name:     qname.Parse(Unescape(fields[0]), lang),
			Language: lang,
			Link:     Unescape(fields[2]),
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("toc: read: %w", err)
	}
	return t, nil
}
