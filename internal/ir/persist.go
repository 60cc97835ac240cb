package ir

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/jward/docgraph/internal/asg"
	"github.com/jward/docgraph/internal/qname"
)

// Current schema version - increment when the wire format changes.
const schemaVersion uint16 = 1

// ErrSchemaVersion is returned by Load when the blob was written with a
// different wire format.
var ErrSchemaVersion = errors.New("ir: unsupported schema version")

type wireIR struct {
	Schema   uint16
	Files    []wireFile
	Decls    []wireDecl
	TopLevel []int
	Types    []wireTypeEntry
}

type wireFile struct {
	Name     string
	AbsName  string        `msgpack:",omitempty"`
	Language string        `msgpack:",omitempty"`
	Primary  bool          `msgpack:",omitempty"`
	Includes []wireInclude `msgpack:",omitempty"`
	Decls    []int         `msgpack:",omitempty"`
}

type wireInclude struct {
	Target  string
	IsMacro bool `msgpack:",omitempty"`
	IsNext  bool `msgpack:",omitempty"`
}

type wireTypeEntry struct {
	Key  string
	Type *wireType
}

type wireDecl struct {
	Kind     string
	File     string   `msgpack:",omitempty"`
	Line     int      `msgpack:",omitempty"`
	Language string   `msgpack:",omitempty"`
	Label    string   `msgpack:",omitempty"`
	Name     []string `msgpack:",omitempty"`
	Access   int      `msgpack:",omitempty"`
	Comments []string `msgpack:",omitempty"`

	Type        *wireType         `msgpack:",omitempty"`
	Constructed bool              `msgpack:",omitempty"`
	Value       string            `msgpack:",omitempty"`
	Enumerators []int             `msgpack:",omitempty"`
	Members     []int             `msgpack:",omitempty"`
	Modules     []int             `msgpack:",omitempty"`
	Parents     []wireInheritance `msgpack:",omitempty"`
	Template    *wireType         `msgpack:",omitempty"`
	Premod      []string          `msgpack:",omitempty"`
	Postmod     []string          `msgpack:",omitempty"`
	RealName    []string          `msgpack:",omitempty"`
	Params      []wireParam       `msgpack:",omitempty"`
	Exceptions  []*wireType       `msgpack:",omitempty"`
	Operation   bool              `msgpack:",omitempty"`
}

type wireInheritance struct {
	Kind       string
	Parent     *wireType
	Attributes []string `msgpack:",omitempty"`
}

type wireParam struct {
	Premod  []string  `msgpack:",omitempty"`
	Type    *wireType `msgpack:",omitempty"`
	Postmod []string  `msgpack:",omitempty"`
	Name    string    `msgpack:",omitempty"`
	Default string    `msgpack:",omitempty"`
}

type wireType struct {
	Kind     string
	Language string      `msgpack:",omitempty"`
	Name     []string    `msgpack:",omitempty"`
	DeclKind string      `msgpack:",omitempty"`
	Alias    *wireType   `msgpack:",omitempty"`
	Premod   []string    `msgpack:",omitempty"`
	Postmod  []string    `msgpack:",omitempty"`
	Sizes    []string    `msgpack:",omitempty"`
	Template *wireType   `msgpack:",omitempty"`
	Args     []*wireType `msgpack:",omitempty"`
	TParams  []wireParam `msgpack:",omitempty"`
	Return   *wireType   `msgpack:",omitempty"`
}

// Save writes the whole IR to w as a single msgpack blob.
func (r *IR) Save(w io.Writer) error {
	enc := msgpack.NewEncoder(w)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(r.toWire()); err != nil {
		return fmt.Errorf("ir: encode: %w", err)
	}
	return nil
}

// Load reads an IR written by Save.
func Load(rd io.Reader) (*IR, error) {
	var w wireIR
	if err := msgpack.NewDecoder(rd).Decode(&w); err != nil {
		return nil, fmt.Errorf("ir: decode: %w", err)
	}
	if w.Schema != schemaVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrSchemaVersion, w.Schema, schemaVersion)
	}
	r, err := fromWire(&w)
	if err != nil {
		return nil, fmt.Errorf("ir: decode: %w", err)
	}
	return r, nil
}

// SaveFile writes the IR to path, replacing any existing file atomically.
func (r *IR) SaveFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ir: save %s: %w", path, err)
	}
	f, err := os.CreateTemp(dir, ".ir-*")
	if err != nil {
		return fmt.Errorf("ir: save %s: %w", path, err)
	}
	defer os.Remove(f.Name())

	if err := r.Save(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("ir: save %s: %w", path, err)
	}
	if err := os.Rename(f.Name(), path); err != nil {
		return fmt.Errorf("ir: save %s: %w", path, err)
	}
	return nil
}

// LoadFile reads an IR blob from path.
func LoadFile(path string) (*IR, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ir: load %s: %w", path, err)
	}
	defer f.Close()
	r, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// --- encoding ---

type encoder struct {
	ids   map[asg.Decl]int
	decls []wireDecl
}

func (r *IR) toWire() *wireIR {
	e := &encoder{ids: make(map[asg.Decl]int)}
	w := &wireIR{Schema: schemaVersion}

	for _, d := range r.Declarations {
		w.TopLevel = append(w.TopLevel, e.decl(d))
	}
	for _, f := range r.Files() {
		wf := wireFile{
			Name:     f.Name,
			AbsName:  f.AbsName,
			Language: string(f.Language),
			Primary:  f.Primary,
		}
		for _, inc := range f.Includes {
			wf.Includes = append(wf.Includes, wireInclude{Target: inc.Target, IsMacro: inc.IsMacro, IsNext: inc.IsNext})
		}
		for _, d := range f.Declarations {
			wf.Decls = append(wf.Decls, e.decl(d))
		}
		w.Files = append(w.Files, wf)
	}

	keys := make([]string, 0, len(r.Types))
	for k := range r.Types {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		w.Types = append(w.Types, wireTypeEntry{Key: k, Type: encodeType(r.Types[k])})
	}
	w.Decls = e.decls
	return w
}

// decl assigns d an id on first sight and encodes it. Ids are allocated
// before children are visited so shared declarations keep a single entry.
func (e *encoder) decl(d asg.Decl) int {
	if id, ok := e.ids[d]; ok {
		return id
	}
	id := len(e.decls)
	e.ids[d] = id
	e.decls = append(e.decls, wireDecl{})

	b := d.Base()
	wd := wireDecl{
		Kind:     asg.KindOf(d),
		File:     b.File,
		Line:     b.Line,
		Language: string(b.Language),
		Label:    b.Label,
		Name:     b.Name,
		Access:   int(b.Access),
		Comments: b.Comments,
	}
	switch d := d.(type) {
	case *asg.Forward:
		wd.Template = encodeType(d.Template)
	case *asg.Typedef:
		wd.Type = encodeType(d.Alias)
		wd.Constructed = d.Constructed
	case *asg.Enumerator:
		wd.Value = d.Value
	case *asg.Enum:
		for _, en := range d.Enumerators {
			wd.Enumerators = append(wd.Enumerators, e.decl(en))
		}
	case *asg.Variable:
		wd.Type = encodeType(d.VarType)
		wd.Constructed = d.Constructed
	case *asg.Const:
		wd.Type = encodeType(d.ConstType)
		wd.Value = d.Value
	case *asg.Function:
		wd.Premod = d.Premodifiers
		wd.Type = encodeType(d.ReturnType)
		wd.Postmod = d.Postmodifiers
		wd.RealName = d.RealName
		wd.Params = encodeParams(d.Parameters)
		wd.Template = encodeType(d.Template)
		for _, ex := range d.Exceptions {
			wd.Exceptions = append(wd.Exceptions, encodeType(ex))
		}
		wd.Operation = d.Operation
	case *asg.Module:
		wd.Members = e.members(d.Declarations)
	case *asg.Class:
		wd.Members = e.members(d.Declarations)
		for _, in := range d.Parents {
			wd.Parents = append(wd.Parents, wireInheritance{
				Kind:       in.Kind,
				Parent:     encodeType(in.Parent),
				Attributes: in.Attributes,
			})
		}
		wd.Template = encodeType(d.Template)
	case *asg.MetaModule:
		wd.Members = e.members(d.Declarations)
		for _, m := range d.Modules {
			wd.Modules = append(wd.Modules, e.decl(m))
		}
	}
	e.decls[id] = wd
	return id
}

func (e *encoder) members(ds []asg.Decl) []int {
	ids := make([]int, 0, len(ds))
	for _, d := range ds {
		ids = append(ids, e.decl(d))
	}
	return ids
}

func encodeParams(ps []*asg.Parameter) []wireParam {
	var out []wireParam
	for _, p := range ps {
		out = append(out, wireParam{
			Premod:  p.Premodifiers,
			Type:    encodeType(p.Type),
			Postmod: p.Postmodifiers,
			Name:    p.Name,
			Default: p.Default,
		})
	}
	return out
}

func encodeType(t asg.Type) *wireType {
	if t == nil {
		return nil
	}
	// A typed nil pointer inside the interface encodes as absent.
	if tt, ok := t.(*asg.Template); ok && tt == nil {
		return nil
	}
	w := &wireType{Kind: asg.TypeKindOf(t), Language: string(t.Lang())}
	switch t := t.(type) {
	case *asg.Base:
		w.Name = t.Name
	case *asg.Unknown:
		w.Name = t.Name
	case *asg.Declared:
		w.Name = t.Name
		w.DeclKind = t.DeclKind
	case *asg.Modifier:
		w.Alias = encodeType(t.Alias)
		w.Premod = t.Premodifiers
		w.Postmod = t.Postmodifiers
	case *asg.Array:
		w.Alias = encodeType(t.Alias)
		w.Sizes = t.Sizes
	case *asg.Parametrized:
		w.Template = encodeType(t.Template)
		for _, p := range t.Parameters {
			w.Args = append(w.Args, encodeType(p))
		}
	case *asg.Template:
		w.Name = t.Name
		w.DeclKind = t.DeclKind
		w.TParams = encodeParams(t.Parameters)
	case *asg.FunctionType:
		w.Return = encodeType(t.Return)
		w.Premod = t.Premodifiers
		for _, p := range t.Parameters {
			w.Args = append(w.Args, encodeType(p))
		}
	}
	return w
}

// --- decoding ---

func fromWire(w *wireIR) (*IR, error) {
	decls := make([]asg.Decl, len(w.Decls))
	for i, wd := range w.Decls {
		d, err := newDecl(wd.Kind)
		if err != nil {
			return nil, fmt.Errorf("declaration %d: %w", i, err)
		}
		decls[i] = d
	}
	ref := func(id int) (asg.Decl, error) {
		if id < 0 || id >= len(decls) {
			return nil, fmt.Errorf("declaration id %d out of range", id)
		}
		return decls[id], nil
	}
	refs := func(ids []int) ([]asg.Decl, error) {
		out := make([]asg.Decl, 0, len(ids))
		for _, id := range ids {
			d, err := ref(id)
			if err != nil {
				return nil, err
			}
			out = append(out, d)
		}
		return out, nil
	}

	for i := range w.Decls {
		wd := &w.Decls[i]
		d := decls[i]
		b := d.Base()
		b.File = wd.File
		b.Line = wd.Line
		b.Language = qname.Language(wd.Language)
		b.Label = wd.Label
		b.Name = qname.New(wd.Name...)
		b.Access = asg.Accessibility(wd.Access)
		b.Comments = wd.Comments

		switch d := d.(type) {
		case *asg.Forward:
			d.Template = decodeTemplate(wd.Template)
		case *asg.Typedef:
			d.Alias = decodeType(wd.Type)
			d.Constructed = wd.Constructed
		case *asg.Enumerator:
			d.Value = wd.Value
		case *asg.Enum:
			ens, err := refs(wd.Enumerators)
			if err != nil {
				return nil, err
			}
			for _, en := range ens {
				e, ok := en.(*asg.Enumerator)
				if !ok {
					return nil, fmt.Errorf("enum %s: member is %s, not an enumerator", b.Name, asg.KindOf(en))
				}
				d.Enumerators = append(d.Enumerators, e)
			}
		case *asg.Variable:
			d.VarType = decodeType(wd.Type)
			d.Constructed = wd.Constructed
		case *asg.Const:
			d.ConstType = decodeType(wd.Type)
			d.Value = wd.Value
		case *asg.Function:
			d.Premodifiers = wd.Premod
			d.ReturnType = decodeType(wd.Type)
			d.Postmodifiers = wd.Postmod
			if wd.RealName != nil {
				d.RealName = qname.New(wd.RealName...)
			}
			d.Parameters = decodeParams(wd.Params)
			d.Template = decodeTemplate(wd.Template)
			for _, ex := range wd.Exceptions {
				d.Exceptions = append(d.Exceptions, decodeType(ex))
			}
			d.Operation = wd.Operation
		case *asg.Module:
			ms, err := refs(wd.Members)
			if err != nil {
				return nil, err
			}
			d.Declarations = ms
		case *asg.Class:
			ms, err := refs(wd.Members)
			if err != nil {
				return nil, err
			}
			d.Declarations = ms
			for _, p := range wd.Parents {
				d.Parents = append(d.Parents, &asg.Inheritance{
					Kind:       p.Kind,
					Parent:     decodeType(p.Parent),
					Attributes: p.Attributes,
				})
			}
			d.Template = decodeTemplate(wd.Template)
		case *asg.MetaModule:
			ms, err := refs(wd.Members)
			if err != nil {
				return nil, err
			}
			d.Declarations = ms
			frags, err := refs(wd.Modules)
			if err != nil {
				return nil, err
			}
			for _, f := range frags {
				m, ok := f.(*asg.Module)
				if !ok {
					return nil, fmt.Errorf("metamodule %s: fragment is %s, not a module", b.Name, asg.KindOf(f))
				}
				d.Modules = append(d.Modules, m)
			}
		}
	}

	r := New()
	top, err := refs(w.TopLevel)
	if err != nil {
		return nil, err
	}
	r.Declarations = top
	for _, wf := range w.Files {
		f := &SourceFile{
			Name:     wf.Name,
			AbsName:  wf.AbsName,
			Language: qname.Language(wf.Language),
			Primary:  wf.Primary,
		}
		for _, inc := range wf.Includes {
			f.Includes = append(f.Includes, &Include{Target: inc.Target, IsMacro: inc.IsMacro, IsNext: inc.IsNext})
		}
		if f.Declarations, err = refs(wf.Decls); err != nil {
			return nil, err
		}
		r.AddFile(f)
	}

	asg.Walk(r.Declarations, func(d asg.Decl) bool {
		r.Symbols[d.Base().Name.Key()] = d
		return true
	})
	for _, te := range w.Types {
		t := decodeType(te.Type)
		// Template entries are shared with the owning declaration.
		if tmpl, ok := t.(*asg.Template); ok {
			if d, found := r.Symbols[te.Key]; found {
				if own := asg.TemplateOf(d); own != nil {
					t = own
				} else {
					t = tmpl
				}
			}
		}
		r.Types[te.Key] = t
	}
	return r, nil
}

func newDecl(kind string) (asg.Decl, error) {
	switch kind {
	case asg.KindForward:
		return &asg.Forward{}, nil
	case asg.KindTypedef:
		return &asg.Typedef{}, nil
	case asg.KindEnumerator:
		return &asg.Enumerator{}, nil
	case asg.KindEnum:
		return &asg.Enum{}, nil
	case asg.KindVariable:
		return &asg.Variable{}, nil
	case asg.KindConst:
		return &asg.Const{}, nil
	case asg.KindFunction, asg.KindOperation:
		return &asg.Function{}, nil
	case asg.KindModule:
		return &asg.Module{}, nil
	case asg.KindClass:
		return &asg.Class{}, nil
	case asg.KindMetaModule:
		return &asg.MetaModule{}, nil
	}
	return nil, fmt.Errorf("unknown declaration kind %q", kind)
}

func decodeParams(ws []wireParam) []*asg.Parameter {
	var out []*asg.Parameter
	for _, w := range ws {
		out = append(out, &asg.Parameter{
			Premodifiers:  w.Premod,
			Type:          decodeType(w.Type),
			Postmodifiers: w.Postmod,
			Name:          w.Name,
			Default:       w.Default,
		})
	}
	return out
}

func decodeTemplate(w *wireType) *asg.Template {
	t, _ := decodeType(w).(*asg.Template)
	return t
}

func decodeType(w *wireType) asg.Type {
	if w == nil {
		return nil
	}
	lang := qname.Language(w.Language)
	switch w.Kind {
	case asg.TypeBase:
		return &asg.Base{Language: lang, Name: qname.New(w.Name...)}
	case asg.TypeUnknown:
		return &asg.Unknown{Language: lang, Name: qname.New(w.Name...)}
	case asg.TypeDeclared:
		return &asg.Declared{Language: lang, Name: qname.New(w.Name...), DeclKind: w.DeclKind}
	case asg.TypeModifier:
		return &asg.Modifier{Language: lang, Alias: decodeType(w.Alias), Premodifiers: w.Premod, Postmodifiers: w.Postmod}
	case asg.TypeArray:
		return &asg.Array{Language: lang, Alias: decodeType(w.Alias), Sizes: w.Sizes}
	case asg.TypeParametrized:
		p := &asg.Parametrized{Language: lang, Template: decodeType(w.Template)}
		for _, a := range w.Args {
			p.Parameters = append(p.Parameters, decodeType(a))
		}
		return p
	case asg.TypeTemplate:
		return &asg.Template{Language: lang, Name: qname.New(w.Name...), DeclKind: w.DeclKind, Parameters: decodeParams(w.TParams)}
	case asg.TypeFunction:
		f := &asg.FunctionType{Language: lang, Return: decodeType(w.Return), Premodifiers: w.Premod}
		for _, a := range w.Args {
			f.Parameters = append(f.Parameters, decodeType(a))
		}
		return f
	}
	return nil
}
