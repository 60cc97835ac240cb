package runtime

import (
	"context"
	"fmt"

	"github.com/jward/docgraph/internal/frontend"
	"github.com/jward/docgraph/internal/qname"
)

// ScriptFrontend is a front end implemented by a Risor script. The script
// sees the file through the file_path, abs_path, language and source
// globals and builds its IR with declare, include, type_ref and anchor.
type ScriptFrontend struct {
	rt     *Runtime
	lang   qname.Language
	script string
}

var _ frontend.Frontend = (*ScriptFrontend)(nil)

// NewScriptFrontend returns a front end for lang running script.
func NewScriptFrontend(rt *Runtime, lang qname.Language, script string) *ScriptFrontend {
	return &ScriptFrontend{rt: rt, lang: lang, script: script}
}

func (f *ScriptFrontend) Language() qname.Language { return f.lang }

func (f *ScriptFrontend) Parse(ctx context.Context, src frontend.Source) (*frontend.Unit, error) {
	b := newBuilder(f.lang, src)
	if err := f.rt.RunScript(ctx, f.script, b.globals(src)); err != nil {
		return nil, fmt.Errorf("%s: %w", src.Path, err)
	}
	return b.unit(), nil
}
