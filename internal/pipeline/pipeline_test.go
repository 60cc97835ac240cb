package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/docgraph/internal/asg"
	"github.com/jward/docgraph/internal/config"
	"github.com/jward/docgraph/internal/ir"
	"github.com/jward/docgraph/internal/logging"
	"github.com/jward/docgraph/internal/qname"
)

// namespaceIR returns an IR for file declaring `namespace N { class <cls>; }`.
func namespaceIR(file, cls string) *ir.IR {
	r := ir.New()
	f := r.AddFile(&ir.SourceFile{Name: file, Language: qname.LangCxx, Primary: true})
	c := &asg.Class{DeclBase: asg.DeclBase{File: file, Line: 2, Language: qname.LangCxx, Label: "class", Name: qname.New("N", cls)}}
	m := &asg.Module{
		DeclBase:     asg.DeclBase{File: file, Line: 1, Language: qname.LangCxx, Label: "namespace", Name: qname.New("N")},
		Declarations: []asg.Decl{c},
	}
	r.Declare(f, m)
	return r
}

type failingStage struct{ validateErr, processErr error }

func (s failingStage) Name() string    { return "failing" }
func (s failingStage) Validate() error { return s.validateErr }
func (s failingStage) Process(ctx context.Context, in *ir.IR) (*ir.IR, error) {
	return in, s.processErr
}

func TestMerge_Order(t *testing.T) {
	t.Parallel()
	out := Merge(namespaceIR("a.h", "A"), namespaceIR("b.h", "B"))
	files := out.Files()
	require.Len(t, files, 2)
	assert.Equal(t, "a.h", files[0].Name)
	assert.Equal(t, "b.h", files[1].Name)
	assert.Len(t, out.Declarations, 2)
}

func TestRun_LinkStage(t *testing.T) {
	t.Parallel()
	stage := &LinkStage{Config: config.Default().Linker, Logger: logging.Discard()}
	var seen []string
	trace := Func("trace", func(ctx context.Context, in *ir.IR) (*ir.IR, error) {
		for _, d := range in.Declarations {
			seen = append(seen, asg.KindOf(d))
		}
		return in, nil
	})

	out, err := (&Runner{Stages: []Stage{stage, trace}, Logger: logging.Discard()}).
		Run(context.Background(), namespaceIR("a.h", "A"), namespaceIR("b.h", "B"))
	require.NoError(t, err)
	require.NotNil(t, stage.Report)
	assert.Equal(t, 1, stage.Report.MetaModules)
	assert.Equal(t, []string{asg.KindMetaModule}, seen)

	meta, ok := out.Declarations[0].(*asg.MetaModule)
	require.True(t, ok)
	assert.Len(t, meta.Modules, 2)
}

func TestRun_ValidatesBeforeProcessing(t *testing.T) {
	t.Parallel()
	processed := false
	first := Func("first", func(ctx context.Context, in *ir.IR) (*ir.IR, error) {
		processed = true
		return in, nil
	})
	bad := failingStage{validateErr: &config.ParamError{Stage: "xref", Param: "page_size", Reason: "must be positive"}}

	_, err := Run(context.Background(), []Stage{first, bad}, ir.New())
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrInvalidParam))
	assert.False(t, processed)
}

func TestRun_StageError(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	_, err := Run(context.Background(), []Stage{failingStage{processErr: boom}}, ir.New())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "stage failing")
}

func TestRun_Cancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, []Stage{Func("noop", func(ctx context.Context, in *ir.IR) (*ir.IR, error) { return in, nil })})
	require.ErrorIs(t, err, context.Canceled)
}
