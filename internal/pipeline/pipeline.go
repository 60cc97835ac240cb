// Package pipeline runs IR processing stages in sequence. Each stage owns
// the IR exclusively while it runs and hands it to the next.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jward/docgraph/internal/config"
	"github.com/jward/docgraph/internal/ir"
	"github.com/jward/docgraph/internal/link"
)

// Stage transforms an IR. It may mutate and return its input.
type Stage interface {
	Name() string
	Process(ctx context.Context, in *ir.IR) (*ir.IR, error)
}

// validator is implemented by stages with a configuration surface. Run
// validates every stage before the first one starts.
type validator interface {
	Validate() error
}

type funcStage struct {
	name string
	fn   func(context.Context, *ir.IR) (*ir.IR, error)
}

func (s funcStage) Name() string { return s.name }

func (s funcStage) Process(ctx context.Context, in *ir.IR) (*ir.IR, error) {
	return s.fn(ctx, in)
}

// Func adapts fn to a Stage.
func Func(name string, fn func(context.Context, *ir.IR) (*ir.IR, error)) Stage {
	return funcStage{name: name, fn: fn}
}

// Merge folds the upstream IRs, in order, into a new IR.
func Merge(upstream ...*ir.IR) *ir.IR {
	out := ir.New()
	for _, u := range upstream {
		out.Merge(u)
	}
	return out
}

// Runner runs stages with a logger.
type Runner struct {
	Stages []Stage
	Logger *slog.Logger
}

// Run merges upstream and passes the result through stages.
func Run(ctx context.Context, stages []Stage, upstream ...*ir.IR) (*ir.IR, error) {
	return (&Runner{Stages: stages}).Run(ctx, upstream...)
}

// Run merges upstream and passes the result through the runner's stages.
// A single upstream IR is used as is.
func (p *Runner) Run(ctx context.Context, upstream ...*ir.IR) (*ir.IR, error) {
	log := p.Logger
	if log == nil {
		log = slog.Default()
	}
	for _, s := range p.Stages {
		if v, ok := s.(validator); ok {
			if err := v.Validate(); err != nil {
				return nil, fmt.Errorf("pipeline: stage %s: %w", s.Name(), err)
			}
		}
	}

	var cur *ir.IR
	if len(upstream) == 1 && upstream[0] != nil {
		cur = upstream[0]
	} else {
		cur = Merge(upstream...)
	}
	for _, s := range p.Stages {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("pipeline: %w", err)
		}
		start := time.Now()
		next, err := s.Process(ctx, cur)
		if err != nil {
			return nil, fmt.Errorf("pipeline: stage %s: %w", s.Name(), err)
		}
		log.Info("stage done", "stage", s.Name(), "elapsed", time.Since(start).Round(time.Millisecond))
		cur = next
	}
	return cur, nil
}

// LinkStage deduplicates and resolves an IR. Report holds the outcome of
// the last Process call.
type LinkStage struct {
	Config config.Linker
	Logger *slog.Logger
	Report *link.Report
}

func (s *LinkStage) Name() string { return "link" }

func (s *LinkStage) Validate() error { return s.Config.Validate() }

func (s *LinkStage) Process(ctx context.Context, in *ir.IR) (*ir.IR, error) {
	rep, err := link.Link(ctx, in,
		link.WithLogger(s.Logger),
		link.WithScopeLookup(s.Config.ScopeLookup),
	)
	if err != nil {
		return nil, err
	}
	s.Report = rep
	return in, nil
}
