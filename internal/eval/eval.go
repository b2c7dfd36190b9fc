package eval

import (
	"context"
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"nickandperla.net/pipes/internal/errs"
	"nickandperla.net/pipes/internal/expr"
	"nickandperla.net/pipes/internal/registry"
	"nickandperla.net/pipes/internal/store"
)

// Defaults for the evaluator limits.
const (
	DefaultMaxChars      = 1 << 20
	DefaultMaxMacroDepth = 16
	DefaultGroupWorkers  = 8
)

// Evaluator runs parsed scripts against a registry of callables and a
// macro store. It holds no per-run state and is safe for concurrent use.
type Evaluator struct {
	registry   *registry.Registry
	store      store.Store
	logger     *zap.Logger
	tracer     trace.Tracer
	maxChars   int
	macroDepth int
	workers    int
	seed       uint64
	seeded     bool

	macros sync.Map // cache key -> *Pipeline or *Script
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithRegistry sets the registry of pipes, sources and spouts.
func WithRegistry(r *registry.Registry) Option {
	return func(e *Evaluator) { e.registry = r }
}

// WithStore sets the macro store.
func WithStore(s store.Store) Option {
	return func(e *Evaluator) { e.store = s }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Evaluator) { e.logger = l }
}

// WithTracer sets the tracer used for run and segment spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Evaluator) { e.tracer = t }
}

// WithMaxChars caps the total characters of the items between segments.
// Zero or less disables the cap.
func WithMaxChars(n int) Option {
	return func(e *Evaluator) { e.maxChars = n }
}

// WithMaxMacroDepth caps nested macro invocations.
func WithMaxMacroDepth(n int) Option {
	return func(e *Evaluator) { e.macroDepth = n }
}

// WithGroupWorkers sets how many groups of one segment run concurrently.
func WithGroupWorkers(n int) Option {
	return func(e *Evaluator) { e.workers = n }
}

// WithSeed makes every run draw from the same random sequence.
func WithSeed(seed uint64) Option {
	return func(e *Evaluator) {
		e.seed = seed
		e.seeded = true
	}
}

// New creates a new Evaluator with the given options.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{
		maxChars:   DefaultMaxChars,
		macroDepth: DefaultMaxMacroDepth,
		workers:    DefaultGroupWorkers,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.registry == nil {
		e.registry = registry.New()
	}
	if e.store == nil {
		e.store = store.NewMemory()
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer("nickandperla.net/pipes/internal/eval")
	}
	if e.workers < 1 {
		e.workers = 1
	}
	return e
}

// Registry returns the evaluator's registry.
func (e *Evaluator) Registry() *registry.Registry { return e.registry }

// Store returns the evaluator's macro store.
func (e *Evaluator) Store() store.Store { return e.store }

// RunString parses and runs a script.
func (e *Evaluator) RunString(ctx context.Context, src string, env *registry.Env) (*Result, error) {
	script, err := ParseScript(src)
	if err != nil {
		return nil, err
	}
	return e.Run(ctx, script, env)
}

// Run executes a script. Parse errors, cancellation and an oversized item
// list abort the run and return an error; every other failure becomes a
// warning on the result.
func (e *Evaluator) Run(ctx context.Context, script *Script, env *registry.Env) (*Result, error) {
	env = e.newEnv(env)
	ctx, span := e.tracer.Start(ctx, "pipes.run", trace.WithAttributes(
		attribute.String("run.id", env.RunID),
		attribute.String("run.script", script.Source),
	))
	defer span.End()

	rc := newRunContext(env, e.newRand())
	items, err := e.seedItems(ctx, rc, script.Origin)
	if err == nil {
		items, err = e.apply(ctx, rc, script.Pipeline, items)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Debug("run aborted", zap.String("run", env.RunID), zap.Error(err))
		return nil, err
	}

	span.SetAttributes(attribute.Int("items.out", len(items)), attribute.Int("warnings", len(rc.warnings)))
	return rc.result(items), nil
}

// seedItems expands the origin into the initial items.
func (e *Evaluator) seedItems(ctx context.Context, rc *runContext, origin *expr.Tree) ([]string, error) {
	starts, err := origin.Strings(rc.rng)
	if err != nil {
		return nil, err
	}

	items := make([]string, 0, len(starts))
	for _, ts := range starts {
		if src, ok := ts.SingleSource(); ok {
			out, err := e.originSource(ctx, rc, src)
			if err != nil {
				if errs.IsAbort(err) {
					return nil, err
				}
				rc.warn("", err)
				continue
			}
			items = append(items, out...)
			continue
		}

		text, _, err := e.resolve(ctx, rc, ts, nil)
		if err != nil {
			if errs.IsAbort(err) {
				return nil, err
			}
			rc.warn("", err)
			continue
		}
		items = append(items, text)
	}
	return items, e.checkFlow(items)
}

// originSource runs a start string that is a single source call. Every
// item the source produces is kept.
func (e *Evaluator) originSource(ctx context.Context, rc *runContext, src expr.Source) ([]string, error) {
	argText, _, err := e.resolve(ctx, rc, expr.TemplatedString{Parts: sourceArgs(src)}, nil)
	if err != nil {
		return nil, err
	}
	out, err := e.produce(ctx, rc, src.Name, argText, src.Amount, nil)
	return out, errors.Wrapf(err, "source %s", src.Name)
}

// apply drives items through every segment of a pipeline.
func (e *Evaluator) apply(ctx context.Context, rc *runContext, p *Pipeline, items []string) ([]string, error) {
	for i, seg := range p.Segments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		segCtx, span := e.tracer.Start(ctx, "pipes.segment", trace.WithAttributes(
			attribute.Int("segment.index", i),
			attribute.String("segment.text", seg.String()),
			attribute.Int("items.in", len(items)),
		))

		var err error
		switch s := seg.(type) {
		case PrintMarker:
			rc.print(items)
		case *PipeCall:
			items, err = e.dispatch(segCtx, rc, s.Text, s.Mode, s.Branches, s.PickOne, items)
		case *ConditionalBranch:
			items, err = e.dispatch(segCtx, rc, s.Text, s.Mode, s.Branches, false, items)
		}
		if err == nil {
			err = e.checkFlow(items)
		}
		if err != nil {
			span.RecordError(err)
			span.End()
			return nil, err
		}
		span.SetAttributes(attribute.Int("items.out", len(items)))
		span.End()

		e.logger.Debug("segment",
			zap.String("run", rc.env.RunID),
			zap.Int("index", i),
			zap.String("text", seg.String()),
			zap.Int("items", len(items)),
			zap.Int("depth", rc.depth),
		)
	}
	return items, nil
}

func (e *Evaluator) checkFlow(items []string) error {
	if e.maxChars <= 0 {
		return nil
	}
	total := 0
	for _, item := range items {
		total += len(item)
	}
	if total > e.maxChars {
		return errors.Wrapf(errs.ErrFlowTooLarge, "%d characters (limit %d)", total, e.maxChars)
	}
	return nil
}

func (e *Evaluator) newEnv(env *registry.Env) *registry.Env {
	out := registry.Env{}
	if env != nil {
		out = *env
	}
	if out.RunID == "" {
		out.RunID = uuid.NewString()
	}
	if out.Logger == nil {
		out.Logger = e.logger
	}
	return &out
}

func (e *Evaluator) newRand() *rand.Rand {
	if e.seeded {
		return rand.New(rand.NewPCG(e.seed, e.seed))
	}
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}
