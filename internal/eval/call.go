package eval

import (
	"context"

	"github.com/pkg/errors"

	"nickandperla.net/pipes/internal/args"
	"nickandperla.net/pipes/internal/errs"
	"nickandperla.net/pipes/internal/registry"
	"nickandperla.net/pipes/internal/store"
)

type callKind int

const (
	callNop callKind = iota
	callPrint
	callPipe
	callSource
	callSpout
	callPipeMacro
	callSourceMacro
	callInline
)

// boundBranch is a branch with its callable looked up and its arguments
// resolved for one segment evaluation.
type boundBranch struct {
	kind       callKind
	name       string
	entry      registry.Entry
	args       args.Values
	pipeline   *Pipeline // Inline pipeline or pipe macro body
	script     *Script   // Source macro body
	vars       *Namespace
	keepPrints bool
}

// bind resolves a branch's argument string against items and looks up what
// it calls. Natives shadow macros of the same name.
func (e *Evaluator) bind(ctx context.Context, rc *runContext, segment string, b Branch, items []string) (*boundBranch, Consumption, error) {
	switch {
	case b.Sub != nil:
		return &boundBranch{kind: callInline, pipeline: b.Sub}, Consumption{}, nil
	case b.IsNop():
		return &boundBranch{kind: callNop, name: NopName}, Consumption{}, nil
	case b.Name == PrintName:
		return &boundBranch{kind: callPrint, name: PrintName}, Consumption{}, nil
	}

	text, cons, err := e.resolve(ctx, rc, b.Args, items)
	if err != nil {
		return nil, Consumption{}, errors.Wrapf(err, "arguments of %s", b.Name)
	}

	bb := &boundBranch{name: b.Name}
	var sig args.Signature
	if entry, err := e.registry.Resolve(b.Name, registry.Pipe); err == nil {
		bb.entry, sig = entry, entry.Signature
		bb.kind = callPipe
		if entry.Kind == registry.Spout {
			bb.kind = callSpout
		}
	} else if entry, err := e.registry.Resolve(b.Name, registry.Source); err == nil {
		bb.entry, sig = entry, entry.Signature
		bb.kind = callSource
	} else {
		m, err := e.macro(b.Name)
		if err != nil {
			return nil, Consumption{}, err
		}
		sig = m.Signature()
		if m.Kind == store.SourceMacro {
			bb.kind = callSourceMacro
			bb.script, err = e.macroScript(m)
		} else {
			bb.kind = callPipeMacro
			bb.pipeline, err = e.macroPipeline(m)
		}
		if err != nil {
			return nil, Consumption{}, err
		}
	}

	values, warnings, err := args.Parse(text, sig)
	if err != nil {
		return nil, Consumption{}, errors.Wrapf(err, "arguments of %s", b.Name)
	}
	for _, w := range warnings {
		rc.warnf(segment, errs.Resolution, "%s: %s", b.Name, w)
	}
	bb.args = values
	if bb.kind == callPipeMacro || bb.kind == callSourceMacro {
		bb.vars = NewNamespace(values)
	}
	return bb, cons, nil
}

// invoke runs one group through a bound branch.
func (e *Evaluator) invoke(ctx context.Context, rc *runContext, bb *boundBranch, items []string) ([]string, error) {
	call := &registry.Call{Items: items, Args: bb.args, Env: rc.env, Rand: rc.rng}

	switch bb.kind {
	case callNop:
		return items, nil

	case callPrint:
		rc.print(items)
		return items, nil

	case callPipe:
		pipe, _ := bb.entry.Pipe()
		out, err := pipe.Transform(ctx, call)
		return out, errors.Wrapf(err, "pipe %s", bb.name)

	case callSource:
		src, _ := bb.entry.Source()
		out, err := src.Produce(ctx, call)
		return out, errors.Wrapf(err, "source %s", bb.name)

	case callSpout:
		spout, _ := bb.entry.Spout()
		eff, err := spout.Hook(ctx, call)
		if err != nil {
			return nil, errors.Wrapf(err, "spout %s", bb.name)
		}
		if eff.Spout == "" {
			eff.Spout = bb.name
		}
		if eff.Items == nil {
			eff.Items = items
		}
		rc.effect(eff)
		return items, nil

	case callInline:
		sub := rc.fork()
		out, err := e.apply(ctx, sub, bb.pipeline, items)
		if err != nil {
			return nil, err
		}
		rc.merge(sub, bb.keepPrints)
		return out, nil

	case callPipeMacro:
		return e.inMacro(rc, bb, func() ([]string, error) {
			return e.apply(ctx, rc, bb.pipeline, items)
		})

	case callSourceMacro:
		return e.inMacro(rc, bb, func() ([]string, error) {
			return e.runScript(ctx, rc, bb.script)
		})
	}
	return nil, errors.Errorf("unknown call kind %d", bb.kind)
}

// produce calls a source by name, as a placeholder or an origin does.
func (e *Evaluator) produce(ctx context.Context, rc *runContext, name, argText string, amount int, items []string) ([]string, error) {
	if entry, err := e.registry.Resolve(name, registry.Source); err == nil {
		values, warnings, err := args.Parse(argText, entry.Signature)
		if err != nil {
			return nil, err
		}
		for _, w := range warnings {
			rc.warnf("", errs.Resolution, "%s: %s", name, w)
		}
		src, _ := entry.Source()
		call := &registry.Call{Items: items, Args: values, Amount: amount, Env: rc.env, Rand: rc.rng}
		return src.Produce(ctx, call)
	}

	m, err := e.macro(name)
	if err != nil {
		return nil, err
	}
	if m.Kind != store.SourceMacro {
		return nil, errors.Wrapf(errs.ErrUnknownName, "`%s` is a pipe macro, not a source", name)
	}
	script, err := e.macroScript(m)
	if err != nil {
		return nil, err
	}
	values, warnings, err := args.Parse(argText, m.Signature())
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		rc.warnf("", errs.Resolution, "%s: %s", name, w)
	}
	bb := &boundBranch{kind: callSourceMacro, name: name, script: script, vars: NewNamespace(values)}
	return e.inMacro(rc, bb, func() ([]string, error) {
		return e.runScript(ctx, rc, script)
	})
}

// runScript seeds and applies a script inside an existing run.
func (e *Evaluator) runScript(ctx context.Context, rc *runContext, script *Script) ([]string, error) {
	items, err := e.seedItems(ctx, rc, script.Origin)
	if err != nil {
		return nil, err
	}
	return e.apply(ctx, rc, script.Pipeline, items)
}
