// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package registry holds the named sources, pipes and spouts a script can call.
//
// A Registry is populated once, sealed, and then only read, so it can be
// shared by concurrent runs.
package registry

import (
	"context"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"nickandperla.net/pipes/internal/args"
	"nickandperla.net/pipes/internal/errs"
)

// Kind is the role a callable plays in a pipeline.
type Kind int

const (
	Pipe Kind = iota
	Source
	Spout
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case Source:
		return "source"
	case Spout:
		return "spout"
	default:
		return "pipe"
	}
}

// Env is the run-level side channel every call can read.
type Env struct {
	RunID    string
	Origin   string   // Who or what started the run
	Previous []string // Output of the previous run on the same origin
	Logger   *zap.Logger
}

// Call carries the inputs of one invocation.
type Call struct {
	Items  []string
	Args   args.Values
	Amount int // Requested item count for sources; 0 is the default, expr.AmountAll is everything
	Env    *Env
	Rand   *rand.Rand
}

// Log returns the call's logger, never nil.
func (c *Call) Log() *zap.Logger {
	if c.Env == nil || c.Env.Logger == nil {
		return zap.NewNop()
	}
	return c.Env.Logger
}

// IntN returns a random number in [0, n) from the call's generator.
func (c *Call) IntN(n int) int {
	if c.Rand == nil {
		return rand.IntN(n)
	}
	return c.Rand.IntN(n)
}

// TextTransform is implemented by pipes.
type TextTransform interface {
	Transform(ctx context.Context, call *Call) ([]string, error)
}

// TextProducer is implemented by sources.
type TextProducer interface {
	Produce(ctx context.Context, call *Call) ([]string, error)
}

// SideEffect is implemented by spouts. Hook records what to do; the
// returned Effect runs only when the caller flushes the run's effects.
type SideEffect interface {
	Hook(ctx context.Context, call *Call) (Effect, error)
}

// Effect is a deferred side effect produced by a spout.
type Effect struct {
	Spout      string
	Items      []string
	Args       args.Values
	AlwaysPost bool // The caller should still post the final items
	Flush      func(ctx context.Context) error
}

// PipeFunc adapts a function to TextTransform.
type PipeFunc func(ctx context.Context, call *Call) ([]string, error)

func (f PipeFunc) Transform(ctx context.Context, call *Call) ([]string, error) { return f(ctx, call) }

// SourceFunc adapts a function to TextProducer.
type SourceFunc func(ctx context.Context, call *Call) ([]string, error)

func (f SourceFunc) Produce(ctx context.Context, call *Call) ([]string, error) { return f(ctx, call) }

// SpoutFunc adapts a function to SideEffect.
type SpoutFunc func(ctx context.Context, call *Call) (Effect, error)

func (f SpoutFunc) Hook(ctx context.Context, call *Call) (Effect, error) { return f(ctx, call) }

// Entry is a registered callable.
type Entry struct {
	Name      string
	Kind      Kind
	Signature args.Signature
	Desc      string
	Impl      interface{}
}

// Pipe returns the entry's transform, if it is a pipe.
func (e Entry) Pipe() (TextTransform, bool) {
	t, ok := e.Impl.(TextTransform)
	return t, ok && e.Kind == Pipe
}

// Source returns the entry's producer, if it is a source.
func (e Entry) Source() (TextProducer, bool) {
	p, ok := e.Impl.(TextProducer)
	return p, ok && e.Kind == Source
}

// Spout returns the entry's side effect, if it is a spout.
func (e Entry) Spout() (SideEffect, bool) {
	s, ok := e.Impl.(SideEffect)
	return s, ok && e.Kind == Spout
}

// ErrSealed is returned when registering into a sealed registry.
var ErrSealed = errors.New("registry is sealed")

// Registry maps names to callables. Sources live in their own namespace;
// pipes and spouts share one.
type Registry struct {
	mu      sync.Mutex
	sealed  atomic.Bool
	sources map[string]Entry
	pipes   map[string]Entry
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		sources: make(map[string]Entry),
		pipes:   make(map[string]Entry),
	}
}

// Register adds a callable. impl must implement the capability interface
// matching kind.
func (r *Registry) Register(name string, kind Kind, sig args.Signature, desc string, impl interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed.Load() {
		return errors.Wrapf(ErrSealed, "registering %s %q", kind, name)
	}
	name = Normalize(name)
	if name == "" {
		return errors.New("empty name")
	}

	entry := Entry{Name: name, Kind: kind, Signature: sig, Desc: desc, Impl: impl}
	var ok bool
	switch kind {
	case Pipe:
		_, ok = entry.Pipe()
	case Source:
		_, ok = entry.Source()
	case Spout:
		_, ok = entry.Spout()
	}
	if !ok {
		return errors.Errorf("%s %q does not implement the %s interface", kind, name, kind)
	}

	if kind == Source {
		r.sources[name] = entry
	} else {
		r.pipes[name] = entry
	}
	return nil
}

// RegisterPipe adds a pipe.
func (r *Registry) RegisterPipe(name string, sig args.Signature, desc string, fn PipeFunc) error {
	return r.Register(name, Pipe, sig, desc, fn)
}

// RegisterSource adds a source.
func (r *Registry) RegisterSource(name string, sig args.Signature, desc string, fn SourceFunc) error {
	return r.Register(name, Source, sig, desc, fn)
}

// RegisterSpout adds a spout.
func (r *Registry) RegisterSpout(name string, sig args.Signature, desc string, fn SpoutFunc) error {
	return r.Register(name, Spout, sig, desc, fn)
}

// Seal ends the population phase. Lookups after Seal take no locks.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed.Store(true)
	r.mu.Unlock()
}

// Sealed reports whether Seal has been called.
func (r *Registry) Sealed() bool {
	return r.sealed.Load()
}

// Resolve finds a callable of the given kind. Pipe and spout lookups search
// the shared namespace, so asking for a Pipe may return a Spout entry.
func (r *Registry) Resolve(name string, kind Kind) (Entry, error) {
	name = Normalize(name)
	var entry Entry
	var ok bool
	if kind == Source {
		entry, ok = r.lookup(r.sources, name)
	} else {
		entry, ok = r.lookup(r.pipes, name)
	}
	if !ok {
		return Entry{}, errors.Wrapf(errs.ErrUnknownName, "unknown %s `%s`", kind, name)
	}
	return entry, nil
}

// Lookup finds a callable by name in either namespace, pipes and spouts first.
func (r *Registry) Lookup(name string) (Entry, bool) {
	name = Normalize(name)
	if e, ok := r.lookup(r.pipes, name); ok {
		return e, true
	}
	return r.lookup(r.sources, name)
}

func (r *Registry) lookup(m map[string]Entry, name string) (Entry, bool) {
	if !r.sealed.Load() {
		r.mu.Lock()
		defer r.mu.Unlock()
	}
	e, ok := m[name]
	return e, ok
}

// Entries lists registered callables of a kind, sorted by name.
func (r *Registry) Entries(kind Kind) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.pipes
	if kind == Source {
		m = r.sources
	}
	var out []Entry
	for _, e := range m {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Normalize returns the canonical form of a callable name.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
