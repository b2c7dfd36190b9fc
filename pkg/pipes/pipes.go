// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package pipes

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"nickandperla.net/pipes/internal/eval"
	"nickandperla.net/pipes/internal/provider"
	"nickandperla.net/pipes/internal/registry"
	"nickandperla.net/pipes/internal/render"
	"nickandperla.net/pipes/internal/stdlib"
	"nickandperla.net/pipes/internal/store"
)

// Result is the outcome of one run.
type Result = eval.Result

// Macro is a stored pipe or source macro.
type Macro = store.Macro

// Runtime is the pipes script runtime.
type Runtime struct {
	evaluator *eval.Evaluator
	registry  *registry.Registry
	store     store.Store
	logger    *zap.Logger
	fs        afero.Fs
	provider  provider.Provider
	jsTimeout time.Duration
	evalOpts  []eval.Option
	extra     []func(*registry.Registry) error
	prelude   string // Custom prelude (if empty, uses DefaultPrelude)
	noStdlib  bool   // If true, skip the built-ins and the prelude
	err       error  // First option failure

	mu       sync.Mutex
	previous map[string][]string // Last output per origin
}

// New creates a new pipes runtime with the given options.
func New(opts ...Option) (*Runtime, error) {
	r := &Runtime{
		logger:   zap.NewNop(),
		previous: make(map[string][]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.err != nil {
		return nil, r.err
	}
	if r.store == nil {
		r.store = store.NewMemory()
	}

	r.registry = registry.New()
	if !r.noStdlib {
		libOpts := []stdlib.Option{stdlib.WithFs(r.fs), stdlib.WithJSTimeout(r.jsTimeout)}
		if r.provider != nil {
			libOpts = append(libOpts, stdlib.WithProvider(r.provider))
		}
		if err := stdlib.Register(r.registry, libOpts...); err != nil {
			return nil, err
		}
	}
	for _, reg := range r.extra {
		if err := reg(r.registry); err != nil {
			return nil, errors.Wrap(err, "registering extension")
		}
	}
	r.registry.Seal()

	evalOpts := append([]eval.Option{
		eval.WithRegistry(r.registry),
		eval.WithStore(r.store),
		eval.WithLogger(r.logger),
	}, r.evalOpts...)
	r.evaluator = eval.New(evalOpts...)

	if !r.noStdlib {
		prelude := r.prelude
		if prelude == "" {
			prelude = DefaultPrelude
		}
		if err := r.loadPrelude(prelude); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// loadPrelude stores the prelude's macros, keeping any already stored
// under the same name.
func (r *Runtime) loadPrelude(src string) error {
	macros, err := store.LoadYAML(strings.NewReader(src))
	if err != nil {
		return errors.Wrap(err, "loading prelude")
	}
	for _, m := range macros {
		existing, err := r.store.Get(m.Name)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		if err := r.store.Put(m); err != nil {
			return errors.Wrapf(err, "storing prelude macro %s", m.Name)
		}
	}
	return nil
}

// Run parses and runs a script. origin names who started the run; the
// previous source returns the output of that origin's last run.
func (r *Runtime) Run(ctx context.Context, origin, script string) (*Result, error) {
	r.mu.Lock()
	prev := r.previous[origin]
	r.mu.Unlock()

	res, err := r.evaluator.RunString(ctx, script, &registry.Env{Origin: origin, Previous: prev})
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.previous[origin] = res.Items
	r.mu.Unlock()
	return res, nil
}

// Execute runs a script, flushes its side effects and renders its output.
func (r *Runtime) Execute(ctx context.Context, origin, script string) (string, *Result, error) {
	res, err := r.Run(ctx, origin, script)
	if err != nil {
		return "", nil, err
	}
	if err := res.Flush(ctx); err != nil {
		return render.Result(res), res, err
	}
	return render.Result(res), res, nil
}

// Define validates and stores a macro.
func (r *Runtime) Define(m *Macro) error {
	return r.store.Put(m)
}

// Undefine removes a macro.
func (r *Runtime) Undefine(name string) error {
	return r.store.Delete(name)
}

// Macros lists the stored macros.
func (r *Runtime) Macros() ([]*Macro, error) {
	return r.store.List()
}

// Store returns the runtime's macro store.
func (r *Runtime) Store() store.Store { return r.store }

// Registry returns the sealed registry of built-ins and extensions.
func (r *Runtime) Registry() *registry.Registry { return r.registry }

// Close releases resources.
func (r *Runtime) Close() error {
	return r.store.Close()
}
