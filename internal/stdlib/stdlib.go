// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package stdlib provides the built-in pipes, sources and spouts.
package stdlib

import (
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"nickandperla.net/pipes/internal/args"
	"nickandperla.net/pipes/internal/config"
	"nickandperla.net/pipes/internal/provider"
	"nickandperla.net/pipes/internal/registry"
)

// Option configures the built-ins.
type Option func(*lib)

type lib struct {
	fs        afero.Fs
	provider  provider.Provider
	jsTimeout time.Duration
}

// WithFs sets the filesystem the file source and write spout use.
// The default is the OS filesystem rooted at config.FilesDir.
func WithFs(fs afero.Fs) Option {
	return func(l *lib) { l.fs = fs }
}

// WithJSTimeout bounds each js pipe call. Non-positive values keep the
// default.
func WithJSTimeout(d time.Duration) Option {
	return func(l *lib) {
		if d > 0 {
			l.jsTimeout = d
		}
	}
}

// WithProvider enables the llm pipe.
func WithProvider(p provider.Provider) Option {
	return func(l *lib) { l.provider = p }
}

type builtin struct {
	name string
	kind registry.Kind
	sig  args.Signature
	desc string
	impl interface{}
}

// Register adds every built-in to r.
func Register(r *registry.Registry, opts ...Option) error {
	l := &lib{jsTimeout: config.DefaultJSTimeout}
	for _, opt := range opts {
		opt(l)
	}
	if l.fs == nil {
		l.fs = afero.NewBasePathFs(afero.NewOsFs(), config.FilesDir())
	}

	builtins := append(l.pipes(), l.sources()...)
	builtins = append(builtins, l.spouts()...)
	for _, b := range builtins {
		if err := r.Register(b.name, b.kind, b.sig, b.desc, b.impl); err != nil {
			return errors.Wrapf(err, "registering built-in %s", b.name)
		}
	}
	return nil
}

// amount returns how many items a source should produce given its natural
// count. A negative result means no limit.
func amount(call *registry.Call, natural int) int {
	switch {
	case call.Amount > 0:
		return call.Amount
	case call.Amount < 0:
		return -1
	}
	return natural
}

// maxItems bounds how many items a single built-in call may create.
const maxItems = 10000

func atMost(bound int) func(string) error {
	return func(v string) error {
		if n, err := strconv.Atoi(v); err == nil && n > bound {
			return errors.Errorf("must be at most %d", bound)
		}
		return nil
	}
}

func limit(items []string, n int) []string {
	if n >= 0 && n < len(items) {
		return items[:n]
	}
	return items
}
