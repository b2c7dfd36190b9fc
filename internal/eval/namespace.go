// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package eval parses and executes pipes scripts.
package eval

import (
	"sort"

	"nickandperla.net/pipes/internal/args"
)

// Namespace holds the variables of one macro invocation. It is never
// modified after creation, so forks of a run share it freely.
type Namespace struct {
	vars map[string]string
}

// NewNamespace creates a namespace from bound macro arguments.
func NewNamespace(values args.Values) *Namespace {
	vars := make(map[string]string, len(values))
	for k, v := range values {
		vars[k] = v
	}
	return &Namespace{vars: vars}
}

// Get retrieves a variable by name.
func (n *Namespace) Get(name string) (string, bool) {
	if n == nil {
		return "", false
	}
	v, ok := n.vars[name]
	return v, ok
}

// Names returns the variable names in sorted order.
func (n *Namespace) Names() []string {
	if n == nil {
		return nil
	}
	names := make([]string, 0, len(n.vars))
	for k := range n.vars {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
