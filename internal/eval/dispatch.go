// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package eval

import (
	"context"

	"golang.org/x/sync/errgroup"

	"nickandperla.net/pipes/internal/errs"
	"nickandperla.net/pipes/internal/groupmode"
)

// dispatch runs one pipe segment: resolve each branch's arguments against
// the input, take out the referenced items, split the rest into groups and
// send each group to its branch.
//
// A resolution or group-mode failure empties the segment. A failing call
// empties only its own group.
func (e *Evaluator) dispatch(ctx context.Context, rc *runContext, text string, mode groupmode.Mode, branches []Branch, pickOne bool, items []string) ([]string, error) {
	if pickOne && len(branches) > 1 {
		branches = []Branch{branches[rc.rng.IntN(len(branches))]}
	}

	var cons Consumption
	bound := make([]*boundBranch, len(branches))
	for i, b := range branches {
		bb, c, err := e.bind(ctx, rc, text, b, items)
		if err != nil {
			if errs.IsAbort(err) {
				return nil, err
			}
			rc.warn(text, err)
			return nil, nil
		}
		bb.keepPrints = mode.IsTrivial()
		bound[i] = bb
		cons.add(c)
	}

	retained := make([]string, 0, len(cons.Retained))
	for _, i := range cons.Retained {
		retained = append(retained, items[i])
	}
	input := make([]string, 0, len(items))
	for i, item := range items {
		if !cons.Has(i) {
			input = append(input, item)
		}
	}

	groups, err := mode.Partition(input)
	if err != nil {
		rc.warn(text, err)
		return nil, nil
	}
	assigns, err := mode.AssignGroups(groups, len(bound), rc.rng)
	if err != nil {
		rc.warn(text, err)
		return nil, nil
	}

	out, err := e.runGroups(ctx, rc, text, assigns, bound)
	if err != nil {
		return nil, err
	}
	return append(retained, out...), nil
}

// runGroups invokes every assignment, up to e.workers at a time, and
// concatenates the outputs in assignment order. Each group works on its
// own fork of the run context; the forks are merged back in order.
func (e *Evaluator) runGroups(ctx context.Context, rc *runContext, text string, assigns []groupmode.Assignment, bound []*boundBranch) ([]string, error) {
	outs := make([][]string, len(assigns))
	forks := make([]*runContext, len(assigns))
	for i := range assigns {
		forks[i] = rc.fork()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, a := range assigns {
		if a.Branch == groupmode.Passthrough {
			outs[i] = a.Items
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			group := append([]string{}, a.Items...)
			out, err := e.invoke(gctx, forks[i], bound[a.Branch], group)
			if err != nil {
				if errs.IsAbort(err) {
					return err
				}
				forks[i].warn(text, err)
				return nil
			}
			outs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []string
	for i := range assigns {
		rc.merge(forks[i], true)
		out = append(out, outs[i]...)
	}
	return out, nil
}
