package eval

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/pkg/errors"

	"nickandperla.net/pipes/internal/errs"
	"nickandperla.net/pipes/internal/registry"
)

// Warning is a non-fatal problem recorded during a run.
type Warning struct {
	Category errs.Category
	Segment  string
	Message  string
}

func (w Warning) String() string {
	if w.Segment == "" {
		return w.Message
	}
	return fmt.Sprintf("in `%s`: %s", w.Segment, w.Message)
}

// Result is the outcome of a run.
type Result struct {
	Items      []string
	PrintLog   [][]string
	Warnings   []Warning
	Effects    []registry.Effect
	HasSpout   bool
	AlwaysPost bool
}

// ShouldPost reports whether the caller should post the final items. A run
// that reached a spout posts only if one of its spouts asked for it.
func (r *Result) ShouldPost() bool {
	return !r.HasSpout || r.AlwaysPost
}

// Flush runs the recorded side effects in order and stops at the first
// failure.
func (r *Result) Flush(ctx context.Context) error {
	for _, eff := range r.Effects {
		if err := ctx.Err(); err != nil {
			return err
		}
		if eff.Flush == nil {
			continue
		}
		if err := eff.Flush(ctx); err != nil {
			return errors.Wrapf(err, "spout %s", eff.Spout)
		}
	}
	return nil
}

// runContext is the mutable state of one run. Concurrent groups each get a
// fork, and forks are merged back in group order.
type runContext struct {
	env   *registry.Env
	rng   *rand.Rand
	vars  *Namespace
	depth int

	prints     [][]string
	warnings   []Warning
	effects    []registry.Effect
	hasSpout   bool
	alwaysPost bool
}

func newRunContext(env *registry.Env, rng *rand.Rand) *runContext {
	return &runContext{env: env, rng: rng}
}

// fork creates a child context with its own logs and random stream. The
// child's generator is seeded from the parent, so forking in a fixed order
// keeps seeded runs reproducible.
func (rc *runContext) fork() *runContext {
	return &runContext{
		env:   rc.env,
		rng:   rand.New(rand.NewPCG(rc.rng.Uint64(), rc.rng.Uint64())),
		vars:  rc.vars,
		depth: rc.depth,
	}
}

// merge appends a child's logs. keepPrints false drops its print columns.
func (rc *runContext) merge(child *runContext, keepPrints bool) {
	if keepPrints {
		rc.prints = append(rc.prints, child.prints...)
	}
	rc.warnings = append(rc.warnings, child.warnings...)
	rc.effects = append(rc.effects, child.effects...)
	rc.hasSpout = rc.hasSpout || child.hasSpout
	rc.alwaysPost = rc.alwaysPost || child.alwaysPost
}

func (rc *runContext) print(items []string) {
	rc.prints = append(rc.prints, append([]string{}, items...))
}

func (rc *runContext) warn(segment string, err error) {
	rc.warnings = append(rc.warnings, Warning{
		Category: errs.Classify(err),
		Segment:  segment,
		Message:  err.Error(),
	})
}

func (rc *runContext) warnf(segment string, cat errs.Category, format string, args ...interface{}) {
	rc.warnings = append(rc.warnings, Warning{
		Category: cat,
		Segment:  segment,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (rc *runContext) effect(eff registry.Effect) {
	rc.effects = append(rc.effects, eff)
	rc.hasSpout = true
	rc.alwaysPost = rc.alwaysPost || eff.AlwaysPost
}

func (rc *runContext) result(items []string) *Result {
	return &Result{
		Items:      items,
		PrintLog:   rc.prints,
		Warnings:   rc.warnings,
		Effects:    rc.effects,
		HasSpout:   rc.hasSpout,
		AlwaysPost: rc.alwaysPost,
	}
}
