package eval

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"nickandperla.net/pipes/internal/errs"
	"nickandperla.net/pipes/internal/expr"
)

// Consumption lists the input indices a templated string referenced.
type Consumption struct {
	Consumed map[int]bool
	Retained []int // Ascending
}

// Has reports whether index i was consumed or retained.
func (c Consumption) Has(i int) bool {
	if c.Consumed[i] {
		return true
	}
	for _, r := range c.Retained {
		if r == i {
			return true
		}
	}
	return false
}

// add merges other into c.
func (c *Consumption) add(other Consumption) {
	if c.Consumed == nil {
		c.Consumed = map[int]bool{}
	}
	for i := range other.Consumed {
		c.Consumed[i] = true
	}
	c.Retained = append(c.Retained, other.Retained...)
	c.normalize()
}

// normalize sorts and dedups Retained and drops retained indices from
// Consumed.
func (c *Consumption) normalize() {
	sort.Ints(c.Retained)
	var out []int
	for _, r := range c.Retained {
		if len(out) == 0 || r != out[len(out)-1] {
			out = append(out, r)
		}
		delete(c.Consumed, r)
	}
	c.Retained = out
}

// Resolve substitutes every placeholder of ts against items and reports
// which indices were referenced. Sources are looked up in the evaluator's
// registry and macro store.
func (e *Evaluator) Resolve(ctx context.Context, ts expr.TemplatedString, items []string) (string, Consumption, error) {
	rc := newRunContext(e.newEnv(nil), e.newRand())
	return e.resolve(ctx, rc, ts, items)
}

func (e *Evaluator) resolve(ctx context.Context, rc *runContext, ts expr.TemplatedString, items []string) (string, Consumption, error) {
	if ts.IsLiteral() {
		return ts.String(), Consumption{}, nil
	}
	r := &resolver{e: e, rc: rc, items: items, cons: Consumption{Consumed: map[int]bool{}}}
	text, err := r.level(ctx, ts.Parts)
	if err != nil {
		return "", Consumption{}, err
	}
	r.cons.normalize()
	return text, r.cons, nil
}

type resolver struct {
	e     *Evaluator
	rc    *runContext
	items []string
	cons  Consumption

	// Implicit numbering of the current level. Source arguments start
	// their own level, so "{} {s v={}} {}" reads items 0, 0 and 1.
	next     int
	implicit bool
	explicit bool
}

// level resolves parts with a fresh implicit counter and warns when the
// level mixes {} with numbered {n}.
func (r *resolver) level(ctx context.Context, parts []expr.Expr) (string, error) {
	next, implicit, explicit := r.next, r.implicit, r.explicit
	r.next, r.implicit, r.explicit = 0, false, false
	defer func() { r.next, r.implicit, r.explicit = next, implicit, explicit }()

	text, err := r.parts(ctx, parts)
	if err == nil && r.implicit && r.explicit {
		r.rc.warnf("", errs.Resolution, "do not mix empty `{}`'s with numbered `{}`'s")
	}
	return text, err
}

func (r *resolver) parts(ctx context.Context, parts []expr.Expr) (string, error) {
	var b strings.Builder
	for _, part := range parts {
		switch p := part.(type) {
		case expr.Text:
			b.WriteString(p.Value)

		case expr.Item:
			i := p.Index
			if p.Explicit {
				r.explicit = true
			} else {
				i = r.next
				r.next++
				r.implicit = true
			}
			j := i
			if j < 0 {
				j += len(r.items)
			}
			if j < 0 || j >= len(r.items) {
				return "", errors.Wrapf(errs.ErrIndexOutOfRange, "`%s` with %d items", p.String(), len(r.items))
			}
			b.WriteString(r.items[j])
			if p.Retain {
				r.cons.Retained = append(r.cons.Retained, j)
			} else {
				r.cons.Consumed[j] = true
			}

		case expr.Var:
			v, ok := r.rc.vars.Get(p.Name)
			if !ok {
				return "", errors.Wrapf(errs.ErrUnknownName, "unknown variable `%s`", p.Name)
			}
			b.WriteString(v)

		case expr.Source:
			argText, err := r.level(ctx, sourceArgs(p))
			if err != nil {
				return "", err
			}
			out, err := r.e.produce(ctx, r.rc, p.Name, argText, p.Amount, nil)
			if err != nil {
				return "", errors.Wrapf(err, "source %s", p.Name)
			}
			if len(out) > 0 {
				b.WriteString(out[0])
			}

		case expr.Compound:
			text, err := r.parts(ctx, p.Exprs)
			if err != nil {
				return "", err
			}
			b.WriteString(text)

		case expr.TemplatedString:
			text, err := r.parts(ctx, p.Parts)
			if err != nil {
				return "", err
			}
			b.WriteString(text)

		case expr.Empty:

		default:
			return "", errors.Wrapf(errs.ErrMalformedPlaceholder, "unexpected `%s`", part.String())
		}
	}
	return b.String(), nil
}

func sourceArgs(s expr.Source) []expr.Expr {
	switch a := s.Args.(type) {
	case nil:
		return nil
	case expr.TemplatedString:
		return a.Parts
	default:
		return expr.Flatten(a)
	}
}
