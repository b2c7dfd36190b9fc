package expr

import (
	"math"
	"math/rand/v2"

	"github.com/pkg/errors"

	"nickandperla.net/pipes/internal/errs"
)

// MaxExpansions caps the number of strings a single tree may expand into.
const MaxExpansions = 4096

// Count returns the number of concrete strings the tree expands into.
// The result saturates at math.MaxInt.
func (t *Tree) Count() int {
	return count(t.Root)
}

// Expand returns every concrete string in order: depth-first, left to
// right, with the leftmost choice varying slowest.
func (t *Tree) Expand() ([]TemplatedString, error) {
	if n := t.Count(); n > MaxExpansions {
		return nil, errors.Wrapf(errs.ErrExpansionLimit, "%d expansions (limit %d)", n, MaxExpansions)
	}
	seqs := expand(t.Root)
	out := make([]TemplatedString, len(seqs))
	for i, parts := range seqs {
		out[i] = newTemplated(parts)
	}
	return out, nil
}

// Pick returns one concrete string, chosen uniformly over all leaves.
func (t *Tree) Pick(rng *rand.Rand) TemplatedString {
	return newTemplated(pick(t.Root, rng))
}

// Strings expands the tree, or picks one string if the pick-one flag is set.
func (t *Tree) Strings(rng *rand.Rand) ([]TemplatedString, error) {
	if t.PickOne {
		return []TemplatedString{t.Pick(rng)}, nil
	}
	return t.Expand()
}

func count(e Expr) int {
	switch e := e.(type) {
	case Choice:
		total := 0
		for _, alt := range e.Alts {
			total = saturatingAdd(total, count(alt))
		}
		return total
	case Compound:
		total := 1
		for _, sub := range e.Exprs {
			total = saturatingMul(total, count(sub))
		}
		return total
	case Source:
		if e.Args == nil {
			return 1
		}
		return count(e.Args)
	case TemplatedString:
		total := 1
		for _, sub := range e.Parts {
			total = saturatingMul(total, count(sub))
		}
		return total
	default:
		return 1
	}
}

func expand(e Expr) [][]Expr {
	switch e := e.(type) {
	case Empty:
		return [][]Expr{nil}
	case Choice:
		var out [][]Expr
		for _, alt := range e.Alts {
			out = append(out, expand(alt)...)
		}
		return out
	case Compound:
		return expandSeq(e.Exprs)
	case TemplatedString:
		return expandSeq(e.Parts)
	case Source:
		var out [][]Expr
		for _, args := range expand(argsOf(e)) {
			out = append(out, []Expr{Source{Name: e.Name, Amount: e.Amount, Args: newTemplated(args)}})
		}
		return out
	default:
		return [][]Expr{{e}}
	}
}

// expandSeq builds the cartesian product of a sequence. Earlier parts vary
// slowest.
func expandSeq(parts []Expr) [][]Expr {
	result := [][]Expr{nil}
	for _, part := range parts {
		options := expand(part)
		next := make([][]Expr, 0, len(result)*len(options))
		for _, prefix := range result {
			for _, opt := range options {
				combined := make([]Expr, 0, len(prefix)+len(opt))
				combined = append(combined, prefix...)
				combined = append(combined, opt...)
				next = append(next, combined)
			}
		}
		result = next
	}
	return result
}

func pick(e Expr, rng *rand.Rand) []Expr {
	switch e := e.(type) {
	case Empty:
		return nil
	case Choice:
		total := count(e)
		if total <= 0 || len(e.Alts) == 0 {
			return nil
		}
		n := rng.IntN(total)
		for _, alt := range e.Alts {
			c := count(alt)
			if n < c {
				return pick(alt, rng)
			}
			n -= c
		}
		return pick(e.Alts[len(e.Alts)-1], rng)
	case Compound:
		var out []Expr
		for _, sub := range e.Exprs {
			out = append(out, pick(sub, rng)...)
		}
		return out
	case TemplatedString:
		var out []Expr
		for _, sub := range e.Parts {
			out = append(out, pick(sub, rng)...)
		}
		return out
	case Source:
		return []Expr{Source{Name: e.Name, Amount: e.Amount, Args: newTemplated(pick(argsOf(e), rng))}}
	default:
		return []Expr{e}
	}
}

func argsOf(s Source) Expr {
	if s.Args == nil {
		return Empty{}
	}
	return s.Args
}

func saturatingAdd(a, b int) int {
	if a > math.MaxInt-b {
		return math.MaxInt
	}
	return a + b
}

func saturatingMul(a, b int) int {
	if a == 0 || b == 0 {
		return 0
	}
	if a > math.MaxInt/b {
		return math.MaxInt
	}
	return a * b
}
