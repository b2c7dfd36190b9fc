package groupmode

import (
	"math/rand/v2"

	"github.com/pkg/errors"

	"nickandperla.net/pipes/internal/errs"
)

// Passthrough is the Branch of an assignment whose items skip the segment.
const Passthrough = -1

// Assignment routes one group to one branch.
type Assignment struct {
	Items  []string
	Branch int
}

// AssignGroups routes groups to branch indices in output order.
//
// Without multiply the i-th processed group goes to branch i mod branches.
// With multiply every group goes to every branch, group-major. A switch
// sends each group to the branch of the first condition it satisfies.
func (m Mode) AssignGroups(groups []Group, branches int, rng *rand.Rand) ([]Assignment, error) {
	if branches < 1 {
		return nil, errors.Wrap(errs.ErrGroupMode, "no branches to assign to")
	}
	if m.Assign == AssignSwitch {
		return m.assignSwitch(groups, branches)
	}

	var out []Assignment
	i := 0
	for _, g := range groups {
		switch {
		case g.Passthrough:
			out = append(out, Assignment{Items: g.Items, Branch: Passthrough})
		case m.Multiply:
			for b := 0; b < branches; b++ {
				out = append(out, Assignment{Items: g.Items, Branch: b})
			}
		case m.Assign == AssignRandom:
			out = append(out, Assignment{Items: g.Items, Branch: randomBranch(rng, branches)})
		default:
			out = append(out, Assignment{Items: g.Items, Branch: i % branches})
			i++
		}
	}
	return out, nil
}

func (m Mode) assignSwitch(groups []Group, branches int) ([]Assignment, error) {
	c := len(m.Conditions)
	if branches != c {
		if m.Strictness != Lenient {
			return nil, errors.Wrapf(errs.ErrGroupMode, "strict switch needs %d branches, got %d", c, branches)
		}
		if branches != c+1 {
			return nil, errors.Wrapf(errs.ErrGroupMode, "switch with %d conditions needs %d or %d branches, got %d", c, c, c+1, branches)
		}
	}
	hasElse := branches == c+1

	var out []Assignment
	for _, g := range groups {
		if g.Passthrough {
			out = append(out, Assignment{Items: g.Items, Branch: Passthrough})
			continue
		}

		matched := false
		for i, cond := range m.Conditions {
			ok, err := cond.Check(g.Items)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			matched = true
			out = append(out, Assignment{Items: g.Items, Branch: i})
			if !m.Multiply {
				break
			}
		}
		if m.Multiply && hasElse {
			out = append(out, Assignment{Items: g.Items, Branch: c})
			continue
		}
		if matched {
			continue
		}

		switch {
		case hasElse:
			out = append(out, Assignment{Items: g.Items, Branch: c})
		case m.Strictness == Lenient:
			out = append(out, Assignment{Items: g.Items, Branch: Passthrough})
		case m.Strictness == VeryStrict:
			return nil, errors.Wrap(errs.ErrGroupMode, "very strict switch reached its default case")
		}
	}
	return out, nil
}

func randomBranch(rng *rand.Rand, n int) int {
	if rng == nil {
		return rand.IntN(n)
	}
	return rng.IntN(n)
}
