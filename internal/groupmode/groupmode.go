// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package groupmode splits item lists into groups and assigns the groups
// to parallel branches.
//
// A Mode is a chain of splits followed by an assignment. Splits either
// partition the items (Row, Divide, Modulo, Column) or select a range and
// let the rest pass through untouched (Index, Interval).
package groupmode

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"nickandperla.net/pipes/internal/errs"
)

// SplitKind identifies a split algorithm.
type SplitKind int

const (
	Row SplitKind = iota
	Divide
	Modulo
	Column
	Interval
)

// MaxGroups bounds the count of a single split and the number of groups a
// whole split chain may produce.
const MaxGroups = 4096

// Strictness levels for splits and switches.
const (
	Lenient = iota
	Strict
	VeryStrict
)

// Split is one stage of a mode's split chain.
type Split struct {
	Kind       SplitKind
	N          int  // Row size, Divide count, Modulo count or Column size
	Padding    bool // Fill short groups with empty items
	Strictness int

	// Interval bounds. An Index split has Single set and only uses Start.
	Start    int
	StartEnd bool // Start was written as -0, i.e. the end of the list
	End      int
	EndOpen  bool // No end, or -0: up to the end of the list
	Single   bool
}

// Group is a slice of items handed to one branch, or passed through.
type Group struct {
	Items       []string
	Passthrough bool
}

// AssignKind identifies how groups are routed to branches.
type AssignKind int

const (
	AssignDefault AssignKind = iota
	AssignRandom
	AssignSwitch
)

// Mode is a parsed group mode.
type Mode struct {
	Splits     []Split
	Multiply   bool
	Assign     AssignKind
	Conditions []Condition
	Strictness int // Applies to AssignSwitch
}

// IsTrivial returns true for the default mode: one group, first branch.
func (m Mode) IsTrivial() bool {
	return len(m.Splits) == 0 && !m.Multiply && m.Assign == AssignDefault
}

// IsSingular returns true if the mode never produces more than one
// invocation per branch list.
func (m Mode) IsSingular() bool {
	return len(m.Splits) == 0 && !m.Multiply
}

func (m Mode) String() string {
	if m.IsTrivial() {
		return "TRIVIAL"
	}
	var parts []string
	if m.Multiply {
		parts = append(parts, "MULTIPLY")
	}
	for _, s := range m.Splits {
		parts = append(parts, s.String())
	}
	switch m.Assign {
	case AssignRandom:
		parts = append(parts, "RANDOM")
	case AssignSwitch:
		conds := make([]string, len(m.Conditions))
		for i, c := range m.Conditions {
			conds[i] = c.String()
		}
		parts = append(parts, strictnessPrefix(m.Strictness)+"SWITCH {"+strings.Join(conds, " | ")+"}")
	}
	return strings.Join(parts, " > ")
}

func (s Split) String() string {
	pad := ""
	if s.Padding {
		pad = " WITH PADDING"
	}
	prefix := strictnessPrefix(s.Strictness)
	switch s.Kind {
	case Row:
		return fmt.Sprintf("%sROWS SIZE %d%s", prefix, s.N, pad)
	case Divide:
		return fmt.Sprintf("%sDIVIDE INTO %d%s", prefix, s.N, pad)
	case Modulo:
		return fmt.Sprintf("%sMODULO %d%s", prefix, s.N, pad)
	case Column:
		return fmt.Sprintf("%sCOLUMNS SIZE %d%s", prefix, s.N, pad)
	}
	if s.Single {
		return fmt.Sprintf("%sINDEX AT %s", prefix, bound(s.Start, s.StartEnd))
	}
	return fmt.Sprintf("%sINTERVAL FROM %s TO %s", prefix, bound(s.Start, s.StartEnd), bound(s.End, s.EndOpen))
}

func bound(n int, end bool) string {
	if end {
		return "END"
	}
	return fmt.Sprint(n)
}

func strictnessPrefix(level int) string {
	switch level {
	case Strict:
		return "STRICT "
	case VeryStrict:
		return "VERY STRICT "
	}
	return ""
}

// Partition applies the split chain to items. Pass-through groups are
// never split further.
func (m Mode) Partition(items []string) ([]Group, error) {
	groups := []Group{{Items: items}}
	for _, split := range m.Splits {
		var next []Group
		for _, g := range groups {
			if g.Passthrough {
				next = append(next, g)
				continue
			}
			out, err := split.Apply(g.Items)
			if err != nil {
				return nil, err
			}
			next = append(next, out...)
			if len(next) > MaxGroups {
				return nil, errors.Wrapf(errs.ErrGroupMode, "more than %d groups", MaxGroups)
			}
		}
		groups = next
	}
	return groups, nil
}

// Apply runs a single split over items.
func (s Split) Apply(items []string) ([]Group, error) {
	switch s.Kind {
	case Row:
		return s.row(items)
	case Divide:
		return s.divide(items)
	case Modulo:
		return s.strided(items, s.N, len(items)%s.N)
	case Column:
		return s.column(items)
	case Interval:
		return s.interval(items)
	}
	return nil, errors.Wrapf(errs.ErrGroupMode, "unknown split kind %d", s.Kind)
}

func (s Split) row(items []string) ([]Group, error) {
	size := s.N
	if rest := len(items) % size; rest != 0 {
		switch {
		case s.Strictness == VeryStrict:
			return nil, errors.Wrapf(errs.ErrGroupMode, "could not strictly group %d items into rows of %d", len(items), size)
		case s.Strictness == Strict:
			items = items[:len(items)-rest]
		case s.Padding:
			items = pad(items, size-rest)
		}
	}
	if len(items) == 0 {
		return s.emptyResult(1)
	}
	var out []Group
	for i := 0; i < len(items); i += size {
		end := min(i+size, len(items))
		out = append(out, Group{Items: items[i:end]})
	}
	return out, nil
}

func (s Split) divide(items []string) ([]Group, error) {
	count := s.N
	size := len(items) / count
	rest := len(items) % count
	if rest != 0 {
		switch {
		case s.Strictness == VeryStrict:
			return nil, errors.Wrapf(errs.ErrGroupMode, "could not strictly divide %d items into %d groups", len(items), count)
		case s.Strictness == Strict:
			items = items[:size*count]
			rest = 0
		case s.Padding:
			items = pad(items, count-rest)
			size++
			rest = 0
		}
	}
	if len(items) == 0 {
		return s.emptyResult(count)
	}
	out := make([]Group, count)
	for i := 0; i < count; i++ {
		left := i*size + min(rest, i)
		right := (i+1)*size + min(rest, i+1)
		out[i] = Group{Items: items[left:right]}
	}
	return out, nil
}

// strided builds count groups where group i holds every item whose index
// is congruent to i modulo count.
func (s Split) strided(items []string, count, rest int) ([]Group, error) {
	if rest != 0 {
		switch {
		case s.Strictness == VeryStrict:
			return nil, errors.Wrapf(errs.ErrGroupMode, "could not strictly group %d items into %d columns", len(items), count)
		case s.Strictness == Strict:
			items = items[:len(items)-rest]
		case s.Padding:
			items = pad(items, count-rest)
		}
	}
	if len(items) == 0 {
		return s.emptyResult(count)
	}
	out := make([]Group, count)
	for i := 0; i < count; i++ {
		var vals []string
		for x := i; x < len(items); x += count {
			vals = append(vals, items[x])
		}
		out[i] = Group{Items: vals}
	}
	return out, nil
}

// column reads items as rows of length count and returns the columns.
func (s Split) column(items []string) ([]Group, error) {
	size := s.N
	count := len(items) / size
	if rest := len(items) % size; rest != 0 {
		switch {
		case s.Strictness == VeryStrict:
			return nil, errors.Wrapf(errs.ErrGroupMode, "could not strictly group %d items into columns of %d", len(items), size)
		case s.Strictness == Strict:
			items = items[:len(items)-rest]
		case s.Padding:
			items = pad(items, size-rest)
			count++
		}
	}
	if len(items) == 0 {
		return s.emptyResult(1)
	}
	count = max(count, 1)
	return Split{Kind: Modulo, N: count}.strided(items, count, 0)
}

func (s Split) interval(items []string) ([]Group, error) {
	length := len(items)
	if length == 0 {
		return []Group{{Items: items}}, nil
	}

	start := s.Start
	if s.StartEnd {
		start = length
	}
	var end int
	switch {
	case s.Single && (s.StartEnd || s.Start == -1):
		end = length
	case s.Single:
		end = start + 1
	case s.EndOpen:
		end = length
	default:
		end = s.End
	}

	start = wrap(start, length)
	end = wrap(end, length)
	start = min(start, length)
	end = min(end, length)
	if end < start {
		end = start
	}

	switch s.Strictness {
	case Lenient:
		return []Group{
			{Items: items[:start], Passthrough: true},
			{Items: items[start:end]},
			{Items: items[end:], Passthrough: true},
		}, nil
	case VeryStrict:
		if start > 0 || end != length {
			return nil, errors.Wrap(errs.ErrGroupMode, "the range does not strictly fit the items")
		}
	}
	return []Group{{Items: items[start:end]}}, nil
}

func (s Split) emptyResult(count int) ([]Group, error) {
	switch s.Strictness {
	case VeryStrict:
		return nil, errors.Wrap(errs.ErrGroupMode, "no items to strictly group")
	case Strict:
		return nil, nil
	}
	out := make([]Group, count)
	for i := range out {
		out[i] = Group{Items: []string{}}
	}
	return out, nil
}

func wrap(i, length int) int {
	for i < 0 {
		i += length
	}
	return i
}

func pad(items []string, n int) []string {
	out := make([]string, len(items), len(items)+n)
	copy(out, items)
	for i := 0; i < n; i++ {
		out = append(out, "")
	}
	return out
}
