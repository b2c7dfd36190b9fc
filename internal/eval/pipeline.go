// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package eval

import (
	"strings"

	"nickandperla.net/pipes/internal/expr"
	"nickandperla.net/pipes/internal/groupmode"
)

// Names the executor handles itself. They are never looked up in the registry.
const (
	PrintName = "print"
	NopName   = "nop"
)

// Segment is one step of a pipeline.
type Segment interface {
	String() string
	segment()
}

// PrintMarker records the current items as a print column.
type PrintMarker struct{}

func (PrintMarker) String() string { return PrintName }
func (PrintMarker) segment()       {}

// PipeCall partitions the items with Mode and sends the groups to Branches.
type PipeCall struct {
	Mode     groupmode.Mode
	Branches []Branch
	PickOne  bool // Use one random branch per run
	Text     string
}

func (c *PipeCall) String() string { return c.Text }
func (*PipeCall) segment()         {}

// ConditionalBranch sends each group to the branch of the first condition
// it satisfies. Mode.Assign is always groupmode.AssignSwitch.
type ConditionalBranch struct {
	Mode     groupmode.Mode
	Branches []Branch
	Text     string
}

func (c *ConditionalBranch) String() string { return c.Text }
func (*ConditionalBranch) segment()         {}

// Branch is one parallel alternative of a segment: a named call with an
// argument string, or an inline pipeline.
type Branch struct {
	Name string
	Args expr.TemplatedString
	Sub  *Pipeline
}

// IsNop reports whether the branch leaves its items unchanged.
func (b Branch) IsNop() bool {
	return b.Sub == nil && (b.Name == "" || b.Name == NopName)
}

func (b Branch) String() string {
	if b.Sub != nil {
		return "(" + b.Sub.String() + ")"
	}
	if b.Args.IsEmpty() {
		return b.Name
	}
	return b.Name + " " + b.Args.String()
}

// Pipeline is an ordered list of segments. It is immutable once parsed and
// may be applied any number of times, concurrently.
type Pipeline struct {
	Segments []Segment
}

func (p *Pipeline) String() string {
	parts := make([]string, len(p.Segments))
	for i, s := range p.Segments {
		parts[i] = s.String()
	}
	return strings.Join(parts, " > ")
}

// Script is a parsed script: an origin followed by a pipeline.
type Script struct {
	Origin   *expr.Tree
	Pipeline *Pipeline
	Source   string
}

func (s *Script) String() string { return s.Source }
