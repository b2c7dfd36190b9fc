// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package expr defines the pipes expression tree and its choice expansion.
//
// One tree type covers both choice syntax ("[a|b]") and templated
// placeholders ("{name args}", "{}", "{2!}", "{$var}"). Expanding a tree
// yields TemplatedString values, which never contain a Choice.
package expr

import (
	"strconv"
	"strings"

	"nickandperla.net/pipes/internal/token"
)

// Expr is the interface all expression types implement.
type Expr interface {
	// String returns the source representation of the expression.
	String() string
	// IsEmpty returns true if this is an empty expression.
	IsEmpty() bool
}

// AmountAll requests every item a source can produce.
const AmountAll = -1

// Empty represents an empty/absent value.
type Empty struct{}

func (e Empty) String() string { return "" }
func (e Empty) IsEmpty() bool  { return true }

// Text represents literal text content.
type Text struct {
	Value string
}

func (t Text) String() string { return t.Value }
func (t Text) IsEmpty() bool  { return t.Value == "" }

// Choice represents alternatives ([a|b|c]). An alternative may be Empty.
type Choice struct {
	Alts []Expr
}

func (c Choice) String() string {
	parts := make([]string, len(c.Alts))
	for i, alt := range c.Alts {
		parts[i] = alt.String()
	}
	return string(token.RuneChoiceOpen) + strings.Join(parts, string(token.RuneChoiceSep)) + string(token.RuneChoiceClose)
}
func (c Choice) IsEmpty() bool { return false }

// Source represents a source call embedded in text ({name args}).
type Source struct {
	Name   string
	Amount int // 0 means the default single item; AmountAll means every item
	Args   Expr
}

func (s Source) String() string {
	var sb strings.Builder
	sb.WriteRune(token.RunePlaceholderOpen)
	switch {
	case s.Amount == AmountAll:
		sb.WriteString("ALL ")
	case s.Amount > 0:
		sb.WriteString(strconv.Itoa(s.Amount))
		sb.WriteString(" ")
	}
	sb.WriteString(s.Name)
	if s.Args != nil && !s.Args.IsEmpty() {
		sb.WriteString(" ")
		sb.WriteString(s.Args.String())
	}
	sb.WriteRune(token.RunePlaceholderClose)
	return sb.String()
}
func (s Source) IsEmpty() bool { return false }

// Item references an item of the incoming list ({}, {2}, {-1!}).
type Item struct {
	Index    int
	Explicit bool // false for {} whose index is assigned in order of appearance
	Retain   bool
}

func (i Item) String() string {
	var sb strings.Builder
	sb.WriteRune(token.RunePlaceholderOpen)
	if i.Explicit {
		sb.WriteString(strconv.Itoa(i.Index))
	}
	if i.Retain {
		sb.WriteRune(token.RuneRetain)
	}
	sb.WriteRune(token.RunePlaceholderClose)
	return sb.String()
}
func (i Item) IsEmpty() bool { return false }

// Var references a macro variable ({$name}).
type Var struct {
	Name string
}

func (v Var) String() string {
	return string(token.RunePlaceholderOpen) + string(token.RuneVariable) + v.Name + string(token.RunePlaceholderClose)
}
func (v Var) IsEmpty() bool { return false }

// Compound represents a sequence of expressions.
type Compound struct {
	Exprs []Expr
}

func (c Compound) String() string {
	var sb strings.Builder
	for _, e := range c.Exprs {
		sb.WriteString(e.String())
	}
	return sb.String()
}
func (c Compound) IsEmpty() bool {
	for _, e := range c.Exprs {
		if !e.IsEmpty() {
			return false
		}
	}
	return true
}

// NewText creates a new Text expression, returning Empty if the value is empty.
func NewText(value string) Expr {
	if value == "" {
		return Empty{}
	}
	return Text{Value: value}
}

// NewCompound creates a new Compound from expressions, simplifying if possible.
func NewCompound(exprs ...Expr) Expr {
	var nonEmpty []Expr
	for _, e := range exprs {
		if !e.IsEmpty() {
			nonEmpty = append(nonEmpty, e)
		}
	}

	switch len(nonEmpty) {
	case 0:
		return Empty{}
	case 1:
		return nonEmpty[0]
	default:
		return Compound{Exprs: nonEmpty}
	}
}

// Flatten returns a flat slice of expressions from potentially nested compounds.
func Flatten(e Expr) []Expr {
	if e == nil || e.IsEmpty() {
		return nil
	}
	if c, ok := e.(Compound); ok {
		var result []Expr
		for _, sub := range c.Exprs {
			result = append(result, Flatten(sub)...)
		}
		return result
	}
	return []Expr{e}
}

// TemplatedString is a choice-free sequence of Text, Source, Item and Var
// fragments. Source arguments are themselves TemplatedStrings.
type TemplatedString struct {
	Parts []Expr
}

func (t TemplatedString) String() string {
	return Compound{Exprs: t.Parts}.String()
}
func (t TemplatedString) IsEmpty() bool { return len(t.Parts) == 0 }

// IsLiteral returns true if the string contains no placeholders.
func (t TemplatedString) IsLiteral() bool {
	for _, p := range t.Parts {
		if _, ok := p.(Text); !ok {
			return false
		}
	}
	return true
}

// SingleSource returns the source if the whole string is exactly one source call.
func (t TemplatedString) SingleSource() (Source, bool) {
	if len(t.Parts) != 1 {
		return Source{}, false
	}
	src, ok := t.Parts[0].(Source)
	return src, ok
}

// Literal creates a TemplatedString holding plain text.
func Literal(s string) TemplatedString {
	if s == "" {
		return TemplatedString{}
	}
	return TemplatedString{Parts: []Expr{Text{Value: s}}}
}

// newTemplated joins fragments, merging adjacent text runs.
func newTemplated(parts []Expr) TemplatedString {
	var out []Expr
	for _, p := range parts {
		t, ok := p.(Text)
		if !ok {
			out = append(out, p)
			continue
		}
		if t.Value == "" {
			continue
		}
		if n := len(out); n > 0 {
			if prev, ok := out[n-1].(Text); ok {
				out[n-1] = Text{Value: prev.Value + t.Value}
				continue
			}
		}
		out = append(out, t)
	}
	return TemplatedString{Parts: out}
}
