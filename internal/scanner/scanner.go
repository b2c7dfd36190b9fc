// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package scanner provides a streaming Unicode-aware splitter for pipes scripts.
//
// A script is read rune by rune and cut into segment text at every top-level
// '>' or '->'. Separators inside quotes, parentheses or braces are part of the
// surrounding text.
package scanner

import (
	"bufio"
	"io"
	"strings"

	"nickandperla.net/pipes/internal/token"
)

// Scanner tokenizes a pipes script rune-by-rune.
type Scanner struct {
	reader  *bufio.Reader
	buf     strings.Builder
	peeked  *Item
	pending *Item
	done    bool
	pos     int // Rune offset of the next rune to read

	parens int
	braces int
	quote  quoteState
}

type quoteState int

const (
	unquoted quoteState = iota
	doubleQuoted
	tripleQuoted
)

// Item represents a scanned token with its value.
type Item struct {
	Token token.Token
	Value string
	Pos   int // Rune offset where this token started
}

// New creates a new Scanner from an io.Reader.
func New(r io.Reader) *Scanner {
	return &Scanner{reader: bufio.NewReader(r)}
}

// NewFromString creates a new Scanner from a string.
func NewFromString(s string) *Scanner {
	return New(strings.NewReader(s))
}

// Peek returns the next item without consuming it.
func (s *Scanner) Peek() (*Item, error) {
	if s.peeked != nil {
		return s.peeked, nil
	}
	item, err := s.Next()
	if err != nil {
		return nil, err
	}
	s.peeked = item
	return item, nil
}

// Next returns the next token from the input.
//
// The stream always alternates TEXT and separator tokens: it starts with a
// TEXT item (possibly empty), every PIPE or TEE is followed by another TEXT
// item, and it ends with EOF.
func (s *Scanner) Next() (*Item, error) {
	if s.peeked != nil {
		item := s.peeked
		s.peeked = nil
		return item, nil
	}
	if s.pending != nil {
		item := s.pending
		s.pending = nil
		return item, nil
	}
	if s.done {
		return &Item{Token: token.EOF, Pos: s.pos}, nil
	}

	s.buf.Reset()
	start := s.pos

	for {
		r, err := s.read()
		if err == io.EOF {
			s.done = true
			return &Item{Token: token.TEXT, Value: s.buf.String(), Pos: start}, nil
		}
		if err != nil {
			return nil, err
		}

		if r == token.RuneEscape {
			s.buf.WriteRune(r)
			next, err := s.read()
			if err == io.EOF {
				continue
			}
			if err != nil {
				return nil, err
			}
			s.buf.WriteRune(next)
			continue
		}

		switch s.quote {
		case tripleQuoted:
			if r == token.RuneQuote && s.startsTriple() {
				s.skip(2)
				s.buf.WriteString(token.TripleQuote)
				s.quote = unquoted
				continue
			}
			s.buf.WriteRune(r)
			continue
		case doubleQuoted:
			if r == token.RuneQuote {
				s.quote = unquoted
			}
			s.buf.WriteRune(r)
			continue
		}

		switch r {
		case token.RuneQuote:
			if s.startsTriple() {
				s.skip(2)
				s.buf.WriteString(token.TripleQuote)
				s.quote = tripleQuoted
				continue
			}
			s.quote = doubleQuoted
		case token.RuneGroupOpen:
			s.parens++
		case token.RuneGroupClose:
			if s.parens > 0 {
				s.parens--
			}
		case token.RunePlaceholderOpen:
			s.braces++
		case token.RunePlaceholderClose:
			if s.braces > 0 {
				s.braces--
			}
		case token.RunePipe:
			if s.topLevel() {
				s.pending = &Item{Token: token.PIPE, Value: ">", Pos: s.pos - 1}
				return &Item{Token: token.TEXT, Value: s.buf.String(), Pos: start}, nil
			}
		case token.RuneTee:
			if s.topLevel() && s.peekByte() == token.RunePipe {
				s.skip(1)
				s.pending = &Item{Token: token.TEE, Value: "->", Pos: s.pos - 2}
				return &Item{Token: token.TEXT, Value: s.buf.String(), Pos: start}, nil
			}
		}
		s.buf.WriteRune(r)
	}
}

// All scans the remaining input into a slice, excluding the final EOF.
func (s *Scanner) All() ([]Item, error) {
	var items []Item
	for {
		item, err := s.Next()
		if err != nil {
			return nil, err
		}
		if item.Token == token.EOF {
			return items, nil
		}
		items = append(items, *item)
	}
}

func (s *Scanner) topLevel() bool {
	return s.parens == 0 && s.braces == 0
}

func (s *Scanner) read() (rune, error) {
	r, _, err := s.reader.ReadRune()
	if err != nil {
		return 0, err
	}
	s.pos++
	return r, nil
}

// startsTriple reports whether the two runes after a '"' are also quotes.
func (s *Scanner) startsTriple() bool {
	b, err := s.reader.Peek(2)
	return err == nil && b[0] == '"' && b[1] == '"'
}

func (s *Scanner) peekByte() rune {
	b, err := s.reader.Peek(1)
	if err != nil {
		return 0
	}
	return rune(b[0])
}

// skip discards n ASCII runes already inspected with Peek.
func (s *Scanner) skip(n int) {
	s.reader.Discard(n)
	s.pos += n
}
