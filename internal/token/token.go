// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package token defines pipes token types and syntax rune constants.
package token

// Token represents a pipes token type.
type Token int

const (
	EOF  Token = iota
	TEXT       // Raw segment text
	PIPE       // > - Feed the items into the next segment
	TEE        // -> - Record a print checkpoint, then feed the next segment
)

// Syntax runes.
const (
	RunePipe             = '>'
	RuneTee              = '-' // Only meaningful directly before '>'
	RuneChoiceOpen       = '['
	RuneChoiceSep        = '|'
	RuneChoiceClose      = ']'
	RunePlaceholderOpen  = '{'
	RunePlaceholderClose = '}'
	RuneGroupOpen        = '('
	RuneGroupClose       = ')'
	RuneEscape           = '\\'
	RuneQuote            = '"'
	RuneApostrophe       = '\''
	RuneRetain           = '!'
	RuneVariable         = '$'
	RunePickOne          = '?'
)

// TripleQuote opens and closes a literal region.
const TripleQuote = `"""`

// StartMarker is an optional prefix that marks a line as a script.
const StartMarker = ">>"

// IsEscapable returns true if a backslash before r makes r literal.
func IsEscapable(r rune) bool {
	switch r {
	case RuneChoiceOpen, RuneChoiceSep, RuneChoiceClose,
		RunePlaceholderOpen, RunePlaceholderClose, RuneEscape, RunePipe:
		return true
	}
	return false
}

// IsIdentStart returns true if r can begin a pipe, source or variable name.
func IsIdentStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// IsIdent returns true if r can continue a name.
func IsIdent(r rune) bool {
	return IsIdentStart(r) || (r >= '0' && r <= '9')
}

// String returns the string representation of a token.
func (t Token) String() string {
	switch t {
	case EOF:
		return "EOF"
	case TEXT:
		return "TEXT"
	case PIPE:
		return "PIPE"
	case TEE:
		return "TEE"
	default:
		return "UNKNOWN"
	}
}
