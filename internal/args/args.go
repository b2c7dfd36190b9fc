// Package args tokenizes pipe argument strings and binds them to signatures.
package args

import (
	"strings"
	"unicode"

	"github.com/pkg/errors"
	"github.com/spf13/cast"

	"nickandperla.net/pipes/internal/errs"
	"nickandperla.net/pipes/internal/token"
)

// Type is the declared type of a parameter.
type Type int

const (
	String Type = iota
	Int
	Float
	Bool
)

// String returns the name of the type.
func (t Type) String() string {
	switch t {
	case Int:
		return "int"
	case Float:
		return "float"
	case Bool:
		return "bool"
	default:
		return "string"
	}
}

// Param describes one named parameter of a pipe, source, spout or macro.
type Param struct {
	Name     string
	Type     Type
	Default  string
	Required bool
	Desc     string
	// Check optionally validates the raw value.
	Check func(value string) error
}

// Signature is the ordered parameter list of a callable.
type Signature []Param

// Lookup returns the parameter with the given name.
func (s Signature) Lookup(name string) (Param, bool) {
	for _, p := range s {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// Token is one lexical unit of an argument string.
type Token struct {
	Name  string // empty for bare text
	Value string
	Raw   string
}

// Tokens is the result of Tokenize.
type Tokens []Token

// Bare returns the bare (unnamed) tokens.
func (t Tokens) Bare() []Token {
	var out []Token
	for _, tok := range t {
		if tok.Name == "" {
			out = append(out, tok)
		}
	}
	return out
}

// Tokenize splits an argument string into named assignments and bare text.
// Whitespace separates tokens outside quotes.
func Tokenize(raw string) (Tokens, error) {
	src := []rune(raw)
	var toks Tokens
	i := 0
	for {
		for i < len(src) && unicode.IsSpace(src[i]) {
			i++
		}
		if i >= len(src) {
			return toks, nil
		}

		start := i
		name := ""
		j := i
		if token.IsIdentStart(src[j]) {
			for j < len(src) && token.IsIdent(src[j]) {
				j++
			}
			if j < len(src) && src[j] == '=' {
				name = string(src[i:j])
				i = j + 1
			}
		}

		value, next, err := scanValue(src, i)
		if err != nil {
			return nil, err
		}
		toks = append(toks, Token{Name: name, Value: value, Raw: string(src[start:next])})
		i = next
	}
}

// scanValue reads a quoted or bare value starting at i.
func scanValue(src []rune, i int) (string, int, error) {
	if i >= len(src) || unicode.IsSpace(src[i]) {
		return "", i, nil
	}

	if hasPrefixAt(src, i, token.TripleQuote) {
		start := i + len(token.TripleQuote)
		for j := start; j < len(src); j++ {
			if hasPrefixAt(src, j, token.TripleQuote) {
				return string(src[start:j]), j + len(token.TripleQuote), nil
			}
		}
		return "", 0, errors.Wrapf(errs.ErrUnterminatedQuote, "unclosed %s at %d", token.TripleQuote, i)
	}

	if q := src[i]; q == token.RuneQuote || q == token.RuneApostrophe {
		for j := i + 1; j < len(src); j++ {
			if src[j] == q {
				return string(src[i+1 : j]), j + 1, nil
			}
		}
		return "", 0, errors.Wrapf(errs.ErrUnterminatedQuote, "unclosed %c at %d", q, i)
	}

	j := i
	for j < len(src) && !unicode.IsSpace(src[j]) {
		j++
	}
	return string(src[i:j]), j, nil
}

func hasPrefixAt(src []rune, i int, prefix string) bool {
	for k, r := range []rune(prefix) {
		if i+k >= len(src) || src[i+k] != r {
			return false
		}
	}
	return true
}

// Values holds bound argument values by parameter name.
type Values map[string]string

// Has reports whether name was bound.
func (v Values) Has(name string) bool {
	_, ok := v[name]
	return ok
}

// String returns the raw value of name.
func (v Values) String(name string) string { return v[name] }

// Int returns the value of name as a decimal int, or 0.
func (v Values) Int(name string) int {
	n, _ := toInt(v[name])
	return n
}

// toInt parses a decimal integer. Leading zeros do not select octal.
func toInt(value string) (int, error) {
	s := strings.TrimSpace(value)
	sign := ""
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		sign, s = s[:1], s[1:]
	}
	if trimmed := strings.TrimLeft(s, "0"); trimmed != s {
		if trimmed == "" || !isDigit(trimmed[0]) {
			trimmed = "0" + trimmed
		}
		s = trimmed
	}
	return cast.ToIntE(sign + s)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// Float returns the value of name as a float64, or 0.
func (v Values) Float(name string) float64 { return cast.ToFloat64(v[name]) }

// Bool returns the value of name as a bool, or false.
func (v Values) Bool(name string) bool { return cast.ToBool(v[name]) }

// Bind assigns tokens to the signature's parameters. It returns the bound
// values and non-fatal warnings about ignored input.
func (s Signature) Bind(toks Tokens) (Values, []string, error) {
	values := Values{}
	var warnings []string

	for _, tok := range toks {
		if tok.Name == "" {
			continue
		}
		if len(s) > 0 {
			if _, ok := s.Lookup(tok.Name); !ok {
				warnings = append(warnings, "unknown parameter `"+tok.Name+"`")
				continue
			}
		}
		if values.Has(tok.Name) {
			warnings = append(warnings, "parameter `"+tok.Name+"` assigned more than once")
			continue
		}
		values[tok.Name] = tok.Value
	}

	if bare := toks.Bare(); len(bare) > 0 {
		text := joinBare(bare)
		missing := s.missingRequired(values)
		switch {
		case len(missing) == 1:
			values[missing[0].Name] = text
		case len(s) > 0 && !values.Has(s[0].Name):
			values[s[0].Name] = text
		default:
			warnings = append(warnings, "unused argument text `"+text+"`")
		}
	}

	for _, p := range s {
		if values.Has(p.Name) {
			continue
		}
		if p.Required {
			return nil, warnings, errors.Wrapf(errs.ErrMissingArgument, "parameter `%s`", p.Name)
		}
		values[p.Name] = p.Default
	}

	for _, p := range s {
		if err := p.validate(values[p.Name]); err != nil {
			return nil, warnings, err
		}
	}
	return values, warnings, nil
}

// Parse tokenizes raw and binds it to sig.
func Parse(raw string, sig Signature) (Values, []string, error) {
	toks, err := Tokenize(raw)
	if err != nil {
		return nil, nil, err
	}
	return sig.Bind(toks)
}

func (s Signature) missingRequired(values Values) []Param {
	var missing []Param
	for _, p := range s {
		if p.Required && !values.Has(p.Name) {
			missing = append(missing, p)
		}
	}
	return missing
}

func joinBare(bare []Token) string {
	if len(bare) == 1 {
		return bare[0].Value
	}
	parts := make([]string, len(bare))
	for i, tok := range bare {
		parts[i] = tok.Value
	}
	return strings.Join(parts, " ")
}

func (p Param) validate(value string) error {
	if value == "" && !p.Required {
		return nil
	}
	var err error
	switch p.Type {
	case Int:
		_, err = toInt(value)
	case Float:
		_, err = cast.ToFloat64E(value)
	case Bool:
		_, err = cast.ToBoolE(value)
	}
	if err == nil && p.Check != nil {
		err = p.Check(value)
	}
	if err != nil {
		return errors.Wrapf(errs.ErrInvalidArgument, "parameter `%s`: %v", p.Name, err)
	}
	return nil
}
