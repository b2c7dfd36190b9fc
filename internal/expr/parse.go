package expr

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/pkg/errors"

	"nickandperla.net/pipes/internal/errs"
	"nickandperla.net/pipes/internal/token"
)

// Options controls how top-level syntax is read.
type Options struct {
	// WrapTopLevel treats a top-level '|' as an alternative separator, as
	// if the whole input were wrapped in brackets.
	WrapTopLevel bool
	// ProtectParens keeps top-level parenthesized regions as literal text.
	ProtectParens bool
	// Literal disables choice syntax entirely; placeholders stay active.
	Literal bool
}

// Tree is a parsed expression with its flags.
type Tree struct {
	Root    Expr
	PickOne bool
}

func (t *Tree) String() string {
	if t.PickOne {
		return "[?]" + t.Root.String()
	}
	return t.Root.String()
}

const pickOneFlag = "[?]"

type level int

const (
	levelTop level = iota
	levelChoice
	levelArgs
)

type parser struct {
	src  []rune
	pos  int
	opts Options
}

// Parse parses choice and placeholder syntax.
func Parse(input string, opts Options) (*Tree, error) {
	tree := &Tree{}
	if strings.HasPrefix(input, pickOneFlag) {
		tree.PickOne = true
		input = input[len(pickOneFlag):]
	}

	p := &parser{src: []rune(input), opts: opts}
	root, err := p.parseTop()
	if err != nil {
		return nil, err
	}
	tree.Root = root
	return tree, nil
}

// MustParse is like Parse but panics on error. Used for static definitions.
func MustParse(input string, opts Options) *Tree {
	t, err := Parse(input, opts)
	if err != nil {
		panic(err)
	}
	return t
}

func (p *parser) parseTop() (Expr, error) {
	var alts []Expr
	for {
		seq, err := p.parseSeq(levelTop)
		if err != nil {
			return nil, err
		}
		alts = append(alts, seq)
		if p.eof() {
			break
		}
		switch p.peek() {
		case token.RuneChoiceSep:
			p.pos++
		case token.RuneChoiceClose:
			return nil, p.errorf(errs.ErrMalformedChoice, "unbalanced '%c'", token.RuneChoiceClose)
		}
	}
	if len(alts) == 1 {
		return alts[0], nil
	}
	return Choice{Alts: alts}, nil
}

// parseSeq reads fragments until the end of its level. It leaves the
// terminating rune unconsumed.
func (p *parser) parseSeq(lvl level) (Expr, error) {
	var parts []Expr
	var text strings.Builder
	inQuote := false

	flush := func() {
		if text.Len() > 0 {
			parts = append(parts, Text{Value: text.String()})
			text.Reset()
		}
	}

	for !p.eof() {
		r := p.peek()

		switch {
		case r == token.RuneEscape:
			p.pos++
			if !p.eof() && token.IsEscapable(p.peek()) {
				text.WriteRune(p.next())
			} else {
				text.WriteRune(r)
			}
			continue

		case r == token.RuneQuote && p.hasPrefix(token.TripleQuote):
			flush()
			region, err := p.parseTriple()
			if err != nil {
				return nil, err
			}
			parts = append(parts, region...)
			continue

		case r == token.RunePlaceholderOpen:
			flush()
			ph, err := p.parsePlaceholder()
			if err != nil {
				return nil, err
			}
			parts = append(parts, ph)
			continue

		case lvl == levelTop && r == token.RuneGroupOpen && p.opts.ProtectParens:
			text.WriteString(p.scanParens())
			continue
		}

		if !p.opts.Literal {
			switch r {
			case token.RuneChoiceOpen:
				flush()
				choice, err := p.parseChoice()
				if err != nil {
					return nil, err
				}
				parts = append(parts, choice)
				continue
			case token.RuneChoiceClose:
				if lvl == levelChoice {
					flush()
					return NewCompound(parts...), nil
				}
				return nil, p.errorf(errs.ErrMalformedChoice, "unbalanced '%c'", token.RuneChoiceClose)
			case token.RuneChoiceSep:
				if lvl == levelChoice || (lvl == levelTop && p.opts.WrapTopLevel) {
					flush()
					return NewCompound(parts...), nil
				}
			}
		}

		if lvl == levelArgs {
			if r == token.RuneQuote {
				inQuote = !inQuote
			} else if r == token.RunePlaceholderClose && !inQuote {
				flush()
				return NewCompound(parts...), nil
			}
		}

		text.WriteRune(p.next())
	}

	switch lvl {
	case levelChoice:
		return nil, p.errorf(errs.ErrMalformedChoice, "unclosed '%c'", token.RuneChoiceOpen)
	case levelArgs:
		return nil, p.errorf(errs.ErrMalformedPlaceholder, "unclosed '%c'", token.RunePlaceholderOpen)
	}
	flush()
	return NewCompound(parts...), nil
}

func (p *parser) parseChoice() (Expr, error) {
	p.pos++ // '['
	var alts []Expr
	for {
		alt, err := p.parseSeq(levelChoice)
		if err != nil {
			return nil, err
		}
		alts = append(alts, alt)
		if p.next() == token.RuneChoiceClose {
			return Choice{Alts: alts}, nil
		}
	}
}

// parseTriple reads a """...""" region. Choice syntax is literal inside it,
// placeholders are not. The delimiters are kept so argument quoting survives.
func (p *parser) parseTriple() ([]Expr, error) {
	start := p.pos
	p.pos += len(token.TripleQuote)
	parts := []Expr{}
	var text strings.Builder
	text.WriteString(token.TripleQuote)

	for !p.eof() {
		if p.hasPrefix(token.TripleQuote) {
			p.pos += len(token.TripleQuote)
			text.WriteString(token.TripleQuote)
			parts = append(parts, Text{Value: text.String()})
			return parts, nil
		}
		r := p.peek()
		if r == token.RunePlaceholderOpen {
			if text.Len() > 0 {
				parts = append(parts, Text{Value: text.String()})
				text.Reset()
			}
			ph, err := p.parsePlaceholder()
			if err != nil {
				return nil, err
			}
			parts = append(parts, ph)
			continue
		}
		text.WriteRune(p.next())
	}
	return nil, errors.Wrapf(errs.ErrUnterminatedQuote, "triple quote opened at %d", start)
}

// scanParens returns a balanced parenthesized region verbatim. An unclosed
// region runs to the end of input.
func (p *parser) scanParens() string {
	start := p.pos
	depth := 0
	quoted := false
	for !p.eof() {
		r := p.next()
		switch {
		case r == token.RuneEscape:
			if !p.eof() {
				p.pos++
			}
		case r == token.RuneQuote:
			quoted = !quoted
		case quoted:
		case r == token.RuneGroupOpen:
			depth++
		case r == token.RuneGroupClose:
			depth--
			if depth == 0 {
				return string(p.src[start:p.pos])
			}
		}
	}
	return string(p.src[start:p.pos])
}

func (p *parser) parsePlaceholder() (Expr, error) {
	start := p.pos
	p.pos++ // '{'
	p.skipSpaces()

	if p.eof() {
		return nil, p.errorf(errs.ErrMalformedPlaceholder, "unclosed '%c'", token.RunePlaceholderOpen)
	}

	r := p.peek()
	switch {
	case r == token.RunePlaceholderClose:
		p.pos++
		return Item{}, nil

	case r == token.RuneRetain:
		p.pos++
		p.skipSpaces()
		if p.eof() || p.next() != token.RunePlaceholderClose {
			return nil, p.malformed(start)
		}
		return Item{Retain: true}, nil

	case r == token.RuneVariable:
		p.pos++
		name := p.scanIdent()
		p.skipSpaces()
		if name == "" || p.eof() || p.next() != token.RunePlaceholderClose {
			return nil, p.malformed(start)
		}
		return Var{Name: name}, nil

	case r == '-' || unicode.IsDigit(r):
		return p.parseIndexed(start)

	case p.hasPrefix("ALL") && p.followedBySourceName(len("ALL")):
		p.pos += len("ALL")
		p.skipSpaces()
		return p.parseSource(start, AmountAll)

	case token.IsIdentStart(r):
		return p.parseSource(start, 0)
	}
	return nil, p.malformed(start)
}

// parseIndexed handles {n}, {n!}, {-n} and the amount form {n name args}.
func (p *parser) parseIndexed(start int) (Expr, error) {
	numStart := p.pos
	if p.peek() == '-' {
		p.pos++
	}
	for !p.eof() && unicode.IsDigit(p.peek()) {
		p.pos++
	}
	num := string(p.src[numStart:p.pos])
	n, err := strconv.Atoi(num)
	if err != nil {
		return nil, p.malformed(start)
	}

	if !strings.HasPrefix(num, "-") && p.followedBySourceName(0) {
		p.skipSpaces()
		if n < 1 {
			return nil, p.malformed(start)
		}
		return p.parseSource(start, n)
	}

	item := Item{Index: n, Explicit: true}
	if !p.eof() && p.peek() == token.RuneRetain {
		p.pos++
		item.Retain = true
	}
	p.skipSpaces()
	if p.eof() || p.next() != token.RunePlaceholderClose {
		return nil, p.malformed(start)
	}
	return item, nil
}

func (p *parser) parseSource(start, amount int) (Expr, error) {
	name := p.scanIdent()
	if name == "" || p.eof() {
		return nil, p.malformed(start)
	}
	src := Source{Name: name, Amount: amount, Args: Empty{}}
	switch r := p.next(); {
	case r == token.RunePlaceholderClose:
		return src, nil
	case unicode.IsSpace(r):
		args, err := p.parseSeq(levelArgs)
		if err != nil {
			return nil, err
		}
		p.pos++ // '}'
		src.Args = args
		return src, nil
	}
	return nil, p.malformed(start)
}

// followedBySourceName reports whether the runes after offset are
// whitespace and then an identifier.
func (p *parser) followedBySourceName(offset int) bool {
	i := p.pos + offset
	if i >= len(p.src) || !unicode.IsSpace(p.src[i]) {
		return false
	}
	for i < len(p.src) && unicode.IsSpace(p.src[i]) {
		i++
	}
	return i < len(p.src) && token.IsIdentStart(p.src[i])
}

func (p *parser) scanIdent() string {
	start := p.pos
	if p.eof() || !token.IsIdentStart(p.peek()) {
		return ""
	}
	for !p.eof() && token.IsIdent(p.peek()) {
		p.pos++
	}
	return string(p.src[start:p.pos])
}

func (p *parser) skipSpaces() {
	for !p.eof() && unicode.IsSpace(p.peek()) {
		p.pos++
	}
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() rune { return p.src[p.pos] }

func (p *parser) next() rune {
	r := p.src[p.pos]
	p.pos++
	return r
}

func (p *parser) hasPrefix(s string) bool {
	rs := []rune(s)
	if p.pos+len(rs) > len(p.src) {
		return false
	}
	for i, r := range rs {
		if p.src[p.pos+i] != r {
			return false
		}
	}
	return true
}

func (p *parser) malformed(start int) error {
	end := p.pos
	if end > len(p.src) {
		end = len(p.src)
	}
	return errors.Wrapf(errs.ErrMalformedPlaceholder, "at %d: %q", start, string(p.src[start:end]))
}

func (p *parser) errorf(sentinel error, format string, args ...interface{}) error {
	return errors.Wrapf(sentinel, "at %d: "+format, append([]interface{}{p.pos}, args...)...)
}
