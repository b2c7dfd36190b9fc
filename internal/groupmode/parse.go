package groupmode

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/pkg/errors"

	"nickandperla.net/pipes/internal/errs"
)

// Parse reads the group-mode prefix of a segment and returns the mode and
// the rest of the segment.
//
//	*         multiply
//	(n)       rows of n
//	/n        divide into n
//	%n        modulo n
//	\n        columns of n
//	#i        index i
//	#a:b      interval [a, b), also #a..b; empty bounds mean start / end
//	?         random assignment
//	{c | c}   switch on conditions
//
// Splits and switches may be followed by ! (strict) or !! (very strict). A
// number written with a leading 0 pads short groups with empty items.
func Parse(segment string) (Mode, string, error) {
	p := &modeParser{src: segment}
	mode, err := p.parse()
	if err != nil {
		return Mode{}, "", err
	}
	return mode, strings.TrimLeftFunc(p.src[p.pos:], unicode.IsSpace), nil
}

type modeParser struct {
	src string
	pos int
}

func (p *modeParser) parse() (Mode, error) {
	var mode Mode
	for {
		p.skipSpaces()
		if p.eof() {
			return mode, nil
		}

		switch p.src[p.pos] {
		case '*':
			p.pos++
			mode.Multiply = true
			continue

		case '(':
			ok, err := p.startsRow()
			if err != nil {
				return Mode{}, err
			}
			if !ok {
				return mode, nil
			}
			p.pos++
			p.skipSpaces()
			split, err := p.sized(Row)
			if err != nil {
				return Mode{}, err
			}
			p.skipSpaces()
			p.pos++ // ')'
			split.Strictness, err = p.strictness()
			if err != nil {
				return Mode{}, err
			}
			mode.Splits = append(mode.Splits, split)

		case '/', '%', '\\':
			kind := map[byte]SplitKind{'/': Divide, '%': Modulo, '\\': Column}[p.src[p.pos]]
			p.pos++
			split, err := p.sized(kind)
			if err != nil {
				return Mode{}, err
			}
			split.Strictness, err = p.strictness()
			if err != nil {
				return Mode{}, err
			}
			mode.Splits = append(mode.Splits, split)

		case '#':
			p.pos++
			split, err := p.interval()
			if err != nil {
				return Mode{}, err
			}
			split.Strictness, err = p.strictness()
			if err != nil {
				return Mode{}, err
			}
			mode.Splits = append(mode.Splits, split)

		case '?':
			if mode.Assign != AssignDefault {
				return Mode{}, p.errorf("more than one assignment")
			}
			p.pos++
			mode.Assign = AssignRandom

		case '{':
			if mode.Assign != AssignDefault {
				return Mode{}, p.errorf("more than one assignment")
			}
			body, err := p.braced()
			if err != nil {
				return Mode{}, err
			}
			conds, err := ParseConditions(body)
			if err != nil {
				return Mode{}, err
			}
			mode.Assign = AssignSwitch
			mode.Conditions = conds
			mode.Strictness, err = p.strictness()
			if err != nil {
				return Mode{}, err
			}

		default:
			return mode, nil
		}
	}
}

// startsRow reports whether the '(' at pos opens a row size rather than
// an inline pipeline.
func (p *modeParser) startsRow() (bool, error) {
	i := p.pos + 1
	for i < len(p.src) && p.src[i] == ' ' {
		i++
	}
	if i < len(p.src) && p.src[i] == ')' {
		return false, p.errorf("missing number in ()")
	}
	j := i
	for j < len(p.src) && isDigit(p.src[j]) {
		j++
	}
	if j == i {
		return false, nil
	}
	for j < len(p.src) && p.src[j] == ' ' {
		j++
	}
	return j < len(p.src) && p.src[j] == ')', nil
}

func (p *modeParser) sized(kind SplitKind) (Split, error) {
	digits := p.digits()
	if digits == "" {
		return Split{}, p.errorf("expected a number")
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return Split{}, p.errorf("bad number %q", digits)
	}
	if n < 1 {
		return Split{}, p.errorf("%s size must be at least 1", kindName(kind))
	}
	if n > MaxGroups {
		return Split{}, p.errorf("%s size must be at most %d", kindName(kind), MaxGroups)
	}
	return Split{Kind: kind, N: n, Padding: strings.HasPrefix(digits, "0")}, nil
}

func (p *modeParser) interval() (Split, error) {
	split := Split{Kind: Interval}

	startText := p.signed()
	sep := ""
	switch {
	case strings.HasPrefix(p.src[p.pos:], ".."):
		sep = ".."
	case strings.HasPrefix(p.src[p.pos:], ":"):
		sep = ":"
	}

	if sep == "" {
		if startText == "" {
			return Split{}, p.errorf("expected an index after #")
		}
		split.Single = true
		split.Start, split.StartEnd = parseBound(startText)
		return split, nil
	}

	p.pos += len(sep)
	endText := p.signed()
	if startText != "" {
		split.Start, split.StartEnd = parseBound(startText)
	}
	if endText == "" {
		split.EndOpen = true
	} else {
		split.End, split.EndOpen = parseBound(endText)
	}
	return split, nil
}

func parseBound(text string) (int, bool) {
	if text == "-0" {
		return 0, true
	}
	n, _ := strconv.Atoi(text)
	return n, false
}

// braced returns the text between a '{' at pos and its matching '}'.
func (p *modeParser) braced() (string, error) {
	start := p.pos
	depth := 0
	quoted := false
	for i := p.pos; i < len(p.src); i++ {
		switch c := p.src[i]; {
		case c == '"':
			quoted = !quoted
		case quoted:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				p.pos = i + 1
				return p.src[start+1 : i], nil
			}
		}
	}
	return "", p.errorf("unclosed switch")
}

func (p *modeParser) strictness() (int, error) {
	n := 0
	for !p.eof() && p.src[p.pos] == '!' {
		n++
		p.pos++
	}
	if n > VeryStrict {
		return 0, p.errorf("too many exclamation marks")
	}
	return n, nil
}

func (p *modeParser) digits() string {
	start := p.pos
	for !p.eof() && isDigit(p.src[p.pos]) {
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *modeParser) signed() string {
	start := p.pos
	if !p.eof() && p.src[p.pos] == '-' {
		p.pos++
	}
	if p.digits() == "" {
		p.pos = start
		return ""
	}
	return p.src[start:p.pos]
}

func (p *modeParser) skipSpaces() {
	for !p.eof() && p.src[p.pos] == ' ' {
		p.pos++
	}
}

func (p *modeParser) eof() bool { return p.pos >= len(p.src) }

func (p *modeParser) errorf(format string, args ...interface{}) error {
	return errors.Wrapf(errs.ErrUnknownGroupMode, "at %d in %q: "+format, append([]interface{}{p.pos, p.src}, args...)...)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func kindName(kind SplitKind) string {
	switch kind {
	case Row:
		return "row"
	case Divide:
		return "divide"
	case Modulo:
		return "modulo"
	case Column:
		return "column"
	}
	return "interval"
}
