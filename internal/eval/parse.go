package eval

import (
	"strings"

	"github.com/pkg/errors"

	"nickandperla.net/pipes/internal/args"
	"nickandperla.net/pipes/internal/errs"
	"nickandperla.net/pipes/internal/expr"
	"nickandperla.net/pipes/internal/groupmode"
	"nickandperla.net/pipes/internal/scanner"
	"nickandperla.net/pipes/internal/token"
)

// ParseScript parses a full script: an origin followed by segments.
func ParseScript(src string) (*Script, error) {
	text := strings.TrimSpace(src)
	text = strings.TrimSpace(strings.TrimPrefix(text, token.StartMarker))

	items, err := scanner.NewFromString(text).All()
	if err != nil {
		return nil, err
	}

	origin, err := parseOrigin(items[0].Value)
	if err != nil {
		return nil, errors.Wrap(err, "origin")
	}
	pipeline, err := parseSegments(items[1:])
	if err != nil {
		return nil, err
	}
	return &Script{Origin: origin, Pipeline: pipeline, Source: src}, nil
}

// ParsePipeline parses segments without an origin, as used by pipe macros.
func ParsePipeline(src string) (*Pipeline, error) {
	items, err := scanner.NewFromString(strings.TrimSpace(src)).All()
	if err != nil {
		return nil, err
	}
	// Treat the leading text as the first segment.
	lead := []scanner.Item{{Token: token.PIPE, Value: ">"}}
	return parseSegments(append(lead, items...))
}

func parseOrigin(text string) (*expr.Tree, error) {
	text = strings.TrimSpace(text)
	switch {
	case len(text) >= 2*len(token.TripleQuote) &&
		strings.HasPrefix(text, token.TripleQuote) && strings.HasSuffix(text, token.TripleQuote):
		inner := text[len(token.TripleQuote) : len(text)-len(token.TripleQuote)]
		return expr.Parse(inner, expr.Options{Literal: true})
	case len(text) >= 2 && text[0] == token.RuneQuote && text[len(text)-1] == token.RuneQuote &&
		!strings.Contains(text[1:len(text)-1], `"`):
		text = text[1 : len(text)-1]
	}
	return expr.Parse(text, expr.Options{WrapTopLevel: true})
}

// parseSegments turns scanner items, each separator followed by its segment
// text, into a pipeline.
func parseSegments(items []scanner.Item) (*Pipeline, error) {
	p := &Pipeline{}
	for i := 0; i+1 < len(items); i += 2 {
		sep, text := items[i], items[i+1]
		if sep.Token == token.TEE {
			p.Segments = append(p.Segments, PrintMarker{})
		}
		body := strings.TrimSpace(text.Value)
		if body == "" {
			continue
		}
		seg, err := parseSegment(body)
		if err != nil {
			return nil, errors.Wrapf(err, "segment at %d", text.Pos)
		}
		p.Segments = append(p.Segments, seg)
	}
	return p, nil
}

func parseSegment(text string) (Segment, error) {
	if strings.EqualFold(text, PrintName) {
		return PrintMarker{}, nil
	}

	mode, rest, err := groupmode.Parse(text)
	if err != nil {
		return nil, err
	}

	tree, err := expr.Parse(rest, expr.Options{ProtectParens: true})
	if err != nil {
		return nil, err
	}
	alts, err := tree.Expand()
	if err != nil {
		return nil, err
	}

	branches := make([]Branch, 0, len(alts))
	for _, alt := range alts {
		b, err := parseBranch(alt)
		if err != nil {
			return nil, err
		}
		branches = append(branches, b)
	}

	if mode.Assign == groupmode.AssignSwitch {
		return &ConditionalBranch{Mode: mode, Branches: branches, Text: text}, nil
	}
	return &PipeCall{Mode: mode, Branches: branches, PickOne: tree.PickOne, Text: text}, nil
}

// parseBranch splits one expanded alternative into a call name and its
// argument string, or parses it as an inline pipeline.
func parseBranch(ts expr.TemplatedString) (Branch, error) {
	parts := trimLeft(ts.Parts)
	if len(parts) == 0 {
		return Branch{}, nil
	}

	head, ok := parts[0].(expr.Text)
	if !ok {
		return Branch{}, errors.Wrapf(errs.ErrMalformedSegment, "expected a name, got `%s`", ts.String())
	}

	if strings.HasPrefix(head.Value, string(token.RuneGroupOpen)) {
		if len(parts) > 1 {
			return Branch{}, errors.Wrapf(errs.ErrMalformedSegment, "unexpected text after `%s`", head.Value)
		}
		return parseInline(head.Value)
	}

	n := 0
	for _, r := range head.Value {
		if n == 0 && !token.IsIdentStart(r) || n > 0 && !token.IsIdent(r) {
			break
		}
		n += len(string(r))
	}
	if n == 0 {
		return Branch{}, errors.Wrapf(errs.ErrMalformedSegment, "expected a name, got `%s`", ts.String())
	}

	name := head.Value[:n]
	rest := head.Value[n:]
	if rest != "" && !isSpace(rest[0]) {
		return Branch{}, errors.Wrapf(errs.ErrMalformedSegment, "unexpected `%s` after name %q", rest, name)
	}

	argParts := append([]expr.Expr{expr.Text{Value: rest}}, parts[1:]...)
	b := Branch{Name: strings.ToLower(name), Args: templated(trimLeft(argParts))}
	if err := checkQuotes(b.Args); err != nil {
		return Branch{}, errors.Wrapf(err, "arguments of %s", name)
	}
	return b, nil
}

func parseInline(text string) (Branch, error) {
	text = strings.TrimSpace(text)
	if !strings.HasSuffix(text, string(token.RuneGroupClose)) {
		return Branch{}, errors.Wrapf(errs.ErrMalformedSegment, "unclosed inline pipeline `%s`", text)
	}
	sub, err := ParsePipeline(text[1 : len(text)-1])
	if err != nil {
		return Branch{}, err
	}
	return Branch{Sub: sub}, nil
}

// checkQuotes tokenizes the literal skeleton of an argument string, with
// every placeholder replaced by a plain word.
func checkQuotes(ts expr.TemplatedString) error {
	var b strings.Builder
	for _, p := range ts.Parts {
		if t, ok := p.(expr.Text); ok {
			b.WriteString(t.Value)
		} else {
			b.WriteString("x")
		}
	}
	_, err := args.Tokenize(b.String())
	return err
}

func trimLeft(parts []expr.Expr) []expr.Expr {
	for len(parts) > 0 {
		t, ok := parts[0].(expr.Text)
		if !ok {
			return parts
		}
		v := strings.TrimLeft(t.Value, " \t\n")
		if v != "" {
			out := append([]expr.Expr{expr.Text{Value: v}}, parts[1:]...)
			return out
		}
		parts = parts[1:]
	}
	return parts
}

func templated(parts []expr.Expr) expr.TemplatedString {
	var out []expr.Expr
	for _, p := range parts {
		if t, ok := p.(expr.Text); ok && t.Value == "" {
			continue
		}
		out = append(out, p)
	}
	return expr.TemplatedString{Parts: out}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n'
}
