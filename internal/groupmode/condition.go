package groupmode

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"nickandperla.net/pipes/internal/errs"
)

// ClauseKind identifies a simple condition.
type ClauseKind int

const (
	CompareIndex   ClauseKind = iota // i = j
	CompareLiteral                   // i = "text"
	Like                             // i LIKE /re/
	Nothing                          // the group is empty
	Something                        // the group is not empty
	Anything                         // always true
)

// Clause is one simple test against a group's items.
type Clause struct {
	Kind    ClauseKind
	Left    int
	Right   int
	Literal string
	Pattern *regexp.Regexp
	Negate  bool
}

// Condition is a disjunction of conjunctions of clauses.
type Condition struct {
	Any [][]Clause
}

var (
	reCompareIndex   = regexp.MustCompile(`^(-?\d+)\s*(!)?=\s*(-?\d+)$`)
	reCompareLiteral = regexp.MustCompile(`^(-?\d+)\s*(!)?=\s*"([^"]*)"$`)
	reLike           = regexp.MustCompile(`(?i)^(-?\d+)\s+(NOT\s+)?LIKE\s+/(.*)/$`)
	reThing          = regexp.MustCompile(`(?i)^(NO|SOME|ANY)THING$`)
)

// ParseConditions parses the body of a switch: conditions separated by '|'.
func ParseConditions(body string) ([]Condition, error) {
	var conds []Condition
	for _, text := range splitOutside(body, "|") {
		cond, err := ParseCondition(text)
		if err != nil {
			return nil, err
		}
		conds = append(conds, cond)
	}
	return conds, nil
}

// ParseCondition parses clauses joined with OR and AND. AND binds tighter.
func ParseCondition(text string) (Condition, error) {
	var cond Condition
	for _, disj := range splitOutside(text, " OR ") {
		var conj []Clause
		for _, part := range splitOutside(disj, " AND ") {
			clause, err := parseClause(strings.TrimSpace(part))
			if err != nil {
				return Condition{}, err
			}
			conj = append(conj, clause)
		}
		cond.Any = append(cond.Any, conj)
	}
	return cond, nil
}

func parseClause(text string) (Clause, error) {
	if m := reCompareIndex.FindStringSubmatch(text); m != nil {
		left, _ := strconv.Atoi(m[1])
		right, _ := strconv.Atoi(m[3])
		return Clause{Kind: CompareIndex, Left: left, Right: right, Negate: m[2] == "!"}, nil
	}
	if m := reCompareLiteral.FindStringSubmatch(text); m != nil {
		left, _ := strconv.Atoi(m[1])
		return Clause{Kind: CompareLiteral, Left: left, Literal: m[3], Negate: m[2] == "!"}, nil
	}
	if m := reLike.FindStringSubmatch(text); m != nil {
		left, _ := strconv.Atoi(m[1])
		pattern, err := regexp.Compile(m[3])
		if err != nil {
			return Clause{}, errors.Wrapf(errs.ErrUnknownGroupMode, "bad pattern in condition `%s`: %v", text, err)
		}
		return Clause{Kind: Like, Left: left, Pattern: pattern, Negate: m[2] != ""}, nil
	}
	if m := reThing.FindStringSubmatch(text); m != nil {
		switch strings.ToUpper(m[1]) {
		case "NO":
			return Clause{Kind: Nothing}, nil
		case "SOME":
			return Clause{Kind: Something}, nil
		}
		return Clause{Kind: Anything}, nil
	}
	if text == "" {
		return Clause{}, errors.Wrap(errs.ErrUnknownGroupMode, "empty condition")
	}
	return Clause{}, errors.Wrapf(errs.ErrUnknownGroupMode, "invalid condition `%s`", text)
}

// Check evaluates the condition against a group's items.
func (c Condition) Check(items []string) (bool, error) {
	for _, conj := range c.Any {
		all := true
		for _, clause := range conj {
			ok, err := clause.Check(items)
			if err != nil {
				return false, err
			}
			if !ok {
				all = false
				break
			}
		}
		if all {
			return true, nil
		}
	}
	return false, nil
}

// Check evaluates a single clause.
func (c Clause) Check(items []string) (bool, error) {
	var result bool
	switch c.Kind {
	case Nothing:
		return len(items) == 0, nil
	case Something:
		return len(items) > 0, nil
	case Anything:
		return true, nil
	case CompareIndex:
		left, err := at(items, c.Left)
		if err != nil {
			return false, err
		}
		right, err := at(items, c.Right)
		if err != nil {
			return false, err
		}
		result = left == right
	case CompareLiteral:
		left, err := at(items, c.Left)
		if err != nil {
			return false, err
		}
		result = left == c.Literal
	case Like:
		left, err := at(items, c.Left)
		if err != nil {
			return false, err
		}
		result = c.Pattern.MatchString(left)
	}
	return result != c.Negate, nil
}

func at(items []string, i int) (string, error) {
	j := i
	if j < 0 {
		j += len(items)
	}
	if j < 0 || j >= len(items) {
		return "", errors.Wrapf(errs.ErrIndexOutOfRange, "condition index %d with %d items", i, len(items))
	}
	return items[j], nil
}

func (c Condition) String() string {
	disj := make([]string, len(c.Any))
	for i, conj := range c.Any {
		parts := make([]string, len(conj))
		for j, clause := range conj {
			parts[j] = clause.String()
		}
		disj[i] = strings.Join(parts, " AND ")
	}
	return strings.Join(disj, " OR ")
}

func (c Clause) String() string {
	neg := ""
	if c.Negate {
		neg = "!"
	}
	switch c.Kind {
	case CompareIndex:
		return strconv.Itoa(c.Left) + " " + neg + "= " + strconv.Itoa(c.Right)
	case CompareLiteral:
		return strconv.Itoa(c.Left) + " " + neg + `= "` + c.Literal + `"`
	case Like:
		if c.Negate {
			return strconv.Itoa(c.Left) + " NOT LIKE /" + c.Pattern.String() + "/"
		}
		return strconv.Itoa(c.Left) + " LIKE /" + c.Pattern.String() + "/"
	case Nothing:
		return "NOTHING"
	case Something:
		return "SOMETHING"
	}
	return "ANYTHING"
}

// splitOutside splits s on sep, ignoring separators inside "..." or /.../.
func splitOutside(s, sep string) []string {
	var out []string
	quoted, slashed := false, false
	last := 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '"' && !slashed:
			quoted = !quoted
		case c == '/' && !quoted:
			slashed = !slashed
		case !quoted && !slashed && strings.HasPrefix(s[i:], sep):
			out = append(out, s[last:i])
			i += len(sep) - 1
			last = i + 1
		}
	}
	return append(out, s[last:])
}
