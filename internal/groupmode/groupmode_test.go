package groupmode_test

import (
	"math/rand/v2"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nickandperla.net/pipes/internal/errs"
	"nickandperla.net/pipes/internal/groupmode"
)

func parseMode(t *testing.T, prefix string) groupmode.Mode {
	t.Helper()
	mode, rest, err := groupmode.Parse(prefix)
	require.NoError(t, err)
	require.Empty(t, rest)
	return mode
}

func partition(t *testing.T, prefix string, items []string) []groupmode.Group {
	t.Helper()
	groups, err := parseMode(t, prefix).Partition(items)
	require.NoError(t, err)
	return groups
}

func itemsOf(groups []groupmode.Group) [][]string {
	out := make([][]string, len(groups))
	for i, g := range groups {
		out[i] = append([]string{}, g.Items...)
	}
	return out
}

var six = []string{"one", "two", "three", "four", "five", "six"}

func TestDefaultIsOneGroup(t *testing.T) {
	t.Parallel()

	mode, rest, err := groupmode.Parse("upper")
	require.NoError(t, err)
	assert.Equal(t, "upper", rest)
	assert.True(t, mode.IsTrivial())

	groups, err := mode.Partition(six)
	require.NoError(t, err)
	assert.Equal(t, [][]string{six}, itemsOf(groups))
}

func TestRow(t *testing.T) {
	t.Parallel()

	assert.Equal(t, [][]string{{"one", "two"}, {"three", "four"}, {"five", "six"}}, itemsOf(partition(t, "(2)", six)))
	assert.Equal(t, [][]string{{"one", "two", "three", "four"}, {"five", "six"}}, itemsOf(partition(t, "(4)", six)))
	assert.Equal(t, [][]string{{"one", "two", "three", "four"}}, itemsOf(partition(t, "(4)!", six)))
	assert.Equal(t, [][]string{{"one", "two", "three", "four"}, {"five", "six", "", ""}}, itemsOf(partition(t, "(04)", six)))
	assert.Equal(t, [][]string{{}}, itemsOf(partition(t, "(3)", nil)))

	_, err := parseMode(t, "(4)!!").Partition(six)
	assert.True(t, errors.Is(err, errs.ErrGroupMode))
}

func TestDivide(t *testing.T) {
	t.Parallel()

	five := six[:5]
	assert.Equal(t, [][]string{{"one", "two", "three"}, {"four", "five"}}, itemsOf(partition(t, "/2", five)))
	assert.Equal(t, [][]string{{"one", "two"}, {"three", "four"}}, itemsOf(partition(t, "/2!", five)))
	assert.Equal(t, [][]string{{"one", "two", "three"}, {"four", "five", ""}}, itemsOf(partition(t, "/02", five)))
	assert.Equal(t, [][]string{{}, {}, {}}, itemsOf(partition(t, "/3", nil)))
}

func TestModulo(t *testing.T) {
	t.Parallel()

	assert.Equal(t, [][]string{{"one", "three", "five"}, {"two", "four", "six"}}, itemsOf(partition(t, "%2", six)))
	assert.Equal(t, [][]string{{"one", "five"}, {"two", "six"}, {"three"}, {"four"}}, itemsOf(partition(t, "%4", six)))
}

func TestColumn(t *testing.T) {
	t.Parallel()

	assert.Equal(t, [][]string{{"one", "four"}, {"two", "five"}, {"three", "six"}}, itemsOf(partition(t, `\2`, six)))
	assert.Equal(t, [][]string{six}, itemsOf(partition(t, `\6`, six)))
	assert.Equal(t, [][]string{{"one", "two"}}, itemsOf(partition(t, `\3`, six[:2])))
}

func TestPartitionCoversEveryIndex(t *testing.T) {
	t.Parallel()

	for _, prefix := range []string{"(1)", "(2)", "(4)", "/1", "/2", "/4", "/7", "%1", "%3", "%5", `\1`, `\2`, `\4`} {
		groups := partition(t, prefix, six)
		var seen []string
		for _, g := range groups {
			assert.False(t, g.Passthrough)
			seen = append(seen, g.Items...)
		}
		assert.ElementsMatchf(t, six, seen, "prefix %s", prefix)
	}
}

func TestIndexAndInterval(t *testing.T) {
	t.Parallel()

	four := []string{"zero", "one", "two", "three"}

	groups := partition(t, "#1", four)
	require.Len(t, groups, 3)
	assert.Equal(t, []bool{true, false, true}, []bool{groups[0].Passthrough, groups[1].Passthrough, groups[2].Passthrough})
	assert.Equal(t, [][]string{{"zero"}, {"one"}, {"two", "three"}}, itemsOf(groups))

	assert.Equal(t, [][]string{{"zero"}, {"one", "two"}, {"three"}}, itemsOf(partition(t, "#1:3", four)))
	assert.Equal(t, [][]string{{"zero"}, {"one", "two"}, {"three"}}, itemsOf(partition(t, "#1..3", four)))
	assert.Equal(t, [][]string{{"zero", "one"}, {"two", "three"}, {}}, itemsOf(partition(t, "#2:", four)))
	assert.Equal(t, [][]string{{"zero", "one", "two"}, {"three"}, {}}, itemsOf(partition(t, "#-1", four)))
	assert.Equal(t, [][]string{{}, {"zero", "one"}, {"two", "three"}}, itemsOf(partition(t, "#:-2", four)))
	assert.Equal(t, [][]string{{"one", "two"}}, itemsOf(partition(t, "#1:3!", four)))
	assert.Equal(t, [][]string{{"zero", "one", "two"}, {}, {"three"}}, itemsOf(partition(t, "#3:1", four)))

	_, err := parseMode(t, "#1:3!!").Partition(four)
	assert.True(t, errors.Is(err, errs.ErrGroupMode))
}

func TestChainedSplits(t *testing.T) {
	t.Parallel()

	// Rows of three, then the middle item of each row.
	groups := partition(t, "(3) #1", six)
	assert.Equal(t, [][]string{{"one"}, {"two"}, {"three"}, {"four"}, {"five"}, {"six"}}, itemsOf(groups))
	assert.Equal(t, []bool{true, false, true, true, false, true}, []bool{
		groups[0].Passthrough, groups[1].Passthrough, groups[2].Passthrough,
		groups[3].Passthrough, groups[4].Passthrough, groups[5].Passthrough,
	})
}

func TestParseRemainder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		rest  string
		check func(t *testing.T, m groupmode.Mode)
	}{
		{"*(2) [a|b]", "[a|b]", func(t *testing.T, m groupmode.Mode) {
			assert.True(t, m.Multiply)
			require.Len(t, m.Splits, 1)
			assert.Equal(t, groupmode.Row, m.Splits[0].Kind)
		}},
		{"(2)* x", "x", func(t *testing.T, m groupmode.Mode) { assert.True(t, m.Multiply) }},
		{"(upper > lower)", "(upper > lower)", func(t *testing.T, m groupmode.Mode) { assert.True(t, m.IsTrivial()) }},
		{"(3 words)", "(3 words)", func(t *testing.T, m groupmode.Mode) { assert.Empty(t, m.Splits) }},
		{"? [a|b]", "[a|b]", func(t *testing.T, m groupmode.Mode) { assert.Equal(t, groupmode.AssignRandom, m.Assign) }},
		{`{0="yes"|0="no"}[A|B|C]`, "[A|B|C]", func(t *testing.T, m groupmode.Mode) {
			assert.Equal(t, groupmode.AssignSwitch, m.Assign)
			assert.Len(t, m.Conditions, 2)
		}},
		{"/3!! join", "join", func(t *testing.T, m groupmode.Mode) {
			assert.Equal(t, groupmode.VeryStrict, m.Splits[0].Strictness)
		}},
		{"%05 x", "x", func(t *testing.T, m groupmode.Mode) {
			assert.True(t, m.Splits[0].Padding)
			assert.Equal(t, 5, m.Splits[0].N)
		}},
	}

	for _, tt := range tests {
		mode, rest, err := groupmode.Parse(tt.input)
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.rest, rest, tt.input)
		tt.check(t, mode)
	}
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"() x", "(0) x", "/x", "%", `\ x`, "# x", "(2)!!! x", "{} x", "{0 = } x", "{0 LIKE /(/} x", "?? x"} {
		_, _, err := groupmode.Parse(input)
		assert.Truef(t, errors.Is(err, errs.ErrUnknownGroupMode), "%q: got %v", input, err)
	}
}

func TestGroupCountIsBounded(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"%30000000 x", "/4097 x", "(99999999999999999999) x"} {
		_, _, err := groupmode.Parse(input)
		assert.Truef(t, errors.Is(err, errs.ErrUnknownGroupMode), "%q: got %v", input, err)
	}

	groups := partition(t, "%4096", []string{"a"})
	assert.Len(t, groups, groupmode.MaxGroups)

	_, err := parseMode(t, "%64%65").Partition([]string{"a"})
	assert.True(t, errors.Is(err, errs.ErrGroupMode), "got %v", err)
}

func TestAssignCyclic(t *testing.T) {
	t.Parallel()

	mode := parseMode(t, "(1)")
	groups, err := mode.Partition([]string{"a", "b", "c"})
	require.NoError(t, err)
	assigned, err := mode.AssignGroups(groups, 2, nil)
	require.NoError(t, err)
	require.Len(t, assigned, 3)
	assert.Equal(t, []int{0, 1, 0}, []int{assigned[0].Branch, assigned[1].Branch, assigned[2].Branch})
}

func TestAssignSkipsPassthrough(t *testing.T) {
	t.Parallel()

	mode := parseMode(t, "#1")
	groups, err := mode.Partition([]string{"a", "b", "c"})
	require.NoError(t, err)
	assigned, err := mode.AssignGroups(groups, 2, nil)
	require.NoError(t, err)
	require.Len(t, assigned, 3)
	assert.Equal(t, groupmode.Passthrough, assigned[0].Branch)
	assert.Equal(t, 0, assigned[1].Branch)
	assert.Equal(t, groupmode.Passthrough, assigned[2].Branch)
}

func TestAssignMultiply(t *testing.T) {
	t.Parallel()

	mode := parseMode(t, "*(1)")
	groups, err := mode.Partition([]string{"a", "b"})
	require.NoError(t, err)
	assigned, err := mode.AssignGroups(groups, 2, nil)
	require.NoError(t, err)
	require.Len(t, assigned, 4)

	var got [][2]string
	for _, a := range assigned {
		got = append(got, [2]string{a.Items[0], string(rune('x' + a.Branch))})
	}
	assert.Equal(t, [][2]string{{"a", "x"}, {"a", "y"}, {"b", "x"}, {"b", "y"}}, got)
}

func TestAssignRandom(t *testing.T) {
	t.Parallel()

	mode := parseMode(t, "(1)?")
	groups, err := mode.Partition([]string{"a", "b", "c", "d"})
	require.NoError(t, err)
	assigned, err := mode.AssignGroups(groups, 3, rand.New(rand.NewPCG(7, 7)))
	require.NoError(t, err)
	require.Len(t, assigned, 4)
	for _, a := range assigned {
		assert.GreaterOrEqual(t, a.Branch, 0)
		assert.Less(t, a.Branch, 3)
	}
}

func TestAssignSwitch(t *testing.T) {
	t.Parallel()

	mode := parseMode(t, `{0="yes"|0="no"}`)
	route := func(item string) int {
		assigned, err := mode.AssignGroups([]groupmode.Group{{Items: []string{item}}}, 3, nil)
		require.NoError(t, err)
		require.Len(t, assigned, 1)
		return assigned[0].Branch
	}
	assert.Equal(t, 0, route("yes"))
	assert.Equal(t, 1, route("no"))
	assert.Equal(t, 2, route("maybe"))

	// Without an else branch unmatched groups pass through.
	assigned, err := mode.AssignGroups([]groupmode.Group{{Items: []string{"maybe"}}}, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, groupmode.Passthrough, assigned[0].Branch)

	_, err = mode.AssignGroups([]groupmode.Group{{Items: []string{"maybe"}}}, 5, nil)
	assert.True(t, errors.Is(err, errs.ErrGroupMode))
}

func TestAssignSwitchStrict(t *testing.T) {
	t.Parallel()

	strict := parseMode(t, `{0="yes"}!`)
	assigned, err := strict.AssignGroups([]groupmode.Group{{Items: []string{"no"}}}, 1, nil)
	require.NoError(t, err)
	assert.Empty(t, assigned)

	_, err = strict.AssignGroups([]groupmode.Group{{Items: []string{"no"}}}, 2, nil)
	assert.True(t, errors.Is(err, errs.ErrGroupMode))

	veryStrict := parseMode(t, `{0="yes"}!!`)
	_, err = veryStrict.AssignGroups([]groupmode.Group{{Items: []string{"no"}}}, 1, nil)
	assert.True(t, errors.Is(err, errs.ErrGroupMode))
}

func TestConditions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		cond  string
		items []string
		want  bool
	}{
		{`0 = 1`, []string{"a", "a"}, true},
		{`0 != 1`, []string{"a", "a"}, false},
		{`-1 = "z"`, []string{"a", "z"}, true},
		{`0 LIKE /^h/`, []string{"hello"}, true},
		{`0 NOT LIKE /^h/`, []string{"hello"}, false},
		{`0 like /a|b/`, []string{"b"}, true},
		{`NOTHING`, nil, true},
		{`SOMETHING`, nil, false},
		{`ANYTHING`, nil, true},
		{`0 = "a" AND 1 = "b"`, []string{"a", "c"}, false},
		{`0 = "x" OR 1 = "c"`, []string{"a", "c"}, true},
		{`0 = "a OR b"`, []string{"a OR b"}, true},
	}

	for _, tt := range tests {
		cond, err := groupmode.ParseCondition(tt.cond)
		require.NoError(t, err, tt.cond)
		got, err := cond.Check(tt.items)
		require.NoError(t, err, tt.cond)
		assert.Equal(t, tt.want, got, tt.cond)
	}

	cond, err := groupmode.ParseCondition(`3 = "x"`)
	require.NoError(t, err)
	_, err = cond.Check([]string{"a"})
	assert.True(t, errors.Is(err, errs.ErrIndexOutOfRange))
}
