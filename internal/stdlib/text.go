package stdlib

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"nickandperla.net/pipes/internal/args"
	"nickandperla.net/pipes/internal/errs"
	"nickandperla.net/pipes/internal/registry"
)

func positive(v string) error {
	if n, err := strconv.Atoi(v); err == nil && n < 0 {
		return errors.New("must not be negative")
	}
	return nil
}

func all(checks ...func(string) error) func(string) error {
	return func(v string) error {
		for _, check := range checks {
			if err := check(v); err != nil {
				return err
			}
		}
		return nil
	}
}

func (l *lib) pipes() []builtin {
	pipes := []builtin{
		{"upper", registry.Pipe, nil, "Uppercase every item.", withCaser(func() cases.Caser { return cases.Upper(language.Und) })},
		{"lower", registry.Pipe, nil, "Lowercase every item.", withCaser(func() cases.Caser { return cases.Lower(language.Und) })},
		{"title", registry.Pipe, nil, "Title-case every item.", withCaser(func() cases.Caser { return cases.Title(language.Und) })},
		{"strip", registry.Pipe, nil, "Trim surrounding whitespace from every item.", eachItem(strings.TrimSpace)},
		{"join", registry.Pipe, args.Signature{
			{Name: "s", Default: " ", Desc: "separator"},
		}, "Join the items into one.", registry.PipeFunc(join)},
		{"split", registry.Pipe, args.Signature{
			{Name: "on", Desc: "separator; empty splits on whitespace"},
		}, "Split every item into several.", registry.PipeFunc(split)},
		{"repeat", registry.Pipe, args.Signature{
			{Name: "n", Type: args.Int, Default: "2", Check: all(positive, atMost(maxItems))},
		}, "Repeat the item list n times.", registry.PipeFunc(repeat)},
		{"reverse", registry.Pipe, nil, "Reverse the item order.", registry.PipeFunc(reverse)},
		{"sort", registry.Pipe, nil, "Sort the items.", registry.PipeFunc(sortItems)},
		{"count", registry.Pipe, nil, "Replace the items with their count.", registry.PipeFunc(count)},
		{"replace", registry.Pipe, args.Signature{
			{Name: "from", Required: true},
			{Name: "to"},
		}, "Replace every occurrence of from with to.", registry.PipeFunc(replace)},
		{"js", registry.Pipe, args.Signature{
			{Name: "expr", Required: true, Desc: "JavaScript expression over item, index and items"},
		}, "Map every item through a JavaScript expression.", registry.PipeFunc(l.javascript)},
	}
	if l.provider != nil {
		pipes = append(pipes, builtin{"llm", registry.Pipe, args.Signature{
			{Name: "system", Desc: "system prompt"},
		}, "Send every item to the language model.", registry.PipeFunc(l.llm)})
	}
	return pipes
}

func (l *lib) llm(ctx context.Context, call *registry.Call) ([]string, error) {
	out := make([]string, len(call.Items))
	for i, item := range call.Items {
		reply, err := l.provider.Complete(ctx, call.Args.String("system"), item)
		if err != nil {
			return nil, err
		}
		out[i] = strings.TrimSpace(reply)
	}
	return out, nil
}

// eachItem lifts a string function to a pipe.
func eachItem(fn func(string) string) registry.PipeFunc {
	return func(_ context.Context, call *registry.Call) ([]string, error) {
		out := make([]string, len(call.Items))
		for i, item := range call.Items {
			out[i] = fn(item)
		}
		return out, nil
	}
}

// withCaser maps items through a fresh Caser per call. Casers keep state
// and must not be shared between groups.
func withCaser(mk func() cases.Caser) registry.PipeFunc {
	return func(ctx context.Context, call *registry.Call) ([]string, error) {
		c := mk()
		return eachItem(c.String)(ctx, call)
	}
}

func join(_ context.Context, call *registry.Call) ([]string, error) {
	return []string{strings.Join(call.Items, call.Args.String("s"))}, nil
}

func split(_ context.Context, call *registry.Call) ([]string, error) {
	sep := call.Args.String("on")
	var out []string
	for _, item := range call.Items {
		if sep == "" {
			out = append(out, strings.Fields(item)...)
		} else {
			out = append(out, strings.Split(item, sep)...)
		}
	}
	return out, nil
}

func repeat(_ context.Context, call *registry.Call) ([]string, error) {
	n := call.Args.Int("n")
	if n*len(call.Items) > maxItems {
		return nil, errors.Wrapf(errs.ErrInvalidArgument, "repeating %d items %d times is more than %d items", len(call.Items), n, maxItems)
	}
	out := make([]string, 0, n*len(call.Items))
	for range n {
		out = append(out, call.Items...)
	}
	return out, nil
}

func reverse(_ context.Context, call *registry.Call) ([]string, error) {
	out := make([]string, len(call.Items))
	for i, item := range call.Items {
		out[len(out)-1-i] = item
	}
	return out, nil
}

func sortItems(_ context.Context, call *registry.Call) ([]string, error) {
	out := append([]string{}, call.Items...)
	sort.Strings(out)
	return out, nil
}

func count(_ context.Context, call *registry.Call) ([]string, error) {
	return []string{strconv.Itoa(len(call.Items))}, nil
}

func replace(_ context.Context, call *registry.Call) ([]string, error) {
	from, to := call.Args.String("from"), call.Args.String("to")
	out := make([]string, len(call.Items))
	for i, item := range call.Items {
		out[i] = strings.ReplaceAll(item, from, to)
	}
	return out, nil
}
