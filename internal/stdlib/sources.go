package stdlib

import (
	"bufio"
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"nickandperla.net/pipes/internal/args"
	"nickandperla.net/pipes/internal/errs"
	"nickandperla.net/pipes/internal/registry"
)

func (l *lib) sources() []builtin {
	return []builtin{
		{"uuid", registry.Source, args.Signature{
			{Name: "n", Type: args.Int, Default: "1", Check: all(positive, atMost(maxItems))},
		}, "Random UUIDs.", registry.SourceFunc(uuids)},
		{"range", registry.Source, args.Signature{
			{Name: "from", Type: args.Int, Default: "1"},
			{Name: "to", Type: args.Int, Default: "10"},
		}, "The integers from..to inclusive.", registry.SourceFunc(numbers)},
		{"choose", registry.Source, args.Signature{
			{Name: "options", Required: true, Desc: "comma separated"},
		}, "Random picks from a comma separated list.", registry.SourceFunc(choose)},
		{"previous", registry.Source, nil, "The output of the previous run.", registry.SourceFunc(previous)},
		{"file", registry.Source, args.Signature{
			{Name: "path", Required: true},
		}, "The lines of a file.", registry.SourceFunc(l.file)},
	}
}

func uuids(_ context.Context, call *registry.Call) ([]string, error) {
	n := amount(call, call.Args.Int("n"))
	if n < 0 {
		n = call.Args.Int("n")
	}
	if n > maxItems {
		return nil, errors.Wrapf(errs.ErrInvalidArgument, "%d uuids is more than %d", n, maxItems)
	}
	out := make([]string, n)
	for i := range out {
		out[i] = uuid.NewString()
	}
	return out, nil
}

func numbers(_ context.Context, call *registry.Call) ([]string, error) {
	from, to := call.Args.Int("from"), call.Args.Int("to")
	step := 1
	if to < from {
		step = -1
	}
	if (to-from)*step >= maxItems {
		return nil, errors.Wrapf(errs.ErrInvalidArgument, "range %d..%d is longer than %d", from, to, maxItems)
	}
	var out []string
	for i := from; ; i += step {
		out = append(out, strconv.Itoa(i))
		if i == to {
			break
		}
	}
	return limit(out, amount(call, -1)), nil
}

// choose draws without replacement. The default is one pick; asking for
// every item shuffles the whole list.
func choose(_ context.Context, call *registry.Call) ([]string, error) {
	var opts []string
	for _, o := range strings.Split(call.Args.String("options"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			opts = append(opts, o)
		}
	}
	n := amount(call, 1)
	if n < 0 || n > len(opts) {
		n = len(opts)
	}
	for i := 0; i < n; i++ {
		j := i + call.IntN(len(opts)-i)
		opts[i], opts[j] = opts[j], opts[i]
	}
	return opts[:n], nil
}

func previous(_ context.Context, call *registry.Call) ([]string, error) {
	if call.Env == nil {
		return nil, nil
	}
	return limit(append([]string{}, call.Env.Previous...), amount(call, -1)), nil
}

func (l *lib) file(_ context.Context, call *registry.Call) ([]string, error) {
	f, err := l.fs.Open(call.Args.String("path"))
	if err != nil {
		return nil, errors.Wrap(err, "opening file")
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		out = append(out, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "reading file")
	}
	return limit(out, amount(call, -1)), nil
}
