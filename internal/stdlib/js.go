package stdlib

import (
	"context"

	"github.com/dop251/goja"
	"github.com/pkg/errors"
	"github.com/spf13/cast"

	"nickandperla.net/pipes/internal/registry"
)

// javascript evaluates expr once per item with item, index and items bound.
// An undefined or null result drops the item; an array result expands into
// one item per element. A call running longer than the js timeout is
// interrupted.
func (l *lib) javascript(ctx context.Context, call *registry.Call) ([]string, error) {
	prog, err := goja.Compile("expr", "("+call.Args.String("expr")+")", true)
	if err != nil {
		return nil, errors.Wrap(err, "compiling expr")
	}

	runCtx, cancel := context.WithTimeout(ctx, l.jsTimeout)
	defer cancel()

	vm := goja.New()
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-runCtx.Done():
			vm.Interrupt(runCtx.Err())
		case <-done:
		}
	}()

	if err := vm.Set("items", call.Items); err != nil {
		return nil, errors.Wrap(err, "binding items")
	}
	var out []string
	for i, item := range call.Items {
		if err := vm.Set("item", item); err != nil {
			return nil, errors.Wrap(err, "binding item")
		}
		if err := vm.Set("index", i); err != nil {
			return nil, errors.Wrap(err, "binding index")
		}
		v, err := vm.RunProgram(prog)
		if err != nil {
			var interrupted *goja.InterruptedError
			if errors.As(err, &interrupted) {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				return nil, errors.Errorf("js timed out after %s", l.jsTimeout)
			}
			return nil, errors.Wrapf(err, "item %d", i)
		}
		out = append(out, exported(v)...)
	}
	return out, nil
}

func exported(v goja.Value) []string {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	switch x := v.Export().(type) {
	case []interface{}:
		out := make([]string, 0, len(x))
		for _, el := range x {
			out = append(out, cast.ToString(el))
		}
		return out
	case string:
		return []string{x}
	default:
		return []string{v.String()}
	}
}
