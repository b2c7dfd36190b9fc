package stdlib

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"nickandperla.net/pipes/internal/args"
	"nickandperla.net/pipes/internal/registry"
)

func (l *lib) spouts() []builtin {
	return []builtin{
		{"post", registry.Spout, nil, "Mark the items for posting after the run.", registry.SpoutFunc(post)},
		{"log", registry.Spout, args.Signature{
			{Name: "msg", Default: "items"},
		}, "Log the items when the run's effects are flushed.", registry.SpoutFunc(logItems)},
		{"write", registry.Spout, args.Signature{
			{Name: "path", Required: true},
		}, "Write the items to a file, one per line.", registry.SpoutFunc(l.write)},
	}
}

func post(_ context.Context, call *registry.Call) (registry.Effect, error) {
	return registry.Effect{AlwaysPost: true}, nil
}

func logItems(_ context.Context, call *registry.Call) (registry.Effect, error) {
	log := call.Log()
	items := append([]string{}, call.Items...)
	msg := call.Args.String("msg")
	runID := ""
	if call.Env != nil {
		runID = call.Env.RunID
	}
	return registry.Effect{
		Flush: func(context.Context) error {
			log.Info(msg, zap.String("run", runID), zap.Strings("items", items))
			return nil
		},
	}, nil
}

func (l *lib) write(_ context.Context, call *registry.Call) (registry.Effect, error) {
	path := call.Args.String("path")
	body := strings.Join(call.Items, "\n") + "\n"
	return registry.Effect{
		Flush: func(context.Context) error {
			if err := l.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return errors.Wrapf(err, "creating directory for %s", path)
			}
			return errors.Wrapf(afero.WriteFile(l.fs, path, []byte(body), 0o644), "writing %s", path)
		},
	}, nil
}
