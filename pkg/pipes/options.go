// Package pipes provides the public API for the pipes script runtime.
package pipes

import (
	"time"

	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"nickandperla.net/pipes/internal/eval"
	"nickandperla.net/pipes/internal/provider"
	"nickandperla.net/pipes/internal/registry"
	"nickandperla.net/pipes/internal/store"
)

// Option configures a Runtime.
type Option func(*Runtime)

// WithStore sets the macro store. The runtime closes it on Close.
func WithStore(s store.Store) Option {
	return func(r *Runtime) { r.store = s }
}

// WithSQLiteStore configures SQLite persistence at the given path.
func WithSQLiteStore(path string) Option {
	return func(r *Runtime) {
		s, err := store.NewSQLite(path)
		r.setStore(s, err)
	}
}

// WithBoltStore configures bbolt persistence at the given path.
func WithBoltStore(path string) Option {
	return func(r *Runtime) {
		s, err := store.NewBolt(path)
		r.setStore(s, err)
	}
}

// WithMemoryStore configures an in-memory store (for testing).
func WithMemoryStore() Option {
	return func(r *Runtime) { r.store = store.NewMemory() }
}

func (r *Runtime) setStore(s store.Store, err error) {
	if err != nil {
		if r.err == nil {
			r.err = err
		}
		return
	}
	r.store = s
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runtime) { r.logger = l }
}

// WithFs sets the filesystem the file source and write spout use. The
// default is the OS filesystem rooted at the files directory under the
// pipes config directory.
func WithFs(fs afero.Fs) Option {
	return func(r *Runtime) { r.fs = fs }
}

// WithFilesRoot roots the file source and write spout at dir on the OS
// filesystem. Script paths cannot leave dir.
func WithFilesRoot(dir string) Option {
	return WithFs(afero.NewBasePathFs(afero.NewOsFs(), dir))
}

// WithJSTimeout bounds each js pipe call.
func WithJSTimeout(d time.Duration) Option {
	return func(r *Runtime) { r.jsTimeout = d }
}

// WithMockProvider enables the llm pipe with a fixed response (for testing).
func WithMockProvider(response string) Option {
	return func(r *Runtime) { r.provider = provider.NewMock(response) }
}

// WithOllama enables the llm pipe backed by an Ollama server.
func WithOllama(url, model string, timeout time.Duration) Option {
	return func(r *Runtime) {
		opts := []provider.OllamaOption{provider.WithOllamaURL(url)}
		if model != "" {
			opts = append(opts, provider.WithOllamaModel(model))
		}
		if timeout > 0 {
			opts = append(opts, provider.WithOllamaTimeout(timeout))
		}
		r.provider = provider.NewOllama(opts...)
	}
}

// WithPrelude replaces the default prelude with a YAML macro file.
func WithPrelude(src string) Option {
	return func(r *Runtime) { r.prelude = src }
}

// WithNoStdlib skips the built-in pipes, sources and spouts and the prelude.
func WithNoStdlib() Option {
	return func(r *Runtime) { r.noStdlib = true }
}

// WithExtension registers additional pipes, sources or spouts before the
// registry is sealed.
func WithExtension(fn func(*registry.Registry) error) Option {
	return func(r *Runtime) { r.extra = append(r.extra, fn) }
}

// WithSeed makes runs reproducible.
func WithSeed(seed uint64) Option {
	return func(r *Runtime) { r.evalOpts = append(r.evalOpts, eval.WithSeed(seed)) }
}

// WithMaxChars caps the characters flowing between segments.
func WithMaxChars(n int) Option {
	return func(r *Runtime) { r.evalOpts = append(r.evalOpts, eval.WithMaxChars(n)) }
}

// WithMaxMacroDepth caps nested macro calls.
func WithMaxMacroDepth(n int) Option {
	return func(r *Runtime) { r.evalOpts = append(r.evalOpts, eval.WithMaxMacroDepth(n)) }
}

// WithGroupWorkers sets how many groups run concurrently.
func WithGroupWorkers(n int) Option {
	return func(r *Runtime) { r.evalOpts = append(r.evalOpts, eval.WithGroupWorkers(n)) }
}

// WithTracer sets the OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option {
	return func(r *Runtime) { r.evalOpts = append(r.evalOpts, eval.WithTracer(t)) }
}
