package eval

import (
	"github.com/pkg/errors"

	"nickandperla.net/pipes/internal/errs"
	"nickandperla.net/pipes/internal/store"
)

// macro looks a macro up in the store.
func (e *Evaluator) macro(name string) (*store.Macro, error) {
	m, err := e.store.Get(name)
	if err != nil {
		return nil, errors.Wrapf(err, "loading macro %s", name)
	}
	if m == nil {
		return nil, errors.Wrapf(errs.ErrUnknownName, "unknown pipe, source or macro `%s`", name)
	}
	return m, nil
}

// macroPipeline returns the parsed body of a pipe macro. Bodies are parsed
// once per distinct code and shared by every invocation.
func (e *Evaluator) macroPipeline(m *store.Macro) (*Pipeline, error) {
	key := "pipe\x00" + m.Code
	if p, ok := e.macros.Load(key); ok {
		return p.(*Pipeline), nil
	}
	p, err := ParsePipeline(m.Code)
	if err != nil {
		return nil, errors.Wrapf(err, "macro %s", m.Name)
	}
	actual, _ := e.macros.LoadOrStore(key, p)
	return actual.(*Pipeline), nil
}

// macroScript returns the parsed body of a source macro.
func (e *Evaluator) macroScript(m *store.Macro) (*Script, error) {
	key := "source\x00" + m.Code
	if s, ok := e.macros.Load(key); ok {
		return s.(*Script), nil
	}
	s, err := ParseScript(m.Code)
	if err != nil {
		return nil, errors.Wrapf(err, "macro %s", m.Name)
	}
	actual, _ := e.macros.LoadOrStore(key, s)
	return actual.(*Script), nil
}

// inMacro runs fn with the macro's variables in scope, one level deeper.
func (e *Evaluator) inMacro(rc *runContext, bb *boundBranch, fn func() ([]string, error)) ([]string, error) {
	if rc.depth >= e.macroDepth {
		return nil, errors.Wrapf(errs.ErrMacroDepth, "macro %s at depth %d", bb.name, rc.depth)
	}
	vars, depth := rc.vars, rc.depth
	rc.vars, rc.depth = bb.vars, rc.depth+1
	defer func() { rc.vars, rc.depth = vars, depth }()
	return fn()
}

// CachedMacros reports how many parsed macro bodies are cached.
func (e *Evaluator) CachedMacros() int {
	n := 0
	e.macros.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
