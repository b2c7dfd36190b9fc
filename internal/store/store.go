// Package store provides persistence for user-defined macros.
package store

import (
	"strings"

	"github.com/pkg/errors"

	"nickandperla.net/pipes/internal/args"
	"nickandperla.net/pipes/internal/token"
)

// Kind says where a macro can be called.
type Kind string

const (
	// PipeMacro code is a pipeline applied to the caller's items.
	PipeMacro Kind = "pipe"
	// SourceMacro code is a full script whose output replaces the items.
	SourceMacro Kind = "source"
)

// Param is a named macro parameter, visible to the macro code as {$name}.
type Param struct {
	Name     string `json:"name" yaml:"name"`
	Default  string `json:"default,omitempty" yaml:"default,omitempty"`
	Required bool   `json:"required,omitempty" yaml:"required,omitempty"`
	Desc     string `json:"desc,omitempty" yaml:"desc,omitempty"`
}

// Macro is a named, reusable pipeline or script.
type Macro struct {
	Name   string  `json:"name" yaml:"name"`
	Kind   Kind    `json:"kind" yaml:"kind"`
	Code   string  `json:"code" yaml:"code"`
	Desc   string  `json:"desc,omitempty" yaml:"desc,omitempty"`
	Params []Param `json:"params,omitempty" yaml:"params,omitempty"`
}

// Signature returns the macro's parameters as an argument signature.
func (m *Macro) Signature() args.Signature {
	sig := make(args.Signature, len(m.Params))
	for i, p := range m.Params {
		sig[i] = args.Param{
			Name:     p.Name,
			Type:     args.String,
			Default:  p.Default,
			Required: p.Required,
			Desc:     p.Desc,
		}
	}
	return sig
}

// Validate checks the macro's name, kind and parameter names.
func (m *Macro) Validate() error {
	if !validName(m.Name) {
		return errors.Errorf("invalid macro name %q", m.Name)
	}
	switch m.Kind {
	case PipeMacro, SourceMacro:
	default:
		return errors.Errorf("macro %s: invalid kind %q", m.Name, m.Kind)
	}
	if strings.TrimSpace(m.Code) == "" {
		return errors.Errorf("macro %s: empty code", m.Name)
	}
	seen := map[string]bool{}
	for _, p := range m.Params {
		if !validName(p.Name) {
			return errors.Errorf("macro %s: invalid parameter name %q", m.Name, p.Name)
		}
		if seen[p.Name] {
			return errors.Errorf("macro %s: duplicate parameter %q", m.Name, p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}

func validName(name string) bool {
	if name == "" || !token.IsIdentStart([]rune(name)[0]) {
		return false
	}
	for _, r := range name {
		if !token.IsIdent(r) {
			return false
		}
	}
	return true
}

// Key returns the storage key for a macro name.
func Key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Store is the interface for macro persistence.
type Store interface {
	// Get retrieves a macro by name. Returns nil if not found.
	Get(name string) (*Macro, error)
	// Put stores a macro, overwriting one with the same name.
	Put(m *Macro) error
	// Delete removes a macro by name.
	Delete(name string) error
	// List returns every macro sorted by name.
	List() ([]*Macro, error)
	// Close releases resources.
	Close() error
}

// VersionEntry represents a single stored version of a macro's code.
type VersionEntry struct {
	Version int
	Code    string
	Ts      string
}

// HistoryStore extends Store with version history queries.
type HistoryStore interface {
	GetHistory(name string, limit int) ([]VersionEntry, error)
}

// Open creates a store for a driver name: "memory", "sqlite" or "bolt".
func Open(driver, path string) (Store, error) {
	switch strings.ToLower(driver) {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite":
		return NewSQLite(path)
	case "bolt":
		return NewBolt(path)
	}
	return nil, errors.Errorf("unknown store driver %q", driver)
}
