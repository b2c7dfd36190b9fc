package store

import (
	"io"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// File is the layout of a YAML macro file.
//
//	macros:
//	  - name: greet
//	    kind: source
//	    code: "Hello {$who}"
//	    params:
//	      - name: who
//	        default: world
type File struct {
	Macros []*Macro `yaml:"macros"`
}

// LoadYAML decodes and validates the macros in a YAML macro file.
func LoadYAML(r io.Reader) ([]*Macro, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, errors.Wrap(err, "decoding macro file")
	}
	for _, m := range f.Macros {
		if m.Kind == "" {
			m.Kind = PipeMacro
		}
		if err := m.Validate(); err != nil {
			return nil, err
		}
	}
	return f.Macros, nil
}

// Import stores every macro from a YAML macro file and returns how many
// were stored.
func Import(s Store, r io.Reader) (int, error) {
	macros, err := LoadYAML(r)
	if err != nil {
		return 0, err
	}
	for i, m := range macros {
		if err := s.Put(m); err != nil {
			return i, errors.Wrapf(err, "storing macro %s", m.Name)
		}
	}
	return len(macros), nil
}
