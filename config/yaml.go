// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"fmt"
	"io"

	"github.com/z5labs/otel-cli/internal/try"

	"gopkg.in/yaml.v3"
)

// Yaml is a [Source] read from a YAML document.
type Yaml struct {
	r io.Reader
}

// FromYaml returns a [Yaml] source reading from r. If r is also an
// [io.Closer] it is closed once the document has been applied.
func FromYaml(r io.Reader) Yaml {
	return Yaml{r: r}
}

// InvalidYamlError occurs if the document is not valid YAML.
type InvalidYamlError struct {
	Cause error
}

// Error implements the [error] interface.
func (e InvalidYamlError) Error() string {
	return fmt.Sprintf("config: invalid yaml: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e InvalidYamlError) Unwrap() error {
	return e.Cause
}

// Apply implements the [Source] interface. An empty document applies nothing.
func (src Yaml) Apply(store Store) (err error) {
	defer try.Close(&err, src.r)

	b, err := io.ReadAll(src.r)
	if err != nil {
		return err
	}

	var doc map[string]any
	err = yaml.Unmarshal(b, &doc)
	if err != nil {
		return InvalidYamlError{Cause: err}
	}
	return Map(stringKeys(doc)).Apply(store)
}

// stringKeys converts nested map[any]any values, which yaml.v3 produces
// for non string keys, into map[string]any.
func stringKeys(m map[string]any) map[string]any {
	for k, v := range m {
		switch x := v.(type) {
		case map[string]any:
			m[k] = stringKeys(x)
		case map[any]any:
			sm := make(map[string]any, len(x))
			for kk, vv := range x {
				sm[fmt.Sprint(kk)] = vv
			}
			m[k] = stringKeys(sm)
		}
	}
	return m
}
