// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"os"
	"strings"

	"github.com/z5labs/otel-cli/config/key"
)

// Binding maps an environment variable onto a config key.
type Binding struct {
	Env string
	Key key.Keyer
}

// Bind is shorthand for a [Binding] with a dotted key path.
func Bind(env, path string) Binding {
	return Binding{Env: env, Key: key.Parse(path)}
}

// Env represents a Source where its underlying values
// are extracted from environment variables.
type Env struct {
	environ  func() []string
	bindings []Binding
}

// FromEnv returns a Source which will apply its config
// from the environment variables available to the
// current process.
//
// Without bindings every variable is set under its own name. With
// bindings only the bound variables are set, under their bound keys.
// Empty values are skipped.
func FromEnv(bindings ...Binding) Env {
	return FromEnviron(os.Environ, bindings...)
}

// FromEnviron is like [FromEnv] but reads "KEY=value" pairs from environ.
func FromEnviron(environ func() []string, bindings ...Binding) Env {
	return Env{
		environ:  environ,
		bindings: bindings,
	}
}

// Apply implements the Source interface.
func (src Env) Apply(store Store) error {
	vars := make(map[string]string)
	for _, pair := range src.environ() {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || v == "" {
			continue
		}
		vars[k] = v
	}

	if len(src.bindings) == 0 {
		for k, v := range vars {
			err := store.Set(key.Name(k), v)
			if err != nil {
				return err
			}
		}
		return nil
	}

	for _, b := range src.bindings {
		v, ok := vars[b.Env]
		if !ok {
			continue
		}
		err := store.Set(b.Key, v)
		if err != nil {
			return err
		}
	}
	return nil
}
