// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"github.com/z5labs/otel-cli/config/key"

	"github.com/spf13/pflag"
)

// FlagAnnotation is the pflag annotation holding a flag's config key.
const FlagAnnotation = "config"

// BindFlag annotates the named flag so [Flags] sets its value under path.
func BindFlag(fs *pflag.FlagSet, name, path string) error {
	return fs.SetAnnotation(name, FlagAnnotation, []string{path})
}

// Flags represents a Source where its underlying values
// are command line flags.
type Flags struct {
	fs *pflag.FlagSet
}

// FromFlags returns a Source which applies every flag in fs that was
// explicitly set and carries a [FlagAnnotation].
func FromFlags(fs *pflag.FlagSet) Flags {
	return Flags{fs: fs}
}

// Apply implements the Source interface.
func (src Flags) Apply(store Store) error {
	var err error
	src.fs.VisitAll(func(f *pflag.Flag) {
		if err != nil || !f.Changed {
			return
		}
		paths := f.Annotations[FlagAnnotation]
		if len(paths) == 0 {
			return
		}

		var v any = f.Value.String()
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			v = sv.GetSlice()
		}
		err = store.Set(key.Parse(paths[0]), v)
	})
	return err
}
