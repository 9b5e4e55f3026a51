// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlags_Apply(t *testing.T) {
	newFlagSet := func(t *testing.T) *pflag.FlagSet {
		fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
		fs.String("endpoint", "http://default", "")
		fs.Int("port", 7777, "")
		fs.StringSlice("headers", nil, "")
		fs.Bool("unbound", false, "")

		require.Nil(t, BindFlag(fs, "endpoint", "exporter.endpoint"))
		require.Nil(t, BindFlag(fs, "port", "server.port"))
		require.Nil(t, BindFlag(fs, "headers", "exporter.headers"))
		return fs
	}

	t.Run("will skip flags", func(t *testing.T) {
		t.Run("if they were not set on the command line", func(t *testing.T) {
			fs := newFlagSet(t)
			require.Nil(t, fs.Parse([]string{"--unbound"}))

			store := make(Map)
			err := FromFlags(fs).Apply(store)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Len(t, store, 0) {
				return
			}
		})
	})

	t.Run("will set changed flags under their bound key", func(t *testing.T) {
		fs := newFlagSet(t)
		require.Nil(t, fs.Parse([]string{"--port", "8888", "--headers", "a=1,b=2"}))

		m, err := Read(
			Map{"exporter": map[string]any{"endpoint": "http://fromdefaults"}},
			FromFlags(fs),
		)
		if !assert.Nil(t, err) {
			return
		}

		var cfg struct {
			Exporter struct {
				Endpoint string   `config:"endpoint"`
				Headers  []string `config:"headers"`
			} `config:"exporter"`
			Server struct {
				Port int `config:"port"`
			} `config:"server"`
		}
		err = m.Unmarshal(&cfg)
		if !assert.Nil(t, err) {
			return
		}
		if !assert.Equal(t, "http://fromdefaults", cfg.Exporter.Endpoint) {
			return
		}
		if !assert.Equal(t, []string{"a=1", "b=2"}, cfg.Exporter.Headers) {
			return
		}
		if !assert.Equal(t, 8888, cfg.Server.Port) {
			return
		}
	})
}
