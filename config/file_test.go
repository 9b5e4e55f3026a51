// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"errors"
	"io"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
)

type fsFunc func(string) (fs.File, error)

func (f fsFunc) Open(path string) (fs.File, error) {
	return f(path)
}

func TestFileReader_Read(t *testing.T) {
	t.Run("will return an error", func(t *testing.T) {
		t.Run("if the fs.FS fails to open the file", func(t *testing.T) {
			openErr := errors.New("failed to open")
			fs := fsFunc(func(s string) (fs.File, error) {
				return nil, openErr
			})

			r := NewFileReader(fs, "config.yaml")
			_, err := io.ReadAll(r)
			if !assert.ErrorIs(t, err, openErr) {
				return
			}
		})
	})
}

func TestFileReader_Close(t *testing.T) {
	t.Run("will not return an error", func(t *testing.T) {
		t.Run("if Close is called before the underlying file has been opened", func(t *testing.T) {
			fs := fsFunc(func(s string) (fs.File, error) {
				return nil, nil
			})

			r := NewFileReader(fs, "config.yaml")
			err := r.Close()
			if !assert.Nil(t, err) {
				return
			}
		})
	})
}

func TestFileReader_Yaml(t *testing.T) {
	t.Run("will read and close the file", func(t *testing.T) {
		fsys := fstest.MapFS{
			"otel-cli.yaml": &fstest.MapFile{
				Data: []byte("server:\n  port: 9000\n"),
			},
		}

		r := NewFileReader(fsys, "otel-cli.yaml")
		m, err := Read(FromYaml(r))
		if !assert.Nil(t, err) {
			return
		}

		var cfg struct {
			Server struct {
				Port int `config:"port"`
			} `config:"server"`
		}
		err = m.Unmarshal(&cfg)
		if !assert.Nil(t, err) {
			return
		}
		if !assert.Equal(t, 9000, cfg.Server.Port) {
			return
		}
		if !assert.Nil(t, r.file) {
			return
		}
	})

	t.Run("will keep returning the open error", func(t *testing.T) {
		r := NewFileReader(fstest.MapFS{}, "missing.yaml")

		_, err := r.Read(make([]byte, 8))
		if !assert.ErrorIs(t, err, fs.ErrNotExist) {
			return
		}
		_, err = r.Read(make([]byte, 8))
		if !assert.ErrorIs(t, err, fs.ErrNotExist) {
			return
		}
	})
}
