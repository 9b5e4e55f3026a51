// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"fmt"
	"io"
	"io/fs"
)

// OpenFileError is returned by [FileReader.Read] when the file could
// not be opened.
type OpenFileError struct {
	Path  string
	Cause error
}

// Error implements the [error] interface.
func (e OpenFileError) Error() string {
	return fmt.Sprintf("config: failed to open %s: %s", e.Path, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e OpenFileError) Unwrap() error {
	return e.Cause
}

// FileReader defers opening a config file until its first Read, which
// lets a missing file surface as a [Source] error from [Read].
type FileReader struct {
	fsys fs.FS
	path string

	opened  bool
	openErr error
	file    fs.File
}

// NewFileReader returns a [FileReader] for path within fsys.
func NewFileReader(fsys fs.FS, path string) *FileReader {
	return &FileReader{
		fsys: fsys,
		path: path,
	}
}

// Read implements the [io.Reader] interface.
func (r *FileReader) Read(b []byte) (int, error) {
	if !r.opened {
		r.opened = true
		r.file, r.openErr = r.fsys.Open(r.path)
		if r.openErr != nil {
			r.openErr = OpenFileError{Path: r.path, Cause: r.openErr}
		}
	}
	switch {
	case r.openErr != nil:
		return 0, r.openErr
	case r.file == nil:
		return 0, io.EOF
	default:
		return r.file.Read(b)
	}
}

// Close implements the [io.Closer] interface. It is safe to call before
// the file has been opened.
func (r *FileReader) Close() error {
	f := r.file
	r.file = nil
	if f == nil {
		return nil
	}
	return f.Close()
}
