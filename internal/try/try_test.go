// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package try

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecover(t *testing.T) {
	t.Run("will return a PanicError", func(t *testing.T) {
		t.Run("if the function panics with a non-error value", func(t *testing.T) {
			f := func() (err error) {
				defer Recover(&err)
				panic("boom")
			}

			var perr PanicError
			if !assert.ErrorAs(t, f(), &perr) {
				return
			}
			if !assert.Equal(t, "boom", perr.Value) {
				return
			}
			if !assert.NotEmpty(t, perr.Stack) {
				return
			}
			if !assert.Nil(t, perr.Unwrap()) {
				return
			}
		})

		t.Run("which unwraps to the panic value if it is an error", func(t *testing.T) {
			panicErr := errors.New("boom")
			f := func() (err error) {
				defer Recover(&err)
				panic(panicErr)
			}

			if !assert.ErrorIs(t, f(), panicErr) {
				return
			}
		})

		t.Run("joined with the error already returned", func(t *testing.T) {
			returned := errors.New("returned")
			f := func() (err error) {
				defer Recover(&err)
				err = returned
				panic("boom")
			}

			err := f()
			if !assert.ErrorIs(t, err, returned) {
				return
			}
			if !assert.ErrorAs(t, err, new(PanicError)) {
				return
			}
		})
	})

	t.Run("will leave the error untouched", func(t *testing.T) {
		t.Run("if nothing panics", func(t *testing.T) {
			returned := errors.New("returned")
			f := func() (err error) {
				defer Recover(&err)
				return returned
			}

			if !assert.Equal(t, returned, f()) {
				return
			}
		})
	})
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestClose(t *testing.T) {
	t.Run("will return a CloseError", func(t *testing.T) {
		t.Run("if Close fails", func(t *testing.T) {
			closeErr := errors.New("close failed")
			f := func() (err error) {
				defer Close(&err, closerFunc(func() error { return closeErr }))
				return nil
			}

			err := f()

			var cerr CloseError
			if !assert.ErrorAs(t, err, &cerr) {
				return
			}
			if !assert.ErrorIs(t, cerr, closeErr) {
				return
			}
		})

		t.Run("joined with the error already returned", func(t *testing.T) {
			returned := errors.New("returned")
			f := func() (err error) {
				defer Close(&err, closerFunc(func() error { return io.ErrClosedPipe }))
				return returned
			}

			err := f()
			if !assert.ErrorIs(t, err, returned) {
				return
			}
			if !assert.ErrorIs(t, err, io.ErrClosedPipe) {
				return
			}
		})
	})

	t.Run("will not return an error", func(t *testing.T) {
		testCases := []struct {
			Name  string
			Value any
		}{
			{Name: "if the value is not an io.Closer", Value: 42},
			{Name: "if the value is nil", Value: nil},
			{Name: "if Close succeeds", Value: closerFunc(func() error { return nil })},
		}

		for _, testCase := range testCases {
			t.Run(testCase.Name, func(t *testing.T) {
				f := func() (err error) {
					defer Close(&err, testCase.Value)
					return nil
				}

				if !assert.Nil(t, f()) {
					return
				}
			})
		}
	})
}
