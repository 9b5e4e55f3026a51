// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package config provides layered configuration built from defaults,
// YAML files, environment variables and command line flags.
package config

import (
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/z5labs/otel-cli/config/key"

	"github.com/go-viper/mapstructure/v2"
)

// Store receives the values of a [Source].
type Store interface {
	Set(key.Keyer, any) error
}

// Source writes its values into a [Store].
type Source interface {
	Apply(Store) error
}

// Manager holds the merged values of every [Source] given to [Read].
type Manager struct {
	values Map
}

// Read applies srcs in order, later sources overriding earlier ones.
func Read(srcs ...Source) (*Manager, error) {
	m := &Manager{values: make(Map)}
	for _, src := range srcs {
		if err := src.Apply(m.values); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Apply implements the [Source] interface.
func (m *Manager) Apply(store Store) error {
	return m.values.Apply(store)
}

// DecodeError is returned by [Manager.Unmarshal] when the merged values
// cannot be decoded into the target.
type DecodeError struct {
	Target reflect.Type
	Cause  error
}

// Error implements the [error] interface.
func (e DecodeError) Error() string {
	return fmt.Sprintf("config: failed to decode into %v: %s", e.Target, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e DecodeError) Unwrap() error {
	return e.Cause
}

// Unmarshal decodes the merged config into v, which must be a pointer.
// Struct fields are matched using the "config" tag. Strings are weakly
// converted into numbers and bools, comma separated strings into slices.
func (m *Manager) Unmarshal(v any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "config",
		Result:           v,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.DecodeHookFuncType(durationHook),
			mapstructure.TextUnmarshallerHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return DecodeError{Target: reflect.TypeOf(v), Cause: err}
	}
	err = dec.Decode(map[string]any(m.values))
	if err != nil {
		return DecodeError{Target: reflect.TypeOf(v), Cause: err}
	}
	return nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// durationHook accepts Go duration strings. A bare integer string is
// read as milliseconds, the unit used by the OTEL_* timeout variables.
func durationHook(from, to reflect.Type, data any) (any, error) {
	if to != durationType {
		return data, nil
	}

	switch from.Kind() {
	case reflect.String:
		s := data.(string)
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.Duration(ms) * time.Millisecond, nil
		}
		return time.ParseDuration(s)
	case reflect.Int, reflect.Int32, reflect.Int64:
		return time.Duration(reflect.ValueOf(data).Int()), nil
	default:
		return data, nil
	}
}
