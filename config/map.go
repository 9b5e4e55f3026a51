// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"fmt"

	"github.com/z5labs/otel-cli/config/key"
)

// Map is a nested map[string]any which is both a [Source] and a [Store].
// Nested maps form the key chains, e.g. {"otlp": {"endpoint": ...}}
// holds "otlp.endpoint".
type Map map[string]any

// Apply implements the [Source] interface.
func (m Map) Apply(store Store) error {
	return m.apply(store, nil)
}

func (m Map) apply(store Store, prefix key.Chain) error {
	for name, v := range m {
		// full slice expression so siblings never share a backing array
		k := append(prefix[:len(prefix):len(prefix)], key.Name(name))

		var err error
		switch x := v.(type) {
		case Map:
			err = x.apply(store, k)
		case map[string]any:
			err = Map(x).apply(store, k)
		default:
			err = store.Set(k, v)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Set implements the [Store] interface.
func (m Map) Set(k key.Keyer, v any) error {
	switch x := k.(type) {
	case key.Name:
		m[string(x)] = v
		return nil
	case key.Chain:
		return m.setChain(x, v)
	default:
		return m.setChain(key.Parse(k.Key()), v)
	}
}

// EmptyKeyChainError occurs when a value is set with an empty [key.Chain].
type EmptyKeyChainError struct {
	Value any
}

// Error implements the [error] interface.
func (e EmptyKeyChainError) Error() string {
	return fmt.Sprintf("config: value set with an empty key: %v", e.Value)
}

// UnexpectedKeyValueTypeError occurs when a nested key is set below a
// key which already holds a scalar value.
type UnexpectedKeyValueTypeError struct {
	Key          string
	ExpectedType string
}

// Error implements the [error] interface.
func (e UnexpectedKeyValueTypeError) Error() string {
	return fmt.Sprintf("config: expected %s to hold a %s", e.Key, e.ExpectedType)
}

func (m Map) setChain(chain key.Chain, v any) error {
	if len(chain) == 0 {
		return EmptyKeyChainError{Value: v}
	}

	cur := map[string]any(m)
	for i, k := range chain[:len(chain)-1] {
		name := k.Key()
		child, ok := cur[name]
		if !ok {
			next := make(map[string]any)
			cur[name] = next
			cur = next
			continue
		}

		switch x := child.(type) {
		case map[string]any:
			cur = x
		case Map:
			cur = x
		default:
			return UnexpectedKeyValueTypeError{
				Key:          chain[:i+1].Key(),
				ExpectedType: "map[string]any",
			}
		}
	}
	cur[chain[len(chain)-1].Key()] = v
	return nil
}
