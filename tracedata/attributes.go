// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package tracedata

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	intPattern    = regexp.MustCompile(`^-?\d+$`)
	doublePattern = regexp.MustCompile(`^\d+\.\d+$`)
)

// KeyValueError is returned by [ParseKeyValues] for a pair without '='.
type KeyValueError struct {
	Pair string
}

// Error implements the [error] interface.
func (e KeyValueError) Error() string {
	return fmt.Sprintf("key-value pair must be in \"key=value\" format: %s", e.Pair)
}

// ParseKeyValues splits each "key=value" pair on its first '='. Later
// pairs override earlier ones with the same key.
func ParseKeyValues(pairs []string) (map[string]string, error) {
	m := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, KeyValueError{Pair: pair}
		}
		m[k] = v
	}
	return m, nil
}

// FlattenAttributes converts raw string values into typed attributes,
// sorted by key. A value wrapped in double quotes is always a string.
// Otherwise true and false become bools, integers become ints, decimals
// become doubles and anything else stays a string.
func FlattenAttributes(m map[string]string) []Attribute {
	attrs := make([]Attribute, 0, len(m))
	for k, v := range m {
		attrs = append(attrs, Attribute{Key: k, Value: inferValue(v)})
	}
	sort.Slice(attrs, func(i, j int) bool {
		return attrs[i].Key < attrs[j].Key
	})
	return attrs
}

func inferValue(s string) Value {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return StringValue(s[1 : len(s)-1])
	}

	switch strings.ToLower(s) {
	case "true":
		return BoolValue(true)
	case "false":
		return BoolValue(false)
	}

	if intPattern.MatchString(s) {
		n, err := strconv.ParseInt(s, 10, 64)
		if err == nil {
			return IntValue(n)
		}
	}
	if doublePattern.MatchString(s) {
		f, err := strconv.ParseFloat(s, 64)
		if err == nil {
			return DoubleValue(f)
		}
	}
	return StringValue(s)
}

// WithoutKeys returns a copy of m without the given keys.
func WithoutKeys(m map[string]string, keys ...string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	for _, k := range keys {
		delete(out, k)
	}
	return out
}
