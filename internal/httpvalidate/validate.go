// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package httpvalidate rejects requests before they reach a handler.
package httpvalidate

import (
	"mime"
	"net/http"
	"slices"
	"strings"
)

// Validator reports whether r may be served. A Validator which returns
// false must have already written the response.
type Validator func(w http.ResponseWriter, r *http.Request) bool

// Request wraps h so every validator must pass, in order, before h is called.
func Request(h http.Handler, validators ...Validator) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, valid := range validators {
			if !valid(w, r) {
				return
			}
		}
		h.ServeHTTP(w, r)
	})
}

// ForMethods answers any other method with 405 and an Allow header.
func ForMethods(methods ...string) Validator {
	allow := strings.Join(methods, ", ")
	return func(w http.ResponseWriter, r *http.Request) bool {
		if slices.Contains(methods, r.Method) {
			return true
		}
		w.Header().Set("Allow", allow)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
}

// ForContentTypes answers a request whose Content-Type is set but not one
// of types with 415. Media type parameters, e.g. charset, are ignored.
func ForContentTypes(types ...string) Validator {
	return func(w http.ResponseWriter, r *http.Request) bool {
		ct := r.Header.Get("Content-Type")
		if ct == "" {
			return true
		}
		mt, _, err := mime.ParseMediaType(ct)
		if err == nil && slices.Contains(types, mt) {
			return true
		}
		w.WriteHeader(http.StatusUnsupportedMediaType)
		return false
	}
}
