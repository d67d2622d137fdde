// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package errutil

import (
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
)

// AssertErrorCode fails t unless err carries the oops code code anywhere in
// its chain. It reports whether the assertion held.
func AssertErrorCode(t testing.TB, err error, code string) bool {
	t.Helper()
	if !assert.Error(t, err, "expected an error with code %s", code) {
		return false
	}
	if _, ok := oops.AsOops(err); !ok {
		return assert.Fail(t, "not an oops error", "code %s wanted, got %T: %v", code, err, err)
	}
	return assert.Equal(t, code, Code(err), "error: %v", err)
}

// AssertErrorContext fails t unless err carries key=value in its oops
// context.
func AssertErrorContext(t testing.TB, err error, key string, value any) bool {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return assert.Fail(t, "not an oops error", "context %s wanted, got %T: %v", key, err, err)
	}
	octx := oopsErr.Context()
	if !assert.Contains(t, octx, key) {
		return false
	}
	return assert.Equal(t, value, octx[key], "context key %s", key)
}
