package errutil

import (
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertErrorCode asserts that err is an oops error carrying code.
func AssertErrorCode(t testing.TB, err error, code string) {
	t.Helper()
	oe, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T", err)
	assert.Equal(t, code, oe.Code())
}

// AssertErrorContext asserts that err is an oops error with key set to value.
func AssertErrorContext(t testing.TB, err error, key string, value any) {
	t.Helper()
	oe, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T", err)
	ctx := oe.Context()
	require.Contains(t, ctx, key)
	assert.Equal(t, value, ctx[key])
}
