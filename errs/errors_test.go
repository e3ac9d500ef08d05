package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := Wrap(CodeNodeExecution, "node failed", cause).WithNode("n1")

	assert.Contains(t, err.Error(), "NODE_EXECUTION")
	assert.Contains(t, err.Error(), "n1")
	assert.Contains(t, err.Error(), "node failed")
	assert.Contains(t, err.Error(), "boom")
}

func TestErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("underlying")
	err := Wrap(CodeRetryExhausted, "gave up", cause)

	assert.Same(t, cause, errors.Unwrap(err))
}

func TestErrorIsMatchesByCode(t *testing.T) {
	a := New(CodeCircuitBreakerOpen, "blocked")
	b := New(CodeCircuitBreakerOpen, "different message, same code")
	c := New(CodeMergeOverflow, "different code")

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}

func TestCodeOfAndIsHelpers(t *testing.T) {
	err := New(CodeLineageMismatch, "cardinality violation")

	code, ok := CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, CodeLineageMismatch, code)
	assert.True(t, Is(err, CodeLineageMismatch))
	assert.False(t, Is(err, CodeCancelled))

	wrapped := fmt.Errorf("context: %w", err)
	assert.True(t, Is(wrapped, CodeLineageMismatch))

	_, ok = CodeOf(fmt.Errorf("plain"))
	assert.False(t, ok)
}

func TestWithContextMerges(t *testing.T) {
	err := New(CodeMergeOverflow, "buffer full").
		WithContext(map[string]interface{}{"capacity": 10}).
		WithContext(map[string]interface{}{"node_id": "join-1"})

	assert.Equal(t, 10, err.Context["capacity"])
	assert.Equal(t, "join-1", err.Context["node_id"])
}

func TestNilErrorMethodsAreSafe(t *testing.T) {
	var err *Error
	assert.Equal(t, "<nil>", err.Error())
	assert.Nil(t, err.Unwrap())
	assert.Nil(t, err.WithNode("x"))
	assert.Nil(t, err.WithContext(nil))
}
