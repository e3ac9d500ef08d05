package errs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultHandlerDecisionTable(t *testing.T) {
	ctx := context.Background()
	h := DefaultHandler{}

	assert.Equal(t, FailNode, h.HandleNodeFailure(ctx, "n", New(CodeCircuitBreakerOpen, "open")))
	assert.Equal(t, StopPipeline, h.HandleNodeFailure(ctx, "n", New(CodePipeAlreadyConsumed, "reused")))
	assert.Equal(t, StopPipeline, h.HandleNodeFailure(ctx, "n", New(CodeRetryExhausted, "gave up")))
	assert.Equal(t, RestartNode, h.HandleNodeFailure(ctx, "n", New(CodeNodeExecution, "boom")))
}

func TestDefaultHandlerContinueOnError(t *testing.T) {
	ctx := context.Background()
	h := DefaultHandler{ContinueOnError: true}

	assert.Equal(t, Continue, h.HandleNodeFailure(ctx, "n", New(CodeRetryExhausted, "gave up")))
	assert.Equal(t, Continue, h.HandleNodeFailure(ctx, "n", New(CodeValidation, "bad data")))
}

func TestHandlerFuncAdapts(t *testing.T) {
	called := false
	var h Handler = HandlerFunc(func(ctx context.Context, nodeID string, err error) Decision {
		called = true
		return StopPipeline
	})

	decision := h.HandleNodeFailure(context.Background(), "n", New(CodeNodeExecution, "x"))
	assert.True(t, called)
	assert.Equal(t, StopPipeline, decision)
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "Continue", Continue.String())
	assert.Equal(t, "RestartNode", RestartNode.String())
}
