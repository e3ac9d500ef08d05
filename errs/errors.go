// Package errs defines npipeline's error taxonomy. A single typed Error
// carries a Code from the enumerated kinds, a human message, an optional
// wrapped cause, and a structured context map for diagnostics.
package errs

import (
	"errors"
	"fmt"
)

// Code identifies a well-known error category.
type Code string

const (
	// CodeNodeExecution is thrown by a node, carries nodeId and cause.
	CodeNodeExecution Code = "NODE_EXECUTION"
	// CodePipelineExecution is the top-level failure wrapping the first fatal cause.
	CodePipelineExecution Code = "PIPELINE_EXECUTION"
	// CodeRetryExhausted means the attempt budget was exceeded.
	CodeRetryExhausted Code = "RETRY_EXHAUSTED"
	// CodeCircuitBreakerOpen means a call was blocked by an open breaker.
	CodeCircuitBreakerOpen Code = "CIRCUIT_BREAKER_OPEN"
	// CodeCircuitBreakerTripped is raised by the breaker when a threshold is met.
	CodeCircuitBreakerTripped Code = "CIRCUIT_BREAKER_TRIPPED"
	// CodeNodeRestart is an internal control signal requesting a node restart.
	CodeNodeRestart Code = "NODE_RESTART"
	// CodeMaxRestartsExceeded means the restart control budget was exhausted.
	CodeMaxRestartsExceeded Code = "MAX_NODE_RESTART_ATTEMPTS_EXCEEDED"
	// CodeMergeOverflow means a bounded join/merge buffer is at capacity.
	CodeMergeOverflow Code = "MERGE_OVERFLOW"
	// CodeLineageMismatch means a OneToOne cardinality violation occurred under strict mode.
	CodeLineageMismatch Code = "LINEAGE_MISMATCH"
	// CodePipeAlreadyConsumed is a programming error: a pipe was consumed twice.
	CodePipeAlreadyConsumed Code = "PIPE_ALREADY_CONSUMED"
	// CodeCancelled is cooperative cancellation; it is never wrapped, only tagged.
	CodeCancelled Code = "CANCELLED"
	// CodeDeadLetterFailure means the dead-letter sink itself failed or overflowed.
	CodeDeadLetterFailure Code = "DEAD_LETTER_FAILURE"
	// CodeValidation marks graph/builder validation failures (structure, edges, types, cycles, reachability).
	CodeValidation Code = "VALIDATION"
)

// Error is npipeline's single structured error type.
type Error struct {
	Code    Code
	Message string
	NodeID  string
	Cause   error
	Context map[string]interface{}
}

// New constructs an Error of the given code.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap constructs an Error of the given code around a cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// WithNode attaches the originating node id and returns the receiver for chaining.
func (e *Error) WithNode(nodeID string) *Error {
	if e == nil {
		return nil
	}
	e.NodeID = nodeID
	return e
}

// WithContext merges additional diagnostic fields and returns the receiver for chaining.
func (e *Error) WithContext(ctx map[string]interface{}) *Error {
	if e == nil {
		return nil
	}
	if e.Context == nil {
		e.Context = make(map[string]interface{}, len(ctx))
	}
	for k, v := range ctx {
		e.Context[k] = v
	}
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	prefix := string(e.Code)
	if e.NodeID != "" {
		prefix = fmt.Sprintf("%s[%s]", prefix, e.NodeID)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is allows errors.Is comparisons keyed on Code alone.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// CodeOf extracts the Code from err if it is (or wraps) an *Error.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}

// Is reports whether err is (or wraps) an *Error with the given code.
func Is(err error, code Code) bool {
	got, ok := CodeOf(err)
	return ok && got == code
}
