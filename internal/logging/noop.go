package logging

import "context"

// noopLogger discards all log entries. Through NewNoOp it is the default
// logger in runner.DefaultConfig and breaker.NewManager.
type noopLogger struct{}

func (n *noopLogger) Debug(context.Context, string, ...interface{}) {}
func (n *noopLogger) Info(context.Context, string, ...interface{})  {}
func (n *noopLogger) Warn(context.Context, string, ...interface{})  {}
func (n *noopLogger) Error(context.Context, string, ...interface{}) {}
func (n *noopLogger) With(...interface{}) Logger                    { return n }

// NewNoOp returns a Logger that discards all log entries.
func NewNoOp() Logger {
	return &noopLogger{}
}
