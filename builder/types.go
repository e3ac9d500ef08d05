// Package builder implements fluent graph construction and validation.
// Because Go forbids a method from introducing its own type parameters,
// the per-node constructors are package-level generic functions taking
// *Builder rather than methods on it — the same shape used elsewhere for
// generic helper functions (e.g. pipe.Widen/Narrow) when a fluent method
// chain is not expressible. Each constructor is the one place a node's
// concrete item type is known; it closes over that type to build an
// ErasedInstance the runner can drive without reflection.
package builder

import (
	"context"

	"github.com/npipeline/npipeline/graph"
	"github.com/npipeline/npipeline/pipe"
)

// ErasedInstance bundles whatever capability a node instance implements
// behind type-erased, any-boxed pipes. Exactly one of InitializeSource,
// ItemTransform/StreamTransform, ConsumeSink, or CustomMerge is populated,
// matching the node's graph.NodeKind.
type ErasedInstance struct {
	Kind graph.NodeKind

	InitializeSource func(ctx context.Context) (pipe.Pipe[any], error)

	// Exactly one of these is set for a Transform node.
	ItemTransform   func(ctx context.Context, item any) (any, error)
	StreamTransform func(ctx context.Context, in pipe.Pipe[any]) (pipe.Pipe[any], error)

	ConsumeSink func(ctx context.Context, in pipe.Pipe[any]) error

	CustomMerge func(ctx context.Context, inputs []pipe.Pipe[any]) (pipe.Pipe[any], error)

	Close func(ctx context.Context) error

	// Snapshot and Restore are set only when the concrete node instance
	// implements node.Snapshotable; nil otherwise.
	Snapshot func() (interface{}, error)
	Restore  func(interface{}) error
}

// ValidationMode selects how Build reacts to validation issues.
type ValidationMode string

const (
	// ModeStrict stops validating at the first rule that reports an
	// Error-severity issue and fails the build (the default).
	ModeStrict ValidationMode = "Strict"
	// ModeWarn collects every issue and still returns a pipeline.
	ModeWarn ValidationMode = "Warn"
	// ModeOff skips structural/type/cycle/reachability validation entirely.
	ModeOff ValidationMode = "Off"
)

// Severity classifies a validation Issue.
type Severity string

const (
	SeverityError   Severity = "Error"
	SeverityWarning Severity = "Warning"
	SeverityInfo    Severity = "Info"
)

// Issue describes one validation finding.
type Issue struct {
	Severity Severity
	Category string
	Message  string
	NodeID   string
	Edge     *graph.Edge
}

// ValidationResult is the accumulated output of Build's validation pass.
type ValidationResult struct {
	Issues []Issue
}

// HasErrors reports whether the result contains any Error-severity issue.
func (r ValidationResult) HasErrors() bool {
	for _, issue := range r.Issues {
		if issue.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Options configures a Builder.
type Options struct {
	ValidationMode      ValidationMode
	EarlyNameUniqueness bool
}

// DefaultOptions returns Strict validation with lazy (build-time) name
// disambiguation, the spec's defaults.
func DefaultOptions() Options {
	return Options{ValidationMode: ModeStrict, EarlyNameUniqueness: false}
}
