// Package runner implements the DAG execution engine: it instantiates a
// builder.Pipeline's nodes, merges inbound edges, drives each node through
// its configured execution strategy, threads lineage packets through, and
// disposes instances in reverse-topological order.
package runner

import (
	"context"

	"dario.cat/mergo"

	"github.com/npipeline/npipeline/breaker"
	"github.com/npipeline/npipeline/errs"
	"github.com/npipeline/npipeline/internal/logging"
	"github.com/npipeline/npipeline/lineage"
	"github.com/npipeline/npipeline/merge"
	"github.com/npipeline/npipeline/observability"
	"github.com/npipeline/npipeline/retry"
	"github.com/npipeline/npipeline/strategy"
)

// Config bundles the cross-cutting services a Run uses: logger, observer,
// error handler, dead-letter sink, breaker manager, and the default option
// sets threaded through every node.
type Config struct {
	Logger   logging.Logger
	Observer observability.Observer

	ErrorHandler errs.Handler
	DeadLetter   *errs.DeadLetterSink

	Breakers *breaker.Manager

	RetryOptions    retry.Options
	ParallelOptions strategy.ParallelOptions
	MergeJoin       merge.KeyedJoinOptions
	Lineage         lineage.Options

	CorrelationID string
}

// DefaultConfig returns every field resolved to a safe default, ready for
// dario.cat/mergo to merge caller overrides onto.
func DefaultConfig() Config {
	retryOpts, _ := retry.ApplyDefaults(retry.Options{})
	parallelOpts, _ := strategy.ApplyParallelDefaults(strategy.ParallelOptions{})
	return Config{
		Logger:       logging.NewNoOp(),
		Observer:     observability.NullObserver{},
		ErrorHandler: errs.DefaultHandler{},
		DeadLetter:   errs.NewDeadLetterSink(0),
		Breakers:     breaker.NewManager(breaker.DefaultOptions()),
		RetryOptions: retryOpts,
		ParallelOptions: parallelOpts,
		Lineage:      lineage.Options{MismatchBehavior: lineage.MismatchWarn},
	}
}

// ApplyConfigDefaults merges cfg over DefaultConfig, keeping any field the
// caller explicitly set (the same dario.cat/mergo canonical-default-struct
// pattern used by retry.ApplyDefaults and strategy.ApplyParallelDefaults).
func ApplyConfigDefaults(cfg Config) (Config, error) {
	merged := DefaultConfig()
	if err := mergo.Merge(&merged, cfg, mergo.WithOverride); err != nil {
		return Config{}, errs.Wrap(errs.CodeValidation, "merge runner config defaults", err)
	}
	return merged, nil
}

// scopedContext attaches correlation and node identifiers to ctx for
// logging and observability.
func scopedContext(ctx context.Context, correlationID, nodeID string) context.Context {
	if correlationID != "" {
		ctx = logging.WithCorrelationID(ctx, correlationID)
	}
	if nodeID != "" {
		ctx = logging.WithNodeID(ctx, nodeID)
	}
	return ctx
}
