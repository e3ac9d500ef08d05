package strategy

import (
	"context"
	"time"

	"github.com/npipeline/npipeline/breaker"
	"github.com/npipeline/npipeline/errs"
	"github.com/npipeline/npipeline/internal/logging"
	"github.com/npipeline/npipeline/observability"
	"github.com/npipeline/npipeline/pipe"
	"github.com/npipeline/npipeline/retry"
)

// ReinitFunc re-initializes a node instance's internal state ahead of a
// restart attempt. It is optional; a nil ReinitFunc means the node carries
// no state to reset.
type ReinitFunc func(ctx context.Context) error

// Resilient wraps an inner Strategy with per-node restart, a circuit
// breaker, and backoff-governed delay between attempts.
type Resilient[TIn, TOut any] struct {
	NodeID  string
	Inner   Strategy[TIn, TOut]
	Options retry.Options

	Breaker        *breaker.Breaker // nil disables the circuit breaker
	ErrorHandler   errs.Handler
	Observer       observability.Observer
	Logger         logging.Logger
	Reinit         ReinitFunc
	ContinueOnError bool

	// Snapshot and RestoreState implement the optional node.Snapshotable
	// hook: Snapshot is taken after each successful attempt; RestoreState
	// hands the last snapshot back before the next restart runs, ahead of
	// Reinit. Both nil means the node restarts cold.
	Snapshot     func() (interface{}, error)
	RestoreState func(interface{}) error
}

// Run implements Strategy. It materializes in up to
// Options.MaxMaterializedItems so a restarted attempt can replay the same
// input. If the input pipe is unbounded and holds more items than the
// cap, restart is disabled for this run and a diagnostic is logged.
func (r Resilient[TIn, TOut]) Run(ctx context.Context, in pipe.Pipe[TIn], item ItemFunc[TIn, TOut]) (pipe.Pipe[TOut], error) {
	materialized, truncated, err := materializeBounded(ctx, in, r.Options.MaxMaterializedItems)
	if err != nil {
		return nil, err
	}

	maxAttempts := r.Options.MaxNodeRestartAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if truncated {
		maxAttempts = 1
		if r.Logger != nil {
			r.Logger.Warn(ctx, "node restart disabled: input exceeds materialization cap",
				"node_id", r.NodeID, "cap", r.Options.MaxMaterializedItems)
		}
	}

	delayer := retry.NewDelayer(r.Options.Policy)
	handler := r.ErrorHandler
	if handler == nil {
		handler = errs.DefaultHandler{ContinueOnError: r.ContinueOnError}
	}

	var lastSnapshot interface{}
	var haveSnapshot bool

	for attempt := 0; ; attempt++ {
		if r.Breaker != nil {
			if ok, berr := r.Breaker.Allow(); !ok {
				return nil, berr
			}
		}

		inputPipe := pipe.NewListPipe(append([]TIn(nil), materialized...))
		var runErr error
		var collected []TOut
		outPipe, err := r.Inner.Run(ctx, inputPipe, item)
		if err != nil {
			runErr = err
		} else {
			collected, runErr = pipe.Collect(ctx, outPipe)
		}

		if runErr == nil {
			if r.Breaker != nil {
				r.Breaker.OnSuccess()
			}
			if r.Snapshot != nil {
				if snap, serr := r.Snapshot(); serr == nil {
					lastSnapshot, haveSnapshot = snap, true
				} else if r.Logger != nil {
					r.Logger.Warn(ctx, "node snapshot failed", "node_id", r.NodeID, "error", serr)
				}
			}
			return pipe.NewListPipe(collected), nil
		}

		out, decided := r.handleFailure(ctx, runErr, attempt, maxAttempts, delayer, handler, lastSnapshot, haveSnapshot)
		if decided == nil {
			return out, nil
		}
		if errs.Is(decided, errs.CodeNodeRestart) {
			continue
		}
		return nil, decided
	}
}

// handleFailure records the failure against the breaker, consults the error
// handler, and returns either a successful partial result (Continue), a
// terminal error (FailNode/StopPipeline/restart budget exceeded), or a
// sentinel NodeRestart error the caller loops on (RestartNode).
func (r Resilient[TIn, TOut]) handleFailure(
	ctx context.Context,
	cause error,
	attempt, maxAttempts int,
	delayer retry.Delayer,
	handler errs.Handler,
	snapshot interface{},
	haveSnapshot bool,
) (pipe.Pipe[TOut], error) {
	if r.Breaker != nil && !errs.Is(cause, errs.CodeCircuitBreakerOpen) {
		r.Breaker.OnFailure()
	}

	wrapped := errs.Wrap(errs.CodeNodeExecution, "node execution failed", cause).WithNode(r.NodeID)
	if r.Observer != nil {
		r.Observer.NodeFailed(ctx, r.NodeID, wrapped)
	}

	decision := handler.HandleNodeFailure(ctx, r.NodeID, wrapped)
	switch decision {
	case errs.Continue:
		return pipe.NewListPipe([]TOut(nil)), nil
	case errs.FailNode:
		return nil, wrapped
	case errs.StopPipeline:
		return nil, errs.Wrap(errs.CodePipelineExecution, "node requested pipeline stop", wrapped).WithNode(r.NodeID)
	case errs.RestartNode:
		if attempt+1 >= maxAttempts {
			return nil, errs.Wrap(errs.CodeMaxRestartsExceeded, "max node restart attempts exceeded", wrapped).WithNode(r.NodeID)
		}
		delay := delayer.Delay(attempt)
		if r.Observer != nil {
			r.Observer.RetryScheduled(ctx, r.NodeID, attempt+1, delay)
		}
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			}
		}
		if haveSnapshot && r.RestoreState != nil {
			if err := r.RestoreState(snapshot); err != nil {
				return nil, errs.Wrap(errs.CodeNodeExecution, "node state restore failed", err).WithNode(r.NodeID)
			}
		}
		if r.Reinit != nil {
			if err := r.Reinit(ctx); err != nil {
				return nil, errs.Wrap(errs.CodeNodeExecution, "node reinitialization failed", err).WithNode(r.NodeID)
			}
		}
		return nil, errs.New(errs.CodeNodeRestart, "restarting node").WithNode(r.NodeID)
	default:
		return nil, wrapped
	}
}

// materializeBounded drains p up to max items (max <= 0 means unbounded).
// truncated reports whether the pipe was unmaterialized and may still have
// held further items beyond the cap.
func materializeBounded[T any](ctx context.Context, p pipe.Pipe[T], max int) (items []T, truncated bool, err error) {
	if p.IsMaterialized() || max <= 0 {
		items, err = pipe.Collect(ctx, p)
		return items, false, err
	}
	items, err = pipe.CollectBounded(ctx, p, max)
	if err != nil {
		return items, false, err
	}
	return items, len(items) >= max, nil
}
