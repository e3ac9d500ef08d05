package runner

import (
	"github.com/npipeline/npipeline/breaker"
	"github.com/npipeline/npipeline/builder"
	"github.com/npipeline/npipeline/graph"
	"github.com/npipeline/npipeline/lineage"
	"github.com/npipeline/npipeline/strategy"
)

// selectStrategy builds the per-node execution strategy according to its
// StrategyKind. Parallel and Resilient draw their tuning from
// the run-wide Config; a future revision could let NodeDefinition carry
// per-node overrides, but nothing in the current graph model exposes that
// yet. inst's optional Snapshot/Restore hooks are wired into a Resilient
// node so a node.Snapshotable instance survives a restart with its state
// intact instead of restarting cold.
func (r *Runner) selectStrategy(def graph.NodeDefinition, inst builder.ErasedInstance) (strategy.Strategy[lineage.Packet[any], lineage.Packet[any]], error) {
	switch def.StrategyKind {
	case graph.StrategyParallel:
		return strategy.Parallel[lineage.Packet[any], lineage.Packet[any]]{
			Options:         r.config.ParallelOptions,
			ContinueOnError: def.ContinueOnError,
			NodeID:          def.ID,
			DeadLetter:      r.config.DeadLetter,
			RetryPolicy:     r.config.RetryOptions.Policy,
		}, nil
	case graph.StrategyResilient:
		var b *breaker.Breaker
		var err error
		if r.config.Breakers != nil {
			b, err = r.config.Breakers.GetOrCreate(def.ID, nil)
			if err != nil {
				return nil, err
			}
		}
		return strategy.Resilient[lineage.Packet[any], lineage.Packet[any]]{
			NodeID:          def.ID,
			Inner:           strategy.Sequential[lineage.Packet[any], lineage.Packet[any]]{},
			Options:         r.config.RetryOptions,
			Breaker:         b,
			ErrorHandler:    r.config.ErrorHandler,
			Observer:        r.config.Observer,
			Logger:          r.config.Logger,
			ContinueOnError: def.ContinueOnError,
			Snapshot:        inst.Snapshot,
			RestoreState:    inst.Restore,
		}, nil
	default:
		return strategy.Sequential[lineage.Packet[any], lineage.Packet[any]]{}, nil
	}
}
