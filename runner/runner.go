package runner

import (
	"context"
	"time"

	"github.com/npipeline/npipeline/builder"
	"github.com/npipeline/npipeline/errs"
	"github.com/npipeline/npipeline/graph"
	"github.com/npipeline/npipeline/internal/logging"
	"github.com/npipeline/npipeline/lineage"
	"github.com/npipeline/npipeline/pipe"
)

// Runner executes a validated builder.Pipeline. A Runner is stateless
// between runs; Run instantiates fresh node instances, executes the graph
// to completion, and disposes them.
type Runner struct {
	config   Config
	pipeline *builder.Pipeline
}

// New builds a Runner bound to cfg, merged over DefaultConfig so an
// unconfigured field never reaches a nil dependency.
func New(cfg Config) *Runner {
	merged, err := ApplyConfigDefaults(cfg)
	if err != nil {
		merged = DefaultConfig()
	}
	return &Runner{config: merged}
}

// Run instantiates every node in pipeline, drives the graph to completion
// in topological order, and disposes instances in reverse order. The
// returned ExecutionResult is always non-nil. err is non-nil exactly when
// the result reports Success == false, and then equals the result's Err.
func (r *Runner) Run(ctx context.Context, p *builder.Pipeline) (*ExecutionResult, error) {
	r.pipeline = p
	start := time.Now()

	if cycle := graph.DetectCycle(p.Graph); cycle != nil {
		err := errs.New(errs.CodeValidation, "pipeline graph contains a cycle").
			WithContext(map[string]interface{}{"cycle": cycle})
		return &ExecutionResult{Success: false, Err: err, Duration: time.Since(start), NodeStats: map[string]NodeStats{}}, err
	}

	correlationID := r.config.CorrelationID
	if correlationID == "" {
		correlationID = logging.GenerateCorrelationID()
	}
	ctx = logging.WithCorrelationID(ctx, correlationID)

	if r.config.Observer != nil {
		r.config.Observer.PipelineStarting(ctx, correlationID)
	}

	order := graph.TopologicalSort(p.Graph)

	instances := make(map[string]builder.ErasedInstance, len(order))
	var instantiated []string
	for _, id := range order {
		factory, ok := p.Factory(id)
		if !ok {
			return r.fail(ctx, instances, instantiated, start, errs.New(errs.CodeValidation, "no factory registered for node").WithNode(id))
		}
		inst, err := factory(scopedContext(ctx, correlationID, id))
		if err != nil {
			return r.fail(ctx, instances, instantiated, start, errs.Wrap(errs.CodeNodeExecution, "node instantiation failed", err).WithNode(id))
		}
		instances[id] = inst
		instantiated = append(instantiated, id)
	}

	result := &ExecutionResult{NodeStats: make(map[string]NodeStats, len(order))}
	outputs := make(map[string]pipe.Pipe[lineage.Packet[any]], len(order))

	for _, id := range order {
		def := p.Graph.Nodes[id]
		nodeCtx := scopedContext(ctx, correlationID, id)
		nodeStart := time.Now()

		inbound := p.Graph.Inbound(id)
		inputs := make([]pipe.Pipe[lineage.Packet[any]], 0, len(inbound))
		for _, e := range inbound {
			out, ok := outputs[branchOutputKey(e)]
			if !ok {
				out, ok = outputs[e.From]
			}
			if !ok {
				return r.fail(ctx, instances, instantiated, start, errs.New(errs.CodePipelineExecution, "inbound edge references a node with no output").WithNode(id))
			}
			inputs = append(inputs, out)
		}

		var merged pipe.Pipe[lineage.Packet[any]]
		var err error
		inst := instances[id]

		if r.config.Observer != nil {
			r.config.Observer.NodeExecuting(nodeCtx, id)
		}

		switch def.Kind {
		case graph.KindSource:
			merged, err = r.runSource(nodeCtx, def, inst)
		case graph.KindCustomMerge:
			merged, err = r.runCustomMerge(nodeCtx, def, inst, inputs)
		case graph.KindSink:
			var in pipe.Pipe[lineage.Packet[any]]
			in, err = r.mergeInbound(nodeCtx, def, inputs)
			if err == nil {
				err = r.runSink(nodeCtx, def, inst, in)
			}
		default: // KindTransform
			var in pipe.Pipe[lineage.Packet[any]]
			in, err = r.mergeInbound(nodeCtx, def, inputs)
			if err == nil {
				if inst.ItemTransform != nil {
					merged, err = r.runItemTransform(nodeCtx, def, inst, in)
				} else {
					merged, err = r.runStreamTransform(nodeCtx, def, inst, in)
				}
			}
		}

		if err != nil {
			result.NodeStats[id] = NodeStats{NodeID: id, Success: false, Err: err, Duration: time.Since(nodeStart)}
			if r.config.Observer != nil {
				r.config.Observer.NodeFailed(nodeCtx, id, err)
			}
			r.disposeAll(ctx, instances, instantiated)
			result.Success = false
			result.Err = errs.Wrap(errs.CodePipelineExecution, "pipeline execution failed", err).WithNode(id)
			result.Duration = time.Since(start)
			if r.config.Observer != nil {
				r.config.Observer.PipelineFailed(ctx, correlationID, result.Err)
			}
			return result, result.Err
		}

		if merged != nil {
			edges := p.Graph.Outbound(id)
			if len(edges) > 1 {
				branches := pipe.Split(merged, len(edges))
				r.wireBranches(outputs, edges, branches)
			} else {
				outputs[id] = merged
			}
		}

		result.NodeStats[id] = NodeStats{NodeID: id, Success: true, Duration: time.Since(nodeStart)}
		if r.config.Observer != nil {
			r.config.Observer.NodeFinished(nodeCtx, id, time.Since(nodeStart))
		}
	}

	r.disposeAll(ctx, instances, instantiated)

	result.Success = true
	result.Duration = time.Since(start)
	result.DeadLetter = r.config.DeadLetter.Len()
	if r.config.Observer != nil {
		r.config.Observer.PipelineFinished(ctx, correlationID, result.Duration)
	}
	return result, nil
}

// wireBranches assigns each split branch to its specific downstream
// consumer by overwriting outputs keyed by the edge's target, so a later
// iteration's Inbound lookup for that specific consumer finds its own
// branch rather than racing another consumer for the same shared pipe.
func (r *Runner) wireBranches(outputs map[string]pipe.Pipe[lineage.Packet[any]], edges []graph.Edge, branches []pipe.Pipe[lineage.Packet[any]]) {
	for i, e := range edges {
		outputs[branchOutputKey(e)] = branches[i]
	}
}

func branchOutputKey(e graph.Edge) string { return e.From + "->" + e.To }

func (r *Runner) fail(ctx context.Context, instances map[string]builder.ErasedInstance, instantiated []string, start time.Time, err error) (*ExecutionResult, error) {
	r.disposeAll(ctx, instances, instantiated)
	return &ExecutionResult{Success: false, Err: err, Duration: time.Since(start), NodeStats: map[string]NodeStats{}}, err
}

// disposeAll releases every successfully instantiated node in reverse
// topological order.
func (r *Runner) disposeAll(ctx context.Context, instances map[string]builder.ErasedInstance, order []string) {
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		inst := instances[id]
		if inst.Close == nil {
			continue
		}
		if err := inst.Close(ctx); err != nil && r.config.Logger != nil {
			r.config.Logger.Warn(ctx, "node disposal failed", "node_id", id, "error", err)
		}
	}
}
