package runner

import (
	"context"
	"time"

	"github.com/npipeline/npipeline/builder"
	"github.com/npipeline/npipeline/errs"
	"github.com/npipeline/npipeline/graph"
	"github.com/npipeline/npipeline/lineage"
	"github.com/npipeline/npipeline/pipe"
	"github.com/npipeline/npipeline/retry"
)

// runSource wraps a freshly initialized source's raw item pipe in fresh
// lineage packets: every item starts its traversal at a source.
func (r *Runner) runSource(ctx context.Context, def graph.NodeDefinition, inst builder.ErasedInstance) (pipe.Pipe[lineage.Packet[any]], error) {
	raw, err := inst.InitializeSource(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.CodeNodeExecution, "source initialization failed", err).WithNode(def.ID)
	}
	return pipe.NewStreamPipe(func(ctx context.Context, out chan<- lineage.Packet[any]) error {
		items, errCh := raw.Consume(ctx)
		for item := range items {
			pkt := lineage.NewPacket(item, false)
			pkt.AppendHop(def.ID, lineage.OutcomeEmitted, lineage.CardinalityOne, nil, r.config.Lineage.MaxHopRecordsPerItem)
			select {
			case out <- pkt:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return <-errCh
	}, 0), nil
}

// runItemTransform drives an ItemTransform node through its selected
// execution strategy, deriving each output packet from its input so
// lineage identity is preserved along the streaming 1:1 path.
func (r *Runner) runItemTransform(ctx context.Context, def graph.NodeDefinition, inst builder.ErasedInstance, in pipe.Pipe[lineage.Packet[any]]) (pipe.Pipe[lineage.Packet[any]], error) {
	strat, err := r.selectStrategy(def, inst)
	if err != nil {
		return nil, err
	}

	maxHops := r.config.Lineage.MaxHopRecordsPerItem
	item := func(ctx context.Context, pkt lineage.Packet[any]) (lineage.Packet[any], error) {
		result, err := inst.ItemTransform(ctx, pkt.Payload)
		if err != nil {
			return lineage.Packet[any]{}, err
		}
		derived := lineage.Derive(pkt, result)
		derived.AppendHop(def.ID, lineage.OutcomeEmitted, lineage.CardinalityOne, nil, maxHops)
		return derived, nil
	}

	return strat.Run(ctx, in, item)
}

// runStreamTransform materializes both sides of a whole-stream transform
// and reattaches lineage positionally or via materializing mapping, chosen
// by lineage.SelectStrategy. When the configured lineage options mark the
// input as streaming-required, outputs are paired with inputs
// positionally; the whole input is still collected first.
func (r *Runner) runStreamTransform(ctx context.Context, def graph.NodeDefinition, inst builder.ErasedInstance, in pipe.Pipe[lineage.Packet[any]]) (pipe.Pipe[lineage.Packet[any]], error) {
	inPackets, err := pipe.Collect(ctx, in)
	if err != nil {
		return nil, err
	}
	payloads := make([]any, len(inPackets))
	for i, pkt := range inPackets {
		payloads[i] = pkt.Payload
	}

	outPipe, err := inst.StreamTransform(ctx, pipe.NewListPipe(payloads))
	if err != nil {
		return nil, errs.Wrap(errs.CodeNodeExecution, "stream transform failed", err).WithNode(def.ID)
	}
	outputs, err := pipe.Collect(ctx, outPipe)
	if err != nil {
		return nil, err
	}

	opts := lineage.Options{
		Cardinality:          def.Cardinality,
		MaterializationCap:   r.config.Lineage.MaterializationCap,
		OverflowPolicy:       r.config.Lineage.OverflowPolicy,
		MismatchBehavior:     r.config.Lineage.MismatchBehavior,
		MaxHopRecordsPerItem: r.config.Lineage.MaxHopRecordsPerItem,
		StreamingRequired:    r.config.Lineage.StreamingRequired,
	}
	mapper, _ := r.pipeline.LineageMapper(def.ID)
	opts.HasCustomMapper = mapper != nil
	strat := lineage.SelectStrategy(opts)

	var mapped []lineage.Packet[any]
	switch strat {
	case lineage.StrategyCapAware:
		mapped, _, err = lineage.MapCapAware(def.ID, inPackets, outputs, mapper, opts.MaterializationCap, opts.OverflowPolicy, opts.MaxHopRecordsPerItem)
		if err != nil {
			return nil, err
		}
	case lineage.StrategyPositionalStreaming:
		mapped = lineage.MapPositionalStreaming(def.ID, inPackets, outputs, opts.MaxHopRecordsPerItem)
	default:
		mapped = lineage.MapMaterializing(def.ID, inPackets, outputs, mapper, opts.MaxHopRecordsPerItem)
	}

	if def.Cardinality == graph.CardinalityOneToOne && opts.MismatchBehavior != lineage.MismatchIgnore {
		if mm := lineage.DetectMismatch(def.ID, len(inPackets), len(outputs)); mm != nil {
			if opts.MismatchBehavior == lineage.MismatchStrict {
				return nil, mm.AsError()
			}
			r.config.Logger.Warn(ctx, "one-to-one cardinality mismatch", "node_id", def.ID, "inputs", mm.Inputs, "outputs", mm.Outputs)
		}
	}

	return pipe.NewListPipe(mapped), nil
}

// runCustomMerge invokes a node's own merge implementation directly,
// bypassing the generic merge.Service entirely: a Custom merge type
// delegates to the node. Output items start fresh lineage
// identities since a CustomMerge can combine an arbitrary subset of its
// inputs into each output, and the node does not report which.
func (r *Runner) runCustomMerge(ctx context.Context, def graph.NodeDefinition, inst builder.ErasedInstance, inputs []pipe.Pipe[lineage.Packet[any]]) (pipe.Pipe[lineage.Packet[any]], error) {
	payloadPipes := make([]pipe.Pipe[any], len(inputs))
	for i, in := range inputs {
		payloadPipes[i] = stripPayload(in)
	}

	out, err := inst.CustomMerge(ctx, payloadPipes)
	if err != nil {
		return nil, errs.Wrap(errs.CodeNodeExecution, "custom merge failed", err).WithNode(def.ID)
	}

	maxHops := r.config.Lineage.MaxHopRecordsPerItem
	return pipe.NewStreamPipe(func(ctx context.Context, out2 chan<- lineage.Packet[any]) error {
		items, errCh := out.Consume(ctx)
		for item := range items {
			pkt := lineage.NewPacket(item, false)
			pkt.AppendHop(def.ID, lineage.OutcomeEmitted, lineage.CardinalityUnknown, nil, maxHops)
			select {
			case out2 <- pkt:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return <-errCh
	}, 0), nil
}

func stripPayload(in pipe.Pipe[lineage.Packet[any]]) pipe.Pipe[any] {
	return pipe.NewStreamPipe(func(ctx context.Context, out chan<- any) error {
		items, errCh := in.Consume(ctx)
		for pkt := range items {
			select {
			case out <- pkt.Payload:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return <-errCh
	}, 0)
}

// runSink drives a sink node to completion, wrapping the consume call with
// the node's breaker/retry policy the same way Resilient would for a
// transform.
func (r *Runner) runSink(ctx context.Context, def graph.NodeDefinition, inst builder.ErasedInstance, in pipe.Pipe[lineage.Packet[any]]) error {
	if def.StrategyKind != graph.StrategyResilient {
		if err := inst.ConsumeSink(ctx, stripPayload(in)); err != nil {
			return errs.Wrap(errs.CodeNodeExecution, "sink consume failed", err).WithNode(def.ID)
		}
		return nil
	}

	materialized, cerr := pipe.Collect(ctx, in)
	if cerr != nil {
		return cerr
	}

	breakerInstance, err := r.config.Breakers.GetOrCreate(def.ID, nil)
	if err != nil {
		return err
	}

	maxAttempts := r.config.RetryOptions.MaxNodeRestartAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if ok, berr := breakerInstance.Allow(); !ok {
			return berr
		}
		replay := pipe.NewListPipe(append([]lineage.Packet[any](nil), materialized...))
		err := inst.ConsumeSink(ctx, stripPayload(replay))
		if err == nil {
			breakerInstance.OnSuccess()
			return nil
		}
		breakerInstance.OnFailure()
		lastErr = err

		decision := r.config.ErrorHandler.HandleNodeFailure(ctx, def.ID, err)
		if decision != errs.RestartNode {
			return errs.Wrap(errs.CodeNodeExecution, "sink consume failed", err).WithNode(def.ID)
		}
		delayer := retry.NewDelayer(r.config.RetryOptions.Policy)
		delay := delayer.Delay(attempt)
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
		}
	}
	return errs.Wrap(errs.CodeMaxRestartsExceeded, "sink max restart attempts exceeded", lastErr).WithNode(def.ID)
}
