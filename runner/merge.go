package runner

import (
	"context"

	"github.com/npipeline/npipeline/errs"
	"github.com/npipeline/npipeline/graph"
	"github.com/npipeline/npipeline/lineage"
	"github.com/npipeline/npipeline/merge"
	"github.com/npipeline/npipeline/pipe"
)

// mergeInbound combines a node's inbound edges into a single lineage
// packet pipe per its configured merge type. A node with one
// inbound edge passes its single input straight through.
func (r *Runner) mergeInbound(ctx context.Context, def graph.NodeDefinition, inputs []pipe.Pipe[lineage.Packet[any]]) (pipe.Pipe[lineage.Packet[any]], error) {
	switch len(inputs) {
	case 0:
		return pipe.NewListPipe[lineage.Packet[any]](nil), nil
	case 1:
		return inputs[0], nil
	}

	if def.MergeType == graph.MergeKeyedJoin {
		return r.mergeKeyedJoin(ctx, def, inputs)
	}

	svc := merge.NewService[lineage.Packet[any]]()
	return svc.Combine(ctx, merge.Type(def.MergeType), inputs, r.config.MergeJoin)
}

// mergeKeyedJoin performs the buffered inner join and flattens each
// matched tuple into a single packet whose payload is the slice of joined
// payloads, carrying forward the first lane's lineage identity and
// recording every lane's index as aggregation ancestry.
func (r *Runner) mergeKeyedJoin(ctx context.Context, def graph.NodeDefinition, inputs []pipe.Pipe[lineage.Packet[any]]) (pipe.Pipe[lineage.Packet[any]], error) {
	selector, ok := r.pipeline.KeySelector(def.ID)
	if !ok {
		return nil, errs.New(errs.CodeValidation, "KeyedJoin node has no configured key selector").WithNode(def.ID)
	}

	keyed := func(item lineage.Packet[any]) any { return selector(item.Payload) }
	tuples, err := merge.CombineKeyedJoin[lineage.Packet[any], any](ctx, inputs, keyed, r.config.MergeJoin)
	if err != nil {
		return nil, err
	}

	return pipe.NewStreamPipe(func(ctx context.Context, out chan<- lineage.Packet[any]) error {
		items, errCh := tuples.Consume(ctx)
		for tuple := range items {
			payloads := make([]any, len(tuple))
			ancestry := make([]int, len(tuple))
			for i, p := range tuple {
				payloads[i] = p.Payload
				ancestry[i] = i
			}
			base := tuple[0]
			joined := lineage.Derive(base, any(payloads))
			joined.AppendHop(def.ID, lineage.OutcomeAggregated, lineage.CardinalityMany, ancestry, r.config.Lineage.MaxHopRecordsPerItem)
			select {
			case out <- joined:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return <-errCh
	}, 0), nil
}
