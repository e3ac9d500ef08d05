package builder

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/npipeline/npipeline/errs"
	"github.com/npipeline/npipeline/graph"
	"github.com/npipeline/npipeline/lineage"
	"github.com/npipeline/npipeline/node"
	"github.com/npipeline/npipeline/pipe"
)

// Builder accumulates node definitions and edges for one pipeline graph.
type Builder struct {
	opts Options

	order         []graph.Identifier
	defs          map[graph.Identifier]graph.NodeDefinition
	factory       map[graph.Identifier]func(ctx context.Context) (ErasedInstance, error)
	keySel        map[graph.Identifier]func(item any) any
	lineageMapper map[graph.Identifier]lineage.CustomMapper
	edges         []graph.Edge
	nameLow       map[string]int // lowercased base name -> next disambiguation suffix
	dedupeLog     []Issue
}

// New builds an empty Builder with opts (zero-value Options resolves to
// DefaultOptions).
func New(opts Options) *Builder {
	if opts.ValidationMode == "" {
		opts.ValidationMode = ModeStrict
	}
	return &Builder{
		opts:          opts,
		defs:          make(map[graph.Identifier]graph.NodeDefinition),
		factory:       make(map[graph.Identifier]func(ctx context.Context) (ErasedInstance, error)),
		keySel:        make(map[graph.Identifier]func(item any) any),
		lineageMapper: make(map[graph.Identifier]lineage.CustomMapper),
		nameLow:       make(map[string]int),
	}
}

// NodeOption configures a node definition at Add-time.
type NodeOption func(*graph.NodeDefinition)

// WithStrategy selects the node's execution strategy.
func WithStrategy(kind graph.StrategyKind) NodeOption {
	return func(d *graph.NodeDefinition) { d.StrategyKind = kind }
}

// WithContinueOnError toggles the node's continueOnError behavior.
func WithContinueOnError(v bool) NodeOption {
	return func(d *graph.NodeDefinition) { d.ContinueOnError = v }
}

// WithMergeType selects the merge algorithm used when the node has ≥2
// inbound edges.
func WithMergeType(t graph.MergeType) NodeOption {
	return func(d *graph.NodeDefinition) { d.MergeType = t }
}

// WithCardinality declares the node's lineage cardinality.
func WithCardinality(c graph.Cardinality) NodeOption {
	return func(d *graph.NodeDefinition) { d.Cardinality = c }
}

// WithCustomLineageMapper registers mapper as the ancestry function used to
// reattach lineage across this node's transform boundary. A ManyToMany
// node must carry one of these or Build reports an Error-severity issue.
func WithCustomLineageMapper(b *Builder, mapper lineage.CustomMapper) NodeOption {
	return func(d *graph.NodeDefinition) {
		d.HasCustomLineageMapper = mapper != nil
		if mapper != nil {
			b.lineageMapper[d.ID] = mapper
		}
	}
}

func typeToken[T any]() string {
	t := reflect.TypeOf((*T)(nil)).Elem()
	return t.String()
}

// resolveID applies the name-uniqueness policy: on a case-insensitive
// collision, EarlyNameUniqueness fails immediately; otherwise a
// disambiguating "<base>-<n>" suffix is appended and a Warning issue is
// recorded for Build to surface.
func (b *Builder) resolveID(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", errs.New(errs.CodeValidation, "node name must not be empty")
	}
	lower := strings.ToLower(name)
	n, exists := b.nameLow[lower]
	if !exists {
		b.nameLow[lower] = 1
		return name, nil
	}
	if b.opts.EarlyNameUniqueness {
		return "", errs.New(errs.CodeValidation, fmt.Sprintf("duplicate node name %q", name)).
			WithContext(map[string]interface{}{"name": name})
	}
	b.nameLow[lower] = n + 1
	id := fmt.Sprintf("%s-%d", name, n+1)
	b.dedupeLog = append(b.dedupeLog, Issue{
		Severity: SeverityWarning,
		Category: "NameUniqueness",
		Message:  fmt.Sprintf("node name %q collided; disambiguated to %q", name, id),
		NodeID:   id,
	})
	return id, nil
}

func (b *Builder) register(id string, def graph.NodeDefinition, factory func(ctx context.Context) (ErasedInstance, error)) {
	b.defs[id] = def
	b.factory[id] = factory
	b.order = append(b.order, id)
}

// AddSource registers a Source[T] node built by factory.
func AddSource[T any](b *Builder, name string, factory func(ctx context.Context) (node.Source[T], error), opts ...NodeOption) (graph.Identifier, error) {
	id, err := b.resolveID(name)
	if err != nil {
		return "", err
	}
	def := graph.NodeDefinition{
		ID:           id,
		DisplayName:  name,
		Kind:         graph.KindSource,
		OutputType:   typeToken[T](),
		StrategyKind: graph.StrategySequential,
		Cardinality:  graph.CardinalityOneToOne,
	}
	for _, o := range opts {
		o(&def)
	}

	b.register(id, def, func(ctx context.Context) (ErasedInstance, error) {
		instance, err := factory(ctx)
		if err != nil {
			return ErasedInstance{}, err
		}
		return ErasedInstance{
			Kind: graph.KindSource,
			InitializeSource: func(ctx context.Context) (pipe.Pipe[any], error) {
				p, err := instance.Initialize(ctx)
				if err != nil {
					return nil, err
				}
				return pipe.Widen(p), nil
			},
			Close: instance.Close,
		}, nil
	})
	return id, nil
}

// AddItemTransform registers a Transform[TIn,TOut] node that processes one
// item at a time, the common case driven by Sequential/Parallel.
func AddItemTransform[TIn, TOut any](b *Builder, name string, factory func(ctx context.Context) (node.ItemTransform[TIn, TOut], error), opts ...NodeOption) (graph.Identifier, error) {
	id, err := b.resolveID(name)
	if err != nil {
		return "", err
	}
	def := graph.NodeDefinition{
		ID:           id,
		DisplayName:  name,
		Kind:         graph.KindTransform,
		InputType:    typeToken[TIn](),
		OutputType:   typeToken[TOut](),
		StrategyKind: graph.StrategySequential,
		Cardinality:  graph.CardinalityOneToOne,
	}
	for _, o := range opts {
		o(&def)
	}

	b.register(id, def, func(ctx context.Context) (ErasedInstance, error) {
		instance, err := factory(ctx)
		if err != nil {
			return ErasedInstance{}, err
		}
		inst := ErasedInstance{
			Kind: graph.KindTransform,
			ItemTransform: func(ctx context.Context, raw any) (any, error) {
				item, ok := raw.(TIn)
				if !ok {
					return nil, errs.New(errs.CodeNodeExecution, fmt.Sprintf("expected %T, got %T", item, raw)).WithNode(id)
				}
				return instance.TransformItem(ctx, item)
			},
		}
		if closer, ok := any(instance).(node.Closer); ok {
			inst.Close = closer.Close
		}
		if snap, ok := any(instance).(node.Snapshotable); ok {
			inst.Snapshot = snap.Snapshot
			inst.Restore = snap.Restore
		}
		return inst, nil
	})
	return id, nil
}

// AddStreamTransform registers a Transform[TIn,TOut] node that processes
// the whole input pipe at once, for nodes needing cross-item state.
func AddStreamTransform[TIn, TOut any](b *Builder, name string, factory func(ctx context.Context) (node.StreamTransform[TIn, TOut], error), opts ...NodeOption) (graph.Identifier, error) {
	id, err := b.resolveID(name)
	if err != nil {
		return "", err
	}
	def := graph.NodeDefinition{
		ID:           id,
		DisplayName:  name,
		Kind:         graph.KindTransform,
		InputType:    typeToken[TIn](),
		OutputType:   typeToken[TOut](),
		StrategyKind: graph.StrategySequential,
		Cardinality:  graph.CardinalityOneToMany,
	}
	for _, o := range opts {
		o(&def)
	}

	b.register(id, def, func(ctx context.Context) (ErasedInstance, error) {
		instance, err := factory(ctx)
		if err != nil {
			return ErasedInstance{}, err
		}
		inst := ErasedInstance{
			Kind: graph.KindTransform,
			StreamTransform: func(ctx context.Context, in pipe.Pipe[any]) (pipe.Pipe[any], error) {
				out, err := instance.TransformStream(ctx, pipe.Narrow[TIn](in))
				if err != nil {
					return nil, err
				}
				return pipe.Widen(out), nil
			},
		}
		if closer, ok := any(instance).(node.Closer); ok {
			inst.Close = closer.Close
		}
		if snap, ok := any(instance).(node.Snapshotable); ok {
			inst.Snapshot = snap.Snapshot
			inst.Restore = snap.Restore
		}
		return inst, nil
	})
	return id, nil
}

// AddSink registers a Sink[TIn] node. Sinks are terminal and produce no
// output pipe.
func AddSink[TIn any](b *Builder, name string, factory func(ctx context.Context) (node.Sink[TIn], error), opts ...NodeOption) (graph.Identifier, error) {
	id, err := b.resolveID(name)
	if err != nil {
		return "", err
	}
	def := graph.NodeDefinition{
		ID:           id,
		DisplayName:  name,
		Kind:         graph.KindSink,
		InputType:    typeToken[TIn](),
		StrategyKind: graph.StrategySequential,
		Cardinality:  graph.CardinalityOneToOne,
	}
	for _, o := range opts {
		o(&def)
	}

	b.register(id, def, func(ctx context.Context) (ErasedInstance, error) {
		instance, err := factory(ctx)
		if err != nil {
			return ErasedInstance{}, err
		}
		return ErasedInstance{
			Kind: graph.KindSink,
			ConsumeSink: func(ctx context.Context, in pipe.Pipe[any]) error {
				return instance.Consume(ctx, pipe.Narrow[TIn](in))
			},
			Close: instance.Close,
		}, nil
	})
	return id, nil
}

// AddCustomMerge registers a CustomMerge[T] node, used when the node's
// MergeType is graph.MergeCustom.
func AddCustomMerge[T any](b *Builder, name string, factory func(ctx context.Context) (node.CustomMerge[T], error), opts ...NodeOption) (graph.Identifier, error) {
	id, err := b.resolveID(name)
	if err != nil {
		return "", err
	}
	def := graph.NodeDefinition{
		ID:           id,
		DisplayName:  name,
		Kind:         graph.KindCustomMerge,
		InputType:    typeToken[T](),
		OutputType:   typeToken[T](),
		StrategyKind: graph.StrategySequential,
		MergeType:    graph.MergeCustom,
		Cardinality:  graph.CardinalityManyToOne,
	}
	for _, o := range opts {
		o(&def)
	}

	b.register(id, def, func(ctx context.Context) (ErasedInstance, error) {
		instance, err := factory(ctx)
		if err != nil {
			return ErasedInstance{}, err
		}
		inst := ErasedInstance{
			Kind: graph.KindCustomMerge,
			CustomMerge: func(ctx context.Context, inputs []pipe.Pipe[any]) (pipe.Pipe[any], error) {
				narrowed := make([]pipe.Pipe[T], len(inputs))
				for i, p := range inputs {
					narrowed[i] = pipe.Narrow[T](p)
				}
				out, err := instance.Merge(ctx, narrowed)
				if err != nil {
					return nil, err
				}
				return pipe.Widen(out), nil
			},
		}
		if closer, ok := any(instance).(node.Closer); ok {
			inst.Close = closer.Close
		}
		return inst, nil
	})
	return id, nil
}

// WithMergeKeySelector attaches a typed key extractor for KeyedJoin merges
// and returns a NodeOption that records the merge type itself, so the two
// are configured together at Add-time.
func WithMergeKeySelector[T any, K comparable](b *Builder, selector func(item T) K) NodeOption {
	return func(d *graph.NodeDefinition) {
		d.MergeType = graph.MergeKeyedJoin
		d.MergeKeySelector = "configured"
		b.keySel[d.ID] = func(item any) any {
			typed, _ := item.(T)
			return selector(typed)
		}
	}
}

// Connect appends an edge from -> to. Structural validity (both endpoints
// exist, no self-loop, no duplicate) is deferred to Build so Warn-mode
// callers can see every problem at once.
func (b *Builder) Connect(from, to graph.Identifier) {
	b.edges = append(b.edges, graph.Edge{From: from, To: to})
}
