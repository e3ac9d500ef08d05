package builder

import (
	"context"

	"github.com/npipeline/npipeline/errs"
	"github.com/npipeline/npipeline/graph"
	"github.com/npipeline/npipeline/lineage"
)

// Pipeline is the immutable product of a successful Build: a validated
// graph plus, for every node, the factory that produces its ErasedInstance
// and (for KeyedJoin nodes) its key selector. The runner package consumes
// a *Pipeline; Builder itself never executes anything.
type Pipeline struct {
	Graph *graph.Graph

	factories     map[graph.Identifier]func(ctx context.Context) (ErasedInstance, error)
	keySel        map[graph.Identifier]func(item any) any
	lineageMapper map[graph.Identifier]lineage.CustomMapper
	Validation    ValidationResult
}

// Factory returns the ErasedInstance constructor registered for id.
func (p *Pipeline) Factory(id graph.Identifier) (func(ctx context.Context) (ErasedInstance, error), bool) {
	f, ok := p.factories[id]
	return f, ok
}

// KeySelector returns the erased KeyedJoin key extractor registered for
// id, if any.
func (p *Pipeline) KeySelector(id graph.Identifier) (func(item any) any, bool) {
	f, ok := p.keySel[id]
	return f, ok
}

// LineageMapper returns the custom ancestry function registered for id via
// WithCustomLineageMapper, if any.
func (p *Pipeline) LineageMapper(id graph.Identifier) (lineage.CustomMapper, bool) {
	m, ok := p.lineageMapper[id]
	return m, ok
}

// Build validates the accumulated definitions and edges per
// Options.ValidationMode and, on success, returns the resulting Pipeline:
//   - ModeOff skips validation and always succeeds structurally.
//   - ModeStrict stops validating at the first rule that reports an
//     Error-severity issue and returns an error.
//   - ModeWarn always returns a Pipeline, even with Error-severity issues
//     present in the result, leaving the decision to the caller.
func (b *Builder) Build() (*Pipeline, ValidationResult, error) {
	g := &graph.Graph{
		Nodes: make(map[graph.Identifier]graph.NodeDefinition, len(b.defs)),
		Edges: append([]graph.Edge(nil), b.edges...),
	}
	for id, def := range b.defs {
		g.Nodes[id] = def
	}

	var result ValidationResult
	if b.opts.ValidationMode != ModeOff {
		result = b.validate(g)
	}

	pipeline := &Pipeline{
		Graph:         g,
		factories:     b.factory,
		keySel:        b.keySel,
		lineageMapper: b.lineageMapper,
		Validation:    result,
	}

	if b.opts.ValidationMode == ModeStrict && result.HasErrors() {
		return nil, result, errs.New(errs.CodeValidation, "pipeline graph failed validation").
			WithContext(map[string]interface{}{"issue_count": len(result.Issues)})
	}

	return pipeline, result, nil
}
