package lineage

import "github.com/npipeline/npipeline/errs"

// MismatchContext describes a OneToOne cardinality violation detected when
// input and output counts differ for a node.
type MismatchContext struct {
	NodeID        string
	Inputs        int
	Outputs       int
	MissingInputs []int
	ExtraOutputs  []int
	Aggregated    []AggregatedPair
}

// AggregatedPair records that a single output at OutputIndex was derived
// from the listed input indices (used when reporting many-to-one
// aggregation under a OneToOne declaration).
type AggregatedPair struct {
	OutputIndex int
	InputIndices []int
}

// MismatchBehavior selects how a detected mismatch is surfaced.
type MismatchBehavior int

const (
	// MismatchIgnore performs no check.
	MismatchIgnore MismatchBehavior = iota
	// MismatchWarn logs the mismatch and continues (warnOnMismatch).
	MismatchWarn
	// MismatchStrict returns a LineageMismatch error (strict).
	MismatchStrict
)

// DetectMismatch compares input/output counts for a declared OneToOne node
// and reports the discrepancy. It does not itself log or fail; callers
// apply MismatchBehavior.
func DetectMismatch(nodeID string, inputs, outputs int) *MismatchContext {
	if inputs == outputs {
		return nil
	}
	ctx := &MismatchContext{NodeID: nodeID, Inputs: inputs, Outputs: outputs}
	if outputs < inputs {
		for i := outputs; i < inputs; i++ {
			ctx.MissingInputs = append(ctx.MissingInputs, i)
		}
	} else {
		for i := inputs; i < outputs; i++ {
			ctx.ExtraOutputs = append(ctx.ExtraOutputs, i)
		}
	}
	return ctx
}

// AsError converts a MismatchContext into a LineageMismatch error suitable
// for strict-mode propagation.
func (m *MismatchContext) AsError() error {
	if m == nil {
		return nil
	}
	return errs.New(errs.CodeLineageMismatch, "one-to-one cardinality violation").
		WithNode(m.NodeID).
		WithContext(map[string]interface{}{
			"inputs":         m.Inputs,
			"outputs":        m.Outputs,
			"missing_inputs": m.MissingInputs,
			"extra_outputs":  m.ExtraOutputs,
		})
}
