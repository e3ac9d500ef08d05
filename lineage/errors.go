package lineage

import "github.com/npipeline/npipeline/errs"

func capOverflowError(nodeID string, inputs, outputs, cap int) error {
	return errs.New(errs.CodeMergeOverflow, "lineage materialization cap exceeded").
		WithNode(nodeID).
		WithContext(map[string]interface{}{
			"inputs":  inputs,
			"outputs": outputs,
			"cap":     cap,
		})
}
