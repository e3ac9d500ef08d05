package strategy

import (
	"runtime"

	"dario.cat/mergo"

	"github.com/npipeline/npipeline/errs"
	"github.com/npipeline/npipeline/internal/validation"
)

// ParallelOptions configures the Parallel strategy.
type ParallelOptions struct {
	DegreeOfParallelism int  `validate:"gte=1"`
	InputBound          int  `validate:"gte=0"`
	OutputBound         int  `validate:"gte=0"`
	PreserveOrder       bool `validate:""`
	ItemRetries         int  `validate:"gte=0"`
}

// DefaultParallelOptions returns DegreeOfParallelism set to
// min(8, availableParallelism), with InputBound and OutputBound
// defaulting to that same DOP value.
func DefaultParallelOptions() ParallelOptions {
	dop := runtime.GOMAXPROCS(0)
	if dop > 8 {
		dop = 8
	}
	if dop < 1 {
		dop = 1
	}
	return ParallelOptions{
		DegreeOfParallelism: dop,
		InputBound:          dop,
		OutputBound:         dop,
		PreserveOrder:       false,
		ItemRetries:         0,
	}
}

// ApplyParallelDefaults merges opts over DefaultParallelOptions, keeping any
// field the caller explicitly set, via dario.cat/mergo.
func ApplyParallelDefaults(opts ParallelOptions) (ParallelOptions, error) {
	merged := DefaultParallelOptions()
	if err := mergo.Merge(&merged, opts, mergo.WithOverride); err != nil {
		return ParallelOptions{}, errs.Wrap(errs.CodeValidation, "merge parallel options defaults", err)
	}
	return merged, nil
}

// Validate checks ParallelOptions' struct tags through the shared
// go-playground/validator instance.
func (o ParallelOptions) Validate() error {
	if err := validation.Instance().Struct(o); err != nil {
		return errs.Wrap(errs.CodeValidation, "parallel options", err)
	}
	return nil
}
