package retry

import (
	"time"

	"dario.cat/mergo"

	"github.com/npipeline/npipeline/errs"
	"github.com/npipeline/npipeline/internal/validation"
)

// Options is the validated, defaulted configuration a caller attaches to a
// node's Resilient strategy.
type Options struct {
	Policy                 Policy `validate:"required"`
	MaxNodeRestartAttempts int    `validate:"gte=0"`
	MaxMaterializedItems   int    `validate:"gte=0"`
}

// DefaultOptions returns a fully populated struct meant to be merged
// underneath caller-supplied values via dario.cat/mergo.
func DefaultOptions() Options {
	return Options{
		Policy: Policy{
			Backoff:    BackoffExponential,
			Jitter:     JitterFull,
			Base:       100 * time.Millisecond,
			Multiplier: 2,
			Max:        30 * time.Second,
		},
		MaxNodeRestartAttempts: 3,
		MaxMaterializedItems:   10000,
	}
}

// ApplyDefaults merges opts over DefaultOptions, keeping any field the
// caller explicitly set.
func ApplyDefaults(opts Options) (Options, error) {
	merged := DefaultOptions()
	if err := mergo.Merge(&merged, opts, mergo.WithOverride); err != nil {
		return Options{}, errs.Wrap(errs.CodeValidation, "merge retry options defaults", err)
	}
	return merged, nil
}

// Validate checks structural constraints: base > 0, multiplier >= 1, max >=
// base, plus the go-playground/validator struct tags above, using the
// process-wide shared instance (internal/validation).
func (o Options) Validate() error {
	if err := validation.Instance().Struct(o); err != nil {
		return errs.Wrap(errs.CodeValidation, "retry options", err)
	}
	if o.Policy.Base <= 0 {
		return errs.New(errs.CodeValidation, "retry policy base must be > 0")
	}
	if o.Policy.Backoff == BackoffExponential && o.Policy.Multiplier < 1 {
		return errs.New(errs.CodeValidation, "retry policy multiplier must be >= 1")
	}
	if o.Policy.Max > 0 && o.Policy.Max < o.Policy.Base {
		return errs.New(errs.CodeValidation, "retry policy max must be >= base")
	}
	return nil
}
