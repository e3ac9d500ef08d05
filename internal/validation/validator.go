// Package validation provides the process-wide go-playground/validator/v10
// instance that retry.Options.Validate and strategy.ParallelOptions.Validate
// use to check their struct tags: a single sync.Once-initialized instance
// with custom validators registered once at startup.
package validation

import (
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	instance *validator.Validate
)

var identifierPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Instance returns the shared validator, initializing it on first use.
func Instance() *validator.Validate {
	once.Do(func() {
		instance = validator.New()
		_ = instance.RegisterValidation("node_id", validateNodeID)
	})
	return instance
}

// validateNodeID backs the custom "node_id" tag: non-empty, alphanumeric
// plus underscore/hyphen. No struct field in the module carries that tag,
// and builder node names are only checked for being non-empty.
func validateNodeID(fl validator.FieldLevel) bool {
	return identifierPattern.MatchString(fl.Field().String())
}
