// Package validation provides custom validation rules for the application.
package validation

import (
	"strings"

	validation "github.com/jellydator/validation"

	apperrors "github.com/memorylib/integrator/internal/errors"
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// NoSlash validates that a string contains no path separator. Document ids
// containing "/" would be read as collection paths by the store.
var NoSlash = validation.NewStringRuleWithError(
	func(s string) bool {
		return !strings.Contains(s, "/")
	},
	validation.NewError("validation_no_slash", "must not contain a slash"),
)

// NoReservedPrefix validates that a string does not start with "__", the
// prefix reserved for store-internal document names.
var NoReservedPrefix = validation.NewStringRuleWithError(
	func(s string) bool {
		return !strings.HasPrefix(s, "__")
	},
	validation.NewError("validation_reserved_prefix", "must not start with a reserved prefix"),
)
