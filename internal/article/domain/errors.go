package domain

import (
	"github.com/memorylib/integrator/internal/errors"
)

// Article-specific error definitions. Eligibility failures wrap
// ErrInvalidInput: they describe instructions that can never succeed, so
// retrying or redelivering them is pointless.
var (
	// ErrArticleNotStaged indicates no staged document exists for the id.
	ErrArticleNotStaged = errors.Wrap(errors.ErrInvalidInput, "article not found in staging")

	// ErrArticleNotProcessed indicates the staged document has not finished
	// processing.
	ErrArticleNotProcessed = errors.Wrap(errors.ErrInvalidInput, "article is not marked as processed")

	// ErrUnknownStagingStatus indicates a status value outside the staging
	// lifecycle.
	ErrUnknownStagingStatus = errors.Wrap(errors.ErrInvalidInput, "unknown staging status")
)
