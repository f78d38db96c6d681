package domain

import (
	"github.com/memorylib/integrator/internal/errors"
)

// IntegrationOutcome is the terminal disposition of one integration request.
type IntegrationOutcome string

const (
	// OutcomeMoved means this request performed the move.
	OutcomeMoved IntegrationOutcome = "moved"
	// OutcomeAlreadyMoved means the article was archived by an earlier
	// delivery; nothing was left to do.
	OutcomeAlreadyMoved IntegrationOutcome = "already_moved"
	// OutcomeRejected means the instruction can never succeed: malformed
	// identifier, no staged document, or a staged document that is not
	// processed yet.
	OutcomeRejected IntegrationOutcome = "rejected"
	// OutcomeFailed means the move did not happen for operational reasons.
	// Retryable failures converge on redelivery.
	OutcomeFailed IntegrationOutcome = "failed"
)

// String returns the string representation of the outcome.
func (o IntegrationOutcome) String() string {
	return string(o)
}

// Validate checks if the outcome is a known disposition.
func (o IntegrationOutcome) Validate() error {
	switch o {
	case OutcomeMoved, OutcomeAlreadyMoved, OutcomeRejected, OutcomeFailed:
		return nil
	default:
		return errors.Wrap(errors.ErrInvalidInput, "unknown integration outcome")
	}
}

// IntegrationResult describes how an integration request ended.
type IntegrationResult struct {
	// DocumentID is the validated identifier, empty when validation failed.
	DocumentID DocumentID
	// Outcome is the terminal disposition.
	Outcome IntegrationOutcome
	// Attempts is the number of move transactions tried.
	Attempts int
	// Err is the terminal error for rejected and failed outcomes.
	Err error
}

// Retryable reports whether redelivering the same instruction could still
// succeed. Only operational failures classified transient qualify.
func (r *IntegrationResult) Retryable() bool {
	return r.Outcome == OutcomeFailed && errors.Is(r.Err, errors.ErrTransient)
}

// Reason returns the terminal error text, or "" for successful outcomes.
func (r *IntegrationResult) Reason() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}
