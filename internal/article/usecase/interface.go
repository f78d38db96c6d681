// Package usecase defines the interfaces and implementations for article
// integration use cases. Use cases orchestrate the move of processed articles
// from the staging store into the archive store, retrying transient storage
// failures so that repeated deliveries of the same trigger converge on a
// single archived copy.
package usecase

import (
	"context"

	articleDomain "github.com/memorylib/integrator/internal/article/domain"
)

// IntegrationUseCase defines the interface for article integration business logic.
type IntegrationUseCase interface {
	// Integrate moves the staged article identified by rawID into the archive.
	// It does not return an error: every outcome, including failure, is
	// reported through the IntegrationResult so callers can decide whether to
	// acknowledge or redeliver the triggering message.
	Integrate(ctx context.Context, rawID string) *articleDomain.IntegrationResult
}

// StatusUseCase defines the interface for reporting store occupancy.
type StatusUseCase interface {
	Snapshot(ctx context.Context) (*articleDomain.StatusSnapshot, error)
}
