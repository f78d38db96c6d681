package usecase

import (
	"context"

	articleDomain "github.com/memorylib/integrator/internal/article/domain"
	"github.com/memorylib/integrator/internal/docstore"
)

// statusUseCase implements the StatusUseCase interface.
type statusUseCase struct {
	store      docstore.Store
	stagingCol docstore.Collection
	archiveCol docstore.Collection
}

// Snapshot counts the articles currently held in each store.
func (s *statusUseCase) Snapshot(ctx context.Context) (*articleDomain.StatusSnapshot, error) {
	staged, err := s.store.Count(ctx, s.stagingCol)
	if err != nil {
		return nil, err
	}

	archived, err := s.store.Count(ctx, s.archiveCol)
	if err != nil {
		return nil, err
	}

	return &articleDomain.StatusSnapshot{Staged: staged, Archived: archived}, nil
}

// NewStatusUseCase creates a new status use case instance.
func NewStatusUseCase(
	store docstore.Store,
	stagingCol docstore.Collection,
	archiveCol docstore.Collection,
) StatusUseCase {
	return &statusUseCase{
		store:      store,
		stagingCol: stagingCol,
		archiveCol: archiveCol,
	}
}
