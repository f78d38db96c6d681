package usecase

import (
	"context"
	"time"

	articleDomain "github.com/memorylib/integrator/internal/article/domain"
	"github.com/memorylib/integrator/internal/metrics"
)

// integrationUseCaseWithMetrics decorates IntegrationUseCase with metrics instrumentation.
type integrationUseCaseWithMetrics struct {
	next    IntegrationUseCase
	metrics metrics.BusinessMetrics
}

// NewIntegrationUseCaseWithMetrics wraps an IntegrationUseCase with metrics recording.
func NewIntegrationUseCaseWithMetrics(useCase IntegrationUseCase, m metrics.BusinessMetrics) IntegrationUseCase {
	return &integrationUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// Integrate records metrics for article integration operations. The status
// label carries the integration outcome rather than a plain success/error
// split, so duplicates and rejections are visible as their own series.
func (i *integrationUseCaseWithMetrics) Integrate(
	ctx context.Context,
	rawID string,
) *articleDomain.IntegrationResult {
	start := time.Now()
	result := i.next.Integrate(ctx, rawID)

	status := result.Outcome.String()

	i.metrics.RecordOperation(ctx, "articles", "integrate", status)
	i.metrics.RecordDuration(ctx, "articles", "integrate", time.Since(start), status)

	return result
}
