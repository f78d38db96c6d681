package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	articleDomain "github.com/memorylib/integrator/internal/article/domain"
	"github.com/memorylib/integrator/internal/docstore"
	apperrors "github.com/memorylib/integrator/internal/errors"
)

// Default retry settings for transient storage failures.
const (
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 100 * time.Millisecond
	defaultMaxBackoff     = 2 * time.Second
)

// RetryConfig controls how transient storage failures are retried.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first one.
	MaxAttempts int
	// InitialBackoff is the base delay before the first retry. Actual delays
	// are randomized around an exponential curve.
	InitialBackoff time.Duration
	// MaxBackoff caps the delay between attempts.
	MaxBackoff time.Duration
}

// withDefaults fills zero values with the default retry settings.
func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = defaultInitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = defaultMaxBackoff
	}
	return c
}

// integrationUseCase implements the IntegrationUseCase interface.
type integrationUseCase struct {
	store      docstore.Store
	stagingCol docstore.Collection
	archiveCol docstore.Collection
	retry      RetryConfig
	logger     *slog.Logger
}

// Integrate validates rawID and moves the corresponding article from the
// staging collection into the archive collection.
func (u *integrationUseCase) Integrate(ctx context.Context, rawID string) *articleDomain.IntegrationResult {
	id, err := articleDomain.ParseDocumentID(rawID)
	if err != nil {
		u.logger.Warn("rejected article integration request",
			slog.String("raw_id", rawID),
			slog.String("error", err.Error()),
		)
		return &articleDomain.IntegrationResult{
			Outcome: articleDomain.OutcomeRejected,
			Err:     err,
		}
	}

	return u.integrate(ctx, id)
}

// integrate runs the move, retrying transient failures with exponential
// backoff. Retries are bounded by the configured attempt budget; every other
// error class fails or rejects on the first occurrence.
func (u *integrationUseCase) integrate(ctx context.Context, id articleDomain.DocumentID) *articleDomain.IntegrationResult {
	var (
		attempts int
		outcome  articleDomain.IntegrationOutcome
	)

	operation := func() error {
		attempts++
		var err error
		outcome, err = u.moveOnce(ctx, id)
		if err == nil {
			return nil
		}
		if apperrors.Is(err, apperrors.ErrTransient) {
			return err
		}
		return backoff.Permanent(err)
	}

	notify := func(err error, wait time.Duration) {
		u.logger.Warn("retrying article move",
			slog.String("document_id", id.String()),
			slog.Int("attempt", attempts),
			slog.Duration("backoff", wait),
			slog.String("error", err.Error()),
		)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = u.retry.InitialBackoff
	bo.MaxInterval = u.retry.MaxBackoff
	bo.MaxElapsedTime = 0

	policy := backoff.WithMaxRetries(backoff.WithContext(bo, ctx), uint64(u.retry.MaxAttempts-1))

	err := backoff.RetryNotify(operation, policy, notify)

	result := &articleDomain.IntegrationResult{
		DocumentID: id,
		Attempts:   attempts,
		Err:        err,
	}

	switch {
	case err == nil:
		result.Outcome = outcome
		u.logResultOK(outcome, id, attempts)
	case apperrors.Is(err, apperrors.ErrInvalidInput):
		result.Outcome = articleDomain.OutcomeRejected
		u.logger.Warn("rejected article integration",
			slog.String("document_id", id.String()),
			slog.String("error", err.Error()),
		)
	default:
		result.Outcome = articleDomain.OutcomeFailed
		u.logger.Error("article integration failed",
			slog.String("document_id", id.String()),
			slog.Int("attempts", attempts),
			slog.String("error", err.Error()),
		)
	}

	return result
}

// logResultOK logs a successful integration outcome.
func (u *integrationUseCase) logResultOK(
	outcome articleDomain.IntegrationOutcome,
	id articleDomain.DocumentID,
	attempts int,
) {
	if outcome == articleDomain.OutcomeAlreadyMoved {
		u.logger.Info("article already archived",
			slog.String("document_id", id.String()),
			slog.Int("attempts", attempts),
		)
		return
	}
	u.logger.Info("article moved to archive",
		slog.String("document_id", id.String()),
		slog.Int("attempts", attempts),
	)
}

// moveOnce executes one transactional move attempt. The archive write and the
// staging delete commit together or not at all.
func (u *integrationUseCase) moveOnce(
	ctx context.Context,
	id articleDomain.DocumentID,
) (articleDomain.IntegrationOutcome, error) {
	outcome := articleDomain.OutcomeMoved

	err := u.store.RunTransaction(ctx, func(txCtx context.Context, tx docstore.Tx) error {
		outcome = articleDomain.OutcomeMoved

		// A document already in the archive means a previous attempt
		// committed. Clear any staged leftover and report the duplicate.
		_, err := tx.Get(txCtx, u.archiveCol, id.String())
		switch {
		case err == nil:
			outcome = articleDomain.OutcomeAlreadyMoved
			return tx.Delete(txCtx, u.stagingCol, id.String())
		case !apperrors.Is(err, apperrors.ErrNotFound):
			return err
		}

		staged, err := tx.Get(txCtx, u.stagingCol, id.String())
		if err != nil {
			if apperrors.Is(err, apperrors.ErrNotFound) {
				return articleDomain.ErrArticleNotStaged
			}
			return err
		}

		if status := articleDomain.StatusOf(staged); status != articleDomain.StatusProcessed {
			return apperrors.Wrapf(articleDomain.ErrArticleNotProcessed, "status is %q", status)
		}

		if err := tx.Set(txCtx, u.archiveCol, id.String(), articleDomain.BuildArchiveFields(staged)); err != nil {
			return err
		}

		return tx.Delete(txCtx, u.stagingCol, id.String())
	})
	if err != nil {
		return outcome, err
	}

	return outcome, nil
}

// NewIntegrationUseCase creates a new integration use case instance with the
// provided dependencies. Zero retry settings fall back to the defaults.
func NewIntegrationUseCase(
	store docstore.Store,
	stagingCol docstore.Collection,
	archiveCol docstore.Collection,
	retry RetryConfig,
	logger *slog.Logger,
) IntegrationUseCase {
	return &integrationUseCase{
		store:      store,
		stagingCol: stagingCol,
		archiveCol: archiveCol,
		retry:      retry.withDefaults(),
		logger:     logger,
	}
}
