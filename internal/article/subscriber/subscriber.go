// Package subscriber consumes integration instructions from a pull
// subscription. Each message body carries one raw document id, the same
// contract as the push endpoint's message data. Acknowledgement follows the
// integration outcome: terminal outcomes ack, operational failures nack so
// the subscription redelivers.
package subscriber

import (
	"context"
	"log/slog"

	"gocloud.dev/pubsub"

	articleDomain "github.com/memorylib/integrator/internal/article/domain"
	articleUseCase "github.com/memorylib/integrator/internal/article/usecase"
	apperrors "github.com/memorylib/integrator/internal/errors"

	// Register subscription drivers
	_ "gocloud.dev/pubsub/gcppubsub"
	_ "gocloud.dev/pubsub/mempubsub"
)

// Subscriber pulls integration instructions and feeds them to the
// integration use case one at a time.
type Subscriber struct {
	subscription       *pubsub.Subscription
	integrationUseCase articleUseCase.IntegrationUseCase
	logger             *slog.Logger
}

// New creates a subscriber over an already-open subscription.
func New(
	subscription *pubsub.Subscription,
	integrationUseCase articleUseCase.IntegrationUseCase,
	logger *slog.Logger,
) *Subscriber {
	return &Subscriber{
		subscription:       subscription,
		integrationUseCase: integrationUseCase,
		logger:             logger,
	}
}

// Open creates a subscriber from a subscription URL.
// Supports: gcppubsub://, mem://
func Open(
	ctx context.Context,
	url string,
	integrationUseCase articleUseCase.IntegrationUseCase,
	logger *slog.Logger,
) (*Subscriber, error) {
	subscription, err := pubsub.OpenSubscription(ctx, url)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to open subscription")
	}
	return New(subscription, integrationUseCase, logger), nil
}

// Run receives and processes messages until ctx is canceled. Cancellation is
// a clean stop; any other receive failure is returned.
func (s *Subscriber) Run(ctx context.Context) error {
	s.logger.Info("subscriber started")

	for {
		msg, err := s.subscription.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				s.logger.Info("subscriber stopped")
				return nil
			}
			return apperrors.Wrap(err, "failed to receive message")
		}
		s.handle(ctx, msg)
	}
}

// handle integrates one delivery and acknowledges it by outcome. Failed is
// the only outcome worth redelivering; rejected instructions can never
// succeed, so they are acked to stop the loop of doomed deliveries.
func (s *Subscriber) handle(ctx context.Context, msg *pubsub.Message) {
	result := s.integrationUseCase.Integrate(ctx, string(msg.Body))

	if result.Outcome == articleDomain.OutcomeFailed {
		if msg.Nackable() {
			msg.Nack()
			return
		}
		s.logger.Warn("subscription does not support nack, letting message expire",
			slog.String("document_id", result.DocumentID.String()),
		)
		return
	}

	msg.Ack()
}

// Shutdown flushes pending acks and disconnects the subscription.
func (s *Subscriber) Shutdown(ctx context.Context) error {
	return s.subscription.Shutdown(ctx)
}
