package application

import (
	"context"
	"time"

	"github.com/clearcart/checkout-system/orchestrator-service/domain"
	"github.com/clearcart/checkout-system/shared/events"
	"github.com/clearcart/checkout-system/shared/models"
	"github.com/clearcart/checkout-system/shared/telemetry"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

// ProcessPaymentSuccessCommand represents a successful payment for an order
type ProcessPaymentSuccessCommand struct {
	OrderID     models.OrderID `json:"order_id"`
	PaymentDate time.Time      `json:"payment_date"`
}

// ProcessPaymentSuccess use case advances the saga to paid and requests the
// product reservation
type ProcessPaymentSuccess struct {
	sagaRepository domain.SagaRepository
	scheduler      domain.TimeoutScheduler
	eventPublisher events.Publisher
}

// NewProcessPaymentSuccess creates a new ProcessPaymentSuccess use case
func NewProcessPaymentSuccess(
	sagaRepository domain.SagaRepository,
	scheduler domain.TimeoutScheduler,
	eventPublisher events.Publisher,
) *ProcessPaymentSuccess {
	return &ProcessPaymentSuccess{
		sagaRepository: sagaRepository,
		scheduler:      scheduler,
		eventPublisher: eventPublisher,
	}
}

// Execute applies the payment success. The timeout token is cleared in the
// same persisted update that records the payment; the external cancel is
// best-effort on top of that.
func (uc *ProcessPaymentSuccess) Execute(ctx context.Context, cmd *ProcessPaymentSuccessCommand) error {
	if cmd.OrderID == 0 {
		return errors.New("order ID is required")
	}

	saga, err := uc.sagaRepository.FindByOrderID(ctx, cmd.OrderID)
	if err != nil {
		return errors.Wrap(err, "failed to find saga")
	}

	if saga == nil {
		dropUncorrelated(ctx, events.PaymentSucceededEvent)
		return nil
	}

	token := saga.PaymentTimeoutToken

	if err := saga.RecordPaymentSuccess(cmd.PaymentDate); err != nil {
		return dropNotApplicable(ctx, events.PaymentSucceededEvent, err)
	}

	if err := saveAndPublish(ctx, uc.sagaRepository, uc.eventPublisher, saga); err != nil {
		return err
	}

	if token != "" {
		if err := uc.scheduler.Cancel(ctx, token); err != nil {
			telemetry.RecordCounter(ctx, "saga_timeout_cancel_failures_total", "Best-effort timeout cancellations that failed", 1,
				attribute.String("event_type", events.PaymentSucceededEvent),
			)
		}
	}

	return nil
}

// ProcessPaymentFailureCommand represents a declined payment for an order
type ProcessPaymentFailureCommand struct {
	OrderID models.OrderID `json:"order_id"`
}

// ProcessPaymentFailure use case counts a payment attempt; the third
// consecutive failure cancels the order
type ProcessPaymentFailure struct {
	sagaRepository domain.SagaRepository
	scheduler      domain.TimeoutScheduler
	eventPublisher events.Publisher
}

// NewProcessPaymentFailure creates a new ProcessPaymentFailure use case
func NewProcessPaymentFailure(
	sagaRepository domain.SagaRepository,
	scheduler domain.TimeoutScheduler,
	eventPublisher events.Publisher,
) *ProcessPaymentFailure {
	return &ProcessPaymentFailure{
		sagaRepository: sagaRepository,
		scheduler:      scheduler,
		eventPublisher: eventPublisher,
	}
}

// Execute applies the payment failure
func (uc *ProcessPaymentFailure) Execute(ctx context.Context, cmd *ProcessPaymentFailureCommand) error {
	if cmd.OrderID == 0 {
		return errors.New("order ID is required")
	}

	saga, err := uc.sagaRepository.FindByOrderID(ctx, cmd.OrderID)
	if err != nil {
		return errors.Wrap(err, "failed to find saga")
	}

	if saga == nil {
		dropUncorrelated(ctx, events.PaymentFailedEvent)
		return nil
	}

	token := saga.PaymentTimeoutToken

	if err := saga.RecordPaymentFailure(); err != nil {
		return dropNotApplicable(ctx, events.PaymentFailedEvent, err)
	}

	if err := saveAndPublish(ctx, uc.sagaRepository, uc.eventPublisher, saga); err != nil {
		return err
	}

	if saga.State == domain.StateCancelled {
		telemetry.RecordCounter(ctx, "saga_payment_retries_exhausted_total", "Orders cancelled after exhausting payment retries", 1)

		if token != "" {
			_ = uc.scheduler.Cancel(ctx, token)
		}
	}

	return nil
}
