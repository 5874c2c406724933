package application

import (
	"context"

	"github.com/clearcart/checkout-system/orchestrator-service/domain"
	"github.com/clearcart/checkout-system/shared/events"
	"github.com/clearcart/checkout-system/shared/models"
	"github.com/clearcart/checkout-system/shared/telemetry"
	"github.com/pkg/errors"
)

// ProcessPaymentTimeoutCommand represents a fired payment timeout
type ProcessPaymentTimeoutCommand struct {
	OrderID models.OrderID `json:"order_id"`
	Token   string         `json:"token"`
}

// ProcessPaymentTimeout use case cancels orders whose payment never
// concluded within the configured window
type ProcessPaymentTimeout struct {
	sagaRepository domain.SagaRepository
	eventPublisher events.Publisher
}

// NewProcessPaymentTimeout creates a new ProcessPaymentTimeout use case
func NewProcessPaymentTimeout(
	sagaRepository domain.SagaRepository,
	eventPublisher events.Publisher,
) *ProcessPaymentTimeout {
	return &ProcessPaymentTimeout{
		sagaRepository: sagaRepository,
		eventPublisher: eventPublisher,
	}
}

// Execute applies the timeout. Liveness is re-checked here, on delivery: a
// token cleared by a concurrent payment success makes the fire a stale
// no-op, so a late timeout can never cancel a paid order.
func (uc *ProcessPaymentTimeout) Execute(ctx context.Context, cmd *ProcessPaymentTimeoutCommand) error {
	if cmd.OrderID == 0 {
		return errors.New("order ID is required")
	}

	if cmd.Token == "" {
		return errors.New("timeout token is required")
	}

	saga, err := uc.sagaRepository.FindByOrderID(ctx, cmd.OrderID)
	if err != nil {
		return errors.Wrap(err, "failed to find saga")
	}

	if saga == nil {
		dropUncorrelated(ctx, events.PaymentTimeoutExpiredEvent)
		return nil
	}

	if err := saga.ExpirePaymentTimeout(cmd.Token); err != nil {
		return dropNotApplicable(ctx, events.PaymentTimeoutExpiredEvent, err)
	}

	if err := saveAndPublish(ctx, uc.sagaRepository, uc.eventPublisher, saga); err != nil {
		return err
	}

	telemetry.RecordCounter(ctx, "saga_payment_timeouts_fired_total", "Orders cancelled by the payment timeout", 1)

	return nil
}
