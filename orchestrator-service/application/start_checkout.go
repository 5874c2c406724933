package application

import (
	"context"
	"time"

	"github.com/clearcart/checkout-system/orchestrator-service/domain"
	"github.com/clearcart/checkout-system/shared/events"
	"github.com/clearcart/checkout-system/shared/models"
	"github.com/pkg/errors"
)

// StartCheckoutCommand represents the command to start a checkout saga
type StartCheckoutCommand struct {
	OrderID models.OrderID `json:"order_id"`
}

// StartCheckout use case creates the saga instance for a new order and
// schedules the payment timeout
type StartCheckout struct {
	sagaRepository domain.SagaRepository
	scheduler      domain.TimeoutScheduler
	eventPublisher events.Publisher
	paymentTimeout time.Duration
}

// NewStartCheckout creates a new StartCheckout use case
func NewStartCheckout(
	sagaRepository domain.SagaRepository,
	scheduler domain.TimeoutScheduler,
	eventPublisher events.Publisher,
	paymentTimeout time.Duration,
) *StartCheckout {
	return &StartCheckout{
		sagaRepository: sagaRepository,
		scheduler:      scheduler,
		eventPublisher: eventPublisher,
		paymentTimeout: paymentTimeout,
	}
}

// Execute creates the saga instance. A redelivered OrderCreated for an
// existing instance is a no-op, so the timeout is scheduled exactly once.
func (uc *StartCheckout) Execute(ctx context.Context, cmd *StartCheckoutCommand) error {
	if cmd.OrderID == 0 {
		return errors.New("order ID is required")
	}

	existing, err := uc.sagaRepository.FindByOrderID(ctx, cmd.OrderID)
	if err != nil {
		return errors.Wrap(err, "failed to find saga")
	}

	if existing != nil {
		return dropNotApplicable(ctx, events.OrderCreatedEvent, domain.ErrNotExpected)
	}

	timeoutEvent := events.NewEvent(
		models.ID(cmd.OrderID.String()),
		events.PaymentTimeoutExpiredEvent,
		domain.PaymentTimeoutExpiredData{OrderID: cmd.OrderID},
	)

	token, err := uc.scheduler.Schedule(ctx, uc.paymentTimeout, timeoutEvent)
	if err != nil {
		return errors.Wrap(err, "failed to schedule payment timeout")
	}

	saga := domain.StartCheckout(cmd.OrderID, token)

	if err := uc.sagaRepository.Save(ctx, saga); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			// Lost a create race; the winner's timeout is authoritative
			_ = uc.scheduler.Cancel(ctx, token)
			return dropNotApplicable(ctx, events.OrderCreatedEvent, domain.ErrNotExpected)
		}
		return errors.Wrap(err, "failed to save saga")
	}

	return nil
}
