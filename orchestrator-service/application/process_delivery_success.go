package application

import (
	"context"
	"time"

	"github.com/clearcart/checkout-system/orchestrator-service/domain"
	"github.com/clearcart/checkout-system/shared/events"
	"github.com/clearcart/checkout-system/shared/models"
	"github.com/pkg/errors"
)

// ProcessDeliverySuccessCommand represents a completed delivery
type ProcessDeliverySuccessCommand struct {
	OrderID      models.OrderID `json:"order_id"`
	DeliveryDate time.Time      `json:"delivery_date"`
}

// ProcessDeliverySuccess use case closes the saga after delivery
type ProcessDeliverySuccess struct {
	sagaRepository domain.SagaRepository
	eventPublisher events.Publisher
}

// NewProcessDeliverySuccess creates a new ProcessDeliverySuccess use case
func NewProcessDeliverySuccess(
	sagaRepository domain.SagaRepository,
	eventPublisher events.Publisher,
) *ProcessDeliverySuccess {
	return &ProcessDeliverySuccess{
		sagaRepository: sagaRepository,
		eventPublisher: eventPublisher,
	}
}

// Execute applies the delivery result
func (uc *ProcessDeliverySuccess) Execute(ctx context.Context, cmd *ProcessDeliverySuccessCommand) error {
	if cmd.OrderID == 0 {
		return errors.New("order ID is required")
	}

	saga, err := uc.sagaRepository.FindByOrderID(ctx, cmd.OrderID)
	if err != nil {
		return errors.Wrap(err, "failed to find saga")
	}

	if saga == nil {
		dropUncorrelated(ctx, events.DeliverySucceededEvent)
		return nil
	}

	if err := saga.RecordDeliverySuccess(cmd.DeliveryDate); err != nil {
		return dropNotApplicable(ctx, events.DeliverySucceededEvent, err)
	}

	return saveAndPublish(ctx, uc.sagaRepository, uc.eventPublisher, saga)
}
