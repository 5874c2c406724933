package application

import (
	"context"

	"github.com/clearcart/checkout-system/orchestrator-service/domain"
	"github.com/clearcart/checkout-system/shared/events"
	"github.com/clearcart/checkout-system/shared/models"
	"github.com/pkg/errors"
)

// ProcessRefundResultCommand represents a confirmed refund
type ProcessRefundResultCommand struct {
	OrderID models.OrderID `json:"order_id"`
}

// ProcessRefundResult use case cancels the saga once compensation finished
type ProcessRefundResult struct {
	sagaRepository domain.SagaRepository
	eventPublisher events.Publisher
}

// NewProcessRefundResult creates a new ProcessRefundResult use case
func NewProcessRefundResult(
	sagaRepository domain.SagaRepository,
	eventPublisher events.Publisher,
) *ProcessRefundResult {
	return &ProcessRefundResult{
		sagaRepository: sagaRepository,
		eventPublisher: eventPublisher,
	}
}

// Execute applies the refund confirmation
func (uc *ProcessRefundResult) Execute(ctx context.Context, cmd *ProcessRefundResultCommand) error {
	if cmd.OrderID == 0 {
		return errors.New("order ID is required")
	}

	saga, err := uc.sagaRepository.FindByOrderID(ctx, cmd.OrderID)
	if err != nil {
		return errors.Wrap(err, "failed to find saga")
	}

	if saga == nil {
		dropUncorrelated(ctx, events.MoneyRefundedEvent)
		return nil
	}

	if err := saga.CompleteRefund(); err != nil {
		return dropNotApplicable(ctx, events.MoneyRefundedEvent, err)
	}

	return saveAndPublish(ctx, uc.sagaRepository, uc.eventPublisher, saga)
}
