package application

import (
	"context"

	"github.com/clearcart/checkout-system/orchestrator-service/domain"
	"github.com/clearcart/checkout-system/shared/events"
	"github.com/clearcart/checkout-system/shared/models"
	"github.com/pkg/errors"
)

// ProcessStatusRequestCommand represents a status query received over the bus
type ProcessStatusRequestCommand struct {
	OrderID models.OrderID `json:"order_id"`
}

// ProcessStatusRequest use case answers bus status queries. Unlike other
// events, a query for a nonexistent order is never dropped silently: the
// requester is waiting and gets an explicit not-found answer.
type ProcessStatusRequest struct {
	getOrderStatus *GetOrderStatus
	eventPublisher events.Publisher
}

// NewProcessStatusRequest creates a new ProcessStatusRequest use case
func NewProcessStatusRequest(
	getOrderStatus *GetOrderStatus,
	eventPublisher events.Publisher,
) *ProcessStatusRequest {
	return &ProcessStatusRequest{
		getOrderStatus: getOrderStatus,
		eventPublisher: eventPublisher,
	}
}

// Execute answers the status query
func (uc *ProcessStatusRequest) Execute(ctx context.Context, cmd *ProcessStatusRequestCommand) error {
	if cmd.OrderID == 0 {
		return errors.New("order ID is required")
	}

	aggregateID := models.ID(cmd.OrderID.String())

	snapshot, err := uc.getOrderStatus.Execute(ctx, &GetOrderStatusQuery{OrderID: cmd.OrderID})
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			notFound := events.NewEvent(aggregateID, events.OrderNotFoundEvent, domain.OrderNotFoundData{
				OrderID: cmd.OrderID,
			}).WithCorrelationID(aggregateID)

			return errors.Wrap(uc.eventPublisher.Publish(ctx, notFound), "failed to publish not-found response")
		}
		return err
	}

	response := events.NewEvent(aggregateID, events.OrderStatusResponseEvent, snapshot).
		WithCorrelationID(aggregateID)

	return errors.Wrap(uc.eventPublisher.Publish(ctx, response), "failed to publish status response")
}
