package application

import (
	"context"

	"github.com/clearcart/checkout-system/orchestrator-service/domain"
	"github.com/clearcart/checkout-system/shared/events"
	"github.com/clearcart/checkout-system/shared/models"
	"github.com/pkg/errors"
)

// ProcessProductReservedCommand represents a confirmed product reservation
type ProcessProductReservedCommand struct {
	OrderID models.OrderID `json:"order_id"`
}

// ProcessProductReserved use case opens the delivery booking exchange once
// the product was reserved
type ProcessProductReserved struct {
	sagaRepository domain.SagaRepository
	coordinator    *DeliveryBookingCoordinator
	eventPublisher events.Publisher
}

// NewProcessProductReserved creates a new ProcessProductReserved use case
func NewProcessProductReserved(
	sagaRepository domain.SagaRepository,
	coordinator *DeliveryBookingCoordinator,
	eventPublisher events.Publisher,
) *ProcessProductReserved {
	return &ProcessProductReserved{
		sagaRepository: sagaRepository,
		coordinator:    coordinator,
		eventPublisher: eventPublisher,
	}
}

// Execute applies the reservation result and issues the booking request
func (uc *ProcessProductReserved) Execute(ctx context.Context, cmd *ProcessProductReservedCommand) error {
	if cmd.OrderID == 0 {
		return errors.New("order ID is required")
	}

	saga, err := uc.sagaRepository.FindByOrderID(ctx, cmd.OrderID)
	if err != nil {
		return errors.Wrap(err, "failed to find saga")
	}

	if saga == nil {
		dropUncorrelated(ctx, events.ProductReservedEvent)
		return nil
	}

	// Guard before scheduling so duplicates don't leave stray timers
	if saga.State != domain.StatePaid {
		return dropNotApplicable(ctx, events.ProductReservedEvent, domain.ErrNotExpected)
	}

	if err := uc.coordinator.OpenBooking(ctx, saga); err != nil {
		return dropNotApplicable(ctx, events.ProductReservedEvent, err)
	}

	return saveAndPublish(ctx, uc.sagaRepository, uc.eventPublisher, saga)
}

// ProcessReservationFaultCommand represents a faulted reservation command
type ProcessReservationFaultCommand struct {
	OrderID      models.OrderID `json:"order_id"`
	ErrorMessage string         `json:"error_message"`
}

// ProcessReservationFault use case starts the refund compensation after the
// reservation faulted
type ProcessReservationFault struct {
	sagaRepository domain.SagaRepository
	eventPublisher events.Publisher
}

// NewProcessReservationFault creates a new ProcessReservationFault use case
func NewProcessReservationFault(
	sagaRepository domain.SagaRepository,
	eventPublisher events.Publisher,
) *ProcessReservationFault {
	return &ProcessReservationFault{
		sagaRepository: sagaRepository,
		eventPublisher: eventPublisher,
	}
}

// Execute applies the reservation fault
func (uc *ProcessReservationFault) Execute(ctx context.Context, cmd *ProcessReservationFaultCommand) error {
	if cmd.OrderID == 0 {
		return errors.New("order ID is required")
	}

	saga, err := uc.sagaRepository.FindByOrderID(ctx, cmd.OrderID)
	if err != nil {
		return errors.Wrap(err, "failed to find saga")
	}

	if saga == nil {
		dropUncorrelated(ctx, events.ProductReservationFaultedEvent)
		return nil
	}

	if err := saga.FailProductReservation(); err != nil {
		return dropNotApplicable(ctx, events.ProductReservationFaultedEvent, err)
	}

	return saveAndPublish(ctx, uc.sagaRepository, uc.eventPublisher, saga)
}
