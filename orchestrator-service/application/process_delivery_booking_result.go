package application

import (
	"context"

	"github.com/clearcart/checkout-system/orchestrator-service/domain"
	"github.com/clearcart/checkout-system/shared/events"
	"github.com/clearcart/checkout-system/shared/models"
	"github.com/pkg/errors"
)

// BookingOutcome is the resolution of an outstanding booking request
type BookingOutcome string

const (
	BookingOutcomeCompleted BookingOutcome = "completed"
	BookingOutcomeFaulted   BookingOutcome = "faulted"
	BookingOutcomeTimedOut  BookingOutcome = "timed_out"
)

// ProcessDeliveryBookingResultCommand resolves a booking request. Exactly
// one outcome is applied per booking token; the rest arrive late and are
// dropped because the saga already left the pending state.
type ProcessDeliveryBookingResultCommand struct {
	OrderID      models.OrderID `json:"order_id"`
	BookingToken string         `json:"booking_token"`
	Outcome      BookingOutcome `json:"outcome"`
	DeliveryID   string         `json:"delivery_id,omitempty"`
}

// ProcessDeliveryBookingResult use case applies booking responses, faults
// and timeouts
type ProcessDeliveryBookingResult struct {
	sagaRepository domain.SagaRepository
	eventPublisher events.Publisher
}

// NewProcessDeliveryBookingResult creates a new ProcessDeliveryBookingResult use case
func NewProcessDeliveryBookingResult(
	sagaRepository domain.SagaRepository,
	eventPublisher events.Publisher,
) *ProcessDeliveryBookingResult {
	return &ProcessDeliveryBookingResult{
		sagaRepository: sagaRepository,
		eventPublisher: eventPublisher,
	}
}

// Execute applies the booking outcome
func (uc *ProcessDeliveryBookingResult) Execute(ctx context.Context, cmd *ProcessDeliveryBookingResultCommand) error {
	if err := uc.validateCommand(cmd); err != nil {
		return errors.Wrap(err, "invalid command")
	}

	saga, err := uc.sagaRepository.FindByOrderID(ctx, cmd.OrderID)
	if err != nil {
		return errors.Wrap(err, "failed to find saga")
	}

	if saga == nil {
		dropUncorrelated(ctx, events.DeliveryBookingCompletedEvent)
		return nil
	}

	switch cmd.Outcome {
	case BookingOutcomeCompleted:
		err = saga.CompleteDeliveryBooking(cmd.BookingToken, cmd.DeliveryID)
	case BookingOutcomeFaulted:
		err = saga.FailDeliveryBooking(cmd.BookingToken, false)
	case BookingOutcomeTimedOut:
		err = saga.FailDeliveryBooking(cmd.BookingToken, true)
	default:
		return errors.Errorf("unsupported booking outcome: %s", cmd.Outcome)
	}

	if err != nil {
		return dropNotApplicable(ctx, events.DeliveryBookingCompletedEvent, err)
	}

	return saveAndPublish(ctx, uc.sagaRepository, uc.eventPublisher, saga)
}

func (uc *ProcessDeliveryBookingResult) validateCommand(cmd *ProcessDeliveryBookingResultCommand) error {
	if cmd.OrderID == 0 {
		return errors.New("order ID is required")
	}

	if cmd.BookingToken == "" {
		return errors.New("booking token is required")
	}

	if cmd.Outcome == BookingOutcomeCompleted && cmd.DeliveryID == "" {
		return errors.New("delivery ID is required for a completed booking")
	}

	return nil
}
