package application

import (
	"context"
	"time"

	"github.com/clearcart/checkout-system/orchestrator-service/domain"
	"github.com/clearcart/checkout-system/shared/events"
	"github.com/clearcart/checkout-system/shared/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// DeliveryBookingCoordinator manages the delivery booking request/response
// exchange. Every request gets a fresh booking token and an independent
// timeout; exactly one of response, fault or timeout is applied per request,
// whichever reaches the saga first.
type DeliveryBookingCoordinator struct {
	scheduler      domain.TimeoutScheduler
	bookingTimeout time.Duration
}

// NewDeliveryBookingCoordinator creates a new DeliveryBookingCoordinator
func NewDeliveryBookingCoordinator(scheduler domain.TimeoutScheduler, bookingTimeout time.Duration) *DeliveryBookingCoordinator {
	return &DeliveryBookingCoordinator{
		scheduler:      scheduler,
		bookingTimeout: bookingTimeout,
	}
}

// OpenBooking issues the booking request on the saga and schedules its
// timeout. The booking token in the timeout payload ties the fire to this
// request instance; a response arriving first makes the fire a no-op.
func (c *DeliveryBookingCoordinator) OpenBooking(ctx context.Context, saga *domain.CheckoutSaga) error {
	bookingToken := uuid.New().String()

	timeoutEvent := events.NewEvent(
		models.ID(saga.OrderID.String()),
		events.DeliveryBookingTimeoutEvent,
		domain.DeliveryBookingTimeoutData{
			OrderID:      saga.OrderID,
			BookingToken: bookingToken,
		},
	)

	if _, err := c.scheduler.Schedule(ctx, c.bookingTimeout, timeoutEvent); err != nil {
		return errors.Wrap(err, "failed to schedule booking timeout")
	}

	return saga.StartDeliveryBooking(bookingToken)
}
