package handlers

import (
	"context"
	"fmt"

	"github.com/clearcart/checkout-system/orchestrator-service/application"
	"github.com/clearcart/checkout-system/orchestrator-service/domain"
	"github.com/clearcart/checkout-system/shared/events"
	"github.com/clearcart/checkout-system/shared/telemetry"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

// CheckoutEventHandlers routes inbound bus events to the saga use cases.
// Correlation is by order_id in the payload; fault events correlate through
// the wrapped command.
type CheckoutEventHandlers struct {
	startCheckout           *application.StartCheckout
	processPaymentSuccess   *application.ProcessPaymentSuccess
	processPaymentFailure   *application.ProcessPaymentFailure
	processPaymentTimeout   *application.ProcessPaymentTimeout
	processProductReserved  *application.ProcessProductReserved
	processReservationFault *application.ProcessReservationFault
	processBookingResult    *application.ProcessDeliveryBookingResult
	processDeliverySuccess  *application.ProcessDeliverySuccess
	processRefundResult     *application.ProcessRefundResult
	processStatusRequest    *application.ProcessStatusRequest
}

// NewCheckoutEventHandlers creates new checkout event handlers
func NewCheckoutEventHandlers(
	startCheckout *application.StartCheckout,
	processPaymentSuccess *application.ProcessPaymentSuccess,
	processPaymentFailure *application.ProcessPaymentFailure,
	processPaymentTimeout *application.ProcessPaymentTimeout,
	processProductReserved *application.ProcessProductReserved,
	processReservationFault *application.ProcessReservationFault,
	processBookingResult *application.ProcessDeliveryBookingResult,
	processDeliverySuccess *application.ProcessDeliverySuccess,
	processRefundResult *application.ProcessRefundResult,
	processStatusRequest *application.ProcessStatusRequest,
) *CheckoutEventHandlers {
	return &CheckoutEventHandlers{
		startCheckout:           startCheckout,
		processPaymentSuccess:   processPaymentSuccess,
		processPaymentFailure:   processPaymentFailure,
		processPaymentTimeout:   processPaymentTimeout,
		processProductReserved:  processProductReserved,
		processReservationFault: processReservationFault,
		processBookingResult:    processBookingResult,
		processDeliverySuccess:  processDeliverySuccess,
		processRefundResult:     processRefundResult,
		processStatusRequest:    processStatusRequest,
	}
}

// HandlerID returns the unique identifier for this event handler
func (h *CheckoutEventHandlers) HandlerID() string {
	return "checkout-orchestrator-event-handler"
}

// Handle implements the events.EventHandler interface
func (h *CheckoutEventHandlers) Handle(ctx context.Context, event *events.Event) error {
	ctx, span := telemetry.StartSpan(ctx, "checkout.handle_event")
	defer span.End()
	span.SetAttributes(attribute.String("event_type", event.EventType))

	switch event.EventType {
	case events.OrderCreatedEvent:
		return h.HandleOrderCreated(ctx, event)
	case events.OrderCreationFailedEvent:
		return h.HandleOrderCreationFailed(ctx, event)
	case events.PaymentSucceededEvent:
		return h.HandlePaymentSucceeded(ctx, event)
	case events.PaymentFailedEvent:
		return h.HandlePaymentFailed(ctx, event)
	case events.PaymentTimeoutExpiredEvent:
		return h.HandlePaymentTimeoutExpired(ctx, event)
	case events.ProductReservedEvent:
		return h.HandleProductReserved(ctx, event)
	case events.ProductReservationFaultedEvent:
		return h.HandleProductReservationFaulted(ctx, event)
	case events.DeliveryBookingCompletedEvent:
		return h.HandleDeliveryBookingCompleted(ctx, event)
	case events.DeliveryBookingFaultedEvent:
		return h.HandleDeliveryBookingFaulted(ctx, event)
	case events.DeliveryBookingTimeoutEvent:
		return h.HandleDeliveryBookingTimeout(ctx, event)
	case events.DeliverySucceededEvent:
		return h.HandleDeliverySucceeded(ctx, event)
	case events.MoneyRefundedEvent:
		return h.HandleMoneyRefunded(ctx, event)
	case events.OrderStatusRequestedEvent:
		return h.HandleOrderStatusRequested(ctx, event)
	default:
		// Not addressed to the orchestrator, ignore
		return nil
	}
}

// HandleOrderCreated starts a new checkout saga
func (h *CheckoutEventHandlers) HandleOrderCreated(ctx context.Context, event *events.Event) error {
	var data domain.OrderCreatedData
	if err := h.parseEventData(event, &data); err != nil {
		return errors.Wrap(err, "failed to parse order created data")
	}

	return h.startCheckout.Execute(ctx, &application.StartCheckoutCommand{
		OrderID: data.OrderID,
	})
}

// HandleOrderCreationFailed logs the upstream fault. The saga was never
// created and no resources were committed, so there is nothing to
// compensate; the order simply never progresses.
func (h *CheckoutEventHandlers) HandleOrderCreationFailed(ctx context.Context, event *events.Event) error {
	var data domain.OrderCreationFailedData
	if err := h.parseEventData(event, &data); err != nil {
		return errors.Wrap(err, "failed to parse order creation failed data")
	}

	fmt.Printf("Order %s creation failed upstream: %s\n", data.Command.OrderID, data.ErrorMessage)
	telemetry.RecordCounter(ctx, "saga_creation_faults_total", "Order creation faults received", 1,
		attribute.String("order_id", data.Command.OrderID.String()),
	)

	return nil
}

// HandlePaymentSucceeded applies a payment success
func (h *CheckoutEventHandlers) HandlePaymentSucceeded(ctx context.Context, event *events.Event) error {
	var data domain.PaymentSucceededData
	if err := h.parseEventData(event, &data); err != nil {
		return errors.Wrap(err, "failed to parse payment succeeded data")
	}

	return h.processPaymentSuccess.Execute(ctx, &application.ProcessPaymentSuccessCommand{
		OrderID:     data.OrderID,
		PaymentDate: data.PaymentDate,
	})
}

// HandlePaymentFailed applies a payment failure
func (h *CheckoutEventHandlers) HandlePaymentFailed(ctx context.Context, event *events.Event) error {
	var data domain.PaymentFailedData
	if err := h.parseEventData(event, &data); err != nil {
		return errors.Wrap(err, "failed to parse payment failed data")
	}

	return h.processPaymentFailure.Execute(ctx, &application.ProcessPaymentFailureCommand{
		OrderID: data.OrderID,
	})
}

// HandlePaymentTimeoutExpired applies a fired payment timeout. The token
// travels in the event metadata, set by the scheduler that issued it.
func (h *CheckoutEventHandlers) HandlePaymentTimeoutExpired(ctx context.Context, event *events.Event) error {
	var data domain.PaymentTimeoutExpiredData
	if err := h.parseEventData(event, &data); err != nil {
		return errors.Wrap(err, "failed to parse payment timeout data")
	}

	token, ok := event.Metadata.Get(domain.TimeoutTokenKey)
	if !ok {
		return errors.New("payment timeout event is missing its token")
	}

	return h.processPaymentTimeout.Execute(ctx, &application.ProcessPaymentTimeoutCommand{
		OrderID: data.OrderID,
		Token:   token,
	})
}

// HandleProductReserved applies a confirmed reservation
func (h *CheckoutEventHandlers) HandleProductReserved(ctx context.Context, event *events.Event) error {
	var data domain.ProductReservedData
	if err := h.parseEventData(event, &data); err != nil {
		return errors.Wrap(err, "failed to parse product reserved data")
	}

	return h.processProductReserved.Execute(ctx, &application.ProcessProductReservedCommand{
		OrderID: data.OrderID,
	})
}

// HandleProductReservationFaulted applies a reservation fault, correlating
// through the wrapped command
func (h *CheckoutEventHandlers) HandleProductReservationFaulted(ctx context.Context, event *events.Event) error {
	var data domain.ProductReservationFaultedData
	if err := h.parseEventData(event, &data); err != nil {
		return errors.Wrap(err, "failed to parse reservation faulted data")
	}

	return h.processReservationFault.Execute(ctx, &application.ProcessReservationFaultCommand{
		OrderID:      data.Command.OrderID,
		ErrorMessage: data.ErrorMessage,
	})
}

// HandleDeliveryBookingCompleted applies a booking response
func (h *CheckoutEventHandlers) HandleDeliveryBookingCompleted(ctx context.Context, event *events.Event) error {
	var data domain.DeliveryBookingCompletedData
	if err := h.parseEventData(event, &data); err != nil {
		return errors.Wrap(err, "failed to parse booking completed data")
	}

	return h.processBookingResult.Execute(ctx, &application.ProcessDeliveryBookingResultCommand{
		OrderID:      data.OrderID,
		BookingToken: data.BookingToken,
		Outcome:      application.BookingOutcomeCompleted,
		DeliveryID:   data.DeliveryID,
	})
}

// HandleDeliveryBookingFaulted applies a booking fault
func (h *CheckoutEventHandlers) HandleDeliveryBookingFaulted(ctx context.Context, event *events.Event) error {
	var data domain.DeliveryBookingFaultedData
	if err := h.parseEventData(event, &data); err != nil {
		return errors.Wrap(err, "failed to parse booking faulted data")
	}

	return h.processBookingResult.Execute(ctx, &application.ProcessDeliveryBookingResultCommand{
		OrderID:      data.OrderID,
		BookingToken: data.BookingToken,
		Outcome:      application.BookingOutcomeFaulted,
	})
}

// HandleDeliveryBookingTimeout applies a booking timeout
func (h *CheckoutEventHandlers) HandleDeliveryBookingTimeout(ctx context.Context, event *events.Event) error {
	var data domain.DeliveryBookingTimeoutData
	if err := h.parseEventData(event, &data); err != nil {
		return errors.Wrap(err, "failed to parse booking timeout data")
	}

	return h.processBookingResult.Execute(ctx, &application.ProcessDeliveryBookingResultCommand{
		OrderID:      data.OrderID,
		BookingToken: data.BookingToken,
		Outcome:      application.BookingOutcomeTimedOut,
	})
}

// HandleDeliverySucceeded closes the saga
func (h *CheckoutEventHandlers) HandleDeliverySucceeded(ctx context.Context, event *events.Event) error {
	var data domain.DeliverySucceededData
	if err := h.parseEventData(event, &data); err != nil {
		return errors.Wrap(err, "failed to parse delivery succeeded data")
	}

	return h.processDeliverySuccess.Execute(ctx, &application.ProcessDeliverySuccessCommand{
		OrderID:      data.OrderID,
		DeliveryDate: data.DeliveryDate,
	})
}

// HandleMoneyRefunded completes the compensation
func (h *CheckoutEventHandlers) HandleMoneyRefunded(ctx context.Context, event *events.Event) error {
	var data domain.MoneyRefundedData
	if err := h.parseEventData(event, &data); err != nil {
		return errors.Wrap(err, "failed to parse money refunded data")
	}

	return h.processRefundResult.Execute(ctx, &application.ProcessRefundResultCommand{
		OrderID: data.OrderID,
	})
}

// HandleOrderStatusRequested answers a bus status query
func (h *CheckoutEventHandlers) HandleOrderStatusRequested(ctx context.Context, event *events.Event) error {
	var data domain.OrderStatusRequestedData
	if err := h.parseEventData(event, &data); err != nil {
		return errors.Wrap(err, "failed to parse status request data")
	}

	return h.processStatusRequest.Execute(ctx, &application.ProcessStatusRequestCommand{
		OrderID: data.OrderID,
	})
}

// parseEventData extracts typed data from the event payload
func (h *CheckoutEventHandlers) parseEventData(event *events.Event, target interface{}) error {
	return event.UnmarshalPayload(target)
}
