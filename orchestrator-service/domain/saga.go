package domain

import (
	"time"

	"github.com/clearcart/checkout-system/shared/events"
	"github.com/clearcart/checkout-system/shared/models"
	"github.com/pkg/errors"
)

// CheckoutState represents the state of a checkout saga
type CheckoutState string

const (
	StateNone                     CheckoutState = "none"
	StateCreated                  CheckoutState = "created"
	StatePaid                     CheckoutState = "paid"
	StatePaymentFailed            CheckoutState = "payment_failed"
	StateProductReserved          CheckoutState = "product_reserved"
	StateProductReservationFailed CheckoutState = "product_reservation_failed"
	StateDeliveryPending          CheckoutState = "delivery_pending"
	StateDeliveryBooked           CheckoutState = "delivery_booked"
	StateBookDeliveryFailed       CheckoutState = "book_delivery_failed"
	StateMoneyRefundStarted       CheckoutState = "money_refund_started"
	StateCancelled                CheckoutState = "cancelled"
	StateClosed                   CheckoutState = "closed"
)

// IsTerminal reports whether no further business transitions are accepted
func (s CheckoutState) IsTerminal() bool {
	return s == StateCancelled || s == StateClosed
}

// BookingState is the sub-state of an outstanding delivery booking request
type BookingState string

const (
	BookingNone      BookingState = "none"
	BookingPending   BookingState = "pending"
	BookingCompleted BookingState = "completed"
	BookingFaulted   BookingState = "faulted"
	BookingTimedOut  BookingState = "timed_out"
)

// MaxPaymentRetries is the retry budget before the order is cancelled
const MaxPaymentRetries = 3

var (
	// ErrNotExpected marks an event that is not applicable to the current
	// state. Callers drop such events instead of failing the message.
	ErrNotExpected = errors.New("event not expected in current state")

	// ErrStaleToken marks a timeout delivery whose token was already
	// cancelled or superseded.
	ErrStaleToken = errors.New("timeout token is no longer live")
)

// CheckoutSaga is the aggregate root coordinating one order's checkout:
// payment, product reservation and delivery booking, with refund as the
// compensating action.
type CheckoutSaga struct {
	OrderID             models.OrderID
	State               CheckoutState
	PaymentDate         *time.Time
	PaymentRetries      int
	DeliveryID          *string
	DeliveryDate        *time.Time
	RequestCount        int
	PaymentTimeoutToken string
	BookingToken        string
	BookingState        BookingState
	Timestamps          models.Timestamps
	Version             models.Version

	events []*events.Event
}

// StartCheckout creates a saga for a newly created order. The payment
// timeout must already be scheduled; its token is recorded so a late fire
// can be recognized as stale once payment concludes another way.
func StartCheckout(orderID models.OrderID, paymentTimeoutToken string) *CheckoutSaga {
	return &CheckoutSaga{
		OrderID:             orderID,
		State:               StateCreated,
		PaymentTimeoutToken: paymentTimeoutToken,
		BookingState:        BookingNone,
		Timestamps:          models.NewTimestamps(),
		Version:             models.NewVersion(),
	}
}

// RecordPaymentSuccess applies a successful payment. Clearing the timeout
// token here is part of the same persisted update, so a timeout firing later
// finds no live token.
func (s *CheckoutSaga) RecordPaymentSuccess(paymentDate time.Time) error {
	if s.State != StateCreated && s.State != StatePaymentFailed {
		return ErrNotExpected
	}

	s.PaymentDate = &paymentDate
	s.PaymentTimeoutToken = ""
	s.State = StatePaid
	s.touch()

	event := events.NewEvent(s.aggregateID(), events.ProductReservationRequestedEvent, ProductReservationRequestedData{
		OrderID: s.OrderID,
	})

	s.recordEvent(event)
	return nil
}

// RecordPaymentFailure counts a declined payment attempt; the retry budget
// is part of the saga state, not the transport.
func (s *CheckoutSaga) RecordPaymentFailure() error {
	if s.State != StateCreated && s.State != StatePaymentFailed {
		return ErrNotExpected
	}

	s.PaymentRetries++
	if s.PaymentRetries >= MaxPaymentRetries {
		s.cancel("payment retries exhausted")
		return nil
	}

	s.State = StatePaymentFailed
	s.touch()
	return nil
}

// StartDeliveryBooking issues the booking request after the product was
// reserved. The booking token identifies this request instance; the first of
// response, fault or timeout carrying it wins.
func (s *CheckoutSaga) StartDeliveryBooking(bookingToken string) error {
	if s.State != StatePaid {
		return ErrNotExpected
	}

	s.State = StateDeliveryPending
	s.BookingToken = bookingToken
	s.BookingState = BookingPending
	s.touch()

	event := events.NewEvent(s.aggregateID(), events.DeliveryBookingRequestedEvent, DeliveryBookingRequestedData{
		OrderID:      s.OrderID,
		BookingToken: bookingToken,
	})

	s.recordEvent(event)
	return nil
}

// FailProductReservation starts the refund compensation after the
// reservation command faulted.
func (s *CheckoutSaga) FailProductReservation() error {
	if s.State != StatePaid {
		return ErrNotExpected
	}

	s.startRefund("product reservation faulted")
	return nil
}

// CompleteDeliveryBooking applies the booking response
func (s *CheckoutSaga) CompleteDeliveryBooking(bookingToken, deliveryID string) error {
	if s.State != StateDeliveryPending || s.BookingToken != bookingToken {
		return ErrNotExpected
	}

	s.DeliveryID = &deliveryID
	s.BookingState = BookingCompleted
	s.State = StateDeliveryBooked
	s.touch()
	return nil
}

// FailDeliveryBooking applies a booking fault or booking timeout, whichever
// arrives first, and starts the refund compensation.
func (s *CheckoutSaga) FailDeliveryBooking(bookingToken string, timedOut bool) error {
	if s.State != StateDeliveryPending || s.BookingToken != bookingToken {
		return ErrNotExpected
	}

	if timedOut {
		s.BookingState = BookingTimedOut
	} else {
		s.BookingState = BookingFaulted
	}

	s.startRefund("delivery booking failed")
	return nil
}

// RecordDeliverySuccess closes the saga once the delivery completed
func (s *CheckoutSaga) RecordDeliverySuccess(deliveryDate time.Time) error {
	if s.State != StateDeliveryBooked {
		return ErrNotExpected
	}

	s.DeliveryDate = &deliveryDate
	s.State = StateClosed
	s.touch()

	event := events.NewEvent(s.aggregateID(), events.OrderClosedEvent, OrderClosedData{
		OrderID:      s.OrderID,
		DeliveryID:   *s.DeliveryID,
		DeliveryDate: deliveryDate,
	})

	s.recordEvent(event)
	return nil
}

// CompleteRefund cancels the saga once the refund was confirmed
func (s *CheckoutSaga) CompleteRefund() error {
	if s.State != StateMoneyRefundStarted {
		return ErrNotExpected
	}

	s.cancel("money refunded")
	return nil
}

// ExpirePaymentTimeout applies a fired payment timeout. The token is
// re-checked on delivery: a token cleared by a concurrent success (or an
// earlier fire) makes this a stale no-op instead of cancelling a paid order.
func (s *CheckoutSaga) ExpirePaymentTimeout(token string) error {
	if s.State.IsTerminal() {
		return ErrNotExpected
	}

	if s.PaymentTimeoutToken == "" || s.PaymentTimeoutToken != token {
		return ErrStaleToken
	}

	s.cancel("payment timed out")
	return nil
}

// RecordStatusQuery counts a status query; valid in any state
func (s *CheckoutSaga) RecordStatusQuery() {
	s.RequestCount++
	s.touch()
}

// Snapshot returns the status view of the saga
func (s *CheckoutSaga) Snapshot() StatusSnapshot {
	return StatusSnapshot{
		OrderID:        s.OrderID,
		CurrentState:   s.State,
		DeliveryID:     s.DeliveryID,
		PaymentDate:    s.PaymentDate,
		PaymentRetries: s.PaymentRetries,
		RequestCount:   s.RequestCount,
	}
}

// Events returns recorded domain events
func (s *CheckoutSaga) Events() []*events.Event {
	return s.events
}

// ClearEvents clears recorded domain events
func (s *CheckoutSaga) ClearEvents() {
	s.events = make([]*events.Event, 0)
}

func (s *CheckoutSaga) startRefund(reason string) {
	s.State = StateMoneyRefundStarted
	s.touch()

	event := events.NewEvent(s.aggregateID(), events.MoneyRefundRequestedEvent, MoneyRefundRequestedData{
		OrderID: s.OrderID,
		Reason:  reason,
	})

	s.recordEvent(event)
}

func (s *CheckoutSaga) cancel(reason string) {
	s.PaymentTimeoutToken = ""
	s.State = StateCancelled
	s.touch()

	event := events.NewEvent(s.aggregateID(), events.OrderCancelledEvent, OrderCancelledData{
		OrderID: s.OrderID,
		Reason:  reason,
	})

	s.recordEvent(event)
}

func (s *CheckoutSaga) touch() {
	s.Timestamps = s.Timestamps.Update()
	s.Version = s.Version.Update()
}

func (s *CheckoutSaga) aggregateID() models.ID {
	return models.ID(s.OrderID.String())
}

func (s *CheckoutSaga) recordEvent(event *events.Event) {
	s.events = append(s.events, event.WithCorrelationID(s.aggregateID()))
}
