package domain

import (
	"time"

	"github.com/clearcart/checkout-system/shared/models"
)

// TimeoutTokenKey is the metadata key carrying a scheduled timeout's token
const TimeoutTokenKey = "timeout_token"

// Inbound message contracts, all correlated by order_id

type OrderCreatedData struct {
	OrderID models.OrderID `json:"order_id"`
}

// OrderCreationFailedData wraps the command that faulted; correlation uses
// the inner message
type OrderCreationFailedData struct {
	Command      OrderCreatedData `json:"command"`
	ErrorMessage string           `json:"error_message"`
}

type PaymentSucceededData struct {
	OrderID     models.OrderID `json:"order_id"`
	PaymentDate time.Time      `json:"payment_date"`
}

type PaymentFailedData struct {
	OrderID models.OrderID `json:"order_id"`
}

type PaymentTimeoutExpiredData struct {
	OrderID models.OrderID `json:"order_id"`
}

type ProductReservedData struct {
	OrderID models.OrderID `json:"order_id"`
}

// ProductReservationFaultedData wraps the faulted reservation command
type ProductReservationFaultedData struct {
	Command      ProductReservationRequestedData `json:"command"`
	ErrorMessage string                          `json:"error_message"`
}

type DeliveryBookingCompletedData struct {
	OrderID      models.OrderID `json:"order_id"`
	BookingToken string         `json:"booking_token"`
	DeliveryID   string         `json:"delivery_id"`
}

type DeliveryBookingFaultedData struct {
	OrderID      models.OrderID `json:"order_id"`
	BookingToken string         `json:"booking_token"`
	ErrorMessage string         `json:"error_message"`
}

type DeliveryBookingTimeoutData struct {
	OrderID      models.OrderID `json:"order_id"`
	BookingToken string         `json:"booking_token"`
}

type DeliverySucceededData struct {
	OrderID      models.OrderID `json:"order_id"`
	DeliveryDate time.Time      `json:"delivery_date"`
}

type MoneyRefundedData struct {
	OrderID models.OrderID `json:"order_id"`
}

type OrderStatusRequestedData struct {
	OrderID models.OrderID `json:"order_id"`
}

// Outgoing message contracts

type ProductReservationRequestedData struct {
	OrderID models.OrderID `json:"order_id"`
}

type DeliveryBookingRequestedData struct {
	OrderID      models.OrderID `json:"order_id"`
	BookingToken string         `json:"booking_token"`
}

type MoneyRefundRequestedData struct {
	OrderID models.OrderID `json:"order_id"`
	Reason  string         `json:"reason"`
}

type OrderCancelledData struct {
	OrderID models.OrderID `json:"order_id"`
	Reason  string         `json:"reason"`
}

type OrderClosedData struct {
	OrderID      models.OrderID `json:"order_id"`
	DeliveryID   string         `json:"delivery_id"`
	DeliveryDate time.Time      `json:"delivery_date"`
}

// StatusSnapshot is the answer to a status query
type StatusSnapshot struct {
	OrderID        models.OrderID `json:"order_id"`
	CurrentState   CheckoutState  `json:"current_state"`
	DeliveryID     *string        `json:"delivery_id,omitempty"`
	PaymentDate    *time.Time     `json:"payment_date,omitempty"`
	PaymentRetries int            `json:"payment_retries"`
	RequestCount   int            `json:"request_count"`
}

// OrderNotFoundData answers a status query for an unknown order
type OrderNotFoundData struct {
	OrderID models.OrderID `json:"order_id"`
}
