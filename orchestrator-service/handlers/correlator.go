package handlers

import (
	"strconv"

	"github.com/clearcart/checkout-system/shared/events"
)

// PartitionKey extracts the serialization key for an inbound event so the
// subscriber can pin all events of one order to the same worker. Fault
// events carry the order ID inside the wrapped command.
func PartitionKey(event *events.Event) string {
	if event.CorrelationID != "" {
		return event.CorrelationID.String()
	}

	var probe struct {
		OrderID int64 `json:"order_id"`
		Command struct {
			OrderID int64 `json:"order_id"`
		} `json:"command"`
	}

	if err := event.UnmarshalPayload(&probe); err != nil {
		return event.AggregateID.String()
	}

	if probe.OrderID != 0 {
		return strconv.FormatInt(probe.OrderID, 10)
	}

	if probe.Command.OrderID != 0 {
		return strconv.FormatInt(probe.Command.OrderID, 10)
	}

	return event.AggregateID.String()
}
