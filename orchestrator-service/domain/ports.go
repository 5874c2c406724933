package domain

import (
	"context"
	"time"

	"github.com/clearcart/checkout-system/shared/events"
	"github.com/clearcart/checkout-system/shared/models"
	"github.com/pkg/errors"
)

// ErrVersionConflict is returned by SagaRepository.Save when the stored
// instance moved since it was read. Callers retry by re-reading; the
// transport's redelivery covers crashes in between.
var ErrVersionConflict = errors.New("saga version conflict")

// SagaRepository is the durable instance store, keyed by order ID.
// FindByOrderID returns (nil, nil) when no instance exists. Save inserts
// version 1 and compare-and-swaps later versions.
type SagaRepository interface {
	FindByOrderID(ctx context.Context, orderID models.OrderID) (*CheckoutSaga, error)
	Save(ctx context.Context, saga *CheckoutSaga) error
}

// TimeoutScheduler schedules a delayed self-addressed event. The returned
// token is recorded on the instance and travels with the scheduled event;
// on delivery the engine verifies it against the instance's live token.
// Cancel is best-effort idempotent: cancelling a fired or already-cancelled
// token is a no-op.
type TimeoutScheduler interface {
	Schedule(ctx context.Context, delay time.Duration, event *events.Event) (string, error)
	Cancel(ctx context.Context, token string) error
}
