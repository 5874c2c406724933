package application

import (
	"context"

	"github.com/clearcart/checkout-system/orchestrator-service/domain"
	"github.com/clearcart/checkout-system/shared/events"
	"github.com/clearcart/checkout-system/shared/telemetry"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

// ErrOrderNotFound is returned by queries against an unknown order
var ErrOrderNotFound = errors.New("order not found")

// dropNotApplicable resolves the expected no-op outcomes of at-least-once
// delivery: duplicates, late arrivals and stale timeouts are dropped and
// counted, never surfaced as handler failures (which would trigger
// redelivery).
func dropNotApplicable(ctx context.Context, eventType string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, domain.ErrNotExpected) || errors.Is(err, domain.ErrStaleToken) {
		telemetry.RecordCounter(ctx, "saga_events_dropped_total", "Events not applicable to the saga's current state", 1,
			attribute.String("event_type", eventType),
			attribute.Bool("stale_token", errors.Is(err, domain.ErrStaleToken)),
		)
		return nil
	}

	return err
}

// dropUncorrelated counts an event that arrived for a nonexistent saga
func dropUncorrelated(ctx context.Context, eventType string) {
	telemetry.RecordCounter(ctx, "saga_events_uncorrelated_total", "Events dropped because no saga instance exists", 1,
		attribute.String("event_type", eventType),
	)
}

// saveAndPublish persists the saga and publishes its recorded events
func saveAndPublish(ctx context.Context, repo domain.SagaRepository, publisher events.Publisher, saga *domain.CheckoutSaga) error {
	if err := repo.Save(ctx, saga); err != nil {
		return errors.Wrap(err, "failed to save saga")
	}

	if len(saga.Events()) > 0 {
		if err := publisher.Publish(ctx, saga.Events()...); err != nil {
			return errors.Wrap(err, "failed to publish saga events")
		}
	}

	saga.ClearEvents()
	return nil
}
