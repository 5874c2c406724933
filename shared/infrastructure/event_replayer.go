package infrastructure

import (
	"context"
	"fmt"
	"time"

	"github.com/clearcart/checkout-system/shared/events"
	"github.com/clearcart/checkout-system/shared/models"
	"github.com/clearcart/checkout-system/shared/telemetry"
	"github.com/pkg/errors"
)

// EventReplayer republishes audit entries whose original publish never
// reached the bus. Only entries older than minAge are picked up, so a
// publish still in flight is not raced; the publisher here must be the
// plain bus publisher, not the recording one, or replayed events would be
// appended to the stream a second time.
type EventReplayer struct {
	store     events.EventStore
	publisher events.Publisher
	interval  time.Duration
	minAge    time.Duration
	batchSize int
}

// NewEventReplayer creates a new EventReplayer
func NewEventReplayer(store events.EventStore, publisher events.Publisher, interval, minAge time.Duration, batchSize int) *EventReplayer {
	return &EventReplayer{
		store:     store,
		publisher: publisher,
		interval:  interval,
		minAge:    minAge,
		batchSize: batchSize,
	}
}

// Run sweeps the stream on the configured interval until the context is
// cancelled
func (r *EventReplayer) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.ReplayOnce(ctx); err != nil {
				fmt.Printf("Event replay sweep failed: %v\n", err)
			}
		}
	}
}

// ReplayOnce republishes one batch of unpublished entries
func (r *EventReplayer) ReplayOnce(ctx context.Context) error {
	evts, err := r.store.GetUnpublished(ctx, time.Now().Add(-r.minAge), r.batchSize)
	if err != nil {
		return errors.Wrap(err, "failed to load unpublished events")
	}

	if len(evts) == 0 {
		return nil
	}

	if err := r.publisher.Publish(ctx, evts...); err != nil {
		return errors.Wrap(err, "failed to republish events")
	}

	ids := make([]models.ID, len(evts))
	for i, event := range evts {
		ids[i] = event.ID
	}

	if err := r.store.MarkPublished(ctx, ids...); err != nil {
		return errors.Wrap(err, "failed to mark replayed events")
	}

	telemetry.RecordCounter(ctx, "events_replayed_total", "Audit entries republished after a failed publish", int64(len(evts)))

	return nil
}
