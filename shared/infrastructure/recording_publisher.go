package infrastructure

import (
	"context"

	"github.com/clearcart/checkout-system/shared/events"
	"github.com/clearcart/checkout-system/shared/models"
	"github.com/clearcart/checkout-system/shared/telemetry"
	"github.com/pkg/errors"
)

var _ events.Publisher = (*RecordingPublisher)(nil)

// RecordingPublisher appends events to the audit stream before handing them
// to the underlying publisher, then marks them published once the bus
// accepted them. The audit write happens first so a crash or publish failure
// between the two leaves an unpublished entry the replayer picks up.
type RecordingPublisher struct {
	store events.EventStore
	next  events.Publisher
}

// NewRecordingPublisher creates a new RecordingPublisher
func NewRecordingPublisher(store events.EventStore, next events.Publisher) *RecordingPublisher {
	return &RecordingPublisher{
		store: store,
		next:  next,
	}
}

// Publish implements events.Publisher
func (p *RecordingPublisher) Publish(ctx context.Context, evts ...*events.Event) error {
	if len(evts) == 0 {
		return nil
	}

	if err := p.store.AppendEvents(ctx, evts...); err != nil {
		return errors.Wrap(err, "failed to record events")
	}

	if err := p.next.Publish(ctx, evts...); err != nil {
		return err
	}

	ids := make([]models.ID, len(evts))
	for i, event := range evts {
		ids[i] = event.ID
	}

	// A failed mark leaves the entries eligible for replay; the resulting
	// duplicate publish stays within at-least-once delivery
	if err := p.store.MarkPublished(ctx, ids...); err != nil {
		telemetry.RecordCounter(ctx, "audit_mark_failures_total", "Published events that could not be marked in the audit stream", 1)
	}

	return nil
}
