package infrastructure

import (
	"context"
	"sync"
	"time"

	"github.com/clearcart/checkout-system/orchestrator-service/domain"
	"github.com/clearcart/checkout-system/shared/events"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var _ domain.TimeoutScheduler = (*TimerScheduler)(nil)

// fireRetryDelay spaces out redeliveries of a fire the engine rejected
const fireRetryDelay = 50 * time.Millisecond

// TimerScheduler implements domain.TimeoutScheduler with in-process timers.
// Fired events re-enter the engine through the same handler the bus feeds.
// Scheduled timers do not survive a restart; the SQS delay scheduler is the
// durable binding for production.
type TimerScheduler struct {
	mu      sync.Mutex
	timers  map[string]*time.Timer
	handler events.EventHandler
}

// NewTimerScheduler creates a new TimerScheduler
func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{
		timers: make(map[string]*time.Timer),
	}
}

// SetHandler sets the inbound handler fired events are delivered to. The
// handler depends on the scheduler, so it is attached after wiring.
func (s *TimerScheduler) SetHandler(handler events.EventHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = handler
}

// Schedule registers a delayed delivery of the event and returns its token
func (s *TimerScheduler) Schedule(ctx context.Context, delay time.Duration, event *events.Event) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handler == nil {
		return "", errors.New("no handler configured")
	}

	token := uuid.New().String()
	event.WithMetadata(domain.TimeoutTokenKey, token)

	s.timers[token] = time.AfterFunc(delay, func() {
		s.fire(token, event)
	})

	return token, nil
}

// fire delivers the event, keeping the token registered until the handler
// accepts it. A fire bypasses the inbound worker sharding and can lose a
// write race with a concurrent event for the same instance; the losing
// delivery is retried so the fire is never lost, matching the redelivery a
// queue-backed scheduler gets from visibility timeouts.
func (s *TimerScheduler) fire(token string, event *events.Event) {
	s.mu.Lock()
	handler := s.handler
	_, live := s.timers[token]
	s.mu.Unlock()

	if !live {
		return
	}

	err := handler.Handle(context.Background(), event)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.timers[token]; !ok {
		// cancelled while the delivery was in flight
		return
	}

	if err != nil {
		s.timers[token] = time.AfterFunc(fireRetryDelay, func() {
			s.fire(token, event)
		})
		return
	}

	delete(s.timers, token)
}

// Cancel stops the timer for the token. Cancelling a fired or unknown token
// is a no-op.
func (s *TimerScheduler) Cancel(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.timers[token]; ok {
		timer.Stop()
		delete(s.timers, token)
	}

	return nil
}
