package infrastructure

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/clearcart/checkout-system/orchestrator-service/domain"
	"github.com/clearcart/checkout-system/shared/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingHandler struct {
	mu       sync.Mutex
	received []*events.Event
}

func (h *capturingHandler) Handle(ctx context.Context, event *events.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.received = append(h.received, event)
	return nil
}

func (h *capturingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.received)
}

type flakyHandler struct {
	mu       sync.Mutex
	failures int
	calls    int
}

func (h *flakyHandler) Handle(ctx context.Context, event *events.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	if h.calls <= h.failures {
		return domain.ErrVersionConflict
	}
	return nil
}

func (h *flakyHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

func (s *TimerScheduler) pending(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[token]
	return ok
}

func TestTimerScheduler_ScheduleDeliversEvent(t *testing.T) {
	handler := &capturingHandler{}
	scheduler := NewTimerScheduler()
	scheduler.SetHandler(handler)

	event := events.NewEvent("42", events.PaymentTimeoutExpiredEvent, nil)

	token, err := scheduler.Schedule(context.Background(), 10*time.Millisecond, event)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	assert.Eventually(t, func() bool {
		return handler.count() == 1
	}, time.Second, 5*time.Millisecond)

	got, ok := handler.received[0].Metadata.Get(domain.TimeoutTokenKey)
	require.True(t, ok)
	assert.Equal(t, token, got)
}

func TestTimerScheduler_RedeliversRejectedFire(t *testing.T) {
	// A fire racing a concurrent event for the same order loses the
	// version check; the fire must come back until the engine accepts it
	handler := &flakyHandler{failures: 2}
	scheduler := NewTimerScheduler()
	scheduler.SetHandler(handler)

	event := events.NewEvent("42", events.PaymentTimeoutExpiredEvent, nil)

	token, err := scheduler.Schedule(context.Background(), 10*time.Millisecond, event)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return handler.count() == 3
	}, time.Second, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		return !scheduler.pending(token)
	}, time.Second, 5*time.Millisecond)
}

func TestTimerScheduler_CancelStopsRedelivery(t *testing.T) {
	handler := &flakyHandler{failures: 1 << 30}
	scheduler := NewTimerScheduler()
	scheduler.SetHandler(handler)

	event := events.NewEvent("42", events.PaymentTimeoutExpiredEvent, nil)

	token, err := scheduler.Schedule(context.Background(), 10*time.Millisecond, event)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return handler.count() >= 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, scheduler.Cancel(context.Background(), token))

	time.Sleep(4 * fireRetryDelay)
	delivered := handler.count()
	time.Sleep(4 * fireRetryDelay)
	assert.Equal(t, delivered, handler.count())
	assert.False(t, scheduler.pending(token))
}

func TestTimerScheduler_CancelStopsDelivery(t *testing.T) {
	handler := &capturingHandler{}
	scheduler := NewTimerScheduler()
	scheduler.SetHandler(handler)

	event := events.NewEvent("42", events.PaymentTimeoutExpiredEvent, nil)

	token, err := scheduler.Schedule(context.Background(), 50*time.Millisecond, event)
	require.NoError(t, err)

	require.NoError(t, scheduler.Cancel(context.Background(), token))

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, handler.count())
}

func TestTimerScheduler_CancelUnknownTokenIsNoOp(t *testing.T) {
	scheduler := NewTimerScheduler()
	scheduler.SetHandler(&capturingHandler{})

	assert.NoError(t, scheduler.Cancel(context.Background(), "never-scheduled"))
}

func TestTimerScheduler_ScheduleWithoutHandlerFails(t *testing.T) {
	scheduler := NewTimerScheduler()

	_, err := scheduler.Schedule(context.Background(), time.Millisecond, events.NewEvent("42", events.PaymentTimeoutExpiredEvent, nil))
	assert.Error(t, err)
}
