package application

import (
	"context"
	"testing"
	"time"

	"github.com/clearcart/checkout-system/orchestrator-service/domain"
	"github.com/clearcart/checkout-system/orchestrator-service/mocks"
	"github.com/clearcart/checkout-system/shared/events"
	"github.com/clearcart/checkout-system/shared/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestStartCheckout_Execute(t *testing.T) {
	validOrderID := models.OrderID(42)
	scheduledToken := "550e8400-e29b-41d4-a716-446655440001"

	tests := []struct {
		name          string
		command       *StartCheckoutCommand
		setupMocks    func(*mocks.MockSagaRepository, *mocks.MockTimeoutScheduler, *mocks.MockPublisher)
		expectedError string
	}{
		{
			name:    "creates the saga and schedules the payment timeout",
			command: &StartCheckoutCommand{OrderID: validOrderID},
			setupMocks: func(repo *mocks.MockSagaRepository, scheduler *mocks.MockTimeoutScheduler, publisher *mocks.MockPublisher) {
				repo.EXPECT().FindByOrderID(mock.Anything, validOrderID).Return(nil, nil).Once()
				scheduler.EXPECT().Schedule(mock.Anything, 5*time.Minute, mock.MatchedBy(func(evt *events.Event) bool {
					return evt.EventType == events.PaymentTimeoutExpiredEvent
				})).Return(scheduledToken, nil).Once()
				repo.EXPECT().Save(mock.Anything, mock.MatchedBy(func(saga *domain.CheckoutSaga) bool {
					return saga.OrderID == validOrderID &&
						saga.State == domain.StateCreated &&
						saga.PaymentTimeoutToken == scheduledToken
				})).Return(nil).Once()
			},
			expectedError: "",
		},
		{
			name:    "redelivered creation event is a no-op",
			command: &StartCheckoutCommand{OrderID: validOrderID},
			setupMocks: func(repo *mocks.MockSagaRepository, scheduler *mocks.MockTimeoutScheduler, publisher *mocks.MockPublisher) {
				existing := domain.StartCheckout(validOrderID, scheduledToken)
				repo.EXPECT().FindByOrderID(mock.Anything, validOrderID).Return(existing, nil).Once()
			},
			expectedError: "",
		},
		{
			name:    "missing order ID",
			command: &StartCheckoutCommand{},
			setupMocks: func(repo *mocks.MockSagaRepository, scheduler *mocks.MockTimeoutScheduler, publisher *mocks.MockPublisher) {
				// No expectations - should fail validation
			},
			expectedError: "order ID is required",
		},
		{
			name:    "repository lookup failure",
			command: &StartCheckoutCommand{OrderID: validOrderID},
			setupMocks: func(repo *mocks.MockSagaRepository, scheduler *mocks.MockTimeoutScheduler, publisher *mocks.MockPublisher) {
				repo.EXPECT().FindByOrderID(mock.Anything, validOrderID).Return(nil, errors.New("db down")).Once()
			},
			expectedError: "failed to find saga",
		},
		{
			name:    "scheduler failure",
			command: &StartCheckoutCommand{OrderID: validOrderID},
			setupMocks: func(repo *mocks.MockSagaRepository, scheduler *mocks.MockTimeoutScheduler, publisher *mocks.MockPublisher) {
				repo.EXPECT().FindByOrderID(mock.Anything, validOrderID).Return(nil, nil).Once()
				scheduler.EXPECT().Schedule(mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("queue unavailable")).Once()
			},
			expectedError: "failed to schedule payment timeout",
		},
		{
			name:    "lost create race cancels the extra timeout",
			command: &StartCheckoutCommand{OrderID: validOrderID},
			setupMocks: func(repo *mocks.MockSagaRepository, scheduler *mocks.MockTimeoutScheduler, publisher *mocks.MockPublisher) {
				repo.EXPECT().FindByOrderID(mock.Anything, validOrderID).Return(nil, nil).Once()
				scheduler.EXPECT().Schedule(mock.Anything, mock.Anything, mock.Anything).Return(scheduledToken, nil).Once()
				repo.EXPECT().Save(mock.Anything, mock.Anything).Return(domain.ErrVersionConflict).Once()
				scheduler.EXPECT().Cancel(mock.Anything, scheduledToken).Return(nil).Once()
			},
			expectedError: "",
		},
		{
			name:    "save failure",
			command: &StartCheckoutCommand{OrderID: validOrderID},
			setupMocks: func(repo *mocks.MockSagaRepository, scheduler *mocks.MockTimeoutScheduler, publisher *mocks.MockPublisher) {
				repo.EXPECT().FindByOrderID(mock.Anything, validOrderID).Return(nil, nil).Once()
				scheduler.EXPECT().Schedule(mock.Anything, mock.Anything, mock.Anything).Return(scheduledToken, nil).Once()
				repo.EXPECT().Save(mock.Anything, mock.Anything).Return(errors.New("db down")).Once()
			},
			expectedError: "failed to save saga",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := mocks.NewMockSagaRepository(t)
			mockScheduler := mocks.NewMockTimeoutScheduler(t)
			mockPublisher := mocks.NewMockPublisher(t)

			tt.setupMocks(mockRepo, mockScheduler, mockPublisher)

			useCase := NewStartCheckout(mockRepo, mockScheduler, mockPublisher, 5*time.Minute)

			err := useCase.Execute(context.Background(), tt.command)

			if tt.expectedError != "" {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
