package application

import (
	"context"
	"testing"

	"github.com/clearcart/checkout-system/orchestrator-service/domain"
	"github.com/clearcart/checkout-system/orchestrator-service/mocks"
	"github.com/clearcart/checkout-system/shared/events"
	"github.com/clearcart/checkout-system/shared/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestProcessPaymentTimeout_Execute(t *testing.T) {
	validOrderID := models.OrderID(42)

	tests := []struct {
		name          string
		command       *ProcessPaymentTimeoutCommand
		setupMocks    func(*mocks.MockSagaRepository, *mocks.MockPublisher)
		expectedError string
	}{
		{
			name:    "live token cancels the order",
			command: &ProcessPaymentTimeoutCommand{OrderID: validOrderID, Token: testTimeoutToken},
			setupMocks: func(repo *mocks.MockSagaRepository, publisher *mocks.MockPublisher) {
				repo.EXPECT().FindByOrderID(mock.Anything, validOrderID).Return(createdSaga(validOrderID), nil).Once()
				repo.EXPECT().Save(mock.Anything, mock.MatchedBy(func(saga *domain.CheckoutSaga) bool {
					return saga.State == domain.StateCancelled
				})).Return(nil).Once()
				publisher.EXPECT().Publish(mock.Anything, mock.MatchedBy(func(evt *events.Event) bool {
					return evt.EventType == events.OrderCancelledEvent
				})).Return(nil).Once()
			},
			expectedError: "",
		},
		{
			name:    "token cleared by payment success makes the fire stale",
			command: &ProcessPaymentTimeoutCommand{OrderID: validOrderID, Token: testTimeoutToken},
			setupMocks: func(repo *mocks.MockSagaRepository, publisher *mocks.MockPublisher) {
				repo.EXPECT().FindByOrderID(mock.Anything, validOrderID).Return(paidSaga(t, validOrderID), nil).Once()
			},
			expectedError: "",
		},
		{
			name:    "fire for a closed order is dropped",
			command: &ProcessPaymentTimeoutCommand{OrderID: validOrderID, Token: testTimeoutToken},
			setupMocks: func(repo *mocks.MockSagaRepository, publisher *mocks.MockPublisher) {
				saga := retriedSaga(t, validOrderID, 3)
				repo.EXPECT().FindByOrderID(mock.Anything, validOrderID).Return(saga, nil).Once()
			},
			expectedError: "",
		},
		{
			name:    "uncorrelated fire is dropped",
			command: &ProcessPaymentTimeoutCommand{OrderID: validOrderID, Token: testTimeoutToken},
			setupMocks: func(repo *mocks.MockSagaRepository, publisher *mocks.MockPublisher) {
				repo.EXPECT().FindByOrderID(mock.Anything, validOrderID).Return(nil, nil).Once()
			},
			expectedError: "",
		},
		{
			name:    "conflicted save surfaces for redelivery",
			command: &ProcessPaymentTimeoutCommand{OrderID: validOrderID, Token: testTimeoutToken},
			setupMocks: func(repo *mocks.MockSagaRepository, publisher *mocks.MockPublisher) {
				repo.EXPECT().FindByOrderID(mock.Anything, validOrderID).Return(createdSaga(validOrderID), nil).Once()
				repo.EXPECT().Save(mock.Anything, mock.Anything).Return(domain.ErrVersionConflict).Once()
			},
			expectedError: "failed to save saga",
		},
		{
			name:    "missing token",
			command: &ProcessPaymentTimeoutCommand{OrderID: validOrderID},
			setupMocks: func(repo *mocks.MockSagaRepository, publisher *mocks.MockPublisher) {
				// No expectations - should fail validation
			},
			expectedError: "timeout token is required",
		},
		{
			name:    "missing order ID",
			command: &ProcessPaymentTimeoutCommand{Token: testTimeoutToken},
			setupMocks: func(repo *mocks.MockSagaRepository, publisher *mocks.MockPublisher) {
				// No expectations - should fail validation
			},
			expectedError: "order ID is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := mocks.NewMockSagaRepository(t)
			mockPublisher := mocks.NewMockPublisher(t)

			tt.setupMocks(mockRepo, mockPublisher)

			useCase := NewProcessPaymentTimeout(mockRepo, mockPublisher)

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
