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
	"github.com/stretchr/testify/require"
)

const testTimeoutToken = "550e8400-e29b-41d4-a716-446655440001"

func createdSaga(orderID models.OrderID) *domain.CheckoutSaga {
	return domain.StartCheckout(orderID, testTimeoutToken)
}

func paidSaga(t *testing.T, orderID models.OrderID) *domain.CheckoutSaga {
	t.Helper()
	saga := createdSaga(orderID)
	require.NoError(t, saga.RecordPaymentSuccess(time.Now()))
	saga.ClearEvents()
	return saga
}

func retriedSaga(t *testing.T, orderID models.OrderID, failures int) *domain.CheckoutSaga {
	t.Helper()
	saga := createdSaga(orderID)
	for i := 0; i < failures; i++ {
		require.NoError(t, saga.RecordPaymentFailure())
	}
	saga.ClearEvents()
	return saga
}

func TestProcessPaymentSuccess_Execute(t *testing.T) {
	validOrderID := models.OrderID(42)
	paymentDate := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name          string
		command       *ProcessPaymentSuccessCommand
		setupMocks    func(*mocks.MockSagaRepository, *mocks.MockTimeoutScheduler, *mocks.MockPublisher)
		expectedError string
	}{
		{
			name:    "payment success requests the reservation and cancels the timeout",
			command: &ProcessPaymentSuccessCommand{OrderID: validOrderID, PaymentDate: paymentDate},
			setupMocks: func(repo *mocks.MockSagaRepository, scheduler *mocks.MockTimeoutScheduler, publisher *mocks.MockPublisher) {
				repo.EXPECT().FindByOrderID(mock.Anything, validOrderID).Return(createdSaga(validOrderID), nil).Once()
				repo.EXPECT().Save(mock.Anything, mock.MatchedBy(func(saga *domain.CheckoutSaga) bool {
					return saga.State == domain.StatePaid && saga.PaymentTimeoutToken == ""
				})).Return(nil).Once()
				publisher.EXPECT().Publish(mock.Anything, mock.MatchedBy(func(evt *events.Event) bool {
					return evt.EventType == events.ProductReservationRequestedEvent
				})).Return(nil).Once()
				scheduler.EXPECT().Cancel(mock.Anything, testTimeoutToken).Return(nil).Once()
			},
			expectedError: "",
		},
		{
			name:    "failed timeout cancellation does not fail the message",
			command: &ProcessPaymentSuccessCommand{OrderID: validOrderID, PaymentDate: paymentDate},
			setupMocks: func(repo *mocks.MockSagaRepository, scheduler *mocks.MockTimeoutScheduler, publisher *mocks.MockPublisher) {
				repo.EXPECT().FindByOrderID(mock.Anything, validOrderID).Return(createdSaga(validOrderID), nil).Once()
				repo.EXPECT().Save(mock.Anything, mock.Anything).Return(nil).Once()
				publisher.EXPECT().Publish(mock.Anything, mock.Anything).Return(nil).Once()
				scheduler.EXPECT().Cancel(mock.Anything, testTimeoutToken).Return(errors.New("queue unavailable")).Once()
			},
			expectedError: "",
		},
		{
			name:    "success after a failed attempt",
			command: &ProcessPaymentSuccessCommand{OrderID: validOrderID, PaymentDate: paymentDate},
			setupMocks: func(repo *mocks.MockSagaRepository, scheduler *mocks.MockTimeoutScheduler, publisher *mocks.MockPublisher) {
				repo.EXPECT().FindByOrderID(mock.Anything, validOrderID).Return(retriedSaga(t, validOrderID, 1), nil).Once()
				repo.EXPECT().Save(mock.Anything, mock.Anything).Return(nil).Once()
				publisher.EXPECT().Publish(mock.Anything, mock.Anything).Return(nil).Once()
				scheduler.EXPECT().Cancel(mock.Anything, testTimeoutToken).Return(nil).Once()
			},
			expectedError: "",
		},
		{
			name:    "duplicate success is dropped",
			command: &ProcessPaymentSuccessCommand{OrderID: validOrderID, PaymentDate: paymentDate},
			setupMocks: func(repo *mocks.MockSagaRepository, scheduler *mocks.MockTimeoutScheduler, publisher *mocks.MockPublisher) {
				repo.EXPECT().FindByOrderID(mock.Anything, validOrderID).Return(paidSaga(t, validOrderID), nil).Once()
			},
			expectedError: "",
		},
		{
			name:    "uncorrelated success is dropped",
			command: &ProcessPaymentSuccessCommand{OrderID: validOrderID, PaymentDate: paymentDate},
			setupMocks: func(repo *mocks.MockSagaRepository, scheduler *mocks.MockTimeoutScheduler, publisher *mocks.MockPublisher) {
				repo.EXPECT().FindByOrderID(mock.Anything, validOrderID).Return(nil, nil).Once()
			},
			expectedError: "",
		},
		{
			name:    "missing order ID",
			command: &ProcessPaymentSuccessCommand{PaymentDate: paymentDate},
			setupMocks: func(repo *mocks.MockSagaRepository, scheduler *mocks.MockTimeoutScheduler, publisher *mocks.MockPublisher) {
				// No expectations - should fail validation
			},
			expectedError: "order ID is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := mocks.NewMockSagaRepository(t)
			mockScheduler := mocks.NewMockTimeoutScheduler(t)
			mockPublisher := mocks.NewMockPublisher(t)

			tt.setupMocks(mockRepo, mockScheduler, mockPublisher)

			useCase := NewProcessPaymentSuccess(mockRepo, mockScheduler, mockPublisher)

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

func TestProcessPaymentFailure_Execute(t *testing.T) {
	validOrderID := models.OrderID(42)

	tests := []struct {
		name          string
		command       *ProcessPaymentFailureCommand
		setupMocks    func(*mocks.MockSagaRepository, *mocks.MockTimeoutScheduler, *mocks.MockPublisher)
		expectedError string
	}{
		{
			name:    "first failure keeps the saga retryable",
			command: &ProcessPaymentFailureCommand{OrderID: validOrderID},
			setupMocks: func(repo *mocks.MockSagaRepository, scheduler *mocks.MockTimeoutScheduler, publisher *mocks.MockPublisher) {
				repo.EXPECT().FindByOrderID(mock.Anything, validOrderID).Return(createdSaga(validOrderID), nil).Once()
				repo.EXPECT().Save(mock.Anything, mock.MatchedBy(func(saga *domain.CheckoutSaga) bool {
					return saga.State == domain.StatePaymentFailed && saga.PaymentRetries == 1
				})).Return(nil).Once()
			},
			expectedError: "",
		},
		{
			name:    "third failure cancels the order",
			command: &ProcessPaymentFailureCommand{OrderID: validOrderID},
			setupMocks: func(repo *mocks.MockSagaRepository, scheduler *mocks.MockTimeoutScheduler, publisher *mocks.MockPublisher) {
				repo.EXPECT().FindByOrderID(mock.Anything, validOrderID).Return(retriedSaga(t, validOrderID, 2), nil).Once()
				repo.EXPECT().Save(mock.Anything, mock.MatchedBy(func(saga *domain.CheckoutSaga) bool {
					return saga.State == domain.StateCancelled && saga.PaymentRetries == 3
				})).Return(nil).Once()
				publisher.EXPECT().Publish(mock.Anything, mock.MatchedBy(func(evt *events.Event) bool {
					return evt.EventType == events.OrderCancelledEvent
				})).Return(nil).Once()
				scheduler.EXPECT().Cancel(mock.Anything, testTimeoutToken).Return(nil).Once()
			},
			expectedError: "",
		},
		{
			name:    "failure after cancellation is dropped",
			command: &ProcessPaymentFailureCommand{OrderID: validOrderID},
			setupMocks: func(repo *mocks.MockSagaRepository, scheduler *mocks.MockTimeoutScheduler, publisher *mocks.MockPublisher) {
				repo.EXPECT().FindByOrderID(mock.Anything, validOrderID).Return(retriedSaga(t, validOrderID, 3), nil).Once()
			},
			expectedError: "",
		},
		{
			name:    "uncorrelated failure is dropped",
			command: &ProcessPaymentFailureCommand{OrderID: validOrderID},
			setupMocks: func(repo *mocks.MockSagaRepository, scheduler *mocks.MockTimeoutScheduler, publisher *mocks.MockPublisher) {
				repo.EXPECT().FindByOrderID(mock.Anything, validOrderID).Return(nil, nil).Once()
			},
			expectedError: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := mocks.NewMockSagaRepository(t)
			mockScheduler := mocks.NewMockTimeoutScheduler(t)
			mockPublisher := mocks.NewMockPublisher(t)

			tt.setupMocks(mockRepo, mockScheduler, mockPublisher)

			useCase := NewProcessPaymentFailure(mockRepo, mockScheduler, mockPublisher)

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
