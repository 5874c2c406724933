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

func TestProcessProductReserved_Execute(t *testing.T) {
	validOrderID := models.OrderID(42)

	tests := []struct {
		name          string
		command       *ProcessProductReservedCommand
		setupMocks    func(*mocks.MockSagaRepository, *mocks.MockTimeoutScheduler, *mocks.MockPublisher)
		expectedError string
	}{
		{
			name:    "reservation opens the booking exchange",
			command: &ProcessProductReservedCommand{OrderID: validOrderID},
			setupMocks: func(repo *mocks.MockSagaRepository, scheduler *mocks.MockTimeoutScheduler, publisher *mocks.MockPublisher) {
				repo.EXPECT().FindByOrderID(mock.Anything, validOrderID).Return(paidSaga(t, validOrderID), nil).Once()
				scheduler.EXPECT().Schedule(mock.Anything, 2*time.Minute, mock.MatchedBy(func(evt *events.Event) bool {
					return evt.EventType == events.DeliveryBookingTimeoutEvent
				})).Return("timer-token", nil).Once()
				repo.EXPECT().Save(mock.Anything, mock.MatchedBy(func(saga *domain.CheckoutSaga) bool {
					return saga.State == domain.StateDeliveryPending &&
						saga.BookingToken != "" &&
						saga.BookingState == domain.BookingPending
				})).Return(nil).Once()
				publisher.EXPECT().Publish(mock.Anything, mock.MatchedBy(func(evt *events.Event) bool {
					return evt.EventType == events.DeliveryBookingRequestedEvent
				})).Return(nil).Once()
			},
			expectedError: "",
		},
		{
			name:    "duplicate reservation schedules no extra timer",
			command: &ProcessProductReservedCommand{OrderID: validOrderID},
			setupMocks: func(repo *mocks.MockSagaRepository, scheduler *mocks.MockTimeoutScheduler, publisher *mocks.MockPublisher) {
				saga := paidSaga(t, validOrderID)
				_ = saga.StartDeliveryBooking(testBookingToken)
				saga.ClearEvents()
				repo.EXPECT().FindByOrderID(mock.Anything, validOrderID).Return(saga, nil).Once()
			},
			expectedError: "",
		},
		{
			name:    "scheduler failure surfaces for redelivery",
			command: &ProcessProductReservedCommand{OrderID: validOrderID},
			setupMocks: func(repo *mocks.MockSagaRepository, scheduler *mocks.MockTimeoutScheduler, publisher *mocks.MockPublisher) {
				repo.EXPECT().FindByOrderID(mock.Anything, validOrderID).Return(paidSaga(t, validOrderID), nil).Once()
				scheduler.EXPECT().Schedule(mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("queue unavailable")).Once()
			},
			expectedError: "failed to schedule booking timeout",
		},
		{
			name:    "uncorrelated reservation is dropped",
			command: &ProcessProductReservedCommand{OrderID: validOrderID},
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

			coordinator := NewDeliveryBookingCoordinator(mockScheduler, 2*time.Minute)
			useCase := NewProcessProductReserved(mockRepo, coordinator, mockPublisher)

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

func TestProcessReservationFault_Execute(t *testing.T) {
	validOrderID := models.OrderID(42)

	tests := []struct {
		name          string
		command       *ProcessReservationFaultCommand
		setupMocks    func(*mocks.MockSagaRepository, *mocks.MockPublisher)
		expectedError string
	}{
		{
			name:    "fault starts the refund",
			command: &ProcessReservationFaultCommand{OrderID: validOrderID, ErrorMessage: "out of stock"},
			setupMocks: func(repo *mocks.MockSagaRepository, publisher *mocks.MockPublisher) {
				repo.EXPECT().FindByOrderID(mock.Anything, validOrderID).Return(paidSaga(t, validOrderID), nil).Once()
				repo.EXPECT().Save(mock.Anything, mock.MatchedBy(func(saga *domain.CheckoutSaga) bool {
					return saga.State == domain.StateMoneyRefundStarted
				})).Return(nil).Once()
				publisher.EXPECT().Publish(mock.Anything, mock.MatchedBy(func(evt *events.Event) bool {
					return evt.EventType == events.MoneyRefundRequestedEvent
				})).Return(nil).Once()
			},
			expectedError: "",
		},
		{
			name:    "fault after the booking started is dropped",
			command: &ProcessReservationFaultCommand{OrderID: validOrderID, ErrorMessage: "out of stock"},
			setupMocks: func(repo *mocks.MockSagaRepository, publisher *mocks.MockPublisher) {
				repo.EXPECT().FindByOrderID(mock.Anything, validOrderID).Return(deliveryPendingSaga(t, validOrderID), nil).Once()
			},
			expectedError: "",
		},
		{
			name:    "uncorrelated fault is dropped",
			command: &ProcessReservationFaultCommand{OrderID: validOrderID, ErrorMessage: "out of stock"},
			setupMocks: func(repo *mocks.MockSagaRepository, publisher *mocks.MockPublisher) {
				repo.EXPECT().FindByOrderID(mock.Anything, validOrderID).Return(nil, nil).Once()
			},
			expectedError: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := mocks.NewMockSagaRepository(t)
			mockPublisher := mocks.NewMockPublisher(t)

			tt.setupMocks(mockRepo, mockPublisher)

			useCase := NewProcessReservationFault(mockRepo, mockPublisher)

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
