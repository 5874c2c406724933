package application

import (
	"context"
	"testing"

	"github.com/clearcart/checkout-system/orchestrator-service/domain"
	"github.com/clearcart/checkout-system/orchestrator-service/mocks"
	"github.com/clearcart/checkout-system/shared/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestGetOrderStatus_Execute(t *testing.T) {
	validOrderID := models.OrderID(42)

	tests := []struct {
		name           string
		query          *GetOrderStatusQuery
		setupMocks     func(*mocks.MockSagaRepository)
		expectedError  string
		validateResult func(*testing.T, *domain.StatusSnapshot)
	}{
		{
			name:  "returns the snapshot and counts the query",
			query: &GetOrderStatusQuery{OrderID: validOrderID},
			setupMocks: func(repo *mocks.MockSagaRepository) {
				repo.EXPECT().FindByOrderID(mock.Anything, validOrderID).Return(createdSaga(validOrderID), nil).Once()
				repo.EXPECT().Save(mock.Anything, mock.MatchedBy(func(saga *domain.CheckoutSaga) bool {
					return saga.RequestCount == 1
				})).Return(nil).Once()
			},
			validateResult: func(t *testing.T, snapshot *domain.StatusSnapshot) {
				assert.Equal(t, validOrderID, snapshot.OrderID)
				assert.Equal(t, domain.StateCreated, snapshot.CurrentState)
				assert.Equal(t, 1, snapshot.RequestCount)
			},
		},
		{
			name:  "queries are answered in terminal states",
			query: &GetOrderStatusQuery{OrderID: validOrderID},
			setupMocks: func(repo *mocks.MockSagaRepository) {
				repo.EXPECT().FindByOrderID(mock.Anything, validOrderID).Return(retriedSaga(t, validOrderID, 3), nil).Once()
				repo.EXPECT().Save(mock.Anything, mock.Anything).Return(nil).Once()
			},
			validateResult: func(t *testing.T, snapshot *domain.StatusSnapshot) {
				assert.Equal(t, domain.StateCancelled, snapshot.CurrentState)
				assert.Equal(t, 3, snapshot.PaymentRetries)
			},
		},
		{
			name:  "losing the counter update still answers the query",
			query: &GetOrderStatusQuery{OrderID: validOrderID},
			setupMocks: func(repo *mocks.MockSagaRepository) {
				repo.EXPECT().FindByOrderID(mock.Anything, validOrderID).Return(createdSaga(validOrderID), nil).Once()
				repo.EXPECT().Save(mock.Anything, mock.Anything).Return(domain.ErrVersionConflict).Once()
			},
			validateResult: func(t *testing.T, snapshot *domain.StatusSnapshot) {
				assert.Equal(t, validOrderID, snapshot.OrderID)
			},
		},
		{
			name:  "unknown order",
			query: &GetOrderStatusQuery{OrderID: validOrderID},
			setupMocks: func(repo *mocks.MockSagaRepository) {
				repo.EXPECT().FindByOrderID(mock.Anything, validOrderID).Return(nil, nil).Once()
			},
			expectedError: "order not found",
		},
		{
			name:  "missing order ID",
			query: &GetOrderStatusQuery{},
			setupMocks: func(repo *mocks.MockSagaRepository) {
				// No expectations - should fail validation
			},
			expectedError: "order ID is required",
		},
		{
			name:  "repository failure",
			query: &GetOrderStatusQuery{OrderID: validOrderID},
			setupMocks: func(repo *mocks.MockSagaRepository) {
				repo.EXPECT().FindByOrderID(mock.Anything, validOrderID).Return(nil, errors.New("db down")).Once()
			},
			expectedError: "failed to find saga",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := mocks.NewMockSagaRepository(t)

			tt.setupMocks(mockRepo)

			useCase := NewGetOrderStatus(mockRepo)

			snapshot, err := useCase.Execute(context.Background(), tt.query)

			if tt.expectedError != "" {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
				assert.Nil(t, snapshot)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, snapshot)
				if tt.validateResult != nil {
					tt.validateResult(t, snapshot)
				}
			}
		})
	}
}
