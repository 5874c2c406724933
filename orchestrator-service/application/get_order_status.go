package application

import (
	"context"

	"github.com/clearcart/checkout-system/orchestrator-service/domain"
	"github.com/clearcart/checkout-system/shared/models"
	"github.com/pkg/errors"
)

// GetOrderStatusQuery represents a status query for an order
type GetOrderStatusQuery struct {
	OrderID models.OrderID `json:"order_id"`
}

// GetOrderStatus use case answers status queries with a saga snapshot.
// Queries are answered in any state, including terminal ones.
type GetOrderStatus struct {
	sagaRepository domain.SagaRepository
}

// NewGetOrderStatus creates a new GetOrderStatus use case
func NewGetOrderStatus(sagaRepository domain.SagaRepository) *GetOrderStatus {
	return &GetOrderStatus{
		sagaRepository: sagaRepository,
	}
}

// Execute returns the status snapshot, or ErrOrderNotFound for an order
// that was never created
func (uc *GetOrderStatus) Execute(ctx context.Context, query *GetOrderStatusQuery) (*domain.StatusSnapshot, error) {
	if query.OrderID == 0 {
		return nil, errors.New("order ID is required")
	}

	saga, err := uc.sagaRepository.FindByOrderID(ctx, query.OrderID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find saga")
	}

	if saga == nil {
		return nil, ErrOrderNotFound
	}

	saga.RecordStatusQuery()

	// The request counter is diagnostic; losing an increment to a
	// concurrent update is acceptable, answering the query is not
	if err := uc.sagaRepository.Save(ctx, saga); err != nil && !errors.Is(err, domain.ErrVersionConflict) {
		return nil, errors.Wrap(err, "failed to save saga")
	}

	snapshot := saga.Snapshot()
	return &snapshot, nil
}
