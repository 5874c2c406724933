package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/clearcart/checkout-system/orchestrator-service/application"
	"github.com/clearcart/checkout-system/shared/models"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

// OrderHandlers contains order status HTTP handlers
type OrderHandlers struct {
	getOrderStatus *application.GetOrderStatus
}

// NewOrderHandlers creates new order handlers
func NewOrderHandlers(getOrderStatus *application.GetOrderStatus) *OrderHandlers {
	return &OrderHandlers{
		getOrderStatus: getOrderStatus,
	}
}

// GetOrderStatus handles order status requests
func (h *OrderHandlers) GetOrderStatus(w http.ResponseWriter, r *http.Request) {
	rawID := chi.URLParam(r, "orderID")
	orderID, err := models.ParseOrderID(rawID)
	if err != nil {
		http.Error(w, "Invalid order ID", http.StatusBadRequest)
		return
	}

	query := &application.GetOrderStatusQuery{
		OrderID: orderID,
	}

	snapshot, err := h.getOrderStatus.Execute(r.Context(), query)
	if err != nil {
		if errors.Is(err, application.ErrOrderNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snapshot)
}

// RegisterRoutes registers order routes
func (h *OrderHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Get("/{orderID}", h.GetOrderStatus)
	})
}
