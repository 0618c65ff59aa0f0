package dto

import (
	"time"

	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
)

// CreateOrderRequest body de POST /api/orders.
type CreateOrderRequest struct {
	UnitID   string            `json:"unit_id"`
	Type     string            `json:"type"`
	Notes    string            `json:"notes"`
	SentDate *time.Time        `json:"sent_date"`
	Items    []LineItemRequest `json:"items"`
}

// UpdateOrderStatusRequest body de PATCH /api/orders/:id/status.
type UpdateOrderStatusRequest struct {
	Status string `json:"status"`
}

// OrderListQuery filtros de GET /api/orders.
type OrderListQuery struct {
	PageRequest
	UnitID string `query:"unit_id"`
	Status string `query:"status"`
}

// OrderResponse salida de orden.
type OrderResponse struct {
	ID        string             `json:"id"`
	UnitID    string             `json:"unit_id"`
	Type      string             `json:"type"`
	Status    string             `json:"status"`
	Items     []LineItemResponse `json:"items"`
	Notes     string             `json:"notes"`
	SentDate  *time.Time         `json:"sent_date,omitempty"`
	CreatedBy string             `json:"created_by"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// OrderFromEntity mapea la entidad a la respuesta.
func OrderFromEntity(o *entity.Order) OrderResponse {
	return OrderResponse{
		ID:        o.ID,
		UnitID:    o.UnitID,
		Type:      o.Type,
		Status:    string(o.Status),
		Items:     lineItemsFromEntity(o.Items),
		Notes:     o.Notes,
		SentDate:  o.SentDate,
		CreatedBy: o.CreatedBy,
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}

// OrderListResponse listado paginado.
type OrderListResponse struct {
	Items []OrderResponse `json:"items"`
	Page  PageResponse    `json:"page"`
}

// OrderReversalResponse resultado de DELETE /api/orders/:id.
type OrderReversalResponse struct {
	OrderID   string   `json:"order_id"`
	Restored  int      `json:"restored"`
	Recreated []string `json:"recreated"`
}

func lineItemsFromEntity(items []entity.LineItem) []LineItemResponse {
	out := make([]LineItemResponse, len(items))
	for i, it := range items {
		out[i] = LineItemResponse(it)
	}
	return out
}
