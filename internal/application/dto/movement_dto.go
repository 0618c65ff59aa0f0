package dto

import (
	"time"

	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
)

// MovementListQuery filtros de GET /api/movements. Fechas en RFC3339 o YYYY-MM-DD.
type MovementListQuery struct {
	PageRequest
	From      string `query:"from"`
	To        string `query:"to"`
	ProductID string `query:"product_id"`
	RelatedID string `query:"related_id"`
}

// MovementResponse entrada del historial.
type MovementResponse struct {
	ID             string    `json:"id"`
	Seq            int64     `json:"seq"`
	ProductID      string    `json:"product_id"`
	ProductName    string    `json:"product_name"`
	Type           string    `json:"type"`
	Reason         string    `json:"reason"`
	QuantityChange int       `json:"quantity_change"`
	QuantityBefore int       `json:"quantity_before"`
	QuantityAfter  int       `json:"quantity_after"`
	Date           time.Time `json:"date"`
	User           string    `json:"user"`
	RelatedID      string    `json:"related_id"`
}

// MovementFromEntity mapea la entidad a la respuesta.
func MovementFromEntity(m *entity.StockMovement) MovementResponse {
	return MovementResponse{
		ID:             m.ID,
		Seq:            m.Seq,
		ProductID:      m.ProductID,
		ProductName:    m.ProductName,
		Type:           string(m.Type),
		Reason:         string(m.Reason),
		QuantityChange: m.QuantityChange,
		QuantityBefore: m.QuantityBefore,
		QuantityAfter:  m.QuantityAfter,
		Date:           m.Date,
		User:           m.User,
		RelatedID:      m.RelatedID,
	}
}

// MovementListResponse listado paginado.
type MovementListResponse struct {
	Items []MovementResponse `json:"items"`
	Page  PageResponse       `json:"page"`
}
