package dto

import (
	"time"

	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
)

// CreateDispensationRequest body de POST /api/dispensations.
type CreateDispensationRequest struct {
	PatientID string            `json:"patient_id"`
	Notes     string            `json:"notes"`
	Items     []LineItemRequest `json:"items"`
}

// DispensationListQuery filtros de GET /api/dispensations.
type DispensationListQuery struct {
	PageRequest
	PatientID string `query:"patient_id"`
}

// DispensationResponse salida de dispensación.
type DispensationResponse struct {
	ID        string             `json:"id"`
	PatientID string             `json:"patient_id"`
	Items     []LineItemResponse `json:"items"`
	Notes     string             `json:"notes"`
	Status    string             `json:"status"`
	CreatedBy string             `json:"created_by"`
	CreatedAt time.Time          `json:"created_at"`
}

// DispensationFromEntity mapea la entidad a la respuesta.
func DispensationFromEntity(d *entity.Dispensation) DispensationResponse {
	return DispensationResponse{
		ID:        d.ID,
		PatientID: d.PatientID,
		Items:     lineItemsFromEntity(d.Items),
		Notes:     d.Notes,
		Status:    d.Status,
		CreatedBy: d.CreatedBy,
		CreatedAt: d.CreatedAt,
	}
}

// DispensationListResponse listado paginado.
type DispensationListResponse struct {
	Items []DispensationResponse `json:"items"`
	Page  PageResponse           `json:"page"`
}
