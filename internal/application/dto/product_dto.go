package dto

import (
	"time"

	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
)

// CreateProductRequest entrada para dar de alta un lote.
type CreateProductRequest struct {
	Name         string `json:"name"`
	Category     string `json:"category"`
	Presentation string `json:"presentation"`
	Batch        string `json:"batch"`
	ExpiryDate   string `json:"expiry_date"`
	Quantity     int    `json:"quantity"`
}

// UpdateProductRequest actualización parcial; campos ausentes no cambian.
// Un cambio de quantity genera un ajuste de inventario en el historial.
type UpdateProductRequest struct {
	Name         *string `json:"name"`
	Category     *string `json:"category"`
	Presentation *string `json:"presentation"`
	Batch        *string `json:"batch"`
	ExpiryDate   *string `json:"expiry_date"`
	Quantity     *int    `json:"quantity"`
}

// ProductListQuery filtros de GET /api/products.
type ProductListQuery struct {
	PageRequest
	Category string `query:"category"`
	Status   string `query:"status"`
	Search   string `query:"search"`
}

// ZeroStockRequest body de POST /api/products/zero-stock. Category vacía = todas.
type ZeroStockRequest struct {
	Category string `json:"category"`
}

// BulkDeleteRequest body de POST /api/products/bulk-delete.
type BulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

// ProductResponse salida de producto.
type ProductResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Category     string    `json:"category"`
	Presentation string    `json:"presentation"`
	Batch        string    `json:"batch"`
	ExpiryDate   string    `json:"expiry_date"`
	Quantity     int       `json:"quantity"`
	Status       string    `json:"status"`
	Version      int64     `json:"version"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ProductFromEntity mapea la entidad a la respuesta.
func ProductFromEntity(p *entity.Product) ProductResponse {
	return ProductResponse{
		ID:           p.ID,
		Name:         p.Name,
		Category:     p.Category,
		Presentation: p.Presentation,
		Batch:        p.Batch,
		ExpiryDate:   p.ExpiryDate,
		Quantity:     p.Quantity,
		Status:       string(p.Status),
		Version:      p.Version,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

// ProductListResponse listado paginado.
type ProductListResponse struct {
	Items []ProductResponse `json:"items"`
	Page  PageResponse      `json:"page"`
}

// LedgerCheckResponse resultado de auditar el historial de un producto.
type LedgerCheckResponse struct {
	ProductID        string `json:"product_id"`
	Exists           bool   `json:"exists"`
	CurrentQuantity  int    `json:"current_quantity"`
	ReplayedQuantity int    `json:"replayed_quantity"`
	SumOfChanges     int    `json:"sum_of_changes"`
	Movements        int    `json:"movements"`
	Consistent       bool   `json:"consistent"`
	Problem          string `json:"problem,omitempty"`
}
