package repository

import (
	"context"
	"time"

	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
)

// MovementFilter criterios de consulta del historial. Campos vacíos no filtran.
type MovementFilter struct {
	From      *time.Time
	To        *time.Time
	ProductID string
	RelatedID string
	Limit     int // 0 = sin límite
	Offset    int
}

// StockMovementRepository puerto del historial de movimientos. Solo anexa: no hay
// Update ni Delete en el contrato.
type StockMovementRepository interface {
	// Append valida el movimiento, asigna ID (si falta) y Seq, y lo persiste.
	Append(ctx context.Context, movement *entity.StockMovement) error
	// List ordena por fecha descendente (y Seq descendente en empates).
	List(ctx context.Context, filter MovementFilter) ([]*entity.StockMovement, error)
	// ListByProduct devuelve todos los movimientos del producto en orden de anexado.
	ListByProduct(ctx context.Context, productID string) ([]*entity.StockMovement, error)
}
