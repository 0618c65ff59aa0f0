package repository

import (
	"context"

	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
)

// DispensationFilter criterios de consulta de dispensaciones.
type DispensationFilter struct {
	PatientID string
	Limit     int
	Offset    int
}

// DispensationRepository puerto de persistencia de dispensaciones (sin borrado).
type DispensationRepository interface {
	Create(ctx context.Context, d *entity.Dispensation) error
	GetByID(ctx context.Context, id string) (*entity.Dispensation, error)
	List(ctx context.Context, filter DispensationFilter) ([]*entity.Dispensation, error)
}
