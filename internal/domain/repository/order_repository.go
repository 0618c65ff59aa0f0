package repository

import (
	"context"
	"time"

	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
)

// OrderFilter criterios de consulta de órdenes.
type OrderFilter struct {
	UnitID string
	Status entity.OrderStatus
	Limit  int
	Offset int
}

// OrderRepository puerto de persistencia de remesas.
// GetByID y GetForUpdate devuelven (nil, nil) si la orden no existe.
type OrderRepository interface {
	Create(ctx context.Context, order *entity.Order) error
	GetByID(ctx context.Context, id string) (*entity.Order, error)
	GetForUpdate(ctx context.Context, id string) (*entity.Order, error)
	UpdateStatus(ctx context.Context, id string, status entity.OrderStatus, at time.Time) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter OrderFilter) ([]*entity.Order, error)
}
