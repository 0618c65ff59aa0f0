package repository

import (
	"context"

	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
)

// ProductFilter criterios de consulta de productos. Campos vacíos no filtran.
type ProductFilter struct {
	IDs      []string
	Category string
	Status   entity.StockStatus
	Search   string // coincidencia parcial sin distinguir mayúsculas en nombre o lote
	Limit    int    // 0 = sin límite
	Offset   int
}

// ProductRepository define el puerto de persistencia para Product (DIP).
// GetByID y GetForUpdate devuelven (nil, nil) si el producto no existe.
type ProductRepository interface {
	Create(ctx context.Context, product *entity.Product) error
	GetByID(ctx context.Context, id string) (*entity.Product, error)
	// GetForUpdate lee el producto y lo bloquea hasta el fin de la transacción.
	GetForUpdate(ctx context.Context, id string) (*entity.Product, error)
	// ListForUpdate como List pero bloqueando cada fila, en orden ascendente de ID.
	ListForUpdate(ctx context.Context, filter ProductFilter) ([]*entity.Product, error)
	// Update escribe si product.Version coincide con la versión almacenada e incrementa
	// product.Version; si no coincide devuelve domain.ErrConcurrencyConflict.
	Update(ctx context.Context, product *entity.Product) error
	// Delete elimina el producto con la misma verificación de versión que Update.
	Delete(ctx context.Context, id string, version int64) error
	List(ctx context.Context, filter ProductFilter) ([]*entity.Product, error)
}
