package inventory

import (
	"context"

	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
)

// Stores agrupa los repositorios que participan en una unidad de trabajo del razón de stock.
type Stores struct {
	Products      repository.ProductRepository
	Movements     repository.StockMovementRepository
	Orders        repository.OrderRepository
	Dispensations repository.DispensationRepository
}

// TxRunner ejecuta una función dentro de una transacción, pasando repositorios atados a esa tx.
// Si fn devuelve error no queda ningún cambio persistido (Rollback); si no, se confirma todo.
// Un conflicto de concurrencia se informa como domain.ErrConcurrencyConflict.
type TxRunner interface {
	Run(ctx context.Context, fn func(tx Stores) error) error
}
