package inventory

import (
	"context"
	"fmt"

	"github.com/jhoicas/Farmacia-api/internal/domain"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	domaininv "github.com/jhoicas/Farmacia-api/internal/domain/inventory"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
)

// GetProduct obtiene un producto por ID.
func (uc *LedgerUseCase) GetProduct(ctx context.Context, id string) (*entity.Product, error) {
	p, err := uc.reader.Products.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("producto %s: %w", id, domain.ErrNotFound)
	}
	return p, nil
}

// ListProducts lista productos por categoría, estado o texto.
func (uc *LedgerUseCase) ListProducts(ctx context.Context, filter repository.ProductFilter) ([]*entity.Product, error) {
	return uc.reader.Products.List(ctx, filter)
}

// ListMovements lista el historial por rango de fechas, producto o ID de correlación.
func (uc *LedgerUseCase) ListMovements(ctx context.Context, filter repository.MovementFilter) ([]*entity.StockMovement, error) {
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, fmt.Errorf("%w: rango de fechas invertido", domain.ErrInvalidInput)
	}
	return uc.reader.Movements.List(ctx, filter)
}

// GetOrder obtiene una orden por ID.
func (uc *LedgerUseCase) GetOrder(ctx context.Context, id string) (*entity.Order, error) {
	o, err := uc.reader.Orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, fmt.Errorf("orden %s: %w", id, domain.ErrNotFound)
	}
	return o, nil
}

// ListOrders lista órdenes por unidad o estado.
func (uc *LedgerUseCase) ListOrders(ctx context.Context, filter repository.OrderFilter) ([]*entity.Order, error) {
	return uc.reader.Orders.List(ctx, filter)
}

// GetDispensation obtiene una dispensación por ID.
func (uc *LedgerUseCase) GetDispensation(ctx context.Context, id string) (*entity.Dispensation, error) {
	d, err := uc.reader.Dispensations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("dispensación %s: %w", id, domain.ErrNotFound)
	}
	return d, nil
}

// ListDispensations lista dispensaciones, opcionalmente de un paciente.
func (uc *LedgerUseCase) ListDispensations(ctx context.Context, filter repository.DispensationFilter) ([]*entity.Dispensation, error) {
	return uc.reader.Dispensations.List(ctx, filter)
}

// LedgerCheck resultado de auditar un producto contra su historial.
type LedgerCheck struct {
	ProductID        string
	Exists           bool
	CurrentQuantity  int
	ReplayedQuantity int
	SumOfChanges     int
	Movements        int
	Consistent       bool
	Problem          string
}

// VerifyProductLedger reproduce el historial del producto desde 0 y lo compara con la
// cantidad actual (0 si el producto fue eliminado).
func (uc *LedgerUseCase) VerifyProductLedger(ctx context.Context, productID string) (*LedgerCheck, error) {
	// producto e historial se leen en la misma transacción con el producto bloqueado:
	// ninguna mutación puede confirmarse entre ambas lecturas.
	var (
		p    *entity.Product
		movs []*entity.StockMovement
	)
	err := uc.run(ctx, "verify_ledger", func(tx Stores) error {
		var err error
		p, err = tx.Products.GetForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		movs, err = tx.Movements.ListByProduct(ctx, productID)
		if err != nil {
			return err
		}
		if p == nil {
			// sin fila que bloquear: una recreación pudo confirmarse entre las lecturas
			again, err := tx.Products.GetByID(ctx, productID)
			if err != nil {
				return err
			}
			if again != nil {
				return fmt.Errorf("producto %s recreado durante la auditoría: %w", productID, domain.ErrConcurrencyConflict)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if p == nil && len(movs) == 0 {
		return nil, fmt.Errorf("producto %s: %w", productID, domain.ErrNotFound)
	}

	check := &LedgerCheck{ProductID: productID, Exists: p != nil}
	if p != nil {
		check.CurrentQuantity = p.Quantity
	}
	res, err := domaininv.Replay(movs)
	check.ReplayedQuantity = res.Quantity
	check.SumOfChanges = res.Sum
	check.Movements = len(movs)
	switch {
	case err != nil:
		check.Problem = err.Error()
	case res.Quantity != check.CurrentQuantity:
		check.Problem = fmt.Sprintf("cantidad actual %d, historial %d", check.CurrentQuantity, res.Quantity)
	case res.Sum != check.CurrentQuantity:
		check.Problem = fmt.Sprintf("cantidad actual %d, suma de cambios %d", check.CurrentQuantity, res.Sum)
	default:
		check.Consistent = true
	}
	if !check.Consistent {
		uc.log.Error().Str("product_id", productID).Str("problem", check.Problem).Msg("historial inconsistente")
	}
	return check, nil
}
