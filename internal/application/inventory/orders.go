package inventory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jhoicas/Farmacia-api/internal/domain"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	domaininv "github.com/jhoicas/Farmacia-api/internal/domain/inventory"
)

// CreateOrderInput remesa hacia una unidad receptora.
type CreateOrderInput struct {
	UnitID   string
	Type     string
	Notes    string
	SentDate *time.Time
	Items    []ItemRequest
}

// ReversalResult resumen de DeleteOrder.
type ReversalResult struct {
	OrderID   string
	Restored  int      // ítems devueltos a productos existentes
	Recreated []string // productos recreados desde la foto del ítem
}

// CreateOrder descuenta cada ítem y anexa "Saída por Remessa" con RelatedID = ID de la orden.
// Si algún ítem no tiene stock suficiente la orden entera se rechaza sin efectos.
func (uc *LedgerUseCase) CreateOrder(ctx context.Context, meta MutationMeta, in CreateOrderInput) (*entity.Order, error) {
	meta, err := uc.prepare(meta)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.UnitID) == "" {
		return nil, fmt.Errorf("%w: unidad requerida", domain.ErrInvalidInput)
	}
	if err := validateItems(in.Items); err != nil {
		return nil, err
	}

	orderID := uc.newID()
	var order *entity.Order
	err = uc.run(ctx, "create_order", func(tx Stores) error {
		meta := uc.begin(meta)
		lines, err := uc.withdraw(ctx, tx, in.Items, entity.ReasonSaidaRemessa, orderID, meta)
		if err != nil {
			return err
		}
		o := &entity.Order{
			ID:        orderID,
			UnitID:    in.UnitID,
			Type:      in.Type,
			Status:    entity.OrderStatusEmAnalise,
			Items:     lines,
			Notes:     in.Notes,
			SentDate:  in.SentDate,
			CreatedBy: meta.Actor,
			CreatedAt: meta.At,
			UpdatedAt: meta.At,
		}
		if err := tx.Orders.Create(ctx, o); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("op", "create_order").Str("order_id", order.ID).Int("items", len(order.Items)).Msg("orden creada")
	return order, nil
}

// DeleteOrder revierte cada ítem con "Estorno de Remessa" y elimina la orden.
// Si el producto fue eliminado después de la orden se recrea con la foto del ítem y
// la cantidad revertida (movimiento con anterior = 0).
func (uc *LedgerUseCase) DeleteOrder(ctx context.Context, meta MutationMeta, orderID string) (*ReversalResult, error) {
	meta, err := uc.prepare(meta)
	if err != nil {
		return nil, err
	}

	var result *ReversalResult
	err = uc.run(ctx, "delete_order", func(tx Stores) error {
		meta := uc.begin(meta)
		order, err := tx.Orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return fmt.Errorf("orden %s: %w", orderID, domain.ErrNotFound)
		}
		ids := make([]string, len(order.Items))
		for i, it := range order.Items {
			ids[i] = it.ProductID
		}
		locked, err := lockProducts(ctx, tx.Products, ids)
		if err != nil {
			return err
		}

		res := &ReversalResult{OrderID: order.ID}
		for _, it := range order.Items {
			if p, ok := locked[it.ProductID]; ok {
				if _, err := uc.applyChange(ctx, tx, p, it.Quantity, entity.ReasonEstornoRemessa, order.ID, meta); err != nil {
					return err
				}
				res.Restored++
				continue
			}
			p, err := uc.recreate(ctx, tx, it, order.ID, meta)
			if err != nil {
				return err
			}
			locked[p.ID] = p
			res.Recreated = append(res.Recreated, p.ID)
		}
		if err := tx.Orders.Delete(ctx, order.ID); err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("op", "delete_order").Str("order_id", orderID).
		Int("restored", result.Restored).Int("recreated", len(result.Recreated)).Msg("orden revertida")
	return result, nil
}

// recreate vuelve a crear un producto eliminado a partir de la foto de un ítem.
func (uc *LedgerUseCase) recreate(ctx context.Context, tx Stores, it entity.LineItem, relatedID string, meta MutationMeta) (*entity.Product, error) {
	// el historial del producto eliminado sigue en el log: la nueva entrada va después
	hist, err := tx.Movements.ListByProduct(ctx, it.ProductID)
	if err != nil {
		return nil, err
	}
	var last time.Time
	for _, m := range hist {
		if m.Date.After(last) {
			last = m.Date
		}
	}
	at, err := stampFor(meta, it.ProductID, last)
	if err != nil {
		return nil, err
	}
	p := &entity.Product{
		ID:           it.ProductID,
		Name:         it.Name,
		Category:     it.Category,
		Presentation: it.Presentation,
		Batch:        it.Batch,
		ExpiryDate:   it.ExpiryDate,
		Quantity:     it.Quantity,
		Status:       domaininv.DeriveStatus(it.Quantity),
		CreatedAt:    at,
		UpdatedAt:    at,
	}
	if err := tx.Products.Create(ctx, p); err != nil {
		return nil, err
	}
	if err := tx.Movements.Append(ctx, &entity.StockMovement{
		ID:             uc.newID(),
		ProductID:      p.ID,
		ProductName:    p.Name,
		Type:           entity.MovementTypeEntrada,
		Reason:         entity.ReasonEstornoRemessa,
		QuantityChange: it.Quantity,
		QuantityBefore: 0,
		QuantityAfter:  it.Quantity,
		Date:           at,
		User:           meta.Actor,
		RelatedID:      relatedID,
	}); err != nil {
		return nil, err
	}
	return p, nil
}

// UpdateOrderStatus cambia el estado de la orden. No tiene efecto en el stock.
func (uc *LedgerUseCase) UpdateOrderStatus(ctx context.Context, orderID string, status entity.OrderStatus) (*entity.Order, error) {
	if _, err := entity.ParseOrderStatus(string(status)); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	var updated *entity.Order
	err := uc.run(ctx, "update_order_status", func(tx Stores) error {
		order, err := tx.Orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return fmt.Errorf("orden %s: %w", orderID, domain.ErrNotFound)
		}
		at := uc.now().UTC()
		if err := tx.Orders.UpdateStatus(ctx, orderID, status, at); err != nil {
			return err
		}
		order.Status = status
		order.UpdatedAt = at
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
