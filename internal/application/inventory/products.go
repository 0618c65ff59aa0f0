package inventory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jhoicas/Farmacia-api/internal/domain"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	domaininv "github.com/jhoicas/Farmacia-api/internal/domain/inventory"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
)

// Prefijos de los IDs de correlación sintéticos de operaciones masivas.
const (
	ZeroStockRelatedPrefix     = "zero_stock_"
	DeleteProductRelatedPrefix = "delete_prod_"
)

// NewProductInput datos para dar de alta un lote.
type NewProductInput struct {
	Name         string
	Category     string
	Presentation string
	Batch        string
	ExpiryDate   string
	Quantity     int
}

// ProductPatch actualización parcial; nil = sin cambio.
type ProductPatch struct {
	Name         *string
	Category     *string
	Presentation *string
	Batch        *string
	ExpiryDate   *string
	Quantity     *int
}

// AddProduct crea el producto con estado derivado y anexa "Entrada Inicial" (anterior = 0).
func (uc *LedgerUseCase) AddProduct(ctx context.Context, meta MutationMeta, in NewProductInput) (*entity.Product, error) {
	meta, err := uc.prepare(meta)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("%w: nombre requerido", domain.ErrInvalidInput)
	}
	if in.Quantity < 0 {
		return nil, fmt.Errorf("%w: cantidad negativa", domain.ErrInvalidInput)
	}

	productID := uc.newID()
	var created *entity.Product
	err = uc.run(ctx, "add_product", func(tx Stores) error {
		meta := uc.begin(meta)
		p := &entity.Product{
			ID:           productID,
			Name:         strings.TrimSpace(in.Name),
			Category:     in.Category,
			Presentation: in.Presentation,
			Batch:        in.Batch,
			ExpiryDate:   in.ExpiryDate,
			Quantity:     in.Quantity,
			Status:       domaininv.DeriveStatus(in.Quantity),
			CreatedAt:    meta.At,
			UpdatedAt:    meta.At,
		}
		if err := tx.Products.Create(ctx, p); err != nil {
			return err
		}
		if err := tx.Movements.Append(ctx, &entity.StockMovement{
			ID:             uc.newID(),
			ProductID:      p.ID,
			ProductName:    p.Name,
			Type:           entity.MovementTypeEntrada,
			Reason:         entity.ReasonEntradaInicial,
			QuantityChange: in.Quantity,
			QuantityBefore: 0,
			QuantityAfter:  in.Quantity,
			Date:           meta.At,
			User:           meta.Actor,
			RelatedID:      p.ID,
		}); err != nil {
			return err
		}
		created = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("op", "add_product").Str("product_id", created.ID).Int("quantity", created.Quantity).Msg("producto creado")
	return created, nil
}

// UpdateProduct fusiona los campos informados. Si la cantidad cambia anexa un
// "Ajuste de Inventário" (Entrada si sube, Saída si baja); el resto no toca el historial.
func (uc *LedgerUseCase) UpdateProduct(ctx context.Context, meta MutationMeta, id string, patch ProductPatch) (*entity.Product, error) {
	meta, err := uc.prepare(meta)
	if err != nil {
		return nil, err
	}
	if patch.Quantity != nil && *patch.Quantity < 0 {
		return nil, fmt.Errorf("%w: cantidad negativa", domain.ErrInvalidInput)
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, fmt.Errorf("%w: nombre vacío", domain.ErrInvalidInput)
	}

	var updated *entity.Product
	err = uc.run(ctx, "update_product", func(tx Stores) error {
		meta := uc.begin(meta)
		p, err := tx.Products.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("producto %s: %w", id, domain.ErrNotFound)
		}
		if patch.Name != nil {
			p.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Category != nil {
			p.Category = *patch.Category
		}
		if patch.Presentation != nil {
			p.Presentation = *patch.Presentation
		}
		if patch.Batch != nil {
			p.Batch = *patch.Batch
		}
		if patch.ExpiryDate != nil {
			p.ExpiryDate = *patch.ExpiryDate
		}
		if patch.Quantity != nil && *patch.Quantity != p.Quantity {
			if _, err := uc.applyChange(ctx, tx, p, *patch.Quantity-p.Quantity,
				entity.ReasonAjusteInventario, p.ID, meta); err != nil {
				return err
			}
		} else {
			at, err := stampFor(meta, p.ID, p.UpdatedAt)
			if err != nil {
				return err
			}
			p.Status = domaininv.DeriveStatus(p.Quantity)
			p.UpdatedAt = at
			if err := tx.Products.Update(ctx, p); err != nil {
				return err
			}
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ZeroStock lleva a 0 todos los productos de la categoría ("" = todas) con cantidad distinta
// de 0. Devuelve cuántos productos cambiaron. Si ningún producto del filtro tiene stock
// devuelve domain.ErrInvalidFilter sin tocar nada.
func (uc *LedgerUseCase) ZeroStock(ctx context.Context, meta MutationMeta, category string) (int, error) {
	meta, err := uc.prepare(meta)
	if err != nil {
		return 0, err
	}
	category = strings.TrimSpace(category)
	tag := category
	if tag == "" {
		tag = "all"
	}
	relatedID := ZeroStockRelatedPrefix + tag

	affected := 0
	err = uc.run(ctx, "zero_stock", func(tx Stores) error {
		meta := uc.begin(meta)
		affected = 0
		products, err := tx.Products.ListForUpdate(ctx, repository.ProductFilter{Category: category})
		if err != nil {
			return err
		}
		if len(products) == 0 {
			return fmt.Errorf("categoría %q: %w", tag, domain.ErrInvalidFilter)
		}
		for _, p := range products {
			if p.Quantity == 0 {
				continue
			}
			if _, err := uc.applyChange(ctx, tx, p, -p.Quantity, entity.ReasonAjusteInventarioZerar, relatedID, meta); err != nil {
				return err
			}
			affected++
		}
		if affected == 0 {
			return fmt.Errorf("categoría %q sin stock que poner a cero: %w", tag, domain.ErrInvalidFilter)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	uc.log.Info().Str("op", "zero_stock").Str("related_id", relatedID).Int("affected", affected).Msg("stock zerado")
	return affected, nil
}

// DeleteProducts anexa "Exclusão de Produto" (cantidad a 0) y elimina cada producto
// encontrado. Los IDs inexistentes se ignoran; si ninguno existe devuelve domain.ErrInvalidFilter.
func (uc *LedgerUseCase) DeleteProducts(ctx context.Context, meta MutationMeta, ids []string) (int, error) {
	meta, err := uc.prepare(meta)
	if err != nil {
		return 0, err
	}

	deleted := 0
	err = uc.run(ctx, "delete_products", func(tx Stores) error {
		meta := uc.begin(meta)
		deleted = 0
		locked, err := lockProducts(ctx, tx.Products, ids)
		if err != nil {
			return err
		}
		if len(locked) == 0 {
			return fmt.Errorf("%d ids: %w", len(ids), domain.ErrInvalidFilter)
		}
		order := make([]string, 0, len(locked))
		for id := range locked {
			order = append(order, id)
		}
		sort.Strings(order)
		for _, id := range order {
			p := locked[id]
			at, err := stampFor(meta, p.ID, p.UpdatedAt)
			if err != nil {
				return err
			}
			if err := tx.Movements.Append(ctx, &entity.StockMovement{
				ID:             uc.newID(),
				ProductID:      p.ID,
				ProductName:    p.Name,
				Type:           entity.MovementTypeSaida,
				Reason:         entity.ReasonExclusaoProduto,
				QuantityChange: -p.Quantity,
				QuantityBefore: p.Quantity,
				QuantityAfter:  0,
				Date:           at,
				User:           meta.Actor,
				RelatedID:      DeleteProductRelatedPrefix + p.ID,
			}); err != nil {
				return err
			}
			if err := tx.Products.Delete(ctx, p.ID, p.Version); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	uc.log.Info().Str("op", "delete_products").Int("deleted", deleted).Msg("productos eliminados")
	return deleted, nil
}
