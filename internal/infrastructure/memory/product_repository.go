package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jhoicas/Farmacia-api/internal/domain"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
)

var _ repository.ProductRepository = (*ProductRepo)(nil)

// ProductRepo implementación en memoria de ProductRepository.
type ProductRepo struct {
	a accessor
}

// Create inserta el producto con Version = 1.
func (r *ProductRepo) Create(_ context.Context, product *entity.Product) error {
	return r.a.update(func(st *state) error {
		if _, ok := st.products[product.ID]; ok {
			return fmt.Errorf("producto %s ya existe: %w", product.ID, domain.ErrConcurrencyConflict)
		}
		product.Version = 1
		st.products[product.ID] = product.Clone()
		return nil
	})
}

// GetByID devuelve una copia del producto o (nil, nil).
func (r *ProductRepo) GetByID(_ context.Context, id string) (*entity.Product, error) {
	var out *entity.Product
	err := r.a.view(func(st *state) error {
		out = st.products[id].Clone()
		return nil
	})
	return out, err
}

// GetForUpdate igual que GetByID: el escritor único ya garantiza exclusión.
func (r *ProductRepo) GetForUpdate(ctx context.Context, id string) (*entity.Product, error) {
	return r.GetByID(ctx, id)
}

// ListForUpdate lista ordenado por ID ascendente.
func (r *ProductRepo) ListForUpdate(_ context.Context, filter repository.ProductFilter) ([]*entity.Product, error) {
	var out []*entity.Product
	err := r.a.view(func(st *state) error {
		out = filterProducts(st, filter)
		return nil
	})
	return out, err
}

// Update escribe si la versión coincide e incrementa product.Version.
func (r *ProductRepo) Update(_ context.Context, product *entity.Product) error {
	return r.a.update(func(st *state) error {
		cur, ok := st.products[product.ID]
		if !ok || cur.Version != product.Version {
			return fmt.Errorf("producto %s: %w", product.ID, domain.ErrConcurrencyConflict)
		}
		product.Version++
		st.products[product.ID] = product.Clone()
		return nil
	})
}

// Delete elimina si la versión coincide.
func (r *ProductRepo) Delete(_ context.Context, id string, version int64) error {
	return r.a.update(func(st *state) error {
		cur, ok := st.products[id]
		if !ok || cur.Version != version {
			return fmt.Errorf("producto %s: %w", id, domain.ErrConcurrencyConflict)
		}
		delete(st.products, id)
		return nil
	})
}

// List lista por nombre y aplica paginación.
func (r *ProductRepo) List(_ context.Context, filter repository.ProductFilter) ([]*entity.Product, error) {
	var out []*entity.Product
	err := r.a.view(func(st *state) error {
		list := filterProducts(st, filter)
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].Name != list[j].Name {
				return list[i].Name < list[j].Name
			}
			return list[i].ID < list[j].ID
		})
		out = paginate(list, filter.Limit, filter.Offset)
		return nil
	})
	return out, err
}

func filterProducts(st *state, f repository.ProductFilter) []*entity.Product {
	var ids map[string]struct{}
	if len(f.IDs) > 0 {
		ids = make(map[string]struct{}, len(f.IDs))
		for _, id := range f.IDs {
			ids[id] = struct{}{}
		}
	}
	search := strings.ToLower(strings.TrimSpace(f.Search))
	list := make([]*entity.Product, 0, len(st.products))
	for _, p := range st.products {
		if ids != nil {
			if _, ok := ids[p.ID]; !ok {
				continue
			}
		}
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.Batch), search) {
			continue
		}
		list = append(list, p.Clone())
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

func paginate[T any](list []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(list) {
			return []T{}
		}
		list = list[offset:]
	}
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list
}
