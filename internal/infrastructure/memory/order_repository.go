package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jhoicas/Farmacia-api/internal/domain"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
)

var (
	_ repository.OrderRepository        = (*OrderRepo)(nil)
	_ repository.DispensationRepository = (*DispensationRepo)(nil)
)

// OrderRepo órdenes en memoria.
type OrderRepo struct {
	a accessor
}

func cloneOrder(o *entity.Order) *entity.Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Items = append([]entity.LineItem(nil), o.Items...)
	if o.SentDate != nil {
		d := *o.SentDate
		c.SentDate = &d
	}
	return &c
}

// Create inserta la orden.
func (r *OrderRepo) Create(_ context.Context, order *entity.Order) error {
	return r.a.update(func(st *state) error {
		if _, ok := st.orders[order.ID]; ok {
			return fmt.Errorf("orden %s ya existe: %w", order.ID, domain.ErrConcurrencyConflict)
		}
		st.orders[order.ID] = cloneOrder(order)
		return nil
	})
}

// GetByID devuelve una copia o (nil, nil).
func (r *OrderRepo) GetByID(_ context.Context, id string) (*entity.Order, error) {
	var out *entity.Order
	err := r.a.view(func(st *state) error {
		out = cloneOrder(st.orders[id])
		return nil
	})
	return out, err
}

// GetForUpdate igual que GetByID (escritor único).
func (r *OrderRepo) GetForUpdate(ctx context.Context, id string) (*entity.Order, error) {
	return r.GetByID(ctx, id)
}

// UpdateStatus cambia el estado de la orden.
func (r *OrderRepo) UpdateStatus(_ context.Context, id string, status entity.OrderStatus, at time.Time) error {
	return r.a.update(func(st *state) error {
		cur, ok := st.orders[id]
		if !ok {
			return fmt.Errorf("orden %s: %w", id, domain.ErrNotFound)
		}
		c := cloneOrder(cur)
		c.Status = status
		c.UpdatedAt = at
		st.orders[id] = c
		return nil
	})
}

// Delete elimina la orden.
func (r *OrderRepo) Delete(_ context.Context, id string) error {
	return r.a.update(func(st *state) error {
		if _, ok := st.orders[id]; !ok {
			return fmt.Errorf("orden %s: %w", id, domain.ErrNotFound)
		}
		delete(st.orders, id)
		return nil
	})
}

// List ordena por fecha de creación descendente.
func (r *OrderRepo) List(_ context.Context, f repository.OrderFilter) ([]*entity.Order, error) {
	var out []*entity.Order
	err := r.a.view(func(st *state) error {
		list := make([]*entity.Order, 0, len(st.orders))
		for _, o := range st.orders {
			if f.UnitID != "" && o.UnitID != f.UnitID {
				continue
			}
			if f.Status != "" && o.Status != f.Status {
				continue
			}
			list = append(list, cloneOrder(o))
		}
		sort.Slice(list, func(i, j int) bool {
			if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
				return list[i].CreatedAt.After(list[j].CreatedAt)
			}
			return list[i].ID < list[j].ID
		})
		out = paginate(list, f.Limit, f.Offset)
		return nil
	})
	return out, err
}

// DispensationRepo dispensaciones en memoria.
type DispensationRepo struct {
	a accessor
}

func cloneDispensation(d *entity.Dispensation) *entity.Dispensation {
	if d == nil {
		return nil
	}
	c := *d
	c.Items = append([]entity.LineItem(nil), d.Items...)
	return &c
}

// Create inserta la dispensación.
func (r *DispensationRepo) Create(_ context.Context, d *entity.Dispensation) error {
	return r.a.update(func(st *state) error {
		if _, ok := st.dispensations[d.ID]; ok {
			return fmt.Errorf("dispensación %s ya existe: %w", d.ID, domain.ErrConcurrencyConflict)
		}
		st.dispensations[d.ID] = cloneDispensation(d)
		return nil
	})
}

// GetByID devuelve una copia o (nil, nil).
func (r *DispensationRepo) GetByID(_ context.Context, id string) (*entity.Dispensation, error) {
	var out *entity.Dispensation
	err := r.a.view(func(st *state) error {
		out = cloneDispensation(st.dispensations[id])
		return nil
	})
	return out, err
}

// List ordena por fecha de creación descendente.
func (r *DispensationRepo) List(_ context.Context, f repository.DispensationFilter) ([]*entity.Dispensation, error) {
	var out []*entity.Dispensation
	err := r.a.view(func(st *state) error {
		list := make([]*entity.Dispensation, 0, len(st.dispensations))
		for _, d := range st.dispensations {
			if f.PatientID != "" && d.PatientID != f.PatientID {
				continue
			}
			list = append(list, cloneDispensation(d))
		}
		sort.Slice(list, func(i, j int) bool {
			if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
				return list[i].CreatedAt.After(list[j].CreatedAt)
			}
			return list[i].ID < list[j].ID
		})
		out = paginate(list, f.Limit, f.Offset)
		return nil
	})
	return out, err
}
