package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
)

var _ repository.StockMovementRepository = (*StockMovementRepo)(nil)

// StockMovementRepo historial en memoria (solo anexa).
type StockMovementRepo struct {
	a accessor
}

// Append valida, asigna ID y Seq y anexa una copia.
func (r *StockMovementRepo) Append(_ context.Context, movement *entity.StockMovement) error {
	if err := movement.Validate(); err != nil {
		return fmt.Errorf("append movement: %w", err)
	}
	return r.a.update(func(st *state) error {
		if movement.ID == "" {
			movement.ID = uuid.New().String()
		}
		st.seq++
		movement.Seq = st.seq
		c := *movement
		st.movements = append(st.movements, &c)
		return nil
	})
}

// List filtra y ordena por fecha descendente (Seq descendente en empates).
func (r *StockMovementRepo) List(_ context.Context, f repository.MovementFilter) ([]*entity.StockMovement, error) {
	var out []*entity.StockMovement
	err := r.a.view(func(st *state) error {
		list := make([]*entity.StockMovement, 0)
		for _, m := range st.movements {
			if f.ProductID != "" && m.ProductID != f.ProductID {
				continue
			}
			if f.RelatedID != "" && m.RelatedID != f.RelatedID {
				continue
			}
			if f.From != nil && m.Date.Before(*f.From) {
				continue
			}
			if f.To != nil && m.Date.After(*f.To) {
				continue
			}
			c := *m
			list = append(list, &c)
		}
		sort.SliceStable(list, func(i, j int) bool {
			if !list[i].Date.Equal(list[j].Date) {
				return list[i].Date.After(list[j].Date)
			}
			return list[i].Seq > list[j].Seq
		})
		out = paginate(list, f.Limit, f.Offset)
		return nil
	})
	return out, err
}

// ListByProduct devuelve el historial del producto en orden de anexado.
func (r *StockMovementRepo) ListByProduct(_ context.Context, productID string) ([]*entity.StockMovement, error) {
	var out []*entity.StockMovement
	err := r.a.view(func(st *state) error {
		for _, m := range st.movements {
			if m.ProductID == productID {
				c := *m
				out = append(out, &c)
			}
		}
		return nil
	})
	return out, err
}
