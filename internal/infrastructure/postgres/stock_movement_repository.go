package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
)

var _ repository.StockMovementRepository = (*StockMovementRepo)(nil)

const movementColumns = `seq, id, product_id, product_name, type, reason, quantity_change, quantity_before, quantity_after, date, "user", related_id`

// StockMovementRepo historial de movimientos sobre PostgreSQL (usable con pool o tx).
// Solo emite INSERT y SELECT.
type StockMovementRepo struct {
	q Querier
}

// NewStockMovementRepository construye el adaptador. Pasar pool o tx (Querier).
func NewStockMovementRepository(q Querier) *StockMovementRepo {
	return &StockMovementRepo{q: q}
}

// Append valida y persiste el movimiento; Seq lo asigna la secuencia de la tabla.
func (r *StockMovementRepo) Append(ctx context.Context, movement *entity.StockMovement) error {
	if err := movement.Validate(); err != nil {
		return fmt.Errorf("append movement: %w", err)
	}
	if movement.ID == "" {
		movement.ID = uuid.New().String()
	}
	query := `
		INSERT INTO stock_movements (id, product_id, product_name, type, reason, quantity_change, quantity_before, quantity_after, date, "user", related_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING seq`
	err := r.q.QueryRow(ctx, query,
		movement.ID, movement.ProductID, movement.ProductName, string(movement.Type), string(movement.Reason),
		movement.QuantityChange, movement.QuantityBefore, movement.QuantityAfter,
		movement.Date, movement.User, movement.RelatedID,
	).Scan(&movement.Seq)
	if err != nil {
		return wrapErr("append movement", err)
	}
	return nil
}

// List filtra por rango de fechas (inclusive), producto o ID de correlación.
func (r *StockMovementRepo) List(ctx context.Context, filter repository.MovementFilter) ([]*entity.StockMovement, error) {
	w := &whereBuilder{}
	if filter.From != nil {
		w.add("date >= $%d", *filter.From)
	}
	if filter.To != nil {
		w.add("date <= $%d", *filter.To)
	}
	if filter.ProductID != "" {
		w.add("product_id = $%d", filter.ProductID)
	}
	if filter.RelatedID != "" {
		w.add("related_id = $%d", filter.RelatedID)
	}
	query := `SELECT ` + movementColumns + ` FROM stock_movements` + w.sql() +
		` ORDER BY date DESC, seq DESC` + w.page(filter.Limit, filter.Offset)
	return r.list(ctx, query, w.args...)
}

// ListByProduct devuelve el historial completo del producto en orden de anexado.
func (r *StockMovementRepo) ListByProduct(ctx context.Context, productID string) ([]*entity.StockMovement, error) {
	query := `SELECT ` + movementColumns + ` FROM stock_movements WHERE product_id = $1 ORDER BY seq`
	return r.list(ctx, query, productID)
}

func (r *StockMovementRepo) list(ctx context.Context, query string, args ...any) ([]*entity.StockMovement, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("list movements", err)
	}
	defer rows.Close()
	list := make([]*entity.StockMovement, 0)
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		list = append(list, m)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("list movements", err)
	}
	return list, nil
}

func scanMovement(row pgx.Row) (*entity.StockMovement, error) {
	var m entity.StockMovement
	var typ, reason string
	if err := row.Scan(&m.Seq, &m.ID, &m.ProductID, &m.ProductName, &typ, &reason,
		&m.QuantityChange, &m.QuantityBefore, &m.QuantityAfter, &m.Date, &m.User, &m.RelatedID); err != nil {
		return nil, err
	}
	var err error
	if m.Type, err = entity.ParseMovementType(typ); err != nil {
		return nil, fmt.Errorf("movimiento %s: %w", m.ID, err)
	}
	if m.Reason, err = entity.ParseMovementReason(reason); err != nil {
		return nil, fmt.Errorf("movimiento %s: %w", m.ID, err)
	}
	m.Date = m.Date.UTC()
	return &m, nil
}
