package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/Farmacia-api/internal/domain"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
)

var (
	_ repository.OrderRepository        = (*OrderRepo)(nil)
	_ repository.DispensationRepository = (*DispensationRepo)(nil)
)

// lineItemJSON forma persistida de un ítem dentro de la columna JSONB items.
type lineItemJSON struct {
	ProductID    string `json:"product_id"`
	Name         string `json:"name"`
	Quantity     int    `json:"quantity"`
	Batch        string `json:"batch,omitempty"`
	ExpiryDate   string `json:"expiry_date,omitempty"`
	Presentation string `json:"presentation,omitempty"`
	Category     string `json:"category,omitempty"`
}

func encodeItems(items []entity.LineItem) ([]byte, error) {
	out := make([]lineItemJSON, len(items))
	for i, it := range items {
		out[i] = lineItemJSON(it)
	}
	return json.Marshal(out)
}

func decodeItems(raw []byte) ([]entity.LineItem, error) {
	var in []lineItemJSON
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	items := make([]entity.LineItem, len(in))
	for i, it := range in {
		items[i] = entity.LineItem(it)
	}
	return items, nil
}

const orderColumns = `id, unit_id, type, status, items, notes, sent_date, created_by, created_at, updated_at`

// OrderRepo remesas sobre PostgreSQL (usable con pool o tx).
type OrderRepo struct {
	q Querier
}

// NewOrderRepository construye el adaptador. Pasar pool o tx (Querier).
func NewOrderRepository(q Querier) *OrderRepo {
	return &OrderRepo{q: q}
}

// Create persiste la orden con sus ítems.
func (r *OrderRepo) Create(ctx context.Context, order *entity.Order) error {
	items, err := encodeItems(order.Items)
	if err != nil {
		return err
	}
	query := `INSERT INTO orders (` + orderColumns + `) VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8, $9, $10)`
	_, err = r.q.Exec(ctx, query,
		order.ID, order.UnitID, order.Type, string(order.Status), string(items),
		order.Notes, order.SentDate, order.CreatedBy, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("orden %s: %w", order.ID, domain.ErrConcurrencyConflict)
		}
		return wrapErr("insert order", err)
	}
	return nil
}

// GetByID obtiene una orden por ID.
func (r *OrderRepo) GetByID(ctx context.Context, id string) (*entity.Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

// GetForUpdate obtiene la orden y bloquea la fila (dos reversiones de la misma orden se serializan).
func (r *OrderRepo) GetForUpdate(ctx context.Context, id string) (*entity.Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
}

func (r *OrderRepo) getOne(ctx context.Context, query, id string) (*entity.Order, error) {
	o, err := scanOrder(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapErr("get order", err)
	}
	return o, nil
}

// UpdateStatus cambia solo el estado.
func (r *OrderRepo) UpdateStatus(ctx context.Context, id string, status entity.OrderStatus, at time.Time) error {
	cmd, err := r.q.Exec(ctx, `UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1`, id, string(status), at)
	if err != nil {
		return wrapErr("update order status", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("orden %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// Delete elimina la orden.
func (r *OrderRepo) Delete(ctx context.Context, id string) error {
	cmd, err := r.q.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return wrapErr("delete order", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("orden %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// List lista órdenes de la más reciente a la más antigua.
func (r *OrderRepo) List(ctx context.Context, filter repository.OrderFilter) ([]*entity.Order, error) {
	w := &whereBuilder{}
	if filter.UnitID != "" {
		w.add("unit_id = $%d", filter.UnitID)
	}
	if filter.Status != "" {
		w.add("status = $%d", string(filter.Status))
	}
	query := `SELECT ` + orderColumns + ` FROM orders` + w.sql() + ` ORDER BY created_at DESC, id` + w.page(filter.Limit, filter.Offset)
	rows, err := r.q.Query(ctx, query, w.args...)
	if err != nil {
		return nil, wrapErr("list orders", err)
	}
	defer rows.Close()
	list := make([]*entity.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		list = append(list, o)
	}
	return list, rows.Err()
}

func scanOrder(row pgx.Row) (*entity.Order, error) {
	var o entity.Order
	var status string
	var items []byte
	if err := row.Scan(&o.ID, &o.UnitID, &o.Type, &status, &items, &o.Notes, &o.SentDate,
		&o.CreatedBy, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.Status = entity.OrderStatus(status)
	var err error
	if o.Items, err = decodeItems(items); err != nil {
		return nil, err
	}
	return &o, nil
}

const dispensationColumns = `id, patient_id, items, notes, status, created_by, created_at`

// DispensationRepo dispensaciones sobre PostgreSQL (usable con pool o tx).
type DispensationRepo struct {
	q Querier
}

// NewDispensationRepository construye el adaptador. Pasar pool o tx (Querier).
func NewDispensationRepository(q Querier) *DispensationRepo {
	return &DispensationRepo{q: q}
}

// Create persiste la dispensación con sus ítems.
func (r *DispensationRepo) Create(ctx context.Context, d *entity.Dispensation) error {
	items, err := encodeItems(d.Items)
	if err != nil {
		return err
	}
	query := `INSERT INTO dispensations (` + dispensationColumns + `) VALUES ($1, $2, $3::jsonb, $4, $5, $6, $7)`
	if _, err := r.q.Exec(ctx, query, d.ID, d.PatientID, string(items), d.Notes, d.Status, d.CreatedBy, d.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("dispensación %s: %w", d.ID, domain.ErrConcurrencyConflict)
		}
		return wrapErr("insert dispensation", err)
	}
	return nil
}

// GetByID obtiene una dispensación por ID.
func (r *DispensationRepo) GetByID(ctx context.Context, id string) (*entity.Dispensation, error) {
	d, err := scanDispensation(r.q.QueryRow(ctx, `SELECT `+dispensationColumns+` FROM dispensations WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapErr("get dispensation", err)
	}
	return d, nil
}

// List lista dispensaciones de la más reciente a la más antigua.
func (r *DispensationRepo) List(ctx context.Context, filter repository.DispensationFilter) ([]*entity.Dispensation, error) {
	w := &whereBuilder{}
	if filter.PatientID != "" {
		w.add("patient_id = $%d", filter.PatientID)
	}
	query := `SELECT ` + dispensationColumns + ` FROM dispensations` + w.sql() + ` ORDER BY created_at DESC, id` + w.page(filter.Limit, filter.Offset)
	rows, err := r.q.Query(ctx, query, w.args...)
	if err != nil {
		return nil, wrapErr("list dispensations", err)
	}
	defer rows.Close()
	list := make([]*entity.Dispensation, 0)
	for rows.Next() {
		d, err := scanDispensation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dispensation: %w", err)
		}
		list = append(list, d)
	}
	return list, rows.Err()
}

func scanDispensation(row pgx.Row) (*entity.Dispensation, error) {
	var d entity.Dispensation
	var items []byte
	if err := row.Scan(&d.ID, &d.PatientID, &items, &d.Notes, &d.Status, &d.CreatedBy, &d.CreatedAt); err != nil {
		return nil, err
	}
	var err error
	if d.Items, err = decodeItems(items); err != nil {
		return nil, err
	}
	return &d, nil
}
