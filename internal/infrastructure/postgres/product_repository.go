package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/Farmacia-api/internal/domain"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
)

var _ repository.ProductRepository = (*ProductRepo)(nil)

const productColumns = `id, name, category, presentation, batch, expiry_date, quantity, status, version, created_at, updated_at`

// ProductRepo implementación del puerto ProductRepository sobre PostgreSQL (usable con pool o tx).
type ProductRepo struct {
	q Querier
}

// NewProductRepository construye el adaptador de persistencia para productos. Pasar pool o tx (Querier).
func NewProductRepository(q Querier) *ProductRepo {
	return &ProductRepo{q: q}
}

// Create persiste un nuevo producto con versión 1. Un ID repetido se informa como conflicto
// (dos reversiones recreando el mismo producto a la vez).
func (r *ProductRepo) Create(ctx context.Context, product *entity.Product) error {
	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1, $9, $10)`
	_, err := r.q.Exec(ctx, query,
		product.ID, product.Name, product.Category, product.Presentation, product.Batch,
		product.ExpiryDate, product.Quantity, string(product.Status), product.CreatedAt, product.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("producto %s: %w", product.ID, domain.ErrConcurrencyConflict)
		}
		return wrapErr("insert product", err)
	}
	product.Version = 1
	return nil
}

// GetByID obtiene un producto por ID.
func (r *ProductRepo) GetByID(ctx context.Context, id string) (*entity.Product, error) {
	return r.getOne(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
}

// GetForUpdate obtiene el producto y bloquea la fila para update (SELECT FOR UPDATE).
func (r *ProductRepo) GetForUpdate(ctx context.Context, id string) (*entity.Product, error) {
	return r.getOne(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, id)
}

func (r *ProductRepo) getOne(ctx context.Context, query, id string) (*entity.Product, error) {
	p, err := scanProduct(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapErr("get product", err)
	}
	return p, nil
}

// ListForUpdate bloquea las filas que cumplen el filtro, en orden de ID.
func (r *ProductRepo) ListForUpdate(ctx context.Context, filter repository.ProductFilter) ([]*entity.Product, error) {
	w := productWhere(filter)
	query := `SELECT ` + productColumns + ` FROM products` + w.sql() + ` ORDER BY id` + w.page(filter.Limit, filter.Offset) + ` FOR UPDATE`
	return r.list(ctx, query, w.args)
}

// List lista productos ordenados por nombre.
func (r *ProductRepo) List(ctx context.Context, filter repository.ProductFilter) ([]*entity.Product, error) {
	w := productWhere(filter)
	query := `SELECT ` + productColumns + ` FROM products` + w.sql() + ` ORDER BY name, id` + w.page(filter.Limit, filter.Offset)
	return r.list(ctx, query, w.args)
}

func (r *ProductRepo) list(ctx context.Context, query string, args []any) ([]*entity.Product, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("list products", err)
	}
	defer rows.Close()
	list := make([]*entity.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("list products", err)
	}
	return list, nil
}

// Update escribe el producto si la versión coincide (compare-and-swap) y la incrementa.
func (r *ProductRepo) Update(ctx context.Context, product *entity.Product) error {
	query := `
		UPDATE products SET name = $3, category = $4, presentation = $5, batch = $6, expiry_date = $7,
			quantity = $8, status = $9, updated_at = $10, version = version + 1
		WHERE id = $1 AND version = $2`
	cmd, err := r.q.Exec(ctx, query,
		product.ID, product.Version, product.Name, product.Category, product.Presentation, product.Batch,
		product.ExpiryDate, product.Quantity, string(product.Status), product.UpdatedAt,
	)
	if err != nil {
		return wrapErr("update product", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("producto %s versión %d: %w", product.ID, product.Version, domain.ErrConcurrencyConflict)
	}
	product.Version++
	return nil
}

// Delete elimina un producto por ID con la misma verificación de versión que Update.
func (r *ProductRepo) Delete(ctx context.Context, id string, version int64) error {
	cmd, err := r.q.Exec(ctx, `DELETE FROM products WHERE id = $1 AND version = $2`, id, version)
	if err != nil {
		return wrapErr("delete product", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("producto %s versión %d: %w", id, version, domain.ErrConcurrencyConflict)
	}
	return nil
}

func productWhere(f repository.ProductFilter) *whereBuilder {
	w := &whereBuilder{}
	if len(f.IDs) > 0 {
		w.add("id = ANY($%d)", f.IDs)
	}
	if f.Category != "" {
		w.add("category = $%d", f.Category)
	}
	if f.Status != "" {
		w.add("status = $%d", string(f.Status))
	}
	if f.Search != "" {
		w.args = append(w.args, "%"+f.Search+"%")
		n := len(w.args)
		w.conds = append(w.conds, fmt.Sprintf("(name ILIKE $%d OR batch ILIKE $%d)", n, n))
	}
	return w
}

func scanProduct(row pgx.Row) (*entity.Product, error) {
	var p entity.Product
	var status string
	if err := row.Scan(&p.ID, &p.Name, &p.Category, &p.Presentation, &p.Batch, &p.ExpiryDate,
		&p.Quantity, &status, &p.Version, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Status = entity.StockStatus(status)
	return &p, nil
}
