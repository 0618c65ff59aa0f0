package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/Farmacia-api/internal/application/inventory"
)

// Ensure TxRunner implements inventory.TxRunner.
var _ inventory.TxRunner = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// Run inicia una transacción, ejecuta fn con repos atados a la tx y hace Commit o Rollback.
// Serialización fallida e interbloqueos se devuelven como domain.ErrConcurrencyConflict.
func (r *TxRunner) Run(ctx context.Context, fn func(tx inventory.Stores) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return wrapErr("begin transaction", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(StoresFor(tx)); err != nil {
		if isRetryable(err) {
			return wrapErr("transaction", err)
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		if isRetryable(err) {
			return wrapErr("commit transaction", err)
		}
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// StoresFor repositorios atados a q. Con el pool sirve para las lecturas fuera de transacción.
func StoresFor(q Querier) inventory.Stores {
	return inventory.Stores{
		Products:      NewProductRepository(q),
		Movements:     NewStockMovementRepository(q),
		Orders:        NewOrderRepository(q),
		Dispensations: NewDispensationRepository(q),
	}
}
