package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"github.com/jhoicas/Farmacia-api/internal/application/inventory"
)

var _ inventory.TxRunner = (*TxRunner)(nil)

// TxRunner transacciones multi-documento sobre una sesión. No usa Session.WithTransaction:
// los reintentos los decide el motor, así que aquí solo se traduce el error.
type TxRunner struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewTxRunner construye el runner. db debe pertenecer a client.
func NewTxRunner(client *mongo.Client, db *mongo.Database) *TxRunner {
	return &TxRunner{client: client, db: db}
}

// Run ejecuta fn en una transacción snapshot con write concern majority.
func (r *TxRunner) Run(ctx context.Context, fn func(tx inventory.Stores) error) error {
	sess, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(context.Background())

	txOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())
	if err := sess.StartTransaction(txOpts); err != nil {
		return fmt.Errorf("start transaction: %w", err)
	}

	if err := fn(storesFor(r.db, sess)); err != nil {
		_ = sess.AbortTransaction(context.Background())
		if isTransient(err) {
			return parseError("transaction", err)
		}
		return err
	}
	if err := commitWithRetry(ctx, sess.CommitTransaction); err != nil {
		_ = sess.AbortTransaction(context.Background())
		if isTransient(err) {
			return parseError("commit transaction", err)
		}
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// maxCommitRetries reintentos del commit cuando el servidor no confirma el resultado.
const maxCommitRetries = 3

// commitWithRetry repite el commit mientras el error lleve UnknownTransactionCommitResult.
// commitTransaction es idempotente; repetir la transacción entera no lo es, porque podría
// aplicar dos veces un cambio que sí se confirmó.
func commitWithRetry(ctx context.Context, commit func(context.Context) error) error {
	var (
		err      error
		attempts int
	)
	for attempts < maxCommitRetries+1 {
		attempts++
		err = commit(ctx)
		if err == nil || !isUnknownCommitResult(err) {
			return err
		}
		if ctx.Err() != nil {
			break
		}
	}
	return fmt.Errorf("resultado del commit desconocido tras %d intentos: %w", attempts, err)
}

func isUnknownCommitResult(err error) bool {
	var se mongo.ServerError
	return errors.As(err, &se) && se.HasErrorLabel("UnknownTransactionCommitResult")
}

// StoresFor repositorios sin sesión para las consultas fuera de transacción.
func StoresFor(db *mongo.Database) inventory.Stores {
	return storesFor(db, nil)
}

func storesFor(db *mongo.Database, sess mongo.Session) inventory.Stores {
	return inventory.Stores{
		Products:      NewProductRepository(db, sess),
		Movements:     NewStockMovementRepository(db, sess),
		Orders:        NewOrderRepository(db, sess),
		Dispensations: NewDispensationRepository(db, sess),
	}
}
