package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/jhoicas/Farmacia-api/internal/domain"
)

// errorCodeWriteConflict WriteConflict: otra transacción escribió el mismo documento.
const errorCodeWriteConflict = 112

// base colección más la sesión de la transacción en curso (nil fuera de transacción).
// Los repositorios reciben el contexto del motor, no el de la sesión: bind los une.
type base struct {
	coll *mongo.Collection
	sess mongo.Session
}

func newBase(db *mongo.Database, name string, sess mongo.Session) base {
	return base{coll: db.Collection(name), sess: sess}
}

func (b base) bind(ctx context.Context) context.Context {
	if b.sess == nil {
		return ctx
	}
	return mongo.NewSessionContext(ctx, b.sess)
}

// isTransient conflictos de escritura y errores etiquetados como transitorios por el servidor.
func isTransient(err error) bool {
	var se mongo.ServerError
	if errors.As(err, &se) {
		return se.HasErrorLabel("TransientTransactionError") || se.HasErrorCode(errorCodeWriteConflict)
	}
	return false
}

// parseError agrega contexto y traduce conflictos a domain.ErrConcurrencyConflict.
func parseError(op string, err error) error {
	if isTransient(err) || mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrConcurrencyConflict, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func pageOptions(limit, offset int) (l, s *int64) {
	if limit > 0 {
		v := int64(limit)
		l = &v
	}
	if offset > 0 {
		v := int64(offset)
		s = &v
	}
	return l, s
}
