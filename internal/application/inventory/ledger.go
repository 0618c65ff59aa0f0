package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/jhoicas/Farmacia-api/internal/domain"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	domaininv "github.com/jhoicas/Farmacia-api/internal/domain/inventory"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
	"github.com/jhoicas/Farmacia-api/pkg/logger"
)

// DefaultMaxRetries reintentos ante domain.ErrConcurrencyConflict si no se configura otro valor.
const DefaultMaxRetries = 5

// LedgerUseCase motor de mutaciones del stock: cada operación combina escrituras de
// productos y anexos al historial de movimientos en una sola transacción (todo o nada).
type LedgerUseCase struct {
	txRunner   TxRunner
	reader     Stores
	log        *logger.Logger
	maxRetries uint64
	now        func() time.Time
	newID      func() string
}

// Option personaliza el LedgerUseCase.
type Option func(*LedgerUseCase)

// WithMaxRetries fija cuántas veces se reintenta una operación que perdió una carrera.
func WithMaxRetries(n int) Option {
	return func(uc *LedgerUseCase) {
		if n >= 0 {
			uc.maxRetries = uint64(n)
		}
	}
}

// WithClock reemplaza el reloj usado cuando el llamador no informa la fecha.
func WithClock(now func() time.Time) Option {
	return func(uc *LedgerUseCase) { uc.now = now }
}

// WithIDGenerator reemplaza el generador de IDs (UUID v4 por defecto).
func WithIDGenerator(gen func() string) Option {
	return func(uc *LedgerUseCase) { uc.newID = gen }
}

// NewLedgerUseCase construye el motor. reader se usa para las consultas fuera de transacción.
func NewLedgerUseCase(txRunner TxRunner, reader Stores, log *logger.Logger, opts ...Option) *LedgerUseCase {
	if log == nil {
		log = logger.Nop()
	}
	uc := &LedgerUseCase{
		txRunner:   txRunner,
		reader:     reader,
		log:        log,
		maxRetries: DefaultMaxRetries,
		now:        time.Now,
		newID:      func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// MutationMeta quién y cuándo. El núcleo no autentica: registra lo que recibe.
// At cero = reloj del motor, leído dentro de la transacción en cada intento.
type MutationMeta struct {
	Actor string
	At    time.Time

	clock bool
}

// ItemRequest ítem pedido por el llamador; los campos de la foto los completa el motor.
type ItemRequest struct {
	ProductID string
	Quantity  int
}

func (uc *LedgerUseCase) prepare(meta MutationMeta) (MutationMeta, error) {
	meta.Actor = strings.TrimSpace(meta.Actor)
	if meta.Actor == "" {
		return meta, fmt.Errorf("%w: actor requerido", domain.ErrInvalidInput)
	}
	if !meta.At.IsZero() {
		meta.At = meta.At.UTC()
	}
	return meta, nil
}

// begin fija la fecha del intento en curso: la del llamador o el reloj del motor.
func (uc *LedgerUseCase) begin(meta MutationMeta) MutationMeta {
	if meta.At.IsZero() {
		meta.At = uc.now().UTC()
		meta.clock = true
	}
	return meta
}

// stampFor fecha para un cambio del producto cuyo último registro es last. El historial
// ordenado por fecha debe coincidir con el orden de escritura: con el reloj del motor la
// fecha nunca retrocede; una fecha del llamador anterior a last se rechaza.
func stampFor(meta MutationMeta, productID string, last time.Time) (time.Time, error) {
	if !meta.At.Before(last) {
		return meta.At, nil
	}
	if meta.clock {
		return last, nil
	}
	return time.Time{}, fmt.Errorf("%w: fecha %s anterior al último movimiento de %s (%s)",
		domain.ErrInvalidInput, meta.At.Format(time.RFC3339Nano), productID, last.Format(time.RFC3339Nano))
}

// run ejecuta fn en una transacción y la repite completa, con backoff exponencial,
// mientras el almacenamiento informe un conflicto de concurrencia.
func (uc *LedgerUseCase) run(ctx context.Context, op string, fn func(tx Stores) error) error {
	attempt := 0
	operation := func() error {
		attempt++
		err := uc.txRunner.Run(ctx, fn)
		if err == nil {
			return nil
		}
		if errors.Is(err, domain.ErrConcurrencyConflict) {
			uc.log.Warn().Str("op", op).Int("attempt", attempt).Err(err).Msg("conflicto de concurrencia, reintentando")
			return err
		}
		return backoff.Permanent(err)
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 5 * time.Millisecond
	eb.MaxInterval = 200 * time.Millisecond
	eb.MaxElapsedTime = 5 * time.Second
	eb.Reset()

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(eb, uc.maxRetries), ctx))
	if err != nil {
		uc.log.Debug().Str("op", op).Int("attempts", attempt).Err(err).Msg("operación rechazada")
	}
	return err
}

// lockProducts bloquea los productos en orden ascendente de ID (evita interbloqueos entre
// transacciones que tocan los mismos lotes). Los IDs inexistentes no aparecen en el mapa.
func lockProducts(ctx context.Context, products repository.ProductRepository, ids []string) (map[string]*entity.Product, error) {
	uniq := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		uniq = append(uniq, id)
	}
	sort.Strings(uniq)

	locked := make(map[string]*entity.Product, len(uniq))
	for _, id := range uniq {
		p, err := products.GetForUpdate(ctx, id)
		if err != nil {
			return nil, err
		}
		if p != nil {
			locked[id] = p
		}
	}
	return locked, nil
}

// applyChange suma change a la cantidad del producto, recalcula el estado, escribe el
// producto y anexa el movimiento correspondiente. Rechaza cualquier resultado negativo.
func (uc *LedgerUseCase) applyChange(
	ctx context.Context,
	tx Stores,
	p *entity.Product,
	change int,
	reason entity.MovementReason,
	relatedID string,
	meta MutationMeta,
) (*entity.StockMovement, error) {
	at, err := stampFor(meta, p.ID, p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	before := p.Quantity
	after := before + change
	if after < 0 {
		return nil, fmt.Errorf("%w: %w", domain.ErrAborted, &domain.InsufficientStockError{
			ProductID: p.ID,
			Requested: -change,
			Available: before,
		})
	}
	p.Quantity = after
	p.Status = domaininv.DeriveStatus(after)
	p.UpdatedAt = at
	if err := tx.Products.Update(ctx, p); err != nil {
		return nil, err
	}
	mov := &entity.StockMovement{
		ID:             uc.newID(),
		ProductID:      p.ID,
		ProductName:    p.Name,
		Type:           entity.TypeForChange(change),
		Reason:         reason,
		QuantityChange: change,
		QuantityBefore: before,
		QuantityAfter:  after,
		Date:           at,
		User:           meta.Actor,
		RelatedID:      relatedID,
	}
	if err := tx.Movements.Append(ctx, mov); err != nil {
		return nil, err
	}
	return mov, nil
}

func validateItems(items []ItemRequest) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: se requiere al menos un ítem", domain.ErrInvalidInput)
	}
	for i, it := range items {
		if strings.TrimSpace(it.ProductID) == "" {
			return fmt.Errorf("%w: ítem %d sin producto", domain.ErrInvalidInput, i)
		}
		if it.Quantity <= 0 {
			return fmt.Errorf("%w: ítem %d con cantidad %d", domain.ErrInvalidInput, i, it.Quantity)
		}
	}
	return nil
}

// withdraw descuenta cada ítem de su producto (bloqueado) y devuelve las fotos de línea.
// Los ítems se aplican en secuencia: un producto repetido se valida contra lo que queda.
func (uc *LedgerUseCase) withdraw(
	ctx context.Context,
	tx Stores,
	items []ItemRequest,
	reason entity.MovementReason,
	relatedID string,
	meta MutationMeta,
) ([]entity.LineItem, error) {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ProductID
	}
	locked, err := lockProducts(ctx, tx.Products, ids)
	if err != nil {
		return nil, err
	}
	lines := make([]entity.LineItem, 0, len(items))
	for _, it := range items {
		p, ok := locked[it.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: producto %s: %w", domain.ErrAborted, it.ProductID, domain.ErrNotFound)
		}
		if _, err := uc.applyChange(ctx, tx, p, -it.Quantity, reason, relatedID, meta); err != nil {
			return nil, err
		}
		lines = append(lines, p.Snapshot(it.Quantity))
	}
	return lines, nil
}
