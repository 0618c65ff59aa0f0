package memory

import (
	"context"
	"sync"

	"github.com/jhoicas/Farmacia-api/internal/application/inventory"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
)

// Ensure TxRunner implements inventory.TxRunner.
var _ inventory.TxRunner = (*TxRunner)(nil)

// state colecciones confirmadas. Las entidades guardadas nunca se modifican en sitio:
// cada escritura reemplaza la entrada por una copia.
type state struct {
	products      map[string]*entity.Product
	movements     []*entity.StockMovement
	orders        map[string]*entity.Order
	dispensations map[string]*entity.Dispensation
	seq           int64
}

func newState() *state {
	return &state{
		products:      make(map[string]*entity.Product),
		orders:        make(map[string]*entity.Order),
		dispensations: make(map[string]*entity.Dispensation),
	}
}

// clone copia los índices (no las entidades) para trabajar sobre una versión aislada.
func (s *state) clone() *state {
	c := &state{
		products:      make(map[string]*entity.Product, len(s.products)),
		movements:     s.movements[:len(s.movements):len(s.movements)],
		orders:        make(map[string]*entity.Order, len(s.orders)),
		dispensations: make(map[string]*entity.Dispensation, len(s.dispensations)),
		seq:           s.seq,
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.dispensations {
		c.dispensations[k] = v
	}
	return c
}

// Store almacenamiento en memoria para desarrollo y pruebas. Las transacciones se
// serializan (un único escritor); las lecturas fuera de transacción ven solo estado confirmado.
type Store struct {
	mu    sync.RWMutex
	state *state
}

// NewStore construye un almacenamiento vacío.
func NewStore() *Store {
	return &Store{state: newState()}
}

// accessor da acceso al estado según el contexto: directo dentro de una transacción
// (el lock ya está tomado) o con lock de lectura/escritura fuera de ella.
type accessor interface {
	view(fn func(st *state) error) error
	update(fn func(st *state) error) error
}

type txAccessor struct{ st *state }

func (a txAccessor) view(fn func(st *state) error) error   { return fn(a.st) }
func (a txAccessor) update(fn func(st *state) error) error { return fn(a.st) }

type storeAccessor struct{ s *Store }

func (a storeAccessor) view(fn func(st *state) error) error {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()
	return fn(a.s.state)
}

// update fuera de transacción: escribe sobre una copia y la publica solo si fn no falla.
func (a storeAccessor) update(fn func(st *state) error) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	work := a.s.state.clone()
	if err := fn(work); err != nil {
		return err
	}
	a.s.state = work
	return nil
}

func storesFor(a accessor) inventory.Stores {
	return inventory.Stores{
		Products:      &ProductRepo{a: a},
		Movements:     &StockMovementRepo{a: a},
		Orders:        &OrderRepo{a: a},
		Dispensations: &DispensationRepo{a: a},
	}
}

// Stores devuelve repositorios que operan fuera de transacción sobre el estado confirmado.
func (s *Store) Stores() inventory.Stores {
	return storesFor(storeAccessor{s: s})
}

// TxRunner devuelve el ejecutor de transacciones del almacenamiento.
func (s *Store) TxRunner() *TxRunner {
	return &TxRunner{store: s}
}

// TxRunner ejecuta callbacks sobre una copia aislada del estado y la publica al confirmar.
type TxRunner struct {
	store *Store
}

// Run toma el lock de escritura, ejecuta fn sobre una copia y hace Commit (publica la copia)
// o Rollback (la descarta). Con un único escritor no hay conflictos de concurrencia.
func (r *TxRunner) Run(ctx context.Context, fn func(tx inventory.Stores) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	work := r.store.state.clone()
	if err := fn(storesFor(txAccessor{st: work})); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r.store.state = work
	return nil
}
