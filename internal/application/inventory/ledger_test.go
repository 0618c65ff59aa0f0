package inventory_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Farmacia-api/internal/application/inventory"
	"github.com/jhoicas/Farmacia-api/internal/domain"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	domaininv "github.com/jhoicas/Farmacia-api/internal/domain/inventory"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
	"github.com/jhoicas/Farmacia-api/internal/infrastructure/memory"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

const testActor = "farmaceutico-01"

type fixture struct {
	store *memory.Store
	uc    *inventory.LedgerUseCase
	ctx   context.Context
}

// stepClock avanza un segundo en cada llamada para que el orden por fecha sea estable.
func stepClock() func() time.Time {
	var n int64
	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	return func() time.Time {
		return base.Add(time.Duration(atomic.AddInt64(&n, 1)) * time.Second)
	}
}

func newFixture(t *testing.T, runner func(inventory.TxRunner) inventory.TxRunner) *fixture {
	t.Helper()
	store := memory.NewStore()
	var tx inventory.TxRunner = store.TxRunner()
	if runner != nil {
		tx = runner(tx)
	}
	uc := inventory.NewLedgerUseCase(tx, store.Stores(), nil, inventory.WithClock(stepClock()))
	return &fixture{store: store, uc: uc, ctx: context.Background()}
}

func meta() inventory.MutationMeta {
	return inventory.MutationMeta{Actor: testActor}
}

func (f *fixture) addProduct(t *testing.T, name, category string, qty int) *entity.Product {
	t.Helper()
	p, err := f.uc.AddProduct(f.ctx, meta(), inventory.NewProductInput{
		Name:         name,
		Category:     category,
		Presentation: "Comprimido 500mg",
		Batch:        "L-" + name,
		ExpiryDate:   "2026-12-31",
		Quantity:     qty,
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) quantity(t *testing.T, id string) int {
	t.Helper()
	p, err := f.uc.GetProduct(f.ctx, id)
	require.NoError(t, err)
	return p.Quantity
}

func (f *fixture) movements(t *testing.T, filter repository.MovementFilter) []*entity.StockMovement {
	t.Helper()
	list, err := f.uc.ListMovements(f.ctx, filter)
	require.NoError(t, err)
	return list
}

// assertLedgerConsistent verifica conservación y reproducción para cada producto indicado.
func (f *fixture) assertLedgerConsistent(t *testing.T, ids ...string) {
	t.Helper()
	for _, id := range ids {
		check, err := f.uc.VerifyProductLedger(f.ctx, id)
		require.NoError(t, err)
		assert.True(t, check.Consistent, "historial de %s: %s", id, check.Problem)
		assert.Equal(t, check.CurrentQuantity, check.SumOfChanges, "conservación de %s", id)
		assert.Equal(t, check.CurrentQuantity, check.ReplayedQuantity, "reproducción de %s", id)
	}
}

func item(id string, qty int) inventory.ItemRequest {
	return inventory.ItemRequest{ProductID: id, Quantity: qty}
}

// ──────────────────────────────────────────────────────────────────────────────
// Alta y ajuste de productos
// ──────────────────────────────────────────────────────────────────────────────

func TestAddProduct_EntradaInicial(t *testing.T) {
	f := newFixture(t, nil)
	p := f.addProduct(t, "Dipirona", "Medicamento", 25)

	assert.Equal(t, entity.StatusEmEstoque, p.Status)
	movs := f.movements(t, repository.MovementFilter{ProductID: p.ID})
	require.Len(t, movs, 1)
	m := movs[0]
	assert.Equal(t, entity.MovementTypeEntrada, m.Type)
	assert.Equal(t, entity.ReasonEntradaInicial, m.Reason)
	assert.Equal(t, 0, m.QuantityBefore)
	assert.Equal(t, 25, m.QuantityAfter)
	assert.Equal(t, testActor, m.User)
	assert.Equal(t, "Dipirona", m.ProductName)
}

func TestAddProduct_ValidaEntrada(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.uc.AddProduct(f.ctx, meta(), inventory.NewProductInput{Name: "X", Quantity: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.uc.AddProduct(f.ctx, meta(), inventory.NewProductInput{Name: " ", Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.uc.AddProduct(f.ctx, inventory.MutationMeta{}, inventory.NewProductInput{Name: "X", Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "sin actor no se registra nada")
}

func TestUpdateProduct_AjusteDeInventario(t *testing.T) {
	f := newFixture(t, nil)
	p := f.addProduct(t, "Amoxicilina", "Medicamento", 30)

	qty := 12
	name := "Amoxicilina 875mg"
	updated, err := f.uc.UpdateProduct(f.ctx, meta(), p.ID, inventory.ProductPatch{Quantity: &qty, Name: &name})
	require.NoError(t, err)
	assert.Equal(t, 12, updated.Quantity)
	assert.Equal(t, entity.StatusBaixoEstoque, updated.Status)
	assert.Equal(t, name, updated.Name)

	movs := f.movements(t, repository.MovementFilter{ProductID: p.ID})
	require.Len(t, movs, 2)
	adj := movs[0]
	assert.Equal(t, entity.MovementTypeSaida, adj.Type)
	assert.Equal(t, entity.ReasonAjusteInventario, adj.Reason)
	assert.Equal(t, 30, adj.QuantityBefore)
	assert.Equal(t, -18, adj.QuantityChange)
	assert.Equal(t, 12, adj.QuantityAfter)

	qty = 40
	_, err = f.uc.UpdateProduct(f.ctx, meta(), p.ID, inventory.ProductPatch{Quantity: &qty})
	require.NoError(t, err)
	movs = f.movements(t, repository.MovementFilter{ProductID: p.ID})
	require.Len(t, movs, 3)
	assert.Equal(t, entity.MovementTypeEntrada, movs[0].Type)
	assert.Equal(t, 28, movs[0].QuantityChange)

	f.assertLedgerConsistent(t, p.ID)
}

func TestUpdateProduct_SinCambioDeCantidadNoAnexa(t *testing.T) {
	f := newFixture(t, nil)
	p := f.addProduct(t, "Soro", "Material", 10)

	qty := 10
	cat := "Insumo"
	_, err := f.uc.UpdateProduct(f.ctx, meta(), p.ID, inventory.ProductPatch{Quantity: &qty, Category: &cat})
	require.NoError(t, err)

	assert.Len(t, f.movements(t, repository.MovementFilter{ProductID: p.ID}), 1)
	got, err := f.uc.GetProduct(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Insumo", got.Category)
}

func TestUpdateProduct_NoEncontrado(t *testing.T) {
	f := newFixture(t, nil)
	qty := 1
	_, err := f.uc.UpdateProduct(f.ctx, meta(), "no-existe", inventory.ProductPatch{Quantity: &qty})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ──────────────────────────────────────────────────────────────────────────────
// Órdenes (remessas)
// ──────────────────────────────────────────────────────────────────────────────

// Escenario concreto: 25 → 15 → 5 → (estorno) 15.
func TestOrder_EscenarioConcreto(t *testing.T) {
	f := newFixture(t, nil)
	p := f.addProduct(t, "Paracetamol", "Medicamento", 25)
	require.Equal(t, entity.StatusEmEstoque, p.Status)

	o1, err := f.uc.CreateOrder(f.ctx, meta(), inventory.CreateOrderInput{UnitID: "UBS-Centro", Type: "Mensal", Items: []inventory.ItemRequest{item(p.ID, 10)}})
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStatusEmAnalise, o1.Status)

	got, err := f.uc.GetProduct(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 15, got.Quantity)
	// 15 está por debajo del umbral de 20: la tabla de estados manda.
	assert.Equal(t, entity.StatusBaixoEstoque, got.Status)

	movs := f.movements(t, repository.MovementFilter{RelatedID: o1.ID})
	require.Len(t, movs, 1)
	assert.Equal(t, entity.MovementTypeSaida, movs[0].Type)
	assert.Equal(t, entity.ReasonSaidaRemessa, movs[0].Reason)
	assert.Equal(t, 25, movs[0].QuantityBefore)
	assert.Equal(t, 15, movs[0].QuantityAfter)

	o2, err := f.uc.CreateOrder(f.ctx, meta(), inventory.CreateOrderInput{UnitID: "UBS-Centro", Items: []inventory.ItemRequest{item(p.ID, 10)}})
	require.NoError(t, err)
	got, err = f.uc.GetProduct(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Quantity)
	assert.Equal(t, entity.StatusBaixoEstoque, got.Status)

	res, err := f.uc.DeleteOrder(f.ctx, meta(), o2.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Restored)
	assert.Empty(t, res.Recreated)
	assert.Equal(t, 15, f.quantity(t, p.ID))

	movs = f.movements(t, repository.MovementFilter{RelatedID: o2.ID})
	require.Len(t, movs, 2)
	estorno := movs[0]
	assert.Equal(t, entity.ReasonEstornoRemessa, estorno.Reason)
	assert.Equal(t, entity.MovementTypeEntrada, estorno.Type)
	assert.Equal(t, 5, estorno.QuantityBefore)
	assert.Equal(t, 15, estorno.QuantityAfter)

	_, err = f.uc.GetOrder(f.ctx, o2.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	f.assertLedgerConsistent(t, p.ID)
}

func TestOrder_IdaYVueltaRestauraCantidades(t *testing.T) {
	f := newFixture(t, nil)
	a := f.addProduct(t, "A", "Medicamento", 40)
	b := f.addProduct(t, "B", "Medicamento", 7)
	c := f.addProduct(t, "C", "Material", 100)

	items := []inventory.ItemRequest{item(a.ID, 5), item(b.ID, 7), item(c.ID, 99)}
	order, err := f.uc.CreateOrder(f.ctx, meta(), inventory.CreateOrderInput{UnitID: "HOSP-1", Items: items})
	require.NoError(t, err)
	require.Len(t, order.Items, 3)
	assert.Equal(t, "B", order.Items[1].Name, "el ítem guarda la foto del producto")
	assert.Equal(t, "L-B", order.Items[1].Batch)

	_, err = f.uc.DeleteOrder(f.ctx, meta(), order.ID)
	require.NoError(t, err)

	assert.Equal(t, 40, f.quantity(t, a.ID))
	assert.Equal(t, 7, f.quantity(t, b.ID))
	assert.Equal(t, 100, f.quantity(t, c.ID))
	assert.Len(t, f.movements(t, repository.MovementFilter{RelatedID: order.ID}), 2*len(items))
	f.assertLedgerConsistent(t, a.ID, b.ID, c.ID)
}

// Atomicidad: el ítem B sin stock impide tocar el ítem A.
func TestCreateOrder_StockInsuficienteNoAplicaNada(t *testing.T) {
	f := newFixture(t, nil)
	a := f.addProduct(t, "A", "Medicamento", 30)
	b := f.addProduct(t, "B", "Medicamento", 3)

	_, err := f.uc.CreateOrder(f.ctx, meta(), inventory.CreateOrderInput{
		UnitID: "UBS-Norte",
		Items:  []inventory.ItemRequest{item(a.ID, 10), item(b.ID, 4)},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.ErrorIs(t, err, domain.ErrAborted)

	var detail *domain.InsufficientStockError
	require.True(t, errors.As(err, &detail))
	assert.Equal(t, b.ID, detail.ProductID)
	assert.Equal(t, 4, detail.Requested)
	assert.Equal(t, 3, detail.Available)

	assert.Equal(t, 30, f.quantity(t, a.ID))
	assert.Equal(t, 3, f.quantity(t, b.ID))
	assert.Len(t, f.movements(t, repository.MovementFilter{ProductID: a.ID}), 1)
	assert.Len(t, f.movements(t, repository.MovementFilter{ProductID: b.ID}), 1)

	orders, err := f.uc.ListOrders(f.ctx, repository.OrderFilter{})
	require.NoError(t, err)
	assert.Empty(t, orders)
}

// Un producto repetido en la misma orden se valida contra lo que queda.
func TestCreateOrder_ProductoRepetidoNoQuedaNegativo(t *testing.T) {
	f := newFixture(t, nil)
	p := f.addProduct(t, "Insulina", "Medicamento", 10)

	_, err := f.uc.CreateOrder(f.ctx, meta(), inventory.CreateOrderInput{
		UnitID: "UBS",
		Items:  []inventory.ItemRequest{item(p.ID, 6), item(p.ID, 6)},
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, 10, f.quantity(t, p.ID))

	o, err := f.uc.CreateOrder(f.ctx, meta(), inventory.CreateOrderInput{
		UnitID: "UBS",
		Items:  []inventory.ItemRequest{item(p.ID, 6), item(p.ID, 4)},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, f.quantity(t, p.ID))

	_, err = f.uc.DeleteOrder(f.ctx, meta(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, f.quantity(t, p.ID))
	f.assertLedgerConsistent(t, p.ID)
}

func TestCreateOrder_Validaciones(t *testing.T) {
	f := newFixture(t, nil)
	p := f.addProduct(t, "A", "Medicamento", 10)

	casos := map[string]inventory.CreateOrderInput{
		"sin unidad":        {Items: []inventory.ItemRequest{item(p.ID, 1)}},
		"sin ítems":         {UnitID: "U"},
		"cantidad cero":     {UnitID: "U", Items: []inventory.ItemRequest{item(p.ID, 0)}},
		"cantidad negativa": {UnitID: "U", Items: []inventory.ItemRequest{item(p.ID, -2)}},
		"producto vacío":    {UnitID: "U", Items: []inventory.ItemRequest{item("", 1)}},
	}
	for nombre, in := range casos {
		t.Run(nombre, func(t *testing.T) {
			_, err := f.uc.CreateOrder(f.ctx, meta(), in)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}

	_, err := f.uc.CreateOrder(f.ctx, meta(), inventory.CreateOrderInput{UnitID: "U", Items: []inventory.ItemRequest{item("fantasma", 1)}})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 10, f.quantity(t, p.ID))
}

func TestDeleteOrder_NoEncontrada(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.uc.DeleteOrder(f.ctx, meta(), "no-existe")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// Producto eliminado después de la orden: el estorno lo recrea desde la foto del ítem.
func TestDeleteOrder_RecreaProductoEliminado(t *testing.T) {
	f := newFixture(t, nil)
	p := f.addProduct(t, "Omeprazol", "Medicamento", 50)

	order, err := f.uc.CreateOrder(f.ctx, meta(), inventory.CreateOrderInput{UnitID: "UPA", Items: []inventory.ItemRequest{item(p.ID, 8)}})
	require.NoError(t, err)

	n, err := f.uc.DeleteProducts(f.ctx, meta(), []string{p.ID})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	_, err = f.uc.GetProduct(f.ctx, p.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	res, err := f.uc.DeleteOrder(f.ctx, meta(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{p.ID}, res.Recreated)

	got, err := f.uc.GetProduct(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, got.Quantity)
	assert.Equal(t, entity.StatusBaixoEstoque, got.Status)
	assert.Equal(t, "Omeprazol", got.Name)
	assert.Equal(t, "Medicamento", got.Category)
	assert.Equal(t, "L-Omeprazol", got.Batch)
	assert.Equal(t, "2026-12-31", got.ExpiryDate)
	assert.Equal(t, "Comprimido 500mg", got.Presentation)

	movs := f.movements(t, repository.MovementFilter{RelatedID: order.ID})
	require.Len(t, movs, 2)
	assert.Equal(t, entity.ReasonEstornoRemessa, movs[0].Reason)
	assert.Equal(t, 0, movs[0].QuantityBefore)
	assert.Equal(t, 8, movs[0].QuantityAfter)

	f.assertLedgerConsistent(t, p.ID)
}

func TestUpdateOrderStatus_SinEfectoEnStock(t *testing.T) {
	f := newFixture(t, nil)
	p := f.addProduct(t, "A", "Medicamento", 20)
	o, err := f.uc.CreateOrder(f.ctx, meta(), inventory.CreateOrderInput{UnitID: "U", Items: []inventory.ItemRequest{item(p.ID, 5)}})
	require.NoError(t, err)
	before := len(f.movements(t, repository.MovementFilter{}))

	updated, err := f.uc.UpdateOrderStatus(f.ctx, o.ID, entity.OrderStatusAtendido)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStatusAtendido, updated.Status)
	assert.Equal(t, 15, f.quantity(t, p.ID))
	assert.Len(t, f.movements(t, repository.MovementFilter{}), before)

	_, err = f.uc.UpdateOrderStatus(f.ctx, o.ID, entity.OrderStatus("Perdido"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = f.uc.UpdateOrderStatus(f.ctx, "x", entity.OrderStatusCancelado)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ──────────────────────────────────────────────────────────────────────────────
// Dispensaciones
// ──────────────────────────────────────────────────────────────────────────────

func TestCreateDispensation_DescuentaYAnexa(t *testing.T) {
	f := newFixture(t, nil)
	p := f.addProduct(t, "Losartana", "Medicamento", 21)

	d, err := f.uc.CreateDispensation(f.ctx, meta(), inventory.CreateDispensationInput{
		PatientID: "pac-123",
		Notes:     "uso contínuo",
		Items:     []inventory.ItemRequest{item(p.ID, 2)},
	})
	require.NoError(t, err)
	assert.Equal(t, entity.DispensationStatusConcluida, d.Status)
	assert.Equal(t, 19, f.quantity(t, p.ID))

	movs := f.movements(t, repository.MovementFilter{RelatedID: d.ID})
	require.Len(t, movs, 1)
	assert.Equal(t, entity.ReasonSaidaDispensacao, movs[0].Reason)

	list, err := f.uc.ListDispensations(f.ctx, repository.DispensationFilter{PatientID: "pac-123"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, d.ID, list[0].ID)

	_, err = f.uc.CreateDispensation(f.ctx, meta(), inventory.CreateDispensationInput{Items: []inventory.ItemRequest{item(p.ID, 1)}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

// Dos dispensaciones concurrentes sobre el mismo lote nunca venden de más.
func TestCreateDispensation_ConcurrenteNoVendeDeMas(t *testing.T) {
	store := memory.NewStore()
	uc := inventory.NewLedgerUseCase(store.TxRunner(), store.Stores(), nil)
	ctx := context.Background()
	p, err := uc.AddProduct(ctx, meta(), inventory.NewProductInput{Name: "Vacina", Quantity: 50})
	require.NoError(t, err)

	const workers = 100
	var ok, insufficient int64
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := uc.CreateDispensation(ctx, meta(), inventory.CreateDispensationInput{
				PatientID: fmt.Sprintf("pac-%d", i),
				Items:     []inventory.ItemRequest{item(p.ID, 1)},
			})
			switch {
			case err == nil:
				atomic.AddInt64(&ok, 1)
			case errors.Is(err, domain.ErrInsufficientStock):
				atomic.AddInt64(&insufficient, 1)
			default:
				t.Errorf("error inesperado: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 50, ok)
	assert.EqualValues(t, 50, insufficient)
	got, err := uc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Quantity)

	check, err := uc.VerifyProductLedger(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, check.Consistent, check.Problem)
	assert.Equal(t, 51, check.Movements)
}

// ──────────────────────────────────────────────────────────────────────────────
// Operaciones masivas
// ──────────────────────────────────────────────────────────────────────────────

func TestZeroStock_PorCategoria(t *testing.T) {
	f := newFixture(t, nil)
	m1 := f.addProduct(t, "M1", "Medicamento", 5)
	m2 := f.addProduct(t, "M2", "Medicamento", 0)
	m3 := f.addProduct(t, "M3", "Medicamento", 30)
	other := f.addProduct(t, "Luva", "Material", 12)

	n, err := f.uc.ZeroStock(f.ctx, meta(), "Medicamento")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, id := range []string{m1.ID, m2.ID, m3.ID} {
		got, err := f.uc.GetProduct(f.ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 0, got.Quantity)
		assert.Equal(t, entity.StatusSemEstoque, got.Status)
	}
	assert.Equal(t, 12, f.quantity(t, other.ID))

	movs := f.movements(t, repository.MovementFilter{RelatedID: "zero_stock_Medicamento"})
	require.Len(t, movs, 2)
	for _, m := range movs {
		assert.Equal(t, entity.ReasonAjusteInventarioZerar, m.Reason)
		assert.Equal(t, entity.MovementTypeSaida, m.Type)
		assert.Equal(t, 0, m.QuantityAfter)
	}
	f.assertLedgerConsistent(t, m1.ID, m2.ID, m3.ID, other.ID)
}

func TestZeroStock_TodasLasCategorias(t *testing.T) {
	f := newFixture(t, nil)
	f.addProduct(t, "A", "Medicamento", 5)
	f.addProduct(t, "B", "Material", 9)

	n, err := f.uc.ZeroStock(f.ctx, meta(), "")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, f.movements(t, repository.MovementFilter{RelatedID: "zero_stock_all"}), 2)
}

func TestZeroStock_FiltroSinCoincidencias(t *testing.T) {
	f := newFixture(t, nil)
	p := f.addProduct(t, "A", "Medicamento", 5)

	n, err := f.uc.ZeroStock(f.ctx, meta(), "Odontológico")
	assert.ErrorIs(t, err, domain.ErrInvalidFilter)
	assert.Equal(t, 0, n)
	assert.Equal(t, 5, f.quantity(t, p.ID))
}

func TestZeroStock_SinStockQuePonerACero(t *testing.T) {
	f := newFixture(t, nil)
	a := f.addProduct(t, "A", "Medicamento", 0)
	b := f.addProduct(t, "B", "Medicamento", 0)
	f.addProduct(t, "Luva", "Material", 4)

	n, err := f.uc.ZeroStock(f.ctx, meta(), "Medicamento")
	assert.ErrorIs(t, err, domain.ErrInvalidFilter)
	assert.Equal(t, 0, n)
	assert.Empty(t, f.movements(t, repository.MovementFilter{RelatedID: "zero_stock_Medicamento"}))
	f.assertLedgerConsistent(t, a.ID, b.ID)
}

func TestDeleteProducts(t *testing.T) {
	f := newFixture(t, nil)
	a := f.addProduct(t, "A", "Medicamento", 5)
	b := f.addProduct(t, "B", "Medicamento", 0)
	keep := f.addProduct(t, "C", "Medicamento", 3)

	n, err := f.uc.DeleteProducts(f.ctx, meta(), []string{a.ID, b.ID, "fantasma"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	products, err := f.uc.ListProducts(f.ctx, repository.ProductFilter{})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, keep.ID, products[0].ID)

	movs := f.movements(t, repository.MovementFilter{RelatedID: "delete_prod_" + a.ID})
	require.Len(t, movs, 1)
	assert.Equal(t, entity.ReasonExclusaoProduto, movs[0].Reason)
	assert.Equal(t, -5, movs[0].QuantityChange)
	assert.Equal(t, 0, movs[0].QuantityAfter)

	// Producto eliminado: la cantidad actual es 0 y el historial debe sumar 0.
	f.assertLedgerConsistent(t, a.ID, b.ID)

	_, err = f.uc.DeleteProducts(f.ctx, meta(), []string{"x", "y"})
	assert.ErrorIs(t, err, domain.ErrInvalidFilter)
	_, err = f.uc.DeleteProducts(f.ctx, meta(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidFilter)
}

// ──────────────────────────────────────────────────────────────────────────────
// Fallos de almacenamiento y conflictos
// ──────────────────────────────────────────────────────────────────────────────

var errStorage = errors.New("almacenamiento no disponible")

// failingMovements falla en el anexo número failAt de cada transacción.
type failingMovements struct {
	repository.StockMovementRepository
	failAt int
	calls  int
}

func (m *failingMovements) Append(ctx context.Context, mov *entity.StockMovement) error {
	m.calls++
	if m.calls == m.failAt {
		return errStorage
	}
	return m.StockMovementRepository.Append(ctx, mov)
}

type failingRunner struct {
	inner  inventory.TxRunner
	failAt int
	armed  atomic.Bool
}

func (r *failingRunner) Run(ctx context.Context, fn func(tx inventory.Stores) error) error {
	return r.inner.Run(ctx, func(tx inventory.Stores) error {
		if r.armed.Load() {
			tx.Movements = &failingMovements{StockMovementRepository: tx.Movements, failAt: r.failAt}
		}
		return fn(tx)
	})
}

func TestCreateOrder_FalloDeAlmacenamientoNoDejaEscriturasParciales(t *testing.T) {
	fr := &failingRunner{failAt: 3}
	f := newFixture(t, func(inner inventory.TxRunner) inventory.TxRunner {
		fr.inner = inner
		return fr
	})
	ids := make([]string, 5)
	for i := range ids {
		ids[i] = f.addProduct(t, fmt.Sprintf("P%d", i), "Medicamento", 10).ID
	}
	fr.armed.Store(true)

	items := make([]inventory.ItemRequest, len(ids))
	for i, id := range ids {
		items[i] = item(id, 2)
	}
	_, err := f.uc.CreateOrder(f.ctx, meta(), inventory.CreateOrderInput{UnitID: "U", Items: items})
	require.ErrorIs(t, err, errStorage)

	for _, id := range ids {
		assert.Equal(t, 10, f.quantity(t, id))
		assert.Len(t, f.movements(t, repository.MovementFilter{ProductID: id}), 1)
	}
	orders, err := f.uc.ListOrders(f.ctx, repository.OrderFilter{})
	require.NoError(t, err)
	assert.Empty(t, orders)
}

// conflictRunner simula perder la carrera las primeras n veces.
type conflictRunner struct {
	inner     inventory.TxRunner
	conflicts int32
	calls     int32
}

func (r *conflictRunner) Run(ctx context.Context, fn func(tx inventory.Stores) error) error {
	if atomic.AddInt32(&r.calls, 1) <= r.conflicts {
		return domain.ErrConcurrencyConflict
	}
	return r.inner.Run(ctx, fn)
}

func TestLedger_ReintentaConflictos(t *testing.T) {
	cr := &conflictRunner{conflicts: 2}
	store := memory.NewStore()
	cr.inner = store.TxRunner()
	uc := inventory.NewLedgerUseCase(cr, store.Stores(), nil, inventory.WithMaxRetries(3))

	p, err := uc.AddProduct(context.Background(), meta(), inventory.NewProductInput{Name: "A", Quantity: 4})
	require.NoError(t, err)
	assert.EqualValues(t, 3, cr.calls)
	assert.Equal(t, 4, p.Quantity)
}

func TestLedger_ConflictoPersistenteSeInforma(t *testing.T) {
	cr := &conflictRunner{conflicts: 100}
	store := memory.NewStore()
	cr.inner = store.TxRunner()
	uc := inventory.NewLedgerUseCase(cr, store.Stores(), nil, inventory.WithMaxRetries(2))

	_, err := uc.AddProduct(context.Background(), meta(), inventory.NewProductInput{Name: "A", Quantity: 4})
	assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)
	assert.EqualValues(t, 3, cr.calls, "un intento más dos reintentos")

	products, err := uc.ListProducts(context.Background(), repository.ProductFilter{})
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestLedger_ErroresNoConflictoNoSeReintentan(t *testing.T) {
	cr := &conflictRunner{}
	store := memory.NewStore()
	cr.inner = store.TxRunner()
	uc := inventory.NewLedgerUseCase(cr, store.Stores(), nil)

	_, err := uc.DeleteOrder(context.Background(), meta(), "no-existe")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.EqualValues(t, 1, cr.calls)
}

// ──────────────────────────────────────────────────────────────────────────────
// Consultas
// ──────────────────────────────────────────────────────────────────────────────

func TestListMovements_RangoDeFechas(t *testing.T) {
	f := newFixture(t, nil)
	f.addProduct(t, "A", "Medicamento", 1)
	all := f.movements(t, repository.MovementFilter{})
	require.Len(t, all, 1)

	from := all[0].Date.Add(time.Second)
	f.addProduct(t, "B", "Medicamento", 2)
	recent := f.movements(t, repository.MovementFilter{From: &from})
	require.Len(t, recent, 1)
	assert.Equal(t, "B", recent[0].ProductName)

	to := from.Add(-2 * time.Second)
	_, err := f.uc.ListMovements(f.ctx, repository.MovementFilter{From: &from, To: &to})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestListProducts_Filtros(t *testing.T) {
	f := newFixture(t, nil)
	f.addProduct(t, "Dipirona", "Medicamento", 0)
	f.addProduct(t, "Ibuprofeno", "Medicamento", 25)
	f.addProduct(t, "Gaze", "Material", 3)

	list, err := f.uc.ListProducts(f.ctx, repository.ProductFilter{Category: "Medicamento"})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = f.uc.ListProducts(f.ctx, repository.ProductFilter{Status: entity.StatusBaixoEstoque})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Gaze", list[0].Name)

	list, err = f.uc.ListProducts(f.ctx, repository.ProductFilter{Search: "PROF"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Ibuprofeno", list[0].Name)

	list, err = f.uc.ListProducts(f.ctx, repository.ProductFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestVerifyProductLedger_NoEncontrado(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.uc.VerifyProductLedger(f.ctx, "nada")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// staleProducts lector desfasado: GetByID devuelve una cantidad que ya no es la actual.
type staleProducts struct {
	repository.ProductRepository
}

func (s staleProducts) GetByID(ctx context.Context, id string) (*entity.Product, error) {
	p, err := s.ProductRepository.GetByID(ctx, id)
	if p != nil {
		old := *p
		old.Quantity += 7
		return &old, err
	}
	return p, err
}

func TestVerifyProductLedger_LeeProductoEHistorialEnLaMismaTransaccion(t *testing.T) {
	store := memory.NewStore()
	reader := store.Stores()
	reader.Products = staleProducts{ProductRepository: reader.Products}
	uc := inventory.NewLedgerUseCase(store.TxRunner(), reader, nil, inventory.WithClock(stepClock()))
	ctx := context.Background()

	p, err := uc.AddProduct(ctx, meta(), inventory.NewProductInput{Name: "Dipirona", Quantity: 10})
	require.NoError(t, err)
	_, err = uc.CreateDispensation(ctx, meta(), inventory.CreateDispensationInput{PatientID: "pac-1", Items: []inventory.ItemRequest{item(p.ID, 4)}})
	require.NoError(t, err)

	check, err := uc.VerifyProductLedger(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, check.Consistent, check.Problem)
	assert.Equal(t, 6, check.CurrentQuantity)
}

func TestVerifyProductLedger_AuditoriasConcurrentesConDispensaciones(t *testing.T) {
	f := newFixture(t, nil)
	p := f.addProduct(t, "Paracetamol", "Medicamento", 200)

	var wg sync.WaitGroup
	problems := make(chan string, 100)
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, _ = f.uc.CreateDispensation(f.ctx, meta(), inventory.CreateDispensationInput{
				PatientID: fmt.Sprintf("pac-%d", i),
				Items:     []inventory.ItemRequest{item(p.ID, 3)},
			})
		}(i)
		go func() {
			defer wg.Done()
			check, err := f.uc.VerifyProductLedger(f.ctx, p.ID)
			if err != nil {
				problems <- err.Error()
				return
			}
			if !check.Consistent {
				problems <- check.Problem
			}
		}()
	}
	wg.Wait()
	close(problems)
	for msg := range problems {
		t.Errorf("auditoría inconsistente: %s", msg)
	}
	f.assertLedgerConsistent(t, p.ID)
}

// ──────────────────────────────────────────────────────────────────────────────
// Fechas de los movimientos
// ──────────────────────────────────────────────────────────────────────────────

// byDate ordena como un lector externo: fecha y, en empate, Seq.
func byDate(movs []*entity.StockMovement) []*entity.StockMovement {
	out := append([]*entity.StockMovement(nil), movs...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}

// replayByDate encadena los movimientos en orden de fecha partiendo de 0.
func replayByDate(t *testing.T, movs []*entity.StockMovement) int {
	t.Helper()
	qty := 0
	for _, m := range byDate(movs) {
		require.Equal(t, qty, m.QuantityBefore, "movimiento %s (seq %d) fuera de orden", m.ID, m.Seq)
		qty = m.QuantityAfter
	}
	return qty
}

func TestMovimientos_RelojQueRetrocedeNoDesordenaElHistorial(t *testing.T) {
	var n int64
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	backwards := func() time.Time {
		return base.Add(-time.Duration(atomic.AddInt64(&n, 1)) * time.Minute)
	}
	store := memory.NewStore()
	uc := inventory.NewLedgerUseCase(store.TxRunner(), store.Stores(), nil, inventory.WithClock(backwards))
	ctx := context.Background()

	p, err := uc.AddProduct(ctx, meta(), inventory.NewProductInput{Name: "Dipirona", Category: "Medicamento", Quantity: 20})
	require.NoError(t, err)
	order, err := uc.CreateOrder(ctx, meta(), inventory.CreateOrderInput{UnitID: "UBS-1", Items: []inventory.ItemRequest{item(p.ID, 5)}})
	require.NoError(t, err)
	_, err = uc.CreateDispensation(ctx, meta(), inventory.CreateDispensationInput{PatientID: "pac-1", Items: []inventory.ItemRequest{item(p.ID, 3)}})
	require.NoError(t, err)
	qty := 9
	_, err = uc.UpdateProduct(ctx, meta(), p.ID, inventory.ProductPatch{Quantity: &qty})
	require.NoError(t, err)
	_, err = uc.DeleteProducts(ctx, meta(), []string{p.ID})
	require.NoError(t, err)
	_, err = uc.DeleteOrder(ctx, meta(), order.ID)
	require.NoError(t, err)

	movs, err := uc.ListMovements(ctx, repository.MovementFilter{ProductID: p.ID})
	require.NoError(t, err)
	require.Len(t, movs, 6)

	current, err := uc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, current.Quantity)
	assert.Equal(t, current.Quantity, replayByDate(t, movs))

	res, err := domaininv.Replay(movs)
	require.NoError(t, err)
	assert.Equal(t, current.Quantity, res.Quantity)
}

func TestMovimientos_FechaDelLlamadorAnteriorSeRechaza(t *testing.T) {
	f := newFixture(t, nil)
	t2 := time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC)
	t1 := t2.Add(-time.Hour)

	p, err := f.uc.AddProduct(f.ctx, inventory.MutationMeta{Actor: testActor, At: t2}, inventory.NewProductInput{Name: "Soro", Quantity: 8})
	require.NoError(t, err)

	_, err = f.uc.CreateOrder(f.ctx, inventory.MutationMeta{Actor: testActor, At: t1}, inventory.CreateOrderInput{UnitID: "UBS-2", Items: []inventory.ItemRequest{item(p.ID, 2)}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, 8, f.quantity(t, p.ID))
	assert.Len(t, f.movements(t, repository.MovementFilter{ProductID: p.ID}), 1)
	orders, err := f.uc.ListOrders(f.ctx, repository.OrderFilter{})
	require.NoError(t, err)
	assert.Empty(t, orders)

	// la misma fecha del último movimiento se acepta
	_, err = f.uc.CreateOrder(f.ctx, inventory.MutationMeta{Actor: testActor, At: t2}, inventory.CreateOrderInput{UnitID: "UBS-2", Items: []inventory.ItemRequest{item(p.ID, 2)}})
	require.NoError(t, err)
	assert.Equal(t, 6, replayByDate(t, f.movements(t, repository.MovementFilter{ProductID: p.ID})))
}

// lateConflictRunner ejecuta fn y descarta el resultado con un conflicto las primeras n veces.
type lateConflictRunner struct {
	inner     inventory.TxRunner
	conflicts int32
	calls     int32
}

func (r *lateConflictRunner) Run(ctx context.Context, fn func(tx inventory.Stores) error) error {
	return r.inner.Run(ctx, func(tx inventory.Stores) error {
		if err := fn(tx); err != nil {
			return err
		}
		if atomic.AddInt32(&r.calls, 1) <= atomic.LoadInt32(&r.conflicts) {
			return domain.ErrConcurrencyConflict
		}
		return nil
	})
}

func TestMovimientos_FechaSeTomaEnCadaIntento(t *testing.T) {
	var ticks int64
	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		return base.Add(time.Duration(atomic.AddInt64(&ticks, 1)) * time.Second)
	}
	lr := &lateConflictRunner{}
	store := memory.NewStore()
	lr.inner = store.TxRunner()
	uc := inventory.NewLedgerUseCase(lr, store.Stores(), nil, inventory.WithClock(clock), inventory.WithMaxRetries(3))
	ctx := context.Background()

	p, err := uc.AddProduct(ctx, meta(), inventory.NewProductInput{Name: "A", Quantity: 4})
	require.NoError(t, err)
	assert.Equal(t, base.Add(time.Second), p.CreatedAt)

	// dos intentos descartados: la fecha confirmada es la del tercero
	atomic.StoreInt32(&lr.calls, 0)
	atomic.StoreInt32(&lr.conflicts, 2)
	_, err = uc.CreateDispensation(ctx, meta(), inventory.CreateDispensationInput{PatientID: "pac-1", Items: []inventory.ItemRequest{item(p.ID, 1)}})
	require.NoError(t, err)
	assert.EqualValues(t, 3, atomic.LoadInt32(&lr.calls))

	movs, err := uc.ListMovements(ctx, repository.MovementFilter{ProductID: p.ID})
	require.NoError(t, err)
	require.Len(t, movs, 2)
	assert.Equal(t, base.Add(4*time.Second), byDate(movs)[1].Date)
	assert.Equal(t, 3, replayByDate(t, movs))
}

func TestWithIDGenerator(t *testing.T) {
	var n int64
	gen := func() string { return fmt.Sprintf("id-%d", atomic.AddInt64(&n, 1)) }
	store := memory.NewStore()
	uc := inventory.NewLedgerUseCase(store.TxRunner(), store.Stores(), nil, inventory.WithIDGenerator(gen))
	ctx := context.Background()

	p, err := uc.AddProduct(ctx, meta(), inventory.NewProductInput{Name: "A", Quantity: 3})
	require.NoError(t, err)
	assert.Equal(t, "id-1", p.ID)

	movs, err := uc.ListMovements(ctx, repository.MovementFilter{ProductID: p.ID})
	require.NoError(t, err)
	require.Len(t, movs, 1)
	assert.Equal(t, "id-2", movs[0].ID)
}
