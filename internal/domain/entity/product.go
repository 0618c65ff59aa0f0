package entity

import "time"

// Estados de stock derivados de la cantidad (ver inventory.DeriveStatus).
type StockStatus string

const (
	StatusSemEstoque   StockStatus = "Sem Estoque"
	StatusBaixoEstoque StockStatus = "Baixo Estoque"
	StatusEmEstoque    StockStatus = "Em Estoque"
)

// Valid indica si el estado es uno de los conocidos.
func (s StockStatus) Valid() bool {
	switch s {
	case StatusSemEstoque, StatusBaixoEstoque, StatusEmEstoque:
		return true
	}
	return false
}

// Product representa un lote de producto (nombre + presentación + lote).
// Quantity nunca es negativa; Status solo lo asigna el motor de inventario.
// Version se incrementa en cada escritura y sirve de token de concurrencia optimista.
type Product struct {
	ID           string
	Name         string
	Category     string
	Presentation string
	Batch        string
	ExpiryDate   string
	Quantity     int
	Status       StockStatus
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Snapshot copia los campos desnormalizados que viajan en órdenes y dispensaciones.
func (p *Product) Snapshot(quantity int) LineItem {
	return LineItem{
		ProductID:    p.ID,
		Name:         p.Name,
		Quantity:     quantity,
		Batch:        p.Batch,
		ExpiryDate:   p.ExpiryDate,
		Presentation: p.Presentation,
		Category:     p.Category,
	}
}

// Clone devuelve una copia independiente.
func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
