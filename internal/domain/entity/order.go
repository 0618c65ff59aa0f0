package entity

import (
	"fmt"
	"time"
)

// OrderStatus estado de una remesa. Es solo metadato: no afecta el stock.
type OrderStatus string

const (
	OrderStatusEmAnalise            OrderStatus = "Em análise"
	OrderStatusAtendido             OrderStatus = "Atendido"
	OrderStatusAtendidoParcialmente OrderStatus = "Atendido Parcialmente"
	OrderStatusNaoAtendido          OrderStatus = "Não Atendido"
	OrderStatusCancelado            OrderStatus = "Cancelado"
)

// ParseOrderStatus valida un estado recibido del exterior o de almacenamiento.
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch st := OrderStatus(s); st {
	case OrderStatusEmAnalise, OrderStatusAtendido, OrderStatusAtendidoParcialmente,
		OrderStatusNaoAtendido, OrderStatusCancelado:
		return st, nil
	}
	return "", fmt.Errorf("estado de orden desconocido: %q", s)
}

// Order remesa de ítems desde el almacén central hacia una unidad receptora.
type Order struct {
	ID        string
	UnitID    string
	Type      string
	Status    OrderStatus
	Items     []LineItem
	Notes     string
	SentDate  *time.Time
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}
