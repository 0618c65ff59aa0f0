package entity

import (
	"fmt"
	"time"
)

// MovementType sentido del movimiento.
type MovementType string

const (
	MovementTypeEntrada MovementType = "Entrada"
	MovementTypeSaida   MovementType = "Saída"
)

// MovementReason motivo del movimiento (conjunto cerrado).
type MovementReason string

const (
	ReasonEntradaInicial        MovementReason = "Entrada Inicial"
	ReasonAjusteInventario      MovementReason = "Ajuste de Inventário"
	ReasonSaidaRemessa          MovementReason = "Saída por Remessa"
	ReasonSaidaDispensacao      MovementReason = "Saída por Dispensação"
	ReasonEstornoRemessa        MovementReason = "Estorno de Remessa"
	ReasonExclusaoProduto       MovementReason = "Exclusão de Produto"
	ReasonAjusteInventarioZerar MovementReason = "Ajuste de Inventário (Zerar)"
)

var validReasons = map[MovementReason]struct{}{
	ReasonEntradaInicial:        {},
	ReasonAjusteInventario:      {},
	ReasonSaidaRemessa:          {},
	ReasonSaidaDispensacao:      {},
	ReasonEstornoRemessa:        {},
	ReasonExclusaoProduto:       {},
	ReasonAjusteInventarioZerar: {},
}

// Valid indica si el motivo pertenece al conjunto conocido.
func (r MovementReason) Valid() bool {
	_, ok := validReasons[r]
	return ok
}

// ParseMovementType valida un tipo leído de almacenamiento.
func ParseMovementType(s string) (MovementType, error) {
	switch t := MovementType(s); t {
	case MovementTypeEntrada, MovementTypeSaida:
		return t, nil
	}
	return "", fmt.Errorf("tipo de movimiento desconocido: %q", s)
}

// ParseMovementReason valida un motivo leído de almacenamiento.
func ParseMovementReason(s string) (MovementReason, error) {
	r := MovementReason(s)
	if !r.Valid() {
		return "", fmt.Errorf("motivo de movimiento desconocido: %q", s)
	}
	return r, nil
}

// StockMovement registro inmutable de un cambio de cantidad.
// Seq lo asigna el almacenamiento al anexar y desempata movimientos con la misma fecha.
type StockMovement struct {
	ID             string
	Seq            int64
	ProductID      string
	ProductName    string
	Type           MovementType
	Reason         MovementReason
	QuantityChange int
	QuantityBefore int
	QuantityAfter  int
	Date           time.Time
	User           string
	RelatedID      string
}

// Validate comprueba QuantityAfter == QuantityBefore + QuantityChange y la coherencia del tipo.
func (m *StockMovement) Validate() error {
	if m.ProductID == "" {
		return fmt.Errorf("movimiento sin producto")
	}
	if m.QuantityAfter != m.QuantityBefore+m.QuantityChange {
		return fmt.Errorf("movimiento inconsistente: %d + %d != %d", m.QuantityBefore, m.QuantityChange, m.QuantityAfter)
	}
	if m.QuantityBefore < 0 || m.QuantityAfter < 0 {
		return fmt.Errorf("movimiento con cantidad negativa")
	}
	switch m.Type {
	case MovementTypeEntrada:
		if m.QuantityChange < 0 {
			return fmt.Errorf("entrada con cambio negativo")
		}
	case MovementTypeSaida:
		if m.QuantityChange > 0 {
			return fmt.Errorf("salida con cambio positivo")
		}
	default:
		return fmt.Errorf("tipo de movimiento desconocido: %q", m.Type)
	}
	if !m.Reason.Valid() {
		return fmt.Errorf("motivo de movimiento desconocido: %q", m.Reason)
	}
	return nil
}

// TypeForChange devuelve Entrada para cambios positivos y Saída para el resto.
func TypeForChange(change int) MovementType {
	if change > 0 {
		return MovementTypeEntrada
	}
	return MovementTypeSaida
}
