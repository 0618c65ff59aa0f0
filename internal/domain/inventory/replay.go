package inventory

import (
	"fmt"
	"sort"

	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
)

// ReplayResult resultado de reconstruir la cantidad de un producto desde su historial.
type ReplayResult struct {
	Quantity  int // cantidad obtenida encadenando QuantityAfter
	Sum       int // suma de QuantityChange desde 0
	Movements int
}

// Replay reproduce los movimientos de un producto en orden de fecha (Seq desempata) partiendo de 0.
// Falla si algún registro no encadena con el anterior (QuantityBefore distinto del acumulado)
// o si rompe QuantityAfter == QuantityBefore + QuantityChange.
func Replay(movements []*entity.StockMovement) (ReplayResult, error) {
	ordered := make([]*entity.StockMovement, len(movements))
	copy(ordered, movements)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].Date.Equal(ordered[j].Date) {
			return ordered[i].Date.Before(ordered[j].Date)
		}
		return ordered[i].Seq < ordered[j].Seq
	})

	var res ReplayResult
	for _, m := range ordered {
		if m.QuantityBefore != res.Quantity {
			return res, fmt.Errorf("movimiento %s (seq %d): cantidad anterior %d, esperada %d",
				m.ID, m.Seq, m.QuantityBefore, res.Quantity)
		}
		if err := m.Validate(); err != nil {
			return res, fmt.Errorf("movimiento %s (seq %d): %w", m.ID, m.Seq, err)
		}
		res.Quantity = m.QuantityAfter
		res.Sum += m.QuantityChange
		res.Movements++
	}
	return res, nil
}
