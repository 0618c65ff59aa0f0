package inventory

import "github.com/jhoicas/Farmacia-api/internal/domain/entity"

// LowStockThreshold cantidad a partir de la cual un lote se considera "Em Estoque".
const LowStockThreshold = 20

// DeriveStatus implementa la clasificación de stock (servicio de dominio, sin efectos).
// 0 → Sem Estoque; 1..19 → Baixo Estoque; >= 20 → Em Estoque.
func DeriveStatus(quantity int) entity.StockStatus {
	switch {
	case quantity <= 0:
		return entity.StatusSemEstoque
	case quantity < LowStockThreshold:
		return entity.StatusBaixoEstoque
	default:
		return entity.StatusEmEstoque
	}
}
