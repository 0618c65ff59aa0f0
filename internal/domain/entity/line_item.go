package entity

// LineItem ítem de una orden o dispensación. Guarda una foto del producto al momento
// de la transacción; con ella DeleteOrder puede recrear un producto ya eliminado.
type LineItem struct {
	ProductID    string
	Name         string
	Quantity     int
	Batch        string
	ExpiryDate   string
	Presentation string
	Category     string
}
