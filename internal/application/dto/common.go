package dto

// PageRequest paginación para listados.
type PageRequest struct {
	Limit  int `query:"limit"`
	Offset int `query:"offset"`
}

// MaxPageLimit tope de elementos por página.
const MaxPageLimit = 500

// DefaultPage aplica valores por defecto y recorta valores fuera de rango.
func (p *PageRequest) DefaultPage() {
	if p.Limit <= 0 {
		p.Limit = 50
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
}

// PageResponse metadatos de página en respuestas.
type PageResponse struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Count  int `json:"count"`
}

// ErrorResponse cuerpo de error HTTP.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// InsufficientStockResponse 409 con el detalle del ítem que no alcanzó.
type InsufficientStockResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	ProductID string `json:"product_id"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// BulkResponse resultado de operaciones masivas (cantidad de productos afectados).
type BulkResponse struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Count   int    `json:"count"`
}

// LineItemRequest ítem pedido; el servidor completa la foto del producto.
type LineItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// LineItemResponse ítem con la foto del producto al momento de la operación.
type LineItemResponse struct {
	ProductID    string `json:"product_id"`
	Name         string `json:"name"`
	Quantity     int    `json:"quantity"`
	Batch        string `json:"batch"`
	ExpiryDate   string `json:"expiry_date"`
	Presentation string `json:"presentation"`
	Category     string `json:"category"`
}
