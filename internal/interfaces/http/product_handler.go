package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/Farmacia-api/internal/application/dto"
	"github.com/jhoicas/Farmacia-api/internal/application/inventory"
	"github.com/jhoicas/Farmacia-api/pkg/logger"
)

// ProductHandler maneja las peticiones HTTP de productos (protegido).
type ProductHandler struct {
	uc  *inventory.LedgerUseCase
	log *logger.Logger
}

// NewProductHandler construye el handler.
func NewProductHandler(uc *inventory.LedgerUseCase, log *logger.Logger) *ProductHandler {
	return &ProductHandler{uc: uc, log: log}
}

// Create godoc
// @Summary      Dar de alta un producto (lote)
// @Description  Registra el movimiento "Entrada Inicial" con la cantidad inicial.
// @Tags         products
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateProductRequest  true  "Datos del producto"
// @Success      201   {object}  dto.ProductResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/products [post]
func (h *ProductHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateProductRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.uc.AddProductFromRequest(c.UserContext(), mutationMeta(c), in)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// GetByID godoc
// @Summary      Obtener producto por ID
// @Tags         products
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del producto"
// @Success      200  {object}  dto.ProductResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/products/{id} [get]
func (h *ProductHandler) GetByID(c *fiber.Ctx) error {
	p, err := h.uc.GetProduct(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.ProductFromEntity(p))
}

// List godoc
// @Summary      Listar productos
// @Tags         products
// @Security     Bearer
// @Produce      json
// @Param        category  query  string  false  "Categoría"
// @Param        status    query  string  false  "EmEstoque | BaixoEstoque | SemEstoque"
// @Param        search    query  string  false  "Texto en nombre o lote"
// @Param        limit     query  int     false  "Límite"
// @Param        offset    query  int     false  "Desplazamiento"
// @Success      200  {object}  dto.ProductListResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/products [get]
func (h *ProductHandler) List(c *fiber.Ctx) error {
	var q dto.ProductListQuery
	if err := c.QueryParser(&q); err != nil {
		return badQuery(c)
	}
	out, err := h.uc.ListProductsFromQuery(c.UserContext(), q)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(out)
}

// Update godoc
// @Summary      Actualizar producto
// @Description  Un cambio de cantidad registra un "Ajuste de Inventário".
// @Tags         products
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                    true  "ID del producto"
// @Param        body  body  dto.UpdateProductRequest  true  "Campos a cambiar"
// @Success      200   {object}  dto.ProductResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/products/{id} [put]
func (h *ProductHandler) Update(c *fiber.Ctx) error {
	var in dto.UpdateProductRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.uc.UpdateProductFromRequest(c.UserContext(), mutationMeta(c), c.Params("id"), in)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(out)
}

// Ledger godoc
// @Summary      Auditar historial del producto
// @Tags         products
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del producto"
// @Success      200  {object}  dto.LedgerCheckResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/products/{id}/ledger [get]
func (h *ProductHandler) Ledger(c *fiber.Ctx) error {
	out, err := h.uc.VerifyProductLedgerResponse(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(out)
}

// ZeroStock godoc
// @Summary      Poner en cero el stock (por categoría o todas)
// @Tags         products
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.ZeroStockRequest  false  "Categoría (vacía = todas)"
// @Success      200   {object}  dto.BulkResponse
// @Failure      403   {object}  dto.ErrorResponse
// @Failure      422   {object}  dto.BulkResponse
// @Router       /api/products/zero-stock [post]
func (h *ProductHandler) ZeroStock(c *fiber.Ctx) error {
	var in dto.ZeroStockRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return badBody(c)
		}
	}
	n, err := h.uc.ZeroStock(c.UserContext(), mutationMeta(c), in.Category)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.BulkResponse{Count: n})
}

// BulkDelete godoc
// @Summary      Eliminar productos
// @Description  Cada producto con stock registra una salida "Exclusão de Produto".
// @Tags         products
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.BulkDeleteRequest  true  "IDs a eliminar"
// @Success      200   {object}  dto.BulkResponse
// @Failure      403   {object}  dto.ErrorResponse
// @Failure      422   {object}  dto.BulkResponse
// @Router       /api/products/bulk-delete [post]
func (h *ProductHandler) BulkDelete(c *fiber.Ctx) error {
	var in dto.BulkDeleteRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	n, err := h.uc.DeleteProducts(c.UserContext(), mutationMeta(c), in.IDs)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.BulkResponse{Count: n})
}
