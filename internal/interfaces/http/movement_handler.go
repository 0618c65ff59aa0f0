package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/Farmacia-api/internal/application/dto"
	"github.com/jhoicas/Farmacia-api/internal/application/inventory"
	"github.com/jhoicas/Farmacia-api/pkg/logger"
)

// MovementHandler consulta del historial (solo lectura).
type MovementHandler struct {
	uc  *inventory.LedgerUseCase
	log *logger.Logger
}

// NewMovementHandler construye el handler.
func NewMovementHandler(uc *inventory.LedgerUseCase, log *logger.Logger) *MovementHandler {
	return &MovementHandler{uc: uc, log: log}
}

// List godoc
// @Summary      Listar movimientos de stock
// @Description  Orden: fecha descendente. Fechas en RFC3339 o YYYY-MM-DD.
// @Tags         movements
// @Security     Bearer
// @Produce      json
// @Param        from        query  string  false  "Desde"
// @Param        to          query  string  false  "Hasta"
// @Param        product_id  query  string  false  "Producto"
// @Param        related_id  query  string  false  "Operación relacionada"
// @Param        limit       query  int     false  "Límite"
// @Param        offset      query  int     false  "Desplazamiento"
// @Success      200  {object}  dto.MovementListResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/movements [get]
func (h *MovementHandler) List(c *fiber.Ctx) error {
	var q dto.MovementListQuery
	if err := c.QueryParser(&q); err != nil {
		return badQuery(c)
	}
	out, err := h.uc.ListMovementsFromQuery(c.UserContext(), q)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(out)
}
