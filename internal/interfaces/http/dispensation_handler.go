package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/Farmacia-api/internal/application/dto"
	"github.com/jhoicas/Farmacia-api/internal/application/inventory"
	"github.com/jhoicas/Farmacia-api/pkg/logger"
)

// DispensationHandler dispensaciones a pacientes.
type DispensationHandler struct {
	uc  *inventory.LedgerUseCase
	log *logger.Logger
}

// NewDispensationHandler construye el handler.
func NewDispensationHandler(uc *inventory.LedgerUseCase, log *logger.Logger) *DispensationHandler {
	return &DispensationHandler{uc: uc, log: log}
}

// Create godoc
// @Summary      Registrar dispensación
// @Tags         dispensations
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateDispensationRequest  true  "Dispensación"
// @Success      201   {object}  dto.DispensationResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.InsufficientStockResponse
// @Router       /api/dispensations [post]
func (h *DispensationHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateDispensationRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.uc.CreateDispensationFromRequest(c.UserContext(), mutationMeta(c), in)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// GetByID godoc
// @Summary      Obtener dispensación por ID
// @Tags         dispensations
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la dispensación"
// @Success      200  {object}  dto.DispensationResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/dispensations/{id} [get]
func (h *DispensationHandler) GetByID(c *fiber.Ctx) error {
	d, err := h.uc.GetDispensation(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.DispensationFromEntity(d))
}

// List godoc
// @Summary      Listar dispensaciones
// @Tags         dispensations
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  dto.DispensationListResponse
// @Router       /api/dispensations [get]
func (h *DispensationHandler) List(c *fiber.Ctx) error {
	var q dto.DispensationListQuery
	if err := c.QueryParser(&q); err != nil {
		return badQuery(c)
	}
	out, err := h.uc.ListDispensationsFromQuery(c.UserContext(), q)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(out)
}
