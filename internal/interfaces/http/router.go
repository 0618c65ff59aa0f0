package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/Farmacia-api/internal/application/inventory"
	"github.com/jhoicas/Farmacia-api/pkg/jwt"
	"github.com/jhoicas/Farmacia-api/pkg/logger"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Ledger    *inventory.LedgerUseCase
	JWTSecret string
	JWTIssuer string
	Log       *logger.Logger
}

// Router registra las rutas de la API. Todo /api requiere Bearer Token.
func Router(app *fiber.App, deps RouterDeps) {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	api := app.Group("/api", RequestLogger(log.Component("http")), AuthMiddleware(deps.JWTSecret, deps.JWTIssuer))
	bulk := RequireRole(jwt.RoleAdmin, jwt.RoleFarmaceutico)

	// Products
	products := api.Group("/products")
	productHandler := NewProductHandler(deps.Ledger, log)
	products.Post("/", productHandler.Create)
	products.Get("/", productHandler.List)
	products.Post("/bulk-delete", bulk, productHandler.BulkDelete)
	products.Post("/zero-stock", bulk, productHandler.ZeroStock)
	products.Get("/:id", productHandler.GetByID)
	products.Put("/:id", productHandler.Update)
	products.Get("/:id/ledger", productHandler.Ledger)

	// Orders
	orders := api.Group("/orders")
	orderHandler := NewOrderHandler(deps.Ledger, log)
	orders.Post("/", orderHandler.Create)
	orders.Get("/", orderHandler.List)
	orders.Get("/:id", orderHandler.GetByID)
	orders.Patch("/:id/status", orderHandler.UpdateStatus)
	orders.Delete("/:id", orderHandler.Delete)

	// Dispensations
	dispensations := api.Group("/dispensations")
	dispensationHandler := NewDispensationHandler(deps.Ledger, log)
	dispensations.Post("/", dispensationHandler.Create)
	dispensations.Get("/", dispensationHandler.List)
	dispensations.Get("/:id", dispensationHandler.GetByID)

	// Movements
	movementHandler := NewMovementHandler(deps.Ledger, log)
	api.Get("/movements", movementHandler.List)
}
