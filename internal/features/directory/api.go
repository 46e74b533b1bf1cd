package directory

import (
	"go-letter/internal/common/api"
	"go-letter/internal/config"
	"go-letter/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type DirectoryApi struct {
	controller *DirectoryController
	config     *config.Config
}

func NewDirectoryApi(controller *DirectoryController, config *config.Config) api.Route {
	return &DirectoryApi{
		controller: controller,
		config:     config,
	}
}

func (h *DirectoryApi) Setup(app *fiber.App) {
	dir := app.Group("/api/directory", middleware.AuthMiddleware(h.config.SkipAuth))

	dir.Get("/positions", h.controller.ListPositions)
	dir.Get("/positions/:id/occupants", h.controller.GetOccupants)
	dir.Post("/superior", h.controller.GetSuperior)

	// Structure management is admin-only
	dir.Post("/positions", middleware.RequireAdmin(), h.controller.CreatePosition)
	dir.Put("/positions/:id", middleware.RequireAdmin(), h.controller.UpdatePosition)
}
