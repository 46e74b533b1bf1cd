package template

import (
	"go-letter/internal/common/api"
	"go-letter/internal/config"
	"go-letter/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type TemplateApi struct {
	controller *TemplateController
	config     *config.Config
}

func NewTemplateApi(controller *TemplateController, config *config.Config) api.Route {
	return &TemplateApi{
		controller: controller,
		config:     config,
	}
}

func (h *TemplateApi) Setup(app *fiber.App) {
	templates := app.Group("/api/templates", middleware.AuthMiddleware(h.config.SkipAuth))

	templates.Get("/", h.controller.ListTemplates)
	templates.Get("/:id", h.controller.GetTemplate)

	templates.Post("/", middleware.RequireAdmin(), h.controller.CreateTemplate)
	templates.Put("/:id", middleware.RequireAdmin(), h.controller.UpdateTemplate)
	templates.Delete("/:id", middleware.RequireAdmin(), h.controller.DeleteTemplate)
}
