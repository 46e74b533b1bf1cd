package user

import (
	"go-letter/internal/common/api"
	"go-letter/internal/config"
	"go-letter/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type UserApi struct {
	controller *UserController
	config     *config.Config
}

func NewUserApi(controller *UserController, config *config.Config) api.Route {
	return &UserApi{
		controller: controller,
		config:     config,
	}
}

func (h *UserApi) Setup(app *fiber.App) {
	users := app.Group("/api/users", middleware.AuthMiddleware(h.config.SkipAuth))

	users.Get("/me", h.controller.Me)
	users.Get("/", h.controller.ListUsers)
	users.Get("/:id", h.controller.GetUser)

	users.Post("/", middleware.RequireAdmin(), h.controller.CreateUser)
	users.Put("/:id", middleware.RequireAdmin(), h.controller.UpdateProfile)
	users.Put("/:id/status", middleware.RequireAdmin(), h.controller.UpdateStatus)
}
