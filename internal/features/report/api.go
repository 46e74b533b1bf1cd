package report

import (
	"go-letter/internal/common/api"
	"go-letter/internal/config"
	"go-letter/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type ReportApi struct {
	controller *ReportController
	config     *config.Config
}

func NewReportApi(controller *ReportController, config *config.Config) api.Route {
	return &ReportApi{
		controller: controller,
		config:     config,
	}
}

func (h *ReportApi) Setup(app *fiber.App) {
	reports := app.Group("/api/reports", middleware.AuthMiddleware(h.config.SkipAuth), middleware.RequireAdmin())

	reports.Get("/register", h.controller.Register)
	reports.Get("/register/export", h.controller.ExportRegister)
}
