package letter

import (
	"go-letter/internal/common/api"
	"go-letter/internal/config"
	"go-letter/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type LetterApi struct {
	controller *LetterController
	config     *config.Config
}

func NewLetterApi(controller *LetterController, config *config.Config) api.Route {
	return &LetterApi{
		controller: controller,
		config:     config,
	}
}

func (h *LetterApi) Setup(app *fiber.App) {
	letters := app.Group("/api/letters", middleware.AuthMiddleware(h.config.SkipAuth))

	letters.Post("/", h.controller.CreateLetter)
	letters.Get("/inbox", h.controller.Inbox)
	letters.Get("/outbox", h.controller.Outbox)
	letters.Get("/:id", h.controller.GetLetter)

	letters.Get("/:id/steps/:stepId/candidates", h.controller.Candidates)
	letters.Put("/:id/steps/assign", h.controller.AssignApprover)
	letters.Post("/:id/steps", h.controller.InsertStep)
	letters.Delete("/:id/steps/:stepId", h.controller.RemoveStep)

	letters.Post("/:id/submit", h.controller.Submit)
	letters.Post("/:id/decide", h.controller.Decide)

	letters.Put("/:id/signature-position", h.controller.PlaceSignature)
	letters.Get("/:id/signatures", h.controller.RenderSignatures)
}
