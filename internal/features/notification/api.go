package notification

import (
	"go-letter/internal/common/api"
	"go-letter/internal/config"
	"go-letter/internal/middleware"
	"go-letter/pkg/utils"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

type NotificationApi struct {
	controller *NotificationController
	config     *config.Config
}

func NewNotificationApi(controller *NotificationController, config *config.Config) api.Route {
	return &NotificationApi{
		controller: controller,
		config:     config,
	}
}

func (h *NotificationApi) Setup(app *fiber.App) {
	group := app.Group("/api/notifications", middleware.AuthMiddleware(h.config.SkipAuth))

	group.Get("/", h.controller.List)
	group.Get("/unread-count", h.controller.GetUnreadCount)
	group.Put("/:id/read", h.controller.MarkAsRead)
	group.Post("/mark-all-read", h.controller.MarkAllAsRead)

	// The websocket handler cannot read fiber locals after the upgrade, so
	// the authenticated user id is copied over beforehand.
	app.Get("/api/ws", middleware.AuthMiddleware(h.config.SkipAuth), func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		if claims, ok := c.Locals(utils.UserClaimsKey).(*utils.UserClaims); ok {
			c.Locals("userID", claims.UserID)
		}
		return websocket.New(h.controller.HandleWebSocket)(c)
	})
}
