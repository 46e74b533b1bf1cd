package main

import (
	"context"
	"fmt"
	"log"

	common_api "go-letter/internal/common/api"
	"go-letter/internal/config"
	"go-letter/internal/database"
	"go-letter/internal/features/audit"
	"go-letter/internal/features/auth"
	"go-letter/internal/features/directory"
	"go-letter/internal/features/letter"
	"go-letter/internal/features/notification"
	"go-letter/internal/features/reminder"
	"go-letter/internal/features/report"
	"go-letter/internal/features/system"
	"go-letter/internal/features/template"
	"go-letter/internal/features/user"
	"go-letter/internal/features/workflow"
	"go-letter/internal/logger"
	"go-letter/internal/middleware"
	"go-letter/pkg/utils"

	_ "go-letter/docs" // Import swagger docs

	"github.com/gofiber/fiber/v2"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// NewFiberServer creates a new Fiber app instance
func NewFiberServer() *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(middleware.CORSMiddleware())

	return app
}

// AsRoute is a helper function to reduce boilerplate.
// It tags the constructor so Fx knows to add it to the "routes" group.
func AsRoute(f any) any {
	return fx.Annotate(
		f,
		fx.As(new(common_api.Route)),
		fx.ResultTags(`group:"routes"`),
	)
}

// RegisterAllRoutes takes the group "routes" (slice of interfaces)
// and calls Setup() on each one.
func RegisterAllRoutes(app *fiber.App, routes []common_api.Route) {
	for _, route := range routes {
		route.Setup(app)
	}
	log.Printf("Registered %d route groups\n", len(routes))
}

var RegisterAllRoutesWithAnnotation = fx.Annotate(
	RegisterAllRoutes,
	fx.ParamTags(``, `group:"routes"`),
)

// StartServer creates a lifecycle hook to start Fiber in a goroutine
// and shut it down when the app exits.
func StartServer(lc fx.Lifecycle, app *fiber.App, cfg *config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				port := fmt.Sprintf(":%s", cfg.Port)
				if err := app.Listen(port); err != nil {
					log.Fatalf("Server failed to start: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.Shutdown()
		},
	})
}

// @title           Letter Routing API
// @version         1.0
// @description     Letter approval routing and signature placement service.

// @host            localhost:8080
// @BasePath        /
func main() {
	app := fx.New(
		fx.Provide(
			config.LoadConfig,
			logger.NewLogger,
			NewFiberServer,
			database.NewDatabase,

			// Repositories
			user.NewUserRepository,
			audit.NewAuditRepository,
			directory.NewDirectoryRepository,
			template.NewTemplateRepository,
			letter.NewLetterRepository,
			notification.NewNotificationRepository,

			// Services
			audit.NewAuditService,
			auth.NewAuthService,
			user.NewUserService,
			directory.NewDirectoryService,
			template.NewTemplateService,
			notification.NewHub,
			notification.NewNotificationService,
			letter.NewLetterService,
			report.NewReportService,
			reminder.NewReminderService,

			// Interface adapters
			func(s directory.DirectoryService) workflow.Directory { return s },
			func(r user.UserRepository) audit.UserFinder { return r },

			// Controllers
			auth.NewAuthController,
			user.NewUserController,
			audit.NewAuditController,
			directory.NewDirectoryController,
			template.NewTemplateController,
			letter.NewLetterController,
			notification.NewNotificationController,
			report.NewReportController,
			system.NewDebugController,

			// API routes
			AsRoute(auth.NewAuthApi),
			AsRoute(user.NewUserApi),
			AsRoute(audit.NewAuditApi),
			AsRoute(directory.NewDirectoryApi),
			AsRoute(template.NewTemplateApi),
			AsRoute(letter.NewLetterApi),
			AsRoute(notification.NewNotificationApi),
			AsRoute(report.NewReportApi),
			AsRoute(system.NewDebugApi),
			AsRoute(system.NewHealthApi),
			AsRoute(system.NewSwaggerApi),
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(
			func(cfg *config.Config) { utils.SetSecret(cfg.JWTSecret) },
			RegisterAllRoutesWithAnnotation,
			StartServer,
			// Instantiating the reminder service arms its scheduler hooks.
			func(*reminder.ReminderService) {},
		),
	)

	app.Run()
}
