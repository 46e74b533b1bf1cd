package main

import (
	"context"
	"time"

	"go-letter/internal/common/models"
	"go-letter/internal/config"
	"go-letter/internal/database"
	"go-letter/internal/features/directory"
	"go-letter/internal/features/template"
	"go-letter/internal/features/user"
	"go-letter/internal/features/workflow"
	"go-letter/internal/logger"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Seed bootstraps a small organization: a three-level position hierarchy,
// one user per position, an admin account, and a letter template routed
// through the hierarchy.
func Seed(
	lc fx.Lifecycle,
	userRepo user.UserRepository,
	directoryRepo directory.DirectoryRepository,
	templateRepo template.TemplateRepository,
	logger *zap.Logger,
	shutdowner fx.Shutdowner,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				defer func() {
					if err := shutdowner.Shutdown(); err != nil {
						logger.Error("Failed to shutdown", zap.Error(err))
					}
				}()

				ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
				defer cancel()

				logger.Info("Seeding database...")

				director := &models.Position{Name: "Director", Unit: "Directorate"}
				if err := directoryRepo.CreatePosition(ctx, director); err != nil {
					logger.Error("seed director position", zap.Error(err))
					return
				}
				head := &models.Position{Name: "Head of Finance", Unit: "Finance", ParentID: &director.ID}
				if err := directoryRepo.CreatePosition(ctx, head); err != nil {
					logger.Error("seed head position", zap.Error(err))
					return
				}
				staff := &models.Position{Name: "Finance Staff", Unit: "Finance", ParentID: &head.ID}
				if err := directoryRepo.CreatePosition(ctx, staff); err != nil {
					logger.Error("seed staff position", zap.Error(err))
					return
				}

				mkUser := func(username, fullName string, pos *models.Position, admin bool) error {
					hashed, err := bcrypt.GenerateFromPassword([]byte("changeme"), bcrypt.DefaultCost)
					if err != nil {
						return err
					}
					u := &models.User{
						ID:        primitive.NewObjectID(),
						Username:  username,
						Password:  string(hashed),
						Email:     username + "@example.org",
						FullName:  fullName,
						Status:    "active",
						IsAdmin:   admin,
						CreatedAt: time.Now(),
						UpdatedAt: time.Now(),
					}
					if pos != nil {
						u.PositionID = &pos.ID
						u.PositionTitle = pos.Name
						u.Unit = pos.Unit
					}
					return userRepo.Create(ctx, u)
				}

				seeds := []struct {
					username string
					fullName string
					pos      *models.Position
					admin    bool
				}{
					{"admin", "System Administrator", nil, true},
					{"director", "Dana Director", director, false},
					{"finance.head", "Harper Head", head, false},
					{"finance.staff", "Sam Staff", staff, false},
				}
				for _, s := range seeds {
					if err := mkUser(s.username, s.fullName, s.pos, s.admin); err != nil {
						logger.Error("seed user", zap.String("username", s.username), zap.Error(err))
						return
					}
				}

				tpl := &template.LetterTemplate{
					Name:       "Budget Request",
					LetterType: "budget-request",
					Active:     true,
					Steps: []workflow.StepSpec{
						{
							ID: uuid.NewString(), Name: "Head of Finance", Order: 1,
							Kind: workflow.StepKindSequential, Required: true,
							Approver: workflow.ApproverSpec{Type: workflow.ApproverByPosition, PositionID: head.ID.Hex()},
						},
						{
							ID: uuid.NewString(), Name: "Director", Order: 2,
							Kind: workflow.StepKindSequential, Required: true,
							Approver: workflow.ApproverSpec{Type: workflow.ApproverByPosition, PositionID: director.ID.Hex()},
						},
					},
					SignatureTargets: []models.SignatureTarget{
						{Key: "sender", Label: "Drafter", X: 20, Y: 85, StepOrder: 0},
						{Key: "head", Label: "Head of Finance", X: 50, Y: 85, StepOrder: 1, Placeholder: true},
						{Key: "director", Label: "Director", X: 80, Y: 85, StepOrder: 2, Placeholder: true},
					},
				}
				if err := templateRepo.Create(ctx, tpl); err != nil {
					logger.Error("seed template", zap.Error(err))
					return
				}

				logger.Info("Seeding completed",
					zap.String("template", tpl.LetterType),
					zap.Int("users", len(seeds)))
			}()
			return nil
		},
	})
}

func main() {
	app := fx.New(
		fx.Provide(
			config.LoadConfig,
			logger.NewLogger,
			database.NewDatabase,
			user.NewUserRepository,
			directory.NewDirectoryRepository,
			template.NewTemplateRepository,
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(Seed),
	)

	app.Run()
}
