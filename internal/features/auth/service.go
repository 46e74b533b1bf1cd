package auth

import (
	"context"
	"errors"
	"time"

	"go-letter/internal/common/models"
	"go-letter/internal/features/audit"
	"go-letter/internal/features/user"
	"go-letter/pkg/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type AuthService interface {
	Register(ctx context.Context, req *RegisterRequest) (*models.User, error)
	Login(ctx context.Context, username, password string) (string, *models.User, error)
}

type AuthServiceImpl struct {
	UserRepo     user.UserRepository
	AuditService audit.AuditService
}

func NewAuthService(userRepo user.UserRepository, auditService audit.AuditService) AuthService {
	return &AuthServiceImpl{
		UserRepo:     userRepo,
		AuditService: auditService,
	}
}

func (s *AuthServiceImpl) Register(ctx context.Context, req *RegisterRequest) (*models.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	newUser := models.User{
		ID:            primitive.NewObjectID(),
		Username:      req.Username,
		Password:      string(hashed),
		Email:         req.Email,
		FullName:      req.FullName,
		Rank:          req.Rank,
		EmployeeNo:    req.EmployeeNo,
		Unit:          req.Unit,
		PositionTitle: req.PositionTitle,
		Status:        "active",
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	if req.PositionID != "" {
		if oid, err := primitive.ObjectIDFromHex(req.PositionID); err == nil {
			newUser.PositionID = &oid
		}
	}

	if err := s.UserRepo.Create(ctx, &newUser); err != nil {
		return nil, err
	}

	changes := map[string]models.Change{
		"username": {New: req.Username},
		"email":    {New: req.Email},
	}
	_ = s.AuditService.LogChange(ctx, models.AuditActionCreate, "user", newUser.ID.Hex(), changes)

	return &newUser, nil
}

func (s *AuthServiceImpl) Login(ctx context.Context, username, password string) (string, *models.User, error) {
	usr, err := s.UserRepo.FindByUsername(ctx, username)
	if err != nil {
		return "", nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(usr.Password), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	if usr.Status != "active" {
		return "", nil, errors.New("account inactive")
	}

	token, err := utils.GenerateToken(usr.ID, usr.IsAdmin)
	if err != nil {
		return "", nil, err
	}

	_ = s.UserRepo.UpdateLastLogin(ctx, usr.ID.Hex())
	_ = s.AuditService.LogChange(ctx, models.AuditActionLogin, "user", usr.ID.Hex(), nil)

	return token, usr, nil
}
