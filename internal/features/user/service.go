package user

import (
	"context"
	"time"

	"go-letter/internal/common/models"
	"go-letter/internal/features/audit"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type UserService interface {
	ListUsers(ctx context.Context, filter map[string]interface{}, page, limit int64) ([]models.User, int64, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	UpdateProfile(ctx context.Context, id string, updates map[string]interface{}) error
	UpdateUserStatus(ctx context.Context, id string, status string) error
}

type UserServiceImpl struct {
	UserRepo     UserRepository
	AuditService audit.AuditService
}

func NewUserService(userRepo UserRepository, auditService audit.AuditService) UserService {
	return &UserServiceImpl{
		UserRepo:     userRepo,
		AuditService: auditService,
	}
}

func (s *UserServiceImpl) ListUsers(ctx context.Context, filter map[string]interface{}, page, limit int64) ([]models.User, int64, error) {
	if filter == nil {
		filter = make(map[string]interface{})
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	offset := (page - 1) * limit
	return s.UserRepo.List(ctx, filter, limit, offset)
}

func (s *UserServiceImpl) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.UserRepo.FindByID(ctx, id)
}

func (s *UserServiceImpl) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	user.UpdatedAt = time.Now()
	if user.Status == "" {
		user.Status = "active"
	}

	if err := s.UserRepo.Create(ctx, user); err != nil {
		return err
	}

	changes := map[string]models.Change{
		"username": {New: user.Username},
		"email":    {New: user.Email},
	}
	_ = s.AuditService.LogChange(ctx, models.AuditActionCreate, "user", user.ID.Hex(), changes)
	return nil
}

// UpdateProfile applies the editable profile fields. Position and signature
// reference changes flow through here when someone moves posts.
func (s *UserServiceImpl) UpdateProfile(ctx context.Context, id string, updates map[string]interface{}) error {
	existing, err := s.UserRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	set := bson.M{"updated_at": time.Now()}
	changes := make(map[string]models.Change)

	if v, ok := updates["full_name"].(string); ok && v != existing.FullName {
		changes["full_name"] = models.Change{Old: existing.FullName, New: v}
		set["full_name"] = v
	}
	if v, ok := updates["email"].(string); ok && v != existing.Email {
		changes["email"] = models.Change{Old: existing.Email, New: v}
		set["email"] = v
	}
	if v, ok := updates["rank"].(string); ok && v != existing.Rank {
		changes["rank"] = models.Change{Old: existing.Rank, New: v}
		set["rank"] = v
	}
	if v, ok := updates["unit"].(string); ok && v != existing.Unit {
		changes["unit"] = models.Change{Old: existing.Unit, New: v}
		set["unit"] = v
	}
	if v, ok := updates["position_title"].(string); ok && v != existing.PositionTitle {
		changes["position_title"] = models.Change{Old: existing.PositionTitle, New: v}
		set["position_title"] = v
	}
	if v, ok := updates["position_id"].(string); ok {
		if oid, err := primitive.ObjectIDFromHex(v); err == nil {
			set["position_id"] = oid
			changes["position_id"] = models.Change{New: v}
		}
	}
	if v, ok := updates["signature_image_ref"].(string); ok && v != existing.SignatureImageRef {
		changes["signature_image_ref"] = models.Change{Old: existing.SignatureImageRef, New: v}
		set["signature_image_ref"] = v
	}

	if len(changes) == 0 {
		return nil
	}
	if err := s.UserRepo.Update(ctx, id, set); err != nil {
		return err
	}
	_ = s.AuditService.LogChange(ctx, models.AuditActionUpdate, "user", id, changes)
	return nil
}

func (s *UserServiceImpl) UpdateUserStatus(ctx context.Context, id string, status string) error {
	existing, err := s.UserRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if existing.Status == status {
		return nil
	}
	if err := s.UserRepo.Update(ctx, id, bson.M{"status": status, "updated_at": time.Now()}); err != nil {
		return err
	}
	_ = s.AuditService.LogChange(ctx, models.AuditActionUpdate, "user", id, map[string]models.Change{
		"status": {Old: existing.Status, New: status},
	})
	return nil
}
