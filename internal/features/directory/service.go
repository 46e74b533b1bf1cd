package directory

import (
	"context"

	"go-letter/internal/common/models"
	"go-letter/internal/features/workflow"
)

// DirectoryService answers "who occupies this position" and "who is this
// person's superior". It is the concrete organization directory behind the
// workflow.Directory interface.
type DirectoryService interface {
	workflow.Directory

	CreatePosition(ctx context.Context, pos *models.Position) error
	UpdatePosition(ctx context.Context, id string, pos *models.Position) error
	GetPosition(ctx context.Context, id string) (*models.Position, error)
	ListPositions(ctx context.Context) ([]models.Position, error)
}

type DirectoryServiceImpl struct {
	Repo DirectoryRepository
}

func NewDirectoryService(repo DirectoryRepository) DirectoryService {
	return &DirectoryServiceImpl{Repo: repo}
}

func (s *DirectoryServiceImpl) GetUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.Repo.FindUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, workflow.ErrResolutionEmpty
	}
	return user, nil
}

func (s *DirectoryServiceImpl) ResolvePosition(ctx context.Context, positionID string) ([]models.User, error) {
	// Zero occupants is a valid, displayable result.
	return s.Repo.FindUsersByPosition(ctx, positionID)
}

// GetSuperior climbs one level up the hierarchy from the reference: user →
// its position → that position's parent → the parent's occupants.
func (s *DirectoryServiceImpl) GetSuperior(ctx context.Context, ref workflow.Reference) (*models.Position, []models.User, error) {
	positionID := ref.PositionID
	if ref.UserID != "" {
		user, err := s.Repo.FindUser(ctx, ref.UserID)
		if err != nil {
			return nil, nil, err
		}
		if user == nil || user.PositionID == nil {
			return nil, nil, workflow.ErrResolutionEmpty
		}
		positionID = user.PositionID.Hex()
	}

	pos, err := s.Repo.GetPosition(ctx, positionID)
	if err != nil {
		return nil, nil, err
	}
	if pos == nil || pos.ParentID == nil {
		return nil, nil, workflow.ErrResolutionEmpty
	}

	parent, err := s.Repo.GetPosition(ctx, pos.ParentID.Hex())
	if err != nil {
		return nil, nil, err
	}
	if parent == nil {
		return nil, nil, workflow.ErrResolutionEmpty
	}

	occupants, err := s.Repo.FindUsersByPosition(ctx, parent.ID.Hex())
	if err != nil {
		return nil, nil, err
	}
	return parent, occupants, nil
}

func (s *DirectoryServiceImpl) CreatePosition(ctx context.Context, pos *models.Position) error {
	return s.Repo.CreatePosition(ctx, pos)
}

func (s *DirectoryServiceImpl) UpdatePosition(ctx context.Context, id string, pos *models.Position) error {
	return s.Repo.UpdatePosition(ctx, id, pos)
}

func (s *DirectoryServiceImpl) GetPosition(ctx context.Context, id string) (*models.Position, error) {
	return s.Repo.GetPosition(ctx, id)
}

func (s *DirectoryServiceImpl) ListPositions(ctx context.Context) ([]models.Position, error) {
	return s.Repo.ListPositions(ctx)
}
