package directory

import (
	"context"
	"time"

	"go-letter/internal/common/models"
	"go-letter/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type DirectoryRepository interface {
	CreatePosition(ctx context.Context, pos *models.Position) error
	UpdatePosition(ctx context.Context, id string, pos *models.Position) error
	GetPosition(ctx context.Context, id string) (*models.Position, error)
	ListPositions(ctx context.Context) ([]models.Position, error)

	FindUser(ctx context.Context, id string) (*models.User, error)
	FindUsersByPosition(ctx context.Context, positionID string) ([]models.User, error)
}

type DirectoryRepositoryImpl struct {
	Positions *mongo.Collection
	Users     *mongo.Collection
}

func NewDirectoryRepository(mongodb *database.MongodbDB) DirectoryRepository {
	return &DirectoryRepositoryImpl{
		Positions: mongodb.DB.Collection("positions"),
		Users:     mongodb.DB.Collection("users"),
	}
}

func (r *DirectoryRepositoryImpl) CreatePosition(ctx context.Context, pos *models.Position) error {
	if pos.ID.IsZero() {
		pos.ID = primitive.NewObjectID()
	}
	pos.CreatedAt = time.Now()
	pos.UpdatedAt = time.Now()
	_, err := r.Positions.InsertOne(ctx, pos)
	return err
}

func (r *DirectoryRepositoryImpl) UpdatePosition(ctx context.Context, id string, pos *models.Position) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}
	update := bson.M{
		"$set": bson.M{
			"name":       pos.Name,
			"unit":       pos.Unit,
			"parent_id":  pos.ParentID,
			"updated_at": time.Now(),
		},
	}
	_, err = r.Positions.UpdateOne(ctx, bson.M{"_id": oid}, update)
	return err
}

func (r *DirectoryRepositoryImpl) GetPosition(ctx context.Context, id string) (*models.Position, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}
	var pos models.Position
	err = r.Positions.FindOne(ctx, bson.M{"_id": oid}).Decode(&pos)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &pos, nil
}

func (r *DirectoryRepositoryImpl) ListPositions(ctx context.Context) ([]models.Position, error) {
	cursor, err := r.Positions.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var positions []models.Position
	if err = cursor.All(ctx, &positions); err != nil {
		return nil, err
	}
	return positions, nil
}

func (r *DirectoryRepositoryImpl) FindUser(ctx context.Context, id string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}
	var user models.User
	err = r.Users.FindOne(ctx, bson.M{"_id": oid}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *DirectoryRepositoryImpl) FindUsersByPosition(ctx context.Context, positionID string) ([]models.User, error) {
	oid, err := primitive.ObjectIDFromHex(positionID)
	if err != nil {
		return nil, err
	}
	cursor, err := r.Users.Find(ctx, bson.M{"position_id": oid, "status": "active"})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var users []models.User
	if err = cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}
