package letter

import (
	"context"
	"fmt"
	"time"

	"go-letter/internal/common/models"
	"go-letter/internal/database"
	"go-letter/internal/features/workflow"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type LetterRepository interface {
	Create(ctx context.Context, l *Letter) error
	GetByID(ctx context.Context, id string) (*Letter, error)
	UpdateSteps(ctx context.Context, id string, steps []workflow.StepRuntime, nextStepID int) error
	// DecideUpdate persists a decision only while the decided step is still
	// pending in the stored document. A zero match count means another actor
	// decided the step first.
	DecideUpdate(ctx context.Context, id string, stepID int, steps []workflow.StepRuntime, status models.LetterStatus) (bool, error)
	MarkSubmitted(ctx context.Context, id string, status models.LetterStatus) error
	SetSignaturePosition(ctx context.Context, id string, key string, pos models.SignaturePosition) error
	ListBySender(ctx context.Context, senderID string) ([]Letter, error)
	ListPendingForApprover(ctx context.Context, userID string) ([]Letter, error)
	ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]Letter, error)
	List(ctx context.Context, filter bson.M) ([]Letter, error)
	CountByNumberPrefix(ctx context.Context, prefix string) (int64, error)
}

type LetterRepositoryImpl struct {
	Collection *mongo.Collection
}

func NewLetterRepository(mongodb *database.MongodbDB) LetterRepository {
	return &LetterRepositoryImpl{
		Collection: mongodb.DB.Collection("letters"),
	}
}

func (r *LetterRepositoryImpl) Create(ctx context.Context, l *Letter) error {
	if l.ID.IsZero() {
		l.ID = primitive.NewObjectID()
	}
	l.CreatedAt = time.Now()
	l.UpdatedAt = time.Now()
	_, err := r.Collection.InsertOne(ctx, l)
	return err
}

func (r *LetterRepositoryImpl) GetByID(ctx context.Context, id string) (*Letter, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}
	var l Letter
	err = r.Collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&l)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &l, nil
}

func (r *LetterRepositoryImpl) UpdateSteps(ctx context.Context, id string, steps []workflow.StepRuntime, nextStepID int) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}
	update := bson.M{
		"$set": bson.M{
			"steps":        steps,
			"next_step_id": nextStepID,
			"updated_at":   time.Now(),
		},
	}
	_, err = r.Collection.UpdateOne(ctx, bson.M{"_id": oid}, update)
	return err
}

func (r *LetterRepositoryImpl) DecideUpdate(ctx context.Context, id string, stepID int, steps []workflow.StepRuntime, status models.LetterStatus) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, err
	}
	filter := bson.M{
		"_id": oid,
		"steps": bson.M{
			"$elemMatch": bson.M{
				"step_id": stepID,
				"status":  models.ApprovalStatusPending,
			},
		},
	}
	update := bson.M{
		"$set": bson.M{
			"steps":      steps,
			"status":     status,
			"updated_at": time.Now(),
		},
	}
	res, err := r.Collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

func (r *LetterRepositoryImpl) MarkSubmitted(ctx context.Context, id string, status models.LetterStatus) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}
	now := time.Now()
	update := bson.M{
		"$set": bson.M{
			"status":       status,
			"submitted_at": now,
			"updated_at":   now,
		},
	}
	_, err = r.Collection.UpdateOne(ctx, bson.M{"_id": oid}, update)
	return err
}

func (r *LetterRepositoryImpl) SetSignaturePosition(ctx context.Context, id string, key string, pos models.SignaturePosition) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}
	update := bson.M{
		"$set": bson.M{
			fmt.Sprintf("signature_positions.%s", key): pos,
			"updated_at": time.Now(),
		},
	}
	_, err = r.Collection.UpdateOne(ctx, bson.M{"_id": oid}, update)
	return err
}

func (r *LetterRepositoryImpl) ListBySender(ctx context.Context, senderID string) ([]Letter, error) {
	return r.List(ctx, bson.M{"sender_id": senderID})
}

func (r *LetterRepositoryImpl) ListPendingForApprover(ctx context.Context, userID string) ([]Letter, error) {
	filter := bson.M{
		"status": models.LetterStatusPending,
		"steps": bson.M{
			"$elemMatch": bson.M{
				"approver_user_id": userID,
				"status":           models.ApprovalStatusPending,
			},
		},
	}
	return r.List(ctx, filter)
}

func (r *LetterRepositoryImpl) ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]Letter, error) {
	filter := bson.M{
		"status":       models.LetterStatusPending,
		"submitted_at": bson.M{"$lt": cutoff},
	}
	return r.List(ctx, filter)
}

func (r *LetterRepositoryImpl) List(ctx context.Context, filter bson.M) ([]Letter, error) {
	cursor, err := r.Collection.Find(ctx, filter, options.Find().SetSort(bson.M{"created_at": -1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var letters []Letter
	if err = cursor.All(ctx, &letters); err != nil {
		return nil, err
	}
	return letters, nil
}

func (r *LetterRepositoryImpl) CountByNumberPrefix(ctx context.Context, prefix string) (int64, error) {
	return r.Collection.CountDocuments(ctx, bson.M{
		"number": bson.M{"$regex": "^" + prefix},
	})
}
