package template

import (
	"context"
	"time"

	"go-letter/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type TemplateRepository interface {
	Create(ctx context.Context, tpl *LetterTemplate) error
	Update(ctx context.Context, id string, tpl *LetterTemplate) error
	GetByID(ctx context.Context, id string) (*LetterTemplate, error)
	GetByLetterType(ctx context.Context, letterType string) (*LetterTemplate, error)
	List(ctx context.Context) ([]LetterTemplate, error)
	Delete(ctx context.Context, id string) error
}

type TemplateRepositoryImpl struct {
	Collection *mongo.Collection
}

func NewTemplateRepository(mongodb *database.MongodbDB) TemplateRepository {
	return &TemplateRepositoryImpl{
		Collection: mongodb.DB.Collection("letter_templates"),
	}
}

func (r *TemplateRepositoryImpl) Create(ctx context.Context, tpl *LetterTemplate) error {
	if tpl.ID.IsZero() {
		tpl.ID = primitive.NewObjectID()
	}
	tpl.CreatedAt = time.Now()
	tpl.UpdatedAt = time.Now()
	_, err := r.Collection.InsertOne(ctx, tpl)
	return err
}

func (r *TemplateRepositoryImpl) Update(ctx context.Context, id string, tpl *LetterTemplate) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}
	update := bson.M{
		"$set": bson.M{
			"name":              tpl.Name,
			"letter_type":       tpl.LetterType,
			"description":       tpl.Description,
			"steps":             tpl.Steps,
			"signature_targets": tpl.SignatureTargets,
			"active":            tpl.Active,
			"updated_at":        time.Now(),
		},
	}
	_, err = r.Collection.UpdateOne(ctx, bson.M{"_id": oid}, update)
	return err
}

func (r *TemplateRepositoryImpl) GetByID(ctx context.Context, id string) (*LetterTemplate, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}
	var tpl LetterTemplate
	err = r.Collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&tpl)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &tpl, nil
}

func (r *TemplateRepositoryImpl) GetByLetterType(ctx context.Context, letterType string) (*LetterTemplate, error) {
	var tpl LetterTemplate
	opts := options.FindOne().SetSort(bson.M{"updated_at": -1})
	err := r.Collection.FindOne(ctx, bson.M{"letter_type": letterType, "active": true}, opts).Decode(&tpl)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &tpl, nil
}

func (r *TemplateRepositoryImpl) List(ctx context.Context) ([]LetterTemplate, error) {
	cursor, err := r.Collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.M{"created_at": -1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var templates []LetterTemplate
	if err = cursor.All(ctx, &templates); err != nil {
		return nil, err
	}
	return templates, nil
}

func (r *TemplateRepositoryImpl) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}
	_, err = r.Collection.DeleteOne(ctx, bson.M{"_id": oid})
	return err
}
