package template

import (
	"time"

	"go-letter/internal/common/models"
	"go-letter/internal/features/workflow"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LetterTemplate binds a letter type to its default approval route and the
// signature slots printed on the rendered page. Changing a template never
// touches letters already instantiated from it.
type LetterTemplate struct {
	ID               primitive.ObjectID       `bson:"_id,omitempty" json:"id"`
	Name             string                   `bson:"name" json:"name"`
	LetterType       string                   `bson:"letter_type" json:"letter_type"`
	Description      string                   `bson:"description,omitempty" json:"description,omitempty"`
	Steps            []workflow.StepSpec      `bson:"steps" json:"steps"`
	SignatureTargets []models.SignatureTarget `bson:"signature_targets,omitempty" json:"signature_targets,omitempty"`
	Active           bool                     `bson:"active" json:"active"`
	CreatedBy        string                   `bson:"created_by,omitempty" json:"created_by,omitempty"`
	CreatedAt        time.Time                `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time                `bson:"updated_at" json:"updated_at"`
}
